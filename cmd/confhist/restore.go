package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

type restoreFlags struct {
	output string
	author string
}

func newRestoreCmd() *cobra.Command {
	var flags restoreFlags

	cmd := &cobra.Command{
		Use:   "restore <entity> <timestamp>",
		Short: "Restore an old snapshot",
		Long: `Records the snapshot at timestamp as the newest revision of entity.
With --output the restored content is also written to a file.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRestore(cmd, args[0], args[1], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "Write the restored content to this file")
	cmd.Flags().StringVar(&flags.author, "author", "", "User performing the restore")

	return cmd
}

func runRestore(cmd *cobra.Command, entityID, timestamp string, flags restoreFlags) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	return withDeps(ctx, cmd.ErrOrStderr(), func(deps *Deps) error {
		result, err := deps.History.HandleRestore(ctx, entityID, timestamp, flags.author)
		if err != nil {
			return err
		}

		if flags.output != "" {
			if err := os.WriteFile(flags.output, []byte(result.Source.Content), 0644); err != nil {
				return fmt.Errorf("writing %s: %w", flags.output, err)
			}
			fmt.Fprintf(out, "Wrote %s\n", flags.output)
		}

		if result.Record.Skipped {
			fmt.Fprintf(out, "%s@%s already matches the latest revision (%s)\n", entityID, timestamp, result.Record.Reason)
			return nil
		}
		fmt.Fprintf(out, "Restored %s@%s as %s\n", entityID, timestamp, result.Record.Revision.Timestamp)
		return nil
	})
}
