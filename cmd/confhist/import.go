package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ersonp/confighistory/internal/application/handlers"
)

type importFlags struct {
	format string
	dryRun bool
}

func newImportCmd() *cobra.Command {
	var flags importFlags

	cmd := &cobra.Command{
		Use:   "import <manifest>",
		Short: "Record a batch of snapshots from a manifest",
		Long: `Records every snapshot listed in a JSON, CSV or YAML manifest.
Each entry names an entity_id and a file, with optional operation and author.
Relative file paths resolve against the manifest's directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.format, "format", "f", "auto", "Manifest format (json, csv, yaml, auto)")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Validate without recording")

	return cmd
}

func runImport(cmd *cobra.Command, filePath string, flags importFlags) error {
	switch flags.format {
	case "auto", "json", "csv", "yaml", "yml":
	default:
		return fmt.Errorf("invalid --format value %q (valid: json, csv, yaml, auto)", flags.format)
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	return withDeps(ctx, cmd.ErrOrStderr(), func(deps *Deps) error {
		opts := handlers.ImportOptions{
			Format: flags.format,
			DryRun: flags.dryRun,
		}

		fmt.Fprintf(out, "Importing %s...\n", filePath)

		result, err := deps.Import.Handle(ctx, filePath, opts)
		if err != nil {
			return fmt.Errorf("importing manifest: %w", err)
		}

		for _, rev := range result.Recorded {
			fmt.Fprintf(out, "Recorded %s@%s\n", rev.EntityID, rev.Timestamp)
		}

		if len(result.Errors) > 0 {
			fmt.Fprintf(out, "\nValidation errors (%d):\n", len(result.Errors))
			for _, e := range result.Errors {
				fmt.Fprintf(out, "  %s\n", e.Error())
			}
		}

		fmt.Fprintln(out)
		if flags.dryRun {
			fmt.Fprintf(out, "Dry run: %d snapshots would be recorded", result.Imported)
		} else {
			fmt.Fprintf(out, "Imported: %d snapshots", result.Imported)
		}

		if result.Skipped > 0 {
			fmt.Fprintf(out, ", %d skipped", result.Skipped)
		}

		if len(result.Errors) > 0 {
			fmt.Fprintf(out, ", %d errors", len(result.Errors))
		}

		fmt.Fprintln(out)

		return nil
	})
}
