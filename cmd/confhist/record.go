package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ersonp/confighistory/internal/domain/entities"
	"github.com/ersonp/confighistory/internal/domain/services"
)

type recordFlags struct {
	operation string
	author    string
}

func newRecordCmd() *cobra.Command {
	var flags recordFlags

	cmd := &cobra.Command{
		Use:   "record <entity> <file>",
		Short: "Record a configuration snapshot",
		Long: `Stores the contents of file as a new revision of entity.
Use "-" as the file to read from stdin.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(cmd, args[0], args[1], flags)
		},
	}

	cmd.Flags().StringVar(&flags.operation, "op", string(entities.OperationChanged), "Operation (CREATED, CHANGED, DELETED, RENAMED)")
	cmd.Flags().StringVar(&flags.author, "author", "", "User who made the change")

	return cmd
}

func runRecord(cmd *cobra.Command, entityID, file string, flags recordFlags) error {
	op, err := entities.ParseOperationKind(flags.operation)
	if err != nil {
		return err
	}

	content, err := readInput(cmd.InOrStdin(), file)
	if err != nil {
		return err
	}

	return withDeps(cmd.Context(), cmd.ErrOrStderr(), func(deps *Deps) error {
		result, err := deps.History.HandleRecord(cmd.Context(), services.RecordRequest{
			EntityID:  entityID,
			Content:   content,
			Operation: op,
			Author:    flags.author,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if result.Skipped {
			fmt.Fprintf(out, "Skipped %s (%s)\n", entityID, result.Reason)
			return nil
		}
		fmt.Fprintf(out, "Recorded %s@%s\n", entityID, result.Revision.Timestamp)
		for _, rev := range result.Pruned {
			fmt.Fprintf(out, "Pruned %s@%s\n", rev.EntityID, rev.Timestamp)
		}
		if result.PruneErr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: revision kept but pruning failed: %v\n", result.PruneErr)
		}
		return nil
	})
}

func readInput(stdin io.Reader, file string) (string, error) {
	if file == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", file, err)
	}
	return string(data), nil
}
