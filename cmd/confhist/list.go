package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ersonp/confighistory/internal/application/handlers"
	"github.com/ersonp/confighistory/internal/domain/entities"
)

func newListCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "list [entity]",
		Short: "List revisions",
		Long:  "Lists an entity's revisions oldest first, or every entity with history when none is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, args, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format (table, json, csv)")

	return cmd
}

func runList(cmd *cobra.Command, args []string, format string) error {
	if !contains(validListFormats, format) {
		return fmt.Errorf("invalid format %q, valid formats: %v", format, validListFormats)
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	return withDeps(ctx, cmd.ErrOrStderr(), func(deps *Deps) error {
		if len(args) == 0 {
			result, err := deps.History.HandleListEntities(ctx)
			if err != nil {
				return err
			}
			return formatEntities(out, result, format)
		}

		result, err := deps.History.HandleList(ctx, args[0])
		if err != nil {
			return err
		}
		return formatRevisions(out, result, format)
	})
}

func formatEntities(w io.Writer, result *handlers.EntityListResult, format string) error {
	switch format {
	case "json":
		return writeJSON(w, result)
	case "csv":
		writer := csv.NewWriter(w)
		if err := writer.Write([]string{"entity_id"}); err != nil {
			return err
		}
		for _, id := range result.Entities {
			if err := writer.Write([]string{id}); err != nil {
				return err
			}
		}
		writer.Flush()
		return writer.Error()
	default:
		if result.Total == 0 {
			_, err := fmt.Fprintln(w, "No history recorded.")
			return err
		}
		for _, id := range result.Entities {
			if _, err := fmt.Fprintln(w, id); err != nil {
				return err
			}
		}
		return nil
	}
}

func formatRevisions(w io.Writer, result *handlers.RevisionListResult, format string) error {
	switch format {
	case "json":
		return writeJSON(w, result)
	case "csv":
		return formatRevisionsCSV(w, result.Revisions)
	default:
		return formatRevisionsTable(w, result)
	}
}

func formatRevisionsCSV(w io.Writer, revs []entities.Revision) error {
	writer := csv.NewWriter(w)

	header := []string{"timestamp", "operation", "author", "size", "checksum"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, rev := range revs {
		row := []string{
			rev.Timestamp,
			string(rev.Operation),
			rev.Author,
			strconv.FormatInt(rev.Size, 10),
			rev.Checksum,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatRevisionsTable(w io.Writer, result *handlers.RevisionListResult) error {
	if result.Total == 0 {
		_, err := fmt.Fprintf(w, "No history for %s.\n", result.EntityID)
		return err
	}

	if _, err := fmt.Fprintf(w, "History of %s (%d revisions):\n\n", result.EntityID, result.Total); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIMESTAMP\tOPERATION\tAUTHOR\tSIZE\tCHECKSUM")
	for _, rev := range result.Revisions {
		author := rev.Author
		if author == "" {
			author = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", rev.Timestamp, rev.Operation, author, rev.Size, shortChecksum(rev.Checksum))
	}
	return tw.Flush()
}

func shortChecksum(sum string) string {
	if len(sum) > 12 {
		return sum[:12]
	}
	return sum
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
