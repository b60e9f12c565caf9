package main

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/ersonp/confighistory/internal/application/handlers"
	"github.com/ersonp/confighistory/internal/domain/diff"
	"github.com/ersonp/confighistory/internal/domain/services"
)

type diffFlags struct {
	sideBySide bool
	width      int
	stat       bool
	context    int
}

func newDiffCmd() *cobra.Command {
	var flags diffFlags

	cmd := &cobra.Command{
		Use:   "diff <entity> <timestamp> [timestamp]",
		Short: "Compare two snapshots",
		Long: `Shows a unified diff between two revisions of an entity.
With a single timestamp the revision is compared with the one before it.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd, args, flags)
		},
	}

	cmd.Flags().BoolVarP(&flags.sideBySide, "side-by-side", "y", false, "Show both versions in two columns")
	cmd.Flags().IntVarP(&flags.width, "width", "w", DefaultSideBySideWidth, "Column width for --side-by-side")
	cmd.Flags().BoolVar(&flags.stat, "stat", false, "Print a change summary")
	cmd.Flags().IntVarP(&flags.context, "context", "U", diff.DefaultContext, "Lines of context around each change")

	return cmd
}

func runDiff(cmd *cobra.Command, args []string, flags diffFlags) error {
	if flags.width < MinSideBySideWidth {
		return fmt.Errorf("width must be at least %d", MinSideBySideWidth)
	}
	if flags.context < 0 {
		return fmt.Errorf("context must not be negative")
	}

	req := handlers.DiffRequest{EntityID: args[0], From: args[1], Context: flags.context}
	if len(args) == 3 {
		req.To = args[2]
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	return withDeps(ctx, cmd.ErrOrStderr(), func(deps *Deps) error {
		cmp, err := deps.History.HandleDiff(ctx, req)
		if err != nil {
			return err
		}

		switch {
		case flags.sideBySide:
			err = renderSideBySide(out, cmp, flags.width)
		case cmp.Diff.Identical():
			_, err = fmt.Fprintln(out, "No differences.")
		default:
			_, err = io.WriteString(out, cmp.Diff.Unified)
		}
		if err != nil {
			return err
		}

		if flags.stat {
			_, err = fmt.Fprintln(out, formatStat(cmp.Stats))
		}
		return err
	})
}

func formatStat(s diff.Stats) string {
	return fmt.Sprintf("%d %s, %d %s(+), %d %s(-), %d changed",
		s.Hunks, plural(s.Hunks, "hunk", "hunks"),
		s.Added, plural(s.Added, "insertion", "insertions"),
		s.Deleted, plural(s.Deleted, "deletion", "deletions"),
		s.Changed)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

var changeMarkers = map[diff.ChangeType]string{
	diff.ChangeEqual:  " ",
	diff.ChangeModify: "|",
	diff.ChangeDelete: "<",
	diff.ChangeInsert: ">",
}

// renderSideBySide prints one row per aligned line: old number and text,
// a change marker, then new number and text.
func renderSideBySide(w io.Writer, cmp *services.Comparison, width int) error {
	oldLabel := cmp.EntityID + "@(none)"
	if cmp.Old != nil {
		oldLabel = cmp.Old.EntityID + "@" + cmp.Old.Timestamp
	}
	newLabel := cmp.New.EntityID + "@" + cmp.New.Timestamp

	if _, err := fmt.Fprintf(w, "%5s %s   %5s %s\n", "", fit(oldLabel, width), "", newLabel); err != nil {
		return err
	}
	for _, row := range cmp.Rows {
		if _, err := fmt.Fprintf(w, "%5s %s %s %5s %s\n",
			lineNumber(row.OldNumber),
			fit(row.OldContent, width),
			changeMarkers[row.Change],
			lineNumber(row.NewNumber),
			strings.TrimRight(fit(row.NewContent, width), " "),
		); err != nil {
			return err
		}
	}
	return nil
}

func lineNumber(n int) string {
	if n == 0 {
		return ""
	}
	return fmt.Sprintf("%d", n)
}

// fit expands tabs, drops a trailing carriage return, and pads or truncates
// s to exactly width runes.
func fit(s string, width int) string {
	s = strings.ReplaceAll(strings.TrimSuffix(s, "\r"), "\t", "    ")
	n := utf8.RuneCountInString(s)
	if n <= width {
		return s + strings.Repeat(" ", width-n)
	}
	runes := []rune(s)
	return string(runes[:width-1]) + "~"
}
