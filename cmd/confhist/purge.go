package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ersonp/confighistory/internal/domain/services"
)

type purgeFlags struct {
	maxEntries int
	maxAgeDays int
	force      bool
}

func newPurgeCmd() *cobra.Command {
	var flags purgeFlags

	cmd := &cobra.Command{
		Use:   "purge <entity>",
		Short: "Remove old revisions",
		Long: `Removes revisions beyond the retention limits. Without flags the limits
from the history section of the config are used. The latest revision is
never removed by age.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPurge(cmd, args[0], flags)
		},
	}

	cmd.Flags().IntVar(&flags.maxEntries, "max-entries", 0, "Keep at most this many revisions")
	cmd.Flags().IntVar(&flags.maxAgeDays, "max-age-days", 0, "Remove revisions older than this many days")
	cmd.Flags().BoolVarP(&flags.force, "force", "f", false, "Skip confirmation prompt")

	return cmd
}

func runPurge(cmd *cobra.Command, entityID string, flags purgeFlags) error {
	if flags.maxEntries < 0 || flags.maxAgeDays < 0 {
		return fmt.Errorf("limits must not be negative")
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if !flags.force && !confirmAction(cmd.InOrStdin(), out, fmt.Sprintf("Purge old history of %s?", entityID)) {
		fmt.Fprintln(out, "Cancelled.")
		return nil
	}

	policy := services.PurgePolicy{
		MaxEntries: flags.maxEntries,
		MaxAge:     time.Duration(flags.maxAgeDays) * 24 * time.Hour,
	}

	return withDeps(ctx, cmd.ErrOrStderr(), func(deps *Deps) error {
		purged, err := deps.History.HandlePurge(ctx, entityID, policy)
		if err != nil {
			return fmt.Errorf("purging history: %w", err)
		}
		if len(purged) == 0 {
			fmt.Fprintln(out, "Nothing to purge.")
			return nil
		}
		for _, rev := range purged {
			fmt.Fprintf(out, "Removed %s@%s\n", rev.EntityID, rev.Timestamp)
		}
		fmt.Fprintf(out, "Purged %d revisions of %s\n", len(purged), entityID)
		return nil
	})
}
