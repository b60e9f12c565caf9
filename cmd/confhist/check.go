package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var errInvalidTimestamp = errors.New("not a recorded revision")

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <entity> <timestamp>",
		Short: "Check that a timestamp names a revision",
		Long:  "Reports whether timestamp is a revision of entity, with its neighbours. Exits non-zero when it is not.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, args[0], args[1])
		},
	}
}

func runCheck(cmd *cobra.Command, entityID, timestamp string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	return withDeps(ctx, cmd.ErrOrStderr(), func(deps *Deps) error {
		result, err := deps.History.HandleCheck(ctx, entityID, timestamp)
		if err != nil {
			return err
		}
		if !result.Valid {
			return fmt.Errorf("%s@%s: %w", entityID, timestamp, errInvalidTimestamp)
		}

		fmt.Fprintf(out, "%s@%s is valid\n", entityID, timestamp)
		if result.Previous != nil {
			fmt.Fprintf(out, "  previous: %s\n", result.Previous.Timestamp)
		}
		if result.Next != nil {
			fmt.Fprintf(out, "  next:     %s\n", result.Next.Timestamp)
		}
		return nil
	})
}
