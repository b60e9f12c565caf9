package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func newDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <entity> <timestamp>",
		Short: "Delete one revision",
		Long:  "Deletes a single revision and its snapshot.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd, args[0], args[1], force)
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")

	return cmd
}

func runDelete(cmd *cobra.Command, entityID, timestamp string, force bool) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if !force && !confirmAction(cmd.InOrStdin(), out, fmt.Sprintf("Delete %s@%s?", entityID, timestamp)) {
		fmt.Fprintln(out, "Cancelled.")
		return nil
	}

	return withDeps(ctx, cmd.ErrOrStderr(), func(deps *Deps) error {
		if err := deps.History.HandleDelete(ctx, entityID, timestamp); err != nil {
			return fmt.Errorf("deleting revision: %w", err)
		}
		fmt.Fprintf(out, "Deleted %s@%s\n", entityID, timestamp)
		return nil
	})
}

func confirmAction(in io.Reader, out io.Writer, prompt string) bool {
	reader := bufio.NewReader(in)
	fmt.Fprintf(out, "%s [y/N]: ", prompt)
	response, _ := reader.ReadString('\n') // Error ignored: EOF/error treated as "no"
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
