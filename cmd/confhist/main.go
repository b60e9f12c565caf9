// Package main provides the entry point for the confhist CLI application.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version        = "0.1.0-dev"
	globalDir      string
	globalLogLevel string
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "confhist",
		Short:         "Keeps a timestamped history of configuration snapshots and diffs them",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&globalDir, "dir", "C", ".", "Directory containing .confhist")
	rootCmd.PersistentFlags().StringVar(&globalLogLevel, "log-level", "", "Log level (debug, info, warn, error); overrides config")

	rootCmd.AddCommand(
		newInitCmd(),
		newRecordCmd(),
		newImportCmd(),
		newListCmd(),
		newShowCmd(),
		newDiffCmd(),
		newDeleteCmd(),
		newPurgeCmd(),
		newRestoreCmd(),
		newCheckCmd(),
	)

	return rootCmd
}
