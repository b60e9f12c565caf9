package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ersonp/confighistory/internal/application/handlers"
	"github.com/ersonp/confighistory/internal/infrastructure/config"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration history",
		Long:  "Creates a .confhist directory with default configuration and prepares the snapshot store.",
		Args:  cobra.NoArgs,
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	base, err := basePath()
	if err != nil {
		return err
	}

	log := newLogger(config.Default().Logging, cmd.ErrOrStderr())
	initHandler := handlers.NewInitHandler(openStore(log))

	result, err := initHandler.Handle(cmd.Context(), base)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created %s\n", result.ConfigPath)
	fmt.Fprintf(out, "Storage backend: %s\n", result.Backend)
	fmt.Fprintln(out, "confhist initialized successfully!")
	return nil
}
