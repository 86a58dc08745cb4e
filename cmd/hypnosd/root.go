package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hypnosd/internal/engine"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// buildRootCmd wires serve (also the default action), window and version.
func buildRootCmd() *cobra.Command {
	sf := &serveFlags{}
	root := &cobra.Command{
		Use:           "hypnosd",
		Short:         "Chat gateway for a single local llama.cpp model",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), sf, cmd.ErrOrStderr())
		},
	}
	sf.register(root)

	serve := &cobra.Command{
		Use:     "serve",
		Short:   "Load the model in the background and serve the HTTP API",
		Example: "  hypnosd serve --env-file .env\n  hypnosd serve --config hypnosd.yaml --addr :8080",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), sf, cmd.ErrOrStderr())
		},
	}
	sf.register(serve)

	root.AddCommand(serve, buildWindowCmd(), &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "hypnosd %s (llama: %t)\n", version, engine.LlamaBuilt)
			return err
		},
	})
	return root
}
