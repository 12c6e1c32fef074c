package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/strata/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve [dir]",
	Short: "Start the HTTP control surface",
	Long: `Exposes batch control, progress (JSON and SSE), token lookup and previews
over HTTP. The OpenAPI document is served on /openapi.yaml.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := baseOptions(cmd, args)
		opts.Override = overrides(cmd)
		port, _ := cmd.Flags().GetString("port")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return cli.RunServe(ctx, opts, ":"+port)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addBackendFlags(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
}
