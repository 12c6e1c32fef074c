package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/strata/internal/cli"
	"github.com/spf13/cobra"
)

var previewCmd = &cobra.Command{
	Use:   "preview [dir]",
	Short: "Render one token without persisting it",
	Long:  `Renders a single token to preview.png. With --watch it renders again on every rule change.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cli.PreviewOptions{Options: baseOptions(cmd, args)}
		flags := cmd.Flags()
		opts.Context, _ = flags.GetStringSlice("context")
		opts.Seed, _ = flags.GetInt64("seed")
		opts.Size, _ = flags.GetInt("size")
		opts.Out, _ = flags.GetString("out")
		opts.Watch, _ = flags.GetBool("watch")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return cli.RunPreview(ctx, opts, os.Stdout, os.Stderr)
	},
}

func init() {
	rootCmd.AddCommand(previewCmd)

	previewCmd.Flags().StringSlice("context", nil, "Base context tags (comma separated)")
	previewCmd.Flags().Int64("seed", 0, "Random seed (0 picks one)")
	previewCmd.Flags().Int("size", 0, "Edge length in pixels (64..8192)")
	previewCmd.Flags().String("out", "", "Where to write the image (default <dir>/preview.png)")
	previewCmd.Flags().BoolP("watch", "w", false, "Render again whenever a rule document changes")
}
