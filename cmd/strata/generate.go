package main

import (
	"os"

	"github.com/aretw0/strata/internal/cli"
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate [dir]",
	Short: "Generate a batch of tokens",
	Long: `Generates --count tokens into the output directory. Ctrl+C cancels the
batch and waits for running tokens; a second Ctrl+C stops waiting.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := cli.GenerateOptions{Options: baseOptions(cmd, args)}
		opts.Override = overrides(cmd)
		flags := cmd.Flags()
		opts.Count, _ = flags.GetInt("count")
		opts.StartID, _ = flags.GetInt64("start-id")
		opts.Context, _ = flags.GetStringSlice("context")
		opts.Width, _ = flags.GetInt("width")
		opts.Height, _ = flags.GetInt("height")
		opts.Seed, _ = flags.GetInt64("seed")
		opts.StopOnError, _ = flags.GetBool("stop-on-error")
		opts.KeepOutput, _ = flags.GetBool("keep-output")
		opts.JSON, _ = flags.GetBool("json")

		return cli.RunGenerate(cmd.Context(), opts, os.Stdout, os.Stderr)
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
	addBackendFlags(generateCmd)

	generateCmd.Flags().IntP("count", "n", 10, "Number of tokens, custom tokens included")
	generateCmd.Flags().Int64("start-id", 1, "Id of the first token")
	generateCmd.Flags().StringSlice("context", nil, "Base context tags (comma separated)")
	generateCmd.Flags().Int("width", 0, "Output width in pixels (64..8192)")
	generateCmd.Flags().Int("height", 0, "Output height in pixels (64..8192)")
	generateCmd.Flags().Int64("seed", 0, "Random seed (0 picks one)")
	generateCmd.Flags().Bool("stop-on-error", false, "Cancel the batch after the first failed token")
	generateCmd.Flags().Bool("keep-output", false, "Keep previously generated tokens")
	generateCmd.Flags().Bool("json", false, "Emit NDJSON progress on stdout")
}
