package main

import (
	"os"

	"github.com/aretw0/strata/internal/cli"
	"github.com/spf13/cobra"
)

func inspectOptions(cmd *cobra.Command, args []string) cli.InspectOptions {
	opts := cli.InspectOptions{Options: baseOptions(cmd, args)}
	opts.Override = overrides(cmd)
	flags := cmd.Flags()
	opts.JSON, _ = flags.GetBool("json")
	if flags.Lookup("strict") != nil {
		opts.Strict, _ = flags.GetBool("strict")
	}
	if flags.Lookup("batch") != nil {
		opts.BatchID, _ = flags.GetString("batch")
	}
	if flags.Lookup("token") != nil {
		opts.TokenID, _ = flags.GetInt64("token")
	}
	return opts
}

var validateCmd = &cobra.Command{
	Use:   "validate [dir]",
	Short: "Check the project for consistency",
	Long:  `Loads layers and rules and reports references to missing options, malformed weights and tag problems.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.RunValidate(cmd.Context(), inspectOptions(cmd, args), os.Stdout)
	},
}

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph [dir]",
	Short: "Export the rule graph visualization",
	Long:  `Outputs a Mermaid diagram of the exclude/require relations and context overrides.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.RunGraph(cmd.Context(), inspectOptions(cmd, args), os.Stdout)
	},
}

var reportCmd = &cobra.Command{
	Use:   "report [dir]",
	Short: "Compare trait frequencies with their weights",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.RunReport(cmd.Context(), inspectOptions(cmd, args), os.Stdout)
	},
}

var coverageCmd = &cobra.Command{
	Use:   "coverage [dir]",
	Short: "Show how tag groups cover each trait",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.RunCoverage(cmd.Context(), inspectOptions(cmd, args), os.Stdout)
	},
}

var dupesCmd = &cobra.Command{
	Use:   "dupes [dir]",
	Short: "Find tokens sharing the same traits",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.RunDupes(cmd.Context(), inspectOptions(cmd, args), os.Stdout)
	},
}

func init() {
	for _, c := range []*cobra.Command{validateCmd, graphCmd, reportCmd, coverageCmd, dupesCmd} {
		rootCmd.AddCommand(c)
		c.Flags().StringP("output", "o", "", "Output directory")
		c.Flags().String("ledger", "", "SQLite ledger path")
		if c != graphCmd {
			c.Flags().Bool("json", false, "Print JSON instead of markdown")
		}
	}
	validateCmd.Flags().Bool("strict", false, "Fail on configuration warnings")
	reportCmd.Flags().String("batch", "", "Read combinations of this batch from the ledger")
	graphCmd.Flags().Int64("token", 0, "Highlight the options of this token")
}
