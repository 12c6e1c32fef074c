package main

import (
	"fmt"
	"os"

	"github.com/aretw0/strata/internal/cli"
	"github.com/aretw0/strata/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "strata",
	Short: "Strata composes unique tokens from layered trait art",
	Long: `Strata draws one option per trait category under weights, context and
rule constraints, composites the layers and writes image + metadata pairs.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("dir", ".", "Directory containing the Strata project")
	rootCmd.PersistentFlags().String("config", "", "Configuration file (default <dir>/strata.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Bool("debug", false, "Log every token lifecycle event")
}

// baseOptions reads the persistent flags. A positional argument names the
// project directory when --dir is not given.
func baseOptions(cmd *cobra.Command, args []string) cli.Options {
	dir, _ := cmd.Flags().GetString("dir")
	if !cmd.Flags().Changed("dir") && len(args) > 0 {
		dir = args[0]
	}
	cfgPath, _ := cmd.Flags().GetString("config")
	level, _ := cmd.Flags().GetString("log-level")
	debug, _ := cmd.Flags().GetBool("debug")
	return cli.Options{Dir: dir, ConfigPath: cfgPath, LogLevel: level, Debug: debug}
}

// overrides maps explicitly set flags onto the loaded configuration.
func overrides(cmd *cobra.Command) func(*config.Config) {
	return func(c *config.Config) {
		flags := cmd.Flags()
		if flags.Changed("concurrency") {
			c.Concurrency, _ = flags.GetInt("concurrency")
		}
		if flags.Changed("max-rerolls") {
			c.MaxRerolls, _ = flags.GetInt("max-rerolls")
		}
		if flags.Changed("output") {
			c.Output, _ = flags.GetString("output")
		}
		if flags.Changed("redis") {
			c.RedisAddr, _ = flags.GetString("redis")
		}
		if flags.Changed("ledger") {
			c.SQLitePath, _ = flags.GetString("ledger")
		}
	}
}

// addBackendFlags registers the flags read by overrides.
func addBackendFlags(cmd *cobra.Command) {
	cmd.Flags().Int("concurrency", 0, "Tokens generated in parallel")
	cmd.Flags().Int("max-rerolls", 0, "Attempts per token before giving up")
	cmd.Flags().StringP("output", "o", "", "Output directory")
	cmd.Flags().String("redis", "", "Redis address for the shared seen-set and batch lock")
	cmd.Flags().String("ledger", "", "SQLite ledger path")
}
