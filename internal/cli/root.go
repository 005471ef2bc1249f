// Package cli implements the mite command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aqasim81/mite/internal/config"
)

const version = "0.1.0"

// AppConfig holds the loaded configuration, set during PersistentPreRunE.
var AppConfig *config.Config //nolint:gochecknoglobals // standard Cobra pattern for shared config

// rootCmd is the base command for the mite CLI.
var rootCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:     "mite",
	Version: version,
	Short:   "Versioned SQL migrations with a hash-checked ledger",
	Long: `mite applies plain SQL migration files to a database and records every
applied version with a content hash. Changed or skipped migrations are
detected before anything runs forward, and can be resolved safely or forced.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return loadConfig(cmd)
	},
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	flags := rootCmd.PersistentFlags()
	flags.String("config", config.DefaultFileName, "path to configuration file")
	flags.String("repository", "", "database repository (postgres, sqlite)")
	flags.String("database-url", "", "connection string, or file path for sqlite")
	flags.String("migrations-dir", "", "path to migration files")
	flags.String("table", "", "ledger table name")
	flags.String("splitter", "", "statement splitter (go, postgres, semicolon)")
	flags.Bool("permissive", false, "tolerate migration gaps")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads configuration with precedence: flag > env > file.
func loadConfig(cmd *cobra.Command) error {
	configPath, _ := cmd.Flags().GetString("config")
	allowMissing := !cmd.Flags().Changed("config")

	cfg, err := config.Load(configPath, allowMissing)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	config.MergeEnv(cfg)
	mergeFlags(cmd, cfg)

	AppConfig = cfg

	return nil
}

// mergeFlags overrides config with explicitly-set CLI flags.
func mergeFlags(cmd *cobra.Command, cfg *config.Config) {
	stringFlags := map[string]*string{
		"repository":     &cfg.Repository,
		"database-url":   &cfg.DatabaseURL,
		"migrations-dir": &cfg.MigrationsDir,
		"table":          &cfg.Table,
		"splitter":       &cfg.Splitter,
		"log-level":      &cfg.LogLevel,
	}

	for name, dst := range stringFlags {
		if cmd.Flags().Changed(name) {
			*dst, _ = cmd.Flags().GetString(name)
		}
	}

	if cmd.Flags().Changed("permissive") {
		cfg.Permissive, _ = cmd.Flags().GetBool("permissive")
	}
}
