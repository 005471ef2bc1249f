package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aqasim81/mite/internal/config"
	"github.com/aqasim81/mite/internal/migration"
)

var initCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "init",
	Short: "Write the configuration file and create the ledger",
	Long: `Write the configuration file when it does not exist yet, create the
database when missing and create the ledger table.

With --baseline, the current schema is dumped into a new migration file that
is recorded as applied without being executed. Use it to start tracking an
existing database.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	initCmd.Flags().Bool("baseline", false, "record the current schema as the first migration")
	initCmd.Flags().Bool("include-data", false, "include table data in the baseline")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig
	out := cmd.OutOrStdout()

	if err := cfg.Validate(); err != nil {
		return err
	}

	configPath, _ := cmd.Flags().GetString("config")

	written, err := writeConfigIfMissing(configPath, cfg)
	if err != nil {
		return err
	}

	if written {
		fmt.Fprintf(out, "Wrote %s\n", configPath)
	}

	if err := os.MkdirAll(cfg.MigrationsDir, 0o755); err != nil {
		return fmt.Errorf("creating migrations directory: %w", err)
	}

	s, err := openSession(cmd, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := commandContext(cmd)

	if err := s.migrator.Init(ctx); err != nil {
		return err
	}

	fmt.Fprintf(out, "Ledger %s ready in %s\n", cfg.Table, config.RedactURL(cfg.DatabaseURL))

	if baseline, _ := cmd.Flags().GetBool("baseline"); !baseline {
		return nil
	}

	includeData, _ := cmd.Flags().GetBool("include-data")

	return recordBaseline(cmd, s, includeData)
}

func writeConfigIfMissing(path string, cfg *config.Config) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return false, nil
	}

	if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("checking config file %s: %w", path, err)
	}

	if err := config.Write(path, cfg); err != nil {
		return false, err
	}

	return true, nil
}

// recordBaseline dumps the schema into a new migration file and records it
// as applied.
func recordBaseline(cmd *cobra.Command, s *session, includeData bool) error {
	ctx := commandContext(cmd)

	script, err := s.repo.GenerateSQLScript(ctx, includeData)
	if err != nil {
		return fmt.Errorf("generating baseline: %w", err)
	}

	version := migration.NextVersion(time.Now())

	path, err := migration.Create(s.cfg.MigrationsDir, version, migration.Render(script, ""))
	if err != nil {
		return err
	}

	fmt.Fprintf(s.out, "Created %s\n", path)

	if err := s.migrator.Refresh(ctx); err != nil {
		return err
	}

	mig, ok := s.migrator.Tracker().Lookup(version)
	if !ok {
		return fmt.Errorf("baseline %s not found in %s", version, s.cfg.MigrationsDir)
	}

	res, err := s.migrator.Baseline(ctx, mig)
	if err != nil {
		return err
	}

	s.report(res)

	return nil
}
