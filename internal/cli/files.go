package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aqasim81/mite/internal/migration"
)

// errConfirmationRequired is returned by destructive commands run without --yes.
var errConfirmationRequired = errors.New("refusing to continue without --yes")

var createCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:     "create [name]",
	Aliases: []string{"c"},
	Short:   "Create a new migration file",
	Long: `Create an empty migration file in the migrations directory. The default
name is the current UTC time. The name must sort after every existing
migration.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCreate,
}

var ensureCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "ensure",
	Short: "Fail when migrations were skipped or changed",
	Long: `Exit with an error when the ledger has a hash mismatch, or a gap outside
permissive mode. Intended as a gate in build pipelines.`,
	Args: cobra.NoArgs,
	RunE: runEnsure,
}

var cleanCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "clean",
	Short: "Drop the ledger table and remove the configuration file",
	Long: `Drop the ledger table and remove the configuration file. Schema changes
made by migrations are left in place.`,
	Args: cobra.NoArgs,
	RunE: runClean,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	cleanCmd.Flags().Bool("yes", false, "confirm dropping the ledger")
	rootCmd.AddCommand(createCmd, ensureCmd, cleanCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	cfg := AppConfig

	name := migration.NextVersion(time.Now())
	if len(args) == 1 {
		name = args[0]
	}

	if err := os.MkdirAll(cfg.MigrationsDir, 0o755); err != nil {
		return fmt.Errorf("creating migrations directory: %w", err)
	}

	path, err := migration.Create(cfg.MigrationsDir, name, migration.Render("", ""))
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)

	return nil
}

func runEnsure(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd, AppConfig)
	if err != nil {
		return err
	}
	defer s.Close()

	t := s.migrator.Tracker()

	if err := t.Validate(); err != nil {
		for _, m := range t.InvalidMigrations() {
			fmt.Fprintf(s.out, "  mismatch  %s\n", m.Version)
		}

		if !t.Permissive() {
			for _, m := range t.Gaps() {
				fmt.Fprintf(s.out, "  gap       %s\n", m.Version)
			}
		}

		return err
	}

	fmt.Fprintf(s.out, "Migrations are valid, database is at version %s\n", t.Version())

	return nil
}

func runClean(cmd *cobra.Command, _ []string) error {
	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		return errConfirmationRequired
	}

	s, err := openSession(cmd, AppConfig)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.migrator.DropLedger(commandContext(cmd)); err != nil {
		return err
	}

	fmt.Fprintf(s.out, "Dropped ledger table %s\n", s.cfg.Table)

	configPath, _ := cmd.Flags().GetString("config")

	if err := os.Remove(configPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("removing config file %s: %w", configPath, err)
	}

	fmt.Fprintf(s.out, "Removed %s\n", configPath)

	return nil
}
