package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aqasim81/mite/internal/migrator"
)

// errUnknownStrategy is returned for a resolution strategy other than safe or dirty.
var errUnknownStrategy = errors.New("unknown resolution strategy (use safe or dirty)")

var updateCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "update",
	Short: "Apply every pending migration",
	Long: `Apply every pending migration in version order. The database and the
ledger table are created when missing. Refuses to run while a migration
was skipped or changed after it was applied, unless --resolve is given.`,
	Args: cobra.NoArgs,
	RunE: runUpdate,
}

var stepUpCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "stepup",
	Short: "Apply the next pending migration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runOperation(cmd, (*migrator.Migrator).StepUp)
	},
}

var stepDownCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "stepdown",
	Short: "Revert the most recently applied migration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runOperation(cmd, (*migrator.Migrator).StepDown)
	},
}

var migrateCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:     "migrate <version>",
	Aliases: []string{"d"},
	Short:   "Migrate up or down to a version",
	Long: `Migrate the database to exactly the given version. Migrating up applies
pending migrations up to and including the version; migrating down reverts
applied migrations newer than it. Use 0 to revert everything.`,
	Args: cobra.ExactArgs(1),
	RunE: runMigrate,
}

var resolveCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "resolve",
	Short: "Recover from skipped or changed migrations",
	Long: `Recover a database whose ledger has a gap or a hash mismatch.

  safe   revert to the last migration whose whole history is intact, then
         apply everything pending from there
  dirty  apply every pending migration, ignoring gaps and mismatches`,
	Args: cobra.NoArgs,
	RunE: runResolve,
}

var verifyCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "verify",
	Short: "Run every migration up and down on a scratch database",
	Long: `Recreate the verify database, apply every migration and revert them all
again. The configured database is not touched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runOperation(cmd, (*migrator.Migrator).Verify)
	},
}

var scratchCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "scratch",
	Short: "Drop and recreate the database, then apply every migration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runOperation(cmd, (*migrator.Migrator).FromScratch)
	},
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	updateCmd.Flags().String("resolve", "", "resolve an invalid state first (safe, dirty)")
	resolveCmd.Flags().String("strategy", "safe", "resolution strategy (safe, dirty)")

	rootCmd.AddCommand(updateCmd, stepUpCmd, stepDownCmd, migrateCmd, resolveCmd, verifyCmd, scratchCmd)
}

// operation is a Migrator method that reports a Result.
type operation func(m *migrator.Migrator, ctx context.Context) (migrator.Result, error)

// runOperation opens a session, runs op and prints its outcome.
func runOperation(cmd *cobra.Command, op operation) error {
	s, err := openSession(cmd, AppConfig)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := op(s.migrator, commandContext(cmd))
	if err != nil {
		return err
	}

	s.report(res)

	return nil
}

func runUpdate(cmd *cobra.Command, _ []string) error {
	strategy, _ := cmd.Flags().GetString("resolve")
	if strategy == "" {
		return runOperation(cmd, (*migrator.Migrator).Update)
	}

	op, err := resolution(strategy)
	if err != nil {
		return err
	}

	return runOperation(cmd, op)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	destination := args[0]

	return runOperation(cmd, func(m *migrator.Migrator, ctx context.Context) (migrator.Result, error) {
		return m.MigrateTo(ctx, destination)
	})
}

func runResolve(cmd *cobra.Command, _ []string) error {
	strategy, _ := cmd.Flags().GetString("strategy")

	op, err := resolution(strategy)
	if err != nil {
		return err
	}

	return runOperation(cmd, op)
}

func resolution(strategy string) (operation, error) {
	switch strings.ToLower(strategy) {
	case "safe":
		return (*migrator.Migrator).SafeResolution, nil
	case "dirty":
		return (*migrator.Migrator).DirtyResolution, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownStrategy, strategy)
	}
}
