package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aqasim81/mite/internal/tracker"
)

const shortHashLen = 12

var statusCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "status",
	Short: "Show migration status",
	Long: `List every migration with its state against the ledger:

  applied   recorded in the ledger with the same content
  pending   not applied yet
  gap       not applied, but older than the current version
  mismatch  applied, but the file changed since
  missing   recorded in the ledger with no file`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd, AppConfig)
	if err != nil {
		return err
	}
	defer s.Close()

	t := s.migrator.Tracker()

	entries := t.Status()
	if len(entries) == 0 {
		fmt.Fprintln(s.out, "No migration files found.")
	} else {
		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, []string{e.Version, string(e.State), shortHash(e.Hash)})
		}

		if err := renderTable(s.out, []string{"VERSION", "STATE", "HASH"}, rows); err != nil {
			return fmt.Errorf("rendering status: %w", err)
		}
	}

	fmt.Fprintf(s.out, "\nCurrent version: %s\n", t.Version())
	printValidity(s, t)

	return nil
}

func printValidity(s *session, t *tracker.Tracker) {
	if err := t.Validate(); err != nil {
		fmt.Fprintf(s.out, "State: invalid (%v)\n", err)

		return
	}

	if t.IsMigrationGap() {
		fmt.Fprintln(s.out, "State: valid (gaps tolerated by permissive mode)")

		return
	}

	fmt.Fprintln(s.out, "State: valid")
}

func shortHash(hash string) string {
	if len(hash) > shortHashLen {
		return hash[:shortHashLen]
	}

	return hash
}
