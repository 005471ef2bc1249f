package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aqasim81/mite/internal/plan"
)

var planCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "plan",
	Short: "Show the migrations that would run",
	Long: `Show which migrations would run, and in which order, to move the database
from its current version to --to (default: the latest migration).`,
	Args: cobra.NoArgs,
	RunE: runPlan,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	planCmd.Flags().String("to", "", "destination version (default: latest)")
	planCmd.Flags().Bool("sql", false, "print the scripts instead of a summary")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd, AppConfig)
	if err != nil {
		return err
	}
	defer s.Close()

	to, _ := cmd.Flags().GetString("to")
	showSQL, _ := cmd.Flags().GetBool("sql")

	t := s.migrator.Tracker()
	p := plan.Build(t.Migrations(), t.Version(), to)

	if p.Empty() {
		fmt.Fprintf(s.out, "Nothing to do, database is at version %s\n", p.Origin)

		return nil
	}

	fmt.Fprintf(s.out, "Plan from %s to %s (%s, %d migration(s))\n", p.Origin, p.Destination, p.Direction, len(p.Migrations))

	if showSQL {
		for i, script := range p.SQL() {
			fmt.Fprintf(s.out, "\n-- %s (%s)\n%s\n", p.Migrations[i].Version, p.Direction, script)
		}

		return nil
	}

	rows := make([][]string, 0, len(p.Migrations))
	for i, version := range p.Versions() {
		rows = append(rows, []string{fmt.Sprintf("%d", i+1), version})
	}

	if err := renderTable(s.out, []string{"#", "VERSION"}, rows); err != nil {
		return fmt.Errorf("rendering plan: %w", err)
	}

	return nil
}
