// Package plan computes the ordered scripts that move a database between two versions.
package plan

import "github.com/aqasim81/mite/internal/migration"

// InitialVersion is the version of a database with no applied migrations.
const InitialVersion = "0"

// Plan is an ordered list of migrations to execute in a single direction.
type Plan struct {
	Origin      string
	Destination string
	Direction   migration.Direction
	Migrations  []migration.Migration
}

// Build selects the migrations between current and destination. An empty
// current means InitialVersion; an empty destination means the greatest
// available version. The destination is clamped to the greatest available
// version; the direction follows the requested destination. All comparisons
// are plain string comparisons.
func Build(all []migration.Migration, current, destination string) Plan {
	if current == "" {
		current = InitialVersion
	}

	sorted := migration.Sort(all)

	effective := destination
	if len(sorted) > 0 {
		latest := sorted[len(sorted)-1].Version
		if effective == "" || effective > latest {
			effective = latest
		}
	}

	if destination == "" {
		destination = effective
	}

	p := Plan{
		Origin:      current,
		Destination: effective,
		Direction:   migration.Down,
	}

	if destination > current {
		p.Direction = migration.Up
	}

	if p.Direction == migration.Up {
		for _, m := range sorted {
			if m.Version > current && m.Version <= effective {
				p.Migrations = append(p.Migrations, m)
			}
		}

		return p
	}

	for i := len(sorted) - 1; i >= 0; i-- {
		m := sorted[i]
		if m.Version > effective && m.Version <= current {
			p.Migrations = append(p.Migrations, m)
		}
	}

	return p
}

// SQL returns the scripts in execution order.
func (p Plan) SQL() []string {
	scripts := make([]string, 0, len(p.Migrations))
	for _, m := range p.Migrations {
		scripts = append(scripts, m.Script(p.Direction))
	}

	return scripts
}

// Versions returns the versions in execution order.
func (p Plan) Versions() []string {
	versions := make([]string, 0, len(p.Migrations))
	for _, m := range p.Migrations {
		versions = append(versions, m.Version)
	}

	return versions
}

// Empty reports whether the plan has nothing to execute.
func (p Plan) Empty() bool {
	return len(p.Migrations) == 0
}
