// Package tracker reconciles the migration source with the ledger of applied
// versions. A Tracker is an immutable snapshot; callers replace it after every
// change to the database instead of updating it.
package tracker

import (
	"fmt"
	"io/fs"
	"maps"
	"slices"
	"strings"

	"github.com/aqasim81/mite/internal/migration"
	"github.com/aqasim81/mite/internal/plan"
)

// InitialVersion is reported when the ledger is empty.
const InitialVersion = plan.InitialVersion

// Tracker combines the full migration set with the ledger of version -> hash.
type Tracker struct {
	migrations []migration.Migration // ascending by version
	byVersion  map[string]migration.Migration
	ledger     map[string]string
	permissive bool
}

// New builds a snapshot. Migrations must have unique versions; the inputs are copied.
func New(migrations []migration.Migration, ledger map[string]string, permissive bool) *Tracker {
	t := &Tracker{
		migrations: migration.Sort(migrations),
		byVersion:  make(map[string]migration.Migration, len(migrations)),
		ledger:     maps.Clone(ledger),
		permissive: permissive,
	}

	if t.ledger == nil {
		t.ledger = map[string]string{}
	}

	for _, m := range t.migrations {
		t.byVersion[m.Version] = m
	}

	return t
}

// Build reads the migration source and combines it with ledger.
func Build(source fs.FS, ledger map[string]string, permissive bool) (*Tracker, error) {
	migrations, err := migration.LoadFromFS(source)
	if err != nil {
		return nil, fmt.Errorf("loading migrations: %w", err)
	}

	return New(migrations, ledger, permissive), nil
}

// Migrations returns every known migration in ascending order.
func (t *Tracker) Migrations() []migration.Migration {
	return slices.Clone(t.migrations)
}

// Ledger returns a copy of the applied version -> hash mapping.
func (t *Tracker) Ledger() map[string]string {
	return maps.Clone(t.ledger)
}

// Permissive reports whether gaps are tolerated.
func (t *Tracker) Permissive() bool {
	return t.permissive
}

// Lookup returns the migration with the given version.
func (t *Tracker) Lookup(version string) (migration.Migration, bool) {
	m, ok := t.byVersion[version]

	return m, ok
}

// Version is the greatest applied version, or InitialVersion when nothing is applied.
func (t *Tracker) Version() string {
	version := InitialVersion
	first := true

	for key := range t.ledger {
		if first || key > version {
			version = key
			first = false
		}
	}

	return version
}

// LatestVersion is the greatest version in the source, or InitialVersion.
func (t *Tracker) LatestVersion() string {
	if len(t.migrations) == 0 {
		return InitialVersion
	}

	return t.migrations[len(t.migrations)-1].Version
}

// Unexecuted returns migrations missing from the ledger in ascending order.
func (t *Tracker) Unexecuted() []migration.Migration {
	var out []migration.Migration

	for _, m := range t.migrations {
		if _, ok := t.ledger[m.Version]; !ok {
			out = append(out, m)
		}
	}

	return out
}

// Executed returns migrations present in the ledger in descending order.
func (t *Tracker) Executed() []migration.Migration {
	var out []migration.Migration

	for i := len(t.migrations) - 1; i >= 0; i-- {
		m := t.migrations[i]
		if _, ok := t.ledger[m.Version]; ok {
			out = append(out, m)
		}
	}

	return out
}

// InvalidMigrations returns applied migrations whose recorded hash differs
// from the source, in ascending order.
func (t *Tracker) InvalidMigrations() []migration.Migration {
	var out []migration.Migration

	for _, m := range t.migrations {
		if hash, ok := t.ledger[m.Version]; ok && hash != m.Hash {
			out = append(out, m)
		}
	}

	return out
}

// Gaps returns unapplied migrations older than the current version.
func (t *Tracker) Gaps() []migration.Migration {
	if len(t.ledger) == 0 {
		return nil
	}

	latest := t.Version()

	var out []migration.Migration

	for _, m := range t.Unexecuted() {
		if m.Version < latest {
			out = append(out, m)
		}
	}

	return out
}

// Missing returns ledger versions with no migration in the source, ascending.
func (t *Tracker) Missing() []string {
	var out []string

	for key := range t.ledger {
		if _, ok := t.byVersion[key]; !ok {
			out = append(out, key)
		}
	}

	slices.Sort(out)

	return out
}

// IsHashMismatch reports whether any applied migration changed since it was recorded.
func (t *Tracker) IsHashMismatch() bool {
	return len(t.InvalidMigrations()) > 0
}

// IsMigrationGap reports whether an older migration was skipped.
func (t *Tracker) IsMigrationGap() bool {
	return len(t.Gaps()) > 0
}

// IsValidState reports whether migrations may be applied forward.
func (t *Tracker) IsValidState() bool {
	return !t.IsHashMismatch() && (t.permissive || !t.IsMigrationGap())
}

// CanGoUp reports whether the state is valid and something is pending.
func (t *Tracker) CanGoUp() bool {
	return t.IsValidState() && len(t.Unexecuted()) > 0
}

// CanGoDown reports whether the state is valid and something is applied.
func (t *Tracker) CanGoDown() bool {
	return t.IsValidState() && len(t.Unexecuted()) != len(t.migrations)
}

// LastValidMigration returns the end of the contiguous prefix of migrations
// whose ledger hash matches. The scan stops at the first missing or changed entry.
func (t *Tracker) LastValidMigration() (migration.Migration, bool) {
	var (
		last  migration.Migration
		found bool
	)

	for _, m := range t.migrations {
		hash, ok := t.ledger[m.Version]
		if !ok || hash != m.Hash {
			break
		}

		last = m
		found = true
	}

	return last, found
}

// Validate returns nil for a valid state, otherwise the reason it is invalid.
func (t *Tracker) Validate() error {
	if invalid := t.InvalidMigrations(); len(invalid) > 0 {
		return fmt.Errorf("%w: %s", ErrHashMismatch, joinVersions(invalid))
	}

	if t.permissive {
		return nil
	}

	if gaps := t.Gaps(); len(gaps) > 0 {
		return fmt.Errorf("%w: %s not applied before %s", ErrMigrationGap, joinVersions(gaps), t.Version())
	}

	return nil
}

func joinVersions(ms []migration.Migration) string {
	versions := make([]string, len(ms))
	for i, m := range ms {
		versions[i] = m.Version
	}

	return strings.Join(versions, ", ")
}
