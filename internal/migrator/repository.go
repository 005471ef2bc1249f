package migrator

import (
	"context"

	"github.com/aqasim81/mite/internal/migration"
	"github.com/aqasim81/mite/internal/tracker"
)

// Repository is the database collaborator driven by the Migrator. Every call
// that changes the ledger returns a freshly built tracker snapshot.
type Repository interface {
	// Init creates the ledger table and returns a fresh tracker.
	Init(ctx context.Context) (*tracker.Tracker, error)
	// Create reads the ledger and the migration source into a tracker.
	Create(ctx context.Context) (*tracker.Tracker, error)
	// ExecuteUp runs the up script and records the ledger row in one transaction.
	ExecuteUp(ctx context.Context, m migration.Migration) (*tracker.Tracker, error)
	// ExecuteDown runs the down script and removes the ledger row in one transaction.
	ExecuteDown(ctx context.Context, m migration.Migration) (*tracker.Tracker, error)
	// ExecuteScript runs a script in one transaction without touching the ledger.
	ExecuteScript(ctx context.Context, script string) error

	DatabaseExists(ctx context.Context) (bool, error)
	CreateDatabaseIfNotExists(ctx context.Context) error
	DropDatabase(ctx context.Context) error

	MigrationTableExists(ctx context.Context) (bool, error)
	DropMigrationTable(ctx context.Context) error

	// CheckConnection probes connectivity; failures are reported as false.
	CheckConnection(ctx context.Context) bool
	// GenerateSQLScript dumps the schema, and the data when includeData is set.
	GenerateSQLScript(ctx context.Context, includeData bool) (string, error)

	// Database returns the name of the active database.
	Database() string
	// SetDatabase switches the active database.
	SetDatabase(name string)
}

// Releaser releases a lock taken by a Locker.
type Releaser interface {
	Release(ctx context.Context) error
}

// Locker is implemented by repositories that can hold an exclusive migration
// lock. Mutating operations take it when available and fail if another
// process holds it.
type Locker interface {
	TryLock(ctx context.Context) (Releaser, error)
}

// Recorder is implemented by repositories that can mark a migration as
// applied without executing it.
type Recorder interface {
	RecordMigration(ctx context.Context, m migration.Migration) (*tracker.Tracker, error)
}
