package migrator

import (
	"errors"
	"fmt"

	"github.com/aqasim81/mite/internal/migration"
)

// ErrInvalidState indicates an operation that requires a valid ledger was
// attempted while the ledger has a gap or a hash mismatch.
var ErrInvalidState = errors.New("migration state is not valid")

// ErrMigrationNotFound indicates the ledger references a version missing from the source.
var ErrMigrationNotFound = errors.New("migration not found in source")

// ErrVerifyActiveDatabase indicates the scratch database used by Verify is the active database.
var ErrVerifyActiveDatabase = errors.New("verify database must differ from the active database")

// ErrRecordUnsupported indicates the repository cannot record a migration without executing it.
var ErrRecordUnsupported = errors.New("repository does not support recording migrations")

// MigrationError is returned when a migration script fails. The transaction
// was rolled back, so the ledger holds no row for the failed migration.
type MigrationError struct {
	Migration migration.Migration
	Direction migration.Direction
	Err       error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration %s (%s) failed: %v", e.Migration.Version, e.Direction, e.Err)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}

// Script returns the body that failed.
func (e *MigrationError) Script() string {
	return e.Migration.Script(e.Direction)
}
