package postgres

import "errors"

// ErrInvalidDatabaseURL indicates the provided database URL could not be parsed.
var ErrInvalidDatabaseURL = errors.New("invalid database URL")

// ErrConnectionFailed indicates a connection to the database could not be established.
var ErrConnectionFailed = errors.New("database connection failed")

// ErrLockNotAcquired indicates the advisory lock is already held by another process.
var ErrLockNotAcquired = errors.New("migration lock not acquired")

// ErrNonTransactional indicates a script that cannot run inside the migration transaction.
var ErrNonTransactional = errors.New("script cannot run inside a transaction")

// ErrDumpFailed indicates pg_dump exited with an error.
var ErrDumpFailed = errors.New("pg_dump failed")
