package tracker

import "errors"

// ErrHashMismatch indicates an applied migration changed after it was recorded.
var ErrHashMismatch = errors.New("hash mismatch between ledger and migration source")

// ErrMigrationGap indicates an older migration was never applied although a newer one was.
var ErrMigrationGap = errors.New("migration gap in ledger")
