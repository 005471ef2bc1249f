package migration

import "errors"

// ErrDuplicateVersion indicates two source files resolve to the same version.
var ErrDuplicateVersion = errors.New("duplicate migration version")

// ErrVersionNotGreatest indicates a new migration would not sort after the existing ones.
var ErrVersionNotGreatest = errors.New("new migration version must sort after every existing version")

// ErrInvalidVersion indicates a version that the reader would ignore or cannot use as a file name.
var ErrInvalidVersion = errors.New("invalid migration version")
