package migration

import (
	"crypto/sha256"
	"encoding/hex"
)

// Migration is a single versioned schema change. Values are never modified
// after construction; ordering is by Version alone.
type Migration struct {
	Version  string // file name without extension, compared as a plain string
	UpSQL    string // body between the up and down markers, or the whole file
	DownSQL  string // body after the down marker (empty without markers)
	Hash     string // SHA-256 hex digest of UpSQL+DownSQL
	FilePath string // source file, empty for migrations built in memory
}

// New builds a Migration and computes its hash.
func New(version, upSQL, downSQL string) Migration {
	return Migration{
		Version: version,
		UpSQL:   upSQL,
		DownSQL: downSQL,
		Hash:    ComputeHash(upSQL, downSQL),
	}
}

// ComputeHash returns the SHA-256 hex digest of the concatenated up and down scripts.
func ComputeHash(upSQL, downSQL string) string {
	h := sha256.Sum256([]byte(upSQL + downSQL))

	return hex.EncodeToString(h[:])
}

// Script returns the body executed in the given direction.
func (m Migration) Script(d Direction) string {
	if d == Down {
		return m.DownSQL
	}

	return m.UpSQL
}

// Direction is the way a migration is executed.
type Direction int

const (
	Up Direction = iota
	Down
)

func (d Direction) String() string {
	if d == Down {
		return "down"
	}

	return "up"
}
