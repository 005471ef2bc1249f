package tracker

import (
	"slices"
	"strings"
)

// State classifies one migration against the ledger.
type State string

// Migration states reported by Status.
const (
	StateApplied  State = "applied"
	StatePending  State = "pending"
	StateGap      State = "gap"
	StateMismatch State = "mismatch"
	StateMissing  State = "missing"
)

// Entry is one row of Status.
type Entry struct {
	Version string
	State   State
	// Hash is the source hash, or the ledger hash for a missing migration.
	Hash string
}

// Status lists every migration and every ledger version without a source
// file, ascending by version.
func (t *Tracker) Status() []Entry {
	current := t.Version()
	entries := make([]Entry, 0, len(t.migrations)+len(t.ledger))

	for _, m := range t.migrations {
		e := Entry{Version: m.Version, Hash: m.Hash}

		hash, applied := t.ledger[m.Version]

		switch {
		case applied && hash != m.Hash:
			e.State = StateMismatch
		case applied:
			e.State = StateApplied
		case len(t.ledger) > 0 && m.Version < current:
			e.State = StateGap
		default:
			e.State = StatePending
		}

		entries = append(entries, e)
	}

	for _, version := range t.Missing() {
		entries = append(entries, Entry{Version: version, State: StateMissing, Hash: t.ledger[version]})
	}

	slices.SortStableFunc(entries, func(a, b Entry) int {
		return strings.Compare(a.Version, b.Version)
	})

	return entries
}
