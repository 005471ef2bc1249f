package migrator

import "fmt"

// Result describes the outcome of a Migrator operation.
type Result struct {
	Message string
	From    string
	To      string
}

func newResult(from, to string) Result {
	if from == to {
		return Result{
			Message: fmt.Sprintf("No migrations to execute, database is at version %s", from),
			From:    from,
			To:      to,
		}
	}

	return Result{
		Message: fmt.Sprintf("Migration from %s to %s successful", from, to),
		From:    from,
		To:      to,
	}
}

// Changed reports whether the database version moved.
func (r Result) Changed() bool {
	return r.From != r.To
}

func (r Result) String() string {
	return r.Message
}
