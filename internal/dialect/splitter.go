// Package dialect provides the statement splitters used by repositories to
// break a migration script into individually executed statements.
package dialect

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/aqasim81/mite/internal/parser"
)

// ErrUnknownSplitter indicates a splitter name with no implementation.
var ErrUnknownSplitter = errors.New("unknown statement splitter")

// Splitter breaks a script into statements.
type Splitter interface {
	Split(script string) ([]string, error)
}

// SplitterFunc adapts a function to Splitter.
type SplitterFunc func(script string) ([]string, error)

// Split calls f.
func (f SplitterFunc) Split(script string) ([]string, error) {
	return f(script)
}

var (
	goBatchPattern   = regexp.MustCompile(`(?im)^[ \t]*GO[ \t]*;?[ \t]*\r?$`) //nolint:gochecknoglobals // compiled once
	semicolonPattern = regexp.MustCompile(`(?m);[ \t]*\r?$`)                  //nolint:gochecknoglobals // compiled once
)

// GoBatch splits on lines consisting solely of GO, as SQL Server tools do.
type GoBatch struct{}

// Split implements Splitter.
func (GoBatch) Split(script string) ([]string, error) {
	return nonEmpty(goBatchPattern.Split(script, -1)), nil
}

// Semicolon splits on semicolons that end a line. Semicolons elsewhere on a
// line stay part of the statement.
type Semicolon struct{}

// Split implements Splitter.
func (Semicolon) Split(script string) ([]string, error) {
	return nonEmpty(semicolonPattern.Split(script, -1)), nil
}

// Postgres splits with the PostgreSQL scanner.
type Postgres struct{}

// Split implements Splitter.
func (Postgres) Split(script string) ([]string, error) {
	stmts, err := parser.Split(script)
	if err != nil {
		return nil, fmt.Errorf("postgres splitter: %w", err)
	}

	return stmts, nil
}

// splitters maps configuration names to implementations.
var splitters = map[string]Splitter{ //nolint:gochecknoglobals // immutable lookup table
	"go":        GoBatch{},
	"semicolon": Semicolon{},
	"postgres":  Postgres{},
}

// Lookup resolves a splitter by configuration name.
func Lookup(name string) (Splitter, error) {
	s, ok := splitters[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownSplitter, name, strings.Join(Names(), ", "))
	}

	return s, nil
}

// Names lists the registered splitter names in sorted order.
func Names() []string {
	names := make([]string, 0, len(splitters))
	for name := range splitters {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func nonEmpty(parts []string) []string {
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}

	return out
}
