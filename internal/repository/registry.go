// Package repository resolves a configured repository name to a concrete
// migrator.Repository implementation.
package repository

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/aqasim81/mite/internal/dialect"
	"github.com/aqasim81/mite/internal/migrator"
	"github.com/aqasim81/mite/internal/repository/postgres"
	"github.com/aqasim81/mite/internal/repository/sqlite"
)

// ErrUnknownRepository indicates a repository name with no registered factory.
var ErrUnknownRepository = errors.New("unknown repository")

// Repository is a migrator.Repository that holds connections until closed.
type Repository interface {
	migrator.Repository
	Close() error
}

// Options carries the settings shared by every repository implementation.
type Options struct {
	URL              string
	Source           fs.FS
	Table            string
	Permissive       bool
	Splitter         dialect.Splitter
	LockTimeout      time.Duration
	StatementTimeout time.Duration
	Logger           *slog.Logger
}

// Factory builds a repository from options.
type Factory func(opts Options) (Repository, error)

// Registry maps repository names to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Default returns a registry with the built-in repositories.
func Default() *Registry {
	r := NewRegistry()
	r.Register("postgres", newPostgres)
	r.Register("sqlite", newSQLite)

	return r
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, f Factory) {
	r.factories[normalize(name)] = f
}

// Names lists the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// Open builds the repository registered as name.
func (r *Registry) Open(name string, opts Options) (Repository, error) {
	f, ok := r.factories[normalize(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownRepository, name, strings.Join(r.Names(), ", "))
	}

	repo, err := f(opts)
	if err != nil {
		return nil, fmt.Errorf("opening %s repository: %w", normalize(name), err)
	}

	return repo, nil
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func newPostgres(opts Options) (Repository, error) {
	repo, err := postgres.New(postgres.Config{
		URL:              opts.URL,
		Source:           opts.Source,
		Table:            opts.Table,
		Permissive:       opts.Permissive,
		Splitter:         opts.Splitter,
		LockTimeout:      opts.LockTimeout,
		StatementTimeout: opts.StatementTimeout,
		Logger:           opts.Logger,
	})
	if err != nil {
		return nil, err
	}

	return repo, nil
}

func newSQLite(opts Options) (Repository, error) {
	repo, err := sqlite.New(sqlite.Config{
		Path:       opts.URL,
		Source:     opts.Source,
		Table:      opts.Table,
		Permissive: opts.Permissive,
		Splitter:   opts.Splitter,
		Logger:     opts.Logger,
	})
	if err != nil {
		return nil, err
	}

	return repo, nil
}
