// Package migrator drives a Repository through step, range and resolution
// operations using the tracker snapshot to decide what to run.
package migrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aqasim81/mite/internal/migration"
	"github.com/aqasim81/mite/internal/tracker"
)

// DefaultVerifyDatabase is the scratch database used by Verify.
const DefaultVerifyDatabase = "MiteVerify"

// Progress status constants reported via ProgressEvent.
const (
	StatusStarting  = "starting"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ProgressEvent is emitted for each migration script executed.
type ProgressEvent struct {
	Migration *migration.Migration
	Direction migration.Direction
	Status    string
	Duration  time.Duration
	Error     error
}

// Migrator applies and reverts migrations. It holds the current tracker
// snapshot and swaps it for the one returned by the repository after every change.
type Migrator struct {
	repo           Repository
	tracker        *tracker.Tracker
	logger         *slog.Logger
	onProgress     func(ProgressEvent)
	verifyDatabase string
	baseScript     string
}

// Option configures a Migrator.
type Option func(*Migrator)

// WithLogger sets the logger. A nil logger means slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Migrator) { m.logger = l }
}

// WithProgressCallback sets a function called for each migration executed.
func WithProgressCallback(fn func(ProgressEvent)) Option {
	return func(m *Migrator) { m.onProgress = fn }
}

// WithVerifyDatabase overrides the scratch database used by Verify.
func WithVerifyDatabase(name string) Option {
	return func(m *Migrator) { m.verifyDatabase = name }
}

// WithBaseScript sets a script run after the ledger is created by FromScratch
// and Verify, before any migration. It is never recorded in the ledger.
func WithBaseScript(script string) Option {
	return func(m *Migrator) { m.baseScript = script }
}

// New builds a Migrator and reads the initial tracker from repo.
func New(ctx context.Context, repo Repository, opts ...Option) (*Migrator, error) {
	m := &Migrator{
		repo:           repo,
		verifyDatabase: DefaultVerifyDatabase,
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.logger == nil {
		m.logger = slog.Default()
	}

	t, err := repo.Create(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading migration state: %w", err)
	}

	m.tracker = t

	return m, nil
}

// Tracker returns the current snapshot.
func (m *Migrator) Tracker() *tracker.Tracker {
	return m.tracker
}

// Refresh rebuilds the snapshot from the repository.
func (m *Migrator) Refresh(ctx context.Context) error {
	t, err := m.repo.Create(ctx)
	if err != nil {
		return fmt.Errorf("reading migration state: %w", err)
	}

	m.tracker = t

	return nil
}

// StepUp applies the lowest pending migration.
func (m *Migrator) StepUp(ctx context.Context) (Result, error) {
	if err := m.requireValid("step up"); err != nil {
		return Result{}, err
	}

	from := m.tracker.Version()

	pending := m.tracker.Unexecuted()
	if len(pending) == 0 {
		return newResult(from, from), nil
	}

	next := pending[0]

	err := m.withLock(ctx, func() error {
		if err := m.ensureLedger(ctx); err != nil {
			return err
		}

		return m.apply(ctx, next, migration.Up)
	})
	if err != nil {
		return Result{}, err
	}

	return newResult(from, next.Version), nil
}

// StepDown reverts the migration at the current version.
func (m *Migrator) StepDown(ctx context.Context) (Result, error) {
	if err := m.requireValid("step down"); err != nil {
		return Result{}, err
	}

	from := m.tracker.Version()
	if from == tracker.InitialVersion {
		return newResult(from, from), nil
	}

	current, ok := m.tracker.Lookup(from)
	if !ok {
		return Result{}, fmt.Errorf("stepping down from %s: %w", from, ErrMigrationNotFound)
	}

	to := tracker.InitialVersion

	for _, executed := range m.tracker.Executed() {
		if executed.Version < from {
			to = executed.Version

			break
		}
	}

	err := m.withLock(ctx, func() error {
		return m.apply(ctx, current, migration.Down)
	})
	if err != nil {
		return Result{}, err
	}

	return newResult(from, to), nil
}

// MigrateTo moves the database to destination. Moving up requires a valid
// state; moving down does not.
func (m *Migrator) MigrateTo(ctx context.Context, destination string) (Result, error) {
	from := m.tracker.Version()

	if from < destination {
		if err := m.tracker.Validate(); err != nil {
			return Result{}, fmt.Errorf("%w: cannot migrate up to %s, resolve the ledger and run update: %w",
				ErrInvalidState, destination, err)
		}
	}

	err := m.withLock(ctx, func() error {
		if err := m.ensureLedger(ctx); err != nil {
			return err
		}

		return m.migrateTo(ctx, destination)
	})
	if err != nil {
		return Result{}, err
	}

	return newResult(from, m.tracker.Version()), nil
}

// Update creates the database when missing and applies every pending migration.
func (m *Migrator) Update(ctx context.Context) (Result, error) {
	if err := m.requireValid("update"); err != nil {
		return Result{}, err
	}

	from := m.tracker.Version()

	if err := m.repo.CreateDatabaseIfNotExists(ctx); err != nil {
		return Result{}, fmt.Errorf("creating database: %w", err)
	}

	err := m.withLock(ctx, func() error {
		if err := m.ensureLedger(ctx); err != nil {
			return err
		}

		return m.applyPending(ctx)
	})
	if err != nil {
		return Result{}, err
	}

	return newResult(from, m.tracker.Version()), nil
}

// DirtyResolution applies every pending migration regardless of gaps or mismatches.
func (m *Migrator) DirtyResolution(ctx context.Context) (Result, error) {
	from := m.tracker.Version()

	err := m.withLock(ctx, func() error {
		if err := m.ensureLedger(ctx); err != nil {
			return err
		}

		return m.applyPending(ctx)
	})
	if err != nil {
		return Result{}, err
	}

	return newResult(from, m.tracker.Version()), nil
}

// SafeResolution reverts everything after the last valid migration and then
// applies every pending migration from there.
func (m *Migrator) SafeResolution(ctx context.Context) (Result, error) {
	from := m.tracker.Version()

	target := tracker.InitialVersion
	if last, ok := m.tracker.LastValidMigration(); ok {
		target = last.Version
	}

	if orphans := m.orphansAbove(target); len(orphans) > 0 {
		return Result{}, fmt.Errorf("resolving to %s: ledger versions %s have no source file: %w",
			target, strings.Join(orphans, ", "), ErrMigrationNotFound)
	}

	m.logger.Info("resolving to last valid migration", "version", target)

	err := m.withLock(ctx, func() error {
		if err := m.ensureLedger(ctx); err != nil {
			return err
		}

		if err := m.revertAbove(ctx, target); err != nil {
			return err
		}

		if err := m.Refresh(ctx); err != nil {
			return err
		}

		if err := m.requireValid("update after resolution"); err != nil {
			return err
		}

		return m.applyPending(ctx)
	})
	if err != nil {
		return Result{}, err
	}

	return newResult(from, m.tracker.Version()), nil
}

// FromScratch drops and recreates the database, then applies every migration.
func (m *Migrator) FromScratch(ctx context.Context) (Result, error) {
	from := m.tracker.Version()

	t, err := m.recreate(ctx)
	if err != nil {
		return Result{}, err
	}

	m.tracker = t

	if err := m.applyPending(ctx); err != nil {
		return Result{}, err
	}

	return newResult(from, m.tracker.Version()), nil
}

// Verify applies every migration up and then down against a scratch
// database. The active database is restored on every exit path.
func (m *Migrator) Verify(ctx context.Context) (Result, error) {
	original := m.repo.Database()
	if m.verifyDatabase == original {
		return Result{}, fmt.Errorf("%w: %s", ErrVerifyActiveDatabase, original)
	}

	defer m.repo.SetDatabase(original)

	m.repo.SetDatabase(m.verifyDatabase)
	m.logger.Info("verifying migrations", "database", m.verifyDatabase)

	if _, err := m.recreate(ctx); err != nil {
		return Result{}, err
	}

	migrations := m.tracker.Migrations()

	for _, mig := range migrations {
		if _, err := m.run(ctx, mig, migration.Up); err != nil {
			return Result{}, err
		}
	}

	for _, mig := range migration.Reverse(migrations) {
		if _, err := m.run(ctx, mig, migration.Down); err != nil {
			return Result{}, err
		}
	}

	return Result{
		Message: fmt.Sprintf("Verified %d migration(s) up and down against %s", len(migrations), m.verifyDatabase),
		From:    tracker.InitialVersion,
		To:      tracker.InitialVersion,
	}, nil
}

// Init creates the database when missing and the ledger table when missing.
func (m *Migrator) Init(ctx context.Context) error {
	if err := m.repo.CreateDatabaseIfNotExists(ctx); err != nil {
		return fmt.Errorf("creating database: %w", err)
	}

	return m.withLock(ctx, func() error {
		return m.ensureLedger(ctx)
	})
}

// DropLedger removes the ledger table. Applied schema changes are kept.
func (m *Migrator) DropLedger(ctx context.Context) error {
	err := m.withLock(ctx, func() error {
		if err := m.repo.DropMigrationTable(ctx); err != nil {
			return fmt.Errorf("dropping ledger: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	return m.Refresh(ctx)
}

// Baseline records mig as applied without executing it.
func (m *Migrator) Baseline(ctx context.Context, mig migration.Migration) (Result, error) {
	recorder, ok := m.repo.(Recorder)
	if !ok {
		return Result{}, ErrRecordUnsupported
	}

	from := m.tracker.Version()

	err := m.withLock(ctx, func() error {
		if err := m.ensureLedger(ctx); err != nil {
			return err
		}

		t, err := recorder.RecordMigration(ctx, mig)
		if err != nil {
			return fmt.Errorf("recording baseline %s: %w", mig.Version, err)
		}

		m.tracker = t

		return nil
	})
	if err != nil {
		return Result{}, err
	}

	return newResult(from, m.tracker.Version()), nil
}

func (m *Migrator) migrateTo(ctx context.Context, destination string) error {
	if m.tracker.Version() < destination {
		for _, mig := range m.tracker.Unexecuted() {
			if mig.Version > destination {
				break
			}

			if err := m.apply(ctx, mig, migration.Up); err != nil {
				return err
			}
		}

		return nil
	}

	return m.revertAbove(ctx, destination)
}

// revertAbove reverts, newest first, every applied migration after destination.
func (m *Migrator) revertAbove(ctx context.Context, destination string) error {
	for _, mig := range m.tracker.Executed() {
		if mig.Version <= destination {
			break
		}

		if err := m.apply(ctx, mig, migration.Down); err != nil {
			return err
		}
	}

	return nil
}

// orphansAbove returns ledger versions after destination with no source migration.
func (m *Migrator) orphansAbove(destination string) []string {
	var out []string

	for _, version := range m.tracker.Missing() {
		if version > destination {
			out = append(out, version)
		}
	}

	return out
}

func (m *Migrator) applyPending(ctx context.Context) error {
	for _, mig := range m.tracker.Unexecuted() {
		if err := m.apply(ctx, mig, migration.Up); err != nil {
			return err
		}
	}

	return nil
}

// recreate drops the active database when present, creates it again with an
// empty ledger and runs the base script.
func (m *Migrator) recreate(ctx context.Context) (*tracker.Tracker, error) {
	exists, err := m.repo.DatabaseExists(ctx)
	if err != nil {
		return nil, fmt.Errorf("checking database %s: %w", m.repo.Database(), err)
	}

	if exists {
		m.logger.Info("dropping database", "database", m.repo.Database())

		if err := m.repo.DropDatabase(ctx); err != nil {
			return nil, fmt.Errorf("dropping database %s: %w", m.repo.Database(), err)
		}
	}

	if err := m.repo.CreateDatabaseIfNotExists(ctx); err != nil {
		return nil, fmt.Errorf("creating database %s: %w", m.repo.Database(), err)
	}

	t, err := m.repo.Init(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating ledger: %w", err)
	}

	if m.baseScript != "" {
		if err := m.repo.ExecuteScript(ctx, m.baseScript); err != nil {
			return nil, fmt.Errorf("executing %s: %w", migration.BaseScriptName, err)
		}
	}

	return t, nil
}

// ensureLedger creates the ledger table on first use.
func (m *Migrator) ensureLedger(ctx context.Context) error {
	exists, err := m.repo.MigrationTableExists(ctx)
	if err != nil {
		return fmt.Errorf("checking ledger table: %w", err)
	}

	if exists {
		return nil
	}

	t, err := m.repo.Init(ctx)
	if err != nil {
		return fmt.Errorf("creating ledger: %w", err)
	}

	m.tracker = t

	return nil
}

// apply runs mig and replaces the held snapshot with the rebuilt one.
func (m *Migrator) apply(ctx context.Context, mig migration.Migration, d migration.Direction) error {
	t, err := m.run(ctx, mig, d)
	if err != nil {
		return err
	}

	m.tracker = t

	return nil
}

// run executes mig in direction d and returns the repository's new snapshot.
func (m *Migrator) run(ctx context.Context, mig migration.Migration, d migration.Direction) (*tracker.Tracker, error) {
	m.fireProgress(ProgressEvent{Migration: &mig, Direction: d, Status: StatusStarting})
	m.logger.Info("executing migration", "version", mig.Version, "direction", d.String())

	start := time.Now()

	var (
		t   *tracker.Tracker
		err error
	)

	if d == migration.Up {
		t, err = m.repo.ExecuteUp(ctx, mig)
	} else {
		t, err = m.repo.ExecuteDown(ctx, mig)
	}

	duration := time.Since(start)

	if err != nil {
		migErr := &MigrationError{Migration: mig, Direction: d, Err: err}

		m.fireProgress(ProgressEvent{Migration: &mig, Direction: d, Status: StatusFailed, Duration: duration, Error: migErr})
		m.logger.Error("migration failed", "version", mig.Version, "direction", d.String(), "error", err)

		return nil, migErr
	}

	m.fireProgress(ProgressEvent{Migration: &mig, Direction: d, Status: StatusCompleted, Duration: duration})
	m.logger.Debug("ledger rebuilt", "version", t.Version())

	return t, nil
}

func (m *Migrator) requireValid(op string) error {
	if err := m.tracker.Validate(); err != nil {
		return fmt.Errorf("%w: cannot %s: %w", ErrInvalidState, op, err)
	}

	return nil
}

// withLock runs fn while holding the repository lock when the repository has one.
func (m *Migrator) withLock(ctx context.Context, fn func() error) error {
	locker, ok := m.repo.(Locker)
	if !ok {
		return fn()
	}

	lock, err := locker.TryLock(ctx)
	if err != nil {
		return fmt.Errorf("acquiring migration lock: %w", err)
	}
	defer lock.Release(ctx) //nolint:errcheck // best-effort release on return

	return fn()
}

func (m *Migrator) fireProgress(event ProgressEvent) {
	if m.onProgress != nil {
		m.onProgress(event)
	}
}
