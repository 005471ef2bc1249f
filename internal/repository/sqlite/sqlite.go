// Package sqlite implements the migration repository for SQLite database files
// using the pure-Go modernc.org/sqlite driver.
//
// A database is a file; its name is the file name without extension. Switching
// database with SetDatabase selects a sibling file in the same directory.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/aqasim81/mite/internal/dialect"
	"github.com/aqasim81/mite/internal/migration"
	"github.com/aqasim81/mite/internal/migrator"
	"github.com/aqasim81/mite/internal/tracker"
)

// DefaultTable is the ledger table used when none is configured.
const DefaultTable = "_migrations"

// ErrInvalidPath indicates the configured database path is unusable.
var ErrInvalidPath = errors.New("invalid sqlite database path")

// Config holds what the repository needs.
type Config struct {
	// Path is the database file. A "sqlite://" or "file:" prefix is accepted.
	Path       string
	Source     fs.FS
	Table      string
	Permissive bool
	Splitter   dialect.Splitter
	Logger     *slog.Logger
}

// Repository runs migrations against SQLite database files.
type Repository struct {
	cfg    Config
	dir    string
	ext    string
	name   string
	db     *sql.DB
	table  string
	logger *slog.Logger
}

var (
	_ migrator.Repository = (*Repository)(nil)
	_ migrator.Recorder   = (*Repository)(nil)
)

// New validates cfg and returns a repository. The file is not opened yet.
func New(cfg Config) (*Repository, error) {
	path := strings.TrimPrefix(strings.TrimPrefix(cfg.Path, "sqlite://"), "file:")
	if path == "" || path == ":memory:" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, cfg.Path)
	}

	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}

	if cfg.Splitter == nil {
		cfg.Splitter = dialect.Semicolon{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := filepath.Base(path)
	ext := filepath.Ext(base)

	return &Repository{
		cfg:    cfg,
		dir:    filepath.Dir(path),
		ext:    ext,
		name:   strings.TrimSuffix(base, ext),
		table:  quoteIdent(cfg.Table),
		logger: logger,
	}, nil
}

// Path returns the file backing the active database.
func (r *Repository) Path() string {
	return filepath.Join(r.dir, r.name+r.ext)
}

// Database returns the active database name.
func (r *Repository) Database() string {
	return r.name
}

// SetDatabase switches to the sibling file called name.
func (r *Repository) SetDatabase(name string) {
	if name == r.name {
		return
	}

	r.closeDB()
	r.name = name
}

// Close closes the open database handle, if any.
func (r *Repository) Close() error {
	if r.db == nil {
		return nil
	}

	err := r.db.Close()
	r.db = nil

	if err != nil {
		return fmt.Errorf("closing sqlite database %s: %w", r.Path(), err)
	}

	return nil
}

func (r *Repository) closeDB() {
	if err := r.Close(); err != nil {
		r.logger.Debug("closing sqlite database", "error", err)
	}
}

// open returns the handle for the active file, creating the file if needed.
func (r *Repository) open(ctx context.Context) (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}

	db, err := sql.Open("sqlite", r.Path()+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database %s: %w", r.Path(), err)
	}

	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			r.logger.Debug("closing sqlite database", "path", r.Path(), "error", closeErr)
		}

		return nil, fmt.Errorf("opening sqlite database %s: %w", r.Path(), err)
	}

	r.db = db

	return db, nil
}

func (r *Repository) fileExists() (bool, error) {
	_, err := os.Stat(r.Path())
	if err == nil {
		return true, nil
	}

	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	return false, fmt.Errorf("checking %s: %w", r.Path(), err)
}

// Init creates the ledger table and returns a fresh tracker.
func (r *Repository) Init(ctx context.Context) (*tracker.Tracker, error) {
	db, err := r.open(ctx)
	if err != nil {
		return nil, err
	}

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    "key" TEXT PRIMARY KEY,
    hash  TEXT NOT NULL
)`, r.table)

	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("creating ledger table %s: %w", r.cfg.Table, err)
	}

	return r.Create(ctx)
}

// Create reads the ledger and the migration source into a tracker. A missing
// file or ledger table reads as an empty ledger; the file is not created.
func (r *Repository) Create(ctx context.Context) (*tracker.Tracker, error) {
	ledger, err := r.readLedger(ctx)
	if err != nil {
		return nil, err
	}

	return tracker.Build(r.cfg.Source, ledger, r.cfg.Permissive)
}

func (r *Repository) readLedger(ctx context.Context) (map[string]string, error) {
	exists, err := r.MigrationTableExists(ctx)
	if err != nil || !exists {
		return map[string]string{}, err
	}

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`SELECT "key", hash FROM %s`, r.table))
	if err != nil {
		return nil, fmt.Errorf("querying ledger: %w", err)
	}
	defer rows.Close()

	ledger := make(map[string]string)

	for rows.Next() {
		var key, hash string
		if err := rows.Scan(&key, &hash); err != nil {
			return nil, fmt.Errorf("scanning ledger row: %w", err)
		}

		ledger[key] = hash
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading ledger: %w", err)
	}

	return ledger, nil
}

// ExecuteUp runs the up script and inserts the ledger row in one transaction.
func (r *Repository) ExecuteUp(ctx context.Context, m migration.Migration) (*tracker.Tracker, error) {
	insert := fmt.Sprintf(`INSERT INTO %s ("key", hash) VALUES (?, ?)`, r.table)

	err := r.execute(ctx, m.UpSQL, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, insert, m.Version, m.Hash); err != nil {
			return fmt.Errorf("recording %s in ledger: %w", m.Version, err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return r.Create(ctx)
}

// ExecuteDown runs the down script and deletes the ledger row in one transaction.
func (r *Repository) ExecuteDown(ctx context.Context, m migration.Migration) (*tracker.Tracker, error) {
	remove := fmt.Sprintf(`DELETE FROM %s WHERE "key" = ?`, r.table)

	err := r.execute(ctx, m.DownSQL, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, remove, m.Version); err != nil {
			return fmt.Errorf("removing %s from ledger: %w", m.Version, err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return r.Create(ctx)
}

// ExecuteScript runs script in one transaction without touching the ledger.
func (r *Repository) ExecuteScript(ctx context.Context, script string) error {
	return r.execute(ctx, script, nil)
}

// RecordMigration marks m as applied without running it.
func (r *Repository) RecordMigration(ctx context.Context, m migration.Migration) (*tracker.Tracker, error) {
	db, err := r.open(ctx)
	if err != nil {
		return nil, err
	}

	upsert := fmt.Sprintf(`INSERT INTO %s ("key", hash) VALUES (?, ?)
ON CONFLICT ("key") DO UPDATE SET hash = excluded.hash`, r.table)

	if _, err := db.ExecContext(ctx, upsert, m.Version, m.Hash); err != nil {
		return nil, fmt.Errorf("recording %s in ledger: %w", m.Version, err)
	}

	return r.Create(ctx)
}

func (r *Repository) execute(ctx context.Context, script string, record func(tx *sql.Tx) error) error {
	statements, err := r.cfg.Splitter.Split(script)
	if err != nil {
		return err
	}

	db, err := r.open(ctx)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer tx.Rollback() //nolint:errcheck // rollback on committed tx returns ErrTxDone

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing statement %d of %d: %w", i+1, len(statements), err)
		}
	}

	if record != nil {
		if err := record(tx); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// DatabaseExists reports whether the active file exists.
func (r *Repository) DatabaseExists(_ context.Context) (bool, error) {
	return r.fileExists()
}

// CreateDatabaseIfNotExists creates the active file and its directory.
func (r *Repository) CreateDatabaseIfNotExists(ctx context.Context) error {
	exists, err := r.fileExists()
	if err != nil || exists {
		return err
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", r.dir, err)
	}

	r.logger.Info("creating database", "path", r.Path())

	_, err = r.open(ctx)

	return err
}

// DropDatabase removes the active file and its journal files.
func (r *Repository) DropDatabase(_ context.Context) error {
	r.closeDB()

	for _, suffix := range []string{"", "-journal", "-wal", "-shm"} {
		if err := os.Remove(r.Path() + suffix); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("dropping database %s: %w", r.name, err)
		}
	}

	return nil
}

// MigrationTableExists reports whether the ledger table exists. A missing
// file has no ledger.
func (r *Repository) MigrationTableExists(ctx context.Context) (bool, error) {
	exists, err := r.fileExists()
	if err != nil || !exists {
		return false, err
	}

	db, err := r.open(ctx)
	if err != nil {
		return false, err
	}

	var count int

	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, r.cfg.Table).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking ledger table %s: %w", r.cfg.Table, err)
	}

	return count > 0, nil
}

// DropMigrationTable drops the ledger table.
func (r *Repository) DropMigrationTable(ctx context.Context) error {
	db, err := r.open(ctx)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, "DROP TABLE IF EXISTS "+r.table); err != nil {
		return fmt.Errorf("dropping ledger table %s: %w", r.cfg.Table, err)
	}

	return nil
}

// CheckConnection reports whether the active file exists and can be opened.
// A missing file is never created.
func (r *Repository) CheckConnection(ctx context.Context) bool {
	exists, err := r.fileExists()
	if err != nil || !exists {
		r.logger.Debug("connection check failed", "path", r.Path(), "error", err)

		return false
	}

	db, err := r.open(ctx)
	if err != nil {
		r.logger.Debug("connection check failed", "error", err)

		return false
	}

	return db.PingContext(ctx) == nil
}

// quoteIdent quotes a SQLite identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
