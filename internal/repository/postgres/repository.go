// Package postgres implements the migration repository for PostgreSQL on pgx.
package postgres

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aqasim81/mite/internal/dialect"
	"github.com/aqasim81/mite/internal/migration"
	"github.com/aqasim81/mite/internal/migrator"
	"github.com/aqasim81/mite/internal/parser"
	"github.com/aqasim81/mite/internal/tracker"
)

// Config holds what the repository needs; the ledger table name is passed
// explicitly so several ledgers can coexist.
type Config struct {
	URL              string
	Source           fs.FS
	Table            string
	Permissive       bool
	Splitter         dialect.Splitter
	LockTimeout      time.Duration
	StatementTimeout time.Duration
	Logger           *slog.Logger
}

// Repository runs migrations against a PostgreSQL database. The active
// database can be switched with SetDatabase; the pool follows it.
type Repository struct {
	cfg      Config
	base     *pgxpool.Config
	database string
	pool     *pgxpool.Pool
	ledger   ledgerSQL
	logger   *slog.Logger
	pgDump   string
}

var (
	_ migrator.Repository = (*Repository)(nil)
	_ migrator.Locker     = (*Repository)(nil)
	_ migrator.Recorder   = (*Repository)(nil)
)

// New validates cfg and returns a repository. No connection is opened yet.
func New(cfg Config) (*Repository, error) {
	base, err := parseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}

	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}

	if cfg.Splitter == nil {
		cfg.Splitter = dialect.Postgres{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Repository{
		cfg:      cfg,
		base:     base,
		database: base.ConnConfig.Database,
		ledger:   newLedgerSQL(cfg.Table),
		logger:   logger,
		pgDump:   "pg_dump",
	}, nil
}

// Database returns the active database name.
func (r *Repository) Database() string {
	return r.database
}

// SetDatabase switches the active database, closing the current pool.
func (r *Repository) SetDatabase(name string) {
	if name == r.database {
		return
	}

	r.closePool()
	r.database = name
}

// Close releases the pool.
func (r *Repository) Close() error {
	r.closePool()

	return nil
}

func (r *Repository) closePool() {
	if r.pool != nil {
		r.pool.Close()
		r.pool = nil
	}
}

func (r *Repository) getPool(ctx context.Context) (*pgxpool.Pool, error) {
	if r.pool != nil {
		return r.pool, nil
	}

	pool, err := newPool(ctx, r.base, r.database)
	if err != nil {
		return nil, err
	}

	r.pool = pool

	return pool, nil
}

// Init creates the ledger table and returns a fresh tracker.
func (r *Repository) Init(ctx context.Context) (*tracker.Tracker, error) {
	pool, err := r.getPool(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := pool.Exec(ctx, r.ledger.create); err != nil {
		return nil, fmt.Errorf("creating ledger table %s: %w", r.ledger.name, err)
	}

	return r.Create(ctx)
}

// Create reads the ledger and the migration source into a tracker. A missing
// database or ledger table reads as an empty ledger.
func (r *Repository) Create(ctx context.Context) (*tracker.Tracker, error) {
	ledger, err := r.readLedger(ctx)
	if err != nil {
		return nil, err
	}

	return tracker.Build(r.cfg.Source, ledger, r.cfg.Permissive)
}

func (r *Repository) readLedger(ctx context.Context) (map[string]string, error) {
	exists, err := r.MigrationTableExists(ctx)
	if err != nil {
		if isMissingDatabase(err) {
			return map[string]string{}, nil
		}

		return nil, err
	}

	if !exists {
		return map[string]string{}, nil
	}

	rows, err := r.pool.Query(ctx, r.ledger.read)
	if err != nil {
		return nil, fmt.Errorf("querying ledger: %w", err)
	}
	defer rows.Close()

	type entry struct {
		key  string
		hash string
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entry, error) {
		var e entry
		if scanErr := row.Scan(&e.key, &e.hash); scanErr != nil {
			return entry{}, fmt.Errorf("scanning ledger row: %w", scanErr)
		}

		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("reading ledger: %w", err)
	}

	ledger := make(map[string]string, len(entries))
	for _, e := range entries {
		ledger[e.key] = e.hash
	}

	return ledger, nil
}

// ExecuteUp runs the up script and inserts the ledger row in one transaction.
func (r *Repository) ExecuteUp(ctx context.Context, m migration.Migration) (*tracker.Tracker, error) {
	err := r.execute(ctx, m.UpSQL, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, r.ledger.insert, m.Version, m.Hash); err != nil {
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
	err := r.execute(ctx, m.DownSQL, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, r.ledger.delete, m.Version); err != nil {
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
	pool, err := r.getPool(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := pool.Exec(ctx, r.ledger.upsert, m.Version, m.Hash); err != nil {
		return nil, fmt.Errorf("recording %s in ledger: %w", m.Version, err)
	}

	return r.Create(ctx)
}

// execute splits script and runs every statement, then record, in a single
// transaction with the configured timeouts.
func (r *Repository) execute(ctx context.Context, script string, record func(tx pgx.Tx) error) error {
	statements, err := r.cfg.Splitter.Split(script)
	if err != nil {
		return err
	}

	if err := checkTransactional(statements); err != nil {
		return err
	}

	pool, err := r.getPool(ctx)
	if err != nil {
		return err
	}

	return execInTransaction(ctx, pool, func(tx pgx.Tx) error {
		if err := setLocalTimeouts(ctx, tx, r.cfg.LockTimeout, r.cfg.StatementTimeout); err != nil {
			return err
		}

		for i, stmt := range statements {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("executing statement %d of %d: %w", i+1, len(statements), err)
			}
		}

		if record != nil {
			return record(tx)
		}

		return nil
	})
}

// checkTransactional rejects statements that cannot run inside the migration
// transaction. Each split statement is parsed on its own so batch separators
// never reach the parser.
func checkTransactional(statements []string) error {
	for i, stmt := range statements {
		concurrent, err := parser.ContainsConcurrentIndex(stmt)
		if err != nil {
			return fmt.Errorf("statement %d of %d: %w", i+1, len(statements), err)
		}

		if concurrent {
			return fmt.Errorf("%w: CREATE INDEX CONCURRENTLY in statement %d", ErrNonTransactional, i+1)
		}
	}

	return nil
}

// DatabaseExists reports whether the active database exists.
func (r *Repository) DatabaseExists(ctx context.Context) (bool, error) {
	conn, err := connectMaintenance(ctx, r.base)
	if err != nil {
		return false, err
	}
	defer conn.Close(ctx)

	var exists bool

	err = conn.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)`, r.database).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking database %s: %w", r.database, err)
	}

	return exists, nil
}

// CreateDatabaseIfNotExists creates the active database when it is missing.
func (r *Repository) CreateDatabaseIfNotExists(ctx context.Context) error {
	exists, err := r.DatabaseExists(ctx)
	if err != nil || exists {
		return err
	}

	conn, err := connectMaintenance(ctx, r.base)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	r.logger.Info("creating database", "database", r.database)

	if _, err := conn.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{r.database}.Sanitize()); err != nil {
		return fmt.Errorf("creating database %s: %w", r.database, err)
	}

	return nil
}

// DropDatabase drops the active database, terminating other sessions.
func (r *Repository) DropDatabase(ctx context.Context) error {
	r.closePool()

	conn, err := connectMaintenance(ctx, r.base)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, "DROP DATABASE IF EXISTS "+pgx.Identifier{r.database}.Sanitize()+" WITH (FORCE)"); err != nil {
		return fmt.Errorf("dropping database %s: %w", r.database, err)
	}

	return nil
}

// MigrationTableExists reports whether the ledger table exists.
func (r *Repository) MigrationTableExists(ctx context.Context) (bool, error) {
	pool, err := r.getPool(ctx)
	if err != nil {
		return false, err
	}

	var exists bool
	if err := pool.QueryRow(ctx, r.ledger.exists, r.ledger.regclass()).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking ledger table %s: %w", r.ledger.name, err)
	}

	return exists, nil
}

// DropMigrationTable drops the ledger table.
func (r *Repository) DropMigrationTable(ctx context.Context) error {
	pool, err := r.getPool(ctx)
	if err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, r.ledger.drop); err != nil {
		return fmt.Errorf("dropping ledger table %s: %w", r.ledger.name, err)
	}

	return nil
}

// CheckConnection pings the active database.
func (r *Repository) CheckConnection(ctx context.Context) bool {
	pool, err := r.getPool(ctx)
	if err != nil {
		r.logger.Debug("connection check failed", "error", err)

		return false
	}

	if err := pool.Ping(ctx); err != nil {
		r.logger.Debug("connection check failed", "error", err)

		return false
	}

	return true
}

// TryLock takes the advisory lock for the ledger table.
func (r *Repository) TryLock(ctx context.Context) (migrator.Releaser, error) {
	pool, err := r.getPool(ctx)
	if err != nil {
		return nil, err
	}

	handle, err := tryAcquireLock(ctx, pool, lockID(r.ledger.name))
	if err != nil {
		return nil, err
	}

	return handle, nil
}
