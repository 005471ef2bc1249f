package migrator_test

import (
	"context"
	"errors"
	"maps"

	"github.com/aqasim81/mite/internal/migration"
	"github.com/aqasim81/mite/internal/migrator"
	"github.com/aqasim81/mite/internal/tracker"
)

var errNoLedger = errors.New("ledger table does not exist")

// fakeRepository keeps one ledger per database name in memory.
type fakeRepository struct {
	migrations []migration.Migration
	permissive bool
	database   string
	databases  map[string]bool
	ledgers    map[string]map[string]string // database -> ledger; absent means no ledger table
	failOn     map[string]error             // "up:<version>" or "down:<version>"
	calls      []string
	scripts    []string
}

func newFakeRepository(ms []migration.Migration) *fakeRepository {
	return &fakeRepository{
		migrations: ms,
		database:   "app",
		databases:  map[string]bool{"app": true},
		ledgers:    map[string]map[string]string{},
		failOn:     map[string]error{},
	}
}

// withLedger marks versions as applied with their current hashes.
func (f *fakeRepository) withLedger(versions ...string) *fakeRepository {
	ledger := map[string]string{}

	for _, v := range versions {
		for _, m := range f.migrations {
			if m.Version == v {
				ledger[v] = m.Hash
			}
		}
	}

	f.ledgers[f.database] = ledger

	return f
}

func (f *fakeRepository) Init(ctx context.Context) (*tracker.Tracker, error) {
	f.calls = append(f.calls, "init")

	if !f.databases[f.database] {
		return nil, errors.New("database does not exist")
	}

	if _, ok := f.ledgers[f.database]; !ok {
		f.ledgers[f.database] = map[string]string{}
	}

	return f.Create(ctx)
}

func (f *fakeRepository) Create(_ context.Context) (*tracker.Tracker, error) {
	return tracker.New(f.migrations, f.ledgers[f.database], f.permissive), nil
}

func (f *fakeRepository) ExecuteUp(ctx context.Context, m migration.Migration) (*tracker.Tracker, error) {
	return f.execute(ctx, "up:"+m.Version, func(ledger map[string]string) { ledger[m.Version] = m.Hash })
}

func (f *fakeRepository) ExecuteDown(ctx context.Context, m migration.Migration) (*tracker.Tracker, error) {
	return f.execute(ctx, "down:"+m.Version, func(ledger map[string]string) { delete(ledger, m.Version) })
}

func (f *fakeRepository) execute(ctx context.Context, call string, record func(map[string]string)) (*tracker.Tracker, error) {
	if err := f.failOn[call]; err != nil {
		return nil, err
	}

	ledger, ok := f.ledgers[f.database]
	if !ok {
		return nil, errNoLedger
	}

	f.calls = append(f.calls, call)
	record(ledger)

	return f.Create(ctx)
}

func (f *fakeRepository) ExecuteScript(_ context.Context, script string) error {
	f.calls = append(f.calls, "script")
	f.scripts = append(f.scripts, script)

	return nil
}

func (f *fakeRepository) DatabaseExists(_ context.Context) (bool, error) {
	return f.databases[f.database], nil
}

func (f *fakeRepository) CreateDatabaseIfNotExists(_ context.Context) error {
	if !f.databases[f.database] {
		f.calls = append(f.calls, "create-db")
		f.databases[f.database] = true
	}

	return nil
}

func (f *fakeRepository) DropDatabase(_ context.Context) error {
	f.calls = append(f.calls, "drop-db")
	delete(f.databases, f.database)
	delete(f.ledgers, f.database)

	return nil
}

func (f *fakeRepository) MigrationTableExists(_ context.Context) (bool, error) {
	_, ok := f.ledgers[f.database]

	return ok, nil
}

func (f *fakeRepository) DropMigrationTable(_ context.Context) error {
	delete(f.ledgers, f.database)

	return nil
}

func (f *fakeRepository) CheckConnection(_ context.Context) bool {
	return f.databases[f.database]
}

func (f *fakeRepository) GenerateSQLScript(_ context.Context, _ bool) (string, error) {
	return "", nil
}

func (f *fakeRepository) Database() string {
	return f.database
}

func (f *fakeRepository) SetDatabase(name string) {
	f.database = name
}

func (f *fakeRepository) ledger(database string) map[string]string {
	return maps.Clone(f.ledgers[database])
}

// recordingRepository adds the optional Recorder capability.
type recordingRepository struct {
	*fakeRepository
}

func (r recordingRepository) RecordMigration(ctx context.Context, m migration.Migration) (*tracker.Tracker, error) {
	r.calls = append(r.calls, "record:"+m.Version)
	r.ledgers[r.database][m.Version] = m.Hash

	return r.Create(ctx)
}

// lockingRepository adds the optional Locker capability.
type lockingRepository struct {
	*fakeRepository
	lockErr  error
	acquired int
	released int
}

type fakeLock struct {
	repo *lockingRepository
}

func (l fakeLock) Release(_ context.Context) error {
	l.repo.released++

	return nil
}

func (r *lockingRepository) TryLock(_ context.Context) (migrator.Releaser, error) {
	if r.lockErr != nil {
		return nil, r.lockErr
	}

	r.acquired++

	return fakeLock{repo: r}, nil
}

var (
	_ migrator.Repository = (*fakeRepository)(nil)
	_ migrator.Recorder   = recordingRepository{}
	_ migrator.Locker     = (*lockingRepository)(nil)
)
