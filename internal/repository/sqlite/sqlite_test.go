package sqlite_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/mite/internal/migration"
	"github.com/aqasim81/mite/internal/migrator"
	"github.com/aqasim81/mite/internal/repository/sqlite"
)

func source() fstest.MapFS {
	return fstest.MapFS{
		"2006.sql": {Data: []byte("/* up */\nCREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL);\n/* down */\nDROP TABLE users;\n")},
		"2007.sql": {Data: []byte("/* up */\nCREATE INDEX idx_users_name ON users (name);\n/* down */\nDROP INDEX idx_users_name;\n")},
	}
}

func newRepo(t *testing.T, src fstest.MapFS) *sqlite.Repository {
	t.Helper()

	repo, err := sqlite.New(sqlite.Config{
		Path:   filepath.Join(t.TempDir(), "app.db"),
		Source: src,
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = repo.Close() })

	return repo
}

func TestClose_isIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newRepo(t, source())

	_, err := repo.Init(ctx)
	require.NoError(t, err)

	require.NoError(t, repo.Close())
	require.NoError(t, repo.Close())

	tr, err := repo.Create(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0", tr.Version())
}

func TestNew_rejectsUnusablePaths(t *testing.T) {
	t.Parallel()

	for _, path := range []string{"", ":memory:", "sqlite://"} {
		_, err := sqlite.New(sqlite.Config{Path: path})
		require.ErrorIs(t, err, sqlite.ErrInvalidPath, path)
	}
}

func TestNew_acceptsURLPrefixes(t *testing.T) {
	t.Parallel()

	repo, err := sqlite.New(sqlite.Config{Path: "sqlite://data/app.sqlite"})
	require.NoError(t, err)

	assert.Equal(t, "app", repo.Database())
	assert.Equal(t, filepath.Join("data", "app.sqlite"), repo.Path())
}

func TestCreate_missingFile_readsEmptyLedger(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newRepo(t, source())

	tr, err := repo.Create(ctx)
	require.NoError(t, err)

	assert.Equal(t, "0", tr.Version())
	assert.Len(t, tr.Unexecuted(), 2)

	_, statErr := os.Stat(repo.Path())
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestExecuteUpAndDown(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newRepo(t, source())

	tr, err := repo.Init(ctx)
	require.NoError(t, err)

	for _, m := range tr.Unexecuted() {
		tr, err = repo.ExecuteUp(ctx, m)
		require.NoError(t, err)
	}

	assert.Equal(t, "2007", tr.Version())
	assert.True(t, tr.IsValidState())

	tr, err = repo.ExecuteDown(ctx, tr.Executed()[0])
	require.NoError(t, err)

	assert.Equal(t, "2006", tr.Version())

	dump, err := repo.GenerateSQLScript(ctx, false)
	require.NoError(t, err)
	assert.Contains(t, dump, "CREATE TABLE users")
	assert.NotContains(t, dump, "idx_users_name")
}

func TestExecuteUp_failureRollsBackScriptAndLedger(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newRepo(t, fstest.MapFS{
		"2006.sql": {Data: []byte("/* up */\nCREATE TABLE partial (id INTEGER);\nINSERT INTO missing VALUES (1);\n/* down */\nDROP TABLE partial;\n")},
	})

	tr, err := repo.Init(ctx)
	require.NoError(t, err)

	_, err = repo.ExecuteUp(ctx, tr.Unexecuted()[0])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "executing statement 2 of 2")

	tr, err = repo.Create(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0", tr.Version())

	dump, err := repo.GenerateSQLScript(ctx, false)
	require.NoError(t, err)
	assert.NotContains(t, dump, "partial")
}

func TestRecordMigration(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newRepo(t, source())

	_, err := repo.Init(ctx)
	require.NoError(t, err)

	baseline := migration.New("2005", "", "")

	tr, err := repo.RecordMigration(ctx, baseline)
	require.NoError(t, err)
	assert.Equal(t, baseline.Hash, tr.Ledger()["2005"])

	tr, err = repo.RecordMigration(ctx, migration.New("2005", "SELECT 1;", ""))
	require.NoError(t, err)
	assert.Len(t, tr.Ledger(), 1)
	assert.NotEqual(t, baseline.Hash, tr.Ledger()["2005"])
}

func TestDatabaseLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newRepo(t, source())
	original := repo.Path()

	repo.SetDatabase("MiteVerify")
	assert.Equal(t, filepath.Join(filepath.Dir(original), "MiteVerify.db"), repo.Path())

	exists, err := repo.DatabaseExists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	assert.False(t, repo.CheckConnection(ctx))

	_, statErr := os.Stat(repo.Path())
	require.ErrorIs(t, statErr, os.ErrNotExist)

	require.NoError(t, repo.CreateDatabaseIfNotExists(ctx))

	exists, err = repo.DatabaseExists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.True(t, repo.CheckConnection(ctx))

	_, err = repo.Init(ctx)
	require.NoError(t, err)

	tableExists, err := repo.MigrationTableExists(ctx)
	require.NoError(t, err)
	assert.True(t, tableExists)

	require.NoError(t, repo.DropMigrationTable(ctx))

	tableExists, err = repo.MigrationTableExists(ctx)
	require.NoError(t, err)
	assert.False(t, tableExists)

	require.NoError(t, repo.DropDatabase(ctx))

	exists, err = repo.DatabaseExists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGenerateSQLScript_includeData(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newRepo(t, source())

	tr, err := repo.Init(ctx)
	require.NoError(t, err)

	_, err = repo.ExecuteUp(ctx, tr.Unexecuted()[0])
	require.NoError(t, err)

	require.NoError(t, repo.ExecuteScript(ctx, "INSERT INTO users (id, name) VALUES (1, 'O''Brien');\n"))

	dump, err := repo.GenerateSQLScript(ctx, true)
	require.NoError(t, err)

	assert.Contains(t, dump, `INSERT INTO "users" ("id", "name") VALUES (1, 'O''Brien');`)
	assert.NotContains(t, dump, "_migrations")
}

func TestMigrator_againstSQLite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newRepo(t, source())

	m, err := migrator.New(ctx, repo)
	require.NoError(t, err)

	res, err := m.Update(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2007", res.To)

	res, err = m.MigrateTo(ctx, "2006")
	require.NoError(t, err)
	assert.Equal(t, "2006", res.To)

	_, err = m.Verify(ctx)
	require.NoError(t, err)
	assert.Equal(t, "app", repo.Database())

	res, err = m.FromScratch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2007", res.To)
	assert.True(t, m.Tracker().IsValidState())
}
