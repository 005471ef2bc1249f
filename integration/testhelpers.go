//go:build integration

package integration

import (
	"context"
	"testing"
	"testing/fstest"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aqasim81/mite/internal/repository/postgres"
)

const (
	postgresImage = "postgres:16-alpine"
	testDB        = "mite_test"
	testUser      = "mite"
	testPassword  = "mite"
)

// SetupPostgres starts a PostgreSQL 16 container and returns its connection URL.
// The container is terminated when the test completes.
func SetupPostgres(t *testing.T) string {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       testDB,
			"POSTGRES_USER":     testUser,
			"POSTGRES_PASSWORD": testPassword,
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, container.Terminate(context.Background()))
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return "postgres://" + testUser + ":" + testPassword + "@" + host + ":" + port.Port() + "/" + testDB + "?sslmode=disable"
}

// NewRepository builds a postgres repository over source.
func NewRepository(t *testing.T, dsn string, source fstest.MapFS) *postgres.Repository {
	t.Helper()

	repo, err := postgres.New(postgres.Config{
		URL:              dsn,
		Source:           source,
		LockTimeout:      2 * time.Second,
		StatementTimeout: 10 * time.Second,
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = repo.Close() })

	return repo
}

// Connect opens a pool on dsn for assertions against the database.
func Connect(t *testing.T, dsn string) *pgxpool.Pool {
	t.Helper()

	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)

	t.Cleanup(pool.Close)

	return pool
}

// TableExists reports whether a table exists in the public schema.
func TableExists(t *testing.T, pool *pgxpool.Pool, name string) bool {
	t.Helper()

	var exists bool

	err := pool.QueryRow(context.Background(),
		"SELECT EXISTS(SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)",
		name).Scan(&exists)
	require.NoError(t, err)

	return exists
}

// Source returns three migrations creating users, posts and an email column.
func Source() fstest.MapFS {
	return fstest.MapFS{
		"2006.sql": {Data: []byte(`/* up */
CREATE TABLE users (id SERIAL PRIMARY KEY, name TEXT NOT NULL);
/* down */
DROP TABLE users;
`)},
		"2006-01.sql": {Data: []byte(`/* up */
CREATE TABLE posts (id SERIAL PRIMARY KEY, user_id INTEGER REFERENCES users(id), title TEXT);
/* down */
DROP TABLE posts;
`)},
		"2007.sql": {Data: []byte(`/* up */
ALTER TABLE users ADD COLUMN email TEXT;
CREATE FUNCTION touch() RETURNS trigger AS $$
BEGIN
  RETURN NEW;
END;
$$ LANGUAGE plpgsql;
/* down */
DROP FUNCTION touch();
ALTER TABLE users DROP COLUMN email;
`)},
	}
}
