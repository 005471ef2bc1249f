//go:build integration

package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/mite/internal/migrator"
	"github.com/aqasim81/mite/internal/repository/postgres"
)

func TestAdvisoryLock_secondRepositoryIsRejected(t *testing.T) {
	t.Parallel()

	dsn := SetupPostgres(t)
	ctx := context.Background()

	first := NewRepository(t, dsn, Source())
	second := NewRepository(t, dsn, Source())

	lock, err := first.TryLock(ctx)
	require.NoError(t, err)

	_, err = second.TryLock(ctx)
	require.ErrorIs(t, err, postgres.ErrLockNotAcquired)

	m, err := migrator.New(ctx, second)
	require.NoError(t, err)

	_, err = m.Update(ctx)
	require.ErrorIs(t, err, postgres.ErrLockNotAcquired)
	assert.Equal(t, "0", m.Tracker().Version())

	require.NoError(t, lock.Release(ctx))

	_, err = m.Update(ctx)
	require.NoError(t, err)
}

func TestAdvisoryLock_releaseIsIdempotent(t *testing.T) {
	t.Parallel()

	dsn := SetupPostgres(t)
	ctx := context.Background()
	repo := NewRepository(t, dsn, Source())

	lock, err := repo.TryLock(ctx)
	require.NoError(t, err)

	require.NoError(t, lock.Release(ctx))
	require.NoError(t, lock.Release(ctx))

	again, err := repo.TryLock(ctx)
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}
