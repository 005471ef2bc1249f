package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultMaxConns = 5

	// maintenanceDatabase is used for CREATE/DROP DATABASE, which cannot run
	// while connected to the target.
	maintenanceDatabase = "postgres"

	// invalidCatalogName is the SQLSTATE for a database that does not exist.
	invalidCatalogName = "3D000"
)

// parseConfig parses the connection string and applies the pool limits.
func parseConfig(databaseURL string) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDatabaseURL, err)
	}

	poolCfg.MaxConns = defaultMaxConns

	return poolCfg, nil
}

// newPool creates a pool connected to database. Connections are opened lazily.
func newPool(ctx context.Context, base *pgxpool.Config, database string) (*pgxpool.Pool, error) {
	cfg := base.Copy()
	cfg.ConnConfig.Database = database

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return pool, nil
}

// connectMaintenance opens a single connection to the maintenance database.
func connectMaintenance(ctx context.Context, base *pgxpool.Config) (*pgx.Conn, error) {
	cfg := base.ConnConfig.Copy()
	cfg.Database = maintenanceDatabase

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return conn, nil
}

// isMissingDatabase reports whether err means the target database does not exist.
func isMissingDatabase(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == invalidCatalogName
}
