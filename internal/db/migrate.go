package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/udisondev/pathgrid/internal/db/migrations"
)

// Migrate brings the path_cache schema up to date.
func (d *DB) Migrate(ctx context.Context) error {
	applied, err := ApplyMigrations(ctx, d.pool)
	if err != nil {
		return err
	}
	slog.Info("database migrations applied", "count", applied)
	return nil
}

// ApplyMigrations runs the embedded goose migrations over pool and
// returns how many were applied.
func ApplyMigrations(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	connStr := stdlib.RegisterConnConfig(pool.Config().ConnConfig)
	defer stdlib.UnregisterConnConfig(connStr)
	sqlDB, err := sql.Open("pgx", connStr)
	if err != nil {
		return 0, fmt.Errorf("opening sql connection for migrations: %w", err)
	}
	defer sqlDB.Close()

	provider, err := goose.NewProvider(goose.DialectPostgres, sqlDB, migrations.FS)
	if err != nil {
		return 0, fmt.Errorf("creating migration provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return 0, fmt.Errorf("running migrations: %w", err)
	}
	return len(results), nil
}
