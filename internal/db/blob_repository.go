package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/pathgrid/internal/store"
)

// BlobRepository хранит precomputed path caches в таблице path_cache.
type BlobRepository struct {
	pool *pgxpool.Pool
}

var _ store.BlobStore = (*BlobRepository)(nil)

// NewBlobRepository создаёт BlobRepository поверх pool.
func NewBlobRepository(pool *pgxpool.Pool) *BlobRepository {
	return &BlobRepository{pool: pool}
}

// Load возвращает blob по имени или store.ErrNotFound.
func (r *BlobRepository) Load(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := r.pool.QueryRow(ctx,
		`SELECT data FROM path_cache WHERE name = $1`, name,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query path cache %q: %w", name, err)
	}
	return data, nil
}

// Save записывает blob, заменяя существующий.
func (r *BlobRepository) Save(ctx context.Context, name string, data []byte) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO path_cache (name, data, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (name) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		name, data,
	)
	if err != nil {
		return fmt.Errorf("save path cache %q: %w", name, err)
	}
	return nil
}

// Remove удаляет blob. Отсутствующий blob не ошибка.
func (r *BlobRepository) Remove(ctx context.Context, name string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM path_cache WHERE name = $1`, name); err != nil {
		return fmt.Errorf("delete path cache %q: %w", name, err)
	}
	return nil
}

// List returns the names of stored blobs starting with prefix.
func (r *BlobRepository) List(ctx context.Context, prefix string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT name FROM path_cache WHERE starts_with(name, $1) ORDER BY name`, prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("query path cache names: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan path cache names: %w", err)
	}
	return names, nil
}
