package ratebook

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore implements Store on a pgx connection pool.
type PGStore struct {
	Pool *pgxpool.Pool
}

// NewPGStore wraps the pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{Pool: pool}
}

const rateColumns = `id, description, rate, locked, active, created_at`

func (s *PGStore) ListActive(ctx context.Context) ([]RateItem, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+rateColumns+` FROM rate_items
		WHERE active ORDER BY description`)
	if err != nil {
		return nil, fmt.Errorf("list rate items: %w", err)
	}
	defer rows.Close()

	items := []RateItem{}
	for rows.Next() {
		var item RateItem
		if err := rows.Scan(&item.ID, &item.Description, &item.Rate, &item.Locked, &item.Active, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan rate item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *PGStore) Get(ctx context.Context, id string) (RateItem, error) {
	var item RateItem
	err := s.Pool.QueryRow(ctx, `SELECT `+rateColumns+` FROM rate_items WHERE id = $1`, id).
		Scan(&item.ID, &item.Description, &item.Rate, &item.Locked, &item.Active, &item.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RateItem{}, ErrNotFound
		}
		return RateItem{}, fmt.Errorf("get rate item: %w", err)
	}
	return item, nil
}

func (s *PGStore) Create(ctx context.Context, item RateItem) (RateItem, error) {
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO rate_items (description, rate, locked, active)
		VALUES ($1, $2, $3, $4)
		RETURNING `+rateColumns,
		item.Description, item.Rate, item.Locked, item.Active).
		Scan(&item.ID, &item.Description, &item.Rate, &item.Locked, &item.Active, &item.CreatedAt)
	if err != nil {
		return RateItem{}, fmt.Errorf("insert rate item: %w", err)
	}
	return item, nil
}

func (s *PGStore) Update(ctx context.Context, item RateItem) (RateItem, error) {
	err := s.Pool.QueryRow(ctx, `
		UPDATE rate_items SET description = $2, rate = $3, locked = $4
		WHERE id = $1
		RETURNING `+rateColumns, item.ID, item.Description, item.Rate, item.Locked).
		Scan(&item.ID, &item.Description, &item.Rate, &item.Locked, &item.Active, &item.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RateItem{}, ErrNotFound
		}
		return RateItem{}, fmt.Errorf("update rate item: %w", err)
	}
	return item, nil
}

func (s *PGStore) Deactivate(ctx context.Context, id string) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE rate_items SET active = false WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate rate item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
