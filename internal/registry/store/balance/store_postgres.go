package balance

import (
	"context"
	"database/sql"
	"fmt"

	"tessera/pkg/domain"
	txcontext "tessera/pkg/platform/tx"
)

// PostgresStore persists the balance table with one row per (asset, holder).
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Get(ctx context.Context, assetID domain.AssetID, holder domain.Principal) (int64, error) {
	var amount int64
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT amount FROM balances WHERE asset_id = $1 AND holder = $2`,
		int64(assetID), holder.String(),
	).Scan(&amount)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return amount, nil
}

func (s *PostgresStore) Set(ctx context.Context, assetID domain.AssetID, holder domain.Principal, amount int64) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO balances (asset_id, holder, amount)
		VALUES ($1, $2, $3)
		ON CONFLICT (asset_id, holder) DO UPDATE SET amount = EXCLUDED.amount`,
		int64(assetID), holder.String(), amount,
	)
	if err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByAsset(ctx context.Context, assetID domain.AssetID) (map[domain.Principal]int64, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT holder, amount FROM balances WHERE asset_id = $1`,
		int64(assetID),
	)
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.Principal]int64)
	for rows.Next() {
		var holder string
		var amount int64
		if err := rows.Scan(&holder, &amount); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		out[domain.Principal(holder)] = amount
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	return out, nil
}
