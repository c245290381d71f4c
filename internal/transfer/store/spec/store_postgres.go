package spec

import (
	"context"
	"database/sql"
	"fmt"

	"tessera/internal/transfer/models"
	"tessera/pkg/domain"
	"tessera/pkg/platform/sentinel"
	txcontext "tessera/pkg/platform/tx"
)

// PostgresStore persists one fraction spec per asset. Writes join the
// surrounding transaction when one is in the context, so a spec created at
// issuance rolls back with the asset record.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Get(ctx context.Context, assetID domain.AssetID) (models.FractionSpec, error) {
	var spec models.FractionSpec
	var id int64
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT asset_id, total_supply, min_unit, lockup_end
		FROM fraction_specs WHERE asset_id = $1`,
		int64(assetID),
	).Scan(&id, &spec.TotalSupply, &spec.MinUnit, &spec.LockupEnd)
	if err == sql.ErrNoRows {
		return models.FractionSpec{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.FractionSpec{}, fmt.Errorf("get fraction spec: %w", err)
	}
	spec.AssetID = domain.AssetID(id)
	return spec, nil
}

func (s *PostgresStore) Put(ctx context.Context, spec models.FractionSpec) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO fraction_specs (asset_id, total_supply, min_unit, lockup_end)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (asset_id) DO UPDATE SET
			min_unit = EXCLUDED.min_unit,
			lockup_end = EXCLUDED.lockup_end`,
		int64(spec.AssetID), spec.TotalSupply, spec.MinUnit, spec.LockupEnd,
	)
	if err != nil {
		return fmt.Errorf("put fraction spec: %w", err)
	}
	return nil
}
