package asset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tessera/internal/registry/models"
	"tessera/pkg/domain"
	"tessera/pkg/platform/sentinel"
	txcontext "tessera/pkg/platform/tx"
)

// PostgresStore persists asset records; ids come from the assets BIGSERIAL
// primary key so allocation and insert are one statement.
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

func (s *PostgresStore) Create(ctx context.Context, record *models.AssetRecord) error {
	row := s.execer(ctx).QueryRowContext(ctx, `
		INSERT INTO assets (issuer, document_hash, total_value_minor, fraction_count,
			min_fraction_unit, minted_at_feed, minted_at_price, minted_at_expo, minted_at, verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		record.Issuer.String(), record.DocumentHash[:], record.TotalValueMinor,
		record.FractionCount, record.MinFractionUnit, record.MintedAtFeed.String(),
		record.MintedAtPrice, record.MintedAtExpo, record.MintedAt, record.Verified,
	)
	var id int64
	if err := row.Scan(&id); err != nil {
		return fmt.Errorf("insert asset: %w", err)
	}
	record.AssetID = domain.AssetID(id)
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, assetID domain.AssetID) (*models.AssetRecord, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, issuer, document_hash, total_value_minor, fraction_count,
			min_fraction_unit, minted_at_feed, minted_at_price, minted_at_expo, minted_at, verified
		FROM assets
		WHERE id = $1`,
		int64(assetID),
	)

	var record models.AssetRecord
	var id int64
	var issuer, feed string
	var hash []byte
	err := row.Scan(&id, &issuer, &hash, &record.TotalValueMinor, &record.FractionCount,
		&record.MinFractionUnit, &feed, &record.MintedAtPrice, &record.MintedAtExpo,
		&record.MintedAt, &record.Verified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find asset: %w", err)
	}
	record.AssetID = domain.AssetID(id)
	record.Issuer = domain.Principal(issuer)
	record.MintedAtFeed = domain.FeedID(feed)
	copy(record.DocumentHash[:], hash)
	return &record, nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.execer(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM assets`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count assets: %w", err)
	}
	return count, nil
}
