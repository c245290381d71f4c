package commitment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"tessera/internal/eligibility/models"
	"tessera/pkg/domain"
	"tessera/pkg/platform/sentinel"
	txcontext "tessera/pkg/platform/tx"
)

// PostgresStore persists commitments in the commitments table. A partial
// unique index on (principal) WHERE active enforces the one-active-commitment
// invariant at the storage layer as well.
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

func (s *PostgresStore) CreateIfAbsent(ctx context.Context, c *models.Commitment) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO commitments (principal, commitment_hash, registered_at, active)
		VALUES ($1, $2, $3, $4)`,
		c.Principal.String(), c.CommitmentHash[:], c.RegisteredAt, c.Active,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert commitment: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByPrincipal(ctx context.Context, principal domain.Principal) (*models.Commitment, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT principal, commitment_hash, registered_at, active
		FROM commitments
		WHERE principal = $1
		ORDER BY registered_at DESC
		LIMIT 1`,
		principal.String(),
	)

	var c models.Commitment
	var principalStr string
	var hash []byte
	err := row.Scan(&principalStr, &hash, &c.RegisteredAt, &c.Active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find commitment: %w", err)
	}
	c.Principal = domain.Principal(principalStr)
	copy(c.CommitmentHash[:], hash)
	return &c, nil
}

func (s *PostgresStore) Update(ctx context.Context, c *models.Commitment) error {
	result, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE commitments
		SET active = $2
		WHERE principal = $1 AND commitment_hash = $3`,
		c.Principal.String(), c.Active, c.CommitmentHash[:],
	)
	if err != nil {
		return fmt.Errorf("update commitment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update commitment: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
