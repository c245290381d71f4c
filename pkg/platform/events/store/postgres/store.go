package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tessera/pkg/platform/events"
	txcontext "tessera/pkg/platform/tx"
)

// Store persists domain events to the domain_events table. Rows are
// append-only; the table is the durable audit trail for the core.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// payload is the JSON document stored alongside the indexed columns. Field
// names match events.Event so consumers can round-trip.
type payload struct {
	Type            string `json:"Type"`
	Timestamp       string `json:"Timestamp"`
	RequestID       string `json:"RequestID,omitempty"`
	AssetID         uint64 `json:"AssetID,omitempty"`
	Issuer          string `json:"Issuer,omitempty"`
	From            string `json:"From,omitempty"`
	To              string `json:"To,omitempty"`
	Amount          int64  `json:"Amount,omitempty"`
	Cost            int64  `json:"Cost,omitempty"`
	DocumentHash    string `json:"DocumentHash,omitempty"`
	TotalValueMinor int64  `json:"TotalValueMinor,omitempty"`
	FractionCount   int64  `json:"FractionCount,omitempty"`
	Principal       string `json:"Principal,omitempty"`
	CommitmentHash  string `json:"CommitmentHash,omitempty"`
	FeedID          string `json:"FeedID,omitempty"`
	Price           int64  `json:"Price,omitempty"`
	Expo            int32  `json:"Expo,omitempty"`
	Confidence      uint64 `json:"Confidence,omitempty"`
	PublishedAt     string `json:"PublishedAt,omitempty"`
}

// Append writes one event row. Participates in a caller transaction when one
// is present in the context.
func (s *Store) Append(ctx context.Context, event events.Event) error {
	eventID := uuid.New()

	doc := payload{
		Type:            string(event.Type),
		Timestamp:       event.Timestamp.Format(time.RFC3339Nano),
		RequestID:       event.RequestID,
		AssetID:         uint64(event.AssetID),
		Issuer:          event.Issuer.String(),
		From:            event.From.String(),
		To:              event.To.String(),
		Amount:          event.Amount,
		Cost:            event.Cost,
		TotalValueMinor: event.TotalValueMinor,
		FractionCount:   event.FractionCount,
		Principal:       event.Principal.String(),
		FeedID:          event.FeedID.String(),
		Price:           event.Price,
		Expo:            event.Expo,
		Confidence:      event.Confidence,
	}
	if !event.DocumentHash.IsZero() {
		doc.DocumentHash = event.DocumentHash.String()
	}
	if !event.CommitmentHash.IsZero() {
		doc.CommitmentHash = event.CommitmentHash.String()
	}
	if !event.PublishedAt.IsZero() {
		doc.PublishedAt = event.PublishedAt.Format(time.RFC3339Nano)
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	_, err = s.execer(ctx).ExecContext(ctx, `
		INSERT INTO domain_events (id, event_type, asset_id, principal, occurred_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		eventID, string(event.Type), int64(event.AssetID), event.Principal.String(),
		event.Timestamp, body,
	)
	if err != nil {
		return fmt.Errorf("insert domain event: %w", err)
	}
	return nil
}
