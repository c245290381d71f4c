package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Publisher emits domain events. Services call Emit once per successful
// operation, after all state mutations have committed.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// Store persists emitted events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// StorePublisher writes events synchronously to a store with fail-closed
// semantics: if the append fails, the error is returned to the emitting
// operation. Use it when the store is the audit trail of record.
type StorePublisher struct {
	store  Store
	logger *slog.Logger
}

// NewStorePublisher creates a synchronous store-backed publisher.
func NewStorePublisher(store Store, logger *slog.Logger) *StorePublisher {
	return &StorePublisher{store: store, logger: logger}
}

func (p *StorePublisher) Emit(ctx context.Context, event Event) error {
	if event.Type == "" {
		return fmt.Errorf("event requires a type")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := p.store.Append(ctx, event); err != nil {
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "event persistence failed",
				"type", event.Type,
				"asset_id", event.AssetID,
				"error", err,
			)
		}
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// ChannelPublisher hands events to a buffered channel for a background worker
// to drain. Emit never blocks the emitting operation; a full buffer drops the
// event and logs, which is acceptable only for non-authoritative sinks
// (metrics mirrors, notification fan-out).
type ChannelPublisher struct {
	inbox  chan Event
	logger *slog.Logger
}

// NewChannelPublisher creates a channel publisher with the given buffer size.
func NewChannelPublisher(buffer int, logger *slog.Logger) *ChannelPublisher {
	return &ChannelPublisher{
		inbox:  make(chan Event, buffer),
		logger: logger,
	}
}

// Events exposes the inbox for a Worker to consume.
func (p *ChannelPublisher) Events() <-chan Event { return p.inbox }

func (p *ChannelPublisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case p.inbox <- event:
		return nil
	default:
		if p.logger != nil {
			p.logger.WarnContext(ctx, "event buffer full, dropping event", "type", event.Type)
		}
		return nil
	}
}

// Fanout emits to every publisher in order, stopping at the first failure so
// the authoritative sink (first entry) decides the operation's fate.
type Fanout []Publisher

func (f Fanout) Emit(ctx context.Context, event Event) error {
	for _, p := range f {
		if err := p.Emit(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
