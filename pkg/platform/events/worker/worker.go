// Package worker drains buffered domain events into a downstream sink.
package worker

import (
	"context"
	"log/slog"

	"tessera/pkg/platform/circuit"
	"tessera/pkg/platform/events"
)

// Worker consumes domain events from a channel and forwards them to a sink
// (a store publisher or the Kafka mirror). The sink is best-effort: a failed
// delivery is logged and the worker keeps draining, so a flaky downstream
// never backs up the emitting operations.
//
// A circuit breaker gates the error logging. While the sink keeps failing the
// worker still attempts every delivery, but after the breaker opens it stops
// logging each miss and only reports the open/close transitions.
type Worker struct {
	sink    events.Publisher
	inbox   <-chan events.Event
	logger  *slog.Logger
	breaker *circuit.Breaker
}

func NewWorker(sink events.Publisher, inbox <-chan events.Event, logger *slog.Logger) *Worker {
	return &Worker{
		sink:    sink,
		inbox:   inbox,
		logger:  logger,
		breaker: circuit.New("event-sink", circuit.WithFailureThreshold(5)),
	}
}

// Run drains the inbox until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			w.deliver(ctx, event)
		}
	}
}

func (w *Worker) deliver(ctx context.Context, event events.Event) {
	err := w.sink.Emit(ctx, event)
	if err == nil {
		_, change := w.breaker.RecordSuccess()
		if change.Closed && w.logger != nil {
			w.logger.InfoContext(ctx, "event sink recovered", "breaker", w.breaker.Name())
		}
		return
	}

	quiet, change := w.breaker.RecordFailure()
	if w.logger == nil {
		return
	}
	switch {
	case change.Opened:
		w.logger.ErrorContext(ctx, "event sink failing, suppressing per-event errors",
			"breaker", w.breaker.Name(),
			"error", err,
		)
	case !quiet:
		w.logger.ErrorContext(ctx, "event delivery failed",
			"type", event.Type,
			"error", err,
		)
	}
}
