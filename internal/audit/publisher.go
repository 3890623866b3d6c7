package audit

import (
	"context"
	"log/slog"
	"time"

	id "verity/pkg/domain"
)

// Sink receives a copy of every emitted event. Sinks are best-effort: a sink
// failure is logged but never blocks the verification flow.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Publisher captures structured audit events. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store  Store
	sinks  []Sink
	logger *slog.Logger
}

func NewPublisher(store Store, logger *slog.Logger, sinks ...Sink) *Publisher {
	return &Publisher{store: store, sinks: sinks, logger: logger}
}

func (p *Publisher) Emit(ctx context.Context, base Event) error {
	if base.Timestamp.IsZero() {
		base.Timestamp = time.Now()
	}
	if err := p.store.Append(ctx, base); err != nil {
		return err
	}
	for _, sink := range p.sinks {
		if err := sink.Append(ctx, base); err != nil {
			p.logger.WarnContext(ctx, "audit sink append failed",
				"action", base.Action,
				"verification_id", base.VerificationID.String(),
				"error", err)
		}
	}
	return nil
}

func (p *Publisher) List(ctx context.Context, userID id.UserID) ([]Event, error) {
	return p.store.ListByUser(ctx, userID)
}
