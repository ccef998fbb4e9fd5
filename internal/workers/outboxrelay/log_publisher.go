package outboxrelay

import (
	"context"

	"go.uber.org/zap"

	"homeward/internal/ports"
)

// LogPublisher writes each event to the logger. It stands in for a broker
// when none is configured.
type LogPublisher struct {
	Log *zap.Logger
}

func (p LogPublisher) Publish(_ context.Context, msg ports.OutboxMessage) error {
	ev := msg.Event
	p.Log.Info("domain event",
		zap.String("event_id", ev.ID),
		zap.String("event_type", ev.Type),
		zap.String("aggregate_type", ev.AggregateType),
		zap.String("aggregate_id", ev.AggregateID),
		zap.Time("occurred_at", ev.OccurredAt),
		zap.Any("payload", ev.Payload))
	return nil
}
