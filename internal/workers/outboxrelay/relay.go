// Package outboxrelay moves committed domain events from the outbox to the
// event publisher.
package outboxrelay

import (
	"context"
	"time"

	"go.uber.org/zap"

	"homeward/internal/ports"
)

// MaxAttempts is how many failed publishes a message gets before the relay
// stops claiming it.
const MaxAttempts = 10

// Failed messages wait RetryBackoff before their second attempt, doubling
// per attempt up to MaxRetryDelay.
const (
	RetryBackoff  = 5 * time.Second
	MaxRetryDelay = 10 * time.Minute
)

// retryDelay is the wait after the given number of failed attempts.
func retryDelay(attempts int) time.Duration {
	d := RetryBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= MaxRetryDelay {
			return MaxRetryDelay
		}
	}
	return d
}

type Relay struct {
	repo      ports.OutboxRepository
	publisher ports.EventPublisher
	clock     ports.Clock
	log       *zap.Logger
	batchSize int
}

func New(repo ports.OutboxRepository, publisher ports.EventPublisher, clock ports.Clock, log *zap.Logger, batchSize int) *Relay {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Relay{repo: repo, publisher: publisher, clock: clock, log: log, batchSize: batchSize}
}

// Run polls until ctx is cancelled. Each tick keeps draining while whole
// batches publish cleanly, and waits for the next tick after a short batch,
// a publish failure or a claim error.
func (r *Relay) Run(ctx context.Context, pollInterval time.Duration) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				n, err := r.DrainOnce(ctx)
				if err != nil {
					if ctx.Err() == nil {
						r.log.Error("outbox claim failed", zap.Error(err))
					}
					break
				}
				if n < r.batchSize {
					break
				}
			}
		}
	}
}

// DrainOnce claims one batch and publishes it in order. It returns how many
// messages were published. Publish failures are recorded on the message,
// which is held back by retryDelay, and do not stop the batch.
func (r *Relay) DrainOnce(ctx context.Context) (int, error) {
	batch, err := r.repo.ClaimBatch(ctx, r.batchSize, MaxAttempts, r.clock.Now())
	if err != nil {
		return 0, err
	}
	published := 0
	for _, msg := range batch {
		ev := msg.Event
		if err := r.publisher.Publish(ctx, msg); err != nil {
			retryAt := r.clock.Now().Add(retryDelay(msg.Attempts + 1))
			if markErr := r.repo.MarkFailed(ctx, ev.ID, err.Error(), retryAt); markErr != nil {
				r.log.Error("outbox mark failed", zap.String("event_id", ev.ID), zap.Error(markErr))
			}
			level := r.log.Warn
			if msg.Attempts+1 >= MaxAttempts {
				level = r.log.Error
			}
			level("event publish failed",
				zap.String("event_id", ev.ID), zap.String("event_type", ev.Type),
				zap.Int("attempts", msg.Attempts+1), zap.Time("retry_at", retryAt), zap.Error(err))
			continue
		}
		if err := r.repo.MarkPublished(ctx, ev.ID, r.clock.Now()); err != nil {
			r.log.Error("outbox mark published failed", zap.String("event_id", ev.ID), zap.Error(err))
			continue
		}
		published++
		r.log.Debug("event published", zap.String("event_id", ev.ID), zap.String("event_type", ev.Type))
	}
	return published, nil
}
