package ports

import (
	"context"
	"time"

	"homeward/internal/domain"
)

// OutboxMessage is a persisted domain event awaiting publication.
type OutboxMessage struct {
	Event    domain.Event
	Attempts int
}

// OutboxRepository supports appending events and claiming them for relay.
type OutboxRepository interface {
	Append(ctx context.Context, events ...domain.Event) error
	// ClaimBatch locks up to limit unpublished messages with fewer than
	// maxAttempts attempts whose retry time is not after now, oldest first.
	ClaimBatch(ctx context.Context, limit, maxAttempts int, now time.Time) ([]OutboxMessage, error)
	MarkPublished(ctx context.Context, eventID string, at time.Time) error
	// MarkFailed counts a failed publish and holds the message back until
	// retryAt.
	MarkFailed(ctx context.Context, eventID string, reason string, retryAt time.Time) error
}

// EventPublisher delivers a message to subscribers outside the service.
type EventPublisher interface {
	Publish(ctx context.Context, msg OutboxMessage) error
}
