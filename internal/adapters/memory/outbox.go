package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"homeward/internal/domain"
	"homeward/internal/ports"
)

func errFailedContractsShrank(engagementID string) error {
	return fmt.Errorf("memory: failed contract history of engagement %s cannot shrink", engagementID)
}

type outboxRepo struct{ st *state }

func (r outboxRepo) Append(_ context.Context, events ...domain.Event) error {
	for _, ev := range events {
		r.st.seq++
		r.st.outbox = append(r.st.outbox, outboxRow{seq: r.st.seq, msg: ports.OutboxMessage{Event: ev}})
	}
	return nil
}

func (r outboxRepo) ClaimBatch(_ context.Context, limit, maxAttempts int, now time.Time) ([]ports.OutboxMessage, error) {
	var pending []outboxRow
	for _, row := range r.st.outbox {
		if row.publishedAt == nil && row.msg.Attempts < maxAttempts && !row.retryAt.After(now) {
			pending = append(pending, row)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		a, b := pending[i], pending[j]
		if !a.msg.Event.OccurredAt.Equal(b.msg.Event.OccurredAt) {
			return a.msg.Event.OccurredAt.Before(b.msg.Event.OccurredAt)
		}
		return a.seq < b.seq
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	out := make([]ports.OutboxMessage, 0, len(pending))
	for _, row := range pending {
		out = append(out, row.msg)
	}
	return out, nil
}

func (r outboxRepo) MarkPublished(_ context.Context, eventID string, at time.Time) error {
	row, err := r.find(eventID)
	if err != nil {
		return err
	}
	row.publishedAt = &at
	row.lastError = ""
	return nil
}

func (r outboxRepo) MarkFailed(_ context.Context, eventID string, reason string, retryAt time.Time) error {
	row, err := r.find(eventID)
	if err != nil {
		return err
	}
	row.msg.Attempts++
	row.lastError = reason
	row.retryAt = retryAt
	return nil
}

func (r outboxRepo) find(eventID string) (*outboxRow, error) {
	for i := range r.st.outbox {
		if r.st.outbox[i].msg.Event.ID == eventID {
			return &r.st.outbox[i], nil
		}
	}
	return nil, domain.NotFound("outbox event", eventID)
}

// autoCommitOutbox wraps each call in its own unit so the relay can use the
// store without holding the lock across publishes.
type autoCommitOutbox struct{ store *Store }

func (o autoCommitOutbox) Append(ctx context.Context, events ...domain.Event) error {
	return o.store.Do(ctx, func(ctx context.Context, r ports.Repositories) error {
		return r.Outbox().Append(ctx, events...)
	})
}

func (o autoCommitOutbox) ClaimBatch(ctx context.Context, limit, maxAttempts int, now time.Time) (out []ports.OutboxMessage, err error) {
	err = o.store.Do(ctx, func(ctx context.Context, r ports.Repositories) error {
		out, err = r.Outbox().ClaimBatch(ctx, limit, maxAttempts, now)
		return err
	})
	return out, err
}

func (o autoCommitOutbox) MarkPublished(ctx context.Context, eventID string, at time.Time) error {
	return o.store.Do(ctx, func(ctx context.Context, r ports.Repositories) error {
		return r.Outbox().MarkPublished(ctx, eventID, at)
	})
}

func (o autoCommitOutbox) MarkFailed(ctx context.Context, eventID string, reason string, retryAt time.Time) error {
	return o.store.Do(ctx, func(ctx context.Context, r ports.Repositories) error {
		return r.Outbox().MarkFailed(ctx, eventID, reason, retryAt)
	})
}
