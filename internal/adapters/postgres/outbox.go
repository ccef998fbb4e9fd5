package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"homeward/internal/domain"
	"homeward/internal/ports"
)

type outboxRepo struct{ q querier }

func (r outboxRepo) Append(ctx context.Context, events ...domain.Event) error {
	for _, ev := range events {
		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			return fmt.Errorf("outbox %s payload: %w", ev.Type, err)
		}
		if ev.Payload == nil {
			payload = []byte(`{}`)
		}
		if _, err := r.q.Exec(ctx, `
			INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, occurred_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, ev.ID, ev.AggregateType, ev.AggregateID, ev.Type, payload, ev.OccurredAt); err != nil {
			return err
		}
	}
	return nil
}

// ClaimBatch leases pending rows for a minute. A relay that dies mid-batch
// leaves its rows claimable again once the lease lapses. locked_until also
// carries the retry time set by MarkFailed.
func (r outboxRepo) ClaimBatch(ctx context.Context, limit, maxAttempts int, now time.Time) ([]ports.OutboxMessage, error) {
	rows, err := r.q.Query(ctx, `
		WITH next AS (
		    SELECT id
		    FROM outbox
		    WHERE published_at IS NULL
		      AND attempts < $2
		      AND (locked_until IS NULL OR locked_until <= $3)
		    ORDER BY occurred_at, seq
		    LIMIT $1
		    FOR UPDATE SKIP LOCKED
		)
		UPDATE outbox o
		SET locked_until = $3::timestamptz + interval '1 minute'
		FROM next
		WHERE o.id = next.id
		RETURNING o.seq, o.id, o.aggregate_type, o.aggregate_id, o.event_type, o.payload, o.occurred_at, o.attempts
	`, limit, maxAttempts, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type claimed struct {
		seq int64
		msg ports.OutboxMessage
	}
	var batch []claimed
	for rows.Next() {
		var (
			c       claimed
			payload []byte
		)
		ev := &c.msg.Event
		if err := rows.Scan(&c.seq, &ev.ID, &ev.AggregateType, &ev.AggregateID, &ev.Type, &payload, &ev.OccurredAt, &c.msg.Attempts); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &ev.Payload); err != nil {
			return nil, fmt.Errorf("outbox %s payload: %w", ev.ID, err)
		}
		batch = append(batch, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// UPDATE ... RETURNING does not keep the CTE order.
	sort.Slice(batch, func(i, j int) bool {
		a, b := batch[i], batch[j]
		if !a.msg.Event.OccurredAt.Equal(b.msg.Event.OccurredAt) {
			return a.msg.Event.OccurredAt.Before(b.msg.Event.OccurredAt)
		}
		return a.seq < b.seq
	})
	out := make([]ports.OutboxMessage, 0, len(batch))
	for _, c := range batch {
		out = append(out, c.msg)
	}
	return out, nil
}

func (r outboxRepo) MarkPublished(ctx context.Context, eventID string, at time.Time) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE outbox SET published_at = $2, last_error = '', locked_until = NULL WHERE id = $1
	`, eventID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("outbox event", eventID)
	}
	return nil
}

func (r outboxRepo) MarkFailed(ctx context.Context, eventID string, reason string, retryAt time.Time) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE outbox SET attempts = attempts + 1, last_error = $2, locked_until = $3 WHERE id = $1
	`, eventID, reason, retryAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("outbox event", eventID)
	}
	return nil
}
