// Package redis publishes domain events over Redis pub/sub.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"homeward/internal/ports"
)

// Envelope is the JSON body of a published event.
type Envelope struct {
	ID            string         `json:"id"`
	Type          string         `json:"type"`
	AggregateType string         `json:"aggregate_type"`
	AggregateID   string         `json:"aggregate_id"`
	OccurredAt    time.Time      `json:"occurred_at"`
	Payload       map[string]any `json:"payload,omitempty"`
}

type client interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Publisher sends each event to "<prefix>.<aggregate type>".
type Publisher struct {
	client client
	prefix string
}

func NewPublisher(c client, channelPrefix string) *Publisher {
	return &Publisher{client: c, prefix: channelPrefix}
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	c := redis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return c, nil
}

func (p *Publisher) Channel(aggregateType string) string {
	return p.prefix + "." + aggregateType
}

func (p *Publisher) Publish(ctx context.Context, msg ports.OutboxMessage) error {
	ev := msg.Event
	body, err := json.Marshal(Envelope{
		ID:            ev.ID,
		Type:          ev.Type,
		AggregateType: ev.AggregateType,
		AggregateID:   ev.AggregateID,
		OccurredAt:    ev.OccurredAt,
		Payload:       ev.Payload,
	})
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.ID, err)
	}
	if err := p.client.Publish(ctx, p.Channel(ev.AggregateType), body).Err(); err != nil {
		return fmt.Errorf("publish event %s: %w", ev.ID, err)
	}
	return nil
}
