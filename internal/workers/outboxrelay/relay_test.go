package outboxrelay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"homeward/internal/adapters/memory"
	"homeward/internal/domain"
	"homeward/internal/ports"
)

var start = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	failOn string
	got    []string
}

func (p *recordingPublisher) Publish(_ context.Context, msg ports.OutboxMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if msg.Event.Type == p.failOn {
		return errors.New("broker unavailable")
	}
	p.got = append(p.got, msg.Event.ID)
	return nil
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.got...)
}

func seed(t *testing.T, store *memory.Store, events ...domain.Event) {
	t.Helper()
	require.NoError(t, store.Outbox().Append(context.Background(), events...))
}

func TestDrainOncePublishesInOrder(t *testing.T) {
	store := memory.NewStore()
	seed(t, store,
		domain.Event{ID: "b", Type: "case.approved", OccurredAt: start.Add(time.Second)},
		domain.Event{ID: "a", Type: "case.submitted", OccurredAt: start},
		domain.Event{ID: "c", Type: "engagement.started", OccurredAt: start.Add(time.Second)},
	)
	pub := &recordingPublisher{}
	relay := New(store.Outbox(), pub, memory.NewClock(start), zap.NewNop(), 2)

	n, err := relay.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = relay.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = relay.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Equal(t, []string{"a", "b", "c"}, pub.published())
}

func TestDrainOnceRetriesUntilMaxAttempts(t *testing.T) {
	store := memory.NewStore()
	seed(t, store,
		domain.Event{ID: "bad", Type: "poison", OccurredAt: start},
		domain.Event{ID: "good", Type: "case.submitted", OccurredAt: start},
	)
	pub := &recordingPublisher{failOn: "poison"}
	core, logs := observer.New(zap.WarnLevel)
	clock := memory.NewClock(start)
	relay := New(store.Outbox(), pub, clock, zap.New(core), 10)

	for i := 0; i < MaxAttempts+2; i++ {
		_, err := relay.DrainOnce(context.Background())
		require.NoError(t, err)
		clock.Advance(MaxRetryDelay)
	}
	assert.Equal(t, []string{"good"}, pub.published())
	assert.Equal(t, MaxAttempts, logs.FilterMessage("event publish failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("event publish failed").FilterField(zap.Int("attempts", MaxAttempts)).Len())

	batch, err := store.Outbox().ClaimBatch(context.Background(), 10, MaxAttempts, clock.Now())
	require.NoError(t, err)
	assert.Empty(t, batch)
}

func TestDrainOnceHoldsFailedMessageBack(t *testing.T) {
	store := memory.NewStore()
	seed(t, store,
		domain.Event{ID: "bad", Type: "poison", OccurredAt: start},
		domain.Event{ID: "good", Type: "case.submitted", OccurredAt: start.Add(time.Second)},
	)
	pub := &recordingPublisher{failOn: "poison"}
	core, logs := observer.New(zap.WarnLevel)
	clock := memory.NewClock(start)
	relay := New(store.Outbox(), pub, clock, zap.New(core), 2)

	n, err := relay.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only the good message counts as published")

	n, err = relay.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, logs.FilterMessage("event publish failed").Len(), "failed message is not claimed again before its retry time")

	clock.Advance(RetryBackoff)
	_, err = relay.DrainOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, logs.FilterMessage("event publish failed").Len())

	clock.Advance(RetryBackoff)
	batch, err := store.Outbox().ClaimBatch(context.Background(), 10, MaxAttempts, clock.Now())
	require.NoError(t, err)
	assert.Empty(t, batch, "second failure waits twice as long")

	clock.Advance(RetryBackoff)
	batch, err = store.Outbox().ClaimBatch(context.Background(), 10, MaxAttempts, clock.Now())
	require.NoError(t, err)
	require.Len(t, batch, 1)
	assert.Equal(t, 2, batch[0].Attempts)
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, RetryBackoff, retryDelay(1))
	assert.Equal(t, 2*RetryBackoff, retryDelay(2))
	assert.Equal(t, 8*RetryBackoff, retryDelay(4))
	assert.Equal(t, MaxRetryDelay, retryDelay(MaxAttempts))
}

func TestRunStopsOnCancel(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, domain.Event{ID: "a", Type: "case.submitted", OccurredAt: start})
	pub := &recordingPublisher{}
	relay := New(store.Outbox(), pub, memory.NewClock(start), zap.NewNop(), 10)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		relay.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(pub.published()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("relay did not stop")
	}
}

func TestRunWaitsForRetryAfterFailure(t *testing.T) {
	store := memory.NewStore()
	seed(t, store, domain.Event{ID: "bad", Type: "poison", OccurredAt: start})
	pub := &recordingPublisher{failOn: "poison"}
	core, logs := observer.New(zap.WarnLevel)
	clock := memory.NewClock(start)
	relay := New(store.Outbox(), pub, clock, zap.New(core), 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		relay.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	failures := func() int { return logs.FilterMessage("event publish failed").Len() }
	require.Eventually(t, func() bool { return failures() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, 1, failures(), "one failure per retry window, not a burst of attempts")
	batch, err := store.Outbox().ClaimBatch(context.Background(), 10, MaxAttempts, clock.Now().Add(RetryBackoff))
	require.NoError(t, err)
	require.Len(t, batch, 1, "message stays claimable once the backoff lapses")
	assert.Equal(t, 1, batch[0].Attempts)
}

func TestLogPublisher(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	err := LogPublisher{Log: zap.New(core)}.Publish(context.Background(), ports.OutboxMessage{Event: domain.Event{ID: "a", Type: "case.submitted"}})
	require.NoError(t, err)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "case.submitted", logs.All()[0].ContextMap()["event_type"])
}
