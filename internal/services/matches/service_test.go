package matches

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"homeward/internal/adapters/memory"
	"homeward/internal/domain"
	"homeward/internal/services/cases"
)

type fixture struct {
	store *memory.Store
	svc   *Service
	cases *cases.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	clock := memory.NewClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	return &fixture{store: store, svc: New(store, clock, zap.NewNop()), cases: cases.New(store, clock, zap.NewNop())}
}

// engagement creates an approved case and returns its engagement id.
func (f *fixture) engagement(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	v, err := f.cases.Submit(ctx, domain.Applicant{PrimaryName: "Ana"})
	require.NoError(t, err)
	v, err = f.cases.RecordBoardDecision(ctx, v.Case.ID, domain.BoardDecision{Decision: domain.DecisionApproved})
	require.NoError(t, err)
	return v.Engagements[0].ID
}

func (f *fixture) match(t *testing.T, engagementID, listingID string, score int) domain.MatchSnapshot {
	t.Helper()
	m, err := f.svc.Create(context.Background(), domain.NewMatchInput{EngagementID: engagementID, ListingID: listingID, Score: score})
	require.NoError(t, err)
	return m
}

func TestCreateAndOfferRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	eng := f.engagement(t)

	m := f.match(t, eng, "listing-9", 73)
	got, err := f.svc.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 73, got.Score)
	assert.Equal(t, domain.MatchIdentified, got.Status)

	offer := decimal.NewFromInt(450000)
	_, err = f.svc.UpdateStatus(ctx, m.ID, domain.StatusChange{Status: domain.MatchOfferMade, OfferAmount: &offer})
	require.NoError(t, err)
	got, err = f.svc.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MatchOfferMade, got.Status)
	require.NotNil(t, got.OfferAmount)
	assert.True(t, got.OfferAmount.Equal(offer))

	_, err = f.svc.UpdateStatus(ctx, m.ID, domain.StatusChange{Status: domain.MatchInterested})
	assert.True(t, errors.Is(err, domain.ErrIllegalTransition), "got %v", err)
}

func TestCreateRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	eng := f.engagement(t)
	f.match(t, eng, "listing-9", 50)

	_, err := f.svc.Create(ctx, domain.NewMatchInput{EngagementID: eng, ListingID: "listing-9", Score: 60})
	assert.True(t, errors.Is(err, domain.ErrConflict), "got %v", err)

	_, err = f.svc.Create(ctx, domain.NewMatchInput{EngagementID: "missing", ListingID: "listing-1"})
	assert.True(t, errors.Is(err, domain.ErrNotFound), "got %v", err)

	_, err = f.svc.Create(ctx, domain.NewMatchInput{EngagementID: eng, ListingID: "listing-2", Score: 120})
	assert.True(t, errors.Is(err, domain.ErrValidation), "got %v", err)
}

func TestListOrdersByScore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	eng := f.engagement(t)
	f.match(t, eng, "a", 40)
	f.match(t, eng, "b", 90)
	f.match(t, eng, "c", 65)

	list, err := f.svc.List(ctx, eng)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"b", "c", "a"}, []string{list[0].ListingID, list[1].ListingID, list[2].ListingID})

	_, err = f.svc.List(ctx, "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestUpdateScore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	m := f.match(t, f.engagement(t), "listing-9", 10)

	got, err := f.svc.UpdateScore(ctx, m.ID, 80, json.RawMessage(`{"commute":0.9}`))
	require.NoError(t, err)
	assert.Equal(t, 80, got.Score)
	assert.JSONEq(t, `{"commute":0.9}`, string(got.ScoreExplanation))

	_, err = f.svc.UpdateScore(ctx, m.ID, 101, nil)
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestRequestShowingsBatch(t *testing.T) {
	t.Run("all succeed", func(t *testing.T) {
		f := newFixture(t)
		eng := f.engagement(t)
		a, b := f.match(t, eng, "a", 1), f.match(t, eng, "b", 2)

		out, err := f.svc.RequestShowingsBatch(context.Background(), eng, []string{a.ID, b.ID, a.ID})
		require.NoError(t, err)
		require.Len(t, out, 2)
		for _, m := range out {
			assert.Equal(t, domain.MatchShowingRequested, m.Status)
		}
	})

	t.Run("one failure rolls back all", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		eng := f.engagement(t)
		a, b := f.match(t, eng, "a", 1), f.match(t, eng, "b", 2)
		_, err := f.svc.UpdateStatus(ctx, b.ID, domain.StatusChange{Status: domain.MatchRejected})
		require.NoError(t, err)
		before := len(f.store.Events())

		_, err = f.svc.RequestShowingsBatch(ctx, eng, []string{a.ID, b.ID})
		assert.True(t, errors.Is(err, domain.ErrInvalidOperation), "got %v", err)

		got, err := f.svc.Get(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.MatchIdentified, got.Status)
		assert.Len(t, f.store.Events(), before)
	})

	t.Run("foreign match", func(t *testing.T) {
		f := newFixture(t)
		eng, other := f.engagement(t), f.engagement(t)
		m := f.match(t, other, "a", 1)

		_, err := f.svc.RequestShowingsBatch(context.Background(), eng, []string{m.ID})
		assert.True(t, errors.Is(err, domain.ErrInvalidOperation), "got %v", err)
	})

	t.Run("empty", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.RequestShowingsBatch(context.Background(), f.engagement(t), nil)
		assert.True(t, errors.Is(err, domain.ErrValidation))
	})
}
