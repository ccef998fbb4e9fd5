package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scheduled(t *testing.T) *Showing {
	t.Helper()
	sh, err := ScheduleShowing("s-1", NewShowingInput{MatchID: "m-1", At: baseTime.Add(48 * time.Hour), BrokerID: "broker-3"}, DefaultShowingGrace, baseTime)
	require.NoError(t, err)
	return sh
}

func TestScheduleShowingGraceWindow(t *testing.T) {
	_, err := ScheduleShowing("s", NewShowingInput{MatchID: "m", At: baseTime.Add(-30 * time.Minute)}, DefaultShowingGrace, baseTime)
	assert.NoError(t, err)

	_, err = ScheduleShowing("s", NewShowingInput{MatchID: "m", At: baseTime.Add(-2 * time.Hour)}, DefaultShowingGrace, baseTime)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestReschedule(t *testing.T) {
	sh := scheduled(t)

	err := sh.Reschedule(baseTime.Add(-3*time.Hour), DefaultShowingGrace, baseTime)
	assert.True(t, errors.Is(err, ErrValidation))

	future := baseTime.Add(72 * time.Hour)
	require.NoError(t, sh.Reschedule(future, DefaultShowingGrace, baseTime))
	assert.Equal(t, ShowingScheduled, sh.Status())
	assert.True(t, sh.Snapshot().ScheduledAt.Equal(future))
}

func TestCloseShowing(t *testing.T) {
	for _, status := range []ShowingStatus{ShowingCompleted, ShowingCancelled, ShowingNoShow} {
		t.Run(string(status), func(t *testing.T) {
			sh := scheduled(t)
			snap := sh.Snapshot()
			snap.Notes = "gate code 1234"
			sh = RestoreShowing(snap)

			require.NoError(t, sh.Close(status, "family ran late", baseTime))
			got := sh.Snapshot()
			assert.Equal(t, status, got.Status)
			assert.Equal(t, "gate code 1234\n"+status.Label()+": family ran late", got.Notes)
			assert.Equal(t, status == ShowingCompleted, got.CompletedAt != nil)

			err := sh.Close(ShowingCancelled, "", baseTime)
			assert.True(t, errors.Is(err, ErrIllegalTransition))
			err = sh.Reschedule(baseTime.Add(time.Hour), DefaultShowingGrace, baseTime)
			assert.True(t, errors.Is(err, ErrInvalidState))
		})
	}

	sh := scheduled(t)
	assert.True(t, errors.Is(sh.Close(ShowingScheduled, "", baseTime), ErrValidation))
}
