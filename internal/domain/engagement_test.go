package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func engagementIn(stage Stage) *Engagement {
	return RestoreEngagement(EngagementSnapshot{
		ID:             "eng-1",
		CaseID:         "case-1",
		Sequence:       1,
		Stage:          stage,
		StageChangedAt: baseTime,
		Active:         true,
		CreatedAt:      baseTime,
		UpdatedAt:      baseTime,
	})
}

func open(e *Engagement, to Stage) GateDecision { return OpenGate(e.Stage(), to) }

func assertContractInvariant(t *testing.T, e *Engagement) {
	t.Helper()
	if e.CurrentContract() != nil {
		assert.Equal(t, StageUnderContract, e.Stage(), "current contract outside UnderContract")
	}
}

func TestStageTable(t *testing.T) {
	tests := []struct {
		from    Stage
		allowed []Stage
	}{
		{StageAwaitingAgreements, []Stage{StageSearching}},
		{StageSearching, []Stage{StageUnderContract, StagePaused}},
		{StageUnderContract, []Stage{StageClosed, StageSearching}},
		{StageClosed, []Stage{StageMovedIn, StageSearching}},
		{StagePaused, []Stage{StageSearching}},
		{StageMovedIn, nil},
	}
	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			for _, to := range Stages {
				want := false
				for _, a := range tt.allowed {
					if a == to {
						want = true
					}
				}
				assert.Equal(t, want, tt.from.CanTransitionTo(to), "%s -> %s", tt.from, to)
			}
		})
	}
}

func TestBeginSearchRespectsGate(t *testing.T) {
	t.Run("blocked", func(t *testing.T) {
		e := engagementIn(StageAwaitingAgreements)
		gate := GateDecision{From: StageAwaitingAgreements, To: StageSearching, Missing: []string{"broker_agreement"}}
		err := e.BeginSearch(gate, baseTime)
		require.True(t, errors.Is(err, ErrGateBlocked), "got %v", err)
		var de *Error
		require.True(t, errors.As(err, &de))
		assert.Equal(t, []string{"broker_agreement"}, de.Missing)
		assert.Equal(t, StageAwaitingAgreements, e.Stage())
		assert.Empty(t, e.PendingEvents())
	})

	t.Run("allowed", func(t *testing.T) {
		e := engagementIn(StageAwaitingAgreements)
		now := baseTime.Add(time.Hour)
		require.NoError(t, e.BeginSearch(open(e, StageSearching), now))
		assert.Equal(t, StageSearching, e.Stage())
		assert.True(t, e.Snapshot().StageChangedAt.Equal(now))
		events := e.PullEvents()
		require.Len(t, events, 1)
		assert.Equal(t, EventEngagementStageChanged, events[0].Type)
		assert.Equal(t, "Searching", events[0].Payload["to"])
	})

	t.Run("mismatched decision", func(t *testing.T) {
		e := engagementIn(StageAwaitingAgreements)
		err := e.BeginSearch(OpenGate(StageSearching, StagePaused), baseTime)
		assert.True(t, errors.Is(err, ErrInvalidOperation), "got %v", err)
	})
}

func TestIllegalTransitionCarriesAllowedSet(t *testing.T) {
	e := engagementIn(StageAwaitingAgreements)
	err := e.Pause("", OpenGate(StageAwaitingAgreements, StagePaused), baseTime)
	require.True(t, errors.Is(err, ErrIllegalTransition), "got %v", err)
	var de *Error
	require.True(t, errors.As(err, &de))
	assert.Equal(t, []string{"Searching"}, de.Allowed)
}

func TestContractLifecycle(t *testing.T) {
	e := engagementIn(StageSearching)
	price := decimal.NewFromInt(500000)

	require.NoError(t, e.PutUnderContract(ContractTerms{ListingID: "listing-x", Price: price}, open(e, StageUnderContract), baseTime))
	assert.Equal(t, StageUnderContract, e.Stage())
	require.NotNil(t, e.CurrentContract())
	assert.True(t, e.CurrentContract().Price.Equal(price))
	assertContractInvariant(t, e)

	require.NoError(t, e.ContractFellThrough("financing denied", open(e, StageSearching), baseTime.Add(24*time.Hour)))
	assert.Equal(t, StageSearching, e.Stage())
	assert.Nil(t, e.CurrentContract())
	failed := e.FailedContracts()
	require.Len(t, failed, 1)
	assert.Equal(t, "financing denied", failed[0].Reason)
	assert.Equal(t, "listing-x", failed[0].Contract.ListingID)
	assertContractInvariant(t, e)
}

func TestFailedContractsOnlyGrow(t *testing.T) {
	e := engagementIn(StageSearching)
	lengths := []int{}
	for i := 0; i < 3; i++ {
		require.NoError(t, e.PutUnderContract(ContractTerms{ListingID: "l", Price: decimal.NewFromInt(1)}, open(e, StageUnderContract), baseTime))
		lengths = append(lengths, len(e.FailedContracts()))
		if i == 1 {
			require.NoError(t, e.RecordClosing(baseTime, open(e, StageClosed), baseTime))
			lengths = append(lengths, len(e.FailedContracts()))
		}
		require.NoError(t, e.ContractFellThrough("", open(e, StageSearching), baseTime))
		lengths = append(lengths, len(e.FailedContracts()))
		assertContractInvariant(t, e)
	}
	for i := 1; i < len(lengths); i++ {
		assert.GreaterOrEqual(t, lengths[i], lengths[i-1])
	}
	assert.Len(t, e.FailedContracts(), 3)

	snap := e.FailedContracts()
	snap[0].Reason = "tampered"
	assert.NotEqual(t, "tampered", e.FailedContracts()[0].Reason)
}

func TestRecordClosing(t *testing.T) {
	t.Run("without contract", func(t *testing.T) {
		e := engagementIn(StageSearching)
		err := e.RecordClosing(baseTime, OpenGate(StageSearching, StageClosed), baseTime)
		assert.True(t, errors.Is(err, ErrInvalidOperation), "got %v", err)
		assert.Equal(t, StageSearching, e.Stage())
	})

	t.Run("stamps actual closing", func(t *testing.T) {
		e := engagementIn(StageSearching)
		require.NoError(t, e.PutUnderContract(ContractTerms{ListingID: "l", Price: decimal.NewFromInt(10)}, open(e, StageUnderContract), baseTime))
		closing := time.Date(2026, 4, 15, 17, 30, 0, 0, time.UTC)
		require.NoError(t, e.RecordClosing(closing, open(e, StageClosed), baseTime))
		assert.Equal(t, StageClosed, e.Stage())
		assert.Nil(t, e.CurrentContract())
		closed := e.Snapshot().ClosedContract
		require.NotNil(t, closed)
		require.NotNil(t, closed.ActualClosing)
		assert.Equal(t, "2026-04-15", closed.ActualClosing.Format(time.DateOnly))
	})
}

func TestMovedInIsTerminal(t *testing.T) {
	e := engagementIn(StageClosed)
	require.NoError(t, e.RecordMovedIn(baseTime, open(e, StageMovedIn), baseTime))
	assert.Equal(t, StageMovedIn, e.Stage())
	require.NotNil(t, e.Snapshot().MovedInOn)
	for _, to := range Stages {
		err := e.ChangeStage(StageChange{To: to}, OpenGate(StageMovedIn, to), baseTime)
		assert.Error(t, err, "MovedIn -> %s", to)
	}
}

func TestPauseResume(t *testing.T) {
	e := engagementIn(StageSearching)
	require.NoError(t, e.Pause("family emergency", open(e, StagePaused), baseTime))
	assert.Equal(t, StagePaused, e.Stage())
	assert.Contains(t, e.Notes(), "Paused: family emergency")

	require.NoError(t, e.Resume(open(e, StageSearching), baseTime))
	assert.Equal(t, StageSearching, e.Stage())
}

func TestChangeStageDispatch(t *testing.T) {
	tests := []struct {
		name string
		from Stage
		req  StageChange
		want Stage
	}{
		{"begin search", StageAwaitingAgreements, StageChange{To: StageSearching}, StageSearching},
		{"resume", StagePaused, StageChange{To: StageSearching}, StageSearching},
		{"pause", StageSearching, StageChange{To: StagePaused, Reason: "r"}, StagePaused},
		{"under contract", StageSearching, StageChange{To: StageUnderContract, ListingID: "l", Price: decimal.NewFromInt(5)}, StageUnderContract},
		{"closed to searching", StageClosed, StageChange{To: StageSearching, Reason: "title issue"}, StageSearching},
		{"moved in", StageClosed, StageChange{To: StageMovedIn}, StageMovedIn},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := engagementIn(tt.from)
			require.NoError(t, e.ChangeStage(tt.req, OpenGate(tt.from, tt.req.To), baseTime))
			assert.Equal(t, tt.want, e.Stage())
			assertContractInvariant(t, e)
		})
	}

	t.Run("back to awaiting agreements", func(t *testing.T) {
		e := engagementIn(StageSearching)
		err := e.ChangeStage(StageChange{To: StageAwaitingAgreements}, OpenGate(StageSearching, StageAwaitingAgreements), baseTime)
		assert.True(t, errors.Is(err, ErrIllegalTransition), "got %v", err)
	})

	t.Run("unknown stage", func(t *testing.T) {
		e := engagementIn(StageSearching)
		err := e.ChangeStage(StageChange{To: "Teleported"}, GateDecision{}, baseTime)
		assert.True(t, errors.Is(err, ErrValidation), "got %v", err)
	})
}

func TestPutUnderContractValidation(t *testing.T) {
	e := engagementIn(StageSearching)
	err := e.PutUnderContract(ContractTerms{ListingID: "l", Price: decimal.Zero}, open(e, StageUnderContract), baseTime)
	assert.True(t, errors.Is(err, ErrValidation), "got %v", err)
	assert.Equal(t, StageSearching, e.Stage())
	assert.Nil(t, e.CurrentContract())
}

func TestInactiveEngagementRejectsStageChange(t *testing.T) {
	snap := engagementIn(StageSearching).Snapshot()
	snap.Active = false
	e := RestoreEngagement(snap)
	err := e.Pause("", OpenGate(StageSearching, StagePaused), baseTime)
	assert.True(t, errors.Is(err, ErrInvalidState), "got %v", err)
}

func TestUpdatePreferencesAnyStage(t *testing.T) {
	for _, stage := range Stages {
		e := engagementIn(stage)
		err := e.UpdatePreferences(Preferences{
			Budget:           decimal.NewFromInt(350000),
			MinBedrooms:      3,
			MinBathrooms:     1.5,
			RequiredFeatures: []string{" Garage", "garage", "yard "},
		}, baseTime)
		require.NoError(t, err)
		assert.Equal(t, stage, e.Stage())
		assert.Equal(t, []string{"garage", "yard"}, e.Preferences().RequiredFeatures)
	}

	e := engagementIn(StageSearching)
	err := e.UpdatePreferences(Preferences{MinBedrooms: -1}, baseTime)
	assert.True(t, errors.Is(err, ErrValidation))
}
