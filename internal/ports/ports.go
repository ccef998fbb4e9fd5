package ports

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"homeward/internal/domain"
)

// CaseView is a case with its engagements in sequence order.
type CaseView struct {
	Case        domain.CaseSnapshot
	Engagements []domain.EngagementSnapshot
}

// Cases handles intake and board decisions.
type Cases interface {
	Submit(ctx context.Context, applicant domain.Applicant) (CaseView, error)
	Get(ctx context.Context, caseID string) (CaseView, error)
	RecordBoardDecision(ctx context.Context, caseID string, d domain.BoardDecision) (CaseView, error)
	StartNewEngagement(ctx context.Context, caseID string) (domain.EngagementSnapshot, error)
}

// Engagements drives the search stage machine.
type Engagements interface {
	Get(ctx context.Context, engagementID string) (domain.EngagementSnapshot, error)
	ChangeStage(ctx context.Context, engagementID string, req domain.StageChange) (domain.EngagementSnapshot, error)
	UpdatePreferences(ctx context.Context, engagementID string, p domain.Preferences) (domain.EngagementSnapshot, error)
	AppendNote(ctx context.Context, engagementID, text string) (domain.EngagementSnapshot, error)
	EvaluateStageRequirements(ctx context.Context, engagementID string, to domain.Stage) (domain.GateDecision, error)
}

// UploadInput describes one evidence file.
type UploadInput struct {
	CaseID         string
	EvidenceTypeID string
	FileName       string
	ContentType    string
	Size           int64
	Body           io.Reader
}

// Evidence manages the evidence catalog, requirement rows and the ledger.
type Evidence interface {
	Evaluate(ctx context.Context, caseID string, from, to domain.Stage) (domain.GateDecision, error)
	ListTypes(ctx context.Context) ([]domain.EvidenceType, error)
	CreateType(ctx context.Context, name, displayName string) (domain.EvidenceType, error)
	DeactivateType(ctx context.Context, typeID string) (domain.EvidenceType, error)
	ListRequirements(ctx context.Context) ([]domain.Requirement, error)
	SetRequirement(ctx context.Context, r domain.Requirement) (domain.Requirement, error)
	RemoveRequirement(ctx context.Context, from, to domain.Stage, typeID string) error
	RecordUpload(ctx context.Context, in UploadInput) (domain.LedgerEntry, error)
	ListCaseEvidence(ctx context.Context, caseID string) ([]domain.LedgerEntry, error)
	AccessURL(ctx context.Context, caseID, typeID string) (string, error)
}

// Matches manages listing matches for an engagement.
type Matches interface {
	Create(ctx context.Context, in domain.NewMatchInput) (domain.MatchSnapshot, error)
	Get(ctx context.Context, matchID string) (domain.MatchSnapshot, error)
	List(ctx context.Context, engagementID string) ([]domain.MatchSnapshot, error)
	UpdateStatus(ctx context.Context, matchID string, c domain.StatusChange) (domain.MatchSnapshot, error)
	UpdateScore(ctx context.Context, matchID string, score int, explanation json.RawMessage) (domain.MatchSnapshot, error)
	RequestShowingsBatch(ctx context.Context, engagementID string, matchIDs []string) ([]domain.MatchSnapshot, error)
}

// Showings manages appointments for a match.
type Showings interface {
	Schedule(ctx context.Context, in domain.NewShowingInput) (domain.ShowingSnapshot, error)
	Get(ctx context.Context, showingID string) (domain.ShowingSnapshot, error)
	List(ctx context.Context, matchID string) ([]domain.ShowingSnapshot, error)
	Reschedule(ctx context.Context, showingID string, at time.Time) (domain.ShowingSnapshot, error)
	UpdateStatus(ctx context.Context, showingID string, status domain.ShowingStatus, notes string) (domain.ShowingSnapshot, error)
}

// Clock is injected wherever a transition is timestamped.
type Clock interface {
	Now() time.Time
}

// SystemClock reads wall time in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// EvidenceStorage keeps evidence files. The engine only handles keys.
type EvidenceStorage interface {
	Upload(ctx context.Context, in UploadInput) (storageKey string, err error)
	PresignGet(ctx context.Context, storageKey string, ttl time.Duration) (url string, err error)
}
