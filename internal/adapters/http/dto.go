package httpadapter

import (
	"encoding/json"
	"time"

	"github.com/oapi-codegen/runtime/types"
	"github.com/shopspring/decimal"

	"homeward/internal/domain"
	"homeward/internal/ports"
)

type childRequest struct {
	Name string `json:"name" validate:"required"`
	Age  int    `json:"age" validate:"min=0,max=30"`
}

type submitCaseRequest struct {
	PrimaryName   string         `json:"primary_name" validate:"required"`
	SecondaryName string         `json:"secondary_name"`
	Email         string         `json:"email" validate:"omitempty,email"`
	Phone         string         `json:"phone"`
	Address       string         `json:"address"`
	Children      []childRequest `json:"children" validate:"dive"`
}

func (req submitCaseRequest) applicant() domain.Applicant {
	a := domain.Applicant{
		PrimaryName:   req.PrimaryName,
		SecondaryName: req.SecondaryName,
		Email:         req.Email,
		Phone:         req.Phone,
		Address:       req.Address,
	}
	for _, ch := range req.Children {
		a.Children = append(a.Children, domain.Child{Name: ch.Name, Age: ch.Age})
	}
	return a
}

type decisionRequest struct {
	Decision   string      `json:"decision" validate:"required,oneof=Approved Rejected"`
	Notes      string      `json:"notes"`
	ReviewerID string      `json:"reviewer_id"`
	ReviewDate *types.Date `json:"review_date"`
}

type stageChangeRequest struct {
	To              string           `json:"to" validate:"required"`
	Reason          string           `json:"reason"`
	ListingID       string           `json:"listing_id"`
	Price           *decimal.Decimal `json:"price"`
	ContractDate    *types.Date      `json:"contract_date"`
	ExpectedClosing *types.Date      `json:"expected_closing"`
	Date            *types.Date      `json:"date"`
}

func (req stageChangeRequest) change() domain.StageChange {
	c := domain.StageChange{
		To:              domain.Stage(req.To),
		Reason:          req.Reason,
		ListingID:       req.ListingID,
		ContractDate:    dateTime(req.ContractDate),
		ExpectedClosing: dateTime(req.ExpectedClosing),
		Date:            dateTime(req.Date),
	}
	if req.Price != nil {
		c.Price = *req.Price
	}
	return c
}

type proximityRequest struct {
	Label    string  `json:"label" validate:"required"`
	Address  string  `json:"address" validate:"required"`
	MaxMiles float64 `json:"max_miles" validate:"gt=0"`
}

type preferencesRequest struct {
	Budget           decimal.Decimal    `json:"budget"`
	MinBedrooms      int                `json:"min_bedrooms" validate:"min=0"`
	MinBathrooms     float64            `json:"min_bathrooms" validate:"min=0"`
	RequiredFeatures []string           `json:"required_features"`
	MoveTimeline     string             `json:"move_timeline"`
	Proximity        []proximityRequest `json:"proximity" validate:"dive"`
}

func (req preferencesRequest) preferences() domain.Preferences {
	p := domain.Preferences{
		Budget:           req.Budget,
		MinBedrooms:      req.MinBedrooms,
		MinBathrooms:     req.MinBathrooms,
		RequiredFeatures: req.RequiredFeatures,
		MoveTimeline:     req.MoveTimeline,
	}
	for _, pc := range req.Proximity {
		p.Proximity = append(p.Proximity, domain.ProximityConstraint{Label: pc.Label, Address: pc.Address, MaxMiles: pc.MaxMiles})
	}
	return p
}

type noteRequest struct {
	Text string `json:"text" validate:"required"`
}

type createMatchRequest struct {
	ListingID        string          `json:"listing_id" validate:"required"`
	Score            int             `json:"score" validate:"min=0,max=100"`
	ScoreExplanation json.RawMessage `json:"score_explanation"`
	AutoMatched      bool            `json:"auto_matched"`
	Notes            string          `json:"notes"`
}

type matchStatusRequest struct {
	Status      string           `json:"status" validate:"required"`
	Notes       *string          `json:"notes"`
	OfferAmount *decimal.Decimal `json:"offer_amount"`
}

type scoreRequest struct {
	Score            *int            `json:"score" validate:"required,min=0,max=100"`
	ScoreExplanation json.RawMessage `json:"score_explanation"`
}

type showingBatchRequest struct {
	MatchIDs []types.UUID `json:"match_ids" validate:"required,min=1"`
}

type scheduleShowingRequest struct {
	At       *time.Time `json:"at" validate:"required"`
	BrokerID string     `json:"broker_id"`
	Notes    string     `json:"notes"`
}

type rescheduleRequest struct {
	At *time.Time `json:"at" validate:"required"`
}

type showingStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Notes  string `json:"notes"`
}

type evidenceTypeRequest struct {
	Name        string `json:"name" validate:"required"`
	DisplayName string `json:"display_name" validate:"required"`
}

type requirementRequest struct {
	From           string `json:"from" validate:"required"`
	To             string `json:"to" validate:"required"`
	EvidenceTypeID string `json:"evidence_type_id" validate:"required"`
	Required       bool   `json:"required"`
}

type caseResponse struct {
	ID            string               `json:"id"`
	Decision      string               `json:"decision"`
	DecisionNotes string               `json:"decision_notes,omitempty"`
	ReviewerID    string               `json:"reviewer_id,omitempty"`
	ReviewedOn    *types.Date          `json:"reviewed_on,omitempty"`
	Applicant     domain.Applicant     `json:"applicant"`
	CreatedBy     string               `json:"created_by"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedBy     string               `json:"updated_by"`
	UpdatedAt     time.Time            `json:"updated_at"`
	Engagements   []engagementResponse `json:"engagements"`
}

func newCaseResponse(v ports.CaseView) caseResponse {
	c := v.Case
	out := caseResponse{
		ID:            c.ID,
		Decision:      string(c.Decision),
		DecisionNotes: c.DecisionNotes,
		ReviewerID:    c.ReviewerID,
		ReviewedOn:    apiDate(c.ReviewedOn),
		Applicant:     c.Applicant,
		CreatedBy:     c.Audit.CreatedBy,
		CreatedAt:     c.Audit.CreatedAt,
		UpdatedBy:     c.Audit.UpdatedBy,
		UpdatedAt:     c.Audit.UpdatedAt,
		Engagements:   make([]engagementResponse, 0, len(v.Engagements)),
	}
	for _, e := range v.Engagements {
		out.Engagements = append(out.Engagements, newEngagementResponse(e))
	}
	return out
}

type engagementResponse struct {
	ID              string                  `json:"id"`
	CaseID          string                  `json:"case_id"`
	Sequence        int                     `json:"sequence"`
	Stage           string                  `json:"stage"`
	StageLabel      string                  `json:"stage_label"`
	StageChangedAt  time.Time               `json:"stage_changed_at"`
	CurrentContract *domain.Contract        `json:"current_contract,omitempty"`
	ClosedContract  *domain.Contract        `json:"closed_contract,omitempty"`
	FailedContracts []domain.FailedContract `json:"failed_contracts"`
	MovedInOn       *types.Date             `json:"moved_in_on,omitempty"`
	Preferences     domain.Preferences      `json:"preferences"`
	Notes           string                  `json:"notes,omitempty"`
	Active          bool                    `json:"active"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
}

func newEngagementResponse(e domain.EngagementSnapshot) engagementResponse {
	failed := e.FailedContracts
	if failed == nil {
		failed = []domain.FailedContract{}
	}
	return engagementResponse{
		ID:              e.ID,
		CaseID:          e.CaseID,
		Sequence:        e.Sequence,
		Stage:           string(e.Stage),
		StageLabel:      e.Stage.Label(),
		StageChangedAt:  e.StageChangedAt,
		CurrentContract: e.CurrentContract,
		ClosedContract:  e.ClosedContract,
		FailedContracts: failed,
		MovedInOn:       apiDate(e.MovedInOn),
		Preferences:     e.Preferences,
		Notes:           e.Notes,
		Active:          e.Active,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

type checklistItemResponse struct {
	EvidenceTypeID string `json:"evidence_type_id"`
	Name           string `json:"name"`
	DisplayName    string `json:"display_name"`
	Required       bool   `json:"required"`
	OnFile         bool   `json:"on_file"`
}

type gateResponse struct {
	From      string                  `json:"from"`
	To        string                  `json:"to"`
	Allowed   bool                    `json:"allowed"`
	Missing   []string                `json:"missing"`
	Checklist []checklistItemResponse `json:"checklist"`
}

func newGateResponse(d domain.GateDecision) gateResponse {
	out := gateResponse{
		From:      string(d.From),
		To:        string(d.To),
		Allowed:   d.Allowed,
		Missing:   append([]string{}, d.Missing...),
		Checklist: make([]checklistItemResponse, 0, len(d.Checklist)),
	}
	for _, it := range d.Checklist {
		out.Checklist = append(out.Checklist, checklistItemResponse{
			EvidenceTypeID: it.EvidenceTypeID,
			Name:           it.Name,
			DisplayName:    it.DisplayName,
			Required:       it.Required,
			OnFile:         it.OnFile,
		})
	}
	return out
}

type evidenceTypeResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Active      bool   `json:"active"`
	System      bool   `json:"system"`
}

func newEvidenceTypeResponse(t domain.EvidenceType) evidenceTypeResponse {
	return evidenceTypeResponse{ID: t.ID, Name: t.Name, DisplayName: t.DisplayName, Active: t.Active, System: t.System}
}

type requirementResponse struct {
	From           string `json:"from"`
	To             string `json:"to"`
	EvidenceTypeID string `json:"evidence_type_id"`
	Required       bool   `json:"required"`
}

func newRequirementResponse(r domain.Requirement) requirementResponse {
	return requirementResponse{From: string(r.From), To: string(r.To), EvidenceTypeID: r.EvidenceTypeID, Required: r.Required}
}

type ledgerEntryResponse struct {
	ID             string    `json:"id"`
	CaseID         string    `json:"case_id"`
	EvidenceTypeID string    `json:"evidence_type_id"`
	FileName       string    `json:"file_name"`
	ContentType    string    `json:"content_type,omitempty"`
	UploadedAt     time.Time `json:"uploaded_at"`
	UploadedBy     string    `json:"uploaded_by"`
}

func newLedgerEntryResponse(e domain.LedgerEntry) ledgerEntryResponse {
	return ledgerEntryResponse{
		ID:             e.ID,
		CaseID:         e.CaseID,
		EvidenceTypeID: e.EvidenceTypeID,
		FileName:       e.FileName,
		ContentType:    e.ContentType,
		UploadedAt:     e.UploadedAt,
		UploadedBy:     e.UploadedBy,
	}
}

type matchResponse struct {
	ID               string           `json:"id"`
	EngagementID     string           `json:"engagement_id"`
	ListingID        string           `json:"listing_id"`
	Status           string           `json:"status"`
	Score            int              `json:"score"`
	ScoreExplanation json.RawMessage  `json:"score_explanation,omitempty"`
	OfferAmount      *decimal.Decimal `json:"offer_amount,omitempty"`
	AutoMatched      bool             `json:"auto_matched"`
	Notes            string           `json:"notes,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

func newMatchResponse(m domain.MatchSnapshot) matchResponse {
	return matchResponse{
		ID:               m.ID,
		EngagementID:     m.EngagementID,
		ListingID:        m.ListingID,
		Status:           string(m.Status),
		Score:            m.Score,
		ScoreExplanation: m.ScoreExplanation,
		OfferAmount:      m.OfferAmount,
		AutoMatched:      m.AutoMatched,
		Notes:            m.Notes,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

type showingResponse struct {
	ID          string     `json:"id"`
	MatchID     string     `json:"match_id"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	Status      string     `json:"status"`
	StatusLabel string     `json:"status_label"`
	BrokerID    string     `json:"broker_id,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func newShowingResponse(s domain.ShowingSnapshot) showingResponse {
	return showingResponse{
		ID:          s.ID,
		MatchID:     s.MatchID,
		ScheduledAt: s.ScheduledAt,
		Status:      string(s.Status),
		StatusLabel: s.Status.Label(),
		BrokerID:    s.BrokerID,
		Notes:       s.Notes,
		CompletedAt: s.CompletedAt,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func mapSlice[T, R any](in []T, fn func(T) R) []R {
	out := make([]R, 0, len(in))
	for _, v := range in {
		out = append(out, fn(v))
	}
	return out
}

func dateTime(d *types.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

func apiDate(t *time.Time) *types.Date {
	if t == nil {
		return nil
	}
	return &types.Date{Time: *t}
}
