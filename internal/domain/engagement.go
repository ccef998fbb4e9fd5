package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Contract is an accepted offer on a listing.
type Contract struct {
	ListingID       string          `json:"listing_id"`
	Price           decimal.Decimal `json:"price"`
	ContractDate    time.Time       `json:"contract_date"`
	ExpectedClosing *time.Time      `json:"expected_closing,omitempty"`
	ActualClosing   *time.Time      `json:"actual_closing,omitempty"`
}

func (c Contract) clone() Contract {
	c.ExpectedClosing = cloneTime(c.ExpectedClosing)
	c.ActualClosing = cloneTime(c.ActualClosing)
	return c
}

// FailedContract is one contract attempt that fell through. Records are
// append-only.
type FailedContract struct {
	Contract Contract  `json:"contract"`
	FailedAt time.Time `json:"failed_at"`
	Reason   string    `json:"reason,omitempty"`
}

// ContractTerms is the input to PutUnderContract.
type ContractTerms struct {
	ListingID       string
	Price           decimal.Decimal
	ContractDate    *time.Time
	ExpectedClosing *time.Time
}

// EngagementSnapshot is the persisted state of an engagement.
type EngagementSnapshot struct {
	ID              string
	CaseID          string
	Sequence        int
	Stage           Stage
	StageChangedAt  time.Time
	CurrentContract *Contract
	ClosedContract  *Contract
	FailedContracts []FailedContract
	MovedInOn       *time.Time
	Preferences     Preferences
	Notes           string
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (s EngagementSnapshot) clone() EngagementSnapshot {
	out := s
	out.CurrentContract = cloneContract(s.CurrentContract)
	out.ClosedContract = cloneContract(s.ClosedContract)
	out.FailedContracts = make([]FailedContract, len(s.FailedContracts))
	for i, f := range s.FailedContracts {
		f.Contract = f.Contract.clone()
		out.FailedContracts[i] = f
	}
	out.MovedInOn = cloneTime(s.MovedInOn)
	out.Preferences = s.Preferences.clone()
	return out
}

// Engagement is one house-search attempt for an approved case.
type Engagement struct {
	s EngagementSnapshot
	eventLog
}

func newEngagement(id, caseID string, sequence int, now time.Time) *Engagement {
	e := &Engagement{s: EngagementSnapshot{
		ID:             id,
		CaseID:         caseID,
		Sequence:       sequence,
		Stage:          StageAwaitingAgreements,
		StageChangedAt: now,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}}
	return e
}

// RestoreEngagement rebuilds an engagement from persisted state.
func RestoreEngagement(s EngagementSnapshot) *Engagement {
	return &Engagement{s: s.clone()}
}

func (e *Engagement) Snapshot() EngagementSnapshot { return e.s.clone() }

func (e *Engagement) ID() string                   { return e.s.ID }
func (e *Engagement) CaseID() string               { return e.s.CaseID }
func (e *Engagement) Stage() Stage                 { return e.s.Stage }
func (e *Engagement) Active() bool                 { return e.s.Active }
func (e *Engagement) Notes() string                { return e.s.Notes }
func (e *Engagement) Preferences() Preferences     { return e.s.Preferences.clone() }
func (e *Engagement) CurrentContract() *Contract   { return cloneContract(e.s.CurrentContract) }
func (e *Engagement) FailedContracts() []FailedContract {
	return e.s.clone().FailedContracts
}

// StageChange is a generic stage-change request. The target stage selects
// the operation; the remaining fields feed it.
type StageChange struct {
	To              Stage
	Reason          string
	ListingID       string
	Price           decimal.Decimal
	ContractDate    *time.Time
	ExpectedClosing *time.Time
	Date            *time.Time
}

// ChangeStage dispatches to the operation implied by the target stage.
func (e *Engagement) ChangeStage(req StageChange, gate GateDecision, now time.Time) error {
	switch req.To {
	case StageSearching:
		switch e.s.Stage {
		case StagePaused:
			return e.Resume(gate, now)
		case StageUnderContract, StageClosed:
			return e.ContractFellThrough(req.Reason, gate, now)
		default:
			return e.BeginSearch(gate, now)
		}
	case StageUnderContract:
		return e.PutUnderContract(ContractTerms{
			ListingID:       req.ListingID,
			Price:           req.Price,
			ContractDate:    req.ContractDate,
			ExpectedClosing: req.ExpectedClosing,
		}, gate, now)
	case StageClosed:
		return e.RecordClosing(dateOr(req.Date, now), gate, now)
	case StageMovedIn:
		return e.RecordMovedIn(dateOr(req.Date, now), gate, now)
	case StagePaused:
		return e.Pause(req.Reason, gate, now)
	case StageAwaitingAgreements:
		// nothing moves an engagement back; a case starts a new engagement instead
		return IllegalTransition("engagement stage", string(e.s.Stage), string(req.To), stageNames(e.s.Stage.NextStages()))
	default:
		return Validation("unknown stage %q", req.To)
	}
}

// checkMove validates a move against the table and the injected gate decision.
func (e *Engagement) checkMove(to Stage, gate GateDecision) error {
	if !e.s.Active {
		return InvalidState("engagement %s is not active", e.s.ID)
	}
	from := e.s.Stage
	if !from.CanTransitionTo(to) {
		return IllegalTransition("engagement stage", string(from), string(to), stageNames(from.NextStages()))
	}
	if gate.From != from || gate.To != to {
		return InvalidOperation("gate decision for %s -> %s does not match %s -> %s", gate.From, gate.To, from, to)
	}
	if !gate.Allowed {
		return GateBlocked(from, to, gate.Missing)
	}
	return nil
}

func (e *Engagement) moveTo(to Stage, now time.Time, extra map[string]any) {
	from := e.s.Stage
	e.s.Stage = to
	e.s.StageChangedAt = now
	e.s.UpdatedAt = now
	payload := map[string]any{"case_id": e.s.CaseID, "from": string(from), "to": string(to)}
	for k, v := range extra {
		payload[k] = v
	}
	e.record(AggregateEngagement, e.s.ID, EventEngagementStageChanged, now, payload)
}

// BeginSearch moves AwaitingAgreements -> Searching once the agreements are on file.
func (e *Engagement) BeginSearch(gate GateDecision, now time.Time) error {
	if err := e.checkMove(StageSearching, gate); err != nil {
		return err
	}
	e.moveTo(StageSearching, now, nil)
	return nil
}

// PutUnderContract records an accepted offer and moves Searching -> UnderContract.
func (e *Engagement) PutUnderContract(terms ContractTerms, gate GateDecision, now time.Time) error {
	if err := e.checkMove(StageUnderContract, gate); err != nil {
		return err
	}
	listingID := strings.TrimSpace(terms.ListingID)
	if listingID == "" {
		return Validation("listing id is required")
	}
	if !terms.Price.IsPositive() {
		return Validation("contract price must be greater than zero")
	}
	e.s.CurrentContract = &Contract{
		ListingID:       listingID,
		Price:           terms.Price,
		ContractDate:    dateOr(terms.ContractDate, now),
		ExpectedClosing: dateOnlyPtr(terms.ExpectedClosing),
	}
	e.moveTo(StageUnderContract, now, map[string]any{"listing_id": listingID, "price": terms.Price.String()})
	return nil
}

// ContractFellThrough archives the contract in the failure history and
// returns the engagement to Searching. Valid from UnderContract or Closed.
func (e *Engagement) ContractFellThrough(reason string, gate GateDecision, now time.Time) error {
	if e.s.Stage != StageUnderContract && e.s.Stage != StageClosed {
		return IllegalTransition("engagement stage", string(e.s.Stage), string(StageSearching), stageNames(e.s.Stage.NextStages()))
	}
	if err := e.checkMove(StageSearching, gate); err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	contract := e.s.CurrentContract
	if contract == nil {
		contract = e.s.ClosedContract
	}
	if contract != nil {
		e.s.FailedContracts = append(e.s.FailedContracts, FailedContract{
			Contract: contract.clone(),
			FailedAt: now,
			Reason:   reason,
		})
		e.record(AggregateEngagement, e.s.ID, EventContractFailed, now, map[string]any{
			"case_id":    e.s.CaseID,
			"listing_id": contract.ListingID,
			"reason":     reason,
			"attempts":   len(e.s.FailedContracts),
		})
	}
	e.s.CurrentContract = nil
	e.s.ClosedContract = nil
	e.moveTo(StageSearching, now, map[string]any{"reason": reason})
	return nil
}

// RecordClosing stamps the actual closing date and moves UnderContract -> Closed.
func (e *Engagement) RecordClosing(closingDate time.Time, gate GateDecision, now time.Time) error {
	if e.s.CurrentContract == nil {
		return InvalidOperation("engagement %s has no current contract to close", e.s.ID)
	}
	if err := e.checkMove(StageClosed, gate); err != nil {
		return err
	}
	closed := e.s.CurrentContract.clone()
	d := dateOnly(closingDate)
	closed.ActualClosing = &d
	e.s.ClosedContract = &closed
	e.s.CurrentContract = nil
	e.moveTo(StageClosed, now, map[string]any{"listing_id": closed.ListingID, "closing_date": d.Format(time.DateOnly)})
	return nil
}

// RecordMovedIn moves Closed -> MovedIn.
func (e *Engagement) RecordMovedIn(date time.Time, gate GateDecision, now time.Time) error {
	if err := e.checkMove(StageMovedIn, gate); err != nil {
		return err
	}
	d := dateOnly(date)
	e.s.MovedInOn = &d
	e.moveTo(StageMovedIn, now, map[string]any{"moved_in_on": d.Format(time.DateOnly)})
	return nil
}

// Pause moves Searching -> Paused. The reason goes into the notes.
func (e *Engagement) Pause(reason string, gate GateDecision, now time.Time) error {
	if err := e.checkMove(StagePaused, gate); err != nil {
		return err
	}
	if reason = strings.TrimSpace(reason); reason != "" {
		e.s.Notes = appendNote(e.s.Notes, "Paused: "+reason)
	}
	e.moveTo(StagePaused, now, map[string]any{"reason": reason})
	return nil
}

// Resume moves Paused -> Searching.
func (e *Engagement) Resume(gate GateDecision, now time.Time) error {
	if e.s.Stage != StagePaused {
		return IllegalTransition("engagement stage", string(e.s.Stage), string(StageSearching), stageNames(e.s.Stage.NextStages()))
	}
	if err := e.checkMove(StageSearching, gate); err != nil {
		return err
	}
	e.moveTo(StageSearching, now, nil)
	return nil
}

// UpdatePreferences replaces the preferences snapshot. Allowed in any stage.
func (e *Engagement) UpdatePreferences(p Preferences, now time.Time) error {
	normalized, err := NormalizePreferences(p)
	if err != nil {
		return err
	}
	e.s.Preferences = normalized
	e.s.UpdatedAt = now
	e.record(AggregateEngagement, e.s.ID, EventPreferencesUpdated, now, map[string]any{"case_id": e.s.CaseID})
	return nil
}

// AppendNote adds a line to the free-text notes.
func (e *Engagement) AppendNote(text string, now time.Time) {
	if text = strings.TrimSpace(text); text == "" {
		return
	}
	e.s.Notes = appendNote(e.s.Notes, text)
	e.s.UpdatedAt = now
}

func (e *Engagement) deactivate(now time.Time) {
	if !e.s.Active {
		return
	}
	e.s.Active = false
	e.s.UpdatedAt = now
	e.record(AggregateEngagement, e.s.ID, EventEngagementDeactivated, now, map[string]any{"case_id": e.s.CaseID})
}

func appendNote(existing, line string) string {
	if existing == "" {
		return line
	}
	return existing + "\n" + line
}

func cloneContract(c *Contract) *Contract {
	if c == nil {
		return nil
	}
	out := c.clone()
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dateOnlyPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := dateOnly(*t)
	return &d
}

func dateOr(t *time.Time, now time.Time) time.Time {
	if t == nil {
		return dateOnly(now)
	}
	return dateOnly(*t)
}
