package domain

import (
	"sort"
	"strings"
	"time"
)

// Decision is the board-decision state of a case.
type Decision string

const (
	DecisionSubmitted Decision = "Submitted"
	DecisionApproved  Decision = "Approved"
	DecisionRejected  Decision = "Rejected"
)

// IsValid reports whether d is a known decision state.
func (d Decision) IsValid() bool {
	switch d {
	case DecisionSubmitted, DecisionApproved, DecisionRejected:
		return true
	}
	return false
}

// Child is a child in the applicant household.
type Child struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

// Applicant is the family profile. The lifecycle engine does not interpret it.
type Applicant struct {
	PrimaryName   string  `json:"primary_name"`
	SecondaryName string  `json:"secondary_name,omitempty"`
	Email         string  `json:"email,omitempty"`
	Phone         string  `json:"phone,omitempty"`
	Address       string  `json:"address,omitempty"`
	Children      []Child `json:"children,omitempty"`
}

// Audit tracks who touched a record and when.
type Audit struct {
	CreatedBy string
	CreatedAt time.Time
	UpdatedBy string
	UpdatedAt time.Time
}

func (a *Audit) touch(actor string, now time.Time) {
	a.UpdatedBy = actor
	a.UpdatedAt = now
}

// CaseSnapshot is the persisted state of a case, without its engagements.
type CaseSnapshot struct {
	ID            string
	Decision      Decision
	DecisionNotes string
	ReviewerID    string
	ReviewedOn    *time.Time
	Applicant     Applicant
	Audit         Audit
	Deleted       bool
}

func (s CaseSnapshot) clone() CaseSnapshot {
	s.ReviewedOn = cloneTime(s.ReviewedOn)
	s.Applicant.Children = append([]Child(nil), s.Applicant.Children...)
	return s
}

// BoardDecision is the input to RecordDecision.
type BoardDecision struct {
	Decision   Decision
	Notes      string
	ReviewerID string
	ReviewDate *time.Time
}

// Case is one family's relocation application. It owns the ordered list of
// search engagements and keeps at most one of them active.
type Case struct {
	s           CaseSnapshot
	engagements []*Engagement
	eventLog
}

// SubmitCase creates a case in Submitted.
func SubmitCase(id string, applicant Applicant, actor string, now time.Time) (*Case, error) {
	applicant.PrimaryName = strings.TrimSpace(applicant.PrimaryName)
	if applicant.PrimaryName == "" {
		return nil, Validation("primary applicant name is required")
	}
	applicant.SecondaryName = strings.TrimSpace(applicant.SecondaryName)
	applicant.Email = strings.TrimSpace(applicant.Email)
	applicant.Phone = strings.TrimSpace(applicant.Phone)
	applicant.Address = strings.TrimSpace(applicant.Address)
	applicant.Children = append([]Child(nil), applicant.Children...)
	for i, ch := range applicant.Children {
		if ch.Age < 0 {
			return nil, Validation("child %d: age must not be negative", i)
		}
		applicant.Children[i].Name = strings.TrimSpace(ch.Name)
	}

	c := &Case{s: CaseSnapshot{
		ID:        id,
		Decision:  DecisionSubmitted,
		Applicant: applicant,
		Audit:     Audit{CreatedBy: actor, CreatedAt: now, UpdatedBy: actor, UpdatedAt: now},
	}}
	c.record(AggregateCase, id, EventCaseSubmitted, now, nil)
	return c, nil
}

// RestoreCase rebuilds a case from persisted state. Engagements are ordered
// by sequence.
func RestoreCase(s CaseSnapshot, engagements []EngagementSnapshot) *Case {
	c := &Case{s: s.clone()}
	for _, es := range engagements {
		c.engagements = append(c.engagements, RestoreEngagement(es))
	}
	sort.SliceStable(c.engagements, func(i, j int) bool {
		return c.engagements[i].s.Sequence < c.engagements[j].s.Sequence
	})
	return c
}

func (c *Case) ID() string             { return c.s.ID }
func (c *Case) Decision() Decision     { return c.s.Decision }
func (c *Case) Snapshot() CaseSnapshot { return c.s.clone() }

// Engagements returns copies of the engagements in sequence order.
func (c *Case) Engagements() []EngagementSnapshot {
	out := make([]EngagementSnapshot, len(c.engagements))
	for i, e := range c.engagements {
		out[i] = e.Snapshot()
	}
	return out
}

// ActiveEngagement returns the active engagement, if any.
func (c *Case) ActiveEngagement() (EngagementSnapshot, bool) {
	for _, e := range c.engagements {
		if e.s.Active {
			return e.Snapshot(), true
		}
	}
	return EngagementSnapshot{}, false
}

// PullEvents drains the case's events followed by its engagements' events.
func (c *Case) PullEvents() []Event {
	out := c.eventLog.PullEvents()
	for _, e := range c.engagements {
		out = append(out, e.PullEvents()...)
	}
	return out
}

// RecordDecision applies the one-shot board decision. Approval starts the
// first engagement; engagementID names it. The new engagement is returned on
// approval and nil on rejection.
func (c *Case) RecordDecision(d BoardDecision, engagementID, actor string, now time.Time) (*EngagementSnapshot, error) {
	if c.s.Deleted {
		return nil, InvalidState("case %s is deleted", c.s.ID)
	}
	if d.Decision != DecisionApproved && d.Decision != DecisionRejected {
		return nil, Validation("decision must be %s or %s", DecisionApproved, DecisionRejected)
	}
	if c.s.Decision != DecisionSubmitted {
		return nil, InvalidState("case %s already decided: %s", c.s.ID, c.s.Decision)
	}

	c.s.Decision = d.Decision
	c.s.DecisionNotes = strings.TrimSpace(d.Notes)
	c.s.ReviewerID = strings.TrimSpace(d.ReviewerID)
	reviewed := dateOr(d.ReviewDate, now)
	c.s.ReviewedOn = &reviewed
	c.s.Audit.touch(actor, now)

	if d.Decision == DecisionRejected {
		c.record(AggregateCase, c.s.ID, EventCaseRejected, now, map[string]any{"reviewer_id": c.s.ReviewerID})
		return nil, nil
	}
	c.record(AggregateCase, c.s.ID, EventCaseApproved, now, map[string]any{"reviewer_id": c.s.ReviewerID})
	e := c.appendEngagement(engagementID, now)
	return &e, nil
}

// StartNewEngagement deactivates any active engagement and appends a fresh
// one in AwaitingAgreements. Only approved cases can search.
func (c *Case) StartNewEngagement(engagementID, actor string, now time.Time) (EngagementSnapshot, error) {
	if c.s.Deleted {
		return EngagementSnapshot{}, InvalidState("case %s is deleted", c.s.ID)
	}
	if c.s.Decision != DecisionApproved {
		return EngagementSnapshot{}, InvalidState("case %s is %s; only approved cases can start an engagement", c.s.ID, c.s.Decision)
	}
	c.s.Audit.touch(actor, now)
	return c.appendEngagement(engagementID, now), nil
}

func (c *Case) appendEngagement(id string, now time.Time) EngagementSnapshot {
	for _, e := range c.engagements {
		e.deactivate(now)
	}
	e := newEngagement(id, c.s.ID, len(c.engagements)+1, now)
	e.record(AggregateEngagement, id, EventEngagementStarted, now, map[string]any{
		"case_id":  c.s.ID,
		"sequence": e.s.Sequence,
	})
	c.engagements = append(c.engagements, e)
	return e.Snapshot()
}
