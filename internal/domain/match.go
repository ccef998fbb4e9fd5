package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// MatchStatus is the acceptance state of a proposed listing.
type MatchStatus string

const (
	MatchIdentified       MatchStatus = "Identified"
	MatchShowingRequested MatchStatus = "ShowingRequested"
	MatchInterested       MatchStatus = "Interested"
	MatchOfferMade        MatchStatus = "OfferMade"
	MatchRejected         MatchStatus = "Rejected"
)

var matchTransitions = map[MatchStatus][]MatchStatus{
	MatchIdentified:       {MatchShowingRequested, MatchInterested, MatchOfferMade, MatchRejected},
	MatchShowingRequested: {MatchInterested, MatchOfferMade, MatchRejected},
	MatchInterested:       {MatchOfferMade, MatchRejected},
	MatchOfferMade:        {MatchRejected},
	MatchRejected:         {},
}

func (s MatchStatus) IsValid() bool {
	_, ok := matchTransitions[s]
	return ok
}

func (s MatchStatus) canTransitionTo(to MatchStatus) bool {
	for _, next := range matchTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s MatchStatus) next() []string {
	out := make([]string, 0, len(matchTransitions[s]))
	for _, n := range matchTransitions[s] {
		out = append(out, string(n))
	}
	return out
}

// MatchSnapshot is the persisted state of a match.
type MatchSnapshot struct {
	ID               string
	EngagementID     string
	ListingID        string
	Status           MatchStatus
	Score            int
	ScoreExplanation json.RawMessage
	OfferAmount      *decimal.Decimal
	AutoMatched      bool
	Notes            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (s MatchSnapshot) clone() MatchSnapshot {
	s.ScoreExplanation = append(json.RawMessage(nil), s.ScoreExplanation...)
	if s.OfferAmount != nil {
		v := *s.OfferAmount
		s.OfferAmount = &v
	}
	return s
}

// NewMatchInput is the input to NewMatch.
type NewMatchInput struct {
	EngagementID     string
	ListingID        string
	Score            int
	ScoreExplanation json.RawMessage
	AutoMatched      bool
	Notes            string
}

// Match pairs one engagement with one listing.
type Match struct {
	s MatchSnapshot
	eventLog
}

// NewMatch creates a match in Identified.
func NewMatch(id string, in NewMatchInput, now time.Time) (*Match, error) {
	in.EngagementID = strings.TrimSpace(in.EngagementID)
	in.ListingID = strings.TrimSpace(in.ListingID)
	if in.EngagementID == "" || in.ListingID == "" {
		return nil, Validation("engagement id and listing id are required")
	}
	if err := validateScore(in.Score, in.ScoreExplanation); err != nil {
		return nil, err
	}
	m := &Match{s: MatchSnapshot{
		ID:               id,
		EngagementID:     in.EngagementID,
		ListingID:        in.ListingID,
		Status:           MatchIdentified,
		Score:            in.Score,
		ScoreExplanation: append(json.RawMessage(nil), in.ScoreExplanation...),
		AutoMatched:      in.AutoMatched,
		Notes:            strings.TrimSpace(in.Notes),
		CreatedAt:        now,
		UpdatedAt:        now,
	}}
	m.record(AggregateMatch, id, EventMatchCreated, now, map[string]any{
		"engagement_id": m.s.EngagementID,
		"listing_id":    m.s.ListingID,
		"score":         m.s.Score,
		"auto_matched":  m.s.AutoMatched,
	})
	return m, nil
}

// RestoreMatch rebuilds a match from persisted state.
func RestoreMatch(s MatchSnapshot) *Match { return &Match{s: s.clone()} }

func (m *Match) Snapshot() MatchSnapshot { return m.s.clone() }
func (m *Match) ID() string              { return m.s.ID }
func (m *Match) EngagementID() string    { return m.s.EngagementID }
func (m *Match) Status() MatchStatus     { return m.s.Status }

// StatusChange is the input to ChangeStatus. Notes, when set, replace the
// match notes in the same operation.
type StatusChange struct {
	Status      MatchStatus
	Notes       *string
	OfferAmount *decimal.Decimal
}

// ChangeStatus moves the match along its status table.
func (m *Match) ChangeStatus(c StatusChange, now time.Time) error {
	switch c.Status {
	case MatchShowingRequested:
		return m.RequestShowing(c.Notes, now)
	case MatchOfferMade:
		if c.OfferAmount == nil {
			return Validation("offer amount is required when making an offer")
		}
		return m.MarkOfferMade(*c.OfferAmount, c.Notes, now)
	}
	if !c.Status.IsValid() {
		return Validation("unknown match status %q", c.Status)
	}
	if err := m.checkMove(c.Status); err != nil {
		return err
	}
	m.apply(c.Status, nil, c.Notes, now)
	return nil
}

// RequestShowing moves Identified -> ShowingRequested.
func (m *Match) RequestShowing(notes *string, now time.Time) error {
	if m.s.Status != MatchIdentified {
		return InvalidOperation("showing can only be requested for an identified match; match %s is %s", m.s.ID, m.s.Status)
	}
	m.apply(MatchShowingRequested, nil, notes, now)
	return nil
}

// Offers are whole cents below a trillion.
var maxOfferAmount = decimal.New(1, 12)

// MarkOfferMade records the offer amount and moves to OfferMade.
func (m *Match) MarkOfferMade(amount decimal.Decimal, notes *string, now time.Time) error {
	if !amount.IsPositive() {
		return Validation("offer amount must be greater than zero")
	}
	if !amount.Equal(amount.Truncate(2)) {
		return Validation("offer amount %s has more than 2 decimal places", amount)
	}
	if amount.GreaterThanOrEqual(maxOfferAmount) {
		return Validation("offer amount %s must be below %s", amount, maxOfferAmount)
	}
	if err := m.checkMove(MatchOfferMade); err != nil {
		return err
	}
	m.apply(MatchOfferMade, &amount, notes, now)
	return nil
}

// UpdateScore replaces score and explanation without touching status.
func (m *Match) UpdateScore(score int, explanation json.RawMessage, now time.Time) error {
	if err := validateScore(score, explanation); err != nil {
		return err
	}
	m.s.Score = score
	m.s.ScoreExplanation = append(json.RawMessage(nil), explanation...)
	m.s.UpdatedAt = now
	return nil
}

func (m *Match) checkMove(to MatchStatus) error {
	if !m.s.Status.canTransitionTo(to) {
		return IllegalTransition("match status", string(m.s.Status), string(to), m.s.Status.next())
	}
	return nil
}

func (m *Match) apply(to MatchStatus, offer *decimal.Decimal, notes *string, now time.Time) {
	from := m.s.Status
	m.s.Status = to
	// the offer amount is present exactly while an offer stands
	m.s.OfferAmount = offer
	if notes != nil {
		m.s.Notes = strings.TrimSpace(*notes)
	}
	m.s.UpdatedAt = now
	payload := map[string]any{
		"engagement_id": m.s.EngagementID,
		"listing_id":    m.s.ListingID,
		"from":          string(from),
		"to":            string(to),
	}
	if offer != nil {
		payload["offer_amount"] = offer.String()
	}
	m.record(AggregateMatch, m.s.ID, EventMatchStatusChanged, now, payload)
}

func validateScore(score int, explanation json.RawMessage) error {
	if score < 0 || score > 100 {
		return Validation("score must be between 0 and 100, got %d", score)
	}
	if len(explanation) > 0 && !json.Valid(explanation) {
		return Validation("score explanation must be valid JSON")
	}
	return nil
}
