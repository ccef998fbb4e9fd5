package domain

import (
	"strings"
	"time"
)

// ShowingStatus is the appointment state of a showing.
type ShowingStatus string

const (
	ShowingScheduled ShowingStatus = "Scheduled"
	ShowingCompleted ShowingStatus = "Completed"
	ShowingCancelled ShowingStatus = "Cancelled"
	ShowingNoShow    ShowingStatus = "NoShow"
)

// DefaultShowingGrace tolerates clock skew when checking for past times.
const DefaultShowingGrace = time.Hour

func (s ShowingStatus) IsValid() bool {
	switch s {
	case ShowingScheduled, ShowingCompleted, ShowingCancelled, ShowingNoShow:
		return true
	}
	return false
}

// Label returns the human-readable label used in notes.
func (s ShowingStatus) Label() string {
	if s == ShowingNoShow {
		return "No-show"
	}
	return string(s)
}

// ShowingSnapshot is the persisted state of a showing.
type ShowingSnapshot struct {
	ID          string
	MatchID     string
	ScheduledAt time.Time
	Status      ShowingStatus
	BrokerID    string
	Notes       string
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (s ShowingSnapshot) clone() ShowingSnapshot {
	s.CompletedAt = cloneTime(s.CompletedAt)
	return s
}

// NewShowingInput is the input to ScheduleShowing.
type NewShowingInput struct {
	MatchID  string
	At       time.Time
	BrokerID string
	Notes    string
}

// Showing is an in-person viewing bound to one match.
type Showing struct {
	s ShowingSnapshot
	eventLog
}

// ScheduleShowing creates a showing in Scheduled. The time must not be
// earlier than now minus grace.
func ScheduleShowing(id string, in NewShowingInput, grace time.Duration, now time.Time) (*Showing, error) {
	in.MatchID = strings.TrimSpace(in.MatchID)
	if in.MatchID == "" {
		return nil, Validation("match id is required")
	}
	if err := checkNotPast(in.At, grace, now); err != nil {
		return nil, err
	}
	sh := &Showing{s: ShowingSnapshot{
		ID:          id,
		MatchID:     in.MatchID,
		ScheduledAt: in.At.UTC(),
		Status:      ShowingScheduled,
		BrokerID:    strings.TrimSpace(in.BrokerID),
		Notes:       strings.TrimSpace(in.Notes),
		CreatedAt:   now,
		UpdatedAt:   now,
	}}
	sh.record(AggregateShowing, id, EventShowingScheduled, now, map[string]any{
		"match_id":     sh.s.MatchID,
		"scheduled_at": sh.s.ScheduledAt,
	})
	return sh, nil
}

// RestoreShowing rebuilds a showing from persisted state.
func RestoreShowing(s ShowingSnapshot) *Showing { return &Showing{s: s.clone()} }

func (sh *Showing) Snapshot() ShowingSnapshot { return sh.s.clone() }
func (sh *Showing) ID() string                { return sh.s.ID }
func (sh *Showing) MatchID() string           { return sh.s.MatchID }
func (sh *Showing) Status() ShowingStatus     { return sh.s.Status }

// Reschedule moves the appointment. Only valid while Scheduled.
func (sh *Showing) Reschedule(at time.Time, grace time.Duration, now time.Time) error {
	if sh.s.Status != ShowingScheduled {
		return InvalidState("showing %s is %s; only scheduled showings can be rescheduled", sh.s.ID, sh.s.Status)
	}
	if err := checkNotPast(at, grace, now); err != nil {
		return err
	}
	previous := sh.s.ScheduledAt
	sh.s.ScheduledAt = at.UTC()
	sh.s.UpdatedAt = now
	sh.record(AggregateShowing, sh.s.ID, EventShowingRescheduled, now, map[string]any{
		"match_id": sh.s.MatchID,
		"from":     previous,
		"to":       sh.s.ScheduledAt,
	})
	return nil
}

// Close moves a scheduled showing to one of its terminal statuses. notes is
// appended to the existing notes under the status label.
func (sh *Showing) Close(status ShowingStatus, notes string, now time.Time) error {
	if status == ShowingScheduled || !status.IsValid() {
		return Validation("status must be %s, %s or %s", ShowingCompleted, ShowingCancelled, ShowingNoShow)
	}
	if sh.s.Status != ShowingScheduled {
		return IllegalTransition("showing status", string(sh.s.Status), string(status), []string{})
	}
	from := sh.s.Status
	sh.s.Status = status
	if notes = strings.TrimSpace(notes); notes != "" {
		sh.s.Notes = appendNote(sh.s.Notes, status.Label()+": "+notes)
	}
	if status == ShowingCompleted {
		at := now
		sh.s.CompletedAt = &at
	}
	sh.s.UpdatedAt = now
	sh.record(AggregateShowing, sh.s.ID, EventShowingStatusChanged, now, map[string]any{
		"match_id": sh.s.MatchID,
		"from":     string(from),
		"to":       string(status),
	})
	return nil
}

func checkNotPast(at time.Time, grace time.Duration, now time.Time) error {
	if at.IsZero() {
		return Validation("showing time is required")
	}
	if at.Before(now.Add(-grace)) {
		return Validation("showing time %s is in the past", at.UTC().Format(time.RFC3339))
	}
	return nil
}
