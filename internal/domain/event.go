package domain

import (
	"time"

	"github.com/google/uuid"
)

// Aggregate type names used on events.
const (
	AggregateCase       = "case"
	AggregateEngagement = "engagement"
	AggregateMatch      = "match"
	AggregateShowing    = "showing"
)

// Event types.
const (
	EventCaseSubmitted          = "case.submitted"
	EventCaseApproved           = "case.approved"
	EventCaseRejected           = "case.rejected"
	EventEngagementStarted      = "engagement.started"
	EventEngagementDeactivated  = "engagement.deactivated"
	EventEngagementStageChanged = "engagement.stage_changed"
	EventContractFailed         = "engagement.contract_failed"
	EventPreferencesUpdated     = "engagement.preferences_updated"
	EventMatchCreated           = "match.created"
	EventMatchStatusChanged     = "match.status_changed"
	EventShowingScheduled       = "showing.scheduled"
	EventShowingRescheduled     = "showing.rescheduled"
	EventShowingStatusChanged   = "showing.status_changed"
)

// Event is a one-shot domain event. Aggregates accumulate events during a
// command; the orchestration layer drains them into the outbox in the same
// unit of work, so nothing is published for a change that was rolled back.
type Event struct {
	ID            string
	AggregateType string
	AggregateID   string
	Type          string
	OccurredAt    time.Time
	Payload       map[string]any
}

type eventLog struct {
	pending []Event
}

func (l *eventLog) record(aggregateType, aggregateID, eventType string, at time.Time, payload map[string]any) {
	l.pending = append(l.pending, Event{
		ID:            uuid.NewString(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Type:          eventType,
		OccurredAt:    at,
		Payload:       payload,
	})
}

// PullEvents returns and clears the pending events.
func (l *eventLog) PullEvents() []Event {
	out := l.pending
	l.pending = nil
	return out
}

// PendingEvents returns a copy of the pending events without draining them.
func (l *eventLog) PendingEvents() []Event {
	return append([]Event(nil), l.pending...)
}
