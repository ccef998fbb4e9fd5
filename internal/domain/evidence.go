package domain

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// EvidenceType is a named category of supporting document. System types
// cannot be deactivated by policy edits.
type EvidenceType struct {
	ID          string
	Name        string
	DisplayName string
	Active      bool
	System      bool
}

// Requirement says whether evidence of a type is needed for one stage move.
// Rows with Required=false are informational and never block.
type Requirement struct {
	From           Stage
	To             Stage
	EvidenceTypeID string
	Required       bool
}

// LedgerEntry is the current evidence on file for a (case, evidence type)
// pair. A re-upload replaces the previous entry.
type LedgerEntry struct {
	ID             string
	CaseID         string
	EvidenceTypeID string
	StorageKey     string
	FileName       string
	ContentType    string
	UploadedAt     time.Time
	UploadedBy     string
}

var evidenceNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{1,62}$`)

// NewEvidenceType validates and builds an active, non-system evidence type.
func NewEvidenceType(id, name, displayName string) (EvidenceType, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if !evidenceNamePattern.MatchString(name) {
		return EvidenceType{}, Validation("evidence type name %q must be a lowercase slug", name)
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return EvidenceType{}, Validation("evidence type display name is required")
	}
	return EvidenceType{ID: id, Name: name, DisplayName: displayName, Active: true}, nil
}

// Deactivate retires a type from policy. System types refuse.
func (t *EvidenceType) Deactivate() error {
	if t.System {
		return InvalidOperation("evidence type %q is a system type and cannot be deactivated", t.Name)
	}
	t.Active = false
	return nil
}

// NewRequirement validates a requirement row.
func NewRequirement(from, to Stage, evidenceTypeID string, required bool) (Requirement, error) {
	if !from.IsValid() || !to.IsValid() {
		return Requirement{}, Validation("unknown stage pair %s -> %s", from, to)
	}
	if from == to {
		return Requirement{}, Validation("requirement stages must differ")
	}
	if strings.TrimSpace(evidenceTypeID) == "" {
		return Requirement{}, Validation("evidence type id is required")
	}
	return Requirement{From: from, To: to, EvidenceTypeID: evidenceTypeID, Required: required}, nil
}

// ChecklistItem is one line of the evidence checklist for a stage move.
type ChecklistItem struct {
	EvidenceTypeID string
	Name           string
	DisplayName    string
	Required       bool
	OnFile         bool
}

// GateDecision is the outcome of evaluating the evidence gate for one move.
type GateDecision struct {
	From      Stage
	To        Stage
	Allowed   bool
	Missing   []string
	Checklist []ChecklistItem
}

// OpenGate is the decision for a move that no requirement row governs.
func OpenGate(from, to Stage) GateDecision {
	return GateDecision{From: from, To: to, Allowed: true}
}

// EvaluateGate decides whether evidence on file satisfies the requirement
// rows for from -> to. onFile holds the evidence type ids the case has a
// current ledger entry for. Requirements on inactive types are ignored.
// The function has no side effects.
func EvaluateGate(from, to Stage, requirements []Requirement, types []EvidenceType, onFile map[string]bool) GateDecision {
	byID := make(map[string]EvidenceType, len(types))
	for _, t := range types {
		byID[t.ID] = t
	}

	decision := GateDecision{From: from, To: to}
	for _, r := range requirements {
		if r.From != from || r.To != to {
			continue
		}
		t, ok := byID[r.EvidenceTypeID]
		if !ok || !t.Active {
			continue
		}
		item := ChecklistItem{
			EvidenceTypeID: t.ID,
			Name:           t.Name,
			DisplayName:    t.DisplayName,
			Required:       r.Required,
			OnFile:         onFile[t.ID],
		}
		decision.Checklist = append(decision.Checklist, item)
		if item.Required && !item.OnFile {
			decision.Missing = append(decision.Missing, t.ID)
		}
	}
	sort.SliceStable(decision.Checklist, func(i, j int) bool {
		if decision.Checklist[i].Required != decision.Checklist[j].Required {
			return decision.Checklist[i].Required
		}
		return decision.Checklist[i].Name < decision.Checklist[j].Name
	})
	sort.Strings(decision.Missing)
	decision.Allowed = len(decision.Missing) == 0
	return decision
}
