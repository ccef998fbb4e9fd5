package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"homeward/internal/domain"
)

type caseRepo struct{ q querier }

func (r caseRepo) Get(ctx context.Context, caseID string) (*domain.Case, error) {
	var (
		s         domain.CaseSnapshot
		applicant []byte
	)
	err := r.q.QueryRow(ctx, `
		SELECT id, decision, decision_notes, reviewer_id, reviewed_on, applicant,
		       created_by, created_at, updated_by, updated_at, deleted
		FROM cases
		WHERE id = $1 AND NOT deleted
		FOR UPDATE
	`, caseID).Scan(&s.ID, &s.Decision, &s.DecisionNotes, &s.ReviewerID, &s.ReviewedOn, &applicant,
		&s.Audit.CreatedBy, &s.Audit.CreatedAt, &s.Audit.UpdatedBy, &s.Audit.UpdatedAt, &s.Deleted)
	if err != nil {
		return nil, notFound(err, "case", caseID)
	}
	if err := json.Unmarshal(applicant, &s.Applicant); err != nil {
		return nil, fmt.Errorf("case %s applicant: %w", caseID, err)
	}
	engagements, err := loadEngagements(ctx, r.q, "case_id = $1", caseID)
	if err != nil {
		return nil, err
	}
	return domain.RestoreCase(s, engagements), nil
}

func (r caseRepo) Insert(ctx context.Context, c *domain.Case) error {
	s := c.Snapshot()
	applicant, err := json.Marshal(s.Applicant)
	if err != nil {
		return err
	}
	_, err = r.q.Exec(ctx, `
		INSERT INTO cases (id, decision, decision_notes, reviewer_id, reviewed_on, applicant,
		                   created_by, created_at, updated_by, updated_at, deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, s.ID, s.Decision, s.DecisionNotes, s.ReviewerID, dateArg(s.ReviewedOn), applicant,
		s.Audit.CreatedBy, s.Audit.CreatedAt, s.Audit.UpdatedBy, s.Audit.UpdatedAt, s.Deleted)
	if isUniqueViolation(err) {
		return domain.Conflict("case %s already exists", s.ID)
	}
	if err != nil {
		return err
	}
	return saveEngagements(ctx, r.q, c.Engagements())
}

func (r caseRepo) Save(ctx context.Context, c *domain.Case) error {
	s := c.Snapshot()
	applicant, err := json.Marshal(s.Applicant)
	if err != nil {
		return err
	}
	tag, err := r.q.Exec(ctx, `
		UPDATE cases
		SET decision = $2, decision_notes = $3, reviewer_id = $4, reviewed_on = $5, applicant = $6,
		    updated_by = $7, updated_at = $8, deleted = $9
		WHERE id = $1
	`, s.ID, s.Decision, s.DecisionNotes, s.ReviewerID, dateArg(s.ReviewedOn), applicant,
		s.Audit.UpdatedBy, s.Audit.UpdatedAt, s.Deleted)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("case", s.ID)
	}
	return saveEngagements(ctx, r.q, c.Engagements())
}

// dateArg strips the clock so date columns never depend on the session zone.
func dateArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.DateOnly)
}
