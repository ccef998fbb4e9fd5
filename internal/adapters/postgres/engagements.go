package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"homeward/internal/domain"
)

type engagementRepo struct{ q querier }

func (r engagementRepo) Get(ctx context.Context, engagementID string) (*domain.Engagement, error) {
	list, err := loadEngagements(ctx, r.q, "id = $1", engagementID)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, domain.NotFound("engagement", engagementID)
	}
	return domain.RestoreEngagement(list[0]), nil
}

func (r engagementRepo) Save(ctx context.Context, e *domain.Engagement) error {
	return saveEngagement(ctx, r.q, e.Snapshot())
}

// loadEngagements locks and returns the engagements matching where, ordered
// by sequence, with their failed contract history.
func loadEngagements(ctx context.Context, q querier, where string, arg any) ([]domain.EngagementSnapshot, error) {
	rows, err := q.Query(ctx, `
		SELECT id, case_id, sequence, stage, stage_changed_at, current_contract, closed_contract,
		       moved_in_on, preferences, notes, active, created_at, updated_at
		FROM engagements
		WHERE `+where+`
		ORDER BY sequence
		FOR UPDATE
	`, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.EngagementSnapshot
	for rows.Next() {
		var (
			s                      domain.EngagementSnapshot
			current, closed, prefs []byte
		)
		if err := rows.Scan(&s.ID, &s.CaseID, &s.Sequence, &s.Stage, &s.StageChangedAt, &current, &closed,
			&s.MovedInOn, &prefs, &s.Notes, &s.Active, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		if s.CurrentContract, err = decodeContract(current); err != nil {
			return nil, fmt.Errorf("engagement %s current contract: %w", s.ID, err)
		}
		if s.ClosedContract, err = decodeContract(closed); err != nil {
			return nil, fmt.Errorf("engagement %s closed contract: %w", s.ID, err)
		}
		if err := json.Unmarshal(prefs, &s.Preferences); err != nil {
			return nil, fmt.Errorf("engagement %s preferences: %w", s.ID, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if out[i].FailedContracts, err = loadFailedContracts(ctx, q, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func loadFailedContracts(ctx context.Context, q querier, engagementID string) ([]domain.FailedContract, error) {
	rows, err := q.Query(ctx, `
		SELECT contract, failed_at, reason
		FROM engagement_failed_contracts
		WHERE engagement_id = $1
		ORDER BY position
	`, engagementID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.FailedContract
	for rows.Next() {
		var (
			fc  domain.FailedContract
			raw []byte
		)
		if err := rows.Scan(&raw, &fc.FailedAt, &fc.Reason); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &fc.Contract); err != nil {
			return nil, fmt.Errorf("engagement %s failed contract: %w", engagementID, err)
		}
		out = append(out, fc)
	}
	return out, rows.Err()
}

// saveEngagements writes in sequence order so a deactivated engagement is
// stored before its successor claims the active slot.
func saveEngagements(ctx context.Context, q querier, list []domain.EngagementSnapshot) error {
	sort.Slice(list, func(i, j int) bool { return list[i].Sequence < list[j].Sequence })
	for _, e := range list {
		if err := saveEngagement(ctx, q, e); err != nil {
			return err
		}
	}
	return nil
}

func saveEngagement(ctx context.Context, q querier, s domain.EngagementSnapshot) error {
	current, err := encodeContract(s.CurrentContract)
	if err != nil {
		return err
	}
	closed, err := encodeContract(s.ClosedContract)
	if err != nil {
		return err
	}
	prefs, err := json.Marshal(s.Preferences)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `
		INSERT INTO engagements (id, case_id, sequence, stage, stage_changed_at, current_contract,
		                         closed_contract, moved_in_on, preferences, notes, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
		    stage = EXCLUDED.stage,
		    stage_changed_at = EXCLUDED.stage_changed_at,
		    current_contract = EXCLUDED.current_contract,
		    closed_contract = EXCLUDED.closed_contract,
		    moved_in_on = EXCLUDED.moved_in_on,
		    preferences = EXCLUDED.preferences,
		    notes = EXCLUDED.notes,
		    active = EXCLUDED.active,
		    updated_at = EXCLUDED.updated_at
	`, s.ID, s.CaseID, s.Sequence, s.Stage, s.StageChangedAt, current, closed,
		dateArg(s.MovedInOn), prefs, s.Notes, s.Active, s.CreatedAt, s.UpdatedAt)
	if isUniqueViolation(err) {
		return domain.Conflict("case %s already has an active engagement", s.CaseID)
	}
	if err != nil {
		return err
	}
	return appendFailedContracts(ctx, q, s)
}

// appendFailedContracts inserts history rows the table does not have yet.
// Existing rows are never rewritten.
func appendFailedContracts(ctx context.Context, q querier, s domain.EngagementSnapshot) error {
	var stored int
	if err := q.QueryRow(ctx,
		`SELECT count(*) FROM engagement_failed_contracts WHERE engagement_id = $1`, s.ID,
	).Scan(&stored); err != nil {
		return err
	}
	if len(s.FailedContracts) < stored {
		return fmt.Errorf("postgres: failed contract history of engagement %s cannot shrink", s.ID)
	}
	for i := stored; i < len(s.FailedContracts); i++ {
		fc := s.FailedContracts[i]
		raw, err := json.Marshal(fc.Contract)
		if err != nil {
			return err
		}
		if _, err := q.Exec(ctx, `
			INSERT INTO engagement_failed_contracts (engagement_id, position, contract, failed_at, reason)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT DO NOTHING
		`, s.ID, i, raw, fc.FailedAt, fc.Reason); err != nil {
			return err
		}
	}
	return nil
}

func encodeContract(c *domain.Contract) ([]byte, error) {
	if c == nil {
		return nil, nil
	}
	return json.Marshal(c)
}

func decodeContract(raw []byte) (*domain.Contract, error) {
	if raw == nil {
		return nil, nil
	}
	var c domain.Contract
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
