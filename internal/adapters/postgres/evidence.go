package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"homeward/internal/domain"
)

type evidenceRepo struct{ q querier }

func (r evidenceRepo) ListTypes(ctx context.Context) ([]domain.EvidenceType, error) {
	rows, err := r.q.Query(ctx, `SELECT id, name, display_name, active, system FROM evidence_types ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanType)
}

func (r evidenceRepo) GetType(ctx context.Context, typeID string) (domain.EvidenceType, error) {
	rows, err := r.q.Query(ctx, `SELECT id, name, display_name, active, system FROM evidence_types WHERE id = $1`, typeID)
	if err != nil {
		return domain.EvidenceType{}, err
	}
	t, err := pgx.CollectExactlyOneRow(rows, scanType)
	if err != nil {
		return domain.EvidenceType{}, notFound(err, "evidence type", typeID)
	}
	return t, nil
}

func (r evidenceRepo) SaveType(ctx context.Context, t domain.EvidenceType) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO evidence_types (id, name, display_name, active, system)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
		    name = EXCLUDED.name,
		    display_name = EXCLUDED.display_name,
		    active = EXCLUDED.active,
		    system = EXCLUDED.system
	`, t.ID, t.Name, t.DisplayName, t.Active, t.System)
	if isUniqueViolation(err) {
		return domain.Conflict("evidence type %q already exists", t.Name)
	}
	return err
}

func (r evidenceRepo) ListRequirements(ctx context.Context) ([]domain.Requirement, error) {
	rows, err := r.q.Query(ctx, `
		SELECT from_stage, to_stage, evidence_type_id, required
		FROM evidence_requirements
		ORDER BY from_stage, to_stage, evidence_type_id
	`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanRequirement)
}

func (r evidenceRepo) RequirementsFor(ctx context.Context, from, to domain.Stage) ([]domain.Requirement, error) {
	rows, err := r.q.Query(ctx, `
		SELECT from_stage, to_stage, evidence_type_id, required
		FROM evidence_requirements
		WHERE from_stage = $1 AND to_stage = $2
		ORDER BY evidence_type_id
	`, from, to)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanRequirement)
}

func (r evidenceRepo) SaveRequirement(ctx context.Context, req domain.Requirement) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO evidence_requirements (from_stage, to_stage, evidence_type_id, required)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (from_stage, to_stage, evidence_type_id) DO UPDATE SET required = EXCLUDED.required
	`, req.From, req.To, req.EvidenceTypeID, req.Required)
	return err
}

func (r evidenceRepo) DeleteRequirement(ctx context.Context, from, to domain.Stage, typeID string) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		DELETE FROM evidence_requirements
		WHERE from_stage = $1 AND to_stage = $2 AND evidence_type_id = $3
	`, from, to, typeID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

const ledgerColumns = `id, case_id, evidence_type_id, storage_key, file_name, content_type, uploaded_at, uploaded_by`

func (r evidenceRepo) ListLedger(ctx context.Context, caseID string) ([]domain.LedgerEntry, error) {
	rows, err := r.q.Query(ctx, `SELECT `+ledgerColumns+` FROM evidence_ledger WHERE case_id = $1 ORDER BY uploaded_at, id`, caseID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanLedgerEntry)
}

func (r evidenceRepo) GetLedgerEntry(ctx context.Context, caseID, typeID string) (domain.LedgerEntry, error) {
	rows, err := r.q.Query(ctx, `SELECT `+ledgerColumns+` FROM evidence_ledger WHERE case_id = $1 AND evidence_type_id = $2`, caseID, typeID)
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	e, err := pgx.CollectExactlyOneRow(rows, scanLedgerEntry)
	if err != nil {
		return domain.LedgerEntry{}, notFound(err, "evidence", caseID+"/"+typeID)
	}
	return e, nil
}

func (r evidenceRepo) PutLedgerEntry(ctx context.Context, e domain.LedgerEntry) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO evidence_ledger (`+ledgerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (case_id, evidence_type_id) DO UPDATE SET
		    id = EXCLUDED.id,
		    storage_key = EXCLUDED.storage_key,
		    file_name = EXCLUDED.file_name,
		    content_type = EXCLUDED.content_type,
		    uploaded_at = EXCLUDED.uploaded_at,
		    uploaded_by = EXCLUDED.uploaded_by
	`, e.ID, e.CaseID, e.EvidenceTypeID, e.StorageKey, e.FileName, e.ContentType, e.UploadedAt, e.UploadedBy)
	return err
}

func scanType(row pgx.CollectableRow) (domain.EvidenceType, error) {
	var t domain.EvidenceType
	err := row.Scan(&t.ID, &t.Name, &t.DisplayName, &t.Active, &t.System)
	return t, err
}

func scanRequirement(row pgx.CollectableRow) (domain.Requirement, error) {
	var req domain.Requirement
	err := row.Scan(&req.From, &req.To, &req.EvidenceTypeID, &req.Required)
	return req, err
}

func scanLedgerEntry(row pgx.CollectableRow) (domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	err := row.Scan(&e.ID, &e.CaseID, &e.EvidenceTypeID, &e.StorageKey, &e.FileName, &e.ContentType, &e.UploadedAt, &e.UploadedBy)
	return e, err
}
