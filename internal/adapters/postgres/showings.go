package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"homeward/internal/domain"
)

type showingRepo struct{ q querier }

const showingColumns = `id, match_id, scheduled_at, status, broker_id, notes, completed_at, created_at, updated_at`

func (r showingRepo) Get(ctx context.Context, showingID string) (*domain.Showing, error) {
	rows, err := r.q.Query(ctx, `SELECT `+showingColumns+` FROM showings WHERE id = $1 FOR UPDATE`, showingID)
	if err != nil {
		return nil, err
	}
	s, err := pgx.CollectExactlyOneRow(rows, scanShowing)
	if err != nil {
		return nil, notFound(err, "showing", showingID)
	}
	return domain.RestoreShowing(s), nil
}

func (r showingRepo) Insert(ctx context.Context, sh *domain.Showing) error {
	s := sh.Snapshot()
	_, err := r.q.Exec(ctx, `
		INSERT INTO showings (`+showingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, s.ID, s.MatchID, s.ScheduledAt, s.Status, s.BrokerID, s.Notes, s.CompletedAt, s.CreatedAt, s.UpdatedAt)
	if isUniqueViolation(err) {
		return domain.Conflict("showing %s already exists", s.ID)
	}
	return err
}

func (r showingRepo) Save(ctx context.Context, sh *domain.Showing) error {
	s := sh.Snapshot()
	tag, err := r.q.Exec(ctx, `
		UPDATE showings
		SET scheduled_at = $2, status = $3, broker_id = $4, notes = $5, completed_at = $6, updated_at = $7
		WHERE id = $1
	`, s.ID, s.ScheduledAt, s.Status, s.BrokerID, s.Notes, s.CompletedAt, s.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("showing", s.ID)
	}
	return nil
}

func (r showingRepo) ListByMatch(ctx context.Context, matchID string) ([]domain.ShowingSnapshot, error) {
	rows, err := r.q.Query(ctx, `SELECT `+showingColumns+` FROM showings WHERE match_id = $1 ORDER BY scheduled_at, id`, matchID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanShowing)
}

func scanShowing(row pgx.CollectableRow) (domain.ShowingSnapshot, error) {
	var s domain.ShowingSnapshot
	err := row.Scan(&s.ID, &s.MatchID, &s.ScheduledAt, &s.Status, &s.BrokerID, &s.Notes, &s.CompletedAt, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}
