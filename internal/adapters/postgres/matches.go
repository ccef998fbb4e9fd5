package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"homeward/internal/domain"
)

type matchRepo struct{ q querier }

// offer_amount travels as text so decimals never pass through float64.
const matchColumns = `id, engagement_id, listing_id, status, score, score_explanation,
	offer_amount::text, auto_matched, notes, created_at, updated_at`

func (r matchRepo) Get(ctx context.Context, matchID string) (*domain.Match, error) {
	rows, err := r.q.Query(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = $1 FOR UPDATE`, matchID)
	if err != nil {
		return nil, err
	}
	s, err := pgx.CollectExactlyOneRow(rows, scanMatch)
	if err != nil {
		return nil, notFound(err, "match", matchID)
	}
	return domain.RestoreMatch(s), nil
}

func (r matchRepo) Insert(ctx context.Context, m *domain.Match) error {
	s := m.Snapshot()
	_, err := r.q.Exec(ctx, `
		INSERT INTO matches (id, engagement_id, listing_id, status, score, score_explanation,
		                     offer_amount, auto_matched, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::text::numeric, $8, $9, $10, $11)
	`, s.ID, s.EngagementID, s.ListingID, s.Status, s.Score, rawJSON(s.ScoreExplanation),
		decimalArg(s.OfferAmount), s.AutoMatched, s.Notes, s.CreatedAt, s.UpdatedAt)
	if isUniqueViolation(err) {
		return domain.Conflict("listing %s is already matched to engagement %s", s.ListingID, s.EngagementID)
	}
	return err
}

func (r matchRepo) Save(ctx context.Context, m *domain.Match) error {
	s := m.Snapshot()
	tag, err := r.q.Exec(ctx, `
		UPDATE matches
		SET status = $2, score = $3, score_explanation = $4, offer_amount = $5::text::numeric,
		    notes = $6, updated_at = $7
		WHERE id = $1
	`, s.ID, s.Status, s.Score, rawJSON(s.ScoreExplanation), decimalArg(s.OfferAmount), s.Notes, s.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.NotFound("match", s.ID)
	}
	return nil
}

func (r matchRepo) ListByEngagement(ctx context.Context, engagementID string) ([]domain.MatchSnapshot, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+matchColumns+`
		FROM matches
		WHERE engagement_id = $1
		ORDER BY score DESC, created_at
	`, engagementID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanMatch)
}

func scanMatch(row pgx.CollectableRow) (domain.MatchSnapshot, error) {
	var (
		s           domain.MatchSnapshot
		explanation []byte
		offer       *string
	)
	if err := row.Scan(&s.ID, &s.EngagementID, &s.ListingID, &s.Status, &s.Score, &explanation,
		&offer, &s.AutoMatched, &s.Notes, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return s, err
	}
	if explanation != nil {
		s.ScoreExplanation = explanation
	}
	if offer != nil {
		d, err := decimal.NewFromString(*offer)
		if err != nil {
			return s, err
		}
		s.OfferAmount = &d
	}
	return s, nil
}

func decimalArg(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

// rawJSON keeps an empty explanation NULL instead of an invalid document.
func rawJSON(raw []byte) []byte {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
