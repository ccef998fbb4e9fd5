package matches

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"homeward/internal/domain"
	"homeward/internal/ports"
)

type Service struct {
	uow   ports.UnitOfWork
	clock ports.Clock
	log   *zap.Logger
	newID func() string
}

func New(uow ports.UnitOfWork, clock ports.Clock, log *zap.Logger) *Service {
	return &Service{uow: uow, clock: clock, log: log, newID: uuid.NewString}
}

// Create pairs a listing with an engagement in Identified.
func (s *Service) Create(ctx context.Context, in domain.NewMatchInput) (out domain.MatchSnapshot, err error) {
	m, err := domain.NewMatch(s.newID(), in, s.clock.Now())
	if err != nil {
		return out, err
	}
	err = s.uow.Do(ctx, func(ctx context.Context, r ports.Repositories) error {
		if _, err := r.Engagements().Get(ctx, m.EngagementID()); err != nil {
			return err
		}
		if err := r.Matches().Insert(ctx, m); err != nil {
			return err
		}
		return r.Outbox().Append(ctx, m.PullEvents()...)
	})
	if err != nil {
		return out, err
	}
	out = m.Snapshot()
	s.log.Info("match created",
		zap.String("match_id", out.ID), zap.String("engagement_id", out.EngagementID),
		zap.String("listing_id", out.ListingID), zap.Int("score", out.Score))
	return out, nil
}

func (s *Service) Get(ctx context.Context, matchID string) (out domain.MatchSnapshot, err error) {
	err = s.uow.Do(ctx, func(ctx context.Context, r ports.Repositories) error {
		m, err := r.Matches().Get(ctx, matchID)
		if err != nil {
			return err
		}
		out = m.Snapshot()
		return nil
	})
	return out, err
}

// List returns the engagement's matches, best score first.
func (s *Service) List(ctx context.Context, engagementID string) (out []domain.MatchSnapshot, err error) {
	err = s.uow.Do(ctx, func(ctx context.Context, r ports.Repositories) error {
		if _, err := r.Engagements().Get(ctx, engagementID); err != nil {
			return err
		}
		out, err = r.Matches().ListByEngagement(ctx, engagementID)
		return err
	})
	return out, err
}

func (s *Service) UpdateStatus(ctx context.Context, matchID string, c domain.StatusChange) (domain.MatchSnapshot, error) {
	out, err := s.mutate(ctx, matchID, func(m *domain.Match) error {
		return m.ChangeStatus(c, s.clock.Now())
	})
	if err != nil {
		s.log.Debug("match status change rejected", zap.String("match_id", matchID), zap.String("to", string(c.Status)), zap.Error(err))
		return out, err
	}
	s.log.Info("match status changed", zap.String("match_id", out.ID), zap.String("status", string(out.Status)))
	return out, nil
}

func (s *Service) UpdateScore(ctx context.Context, matchID string, score int, explanation json.RawMessage) (domain.MatchSnapshot, error) {
	out, err := s.mutate(ctx, matchID, func(m *domain.Match) error {
		return m.UpdateScore(score, explanation, s.clock.Now())
	})
	if err != nil {
		return out, err
	}
	s.log.Info("match rescored", zap.String("match_id", out.ID), zap.Int("score", out.Score))
	return out, nil
}

// RequestShowingsBatch moves every listed match to ShowingRequested, or none
// of them. Each match must belong to the engagement and be Identified.
func (s *Service) RequestShowingsBatch(ctx context.Context, engagementID string, matchIDs []string) (out []domain.MatchSnapshot, err error) {
	ids := dedupe(matchIDs)
	if len(ids) == 0 {
		return nil, domain.Validation("at least one match id is required")
	}
	err = s.uow.Do(ctx, func(ctx context.Context, r ports.Repositories) error {
		if _, err := r.Engagements().Get(ctx, engagementID); err != nil {
			return err
		}
		now := s.clock.Now()
		out = out[:0]
		for _, id := range ids {
			m, err := r.Matches().Get(ctx, id)
			if err != nil {
				return err
			}
			if m.EngagementID() != engagementID {
				return domain.InvalidOperation("match %s does not belong to engagement %s", id, engagementID)
			}
			if err := m.RequestShowing(nil, now); err != nil {
				return err
			}
			if err := r.Matches().Save(ctx, m); err != nil {
				return err
			}
			if err := r.Outbox().Append(ctx, m.PullEvents()...); err != nil {
				return err
			}
			out = append(out, m.Snapshot())
		}
		return nil
	})
	if err != nil {
		s.log.Debug("showing request batch rejected", zap.String("engagement_id", engagementID), zap.Error(err))
		return nil, err
	}
	s.log.Info("showings requested", zap.String("engagement_id", engagementID), zap.Strings("match_ids", ids))
	return out, nil
}

func (s *Service) mutate(ctx context.Context, matchID string, fn func(*domain.Match) error) (out domain.MatchSnapshot, err error) {
	err = s.uow.Do(ctx, func(ctx context.Context, r ports.Repositories) error {
		m, err := r.Matches().Get(ctx, matchID)
		if err != nil {
			return err
		}
		if err := fn(m); err != nil {
			return err
		}
		if err := r.Matches().Save(ctx, m); err != nil {
			return err
		}
		out = m.Snapshot()
		return r.Outbox().Append(ctx, m.PullEvents()...)
	})
	if err != nil {
		return domain.MatchSnapshot{}, err
	}
	return out, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
