package showings

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"homeward/internal/domain"
	"homeward/internal/ports"
)

type Service struct {
	uow   ports.UnitOfWork
	clock ports.Clock
	log   *zap.Logger
	grace time.Duration
	newID func() string
}

// New builds the service. grace is how far in the past a showing may still
// be scheduled. Zero allows no past times; a negative value uses
// domain.DefaultShowingGrace.
func New(uow ports.UnitOfWork, clock ports.Clock, log *zap.Logger, grace time.Duration) *Service {
	if grace < 0 {
		grace = domain.DefaultShowingGrace
	}
	return &Service{uow: uow, clock: clock, log: log, grace: grace, newID: uuid.NewString}
}

func (s *Service) Schedule(ctx context.Context, in domain.NewShowingInput) (out domain.ShowingSnapshot, err error) {
	err = s.uow.Do(ctx, func(ctx context.Context, r ports.Repositories) error {
		m, err := r.Matches().Get(ctx, in.MatchID)
		if err != nil {
			return err
		}
		if m.Status() == domain.MatchRejected {
			return domain.InvalidState("match %s is rejected", m.ID())
		}
		sh, err := domain.ScheduleShowing(s.newID(), in, s.grace, s.clock.Now())
		if err != nil {
			return err
		}
		if err := r.Showings().Insert(ctx, sh); err != nil {
			return err
		}
		out = sh.Snapshot()
		return r.Outbox().Append(ctx, sh.PullEvents()...)
	})
	if err != nil {
		s.log.Debug("showing not scheduled", zap.String("match_id", in.MatchID), zap.Error(err))
		return domain.ShowingSnapshot{}, err
	}
	s.log.Info("showing scheduled",
		zap.String("showing_id", out.ID), zap.String("match_id", out.MatchID), zap.Time("scheduled_at", out.ScheduledAt))
	return out, nil
}

func (s *Service) Get(ctx context.Context, showingID string) (out domain.ShowingSnapshot, err error) {
	err = s.uow.Do(ctx, func(ctx context.Context, r ports.Repositories) error {
		sh, err := r.Showings().Get(ctx, showingID)
		if err != nil {
			return err
		}
		out = sh.Snapshot()
		return nil
	})
	return out, err
}

func (s *Service) List(ctx context.Context, matchID string) (out []domain.ShowingSnapshot, err error) {
	err = s.uow.Do(ctx, func(ctx context.Context, r ports.Repositories) error {
		if _, err := r.Matches().Get(ctx, matchID); err != nil {
			return err
		}
		out, err = r.Showings().ListByMatch(ctx, matchID)
		return err
	})
	return out, err
}

func (s *Service) Reschedule(ctx context.Context, showingID string, at time.Time) (domain.ShowingSnapshot, error) {
	out, err := s.mutate(ctx, showingID, func(sh *domain.Showing) error {
		return sh.Reschedule(at, s.grace, s.clock.Now())
	})
	if err != nil {
		return out, err
	}
	s.log.Info("showing rescheduled", zap.String("showing_id", out.ID), zap.Time("scheduled_at", out.ScheduledAt))
	return out, nil
}

func (s *Service) UpdateStatus(ctx context.Context, showingID string, status domain.ShowingStatus, notes string) (domain.ShowingSnapshot, error) {
	out, err := s.mutate(ctx, showingID, func(sh *domain.Showing) error {
		return sh.Close(status, notes, s.clock.Now())
	})
	if err != nil {
		return out, err
	}
	s.log.Info("showing status changed", zap.String("showing_id", out.ID), zap.String("status", string(out.Status)))
	return out, nil
}

func (s *Service) mutate(ctx context.Context, showingID string, fn func(*domain.Showing) error) (out domain.ShowingSnapshot, err error) {
	err = s.uow.Do(ctx, func(ctx context.Context, r ports.Repositories) error {
		sh, err := r.Showings().Get(ctx, showingID)
		if err != nil {
			return err
		}
		if err := fn(sh); err != nil {
			return err
		}
		if err := r.Showings().Save(ctx, sh); err != nil {
			return err
		}
		out = sh.Snapshot()
		return r.Outbox().Append(ctx, sh.PullEvents()...)
	})
	if err != nil {
		return domain.ShowingSnapshot{}, err
	}
	return out, nil
}
