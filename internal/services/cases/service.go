package cases

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"homeward/internal/domain"
	"homeward/internal/ports"
	"homeward/internal/requestctx"
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

func view(c *domain.Case) ports.CaseView {
	return ports.CaseView{Case: c.Snapshot(), Engagements: c.Engagements()}
}

// Submit records a new application in Submitted.
func (s *Service) Submit(ctx context.Context, applicant domain.Applicant) (ports.CaseView, error) {
	c, err := domain.SubmitCase(s.newID(), applicant, requestctx.Actor(ctx), s.clock.Now())
	if err != nil {
		return ports.CaseView{}, err
	}
	err = s.uow.Do(ctx, func(ctx context.Context, r ports.Repositories) error {
		if err := r.Cases().Insert(ctx, c); err != nil {
			return err
		}
		return r.Outbox().Append(ctx, c.PullEvents()...)
	})
	if err != nil {
		return ports.CaseView{}, err
	}
	s.log.Info("case submitted", zap.String("case_id", c.ID()))
	return view(c), nil
}

func (s *Service) Get(ctx context.Context, caseID string) (out ports.CaseView, err error) {
	err = s.uow.Do(ctx, func(ctx context.Context, r ports.Repositories) error {
		c, err := r.Cases().Get(ctx, caseID)
		if err != nil {
			return err
		}
		out = view(c)
		return nil
	})
	return out, err
}

// RecordBoardDecision applies the one-shot decision. On approval the first
// engagement is created in the same unit of work.
func (s *Service) RecordBoardDecision(ctx context.Context, caseID string, d domain.BoardDecision) (out ports.CaseView, err error) {
	actor := requestctx.Actor(ctx)
	if d.ReviewerID == "" {
		d.ReviewerID = actor
	}
	var started *domain.EngagementSnapshot
	err = s.uow.Do(ctx, func(ctx context.Context, r ports.Repositories) error {
		c, err := r.Cases().Get(ctx, caseID)
		if err != nil {
			return err
		}
		if started, err = c.RecordDecision(d, s.newID(), actor, s.clock.Now()); err != nil {
			return err
		}
		if err := r.Cases().Save(ctx, c); err != nil {
			return err
		}
		out = view(c)
		return r.Outbox().Append(ctx, c.PullEvents()...)
	})
	if err != nil {
		s.log.Debug("board decision rejected", zap.String("case_id", caseID), zap.Error(err))
		return ports.CaseView{}, err
	}
	fields := []zap.Field{zap.String("case_id", caseID), zap.String("decision", string(out.Case.Decision))}
	if started != nil {
		fields = append(fields, zap.String("engagement_id", started.ID))
	}
	s.log.Info("board decision recorded", fields...)
	return out, nil
}

// StartNewEngagement begins another search for an approved case. Any active
// engagement is deactivated first.
func (s *Service) StartNewEngagement(ctx context.Context, caseID string) (out domain.EngagementSnapshot, err error) {
	err = s.uow.Do(ctx, func(ctx context.Context, r ports.Repositories) error {
		c, err := r.Cases().Get(ctx, caseID)
		if err != nil {
			return err
		}
		if out, err = c.StartNewEngagement(s.newID(), requestctx.Actor(ctx), s.clock.Now()); err != nil {
			return err
		}
		if err := r.Cases().Save(ctx, c); err != nil {
			return err
		}
		return r.Outbox().Append(ctx, c.PullEvents()...)
	})
	if err != nil {
		return domain.EngagementSnapshot{}, err
	}
	s.log.Info("engagement started", zap.String("case_id", caseID), zap.String("engagement_id", out.ID), zap.Int("sequence", out.Sequence))
	return out, nil
}
