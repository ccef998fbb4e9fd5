package engagements

import (
	"context"

	"go.uber.org/zap"

	"homeward/internal/domain"
	"homeward/internal/ports"
	"homeward/internal/services/evidence"
)

type Service struct {
	uow   ports.UnitOfWork
	clock ports.Clock
	log   *zap.Logger
}

func New(uow ports.UnitOfWork, clock ports.Clock, log *zap.Logger) *Service {
	return &Service{uow: uow, clock: clock, log: log}
}

func (s *Service) Get(ctx context.Context, engagementID string) (out domain.EngagementSnapshot, err error) {
	err = s.uow.Do(ctx, func(ctx context.Context, r ports.Repositories) error {
		e, err := r.Engagements().Get(ctx, engagementID)
		if err != nil {
			return err
		}
		out = e.Snapshot()
		return nil
	})
	return out, err
}

// ChangeStage evaluates the gate for the current stage and the target, then
// applies the operation the target implies.
func (s *Service) ChangeStage(ctx context.Context, engagementID string, req domain.StageChange) (domain.EngagementSnapshot, error) {
	var from domain.Stage
	out, err := s.mutate(ctx, engagementID, func(ctx context.Context, r ports.Repositories, e *domain.Engagement) error {
		from = e.Stage()
		gate := domain.OpenGate(from, req.To)
		if req.To.IsValid() {
			var err error
			if gate, err = evidence.Gate(ctx, r.Evidence(), e.CaseID(), from, req.To); err != nil {
				return err
			}
		}
		return e.ChangeStage(req, gate, s.clock.Now())
	})
	if err != nil {
		s.log.Debug("stage change rejected",
			zap.String("engagement_id", engagementID), zap.String("to", string(req.To)), zap.Error(err))
		return domain.EngagementSnapshot{}, err
	}
	s.log.Info("engagement stage changed",
		zap.String("engagement_id", out.ID), zap.String("case_id", out.CaseID),
		zap.String("from", string(from)), zap.String("to", string(out.Stage)))
	return out, nil
}

func (s *Service) UpdatePreferences(ctx context.Context, engagementID string, p domain.Preferences) (domain.EngagementSnapshot, error) {
	out, err := s.mutate(ctx, engagementID, func(_ context.Context, _ ports.Repositories, e *domain.Engagement) error {
		return e.UpdatePreferences(p, s.clock.Now())
	})
	if err != nil {
		return domain.EngagementSnapshot{}, err
	}
	s.log.Info("engagement preferences updated", zap.String("engagement_id", out.ID))
	return out, nil
}

func (s *Service) AppendNote(ctx context.Context, engagementID, text string) (domain.EngagementSnapshot, error) {
	return s.mutate(ctx, engagementID, func(_ context.Context, _ ports.Repositories, e *domain.Engagement) error {
		e.AppendNote(text, s.clock.Now())
		return nil
	})
}

// EvaluateStageRequirements reports the checklist for moving the engagement
// from its current stage to the target. It changes nothing.
func (s *Service) EvaluateStageRequirements(ctx context.Context, engagementID string, to domain.Stage) (out domain.GateDecision, err error) {
	if !to.IsValid() {
		return out, domain.Validation("unknown stage %q", to)
	}
	err = s.uow.Do(ctx, func(ctx context.Context, r ports.Repositories) error {
		e, err := r.Engagements().Get(ctx, engagementID)
		if err != nil {
			return err
		}
		out, err = evidence.Gate(ctx, r.Evidence(), e.CaseID(), e.Stage(), to)
		return err
	})
	return out, err
}

func (s *Service) mutate(ctx context.Context, engagementID string, fn func(context.Context, ports.Repositories, *domain.Engagement) error) (out domain.EngagementSnapshot, err error) {
	err = s.uow.Do(ctx, func(ctx context.Context, r ports.Repositories) error {
		e, err := r.Engagements().Get(ctx, engagementID)
		if err != nil {
			return err
		}
		if err := fn(ctx, r, e); err != nil {
			return err
		}
		if err := r.Engagements().Save(ctx, e); err != nil {
			return err
		}
		out = e.Snapshot()
		return r.Outbox().Append(ctx, e.PullEvents()...)
	})
	if err != nil {
		return domain.EngagementSnapshot{}, err
	}
	return out, nil
}
