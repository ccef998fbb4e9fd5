package evidence

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"homeward/internal/domain"
	"homeward/internal/policy"
	"homeward/internal/ports"
	"homeward/internal/requestctx"
)

// DefaultURLTTL bounds presigned evidence links when none is configured.
const DefaultURLTTL = 15 * time.Minute

type Service struct {
	uow     ports.UnitOfWork
	storage ports.EvidenceStorage
	clock   ports.Clock
	log     *zap.Logger
	urlTTL  time.Duration
	newID   func() string
}

func New(uow ports.UnitOfWork, storage ports.EvidenceStorage, clock ports.Clock, log *zap.Logger, urlTTL time.Duration) *Service {
	if urlTTL <= 0 {
		urlTTL = DefaultURLTTL
	}
	return &Service{uow: uow, storage: storage, clock: clock, log: log, urlTTL: urlTTL, newID: uuid.NewString}
}

// Gate evaluates the requirement rows for (from, to) against the case's
// ledger. It runs inside the caller's unit of work.
func Gate(ctx context.Context, repo ports.EvidenceRepository, caseID string, from, to domain.Stage) (domain.GateDecision, error) {
	reqs, err := repo.RequirementsFor(ctx, from, to)
	if err != nil {
		return domain.GateDecision{}, err
	}
	types, err := repo.ListTypes(ctx)
	if err != nil {
		return domain.GateDecision{}, err
	}
	ledger, err := repo.ListLedger(ctx, caseID)
	if err != nil {
		return domain.GateDecision{}, err
	}
	onFile := make(map[string]bool, len(ledger))
	for _, e := range ledger {
		onFile[e.EvidenceTypeID] = true
	}
	return domain.EvaluateGate(from, to, reqs, types, onFile), nil
}

func (s *Service) Evaluate(ctx context.Context, caseID string, from, to domain.Stage) (out domain.GateDecision, err error) {
	if !from.IsValid() || !to.IsValid() {
		return out, domain.Validation("unknown stage pair %s -> %s", from, to)
	}
	err = s.uow.Do(ctx, func(ctx context.Context, r ports.Repositories) error {
		if _, err := r.Cases().Get(ctx, caseID); err != nil {
			return err
		}
		out, err = Gate(ctx, r.Evidence(), caseID, from, to)
		return err
	})
	return out, err
}

func (s *Service) ListTypes(ctx context.Context) (out []domain.EvidenceType, err error) {
	err = s.uow.Do(ctx, func(ctx context.Context, r ports.Repositories) error {
		out, err = r.Evidence().ListTypes(ctx)
		return err
	})
	return out, err
}

func (s *Service) CreateType(ctx context.Context, name, displayName string) (domain.EvidenceType, error) {
	t, err := domain.NewEvidenceType(s.newID(), name, displayName)
	if err != nil {
		return domain.EvidenceType{}, err
	}
	if err := s.uow.Do(ctx, func(ctx context.Context, r ports.Repositories) error {
		return r.Evidence().SaveType(ctx, t)
	}); err != nil {
		return domain.EvidenceType{}, err
	}
	s.log.Info("evidence type created", zap.String("evidence_type_id", t.ID), zap.String("name", t.Name))
	return t, nil
}

func (s *Service) DeactivateType(ctx context.Context, typeID string) (t domain.EvidenceType, err error) {
	err = s.uow.Do(ctx, func(ctx context.Context, r ports.Repositories) error {
		if t, err = r.Evidence().GetType(ctx, typeID); err != nil {
			return err
		}
		if err := t.Deactivate(); err != nil {
			return err
		}
		return r.Evidence().SaveType(ctx, t)
	})
	if err != nil {
		return domain.EvidenceType{}, err
	}
	s.log.Info("evidence type deactivated", zap.String("evidence_type_id", t.ID), zap.String("name", t.Name))
	return t, nil
}

func (s *Service) ListRequirements(ctx context.Context) (out []domain.Requirement, err error) {
	err = s.uow.Do(ctx, func(ctx context.Context, r ports.Repositories) error {
		out, err = r.Evidence().ListRequirements(ctx)
		return err
	})
	return out, err
}

func (s *Service) SetRequirement(ctx context.Context, in domain.Requirement) (domain.Requirement, error) {
	req, err := domain.NewRequirement(in.From, in.To, in.EvidenceTypeID, in.Required)
	if err != nil {
		return domain.Requirement{}, err
	}
	if err := s.uow.Do(ctx, func(ctx context.Context, r ports.Repositories) error {
		if _, err := r.Evidence().GetType(ctx, req.EvidenceTypeID); err != nil {
			return err
		}
		return r.Evidence().SaveRequirement(ctx, req)
	}); err != nil {
		return domain.Requirement{}, err
	}
	s.log.Info("evidence requirement set",
		zap.String("from", string(req.From)), zap.String("to", string(req.To)),
		zap.String("evidence_type_id", req.EvidenceTypeID), zap.Bool("required", req.Required))
	return req, nil
}

func (s *Service) RemoveRequirement(ctx context.Context, from, to domain.Stage, typeID string) error {
	err := s.uow.Do(ctx, func(ctx context.Context, r ports.Repositories) error {
		ok, err := r.Evidence().DeleteRequirement(ctx, from, to, typeID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NotFound("evidence requirement", string(from)+"->"+string(to)+"/"+typeID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("evidence requirement removed",
		zap.String("from", string(from)), zap.String("to", string(to)), zap.String("evidence_type_id", typeID))
	return nil
}

// RecordUpload stores the file and then replaces the ledger entry for the
// case and type. A storage object whose ledger write fails is left orphaned.
func (s *Service) RecordUpload(ctx context.Context, in ports.UploadInput) (domain.LedgerEntry, error) {
	in.FileName = strings.TrimSpace(in.FileName)
	if in.FileName == "" {
		return domain.LedgerEntry{}, domain.Validation("file name is required")
	}
	if in.Body == nil {
		return domain.LedgerEntry{}, domain.Validation("file body is required")
	}
	check := func(ctx context.Context, r ports.Repositories) error {
		if _, err := r.Cases().Get(ctx, in.CaseID); err != nil {
			return err
		}
		t, err := r.Evidence().GetType(ctx, in.EvidenceTypeID)
		if err != nil {
			return err
		}
		if !t.Active {
			return domain.InvalidOperation("evidence type %q is inactive", t.Name)
		}
		return nil
	}
	if err := s.uow.Do(ctx, check); err != nil {
		return domain.LedgerEntry{}, err
	}

	key, err := s.storage.Upload(ctx, in)
	if err != nil {
		s.log.Error("evidence upload failed", zap.String("case_id", in.CaseID), zap.String("evidence_type_id", in.EvidenceTypeID), zap.Error(err))
		return domain.LedgerEntry{}, err
	}

	entry := domain.LedgerEntry{
		ID:             s.newID(),
		CaseID:         in.CaseID,
		EvidenceTypeID: in.EvidenceTypeID,
		StorageKey:     key,
		FileName:       in.FileName,
		ContentType:    in.ContentType,
		UploadedAt:     s.clock.Now(),
		UploadedBy:     requestctx.Actor(ctx),
	}
	err = s.uow.Do(ctx, func(ctx context.Context, r ports.Repositories) error {
		if err := check(ctx, r); err != nil {
			return err
		}
		return r.Evidence().PutLedgerEntry(ctx, entry)
	})
	if err != nil {
		s.log.Warn("evidence ledger write failed; stored object is orphaned", zap.String("storage_key", key), zap.Error(err))
		return domain.LedgerEntry{}, err
	}
	s.log.Info("evidence recorded",
		zap.String("case_id", entry.CaseID), zap.String("evidence_type_id", entry.EvidenceTypeID),
		zap.String("storage_key", entry.StorageKey))
	return entry, nil
}

func (s *Service) ListCaseEvidence(ctx context.Context, caseID string) (out []domain.LedgerEntry, err error) {
	err = s.uow.Do(ctx, func(ctx context.Context, r ports.Repositories) error {
		if _, err := r.Cases().Get(ctx, caseID); err != nil {
			return err
		}
		out, err = r.Evidence().ListLedger(ctx, caseID)
		return err
	})
	return out, err
}

// AccessURL returns a time-limited link to the file on record.
func (s *Service) AccessURL(ctx context.Context, caseID, typeID string) (string, error) {
	var entry domain.LedgerEntry
	err := s.uow.Do(ctx, func(ctx context.Context, r ports.Repositories) (err error) {
		entry, err = r.Evidence().GetLedgerEntry(ctx, caseID, typeID)
		return err
	})
	if err != nil {
		return "", err
	}
	return s.storage.PresignGet(ctx, entry.StorageKey, s.urlTTL)
}

// SeedPolicy upserts the policy's types and requirement rows. Existing
// types keep their id; declared types are reactivated. A policy can mark a
// type as system but never clears the flag. Rows not in the policy are left
// alone.
func (s *Service) SeedPolicy(ctx context.Context, f policy.File) error {
	err := s.uow.Do(ctx, func(ctx context.Context, r ports.Repositories) error {
		existing, err := r.Evidence().ListTypes(ctx)
		if err != nil {
			return err
		}
		byName := make(map[string]domain.EvidenceType, len(existing))
		for _, t := range existing {
			byName[t.Name] = t
		}
		for _, ts := range f.EvidenceTypes {
			t, ok := byName[ts.Name]
			if !ok {
				if t, err = domain.NewEvidenceType(s.newID(), ts.Name, ts.DisplayName); err != nil {
					return err
				}
			}
			t.DisplayName = ts.DisplayName
			t.System = t.System || ts.System
			t.Active = true
			if err := r.Evidence().SaveType(ctx, t); err != nil {
				return err
			}
			byName[t.Name] = t
		}
		for _, ts := range f.Requirements {
			t, ok := byName[ts.EvidenceType]
			if !ok {
				return domain.Validation("policy requirement references unknown evidence type %q", ts.EvidenceType)
			}
			req, err := domain.NewRequirement(ts.From, ts.To, t.ID, ts.Required)
			if err != nil {
				return err
			}
			if err := r.Evidence().SaveRequirement(ctx, req); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("evidence policy seeded", zap.Int("types", len(f.EvidenceTypes)), zap.Int("requirements", len(f.Requirements)))
	return nil
}
