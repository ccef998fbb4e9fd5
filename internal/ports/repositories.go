package ports

import (
	"context"

	"homeward/internal/domain"
)

// CaseRepository loads and stores cases together with their engagements.
// Get returns a domain NotFound error for unknown or deleted cases.
type CaseRepository interface {
	Get(ctx context.Context, caseID string) (*domain.Case, error)
	Insert(ctx context.Context, c *domain.Case) error
	Save(ctx context.Context, c *domain.Case) error
}

// EngagementRepository stores engagements on their own. Failed contract
// attempts are only ever appended.
type EngagementRepository interface {
	Get(ctx context.Context, engagementID string) (*domain.Engagement, error)
	Save(ctx context.Context, e *domain.Engagement) error
}

// EvidenceRepository holds the catalog, requirement rows and ledger.
type EvidenceRepository interface {
	ListTypes(ctx context.Context) ([]domain.EvidenceType, error)
	GetType(ctx context.Context, typeID string) (domain.EvidenceType, error)
	// SaveType upserts by id; a name used by another type is a Conflict.
	SaveType(ctx context.Context, t domain.EvidenceType) error
	ListRequirements(ctx context.Context) ([]domain.Requirement, error)
	RequirementsFor(ctx context.Context, from, to domain.Stage) ([]domain.Requirement, error)
	SaveRequirement(ctx context.Context, r domain.Requirement) error
	DeleteRequirement(ctx context.Context, from, to domain.Stage, typeID string) (bool, error)
	ListLedger(ctx context.Context, caseID string) ([]domain.LedgerEntry, error)
	GetLedgerEntry(ctx context.Context, caseID, typeID string) (domain.LedgerEntry, error)
	// PutLedgerEntry replaces any current entry for the same case and type.
	PutLedgerEntry(ctx context.Context, e domain.LedgerEntry) error
}

// MatchRepository stores matches. Insert reports a Conflict for a second
// match on the same engagement and listing.
type MatchRepository interface {
	Get(ctx context.Context, matchID string) (*domain.Match, error)
	Insert(ctx context.Context, m *domain.Match) error
	Save(ctx context.Context, m *domain.Match) error
	ListByEngagement(ctx context.Context, engagementID string) ([]domain.MatchSnapshot, error)
}

// ShowingRepository stores showings.
type ShowingRepository interface {
	Get(ctx context.Context, showingID string) (*domain.Showing, error)
	Insert(ctx context.Context, s *domain.Showing) error
	Save(ctx context.Context, s *domain.Showing) error
	ListByMatch(ctx context.Context, matchID string) ([]domain.ShowingSnapshot, error)
}

// Repositories is the set of repositories bound to one unit of work.
type Repositories interface {
	Cases() CaseRepository
	Engagements() EngagementRepository
	Evidence() EvidenceRepository
	Matches() MatchRepository
	Showings() ShowingRepository
	Outbox() OutboxRepository
}

// UnitOfWork runs fn atomically: every write made through r is committed
// when fn returns nil and discarded otherwise. Loads inside fn lock the
// aggregate rows for the duration of the unit.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, r Repositories) error) error
}
