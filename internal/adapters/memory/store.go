// Package memory keeps every aggregate in process memory behind one mutex.
// It backs the server when no database is configured and the service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"homeward/internal/domain"
	"homeward/internal/ports"
)

type requirementKey struct {
	from, to domain.Stage
	typeID   string
}

type ledgerKey struct {
	caseID, typeID string
}

type outboxRow struct {
	seq         int
	msg         ports.OutboxMessage
	publishedAt *time.Time
	lastError   string
	retryAt     time.Time
}

type state struct {
	cases        map[string]domain.CaseSnapshot
	engagements  map[string]domain.EngagementSnapshot
	types        map[string]domain.EvidenceType
	requirements map[requirementKey]domain.Requirement
	ledger       map[ledgerKey]domain.LedgerEntry
	matches      map[string]domain.MatchSnapshot
	showings     map[string]domain.ShowingSnapshot
	outbox       []outboxRow
	seq          int
}

func newState() *state {
	return &state{
		cases:        map[string]domain.CaseSnapshot{},
		engagements:  map[string]domain.EngagementSnapshot{},
		types:        map[string]domain.EvidenceType{},
		requirements: map[requirementKey]domain.Requirement{},
		ledger:       map[ledgerKey]domain.LedgerEntry{},
		matches:      map[string]domain.MatchSnapshot{},
		showings:     map[string]domain.ShowingSnapshot{},
	}
}

// clone copies the maps. Stored snapshots are never mutated in place, so
// values can be shared between the committed and working copies.
func (s *state) clone() *state {
	out := newState()
	for k, v := range s.cases {
		out.cases[k] = v
	}
	for k, v := range s.engagements {
		out.engagements[k] = v
	}
	for k, v := range s.types {
		out.types[k] = v
	}
	for k, v := range s.requirements {
		out.requirements[k] = v
	}
	for k, v := range s.ledger {
		out.ledger[k] = v
	}
	for k, v := range s.matches {
		out.matches[k] = v
	}
	for k, v := range s.showings {
		out.showings[k] = v
	}
	out.outbox = append([]outboxRow(nil), s.outbox...)
	out.seq = s.seq
	return out
}

// Store is an in-memory unit of work. Units run one at a time; a unit that
// returns an error leaves the committed state untouched.
type Store struct {
	mu    sync.Mutex
	state *state
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{state: newState()}
}

// Do implements ports.UnitOfWork. fn must not call Do on the same store.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, r ports.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(ctx, repositories{st: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

// Outbox returns a repository that runs each call as its own unit.
func (s *Store) Outbox() ports.OutboxRepository {
	return autoCommitOutbox{store: s}
}

// Events lists every event ever appended to the outbox, oldest first.
func (s *Store) Events() []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Event, 0, len(s.state.outbox))
	for _, row := range s.state.outbox {
		out = append(out, row.msg.Event)
	}
	return out
}

type repositories struct{ st *state }

func (r repositories) Cases() ports.CaseRepository             { return caseRepo{r.st} }
func (r repositories) Engagements() ports.EngagementRepository { return engagementRepo{r.st} }
func (r repositories) Evidence() ports.EvidenceRepository      { return evidenceRepo{r.st} }
func (r repositories) Matches() ports.MatchRepository          { return matchRepo{r.st} }
func (r repositories) Showings() ports.ShowingRepository       { return showingRepo{r.st} }
func (r repositories) Outbox() ports.OutboxRepository          { return outboxRepo{r.st} }

type caseRepo struct{ st *state }

func (r caseRepo) Get(_ context.Context, caseID string) (*domain.Case, error) {
	c, ok := r.st.cases[caseID]
	if !ok || c.Deleted {
		return nil, domain.NotFound("case", caseID)
	}
	var engagements []domain.EngagementSnapshot
	for _, e := range r.st.engagements {
		if e.CaseID == caseID {
			engagements = append(engagements, e)
		}
	}
	return domain.RestoreCase(c, engagements), nil
}

func (r caseRepo) Insert(ctx context.Context, c *domain.Case) error {
	if _, ok := r.st.cases[c.ID()]; ok {
		return domain.Conflict("case %s already exists", c.ID())
	}
	return r.Save(ctx, c)
}

func (r caseRepo) Save(ctx context.Context, c *domain.Case) error {
	r.st.cases[c.ID()] = c.Snapshot()
	for _, e := range c.Engagements() {
		if err := putEngagement(r.st, e); err != nil {
			return err
		}
	}
	return nil
}

type engagementRepo struct{ st *state }

func (r engagementRepo) Get(_ context.Context, engagementID string) (*domain.Engagement, error) {
	e, ok := r.st.engagements[engagementID]
	if !ok {
		return nil, domain.NotFound("engagement", engagementID)
	}
	return domain.RestoreEngagement(e), nil
}

func (r engagementRepo) Save(_ context.Context, e *domain.Engagement) error {
	return putEngagement(r.st, e.Snapshot())
}

func putEngagement(st *state, e domain.EngagementSnapshot) error {
	if prev, ok := st.engagements[e.ID]; ok && len(e.FailedContracts) < len(prev.FailedContracts) {
		return errFailedContractsShrank(e.ID)
	}
	st.engagements[e.ID] = e
	return nil
}

type evidenceRepo struct{ st *state }

func (r evidenceRepo) ListTypes(context.Context) ([]domain.EvidenceType, error) {
	out := make([]domain.EvidenceType, 0, len(r.st.types))
	for _, t := range r.st.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r evidenceRepo) GetType(_ context.Context, typeID string) (domain.EvidenceType, error) {
	t, ok := r.st.types[typeID]
	if !ok {
		return domain.EvidenceType{}, domain.NotFound("evidence type", typeID)
	}
	return t, nil
}

func (r evidenceRepo) SaveType(_ context.Context, t domain.EvidenceType) error {
	for id, other := range r.st.types {
		if id != t.ID && other.Name == t.Name {
			return domain.Conflict("evidence type %q already exists", t.Name)
		}
	}
	r.st.types[t.ID] = t
	return nil
}

func (r evidenceRepo) ListRequirements(context.Context) ([]domain.Requirement, error) {
	out := make([]domain.Requirement, 0, len(r.st.requirements))
	for _, req := range r.st.requirements {
		out = append(out, req)
	}
	sortRequirements(out)
	return out, nil
}

func (r evidenceRepo) RequirementsFor(_ context.Context, from, to domain.Stage) ([]domain.Requirement, error) {
	var out []domain.Requirement
	for _, req := range r.st.requirements {
		if req.From == from && req.To == to {
			out = append(out, req)
		}
	}
	sortRequirements(out)
	return out, nil
}

func (r evidenceRepo) SaveRequirement(_ context.Context, req domain.Requirement) error {
	r.st.requirements[requirementKey{req.From, req.To, req.EvidenceTypeID}] = req
	return nil
}

func (r evidenceRepo) DeleteRequirement(_ context.Context, from, to domain.Stage, typeID string) (bool, error) {
	k := requirementKey{from, to, typeID}
	if _, ok := r.st.requirements[k]; !ok {
		return false, nil
	}
	delete(r.st.requirements, k)
	return true, nil
}

func (r evidenceRepo) ListLedger(_ context.Context, caseID string) ([]domain.LedgerEntry, error) {
	var out []domain.LedgerEntry
	for k, e := range r.st.ledger {
		if k.caseID == caseID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EvidenceTypeID < out[j].EvidenceTypeID })
	return out, nil
}

func (r evidenceRepo) GetLedgerEntry(_ context.Context, caseID, typeID string) (domain.LedgerEntry, error) {
	e, ok := r.st.ledger[ledgerKey{caseID, typeID}]
	if !ok {
		return domain.LedgerEntry{}, domain.NotFound("evidence", caseID+"/"+typeID)
	}
	return e, nil
}

func (r evidenceRepo) PutLedgerEntry(_ context.Context, e domain.LedgerEntry) error {
	r.st.ledger[ledgerKey{e.CaseID, e.EvidenceTypeID}] = e
	return nil
}

func sortRequirements(reqs []domain.Requirement) {
	sort.Slice(reqs, func(i, j int) bool {
		a, b := reqs[i], reqs[j]
		if a.From != b.From {
			return a.From < b.From
		}
		if a.To != b.To {
			return a.To < b.To
		}
		return a.EvidenceTypeID < b.EvidenceTypeID
	})
}

type matchRepo struct{ st *state }

func (r matchRepo) Get(_ context.Context, matchID string) (*domain.Match, error) {
	m, ok := r.st.matches[matchID]
	if !ok {
		return nil, domain.NotFound("match", matchID)
	}
	return domain.RestoreMatch(m), nil
}

func (r matchRepo) Insert(_ context.Context, m *domain.Match) error {
	snap := m.Snapshot()
	for _, other := range r.st.matches {
		if other.EngagementID == snap.EngagementID && other.ListingID == snap.ListingID {
			return domain.Conflict("listing %s is already matched to engagement %s", snap.ListingID, snap.EngagementID)
		}
	}
	r.st.matches[snap.ID] = snap
	return nil
}

func (r matchRepo) Save(_ context.Context, m *domain.Match) error {
	r.st.matches[m.ID()] = m.Snapshot()
	return nil
}

func (r matchRepo) ListByEngagement(_ context.Context, engagementID string) ([]domain.MatchSnapshot, error) {
	var out []domain.MatchSnapshot
	for _, m := range r.st.matches {
		if m.EngagementID == engagementID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

type showingRepo struct{ st *state }

func (r showingRepo) Get(_ context.Context, showingID string) (*domain.Showing, error) {
	s, ok := r.st.showings[showingID]
	if !ok {
		return nil, domain.NotFound("showing", showingID)
	}
	return domain.RestoreShowing(s), nil
}

func (r showingRepo) Insert(_ context.Context, s *domain.Showing) error {
	if _, ok := r.st.showings[s.ID()]; ok {
		return domain.Conflict("showing %s already exists", s.ID())
	}
	r.st.showings[s.ID()] = s.Snapshot()
	return nil
}

func (r showingRepo) Save(_ context.Context, s *domain.Showing) error {
	r.st.showings[s.ID()] = s.Snapshot()
	return nil
}

func (r showingRepo) ListByMatch(_ context.Context, matchID string) ([]domain.ShowingSnapshot, error) {
	var out []domain.ShowingSnapshot
	for _, s := range r.st.showings {
		if s.MatchID == matchID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}
