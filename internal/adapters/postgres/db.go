package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"homeward/internal/domain"
	"homeward/internal/ports"
)

type DB struct {
	Pool *pgxpool.Pool
}

var (
	_ ports.UnitOfWork       = (*DB)(nil)
	_ ports.OutboxRepository = outboxRepo{}
)

func Connect(ctx context.Context, url string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 10
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &DB{Pool: pool}, nil
}

func (db *DB) Close() { db.Pool.Close() }

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Do runs fn in one transaction, committing when fn returns nil.
func (db *DB) Do(ctx context.Context, fn func(ctx context.Context, r ports.Repositories) error) (err error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if err = tx.Commit(ctx); err != nil {
			err = fmt.Errorf("commit tx: %w", err)
		}
	}()
	return fn(ctx, repositories{q: tx})
}

// Outbox returns an outbox repository running each call on the pool.
func (db *DB) Outbox() ports.OutboxRepository { return outboxRepo{q: db.Pool} }

type repositories struct{ q querier }

func (r repositories) Cases() ports.CaseRepository             { return caseRepo{r.q} }
func (r repositories) Engagements() ports.EngagementRepository { return engagementRepo{r.q} }
func (r repositories) Evidence() ports.EvidenceRepository      { return evidenceRepo{r.q} }
func (r repositories) Matches() ports.MatchRepository          { return matchRepo{r.q} }
func (r repositories) Showings() ports.ShowingRepository       { return showingRepo{r.q} }
func (r repositories) Outbox() ports.OutboxRepository          { return outboxRepo{r.q} }

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// notFound maps pgx.ErrNoRows to a domain NotFound error.
func notFound(err error, kind, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NotFound(kind, id)
	}
	return err
}
