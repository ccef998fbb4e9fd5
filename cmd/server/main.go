package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	httpadapter "homeward/internal/adapters/http"
	"homeward/internal/adapters/memory"
	pg "homeward/internal/adapters/postgres"
	redisadapter "homeward/internal/adapters/redis"
	s3adapter "homeward/internal/adapters/s3"
	"homeward/internal/config"
	"homeward/internal/logging"
	"homeward/internal/policy"
	"homeward/internal/ports"
	casesvc "homeward/internal/services/cases"
	engagementsvc "homeward/internal/services/engagements"
	evidencesvc "homeward/internal/services/evidence"
	matchsvc "homeward/internal/services/matches"
	showingsvc "homeward/internal/services/showings"
	"homeward/internal/workers/outboxrelay"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "homeward: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	flags := pflag.NewFlagSet("homeward", pflag.ExitOnError)
	flags.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "HTTP listen address")
	flags.StringVar(&cfg.PolicyFile, "policy", cfg.PolicyFile, "evidence policy YAML (embedded default when empty)")
	migrateOnly := flags.Bool("migrate-only", false, "apply database migrations and exit")
	_ = flags.Parse(os.Args[1:])

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat, "homeward")
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		uow    ports.UnitOfWork
		outbox ports.OutboxRepository
	)
	if cfg.UsesMemory() {
		if *migrateOnly {
			return errors.New("--migrate-only needs DATABASE_URL")
		}
		log.Warn("DATABASE_URL not set, state is kept in memory")
		store := memory.NewStore()
		uow, outbox = store, store.Outbox()
	} else {
		db, err := pg.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		log.Info("migrations applied")
		if *migrateOnly {
			return nil
		}
		uow, outbox = db, db.Outbox()
	}

	clock := ports.SystemClock{}
	storage, err := newStorage(ctx, cfg, clock, log)
	if err != nil {
		return err
	}
	publisher, err := newPublisher(ctx, cfg, log)
	if err != nil {
		return err
	}

	evidence := evidencesvc.New(uow, storage, clock, log.Named("evidence"), cfg.EvidenceURLTTL)
	p, err := policy.Load(cfg.PolicyFile)
	if err != nil {
		return err
	}
	if err := evidence.SeedPolicy(ctx, p); err != nil {
		return fmt.Errorf("seed evidence policy: %w", err)
	}

	srv := httpadapter.New(httpadapter.Services{
		Cases:       casesvc.New(uow, clock, log.Named("cases")),
		Engagements: engagementsvc.New(uow, clock, log.Named("engagements")),
		Evidence:    evidence,
		Matches:     matchsvc.New(uow, clock, log.Named("matches")),
		Showings:    showingsvc.New(uow, clock, log.Named("showings"), cfg.ShowingGrace),
	}, log.Named("http"), cfg.EvidenceMaxUploadBytes)

	relay := outboxrelay.New(outbox, publisher, clock, log.Named("outbox"), cfg.OutboxBatchSize)
	relayCtx, stopRelay := context.WithCancel(context.Background())
	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		relay.Run(relayCtx, cfg.OutboxPollInterval)
	}()

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()
	log.Info("listening", zap.String("addr", cfg.ListenAddr), zap.Bool("memory", cfg.UsesMemory()))

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			stopRelay()
			<-relayDone
			return fmt.Errorf("server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", zap.Error(err))
	}
	stopRelay()
	<-relayDone
	if n, err := relay.DrainOnce(shutdownCtx); err != nil {
		log.Error("final outbox drain", zap.Error(err))
	} else if n > 0 {
		log.Info("final outbox drain", zap.Int("published", n))
	}
	return nil
}

func newStorage(ctx context.Context, cfg config.Config, clock ports.Clock, log *zap.Logger) (ports.EvidenceStorage, error) {
	if cfg.EvidenceBucket == "" {
		log.Warn("EVIDENCE_BUCKET not set, evidence files are kept in memory")
		return memory.NewStorage(clock), nil
	}
	return s3adapter.New(ctx, s3adapter.Options{
		Bucket:   cfg.EvidenceBucket,
		Region:   cfg.AWSRegion,
		Endpoint: cfg.S3Endpoint,
	})
}

func newPublisher(ctx context.Context, cfg config.Config, log *zap.Logger) (ports.EventPublisher, error) {
	if cfg.RedisURL == "" {
		return outboxrelay.LogPublisher{Log: log.Named("events")}, nil
	}
	client, err := redisadapter.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis connect: %w", err)
	}
	return redisadapter.NewPublisher(client, cfg.EventsChannel), nil
}
