package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Env         string `env:"APP_ENV" envDefault:"development"`
	ListenAddr  string `env:"LISTEN_ADDR" envDefault:":8080"`
	DatabaseURL string `env:"DATABASE_URL"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	RedisURL           string        `env:"REDIS_URL"`
	EventsChannel      string        `env:"EVENTS_CHANNEL" envDefault:"homeward.events"`
	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"2s"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"50"`

	EvidenceBucket string        `env:"EVIDENCE_BUCKET"`
	AWSRegion      string        `env:"AWS_REGION" envDefault:"us-east-1"`
	S3Endpoint     string        `env:"S3_ENDPOINT"`
	EvidenceURLTTL time.Duration `env:"EVIDENCE_URL_TTL" envDefault:"15m"`

	// EvidenceMaxUploadBytes caps an upload request body.
	EvidenceMaxUploadBytes int64 `env:"EVIDENCE_MAX_UPLOAD_BYTES" envDefault:"33554432"`

	PolicyFile   string        `env:"EVIDENCE_POLICY_FILE"`
	ShowingGrace time.Duration `env:"SHOWING_GRACE" envDefault:"1h"`
}

// Load reads the process environment.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads configuration from the given variables only.
func LoadFrom(environ map[string]string) (Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// UsesMemory reports whether the in-memory adapters back the service.
func (c Config) UsesMemory() bool { return c.DatabaseURL == "" }

func (c Config) Validate() error {
	var errs []error
	if c.ListenAddr == "" {
		errs = append(errs, errors.New("LISTEN_ADDR must not be empty"))
	}
	if c.OutboxPollInterval <= 0 {
		errs = append(errs, errors.New("OUTBOX_POLL_INTERVAL must be positive"))
	}
	if c.OutboxBatchSize <= 0 {
		errs = append(errs, errors.New("OUTBOX_BATCH_SIZE must be positive"))
	}
	if c.EvidenceURLTTL <= 0 {
		errs = append(errs, errors.New("EVIDENCE_URL_TTL must be positive"))
	}
	if c.EvidenceMaxUploadBytes <= 0 {
		errs = append(errs, errors.New("EVIDENCE_MAX_UPLOAD_BYTES must be positive"))
	}
	if c.ShowingGrace < 0 {
		errs = append(errs, errors.New("SHOWING_GRACE must not be negative"))
	}
	return errors.Join(errs...)
}
