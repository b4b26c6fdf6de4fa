package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/portside-labs/portside/internal/matching"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Conversation platform API used for candidate search
	CommsBaseURL string        `envconfig:"COMMS_BASE_URL"`
	CommsToken   string        `envconfig:"COMMS_API_TOKEN"`
	CommsTimeout time.Duration `envconfig:"COMMS_TIMEOUT" default:"10s"`

	// Scoring weights
	WeightEmailMatch     float64 `envconfig:"WEIGHT_EMAIL_MATCH" default:"0.40"`
	WeightOrderInSubject float64 `envconfig:"WEIGHT_ORDER_IN_SUBJECT" default:"0.30"`
	WeightOrderInSearch  float64 `envconfig:"WEIGHT_ORDER_IN_SEARCH" default:"0.20"`
	WeightRecency        float64 `envconfig:"WEIGHT_RECENCY" default:"0.10"`
	RecencyHorizonDays   int     `envconfig:"RECENCY_HORIZON_DAYS" default:"90"`
	StaleAfterDays       int     `envconfig:"STALE_AFTER_DAYS" default:"180"`
	StalePenalty         float64 `envconfig:"STALE_PENALTY" default:"0.15"`

	// Classification thresholds
	AutoMatchThreshold float64 `envconfig:"AUTO_MATCH_THRESHOLD" default:"0.70"`
	ReviewThreshold    float64 `envconfig:"REVIEW_THRESHOLD" default:"0.20"`

	// Background discovery worker
	WorkerPollInterval time.Duration `envconfig:"WORKER_POLL_INTERVAL" default:"5s"`

	// Event delivery
	EventBufferSize int    `envconfig:"EVENT_BUFFER_SIZE" default:"64"`
	WebhookURL      string `envconfig:"WEBHOOK_URL"`

	// Match-evidence archive
	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"portside-evidence"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	// Bootstrap: create initial operator and API key on startup
	InitOperatorName string `envconfig:"INIT_OPERATOR_NAME"`
	InitAPIKey       string `envconfig:"INIT_API_KEY"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("PORTSIDE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Thresholds().Validate(); err != nil {
		return nil, fmt.Errorf("invalid thresholds: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasComms() bool {
	return c.CommsBaseURL != ""
}

func (c *Config) HasWebhook() bool {
	return c.WebhookURL != ""
}

// Weights maps the configured scoring knobs into the matching package.
func (c *Config) Weights() matching.Weights {
	return matching.Weights{
		EmailMatch:         c.WeightEmailMatch,
		OrderInSubject:     c.WeightOrderInSubject,
		OrderInSearch:      c.WeightOrderInSearch,
		Recency:            c.WeightRecency,
		RecencyHorizonDays: c.RecencyHorizonDays,
		StaleAfterDays:     c.StaleAfterDays,
		StalePenalty:       c.StalePenalty,
	}
}

func (c *Config) Thresholds() matching.Thresholds {
	return matching.Thresholds{
		AutoMatch: c.AutoMatchThreshold,
		Review:    c.ReviewThreshold,
	}
}
