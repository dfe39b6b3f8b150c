package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Config struct {
	DatabaseDSN string
	Port        string
	Env         string

	// SettleSuccessRate is the probability the simulated rail pays an item.
	SettleSuccessRate float64
	// StuckBatchTimeout is how long a batch may sit in processing before the
	// recovery sweeper resumes it.
	StuckBatchTimeout time.Duration
	SweepInterval     time.Duration
}

func Load() (*Config, error) {
	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_DSN environment variable is required")
	}

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	successRate := 0.95
	if raw := os.Getenv("SETTLE_SUCCESS_RATE"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < 0 || parsed > 1 {
			return nil, fmt.Errorf("invalid SETTLE_SUCCESS_RATE %q", raw)
		}
		successRate = parsed
	}

	stuckTimeout := 10 * time.Minute
	if raw := os.Getenv("STUCK_BATCH_TIMEOUT"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid STUCK_BATCH_TIMEOUT %q", raw)
		}
		stuckTimeout = parsed
	}

	sweepInterval := time.Minute
	if raw := os.Getenv("STUCK_SWEEP_INTERVAL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid STUCK_SWEEP_INTERVAL %q", raw)
		}
		sweepInterval = parsed
	}

	return &Config{
		DatabaseDSN:       dsn,
		Port:              port,
		Env:               env,
		SettleSuccessRate: successRate,
		StuckBatchTimeout: stuckTimeout,
		SweepInterval:     sweepInterval,
	}, nil
}

// InitDB opens the postgres connection for the batch store.
func InitDB(cfg *Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return db, nil
}
