// Package config loads ledgerd settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"estateledger/internal/core/types"
	"estateledger/internal/domain/partner"
	"estateledger/internal/domain/schedule"
	"estateledger/pkg/numerator"
)

// Config holds application configuration.
type Config struct {
	DatabaseURL      string
	DBMaxConns       int32
	DBMinConns       int32
	StatementTimeout time.Duration
	LockTimeout      time.Duration
	DBLogQueries     bool

	LogLevel      string
	IsDevelopment bool

	Schedule         schedule.Options
	PercentTolerance types.Percent
	Numbering        numerator.Strategy

	AuditCompressThreshold int
	OutboxBatchSize        int
}

// Load reads configuration. A missing .env file is not an error; real
// environment variables take precedence over it.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("DB_STATEMENT_TIMEOUT", "30s")
	v.SetDefault("DB_LOCK_TIMEOUT", "5s")
	v.SetDefault("DB_LOG_QUERIES", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("APP_ENV", "production")
	v.SetDefault("SCHEDULE_DATE_POLICY", "calendar")
	v.SetDefault("SCHEDULE_REMAINDER_POLICY", "last_installment")
	v.SetDefault("PERCENT_TOLERANCE", partner.DefaultTolerance.String())
	v.SetDefault("VOUCHER_NUMBERING", "strict")
	v.SetDefault("AUDIT_COMPRESS_THRESHOLD", 4096)
	v.SetDefault("OUTBOX_BATCH_SIZE", 100)
	v.AutomaticEnv()

	cfg := &Config{
		DatabaseURL:            v.GetString("DATABASE_URL"),
		DBMaxConns:             v.GetInt32("DB_MAX_CONNS"),
		DBMinConns:             v.GetInt32("DB_MIN_CONNS"),
		DBLogQueries:           v.GetBool("DB_LOG_QUERIES"),
		LogLevel:               strings.ToLower(v.GetString("LOG_LEVEL")),
		IsDevelopment:          strings.EqualFold(v.GetString("APP_ENV"), "development"),
		AuditCompressThreshold: v.GetInt("AUDIT_COMPRESS_THRESHOLD"),
		OutboxBatchSize:        v.GetInt("OUTBOX_BATCH_SIZE"),
	}

	var errs []error

	var err error
	if cfg.StatementTimeout, err = time.ParseDuration(v.GetString("DB_STATEMENT_TIMEOUT")); err != nil {
		errs = append(errs, fmt.Errorf("DB_STATEMENT_TIMEOUT: %w", err))
	}
	if cfg.LockTimeout, err = time.ParseDuration(v.GetString("DB_LOCK_TIMEOUT")); err != nil {
		errs = append(errs, fmt.Errorf("DB_LOCK_TIMEOUT: %w", err))
	}
	if cfg.Schedule.DatePolicy, err = schedule.ParseDatePolicy(v.GetString("SCHEDULE_DATE_POLICY")); err != nil {
		errs = append(errs, fmt.Errorf("SCHEDULE_DATE_POLICY: %w", err))
	}
	if cfg.Schedule.Remainder, err = schedule.ParseRemainderPolicy(v.GetString("SCHEDULE_REMAINDER_POLICY")); err != nil {
		errs = append(errs, fmt.Errorf("SCHEDULE_REMAINDER_POLICY: %w", err))
	}
	if cfg.PercentTolerance, err = types.NewMoneyFromString(v.GetString("PERCENT_TOLERANCE")); err != nil || cfg.PercentTolerance.IsNegative() {
		errs = append(errs, fmt.Errorf("PERCENT_TOLERANCE: invalid value %q", v.GetString("PERCENT_TOLERANCE")))
	}
	if cfg.Numbering, err = numerator.ParseStrategy(v.GetString("VOUCHER_NUMBERING")); err != nil {
		errs = append(errs, fmt.Errorf("VOUCHER_NUMBERING: %w", err))
	}
	if cfg.DBMaxConns <= 0 || cfg.DBMinConns < 0 || cfg.DBMinConns > cfg.DBMaxConns {
		errs = append(errs, fmt.Errorf("DB_MIN_CONNS/DB_MAX_CONNS: need 0 ≤ min ≤ max and max > 0, got %d/%d",
			cfg.DBMinConns, cfg.DBMaxConns))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RequireDatabase reports whether DATABASE_URL is set.
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is not set")
	}
	return nil
}
