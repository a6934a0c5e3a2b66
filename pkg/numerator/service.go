// Package numerator allocates voucher, transfer and broker-due numbers
// from the sys_sequences table.
package numerator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	corenum "estateledger/internal/core/numerator"
)

// Strategy defines the numbering generation strategy.
type Strategy int

const (
	// StrategyStrict bumps the sequence row for every number.
	// Gapless when called inside the business transaction.
	StrategyStrict Strategy = iota

	// StrategyCached reserves ranges of numbers in memory.
	// Faster, but leaves gaps after a restart.
	StrategyCached
)

// ParseStrategy maps a config value ("strict", "cached") to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "strict":
		return StrategyStrict, nil
	case "cached":
		return StrategyCached, nil
	default:
		return StrategyStrict, fmt.Errorf("unknown numbering strategy %q", s)
	}
}

// Options configuration for number generation.
type Options struct {
	Strategy Strategy
	// RangeSize is the number of values reserved at once by StrategyCached.
	// Default is 50.
	RangeSize int64
	// PadWidth is the minimum width of the numeric part (default 5).
	PadWidth int
}

// Querier interface for database operations.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type cachedRange struct {
	current int64
	max     int64
}

// Service implements core numerator.Generator on PostgreSQL.
type Service struct {
	querier Querier
	opts    Options

	cacheMu sync.Mutex
	ranges  map[string]*cachedRange
}

// New creates a numerator backed by querier.
func New(querier Querier, opts Options) *Service {
	if opts.RangeSize <= 0 {
		opts.RangeSize = 50
	}
	if opts.PadWidth <= 0 {
		opts.PadWidth = 5
	}
	return &Service{
		querier: querier,
		opts:    opts,
		ranges:  make(map[string]*cachedRange),
	}
}

// Next returns the next number for prefix in the year of at.
// Pattern: PREFIX-YEAR-XXXXX (e.g., RV-2026-00001).
func (s *Service) Next(ctx context.Context, prefix string, at time.Time) (string, error) {
	if s == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}

	key := buildKey(prefix, at)

	var (
		num int64
		err error
	)
	switch s.opts.Strategy {
	case StrategyCached:
		num, err = s.nextCached(ctx, key)
	default:
		num, err = s.reserve(ctx, key, 1)
	}
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s-%d-%0*d", prefix, at.Year(), s.opts.PadWidth, num), nil
}

// reserve bumps the sequence by n and returns the new last value.
func (s *Service) reserve(ctx context.Context, key string, n int64) (int64, error) {
	var last int64
	err := s.querier.QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + $2
		RETURNING current_val
	`, key, n).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("reserve %s: %w", key, err)
	}
	return last, nil
}

func (s *Service) nextCached(ctx context.Context, key string) (int64, error) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	rng, ok := s.ranges[key]
	if !ok {
		rng = &cachedRange{}
		s.ranges[key] = rng
	}

	if rng.current >= rng.max {
		newMax, err := s.reserve(ctx, key, s.opts.RangeSize)
		if err != nil {
			return 0, err
		}
		// Range is (newMax - size, newMax].
		rng.current = newMax - s.opts.RangeSize
		rng.max = newMax
	}

	rng.current++
	return rng.current, nil
}

func buildKey(prefix string, at time.Time) string {
	return fmt.Sprintf("%s_%s", prefix, at.Format("2006"))
}

// ParseNumber extracts numeric part from formatted number.
// Returns -1 if parsing fails.
func ParseNumber(formatted string) int64 {
	var num int64
	if _, err := fmt.Sscanf(formatted[strings.LastIndex(formatted, "-")+1:], "%d", &num); err != nil {
		return -1
	}
	return num
}

var _ corenum.Generator = (*Service)(nil)
