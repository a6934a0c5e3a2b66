// Package postgres provides the PostgreSQL side of the ledger: connection
// pool, transactions with row locking, COPY batch inserts, the event
// outbox, the audit journal and schema migrations.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"

	"estateledger/pkg/logger"
)

// ApplicationName is reported to the server for every connection.
const ApplicationName = "estateledger"

// PoolConfig holds connection pool configuration.
type PoolConfig struct {
	DSN               string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	// LogQueries traces every statement at debug level.
	LogQueries bool
}

// DefaultPoolConfig returns defaults sized for a single back-office
// instance.
func DefaultPoolConfig(dsn string) PoolConfig {
	return PoolConfig{
		DSN:               dsn,
		MaxConns:          10,
		MinConns:          2,
		MaxConnLifetime:   time.Hour,
		MaxConnIdleTime:   30 * time.Minute,
		HealthCheckPeriod: time.Minute,
	}
}

func (c PoolConfig) parse() (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(c.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse DSN: %w", err)
	}
	if c.MaxConns > 0 {
		pc.MaxConns = c.MaxConns
	}
	if c.MinConns > 0 {
		pc.MinConns = c.MinConns
	}
	pc.MaxConnLifetime = c.MaxConnLifetime
	pc.MaxConnIdleTime = c.MaxConnIdleTime
	pc.HealthCheckPeriod = c.HealthCheckPeriod

	pc.ConnConfig.RuntimeParams["application_name"] = ApplicationName
	if c.LogQueries {
		pc.ConnConfig.Tracer = &tracelog.TraceLog{
			Logger:   tracelog.LoggerFunc(logQuery),
			LogLevel: tracelog.LogLevelDebug,
		}
	}
	return pc, nil
}

// logQuery forwards pgx trace output to the context logger.
func logQuery(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	kv := make([]any, 0, 2*len(data))
	for k, v := range data {
		kv = append(kv, k, v)
	}
	log := logger.FromContext(ctx).WithComponent("pgx")
	switch level {
	case tracelog.LogLevelError:
		log.Errorw(msg, kv...)
	case tracelog.LogLevelWarn:
		log.Warnw(msg, kv...)
	case tracelog.LogLevelInfo:
		log.Infow(msg, kv...)
	default:
		log.Debugw(msg, kv...)
	}
}

// Pool wraps pgxpool.Pool.
type Pool struct {
	*pgxpool.Pool
}

// Close closes all connections in the pool.
func (p *Pool) Close() {
	if p.Pool != nil {
		p.Pool.Close()
	}
}

// NewPool connects and pings the database.
func NewPool(ctx context.Context, cfg PoolConfig) (*Pool, error) {
	pc, err := cfg.parse()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info(ctx, "database pool ready",
		"host", pc.ConnConfig.Host,
		"database", pc.ConnConfig.Database,
		"max_conns", pc.MaxConns,
		"min_conns", pc.MinConns,
	)
	return &Pool{Pool: pool}, nil
}

// LogPoolStats logs acquisition counters, typically on shutdown.
func LogPoolStats(ctx context.Context, pool *Pool) {
	stat := pool.Stat()
	logger.Info(ctx, "database pool stats",
		"total", stat.TotalConns(),
		"acquired", stat.AcquiredConns(),
		"idle", stat.IdleConns(),
		"acquire_count", stat.AcquireCount(),
		"acquire_duration", stat.AcquireDuration(),
		"empty_acquire_count", stat.EmptyAcquireCount(),
	)
}
