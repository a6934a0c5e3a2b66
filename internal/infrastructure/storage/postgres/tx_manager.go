package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"estateledger/internal/core/tx"
	"estateledger/pkg/logger"
)

var tracer = otel.Tracer("estateledger/postgres")

var (
	_ tx.ReadOnlyManager = (*TxManager)(nil)
	_ tx.Locker          = (*TxManager)(nil)
)

// TxOptions configures transaction behavior.
type TxOptions struct {
	IsolationLevel pgx.TxIsoLevel
	AccessMode     pgx.TxAccessMode

	// StatementTimeout caps every statement of the transaction.
	StatementTimeout time.Duration

	// LockTimeout caps the wait for row locks taken by Lock.
	LockTimeout time.Duration
}

// DefaultTxOptions returns read-committed, read-write with a 30s
// statement timeout. Balance writes rely on row locks, not on
// serializable isolation.
func DefaultTxOptions() TxOptions {
	return TxOptions{
		IsolationLevel:   pgx.ReadCommitted,
		AccessMode:       pgx.ReadWrite,
		StatementTimeout: 30 * time.Second,
		LockTimeout:      5 * time.Second,
	}
}

// Querier is the subset of pgx shared by the pool and a transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxManager runs functions inside pgx transactions. The active
// transaction travels in the context; nested calls join it.
type TxManager struct {
	pool *pgxpool.Pool
	opts TxOptions
}

// NewTxManager creates a transaction manager over pool.
func NewTxManager(pool *Pool) *TxManager {
	return &TxManager{pool: pool.Pool, opts: DefaultTxOptions()}
}

// WithOptions returns a copy of m using opts for new transactions.
func (m *TxManager) WithOptions(opts TxOptions) *TxManager {
	return &TxManager{pool: m.pool, opts: opts}
}

type txKey struct{}

// RunInTransaction implements tx.Manager.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.run(ctx, m.opts, fn)
}

// ReadOnly implements tx.ReadOnlyManager.
func (m *TxManager) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	opts := m.opts
	opts.AccessMode = pgx.ReadOnly
	return m.run(ctx, opts, fn)
}

func (m *TxManager) run(ctx context.Context, opts TxOptions, fn func(ctx context.Context) error) (err error) {
	if m.GetTx(ctx) != nil {
		return fn(ctx)
	}

	ctx, span := tracer.Start(ctx, "transaction", trace.WithAttributes(
		attribute.String("tx.isolation", string(opts.IsolationLevel)),
		attribute.String("tx.access", string(opts.AccessMode)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	pgTx, err := m.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   opts.IsolationLevel,
		AccessMode: opts.AccessMode,
	})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := setLocalTimeouts(ctx, pgTx, opts); err != nil {
		_ = pgTx.Rollback(context.Background())
		return err
	}

	if err := fn(context.WithValue(ctx, txKey{}, pgTx)); err != nil {
		// Background context so the rollback completes after cancellation.
		if rbErr := pgTx.Rollback(context.Background()); rbErr != nil {
			logger.Error(ctx, "rollback failed", "error", rbErr, "original_error", err)
		}
		return err
	}

	if err := pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func setLocalTimeouts(ctx context.Context, pgTx pgx.Tx, opts TxOptions) error {
	if opts.StatementTimeout > 0 {
		if _, err := pgTx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = '%dms'", opts.StatementTimeout.Milliseconds())); err != nil {
			return fmt.Errorf("set statement_timeout: %w", err)
		}
	}
	if opts.LockTimeout > 0 {
		if _, err := pgTx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", opts.LockTimeout.Milliseconds())); err != nil {
			return fmt.Errorf("set lock_timeout: %w", err)
		}
	}
	return nil
}

// GetTx returns the transaction carried by ctx, or nil.
func (m *TxManager) GetTx(ctx context.Context) pgx.Tx {
	if t, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return t
	}
	return nil
}

// GetQuerier returns the transaction in ctx, or the pool outside one.
func (m *TxManager) GetQuerier(ctx context.Context) Querier {
	if t := m.GetTx(ctx); t != nil {
		return t
	}
	return m.pool
}

// QueryRow runs on the querier of ctx, so callers such as the numerator
// take part in the caller's transaction.
func (m *TxManager) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return m.GetQuerier(ctx).QueryRow(ctx, sql, args...)
}
