package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"

	"estateledger/internal/core/id"
	"estateledger/internal/domain/events"
	"estateledger/pkg/logger"
)

// OutboxStatus represents the state of an outbox message.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// MaxOutboxRetries is the number of failed deliveries after which a
// message is parked as failed.
const MaxOutboxRetries = 5

const insertOutbox = `
	INSERT INTO sys_outbox (id, aggregate_type, aggregate_id, event_type, payload, status, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
`

// OutboxMessage is a stored ledger event.
type OutboxMessage struct {
	ID            id.ID        `db:"id"`
	AggregateType string       `db:"aggregate_type"`
	AggregateID   id.ID        `db:"aggregate_id"`
	EventType     string       `db:"event_type"`
	Payload       []byte       `db:"payload"`
	Status        OutboxStatus `db:"status"`
	RetryCount    int          `db:"retry_count"`
	LastError     *string      `db:"last_error"`
	NextRetryAt   *time.Time   `db:"next_retry_at"`
	CreatedAt     time.Time    `db:"created_at"`
	PublishedAt   *time.Time   `db:"published_at"`
}

// OutboxPublisher implements events.Publisher by writing to sys_outbox in
// the caller's transaction: an event exists exactly when its change
// committed.
type OutboxPublisher struct {
	txManager *TxManager
	batch     *BatchInserter
}

var _ events.Publisher = (*OutboxPublisher)(nil)

// NewOutboxPublisher creates a new outbox publisher.
func NewOutboxPublisher(txManager *TxManager) *OutboxPublisher {
	return &OutboxPublisher{txManager: txManager, batch: NewBatchInserter(txManager)}
}

// Publish implements events.Publisher. Must be called inside a transaction.
func (p *OutboxPublisher) Publish(ctx context.Context, evs ...events.Event) error {
	if len(evs) == 0 {
		return nil
	}
	pgTx := p.txManager.GetTx(ctx)
	if pgTx == nil {
		return fmt.Errorf("outbox publish requires a transaction")
	}

	queries := make([]BatchQuery, 0, len(evs))
	for _, e := range evs {
		args, err := outboxArgs(e)
		if err != nil {
			return err
		}
		queries = append(queries, BatchQuery{SQL: insertOutbox, Args: args})
	}

	if len(queries) == 1 {
		if _, err := pgTx.Exec(ctx, queries[0].SQL, queries[0].Args...); err != nil {
			return fmt.Errorf("insert outbox message: %w", err)
		}
		return nil
	}

	if _, err := p.batch.ExecuteBatch(ctx, queries); err != nil {
		return fmt.Errorf("insert outbox messages: %w", err)
	}
	return nil
}

func outboxArgs(e events.Event) ([]any, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", e.Type, err)
	}
	occurred := e.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	return []any{id.New(), e.AggregateType, e.AggregateID, e.Type, payload, OutboxStatusPending, occurred}, nil
}

// OutboxHandler delivers one message. A returned error schedules a retry.
type OutboxHandler interface {
	Handle(ctx context.Context, msg *OutboxMessage) error
}

// OutboxHandlerFunc adapts a function to OutboxHandler.
type OutboxHandlerFunc func(ctx context.Context, msg *OutboxMessage) error

// Handle implements OutboxHandler.
func (f OutboxHandlerFunc) Handle(ctx context.Context, msg *OutboxMessage) error { return f(ctx, msg) }

// OutboxRelay drains pending messages to a handler.
type OutboxRelay struct {
	txManager *TxManager
	batchSize int
	handler   OutboxHandler
}

// NewOutboxRelay creates a relay. batchSize ≤ 0 means 100.
func NewOutboxRelay(txManager *TxManager, batchSize int, handler OutboxHandler) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxRelay{txManager: txManager, batchSize: batchSize, handler: handler}
}

// ProcessBatch delivers up to batchSize due messages and returns how many
// succeeded. Rows are claimed with SKIP LOCKED so relays can run side by side.
func (r *OutboxRelay) ProcessBatch(ctx context.Context) (int, error) {
	processed := 0

	err := r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var messages []*OutboxMessage
		err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &messages, `
			SELECT id, aggregate_type, aggregate_id, event_type, payload, status,
			       retry_count, last_error, next_retry_at, created_at, published_at
			FROM sys_outbox
			WHERE status = $1
			  AND (next_retry_at IS NULL OR next_retry_at <= NOW())
			ORDER BY created_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		`, OutboxStatusPending, r.batchSize)
		if err != nil {
			return fmt.Errorf("fetch outbox messages: %w", err)
		}

		for _, msg := range messages {
			if err := r.deliver(ctx, msg); err != nil {
				logger.Warn(ctx, "outbox delivery failed",
					"message_id", msg.ID, "event_type", msg.EventType, "retry", msg.RetryCount+1, "error", err)
				continue
			}
			processed++
		}
		return nil
	})
	return processed, err
}

func (r *OutboxRelay) deliver(ctx context.Context, msg *OutboxMessage) error {
	q := r.txManager.GetQuerier(ctx)

	if err := r.handler.Handle(ctx, msg); err != nil {
		nextRetry := time.Now().UTC().Add(time.Duration(msg.RetryCount+1) * time.Minute)
		_, updateErr := q.Exec(ctx, `
			UPDATE sys_outbox
			SET retry_count = retry_count + 1,
			    last_error = $1,
			    next_retry_at = $2,
			    status = CASE WHEN retry_count + 1 >= $3 THEN $4 ELSE status END
			WHERE id = $5
		`, err.Error(), nextRetry, MaxOutboxRetries, OutboxStatusFailed, msg.ID)
		if updateErr != nil {
			return fmt.Errorf("record failure: %w", updateErr)
		}
		return err
	}

	_, err := q.Exec(ctx, `
		UPDATE sys_outbox SET status = $1, published_at = $2 WHERE id = $3
	`, OutboxStatusPublished, time.Now().UTC(), msg.ID)
	if err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	return nil
}
