package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// BatchInserter bulk inserts rows with the COPY protocol. Used for
// schedule batches, which are written as a whole.
type BatchInserter struct {
	txManager *TxManager
}

// NewBatchInserter creates a new batch inserter.
func NewBatchInserter(txManager *TxManager) *BatchInserter {
	return &BatchInserter{txManager: txManager}
}

// CopyFromSlice copies rows into table. It must run inside a transaction
// so a failed batch leaves nothing behind.
func (b *BatchInserter) CopyFromSlice(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	pgTx := b.txManager.GetTx(ctx)
	if pgTx == nil {
		return 0, fmt.Errorf("copy into %s requires a transaction", table)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return pgTx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
}

// BatchQuery is one statement of a batch.
type BatchQuery struct {
	SQL  string
	Args []any
}

// ExecuteBatch sends queries in one round trip and reports the total
// number of affected rows.
func (b *BatchInserter) ExecuteBatch(ctx context.Context, queries []BatchQuery) (int64, error) {
	pgTx := b.txManager.GetTx(ctx)
	if pgTx == nil {
		return 0, fmt.Errorf("batch requires a transaction")
	}

	batch := &pgx.Batch{}
	for _, q := range queries {
		batch.Queue(q.SQL, q.Args...)
	}

	results := pgTx.SendBatch(ctx, batch)
	defer results.Close()

	var affected int64
	for i := range queries {
		tag, err := results.Exec()
		if err != nil {
			return affected, fmt.Errorf("batch statement %d: %w", i, err)
		}
		affected += tag.RowsAffected()
	}
	return affected, nil
}
