package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"estateledger/internal/core/apperror"
	"estateledger/internal/core/id"
	"estateledger/internal/core/tx"
)

// lockTables maps row-backed lock scopes to their tables.
var lockTables = map[tx.LockScope]string{
	tx.LockSafe:         "safes",
	tx.LockContract:     "contracts",
	tx.LockPartnerGroup: "partner_groups",
}

// Units live outside the ledger schema, so unit locks are transaction
// scoped advisory locks keyed by the unit id.
const advisoryUnitLock = `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`

// sqlStateLockTimeout is lock_not_available, raised when lock_timeout expires.
const sqlStateLockTimeout = "55P03"

// Lock implements tx.Locker with SELECT ... FOR UPDATE. Rows are locked in
// id order, so any two callers locking overlapping sets agree on the order.
func (m *TxManager) Lock(ctx context.Context, scope tx.LockScope, ids ...id.ID) error {
	pgTx := m.GetTx(ctx)
	if pgTx == nil {
		return fmt.Errorf("lock %s outside of a transaction", scope)
	}
	ids = tx.SortedUnique(ids)
	if len(ids) == 0 {
		return nil
	}

	if scope == tx.LockUnit {
		for _, v := range ids {
			if _, err := pgTx.Exec(ctx, advisoryUnitLock, "unit:"+v.String()); err != nil {
				return lockError(scope, err)
			}
		}
		return nil
	}

	table, ok := lockTables[scope]
	if !ok {
		return fmt.Errorf("unknown lock scope %q", scope)
	}

	rows, err := pgTx.Query(ctx, lockQuery(table), ids)
	if err != nil {
		return lockError(scope, err)
	}
	defer rows.Close()

	// Missing rows are reported by the caller's subsequent read.
	for rows.Next() {
	}
	if err := rows.Err(); err != nil {
		return lockError(scope, err)
	}
	return nil
}

func lockQuery(table string) string {
	var b strings.Builder
	b.WriteString("SELECT id FROM ")
	b.WriteString(table)
	b.WriteString(" WHERE id = ANY($1) ORDER BY id FOR UPDATE")
	return b.String()
}

func lockError(scope tx.LockScope, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == sqlStateLockTimeout {
		return apperror.NewConcurrentModification(string(scope), "lock timeout").WithCause(err)
	}
	return fmt.Errorf("lock %s: %w", scope, err)
}
