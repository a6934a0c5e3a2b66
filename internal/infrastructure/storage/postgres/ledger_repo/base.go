// Package ledger_repo provides PostgreSQL implementations of the ledger
// repositories. Every method runs on the transaction carried by ctx, or
// on the pool when there is none.
package ledger_repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"estateledger/internal/core/apperror"
	"estateledger/internal/core/entity"
	"estateledger/internal/core/id"
	"estateledger/internal/infrastructure/storage/postgres"
)

// sqlStateUniqueViolation is unique_violation.
const sqlStateUniqueViolation = "23505"

// record is a pointer to a struct embedding entity.BaseEntity.
type record[T any] interface {
	*T
	Base() *entity.BaseEntity
}

// table carries the generic CRUD shared by every ledger table.
type table[T any, P record[T]] struct {
	name       string
	entity     string
	selectCols []string
	txManager  *postgres.TxManager
}

func newTable[T any, P record[T]](tm *postgres.TxManager, name, entityName string) *table[T, P] {
	return &table[T, P]{
		name:       name,
		entity:     entityName,
		selectCols: postgres.ExtractDBColumns[T](),
		txManager:  tm,
	}
}

// Builder returns a squirrel builder with PostgreSQL placeholders.
func Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (t *table[T, P]) querier(ctx context.Context) postgres.Querier {
	return t.txManager.GetQuerier(ctx)
}

func (t *table[T, P]) baseSelect() squirrel.SelectBuilder {
	return Builder().Select(t.selectCols...).From(t.name)
}

// live filters out soft-deleted rows.
func (t *table[T, P]) live() squirrel.SelectBuilder {
	return t.baseSelect().Where(squirrel.Eq{"deletion_mark": false})
}

func (t *table[T, P]) insertQuery(row P) squirrel.InsertBuilder {
	return Builder().Insert(t.name).SetMap(postgres.StructToMap(row))
}

func (t *table[T, P]) insert(ctx context.Context, row P) error {
	sql, args, err := t.insertQuery(row).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := t.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return t.writeError("insert", err)
	}
	return nil
}

// updateQuery sets every column except id and version and matches the
// caller's version.
func (t *table[T, P]) updateQuery(row P) squirrel.UpdateBuilder {
	base := row.Base()
	data := postgres.Without(postgres.StructToMap(row), "id", "version", "created_at")
	return Builder().
		Update(t.name).
		SetMap(data).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": base.ID}).
		Where(squirrel.Eq{"version": base.Version})
}

// update stores row with optimistic locking and advances its version.
func (t *table[T, P]) update(ctx context.Context, row P) error {
	base := row.Base()
	base.Touch()

	sql, args, err := t.updateQuery(row).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	result, err := t.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return t.writeError("update", err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewConcurrentModification(t.entity, base.ID.String())
	}
	base.Version++
	return nil
}

func (t *table[T, P]) markDeletedQuery(rowID id.ID, at time.Time) squirrel.UpdateBuilder {
	return Builder().
		Update(t.name).
		Set("deletion_mark", true).
		Set("deleted_at", at).
		Set("updated_at", at).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"id": rowID})
}

func (t *table[T, P]) markDeleted(ctx context.Context, rowID id.ID) error {
	sql, args, err := t.markDeletedQuery(rowID, time.Now().UTC()).ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	result, err := t.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete %s: %w", t.name, err)
	}
	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(t.entity, rowID.String())
	}
	return nil
}

func (t *table[T, P]) get(ctx context.Context, rowID id.ID) (P, error) {
	return t.one(ctx, t.baseSelect().Where(squirrel.Eq{"id": rowID}), rowID.String())
}

func (t *table[T, P]) getForUpdate(ctx context.Context, rowID id.ID) (P, error) {
	return t.one(ctx, t.baseSelect().Where(squirrel.Eq{"id": rowID}).Suffix("FOR UPDATE"), rowID.String())
}

// one runs q and scans a single row; key names the row in NotFound errors.
func (t *table[T, P]) one(ctx context.Context, q squirrel.SelectBuilder, key string) (P, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var row T
	if err := pgxscan.Get(ctx, t.querier(ctx), &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(t.entity, key)
		}
		return nil, fmt.Errorf("get %s: %w", t.name, err)
	}
	return P(&row), nil
}

func (t *table[T, P]) many(ctx context.Context, q squirrel.SelectBuilder) ([]P, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var rows []P
	if err := pgxscan.Select(ctx, t.querier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list %s: %w", t.name, err)
	}
	return rows, nil
}

// exec runs a statement and reports the affected row count.
func (t *table[T, P]) exec(ctx context.Context, b squirrel.Sqlizer) (int64, error) {
	sql, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build statement: %w", err)
	}
	result, err := t.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("exec on %s: %w", t.name, err)
	}
	return result.RowsAffected(), nil
}

// scalar runs q and scans its single column into dest.
func (t *table[T, P]) scalar(ctx context.Context, q squirrel.SelectBuilder, dest ...any) error {
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if err := t.querier(ctx).QueryRow(ctx, sql, args...).Scan(dest...); err != nil {
		return fmt.Errorf("query %s: %w", t.name, err)
	}
	return nil
}

func (t *table[T, P]) writeError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == sqlStateUniqueViolation {
		return apperror.NewDuplicate(t.entity, pgErr.ConstraintName, pgErr.Detail).WithCause(err)
	}
	return fmt.Errorf("%s %s: %w", op, t.name, err)
}
