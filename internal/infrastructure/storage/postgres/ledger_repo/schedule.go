package ledger_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"estateledger/internal/core/id"
	"estateledger/internal/domain/schedule"
	"estateledger/internal/infrastructure/storage/postgres"
)

const installmentsTable = "installments"

// InstallmentRepo implements schedule.Repository. Batches go through COPY.
type InstallmentRepo struct {
	t     *table[schedule.Installment, *schedule.Installment]
	batch *postgres.BatchInserter
}

// NewInstallmentRepo creates a new installment repository.
func NewInstallmentRepo(tm *postgres.TxManager) *InstallmentRepo {
	return &InstallmentRepo{
		t:     newTable[schedule.Installment, *schedule.Installment](tm, installmentsTable, "installment"),
		batch: postgres.NewBatchInserter(tm),
	}
}

func (r *InstallmentRepo) CreateBatch(ctx context.Context, items []*schedule.Installment) error {
	if len(items) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(items))
	for _, inst := range items {
		m := postgres.StructToMap(inst)
		row := make([]any, len(r.t.selectCols))
		for i, col := range r.t.selectCols {
			row[i] = copyValue(m[col])
		}
		rows = append(rows, row)
	}

	n, err := r.batch.CopyFromSlice(ctx, installmentsTable, r.t.selectCols, rows)
	if err != nil {
		return fmt.Errorf("copy installments: %w", err)
	}
	if n != int64(len(items)) {
		return fmt.Errorf("copy installments: wrote %d of %d rows", n, len(items))
	}
	return nil
}

// copyValue adapts values for the binary COPY protocol, which has no
// driver.Valuer fallback for numeric columns.
func copyValue(v any) any {
	if d, ok := v.(decimal.Decimal); ok {
		return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
	}
	return v
}

func (r *InstallmentRepo) GetByID(ctx context.Context, installmentID id.ID) (*schedule.Installment, error) {
	return r.t.get(ctx, installmentID)
}

func (r *InstallmentRepo) GetForUpdate(ctx context.Context, installmentID id.ID) (*schedule.Installment, error) {
	return r.t.getForUpdate(ctx, installmentID)
}

func (r *InstallmentRepo) Update(ctx context.Context, inst *schedule.Installment) error {
	return r.t.update(ctx, inst)
}

func (r *InstallmentRepo) ListByContract(ctx context.Context, contractID id.ID) ([]*schedule.Installment, error) {
	return r.t.many(ctx, r.t.live().
		Where(squirrel.Eq{"contract_id": contractID}).
		OrderBy("due_date", "sequence"))
}

func (r *InstallmentRepo) CountLiveByContract(ctx context.Context, contractID id.ID) (int, error) {
	var n int
	err := r.t.scalar(ctx, Builder().
		Select("COUNT(*)").
		From(installmentsTable).
		Where(squirrel.Eq{"contract_id": contractID, "deletion_mark": false}), &n)
	return n, err
}

func softDeleteByUnitQuery(unitID id.ID, at time.Time) squirrel.UpdateBuilder {
	return Builder().
		Update(installmentsTable).
		Set("deletion_mark", true).
		Set("deleted_at", at).
		Set("updated_at", at).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"unit_id": unitID, "deletion_mark": false})
}

func (r *InstallmentRepo) SoftDeleteByUnit(ctx context.Context, unitID id.ID, at time.Time) (int64, error) {
	return r.t.exec(ctx, softDeleteByUnitQuery(unitID, at))
}

func markOverdueQuery(asOf time.Time) squirrel.UpdateBuilder {
	return Builder().
		Update(installmentsTable).
		Set("status", schedule.StatusOverdue).
		Set("updated_at", time.Now().UTC()).
		Set("version", squirrel.Expr("version + 1")).
		Where(squirrel.Eq{"status": schedule.StatusPending, "deletion_mark": false}).
		Where(squirrel.Lt{"due_date": asOf})
}

func (r *InstallmentRepo) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	return r.t.exec(ctx, markOverdueQuery(asOf))
}

var _ schedule.Repository = (*InstallmentRepo)(nil)
