package ledger_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"

	"estateledger/internal/core/apperror"
	"estateledger/internal/core/id"
	"estateledger/internal/core/types"
	"estateledger/internal/domain/safe"
	"estateledger/internal/infrastructure/storage/postgres"
)

// totalsSQL sums the live movements of one safe in a single statement.
const totalsSQL = `
	SELECT
		COALESCE((SELECT SUM(amount) FROM vouchers
		          WHERE safe_id = $1 AND type = 'receipt' AND NOT deletion_mark), 0) AS receipts,
		COALESCE((SELECT SUM(amount) FROM vouchers
		          WHERE safe_id = $1 AND type = 'payment' AND NOT deletion_mark), 0) AS payments,
		COALESCE((SELECT SUM(amount) FROM transfers
		          WHERE to_safe_id = $1 AND NOT deletion_mark), 0) AS transfers_in,
		COALESCE((SELECT SUM(amount) FROM transfers
		          WHERE from_safe_id = $1 AND NOT deletion_mark), 0) AS transfers_out
`

// SafeRepo implements safe.SafeRepository.
type SafeRepo struct {
	t *table[safe.Safe, *safe.Safe]
}

// NewSafeRepo creates a new safe repository.
func NewSafeRepo(tm *postgres.TxManager) *SafeRepo {
	return &SafeRepo{t: newTable[safe.Safe, *safe.Safe](tm, "safes", "safe")}
}

func (r *SafeRepo) Create(ctx context.Context, s *safe.Safe) error {
	err := r.t.insert(ctx, s)
	if apperror.HasCode(err, apperror.CodeDuplicate) {
		return apperror.NewDuplicate("safe", "name", s.Name).WithCause(err)
	}
	return err
}

func (r *SafeRepo) GetByID(ctx context.Context, safeID id.ID) (*safe.Safe, error) {
	return r.t.get(ctx, safeID)
}

func (r *SafeRepo) List(ctx context.Context) ([]*safe.Safe, error) {
	return r.t.many(ctx, r.t.live().OrderBy("name"))
}

// SetBalance writes the cached balance without touching the version: the
// row lock taken by the reconciler already serializes balance changes.
func (r *SafeRepo) SetBalance(ctx context.Context, safeID id.ID, balance types.Money) error {
	n, err := r.t.exec(ctx, Builder().
		Update("safes").
		Set("balance", balance).
		Set("updated_at", time.Now().UTC()).
		Where("id = ?", safeID))
	if err != nil {
		return err
	}
	if n == 0 {
		return apperror.NewNotFound("safe", safeID.String())
	}
	return nil
}

func (r *SafeRepo) Totals(ctx context.Context, safeID id.ID) (safe.Totals, error) {
	var totals safe.Totals
	if err := pgxscan.Get(ctx, r.t.querier(ctx), &totals, totalsSQL, safeID); err != nil {
		return safe.Totals{}, fmt.Errorf("safe totals: %w", err)
	}
	return totals, nil
}

// VoucherRepo implements safe.VoucherRepository.
type VoucherRepo struct {
	t *table[safe.Voucher, *safe.Voucher]
}

// NewVoucherRepo creates a new voucher repository.
func NewVoucherRepo(tm *postgres.TxManager) *VoucherRepo {
	return &VoucherRepo{t: newTable[safe.Voucher, *safe.Voucher](tm, "vouchers", "voucher")}
}

func (r *VoucherRepo) Create(ctx context.Context, v *safe.Voucher) error {
	return r.t.insert(ctx, v)
}

func (r *VoucherRepo) GetByID(ctx context.Context, voucherID id.ID) (*safe.Voucher, error) {
	return r.t.get(ctx, voucherID)
}

func (r *VoucherRepo) GetForUpdate(ctx context.Context, voucherID id.ID) (*safe.Voucher, error) {
	return r.t.getForUpdate(ctx, voucherID)
}

func (r *VoucherRepo) Update(ctx context.Context, v *safe.Voucher) error {
	return r.t.update(ctx, v)
}

func (r *VoucherRepo) Delete(ctx context.Context, voucherID id.ID) error {
	return r.t.markDeleted(ctx, voucherID)
}

// TransferRepo implements safe.TransferRepository.
type TransferRepo struct {
	t *table[safe.Transfer, *safe.Transfer]
}

// NewTransferRepo creates a new transfer repository.
func NewTransferRepo(tm *postgres.TxManager) *TransferRepo {
	return &TransferRepo{t: newTable[safe.Transfer, *safe.Transfer](tm, "transfers", "transfer")}
}

func (r *TransferRepo) Create(ctx context.Context, t *safe.Transfer) error {
	return r.t.insert(ctx, t)
}

func (r *TransferRepo) GetByID(ctx context.Context, transferID id.ID) (*safe.Transfer, error) {
	return r.t.get(ctx, transferID)
}

func (r *TransferRepo) GetForUpdate(ctx context.Context, transferID id.ID) (*safe.Transfer, error) {
	return r.t.getForUpdate(ctx, transferID)
}

func (r *TransferRepo) Delete(ctx context.Context, transferID id.ID) error {
	return r.t.markDeleted(ctx, transferID)
}

var (
	_ safe.SafeRepository     = (*SafeRepo)(nil)
	_ safe.VoucherRepository  = (*VoucherRepo)(nil)
	_ safe.TransferRepository = (*TransferRepo)(nil)
)
