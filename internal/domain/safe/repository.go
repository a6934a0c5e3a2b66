package safe

import (
	"context"

	"estateledger/internal/core/id"
	"estateledger/internal/core/types"
)

// SafeRepository persists safes.
type SafeRepository interface {
	Create(ctx context.Context, s *Safe) error
	GetByID(ctx context.Context, safeID id.ID) (*Safe, error)
	List(ctx context.Context) ([]*Safe, error)
	// SetBalance overwrites the cached balance. Reconciler only.
	SetBalance(ctx context.Context, safeID id.ID, balance types.Money) error
	// Totals sums the non-deleted vouchers and transfers of a safe.
	Totals(ctx context.Context, safeID id.ID) (Totals, error)
}

// VoucherRepository persists vouchers.
type VoucherRepository interface {
	Create(ctx context.Context, v *Voucher) error
	GetByID(ctx context.Context, voucherID id.ID) (*Voucher, error)
	// GetForUpdate locks the voucher row for the rest of the transaction.
	GetForUpdate(ctx context.Context, voucherID id.ID) (*Voucher, error)
	Update(ctx context.Context, v *Voucher) error
	// Delete sets the deletion mark.
	Delete(ctx context.Context, voucherID id.ID) error
}

// TransferRepository persists transfers.
type TransferRepository interface {
	Create(ctx context.Context, t *Transfer) error
	GetByID(ctx context.Context, transferID id.ID) (*Transfer, error)
	GetForUpdate(ctx context.Context, transferID id.ID) (*Transfer, error)
	Delete(ctx context.Context, transferID id.ID) error
}
