// Package safe provides cash safes, the vouchers and transfers that move
// money through them, and the Reconciler that keeps each safe's cached
// balance equal to the sum of its movements.
package safe

import (
	"context"
	"time"

	"estateledger/internal/core/apperror"
	"estateledger/internal/core/entity"
	"estateledger/internal/core/id"
	"estateledger/internal/core/numerator"
	"estateledger/internal/core/types"
	"estateledger/internal/core/validate"
)

// Safe is a named cash account.
// Balance is written only by the Reconciler.
type Safe struct {
	entity.BaseEntity

	Name    string      `db:"name" json:"name" validate:"required,max=100"`
	Balance types.Money `db:"balance" json:"balance"`
}

// NewSafe creates an empty safe.
func NewSafe(name string) *Safe {
	return &Safe{
		BaseEntity: entity.NewBaseEntity(),
		Name:       name,
		Balance:    types.Zero(),
	}
}

// Validate implements entity.Validatable.
func (s *Safe) Validate(ctx context.Context) error {
	return validate.Struct(s)
}

// VoucherType tells receipts from payments.
type VoucherType string

const (
	VoucherReceipt VoucherType = "receipt"
	VoucherPayment VoucherType = "payment"
)

// Direction of the voucher's effect on its safe. Unknown types have no
// direction.
func (t VoucherType) Direction() entity.Direction {
	switch t {
	case VoucherReceipt:
		return entity.Inflow
	case VoucherPayment:
		return entity.Outflow
	default:
		return entity.NoDirection
	}
}

// Valid reports whether t is receipt or payment.
func (t VoucherType) Valid() bool {
	return t == VoucherReceipt || t == VoucherPayment
}

// NumberPrefix used when numbering vouchers of this type.
func (t VoucherType) NumberPrefix() string {
	if t == VoucherPayment {
		return numerator.PrefixPayment
	}
	return numerator.PrefixReceipt
}

// Voucher is a single receipt or payment against one safe.
type Voucher struct {
	entity.BaseEntity

	Number string      `db:"number" json:"number"`
	Type   VoucherType `db:"type" json:"type" validate:"oneof=receipt payment"`
	Amount types.Money `db:"amount" json:"amount" validate:"gt=0"`
	Date   time.Time   `db:"date" json:"date" validate:"required"`
	SafeID id.ID       `db:"safe_id" json:"safeId" validate:"required"`

	// Optional links to what the money was for.
	UnitID        *id.ID `db:"unit_id" json:"unitId,omitempty"`
	ContractID    *id.ID `db:"contract_id" json:"contractId,omitempty"`
	InstallmentID *id.ID `db:"installment_id" json:"installmentId,omitempty"`
	BrokerDueID   *id.ID `db:"broker_due_id" json:"brokerDueId,omitempty"`

	Description string `db:"description" json:"description,omitempty"`
	Party       string `db:"party" json:"party,omitempty"` // payer or beneficiary
}

// NewVoucher creates an unnumbered voucher.
func NewVoucher(t VoucherType, safeID id.ID, amount types.Money, date time.Time) *Voucher {
	return &Voucher{
		BaseEntity: entity.NewBaseEntity(),
		Type:       t,
		Amount:     amount,
		Date:       date,
		SafeID:     safeID,
	}
}

// SignedAmount is the voucher's effect on its safe balance.
func (v *Voucher) SignedAmount() types.Money {
	return v.Type.Direction().Signed(v.Amount)
}

// Validate implements entity.Validatable.
func (v *Voucher) Validate(ctx context.Context) error {
	if err := validate.Struct(v); err != nil {
		return err
	}
	if !v.Amount.Equal(types.RoundMoney(v.Amount)) {
		return apperror.NewValidation("amount must have at most two decimal places").
			WithDetail("field", "amount")
	}
	return nil
}

// Transfer moves money between two safes.
type Transfer struct {
	entity.BaseEntity

	Number      string      `db:"number" json:"number"`
	FromSafeID  id.ID       `db:"from_safe_id" json:"fromSafeId" validate:"required"`
	ToSafeID    id.ID       `db:"to_safe_id" json:"toSafeId" validate:"required"`
	Amount      types.Money `db:"amount" json:"amount" validate:"gt=0"`
	Date        time.Time   `db:"date" json:"date" validate:"required"`
	Description string      `db:"description" json:"description,omitempty"`
}

// NewTransfer creates an unnumbered transfer.
func NewTransfer(fromSafeID, toSafeID id.ID, amount types.Money, date time.Time) *Transfer {
	return &Transfer{
		BaseEntity: entity.NewBaseEntity(),
		FromSafeID: fromSafeID,
		ToSafeID:   toSafeID,
		Amount:     amount,
		Date:       date,
	}
}

// Validate implements entity.Validatable.
func (t *Transfer) Validate(ctx context.Context) error {
	if err := validate.Struct(t); err != nil {
		return err
	}
	if t.FromSafeID == t.ToSafeID {
		return apperror.NewValidation("source and destination safe must differ").
			WithDetail("field", "toSafeId")
	}
	if !t.Amount.Equal(types.RoundMoney(t.Amount)) {
		return apperror.NewValidation("amount must have at most two decimal places").
			WithDetail("field", "amount")
	}
	return nil
}

// Totals are the non-deleted movement sums of one safe.
type Totals struct {
	Receipts     types.Money `db:"receipts" json:"receipts"`
	Payments     types.Money `db:"payments" json:"payments"`
	TransfersIn  types.Money `db:"transfers_in" json:"transfersIn"`
	TransfersOut types.Money `db:"transfers_out" json:"transfersOut"`
}

// Balance returns receipts − payments + transfers in − transfers out.
func (t Totals) Balance() types.Money {
	return t.Receipts.Sub(t.Payments).Add(t.TransfersIn).Sub(t.TransfersOut)
}

var (
	_ entity.Validatable = (*Safe)(nil)
	_ entity.Validatable = (*Voucher)(nil)
	_ entity.Validatable = (*Transfer)(nil)
)
