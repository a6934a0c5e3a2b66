// Package schedule turns a contract's terms into installments and manages
// their lifecycle: generation, regeneration, payment and the overdue sweep.
package schedule

import (
	"time"

	"estateledger/internal/core/entity"
	"estateledger/internal/core/id"
	"estateledger/internal/core/types"
)

// Kind of installment.
type Kind string

const (
	// KindRegular rows split the remaining amount evenly.
	KindRegular Kind = "regular"
	// KindAnnual rows are the contract's extra yearly payments.
	KindAnnual Kind = "annual"
)

// Status of an installment.
type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusOverdue Status = "overdue"
)

// Installment is one scheduled payment obligation of a contract.
// Rows are never renumbered; a changed schedule soft-deletes them and
// starts a fresh batch.
type Installment struct {
	entity.BaseEntity

	ContractID id.ID       `db:"contract_id" json:"contractId"`
	UnitID     id.ID       `db:"unit_id" json:"unitId"`
	Sequence   int         `db:"sequence" json:"sequence"`
	Kind       Kind        `db:"kind" json:"kind"`
	Amount     types.Money `db:"amount" json:"amount"`
	DueDate    time.Time   `db:"due_date" json:"dueDate"`
	Status     Status      `db:"status" json:"status"`
	PaidAt     *time.Time  `db:"paid_at" json:"paidAt,omitempty"`
	VoucherID  *id.ID      `db:"voucher_id" json:"voucherId,omitempty"`
	Notes      string      `db:"notes" json:"notes,omitempty"`
}

// IsOpen reports whether the installment still awaits payment.
func (i *Installment) IsOpen() bool {
	return !i.IsDeleted() && i.Status != StatusPaid
}

// MarkPaid settles the installment with a receipt voucher.
func (i *Installment) MarkPaid(voucherID id.ID, at time.Time) {
	i.Status = StatusPaid
	i.PaidAt = &at
	i.VoucherID = &voucherID
	i.Touch()
}

// Summary aggregates a contract's live installments.
type Summary struct {
	ContractID id.ID       `json:"contractId"`
	Count      int         `json:"count"`
	Total      types.Money `json:"total"`
	Paid       types.Money `json:"paid"`
	Pending    types.Money `json:"pending"`
	Overdue    types.Money `json:"overdue"`
	PaidCount  int         `json:"paidCount"`
	NextDue    *time.Time  `json:"nextDue,omitempty"`
}
