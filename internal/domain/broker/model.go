// Package broker tracks brokers and the commission dues owed to them.
package broker

import (
	"context"
	"time"

	"estateledger/internal/core/entity"
	"estateledger/internal/core/id"
	"estateledger/internal/core/types"
	"estateledger/internal/core/validate"
)

// Broker earns a commission on the contracts they bring in.
type Broker struct {
	entity.BaseEntity

	Name           string        `db:"name" json:"name" validate:"required,max=150"`
	Phone          string        `db:"phone" json:"phone,omitempty" validate:"max=30"`
	DefaultPercent types.Percent `db:"default_percent" json:"defaultPercent" validate:"gte=0,lte=100"`
}

// NewBroker creates a broker.
func NewBroker(name string, defaultPercent types.Percent) *Broker {
	return &Broker{
		BaseEntity:     entity.NewBaseEntity(),
		Name:           name,
		DefaultPercent: defaultPercent,
	}
}

// Validate implements entity.Validatable.
func (b *Broker) Validate(ctx context.Context) error {
	return validate.Struct(b)
}

// DueStatus of a commission due.
type DueStatus string

const (
	DuePending DueStatus = "pending"
	DuePaid    DueStatus = "paid"
)

// Due is one scheduled commission payment for a contract.
type Due struct {
	entity.BaseEntity

	Number     string      `db:"number" json:"number"`
	BrokerID   id.ID       `db:"broker_id" json:"brokerId"`
	ContractID id.ID       `db:"contract_id" json:"contractId"`
	Sequence   int         `db:"sequence" json:"sequence"`
	Amount     types.Money `db:"amount" json:"amount"`
	DueDate    time.Time   `db:"due_date" json:"dueDate"`
	Status     DueStatus   `db:"status" json:"status"`
	PaidAt     *time.Time  `db:"paid_at" json:"paidAt,omitempty"`
	VoucherID  *id.ID      `db:"voucher_id" json:"voucherId,omitempty"`
}

// MarkPaid settles the due with a payment voucher.
func (d *Due) MarkPaid(voucherID id.ID, at time.Time) {
	d.Status = DuePaid
	d.PaidAt = &at
	d.VoucherID = &voucherID
	d.Touch()
}

var _ entity.Validatable = (*Broker)(nil)
