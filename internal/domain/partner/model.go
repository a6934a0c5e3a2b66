// Package partner provides unit ownership shares, partner groups and the
// partners' day-level income/expense ledger.
package partner

import (
	"context"
	"time"

	"estateledger/internal/core/apperror"
	"estateledger/internal/core/entity"
	"estateledger/internal/core/id"
	"estateledger/internal/core/types"
	"estateledger/internal/core/validate"
)

// Partner is a co-owner of units.
type Partner struct {
	entity.BaseEntity

	Name  string `db:"name" json:"name" validate:"required,max=150"`
	Phone string `db:"phone" json:"phone,omitempty" validate:"max=30"`
	Notes string `db:"notes" json:"notes,omitempty"`
}

// NewPartner creates a partner.
func NewPartner(name string) *Partner {
	return &Partner{BaseEntity: entity.NewBaseEntity(), Name: name}
}

// Validate implements entity.Validatable.
func (p *Partner) Validate(ctx context.Context) error {
	return validate.Struct(p)
}

// UnitPartner is a partner's percentage stake in a unit.
type UnitPartner struct {
	entity.BaseEntity

	UnitID     id.ID         `db:"unit_id" json:"unitId" validate:"required"`
	PartnerID  id.ID         `db:"partner_id" json:"partnerId" validate:"required"`
	Percentage types.Percent `db:"percentage" json:"percentage" validate:"gte=0,lte=100"`
}

// Validate implements entity.Validatable.
func (u *UnitPartner) Validate(ctx context.Context) error {
	if err := validate.Struct(u); err != nil {
		return err
	}
	return checkPercent(u.Percentage)
}

// PartnerGroup is a named set of partners sharing something by percentage.
type PartnerGroup struct {
	entity.BaseEntity

	Name  string `db:"name" json:"name" validate:"required,max=150"`
	Notes string `db:"notes" json:"notes,omitempty"`
}

// NewPartnerGroup creates a group.
func NewPartnerGroup(name string) *PartnerGroup {
	return &PartnerGroup{BaseEntity: entity.NewBaseEntity(), Name: name}
}

// Validate implements entity.Validatable.
func (g *PartnerGroup) Validate(ctx context.Context) error {
	return validate.Struct(g)
}

// GroupMember is a partner's share of a group.
type GroupMember struct {
	entity.BaseEntity

	GroupID    id.ID         `db:"group_id" json:"groupId" validate:"required"`
	PartnerID  id.ID         `db:"partner_id" json:"partnerId" validate:"required"`
	Percentage types.Percent `db:"percentage" json:"percentage" validate:"gte=0,lte=100"`
}

// Validate implements entity.Validatable.
func (m *GroupMember) Validate(ctx context.Context) error {
	if err := validate.Struct(m); err != nil {
		return err
	}
	return checkPercent(m.Percentage)
}

// TransactionType of a daily partner entry.
type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// Direction of the entry's effect on the partner balance.
func (t TransactionType) Direction() entity.Direction {
	if t == TransactionExpense {
		return entity.Outflow
	}
	return entity.Inflow
}

// DailyTransaction is one income or expense entry of a partner.
type DailyTransaction struct {
	entity.BaseEntity

	PartnerID       id.ID           `db:"partner_id" json:"partnerId" validate:"required"`
	TransactionDate time.Time       `db:"transaction_date" json:"transactionDate" validate:"required"`
	Type            TransactionType `db:"type" json:"type" validate:"oneof=income expense"`
	Amount          types.Money     `db:"amount" json:"amount" validate:"gt=0"`
	Description     string          `db:"description" json:"description,omitempty"`
}

// NewDailyTransaction creates an entry dated on the day of date.
func NewDailyTransaction(partnerID id.ID, date time.Time, t TransactionType, amount types.Money) *DailyTransaction {
	return &DailyTransaction{
		BaseEntity:      entity.NewBaseEntity(),
		PartnerID:       partnerID,
		TransactionDate: Day(date),
		Type:            t,
		Amount:          amount,
	}
}

// SignedAmount is the entry's effect on the partner balance.
func (d *DailyTransaction) SignedAmount() types.Money {
	return d.Type.Direction().Signed(d.Amount)
}

// Validate implements entity.Validatable.
func (d *DailyTransaction) Validate(ctx context.Context) error {
	if err := validate.Struct(d); err != nil {
		return err
	}
	if !d.Amount.Equal(types.RoundMoney(d.Amount)) {
		return apperror.NewValidation("amount must have at most two decimal places").
			WithDetail("field", "amount")
	}
	return nil
}

// LedgerEntry is a daily transaction with the running balance after it.
type LedgerEntry struct {
	Transaction *DailyTransaction `json:"transaction"`
	Balance     types.Money       `json:"balance"`
}

// Ledger is a partner's statement for a date range.
type Ledger struct {
	PartnerID id.ID         `json:"partnerId"`
	From      time.Time     `json:"from"`
	To        time.Time     `json:"to"`
	Opening   types.Money   `json:"opening"`
	Closing   types.Money   `json:"closing"`
	Entries   []LedgerEntry `json:"entries"`
}

// Day truncates t to its calendar date in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func checkPercent(pct types.Percent) error {
	if !types.ValidPercent(pct) {
		return apperror.NewValidation("percentage must be between 0 and 100").
			WithDetail("field", "percentage")
	}
	if !pct.Equal(pct.Round(types.PercentPlaces)) {
		return apperror.NewValidation("percentage must have at most two decimal places").
			WithDetail("field", "percentage")
	}
	return nil
}

var (
	_ entity.Validatable = (*Partner)(nil)
	_ entity.Validatable = (*UnitPartner)(nil)
	_ entity.Validatable = (*PartnerGroup)(nil)
	_ entity.Validatable = (*GroupMember)(nil)
	_ entity.Validatable = (*DailyTransaction)(nil)
)
