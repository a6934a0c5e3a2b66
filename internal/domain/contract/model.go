// Package contract provides the sale Contract: its payment terms, the
// derived amounts the amortization works from, and broker commission.
package contract

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"estateledger/internal/core/apperror"
	"estateledger/internal/core/entity"
	"estateledger/internal/core/id"
	"estateledger/internal/core/types"
	"estateledger/internal/core/validate"
)

// PaymentType of a contract.
type PaymentType string

const (
	PaymentCash        PaymentType = "cash"
	PaymentInstallment PaymentType = "installment"
)

// Cadence is the spacing between regular installments.
type Cadence string

const (
	CadenceMonthly    Cadence = "monthly"
	CadenceQuarterly  Cadence = "quarterly"
	CadenceSemiannual Cadence = "semiannual"
	CadenceAnnual     Cadence = "annual"
)

// Months returns the calendar length of one period.
func (c Cadence) Months() int {
	switch c {
	case CadenceQuarterly:
		return 3
	case CadenceSemiannual:
		return 6
	case CadenceAnnual:
		return 12
	default:
		return 1
	}
}

// Days returns the fixed-day length of one period (30/90/180/365).
func (c Cadence) Days() int {
	switch c {
	case CadenceQuarterly:
		return 90
	case CadenceSemiannual:
		return 180
	case CadenceAnnual:
		return 365
	default:
		return 30
	}
}

// Valid reports whether c is a known cadence.
func (c Cadence) Valid() bool {
	switch c {
	case CadenceMonthly, CadenceQuarterly, CadenceSemiannual, CadenceAnnual:
		return true
	}
	return false
}

// Contract is a sale of one unit to one customer.
type Contract struct {
	entity.BaseEntity

	UnitID     id.ID     `db:"unit_id" json:"unitId" validate:"required"`
	CustomerID id.ID     `db:"customer_id" json:"customerId" validate:"required"`
	StartDate  time.Time `db:"start_date" json:"startDate" validate:"required"`

	PaymentType PaymentType `db:"payment_type" json:"paymentType" validate:"oneof=cash installment"`

	TotalPrice         types.Money `db:"total_price" json:"totalPrice"`
	DiscountAmount     types.Money `db:"discount_amount" json:"discountAmount"`
	DownPayment        types.Money `db:"down_payment" json:"downPayment"`
	MaintenanceDeposit types.Money `db:"maintenance_deposit" json:"maintenanceDeposit"`

	InstallmentCount   int         `db:"installment_count" json:"installmentCount"`
	Cadence            Cadence     `db:"cadence" json:"cadence" validate:"oneof=monthly quarterly semiannual annual"`
	ExtraAnnualCount   int         `db:"extra_annual_count" json:"extraAnnualCount"`
	AnnualPaymentValue types.Money `db:"annual_payment_value" json:"annualPaymentValue"`

	// Broker terms; BrokerAmount is derived by Recalculate.
	BrokerID      *id.ID        `db:"broker_id" json:"brokerId,omitempty"`
	BrokerName    string        `db:"broker_name" json:"brokerName,omitempty"`
	BrokerPercent types.Percent `db:"broker_percent" json:"brokerPercent" validate:"gte=0,lte=100"`
	BrokerAmount  types.Money   `db:"broker_amount" json:"brokerAmount"`
}

// NewContract creates an installment contract with monthly cadence.
func NewContract(unitID, customerID id.ID, start time.Time, totalPrice types.Money) *Contract {
	return &Contract{
		BaseEntity:  entity.NewBaseEntity(),
		UnitID:      unitID,
		CustomerID:  customerID,
		StartDate:   start,
		PaymentType: PaymentInstallment,
		TotalPrice:  totalPrice,
		Cadence:     CadenceMonthly,
	}
}

// Breakdown holds the intermediate amounts of the amortization.
type Breakdown struct {
	InstallmentBase      types.Money `json:"installmentBase"`
	AfterDiscountAndDown types.Money `json:"afterDiscountAndDown"`
	AnnualTotal          types.Money `json:"annualTotal"`
	RemainingForRegular  types.Money `json:"remainingForRegular"`
}

// Breakdown computes the amounts the regular installments are derived from.
func (c *Contract) Breakdown() Breakdown {
	base := c.TotalPrice.Sub(c.MaintenanceDeposit)
	afterDown := base.Sub(c.DiscountAmount).Sub(c.DownPayment)
	annual := c.AnnualPaymentValue.Mul(decimal.NewFromInt(int64(c.ExtraAnnualCount)))
	return Breakdown{
		InstallmentBase:      base,
		AfterDiscountAndDown: afterDown,
		AnnualTotal:          annual,
		RemainingForRegular:  afterDown.Sub(annual),
	}
}

// BrokerCommission returns total × pct / 100 rounded to cents.
func BrokerCommission(total types.Money, pct types.Percent) types.Money {
	return types.ShareOf(total, pct)
}

// BrokerCommission of this contract from its current terms.
func (c *Contract) BrokerCommission() types.Money {
	return BrokerCommission(c.TotalPrice, c.BrokerPercent)
}

// Recalculate refreshes derived fields. Call after changing price or
// broker percent.
func (c *Contract) Recalculate() {
	c.BrokerAmount = c.BrokerCommission()
}

// Validate implements entity.Validatable.
func (c *Contract) Validate(ctx context.Context) error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	for _, f := range []struct {
		field string
		value types.Money
	}{
		{"totalPrice", c.TotalPrice},
		{"discountAmount", c.DiscountAmount},
		{"downPayment", c.DownPayment},
		{"maintenanceDeposit", c.MaintenanceDeposit},
		{"annualPaymentValue", c.AnnualPaymentValue},
		{"brokerPercent", c.BrokerPercent},
	} {
		if !types.IsCents(f.value) {
			return amountError("amount must have at most two decimal places", f.field).
				WithDetail("value", f.value.String())
		}
	}

	if !c.TotalPrice.IsPositive() {
		return amountError("total price must be positive", "totalPrice")
	}
	if c.DiscountAmount.IsNegative() {
		return amountError("discount must not be negative", "discountAmount")
	}
	if c.DiscountAmount.GreaterThan(c.TotalPrice) {
		return amountError("discount exceeds total price", "discountAmount")
	}
	if c.DownPayment.IsNegative() {
		return amountError("down payment must not be negative", "downPayment")
	}
	if c.DownPayment.GreaterThan(c.TotalPrice.Sub(c.DiscountAmount)) {
		return amountError("down payment exceeds price after discount", "downPayment")
	}
	if c.MaintenanceDeposit.IsNegative() {
		return amountError("maintenance deposit must not be negative", "maintenanceDeposit")
	}
	if c.InstallmentCount < 0 {
		return amountError("installment count must not be negative", "installmentCount")
	}
	if c.ExtraAnnualCount < 0 {
		return amountError("extra annual count must not be negative", "extraAnnualCount")
	}
	if c.AnnualPaymentValue.IsNegative() {
		return amountError("annual payment value must not be negative", "annualPaymentValue")
	}

	if remaining := c.Breakdown().RemainingForRegular; remaining.IsNegative() {
		return amountError("deductions exceed the installment base", "remainingForRegular").
			WithDetail("remaining", remaining.String())
	}

	return nil
}

func amountError(msg, field string) *apperror.AppError {
	return apperror.NewInvalidContractAmount(msg).WithDetail("field", field)
}

var _ entity.Validatable = (*Contract)(nil)
