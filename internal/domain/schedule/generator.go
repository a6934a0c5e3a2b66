package schedule

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"estateledger/internal/core/entity"
	"estateledger/internal/core/id"
	"estateledger/internal/core/types"
	"estateledger/internal/domain/contract"
)

// DatePolicy decides how cadence periods map to due dates.
type DatePolicy string

const (
	// DatePolicyCalendar steps whole calendar months (1/3/6/12), clamping
	// the day to the end of shorter months.
	DatePolicyCalendar DatePolicy = "calendar"
	// DatePolicyFixedDays steps 30/90/180/365 days per period.
	DatePolicyFixedDays DatePolicy = "fixed_days"
)

// RemainderPolicy decides what happens to the cents lost by rounding each
// regular installment.
type RemainderPolicy string

const (
	// RemainderLastInstallment lets the last regular row absorb the
	// difference, so the rows add up to the remaining amount exactly.
	RemainderLastInstallment RemainderPolicy = "last_installment"
	// RemainderNone keeps every row at the rounded per-period amount.
	RemainderNone RemainderPolicy = "none"
)

// ParseDatePolicy maps a config value to a DatePolicy.
func ParseDatePolicy(s string) (DatePolicy, error) {
	switch DatePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", DatePolicyCalendar:
		return DatePolicyCalendar, nil
	case DatePolicyFixedDays:
		return DatePolicyFixedDays, nil
	default:
		return DatePolicyCalendar, fmt.Errorf("unknown date policy %q", s)
	}
}

// ParseRemainderPolicy maps a config value to a RemainderPolicy.
func ParseRemainderPolicy(s string) (RemainderPolicy, error) {
	switch RemainderPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", RemainderLastInstallment:
		return RemainderLastInstallment, nil
	case RemainderNone:
		return RemainderNone, nil
	default:
		return RemainderLastInstallment, fmt.Errorf("unknown remainder policy %q", s)
	}
}

// Options tune schedule generation.
type Options struct {
	DatePolicy DatePolicy
	Remainder  RemainderPolicy
}

// DefaultOptions returns calendar dates with the last row absorbing
// rounding.
func DefaultOptions() Options {
	return Options{
		DatePolicy: DatePolicyCalendar,
		Remainder:  RemainderLastInstallment,
	}
}

// Schedule is the generated payment plan of one contract.
type Schedule struct {
	ContractID    id.ID              `json:"contractId"`
	UnitID        id.ID              `json:"unitId"`
	Breakdown     contract.Breakdown `json:"breakdown"`
	RegularAmount types.Money        `json:"regularAmount"`
	BrokerAmount  types.Money        `json:"brokerAmount"`
	Installments  []*Installment     `json:"installments"`

	// Unscheduled is set when the contract has no regular installments
	// but still leaves an amount to collect.
	Unscheduled types.Money `json:"unscheduled"`
}

// RegularTotal sums the regular rows.
func (s *Schedule) RegularTotal() types.Money {
	total := types.Zero()
	for _, inst := range s.Installments {
		if inst.Kind == KindRegular {
			total = total.Add(inst.Amount)
		}
	}
	return total
}

// Total sums every row, annual payments included.
func (s *Schedule) Total() types.Money {
	total := types.Zero()
	for _, inst := range s.Installments {
		total = total.Add(inst.Amount)
	}
	return total
}

// Generate computes the schedule of c. It does not touch storage.
//
// Regular installment i (1-based) is due one cadence period after the
// previous one, starting one period after the contract start. Annual extra
// payments are due on each contract anniversary. c.BrokerAmount is
// refreshed from the contract's current terms.
func Generate(c *contract.Contract, opts Options) (*Schedule, error) {
	if err := c.Validate(context.Background()); err != nil {
		return nil, err
	}
	if opts.DatePolicy == "" {
		opts.DatePolicy = DatePolicyCalendar
	}
	if opts.Remainder == "" {
		opts.Remainder = RemainderLastInstallment
	}

	c.Recalculate()
	breakdown := c.Breakdown()
	remaining := breakdown.RemainingForRegular

	s := &Schedule{
		ContractID:    c.ID,
		UnitID:        c.UnitID,
		Breakdown:     breakdown,
		RegularAmount: types.DivMoney(remaining, int64(c.InstallmentCount)),
		BrokerAmount:  c.BrokerAmount,
		Installments:  make([]*Installment, 0, c.InstallmentCount+c.ExtraAnnualCount),
		Unscheduled:   types.Zero(),
	}

	if c.InstallmentCount == 0 && remaining.IsPositive() {
		s.Unscheduled = remaining
	}

	// Zero-amount rows are not emitted: there is nothing to collect and no
	// voucher could settle them.
	for _, amount := range Split(remaining, c.InstallmentCount, opts.Remainder) {
		if amount.IsZero() {
			continue
		}
		seq := len(s.Installments) + 1
		s.Installments = append(s.Installments, newInstallment(c, seq, KindRegular, amount,
			DueDate(c.StartDate, c.Cadence, seq, opts.DatePolicy)))
	}

	if annual := types.RoundMoney(c.AnnualPaymentValue); annual.IsPositive() {
		regular := len(s.Installments)
		for k := 1; k <= c.ExtraAnnualCount; k++ {
			s.Installments = append(s.Installments, newInstallment(c, regular+k, KindAnnual, annual,
				DueDate(c.StartDate, contract.CadenceAnnual, k, opts.DatePolicy)))
		}
	}

	return s, nil
}

// Split divides total into count rounded parts.
//
// Each part is total/count rounded half-up to cents. With
// RemainderLastInstallment the last part takes the rounding difference,
// unless that would make it negative, in which case the parts are left
// as rounded.
func Split(total types.Money, count int, policy RemainderPolicy) []types.Money {
	if count <= 0 {
		return nil
	}

	part := types.DivMoney(total, int64(count))
	parts := make([]types.Money, count)
	for i := range parts {
		parts[i] = part
	}

	if policy == RemainderNone {
		return parts
	}

	last := types.RoundMoney(total).Sub(part.Mul(decimal.NewFromInt(int64(count - 1))))
	if !last.IsNegative() {
		parts[count-1] = last
	}
	return parts
}

// DueDate returns the date of the n-th period after start.
func DueDate(start time.Time, cadence contract.Cadence, n int, policy DatePolicy) time.Time {
	if policy == DatePolicyFixedDays {
		return start.AddDate(0, 0, cadence.Days()*n)
	}
	return addMonthsClamped(start, cadence.Months()*n)
}

// addMonthsClamped adds months to t, keeping the day of month where it
// exists and using the last day otherwise (Jan 31 + 1 month = Feb 28).
func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	firstOfTarget := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if d > lastDay {
		d = lastDay
	}
	hh, mm, ss := t.Clock()
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), d, hh, mm, ss, t.Nanosecond(), t.Location())
}

func newInstallment(c *contract.Contract, seq int, kind Kind, amount types.Money, due time.Time) *Installment {
	return &Installment{
		BaseEntity: entity.NewBaseEntity(),
		ContractID: c.ID,
		UnitID:     c.UnitID,
		Sequence:   seq,
		Kind:       kind,
		Amount:     amount,
		DueDate:    due,
		Status:     StatusPending,
	}
}
