package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"estateledger/internal/core/apperror"
	"estateledger/internal/core/id"
	"estateledger/internal/core/types"
	"estateledger/internal/domain/contract"
	"estateledger/internal/domain/schedule"
)

// termFlags are the contract terms accepted by preview-schedule.
type termFlags struct {
	total, discount, down, deposit string
	count, annualCount             int
	annualValue, brokerPercent     string
	cadence, paymentType, start    string
}

func bindTerms(fs *pflag.FlagSet) *termFlags {
	t := &termFlags{}
	fs.StringVar(&t.total, "total", "", "total price")
	fs.StringVar(&t.discount, "discount", "0", "discount amount")
	fs.StringVar(&t.down, "down", "0", "down payment")
	fs.StringVar(&t.deposit, "deposit", "0", "maintenance deposit")
	fs.IntVar(&t.count, "count", 0, "number of regular installments")
	fs.StringVar(&t.cadence, "cadence", string(contract.CadenceMonthly), "monthly, quarterly, semiannual or annual")
	fs.IntVar(&t.annualCount, "annual-count", 0, "number of extra annual payments")
	fs.StringVar(&t.annualValue, "annual-value", "0", "value of each annual payment")
	fs.StringVar(&t.brokerPercent, "broker-percent", "0", "broker commission percent")
	fs.StringVar(&t.paymentType, "payment-type", string(contract.PaymentInstallment), "cash or installment")
	fs.StringVar(&t.start, "start", "", "contract start date (YYYY-MM-DD), default today")
	return t
}

// contract builds an unsaved contract from the flags.
func (t *termFlags) contract() (*contract.Contract, error) {
	if t.total == "" {
		return nil, apperror.NewValidation("--total is required").WithDetail("field", "total")
	}

	start := today()
	if t.start != "" {
		var err error
		if start, err = parseDate("start", t.start); err != nil {
			return nil, err
		}
	}

	c := contract.NewContract(id.New(), id.New(), start, types.Zero())
	amounts := []struct {
		field, value string
		dst          *types.Money
	}{
		{"total", t.total, &c.TotalPrice},
		{"discount", t.discount, &c.DiscountAmount},
		{"down", t.down, &c.DownPayment},
		{"deposit", t.deposit, &c.MaintenanceDeposit},
		{"annual-value", t.annualValue, &c.AnnualPaymentValue},
		{"broker-percent", t.brokerPercent, &c.BrokerPercent},
	}
	for _, a := range amounts {
		m, err := types.NewMoneyFromString(a.value)
		if err != nil {
			return nil, apperror.NewValidation("invalid amount").
				WithDetail("field", a.field).
				WithDetail("value", a.value)
		}
		*a.dst = m
	}

	c.InstallmentCount = t.count
	c.ExtraAnnualCount = t.annualCount
	c.Cadence = contract.Cadence(t.cadence)
	c.PaymentType = contract.PaymentType(t.paymentType)
	return c, nil
}

// scheduleView renders a generated schedule for the terminal.
type scheduleView struct {
	schedule *schedule.Schedule
}

func newScheduleView(s *schedule.Schedule) *scheduleView {
	return &scheduleView{schedule: s}
}

func previewTerms(c *contract.Contract, opts schedule.Options) (*scheduleView, error) {
	s, err := schedule.Generate(c, opts)
	if err != nil {
		return nil, err
	}
	return newScheduleView(s), nil
}

func (v *scheduleView) write(w io.Writer) error {
	s := v.schedule
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Installment base\t%s\n", s.Breakdown.InstallmentBase.StringFixed(2))
	fmt.Fprintf(tw, "After discount and down payment\t%s\n", s.Breakdown.AfterDiscountAndDown.StringFixed(2))
	fmt.Fprintf(tw, "Annual payments\t%s\n", s.Breakdown.AnnualTotal.StringFixed(2))
	fmt.Fprintf(tw, "Remaining for regular rows\t%s\n", s.Breakdown.RemainingForRegular.StringFixed(2))
	fmt.Fprintf(tw, "Regular amount\t%s\n", s.RegularAmount.StringFixed(2))
	if !s.BrokerAmount.IsZero() {
		fmt.Fprintf(tw, "Broker commission\t%s\n", s.BrokerAmount.StringFixed(2))
	}
	if !s.Unscheduled.IsZero() {
		fmt.Fprintf(tw, "Unscheduled\t%s\n", s.Unscheduled.StringFixed(2))
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "#\tKIND\tDUE\tAMOUNT")
	for _, inst := range s.Installments {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", inst.Sequence, inst.Kind, inst.DueDate.Format(dateLayout), inst.Amount.StringFixed(2))
	}
	fmt.Fprintf(tw, "\tTOTAL\t\t%s\n", s.Total().StringFixed(2))
	return tw.Flush()
}
