package contract

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estateledger/internal/core/apperror"
	"estateledger/internal/core/id"
	"estateledger/internal/core/types"
)

func newTestContract() *Contract {
	c := NewContract(id.New(), id.New(), time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), types.MustMoney("120000.00"))
	c.DownPayment = types.MustMoney("20000.00")
	c.InstallmentCount = 10
	return c
}

func TestContract_Breakdown(t *testing.T) {
	c := newTestContract()
	c.MaintenanceDeposit = types.MustMoney("5000")
	c.DiscountAmount = types.MustMoney("1000")
	c.ExtraAnnualCount = 2
	c.AnnualPaymentValue = types.MustMoney("7000")

	b := c.Breakdown()
	assert.Equal(t, "115000", b.InstallmentBase.String())
	assert.Equal(t, "94000", b.AfterDiscountAndDown.String())
	assert.Equal(t, "14000", b.AnnualTotal.String())
	assert.Equal(t, "80000", b.RemainingForRegular.String())
}

func TestContract_Validate(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, newTestContract().Validate(ctx))

	tests := []struct {
		name   string
		mutate func(c *Contract)
		field  string
	}{
		{"zero total", func(c *Contract) { c.TotalPrice = types.Zero(); c.DownPayment = types.Zero() }, "totalPrice"},
		{"negative total", func(c *Contract) { c.TotalPrice = types.MustMoney("-1") }, "totalPrice"},
		{"discount above total", func(c *Contract) { c.DiscountAmount = types.MustMoney("120000.01") }, "discountAmount"},
		{"down above net", func(c *Contract) {
			c.DiscountAmount = types.MustMoney("10000")
			c.DownPayment = types.MustMoney("110000.01")
		}, "downPayment"},
		{"negative count", func(c *Contract) { c.InstallmentCount = -1 }, "installmentCount"},
		{"annuals exceed remaining", func(c *Contract) {
			c.ExtraAnnualCount = 3
			c.AnnualPaymentValue = types.MustMoney("40000")
		}, "remainingForRegular"},
		{"sub-cent total", func(c *Contract) { c.TotalPrice = types.MustMoney("120000.001") }, "totalPrice"},
		{"sub-cent discount", func(c *Contract) { c.DiscountAmount = types.MustMoney("0.005") }, "discountAmount"},
		{"sub-cent down payment", func(c *Contract) { c.DownPayment = types.MustMoney("20000.125") }, "downPayment"},
		{"sub-cent deposit", func(c *Contract) { c.MaintenanceDeposit = types.MustMoney("1.999") }, "maintenanceDeposit"},
		{"sub-cent annual value", func(c *Contract) {
			c.ExtraAnnualCount = 2
			c.AnnualPaymentValue = types.MustMoney("1000.005")
		}, "annualPaymentValue"},
		{"sub-cent broker percent", func(c *Contract) { c.BrokerPercent = types.MustMoney("2.505") }, "brokerPercent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestContract()
			tt.mutate(c)

			err := c.Validate(ctx)
			require.Error(t, err)
			assert.True(t, apperror.IsInvalidContractAmount(err), "got %v", err)
			appErr, _ := apperror.AsAppError(err)
			assert.Equal(t, tt.field, appErr.Details["field"])
		})
	}
}

func TestContract_ValidateTags(t *testing.T) {
	c := newTestContract()
	c.BrokerPercent = types.MustMoney("101")

	err := c.Validate(context.Background())
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	c = newTestContract()
	c.Cadence = "weekly"
	assert.True(t, apperror.HasCode(c.Validate(context.Background()), apperror.CodeValidation))
}

func TestBrokerCommission(t *testing.T) {
	assert.Equal(t, "3000", BrokerCommission(types.MustMoney("120000"), types.MustMoney("2.5")).String())
	assert.Equal(t, "0.33", BrokerCommission(types.MustMoney("33.33"), types.MustMoney("1")).String())

	c := newTestContract()
	c.BrokerPercent = types.MustMoney("1.5")
	c.Recalculate()
	assert.Equal(t, "1800", c.BrokerAmount.String())

	c.TotalPrice = types.MustMoney("100000")
	c.Recalculate()
	assert.Equal(t, "1500", c.BrokerAmount.String())
}

func TestCadence(t *testing.T) {
	assert.Equal(t, 3, CadenceQuarterly.Months())
	assert.Equal(t, 180, CadenceSemiannual.Days())
	assert.Equal(t, 30, CadenceMonthly.Days())
	assert.True(t, CadenceAnnual.Valid())
	assert.False(t, Cadence("weekly").Valid())
}
