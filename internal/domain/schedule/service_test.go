package schedule_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estateledger/internal/core/apperror"
	"estateledger/internal/core/id"
	"estateledger/internal/core/numerator"
	"estateledger/internal/core/types"
	"estateledger/internal/domain/contract"
	"estateledger/internal/domain/events"
	"estateledger/internal/domain/safe"
	"estateledger/internal/domain/schedule"
	"estateledger/internal/infrastructure/storage/memory"
)

type fixture struct {
	ctx      context.Context
	store    *memory.Store
	recorder *events.Recorder
	svc      *schedule.Service
	safeID   id.ID
	contract *contract.Contract
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		ctx:      context.Background(),
		store:    memory.NewStore(),
		recorder: &events.Recorder{},
	}
	reconciler := safe.NewReconciler(f.store.Safes(), f.store.Vouchers(), f.store.Transfers(),
		f.store, f.store, numerator.NewMemory(), f.recorder)
	f.svc = schedule.NewService(f.store.Contracts(), f.store.Installments(), reconciler,
		f.store, f.store, f.recorder, schedule.DefaultOptions())

	sf := safe.NewSafe("Cashier")
	require.NoError(t, f.store.Safes().Create(f.ctx, sf))
	f.safeID = sf.ID

	c := contract.NewContract(id.New(), id.New(), time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), types.MustMoney("120000"))
	c.DownPayment = types.MustMoney("20000")
	c.InstallmentCount = 10
	c.BrokerPercent = types.MustMoney("1")
	require.NoError(t, f.store.Contracts().Create(f.ctx, c))
	f.contract = c
	return f
}

func TestService_GenerateInstallments(t *testing.T) {
	f := newFixture(t)

	items, err := f.svc.GenerateInstallments(f.ctx, f.contract.ID)
	require.NoError(t, err)
	require.Len(t, items, 10)

	stored, err := f.store.Installments().ListByContract(f.ctx, f.contract.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 10)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), stored[0].DueDate)

	// The derived broker amount is stored on the contract.
	c, err := f.store.Contracts().GetByID(f.ctx, f.contract.ID)
	require.NoError(t, err)
	assert.True(t, c.BrokerAmount.Equal(types.MustMoney("1200")))
	assert.Equal(t, 2, c.Version)

	assert.Equal(t, []string{events.ScheduleGenerated}, f.recorder.Types())

	_, err = f.svc.GenerateInstallments(f.ctx, f.contract.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeBusinessRule))
}

func TestService_GenerateUnknownContract(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GenerateInstallments(f.ctx, id.New())
	assert.True(t, apperror.IsNotFound(err))
}

func TestService_RegenerateInstallments(t *testing.T) {
	f := newFixture(t)

	first, err := f.svc.GenerateInstallments(f.ctx, f.contract.ID)
	require.NoError(t, err)

	second, err := f.svc.RegenerateInstallments(f.ctx, f.contract.ID)
	require.NoError(t, err)
	third, err := f.svc.RegenerateInstallments(f.ctx, f.contract.ID)
	require.NoError(t, err)

	assert.True(t, sum(second).Equal(sum(third)))
	assert.True(t, sum(first).Equal(sum(third)))
	assert.NotEqual(t, second[0].ID, third[0].ID)

	live, err := f.store.Installments().ListByContract(f.ctx, f.contract.ID)
	require.NoError(t, err)
	assert.Len(t, live, 10)
	assert.Equal(t, third[0].ID, live[0].ID)

	// Earlier batches are kept, soft-deleted.
	all, err := f.store.Installments().ListAllByUnit(f.ctx, f.contract.UnitID)
	require.NoError(t, err)
	assert.Len(t, all, 30)
	deleted := 0
	for _, inst := range all {
		if inst.IsDeleted() {
			deleted++
		}
	}
	assert.Equal(t, 20, deleted)

	evs := f.recorder.Events()
	require.Len(t, evs, 3)
	payload, ok := evs[2].Payload.(events.SchedulePayload)
	require.True(t, ok)
	assert.Equal(t, int64(10), payload.Superseded)
}

func TestService_RegenerateKeepsScheduleOnInvalidTerms(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.GenerateInstallments(f.ctx, f.contract.ID)
	require.NoError(t, err)

	c, err := f.store.Contracts().GetByID(f.ctx, f.contract.ID)
	require.NoError(t, err)
	c.DownPayment = types.MustMoney("130000")
	require.NoError(t, f.store.Contracts().Update(f.ctx, c))

	_, err = f.svc.RegenerateInstallments(f.ctx, f.contract.ID)
	assert.True(t, apperror.IsInvalidContractAmount(err))

	live, err := f.store.Installments().ListByContract(f.ctx, f.contract.ID)
	require.NoError(t, err)
	assert.Len(t, live, 10)
}

func TestService_PayInstallment(t *testing.T) {
	f := newFixture(t)
	items, err := f.svc.GenerateInstallments(f.ctx, f.contract.ID)
	require.NoError(t, err)

	paidOn := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	v, err := f.svc.PayInstallment(f.ctx, items[0].ID, f.safeID, paidOn)
	require.NoError(t, err)
	assert.Equal(t, safe.VoucherReceipt, v.Type)
	assert.Equal(t, "Installment #1", v.Description)
	assert.Equal(t, "RV-2026-00001", v.Number)
	require.NotNil(t, v.InstallmentID)
	assert.Equal(t, items[0].ID, *v.InstallmentID)

	sf, err := f.store.Safes().GetByID(f.ctx, f.safeID)
	require.NoError(t, err)
	assert.True(t, sf.Balance.Equal(types.MustMoney("10000")))

	inst, err := f.store.Installments().GetByID(f.ctx, items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, schedule.StatusPaid, inst.Status)
	require.NotNil(t, inst.VoucherID)
	assert.Equal(t, v.ID, *inst.VoucherID)

	_, err = f.svc.PayInstallment(f.ctx, items[0].ID, f.safeID, paidOn)
	assert.True(t, apperror.HasCode(err, apperror.CodeBusinessRule))

	// A missing safe rolls the whole payment back.
	_, err = f.svc.PayInstallment(f.ctx, items[1].ID, id.New(), paidOn)
	assert.True(t, apperror.IsNotFound(err))
	inst, err = f.store.Installments().GetByID(f.ctx, items[1].ID)
	require.NoError(t, err)
	assert.Equal(t, schedule.StatusPending, inst.Status)
}

func TestService_FullyPaidUpfrontHasNothingOpen(t *testing.T) {
	f := newFixture(t)
	c := contract.NewContract(id.New(), id.New(), time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), types.MustMoney("120000"))
	c.DownPayment = types.MustMoney("120000")
	c.InstallmentCount = 10
	require.NoError(t, f.store.Contracts().Create(f.ctx, c))

	items, err := f.svc.GenerateInstallments(f.ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, items)

	n, err := f.svc.MarkOverdue(f.ctx, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestService_MarkOverdueAndSummary(t *testing.T) {
	f := newFixture(t)
	items, err := f.svc.GenerateInstallments(f.ctx, f.contract.ID)
	require.NoError(t, err)

	_, err = f.svc.PayInstallment(f.ctx, items[0].ID, f.safeID, items[0].DueDate)
	require.NoError(t, err)

	// Rows due Apr 1, May 1 and Jun 1; the first is paid.
	n, err := f.svc.MarkOverdue(f.ctx, time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = f.svc.MarkOverdue(f.ctx, time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, n)

	sum, err := f.svc.Summary(f.ctx, f.contract.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, sum.Count)
	assert.Equal(t, 1, sum.PaidCount)
	assert.True(t, sum.Total.Equal(types.MustMoney("100000")))
	assert.True(t, sum.Paid.Equal(types.MustMoney("10000")))
	assert.True(t, sum.Overdue.Equal(types.MustMoney("20000")))
	assert.True(t, sum.Pending.Equal(types.MustMoney("70000")))
	require.NotNil(t, sum.NextDue)
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), *sum.NextDue)
}

func TestService_Preview(t *testing.T) {
	f := newFixture(t)

	s, err := f.svc.Preview(f.contract)
	require.NoError(t, err)
	assert.Len(t, s.Installments, 10)

	count, err := f.store.Installments().CountLiveByContract(f.ctx, f.contract.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func sum(items []*schedule.Installment) types.Money {
	total := types.Zero()
	for _, inst := range items {
		total = total.Add(inst.Amount)
	}
	return total
}
