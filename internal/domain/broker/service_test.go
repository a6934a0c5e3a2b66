package broker_test

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
	"estateledger/internal/domain/broker"
	"estateledger/internal/domain/contract"
	"estateledger/internal/domain/safe"
	"estateledger/internal/domain/schedule"
	"estateledger/internal/infrastructure/storage/memory"
)

type env struct {
	ctx        context.Context
	store      *memory.Store
	reconciler *safe.Reconciler
	svc        *broker.Service
	broker     *broker.Broker
	contract   *contract.Contract
	safe       *safe.Safe
}

func setup(t *testing.T) *env {
	t.Helper()
	e := &env{ctx: context.Background(), store: memory.NewStore()}

	gen := numerator.NewMemory()
	e.reconciler = safe.NewReconciler(e.store.Safes(), e.store.Vouchers(), e.store.Transfers(),
		e.store, e.store, gen, nil)
	e.svc = broker.NewService(e.store.Brokers(), e.store.Contracts(), e.reconciler,
		e.store, e.store, gen, schedule.DefaultOptions())

	e.broker = broker.NewBroker("Noor Realty", types.MustMoney("2"))
	require.NoError(t, e.svc.CreateBroker(e.ctx, e.broker))

	c := contract.NewContract(id.New(), id.New(), time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), types.MustMoney("100000"))
	c.InstallmentCount = 12
	c.BrokerID = id.Ptr(e.broker.ID)
	c.BrokerName = e.broker.Name
	c.BrokerPercent = types.MustMoney("2")
	require.NoError(t, e.store.Contracts().Create(e.ctx, c))
	e.contract = c

	e.safe = safe.NewSafe("Main")
	require.NoError(t, e.store.Safes().Create(e.ctx, e.safe))
	return e
}

func TestScheduleDues(t *testing.T) {
	e := setup(t)
	first := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	dues, err := e.svc.ScheduleDues(e.ctx, e.contract.ID, 3, first, contract.CadenceMonthly)
	require.NoError(t, err)
	require.Len(t, dues, 3)

	assert.True(t, dues[0].Amount.Equal(types.MustMoney("666.67")))
	assert.True(t, dues[1].Amount.Equal(types.MustMoney("666.67")))
	assert.True(t, dues[2].Amount.Equal(types.MustMoney("666.66")))
	assert.Equal(t, first, dues[0].DueDate)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), dues[2].DueDate)
	assert.Equal(t, "BD-2026-00001", dues[0].Number)
	assert.Equal(t, "BD-2026-00003", dues[2].Number)

	c, err := e.store.Contracts().GetByID(e.ctx, e.contract.ID)
	require.NoError(t, err)
	assert.True(t, c.BrokerAmount.Equal(types.MustMoney("2000")))

	outstanding, err := e.svc.Outstanding(e.ctx, e.broker.ID)
	require.NoError(t, err)
	assert.True(t, outstanding.Equal(types.MustMoney("2000")))

	_, err = e.svc.ScheduleDues(e.ctx, e.contract.ID, 3, first, contract.CadenceMonthly)
	assert.True(t, apperror.HasCode(err, apperror.CodeBusinessRule))
}

func TestScheduleDues_Rejected(t *testing.T) {
	e := setup(t)
	first := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	_, err := e.svc.ScheduleDues(e.ctx, e.contract.ID, 0, first, contract.CadenceMonthly)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = e.svc.ScheduleDues(e.ctx, e.contract.ID, 2, first, contract.Cadence("weekly"))
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	noBroker := contract.NewContract(id.New(), id.New(), first, types.MustMoney("5000"))
	require.NoError(t, e.store.Contracts().Create(e.ctx, noBroker))
	_, err = e.svc.ScheduleDues(e.ctx, noBroker.ID, 2, first, contract.CadenceMonthly)
	assert.True(t, apperror.HasCode(err, apperror.CodeBusinessRule))

	_, err = e.svc.ScheduleDues(e.ctx, id.New(), 2, first, contract.CadenceMonthly)
	assert.True(t, apperror.IsNotFound(err))
}

func TestPayDue(t *testing.T) {
	e := setup(t)
	first := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	dues, err := e.svc.ScheduleDues(e.ctx, e.contract.ID, 2, first, contract.CadenceQuarterly)
	require.NoError(t, err)

	// Empty safe: the payment is not covered.
	_, err = e.svc.PayDue(e.ctx, dues[0].ID, e.safe.ID, first)
	assert.True(t, apperror.IsInsufficientBalance(err))

	require.NoError(t, e.reconciler.CreateVoucher(e.ctx,
		safe.NewVoucher(safe.VoucherReceipt, e.safe.ID, types.MustMoney("1500"), first)))

	v, err := e.svc.PayDue(e.ctx, dues[0].ID, e.safe.ID, first)
	require.NoError(t, err)
	assert.Equal(t, safe.VoucherPayment, v.Type)
	assert.Equal(t, "Noor Realty", v.Party)
	assert.Equal(t, "Broker commission #1", v.Description)
	require.NotNil(t, v.BrokerDueID)
	assert.Equal(t, dues[0].ID, *v.BrokerDueID)

	sf, err := e.store.Safes().GetByID(e.ctx, e.safe.ID)
	require.NoError(t, err)
	assert.True(t, sf.Balance.Equal(types.MustMoney("500")))

	outstanding, err := e.svc.Outstanding(e.ctx, e.broker.ID)
	require.NoError(t, err)
	assert.True(t, outstanding.Equal(types.MustMoney("1000")))

	_, err = e.svc.PayDue(e.ctx, dues[0].ID, e.safe.ID, first)
	assert.True(t, apperror.HasCode(err, apperror.CodeBusinessRule))
}

func TestCreateBroker_Validation(t *testing.T) {
	e := setup(t)
	err := e.svc.CreateBroker(e.ctx, broker.NewBroker("", types.MustMoney("1")))
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}
