package safe_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"estateledger/internal/core/apperror"
	"estateledger/internal/core/id"
	"estateledger/internal/core/numerator"
	"estateledger/internal/core/types"
	"estateledger/internal/domain/events"
	"estateledger/internal/domain/safe"
	"estateledger/internal/infrastructure/storage/memory"
)

type ReconcilerSuite struct {
	suite.Suite

	ctx       context.Context
	store     *memory.Store
	recorder  *events.Recorder
	reconc    *safe.Reconciler
	day       time.Time
	main, aux *safe.Safe
}

func TestReconcilerSuite(t *testing.T) {
	suite.Run(t, new(ReconcilerSuite))
}

func (s *ReconcilerSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.NewStore()
	s.recorder = &events.Recorder{}
	s.reconc = safe.NewReconciler(
		s.store.Safes(), s.store.Vouchers(), s.store.Transfers(),
		s.store, s.store, numerator.NewMemory(), s.recorder,
	)
	s.day = time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)

	s.main = safe.NewSafe("Main")
	s.aux = safe.NewSafe("Office")
	s.Require().NoError(s.store.Safes().Create(s.ctx, s.main))
	s.Require().NoError(s.store.Safes().Create(s.ctx, s.aux))
}

func (s *ReconcilerSuite) balance(safeID id.ID) types.Money {
	sf, err := s.store.Safes().GetByID(s.ctx, safeID)
	s.Require().NoError(err)
	return sf.Balance
}

func (s *ReconcilerSuite) voucher(t safe.VoucherType, safeID id.ID, amount string) *safe.Voucher {
	v := safe.NewVoucher(t, safeID, types.MustMoney(amount), s.day)
	s.Require().NoError(s.reconc.CreateVoucher(s.ctx, v))
	return v
}

func (s *ReconcilerSuite) assertConsistent(safeID id.ID) {
	computed, err := s.reconc.CalculateBalance(s.ctx, safeID)
	s.Require().NoError(err)
	s.True(s.balance(safeID).Equal(computed), "cached %s, computed %s", s.balance(safeID), computed)
}

func (s *ReconcilerSuite) TestVoucherLifecycle() {
	receipt := s.voucher(safe.VoucherReceipt, s.main.ID, "500")
	s.Equal("RV-2026-00001", receipt.Number)
	s.True(s.balance(s.main.ID).Equal(types.MustMoney("500")))

	payment := s.voucher(safe.VoucherPayment, s.main.ID, "200")
	s.Equal("PV-2026-00001", payment.Number)
	s.True(s.balance(s.main.ID).Equal(types.MustMoney("300")))

	// Reversals are never blocked, even when they push the safe negative.
	s.Require().NoError(s.reconc.DeleteVoucher(s.ctx, receipt.ID))
	s.True(s.balance(s.main.ID).Equal(types.MustMoney("-200")))
	s.assertConsistent(s.main.ID)

	s.Equal([]string{
		events.VoucherApplied,
		events.VoucherApplied,
		events.VoucherReversed,
	}, s.recorder.Types())
}

func (s *ReconcilerSuite) TestPaymentNotCovered() {
	s.voucher(safe.VoucherReceipt, s.main.ID, "100")

	v := safe.NewVoucher(safe.VoucherPayment, s.main.ID, types.MustMoney("100.01"), s.day)
	err := s.reconc.CreateVoucher(s.ctx, v)
	s.Require().Error(err)
	s.True(apperror.IsInsufficientBalance(err))

	s.True(s.balance(s.main.ID).Equal(types.MustMoney("100")))
	_, err = s.store.Vouchers().GetByID(s.ctx, v.ID)
	s.True(apperror.IsNotFound(err), "rejected voucher must not be stored")
	s.assertConsistent(s.main.ID)
}

func (s *ReconcilerSuite) TestUnknownVoucherTypeRejected() {
	v := safe.NewVoucher(safe.VoucherType("refund"), s.main.ID, types.MustMoney("50"), s.day)

	err := s.reconc.ApplyVoucher(s.ctx, v)
	s.True(apperror.HasCode(err, apperror.CodeValidation), "got %v", err)
	err = s.reconc.ReverseVoucher(s.ctx, v)
	s.True(apperror.HasCode(err, apperror.CodeValidation), "got %v", err)

	s.True(s.balance(s.main.ID).IsZero())
	s.assertConsistent(s.main.ID)
	s.Empty(s.recorder.Events())
}

func (s *ReconcilerSuite) TestDeleteVoucherTwice() {
	v := s.voucher(safe.VoucherReceipt, s.main.ID, "10")
	s.Require().NoError(s.reconc.DeleteVoucher(s.ctx, v.ID))

	err := s.reconc.DeleteVoucher(s.ctx, v.ID)
	s.True(apperror.IsNotFound(err))
	s.True(s.balance(s.main.ID).IsZero())
}

func (s *ReconcilerSuite) TestUpdateVoucher() {
	s.voucher(safe.VoucherReceipt, s.main.ID, "100")
	payment := s.voucher(safe.VoucherPayment, s.main.ID, "40")

	edit, err := s.store.Vouchers().GetByID(s.ctx, payment.ID)
	s.Require().NoError(err)
	edit.Amount = types.MustMoney("70")
	edit.Number = ""

	s.Require().NoError(s.reconc.UpdateVoucher(s.ctx, edit))
	s.True(s.balance(s.main.ID).Equal(types.MustMoney("30")))
	s.Equal(payment.Number, edit.Number)
	s.assertConsistent(s.main.ID)

	stored, err := s.store.Vouchers().GetByID(s.ctx, payment.ID)
	s.Require().NoError(err)
	s.Equal(2, stored.Version)

	// A stale copy is rejected.
	payment.Amount = types.MustMoney("1")
	err = s.reconc.UpdateVoucher(s.ctx, payment)
	s.True(apperror.IsConcurrentModification(err))
}

func (s *ReconcilerSuite) TestUpdateVoucherMovesSafe() {
	s.voucher(safe.VoucherReceipt, s.main.ID, "100")
	receipt := s.voucher(safe.VoucherReceipt, s.main.ID, "25")

	edit, err := s.store.Vouchers().GetByID(s.ctx, receipt.ID)
	s.Require().NoError(err)
	edit.SafeID = s.aux.ID

	s.Require().NoError(s.reconc.UpdateVoucher(s.ctx, edit))
	s.True(s.balance(s.main.ID).Equal(types.MustMoney("100")))
	s.True(s.balance(s.aux.ID).Equal(types.MustMoney("25")))
	s.assertConsistent(s.main.ID)
	s.assertConsistent(s.aux.ID)
}

func (s *ReconcilerSuite) TestUpdateVoucherRollsBack() {
	s.voucher(safe.VoucherReceipt, s.main.ID, "100")
	payment := s.voucher(safe.VoucherPayment, s.main.ID, "50")

	edit, err := s.store.Vouchers().GetByID(s.ctx, payment.ID)
	s.Require().NoError(err)
	edit.Amount = types.MustMoney("500")

	// The old payment is reversed before the new amount is checked, so the
	// failure must undo that reversal too.
	err = s.reconc.UpdateVoucher(s.ctx, edit)
	s.True(apperror.IsInsufficientBalance(err))

	s.True(s.balance(s.main.ID).Equal(types.MustMoney("50")))
	stored, err := s.store.Vouchers().GetByID(s.ctx, payment.ID)
	s.Require().NoError(err)
	s.True(stored.Amount.Equal(types.MustMoney("50")))
	s.Equal(1, stored.Version)
	s.assertConsistent(s.main.ID)
}

func (s *ReconcilerSuite) TestTransferLifecycle() {
	s.voucher(safe.VoucherReceipt, s.main.ID, "5000")

	tr := safe.NewTransfer(s.main.ID, s.aux.ID, types.MustMoney("1000"), s.day)
	s.Require().NoError(s.reconc.CreateTransfer(s.ctx, tr))
	s.Equal("TR-2026-00001", tr.Number)
	s.True(s.balance(s.main.ID).Equal(types.MustMoney("4000")))
	s.True(s.balance(s.aux.ID).Equal(types.MustMoney("1000")))

	s.Require().NoError(s.reconc.DeleteTransfer(s.ctx, tr.ID))
	s.True(s.balance(s.main.ID).Equal(types.MustMoney("5000")))
	s.True(s.balance(s.aux.ID).IsZero())
	s.assertConsistent(s.main.ID)
	s.assertConsistent(s.aux.ID)
}

func (s *ReconcilerSuite) TestTransferRejected() {
	s.voucher(safe.VoucherReceipt, s.main.ID, "10")

	tests := []struct {
		name  string
		tr    *safe.Transfer
		check func(error) bool
	}{
		{
			name:  "not covered",
			tr:    safe.NewTransfer(s.main.ID, s.aux.ID, types.MustMoney("10.01"), s.day),
			check: apperror.IsInsufficientBalance,
		},
		{
			name:  "same safe",
			tr:    safe.NewTransfer(s.main.ID, s.main.ID, types.MustMoney("1"), s.day),
			check: func(err error) bool { return apperror.HasCode(err, apperror.CodeValidation) },
		},
		{
			name:  "unknown destination",
			tr:    safe.NewTransfer(s.main.ID, id.New(), types.MustMoney("1"), s.day),
			check: apperror.IsNotFound,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			err := s.reconc.CreateTransfer(s.ctx, tt.tr)
			s.Require().Error(err)
			s.True(tt.check(err), "unexpected error %v", err)
			s.True(s.balance(s.main.ID).Equal(types.MustMoney("10")))
			s.True(s.balance(s.aux.ID).IsZero())
		})
	}
}

func (s *ReconcilerSuite) TestCanTransfer() {
	s.voucher(safe.VoucherReceipt, s.main.ID, "75")

	ok, err := s.reconc.CanTransfer(s.ctx, s.main.ID, types.MustMoney("75"))
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.reconc.CanTransfer(s.ctx, s.main.ID, types.MustMoney("75.01"))
	s.Require().NoError(err)
	s.False(ok)
}

func (s *ReconcilerSuite) TestAuditDetectsMismatch() {
	s.voucher(safe.VoucherReceipt, s.main.ID, "300")

	report, err := s.reconc.Audit(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, report.Checked)
	s.Empty(report.Mismatches)

	// Corrupt the cached value behind the reconciler's back.
	s.Require().NoError(s.store.Safes().SetBalance(s.ctx, s.main.ID, types.MustMoney("250")))

	report, err = s.reconc.Audit(s.ctx)
	s.Require().Error(err)
	s.True(apperror.IsDataIntegrityMismatch(err))
	s.Require().Len(report.Mismatches, 1)
	s.Equal(s.main.ID, report.Mismatches[0].SafeID)
	s.True(report.Mismatches[0].Computed.Equal(types.MustMoney("300")))

	// Audit only reports.
	s.True(s.balance(s.main.ID).Equal(types.MustMoney("250")))
	s.Contains(s.recorder.Types(), events.SafeBalanceMismatch)
}

// Random sequences of movements must keep every cached balance equal to
// its recomputed value and conserve money across transfers.
func TestReconciler_BalanceInvariant(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	r := safe.NewReconciler(store.Safes(), store.Vouchers(), store.Transfers(),
		store, store, numerator.NewMemory(), nil)

	var safes []*safe.Safe
	for _, name := range []string{"A", "B", "C"} {
		sf := safe.NewSafe(name)
		require.NoError(t, store.Safes().Create(ctx, sf))
		safes = append(safes, sf)
	}

	rnd := rand.New(rand.NewSource(42))
	// 0.01 .. 1000.00
	amount := func() types.Money {
		return decimal.New(int64(rnd.Intn(100000)+1), -2)
	}
	pick := func() *safe.Safe { return safes[rnd.Intn(len(safes))] }
	day := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var vouchers []id.ID
	var transfers []id.ID
	net := types.Zero()

	for i := 0; i < 300; i++ {
		switch op := rnd.Intn(5); op {
		case 0, 1:
			v := safe.NewVoucher(safe.VoucherReceipt, pick().ID, amount(), day)
			require.NoError(t, r.CreateVoucher(ctx, v))
			vouchers = append(vouchers, v.ID)
			net = net.Add(v.Amount)
		case 2:
			v := safe.NewVoucher(safe.VoucherPayment, pick().ID, amount(), day)
			if err := r.CreateVoucher(ctx, v); err != nil {
				require.True(t, apperror.IsInsufficientBalance(err), "unexpected error %v", err)
				continue
			}
			vouchers = append(vouchers, v.ID)
			net = net.Sub(v.Amount)
		case 3:
			from, to := pick(), pick()
			if from.ID == to.ID {
				continue
			}
			tr := safe.NewTransfer(from.ID, to.ID, amount(), day)
			if err := r.CreateTransfer(ctx, tr); err != nil {
				require.True(t, apperror.IsInsufficientBalance(err), "unexpected error %v", err)
				continue
			}
			transfers = append(transfers, tr.ID)
		case 4:
			if len(vouchers) > 0 && rnd.Intn(2) == 0 {
				k := rnd.Intn(len(vouchers))
				v, err := store.Vouchers().GetByID(ctx, vouchers[k])
				require.NoError(t, err)
				require.NoError(t, r.DeleteVoucher(ctx, v.ID))
				net = net.Sub(v.SignedAmount())
				vouchers = append(vouchers[:k], vouchers[k+1:]...)
			} else if len(transfers) > 0 {
				k := rnd.Intn(len(transfers))
				require.NoError(t, r.DeleteTransfer(ctx, transfers[k]))
				transfers = append(transfers[:k], transfers[k+1:]...)
			}
		}

		total := types.Zero()
		for _, sf := range safes {
			stored, err := store.Safes().GetByID(ctx, sf.ID)
			require.NoError(t, err)
			computed, err := r.CalculateBalance(ctx, sf.ID)
			require.NoError(t, err)
			require.True(t, stored.Balance.Equal(computed), "step %d safe %s: cached %s computed %s",
				i, sf.Name, stored.Balance, computed)
			total = total.Add(stored.Balance)
		}
		require.True(t, total.Equal(net), "step %d: transfers must conserve money", i)
	}

	report, err := r.Audit(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(safes), report.Checked)
}
