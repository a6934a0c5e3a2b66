package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estateledger/internal/core/apperror"
	"estateledger/internal/core/tx"
	"estateledger/internal/core/types"
	"estateledger/internal/domain/safe"
)

func TestStore_RollbackRestoresAllTables(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	sf := safe.NewSafe("Main")
	require.NoError(t, s.Safes().Create(ctx, sf))

	boom := errors.New("boom")
	err := s.RunInTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, s.Safes().SetBalance(ctx, sf.ID, types.MustMoney("10")))
		// Nested calls join the outer transaction.
		return s.RunInTransaction(ctx, func(ctx context.Context) error {
			require.NoError(t, s.Safes().Create(ctx, safe.NewSafe("Second")))
			return boom
		})
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.Safes().GetByID(ctx, sf.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.IsZero())

	all, err := s.Safes().List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStore_PanicRestoresTables(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	sf := safe.NewSafe("Main")
	require.NoError(t, s.Safes().Create(ctx, sf))

	assert.PanicsWithValue(t, "boom", func() {
		_ = s.RunInTransaction(ctx, func(ctx context.Context) error {
			require.NoError(t, s.Safes().SetBalance(ctx, sf.ID, types.MustMoney("10")))
			panic("boom")
		})
	})

	got, err := s.Safes().GetByID(ctx, sf.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.IsZero())

	// The store lock was released.
	require.NoError(t, s.RunInTransaction(ctx, func(ctx context.Context) error { return nil }))
}

func TestStore_LockRequiresTransaction(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	sf := safe.NewSafe("Main")

	assert.Error(t, s.Lock(ctx, tx.LockSafe, sf.ID))
	assert.NoError(t, s.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.Lock(ctx, tx.LockSafe, sf.ID)
	}))
}

func TestStore_OptimisticVersion(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	v := safe.NewVoucher(safe.VoucherReceipt, safe.NewSafe("x").ID, types.MustMoney("1"), time.Now())
	require.NoError(t, s.Vouchers().Create(ctx, v))

	stale := *v
	require.NoError(t, s.Vouchers().Update(ctx, v))
	assert.Equal(t, 2, v.Version)

	err := s.Vouchers().Update(ctx, &stale)
	assert.True(t, apperror.IsConcurrentModification(err))

	err = s.Vouchers().Create(ctx, v)
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))
}
