package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"estateledger/internal/core/id"
	"estateledger/internal/core/types"
)

func TestBaseEntity_Lifecycle(t *testing.T) {
	b := NewBaseEntity()
	assert.False(t, id.IsNil(b.ID))
	assert.Equal(t, 1, b.Version)
	assert.False(t, b.IsDeleted())

	created := b.UpdatedAt
	b.Touch()
	assert.Equal(t, 1, b.Version)
	assert.False(t, b.UpdatedAt.Before(created))

	b.MarkDeleted()
	assert.True(t, b.IsDeleted())
	assert.NotNil(t, b.DeletedAt)
}

func TestDirection_Signed(t *testing.T) {
	amount := types.MustMoney("12.50")

	assert.Equal(t, "12.5", Inflow.Signed(amount).String())
	assert.Equal(t, "-12.5", Outflow.Signed(amount).String())
	assert.Equal(t, Outflow, Inflow.Reverse())
	assert.True(t, NoDirection.Signed(amount).IsZero())
}
