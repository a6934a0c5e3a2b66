package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estateledger/internal/core/entity"
	"estateledger/internal/core/types"
)

type row struct {
	entity.BaseEntity
	Name    string      `db:"name"`
	Balance types.Money `db:"balance"`
	Scratch string      `db:"-"`
	Note    string
}

func TestExtractDBColumns(t *testing.T) {
	cols := ExtractDBColumns[row]()
	assert.Equal(t, []string{
		"id", "deletion_mark", "deleted_at", "version", "created_at", "updated_at", "name", "balance",
	}, cols)
	assert.Equal(t, cols, ExtractDBColumns[*row]())
}

func TestStructToMap(t *testing.T) {
	now := time.Now().UTC()
	r := row{
		BaseEntity: entity.NewBaseEntity(),
		Name:       "Main",
		Balance:    types.MustMoney("12.50"),
		Scratch:    "ignored",
	}
	r.DeletedAt = &now
	r.Version = 5

	m := StructToMap(&r)
	require.Len(t, m, 8)
	assert.Equal(t, r.ID, m["id"])
	assert.Equal(t, 5, m["version"])
	assert.Equal(t, &now, m["deleted_at"])
	assert.Equal(t, "Main", m["name"])
	assert.True(t, m["balance"].(types.Money).Equal(types.MustMoney("12.5")))
	assert.NotContains(t, m, "Scratch")

	assert.Nil(t, StructToMap((*row)(nil)))
	assert.Nil(t, StructToMap(42))
}

func TestWithout(t *testing.T) {
	m := map[string]any{"id": 1, "name": "x", "version": 2}
	out := Without(m, "id", "version")
	assert.Equal(t, map[string]any{"name": "x"}, out)
	assert.Len(t, m, 3)
}
