package numerator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_Next(t *testing.T) {
	g := NewMemory()
	ctx := context.Background()
	y26 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	y27 := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)

	n, err := g.Next(ctx, PrefixReceipt, y26)
	require.NoError(t, err)
	assert.Equal(t, "RV-2026-00001", n)

	n, _ = g.Next(ctx, PrefixReceipt, y26)
	assert.Equal(t, "RV-2026-00002", n)

	// Prefixes and years count independently.
	n, _ = g.Next(ctx, PrefixPayment, y26)
	assert.Equal(t, "PV-2026-00001", n)
	n, _ = g.Next(ctx, PrefixReceipt, y27)
	assert.Equal(t, "RV-2027-00001", n)
}
