package numerator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

// mockQuerier simulates one sys_sequences row per key.
type mockQuerier struct {
	mu    sync.Mutex
	vals  map[string]int64
	calls int
	err   error
}

func newMockQuerier() *mockQuerier {
	return &mockQuerier{vals: make(map[string]int64)}
}

func (m *mockQuerier) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if m.err != nil {
		return &mockRow{err: m.err}
	}
	key := args[0].(string)
	m.vals[key] += args[1].(int64)
	return &mockRow{val: m.vals[key]}
}

var at = time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)

func TestNext_Strict(t *testing.T) {
	q := newMockQuerier()
	svc := New(q, Options{})
	ctx := context.Background()

	num, err := svc.Next(ctx, "RV", at)
	require.NoError(t, err)
	assert.Equal(t, "RV-2026-00001", num)

	num, err = svc.Next(ctx, "RV", at)
	require.NoError(t, err)
	assert.Equal(t, "RV-2026-00002", num)

	num, err = svc.Next(ctx, "TR", at)
	require.NoError(t, err)
	assert.Equal(t, "TR-2026-00001", num)
	assert.Equal(t, 3, q.calls)
}

func TestNext_Cached(t *testing.T) {
	q := newMockQuerier()
	svc := New(q, Options{Strategy: StrategyCached, RangeSize: 10})
	ctx := context.Background()

	num, err := svc.Next(ctx, "PV", at)
	require.NoError(t, err)
	assert.Equal(t, "PV-2026-00001", num)
	assert.Equal(t, int64(10), q.vals["PV_2026"])

	// Served from memory until the range is used up.
	for i := 0; i < 9; i++ {
		_, err = svc.Next(ctx, "PV", at)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, q.calls)

	num, err = svc.Next(ctx, "PV", at)
	require.NoError(t, err)
	assert.Equal(t, "PV-2026-00011", num)
	assert.Equal(t, int64(20), q.vals["PV_2026"])
	assert.Equal(t, 2, q.calls)
}

func TestNext_DatabaseError(t *testing.T) {
	q := newMockQuerier()
	q.err = errors.New("connection reset")
	svc := New(q, Options{})

	_, err := svc.Next(context.Background(), "RV", at)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RV_2026")
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("cached")
	require.NoError(t, err)
	assert.Equal(t, StrategyCached, s)

	s, err = ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategyStrict, s)

	_, err = ParseStrategy("random")
	assert.Error(t, err)
}

func TestParseNumber(t *testing.T) {
	assert.Equal(t, int64(42), ParseNumber("RV-2026-00042"))
	assert.Equal(t, int64(-1), ParseNumber("RV-2026-xx"))
}
