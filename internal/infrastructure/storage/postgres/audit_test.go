package postgres

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estateledger/internal/core/id"
	"estateledger/internal/domain/events"
)

func TestAuditJournal_CompressesLargePayloads(t *testing.T) {
	j, err := NewAuditJournal(nil, 64)
	require.NoError(t, err)

	small, err := j.entry(events.New(events.AggregateSafe, id.New(), events.SafeBalanceMismatch,
		map[string]string{"note": "ok"}))
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, small.CompressionAlgo)
	assert.JSONEq(t, `{"note":"ok"}`, string(small.Changes))

	big := map[string]string{"note": strings.Repeat("installment ", 50)}
	large, err := j.entry(events.New(events.AggregateContract, id.New(), events.ScheduleGenerated, big))
	require.NoError(t, err)
	assert.Equal(t, CompressionZstd, large.CompressionAlgo)
	assert.Nil(t, large.Changes)
	assert.Less(t, len(large.ChangesCompressed), 600)

	require.NoError(t, j.expand(&large))
	assert.Contains(t, string(large.Changes), "installment installment")
	assert.Nil(t, large.ChangesCompressed)
}

func TestAuditJournal_DefaultThreshold(t *testing.T) {
	j, err := NewAuditJournal(nil, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultCompressThreshold, j.compressThreshold)
}
