package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed(level zapcore.Level) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return Wrap(zap.New(core)), logs
}

func TestFromContext_CarriesFields(t *testing.T) {
	l, logs := observed(zapcore.InfoLevel)

	ctx := WithLogger(context.Background(), l.WithComponent("reconciler"))
	ctx = WithFields(ctx, "safe_id", "s-1")
	child := WithFields(ctx, "voucher", "RV-2026-00001")

	Info(child, "voucher applied", "amount", "10.00")
	Debug(child, "dropped")
	Info(ctx, "sibling")

	require.Equal(t, 2, logs.Len())
	first := logs.All()[0].ContextMap()
	assert.Equal(t, "reconciler", first["component"])
	assert.Equal(t, "s-1", first["safe_id"])
	assert.Equal(t, "RV-2026-00001", first["voucher"])
	assert.Equal(t, "10.00", first["amount"])

	// Fields added on a child context do not leak into its parent.
	second := logs.All()[1].ContextMap()
	assert.NotContains(t, second, "voucher")
	assert.Equal(t, "s-1", second["safe_id"])
}

func TestDefault_Replaceable(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	l, logs := observed(zapcore.WarnLevel)
	SetDefault(l)

	Warn(context.Background(), "balance mismatch", "safe", "Main")
	Info(context.Background(), "ignored")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "balance mismatch", logs.All()[0].Message)
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	l, err := New(Config{Level: "chatty", OutputPaths: []string{"stderr"}, Service: "ledgerd"})
	require.NoError(t, err)
	assert.True(t, l.Desugar().Core().Enabled(zapcore.InfoLevel))
	assert.False(t, l.Desugar().Core().Enabled(zapcore.DebugLevel))
}
