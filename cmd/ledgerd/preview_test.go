package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estateledger/internal/core/apperror"
	"estateledger/internal/core/types"
	"estateledger/internal/domain/contract"
	"estateledger/internal/domain/schedule"
)

func parseTerms(t *testing.T, args ...string) *termFlags {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	terms := bindTerms(fs)
	require.NoError(t, fs.Parse(args))
	return terms
}

func TestTerms_Contract(t *testing.T) {
	terms := parseTerms(t,
		"--total", "120000", "--down", "20000", "--count", "10",
		"--cadence", "quarterly", "--broker-percent", "1.5", "--start", "2026-03-01")

	c, err := terms.contract()
	require.NoError(t, err)
	assert.True(t, c.TotalPrice.Equal(types.MustMoney("120000")))
	assert.True(t, c.DownPayment.Equal(types.MustMoney("20000")))
	assert.True(t, c.BrokerPercent.Equal(types.MustMoney("1.5")))
	assert.Equal(t, 10, c.InstallmentCount)
	assert.Equal(t, contract.CadenceQuarterly, c.Cadence)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), c.StartDate)
}

func TestTerms_Rejected(t *testing.T) {
	_, err := parseTerms(t).contract()
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = parseTerms(t, "--total", "abc").contract()
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = parseTerms(t, "--total", "100", "--start", "01/03/2026").contract()
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestPreview_Write(t *testing.T) {
	c, err := parseTerms(t, "--total", "100", "--count", "3", "--start", "2026-01-31").contract()
	require.NoError(t, err)

	view, err := previewTerms(c, schedule.DefaultOptions())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, view.write(&buf))
	out := buf.String()

	assert.Contains(t, out, "2026-02-28")
	assert.Contains(t, out, "33.34")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Contains(t, lines[len(lines)-1], "100.00")
}
