package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"estateledger/internal/core/id"
)

type failing struct{ err error }

func (f failing) Publish(context.Context, ...Event) error { return f.err }

func TestFanout(t *testing.T) {
	ctx := context.Background()
	a, b := &Recorder{}, &Recorder{}
	ev := New(AggregateSafe, id.New(), VoucherApplied, nil)

	assert.NoError(t, Fanout{a, b}.Publish(ctx, ev))
	assert.Equal(t, []string{VoucherApplied}, a.Types())
	assert.Equal(t, []string{VoucherApplied}, b.Types())

	boom := errors.New("boom")
	c := &Recorder{}
	err := Fanout{failing{boom}, c}.Publish(ctx, ev)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, c.Events())
}
