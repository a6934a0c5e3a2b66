// Package events defines the ledger's domain events. Services publish them
// inside their transaction; the PostgreSQL publisher stores them in the
// outbox so they commit or roll back with the change that caused them.
package events

import (
	"context"
	"sync"
	"time"

	"estateledger/internal/core/id"
)

// Event types.
const (
	VoucherApplied      = "VoucherApplied"
	VoucherReversed     = "VoucherReversed"
	TransferApplied     = "TransferApplied"
	TransferReversed    = "TransferReversed"
	ScheduleGenerated   = "ScheduleGenerated"
	ScheduleRegenerated = "ScheduleRegenerated"
	SafeBalanceMismatch = "SafeBalanceMismatch"
)

// Aggregate types.
const (
	AggregateSafe     = "Safe"
	AggregateVoucher  = "Voucher"
	AggregateTransfer = "Transfer"
	AggregateContract = "Contract"
)

// Event is a fact about the ledger.
type Event struct {
	AggregateType string
	AggregateID   id.ID
	Type          string
	Payload       any
	OccurredAt    time.Time
}

// New builds an event stamped with the current time.
func New(aggregateType string, aggregateID id.ID, eventType string, payload any) Event {
	return Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Type:          eventType,
		Payload:       payload,
		OccurredAt:    time.Now().UTC(),
	}
}

// Publisher records events. Implementations must join the transaction
// carried by ctx when there is one.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
}

// Nop discards all events.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, ...Event) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish implements Publisher.
func (r *Recorder) Publish(_ context.Context, events ...Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return nil
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the event types in publish order.
func (r *Recorder) Types() []string {
	evs := r.Events()
	out := make([]string, len(evs))
	for i, e := range evs {
		out[i] = e.Type
	}
	return out
}

// Fanout publishes to every publisher in order and stops at the first error.
type Fanout []Publisher

// Publish implements Publisher.
func (f Fanout) Publish(ctx context.Context, events ...Event) error {
	for _, p := range f {
		if err := p.Publish(ctx, events...); err != nil {
			return err
		}
	}
	return nil
}

var (
	_ Publisher = Nop{}
	_ Publisher = (*Recorder)(nil)
	_ Publisher = Fanout(nil)
)
