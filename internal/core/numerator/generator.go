// Package numerator provides the numbering port used by ledger services.
// Implementations live in pkg/numerator (PostgreSQL-backed) and here
// (in-memory, for tests and previews).
package numerator

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Prefixes of human-readable record numbers.
const (
	PrefixReceipt   = "RV"
	PrefixPayment   = "PV"
	PrefixTransfer  = "TR"
	PrefixBrokerDue = "BD"
)

// Generator hands out sequential numbers such as RV-2026-00001.
// Numbers are allocated per prefix and reset every calendar year.
type Generator interface {
	Next(ctx context.Context, prefix string, at time.Time) (string, error)
}

// Memory is an in-process Generator. Numbers are lost on restart.
type Memory struct {
	mu   sync.Mutex
	seqs map[string]int64
}

// NewMemory creates an empty in-memory generator.
func NewMemory() *Memory {
	return &Memory{seqs: make(map[string]int64)}
}

// Next implements Generator.
func (m *Memory) Next(_ context.Context, prefix string, at time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := fmt.Sprintf("%s_%d", prefix, at.Year())
	m.seqs[key]++
	return fmt.Sprintf("%s-%d-%05d", prefix, at.Year(), m.seqs[key]), nil
}

var _ Generator = (*Memory)(nil)
