// Package memory provides in-process implementations of every ledger
// repository port plus a transaction manager with rollback. It backs
// dry runs of the operator tool and the domain service tests.
package memory

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"estateledger/internal/core/apperror"
	"estateledger/internal/core/id"
	"estateledger/internal/core/tx"
	"estateledger/internal/domain/broker"
	"estateledger/internal/domain/contract"
	"estateledger/internal/domain/partner"
	"estateledger/internal/domain/safe"
	"estateledger/internal/domain/schedule"
)

type tables struct {
	safes        map[id.ID]safe.Safe
	vouchers     map[id.ID]safe.Voucher
	transfers    map[id.ID]safe.Transfer
	contracts    map[id.ID]contract.Contract
	installments map[id.ID]schedule.Installment
	partners     map[id.ID]partner.Partner
	shares       map[id.ID]partner.UnitPartner
	groups       map[id.ID]partner.PartnerGroup
	members      map[id.ID]partner.GroupMember
	dailyTxs     map[id.ID]partner.DailyTransaction
	brokers      map[id.ID]broker.Broker
	dues         map[id.ID]broker.Due
}

func newTables() *tables {
	return &tables{
		safes:        make(map[id.ID]safe.Safe),
		vouchers:     make(map[id.ID]safe.Voucher),
		transfers:    make(map[id.ID]safe.Transfer),
		contracts:    make(map[id.ID]contract.Contract),
		installments: make(map[id.ID]schedule.Installment),
		partners:     make(map[id.ID]partner.Partner),
		shares:       make(map[id.ID]partner.UnitPartner),
		groups:       make(map[id.ID]partner.PartnerGroup),
		members:      make(map[id.ID]partner.GroupMember),
		dailyTxs:     make(map[id.ID]partner.DailyTransaction),
		brokers:      make(map[id.ID]broker.Broker),
		dues:         make(map[id.ID]broker.Due),
	}
}

// clone copies every table. Rows are stored by value, so a shallow map
// copy is a full snapshot.
func (t *tables) clone() *tables {
	return &tables{
		safes:        maps.Clone(t.safes),
		vouchers:     maps.Clone(t.vouchers),
		transfers:    maps.Clone(t.transfers),
		contracts:    maps.Clone(t.contracts),
		installments: maps.Clone(t.installments),
		partners:     maps.Clone(t.partners),
		shares:       maps.Clone(t.shares),
		groups:       maps.Clone(t.groups),
		members:      maps.Clone(t.members),
		dailyTxs:     maps.Clone(t.dailyTxs),
		brokers:      maps.Clone(t.brokers),
		dues:         maps.Clone(t.dues),
	}
}

// Store holds all tables. Transactions are serialized: the outermost
// RunInTransaction holds the store lock until it commits or rolls back.
type Store struct {
	mu   sync.Mutex
	data *tables
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{data: newTables()}
}

type txKey struct{}

func inTx(ctx context.Context) bool {
	return ctx.Value(txKey{}) != nil
}

// RunInTransaction implements tx.Manager. Nested calls join the outer
// transaction; an error or a panic restores the state from before the
// outermost call.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	defer func() {
		if p := recover(); p != nil {
			s.data = snapshot
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, struct{}{})); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// ReadOnly implements tx.ReadOnlyManager.
func (s *Store) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.RunInTransaction(ctx, fn)
}

// Lock implements tx.Locker. The store lock already serializes
// transactions, so this only checks that it is called inside one.
func (s *Store) Lock(ctx context.Context, scope tx.LockScope, ids ...id.ID) error {
	if !inTx(ctx) {
		return fmt.Errorf("lock %s outside of a transaction", scope)
	}
	return nil
}

// view runs fn against the tables, taking the store lock when ctx is not
// already inside a transaction.
func (s *Store) view(ctx context.Context, fn func(t *tables) error) error {
	if inTx(ctx) {
		return fn(s.data)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

// getRow returns a copy of the row or NotFound.
func getRow[T any](m map[id.ID]T, entity string, key id.ID) (*T, error) {
	row, ok := m[key]
	if !ok {
		return nil, apperror.NewNotFound(entity, key.String())
	}
	return &row, nil
}

func insertRow[T any](m map[id.ID]T, entity string, key id.ID, row T) error {
	if _, ok := m[key]; ok {
		return apperror.NewDuplicate(entity, "id", key.String())
	}
	m[key] = row
	return nil
}

// checkVersion enforces optimistic locking the same way the SQL
// repositories do: the caller's version must match the stored one.
func checkVersion(entity string, key id.ID, stored, incoming int) error {
	if stored != incoming {
		return apperror.NewConcurrentModification(entity, key.String())
	}
	return nil
}

var (
	_ tx.ReadOnlyManager = (*Store)(nil)
	_ tx.Locker          = (*Store)(nil)
)
