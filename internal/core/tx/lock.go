package tx

import (
	"context"
	"sort"

	"estateledger/internal/core/id"
)

// LockScope names a family of lockable rows.
type LockScope string

const (
	LockSafe         LockScope = "safe"
	LockUnit         LockScope = "unit"
	LockPartnerGroup LockScope = "partner_group"
	LockContract     LockScope = "contract"
)

// Locker serializes writers on the same row for the rest of the current
// transaction. Must be called inside RunInTransaction.
type Locker interface {
	Lock(ctx context.Context, scope LockScope, ids ...id.ID) error
}

// SortedUnique returns ids deduplicated and in a stable order.
// Locking in one global order keeps two opposite transfers from deadlocking.
func SortedUnique(ids []id.ID) []id.ID {
	seen := make(map[id.ID]struct{}, len(ids))
	out := make([]id.ID, 0, len(ids))
	for _, v := range ids {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return id.Less(out[i], out[j]) })
	return out
}
