package partner

import (
	"context"
	"time"

	"estateledger/internal/core/id"
	"estateledger/internal/core/types"
)

// Repository persists partners, unit shares and groups.
// List and Find methods skip soft-deleted rows.
type Repository interface {
	CreatePartner(ctx context.Context, p *Partner) error
	GetPartner(ctx context.Context, partnerID id.ID) (*Partner, error)

	CreateShare(ctx context.Context, s *UnitPartner) error
	GetShare(ctx context.Context, shareID id.ID) (*UnitPartner, error)
	UpdateShare(ctx context.Context, s *UnitPartner) error
	DeleteShare(ctx context.Context, shareID id.ID) error
	ListSharesByUnit(ctx context.Context, unitID id.ID) ([]*UnitPartner, error)
	// FindShare returns the live share of partnerID in unitID or NotFound.
	FindShare(ctx context.Context, unitID, partnerID id.ID) (*UnitPartner, error)

	CreateGroup(ctx context.Context, g *PartnerGroup) error
	GetGroup(ctx context.Context, groupID id.ID) (*PartnerGroup, error)
	AddMember(ctx context.Context, m *GroupMember) error
	ListMembers(ctx context.Context, groupID id.ID) ([]*GroupMember, error)
}

// TransactionRepository persists daily partner entries.
type TransactionRepository interface {
	Create(ctx context.Context, t *DailyTransaction) error
	// List returns entries with from ≤ transaction_date ≤ to ordered by
	// (transaction_date, created_at). A zero from means no lower bound.
	List(ctx context.Context, partnerID id.ID, from, to time.Time) ([]*DailyTransaction, error)
	// Sum returns income and expense totals over the same range as List.
	Sum(ctx context.Context, partnerID id.ID, from, to time.Time) (income, expense types.Money, err error)
}
