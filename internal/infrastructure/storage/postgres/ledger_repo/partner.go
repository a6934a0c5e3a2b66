package ledger_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"

	"estateledger/internal/core/apperror"
	"estateledger/internal/core/id"
	"estateledger/internal/core/types"
	"estateledger/internal/domain/partner"
	"estateledger/internal/infrastructure/storage/postgres"
)

const dailyTransactionsTable = "partner_daily_transactions"

// PartnerRepo implements partner.Repository.
type PartnerRepo struct {
	partners *table[partner.Partner, *partner.Partner]
	shares   *table[partner.UnitPartner, *partner.UnitPartner]
	groups   *table[partner.PartnerGroup, *partner.PartnerGroup]
	members  *table[partner.GroupMember, *partner.GroupMember]
}

// NewPartnerRepo creates a new partner repository.
func NewPartnerRepo(tm *postgres.TxManager) *PartnerRepo {
	return &PartnerRepo{
		partners: newTable[partner.Partner, *partner.Partner](tm, "partners", "partner"),
		shares:   newTable[partner.UnitPartner, *partner.UnitPartner](tm, "unit_partners", "unit_partner"),
		groups:   newTable[partner.PartnerGroup, *partner.PartnerGroup](tm, "partner_groups", "partner_group"),
		members:  newTable[partner.GroupMember, *partner.GroupMember](tm, "partner_group_members", "group_member"),
	}
}

func (r *PartnerRepo) CreatePartner(ctx context.Context, p *partner.Partner) error {
	return r.partners.insert(ctx, p)
}

func (r *PartnerRepo) GetPartner(ctx context.Context, partnerID id.ID) (*partner.Partner, error) {
	return r.partners.one(ctx, r.partners.live().Where(squirrel.Eq{"id": partnerID}), partnerID.String())
}

// CreateShare relies on the partial unique index over live
// (unit_id, partner_id) pairs.
func (r *PartnerRepo) CreateShare(ctx context.Context, s *partner.UnitPartner) error {
	err := r.shares.insert(ctx, s)
	if apperror.HasCode(err, apperror.CodeDuplicate) {
		return apperror.NewDuplicate("unit_partner", "partner_id", s.PartnerID.String()).WithCause(err)
	}
	return err
}

func (r *PartnerRepo) GetShare(ctx context.Context, shareID id.ID) (*partner.UnitPartner, error) {
	return r.shares.get(ctx, shareID)
}

func (r *PartnerRepo) UpdateShare(ctx context.Context, s *partner.UnitPartner) error {
	return r.shares.update(ctx, s)
}

func (r *PartnerRepo) DeleteShare(ctx context.Context, shareID id.ID) error {
	return r.shares.markDeleted(ctx, shareID)
}

func (r *PartnerRepo) ListSharesByUnit(ctx context.Context, unitID id.ID) ([]*partner.UnitPartner, error) {
	return r.shares.many(ctx, r.shares.live().
		Where(squirrel.Eq{"unit_id": unitID}).
		OrderBy("created_at", "id"))
}

func (r *PartnerRepo) FindShare(ctx context.Context, unitID, partnerID id.ID) (*partner.UnitPartner, error) {
	return r.shares.one(ctx, r.shares.live().
		Where(squirrel.Eq{"unit_id": unitID, "partner_id": partnerID}),
		partnerID.String())
}

func (r *PartnerRepo) CreateGroup(ctx context.Context, g *partner.PartnerGroup) error {
	return r.groups.insert(ctx, g)
}

func (r *PartnerRepo) GetGroup(ctx context.Context, groupID id.ID) (*partner.PartnerGroup, error) {
	return r.groups.get(ctx, groupID)
}

func (r *PartnerRepo) AddMember(ctx context.Context, m *partner.GroupMember) error {
	err := r.members.insert(ctx, m)
	if apperror.HasCode(err, apperror.CodeDuplicate) {
		return apperror.NewDuplicate("group_member", "partner_id", m.PartnerID.String()).WithCause(err)
	}
	return err
}

func (r *PartnerRepo) ListMembers(ctx context.Context, groupID id.ID) ([]*partner.GroupMember, error) {
	return r.members.many(ctx, r.members.live().
		Where(squirrel.Eq{"group_id": groupID}).
		OrderBy("created_at", "id"))
}

// TransactionRepo implements partner.TransactionRepository.
type TransactionRepo struct {
	t *table[partner.DailyTransaction, *partner.DailyTransaction]
}

// NewTransactionRepo creates a new daily transaction repository.
func NewTransactionRepo(tm *postgres.TxManager) *TransactionRepo {
	return &TransactionRepo{
		t: newTable[partner.DailyTransaction, *partner.DailyTransaction](tm, dailyTransactionsTable, "daily_transaction"),
	}
}

func (r *TransactionRepo) Create(ctx context.Context, d *partner.DailyTransaction) error {
	return r.t.insert(ctx, d)
}

// rangeFilter matches one partner's live entries from..to by calendar day.
func rangeFilter(partnerID id.ID, from, to time.Time) squirrel.And {
	cond := squirrel.And{
		squirrel.Eq{"partner_id": partnerID, "deletion_mark": false},
		squirrel.LtOrEq{"transaction_date": partner.Day(to)},
	}
	if !from.IsZero() {
		cond = append(cond, squirrel.GtOrEq{"transaction_date": partner.Day(from)})
	}
	return cond
}

func (r *TransactionRepo) List(ctx context.Context, partnerID id.ID, from, to time.Time) ([]*partner.DailyTransaction, error) {
	return r.t.many(ctx, r.t.baseSelect().
		Where(rangeFilter(partnerID, from, to)).
		OrderBy("transaction_date", "created_at", "id"))
}

func sumQuery(partnerID id.ID, from, to time.Time) squirrel.SelectBuilder {
	return Builder().
		Select(
			"COALESCE(SUM(amount) FILTER (WHERE type = 'income'), 0)",
			"COALESCE(SUM(amount) FILTER (WHERE type = 'expense'), 0)",
		).
		From(dailyTransactionsTable).
		Where(rangeFilter(partnerID, from, to))
}

func (r *TransactionRepo) Sum(ctx context.Context, partnerID id.ID, from, to time.Time) (income, expense types.Money, err error) {
	if err := r.t.scalar(ctx, sumQuery(partnerID, from, to), &income, &expense); err != nil {
		return types.Zero(), types.Zero(), fmt.Errorf("partner totals: %w", err)
	}
	return income, expense, nil
}

var (
	_ partner.Repository            = (*PartnerRepo)(nil)
	_ partner.TransactionRepository = (*TransactionRepo)(nil)
)
