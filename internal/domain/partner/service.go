package partner

import (
	"context"
	"fmt"
	"time"

	"estateledger/internal/core/apperror"
	"estateledger/internal/core/entity"
	"estateledger/internal/core/id"
	"estateledger/internal/core/tx"
	"estateledger/internal/core/types"
	"estateledger/pkg/logger"
)

// DefaultTolerance is the slack allowed above 100% and around a full
// allocation.
var DefaultTolerance = types.MustMoney("0.01")

// Service computes and guards partner shares.
//
// The ≤100% allocation rule is enforced here for every write path: the
// unit (or group) row is locked, the live shares are summed and the write
// is rejected with PercentageOverflow if the new total would exceed
// 100 + tolerance.
type Service struct {
	repo      Repository
	txs       TransactionRepository
	txManager tx.Manager
	locker    tx.Locker
	tolerance types.Percent
}

// NewService creates a partner service. A non-positive tolerance falls
// back to DefaultTolerance.
func NewService(repo Repository, txs TransactionRepository, txManager tx.Manager, locker tx.Locker, tolerance types.Percent) *Service {
	if !tolerance.IsPositive() {
		tolerance = DefaultTolerance
	}
	return &Service{
		repo:      repo,
		txs:       txs,
		txManager: txManager,
		locker:    locker,
		tolerance: tolerance,
	}
}

// CreatePartner stores a new partner.
func (s *Service) CreatePartner(ctx context.Context, p *Partner) error {
	if err := p.Validate(ctx); err != nil {
		return err
	}
	if err := s.repo.CreatePartner(ctx, p); err != nil {
		return fmt.Errorf("create partner: %w", err)
	}
	return nil
}

// --- Unit shares ---

// UnitPartnerTotalPercentage sums the live shares of a unit.
func (s *Service) UnitPartnerTotalPercentage(ctx context.Context, unitID id.ID) (types.Percent, error) {
	shares, err := s.repo.ListSharesByUnit(ctx, unitID)
	if err != nil {
		return types.Zero(), fmt.Errorf("list shares: %w", err)
	}
	return sumShares(shares, id.Nil()), nil
}

// ValidatePartnerPercentages reports whether the unit is fully allocated
// (|total − 100| < tolerance). A partly allocated unit is not an error.
func (s *Service) ValidatePartnerPercentages(ctx context.Context, unitID id.ID) (bool, error) {
	total, err := s.UnitPartnerTotalPercentage(ctx, unitID)
	if err != nil {
		return false, err
	}
	return total.Sub(types.Hundred()).Abs().LessThan(s.tolerance), nil
}

// AssignPartner gives partnerID a pct share of unitID.
func (s *Service) AssignPartner(ctx context.Context, unitID, partnerID id.ID, pct types.Percent) (*UnitPartner, error) {
	share := &UnitPartner{
		BaseEntity: entity.NewBaseEntity(),
		UnitID:     unitID,
		PartnerID:  partnerID,
		Percentage: pct,
	}
	if err := share.Validate(ctx); err != nil {
		return nil, err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.locker.Lock(ctx, tx.LockUnit, unitID); err != nil {
			return fmt.Errorf("lock unit: %w", err)
		}

		if _, err := s.repo.GetPartner(ctx, partnerID); err != nil {
			return err
		}

		if _, err := s.repo.FindShare(ctx, unitID, partnerID); err == nil {
			return apperror.NewDuplicate("unit_partner", "partner_id", partnerID.String())
		} else if !apperror.IsNotFound(err) {
			return fmt.Errorf("find share: %w", err)
		}

		shares, err := s.repo.ListSharesByUnit(ctx, unitID)
		if err != nil {
			return fmt.Errorf("list shares: %w", err)
		}
		if err := s.checkAllocation("unit", unitID, sumShares(shares, id.Nil()), pct); err != nil {
			return err
		}

		if err := s.repo.CreateShare(ctx, share); err != nil {
			return fmt.Errorf("create share: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "partner assigned", "unit_id", unitID, "partner_id", partnerID, "percentage", pct.String())
	return share, nil
}

// UpdateShare changes the percentage of an existing share.
func (s *Service) UpdateShare(ctx context.Context, shareID id.ID, pct types.Percent) (*UnitPartner, error) {
	if err := checkPercent(pct); err != nil {
		return nil, err
	}

	var share *UnitPartner
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetShare(ctx, shareID)
		if err != nil {
			return err
		}
		if err := s.locker.Lock(ctx, tx.LockUnit, current.UnitID); err != nil {
			return fmt.Errorf("lock unit: %w", err)
		}

		// Re-read under the lock.
		share, err = s.repo.GetShare(ctx, shareID)
		if err != nil {
			return err
		}
		if share.IsDeleted() {
			return apperror.NewNotFound("unit_partner", shareID)
		}

		shares, err := s.repo.ListSharesByUnit(ctx, share.UnitID)
		if err != nil {
			return fmt.Errorf("list shares: %w", err)
		}
		if err := s.checkAllocation("unit", share.UnitID, sumShares(shares, share.ID), pct); err != nil {
			return err
		}

		share.Percentage = pct
		share.Touch()
		if err := s.repo.UpdateShare(ctx, share); err != nil {
			return fmt.Errorf("update share: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return share, nil
}

// RemoveShare soft-deletes a share under the unit lock.
func (s *Service) RemoveShare(ctx context.Context, shareID id.ID) error {
	var share *UnitPartner
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetShare(ctx, shareID)
		if err != nil {
			return err
		}
		if err := s.locker.Lock(ctx, tx.LockUnit, current.UnitID); err != nil {
			return fmt.Errorf("lock unit: %w", err)
		}

		share, err = s.repo.GetShare(ctx, shareID)
		if err != nil {
			return err
		}
		if share.IsDeleted() {
			return apperror.NewNotFound("unit_partner", shareID)
		}
		if err := s.repo.DeleteShare(ctx, shareID); err != nil {
			return fmt.Errorf("delete share: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "partner share removed", "share_id", shareID, "unit_id", share.UnitID)
	return nil
}

// Investment is a partner's part of a unit price: total × pct / 100.
func Investment(unitTotalPrice types.Money, pct types.Percent) types.Money {
	return types.ShareOf(unitTotalPrice, pct)
}

// PartnerInvestmentForUnit looks up the partner's share of the unit and
// applies it to unitTotalPrice.
func (s *Service) PartnerInvestmentForUnit(ctx context.Context, unitID, partnerID id.ID, unitTotalPrice types.Money) (types.Money, error) {
	share, err := s.repo.FindShare(ctx, unitID, partnerID)
	if err != nil {
		return types.Zero(), err
	}
	return Investment(unitTotalPrice, share.Percentage), nil
}

// --- Groups ---

// CreateGroup stores a new partner group.
func (s *Service) CreateGroup(ctx context.Context, g *PartnerGroup) error {
	if err := g.Validate(ctx); err != nil {
		return err
	}
	if err := s.repo.CreateGroup(ctx, g); err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	return nil
}

// GroupTotalPercentage sums the live member shares of a group.
func (s *Service) GroupTotalPercentage(ctx context.Context, groupID id.ID) (types.Percent, error) {
	members, err := s.repo.ListMembers(ctx, groupID)
	if err != nil {
		return types.Zero(), fmt.Errorf("list members: %w", err)
	}
	total := types.Zero()
	for _, m := range members {
		total = total.Add(m.Percentage)
	}
	return total, nil
}

// AddGroupMember gives partnerID a pct share of a group, with the same
// allocation rule as unit shares.
func (s *Service) AddGroupMember(ctx context.Context, groupID, partnerID id.ID, pct types.Percent) (*GroupMember, error) {
	if err := checkPercent(pct); err != nil {
		return nil, err
	}

	member := &GroupMember{
		BaseEntity: entity.NewBaseEntity(),
		GroupID:    groupID,
		PartnerID:  partnerID,
		Percentage: pct,
	}
	if err := member.Validate(ctx); err != nil {
		return nil, err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.locker.Lock(ctx, tx.LockPartnerGroup, groupID); err != nil {
			return fmt.Errorf("lock group: %w", err)
		}
		if _, err := s.repo.GetGroup(ctx, groupID); err != nil {
			return err
		}
		if _, err := s.repo.GetPartner(ctx, partnerID); err != nil {
			return err
		}

		total, err := s.GroupTotalPercentage(ctx, groupID)
		if err != nil {
			return err
		}
		if err := s.checkAllocation("group", groupID, total, pct); err != nil {
			return err
		}

		return s.repo.AddMember(ctx, member)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "group member added", "group_id", groupID, "partner_id", partnerID, "percentage", pct.String())
	return member, nil
}

// --- Daily transactions ---

// RecordDailyTransaction stores an income or expense entry.
func (s *Service) RecordDailyTransaction(ctx context.Context, t *DailyTransaction) error {
	t.TransactionDate = Day(t.TransactionDate)
	if err := t.Validate(ctx); err != nil {
		return err
	}
	if err := s.txs.Create(ctx, t); err != nil {
		return fmt.Errorf("create daily transaction: %w", err)
	}
	return nil
}

// PartnerDailyBalance is income − expense on one day.
func (s *Service) PartnerDailyBalance(ctx context.Context, partnerID id.ID, date time.Time) (types.Money, error) {
	day := Day(date)
	income, expense, err := s.txs.Sum(ctx, partnerID, day, day)
	if err != nil {
		return types.Zero(), fmt.Errorf("sum daily transactions: %w", err)
	}
	return income.Sub(expense), nil
}

// PartnerRunningBalance is the cumulative income − expense of all entries
// dated on or before asOf.
func (s *Service) PartnerRunningBalance(ctx context.Context, partnerID id.ID, asOf time.Time) (types.Money, error) {
	income, expense, err := s.txs.Sum(ctx, partnerID, time.Time{}, Day(asOf))
	if err != nil {
		return types.Zero(), fmt.Errorf("sum daily transactions: %w", err)
	}
	return income.Sub(expense), nil
}

// PartnerLedger lists the entries between from and to (inclusive) with the
// running balance after each one.
func (s *Service) PartnerLedger(ctx context.Context, partnerID id.ID, from, to time.Time) (*Ledger, error) {
	from, to = Day(from), Day(to)
	if to.Before(from) {
		return nil, apperror.NewValidation("range end is before its start").WithDetail("field", "to")
	}

	opening, err := s.PartnerRunningBalance(ctx, partnerID, from.AddDate(0, 0, -1))
	if err != nil {
		return nil, err
	}

	items, err := s.txs.List(ctx, partnerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list daily transactions: %w", err)
	}

	ledger := &Ledger{
		PartnerID: partnerID,
		From:      from,
		To:        to,
		Opening:   opening,
		Entries:   make([]LedgerEntry, 0, len(items)),
	}
	balance := opening
	for _, item := range items {
		balance = balance.Add(item.SignedAmount())
		ledger.Entries = append(ledger.Entries, LedgerEntry{Transaction: item, Balance: balance})
	}
	ledger.Closing = balance
	return ledger, nil
}

// --- helpers ---

func (s *Service) checkAllocation(scope string, scopeID id.ID, current, requested types.Percent) error {
	limit := types.Hundred().Add(s.tolerance)
	if current.Add(requested).GreaterThan(limit) {
		return apperror.NewPercentageOverflow(scope, scopeID.String(), current, requested)
	}
	return nil
}

// sumShares adds the percentages, skipping the share with id skip.
func sumShares(shares []*UnitPartner, skip id.ID) types.Percent {
	total := types.Zero()
	for _, sh := range shares {
		if sh.ID == skip {
			continue
		}
		total = total.Add(sh.Percentage)
	}
	return total
}
