package memory

import (
	"context"
	"sort"
	"time"

	"estateledger/internal/core/apperror"
	"estateledger/internal/core/id"
	"estateledger/internal/core/types"
	"estateledger/internal/domain/partner"
)

// PartnerRepo implements partner.Repository.
type PartnerRepo struct{ s *Store }

// Partners returns the partner repository.
func (s *Store) Partners() *PartnerRepo { return &PartnerRepo{s} }

func (r *PartnerRepo) CreatePartner(ctx context.Context, p *partner.Partner) error {
	return r.s.view(ctx, func(t *tables) error {
		return insertRow(t.partners, "partner", p.ID, *p)
	})
}

func (r *PartnerRepo) GetPartner(ctx context.Context, partnerID id.ID) (out *partner.Partner, err error) {
	err = r.s.view(ctx, func(t *tables) error {
		out, err = getRow(t.partners, "partner", partnerID)
		if err == nil && out.IsDeleted() {
			return apperror.NewNotFound("partner", partnerID.String())
		}
		return err
	})
	return out, err
}

func (r *PartnerRepo) CreateShare(ctx context.Context, sh *partner.UnitPartner) error {
	return r.s.view(ctx, func(t *tables) error {
		for _, row := range t.shares {
			if !row.IsDeleted() && row.UnitID == sh.UnitID && row.PartnerID == sh.PartnerID {
				return apperror.NewDuplicate("unit_partner", "partner_id", sh.PartnerID.String())
			}
		}
		return insertRow(t.shares, "unit_partner", sh.ID, *sh)
	})
}

func (r *PartnerRepo) GetShare(ctx context.Context, shareID id.ID) (out *partner.UnitPartner, err error) {
	err = r.s.view(ctx, func(t *tables) error {
		out, err = getRow(t.shares, "unit_partner", shareID)
		return err
	})
	return out, err
}

func (r *PartnerRepo) UpdateShare(ctx context.Context, sh *partner.UnitPartner) error {
	return r.s.view(ctx, func(t *tables) error {
		stored, ok := t.shares[sh.ID]
		if !ok {
			return apperror.NewNotFound("unit_partner", sh.ID.String())
		}
		if err := checkVersion("unit_partner", sh.ID, stored.Version, sh.Version); err != nil {
			return err
		}
		sh.Version++
		t.shares[sh.ID] = *sh
		return nil
	})
}

func (r *PartnerRepo) DeleteShare(ctx context.Context, shareID id.ID) error {
	return r.s.view(ctx, func(t *tables) error {
		row, ok := t.shares[shareID]
		if !ok {
			return apperror.NewNotFound("unit_partner", shareID.String())
		}
		row.MarkDeleted()
		row.Version++
		t.shares[shareID] = row
		return nil
	})
}

func (r *PartnerRepo) ListSharesByUnit(ctx context.Context, unitID id.ID) ([]*partner.UnitPartner, error) {
	var out []*partner.UnitPartner
	err := r.s.view(ctx, func(t *tables) error {
		for _, row := range t.shares {
			if row.IsDeleted() || row.UnitID != unitID {
				continue
			}
			row := row
			out = append(out, &row)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

func (r *PartnerRepo) FindShare(ctx context.Context, unitID, partnerID id.ID) (out *partner.UnitPartner, err error) {
	err = r.s.view(ctx, func(t *tables) error {
		for _, row := range t.shares {
			if !row.IsDeleted() && row.UnitID == unitID && row.PartnerID == partnerID {
				row := row
				out = &row
				return nil
			}
		}
		return apperror.NewNotFound("unit_partner", partnerID.String())
	})
	return out, err
}

func (r *PartnerRepo) CreateGroup(ctx context.Context, g *partner.PartnerGroup) error {
	return r.s.view(ctx, func(t *tables) error {
		return insertRow(t.groups, "partner_group", g.ID, *g)
	})
}

func (r *PartnerRepo) GetGroup(ctx context.Context, groupID id.ID) (out *partner.PartnerGroup, err error) {
	err = r.s.view(ctx, func(t *tables) error {
		out, err = getRow(t.groups, "partner_group", groupID)
		return err
	})
	return out, err
}

func (r *PartnerRepo) AddMember(ctx context.Context, m *partner.GroupMember) error {
	return r.s.view(ctx, func(t *tables) error {
		for _, row := range t.members {
			if !row.IsDeleted() && row.GroupID == m.GroupID && row.PartnerID == m.PartnerID {
				return apperror.NewDuplicate("group_member", "partner_id", m.PartnerID.String())
			}
		}
		return insertRow(t.members, "group_member", m.ID, *m)
	})
}

func (r *PartnerRepo) ListMembers(ctx context.Context, groupID id.ID) ([]*partner.GroupMember, error) {
	var out []*partner.GroupMember
	err := r.s.view(ctx, func(t *tables) error {
		for _, row := range t.members {
			if row.IsDeleted() || row.GroupID != groupID {
				continue
			}
			row := row
			out = append(out, &row)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

// TransactionRepo implements partner.TransactionRepository.
type TransactionRepo struct{ s *Store }

// DailyTransactions returns the daily transaction repository.
func (s *Store) DailyTransactions() *TransactionRepo { return &TransactionRepo{s} }

func (r *TransactionRepo) Create(ctx context.Context, d *partner.DailyTransaction) error {
	return r.s.view(ctx, func(t *tables) error {
		return insertRow(t.dailyTxs, "daily_transaction", d.ID, *d)
	})
}

func (r *TransactionRepo) List(ctx context.Context, partnerID id.ID, from, to time.Time) ([]*partner.DailyTransaction, error) {
	var out []*partner.DailyTransaction
	err := r.s.view(ctx, func(t *tables) error {
		for _, row := range t.dailyTxs {
			if row.IsDeleted() || row.PartnerID != partnerID {
				continue
			}
			day := partner.Day(row.TransactionDate)
			if (!from.IsZero() && day.Before(partner.Day(from))) || day.After(partner.Day(to)) {
				continue
			}
			row := row
			out = append(out, &row)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TransactionDate.Equal(out[j].TransactionDate) {
			return out[i].TransactionDate.Before(out[j].TransactionDate)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return id.Less(out[i].ID, out[j].ID)
	})
	return out, err
}

func (r *TransactionRepo) Sum(ctx context.Context, partnerID id.ID, from, to time.Time) (income, expense types.Money, err error) {
	income, expense = types.Zero(), types.Zero()
	items, err := r.List(ctx, partnerID, from, to)
	if err != nil {
		return income, expense, err
	}
	for _, d := range items {
		if d.Type == partner.TransactionExpense {
			expense = expense.Add(d.Amount)
		} else {
			income = income.Add(d.Amount)
		}
	}
	return income, expense, nil
}

var (
	_ partner.Repository            = (*PartnerRepo)(nil)
	_ partner.TransactionRepository = (*TransactionRepo)(nil)
)
