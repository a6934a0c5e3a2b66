package memory

import (
	"context"
	"sort"
	"time"

	"estateledger/internal/core/apperror"
	"estateledger/internal/core/id"
	"estateledger/internal/domain/schedule"
)

// InstallmentRepo implements schedule.Repository.
type InstallmentRepo struct{ s *Store }

// Installments returns the installment repository.
func (s *Store) Installments() *InstallmentRepo { return &InstallmentRepo{s} }

func (r *InstallmentRepo) CreateBatch(ctx context.Context, items []*schedule.Installment) error {
	return r.s.view(ctx, func(t *tables) error {
		for _, inst := range items {
			if err := insertRow(t.installments, "installment", inst.ID, *inst); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *InstallmentRepo) GetByID(ctx context.Context, installmentID id.ID) (out *schedule.Installment, err error) {
	err = r.s.view(ctx, func(t *tables) error {
		out, err = getRow(t.installments, "installment", installmentID)
		return err
	})
	return out, err
}

func (r *InstallmentRepo) GetForUpdate(ctx context.Context, installmentID id.ID) (*schedule.Installment, error) {
	return r.GetByID(ctx, installmentID)
}

func (r *InstallmentRepo) Update(ctx context.Context, inst *schedule.Installment) error {
	return r.s.view(ctx, func(t *tables) error {
		stored, ok := t.installments[inst.ID]
		if !ok {
			return apperror.NewNotFound("installment", inst.ID.String())
		}
		if err := checkVersion("installment", inst.ID, stored.Version, inst.Version); err != nil {
			return err
		}
		inst.Version++
		t.installments[inst.ID] = *inst
		return nil
	})
}

func (r *InstallmentRepo) ListByContract(ctx context.Context, contractID id.ID) ([]*schedule.Installment, error) {
	var out []*schedule.Installment
	err := r.s.view(ctx, func(t *tables) error {
		for _, row := range t.installments {
			if row.IsDeleted() || row.ContractID != contractID {
				continue
			}
			row := row
			out = append(out, &row)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].Sequence < out[j].Sequence
	})
	return out, err
}

func (r *InstallmentRepo) CountLiveByContract(ctx context.Context, contractID id.ID) (int, error) {
	items, err := r.ListByContract(ctx, contractID)
	return len(items), err
}

// ListAllByUnit returns every installment of a unit, deleted rows included.
func (r *InstallmentRepo) ListAllByUnit(ctx context.Context, unitID id.ID) ([]*schedule.Installment, error) {
	var out []*schedule.Installment
	err := r.s.view(ctx, func(t *tables) error {
		for _, row := range t.installments {
			if row.UnitID != unitID {
				continue
			}
			row := row
			out = append(out, &row)
		}
		return nil
	})
	return out, err
}

func (r *InstallmentRepo) SoftDeleteByUnit(ctx context.Context, unitID id.ID, at time.Time) (int64, error) {
	var n int64
	err := r.s.view(ctx, func(t *tables) error {
		for key, row := range t.installments {
			if row.IsDeleted() || row.UnitID != unitID {
				continue
			}
			row.DeletionMark = true
			row.DeletedAt = &at
			row.UpdatedAt = at
			row.Version++
			t.installments[key] = row
			n++
		}
		return nil
	})
	return n, err
}

func (r *InstallmentRepo) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	var n int64
	err := r.s.view(ctx, func(t *tables) error {
		for key, row := range t.installments {
			if row.IsDeleted() || row.Status != schedule.StatusPending || !row.DueDate.Before(asOf) {
				continue
			}
			row.Status = schedule.StatusOverdue
			row.Version++
			t.installments[key] = row
			n++
		}
		return nil
	})
	return n, err
}

var _ schedule.Repository = (*InstallmentRepo)(nil)
