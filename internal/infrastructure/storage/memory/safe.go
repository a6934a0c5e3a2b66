package memory

import (
	"context"
	"sort"
	"time"

	"estateledger/internal/core/apperror"
	"estateledger/internal/core/id"
	"estateledger/internal/core/types"
	"estateledger/internal/domain/safe"
)

// SafeRepo implements safe.SafeRepository.
type SafeRepo struct{ s *Store }

// Safes returns the safe repository.
func (s *Store) Safes() *SafeRepo { return &SafeRepo{s} }

func (r *SafeRepo) Create(ctx context.Context, sf *safe.Safe) error {
	return r.s.view(ctx, func(t *tables) error {
		for _, existing := range t.safes {
			if !existing.IsDeleted() && existing.Name == sf.Name {
				return apperror.NewDuplicate("safe", "name", sf.Name)
			}
		}
		return insertRow(t.safes, "safe", sf.ID, *sf)
	})
}

func (r *SafeRepo) GetByID(ctx context.Context, safeID id.ID) (out *safe.Safe, err error) {
	err = r.s.view(ctx, func(t *tables) error {
		out, err = getRow(t.safes, "safe", safeID)
		return err
	})
	return out, err
}

func (r *SafeRepo) List(ctx context.Context) ([]*safe.Safe, error) {
	var out []*safe.Safe
	err := r.s.view(ctx, func(t *tables) error {
		for _, row := range t.safes {
			if row.IsDeleted() {
				continue
			}
			row := row
			out = append(out, &row)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}

func (r *SafeRepo) SetBalance(ctx context.Context, safeID id.ID, balance types.Money) error {
	return r.s.view(ctx, func(t *tables) error {
		row, ok := t.safes[safeID]
		if !ok {
			return apperror.NewNotFound("safe", safeID.String())
		}
		row.Balance = balance
		row.UpdatedAt = time.Now().UTC()
		t.safes[safeID] = row
		return nil
	})
}

func (r *SafeRepo) Totals(ctx context.Context, safeID id.ID) (safe.Totals, error) {
	totals := safe.Totals{
		Receipts:     types.Zero(),
		Payments:     types.Zero(),
		TransfersIn:  types.Zero(),
		TransfersOut: types.Zero(),
	}
	err := r.s.view(ctx, func(t *tables) error {
		for _, v := range t.vouchers {
			if v.IsDeleted() || v.SafeID != safeID {
				continue
			}
			if v.Type == safe.VoucherPayment {
				totals.Payments = totals.Payments.Add(v.Amount)
			} else {
				totals.Receipts = totals.Receipts.Add(v.Amount)
			}
		}
		for _, tr := range t.transfers {
			if tr.IsDeleted() {
				continue
			}
			if tr.ToSafeID == safeID {
				totals.TransfersIn = totals.TransfersIn.Add(tr.Amount)
			}
			if tr.FromSafeID == safeID {
				totals.TransfersOut = totals.TransfersOut.Add(tr.Amount)
			}
		}
		return nil
	})
	return totals, err
}

// VoucherRepo implements safe.VoucherRepository.
type VoucherRepo struct{ s *Store }

// Vouchers returns the voucher repository.
func (s *Store) Vouchers() *VoucherRepo { return &VoucherRepo{s} }

func (r *VoucherRepo) Create(ctx context.Context, v *safe.Voucher) error {
	return r.s.view(ctx, func(t *tables) error {
		return insertRow(t.vouchers, "voucher", v.ID, *v)
	})
}

func (r *VoucherRepo) GetByID(ctx context.Context, voucherID id.ID) (out *safe.Voucher, err error) {
	err = r.s.view(ctx, func(t *tables) error {
		out, err = getRow(t.vouchers, "voucher", voucherID)
		return err
	})
	return out, err
}

func (r *VoucherRepo) GetForUpdate(ctx context.Context, voucherID id.ID) (*safe.Voucher, error) {
	return r.GetByID(ctx, voucherID)
}

func (r *VoucherRepo) Update(ctx context.Context, v *safe.Voucher) error {
	return r.s.view(ctx, func(t *tables) error {
		stored, ok := t.vouchers[v.ID]
		if !ok {
			return apperror.NewNotFound("voucher", v.ID.String())
		}
		if err := checkVersion("voucher", v.ID, stored.Version, v.Version); err != nil {
			return err
		}
		v.Version++
		t.vouchers[v.ID] = *v
		return nil
	})
}

func (r *VoucherRepo) Delete(ctx context.Context, voucherID id.ID) error {
	return r.s.view(ctx, func(t *tables) error {
		row, ok := t.vouchers[voucherID]
		if !ok {
			return apperror.NewNotFound("voucher", voucherID.String())
		}
		row.MarkDeleted()
		row.Version++
		t.vouchers[voucherID] = row
		return nil
	})
}

// TransferRepo implements safe.TransferRepository.
type TransferRepo struct{ s *Store }

// Transfers returns the transfer repository.
func (s *Store) Transfers() *TransferRepo { return &TransferRepo{s} }

func (r *TransferRepo) Create(ctx context.Context, tr *safe.Transfer) error {
	return r.s.view(ctx, func(t *tables) error {
		return insertRow(t.transfers, "transfer", tr.ID, *tr)
	})
}

func (r *TransferRepo) GetByID(ctx context.Context, transferID id.ID) (out *safe.Transfer, err error) {
	err = r.s.view(ctx, func(t *tables) error {
		out, err = getRow(t.transfers, "transfer", transferID)
		return err
	})
	return out, err
}

func (r *TransferRepo) GetForUpdate(ctx context.Context, transferID id.ID) (*safe.Transfer, error) {
	return r.GetByID(ctx, transferID)
}

func (r *TransferRepo) Delete(ctx context.Context, transferID id.ID) error {
	return r.s.view(ctx, func(t *tables) error {
		row, ok := t.transfers[transferID]
		if !ok {
			return apperror.NewNotFound("transfer", transferID.String())
		}
		row.MarkDeleted()
		row.Version++
		t.transfers[transferID] = row
		return nil
	})
}

var (
	_ safe.SafeRepository     = (*SafeRepo)(nil)
	_ safe.VoucherRepository  = (*VoucherRepo)(nil)
	_ safe.TransferRepository = (*TransferRepo)(nil)
)
