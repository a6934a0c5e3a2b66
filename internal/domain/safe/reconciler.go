package safe

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"estateledger/internal/core/apperror"
	"estateledger/internal/core/id"
	"estateledger/internal/core/numerator"
	"estateledger/internal/core/tx"
	"estateledger/internal/core/types"
	"estateledger/internal/domain/events"
	"estateledger/pkg/logger"
)

var tracer = otel.Tracer("estateledger/safe")

// Reconciler is the only writer of Safe.Balance.
//
// Every balance change locks the affected safe rows, reads the current
// balance, checks coverage and writes the new balance inside one
// transaction. Record-level operations (CreateVoucher, DeleteTransfer, ...)
// join the same transaction so the row write and the balance change commit
// together.
type Reconciler struct {
	safes     SafeRepository
	vouchers  VoucherRepository
	transfers TransferRepository
	txManager tx.Manager
	locker    tx.Locker
	numerator numerator.Generator
	publisher events.Publisher
}

// NewReconciler creates a reconciler.
func NewReconciler(
	safes SafeRepository,
	vouchers VoucherRepository,
	transfers TransferRepository,
	txManager tx.Manager,
	locker tx.Locker,
	numerator numerator.Generator,
	publisher events.Publisher,
) *Reconciler {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Reconciler{
		safes:     safes,
		vouchers:  vouchers,
		transfers: transfers,
		txManager: txManager,
		locker:    locker,
		numerator: numerator,
		publisher: publisher,
	}
}

// --- Balance effects ---

// ApplyVoucher adds the voucher's effect to its safe.
// A payment the safe cannot cover fails with InsufficientBalance before
// anything is written.
func (r *Reconciler) ApplyVoucher(ctx context.Context, v *Voucher) (err error) {
	ctx, span := startSpan(ctx, "safe.ApplyVoucher", v.SafeID)
	defer func() { endSpan(span, err) }()

	if err := checkVoucherType(v); err != nil {
		return err
	}
	if !v.Amount.IsPositive() {
		return apperror.NewValidation("amount must be positive").WithDetail("field", "amount")
	}

	return r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		s, err := r.lockSafe(ctx, v.SafeID)
		if err != nil {
			return err
		}

		if v.Type == VoucherPayment && s.Balance.LessThan(v.Amount) {
			return apperror.NewInsufficientBalance(s.ID.String(), v.Amount, s.Balance).
				WithDetail("voucher_id", v.ID.String())
		}

		balance := s.Balance.Add(v.SignedAmount())
		if err := r.safes.SetBalance(ctx, s.ID, balance); err != nil {
			return fmt.Errorf("set balance: %w", err)
		}

		return r.publisher.Publish(ctx, events.New(events.AggregateVoucher, v.ID, events.VoucherApplied,
			voucherPayload(v, balance)))
	})
}

// ReverseVoucher removes the voucher's effect from its safe.
// Reversals are never blocked, so a safe may become negative.
func (r *Reconciler) ReverseVoucher(ctx context.Context, v *Voucher) (err error) {
	ctx, span := startSpan(ctx, "safe.ReverseVoucher", v.SafeID)
	defer func() { endSpan(span, err) }()

	if err := checkVoucherType(v); err != nil {
		return err
	}

	return r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		s, err := r.lockSafe(ctx, v.SafeID)
		if err != nil {
			return err
		}

		balance := s.Balance.Sub(v.SignedAmount())
		if err := r.safes.SetBalance(ctx, s.ID, balance); err != nil {
			return fmt.Errorf("set balance: %w", err)
		}

		return r.publisher.Publish(ctx, events.New(events.AggregateVoucher, v.ID, events.VoucherReversed,
			voucherPayload(v, balance)))
	})
}

func checkVoucherType(v *Voucher) error {
	if !v.Type.Valid() {
		return apperror.NewValidation("voucher type must be receipt or payment").
			WithDetail("field", "type").
			WithDetail("value", string(v.Type))
	}
	return nil
}

// ApplyTransfer debits the source safe and credits the destination.
func (r *Reconciler) ApplyTransfer(ctx context.Context, t *Transfer) (err error) {
	ctx, span := startSpan(ctx, "safe.ApplyTransfer", t.FromSafeID)
	defer func() { endSpan(span, err) }()

	if t.FromSafeID == t.ToSafeID {
		return apperror.NewValidation("source and destination safe must differ").
			WithDetail("field", "toSafeId")
	}
	if !t.Amount.IsPositive() {
		return apperror.NewValidation("amount must be positive").WithDetail("field", "amount")
	}

	return r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		from, to, err := r.lockPair(ctx, t.FromSafeID, t.ToSafeID)
		if err != nil {
			return err
		}

		if from.Balance.LessThan(t.Amount) {
			return apperror.NewInsufficientBalance(from.ID.String(), t.Amount, from.Balance).
				WithDetail("transfer_id", t.ID.String())
		}

		return r.moveBetween(ctx, t, from, to, t.Amount, events.TransferApplied)
	})
}

// ReverseTransfer restores both safes to their state before the transfer.
func (r *Reconciler) ReverseTransfer(ctx context.Context, t *Transfer) (err error) {
	ctx, span := startSpan(ctx, "safe.ReverseTransfer", t.FromSafeID)
	defer func() { endSpan(span, err) }()

	return r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		from, to, err := r.lockPair(ctx, t.FromSafeID, t.ToSafeID)
		if err != nil {
			return err
		}
		return r.moveBetween(ctx, t, from, to, t.Amount.Neg(), events.TransferReversed)
	})
}

func (r *Reconciler) moveBetween(ctx context.Context, t *Transfer, from, to *Safe, amount types.Money, eventType string) error {
	fromBalance := from.Balance.Sub(amount)
	toBalance := to.Balance.Add(amount)

	if err := r.safes.SetBalance(ctx, from.ID, fromBalance); err != nil {
		return fmt.Errorf("set source balance: %w", err)
	}
	if err := r.safes.SetBalance(ctx, to.ID, toBalance); err != nil {
		return fmt.Errorf("set destination balance: %w", err)
	}

	return r.publisher.Publish(ctx, events.New(events.AggregateTransfer, t.ID, eventType, events.TransferPayload{
		TransferID:  t.ID,
		Number:      t.Number,
		FromSafeID:  from.ID,
		ToSafeID:    to.ID,
		Amount:      t.Amount,
		FromBalance: fromBalance,
		ToBalance:   toBalance,
	}))
}

// --- Queries ---

// CalculateBalance recomputes a safe's balance from its movements,
// independent of the cached value.
func (r *Reconciler) CalculateBalance(ctx context.Context, safeID id.ID) (types.Money, error) {
	totals, err := r.safes.Totals(ctx, safeID)
	if err != nil {
		return types.Zero(), fmt.Errorf("safe totals: %w", err)
	}
	return totals.Balance(), nil
}

// CanTransfer reports whether the safe's balance covers amount.
func (r *Reconciler) CanTransfer(ctx context.Context, safeID id.ID, amount types.Money) (bool, error) {
	s, err := r.safes.GetByID(ctx, safeID)
	if err != nil {
		return false, err
	}
	return s.Balance.GreaterThanOrEqual(amount), nil
}

// --- Record operations ---

// CreateVoucher stores a new voucher and applies it.
func (r *Reconciler) CreateVoucher(ctx context.Context, v *Voucher) error {
	if err := v.Validate(ctx); err != nil {
		return err
	}

	err := r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if v.Number == "" {
			number, err := r.numerator.Next(ctx, v.Type.NumberPrefix(), v.Date)
			if err != nil {
				return fmt.Errorf("generate number: %w", err)
			}
			v.Number = number
		}

		if err := r.ApplyVoucher(ctx, v); err != nil {
			return err
		}
		if err := r.vouchers.Create(ctx, v); err != nil {
			return fmt.Errorf("create voucher: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "voucher created", "id", v.ID, "number", v.Number, "type", v.Type, "amount", v.Amount.String())
	return nil
}

// UpdateVoucher replaces a voucher: the stored version's effect is
// reversed and the new one applied. v.Version must match the stored row.
func (r *Reconciler) UpdateVoucher(ctx context.Context, v *Voucher) error {
	if err := v.Validate(ctx); err != nil {
		return err
	}

	return r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		old, err := r.vouchers.GetForUpdate(ctx, v.ID)
		if err != nil {
			return err
		}
		if old.IsDeleted() {
			return apperror.NewNotFound("voucher", v.ID)
		}
		if old.Version != v.Version {
			return apperror.NewConcurrentModification("voucher", v.ID)
		}

		// Both safes up front, in id order, so a move between safes
		// cannot deadlock with a transfer.
		if err := r.locker.Lock(ctx, tx.LockSafe, tx.SortedUnique([]id.ID{old.SafeID, v.SafeID})...); err != nil {
			return fmt.Errorf("lock safes: %w", err)
		}

		v.Number = old.Number
		v.CreatedAt = old.CreatedAt

		if err := r.ReverseVoucher(ctx, old); err != nil {
			return err
		}
		if err := r.ApplyVoucher(ctx, v); err != nil {
			return err
		}

		v.Touch()
		if err := r.vouchers.Update(ctx, v); err != nil {
			return fmt.Errorf("update voucher: %w", err)
		}

		logger.Info(ctx, "voucher updated", "id", v.ID, "number", v.Number,
			"old_amount", old.Amount.String(), "new_amount", v.Amount.String())
		return nil
	})
}

// DeleteVoucher marks a voucher deleted and reverses its effect.
func (r *Reconciler) DeleteVoucher(ctx context.Context, voucherID id.ID) error {
	return r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		v, err := r.vouchers.GetForUpdate(ctx, voucherID)
		if err != nil {
			return err
		}
		if v.IsDeleted() {
			return apperror.NewNotFound("voucher", voucherID)
		}

		if err := r.vouchers.Delete(ctx, voucherID); err != nil {
			return fmt.Errorf("delete voucher: %w", err)
		}
		if err := r.ReverseVoucher(ctx, v); err != nil {
			return err
		}

		logger.Info(ctx, "voucher deleted", "id", v.ID, "number", v.Number)
		return nil
	})
}

// CreateTransfer stores a new transfer and applies it.
func (r *Reconciler) CreateTransfer(ctx context.Context, t *Transfer) error {
	if err := t.Validate(ctx); err != nil {
		return err
	}

	err := r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if t.Number == "" {
			number, err := r.numerator.Next(ctx, numerator.PrefixTransfer, t.Date)
			if err != nil {
				return fmt.Errorf("generate number: %w", err)
			}
			t.Number = number
		}

		if err := r.ApplyTransfer(ctx, t); err != nil {
			return err
		}
		if err := r.transfers.Create(ctx, t); err != nil {
			return fmt.Errorf("create transfer: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "transfer created", "id", t.ID, "number", t.Number, "amount", t.Amount.String())
	return nil
}

// DeleteTransfer marks a transfer deleted and reverses both legs.
func (r *Reconciler) DeleteTransfer(ctx context.Context, transferID id.ID) error {
	return r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		t, err := r.transfers.GetForUpdate(ctx, transferID)
		if err != nil {
			return err
		}
		if t.IsDeleted() {
			return apperror.NewNotFound("transfer", transferID)
		}

		if err := r.transfers.Delete(ctx, transferID); err != nil {
			return fmt.Errorf("delete transfer: %w", err)
		}
		if err := r.ReverseTransfer(ctx, t); err != nil {
			return err
		}

		logger.Info(ctx, "transfer deleted", "id", t.ID, "number", t.Number)
		return nil
	})
}

// --- Audit ---

// Mismatch is a safe whose cached balance disagrees with its movements.
type Mismatch struct {
	SafeID   id.ID       `json:"safeId"`
	SafeName string      `json:"safeName"`
	Stored   types.Money `json:"stored"`
	Computed types.Money `json:"computed"`
}

// AuditReport is the outcome of one audit pass.
type AuditReport struct {
	Checked    int        `json:"checked"`
	Mismatches []Mismatch `json:"mismatches"`
	StartedAt  time.Time  `json:"startedAt"`
}

// Audit compares every safe's cached balance with the recomputed one.
// Mismatches are logged, published and returned as a DataIntegrityMismatch
// error alongside the report. Nothing is corrected.
func (r *Reconciler) Audit(ctx context.Context) (*AuditReport, error) {
	ctx, span := tracer.Start(ctx, "safe.Audit")
	defer span.End()

	report := &AuditReport{StartedAt: time.Now().UTC()}

	safes, err := r.safes.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list safes: %w", err)
	}

	for _, listed := range safes {
		err := r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			// Locked so the balance and the totals come from the same state.
			s, err := r.lockSafe(ctx, listed.ID)
			if err != nil {
				return err
			}
			computed, err := r.CalculateBalance(ctx, s.ID)
			if err != nil {
				return err
			}
			report.Checked++

			if s.Balance.Equal(computed) {
				return nil
			}

			m := Mismatch{SafeID: s.ID, SafeName: s.Name, Stored: s.Balance, Computed: computed}
			report.Mismatches = append(report.Mismatches, m)

			logger.Error(ctx, "safe balance mismatch",
				"safe_id", s.ID, "safe", s.Name,
				"stored", s.Balance.String(), "computed", computed.String())

			return r.publisher.Publish(ctx, events.New(events.AggregateSafe, s.ID, events.SafeBalanceMismatch,
				events.MismatchPayload{
					SafeID:     s.ID,
					SafeName:   s.Name,
					Stored:     s.Balance,
					Computed:   computed,
					DetectedAt: time.Now().UTC(),
				}))
		})
		if err != nil {
			span.RecordError(err)
			return report, fmt.Errorf("audit safe %s: %w", listed.ID, err)
		}
	}

	logger.Info(ctx, "safe audit finished", "checked", report.Checked, "mismatches", len(report.Mismatches))

	if len(report.Mismatches) == 0 {
		return report, nil
	}

	first := report.Mismatches[0]
	span.SetStatus(codes.Error, "balance mismatch")
	return report, apperror.NewDataIntegrityMismatch("safe", first.SafeID.String(), first.Stored, first.Computed).
		WithDetail("mismatches", len(report.Mismatches))
}

// --- helpers ---

// lockSafe locks one safe row and returns its current state.
func (r *Reconciler) lockSafe(ctx context.Context, safeID id.ID) (*Safe, error) {
	if err := r.locker.Lock(ctx, tx.LockSafe, safeID); err != nil {
		return nil, fmt.Errorf("lock safe: %w", err)
	}
	s, err := r.safes.GetByID(ctx, safeID)
	if err != nil {
		return nil, err
	}
	if s.IsDeleted() {
		return nil, apperror.NewNotFound("safe", safeID)
	}
	return s, nil
}

// lockPair locks both transfer safes in id order.
func (r *Reconciler) lockPair(ctx context.Context, fromID, toID id.ID) (*Safe, *Safe, error) {
	if err := r.locker.Lock(ctx, tx.LockSafe, tx.SortedUnique([]id.ID{fromID, toID})...); err != nil {
		return nil, nil, fmt.Errorf("lock safes: %w", err)
	}

	from, err := r.safes.GetByID(ctx, fromID)
	if err != nil {
		return nil, nil, err
	}
	to, err := r.safes.GetByID(ctx, toID)
	if err != nil {
		return nil, nil, err
	}
	if from.IsDeleted() {
		return nil, nil, apperror.NewNotFound("safe", fromID)
	}
	if to.IsDeleted() {
		return nil, nil, apperror.NewNotFound("safe", toID)
	}
	return from, to, nil
}

func voucherPayload(v *Voucher, balance types.Money) events.VoucherPayload {
	return events.VoucherPayload{
		VoucherID: v.ID,
		Number:    v.Number,
		SafeID:    v.SafeID,
		Type:      string(v.Type),
		Amount:    v.Amount,
		Balance:   balance,
	}
}

func startSpan(ctx context.Context, name string, safeID id.ID) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attribute.String("safe.id", safeID.String())))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
