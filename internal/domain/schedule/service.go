package schedule

import (
	"context"
	"fmt"
	"time"

	"estateledger/internal/core/apperror"
	"estateledger/internal/core/id"
	"estateledger/internal/core/tx"
	"estateledger/internal/core/types"
	"estateledger/internal/domain/contract"
	"estateledger/internal/domain/events"
	"estateledger/internal/domain/safe"
	"estateledger/pkg/logger"
)

// VoucherWriter records receipt vouchers and their balance effect.
// Implemented by safe.Reconciler.
type VoucherWriter interface {
	CreateVoucher(ctx context.Context, v *safe.Voucher) error
}

// Service provides schedule operations backed by storage.
type Service struct {
	contracts contract.Repository
	repo      Repository
	vouchers  VoucherWriter
	txManager tx.Manager
	locker    tx.Locker
	publisher events.Publisher
	opts      Options
}

// NewService creates a new schedule service.
func NewService(
	contracts contract.Repository,
	repo Repository,
	vouchers VoucherWriter,
	txManager tx.Manager,
	locker tx.Locker,
	publisher events.Publisher,
	opts Options,
) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{
		contracts: contracts,
		repo:      repo,
		vouchers:  vouchers,
		txManager: txManager,
		locker:    locker,
		publisher: publisher,
		opts:      opts,
	}
}

// Preview generates the schedule of c with the service's options
// without storing anything.
func (s *Service) Preview(c *contract.Contract) (*Schedule, error) {
	return Generate(c, s.opts)
}

// GenerateInstallments creates the first schedule of a contract.
// Fails if the contract already has live installments.
func (s *Service) GenerateInstallments(ctx context.Context, contractID id.ID) ([]*Installment, error) {
	var sched *Schedule

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		c, err := s.lockContract(ctx, contractID)
		if err != nil {
			return err
		}

		existing, err := s.repo.CountLiveByContract(ctx, contractID)
		if err != nil {
			return fmt.Errorf("count installments: %w", err)
		}
		if existing > 0 {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule, "contract already has a schedule; regenerate it instead").
				WithDetail("contract_id", contractID.String()).
				WithDetail("installments", existing)
		}

		sched, err = s.build(ctx, c)
		if err != nil {
			return err
		}

		if err := s.repo.CreateBatch(ctx, sched.Installments); err != nil {
			return fmt.Errorf("insert installments: %w", err)
		}

		return s.publisher.Publish(ctx, events.New(events.AggregateContract, c.ID, events.ScheduleGenerated,
			events.SchedulePayload{
				ContractID:   c.ID,
				UnitID:       c.UnitID,
				Installments: len(sched.Installments),
				Total:        sched.Total(),
			}))
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "schedule generated",
		"contract_id", contractID, "installments", len(sched.Installments), "total", sched.Total().String())
	return sched.Installments, nil
}

// RegenerateInstallments replaces the schedule of a contract's unit.
// All non-deleted installments of the unit are soft-deleted and a fresh
// batch is inserted, in one transaction. Old rows keep their sequence.
func (s *Service) RegenerateInstallments(ctx context.Context, contractID id.ID) ([]*Installment, error) {
	var (
		sched      *Schedule
		superseded int64
	)

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		c, err := s.lockContract(ctx, contractID)
		if err != nil {
			return err
		}
		if err := s.locker.Lock(ctx, tx.LockUnit, c.UnitID); err != nil {
			return fmt.Errorf("lock unit: %w", err)
		}

		// Generate before deleting: invalid terms must leave the old
		// schedule untouched.
		sched, err = s.build(ctx, c)
		if err != nil {
			return err
		}

		superseded, err = s.repo.SoftDeleteByUnit(ctx, c.UnitID, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("soft delete installments: %w", err)
		}

		if err := s.repo.CreateBatch(ctx, sched.Installments); err != nil {
			return fmt.Errorf("insert installments: %w", err)
		}

		return s.publisher.Publish(ctx, events.New(events.AggregateContract, c.ID, events.ScheduleRegenerated,
			events.SchedulePayload{
				ContractID:   c.ID,
				UnitID:       c.UnitID,
				Installments: len(sched.Installments),
				Total:        sched.Total(),
				Superseded:   superseded,
			}))
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "schedule regenerated",
		"contract_id", contractID, "installments", len(sched.Installments), "superseded", superseded)
	return sched.Installments, nil
}

// PayInstallment settles an open installment with a receipt voucher into
// safeID. The voucher, the balance change and the status change commit
// together.
func (s *Service) PayInstallment(ctx context.Context, installmentID, safeID id.ID, date time.Time) (*safe.Voucher, error) {
	var voucher *safe.Voucher

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		inst, err := s.repo.GetForUpdate(ctx, installmentID)
		if err != nil {
			return err
		}
		if inst.IsDeleted() {
			return apperror.NewNotFound("installment", installmentID)
		}
		if inst.Status == StatusPaid {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule, "installment is already paid").
				WithDetail("installment_id", installmentID.String())
		}

		if !inst.Amount.IsPositive() {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule, "installment has nothing to collect").
				WithDetail("installment_id", installmentID.String())
		}

		voucher = safe.NewVoucher(safe.VoucherReceipt, safeID, inst.Amount, date)
		voucher.UnitID = id.Ptr(inst.UnitID)
		voucher.ContractID = id.Ptr(inst.ContractID)
		voucher.InstallmentID = id.Ptr(inst.ID)
		voucher.Description = fmt.Sprintf("Installment #%d", inst.Sequence)

		if err := s.vouchers.CreateVoucher(ctx, voucher); err != nil {
			return err
		}

		inst.MarkPaid(voucher.ID, date)
		if err := s.repo.Update(ctx, inst); err != nil {
			return fmt.Errorf("update installment: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "installment paid", "installment_id", installmentID, "voucher", voucher.Number)
	return voucher, nil
}

// MarkOverdue flags pending installments due before asOf as overdue and
// returns how many changed.
func (s *Service) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	var n int64
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		n, err = s.repo.MarkOverdue(ctx, asOf)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("mark overdue: %w", err)
	}

	logger.Info(ctx, "overdue sweep", "as_of", asOf.Format(time.DateOnly), "marked", n)
	return n, nil
}

// Summary totals a contract's live installments by status.
func (s *Service) Summary(ctx context.Context, contractID id.ID) (*Summary, error) {
	items, err := s.repo.ListByContract(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("list installments: %w", err)
	}

	sum := &Summary{
		ContractID: contractID,
		Total:      types.Zero(),
		Paid:       types.Zero(),
		Pending:    types.Zero(),
		Overdue:    types.Zero(),
	}
	for _, inst := range items {
		sum.Count++
		sum.Total = sum.Total.Add(inst.Amount)

		switch inst.Status {
		case StatusPaid:
			sum.PaidCount++
			sum.Paid = sum.Paid.Add(inst.Amount)
			continue
		case StatusOverdue:
			sum.Overdue = sum.Overdue.Add(inst.Amount)
		default:
			sum.Pending = sum.Pending.Add(inst.Amount)
		}

		if sum.NextDue == nil || inst.DueDate.Before(*sum.NextDue) {
			due := inst.DueDate
			sum.NextDue = &due
		}
	}
	return sum, nil
}

// build generates the schedule and stores a changed broker amount.
func (s *Service) build(ctx context.Context, c *contract.Contract) (*Schedule, error) {
	previous := c.BrokerAmount

	sched, err := Generate(c, s.opts)
	if err != nil {
		return nil, err
	}

	if !previous.Equal(c.BrokerAmount) {
		c.Touch()
		if err := s.contracts.Update(ctx, c); err != nil {
			return nil, fmt.Errorf("update contract: %w", err)
		}
	}

	if sched.Unscheduled.IsPositive() {
		logger.Warn(ctx, "contract has no regular installments but an unscheduled amount",
			"contract_id", c.ID, "payment_type", c.PaymentType, "unscheduled", sched.Unscheduled.String())
	}
	return sched, nil
}

func (s *Service) lockContract(ctx context.Context, contractID id.ID) (*contract.Contract, error) {
	if err := s.locker.Lock(ctx, tx.LockContract, contractID); err != nil {
		return nil, fmt.Errorf("lock contract: %w", err)
	}
	c, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		return nil, err
	}
	if c.IsDeleted() {
		return nil, apperror.NewNotFound("contract", contractID)
	}
	return c, nil
}
