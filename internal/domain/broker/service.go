package broker

import (
	"context"
	"fmt"
	"time"

	"estateledger/internal/core/apperror"
	"estateledger/internal/core/entity"
	"estateledger/internal/core/id"
	"estateledger/internal/core/numerator"
	"estateledger/internal/core/tx"
	"estateledger/internal/core/types"
	"estateledger/internal/domain/contract"
	"estateledger/internal/domain/safe"
	"estateledger/internal/domain/schedule"
	"estateledger/pkg/logger"
)

// Service schedules and pays broker commissions.
type Service struct {
	repo      Repository
	contracts contract.Repository
	vouchers  schedule.VoucherWriter
	txManager tx.Manager
	locker    tx.Locker
	numerator numerator.Generator
	opts      schedule.Options
}

// NewService creates a broker service. Dues are split and dated with the
// same options as installments.
func NewService(
	repo Repository,
	contracts contract.Repository,
	vouchers schedule.VoucherWriter,
	txManager tx.Manager,
	locker tx.Locker,
	numerator numerator.Generator,
	opts schedule.Options,
) *Service {
	return &Service{
		repo:      repo,
		contracts: contracts,
		vouchers:  vouchers,
		txManager: txManager,
		locker:    locker,
		numerator: numerator,
		opts:      opts,
	}
}

// CreateBroker stores a new broker.
func (s *Service) CreateBroker(ctx context.Context, b *Broker) error {
	if err := b.Validate(ctx); err != nil {
		return err
	}
	if err := s.repo.CreateBroker(ctx, b); err != nil {
		return fmt.Errorf("create broker: %w", err)
	}
	return nil
}

// ScheduleDues splits the contract's broker commission into count dues.
// The first is due on firstDue, the rest one cadence period apart.
func (s *Service) ScheduleDues(ctx context.Context, contractID id.ID, count int, firstDue time.Time, cadence contract.Cadence) ([]*Due, error) {
	if count <= 0 {
		return nil, apperror.NewValidation("due count must be positive").WithDetail("field", "count")
	}
	if !cadence.Valid() {
		return nil, apperror.NewValidation("unknown cadence").WithDetail("field", "cadence")
	}

	var dues []*Due
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.locker.Lock(ctx, tx.LockContract, contractID); err != nil {
			return fmt.Errorf("lock contract: %w", err)
		}

		c, err := s.contracts.GetByID(ctx, contractID)
		if err != nil {
			return err
		}
		if c.IsDeleted() {
			return apperror.NewNotFound("contract", contractID)
		}
		if c.BrokerID == nil {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule, "contract has no broker").
				WithDetail("contract_id", contractID.String())
		}

		previous := c.BrokerAmount
		c.Recalculate()
		if !previous.Equal(c.BrokerAmount) {
			c.Touch()
			if err := s.contracts.Update(ctx, c); err != nil {
				return fmt.Errorf("update contract: %w", err)
			}
		}
		if !c.BrokerAmount.IsPositive() {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule, "contract has no broker commission").
				WithDetail("contract_id", contractID.String())
		}

		existing, err := s.repo.ListDuesByContract(ctx, contractID)
		if err != nil {
			return fmt.Errorf("list dues: %w", err)
		}
		if len(existing) > 0 {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule, "broker dues already scheduled").
				WithDetail("contract_id", contractID.String()).
				WithDetail("dues", len(existing))
		}

		for i, amount := range schedule.Split(c.BrokerAmount, count, s.opts.Remainder) {
			due := schedule.DueDate(firstDue, cadence, i, s.opts.DatePolicy)
			number, err := s.numerator.Next(ctx, numerator.PrefixBrokerDue, due)
			if err != nil {
				return fmt.Errorf("generate number: %w", err)
			}
			dues = append(dues, &Due{
				BaseEntity: entity.NewBaseEntity(),
				Number:     number,
				BrokerID:   *c.BrokerID,
				ContractID: c.ID,
				Sequence:   i + 1,
				Amount:     amount,
				DueDate:    due,
				Status:     DuePending,
			})
		}

		if err := s.repo.CreateDues(ctx, dues); err != nil {
			return fmt.Errorf("insert dues: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "broker dues scheduled", "contract_id", contractID, "dues", len(dues))
	return dues, nil
}

// PayDue pays a pending due from safeID. The payment voucher, the balance
// change and the due status commit together; an uncovered payment fails
// with InsufficientBalance.
func (s *Service) PayDue(ctx context.Context, dueID, safeID id.ID, date time.Time) (*safe.Voucher, error) {
	var voucher *safe.Voucher

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		due, err := s.repo.GetDueForUpdate(ctx, dueID)
		if err != nil {
			return err
		}
		if due.IsDeleted() {
			return apperror.NewNotFound("broker_due", dueID)
		}
		if due.Status == DuePaid {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule, "broker due is already paid").
				WithDetail("due_id", dueID.String())
		}

		b, err := s.repo.GetBroker(ctx, due.BrokerID)
		if err != nil {
			return err
		}

		voucher = safe.NewVoucher(safe.VoucherPayment, safeID, due.Amount, date)
		voucher.ContractID = id.Ptr(due.ContractID)
		voucher.BrokerDueID = id.Ptr(due.ID)
		voucher.Party = b.Name
		voucher.Description = fmt.Sprintf("Broker commission #%d", due.Sequence)

		if err := s.vouchers.CreateVoucher(ctx, voucher); err != nil {
			return err
		}

		due.MarkPaid(voucher.ID, date)
		if err := s.repo.UpdateDue(ctx, due); err != nil {
			return fmt.Errorf("update due: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "broker due paid", "due_id", dueID, "voucher", voucher.Number)
	return voucher, nil
}

// Outstanding is the sum of a broker's unpaid dues.
func (s *Service) Outstanding(ctx context.Context, brokerID id.ID) (types.Money, error) {
	total, err := s.repo.Outstanding(ctx, brokerID)
	if err != nil {
		return types.Zero(), fmt.Errorf("outstanding dues: %w", err)
	}
	return total, nil
}
