package schedule

import (
	"context"
	"time"

	"estateledger/internal/core/id"
)

// Repository persists installments.
type Repository interface {
	// CreateBatch inserts a whole schedule in one round trip.
	CreateBatch(ctx context.Context, items []*Installment) error
	GetByID(ctx context.Context, installmentID id.ID) (*Installment, error)
	// GetForUpdate locks the installment row for the rest of the transaction.
	GetForUpdate(ctx context.Context, installmentID id.ID) (*Installment, error)
	Update(ctx context.Context, inst *Installment) error

	// ListByContract returns non-deleted installments ordered by due date
	// and sequence.
	ListByContract(ctx context.Context, contractID id.ID) ([]*Installment, error)
	CountLiveByContract(ctx context.Context, contractID id.ID) (int, error)

	// SoftDeleteByUnit marks every non-deleted installment of a unit and
	// returns how many rows changed.
	SoftDeleteByUnit(ctx context.Context, unitID id.ID, at time.Time) (int64, error)

	// MarkOverdue moves pending installments due before asOf to overdue.
	MarkOverdue(ctx context.Context, asOf time.Time) (int64, error)
}
