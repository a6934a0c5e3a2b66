package contract

import (
	"context"

	"estateledger/internal/core/id"
)

// Repository defines persistence for contracts.
type Repository interface {
	Create(ctx context.Context, c *Contract) error
	GetByID(ctx context.Context, contractID id.ID) (*Contract, error)
	// Update saves c with optimistic locking on Version.
	Update(ctx context.Context, c *Contract) error
	Delete(ctx context.Context, contractID id.ID) error
}
