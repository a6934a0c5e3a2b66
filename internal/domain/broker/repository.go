package broker

import (
	"context"

	"estateledger/internal/core/id"
	"estateledger/internal/core/types"
)

// Repository persists brokers and their dues.
type Repository interface {
	CreateBroker(ctx context.Context, b *Broker) error
	GetBroker(ctx context.Context, brokerID id.ID) (*Broker, error)

	CreateDues(ctx context.Context, dues []*Due) error
	GetDueForUpdate(ctx context.Context, dueID id.ID) (*Due, error)
	UpdateDue(ctx context.Context, d *Due) error
	// ListDuesByContract returns live dues ordered by sequence.
	ListDuesByContract(ctx context.Context, contractID id.ID) ([]*Due, error)
	// Outstanding sums the live pending dues of a broker.
	Outstanding(ctx context.Context, brokerID id.ID) (types.Money, error)
}
