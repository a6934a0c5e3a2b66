package memory

import (
	"context"
	"sort"

	"estateledger/internal/core/apperror"
	"estateledger/internal/core/id"
	"estateledger/internal/core/types"
	"estateledger/internal/domain/broker"
)

// BrokerRepo implements broker.Repository.
type BrokerRepo struct{ s *Store }

// Brokers returns the broker repository.
func (s *Store) Brokers() *BrokerRepo { return &BrokerRepo{s} }

func (r *BrokerRepo) CreateBroker(ctx context.Context, b *broker.Broker) error {
	return r.s.view(ctx, func(t *tables) error {
		return insertRow(t.brokers, "broker", b.ID, *b)
	})
}

func (r *BrokerRepo) GetBroker(ctx context.Context, brokerID id.ID) (out *broker.Broker, err error) {
	err = r.s.view(ctx, func(t *tables) error {
		out, err = getRow(t.brokers, "broker", brokerID)
		return err
	})
	return out, err
}

func (r *BrokerRepo) CreateDues(ctx context.Context, dues []*broker.Due) error {
	return r.s.view(ctx, func(t *tables) error {
		for _, d := range dues {
			if err := insertRow(t.dues, "broker_due", d.ID, *d); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *BrokerRepo) GetDueForUpdate(ctx context.Context, dueID id.ID) (out *broker.Due, err error) {
	err = r.s.view(ctx, func(t *tables) error {
		out, err = getRow(t.dues, "broker_due", dueID)
		return err
	})
	return out, err
}

func (r *BrokerRepo) UpdateDue(ctx context.Context, d *broker.Due) error {
	return r.s.view(ctx, func(t *tables) error {
		stored, ok := t.dues[d.ID]
		if !ok {
			return apperror.NewNotFound("broker_due", d.ID.String())
		}
		if err := checkVersion("broker_due", d.ID, stored.Version, d.Version); err != nil {
			return err
		}
		d.Version++
		t.dues[d.ID] = *d
		return nil
	})
}

func (r *BrokerRepo) ListDuesByContract(ctx context.Context, contractID id.ID) ([]*broker.Due, error) {
	var out []*broker.Due
	err := r.s.view(ctx, func(t *tables) error {
		for _, row := range t.dues {
			if row.IsDeleted() || row.ContractID != contractID {
				continue
			}
			row := row
			out = append(out, &row)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, err
}

func (r *BrokerRepo) Outstanding(ctx context.Context, brokerID id.ID) (types.Money, error) {
	total := types.Zero()
	err := r.s.view(ctx, func(t *tables) error {
		for _, row := range t.dues {
			if row.IsDeleted() || row.BrokerID != brokerID || row.Status != broker.DuePending {
				continue
			}
			total = total.Add(row.Amount)
		}
		return nil
	})
	return total, err
}

var _ broker.Repository = (*BrokerRepo)(nil)
