package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"estateledger/internal/core/id"
	"estateledger/internal/core/types"
	"estateledger/internal/domain/broker"
	"estateledger/internal/infrastructure/storage/postgres"
)

// BrokerRepo implements broker.Repository.
type BrokerRepo struct {
	brokers *table[broker.Broker, *broker.Broker]
	dues    *table[broker.Due, *broker.Due]
	batch   *postgres.BatchInserter
}

// NewBrokerRepo creates a new broker repository.
func NewBrokerRepo(tm *postgres.TxManager) *BrokerRepo {
	return &BrokerRepo{
		brokers: newTable[broker.Broker, *broker.Broker](tm, "brokers", "broker"),
		dues:    newTable[broker.Due, *broker.Due](tm, "broker_dues", "broker_due"),
		batch:   postgres.NewBatchInserter(tm),
	}
}

func (r *BrokerRepo) CreateBroker(ctx context.Context, b *broker.Broker) error {
	return r.brokers.insert(ctx, b)
}

func (r *BrokerRepo) GetBroker(ctx context.Context, brokerID id.ID) (*broker.Broker, error) {
	return r.brokers.get(ctx, brokerID)
}

// CreateDues queues one INSERT per due and sends them as a single batch.
func (r *BrokerRepo) CreateDues(ctx context.Context, dues []*broker.Due) error {
	queries := make([]postgres.BatchQuery, 0, len(dues))
	for _, d := range dues {
		sql, args, err := r.dues.insertQuery(d).ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		queries = append(queries, postgres.BatchQuery{SQL: sql, Args: args})
	}
	if len(queries) == 0 {
		return nil
	}
	if _, err := r.batch.ExecuteBatch(ctx, queries); err != nil {
		return r.dues.writeError("insert", err)
	}
	return nil
}

func (r *BrokerRepo) GetDueForUpdate(ctx context.Context, dueID id.ID) (*broker.Due, error) {
	return r.dues.getForUpdate(ctx, dueID)
}

func (r *BrokerRepo) UpdateDue(ctx context.Context, d *broker.Due) error {
	return r.dues.update(ctx, d)
}

func (r *BrokerRepo) ListDuesByContract(ctx context.Context, contractID id.ID) ([]*broker.Due, error) {
	return r.dues.many(ctx, r.dues.live().
		Where(squirrel.Eq{"contract_id": contractID}).
		OrderBy("sequence"))
}

func outstandingQuery(brokerID id.ID) squirrel.SelectBuilder {
	return Builder().
		Select("COALESCE(SUM(amount), 0)").
		From("broker_dues").
		Where(squirrel.Eq{"broker_id": brokerID, "status": broker.DuePending, "deletion_mark": false})
}

func (r *BrokerRepo) Outstanding(ctx context.Context, brokerID id.ID) (types.Money, error) {
	total := types.Zero()
	if err := r.dues.scalar(ctx, outstandingQuery(brokerID), &total); err != nil {
		return types.Zero(), err
	}
	return total, nil
}

var _ broker.Repository = (*BrokerRepo)(nil)
