package ledger_repo

import (
	"context"

	"estateledger/internal/core/id"
	"estateledger/internal/domain/contract"
	"estateledger/internal/infrastructure/storage/postgres"
)

// ContractRepo implements contract.Repository.
type ContractRepo struct {
	t *table[contract.Contract, *contract.Contract]
}

// NewContractRepo creates a new contract repository.
func NewContractRepo(tm *postgres.TxManager) *ContractRepo {
	return &ContractRepo{t: newTable[contract.Contract, *contract.Contract](tm, "contracts", "contract")}
}

func (r *ContractRepo) Create(ctx context.Context, c *contract.Contract) error {
	return r.t.insert(ctx, c)
}

func (r *ContractRepo) GetByID(ctx context.Context, contractID id.ID) (*contract.Contract, error) {
	return r.t.get(ctx, contractID)
}

func (r *ContractRepo) Update(ctx context.Context, c *contract.Contract) error {
	return r.t.update(ctx, c)
}

func (r *ContractRepo) Delete(ctx context.Context, contractID id.ID) error {
	return r.t.markDeleted(ctx, contractID)
}

var _ contract.Repository = (*ContractRepo)(nil)
