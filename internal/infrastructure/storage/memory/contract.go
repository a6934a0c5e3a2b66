package memory

import (
	"context"

	"estateledger/internal/core/apperror"
	"estateledger/internal/core/id"
	"estateledger/internal/domain/contract"
)

// ContractRepo implements contract.Repository.
type ContractRepo struct{ s *Store }

// Contracts returns the contract repository.
func (s *Store) Contracts() *ContractRepo { return &ContractRepo{s} }

func (r *ContractRepo) Create(ctx context.Context, c *contract.Contract) error {
	return r.s.view(ctx, func(t *tables) error {
		return insertRow(t.contracts, "contract", c.ID, *c)
	})
}

func (r *ContractRepo) GetByID(ctx context.Context, contractID id.ID) (out *contract.Contract, err error) {
	err = r.s.view(ctx, func(t *tables) error {
		out, err = getRow(t.contracts, "contract", contractID)
		return err
	})
	return out, err
}

func (r *ContractRepo) Update(ctx context.Context, c *contract.Contract) error {
	return r.s.view(ctx, func(t *tables) error {
		stored, ok := t.contracts[c.ID]
		if !ok {
			return apperror.NewNotFound("contract", c.ID.String())
		}
		if err := checkVersion("contract", c.ID, stored.Version, c.Version); err != nil {
			return err
		}
		c.Version++
		t.contracts[c.ID] = *c
		return nil
	})
}

func (r *ContractRepo) Delete(ctx context.Context, contractID id.ID) error {
	return r.s.view(ctx, func(t *tables) error {
		row, ok := t.contracts[contractID]
		if !ok {
			return apperror.NewNotFound("contract", contractID.String())
		}
		row.MarkDeleted()
		row.Version++
		t.contracts[contractID] = row
		return nil
	})
}

var _ contract.Repository = (*ContractRepo)(nil)
