package entity

import (
	"estateledger/internal/core/types"
)

// Direction tells whether a movement increases or decreases a balance.
type Direction int

const (
	// Inflow increases the balance (receipts, transfers in, income).
	Inflow Direction = 1
	// Outflow decreases the balance (payments, transfers out, expenses).
	Outflow Direction = -1
)

// NoDirection is the zero value; movements without a direction have no
// effect.
const NoDirection Direction = 0

// Signed returns amount with the sign of the direction, or zero for
// NoDirection.
func (d Direction) Signed(amount types.Money) types.Money {
	switch d {
	case Inflow:
		return amount
	case Outflow:
		return amount.Neg()
	default:
		return types.Zero()
	}
}

// Reverse returns the opposite direction.
func (d Direction) Reverse() Direction {
	return -d
}
