package events

import (
	"time"

	"estateledger/internal/core/id"
	"estateledger/internal/core/types"
)

// VoucherPayload accompanies VoucherApplied and VoucherReversed.
type VoucherPayload struct {
	VoucherID id.ID       `json:"voucherId"`
	Number    string      `json:"number"`
	SafeID    id.ID       `json:"safeId"`
	Type      string      `json:"type"`
	Amount    types.Money `json:"amount"`
	Balance   types.Money `json:"balance"` // safe balance after the change
}

// TransferPayload accompanies TransferApplied and TransferReversed.
type TransferPayload struct {
	TransferID  id.ID       `json:"transferId"`
	Number      string      `json:"number"`
	FromSafeID  id.ID       `json:"fromSafeId"`
	ToSafeID    id.ID       `json:"toSafeId"`
	Amount      types.Money `json:"amount"`
	FromBalance types.Money `json:"fromBalance"`
	ToBalance   types.Money `json:"toBalance"`
}

// SchedulePayload accompanies ScheduleGenerated and ScheduleRegenerated.
type SchedulePayload struct {
	ContractID   id.ID       `json:"contractId"`
	UnitID       id.ID       `json:"unitId"`
	Installments int         `json:"installments"`
	Total        types.Money `json:"total"`
	Superseded   int64       `json:"superseded,omitempty"`
}

// MismatchPayload accompanies SafeBalanceMismatch.
type MismatchPayload struct {
	SafeID     id.ID       `json:"safeId"`
	SafeName   string      `json:"safeName"`
	Stored     types.Money `json:"stored"`
	Computed   types.Money `json:"computed"`
	DetectedAt time.Time   `json:"detectedAt"`
}
