// Package entity provides the base types shared by all ledger records.
package entity

import (
	"context"
	"time"

	"estateledger/internal/core/id"
)

// Validatable is implemented by entities that support self-validation.
// Validation checks internal invariants (without database access).
type Validatable interface {
	// Validate checks entity invariants.
	// Returns nil if valid, AppError with details otherwise.
	Validate(ctx context.Context) error
}

// BaseEntity contains common fields for all ledger records.
// Records are never hard-deleted; DeletionMark hides them from balances
// and schedules while keeping the audit trail.
type BaseEntity struct {
	// ID is the primary key (UUIDv7)
	ID id.ID `db:"id" json:"id"`

	// DeletionMark indicates soft-deleted record
	DeletionMark bool `db:"deletion_mark" json:"deletionMark"`

	// DeletedAt is set together with DeletionMark
	DeletedAt *time.Time `db:"deleted_at" json:"deletedAt,omitempty"`

	// Version for optimistic locking (incremented on each update)
	Version int `db:"version" json:"version"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewBaseEntity creates a new BaseEntity with generated ID and timestamps.
func NewBaseEntity() BaseEntity {
	now := time.Now().UTC()
	return BaseEntity{
		ID:        id.New(),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch updates the UpdatedAt timestamp.
// Version is bumped by the repository when the update is stored.
func (b *BaseEntity) Touch() {
	b.UpdatedAt = time.Now().UTC()
}

// MarkDeleted sets the deletion mark.
func (b *BaseEntity) MarkDeleted() {
	now := time.Now().UTC()
	b.DeletionMark = true
	b.DeletedAt = &now
	b.UpdatedAt = now
}

// IsDeleted reports whether the record carries a deletion mark.
func (b *BaseEntity) IsDeleted() bool {
	return b.DeletionMark
}

// Base returns the embedded BaseEntity. Generic repositories use it to
// reach the id and version of any record.
func (b *BaseEntity) Base() *BaseEntity {
	return b
}

// GetID returns the record ID.
func (b *BaseEntity) GetID() id.ID {
	return b.ID
}
