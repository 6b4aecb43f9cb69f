package inventory

import (
	"time"

	"github.com/google/uuid"

	"github.com/stockledger/backend/internal/domain/shared"
)

// TransferStatus represents the lifecycle state of a transfer
type TransferStatus string

const (
	// TransferPending holds quantity in transit: debited from the source,
	// not yet credited to the destination
	TransferPending TransferStatus = "pending"
	// TransferCompleted credited its quantity to the destination
	TransferCompleted TransferStatus = "completed"
	// TransferCancelled was abandoned and its quantity credited back to
	// the source
	TransferCancelled TransferStatus = "cancelled"
)

// String returns the string representation of the status
func (s TransferStatus) String() string {
	return string(s)
}

// IsValid reports whether the status is a known lifecycle state
func (s TransferStatus) IsValid() bool {
	switch s {
	case TransferPending, TransferCompleted, TransferCancelled:
		return true
	}
	return false
}

// InventoryTransfer records the movement of quantity between two locations
// of the same tenant. Creation debits the source row, completion credits
// the destination row and cancellation credits the source back, so summing
// on-hand with in-transit quantity never changes the tenant-wide total.
type InventoryTransfer struct {
	shared.TenantAggregateRoot
	VariantID      uuid.UUID      `gorm:"type:uuid;not null;index"`
	FromLocationID uuid.UUID      `gorm:"type:uuid;not null"`
	ToLocationID   uuid.UUID      `gorm:"type:uuid;not null"`
	Quantity       int64          `gorm:"not null"`
	Status         TransferStatus `gorm:"type:varchar(20);not null;index"`
	Reason         string         `gorm:"type:varchar(255)"`
	Reference      string         `gorm:"type:varchar(100)"`
	Notes          string         `gorm:"type:text"`
	RequestedBy    string         `gorm:"type:varchar(100);not null"`
	CompletedAt    *time.Time
	CancelledAt    *time.Time
}

// TableName returns the table name for GORM
func (InventoryTransfer) TableName() string {
	return "inventory_transfers"
}

// NewInventoryTransfer creates a pending transfer request
func NewInventoryTransfer(
	tenantID, variantID, fromLocationID, toLocationID uuid.UUID,
	quantity int64,
	reason, reference, notes, requestedBy string,
) (*InventoryTransfer, error) {
	if tenantID == uuid.Nil {
		return nil, shared.ErrMissingTenant
	}
	if variantID == uuid.Nil {
		return nil, NewValidationError("variantId", "variant ID cannot be empty")
	}
	if fromLocationID == uuid.Nil || toLocationID == uuid.Nil {
		return nil, NewInvalidTransferError("both locations are required")
	}
	if fromLocationID == toLocationID {
		return nil, NewInvalidTransferError("source and destination locations must differ")
	}
	if quantity <= 0 {
		return nil, NewInvalidTransferError("quantity must be positive")
	}
	if requestedBy == "" {
		return nil, NewValidationError("requestedBy", "requester is required for audit")
	}

	return &InventoryTransfer{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		VariantID:           variantID,
		FromLocationID:      fromLocationID,
		ToLocationID:        toLocationID,
		Quantity:            quantity,
		Status:              TransferPending,
		Reason:              reason,
		Reference:           reference,
		Notes:               notes,
		RequestedBy:         requestedBy,
	}, nil
}

// IsPending returns true if the transfer has not reached a terminal state
func (t *InventoryTransfer) IsPending() bool {
	return t.Status == TransferPending
}

// Complete marks a pending transfer as received at the destination
func (t *InventoryTransfer) Complete() error {
	if t.Status != TransferPending {
		return NewInvalidStateTransitionError("transfer", t.Status.String(), TransferCompleted.String())
	}
	now := time.Now()
	t.Status = TransferCompleted
	t.CompletedAt = &now
	return nil
}

// Cancel abandons a pending transfer; the caller credits the quantity back
// to the source
func (t *InventoryTransfer) Cancel() error {
	if t.Status != TransferPending {
		return NewInvalidStateTransitionError("transfer", t.Status.String(), TransferCancelled.String())
	}
	now := time.Now()
	t.Status = TransferCancelled
	t.CancelledAt = &now
	return nil
}
