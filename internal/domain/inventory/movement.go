package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockledger/backend/internal/domain/shared"
)

// MovementType classifies a stock movement. The type determines which
// counter the movement's delta applies to: on-hand for physical changes,
// reserved for reservation holds and releases.
type MovementType string

const (
	// MovementSale removes units that left inventory through a fulfilled order
	MovementSale MovementType = "sale"
	// MovementRestock adds units received into a location
	MovementRestock MovementType = "restock"
	// MovementAdjustment corrects the on-hand count (physical recount, shrinkage)
	MovementAdjustment MovementType = "adjustment"
	// MovementReturn re-adds units returned by a customer
	MovementReturn MovementType = "return"
	// MovementTransferOut debits the source location of a transfer
	MovementTransferOut MovementType = "transfer_out"
	// MovementTransferIn credits the destination location of a transfer
	MovementTransferIn MovementType = "transfer_in"
	// MovementReservationHold increments the reserved counter for an order
	MovementReservationHold MovementType = "reservation_hold"
	// MovementReservationRelease decrements the reserved counter
	MovementReservationRelease MovementType = "reservation_release"
)

// String returns the string representation of the movement type
func (t MovementType) String() string {
	return string(t)
}

// IsValid returns true if the movement type is known
func (t MovementType) IsValid() bool {
	switch t {
	case MovementSale, MovementRestock, MovementAdjustment, MovementReturn,
		MovementTransferOut, MovementTransferIn,
		MovementReservationHold, MovementReservationRelease:
		return true
	}
	return false
}

// AffectsOnHand returns true if this movement type changes the on-hand counter
func (t MovementType) AffectsOnHand() bool {
	switch t {
	case MovementSale, MovementRestock, MovementAdjustment, MovementReturn,
		MovementTransferOut, MovementTransferIn:
		return true
	}
	return false
}

// AffectsReserved returns true if this movement type changes the reserved counter
func (t MovementType) AffectsReserved() bool {
	return t == MovementReservationHold || t == MovementReservationRelease
}

// StockMovement is an immutable record of one signed quantity change against
// a (variant, location) ledger row. Movements are never updated or deleted;
// the ledger counters are the running sum of the applicable deltas, so the
// full sequence for a row can always be replayed to the current counts.
type StockMovement struct {
	shared.BaseEntity
	TenantID      uuid.UUID        `gorm:"type:uuid;not null;index:idx_movement_row,priority:1"`
	VariantID     uuid.UUID        `gorm:"type:uuid;not null;index:idx_movement_row,priority:2"`
	LocationID    uuid.UUID        `gorm:"type:uuid;not null;index:idx_movement_row,priority:3"`
	Type          MovementType     `gorm:"type:varchar(30);not null;index"`
	QuantityDelta int64            `gorm:"not null"`
	Reason        string           `gorm:"type:varchar(255)"`
	Reference     string           `gorm:"type:varchar(100);index"` // order id, transfer id, import batch
	Actor         string           `gorm:"type:varchar(100);not null"`
	UnitCost      *decimal.Decimal `gorm:"type:decimal(18,4)"` // set on restocks, feeds moving-average cost
}

// TableName returns the table name for GORM
func (StockMovement) TableName() string {
	return "stock_movements"
}

// NewStockMovement creates a movement record after validating its shape.
// The delta sign must match the movement type's direction where the type
// implies one (sale and transfer_out are debits, restock/return/transfer_in
// are credits); adjustments may go either way.
func NewStockMovement(
	tenantID, variantID, locationID uuid.UUID,
	movementType MovementType,
	delta int64,
	reason, reference, actor string,
) (*StockMovement, error) {
	if tenantID == uuid.Nil {
		return nil, shared.ErrMissingTenant
	}
	if variantID == uuid.Nil {
		return nil, NewValidationError("variantId", "variant ID cannot be empty")
	}
	if locationID == uuid.Nil {
		return nil, NewValidationError("locationId", "location ID cannot be empty")
	}
	if !movementType.IsValid() {
		return nil, NewValidationError("type", "unknown movement type")
	}
	if delta == 0 {
		return nil, NewValidationError("quantityDelta", "movement delta cannot be zero")
	}
	if actor == "" {
		return nil, NewValidationError("actor", "actor is required for audit")
	}

	switch movementType {
	case MovementSale, MovementTransferOut:
		if delta > 0 {
			return nil, NewValidationError("quantityDelta", "sale and transfer_out movements must be negative")
		}
	case MovementRestock, MovementReturn, MovementTransferIn:
		if delta < 0 {
			return nil, NewValidationError("quantityDelta", "restock, return and transfer_in movements must be positive")
		}
	}

	return &StockMovement{
		BaseEntity:    shared.NewBaseEntity(),
		TenantID:      tenantID,
		VariantID:     variantID,
		LocationID:    locationID,
		Type:          movementType,
		QuantityDelta: delta,
		Reason:        reason,
		Reference:     reference,
		Actor:         actor,
	}, nil
}

// WithUnitCost records the per-unit cost carried by this movement
func (m *StockMovement) WithUnitCost(cost decimal.Decimal) *StockMovement {
	m.UnitCost = &cost
	return m
}

// IsDebit returns true if the movement removes quantity
func (m *StockMovement) IsDebit() bool {
	return m.QuantityDelta < 0
}

// OccurredAt returns when the movement was recorded
func (m *StockMovement) OccurredAt() time.Time {
	return m.CreatedAt
}
