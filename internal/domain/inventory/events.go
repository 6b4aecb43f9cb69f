package inventory

import (
	"github.com/google/uuid"

	"github.com/stockledger/backend/internal/domain/shared"
)

// Event types raised by the inventory domain
const (
	EventMovementApplied    = "inventory.movement_applied"
	EventStockBelowSafety   = "inventory.stock_below_safety"
	EventReservationExpired = "inventory.reservation_expired"
	EventTransferCompleted  = "inventory.transfer_completed"
)

// StockMovementAppliedEvent is raised after a movement and its counter
// change have been committed
type StockMovementAppliedEvent struct {
	shared.BaseDomainEvent
	VariantID     uuid.UUID    `json:"variant_id"`
	LocationID    uuid.UUID    `json:"location_id"`
	MovementType  MovementType `json:"movement_type"`
	QuantityDelta int64        `json:"quantity_delta"`
	Reference     string       `json:"reference,omitempty"`
}

// NewStockMovementAppliedEvent creates an applied event from a committed movement
func NewStockMovementAppliedEvent(m *StockMovement) *StockMovementAppliedEvent {
	return &StockMovementAppliedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventMovementApplied, "StockMovement", m.ID, m.TenantID),
		VariantID:       m.VariantID,
		LocationID:      m.LocationID,
		MovementType:    m.Type,
		QuantityDelta:   m.QuantityDelta,
		Reference:       m.Reference,
	}
}

// StockBelowSafetyEvent is raised when a debit drops a ledger row's
// unreserved position under its safety floor
type StockBelowSafetyEvent struct {
	shared.BaseDomainEvent
	VariantID   uuid.UUID `json:"variant_id"`
	LocationID  uuid.UUID `json:"location_id"`
	OnHand      int64     `json:"on_hand"`
	Reserved    int64     `json:"reserved"`
	SafetyStock int64     `json:"safety_stock"`
}

// NewStockBelowSafetyEvent creates a low-stock event from the row's
// post-movement counters
func NewStockBelowSafetyEvent(item *InventoryItem) *StockBelowSafetyEvent {
	return &StockBelowSafetyEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventStockBelowSafety, "InventoryItem", item.ID, item.TenantID),
		VariantID:       item.VariantID,
		LocationID:      item.LocationID,
		OnHand:          item.OnHand,
		Reserved:        item.Reserved,
		SafetyStock:     item.SafetyStock,
	}
}

// ReservationExpiredEvent is raised when the expiry sweep reclaims an
// overdue reservation
type ReservationExpiredEvent struct {
	shared.BaseDomainEvent
	VariantID  uuid.UUID `json:"variant_id"`
	LocationID uuid.UUID `json:"location_id"`
	OrderID    string    `json:"order_id"`
	Quantity   int64     `json:"quantity"`
}

// NewReservationExpiredEvent creates an expiry event for a reclaimed reservation
func NewReservationExpiredEvent(r *InventoryReservation) *ReservationExpiredEvent {
	return &ReservationExpiredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventReservationExpired, "InventoryReservation", r.ID, r.TenantID),
		VariantID:       r.VariantID,
		LocationID:      r.LocationID,
		OrderID:         r.OrderID,
		Quantity:        r.Quantity,
	}
}

// TransferCompletedEvent is raised after a transfer's debit and credit
// have both been committed
type TransferCompletedEvent struct {
	shared.BaseDomainEvent
	VariantID      uuid.UUID `json:"variant_id"`
	FromLocationID uuid.UUID `json:"from_location_id"`
	ToLocationID   uuid.UUID `json:"to_location_id"`
	Quantity       int64     `json:"quantity"`
}

// NewTransferCompletedEvent creates a completion event for an executed transfer
func NewTransferCompletedEvent(t *InventoryTransfer) *TransferCompletedEvent {
	return &TransferCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTransferCompleted, "InventoryTransfer", t.ID, t.TenantID),
		VariantID:       t.VariantID,
		FromLocationID:  t.FromLocationID,
		ToLocationID:    t.ToLocationID,
		Quantity:        t.Quantity,
	}
}
