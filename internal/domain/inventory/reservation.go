package inventory

import (
	"time"

	"github.com/google/uuid"

	"github.com/stockledger/backend/internal/domain/shared"
)

// ReservationStatus represents the lifecycle state of a reservation
type ReservationStatus string

const (
	// ReservationActive holds quantity against the ledger row
	ReservationActive ReservationStatus = "active"
	// ReservationReleased returned its quantity before fulfillment
	ReservationReleased ReservationStatus = "released"
	// ReservationConsumed was fulfilled and turned into a sale
	ReservationConsumed ReservationStatus = "consumed"
	// ReservationExpired was reclaimed by the expiry sweep
	ReservationExpired ReservationStatus = "expired"
)

// String returns the string representation of the status
func (s ReservationStatus) String() string {
	return string(s)
}

// InventoryReservation is a time-bounded hold of quantity against one
// ledger row on behalf of an order. While active it counts into the row's
// reserved total; every terminal transition gives the quantity back or
// converts it into a sale, exactly once.
type InventoryReservation struct {
	shared.TenantAggregateRoot
	VariantID  uuid.UUID         `gorm:"type:uuid;not null;index:idx_reservation_row,priority:2"`
	LocationID uuid.UUID         `gorm:"type:uuid;not null;index:idx_reservation_row,priority:3"`
	OrderID    string            `gorm:"type:varchar(100);not null;index"`
	Channel    string            `gorm:"type:varchar(50);not null"`
	Quantity   int64             `gorm:"not null"`
	Status     ReservationStatus `gorm:"type:varchar(20);not null;index"`
	ExpiresAt  time.Time         `gorm:"not null;index"`
	ClosedAt   *time.Time
}

// TableName returns the table name for GORM
func (InventoryReservation) TableName() string {
	return "inventory_reservations"
}

// NewInventoryReservation creates an active reservation with the given TTL
func NewInventoryReservation(
	tenantID, variantID, locationID uuid.UUID,
	orderID, channel string,
	quantity int64,
	ttl time.Duration,
) (*InventoryReservation, error) {
	if tenantID == uuid.Nil {
		return nil, shared.ErrMissingTenant
	}
	if variantID == uuid.Nil {
		return nil, NewValidationError("variantId", "variant ID cannot be empty")
	}
	if locationID == uuid.Nil {
		return nil, NewValidationError("locationId", "location ID cannot be empty")
	}
	if orderID == "" {
		return nil, NewValidationError("orderId", "order ID cannot be empty")
	}
	if channel == "" {
		return nil, NewValidationError("channel", "channel code cannot be empty")
	}
	if quantity <= 0 {
		return nil, NewValidationError("quantity", "reservation quantity must be positive")
	}
	if ttl <= 0 {
		return nil, NewValidationError("ttl", "reservation TTL must be positive")
	}

	return &InventoryReservation{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		VariantID:           variantID,
		LocationID:          locationID,
		OrderID:             orderID,
		Channel:             channel,
		Quantity:            quantity,
		Status:              ReservationActive,
		ExpiresAt:           time.Now().Add(ttl),
	}, nil
}

// IsActive returns true if the reservation still holds quantity
func (r *InventoryReservation) IsActive() bool {
	return r.Status == ReservationActive
}

// IsExpired returns true if an active reservation has passed its deadline.
// Terminal reservations are never expired again.
func (r *InventoryReservation) IsExpired(now time.Time) bool {
	return r.Status == ReservationActive && now.After(r.ExpiresAt)
}

// Release cancels an active reservation, giving its quantity back
func (r *InventoryReservation) Release() error {
	return r.close(ReservationReleased)
}

// Consume marks an active reservation as fulfilled
func (r *InventoryReservation) Consume() error {
	return r.close(ReservationConsumed)
}

// Expire marks an overdue active reservation as reclaimed by the sweep
func (r *InventoryReservation) Expire() error {
	return r.close(ReservationExpired)
}

func (r *InventoryReservation) close(target ReservationStatus) error {
	if r.Status != ReservationActive {
		return NewInvalidStateTransitionError("reservation", r.Status.String(), target.String())
	}
	now := time.Now()
	r.Status = target
	r.ClosedAt = &now
	return nil
}
