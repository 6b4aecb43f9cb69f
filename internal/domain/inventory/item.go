package inventory

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockledger/backend/internal/domain/shared"
)

// ChannelBufferMap holds per-channel buffer quantities keyed by channel
// code ("web", "pos", "marketplace", ...). Stored as a JSON column.
type ChannelBufferMap map[string]int64

// Value implements driver.Valuer, serializing the map to JSON
func (m ChannelBufferMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner, deserializing the map from JSON
func (m *ChannelBufferMap) Scan(value interface{}) error {
	if value == nil {
		*m = make(ChannelBufferMap)
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported channel buffer column type %T", value)
	}
	if len(data) == 0 {
		*m = make(ChannelBufferMap)
		return nil
	}
	return json.Unmarshal(data, m)
}

// InventoryItem is one ledger row: the current stock position of a product
// variant at a physical location for one tenant. The (tenant, variant,
// location) triple is unique. Counters are only ever mutated through
// ApplyMovement so that every change is mirrored by a movement record and
// the row invariants are checked in a single place.
type InventoryItem struct {
	shared.TenantAggregateRoot
	VariantID      uuid.UUID        `gorm:"type:uuid;not null;index"`
	LocationID     uuid.UUID        `gorm:"type:uuid;not null;index"`
	OnHand         int64            `gorm:"not null;default:0"`
	Reserved       int64            `gorm:"not null;default:0"`
	SafetyStock    int64            `gorm:"not null;default:0"`
	ChannelBuffers ChannelBufferMap `gorm:"type:jsonb"`
	UnitCost       decimal.Decimal  `gorm:"type:decimal(18,4);default:0"`
	LastCountedAt  *time.Time
}

// TableName returns the table name for GORM
func (InventoryItem) TableName() string {
	return "inventory_items"
}

// NewInventoryItem creates a zeroed ledger row for a variant at a location
func NewInventoryItem(tenantID, variantID, locationID uuid.UUID) (*InventoryItem, error) {
	if tenantID == uuid.Nil {
		return nil, shared.ErrMissingTenant
	}
	if variantID == uuid.Nil {
		return nil, NewValidationError("variantId", "variant ID cannot be empty")
	}
	if locationID == uuid.Nil {
		return nil, NewValidationError("locationId", "location ID cannot be empty")
	}
	return &InventoryItem{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		VariantID:           variantID,
		LocationID:          locationID,
		ChannelBuffers:      make(ChannelBufferMap),
		UnitCost:            decimal.Zero,
	}, nil
}

// ChannelBuffer returns the buffer reserved away from the given channel.
// Unknown channels have no buffer.
func (i *InventoryItem) ChannelBuffer(channel string) int64 {
	if i.ChannelBuffers == nil {
		return 0
	}
	return i.ChannelBuffers[channel]
}

// ReservablePool is the quantity reservations may draw from, before any
// channel buffer is subtracted. It can be negative when safety stock was
// raised above the current position.
func (i *InventoryItem) ReservablePool() int64 {
	return i.OnHand - i.Reserved - i.SafetyStock
}

// AvailableToSell is the sellable quantity presented to one channel:
// on-hand minus reserved, safety stock and that channel's buffer, clamped
// at zero.
func (i *InventoryItem) AvailableToSell(channel string) int64 {
	available := i.ReservablePool() - i.ChannelBuffer(channel)
	if available < 0 {
		return 0
	}
	return available
}

// IsBelowSafetyStock reports whether the unreserved position has fallen
// under the configured safety floor
func (i *InventoryItem) IsBelowSafetyStock() bool {
	return i.SafetyStock > 0 && i.OnHand-i.Reserved < i.SafetyStock
}

// InventoryValue is the on-hand quantity valued at the moving-average cost
func (i *InventoryItem) InventoryValue() decimal.Decimal {
	return i.UnitCost.Mul(decimal.NewFromInt(i.OnHand))
}

// ApplyMovement applies a movement's delta to the row counters. This is the
// only mutation path for OnHand and Reserved: it rejects any change that
// would leave on-hand negative or reserved above on-hand, and it raises a
// low-stock domain event when an on-hand debit crosses the safety floor.
func (i *InventoryItem) ApplyMovement(m *StockMovement) error {
	if m.TenantID != i.TenantID || m.VariantID != i.VariantID || m.LocationID != i.LocationID {
		return NewValidationError("movement", "movement does not target this ledger row")
	}

	switch {
	case m.Type.AffectsOnHand():
		newOnHand := i.OnHand + m.QuantityDelta
		if newOnHand < 0 {
			return NewInsufficientInventoryError(i.VariantID, i.LocationID, -m.QuantityDelta, i.OnHand)
		}
		if i.Reserved > newOnHand {
			return NewInsufficientInventoryError(i.VariantID, i.LocationID, -m.QuantityDelta, i.OnHand-i.Reserved)
		}
		wasBelow := i.IsBelowSafetyStock()
		i.OnHand = newOnHand
		if m.Type == MovementRestock && m.UnitCost != nil {
			i.absorbRestockCost(m.QuantityDelta, *m.UnitCost)
		}
		if m.Type == MovementAdjustment {
			now := time.Now()
			i.LastCountedAt = &now
		}
		if m.IsDebit() && !wasBelow && i.IsBelowSafetyStock() {
			i.AddDomainEvent(NewStockBelowSafetyEvent(i))
		}

	case m.Type.AffectsReserved():
		newReserved := i.Reserved + m.QuantityDelta
		if newReserved < 0 {
			return NewValidationError("quantityDelta", "release exceeds reserved quantity")
		}
		if newReserved > i.OnHand {
			return NewInsufficientInventoryError(i.VariantID, i.LocationID, m.QuantityDelta, i.OnHand-i.Reserved)
		}
		i.Reserved = newReserved

	default:
		return NewValidationError("type", "unknown movement type")
	}

	return nil
}

// absorbRestockCost folds a received batch into the weighted moving-average
// unit cost. The pre-restock on-hand has already been updated by the caller,
// so the previous quantity is OnHand minus the received quantity.
func (i *InventoryItem) absorbRestockCost(qty int64, cost decimal.Decimal) {
	previousQty := i.OnHand - qty
	if previousQty <= 0 || i.UnitCost.IsZero() {
		i.UnitCost = cost
		return
	}
	previousValue := i.UnitCost.Mul(decimal.NewFromInt(previousQty))
	receivedValue := cost.Mul(decimal.NewFromInt(qty))
	i.UnitCost = previousValue.Add(receivedValue).Div(decimal.NewFromInt(i.OnHand)).Round(4)
}

// MarkCounted stamps the row as physically counted without changing any
// counter. Used when a count confirms the recorded level.
func (i *InventoryItem) MarkCounted() {
	now := time.Now()
	i.LastCountedAt = &now
}

// SetSafetyStock updates the safety floor. Raising it above the current
// position is allowed; it only narrows future availability.
func (i *InventoryItem) SetSafetyStock(level int64) error {
	if level < 0 {
		return NewValidationError("safetyStock", "safety stock cannot be negative")
	}
	i.SafetyStock = level
	return nil
}

// SetChannelBuffer sets the buffer withheld from one channel. A zero
// quantity removes the buffer entry.
func (i *InventoryItem) SetChannelBuffer(channel string, qty int64) error {
	if channel == "" {
		return NewValidationError("channel", "channel code cannot be empty")
	}
	if qty < 0 {
		return NewValidationError("quantity", "channel buffer cannot be negative")
	}
	if i.ChannelBuffers == nil {
		i.ChannelBuffers = make(ChannelBufferMap)
	}
	if qty == 0 {
		delete(i.ChannelBuffers, channel)
		return nil
	}
	i.ChannelBuffers[channel] = qty
	return nil
}
