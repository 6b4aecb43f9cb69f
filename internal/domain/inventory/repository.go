package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/stockledger/backend/internal/domain/shared"
)

// ItemRepository persists ledger rows. Every method takes the tenant ID
// explicitly and implementations must apply it in the query predicate;
// no row of another tenant may ever be read or written.
type ItemRepository interface {
	// FindByRow loads the ledger row for a variant at a location
	FindByRow(ctx context.Context, tenantID, variantID, locationID uuid.UUID) (*InventoryItem, error)
	// GetOrCreate loads the row, creating a zeroed one if it does not exist
	GetOrCreate(ctx context.Context, tenantID, variantID, locationID uuid.UUID) (*InventoryItem, error)
	// FindByVariant loads all of a variant's rows across locations
	FindByVariant(ctx context.Context, tenantID, variantID uuid.UUID) ([]*InventoryItem, error)
	// FindByLocation loads all rows at a location
	FindByLocation(ctx context.Context, tenantID, locationID uuid.UUID) ([]*InventoryItem, error)
	// FindAll pages through a tenant's ledger rows
	FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (shared.Paginated[*InventoryItem], error)
	// Save persists a row without a version check
	Save(ctx context.Context, item *InventoryItem) error
	// SaveWithLock persists a row guarded by its version; it returns
	// shared.ErrConcurrencyConflict when another writer got there first
	SaveWithLock(ctx context.Context, item *InventoryItem) error
}

// MovementRepository persists the append-only movement log. Movements are
// written once and never updated or deleted.
type MovementRepository interface {
	// Create appends one movement record
	Create(ctx context.Context, movement *StockMovement) error
	// FindByRow pages through a row's movement history, newest first
	FindByRow(ctx context.Context, tenantID, variantID, locationID uuid.UUID, filter shared.Filter) (shared.Paginated[*StockMovement], error)
	// FindByVariant pages through a variant's movement history across all
	// locations, newest first
	FindByVariant(ctx context.Context, tenantID, variantID uuid.UUID, filter shared.Filter) (shared.Paginated[*StockMovement], error)
	// FindByReference returns the movements carrying an external reference,
	// such as an order ID or transfer ID
	FindByReference(ctx context.Context, tenantID uuid.UUID, reference string) ([]*StockMovement, error)
	// SumDeltas sums the deltas of the given movement types for a row over
	// a time window
	SumDeltas(ctx context.Context, tenantID, variantID, locationID uuid.UUID, types []MovementType, since, until time.Time) (int64, error)
	// CountByTypes counts a row's movements of the given types over a time
	// window
	CountByTypes(ctx context.Context, tenantID, variantID, locationID uuid.UUID, types []MovementType, since, until time.Time) (int64, error)
	// LastMovementAt returns when a row last saw a movement of the given
	// type, or nil if it never has
	LastMovementAt(ctx context.Context, tenantID, variantID, locationID uuid.UUID, movementType MovementType) (*time.Time, error)
	// SumSalesByVariant sums sale quantities per variant across all
	// locations since the given time. Values are positive unit counts.
	SumSalesByVariant(ctx context.Context, tenantID uuid.UUID, since time.Time) (map[uuid.UUID]int64, error)
}

// ReservationRepository persists reservations
type ReservationRepository interface {
	// FindByID loads one reservation
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*InventoryReservation, error)
	// FindActiveByOrder returns the active reservations referencing an order
	FindActiveByOrder(ctx context.Context, tenantID uuid.UUID, orderID string) ([]*InventoryReservation, error)
	// FindExpired returns active reservations past their deadline across
	// all tenants, for the expiry sweep. Each row carries its own tenant ID.
	FindExpired(ctx context.Context, cutoff time.Time, limit int) ([]*InventoryReservation, error)
	// CountActive counts a tenant's active reservations
	CountActive(ctx context.Context, tenantID uuid.UUID) (int64, error)
	// Save persists a reservation without a version check
	Save(ctx context.Context, reservation *InventoryReservation) error
	// SaveWithLock persists a reservation guarded by its version
	SaveWithLock(ctx context.Context, reservation *InventoryReservation) error
}

// TransferRepository persists transfer requests
type TransferRepository interface {
	// FindByID loads one transfer
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*InventoryTransfer, error)
	// FindByStatus pages through a tenant's transfers, optionally limited
	// to one status; an empty status matches every lifecycle state
	FindByStatus(ctx context.Context, tenantID uuid.UUID, status TransferStatus, filter shared.Filter) (shared.Paginated[*InventoryTransfer], error)
	// Save persists a transfer without a version check
	Save(ctx context.Context, transfer *InventoryTransfer) error
	// SaveWithLock persists a transfer guarded by its version
	SaveWithLock(ctx context.Context, transfer *InventoryTransfer) error
}
