package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/stockledger/backend/internal/domain/inventory"
	"github.com/stockledger/backend/internal/domain/shared"
)

// AvailabilityCache is a short-lived read cache for availability lookups.
// It is strictly best-effort: a cache failure never fails the lookup, and
// writers invalidate the touched row after every committed movement.
type AvailabilityCache interface {
	Get(ctx context.Context, tenantID, variantID, locationID uuid.UUID, channel string) (int64, bool, error)
	Set(ctx context.Context, tenantID, variantID, locationID uuid.UUID, channel string, available int64) error
	Invalidate(ctx context.Context, tenantID, variantID, locationID uuid.UUID) error
}

// MovementCommand describes one requested stock movement against a ledger
// row. Quantity is always positive; the movement type decides the sign.
type MovementCommand struct {
	TenantID   uuid.UUID
	VariantID  uuid.UUID
	LocationID uuid.UUID
	Quantity   int64
	Reason     string
	Reference  string
	Actor      string
	UnitCost   *decimal.Decimal // restocks only
}

// LedgerService owns the ledger rows and the movement log. Every counter
// change goes through a movement applied and persisted in one transaction,
// guarded by the row's version.
type LedgerService struct {
	txScope        TransactionScope
	itemRepo       inventory.ItemRepository
	movementRepo   inventory.MovementRepository
	eventPublisher shared.EventPublisher
	cache          AvailabilityCache
	logger         *zap.Logger
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(
	txScope TransactionScope,
	itemRepo inventory.ItemRepository,
	movementRepo inventory.MovementRepository,
	logger *zap.Logger,
) *LedgerService {
	return &LedgerService{
		txScope:      txScope,
		itemRepo:     itemRepo,
		movementRepo: movementRepo,
		logger:       logger,
	}
}

// SetEventPublisher sets the publisher for domain events raised by movements
func (s *LedgerService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetAvailabilityCache sets the read cache for availability lookups
func (s *LedgerService) SetAvailabilityCache(cache AvailabilityCache) {
	s.cache = cache
}

// RecordRestock credits received units to a ledger row, creating the row on
// first receipt. A unit cost on the command folds into the row's
// moving-average cost.
func (s *LedgerService) RecordRestock(ctx context.Context, cmd MovementCommand) (*inventory.InventoryItem, error) {
	if cmd.Quantity <= 0 {
		return nil, inventory.NewValidationError("quantity", "restock quantity must be positive")
	}
	return s.applyMovement(ctx, cmd, inventory.MovementRestock, cmd.Quantity, true)
}

// RecordSale debits units sold outside a reservation, such as a walk-in
// point-of-sale purchase. The row must exist and carry enough unreserved
// on-hand quantity.
func (s *LedgerService) RecordSale(ctx context.Context, cmd MovementCommand) (*inventory.InventoryItem, error) {
	if cmd.Quantity <= 0 {
		return nil, inventory.NewValidationError("quantity", "sale quantity must be positive")
	}
	return s.applyMovement(ctx, cmd, inventory.MovementSale, -cmd.Quantity, false)
}

// RecordReturn credits customer-returned units back to a row
func (s *LedgerService) RecordReturn(ctx context.Context, cmd MovementCommand) (*inventory.InventoryItem, error) {
	if cmd.Quantity <= 0 {
		return nil, inventory.NewValidationError("quantity", "return quantity must be positive")
	}
	return s.applyMovement(ctx, cmd, inventory.MovementReturn, cmd.Quantity, true)
}

// RecordAdjustment corrects a row's on-hand count by a signed delta after a
// physical count. A positive delta on a missing row creates it.
func (s *LedgerService) RecordAdjustment(ctx context.Context, cmd MovementCommand, delta int64) (*inventory.InventoryItem, error) {
	if delta == 0 {
		return nil, inventory.NewValidationError("delta", "adjustment delta cannot be zero")
	}
	return s.applyMovement(ctx, cmd, inventory.MovementAdjustment, delta, delta > 0)
}

// SetStockLevel records whatever adjustment brings a row's on-hand count to
// the given absolute level, creating the row if needed. A level matching the
// current count still stamps the row as counted, without a movement.
func (s *LedgerService) SetStockLevel(ctx context.Context, cmd MovementCommand, newOnHand int64) (*inventory.InventoryItem, error) {
	if newOnHand < 0 {
		return nil, inventory.NewValidationError("newOnHand", "stock level cannot be negative")
	}

	var (
		item   *inventory.InventoryItem
		events []shared.DomainEvent
	)
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		events = nil
		item, err = repos.ItemRepo().GetOrCreate(ctx, cmd.TenantID, cmd.VariantID, cmd.LocationID)
		if err != nil {
			return err
		}

		delta := newOnHand - item.OnHand
		if delta == 0 {
			item.MarkCounted()
			item.IncrementVersion()
			return repos.ItemRepo().SaveWithLock(ctx, item)
		}

		movement, err := inventory.NewStockMovement(
			cmd.TenantID, cmd.VariantID, cmd.LocationID,
			inventory.MovementAdjustment, delta, cmd.Reason, cmd.Reference, cmd.Actor,
		)
		if err != nil {
			return err
		}
		if err := item.ApplyMovement(movement); err != nil {
			return err
		}
		item.IncrementVersion()
		if err := repos.ItemRepo().SaveWithLock(ctx, item); err != nil {
			return err
		}
		if err := repos.MovementRepo().Create(ctx, movement); err != nil {
			return err
		}

		events = append(item.GetDomainEvents(), inventory.NewStockMovementAppliedEvent(movement))
		item.ClearDomainEvents()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvents(ctx, events)
	s.invalidateAvailability(ctx, cmd.TenantID, cmd.VariantID, cmd.LocationID)
	return item, nil
}

// BatchMovementEntry is one movement in a batch application. Adjustments
// carry their signed delta in Delta; every other type carries a positive
// Quantity on the command and the type decides the sign.
type BatchMovementEntry struct {
	Type    inventory.MovementType
	Command MovementCommand
	Delta   int64
}

// BatchEntryResult is the outcome of one batch entry
type BatchEntryResult struct {
	Index int
	Item  *inventory.InventoryItem
	Err   error
}

// BatchMovementResult reports per-entry outcomes of a batch application
type BatchMovementResult struct {
	Applied int
	Failed  int
	Results []BatchEntryResult
}

// RecordMovements applies a batch of movements, each in its own transaction.
// Entries succeed or fail independently; one bad line never rolls back the
// rest. Only direct movement types are accepted; reservation and transfer
// movements belong to their coordinators.
func (s *LedgerService) RecordMovements(ctx context.Context, entries []BatchMovementEntry) *BatchMovementResult {
	result := &BatchMovementResult{
		Results: make([]BatchEntryResult, 0, len(entries)),
	}
	for i, entry := range entries {
		var (
			item *inventory.InventoryItem
			err  error
		)
		switch entry.Type {
		case inventory.MovementRestock:
			item, err = s.RecordRestock(ctx, entry.Command)
		case inventory.MovementSale:
			item, err = s.RecordSale(ctx, entry.Command)
		case inventory.MovementReturn:
			item, err = s.RecordReturn(ctx, entry.Command)
		case inventory.MovementAdjustment:
			item, err = s.RecordAdjustment(ctx, entry.Command, entry.Delta)
		default:
			err = inventory.NewValidationError("type", "movement type not accepted in batches")
		}

		if err != nil {
			result.Failed++
		} else {
			result.Applied++
		}
		result.Results = append(result.Results, BatchEntryResult{Index: i, Item: item, Err: err})
	}
	return result
}

// applyMovement runs the single write path for ledger counters: load or
// create the row, build the movement, apply it to the counters, then save
// the row with its version check and append the movement in one transaction.
func (s *LedgerService) applyMovement(
	ctx context.Context,
	cmd MovementCommand,
	movementType inventory.MovementType,
	delta int64,
	createRow bool,
) (*inventory.InventoryItem, error) {
	var (
		item   *inventory.InventoryItem
		events []shared.DomainEvent
	)

	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		if createRow {
			item, err = repos.ItemRepo().GetOrCreate(ctx, cmd.TenantID, cmd.VariantID, cmd.LocationID)
		} else {
			item, err = repos.ItemRepo().FindByRow(ctx, cmd.TenantID, cmd.VariantID, cmd.LocationID)
			if errors.Is(err, shared.ErrNotFound) {
				return inventory.NewInsufficientInventoryError(cmd.VariantID, cmd.LocationID, -delta, 0)
			}
		}
		if err != nil {
			return err
		}

		movement, err := inventory.NewStockMovement(
			cmd.TenantID, cmd.VariantID, cmd.LocationID,
			movementType, delta, cmd.Reason, cmd.Reference, cmd.Actor,
		)
		if err != nil {
			return err
		}
		if cmd.UnitCost != nil {
			movement.WithUnitCost(*cmd.UnitCost)
		}

		if err := item.ApplyMovement(movement); err != nil {
			return err
		}
		item.IncrementVersion()
		if err := repos.ItemRepo().SaveWithLock(ctx, item); err != nil {
			return err
		}
		if err := repos.MovementRepo().Create(ctx, movement); err != nil {
			return err
		}

		events = append(item.GetDomainEvents(), inventory.NewStockMovementAppliedEvent(movement))
		item.ClearDomainEvents()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvents(ctx, events)
	s.invalidateAvailability(ctx, cmd.TenantID, cmd.VariantID, cmd.LocationID)

	s.logger.Debug("Applied stock movement",
		zap.String("tenant_id", cmd.TenantID.String()),
		zap.String("variant_id", cmd.VariantID.String()),
		zap.String("location_id", cmd.LocationID.String()),
		zap.String("type", movementType.String()),
		zap.Int64("delta", delta),
	)
	return item, nil
}

// SetSafetyStock updates a row's safety floor, creating the row if needed
func (s *LedgerService) SetSafetyStock(ctx context.Context, tenantID, variantID, locationID uuid.UUID, level int64) (*inventory.InventoryItem, error) {
	var item *inventory.InventoryItem
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		item, err = repos.ItemRepo().GetOrCreate(ctx, tenantID, variantID, locationID)
		if err != nil {
			return err
		}
		if err := item.SetSafetyStock(level); err != nil {
			return err
		}
		item.IncrementVersion()
		return repos.ItemRepo().SaveWithLock(ctx, item)
	})
	if err != nil {
		return nil, err
	}
	s.invalidateAvailability(ctx, tenantID, variantID, locationID)
	return item, nil
}

// SetChannelBuffer updates the buffer withheld from one channel on a row
func (s *LedgerService) SetChannelBuffer(ctx context.Context, tenantID, variantID, locationID uuid.UUID, channel string, qty int64) (*inventory.InventoryItem, error) {
	var item *inventory.InventoryItem
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		item, err = repos.ItemRepo().GetOrCreate(ctx, tenantID, variantID, locationID)
		if err != nil {
			return err
		}
		if err := item.SetChannelBuffer(channel, qty); err != nil {
			return err
		}
		item.IncrementVersion()
		return repos.ItemRepo().SaveWithLock(ctx, item)
	})
	if err != nil {
		return nil, err
	}
	s.invalidateAvailability(ctx, tenantID, variantID, locationID)
	return item, nil
}

// GetRow loads one ledger row
func (s *LedgerService) GetRow(ctx context.Context, tenantID, variantID, locationID uuid.UUID) (*inventory.InventoryItem, error) {
	return s.itemRepo.FindByRow(ctx, tenantID, variantID, locationID)
}

// ListRows pages through a tenant's ledger rows
func (s *LedgerService) ListRows(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (shared.Paginated[*inventory.InventoryItem], error) {
	return s.itemRepo.FindAll(ctx, tenantID, filter)
}

// GetAvailability returns the sellable quantity for one channel at one
// location. Rows that do not exist have zero availability.
func (s *LedgerService) GetAvailability(ctx context.Context, tenantID, variantID, locationID uuid.UUID, channel string) (int64, error) {
	if s.cache != nil {
		if available, ok, err := s.cache.Get(ctx, tenantID, variantID, locationID, channel); err != nil {
			s.logger.Warn("Availability cache read failed", zap.Error(err))
		} else if ok {
			return available, nil
		}
	}

	item, err := s.itemRepo.FindByRow(ctx, tenantID, variantID, locationID)
	if errors.Is(err, shared.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	available := item.AvailableToSell(channel)
	if s.cache != nil {
		if err := s.cache.Set(ctx, tenantID, variantID, locationID, channel, available); err != nil {
			s.logger.Warn("Availability cache write failed", zap.Error(err))
		}
	}
	return available, nil
}

// GetVariantAvailability sums a variant's sellable quantity for one channel
// across all locations
func (s *LedgerService) GetVariantAvailability(ctx context.Context, tenantID, variantID uuid.UUID, channel string) (int64, error) {
	items, err := s.itemRepo.FindByVariant(ctx, tenantID, variantID)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, item := range items {
		total += item.AvailableToSell(channel)
	}
	return total, nil
}

// GetMovementHistory pages through a row's movement log, newest first
func (s *LedgerService) GetMovementHistory(ctx context.Context, tenantID, variantID, locationID uuid.UUID, filter shared.Filter) (shared.Paginated[*inventory.StockMovement], error) {
	return s.movementRepo.FindByRow(ctx, tenantID, variantID, locationID, filter)
}

// GetVariantMovementHistory pages through a variant's movement log across
// all of the tenant's locations, newest first
func (s *LedgerService) GetVariantMovementHistory(ctx context.Context, tenantID, variantID uuid.UUID, filter shared.Filter) (shared.Paginated[*inventory.StockMovement], error) {
	return s.movementRepo.FindByVariant(ctx, tenantID, variantID, filter)
}

// GetMovementsByReference returns the movements recorded for an external
// reference such as an order or transfer ID
func (s *LedgerService) GetMovementsByReference(ctx context.Context, tenantID uuid.UUID, reference string) ([]*inventory.StockMovement, error) {
	return s.movementRepo.FindByReference(ctx, tenantID, reference)
}

func (s *LedgerService) publishEvents(ctx context.Context, events []shared.DomainEvent) {
	if s.eventPublisher == nil || len(events) == 0 {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("Failed to publish domain events", zap.Error(err))
	}
}

func (s *LedgerService) invalidateAvailability(ctx context.Context, tenantID, variantID, locationID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, tenantID, variantID, locationID); err != nil {
		s.logger.Warn("Availability cache invalidation failed", zap.Error(err))
	}
}
