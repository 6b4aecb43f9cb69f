package inventory

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stockledger/backend/internal/domain/inventory"
	"github.com/stockledger/backend/internal/domain/shared"
)

// suggestionWindowDays is the trailing sales window used to estimate
// per-location demand when proposing rebalancing transfers
const suggestionWindowDays = 30

// suggestionTargetCover is how many days of demand a location should be
// able to serve before it is considered a donor
const suggestionTargetCover = 14.0

// TransferCommand describes a requested move of quantity between two
// locations of one tenant
type TransferCommand struct {
	TenantID       uuid.UUID
	VariantID      uuid.UUID
	FromLocationID uuid.UUID
	ToLocationID   uuid.UUID
	Quantity       int64
	Reason         string
	Reference      string
	Notes          string
	RequestedBy    string
}

// TransferSuggestion proposes moving quantity from an overstocked location
// to one that cannot cover its demand
type TransferSuggestion struct {
	VariantID      uuid.UUID `json:"variant_id"`
	FromLocationID uuid.UUID `json:"from_location_id"`
	ToLocationID   uuid.UUID `json:"to_location_id"`
	Quantity       int64     `json:"quantity"`
	FromDaysCover  float64   `json:"from_days_cover"` // negative means no demand observed
	ToDaysCover    float64   `json:"to_days_cover"`
}

// TransferService coordinates stock transfers between locations. Creating a
// transfer debits the source in the same transaction, so a pending transfer
// is quantity in transit: already gone from the source, not yet arrived at
// the destination. Completion credits the destination; cancellation credits
// the source back. The tenant-wide total for a variant is preserved across
// every step.
type TransferService struct {
	txScope        TransactionScope
	transferRepo   inventory.TransferRepository
	itemRepo       inventory.ItemRepository
	movementRepo   inventory.MovementRepository
	eventPublisher shared.EventPublisher
	cache          AvailabilityCache
	logger         *zap.Logger
}

// NewTransferService creates a new TransferService
func NewTransferService(
	txScope TransactionScope,
	transferRepo inventory.TransferRepository,
	itemRepo inventory.ItemRepository,
	movementRepo inventory.MovementRepository,
	logger *zap.Logger,
) *TransferService {
	return &TransferService{
		txScope:      txScope,
		transferRepo: transferRepo,
		itemRepo:     itemRepo,
		movementRepo: movementRepo,
		logger:       logger,
	}
}

// SetEventPublisher sets the publisher for domain events
func (s *TransferService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetAvailabilityCache sets the cache invalidated after transfer steps
func (s *TransferService) SetAvailabilityCache(cache AvailabilityCache) {
	s.cache = cache
}

// CreateTransfer records a transfer and debits the source location in one
// transaction. The source must hold enough unreserved on-hand quantity;
// reserved stock never travels.
func (s *TransferService) CreateTransfer(ctx context.Context, cmd TransferCommand) (*inventory.InventoryTransfer, error) {
	transfer, err := inventory.NewInventoryTransfer(
		cmd.TenantID, cmd.VariantID, cmd.FromLocationID, cmd.ToLocationID,
		cmd.Quantity, cmd.Reason, cmd.Reference, cmd.Notes, cmd.RequestedBy,
	)
	if err != nil {
		return nil, err
	}

	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		source, err := repos.ItemRepo().FindByRow(ctx, cmd.TenantID, cmd.VariantID, cmd.FromLocationID)
		if errors.Is(err, shared.ErrNotFound) {
			return inventory.NewInsufficientInventoryError(cmd.VariantID, cmd.FromLocationID, cmd.Quantity, 0)
		}
		if err != nil {
			return err
		}

		out, err := inventory.NewStockMovement(
			cmd.TenantID, cmd.VariantID, cmd.FromLocationID,
			inventory.MovementTransferOut, -cmd.Quantity,
			cmd.Reason, transfer.ID.String(), cmd.RequestedBy,
		)
		if err != nil {
			return err
		}
		if err := source.ApplyMovement(out); err != nil {
			return err
		}
		source.IncrementVersion()

		if err := repos.ItemRepo().SaveWithLock(ctx, source); err != nil {
			return err
		}
		if err := repos.MovementRepo().Create(ctx, out); err != nil {
			return err
		}
		return repos.TransferRepo().Save(ctx, transfer)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateRow(ctx, cmd.TenantID, cmd.VariantID, cmd.FromLocationID)
	s.logger.Info("Created transfer",
		zap.String("transfer_id", transfer.ID.String()),
		zap.String("variant_id", cmd.VariantID.String()),
		zap.Int64("quantity", cmd.Quantity),
	)
	return transfer, nil
}

// CompleteTransfer credits a pending transfer's quantity to its destination
// row, creating the row on first receipt, and marks the transfer completed.
func (s *TransferService) CompleteTransfer(ctx context.Context, tenantID, transferID uuid.UUID, actor string) (*inventory.InventoryTransfer, error) {
	var transfer *inventory.InventoryTransfer

	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		transfer, err = repos.TransferRepo().FindByID(ctx, tenantID, transferID)
		if err != nil {
			return err
		}
		if err := transfer.Complete(); err != nil {
			return err
		}

		destination, err := repos.ItemRepo().GetOrCreate(ctx, tenantID, transfer.VariantID, transfer.ToLocationID)
		if err != nil {
			return err
		}
		in, err := inventory.NewStockMovement(
			tenantID, transfer.VariantID, transfer.ToLocationID,
			inventory.MovementTransferIn, transfer.Quantity,
			transfer.Reason, transfer.ID.String(), actor,
		)
		if err != nil {
			return err
		}
		if err := destination.ApplyMovement(in); err != nil {
			return err
		}
		destination.IncrementVersion()

		if err := repos.ItemRepo().SaveWithLock(ctx, destination); err != nil {
			return err
		}
		if err := repos.MovementRepo().Create(ctx, in); err != nil {
			return err
		}
		transfer.IncrementVersion()
		return repos.TransferRepo().SaveWithLock(ctx, transfer)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateRow(ctx, tenantID, transfer.VariantID, transfer.ToLocationID)
	s.publishCompleted(ctx, transfer)

	s.logger.Info("Completed transfer",
		zap.String("transfer_id", transfer.ID.String()),
		zap.String("variant_id", transfer.VariantID.String()),
		zap.Int64("quantity", transfer.Quantity),
	)
	return transfer, nil
}

// CancelTransfer abandons a pending transfer and credits its quantity back
// to the source location with a compensating movement.
func (s *TransferService) CancelTransfer(ctx context.Context, tenantID, transferID uuid.UUID, actor string) (*inventory.InventoryTransfer, error) {
	var transfer *inventory.InventoryTransfer
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		transfer, err = repos.TransferRepo().FindByID(ctx, tenantID, transferID)
		if err != nil {
			return err
		}
		if err := transfer.Cancel(); err != nil {
			return err
		}

		source, err := repos.ItemRepo().FindByRow(ctx, tenantID, transfer.VariantID, transfer.FromLocationID)
		if err != nil {
			return err
		}
		in, err := inventory.NewStockMovement(
			tenantID, transfer.VariantID, transfer.FromLocationID,
			inventory.MovementTransferIn, transfer.Quantity,
			"transfer cancelled", transfer.ID.String(), actor,
		)
		if err != nil {
			return err
		}
		if err := source.ApplyMovement(in); err != nil {
			return err
		}
		source.IncrementVersion()

		if err := repos.ItemRepo().SaveWithLock(ctx, source); err != nil {
			return err
		}
		if err := repos.MovementRepo().Create(ctx, in); err != nil {
			return err
		}
		transfer.IncrementVersion()
		return repos.TransferRepo().SaveWithLock(ctx, transfer)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateRow(ctx, tenantID, transfer.VariantID, transfer.FromLocationID)
	s.logger.Info("Cancelled transfer",
		zap.String("transfer_id", transfer.ID.String()),
		zap.Int64("quantity", transfer.Quantity),
	)
	return transfer, nil
}

// ValidateTransfer runs the creation checks without mutating any state, for
// pre-flight validation in calling surfaces.
func (s *TransferService) ValidateTransfer(ctx context.Context, cmd TransferCommand) error {
	if _, err := inventory.NewInventoryTransfer(
		cmd.TenantID, cmd.VariantID, cmd.FromLocationID, cmd.ToLocationID,
		cmd.Quantity, cmd.Reason, cmd.Reference, cmd.Notes, cmd.RequestedBy,
	); err != nil {
		return err
	}

	source, err := s.itemRepo.FindByRow(ctx, cmd.TenantID, cmd.VariantID, cmd.FromLocationID)
	if errors.Is(err, shared.ErrNotFound) {
		return inventory.NewInsufficientInventoryError(cmd.VariantID, cmd.FromLocationID, cmd.Quantity, 0)
	}
	if err != nil {
		return err
	}
	if unreserved := source.OnHand - source.Reserved; unreserved < cmd.Quantity {
		return inventory.NewInsufficientInventoryError(cmd.VariantID, cmd.FromLocationID, cmd.Quantity, unreserved)
	}
	return nil
}

// GetTransferSuggestions compares per-location availability against demand
// velocity and proposes rebalancing transfers for a variant. Locations
// unable to cover the target window receive stock from locations holding
// more than they need. Read-only; suggestions are never acted on here.
func (s *TransferService) GetTransferSuggestions(ctx context.Context, tenantID, variantID uuid.UUID) ([]TransferSuggestion, error) {
	items, err := s.itemRepo.FindByVariant(ctx, tenantID, variantID)
	if err != nil {
		return nil, err
	}

	type position struct {
		locationID uuid.UUID
		available  int64
		perDay     float64
		daysCover  float64
		surplus    int64 // units beyond the target cover
		deficit    int64 // units missing to reach the target cover
	}

	now := time.Now()
	since := now.AddDate(0, 0, -suggestionWindowDays)
	positions := make([]position, 0, len(items))
	for _, item := range items {
		sum, err := s.movementRepo.SumDeltas(ctx, tenantID, variantID, item.LocationID,
			[]inventory.MovementType{inventory.MovementSale}, since, now)
		if err != nil {
			return nil, err
		}

		p := position{
			locationID: item.LocationID,
			available:  item.ReservablePool(),
			perDay:     float64(-sum) / float64(suggestionWindowDays),
			daysCover:  -1,
		}
		if p.available < 0 {
			p.available = 0
		}
		target := int64(p.perDay * suggestionTargetCover)
		if p.perDay > 0 {
			p.daysCover = float64(p.available) / p.perDay
		}
		switch {
		case p.available > target && p.perDay == 0 && p.available > 0:
			// no observed demand here; everything above zero can travel
			p.surplus = p.available
		case p.available > target:
			p.surplus = p.available - target
		case p.available < target:
			p.deficit = target - p.available
		}
		positions = append(positions, p)
	}

	donors := make([]position, 0, len(positions))
	takers := make([]position, 0, len(positions))
	for _, p := range positions {
		if p.surplus > 0 {
			donors = append(donors, p)
		}
		if p.deficit > 0 {
			takers = append(takers, p)
		}
	}
	sort.Slice(donors, func(i, j int) bool { return donors[i].surplus > donors[j].surplus })
	sort.Slice(takers, func(i, j int) bool { return takers[i].deficit > takers[j].deficit })

	suggestions := make([]TransferSuggestion, 0)
	di := 0
	for _, taker := range takers {
		need := taker.deficit
		for need > 0 && di < len(donors) {
			donor := &donors[di]
			qty := donor.surplus
			if qty > need {
				qty = need
			}
			if qty > 0 {
				suggestions = append(suggestions, TransferSuggestion{
					VariantID:      variantID,
					FromLocationID: donor.locationID,
					ToLocationID:   taker.locationID,
					Quantity:       qty,
					FromDaysCover:  donor.daysCover,
					ToDaysCover:    taker.daysCover,
				})
				donor.surplus -= qty
				need -= qty
			}
			if donor.surplus == 0 {
				di++
			}
		}
	}
	return suggestions, nil
}

// GetTransfer loads one transfer
func (s *TransferService) GetTransfer(ctx context.Context, tenantID, transferID uuid.UUID) (*inventory.InventoryTransfer, error) {
	return s.transferRepo.FindByID(ctx, tenantID, transferID)
}

// ListTransfers pages through a tenant's transfers, optionally in one status
func (s *TransferService) ListTransfers(ctx context.Context, tenantID uuid.UUID, status inventory.TransferStatus, filter shared.Filter) (shared.Paginated[*inventory.InventoryTransfer], error) {
	return s.transferRepo.FindByStatus(ctx, tenantID, status, filter)
}

func (s *TransferService) publishCompleted(ctx context.Context, transfer *inventory.InventoryTransfer) {
	if s.eventPublisher == nil {
		return
	}
	event := inventory.NewTransferCompletedEvent(transfer)
	if err := s.eventPublisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish transfer completed event",
			zap.String("transfer_id", transfer.ID.String()),
			zap.Error(err),
		)
	}
}

func (s *TransferService) invalidateRow(ctx context.Context, tenantID, variantID, locationID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, tenantID, variantID, locationID); err != nil {
		s.logger.Warn("Availability cache invalidation failed", zap.Error(err))
	}
}
