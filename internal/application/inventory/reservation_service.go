package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stockledger/backend/internal/domain/inventory"
	"github.com/stockledger/backend/internal/domain/shared"
)

const (
	// DefaultReservationTTL is applied when a reserve command carries no TTL
	DefaultReservationTTL = 30 * time.Minute
)

// ReserveCommand describes a requested hold of quantity for an order
type ReserveCommand struct {
	TenantID   uuid.UUID
	VariantID  uuid.UUID
	LocationID uuid.UUID
	OrderID    string
	Channel    string
	Quantity   int64
	Actor      string
	TTL        time.Duration // zero means the service default
}

// ReservationService manages the reservation lifecycle. Reservations draw
// from the shared pool above the safety floor; channel buffers shape what a
// storefront displays but never block an order that is actually being
// placed.
type ReservationService struct {
	txScope         TransactionScope
	reservationRepo inventory.ReservationRepository
	eventPublisher  shared.EventPublisher
	cache           AvailabilityCache
	defaultTTL      time.Duration
	logger          *zap.Logger
}

// NewReservationService creates a new ReservationService
func NewReservationService(
	txScope TransactionScope,
	reservationRepo inventory.ReservationRepository,
	defaultTTL time.Duration,
	logger *zap.Logger,
) *ReservationService {
	if defaultTTL <= 0 {
		defaultTTL = DefaultReservationTTL
	}
	return &ReservationService{
		txScope:         txScope,
		reservationRepo: reservationRepo,
		defaultTTL:      defaultTTL,
		logger:          logger,
	}
}

// SetEventPublisher sets the publisher for domain events
func (s *ReservationService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetAvailabilityCache sets the cache invalidated after reservation changes
func (s *ReservationService) SetAvailabilityCache(cache AvailabilityCache) {
	s.cache = cache
}

// Reserve holds quantity against a ledger row for an order. The hold is
// admitted against the pool above the safety floor; it fails with
// InsufficientInventoryError when the pool cannot cover the quantity.
func (s *ReservationService) Reserve(ctx context.Context, cmd ReserveCommand) (*inventory.InventoryReservation, error) {
	ttl := cmd.TTL
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	reservation, err := inventory.NewInventoryReservation(
		cmd.TenantID, cmd.VariantID, cmd.LocationID,
		cmd.OrderID, cmd.Channel, cmd.Quantity, ttl,
	)
	if err != nil {
		return nil, err
	}

	err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		item, err := repos.ItemRepo().FindByRow(ctx, cmd.TenantID, cmd.VariantID, cmd.LocationID)
		if errors.Is(err, shared.ErrNotFound) {
			return inventory.NewInsufficientInventoryError(cmd.VariantID, cmd.LocationID, cmd.Quantity, 0)
		}
		if err != nil {
			return err
		}

		if pool := item.ReservablePool(); pool < cmd.Quantity {
			if pool < 0 {
				pool = 0
			}
			return inventory.NewInsufficientInventoryError(cmd.VariantID, cmd.LocationID, cmd.Quantity, pool)
		}

		hold, err := inventory.NewStockMovement(
			cmd.TenantID, cmd.VariantID, cmd.LocationID,
			inventory.MovementReservationHold, cmd.Quantity,
			"reservation created", cmd.OrderID, cmd.Actor,
		)
		if err != nil {
			return err
		}
		if err := item.ApplyMovement(hold); err != nil {
			return err
		}
		item.IncrementVersion()

		if err := repos.ItemRepo().SaveWithLock(ctx, item); err != nil {
			return err
		}
		if err := repos.MovementRepo().Create(ctx, hold); err != nil {
			return err
		}
		return repos.ReservationRepo().Save(ctx, reservation)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateRow(ctx, cmd.TenantID, cmd.VariantID, cmd.LocationID)
	s.logger.Debug("Created reservation",
		zap.String("reservation_id", reservation.ID.String()),
		zap.String("order_id", cmd.OrderID),
		zap.Int64("quantity", cmd.Quantity),
	)
	return reservation, nil
}

// Release cancels a reservation and gives its quantity back to the pool.
// Releasing a reservation that was already released or swept as expired is
// a no-op, so order-cancellation paths can retry safely. Releasing a
// consumed reservation is an error.
func (s *ReservationService) Release(ctx context.Context, tenantID, reservationID uuid.UUID, actor string) error {
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		reservation, err := repos.ReservationRepo().FindByID(ctx, tenantID, reservationID)
		if err != nil {
			return err
		}

		switch reservation.Status {
		case inventory.ReservationReleased, inventory.ReservationExpired:
			return nil // quantity already returned
		case inventory.ReservationConsumed:
			return inventory.NewInvalidStateTransitionError("reservation",
				reservation.Status.String(), inventory.ReservationReleased.String())
		}

		return releaseReservation(ctx, repos, reservation, actor, func() error {
			return reservation.Release()
		})
	})
	if err != nil {
		return err
	}
	s.invalidateForReservation(ctx, tenantID, reservationID)
	return nil
}

// ReleaseByOrder releases all active reservations referencing an order,
// returning how many were released. Used when an order is cancelled.
func (s *ReservationService) ReleaseByOrder(ctx context.Context, tenantID uuid.UUID, orderID, actor string) (int, error) {
	released := 0
	var touched []*inventory.InventoryReservation
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		released = 0
		touched = touched[:0]
		reservations, err := repos.ReservationRepo().FindActiveByOrder(ctx, tenantID, orderID)
		if err != nil {
			return err
		}
		for _, reservation := range reservations {
			err := releaseReservation(ctx, repos, reservation, actor, reservation.Release)
			if err != nil {
				return err
			}
			released++
			touched = append(touched, reservation)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, reservation := range touched {
		s.invalidateRow(ctx, tenantID, reservation.VariantID, reservation.LocationID)
	}
	if released > 0 {
		s.logger.Info("Released reservations for order",
			zap.String("tenant_id", tenantID.String()),
			zap.String("order_id", orderID),
			zap.Int("count", released),
		)
	}
	return released, nil
}

// Consume fulfills an active reservation: the reserved quantity leaves
// on-hand as a sale and the hold is closed, in one transaction. Consuming
// an expired or otherwise non-active reservation is an error; the caller
// must place a new reservation.
func (s *ReservationService) Consume(ctx context.Context, tenantID, reservationID uuid.UUID, actor string) error {
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		reservation, err := repos.ReservationRepo().FindByID(ctx, tenantID, reservationID)
		if err != nil {
			return err
		}
		// a reservation past its deadline but not yet swept cannot be consumed
		if reservation.IsExpired(time.Now()) {
			return inventory.NewInvalidStateTransitionError("reservation",
				inventory.ReservationExpired.String(), inventory.ReservationConsumed.String())
		}
		if err := reservation.Consume(); err != nil {
			return err
		}

		item, err := repos.ItemRepo().FindByRow(ctx, tenantID, reservation.VariantID, reservation.LocationID)
		if err != nil {
			return err
		}

		// release the hold before debiting on-hand so the reserved-within-
		// on-hand check sees consistent counters
		release, err := inventory.NewStockMovement(
			tenantID, reservation.VariantID, reservation.LocationID,
			inventory.MovementReservationRelease, -reservation.Quantity,
			"reservation consumed", reservation.OrderID, actor,
		)
		if err != nil {
			return err
		}
		if err := item.ApplyMovement(release); err != nil {
			return err
		}

		sale, err := inventory.NewStockMovement(
			tenantID, reservation.VariantID, reservation.LocationID,
			inventory.MovementSale, -reservation.Quantity,
			"reservation consumed", reservation.OrderID, actor,
		)
		if err != nil {
			return err
		}
		if err := item.ApplyMovement(sale); err != nil {
			return err
		}
		item.IncrementVersion()

		if err := repos.ItemRepo().SaveWithLock(ctx, item); err != nil {
			return err
		}
		if err := repos.MovementRepo().Create(ctx, release); err != nil {
			return err
		}
		if err := repos.MovementRepo().Create(ctx, sale); err != nil {
			return err
		}
		reservation.IncrementVersion()
		return repos.ReservationRepo().SaveWithLock(ctx, reservation)
	})
	if err != nil {
		return err
	}
	s.invalidateForReservation(ctx, tenantID, reservationID)
	return nil
}

// GetReservation loads one reservation
func (s *ReservationService) GetReservation(ctx context.Context, tenantID, reservationID uuid.UUID) (*inventory.InventoryReservation, error) {
	return s.reservationRepo.FindByID(ctx, tenantID, reservationID)
}

// CountActive counts a tenant's active reservations
func (s *ReservationService) CountActive(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return s.reservationRepo.CountActive(ctx, tenantID)
}

// releaseReservation closes a reservation via transition and applies the
// matching release movement to its ledger row
func releaseReservation(
	ctx context.Context,
	repos TransactionalRepositories,
	reservation *inventory.InventoryReservation,
	actor string,
	transition func() error,
) error {
	if err := transition(); err != nil {
		return err
	}

	item, err := repos.ItemRepo().FindByRow(ctx, reservation.TenantID, reservation.VariantID, reservation.LocationID)
	if err != nil {
		return err
	}

	release, err := inventory.NewStockMovement(
		reservation.TenantID, reservation.VariantID, reservation.LocationID,
		inventory.MovementReservationRelease, -reservation.Quantity,
		"reservation "+reservation.Status.String(), reservation.OrderID, actor,
	)
	if err != nil {
		return err
	}
	if err := item.ApplyMovement(release); err != nil {
		return err
	}
	item.IncrementVersion()

	if err := repos.ItemRepo().SaveWithLock(ctx, item); err != nil {
		return err
	}
	if err := repos.MovementRepo().Create(ctx, release); err != nil {
		return err
	}
	reservation.IncrementVersion()
	return repos.ReservationRepo().SaveWithLock(ctx, reservation)
}

func (s *ReservationService) invalidateForReservation(ctx context.Context, tenantID, reservationID uuid.UUID) {
	if s.cache == nil {
		return
	}
	reservation, err := s.reservationRepo.FindByID(ctx, tenantID, reservationID)
	if err != nil {
		return
	}
	s.invalidateRow(ctx, tenantID, reservation.VariantID, reservation.LocationID)
}

func (s *ReservationService) invalidateRow(ctx context.Context, tenantID, variantID, locationID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, tenantID, variantID, locationID); err != nil {
		s.logger.Warn("Availability cache invalidation failed", zap.Error(err))
	}
}
