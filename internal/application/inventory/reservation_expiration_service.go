package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stockledger/backend/internal/domain/inventory"
	"github.com/stockledger/backend/internal/domain/shared"
)

// DefaultSweepBatchSize bounds how many overdue reservations one sweep
// pass reclaims
const DefaultSweepBatchSize = 500

// ReservationExpirationService reclaims overdue reservations. It is the
// single writer for the expired transition: nothing else moves a
// reservation to expired, so the sweep never races itself.
type ReservationExpirationService struct {
	txScope         TransactionScope
	reservationRepo inventory.ReservationRepository
	eventPublisher  shared.EventPublisher
	batchSize       int
	logger          *zap.Logger
}

// NewReservationExpirationService creates a new ReservationExpirationService
func NewReservationExpirationService(
	txScope TransactionScope,
	reservationRepo inventory.ReservationRepository,
	batchSize int,
	logger *zap.Logger,
) *ReservationExpirationService {
	if batchSize <= 0 {
		batchSize = DefaultSweepBatchSize
	}
	return &ReservationExpirationService{
		txScope:         txScope,
		reservationRepo: reservationRepo,
		batchSize:       batchSize,
		logger:          logger,
	}
}

// SetEventPublisher sets the publisher for expiry events
func (s *ReservationExpirationService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SweepStats summarizes one expiry sweep pass
type SweepStats struct {
	TotalExpired  int       `json:"total_expired"`
	SuccessSwept  int       `json:"success_swept"`
	FailedSweeps  int       `json:"failed_sweeps"`
	QuantityFreed int64     `json:"quantity_freed"`
	ProcessedAt   time.Time `json:"processed_at"`
}

// SweepExpired finds active reservations past their deadline across all
// tenants and reclaims each in its own transaction, so one poisoned
// reservation cannot block the rest of the batch.
func (s *ReservationExpirationService) SweepExpired(ctx context.Context) (*SweepStats, error) {
	stats := &SweepStats{ProcessedAt: time.Now()}

	expired, err := s.reservationRepo.FindExpired(ctx, time.Now(), s.batchSize)
	if err != nil {
		s.logger.Error("Failed to find expired reservations", zap.Error(err))
		return nil, err
	}

	stats.TotalExpired = len(expired)
	if stats.TotalExpired == 0 {
		s.logger.Debug("No expired reservations found")
		return stats, nil
	}

	s.logger.Info("Found expired reservations", zap.Int("count", stats.TotalExpired))

	for _, reservation := range expired {
		if err := s.sweepOne(ctx, reservation.TenantID, reservation.ID); err != nil {
			s.logger.Error("Failed to sweep expired reservation",
				zap.String("reservation_id", reservation.ID.String()),
				zap.String("tenant_id", reservation.TenantID.String()),
				zap.String("order_id", reservation.OrderID),
				zap.Error(err),
			)
			stats.FailedSweeps++
			continue
		}
		stats.SuccessSwept++
		stats.QuantityFreed += reservation.Quantity
	}

	s.logger.Info("Completed reservation expiry sweep",
		zap.Int("total", stats.TotalExpired),
		zap.Int("swept", stats.SuccessSwept),
		zap.Int("failed", stats.FailedSweeps),
		zap.Int64("quantity_freed", stats.QuantityFreed),
	)
	return stats, nil
}

// sweepOne reclaims a single reservation. The reservation is re-read
// inside the transaction; a concurrent release or consume between the
// batch query and here simply makes this a no-op.
func (s *ReservationExpirationService) sweepOne(ctx context.Context, tenantID, reservationID uuid.UUID) error {
	var swept *inventory.InventoryReservation

	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		swept = nil
		reservation, err := repos.ReservationRepo().FindByID(ctx, tenantID, reservationID)
		if err != nil {
			return err
		}
		if !reservation.IsExpired(time.Now()) {
			return nil
		}

		if err := releaseReservation(ctx, repos, reservation, "expiry-sweep", reservation.Expire); err != nil {
			return err
		}
		swept = reservation
		return nil
	})
	if err != nil || swept == nil {
		return err
	}

	if s.eventPublisher != nil {
		event := inventory.NewReservationExpiredEvent(swept)
		if err := s.eventPublisher.Publish(ctx, event); err != nil {
			s.logger.Warn("Failed to publish reservation expired event",
				zap.String("reservation_id", swept.ID.String()),
				zap.Error(err),
			)
		}
	}

	s.logger.Debug("Swept expired reservation",
		zap.String("reservation_id", swept.ID.String()),
		zap.String("order_id", swept.OrderID),
		zap.Int64("quantity", swept.Quantity),
	)
	return nil
}

// CountOverdue returns how many active reservations are currently past
// their deadline
func (s *ReservationExpirationService) CountOverdue(ctx context.Context) (int, error) {
	expired, err := s.reservationRepo.FindExpired(ctx, time.Now(), s.batchSize)
	if err != nil {
		return 0, err
	}
	return len(expired), nil
}
