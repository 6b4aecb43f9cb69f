package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stockledger/backend/internal/domain/inventory"
	"github.com/stockledger/backend/internal/domain/shared"
)

// GormReservationRepository implements inventory.ReservationRepository
// using GORM
type GormReservationRepository struct {
	db *gorm.DB
}

// NewGormReservationRepository creates a new GormReservationRepository
func NewGormReservationRepository(db *gorm.DB) *GormReservationRepository {
	return &GormReservationRepository{db: db}
}

// FindByID finds one reservation within a tenant
func (r *GormReservationRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*inventory.InventoryReservation, error) {
	var reservation inventory.InventoryReservation
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&reservation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &reservation, nil
}

// FindActiveByOrder returns the active reservations referencing an order
func (r *GormReservationRepository) FindActiveByOrder(ctx context.Context, tenantID uuid.UUID, orderID string) ([]*inventory.InventoryReservation, error) {
	var reservations []*inventory.InventoryReservation
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND order_id = ? AND status = ?", tenantID, orderID, inventory.ReservationActive).
		Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

// FindExpired returns active reservations past their deadline across all
// tenants, oldest deadline first. This is the only cross-tenant read in the
// store; it feeds the expiry sweep and each returned row carries its own
// tenant ID for the per-reservation transaction.
func (r *GormReservationRepository) FindExpired(ctx context.Context, cutoff time.Time, limit int) ([]*inventory.InventoryReservation, error) {
	var reservations []*inventory.InventoryReservation
	query := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", inventory.ReservationActive, cutoff).
		Order("expires_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

// CountActive counts a tenant's active reservations
func (r *GormReservationRepository) CountActive(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&inventory.InventoryReservation{}).
		Where("tenant_id = ? AND status = ?", tenantID, inventory.ReservationActive).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates or updates a reservation without a version check
func (r *GormReservationRepository) Save(ctx context.Context, reservation *inventory.InventoryReservation) error {
	if reservation.TenantID == uuid.Nil {
		return shared.ErrMissingTenant
	}
	return r.db.WithContext(ctx).Save(reservation).Error
}

// SaveWithLock updates a reservation guarded by its version, so concurrent
// release, consume and sweep transitions cannot both win. The caller
// increments the version before saving.
func (r *GormReservationRepository) SaveWithLock(ctx context.Context, reservation *inventory.InventoryReservation) error {
	if reservation.TenantID == uuid.Nil {
		return shared.ErrMissingTenant
	}
	result := r.db.WithContext(ctx).
		Model(reservation).
		Where("tenant_id = ? AND id = ? AND version = ?", reservation.TenantID, reservation.ID, reservation.Version-1).
		Updates(map[string]interface{}{
			"status":     reservation.Status,
			"expires_at": reservation.ExpiresAt,
			"closed_at":  reservation.ClosedAt,
			"version":    reservation.Version,
			"updated_at": reservation.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

var _ inventory.ReservationRepository = (*GormReservationRepository)(nil)
