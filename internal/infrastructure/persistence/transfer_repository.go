package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stockledger/backend/internal/domain/inventory"
	"github.com/stockledger/backend/internal/domain/shared"
)

// GormTransferRepository implements inventory.TransferRepository using GORM
type GormTransferRepository struct {
	db *gorm.DB
}

// NewGormTransferRepository creates a new GormTransferRepository
func NewGormTransferRepository(db *gorm.DB) *GormTransferRepository {
	return &GormTransferRepository{db: db}
}

// FindByID finds one transfer within a tenant
func (r *GormTransferRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*inventory.InventoryTransfer, error) {
	var transfer inventory.InventoryTransfer
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&transfer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &transfer, nil
}

// FindByStatus pages through a tenant's transfers. An empty status matches
// every lifecycle state.
func (r *GormTransferRepository) FindByStatus(ctx context.Context, tenantID uuid.UUID, status inventory.TransferStatus, filter shared.Filter) (shared.Paginated[*inventory.InventoryTransfer], error) {
	base := r.db.WithContext(ctx).Model(&inventory.InventoryTransfer{}).
		Where("tenant_id = ?", tenantID)
	if status != "" {
		base = base.Where("status = ?", status)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return shared.Paginated[*inventory.InventoryTransfer]{}, err
	}

	var transfers []*inventory.InventoryTransfer
	if err := applyFilter(base.Session(&gorm.Session{}), filter, TransferSortFields).Find(&transfers).Error; err != nil {
		return shared.Paginated[*inventory.InventoryTransfer]{}, err
	}
	return shared.NewPaginated(transfers, total, filter.Page, filter.PageSize), nil
}

// Save creates or updates a transfer without a version check
func (r *GormTransferRepository) Save(ctx context.Context, transfer *inventory.InventoryTransfer) error {
	if transfer.TenantID == uuid.Nil {
		return shared.ErrMissingTenant
	}
	return r.db.WithContext(ctx).Save(transfer).Error
}

// SaveWithLock updates a transfer guarded by its version. The caller
// increments the version before saving.
func (r *GormTransferRepository) SaveWithLock(ctx context.Context, transfer *inventory.InventoryTransfer) error {
	if transfer.TenantID == uuid.Nil {
		return shared.ErrMissingTenant
	}
	result := r.db.WithContext(ctx).
		Model(transfer).
		Where("tenant_id = ? AND id = ? AND version = ?", transfer.TenantID, transfer.ID, transfer.Version-1).
		Updates(map[string]interface{}{
			"status":       transfer.Status,
			"completed_at": transfer.CompletedAt,
			"cancelled_at": transfer.CancelledAt,
			"version":      transfer.Version,
			"updated_at":   transfer.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

var _ inventory.TransferRepository = (*GormTransferRepository)(nil)
