package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/stockledger/backend/internal/domain/inventory"
	"github.com/stockledger/backend/internal/domain/shared"
)

// GormItemRepository implements inventory.ItemRepository using GORM.
// Every predicate carries the tenant ID; rows of other tenants are
// unreachable through this type.
type GormItemRepository struct {
	db *gorm.DB
}

// NewGormItemRepository creates a new GormItemRepository
func NewGormItemRepository(db *gorm.DB) *GormItemRepository {
	return &GormItemRepository{db: db}
}

// FindByRow finds the ledger row for a variant at a location
func (r *GormItemRepository) FindByRow(ctx context.Context, tenantID, variantID, locationID uuid.UUID) (*inventory.InventoryItem, error) {
	var item inventory.InventoryItem
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND variant_id = ? AND location_id = ?", tenantID, variantID, locationID).
		First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// GetOrCreate finds the row, creating a zeroed one if it does not exist
func (r *GormItemRepository) GetOrCreate(ctx context.Context, tenantID, variantID, locationID uuid.UUID) (*inventory.InventoryItem, error) {
	item, err := r.FindByRow(ctx, tenantID, variantID, locationID)
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	item, err = inventory.NewInventoryItem(tenantID, variantID, locationID)
	if err != nil {
		return nil, err
	}

	// ON CONFLICT handles the race with a concurrent creator
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "variant_id"}, {Name: "location_id"}},
			DoNothing: true,
		}).
		Create(item).Error; err != nil {
		return nil, err
	}

	// conflict means another writer created the row first; load theirs
	if item.ID == uuid.Nil {
		return r.FindByRow(ctx, tenantID, variantID, locationID)
	}
	return item, nil
}

// FindByVariant finds all of a variant's rows across locations
func (r *GormItemRepository) FindByVariant(ctx context.Context, tenantID, variantID uuid.UUID) ([]*inventory.InventoryItem, error) {
	var items []*inventory.InventoryItem
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND variant_id = ?", tenantID, variantID).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// FindByLocation finds all rows at a location
func (r *GormItemRepository) FindByLocation(ctx context.Context, tenantID, locationID uuid.UUID) ([]*inventory.InventoryItem, error) {
	var items []*inventory.InventoryItem
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND location_id = ?", tenantID, locationID).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// FindAll pages through a tenant's ledger rows
func (r *GormItemRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) (shared.Paginated[*inventory.InventoryItem], error) {
	base := r.db.WithContext(ctx).Model(&inventory.InventoryItem{}).Where("tenant_id = ?", tenantID)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return shared.Paginated[*inventory.InventoryItem]{}, err
	}

	var items []*inventory.InventoryItem
	if err := applyFilter(base.Session(&gorm.Session{}), filter, ItemSortFields).Find(&items).Error; err != nil {
		return shared.Paginated[*inventory.InventoryItem]{}, err
	}
	return shared.NewPaginated(items, total, filter.Page, filter.PageSize), nil
}

// Save creates or updates a row without a version check
func (r *GormItemRepository) Save(ctx context.Context, item *inventory.InventoryItem) error {
	if item.TenantID == uuid.Nil {
		return shared.ErrMissingTenant
	}
	return r.db.WithContext(ctx).Save(item).Error
}

// SaveWithLock updates a row guarded by its version. The caller increments
// the version before saving; zero affected rows means another writer won.
func (r *GormItemRepository) SaveWithLock(ctx context.Context, item *inventory.InventoryItem) error {
	if item.TenantID == uuid.Nil {
		return shared.ErrMissingTenant
	}
	result := r.db.WithContext(ctx).
		Model(item).
		Where("tenant_id = ? AND id = ? AND version = ?", item.TenantID, item.ID, item.Version-1).
		Updates(map[string]interface{}{
			"on_hand":         item.OnHand,
			"reserved":        item.Reserved,
			"safety_stock":    item.SafetyStock,
			"channel_buffers": item.ChannelBuffers,
			"unit_cost":       item.UnitCost,
			"last_counted_at": item.LastCountedAt,
			"version":         item.Version,
			"updated_at":      item.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// applyFilter applies pagination and ordering to a query. The order field is
// validated against the caller's whitelist, never interpolated as received.
func applyFilter(query *gorm.DB, filter shared.Filter, allowedFields map[string]bool) *gorm.DB {
	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	field := ValidateSortField(filter.OrderBy, allowedFields, "created_at")
	return query.Order(field + " " + ValidateSortOrder(filter.OrderDir))
}

var _ inventory.ItemRepository = (*GormItemRepository)(nil)
