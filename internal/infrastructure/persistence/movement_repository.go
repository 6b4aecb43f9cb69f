package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stockledger/backend/internal/domain/inventory"
	"github.com/stockledger/backend/internal/domain/shared"
)

// GormMovementRepository implements inventory.MovementRepository using GORM.
// The movement log is append-only: there are no update or delete paths.
type GormMovementRepository struct {
	db *gorm.DB
}

// NewGormMovementRepository creates a new GormMovementRepository
func NewGormMovementRepository(db *gorm.DB) *GormMovementRepository {
	return &GormMovementRepository{db: db}
}

// Create appends one movement record
func (r *GormMovementRepository) Create(ctx context.Context, movement *inventory.StockMovement) error {
	if movement.TenantID == uuid.Nil {
		return shared.ErrMissingTenant
	}
	return r.db.WithContext(ctx).Create(movement).Error
}

// FindByRow pages through a row's movement history, newest first
func (r *GormMovementRepository) FindByRow(ctx context.Context, tenantID, variantID, locationID uuid.UUID, filter shared.Filter) (shared.Paginated[*inventory.StockMovement], error) {
	base := r.db.WithContext(ctx).Model(&inventory.StockMovement{}).
		Where("tenant_id = ? AND variant_id = ? AND location_id = ?", tenantID, variantID, locationID)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return shared.Paginated[*inventory.StockMovement]{}, err
	}

	var movements []*inventory.StockMovement
	if err := applyFilter(base.Session(&gorm.Session{}), filter, MovementSortFields).Find(&movements).Error; err != nil {
		return shared.Paginated[*inventory.StockMovement]{}, err
	}
	return shared.NewPaginated(movements, total, filter.Page, filter.PageSize), nil
}

// FindByVariant pages through a variant's movement history across all
// locations, newest first
func (r *GormMovementRepository) FindByVariant(ctx context.Context, tenantID, variantID uuid.UUID, filter shared.Filter) (shared.Paginated[*inventory.StockMovement], error) {
	base := r.db.WithContext(ctx).Model(&inventory.StockMovement{}).
		Where("tenant_id = ? AND variant_id = ?", tenantID, variantID)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return shared.Paginated[*inventory.StockMovement]{}, err
	}

	var movements []*inventory.StockMovement
	if err := applyFilter(base.Session(&gorm.Session{}), filter, MovementSortFields).Find(&movements).Error; err != nil {
		return shared.Paginated[*inventory.StockMovement]{}, err
	}
	return shared.NewPaginated(movements, total, filter.Page, filter.PageSize), nil
}

// FindByReference returns the movements carrying an external reference
func (r *GormMovementRepository) FindByReference(ctx context.Context, tenantID uuid.UUID, reference string) ([]*inventory.StockMovement, error) {
	var movements []*inventory.StockMovement
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND reference = ?", tenantID, reference).
		Order("created_at ASC").
		Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}

// SumDeltas sums the deltas of the given movement types for a row over a
// time window
func (r *GormMovementRepository) SumDeltas(ctx context.Context, tenantID, variantID, locationID uuid.UUID, types []inventory.MovementType, since, until time.Time) (int64, error) {
	var result struct {
		Total int64
	}
	query := r.db.WithContext(ctx).
		Model(&inventory.StockMovement{}).
		Select("COALESCE(SUM(quantity_delta), 0) as total").
		Where("tenant_id = ? AND variant_id = ? AND location_id = ?", tenantID, variantID, locationID).
		Where("created_at >= ? AND created_at < ?", since, until)
	if len(types) > 0 {
		query = query.Where("type IN ?", types)
	}
	if err := query.Scan(&result).Error; err != nil {
		return 0, err
	}
	return result.Total, nil
}

// CountByTypes counts a row's movements of the given types over a time window
func (r *GormMovementRepository) CountByTypes(ctx context.Context, tenantID, variantID, locationID uuid.UUID, types []inventory.MovementType, since, until time.Time) (int64, error) {
	var total int64
	query := r.db.WithContext(ctx).
		Model(&inventory.StockMovement{}).
		Where("tenant_id = ? AND variant_id = ? AND location_id = ?", tenantID, variantID, locationID).
		Where("created_at >= ? AND created_at < ?", since, until)
	if len(types) > 0 {
		query = query.Where("type IN ?", types)
	}
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// LastMovementAt returns when a row last saw a movement of the given type,
// or nil if it never has
func (r *GormMovementRepository) LastMovementAt(ctx context.Context, tenantID, variantID, locationID uuid.UUID, movementType inventory.MovementType) (*time.Time, error) {
	var movement inventory.StockMovement
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND variant_id = ? AND location_id = ? AND type = ?",
			tenantID, variantID, locationID, movementType).
		Order("created_at DESC").
		First(&movement).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	at := movement.CreatedAt
	return &at, nil
}

// SumSalesByVariant sums sale quantities per variant across all locations
// since the given time, as positive unit counts
func (r *GormMovementRepository) SumSalesByVariant(ctx context.Context, tenantID uuid.UUID, since time.Time) (map[uuid.UUID]int64, error) {
	var rows []struct {
		VariantID uuid.UUID
		Total     int64
	}
	if err := r.db.WithContext(ctx).
		Model(&inventory.StockMovement{}).
		Select("variant_id, COALESCE(SUM(-quantity_delta), 0) as total").
		Where("tenant_id = ? AND type = ? AND created_at >= ?", tenantID, inventory.MovementSale, since).
		Group("variant_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	sales := make(map[uuid.UUID]int64, len(rows))
	for _, row := range rows {
		sales[row.VariantID] = row.Total
	}
	return sales, nil
}

var _ inventory.MovementRepository = (*GormMovementRepository)(nil)
