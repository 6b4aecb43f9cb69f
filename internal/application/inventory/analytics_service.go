package inventory

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/stockledger/backend/internal/domain/inventory"
	"github.com/stockledger/backend/internal/domain/shared"
)

// AnalyticsService derives reports from the ledger rows and the movement
// log. All reads are tenant-scoped; reports never mutate state.
type AnalyticsService struct {
	itemRepo     inventory.ItemRepository
	movementRepo inventory.MovementRepository
	logger       *zap.Logger
}

// NewAnalyticsService creates a new AnalyticsService
func NewAnalyticsService(
	itemRepo inventory.ItemRepository,
	movementRepo inventory.MovementRepository,
	logger *zap.Logger,
) *AnalyticsService {
	return &AnalyticsService{
		itemRepo:     itemRepo,
		movementRepo: movementRepo,
		logger:       logger,
	}
}

// LowStockEntry is one ledger row whose available quantity sits under its
// low-stock threshold
type LowStockEntry struct {
	VariantID   uuid.UUID `json:"variant_id"`
	LocationID  uuid.UUID `json:"location_id"`
	OnHand      int64     `json:"on_hand"`
	Reserved    int64     `json:"reserved"`
	SafetyStock int64     `json:"safety_stock"`
	Available   int64     `json:"available"`
	Threshold   int64     `json:"threshold"`
	Urgency     float64   `json:"urgency"` // 0 at the threshold, 1 at zero available
}

// LowStockReport lists the rows whose available quantity is under the
// threshold, most urgent first. A nil threshold means each row uses twice
// its own safety floor; rows without a safety floor are then skipped.
func (s *AnalyticsService) LowStockReport(ctx context.Context, tenantID uuid.UUID, threshold *int64) ([]LowStockEntry, error) {
	if threshold != nil && *threshold <= 0 {
		return nil, inventory.NewValidationError("threshold", "threshold must be positive")
	}

	entries := make([]LowStockEntry, 0)
	err := s.eachItem(ctx, tenantID, func(item *inventory.InventoryItem) error {
		rowThreshold := int64(0)
		if threshold != nil {
			rowThreshold = *threshold
		} else if item.SafetyStock > 0 {
			rowThreshold = item.SafetyStock * 2
		}
		if rowThreshold <= 0 {
			return nil
		}

		available := item.ReservablePool()
		if available < 0 {
			available = 0
		}
		if available >= rowThreshold {
			return nil
		}

		urgency := 1 - float64(available)/float64(rowThreshold)
		if urgency > 1 {
			urgency = 1
		}
		entries = append(entries, LowStockEntry{
			VariantID:   item.VariantID,
			LocationID:  item.LocationID,
			OnHand:      item.OnHand,
			Reserved:    item.Reserved,
			SafetyStock: item.SafetyStock,
			Available:   available,
			Threshold:   rowThreshold,
			Urgency:     urgency,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Urgency > entries[j].Urgency
	})
	return entries, nil
}

// eachItem walks every ledger row of the tenant in pages
func (s *AnalyticsService) eachItem(ctx context.Context, tenantID uuid.UUID, fn func(*inventory.InventoryItem) error) error {
	filter := shared.DefaultFilter()
	filter.PageSize = 500
	for page := 1; ; page++ {
		filter.Page = page
		result, err := s.itemRepo.FindAll(ctx, tenantID, filter)
		if err != nil {
			return err
		}
		for _, item := range result.Items {
			if err := fn(item); err != nil {
				return err
			}
		}
		if page >= result.TotalPages {
			return nil
		}
	}
}

// ValuationEntry values one ledger row at its moving-average cost
type ValuationEntry struct {
	VariantID  uuid.UUID       `json:"variant_id"`
	LocationID uuid.UUID       `json:"location_id"`
	OnHand     int64           `json:"on_hand"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	Value      decimal.Decimal `json:"value"`
}

// ValuationReport totals a tenant's inventory value
type ValuationReport struct {
	Entries     []ValuationEntry `json:"entries"`
	TotalValue  decimal.Decimal  `json:"total_value"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// Valuation values every ledger row of the tenant at its moving-average
// cost and totals the result
func (s *AnalyticsService) Valuation(ctx context.Context, tenantID uuid.UUID) (*ValuationReport, error) {
	report := &ValuationReport{
		Entries:     make([]ValuationEntry, 0),
		TotalValue:  decimal.Zero,
		GeneratedAt: time.Now(),
	}

	err := s.eachItem(ctx, tenantID, func(item *inventory.InventoryItem) error {
		value := item.InventoryValue()
		report.Entries = append(report.Entries, ValuationEntry{
			VariantID:  item.VariantID,
			LocationID: item.LocationID,
			OnHand:     item.OnHand,
			UnitCost:   item.UnitCost,
			Value:      value,
		})
		report.TotalValue = report.TotalValue.Add(value)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// VelocityReport summarizes the sell-through of one ledger row over a window
type VelocityReport struct {
	VariantID   uuid.UUID `json:"variant_id"`
	LocationID  uuid.UUID `json:"location_id"`
	WindowDays  int       `json:"window_days"`
	UnitsSold   int64     `json:"units_sold"`
	UnitsPerDay float64   `json:"units_per_day"`
	DaysOfCover float64   `json:"days_of_cover"` // negative means no sales in the window
}

// SalesVelocity computes units sold per day for one row over the trailing
// window and projects how many days the current on-hand quantity covers
func (s *AnalyticsService) SalesVelocity(ctx context.Context, tenantID, variantID, locationID uuid.UUID, windowDays int) (*VelocityReport, error) {
	if windowDays <= 0 {
		return nil, inventory.NewValidationError("windowDays", "window must be positive")
	}

	now := time.Now()
	since := now.AddDate(0, 0, -windowDays)
	sum, err := s.movementRepo.SumDeltas(ctx, tenantID, variantID, locationID,
		[]inventory.MovementType{inventory.MovementSale}, since, now)
	if err != nil {
		return nil, err
	}

	report := &VelocityReport{
		VariantID:   variantID,
		LocationID:  locationID,
		WindowDays:  windowDays,
		UnitsSold:   -sum, // sale deltas are negative
		DaysOfCover: -1,
	}
	report.UnitsPerDay = float64(report.UnitsSold) / float64(windowDays)

	item, err := s.itemRepo.FindByRow(ctx, tenantID, variantID, locationID)
	if errors.Is(err, shared.ErrNotFound) {
		return report, nil
	}
	if err != nil {
		return nil, err
	}
	if report.UnitsPerDay > 0 {
		report.DaysOfCover = float64(item.OnHand) / report.UnitsPerDay
	}
	return report, nil
}

// forecastConfidenceSamples is the number of sale movements in the window
// at which the forecast reports full confidence
const forecastConfidenceSamples = 10

// ForecastReport projects a row's stock position from its trailing sales
type ForecastReport struct {
	VariantID         uuid.UUID `json:"variant_id"`
	LocationID        uuid.UUID `json:"location_id"`
	WindowDays        int       `json:"window_days"`
	HorizonDays       int       `json:"horizon_days"`
	OnHand            int64     `json:"on_hand"`
	UnitsPerDay       float64   `json:"units_per_day"`
	ProjectedStock    int64     `json:"projected_stock"`     // expected on-hand after the horizon
	DaysUntilStockout float64   `json:"days_until_stockout"` // negative means no depletion at current velocity
	Confidence        float64   `json:"confidence"`          // grows with observed sale count, capped at 1
}

// Forecast projects a row's on-hand position over the horizon from its sale
// velocity in the trailing window. Confidence scales with how many sale
// movements the window actually holds; a handful of sales makes for a
// rough estimate and the caller should treat it as such.
func (s *AnalyticsService) Forecast(ctx context.Context, tenantID, variantID, locationID uuid.UUID, windowDays, horizonDays int) (*ForecastReport, error) {
	if windowDays <= 0 {
		return nil, inventory.NewValidationError("windowDays", "window must be positive")
	}
	if horizonDays <= 0 {
		return nil, inventory.NewValidationError("horizonDays", "horizon must be positive")
	}

	now := time.Now()
	since := now.AddDate(0, 0, -windowDays)
	saleTypes := []inventory.MovementType{inventory.MovementSale}

	sum, err := s.movementRepo.SumDeltas(ctx, tenantID, variantID, locationID, saleTypes, since, now)
	if err != nil {
		return nil, err
	}
	samples, err := s.movementRepo.CountByTypes(ctx, tenantID, variantID, locationID, saleTypes, since, now)
	if err != nil {
		return nil, err
	}

	report := &ForecastReport{
		VariantID:         variantID,
		LocationID:        locationID,
		WindowDays:        windowDays,
		HorizonDays:       horizonDays,
		UnitsPerDay:       float64(-sum) / float64(windowDays),
		DaysUntilStockout: -1,
		Confidence:        float64(samples) / forecastConfidenceSamples,
	}
	if report.Confidence > 1 {
		report.Confidence = 1
	}

	item, err := s.itemRepo.FindByRow(ctx, tenantID, variantID, locationID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}
	if item != nil {
		report.OnHand = item.OnHand
	}

	report.ProjectedStock = report.OnHand
	if report.UnitsPerDay > 0 {
		projected := float64(report.OnHand) - report.UnitsPerDay*float64(horizonDays)
		if projected < 0 {
			projected = 0
		}
		report.ProjectedStock = int64(projected)
		report.DaysUntilStockout = float64(report.OnHand) / report.UnitsPerDay
	}
	return report, nil
}

// Stock age buckets by days since the last sale
const (
	agingSlowAfterDays = 30
	agingDeadAfterDays = 90

	AgingFresh = "fresh"
	AgingSlow  = "slow"
	AgingDead  = "dead"
)

// AgingEntry classifies one stocked row by how long ago it last sold
type AgingEntry struct {
	VariantID         uuid.UUID       `json:"variant_id"`
	LocationID        uuid.UUID       `json:"location_id"`
	OnHand            int64           `json:"on_hand"`
	Value             decimal.Decimal `json:"value"`
	DaysSinceLastSale int             `json:"days_since_last_sale"` // -1 when the row never sold
	Bucket            string          `json:"bucket"`
}

// AgingReport totals a tenant's stock value per age bucket
type AgingReport struct {
	Entries     []AgingEntry    `json:"entries"`
	FreshValue  decimal.Decimal `json:"fresh_value"`
	SlowValue   decimal.Decimal `json:"slow_value"`
	DeadValue   decimal.Decimal `json:"dead_value"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// Aging buckets every stocked row as fresh, slow or dead by days since its
// last sale movement and values each bucket at moving-average cost. Rows
// that never sold age from their creation instead.
func (s *AnalyticsService) Aging(ctx context.Context, tenantID uuid.UUID) (*AgingReport, error) {
	report := &AgingReport{
		Entries:     make([]AgingEntry, 0),
		FreshValue:  decimal.Zero,
		SlowValue:   decimal.Zero,
		DeadValue:   decimal.Zero,
		GeneratedAt: time.Now(),
	}

	now := time.Now()
	err := s.eachItem(ctx, tenantID, func(item *inventory.InventoryItem) error {
		if item.OnHand <= 0 {
			return nil
		}

		lastSale, err := s.movementRepo.LastMovementAt(ctx, tenantID, item.VariantID, item.LocationID, inventory.MovementSale)
		if err != nil {
			return err
		}

		entry := AgingEntry{
			VariantID:         item.VariantID,
			LocationID:        item.LocationID,
			OnHand:            item.OnHand,
			Value:             item.InventoryValue(),
			DaysSinceLastSale: -1,
		}
		age := now.Sub(item.CreatedAt)
		if lastSale != nil {
			age = now.Sub(*lastSale)
			entry.DaysSinceLastSale = int(age.Hours() / 24)
		}

		ageDays := int(age.Hours() / 24)
		switch {
		case ageDays > agingDeadAfterDays:
			entry.Bucket = AgingDead
			report.DeadValue = report.DeadValue.Add(entry.Value)
		case ageDays > agingSlowAfterDays:
			entry.Bucket = AgingSlow
			report.SlowValue = report.SlowValue.Add(entry.Value)
		default:
			entry.Bucket = AgingFresh
			report.FreshValue = report.FreshValue.Add(entry.Value)
		}
		report.Entries = append(report.Entries, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// TurnoverEntry relates a variant's sell-through to its current stock
type TurnoverEntry struct {
	VariantID uuid.UUID `json:"variant_id"`
	UnitsSold int64     `json:"units_sold"`
	OnHand    int64     `json:"on_hand"`
	Turnover  float64   `json:"turnover"` // units sold per unit currently held
}

// TurnoverReport ranks a tenant's variants by sell-through since the given
// time, fastest movers first. Variants with sales but no remaining stock
// sort to the top.
func (s *AnalyticsService) TurnoverReport(ctx context.Context, tenantID uuid.UUID, since time.Time) ([]TurnoverEntry, error) {
	sales, err := s.movementRepo.SumSalesByVariant(ctx, tenantID, since)
	if err != nil {
		return nil, err
	}

	entries := make([]TurnoverEntry, 0, len(sales))
	for variantID, unitsSold := range sales {
		items, err := s.itemRepo.FindByVariant(ctx, tenantID, variantID)
		if err != nil {
			return nil, err
		}
		var onHand int64
		for _, item := range items {
			onHand += item.OnHand
		}

		entry := TurnoverEntry{
			VariantID: variantID,
			UnitsSold: unitsSold,
			OnHand:    onHand,
		}
		if onHand > 0 {
			entry.Turnover = float64(unitsSold) / float64(onHand)
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].OnHand == 0 && entries[j].OnHand > 0 {
			return true
		}
		if entries[j].OnHand == 0 && entries[i].OnHand > 0 {
			return false
		}
		return entries[i].Turnover > entries[j].Turnover
	})
	return entries, nil
}
