package inventory_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	inventoryapp "github.com/stockledger/backend/internal/application/inventory"
	"github.com/stockledger/backend/internal/domain/inventory"
	"github.com/stockledger/backend/internal/infrastructure/persistence"
)

// fixture wires the full service stack over an in-memory sqlite database
type fixture struct {
	db           *gorm.DB
	ledger       *inventoryapp.LedgerService
	reservations *inventoryapp.ReservationService
	transfers    *inventoryapp.TransferService
	expiration   *inventoryapp.ReservationExpirationService
	analytics    *inventoryapp.AnalyticsService

	itemRepo        inventory.ItemRepository
	movementRepo    inventory.MovementRepository
	reservationRepo inventory.ReservationRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&inventory.InventoryItem{},
		&inventory.StockMovement{},
		&inventory.InventoryReservation{},
		&inventory.InventoryTransfer{},
	))
	// the migrations enforce row uniqueness per tenant; GetOrCreate's
	// ON CONFLICT needs the same index here
	require.NoError(t, db.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_ledger_row ON inventory_items (tenant_id, variant_id, location_id)",
	).Error)

	itemRepo := persistence.NewGormItemRepository(db)
	movementRepo := persistence.NewGormMovementRepository(db)
	reservationRepo := persistence.NewGormReservationRepository(db)
	transferRepo := persistence.NewGormTransferRepository(db)
	txScope := persistence.NewGormTransactionScope(db)
	log := zap.NewNop()

	return &fixture{
		db:              db,
		ledger:          inventoryapp.NewLedgerService(txScope, itemRepo, movementRepo, log),
		reservations:    inventoryapp.NewReservationService(txScope, reservationRepo, 0, log),
		transfers:       inventoryapp.NewTransferService(txScope, transferRepo, itemRepo, movementRepo, log),
		expiration:      inventoryapp.NewReservationExpirationService(txScope, reservationRepo, 100, log),
		analytics:       inventoryapp.NewAnalyticsService(itemRepo, movementRepo, log),
		itemRepo:        itemRepo,
		movementRepo:    movementRepo,
		reservationRepo: reservationRepo,
	}
}

// restock seeds a row through the regular write path
func (f *fixture) restock(t *testing.T, tenantID, variantID, locationID uuid.UUID, qty int64, unitCost string) *inventory.InventoryItem {
	t.Helper()
	cmd := inventoryapp.MovementCommand{
		TenantID:   tenantID,
		VariantID:  variantID,
		LocationID: locationID,
		Quantity:   qty,
		Reason:     "test seed",
		Actor:      "tester",
	}
	if unitCost != "" {
		cost, err := decimal.NewFromString(unitCost)
		require.NoError(t, err)
		cmd.UnitCost = &cost
	}
	item, err := f.ledger.RecordRestock(context.Background(), cmd)
	require.NoError(t, err)
	return item
}

func (f *fixture) row(t *testing.T, tenantID, variantID, locationID uuid.UUID) *inventory.InventoryItem {
	t.Helper()
	item, err := f.itemRepo.FindByRow(context.Background(), tenantID, variantID, locationID)
	require.NoError(t, err)
	return item
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}
