package inventory_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	inventoryapp "github.com/stockledger/backend/internal/application/inventory"
	"github.com/stockledger/backend/internal/domain/inventory"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/infrastructure/persistence"
)

func TestLedgerService_RestockCreatesRowAndMovement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tenantID, variantID, locationID := uuid.New(), uuid.New(), uuid.New()

	item := f.restock(t, tenantID, variantID, locationID, 10, "2.00")
	assert.Equal(t, int64(10), item.OnHand)
	assert.Equal(t, int64(0), item.Reserved)
	assert.Equal(t, "2", item.UnitCost.String())

	history, err := f.ledger.GetMovementHistory(ctx, tenantID, variantID, locationID, shared.DefaultFilter())
	require.NoError(t, err)
	require.Len(t, history.Items, 1)
	assert.Equal(t, inventory.MovementRestock, history.Items[0].Type)
	assert.Equal(t, int64(10), history.Items[0].QuantityDelta)
}

func TestLedgerService_MovingAverageCost(t *testing.T) {
	f := newFixture(t)
	tenantID, variantID, locationID := uuid.New(), uuid.New(), uuid.New()

	f.restock(t, tenantID, variantID, locationID, 10, "2.00")
	item := f.restock(t, tenantID, variantID, locationID, 10, "4.00")

	assert.Equal(t, int64(20), item.OnHand)
	assert.True(t, item.UnitCost.Equal(mustDecimal(t, "3")), "got %s", item.UnitCost)
	assert.True(t, item.InventoryValue().Equal(mustDecimal(t, "60")))
}

func TestLedgerService_SetStockLevel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tenantID, variantID, locationID := uuid.New(), uuid.New(), uuid.New()

	f.restock(t, tenantID, variantID, locationID, 10, "")

	cmd := inventoryapp.MovementCommand{
		TenantID: tenantID, VariantID: variantID, LocationID: locationID,
		Reason: "cycle count", Actor: "tester",
	}

	// counting 7 records a -3 adjustment
	item, err := f.ledger.SetStockLevel(ctx, cmd, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), item.OnHand)
	assert.NotNil(t, item.LastCountedAt)

	history, err := f.ledger.GetMovementHistory(ctx, tenantID, variantID, locationID, shared.DefaultFilter())
	require.NoError(t, err)
	require.Len(t, history.Items, 2)
	assert.Equal(t, inventory.MovementAdjustment, history.Items[0].Type)
	assert.Equal(t, int64(-3), history.Items[0].QuantityDelta)

	// a count confirming the recorded level stamps the row without a movement
	item, err = f.ledger.SetStockLevel(ctx, cmd, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), item.OnHand)
	history, err = f.ledger.GetMovementHistory(ctx, tenantID, variantID, locationID, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Len(t, history.Items, 2)

	// counting a missing row creates it at the counted level
	freshVariant := uuid.New()
	freshCmd := cmd
	freshCmd.VariantID = freshVariant
	item, err = f.ledger.SetStockLevel(ctx, freshCmd, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), item.OnHand)

	_, err = f.ledger.SetStockLevel(ctx, cmd, -1)
	var validationErr *inventory.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestLedgerService_RecordMovementsBatchIsIndependent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tenantID, locationID := uuid.New(), uuid.New()
	variantA, variantB := uuid.New(), uuid.New()

	f.restock(t, tenantID, variantA, locationID, 10, "")

	cmd := func(variantID uuid.UUID, qty int64) inventoryapp.MovementCommand {
		return inventoryapp.MovementCommand{
			TenantID: tenantID, VariantID: variantID, LocationID: locationID,
			Quantity: qty, Actor: "importer",
		}
	}

	result := f.ledger.RecordMovements(ctx, []inventoryapp.BatchMovementEntry{
		{Type: inventory.MovementSale, Command: cmd(variantA, 4)},
		{Type: inventory.MovementSale, Command: cmd(variantB, 1)}, // no stock, must fail alone
		{Type: inventory.MovementRestock, Command: cmd(variantB, 6)},
		{Type: inventory.MovementAdjustment, Command: cmd(variantA, 0), Delta: -1},
		{Type: inventory.MovementReservationHold, Command: cmd(variantA, 1)}, // holds belong to reservations
	})

	assert.Equal(t, 3, result.Applied)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Results, 5)

	var insufficientErr *inventory.InsufficientInventoryError
	assert.NoError(t, result.Results[0].Err)
	assert.ErrorAs(t, result.Results[1].Err, &insufficientErr)
	assert.NoError(t, result.Results[2].Err)
	assert.NoError(t, result.Results[3].Err)
	var validationErr *inventory.ValidationError
	assert.ErrorAs(t, result.Results[4].Err, &validationErr)

	// the failed lines left no trace; the applied ones all landed
	assert.Equal(t, int64(5), f.row(t, tenantID, variantA, locationID).OnHand)
	assert.Equal(t, int64(6), f.row(t, tenantID, variantB, locationID).OnHand)
}

func TestLedgerService_SaleRejectedWhenInsufficient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tenantID, variantID, locationID := uuid.New(), uuid.New(), uuid.New()
	f.restock(t, tenantID, variantID, locationID, 5, "")

	_, err := f.ledger.RecordSale(ctx, inventoryapp.MovementCommand{
		TenantID: tenantID, VariantID: variantID, LocationID: locationID,
		Quantity: 8, Actor: "tester",
	})
	var insufficientErr *inventory.InsufficientInventoryError
	require.ErrorAs(t, err, &insufficientErr)
	assert.Equal(t, int64(8), insufficientErr.Requested)

	// the failed sale must leave neither a counter change nor a movement
	item := f.row(t, tenantID, variantID, locationID)
	assert.Equal(t, int64(5), item.OnHand)
	history, err := f.ledger.GetMovementHistory(ctx, tenantID, variantID, locationID, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Len(t, history.Items, 1)
}

func TestLedgerService_SaleOnMissingRow(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.RecordSale(context.Background(), inventoryapp.MovementCommand{
		TenantID: uuid.New(), VariantID: uuid.New(), LocationID: uuid.New(),
		Quantity: 1, Actor: "tester",
	})
	var insufficientErr *inventory.InsufficientInventoryError
	require.ErrorAs(t, err, &insufficientErr)
	assert.Equal(t, int64(0), insufficientErr.Available)
}

func TestLedgerService_AdjustmentRecordsCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tenantID, variantID, locationID := uuid.New(), uuid.New(), uuid.New()
	f.restock(t, tenantID, variantID, locationID, 10, "")

	item, err := f.ledger.RecordAdjustment(ctx, inventoryapp.MovementCommand{
		TenantID: tenantID, VariantID: variantID, LocationID: locationID,
		Reason: "shrinkage", Actor: "tester",
	}, -2)
	require.NoError(t, err)
	assert.Equal(t, int64(8), item.OnHand)
	assert.NotNil(t, item.LastCountedAt)

	_, err = f.ledger.RecordAdjustment(ctx, inventoryapp.MovementCommand{
		TenantID: tenantID, VariantID: variantID, LocationID: locationID,
		Reason: "noop", Actor: "tester",
	}, 0)
	var validationErr *inventory.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestLedgerService_MovementReplayMatchesCounters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tenantID, variantID, locationID := uuid.New(), uuid.New(), uuid.New()

	f.restock(t, tenantID, variantID, locationID, 20, "1.50")
	_, err := f.ledger.RecordSale(ctx, inventoryapp.MovementCommand{
		TenantID: tenantID, VariantID: variantID, LocationID: locationID,
		Quantity: 3, Actor: "tester",
	})
	require.NoError(t, err)
	_, err = f.ledger.RecordReturn(ctx, inventoryapp.MovementCommand{
		TenantID: tenantID, VariantID: variantID, LocationID: locationID,
		Quantity: 1, Actor: "tester",
	})
	require.NoError(t, err)
	_, err = f.ledger.RecordAdjustment(ctx, inventoryapp.MovementCommand{
		TenantID: tenantID, VariantID: variantID, LocationID: locationID,
		Reason: "recount", Actor: "tester",
	}, -2)
	require.NoError(t, err)
	_, err = f.reservations.Reserve(ctx, inventoryapp.ReserveCommand{
		TenantID: tenantID, VariantID: variantID, LocationID: locationID,
		OrderID: "SO-1", Channel: "web", Quantity: 4, Actor: "tester",
	})
	require.NoError(t, err)

	item := f.row(t, tenantID, variantID, locationID)
	assert.Equal(t, int64(16), item.OnHand)
	assert.Equal(t, int64(4), item.Reserved)

	// replaying the movement log reproduces both counters exactly
	onHandTypes := []inventory.MovementType{
		inventory.MovementRestock, inventory.MovementSale, inventory.MovementReturn,
		inventory.MovementAdjustment, inventory.MovementTransferOut, inventory.MovementTransferIn,
	}
	reservedTypes := []inventory.MovementType{
		inventory.MovementReservationHold, inventory.MovementReservationRelease,
	}
	onHandSum, err := f.movementRepo.SumDeltas(ctx, tenantID, variantID, locationID, onHandTypes, time.Time{}, time.Now().Add(time.Hour))
	require.NoError(t, err)
	reservedSum, err := f.movementRepo.SumDeltas(ctx, tenantID, variantID, locationID, reservedTypes, time.Time{}, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, item.OnHand, onHandSum)
	assert.Equal(t, item.Reserved, reservedSum)
}

func TestLedgerService_AvailabilityPerChannel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tenantID, variantID, locationID := uuid.New(), uuid.New(), uuid.New()

	f.restock(t, tenantID, variantID, locationID, 10, "")
	_, err := f.ledger.SetSafetyStock(ctx, tenantID, variantID, locationID, 2)
	require.NoError(t, err)
	_, err = f.ledger.SetChannelBuffer(ctx, tenantID, variantID, locationID, "web", 4)
	require.NoError(t, err)
	_, err = f.reservations.Reserve(ctx, inventoryapp.ReserveCommand{
		TenantID: tenantID, VariantID: variantID, LocationID: locationID,
		OrderID: "SO-1", Channel: "web", Quantity: 1, Actor: "tester",
	})
	require.NoError(t, err)

	web, err := f.ledger.GetAvailability(ctx, tenantID, variantID, locationID, "web")
	require.NoError(t, err)
	assert.Equal(t, int64(3), web) // 10 - 1 - 2 - 4

	pos, err := f.ledger.GetAvailability(ctx, tenantID, variantID, locationID, "pos")
	require.NoError(t, err)
	assert.Equal(t, int64(7), pos)

	// an unknown row sells zero, it is not an error
	missing, err := f.ledger.GetAvailability(ctx, tenantID, uuid.New(), locationID, "web")
	require.NoError(t, err)
	assert.Equal(t, int64(0), missing)
}

func TestLedgerService_VariantAvailabilityAcrossLocations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tenantID, variantID := uuid.New(), uuid.New()
	locationA, locationB := uuid.New(), uuid.New()

	f.restock(t, tenantID, variantID, locationA, 6, "")
	f.restock(t, tenantID, variantID, locationB, 4, "")

	total, err := f.ledger.GetVariantAvailability(ctx, tenantID, variantID, "web")
	require.NoError(t, err)
	assert.Equal(t, int64(10), total)
}

func TestLedgerService_MovementsByReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tenantID, variantID, locationID := uuid.New(), uuid.New(), uuid.New()

	_, err := f.ledger.RecordRestock(ctx, inventoryapp.MovementCommand{
		TenantID: tenantID, VariantID: variantID, LocationID: locationID,
		Quantity: 10, Reference: "PO-77", Actor: "tester",
	})
	require.NoError(t, err)

	movements, err := f.ledger.GetMovementsByReference(ctx, tenantID, "PO-77")
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, "PO-77", movements[0].Reference)
}

func TestLedgerService_VariantMovementHistorySpansLocations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tenantID, variantID := uuid.New(), uuid.New()
	locationA, locationB := uuid.New(), uuid.New()

	f.restock(t, tenantID, variantID, locationA, 10, "")
	f.restock(t, tenantID, variantID, locationB, 5, "")
	// push the restocks into the past so the sale is unambiguously newest
	require.NoError(t, f.db.Exec(
		"UPDATE stock_movements SET created_at = ? WHERE tenant_id = ?",
		time.Now().Add(-time.Hour), tenantID,
	).Error)

	_, err := f.ledger.RecordSale(ctx, inventoryapp.MovementCommand{
		TenantID: tenantID, VariantID: variantID, LocationID: locationA,
		Quantity: 3, Actor: "pos",
	})
	require.NoError(t, err)

	history, err := f.ledger.GetVariantMovementHistory(ctx, tenantID, variantID, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Equal(t, int64(3), history.Total)
	require.Len(t, history.Items, 3)
	assert.Equal(t, inventory.MovementSale, history.Items[0].Type)

	locations := map[uuid.UUID]bool{}
	for _, movement := range history.Items {
		locations[movement.LocationID] = true
	}
	assert.True(t, locations[locationA])
	assert.True(t, locations[locationB])

	// the row-scoped log still sees only its own location
	rowHistory, err := f.ledger.GetMovementHistory(ctx, tenantID, variantID, locationB, shared.DefaultFilter())
	require.NoError(t, err)
	assert.Equal(t, int64(1), rowHistory.Total)
}

// capturePublisher records every event handed to it
type capturePublisher struct {
	events []shared.DomainEvent
}

func (p *capturePublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.events = append(p.events, events...)
	return nil
}

func TestLedgerService_MovementsRaiseAppliedEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tenantID, variantID, locationID := uuid.New(), uuid.New(), uuid.New()

	// the plain scope is enough here: event collection happens on the same
	// code path whether or not a real transaction wraps it
	scope := inventoryapp.NewNoOpTransactionScope(
		f.itemRepo, f.movementRepo, f.reservationRepo,
		persistence.NewGormTransferRepository(f.db),
	)
	ledger := inventoryapp.NewLedgerService(scope, f.itemRepo, f.movementRepo, zap.NewNop())
	publisher := &capturePublisher{}
	ledger.SetEventPublisher(publisher)

	_, err := ledger.RecordRestock(ctx, inventoryapp.MovementCommand{
		TenantID: tenantID, VariantID: variantID, LocationID: locationID,
		Quantity: 10, Actor: "receiving",
	})
	require.NoError(t, err)

	require.Len(t, publisher.events, 1)
	applied, ok := publisher.events[0].(*inventory.StockMovementAppliedEvent)
	require.True(t, ok)
	assert.Equal(t, inventory.MovementRestock, applied.MovementType)
	assert.Equal(t, int64(10), applied.QuantityDelta)
	assert.Equal(t, variantID, applied.VariantID)

	// a debit that crosses the safety floor raises both events
	_, err = ledger.SetSafetyStock(ctx, tenantID, variantID, locationID, 4)
	require.NoError(t, err)
	publisher.events = nil

	_, err = ledger.RecordSale(ctx, inventoryapp.MovementCommand{
		TenantID: tenantID, VariantID: variantID, LocationID: locationID,
		Quantity: 8, Actor: "pos",
	})
	require.NoError(t, err)

	require.Len(t, publisher.events, 2)
	_, ok = publisher.events[0].(*inventory.StockBelowSafetyEvent)
	assert.True(t, ok)
	applied, ok = publisher.events[1].(*inventory.StockMovementAppliedEvent)
	require.True(t, ok)
	assert.Equal(t, inventory.MovementSale, applied.MovementType)
	assert.Equal(t, int64(-8), applied.QuantityDelta)
}

func TestLedgerService_SetStockLevelRaisesAppliedEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tenantID, variantID, locationID := uuid.New(), uuid.New(), uuid.New()

	publisher := &capturePublisher{}
	f.ledger.SetEventPublisher(publisher)

	cmd := inventoryapp.MovementCommand{
		TenantID: tenantID, VariantID: variantID, LocationID: locationID,
		Reason: "cycle count", Actor: "counter",
	}
	_, err := f.ledger.SetStockLevel(ctx, cmd, 12)
	require.NoError(t, err)

	require.Len(t, publisher.events, 1)
	applied, ok := publisher.events[0].(*inventory.StockMovementAppliedEvent)
	require.True(t, ok)
	assert.Equal(t, inventory.MovementAdjustment, applied.MovementType)
	assert.Equal(t, int64(12), applied.QuantityDelta)

	// a count that matches the current level stamps the row without a movement
	publisher.events = nil
	_, err = f.ledger.SetStockLevel(ctx, cmd, 12)
	require.NoError(t, err)
	assert.Empty(t, publisher.events)
}
