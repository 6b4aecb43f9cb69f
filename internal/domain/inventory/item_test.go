package inventory

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestItem(t *testing.T) *InventoryItem {
	t.Helper()
	item, err := NewInventoryItem(uuid.New(), uuid.New(), uuid.New())
	require.NoError(t, err)
	return item
}

func mustMovement(t *testing.T, item *InventoryItem, mt MovementType, delta int64) *StockMovement {
	t.Helper()
	m, err := NewStockMovement(item.TenantID, item.VariantID, item.LocationID, mt, delta, "", "", "tester")
	require.NoError(t, err)
	return m
}

func TestNewInventoryItem(t *testing.T) {
	t.Run("creates zeroed row", func(t *testing.T) {
		item := newTestItem(t)
		assert.Equal(t, int64(0), item.OnHand)
		assert.Equal(t, int64(0), item.Reserved)
		assert.Equal(t, int64(0), item.SafetyStock)
		assert.True(t, item.UnitCost.IsZero())
		assert.Equal(t, 1, item.GetVersion())
	})

	t.Run("requires tenant", func(t *testing.T) {
		_, err := NewInventoryItem(uuid.Nil, uuid.New(), uuid.New())
		assert.Error(t, err)
	})
}

func TestInventoryItemAvailableToSell(t *testing.T) {
	item := newTestItem(t)
	require.NoError(t, item.ApplyMovement(mustMovement(t, item, MovementRestock, 10)))
	require.NoError(t, item.ApplyMovement(mustMovement(t, item, MovementReservationHold, 3)))
	require.NoError(t, item.SetSafetyStock(2))
	require.NoError(t, item.SetChannelBuffer("web", 4))

	assert.Equal(t, int64(1), item.AvailableToSell("web"))
	assert.Equal(t, int64(5), item.AvailableToSell("pos"))

	// buffer larger than the position clamps at zero
	require.NoError(t, item.SetChannelBuffer("marketplace", 50))
	assert.Equal(t, int64(0), item.AvailableToSell("marketplace"))
}

func TestInventoryItemApplyMovement(t *testing.T) {
	t.Run("rejects on-hand going negative", func(t *testing.T) {
		item := newTestItem(t)
		require.NoError(t, item.ApplyMovement(mustMovement(t, item, MovementRestock, 5)))

		err := item.ApplyMovement(mustMovement(t, item, MovementSale, -6))
		var insufficient *InsufficientInventoryError
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, int64(6), insufficient.Requested)
		assert.Equal(t, int64(5), insufficient.Available)
		assert.Equal(t, int64(5), item.OnHand)
	})

	t.Run("rejects on-hand dropping below reserved", func(t *testing.T) {
		item := newTestItem(t)
		require.NoError(t, item.ApplyMovement(mustMovement(t, item, MovementRestock, 10)))
		require.NoError(t, item.ApplyMovement(mustMovement(t, item, MovementReservationHold, 8)))

		err := item.ApplyMovement(mustMovement(t, item, MovementSale, -3))
		var insufficient *InsufficientInventoryError
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, int64(10), item.OnHand)
	})

	t.Run("rejects reserved exceeding on-hand", func(t *testing.T) {
		item := newTestItem(t)
		require.NoError(t, item.ApplyMovement(mustMovement(t, item, MovementRestock, 4)))

		err := item.ApplyMovement(mustMovement(t, item, MovementReservationHold, 5))
		var insufficient *InsufficientInventoryError
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, int64(0), item.Reserved)
	})

	t.Run("rejects release below zero", func(t *testing.T) {
		item := newTestItem(t)
		require.NoError(t, item.ApplyMovement(mustMovement(t, item, MovementRestock, 4)))
		require.NoError(t, item.ApplyMovement(mustMovement(t, item, MovementReservationHold, 2)))

		err := item.ApplyMovement(mustMovement(t, item, MovementReservationRelease, -3))
		var validation *ValidationError
		assert.ErrorAs(t, err, &validation)
	})

	t.Run("rejects movement for another row", func(t *testing.T) {
		item := newTestItem(t)
		other := newTestItem(t)
		err := item.ApplyMovement(mustMovement(t, other, MovementRestock, 1))
		assert.Error(t, err)
	})

	t.Run("adjustment records count time", func(t *testing.T) {
		item := newTestItem(t)
		require.NoError(t, item.ApplyMovement(mustMovement(t, item, MovementRestock, 10)))
		require.Nil(t, item.LastCountedAt)

		require.NoError(t, item.ApplyMovement(mustMovement(t, item, MovementAdjustment, -2)))
		require.NotNil(t, item.LastCountedAt)
		assert.Equal(t, int64(8), item.OnHand)
	})
}

func TestInventoryItemLowStockEvent(t *testing.T) {
	item := newTestItem(t)
	require.NoError(t, item.ApplyMovement(mustMovement(t, item, MovementRestock, 10)))
	require.NoError(t, item.SetSafetyStock(4))

	// still at the floor, no event
	require.NoError(t, item.ApplyMovement(mustMovement(t, item, MovementSale, -6)))
	assert.Empty(t, item.GetDomainEvents())

	require.NoError(t, item.ApplyMovement(mustMovement(t, item, MovementSale, -1)))
	events := item.GetDomainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventStockBelowSafety, events[0].EventType())

	// already below, crossing is not re-announced
	require.NoError(t, item.ApplyMovement(mustMovement(t, item, MovementSale, -1)))
	assert.Len(t, item.GetDomainEvents(), 1)
}

func TestInventoryItemMovingAverageCost(t *testing.T) {
	item := newTestItem(t)

	first := mustMovement(t, item, MovementRestock, 10).WithUnitCost(decimal.NewFromFloat(2.00))
	require.NoError(t, item.ApplyMovement(first))
	assert.True(t, item.UnitCost.Equal(decimal.NewFromFloat(2.00)), "got %s", item.UnitCost)

	second := mustMovement(t, item, MovementRestock, 10).WithUnitCost(decimal.NewFromFloat(4.00))
	require.NoError(t, item.ApplyMovement(second))
	assert.True(t, item.UnitCost.Equal(decimal.NewFromFloat(3.00)), "got %s", item.UnitCost)

	assert.True(t, item.InventoryValue().Equal(decimal.NewFromInt(60)), "got %s", item.InventoryValue())
}

func TestInventoryItemChannelBuffers(t *testing.T) {
	item := newTestItem(t)

	require.NoError(t, item.SetChannelBuffer("web", 5))
	assert.Equal(t, int64(5), item.ChannelBuffer("web"))

	assert.Error(t, item.SetChannelBuffer("web", -1))
	assert.Error(t, item.SetChannelBuffer("", 1))

	// zero removes the entry
	require.NoError(t, item.SetChannelBuffer("web", 0))
	_, exists := item.ChannelBuffers["web"]
	assert.False(t, exists)
}

func TestInventoryItemSafetyStock(t *testing.T) {
	item := newTestItem(t)
	assert.Error(t, item.SetSafetyStock(-1))

	require.NoError(t, item.ApplyMovement(mustMovement(t, item, MovementRestock, 3)))
	require.NoError(t, item.SetSafetyStock(10))
	assert.Equal(t, int64(-7), item.ReservablePool())
	assert.Equal(t, int64(0), item.AvailableToSell("web"))
	assert.True(t, item.IsBelowSafetyStock())
}
