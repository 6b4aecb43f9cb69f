package inventory_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	inventoryapp "github.com/stockledger/backend/internal/application/inventory"
	"github.com/stockledger/backend/internal/domain/inventory"
)

func reserveCmd(tenantID, variantID, locationID uuid.UUID, orderID string, qty int64) inventoryapp.ReserveCommand {
	return inventoryapp.ReserveCommand{
		TenantID:   tenantID,
		VariantID:  variantID,
		LocationID: locationID,
		OrderID:    orderID,
		Channel:    "web",
		Quantity:   qty,
		Actor:      "tester",
	}
}

func TestReservationService_ReserveDrawsFromPoolAboveSafety(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tenantID, variantID, locationID := uuid.New(), uuid.New(), uuid.New()

	f.restock(t, tenantID, variantID, locationID, 10, "")
	_, err := f.ledger.SetSafetyStock(ctx, tenantID, variantID, locationID, 2)
	require.NoError(t, err)

	// pool is 8, so 9 must be refused with the pool as available
	_, err = f.reservations.Reserve(ctx, reserveCmd(tenantID, variantID, locationID, "SO-1", 9))
	var insufficientErr *inventory.InsufficientInventoryError
	require.ErrorAs(t, err, &insufficientErr)
	assert.Equal(t, int64(8), insufficientErr.Available)

	reservation, err := f.reservations.Reserve(ctx, reserveCmd(tenantID, variantID, locationID, "SO-1", 8))
	require.NoError(t, err)
	assert.Equal(t, inventory.ReservationActive, reservation.Status)

	item := f.row(t, tenantID, variantID, locationID)
	assert.Equal(t, int64(10), item.OnHand)
	assert.Equal(t, int64(8), item.Reserved)
}

func TestReservationService_ChannelBuffersNeverBlockReserve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tenantID, variantID, locationID := uuid.New(), uuid.New(), uuid.New()

	f.restock(t, tenantID, variantID, locationID, 10, "")
	_, err := f.ledger.SetChannelBuffer(ctx, tenantID, variantID, locationID, "web", 100)
	require.NoError(t, err)

	// the buffer pushes displayed availability to zero but the pool is intact
	available, err := f.ledger.GetAvailability(ctx, tenantID, variantID, locationID, "web")
	require.NoError(t, err)
	assert.Equal(t, int64(0), available)

	_, err = f.reservations.Reserve(ctx, reserveCmd(tenantID, variantID, locationID, "SO-1", 10))
	require.NoError(t, err)
}

func TestReservationService_ReleaseReturnsQuantityAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tenantID, variantID, locationID := uuid.New(), uuid.New(), uuid.New()

	f.restock(t, tenantID, variantID, locationID, 10, "")
	reservation, err := f.reservations.Reserve(ctx, reserveCmd(tenantID, variantID, locationID, "SO-1", 4))
	require.NoError(t, err)

	require.NoError(t, f.reservations.Release(ctx, tenantID, reservation.ID, "tester"))
	item := f.row(t, tenantID, variantID, locationID)
	assert.Equal(t, int64(0), item.Reserved)
	assert.Equal(t, int64(10), item.OnHand)

	// retrying a cancellation must not double-release
	require.NoError(t, f.reservations.Release(ctx, tenantID, reservation.ID, "tester"))
	item = f.row(t, tenantID, variantID, locationID)
	assert.Equal(t, int64(0), item.Reserved)

	stored, err := f.reservations.GetReservation(ctx, tenantID, reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, inventory.ReservationReleased, stored.Status)
}

func TestReservationService_ReleaseConsumedFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tenantID, variantID, locationID := uuid.New(), uuid.New(), uuid.New()

	f.restock(t, tenantID, variantID, locationID, 10, "")
	reservation, err := f.reservations.Reserve(ctx, reserveCmd(tenantID, variantID, locationID, "SO-1", 4))
	require.NoError(t, err)
	require.NoError(t, f.reservations.Consume(ctx, tenantID, reservation.ID, "tester"))

	err = f.reservations.Release(ctx, tenantID, reservation.ID, "tester")
	var transitionErr *inventory.InvalidStateTransitionError
	assert.ErrorAs(t, err, &transitionErr)
}

func TestReservationService_ConsumeDebitsOnHandAndClosesHold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tenantID, variantID, locationID := uuid.New(), uuid.New(), uuid.New()

	f.restock(t, tenantID, variantID, locationID, 10, "")
	reservation, err := f.reservations.Reserve(ctx, reserveCmd(tenantID, variantID, locationID, "SO-9", 4))
	require.NoError(t, err)

	require.NoError(t, f.reservations.Consume(ctx, tenantID, reservation.ID, "tester"))

	item := f.row(t, tenantID, variantID, locationID)
	assert.Equal(t, int64(6), item.OnHand)
	assert.Equal(t, int64(0), item.Reserved)

	stored, err := f.reservations.GetReservation(ctx, tenantID, reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, inventory.ReservationConsumed, stored.Status)

	// fulfillment leaves a release and a sale movement referencing the order
	movements, err := f.ledger.GetMovementsByReference(ctx, tenantID, "SO-9")
	require.NoError(t, err)
	types := make(map[inventory.MovementType]int64)
	for _, m := range movements {
		types[m.Type] += m.QuantityDelta
	}
	assert.Equal(t, int64(4), types[inventory.MovementReservationHold])
	assert.Equal(t, int64(-4), types[inventory.MovementReservationRelease])
	assert.Equal(t, int64(-4), types[inventory.MovementSale])
}

func TestReservationService_ConsumePastDeadlineFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tenantID, variantID, locationID := uuid.New(), uuid.New(), uuid.New()

	f.restock(t, tenantID, variantID, locationID, 10, "")
	cmd := reserveCmd(tenantID, variantID, locationID, "SO-1", 2)
	cmd.TTL = time.Millisecond
	reservation, err := f.reservations.Reserve(ctx, cmd)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	err = f.reservations.Consume(ctx, tenantID, reservation.ID, "tester")
	var transitionErr *inventory.InvalidStateTransitionError
	require.ErrorAs(t, err, &transitionErr)

	// the hold is untouched until the sweep reclaims it
	item := f.row(t, tenantID, variantID, locationID)
	assert.Equal(t, int64(2), item.Reserved)
}

func TestReservationService_ReleaseByOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tenantID, variantID, locationID := uuid.New(), uuid.New(), uuid.New()

	f.restock(t, tenantID, variantID, locationID, 10, "")
	_, err := f.reservations.Reserve(ctx, reserveCmd(tenantID, variantID, locationID, "SO-1", 2))
	require.NoError(t, err)
	_, err = f.reservations.Reserve(ctx, reserveCmd(tenantID, variantID, locationID, "SO-1", 3))
	require.NoError(t, err)
	_, err = f.reservations.Reserve(ctx, reserveCmd(tenantID, variantID, locationID, "SO-2", 1))
	require.NoError(t, err)

	released, err := f.reservations.ReleaseByOrder(ctx, tenantID, "SO-1", "tester")
	require.NoError(t, err)
	assert.Equal(t, 2, released)

	item := f.row(t, tenantID, variantID, locationID)
	assert.Equal(t, int64(1), item.Reserved)

	count, err := f.reservations.CountActive(ctx, tenantID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestReservationExpirationService_SweepReclaimsOverdueHolds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tenantID, variantID, locationID := uuid.New(), uuid.New(), uuid.New()

	f.restock(t, tenantID, variantID, locationID, 10, "")

	short := reserveCmd(tenantID, variantID, locationID, "SO-1", 3)
	short.TTL = time.Millisecond
	overdue, err := f.reservations.Reserve(ctx, short)
	require.NoError(t, err)

	long := reserveCmd(tenantID, variantID, locationID, "SO-2", 2)
	long.TTL = time.Hour
	_, err = f.reservations.Reserve(ctx, long)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	stats, err := f.expiration.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalExpired)
	assert.Equal(t, 1, stats.SuccessSwept)
	assert.Equal(t, 0, stats.FailedSweeps)
	assert.Equal(t, int64(3), stats.QuantityFreed)

	item := f.row(t, tenantID, variantID, locationID)
	assert.Equal(t, int64(2), item.Reserved)

	stored, err := f.reservations.GetReservation(ctx, tenantID, overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, inventory.ReservationExpired, stored.Status)

	// a cancellation arriving after the sweep is a harmless no-op
	require.NoError(t, f.reservations.Release(ctx, tenantID, overdue.ID, "tester"))
	item = f.row(t, tenantID, variantID, locationID)
	assert.Equal(t, int64(2), item.Reserved)

	// a second sweep finds nothing left to do
	stats, err = f.expiration.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalExpired)
}
