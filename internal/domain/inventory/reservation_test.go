package inventory

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReservation(t *testing.T) *InventoryReservation {
	t.Helper()
	r, err := NewInventoryReservation(uuid.New(), uuid.New(), uuid.New(), "order-1", "web", 3, 15*time.Minute)
	require.NoError(t, err)
	return r
}

func TestNewInventoryReservation(t *testing.T) {
	t.Run("creates active reservation", func(t *testing.T) {
		r := newTestReservation(t)
		assert.Equal(t, ReservationActive, r.Status)
		assert.True(t, r.IsActive())
		assert.True(t, r.ExpiresAt.After(time.Now()))
	})

	t.Run("validates inputs", func(t *testing.T) {
		tenantID, variantID, locationID := uuid.New(), uuid.New(), uuid.New()

		_, err := NewInventoryReservation(uuid.Nil, variantID, locationID, "o", "web", 1, time.Minute)
		assert.Error(t, err)

		_, err = NewInventoryReservation(tenantID, variantID, locationID, "", "web", 1, time.Minute)
		assert.Error(t, err)

		_, err = NewInventoryReservation(tenantID, variantID, locationID, "o", "web", 0, time.Minute)
		assert.Error(t, err)

		_, err = NewInventoryReservation(tenantID, variantID, locationID, "o", "web", 1, 0)
		assert.Error(t, err)
	})
}

func TestReservationLifecycle(t *testing.T) {
	t.Run("release", func(t *testing.T) {
		r := newTestReservation(t)
		require.NoError(t, r.Release())
		assert.Equal(t, ReservationReleased, r.Status)
		assert.NotNil(t, r.ClosedAt)
	})

	t.Run("consume", func(t *testing.T) {
		r := newTestReservation(t)
		require.NoError(t, r.Consume())
		assert.Equal(t, ReservationConsumed, r.Status)
	})

	t.Run("expire", func(t *testing.T) {
		r := newTestReservation(t)
		require.NoError(t, r.Expire())
		assert.Equal(t, ReservationExpired, r.Status)
	})

	t.Run("terminal states reject further transitions", func(t *testing.T) {
		r := newTestReservation(t)
		require.NoError(t, r.Release())

		var transition *InvalidStateTransitionError
		assert.ErrorAs(t, r.Release(), &transition)
		assert.ErrorAs(t, r.Consume(), &transition)
		assert.ErrorAs(t, r.Expire(), &transition)
		assert.Equal(t, ReservationReleased, r.Status)
	})
}

func TestReservationIsExpired(t *testing.T) {
	r := newTestReservation(t)
	assert.False(t, r.IsExpired(time.Now()))
	assert.True(t, r.IsExpired(r.ExpiresAt.Add(time.Second)))

	// consumed reservations never expire
	require.NoError(t, r.Consume())
	assert.False(t, r.IsExpired(r.ExpiresAt.Add(time.Hour)))
}
