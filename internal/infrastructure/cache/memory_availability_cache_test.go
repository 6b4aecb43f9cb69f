package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAvailabilityCache_SetGetInvalidate(t *testing.T) {
	c := NewMemoryAvailabilityCache(time.Minute)
	ctx := context.Background()
	tenantID, variantID, locationID := uuid.New(), uuid.New(), uuid.New()

	_, ok, err := c.Get(ctx, tenantID, variantID, locationID, "web")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, tenantID, variantID, locationID, "web", 7))
	require.NoError(t, c.Set(ctx, tenantID, variantID, locationID, "pos", 9))

	available, ok, err := c.Get(ctx, tenantID, variantID, locationID, "web")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(7), available)

	// a channel never written is a miss even when the row is cached
	_, ok, err = c.Get(ctx, tenantID, variantID, locationID, "wholesale")
	require.NoError(t, err)
	assert.False(t, ok)

	// invalidation drops every channel of the row at once
	require.NoError(t, c.Invalidate(ctx, tenantID, variantID, locationID))
	_, ok, err = c.Get(ctx, tenantID, variantID, locationID, "pos")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryAvailabilityCache_EntriesExpire(t *testing.T) {
	c := NewMemoryAvailabilityCache(10 * time.Millisecond)
	ctx := context.Background()
	tenantID, variantID, locationID := uuid.New(), uuid.New(), uuid.New()

	require.NoError(t, c.Set(ctx, tenantID, variantID, locationID, "web", 7))
	time.Sleep(20 * time.Millisecond)

	_, ok, err := c.Get(ctx, tenantID, variantID, locationID, "web")
	require.NoError(t, err)
	assert.False(t, ok)

	c.Purge()
	assert.Empty(t, c.rows)
}

func TestMemoryAvailabilityCache_RowsAreTenantScoped(t *testing.T) {
	c := NewMemoryAvailabilityCache(time.Minute)
	ctx := context.Background()
	variantID, locationID := uuid.New(), uuid.New()
	tenantA, tenantB := uuid.New(), uuid.New()

	require.NoError(t, c.Set(ctx, tenantA, variantID, locationID, "web", 3))

	_, ok, err := c.Get(ctx, tenantB, variantID, locationID, "web")
	require.NoError(t, err)
	assert.False(t, ok)
}
