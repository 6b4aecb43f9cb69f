package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryAvailabilityCache caches per-channel availability in process
// memory. Suitable for single-instance deployments and tests. Entries
// share one expiry per ledger row.
type MemoryAvailabilityCache struct {
	mu   sync.RWMutex
	rows map[string]*memoryRow
	ttl  time.Duration
}

type memoryRow struct {
	channels  map[string]int64
	expiresAt time.Time
}

// NewMemoryAvailabilityCache creates an in-memory availability cache
func NewMemoryAvailabilityCache(ttl time.Duration) *MemoryAvailabilityCache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &MemoryAvailabilityCache{
		rows: make(map[string]*memoryRow),
		ttl:  ttl,
	}
}

func rowKey(tenantID, variantID, locationID uuid.UUID) string {
	return tenantID.String() + ":" + variantID.String() + ":" + locationID.String()
}

// Get returns the cached availability for one channel, if present and fresh
func (c *MemoryAvailabilityCache) Get(_ context.Context, tenantID, variantID, locationID uuid.UUID, channel string) (int64, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	row, ok := c.rows[rowKey(tenantID, variantID, locationID)]
	if !ok || time.Now().After(row.expiresAt) {
		return 0, false, nil
	}
	available, ok := row.channels[channel]
	return available, ok, nil
}

// Set caches the availability for one channel and refreshes the row's expiry
func (c *MemoryAvailabilityCache) Set(_ context.Context, tenantID, variantID, locationID uuid.UUID, channel string, available int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := rowKey(tenantID, variantID, locationID)
	row, ok := c.rows[key]
	if !ok || time.Now().After(row.expiresAt) {
		row = &memoryRow{channels: make(map[string]int64)}
		c.rows[key] = row
	}
	row.channels[channel] = available
	row.expiresAt = time.Now().Add(c.ttl)
	return nil
}

// Invalidate drops all cached channels for one ledger row
func (c *MemoryAvailabilityCache) Invalidate(_ context.Context, tenantID, variantID, locationID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rows, rowKey(tenantID, variantID, locationID))
	return nil
}

// Purge drops every expired row. Called periodically by the owner to bound
// memory growth.
func (c *MemoryAvailabilityCache) Purge() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, row := range c.rows {
		if now.After(row.expiresAt) {
			delete(c.rows, key)
		}
	}
}
