package inventory

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInventoryTransfer(t *testing.T) {
	tenantID, variantID := uuid.New(), uuid.New()
	from, to := uuid.New(), uuid.New()

	t.Run("creates pending transfer", func(t *testing.T) {
		tr, err := NewInventoryTransfer(tenantID, variantID, from, to, 5, "rebalance", "REQ-7", "ship monday", "ops")
		require.NoError(t, err)
		assert.Equal(t, TransferPending, tr.Status)
		assert.True(t, tr.IsPending())
		assert.Equal(t, "REQ-7", tr.Reference)
		assert.Equal(t, "ship monday", tr.Notes)
	})

	t.Run("rejects same source and destination", func(t *testing.T) {
		_, err := NewInventoryTransfer(tenantID, variantID, from, from, 5, "", "", "", "ops")
		var invalid *InvalidTransferError
		assert.ErrorAs(t, err, &invalid)
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		_, err := NewInventoryTransfer(tenantID, variantID, from, to, 0, "", "", "", "ops")
		var invalid *InvalidTransferError
		assert.ErrorAs(t, err, &invalid)

		_, err = NewInventoryTransfer(tenantID, variantID, from, to, -2, "", "", "", "ops")
		assert.ErrorAs(t, err, &invalid)
	})

	t.Run("requires requester", func(t *testing.T) {
		_, err := NewInventoryTransfer(tenantID, variantID, from, to, 5, "", "", "", "")
		assert.Error(t, err)
	})
}

func TestTransferLifecycle(t *testing.T) {
	newTransfer := func(t *testing.T) *InventoryTransfer {
		tr, err := NewInventoryTransfer(uuid.New(), uuid.New(), uuid.New(), uuid.New(), 5, "", "", "", "ops")
		require.NoError(t, err)
		return tr
	}

	t.Run("complete", func(t *testing.T) {
		tr := newTransfer(t)
		require.NoError(t, tr.Complete())
		assert.Equal(t, TransferCompleted, tr.Status)
		assert.NotNil(t, tr.CompletedAt)
	})

	t.Run("cancel", func(t *testing.T) {
		tr := newTransfer(t)
		require.NoError(t, tr.Cancel())
		assert.Equal(t, TransferCancelled, tr.Status)
		assert.NotNil(t, tr.CancelledAt)
	})

	t.Run("terminal states are final", func(t *testing.T) {
		tr := newTransfer(t)
		require.NoError(t, tr.Complete())

		var transition *InvalidStateTransitionError
		assert.ErrorAs(t, tr.Complete(), &transition)
		assert.ErrorAs(t, tr.Cancel(), &transition)
	})
}

func TestNewStockMovementValidation(t *testing.T) {
	tenantID, variantID, locationID := uuid.New(), uuid.New(), uuid.New()

	t.Run("sign must match direction", func(t *testing.T) {
		_, err := NewStockMovement(tenantID, variantID, locationID, MovementSale, 3, "", "", "pos")
		assert.Error(t, err)

		_, err = NewStockMovement(tenantID, variantID, locationID, MovementRestock, -3, "", "", "pos")
		assert.Error(t, err)
	})

	t.Run("adjustment goes either way", func(t *testing.T) {
		_, err := NewStockMovement(tenantID, variantID, locationID, MovementAdjustment, -3, "shrinkage", "", "count")
		assert.NoError(t, err)

		_, err = NewStockMovement(tenantID, variantID, locationID, MovementAdjustment, 3, "recount", "", "count")
		assert.NoError(t, err)
	})

	t.Run("zero delta rejected", func(t *testing.T) {
		_, err := NewStockMovement(tenantID, variantID, locationID, MovementAdjustment, 0, "", "", "count")
		assert.Error(t, err)
	})

	t.Run("unknown type rejected", func(t *testing.T) {
		_, err := NewStockMovement(tenantID, variantID, locationID, MovementType("teleport"), 1, "", "", "x")
		assert.Error(t, err)
	})
}
