package telemetry_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/stockledger/backend/internal/domain/inventory"
	"github.com/stockledger/backend/internal/infrastructure/telemetry"
)

func TestLedgerMetrics_CountsMovementEvents(t *testing.T) {
	metrics, err := telemetry.NewLedgerMetrics(noop.NewMeterProvider().Meter("test"), zap.NewNop())
	require.NoError(t, err)

	// the movement counter is fed through the event subscription
	assert.Contains(t, metrics.EventTypes(), inventory.EventMovementApplied)

	movement, err := inventory.NewStockMovement(
		uuid.New(), uuid.New(), uuid.New(),
		inventory.MovementRestock, 5, "", "", "receiving",
	)
	require.NoError(t, err)
	assert.NoError(t, metrics.Handle(context.Background(), inventory.NewStockMovementAppliedEvent(movement)))
}
