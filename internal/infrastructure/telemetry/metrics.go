// Package telemetry provides OpenTelemetry metrics for the ledger engine.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/stockledger/backend/internal/domain/inventory"
	"github.com/stockledger/backend/internal/domain/shared"
)

// LedgerMetrics tracks engine activity: movements applied, reservation
// lifecycle transitions and executed transfers. It also implements
// shared.EventHandler so domain events feed the counters when subscribed
// to the event bus.
type LedgerMetrics struct {
	logger *zap.Logger

	movementsTotal      metric.Int64Counter
	reservationsExpired metric.Int64Counter
	quantityFreed       metric.Int64Counter
	lowStockAlerts      metric.Int64Counter
	transfersCompleted  metric.Int64Counter
}

// NewLedgerMetrics creates the engine's metric instruments on the given meter
func NewLedgerMetrics(meter metric.Meter, logger *zap.Logger) (*LedgerMetrics, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &LedgerMetrics{logger: logger}

	var err error
	m.movementsTotal, err = meter.Int64Counter(
		"ledger_movements_total",
		metric.WithDescription("Total stock movements applied, by type"),
		metric.WithUnit("{movements}"),
	)
	if err != nil {
		return nil, err
	}
	m.reservationsExpired, err = meter.Int64Counter(
		"ledger_reservations_expired_total",
		metric.WithDescription("Reservations reclaimed by the expiry sweep"),
		metric.WithUnit("{reservations}"),
	)
	if err != nil {
		return nil, err
	}
	m.quantityFreed, err = meter.Int64Counter(
		"ledger_expired_quantity_freed_total",
		metric.WithDescription("Units returned to the pool by the expiry sweep"),
		metric.WithUnit("{units}"),
	)
	if err != nil {
		return nil, err
	}
	m.lowStockAlerts, err = meter.Int64Counter(
		"ledger_low_stock_alerts_total",
		metric.WithDescription("Ledger rows that crossed under their safety floor"),
		metric.WithUnit("{rows}"),
	)
	if err != nil {
		return nil, err
	}
	m.transfersCompleted, err = meter.Int64Counter(
		"ledger_transfers_completed_total",
		metric.WithDescription("Transfers executed between locations"),
		metric.WithUnit("{transfers}"),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// RecordMovement counts one applied movement
func (m *LedgerMetrics) RecordMovement(ctx context.Context, movementType inventory.MovementType) {
	m.movementsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", movementType.String()),
	))
}

// Handle feeds domain events into the counters
func (m *LedgerMetrics) Handle(ctx context.Context, evt shared.DomainEvent) error {
	switch e := evt.(type) {
	case *inventory.StockMovementAppliedEvent:
		m.RecordMovement(ctx, e.MovementType)
	case *inventory.ReservationExpiredEvent:
		m.reservationsExpired.Add(ctx, 1)
		m.quantityFreed.Add(ctx, e.Quantity)
	case *inventory.StockBelowSafetyEvent:
		m.lowStockAlerts.Add(ctx, 1)
	case *inventory.TransferCompletedEvent:
		m.transfersCompleted.Add(ctx, 1)
	default:
		m.logger.Debug("Unhandled event type for metrics", zap.String("event_type", evt.EventType()))
	}
	return nil
}

// EventTypes lists the events this handler subscribes to
func (m *LedgerMetrics) EventTypes() []string {
	return []string{
		inventory.EventMovementApplied,
		inventory.EventReservationExpired,
		inventory.EventStockBelowSafety,
		inventory.EventTransferCompleted,
	}
}

var _ shared.EventHandler = (*LedgerMetrics)(nil)
