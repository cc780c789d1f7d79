package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/sahel-erp/sahel-erp/internal/observability"
	"github.com/sahel-erp/sahel-erp/internal/shared"
	"github.com/sahel-erp/sahel-erp/internal/stock"
)

// AlertSource lists the low-stock rows to report on.
type AlertSource interface {
	LowStockAlerts(ctx context.Context, warehouseID *int64) ([]stock.Alert, error)
}

// AuditPort records a trace of each scheduled run.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// LowStockScanner walks stock rows below their minimum level and logs each
// alert, worst ratio first.
type LowStockScanner struct {
	source  AlertSource
	audit   AuditPort
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewLowStockScanner constructs LowStockScanner.
func NewLowStockScanner(source AlertSource, audit AuditPort, logger *slog.Logger, metrics *observability.Metrics) *LowStockScanner {
	return &LowStockScanner{source: source, audit: audit, logger: logger, metrics: metrics}
}

// Handle processes TaskLowStockScan tasks.
func (s *LowStockScanner) Handle(ctx context.Context, t *asynq.Task) error {
	return s.metrics.Track("low_stock_scan").End(s.handle(ctx, t))
}

func (s *LowStockScanner) handle(ctx context.Context, t *asynq.Task) error {
	var payload LowStockScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	alerts, err := s.source.LowStockAlerts(ctx, payload.WarehouseID)
	if err != nil {
		return err
	}
	for _, alert := range alerts {
		s.logger.Warn("low stock",
			slog.Int64("product_id", alert.ProductID),
			slog.Int64("warehouse_id", alert.WarehouseID),
			slog.String("quantity", alert.Quantity.String()),
			slog.String("min_level", alert.MinLevel.String()),
			slog.String("ratio", alert.Ratio.String()),
		)
	}
	s.logger.Info("low stock scan finished", slog.Int("alerts", len(alerts)))

	// Best effort, a run trace must never fail the job.
	if err := s.audit.Record(ctx, shared.AuditLog{
		Action:   "jobs.low_stock_scan",
		Entity:   "job",
		EntityID: TaskLowStockScan,
		Meta:     map[string]any{"alerts": len(alerts)},
	}); err != nil {
		s.logger.Warn("audit record failed", slog.Any("error", err))
	}
	return nil
}
