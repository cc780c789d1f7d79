package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sahel-erp/sahel-erp/internal/observability"
)

// MovementIntegrityChecker verifies the movement ledger: every entry must
// satisfy quantity_after - quantity_before = signed quantity, and every stock
// row's total_cost must equal quantity * unit_cost. Violations are logged,
// never repaired.
type MovementIntegrityChecker struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewMovementIntegrityChecker constructs MovementIntegrityChecker.
func NewMovementIntegrityChecker(pool *pgxpool.Pool, logger *slog.Logger, metrics *observability.Metrics) *MovementIntegrityChecker {
	return &MovementIntegrityChecker{pool: pool, logger: logger, metrics: metrics}
}

// Handle processes TaskMovementIntegrity tasks.
func (c *MovementIntegrityChecker) Handle(ctx context.Context, _ *asynq.Task) error {
	return c.metrics.Track("movement_integrity").End(c.handle(ctx))
}

func (c *MovementIntegrityChecker) handle(ctx context.Context) error {
	brokenMovements, err := c.brokenMovements(ctx)
	if err != nil {
		return err
	}
	driftedRows, err := c.driftedRows(ctx)
	if err != nil {
		return err
	}
	c.logger.Info("movement integrity check finished",
		slog.Int("broken_movements", len(brokenMovements)),
		slog.Int("drifted_rows", len(driftedRows)),
	)
	return nil
}

func (c *MovementIntegrityChecker) brokenMovements(ctx context.Context) ([]int64, error) {
	// Quantities are signed, so before + quantity must land exactly on after.
	rows, err := c.pool.Query(ctx, `SELECT id FROM movements
WHERE quantity_after - quantity_before <> quantity
ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
		c.logger.Error("movement quantity mismatch", slog.Int64("movement_id", id))
	}
	return ids, rows.Err()
}

func (c *MovementIntegrityChecker) driftedRows(ctx context.Context) ([]int64, error) {
	rows, err := c.pool.Query(ctx, `SELECT product_id, warehouse_id FROM stock_rows
WHERE ABS(total_cost - ROUND(quantity * unit_cost, 2)) > 0.01
ORDER BY product_id ASC, warehouse_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []int64{}
	for rows.Next() {
		var productID, warehouseID int64
		if err := rows.Scan(&productID, &warehouseID); err != nil {
			return nil, err
		}
		ids = append(ids, productID)
		c.logger.Error("stock row cost drift",
			slog.Int64("product_id", productID),
			slog.Int64("warehouse_id", warehouseID),
		)
	}
	return ids, rows.Err()
}
