package reporting

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sahel-erp/sahel-erp/internal/shared"
	"github.com/sahel-erp/sahel-erp/internal/stock"
)

// Repository reads report data straight from the operational tables. Reports
// are read-only; no transactional surface is needed.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WarehouseStock builds the stock report of one warehouse.
func (r *Repository) WarehouseStock(ctx context.Context, warehouseID int64) (WarehouseStockReport, error) {
	report := WarehouseStockReport{WarehouseID: warehouseID}
	err := r.pool.QueryRow(ctx, `SELECT name FROM warehouses WHERE id=$1`, warehouseID).Scan(&report.WarehouseName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return WarehouseStockReport{}, shared.ErrNotFound
		}
		return WarehouseStockReport{}, err
	}

	rows, err := r.pool.Query(ctx, `SELECT s.product_id, COALESCE(p.name, ''), s.quantity, s.reserved_quantity, s.unit_cost, s.total_cost, s.min_stock_level
FROM stock_rows s
LEFT JOIN products p ON p.id = s.product_id
WHERE s.warehouse_id=$1
ORDER BY s.product_id ASC`, warehouseID)
	if err != nil {
		return WarehouseStockReport{}, err
	}
	defer rows.Close()
	report.Lines = []WarehouseStockLine{}
	for rows.Next() {
		var line WarehouseStockLine
		if err := rows.Scan(&line.ProductID, &line.Name, &line.Quantity, &line.Reserved,
			&line.UnitCost, &line.TotalValue, &line.MinLevel); err != nil {
			return WarehouseStockReport{}, err
		}
		line.Available = line.Quantity.Sub(line.Reserved)
		line.Status = string(stock.DeriveStatus(line.Available, line.MinLevel))
		report.TotalValue = report.TotalValue.Add(line.TotalValue)
		report.Lines = append(report.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return WarehouseStockReport{}, err
	}
	report.ProductCount = len(report.Lines)
	return report, nil
}

// StockByWarehouse totals the stock of an enterprise warehouse by warehouse.
// Warehouses without stock still show up with zero totals.
func (r *Repository) StockByWarehouse(ctx context.Context, enterpriseID int64) (EnterpriseStockReport, error) {
	rows, err := r.pool.Query(ctx, `SELECT w.id, w.code, w.name,
COUNT(s.product_id), COALESCE(SUM(s.quantity), 0), COALESCE(SUM(s.total_cost), 0)
FROM warehouses w
LEFT JOIN stock_rows s ON s.warehouse_id = w.id
WHERE w.enterprise_id=$1
GROUP BY w.id, w.code, w.name
ORDER BY w.code ASC`, enterpriseID)
	if err != nil {
		return EnterpriseStockReport{}, err
	}
	defer rows.Close()
	report := EnterpriseStockReport{EnterpriseID: enterpriseID, Lines: []EnterpriseStockLine{}}
	for rows.Next() {
		var line EnterpriseStockLine
		if err := rows.Scan(&line.WarehouseID, &line.WarehouseCode, &line.WarehouseName,
			&line.ProductCount, &line.TotalQuantity, &line.TotalValue); err != nil {
			return EnterpriseStockReport{}, err
		}
		report.TotalValue = report.TotalValue.Add(line.TotalValue)
		report.Lines = append(report.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return EnterpriseStockReport{}, err
	}
	return report, nil
}

// ProductDistribution builds the multi-warehouse view of one product.
func (r *Repository) ProductDistribution(ctx context.Context, productID int64) (ProductDistributionReport, error) {
	rows, err := r.pool.Query(ctx, `SELECT s.warehouse_id, COALESCE(w.name, ''), s.quantity, s.reserved_quantity, s.unit_cost, s.total_cost
FROM stock_rows s
LEFT JOIN warehouses w ON w.id = s.warehouse_id
WHERE s.product_id=$1
ORDER BY s.warehouse_id ASC`, productID)
	if err != nil {
		return ProductDistributionReport{}, err
	}
	defer rows.Close()
	report := ProductDistributionReport{ProductID: productID, Lines: []ProductWarehouseLine{}}
	for rows.Next() {
		var line ProductWarehouseLine
		if err := rows.Scan(&line.WarehouseID, &line.WarehouseName, &line.Quantity, &line.Reserved,
			&line.UnitCost, &line.TotalValue); err != nil {
			return ProductDistributionReport{}, err
		}
		line.Available = line.Quantity.Sub(line.Reserved)
		report.TotalQuantity = report.TotalQuantity.Add(line.Quantity)
		report.TotalValue = report.TotalValue.Add(line.TotalValue)
		report.Lines = append(report.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return ProductDistributionReport{}, err
	}
	return report, nil
}

// MovementHistory returns one page of the movement ledger, newest first.
func (r *Repository) MovementHistory(ctx context.Context, filter MovementHistoryFilter) (MovementHistoryPage, error) {
	where := `WHERE ($1::bigint IS NULL OR product_id=$1)
AND ($2::bigint IS NULL OR warehouse_id=$2 OR destination_warehouse_id=$2)
AND ($3::text IS NULL OR kind=$3)
AND ($4::timestamptz IS NULL OR ts >= $4)
AND ($5::timestamptz IS NULL OR ts <= $5)`
	args := []any{filter.ProductID, filter.WarehouseID, filter.Kind, filter.From, filter.To}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM movements `+where, args...).Scan(&total); err != nil {
		return MovementHistoryPage{}, err
	}
	p := shared.NewPagination(filter.Page, filter.PerPage, total)

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT id, kind, product_id, warehouse_id, destination_warehouse_id,
quantity, unit_cost, total_cost, quantity_before, quantity_after, COALESCE(reference, ''), ts
FROM movements %s
ORDER BY ts DESC, id DESC
LIMIT $6 OFFSET $7`, where), append(args, p.PerPage, p.Offset())...)
	if err != nil {
		return MovementHistoryPage{}, err
	}
	defer rows.Close()
	page := MovementHistoryPage{
		Lines:      []MovementLine{},
		Page:       p.Page,
		PerPage:    p.PerPage,
		Total:      p.Total,
		TotalPages: p.TotalPages,
	}
	for rows.Next() {
		var line MovementLine
		if err := rows.Scan(&line.ID, &line.Kind, &line.ProductID, &line.WarehouseID, &line.DestinationWarehouseID,
			&line.Quantity, &line.UnitCost, &line.TotalCost, &line.QuantityBefore, &line.QuantityAfter,
			&line.Reference, &line.At); err != nil {
			return MovementHistoryPage{}, err
		}
		page.Lines = append(page.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return MovementHistoryPage{}, err
	}
	return page, nil
}

// InventoryProgress reports the advancement of one counting session.
func (r *Repository) InventoryProgress(ctx context.Context, sessionID int64) (InventoryProgressReport, error) {
	var report InventoryProgressReport
	err := r.pool.QueryRow(ctx, `SELECT id, reference, status, total_items, counted_items, total_discrepancies, total_variance_value
FROM inventory_sessions WHERE id=$1`, sessionID).Scan(
		&report.SessionID, &report.Reference, &report.Status,
		&report.TotalItems, &report.CountedItems, &report.TotalDiscrepancies, &report.TotalVarianceValue)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return InventoryProgressReport{}, shared.ErrNotFound
		}
		return InventoryProgressReport{}, err
	}
	report.ProgressPercent = progressPercent(report.CountedItems, report.TotalItems)
	return report, nil
}

// OpenInventories lists the sessions of an enterprise still being counted.
func (r *Repository) OpenInventories(ctx context.Context, enterpriseID int64) ([]InventoryProgressReport, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, reference, status, total_items, counted_items, total_discrepancies, total_variance_value
FROM inventory_sessions
WHERE enterprise_id=$1 AND status IN ('DRAFT', 'IN_PROGRESS')
ORDER BY id ASC`, enterpriseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	reports := []InventoryProgressReport{}
	for rows.Next() {
		var report InventoryProgressReport
		if err := rows.Scan(&report.SessionID, &report.Reference, &report.Status,
			&report.TotalItems, &report.CountedItems, &report.TotalDiscrepancies, &report.TotalVarianceValue); err != nil {
			return nil, err
		}
		report.ProgressPercent = progressPercent(report.CountedItems, report.TotalItems)
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reports, nil
}
