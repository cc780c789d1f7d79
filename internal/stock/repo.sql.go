package stock

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists stock data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations used by the service and
// by the inventory engine when it applies adjustments in its own transaction.
type TxRepository interface {
	GetStockRowForUpdate(ctx context.Context, productID, warehouseID int64) (StockRow, error)
	UpsertStockRow(ctx context.Context, row StockRow) error
	InsertMovement(ctx context.Context, movement Movement) (int64, error)
	WarehouseExists(ctx context.Context, warehouseID int64) (bool, error)
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository wraps an open transaction for cross-module composition.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// WithTx executes the callback inside a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("stock repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func (r *txRepository) GetStockRowForUpdate(ctx context.Context, productID, warehouseID int64) (StockRow, error) {
	var row StockRow
	err := r.tx.QueryRow(ctx, `SELECT product_id, warehouse_id, quantity, reserved_quantity, unit_cost, total_cost, min_stock_level, last_movement_date
FROM stock_rows WHERE product_id=$1 AND warehouse_id=$2 FOR UPDATE`, productID, warehouseID).
		Scan(&row.ProductID, &row.WarehouseID, &row.Quantity, &row.Reserved, &row.UnitCost, &row.TotalCost, &row.MinLevel, &row.LastMovementAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockRow{ProductID: productID, WarehouseID: warehouseID}, ErrStockRowNotFound
		}
		return StockRow{}, err
	}
	return row, nil
}

func (r *txRepository) UpsertStockRow(ctx context.Context, row StockRow) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_rows (product_id, warehouse_id, quantity, reserved_quantity, unit_cost, total_cost, min_stock_level, last_movement_date)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (product_id, warehouse_id) DO UPDATE SET
quantity=EXCLUDED.quantity, reserved_quantity=EXCLUDED.reserved_quantity, unit_cost=EXCLUDED.unit_cost,
total_cost=EXCLUDED.total_cost, min_stock_level=EXCLUDED.min_stock_level, last_movement_date=EXCLUDED.last_movement_date`,
		row.ProductID, row.WarehouseID, row.Quantity, row.Reserved, row.UnitCost, row.TotalCost, row.MinLevel, row.LastMovementAt)
	return err
}

func (r *txRepository) InsertMovement(ctx context.Context, movement Movement) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO movements (kind, product_id, warehouse_id, destination_warehouse_id, quantity, unit_cost, total_cost, quantity_before, quantity_after, reference, ts, actor_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12) RETURNING id`,
		string(movement.Kind), movement.ProductID, movement.WarehouseID, movement.DestWarehouseID,
		movement.Quantity, movement.UnitCost, movement.TotalCost, movement.QuantityBefore, movement.QuantityAfter,
		movement.Reference, movement.OccurredAt, nullInt(movement.ActorID)).Scan(&id)
	return id, err
}

func (r *txRepository) WarehouseExists(ctx context.Context, warehouseID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM warehouses WHERE id=$1 AND is_active)`, warehouseID).Scan(&exists)
	return exists, err
}

const overviewColumns = `product_id, warehouse_id, quantity, reserved_quantity, unit_cost, total_cost, min_stock_level`

func scanOverviewRows(rows pgx.Rows) ([]OverviewRow, error) {
	defer rows.Close()
	out := []OverviewRow{}
	for rows.Next() {
		var row OverviewRow
		if err := rows.Scan(&row.ProductID, &row.WarehouseID, &row.Quantity, &row.Reserved, &row.UnitCost, &row.TotalCost, &row.MinLevel); err != nil {
			return nil, err
		}
		row.Available = row.Quantity.Sub(row.Reserved)
		row.Status = DeriveStatus(row.Available, row.MinLevel)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Overview lists stock rows, optionally limited to one warehouse.
func (r *Repository) Overview(ctx context.Context, warehouseID *int64) ([]OverviewRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+overviewColumns+`
FROM stock_rows
WHERE ($1::bigint IS NULL OR warehouse_id=$1)
ORDER BY warehouse_id ASC, product_id ASC`, warehouseID)
	if err != nil {
		return nil, err
	}
	return scanOverviewRows(rows)
}

// ProductDetail lists the per-warehouse breakdown for one product.
func (r *Repository) ProductDetail(ctx context.Context, productID int64) (ProductDetail, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+overviewColumns+`
FROM stock_rows WHERE product_id=$1 ORDER BY warehouse_id ASC`, productID)
	if err != nil {
		return ProductDetail{}, err
	}
	overview, err := scanOverviewRows(rows)
	if err != nil {
		return ProductDetail{}, err
	}
	detail := ProductDetail{ProductID: productID, Rows: overview}
	for _, row := range overview {
		detail.TotalQuantity = detail.TotalQuantity.Add(row.Quantity)
		detail.TotalValue = detail.TotalValue.Add(row.TotalCost)
	}
	return detail, nil
}

// Movements lists movement history, most recent first.
func (r *Repository) Movements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `SELECT id, kind, product_id, warehouse_id, destination_warehouse_id, quantity, unit_cost, total_cost, quantity_before, quantity_after, reference, ts, COALESCE(actor_id, 0)
FROM movements
WHERE ($1::bigint IS NULL OR product_id=$1)
AND ($2::bigint IS NULL OR warehouse_id=$2 OR destination_warehouse_id=$2)
ORDER BY ts DESC, id DESC
LIMIT $3`, filter.ProductID, filter.WarehouseID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	movements := []Movement{}
	for rows.Next() {
		var m Movement
		var kind string
		if err := rows.Scan(&m.ID, &kind, &m.ProductID, &m.WarehouseID, &m.DestWarehouseID, &m.Quantity, &m.UnitCost, &m.TotalCost, &m.QuantityBefore, &m.QuantityAfter, &m.Reference, &m.OccurredAt, &m.ActorID); err != nil {
			return nil, err
		}
		m.Kind = MovementKind(kind)
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return movements, nil
}

// LowStockAlerts lists rows at or below their minimum level, most critical
// first (quantity over minimum, ascending).
func (r *Repository) LowStockAlerts(ctx context.Context, warehouseID *int64) ([]Alert, error) {
	rows, err := r.pool.Query(ctx, `SELECT product_id, warehouse_id, quantity, min_stock_level, quantity / min_stock_level AS ratio
FROM stock_rows
WHERE min_stock_level > 0 AND quantity <= min_stock_level
AND ($1::bigint IS NULL OR warehouse_id=$1)
ORDER BY ratio ASC, product_id ASC`, warehouseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	alerts := []Alert{}
	for rows.Next() {
		var alert Alert
		if err := rows.Scan(&alert.ProductID, &alert.WarehouseID, &alert.Quantity, &alert.MinLevel, &alert.Ratio); err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return alerts, nil
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
