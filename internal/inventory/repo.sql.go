package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sahel-erp/sahel-erp/internal/accounting"
	"github.com/sahel-erp/sahel-erp/internal/shared"
	"github.com/sahel-erp/sahel-erp/internal/stock"
)

// Repository persists inventory sessions in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service. The
// stock adjustment and journal posting methods run against the same
// transaction so finalization commits or rolls back as one.
type TxRepository interface {
	WarehouseExists(ctx context.Context, warehouseID int64) (bool, error)
	InsertSession(ctx context.Context, session Session) (int64, error)
	InsertItems(ctx context.Context, sessionID int64, items []Item) error
	GetSessionForUpdate(ctx context.Context, id int64) (Session, error)
	ListItems(ctx context.Context, sessionID int64) ([]Item, error)
	UpdateItemCount(ctx context.Context, item Item) error
	UpdateSessionProgress(ctx context.Context, session Session) error
	CompleteSession(ctx context.Context, session Session) error
	SnapshotStock(ctx context.Context, warehouseID int64, includeZero bool) ([]SnapshotRow, error)
	SnapshotProducts(ctx context.Context, warehouseID int64, productIDs []int64) ([]SnapshotRow, error)
	ApplyStockAdjustment(ctx context.Context, input stock.DeltaInput) (stock.Movement, error)
	GetAccountConfig(ctx context.Context, enterpriseID int64, posID *int64) (*accounting.AccountConfig, error)
	PostJournal(ctx context.Context, input accounting.PostingInput) (int64, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("inventory repository not initialised")
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

const sessionColumns = `id, enterprise_id, pos_id, reference, name, warehouse_id, type, status,
scheduled_date, started_date, completed_date, completed_by,
total_items, counted_items, total_discrepancies, total_variance_value, created_by, created_at`

func scanSession(row pgx.Row) (Session, error) {
	var s Session
	var rawType, rawStatus string
	var createdBy *int64
	err := row.Scan(&s.ID, &s.EnterpriseID, &s.PosID, &s.Reference, &s.Name, &s.WarehouseID, &rawType, &rawStatus,
		&s.ScheduledDate, &s.StartedAt, &s.CompletedAt, &s.CompletedBy,
		&s.TotalItems, &s.CountedItems, &s.TotalDiscrepancies, &s.TotalVarianceValue, &createdBy, &s.CreatedAt)
	if err != nil {
		return Session{}, err
	}
	if s.Type, err = ParseType(rawType); err != nil {
		return Session{}, err
	}
	if s.Status, err = ParseStatus(rawStatus); err != nil {
		return Session{}, err
	}
	if createdBy != nil {
		s.CreatedBy = *createdBy
	}
	return s, nil
}

// Get loads one session.
func (r *Repository) Get(ctx context.Context, id int64) (Session, error) {
	s, err := scanSession(r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM inventory_sessions WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	return s, nil
}

// List returns the sessions of an enterprise, newest first, optionally
// filtered by status.
func (r *Repository) List(ctx context.Context, enterpriseID int64, status *Status) ([]Session, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+sessionColumns+`
FROM inventory_sessions
WHERE enterprise_id=$1 AND ($2::text IS NULL OR status=$2)
ORDER BY created_at DESC, id DESC`, enterpriseID, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	sessions := []Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

// Items lists the items of a session ordered by product id.
func (r *Repository) Items(ctx context.Context, sessionID int64) ([]Item, error) {
	return listItems(ctx, r.pool, sessionID)
}

func (r *txRepository) WarehouseExists(ctx context.Context, warehouseID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM warehouses WHERE id=$1 AND is_active)`, warehouseID).Scan(&exists)
	return exists, err
}

func (r *txRepository) InsertSession(ctx context.Context, session Session) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO inventory_sessions
(enterprise_id, pos_id, reference, name, warehouse_id, type, status, scheduled_date, total_items, counted_items, total_discrepancies, total_variance_value, created_by, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,0,0,0,$10,NOW()) RETURNING id`,
		session.EnterpriseID, session.PosID, session.Reference, session.Name, session.WarehouseID,
		string(session.Type), string(session.Status), session.ScheduledDate, session.TotalItems, nullInt(session.CreatedBy)).Scan(&id)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return 0, ErrDuplicateReference
		}
		return 0, err
	}
	return id, nil
}

func (r *txRepository) InsertItems(ctx context.Context, sessionID int64, items []Item) error {
	for _, item := range items {
		if _, err := r.tx.Exec(ctx, `INSERT INTO inventory_items
(inventory_id, product_id, system_stock, counted_stock, variance, unit_cost, variance_value, sale_price, variance_value_sale, notes, location, counted_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			sessionID, item.ProductID, item.SystemStock, item.CountedStock, item.Variance,
			item.UnitCost, item.VarianceValue, item.SalePrice, item.VarianceValueSale,
			item.Notes, item.Location, item.CountedAt); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) GetSessionForUpdate(ctx context.Context, id int64) (Session, error) {
	s, err := scanSession(r.tx.QueryRow(ctx, `SELECT `+sessionColumns+` FROM inventory_sessions WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	return s, nil
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listItems(ctx context.Context, q queryer, sessionID int64) ([]Item, error) {
	rows, err := q.Query(ctx, `SELECT inventory_id, product_id, system_stock, counted_stock, variance, unit_cost, variance_value, sale_price, variance_value_sale, COALESCE(notes, ''), COALESCE(location, ''), counted_at
FROM inventory_items WHERE inventory_id=$1 ORDER BY product_id ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Item{}
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.SessionID, &item.ProductID, &item.SystemStock, &item.CountedStock, &item.Variance,
			&item.UnitCost, &item.VarianceValue, &item.SalePrice, &item.VarianceValueSale,
			&item.Notes, &item.Location, &item.CountedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *txRepository) ListItems(ctx context.Context, sessionID int64) ([]Item, error) {
	return listItems(ctx, r.tx, sessionID)
}

func (r *txRepository) UpdateItemCount(ctx context.Context, item Item) error {
	tag, err := r.tx.Exec(ctx, `UPDATE inventory_items SET
counted_stock=$3, variance=$4, variance_value=$5, variance_value_sale=$6, notes=$7, counted_at=$8
WHERE inventory_id=$1 AND product_id=$2`,
		item.SessionID, item.ProductID, item.CountedStock, item.Variance, item.VarianceValue, item.VarianceValueSale, item.Notes, item.CountedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *txRepository) UpdateSessionProgress(ctx context.Context, session Session) error {
	_, err := r.tx.Exec(ctx, `UPDATE inventory_sessions SET
status=$2, started_date=$3, counted_items=$4, total_discrepancies=$5, total_variance_value=$6
WHERE id=$1`,
		session.ID, string(session.Status), session.StartedAt, session.CountedItems, session.TotalDiscrepancies, session.TotalVarianceValue)
	return err
}

func (r *txRepository) CompleteSession(ctx context.Context, session Session) error {
	_, err := r.tx.Exec(ctx, `UPDATE inventory_sessions SET
status=$2, completed_date=$3, completed_by=$4, counted_items=$5, total_discrepancies=$6, total_variance_value=$7
WHERE id=$1`,
		session.ID, string(session.Status), session.CompletedAt, session.CompletedBy,
		session.CountedItems, session.TotalDiscrepancies, session.TotalVarianceValue)
	return err
}

func (r *txRepository) SnapshotStock(ctx context.Context, warehouseID int64, includeZero bool) ([]SnapshotRow, error) {
	rows, err := r.tx.Query(ctx, `SELECT s.product_id, s.quantity, s.unit_cost, COALESCE(p.sale_price, 0)
FROM stock_rows s
LEFT JOIN products p ON p.id = s.product_id
WHERE s.warehouse_id=$1 AND ($2 OR s.quantity <> 0)
ORDER BY s.product_id ASC`, warehouseID, includeZero)
	if err != nil {
		return nil, err
	}
	return scanSnapshot(rows)
}

func (r *txRepository) SnapshotProducts(ctx context.Context, warehouseID int64, productIDs []int64) ([]SnapshotRow, error) {
	rows, err := r.tx.Query(ctx, `SELECT t.pid, COALESCE(s.quantity, 0), COALESCE(s.unit_cost, 0), COALESCE(p.sale_price, 0)
FROM unnest($2::bigint[]) AS t(pid)
LEFT JOIN products p ON p.id = t.pid
LEFT JOIN stock_rows s ON s.product_id = t.pid AND s.warehouse_id=$1
ORDER BY t.pid ASC`, warehouseID, productIDs)
	if err != nil {
		return nil, err
	}
	return scanSnapshot(rows)
}

func scanSnapshot(rows pgx.Rows) ([]SnapshotRow, error) {
	defer rows.Close()
	snapshot := []SnapshotRow{}
	for rows.Next() {
		var row SnapshotRow
		if err := rows.Scan(&row.ProductID, &row.Quantity, &row.UnitCost, &row.SalePrice); err != nil {
			return nil, err
		}
		snapshot = append(snapshot, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (r *txRepository) ApplyStockAdjustment(ctx context.Context, input stock.DeltaInput) (stock.Movement, error) {
	movement, _, err := stock.ApplyDelta(ctx, stock.NewTxRepository(r.tx), input)
	return movement, err
}

func (r *txRepository) GetAccountConfig(ctx context.Context, enterpriseID int64, posID *int64) (*accounting.AccountConfig, error) {
	return accounting.NewTxRepository(r.tx).GetAccountConfig(ctx, enterpriseID, posID)
}

func (r *txRepository) PostJournal(ctx context.Context, input accounting.PostingInput) (int64, error) {
	return accounting.PostTx(ctx, accounting.NewTxRepository(r.tx), input)
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
