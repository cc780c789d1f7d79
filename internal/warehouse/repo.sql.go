package warehouse

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sahel-erp/sahel-erp/internal/shared"
)

// Repository persists warehouses in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	Insert(ctx context.Context, warehouse Warehouse) (int64, error)
	Update(ctx context.Context, warehouse Warehouse) error
	GetForUpdate(ctx context.Context, id int64) (Warehouse, error)
	ClearDefault(ctx context.Context, enterpriseID int64) error
	HasNonZeroStock(ctx context.Context, id int64) (bool, error)
	ReferencedByActiveConfig(ctx context.Context, id int64) (bool, error)
	Delete(ctx context.Context, id int64) error
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("warehouse repository not initialised")
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

const warehouseColumns = `id, enterprise_id, code, name, type, is_default, is_active, created_at, updated_at`

func scanWarehouse(row pgx.Row) (Warehouse, error) {
	var w Warehouse
	err := row.Scan(&w.ID, &w.EnterpriseID, &w.Code, &w.Name, &w.Type, &w.IsDefault, &w.IsActive, &w.CreatedAt, &w.UpdatedAt)
	return w, err
}

// Get loads one warehouse.
func (r *Repository) Get(ctx context.Context, id int64) (Warehouse, error) {
	w, err := scanWarehouse(r.pool.QueryRow(ctx, `SELECT `+warehouseColumns+` FROM warehouses WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Warehouse{}, ErrNotFound
		}
		return Warehouse{}, err
	}
	return w, nil
}

// List returns all warehouses of an enterprise, default first.
func (r *Repository) List(ctx context.Context, enterpriseID int64) ([]Warehouse, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+warehouseColumns+`
FROM warehouses WHERE enterprise_id=$1 ORDER BY is_default DESC, code ASC`, enterpriseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	warehouses := []Warehouse{}
	for rows.Next() {
		w, err := scanWarehouse(rows)
		if err != nil {
			return nil, err
		}
		warehouses = append(warehouses, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return warehouses, nil
}

func (r *txRepository) Insert(ctx context.Context, warehouse Warehouse) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO warehouses (enterprise_id, code, name, type, is_default, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW(),NOW()) RETURNING id`,
		warehouse.EnterpriseID, warehouse.Code, warehouse.Name, warehouse.Type, warehouse.IsDefault, warehouse.IsActive).Scan(&id)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return 0, ErrDuplicateCode
		}
		return 0, err
	}
	return id, nil
}

func (r *txRepository) Update(ctx context.Context, warehouse Warehouse) error {
	tag, err := r.tx.Exec(ctx, `UPDATE warehouses SET name=$2, type=$3, is_default=$4, is_active=$5, updated_at=NOW() WHERE id=$1`,
		warehouse.ID, warehouse.Name, warehouse.Type, warehouse.IsDefault, warehouse.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Warehouse, error) {
	w, err := scanWarehouse(r.tx.QueryRow(ctx, `SELECT `+warehouseColumns+` FROM warehouses WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Warehouse{}, ErrNotFound
		}
		return Warehouse{}, err
	}
	return w, nil
}

func (r *txRepository) ClearDefault(ctx context.Context, enterpriseID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE warehouses SET is_default=FALSE, updated_at=NOW() WHERE enterprise_id=$1 AND is_default`, enterpriseID)
	return err
}

func (r *txRepository) HasNonZeroStock(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM stock_rows WHERE warehouse_id=$1 AND quantity <> 0)`, id).Scan(&exists)
	return exists, err
}

func (r *txRepository) ReferencedByActiveConfig(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM account_configs WHERE warehouse_id=$1 AND is_active)`, id).Scan(&exists)
	return exists, err
}

func (r *txRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM warehouses WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
