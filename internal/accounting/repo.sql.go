package accounting

import (
	"context"
	"errors"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository persists accounting data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations used by the service and by
// other modules that post journals inside their own transaction.
type TxRepository interface {
	InsertJournal(ctx context.Context, journal Journal) (int64, error)
	InsertJournalLines(ctx context.Context, journalID int64, lines []JournalLine) error
	GetAccountConfig(ctx context.Context, enterpriseID int64, posID *int64) (*AccountConfig, error)
	AccountBalance(ctx context.Context, accountID int64) (decimal.Decimal, error)
	LockAccounts(ctx context.Context, accountIDs ...int64) error
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository wraps an open transaction so callers from other modules can
// compose journal postings with their own writes.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// WithTx executes the callback inside a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("accounting repository not initialised")
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

const accountConfigColumns = `enterprise_id, pos_id, warehouse_id, is_active,
cash_account_id, bank_account_id, client_account_id, supplier_account_id, tax_account_id,
purchase_account_id, discount_account_id, stock_account_id, sales_account_id`

func scanAccountConfig(row pgx.Row) (*AccountConfig, error) {
	var cfg AccountConfig
	err := row.Scan(&cfg.EnterpriseID, &cfg.PosID, &cfg.WarehouseID, &cfg.IsActive,
		&cfg.CashAccountID, &cfg.BankAccountID, &cfg.ClientAccountID, &cfg.SupplierAccountID, &cfg.TaxAccountID,
		&cfg.PurchaseAccountID, &cfg.DiscountAccountID, &cfg.StockAccountID, &cfg.SalesAccountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &cfg, nil
}

// GetConfig reads the account configuration, preferring the point-of-sale
// specific row and falling back to the enterprise default (pos_id NULL).
func (r *Repository) GetConfig(ctx context.Context, enterpriseID int64, posID *int64) (*AccountConfig, error) {
	return getAccountConfig(ctx, r.pool, enterpriseID, posID)
}

func (r *txRepository) GetAccountConfig(ctx context.Context, enterpriseID int64, posID *int64) (*AccountConfig, error) {
	return getAccountConfig(ctx, r.tx, enterpriseID, posID)
}

type queryer interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getAccountConfig(ctx context.Context, q queryer, enterpriseID int64, posID *int64) (*AccountConfig, error) {
	row := q.QueryRow(ctx, `SELECT `+accountConfigColumns+`
FROM account_configs
WHERE enterprise_id=$1 AND (pos_id IS NOT DISTINCT FROM $2 OR pos_id IS NULL)
ORDER BY pos_id NULLS LAST
LIMIT 1`, enterpriseID, posID)
	return scanAccountConfig(row)
}

// AccountBalance computes the signed balance of an account over its journal
// lines (sum of debits minus sum of credits).
func (r *Repository) AccountBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	return accountBalance(ctx, r.pool, accountID)
}

func (r *txRepository) AccountBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	return accountBalance(ctx, r.tx, accountID)
}

func accountBalance(ctx context.Context, q queryer, accountID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := q.QueryRow(ctx, `SELECT COALESCE(SUM(debit), 0) - COALESCE(SUM(credit), 0)
FROM journal_lines WHERE account_id=$1`, accountID).Scan(&balance)
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

// LockAccounts takes row locks on the given accounts, always in ascending id
// order so two transactions touching the same pair serialize instead of
// deadlocking.
func (r *txRepository) LockAccounts(ctx context.Context, accountIDs ...int64) error {
	ids := append([]int64(nil), accountIDs...)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	rows, err := r.tx.Query(ctx, `SELECT id FROM accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	locked := 0
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		locked++
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if locked != len(ids) {
		return ErrAccountNotFound
	}
	return nil
}

func (r *txRepository) InsertJournal(ctx context.Context, journal Journal) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO journals (enterprise_id, date, label, amount, operation_type, reference, actor_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW()) RETURNING id`,
		journal.EnterpriseID, journal.Date, journal.Label, journal.Amount, journal.OperationType, journal.Reference, nullInt(journal.ActorID)).Scan(&id)
	return id, err
}

func (r *txRepository) InsertJournalLines(ctx context.Context, journalID int64, lines []JournalLine) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO journal_lines (journal_id, account_id, debit, credit, ordinal, label)
VALUES ($1,$2,$3,$4,$5,$6)`, journalID, line.AccountID, line.Debit, line.Credit, line.Ordinal, line.Label); err != nil {
			return err
		}
	}
	return nil
}

// GetJournal loads one journal with its lines.
func (r *Repository) GetJournal(ctx context.Context, id int64) (Journal, []JournalLine, error) {
	var journal Journal
	err := r.pool.QueryRow(ctx, `SELECT id, enterprise_id, date, label, amount, operation_type, reference, COALESCE(actor_id, 0), created_at
FROM journals WHERE id=$1`, id).Scan(&journal.ID, &journal.EnterpriseID, &journal.Date, &journal.Label, &journal.Amount,
		&journal.OperationType, &journal.Reference, &journal.ActorID, &journal.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Journal{}, nil, ErrJournalNotFound
		}
		return Journal{}, nil, err
	}
	rows, err := r.pool.Query(ctx, `SELECT id, journal_id, account_id, debit, credit, ordinal, COALESCE(label, '')
FROM journal_lines WHERE journal_id=$1 ORDER BY ordinal ASC`, id)
	if err != nil {
		return Journal{}, nil, err
	}
	defer rows.Close()
	var lines []JournalLine
	for rows.Next() {
		var line JournalLine
		if err := rows.Scan(&line.ID, &line.JournalID, &line.AccountID, &line.Debit, &line.Credit, &line.Ordinal, &line.Label); err != nil {
			return Journal{}, nil, err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return Journal{}, nil, err
	}
	return journal, lines, nil
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}
