package treasury

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/sahel-erp/sahel-erp/internal/accounting"
)

// Repository runs treasury transactions against PostgreSQL. It owns no
// tables; its transactional surface delegates to the accounting package so
// balance checks and postings share one transaction.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations used by the service.
type TxRepository interface {
	LockAccounts(ctx context.Context, accountIDs ...int64) error
	AccountBalance(ctx context.Context, accountID int64) (decimal.Decimal, error)
	PostJournal(ctx context.Context, input accounting.PostingInput) (int64, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("treasury repository not initialised")
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

func (r *txRepository) LockAccounts(ctx context.Context, accountIDs ...int64) error {
	return accounting.NewTxRepository(r.tx).LockAccounts(ctx, accountIDs...)
}

func (r *txRepository) AccountBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	return accounting.NewTxRepository(r.tx).AccountBalance(ctx, accountID)
}

func (r *txRepository) PostJournal(ctx context.Context, input accounting.PostingInput) (int64, error) {
	return accounting.PostTx(ctx, accounting.NewTxRepository(r.tx), input)
}
