package treasury

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sahel-erp/sahel-erp/internal/accounting"
)

type memoryRepo struct {
	balances map[int64]decimal.Decimal
	postings []accounting.PostingInput
	locked   [][]int64
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{balances: map[int64]decimal.Decimal{}}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

type memoryTx struct {
	repo *memoryRepo
}

func (tx *memoryTx) LockAccounts(ctx context.Context, accountIDs ...int64) error {
	tx.repo.locked = append(tx.repo.locked, accountIDs)
	return nil
}

func (tx *memoryTx) AccountBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	if len(tx.repo.locked) == 0 {
		return decimal.Zero, errors.New("balance read before account lock")
	}
	return tx.repo.balances[accountID], nil
}

func (tx *memoryTx) PostJournal(ctx context.Context, input accounting.PostingInput) (int64, error) {
	if err := input.Validate(); err != nil {
		return 0, err
	}
	amount := input.Amount.Round(2)
	tx.repo.balances[input.DebitAccountID] = tx.repo.balances[input.DebitAccountID].Add(amount)
	tx.repo.balances[input.CreditAccountID] = tx.repo.balances[input.CreditAccountID].Sub(amount)
	tx.repo.postings = append(tx.repo.postings, input)
	tx.repo.nextID++
	return tx.repo.nextID, nil
}

func newTestService(repo *memoryRepo, cashAccounts ...int64) *Service {
	svc := NewService(repo, nil, cashAccounts)
	svc.WithNow(func() time.Time {
		return time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	})
	return svc
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func TestTransferPostsJournalAndReportsBalances(t *testing.T) {
	repo := newMemoryRepo()
	repo.balances[571] = dec("200.00")
	repo.balances[572] = dec("50.00")
	svc := newTestService(repo, 571, 572)

	result, err := svc.Transfer(context.Background(), TransferInput{
		EnterpriseID:  1,
		FromAccountID: 571,
		ToAccountID:   572,
		Amount:        dec("80.00"),
		Reference:     "TRF-001",
		ActorID:       7,
	})
	require.NoError(t, err)
	require.Equal(t, "TRF-001", result.Reference)
	require.True(t, result.FromBalance.Equal(dec("120.00")))
	require.True(t, result.ToBalance.Equal(dec("130.00")))

	require.Len(t, repo.postings, 1)
	posting := repo.postings[0]
	require.Equal(t, "TRANSFERT", posting.OperationType)
	require.Equal(t, int64(572), posting.DebitAccountID)
	require.Equal(t, int64(571), posting.CreditAccountID)
	require.Equal(t, "Transfert de fonds TRF-001", posting.Label)
	require.Equal(t, time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC), posting.Date)
}

func TestTransferLocksBothAccountsBeforeBalanceRead(t *testing.T) {
	repo := newMemoryRepo()
	repo.balances[571] = dec("100.00")
	svc := newTestService(repo, 571, 572)

	_, err := svc.Transfer(context.Background(), TransferInput{
		EnterpriseID:  1,
		FromAccountID: 571,
		ToAccountID:   572,
		Amount:        dec("25.00"),
		ActorID:       7,
	})
	require.NoError(t, err)
	require.Len(t, repo.locked, 1)
	require.ElementsMatch(t, []int64{571, 572}, repo.locked[0])
}

func TestTransferInsufficientFunds(t *testing.T) {
	repo := newMemoryRepo()
	repo.balances[571] = dec("30.00")
	svc := newTestService(repo, 571, 572)

	_, err := svc.Transfer(context.Background(), TransferInput{
		EnterpriseID:  1,
		FromAccountID: 571,
		ToAccountID:   572,
		Amount:        dec("30.01"),
	})
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.Empty(t, repo.postings)

	// The exact balance goes through.
	_, err = svc.Transfer(context.Background(), TransferInput{
		EnterpriseID:  1,
		FromAccountID: 571,
		ToAccountID:   572,
		Amount:        dec("30.00"),
	})
	require.NoError(t, err)
}

func TestTransferValidation(t *testing.T) {
	svc := newTestService(newMemoryRepo(), 571, 572)

	_, err := svc.Transfer(context.Background(), TransferInput{
		EnterpriseID: 1, FromAccountID: 571, ToAccountID: 572, Amount: decimal.Zero,
	})
	require.ErrorIs(t, err, ErrAmountNotPositive)

	_, err = svc.Transfer(context.Background(), TransferInput{
		EnterpriseID: 1, FromAccountID: 571, ToAccountID: 571, Amount: dec("10.00"),
	})
	require.ErrorIs(t, err, ErrSameAccount)

	_, err = svc.Transfer(context.Background(), TransferInput{
		EnterpriseID: 1, FromAccountID: 571, ToAccountID: 601, Amount: dec("10.00"),
	})
	require.ErrorIs(t, err, ErrNotCashAccount)
}

func TestTransferDefaultsReferenceAndLabel(t *testing.T) {
	repo := newMemoryRepo()
	repo.balances[571] = dec("100.00")
	svc := newTestService(repo, 571, 572)

	result, err := svc.Transfer(context.Background(), TransferInput{
		EnterpriseID:  1,
		FromAccountID: 571,
		ToAccountID:   572,
		Amount:        dec("10.00"),
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Reference)
	require.Equal(t, "Transfert de fonds "+result.Reference, repo.postings[0].Label)
}
