package accounting

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	journals map[int64]Journal
	lines    map[int64][]JournalLine
	config   *AccountConfig
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{journals: map[int64]Journal{}, lines: map[int64][]JournalLine{}}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetConfig(ctx context.Context, enterpriseID int64, posID *int64) (*AccountConfig, error) {
	return r.config, nil
}

func (r *memoryRepo) AccountBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	return balanceOf(r, accountID), nil
}

func (r *memoryRepo) GetJournal(ctx context.Context, id int64) (Journal, []JournalLine, error) {
	journal, ok := r.journals[id]
	if !ok {
		return Journal{}, nil, ErrJournalNotFound
	}
	return journal, r.lines[id], nil
}

func balanceOf(r *memoryRepo, accountID int64) decimal.Decimal {
	balance := decimal.Zero
	for _, lines := range r.lines {
		for _, line := range lines {
			if line.AccountID == accountID {
				balance = balance.Add(line.Debit).Sub(line.Credit)
			}
		}
	}
	return balance
}

type memoryTx struct {
	repo *memoryRepo
}

func (tx *memoryTx) InsertJournal(ctx context.Context, journal Journal) (int64, error) {
	tx.repo.nextID++
	journal.ID = tx.repo.nextID
	tx.repo.journals[journal.ID] = journal
	return journal.ID, nil
}

func (tx *memoryTx) InsertJournalLines(ctx context.Context, journalID int64, lines []JournalLine) error {
	tx.repo.lines[journalID] = lines
	return nil
}

func (tx *memoryTx) GetAccountConfig(ctx context.Context, enterpriseID int64, posID *int64) (*AccountConfig, error) {
	return tx.repo.config, nil
}

func (tx *memoryTx) AccountBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	return balanceOf(tx.repo, accountID), nil
}

func (tx *memoryTx) LockAccounts(ctx context.Context, accountIDs ...int64) error {
	return nil
}

func newTestService(repo *memoryRepo) *Service {
	svc := NewService(repo, nil)
	svc.WithNow(func() time.Time {
		return time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	})
	return svc
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func TestPostJournalWritesBalancedLines(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	id, err := svc.PostJournal(context.Background(), PostingInput{
		EnterpriseID:    1,
		Label:           "Achat de marchandises",
		OperationType:   "ACHAT",
		Reference:       "ACH-001",
		Amount:          dec("149.999"),
		DebitAccountID:  601,
		CreditAccountID: 401,
	})
	require.NoError(t, err)

	journal, lines, err := svc.GetJournal(context.Background(), id)
	require.NoError(t, err)
	require.True(t, journal.Amount.Equal(dec("150.00")))
	require.Equal(t, "ACHAT", journal.OperationType)
	// Date defaults to the clock when the caller leaves it zero.
	require.Equal(t, time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC), journal.Date)

	require.Len(t, lines, 2)
	require.Equal(t, 1, lines[0].Ordinal)
	require.Equal(t, int64(601), lines[0].AccountID)
	require.True(t, lines[0].Debit.Equal(dec("150.00")))
	require.True(t, lines[0].Credit.IsZero())
	require.Equal(t, 2, lines[1].Ordinal)
	require.Equal(t, int64(401), lines[1].AccountID)
	require.True(t, lines[1].Credit.Equal(dec("150.00")))
	require.True(t, lines[1].Debit.IsZero())
}

func TestPostJournalValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	base := PostingInput{
		EnterpriseID:    1,
		Label:           "Test",
		Amount:          dec("10.00"),
		DebitAccountID:  601,
		CreditAccountID: 401,
	}

	missing := base
	missing.EnterpriseID = 0
	_, err := svc.PostJournal(context.Background(), missing)
	require.ErrorIs(t, err, ErrEnterpriseRequired)

	zero := base
	zero.Amount = decimal.Zero
	_, err = svc.PostJournal(context.Background(), zero)
	require.ErrorIs(t, err, ErrAmountNotPositive)

	negative := base
	negative.Amount = dec("-5.00")
	_, err = svc.PostJournal(context.Background(), negative)
	require.ErrorIs(t, err, ErrAmountNotPositive)

	noDebit := base
	noDebit.DebitAccountID = 0
	_, err = svc.PostJournal(context.Background(), noDebit)
	require.ErrorIs(t, err, ErrAccountRequired)

	require.Empty(t, repo.journals)
}

func TestAccountBalanceSumsDebitsMinusCredits(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	post := func(amount string, debit, credit int64) {
		t.Helper()
		_, err := svc.PostJournal(context.Background(), PostingInput{
			EnterpriseID:    1,
			Label:           "Mouvement",
			Amount:          dec(amount),
			DebitAccountID:  debit,
			CreditAccountID: credit,
		})
		require.NoError(t, err)
	}
	post("100.00", 571, 701)
	post("40.00", 601, 571)

	balance, err := svc.AccountBalance(context.Background(), 571)
	require.NoError(t, err)
	require.True(t, balance.Equal(dec("60.00")))

	_, err = svc.AccountBalance(context.Background(), 0)
	require.ErrorIs(t, err, ErrAccountRequired)
}

func TestGetConfigRequiresEnterprise(t *testing.T) {
	repo := newMemoryRepo()
	stockID := int64(31)
	repo.config = &AccountConfig{EnterpriseID: 1, StockAccountID: &stockID, IsActive: true}
	svc := newTestService(repo)

	_, err := svc.GetConfig(context.Background(), 0, nil)
	require.ErrorIs(t, err, ErrEnterpriseRequired)

	cfg, err := svc.GetConfig(context.Background(), 1, nil)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	account, ok := cfg.Account(RoleStock)
	require.True(t, ok)
	require.Equal(t, int64(31), account)

	_, ok = cfg.Account(RoleSales)
	require.False(t, ok)
}
