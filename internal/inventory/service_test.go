package inventory

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sahel-erp/sahel-erp/internal/accounting"
	"github.com/sahel-erp/sahel-erp/internal/stock"
)

type memoryRepo struct {
	sessions      map[int64]Session
	items         map[int64][]Item
	snapshot      []SnapshotRow
	products      map[int64]SnapshotRow
	warehouses    map[int64]bool
	config        *accounting.AccountConfig
	adjustments   []stock.DeltaInput
	postings      []accounting.PostingInput
	references    map[string]bool
	nextSessionID int64
	nextJournalID int64
}

func newMemoryRepo(warehouseIDs ...int64) *memoryRepo {
	warehouses := make(map[int64]bool, len(warehouseIDs))
	for _, id := range warehouseIDs {
		warehouses[id] = true
	}
	return &memoryRepo{
		sessions:   map[int64]Session{},
		items:      map[int64][]Item{},
		products:   map[int64]SnapshotRow{},
		warehouses: warehouses,
		references: map[string]bool{},
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Session, error) {
	session, ok := r.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return session, nil
}

func (r *memoryRepo) List(ctx context.Context, enterpriseID int64, status *Status) ([]Session, error) {
	var sessions []Session
	for _, s := range r.sessions {
		if s.EnterpriseID != enterpriseID {
			continue
		}
		if status != nil && s.Status != *status {
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

func (r *memoryRepo) Items(ctx context.Context, sessionID int64) ([]Item, error) {
	items := make([]Item, len(r.items[sessionID]))
	copy(items, r.items[sessionID])
	return items, nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (tx *memoryTx) WarehouseExists(ctx context.Context, warehouseID int64) (bool, error) {
	return tx.repo.warehouses[warehouseID], nil
}

func (tx *memoryTx) InsertSession(ctx context.Context, session Session) (int64, error) {
	if tx.repo.references[session.Reference] {
		return 0, ErrDuplicateReference
	}
	tx.repo.references[session.Reference] = true
	tx.repo.nextSessionID++
	session.ID = tx.repo.nextSessionID
	tx.repo.sessions[session.ID] = session
	return session.ID, nil
}

func (tx *memoryTx) InsertItems(ctx context.Context, sessionID int64, items []Item) error {
	stored := make([]Item, len(items))
	copy(stored, items)
	sort.Slice(stored, func(i, j int) bool { return stored[i].ProductID < stored[j].ProductID })
	tx.repo.items[sessionID] = stored
	return nil
}

func (tx *memoryTx) GetSessionForUpdate(ctx context.Context, id int64) (Session, error) {
	session, ok := tx.repo.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return session, nil
}

func (tx *memoryTx) ListItems(ctx context.Context, sessionID int64) ([]Item, error) {
	items := make([]Item, len(tx.repo.items[sessionID]))
	copy(items, tx.repo.items[sessionID])
	return items, nil
}

func (tx *memoryTx) UpdateItemCount(ctx context.Context, item Item) error {
	items := tx.repo.items[item.SessionID]
	for i := range items {
		if items[i].ProductID == item.ProductID {
			items[i] = item
			return nil
		}
	}
	return ErrItemNotFound
}

func (tx *memoryTx) UpdateSessionProgress(ctx context.Context, session Session) error {
	tx.repo.sessions[session.ID] = session
	return nil
}

func (tx *memoryTx) CompleteSession(ctx context.Context, session Session) error {
	tx.repo.sessions[session.ID] = session
	return nil
}

func (tx *memoryTx) SnapshotStock(ctx context.Context, warehouseID int64, includeZero bool) ([]SnapshotRow, error) {
	var snapshot []SnapshotRow
	for _, row := range tx.repo.snapshot {
		if includeZero || !row.Quantity.IsZero() {
			snapshot = append(snapshot, row)
		}
	}
	return snapshot, nil
}

func (tx *memoryTx) SnapshotProducts(ctx context.Context, warehouseID int64, productIDs []int64) ([]SnapshotRow, error) {
	snapshot := make([]SnapshotRow, 0, len(productIDs))
	for _, id := range productIDs {
		if row, ok := tx.repo.products[id]; ok {
			snapshot = append(snapshot, row)
		} else {
			snapshot = append(snapshot, SnapshotRow{ProductID: id})
		}
	}
	return snapshot, nil
}

func (tx *memoryTx) ApplyStockAdjustment(ctx context.Context, input stock.DeltaInput) (stock.Movement, error) {
	tx.repo.adjustments = append(tx.repo.adjustments, input)
	return stock.Movement{Kind: input.Kind, ProductID: input.ProductID, Quantity: input.Delta}, nil
}

func (tx *memoryTx) GetAccountConfig(ctx context.Context, enterpriseID int64, posID *int64) (*accounting.AccountConfig, error) {
	return tx.repo.config, nil
}

func (tx *memoryTx) PostJournal(ctx context.Context, input accounting.PostingInput) (int64, error) {
	if err := input.Validate(); err != nil {
		return 0, err
	}
	tx.repo.postings = append(tx.repo.postings, input)
	tx.repo.nextJournalID++
	return tx.repo.nextJournalID, nil
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

func intPtr(v int64) *int64 { return &v }

func accountsConfigured() *accounting.AccountConfig {
	return &accounting.AccountConfig{
		EnterpriseID:      1,
		StockAccountID:    intPtr(501),
		PurchaseAccountID: intPtr(502),
	}
}

func createStartedSession(t *testing.T, svc *Service, repo *memoryRepo, counts []CountInput) Session {
	t.Helper()
	session, err := svc.Create(context.Background(), CreateInput{
		EnterpriseID: 1,
		WarehouseID:  1,
		Type:         TypeComplete,
		Name:         "Comptage mensuel",
	})
	require.NoError(t, err)
	session, err = svc.SaveCounts(context.Background(), session.ID, counts)
	require.NoError(t, err)
	return session
}

func TestCreateSnapshotsStock(t *testing.T) {
	repo := newMemoryRepo(1)
	repo.snapshot = []SnapshotRow{
		{ProductID: 1, Quantity: dec("10"), UnitCost: dec("3.00"), SalePrice: dec("5.00")},
		{ProductID: 2, Quantity: dec("4"), UnitCost: dec("1.25")},
	}
	svc := newTestService(repo)

	session, err := svc.Create(context.Background(), CreateInput{
		EnterpriseID: 1,
		WarehouseID:  1,
		Type:         TypeComplete,
		Name:         "Comptage mensuel",
	})
	require.NoError(t, err)
	require.Equal(t, StatusDraft, session.Status)
	require.Equal(t, "INV-20260314103000", session.Reference)
	require.Equal(t, 2, session.TotalItems)

	items := repo.items[session.ID]
	require.Len(t, items, 2)
	require.True(t, items[0].SystemStock.Equal(dec("10")))
	require.True(t, items[0].UnitCost.Equal(dec("3.00")))
	require.True(t, items[0].CountedStock.IsZero())
}

func TestCreatePartialRequiresProducts(t *testing.T) {
	svc := newTestService(newMemoryRepo(1))
	_, err := svc.Create(context.Background(), CreateInput{
		EnterpriseID: 1,
		WarehouseID:  1,
		Type:         TypePartial,
		Name:         "Comptage partiel",
	})
	require.ErrorIs(t, err, ErrEmptyProductList)
}

func TestCreatePartialSnapshotsUnknownProductsAtZero(t *testing.T) {
	repo := newMemoryRepo(1)
	repo.products[5] = SnapshotRow{ProductID: 5, Quantity: dec("7"), UnitCost: dec("2.00")}
	svc := newTestService(repo)

	session, err := svc.Create(context.Background(), CreateInput{
		EnterpriseID: 1,
		WarehouseID:  1,
		Type:         TypePartial,
		Name:         "Comptage partiel",
		ProductIDs:   []int64{5, 6},
	})
	require.NoError(t, err)
	require.Equal(t, 2, session.TotalItems)

	items := repo.items[session.ID]
	require.True(t, items[0].SystemStock.Equal(dec("7")))
	require.True(t, items[1].SystemStock.IsZero())
}

func TestSaveCountsComputesVarianceAndStartsSession(t *testing.T) {
	repo := newMemoryRepo(1)
	repo.snapshot = []SnapshotRow{
		{ProductID: 1, Quantity: dec("10"), UnitCost: dec("3.00"), SalePrice: dec("5.00")},
		{ProductID: 2, Quantity: dec("4"), UnitCost: dec("1.25")},
	}
	svc := newTestService(repo)

	session := createStartedSession(t, svc, repo, []CountInput{
		{ProductID: 1, CountedStock: dec("8")},
		{ProductID: 2, CountedStock: dec("4")},
	})
	require.Equal(t, StatusInProgress, session.Status)
	require.Equal(t, 2, session.CountedItems)
	require.Equal(t, 1, session.TotalDiscrepancies)
	require.True(t, session.TotalVarianceValue.Equal(dec("-6.00")))

	items := repo.items[session.ID]
	require.True(t, items[0].Variance.Equal(dec("-2")))
	require.True(t, items[0].VarianceValue.Equal(dec("-6.00")))
	require.True(t, items[0].VarianceValueSale.Equal(dec("-10.00")))
	require.NotNil(t, items[0].CountedAt)
}

func TestSaveCountsIsIdempotent(t *testing.T) {
	repo := newMemoryRepo(1)
	repo.snapshot = []SnapshotRow{{ProductID: 1, Quantity: dec("10"), UnitCost: dec("3.00")}}
	svc := newTestService(repo)

	counts := []CountInput{{ProductID: 1, CountedStock: dec("8")}}
	first := createStartedSession(t, svc, repo, counts)
	second, err := svc.SaveCounts(context.Background(), first.ID, counts)
	require.NoError(t, err)
	require.Equal(t, first.CountedItems, second.CountedItems)
	require.Equal(t, first.TotalDiscrepancies, second.TotalDiscrepancies)
	require.True(t, first.TotalVarianceValue.Equal(second.TotalVarianceValue))
}

func TestSaveCountsRejectsNegativeAndUnknown(t *testing.T) {
	repo := newMemoryRepo(1)
	repo.snapshot = []SnapshotRow{{ProductID: 1, Quantity: dec("10"), UnitCost: dec("3.00")}}
	svc := newTestService(repo)

	session, err := svc.Create(context.Background(), CreateInput{
		EnterpriseID: 1, WarehouseID: 1, Type: TypeComplete, Name: "Comptage",
	})
	require.NoError(t, err)

	_, err = svc.SaveCounts(context.Background(), session.ID, []CountInput{{ProductID: 1, CountedStock: dec("-1")}})
	require.ErrorIs(t, err, ErrNegativeCount)

	_, err = svc.SaveCounts(context.Background(), session.ID, []CountInput{{ProductID: 99, CountedStock: dec("1")}})
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestFinalizeShortagePostsJournal(t *testing.T) {
	repo := newMemoryRepo(1)
	repo.snapshot = []SnapshotRow{{ProductID: 1, Quantity: dec("10"), UnitCost: dec("3.00")}}
	repo.config = accountsConfigured()
	svc := newTestService(repo)

	session := createStartedSession(t, svc, repo, []CountInput{{ProductID: 1, CountedStock: dec("0")}})

	result, err := svc.Finalize(context.Background(), session.ID, 42)
	require.NoError(t, err)
	require.NotNil(t, result.JournalID)
	require.Empty(t, result.Warning)

	require.Len(t, repo.adjustments, 1)
	adj := repo.adjustments[0]
	require.Equal(t, stock.MovementAdjustment, adj.Kind)
	require.True(t, adj.Delta.Equal(dec("-10")))
	require.True(t, adj.AllowNegative)
	require.Equal(t, session.Reference, adj.Reference)

	require.Len(t, repo.postings, 1)
	posting := repo.postings[0]
	require.True(t, posting.Amount.Equal(dec("30.00")))
	require.Equal(t, int64(502), posting.DebitAccountID)
	require.Equal(t, int64(501), posting.CreditAccountID)
	require.Equal(t, "INVENTAIRE", posting.OperationType)
	require.Equal(t, "Ecart d'inventaire "+session.Reference, posting.Label)

	final := repo.sessions[session.ID]
	require.Equal(t, StatusCompleted, final.Status)
	require.NotNil(t, final.CompletedAt)
	require.Equal(t, int64(42), *final.CompletedBy)
}

func TestFinalizeOveragePostsReversedJournal(t *testing.T) {
	repo := newMemoryRepo(1)
	repo.snapshot = []SnapshotRow{{ProductID: 1, Quantity: dec("10"), UnitCost: dec("3.00")}}
	repo.config = accountsConfigured()
	svc := newTestService(repo)

	session := createStartedSession(t, svc, repo, []CountInput{{ProductID: 1, CountedStock: dec("12")}})

	result, err := svc.Finalize(context.Background(), session.ID, 42)
	require.NoError(t, err)
	require.NotNil(t, result.JournalID)

	posting := repo.postings[0]
	require.True(t, posting.Amount.Equal(dec("6.00")))
	require.Equal(t, int64(501), posting.DebitAccountID)
	require.Equal(t, int64(502), posting.CreditAccountID)
}

func TestFinalizeWithoutAccountsWarnsAndAdjustsStock(t *testing.T) {
	repo := newMemoryRepo(1)
	repo.snapshot = []SnapshotRow{{ProductID: 1, Quantity: dec("10"), UnitCost: dec("3.00")}}
	svc := newTestService(repo)

	session := createStartedSession(t, svc, repo, []CountInput{{ProductID: 1, CountedStock: dec("12")}})

	result, err := svc.Finalize(context.Background(), session.ID, 42)
	require.NoError(t, err)
	require.Nil(t, result.JournalID)
	require.Equal(t, WarningAccountsNotConfigured, result.Warning)

	// Stock adjustments commit even without accounting roles.
	require.Len(t, repo.adjustments, 1)
	require.Empty(t, repo.postings)
	require.Equal(t, StatusCompleted, repo.sessions[session.ID].Status)
}

func TestFinalizeSkipsZeroVariance(t *testing.T) {
	repo := newMemoryRepo(1)
	repo.snapshot = []SnapshotRow{{ProductID: 1, Quantity: dec("10"), UnitCost: dec("3.00")}}
	repo.config = accountsConfigured()
	svc := newTestService(repo)

	session := createStartedSession(t, svc, repo, []CountInput{{ProductID: 1, CountedStock: dec("10")}})

	result, err := svc.Finalize(context.Background(), session.ID, 42)
	require.NoError(t, err)
	require.Nil(t, result.JournalID)
	require.Empty(t, repo.adjustments)
	require.Empty(t, repo.postings)
}

func TestFinalizeTwiceFails(t *testing.T) {
	repo := newMemoryRepo(1)
	repo.snapshot = []SnapshotRow{{ProductID: 1, Quantity: dec("10"), UnitCost: dec("3.00")}}
	repo.config = accountsConfigured()
	svc := newTestService(repo)

	session := createStartedSession(t, svc, repo, []CountInput{{ProductID: 1, CountedStock: dec("8")}})

	_, err := svc.Finalize(context.Background(), session.ID, 42)
	require.NoError(t, err)
	_, err = svc.Finalize(context.Background(), session.ID, 42)
	require.ErrorIs(t, err, ErrInvalidState)
	require.Len(t, repo.adjustments, 1)
	require.Len(t, repo.postings, 1)
}

func TestFinalizeRequiresInProgress(t *testing.T) {
	repo := newMemoryRepo(1)
	repo.snapshot = []SnapshotRow{{ProductID: 1, Quantity: dec("10"), UnitCost: dec("3.00")}}
	svc := newTestService(repo)

	session, err := svc.Create(context.Background(), CreateInput{
		EnterpriseID: 1, WarehouseID: 1, Type: TypeComplete, Name: "Comptage",
	})
	require.NoError(t, err)

	_, err = svc.Finalize(context.Background(), session.ID, 42)
	require.ErrorIs(t, err, ErrInvalidState)
}

func TestCancelBlocksFurtherCounts(t *testing.T) {
	repo := newMemoryRepo(1)
	repo.snapshot = []SnapshotRow{{ProductID: 1, Quantity: dec("10"), UnitCost: dec("3.00")}}
	svc := newTestService(repo)

	session, err := svc.Create(context.Background(), CreateInput{
		EnterpriseID: 1, WarehouseID: 1, Type: TypeComplete, Name: "Comptage",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(context.Background(), session.ID, 42))
	require.Equal(t, StatusCancelled, repo.sessions[session.ID].Status)
	require.Empty(t, repo.adjustments)

	_, err = svc.SaveCounts(context.Background(), session.ID, []CountInput{{ProductID: 1, CountedStock: dec("1")}})
	require.ErrorIs(t, err, ErrInvalidState)

	err = svc.Cancel(context.Background(), session.ID, 42)
	require.ErrorIs(t, err, ErrInvalidState)
}
