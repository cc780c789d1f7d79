package stock

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	rows       map[string]StockRow
	movements  []Movement
	warehouses map[int64]bool
	nextID     int64
}

func newMemoryRepo(warehouseIDs ...int64) *memoryRepo {
	warehouses := make(map[int64]bool, len(warehouseIDs))
	for _, id := range warehouseIDs {
		warehouses[id] = true
	}
	return &memoryRepo{rows: map[string]StockRow{}, warehouses: warehouses}
}

func rowKey(productID, warehouseID int64) string {
	return fmt.Sprintf("%d:%d", productID, warehouseID)
}

func (r *memoryRepo) seed(row StockRow) {
	r.rows[rowKey(row.ProductID, row.WarehouseID)] = row
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) Overview(ctx context.Context, warehouseID *int64) ([]OverviewRow, error) {
	return nil, nil
}

func (r *memoryRepo) ProductDetail(ctx context.Context, productID int64) (ProductDetail, error) {
	return ProductDetail{}, nil
}

func (r *memoryRepo) Movements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	result := make([]Movement, len(r.movements))
	copy(result, r.movements)
	return result, nil
}

func (r *memoryRepo) LowStockAlerts(ctx context.Context, warehouseID *int64) ([]Alert, error) {
	return nil, nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (tx *memoryTx) GetStockRowForUpdate(ctx context.Context, productID, warehouseID int64) (StockRow, error) {
	if row, ok := tx.repo.rows[rowKey(productID, warehouseID)]; ok {
		return row, nil
	}
	return StockRow{ProductID: productID, WarehouseID: warehouseID}, ErrStockRowNotFound
}

func (tx *memoryTx) UpsertStockRow(ctx context.Context, row StockRow) error {
	tx.repo.rows[rowKey(row.ProductID, row.WarehouseID)] = row
	return nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, movement Movement) (int64, error) {
	tx.repo.nextID++
	movement.ID = tx.repo.nextID
	tx.repo.movements = append(tx.repo.movements, movement)
	return movement.ID, nil
}

func (tx *memoryTx) WarehouseExists(ctx context.Context, warehouseID int64) (bool, error) {
	return tx.repo.warehouses[warehouseID], nil
}

func newTestService(repo *memoryRepo) *Service {
	svc := NewService(repo, nil, nil)
	svc.WithNow(func() time.Time {
		return time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	})
	return svc
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func TestTransferMovesQuantityAndValue(t *testing.T) {
	repo := newMemoryRepo(1, 2)
	repo.seed(StockRow{
		ProductID:   7,
		WarehouseID: 1,
		Quantity:    dec("10"),
		UnitCost:    dec("4.00"),
		TotalCost:   dec("40.00"),
	})
	svc := newTestService(repo)

	result, err := svc.Transfer(context.Background(), TransferInput{
		ProductID:     7,
		SourceID:      1,
		DestinationID: 2,
		Quantity:      dec("4"),
		Reference:     "TRF-TEST",
	})
	require.NoError(t, err)

	require.True(t, result.Source.Quantity.Equal(dec("6")))
	require.True(t, result.Source.TotalCost.Equal(dec("24.00")))
	require.True(t, result.Destination.Quantity.Equal(dec("4")))
	require.True(t, result.Destination.UnitCost.Equal(dec("4.00")))
	require.True(t, result.Destination.TotalCost.Equal(dec("16.00")))

	require.Len(t, repo.movements, 2)
	outgoing, incoming := repo.movements[0], repo.movements[1]
	require.Equal(t, "TRF-TEST", outgoing.Reference)
	require.Equal(t, outgoing.Reference, incoming.Reference)
	require.True(t, outgoing.Quantity.Equal(dec("-4")))
	require.True(t, incoming.Quantity.Equal(dec("4")))
	require.Equal(t, int64(1), *outgoing.WarehouseID)
	require.Equal(t, int64(2), *outgoing.DestWarehouseID)
	require.Equal(t, int64(1), *incoming.WarehouseID)
	require.Equal(t, int64(2), *incoming.DestWarehouseID)
	require.True(t, outgoing.UnitCost.Equal(incoming.UnitCost))
}

func TestTransferLegsShareUnitCostWhenSourceUncosted(t *testing.T) {
	repo := newMemoryRepo(1, 2)
	repo.seed(StockRow{
		ProductID:   7,
		WarehouseID: 1,
		Quantity:    dec("10"),
		UnitCost:    decimal.Zero,
		TotalCost:   decimal.Zero,
	})
	repo.seed(StockRow{
		ProductID:   7,
		WarehouseID: 2,
		Quantity:    dec("3"),
		UnitCost:    dec("9.00"),
		TotalCost:   dec("27.00"),
	})
	svc := newTestService(repo)

	result, err := svc.Transfer(context.Background(), TransferInput{
		ProductID:     7,
		SourceID:      1,
		DestinationID: 2,
		Quantity:      dec("4"),
		Reference:     "TRF-ZC",
	})
	require.NoError(t, err)

	require.Len(t, repo.movements, 2)
	outgoing, incoming := repo.movements[0], repo.movements[1]
	require.True(t, outgoing.UnitCost.Equal(incoming.UnitCost),
		"legs recorded different costs: out %s, in %s", outgoing.UnitCost, incoming.UnitCost)
	require.True(t, incoming.UnitCost.IsZero())

	// The destination row is non-empty so it keeps its own cost.
	require.True(t, result.Destination.Quantity.Equal(dec("7")))
	require.True(t, result.Destination.UnitCost.Equal(dec("9.00")))
	require.True(t, result.Destination.TotalCost.Equal(dec("63.00")))
}

func TestTransferInsufficientStock(t *testing.T) {
	repo := newMemoryRepo(1, 2)
	repo.seed(StockRow{ProductID: 7, WarehouseID: 1, Quantity: dec("3"), UnitCost: dec("4.00")})
	svc := newTestService(repo)

	_, err := svc.Transfer(context.Background(), TransferInput{
		ProductID:     7,
		SourceID:      1,
		DestinationID: 2,
		Quantity:      dec("5"),
	})
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.Empty(t, repo.movements)
	require.True(t, repo.rows[rowKey(7, 1)].Quantity.Equal(dec("3")))
}

func TestTransferRejectsSameWarehouse(t *testing.T) {
	svc := newTestService(newMemoryRepo(1))
	_, err := svc.Transfer(context.Background(), TransferInput{
		ProductID:     7,
		SourceID:      1,
		DestinationID: 1,
		Quantity:      dec("1"),
	})
	require.ErrorIs(t, err, ErrSameWarehouse)
}

func TestTransferUnknownWarehouse(t *testing.T) {
	repo := newMemoryRepo(1)
	repo.seed(StockRow{ProductID: 7, WarehouseID: 1, Quantity: dec("10")})
	svc := newTestService(repo)

	_, err := svc.Transfer(context.Background(), TransferInput{
		ProductID:     7,
		SourceID:      1,
		DestinationID: 99,
		Quantity:      dec("1"),
	})
	require.ErrorIs(t, err, ErrWarehouseNotFound)
}

func TestReceiveAdoptsCostOnlyWhenEmpty(t *testing.T) {
	repo := newMemoryRepo(1)
	svc := newTestService(repo)
	ctx := context.Background()

	first, err := svc.Receive(ctx, ReceiveInput{ProductID: 7, WarehouseID: 1, Quantity: dec("5"), UnitCost: dec("2.50")})
	require.NoError(t, err)
	require.True(t, first.Row.UnitCost.Equal(dec("2.50")))
	require.True(t, first.Row.TotalCost.Equal(dec("12.50")))

	second, err := svc.Receive(ctx, ReceiveInput{ProductID: 7, WarehouseID: 1, Quantity: dec("5"), UnitCost: dec("9.99")})
	require.NoError(t, err)
	// The row keeps its cost; the movement records the incoming one.
	require.True(t, second.Row.UnitCost.Equal(dec("2.50")))
	require.True(t, second.Row.Quantity.Equal(dec("10")))
	require.True(t, second.Row.TotalCost.Equal(dec("25.00")))
	require.True(t, second.Movement.UnitCost.Equal(dec("9.99")))
}

func TestIssueGuardsAgainstNegativeStock(t *testing.T) {
	repo := newMemoryRepo(1)
	repo.seed(StockRow{ProductID: 7, WarehouseID: 1, Quantity: dec("2"), UnitCost: dec("1.00")})
	svc := newTestService(repo)

	_, err := svc.Issue(context.Background(), IssueInput{ProductID: 7, WarehouseID: 1, Quantity: dec("3")})
	require.ErrorIs(t, err, ErrInsufficientStock)

	result, err := svc.Issue(context.Background(), IssueInput{ProductID: 7, WarehouseID: 1, Quantity: dec("2")})
	require.NoError(t, err)
	require.True(t, result.Row.Quantity.IsZero())
	require.Equal(t, MovementIssue, result.Movement.Kind)
	require.True(t, result.Movement.Quantity.Equal(dec("-2")))
}

func TestAdjustRestatesQuantityAndCost(t *testing.T) {
	repo := newMemoryRepo(1)
	repo.seed(StockRow{ProductID: 7, WarehouseID: 1, Quantity: dec("8"), UnitCost: dec("2.00"), TotalCost: dec("16.00")})
	svc := newTestService(repo)

	result, err := svc.Adjust(context.Background(), AdjustInput{
		ProductID:   7,
		WarehouseID: 1,
		NewQuantity: dec("5"),
		UnitCost:    dec("3.00"),
	})
	require.NoError(t, err)
	require.True(t, result.Movement.Quantity.Equal(dec("-3")))
	require.Equal(t, MovementAdjustment, result.Movement.Kind)
	require.True(t, result.Row.Quantity.Equal(dec("5")))
	require.True(t, result.Row.UnitCost.Equal(dec("3.00")))
	require.True(t, result.Row.TotalCost.Equal(dec("15.00")))
}

func TestAdjustRejectsNegativeQuantity(t *testing.T) {
	svc := newTestService(newMemoryRepo(1))
	_, err := svc.Adjust(context.Background(), AdjustInput{
		ProductID:   7,
		WarehouseID: 1,
		NewQuantity: dec("-1"),
	})
	require.ErrorIs(t, err, ErrNegativeQuantity)
}

func TestAdjustCreatesMissingRow(t *testing.T) {
	repo := newMemoryRepo(1)
	svc := newTestService(repo)

	result, err := svc.Adjust(context.Background(), AdjustInput{
		ProductID:   9,
		WarehouseID: 1,
		NewQuantity: dec("12"),
		UnitCost:    dec("1.50"),
	})
	require.NoError(t, err)
	require.Equal(t, int64(9), result.Row.ProductID)
	require.True(t, result.Row.Quantity.Equal(dec("12")))
	require.True(t, result.Row.TotalCost.Equal(dec("18.00")))
	require.True(t, result.Movement.QuantityBefore.IsZero())
}

func TestDeriveStatus(t *testing.T) {
	min := dec("10")
	cases := []struct {
		available string
		want      StockStatus
	}{
		{"0", StatusRupture},
		{"-2", StatusRupture},
		{"10", StatusFaible},
		{"3", StatusFaible},
		{"15", StatusAlerte},
		{"15.01", StatusNormal},
		{"40", StatusNormal},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, DeriveStatus(dec(tc.available), min), "available %s", tc.available)
	}
}

func TestApplyDeltaAllowsNegativeWhenPermitted(t *testing.T) {
	repo := newMemoryRepo(1)
	repo.seed(StockRow{ProductID: 7, WarehouseID: 1, Quantity: dec("2"), UnitCost: dec("5.00")})

	err := repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		_, row, err := ApplyDelta(ctx, tx, DeltaInput{
			Kind:          MovementAdjustment,
			ProductID:     7,
			WarehouseID:   1,
			Delta:         dec("-5"),
			AllowNegative: true,
			At:            time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
		})
		if err != nil {
			return err
		}
		require.True(t, row.Quantity.Equal(dec("-3")))
		require.True(t, row.TotalCost.Equal(dec("-15.00")))
		return nil
	})
	require.NoError(t, err)

	err = repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		_, _, err := ApplyDelta(ctx, tx, DeltaInput{
			Kind:        MovementAdjustment,
			ProductID:   7,
			WarehouseID: 1,
			Delta:       dec("-5"),
		})
		return err
	})
	require.True(t, errors.Is(err, ErrInsufficientStock))
}
