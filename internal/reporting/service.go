package reporting

import (
	"context"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// RepositoryPort lists the report queries the service serves.
type RepositoryPort interface {
	WarehouseStock(ctx context.Context, warehouseID int64) (WarehouseStockReport, error)
	StockByWarehouse(ctx context.Context, enterpriseID int64) (EnterpriseStockReport, error)
	ProductDistribution(ctx context.Context, productID int64) (ProductDistributionReport, error)
	MovementHistory(ctx context.Context, filter MovementHistoryFilter) (MovementHistoryPage, error)
	InventoryProgress(ctx context.Context, sessionID int64) (InventoryProgressReport, error)
	OpenInventories(ctx context.Context, enterpriseID int64) ([]InventoryProgressReport, error)
}

// Service coordinates report query execution with the cache layer.
type Service struct {
	repo  RepositoryPort
	cache *Cache
	now   func() time.Time
}

// NewService wires a RepositoryPort with a Cache helper.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// InvalidateStock bumps the cache version after any stock mutation.
func (s *Service) InvalidateStock(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

// WarehouseStock returns the cached stock report of one warehouse.
func (s *Service) WarehouseStock(ctx context.Context, warehouseID int64) (WarehouseStockReport, error) {
	key, err := s.cache.BuildKey(ctx, "reporting", "warehouse_stock", strconv.FormatInt(warehouseID, 10))
	if err != nil {
		return WarehouseStockReport{}, err
	}
	var report WarehouseStockReport
	err = s.cache.FetchJSON(ctx, key, &report, func(ctx context.Context) (interface{}, error) {
		r, err := s.repo.WarehouseStock(ctx, warehouseID)
		if err != nil {
			return nil, err
		}
		r.GeneratedAt = s.now().UTC()
		return r, nil
	})
	return report, err
}

// StockByWarehouse returns the cached per-warehouse totals of an enterprise.
func (s *Service) StockByWarehouse(ctx context.Context, enterpriseID int64) (EnterpriseStockReport, error) {
	key, err := s.cache.BuildKey(ctx, "reporting", "stock_by_warehouse", strconv.FormatInt(enterpriseID, 10))
	if err != nil {
		return EnterpriseStockReport{}, err
	}
	var report EnterpriseStockReport
	err = s.cache.FetchJSON(ctx, key, &report, func(ctx context.Context) (interface{}, error) {
		r, err := s.repo.StockByWarehouse(ctx, enterpriseID)
		if err != nil {
			return nil, err
		}
		r.GeneratedAt = s.now().UTC()
		return r, nil
	})
	return report, err
}

// ProductDistribution returns the cached multi-warehouse view of a product.
func (s *Service) ProductDistribution(ctx context.Context, productID int64) (ProductDistributionReport, error) {
	key, err := s.cache.BuildKey(ctx, "reporting", "product_distribution", strconv.FormatInt(productID, 10))
	if err != nil {
		return ProductDistributionReport{}, err
	}
	var report ProductDistributionReport
	err = s.cache.FetchJSON(ctx, key, &report, func(ctx context.Context) (interface{}, error) {
		r, err := s.repo.ProductDistribution(ctx, productID)
		if err != nil {
			return nil, err
		}
		r.GeneratedAt = s.now().UTC()
		return r, nil
	})
	return report, err
}

// MovementHistory pages through the ledger. History is append-only so pages
// are served without caching.
func (s *Service) MovementHistory(ctx context.Context, filter MovementHistoryFilter) (MovementHistoryPage, error) {
	return s.repo.MovementHistory(ctx, filter)
}

// InventoryProgress reports the advancement of one session; counts change
// while the session runs, so this also skips the cache.
func (s *Service) InventoryProgress(ctx context.Context, sessionID int64) (InventoryProgressReport, error) {
	return s.repo.InventoryProgress(ctx, sessionID)
}

// OpenInventories lists the sessions still being counted. Same reasoning,
// live counters skip the cache.
func (s *Service) OpenInventories(ctx context.Context, enterpriseID int64) ([]InventoryProgressReport, error) {
	return s.repo.OpenInventories(ctx, enterpriseID)
}

func progressPercent(counted, total int) decimal.Decimal {
	if total <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(counted)).
		Div(decimal.NewFromInt(int64(total))).
		Mul(decimal.NewFromInt(100)).
		Round(2)
}
