package reporting

import (
	"time"

	"github.com/shopspring/decimal"
)

// WarehouseStockLine is one product line in a warehouse stock report.
type WarehouseStockLine struct {
	ProductID  int64           `json:"product_id"`
	Name       string          `json:"name"`
	Quantity   decimal.Decimal `json:"quantity"`
	Reserved   decimal.Decimal `json:"reserved"`
	Available  decimal.Decimal `json:"available"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	TotalValue decimal.Decimal `json:"total_value"`
	MinLevel   decimal.Decimal `json:"min_level"`
	Status     string          `json:"status"`
}

// WarehouseStockReport aggregates the stock of one warehouse.
type WarehouseStockReport struct {
	WarehouseID   int64                `json:"warehouse_id"`
	WarehouseName string               `json:"warehouse_name"`
	Lines         []WarehouseStockLine `json:"lines"`
	TotalValue    decimal.Decimal      `json:"total_value"`
	ProductCount  int                  `json:"product_count"`
	GeneratedAt   time.Time            `json:"generated_at"`
}

// ProductWarehouseLine is one warehouse line in a product distribution
// report.
type ProductWarehouseLine struct {
	WarehouseID   int64           `json:"warehouse_id"`
	WarehouseName string          `json:"warehouse_name"`
	Quantity      decimal.Decimal `json:"quantity"`
	Reserved      decimal.Decimal `json:"reserved"`
	Available     decimal.Decimal `json:"available"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	TotalValue    decimal.Decimal `json:"total_value"`
}

// ProductDistributionReport shows where one product sits across warehouses.
type ProductDistributionReport struct {
	ProductID     int64                  `json:"product_id"`
	Lines         []ProductWarehouseLine `json:"lines"`
	TotalQuantity decimal.Decimal        `json:"total_quantity"`
	TotalValue    decimal.Decimal        `json:"total_value"`
	GeneratedAt   time.Time              `json:"generated_at"`
}

// EnterpriseStockLine aggregates the stock one warehouse holds.
type EnterpriseStockLine struct {
	WarehouseID   int64           `json:"warehouse_id"`
	WarehouseCode string          `json:"warehouse_code"`
	WarehouseName string          `json:"warehouse_name"`
	ProductCount  int             `json:"product_count"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
	TotalValue    decimal.Decimal `json:"total_value"`
}

// EnterpriseStockReport totals the stock of an enterprise warehouse by
// warehouse.
type EnterpriseStockReport struct {
	EnterpriseID int64                 `json:"enterprise_id"`
	Lines        []EnterpriseStockLine `json:"lines"`
	TotalValue   decimal.Decimal       `json:"total_value"`
	GeneratedAt  time.Time             `json:"generated_at"`
}

// MovementLine is one ledger entry in a movement history page.
type MovementLine struct {
	ID                     int64           `json:"id"`
	Kind                   string          `json:"kind"`
	ProductID              int64           `json:"product_id"`
	WarehouseID            *int64          `json:"warehouse_id,omitempty"`
	DestinationWarehouseID *int64          `json:"destination_warehouse_id,omitempty"`
	Quantity               decimal.Decimal `json:"quantity"`
	UnitCost               decimal.Decimal `json:"unit_cost"`
	TotalCost              decimal.Decimal `json:"total_cost"`
	QuantityBefore         decimal.Decimal `json:"quantity_before"`
	QuantityAfter          decimal.Decimal `json:"quantity_after"`
	Reference              string          `json:"reference"`
	At                     time.Time       `json:"at"`
}

// MovementHistoryFilter narrows a movement history page.
type MovementHistoryFilter struct {
	ProductID   *int64
	WarehouseID *int64
	Kind        *string
	From        *time.Time
	To          *time.Time
	Page        int
	PerPage     int
}

// MovementHistoryPage is one page of the movement ledger, newest first.
type MovementHistoryPage struct {
	Lines      []MovementLine `json:"lines"`
	Page       int            `json:"page"`
	PerPage    int            `json:"per_page"`
	Total      int            `json:"total"`
	TotalPages int            `json:"total_pages"`
}

// InventoryProgressReport tracks the advancement of one counting session.
type InventoryProgressReport struct {
	SessionID          int64           `json:"session_id"`
	Reference          string          `json:"reference"`
	Status             string          `json:"status"`
	TotalItems         int             `json:"total_items"`
	CountedItems       int             `json:"counted_items"`
	TotalDiscrepancies int             `json:"total_discrepancies"`
	ProgressPercent    decimal.Decimal `json:"progress_percent"`
	TotalVarianceValue decimal.Decimal `json:"total_variance_value"`
}
