package stock

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// MovementKind enumerates supported stock movements.
type MovementKind string

const (
	// MovementReceipt represents goods entering a warehouse from outside.
	MovementReceipt MovementKind = "RECEIPT"
	// MovementIssue represents goods leaving a warehouse for outside.
	MovementIssue MovementKind = "ISSUE"
	// MovementTransfer marks one side of an inter-warehouse transfer.
	MovementTransfer MovementKind = "TRANSFER"
	// MovementAdjustment marks a manual or inventory-driven restatement.
	MovementAdjustment MovementKind = "ADJUSTMENT"
	// MovementInventory marks a snapshot row written by inventory sessions.
	MovementInventory MovementKind = "INVENTORY"
)

// StockStatus is the derived alert level of a stock row.
type StockStatus string

const (
	StatusRupture StockStatus = "RUPTURE"
	StatusFaible  StockStatus = "FAIBLE"
	StatusAlerte  StockStatus = "ALERTE"
	StatusNormal  StockStatus = "NORMAL"
)

var alertFactor = decimal.RequireFromString("1.5")

// DeriveStatus computes the alert level from available quantity and the
// minimum stock level.
func DeriveStatus(available, minLevel decimal.Decimal) StockStatus {
	switch {
	case available.Sign() <= 0:
		return StatusRupture
	case available.LessThanOrEqual(minLevel):
		return StatusFaible
	case available.LessThanOrEqual(minLevel.Mul(alertFactor)):
		return StatusAlerte
	default:
		return StatusNormal
	}
}

// StockRow is the current quantity and cost of one product at one warehouse.
type StockRow struct {
	ProductID      int64
	WarehouseID    int64
	Quantity       decimal.Decimal
	Reserved       decimal.Decimal
	UnitCost       decimal.Decimal
	TotalCost      decimal.Decimal
	MinLevel       decimal.Decimal
	LastMovementAt *time.Time
}

// Available returns quantity minus advisory reservations.
func (s StockRow) Available() decimal.Decimal {
	return s.Quantity.Sub(s.Reserved)
}

// Status derives the alert level for the row.
func (s StockRow) Status() StockStatus {
	return DeriveStatus(s.Available(), s.MinLevel)
}

// Movement is an append-only record of a change to one stock row. Quantity is
// signed: negative on the source side, positive on the destination side. For
// transfers both warehouse columns are populated and two rows share one
// reference.
type Movement struct {
	ID              int64
	Kind            MovementKind
	ProductID       int64
	WarehouseID     *int64
	DestWarehouseID *int64
	Quantity        decimal.Decimal
	UnitCost        decimal.Decimal
	TotalCost       decimal.Decimal
	QuantityBefore  decimal.Decimal
	QuantityAfter   decimal.Decimal
	Reference       string
	OccurredAt      time.Time
	ActorID         int64
}

// AffectedWarehouse returns the warehouse whose stock row this movement
// changed, so readers never branch on the nullable columns.
func (m Movement) AffectedWarehouse() int64 {
	if m.Quantity.Sign() < 0 {
		if m.WarehouseID != nil {
			return *m.WarehouseID
		}
		return 0
	}
	if m.DestWarehouseID != nil {
		return *m.DestWarehouseID
	}
	if m.WarehouseID != nil {
		return *m.WarehouseID
	}
	return 0
}

// AdjustInput restates the absolute quantity of one stock row.
type AdjustInput struct {
	ProductID   int64
	WarehouseID int64
	NewQuantity decimal.Decimal
	UnitCost    decimal.Decimal
	Reference   string
	ActorID     int64
}

// ReceiveInput adds quantity received from outside.
type ReceiveInput struct {
	ProductID   int64
	WarehouseID int64
	Quantity    decimal.Decimal
	UnitCost    decimal.Decimal
	Reference   string
	ActorID     int64
}

// IssueInput removes quantity leaving for outside.
type IssueInput struct {
	ProductID   int64
	WarehouseID int64
	Quantity    decimal.Decimal
	Reference   string
	ActorID     int64
}

// TransferInput moves quantity between two warehouses.
type TransferInput struct {
	ProductID     int64
	SourceID      int64
	DestinationID int64
	Quantity      decimal.Decimal
	Reference     string
	ActorID       int64
}

// AdjustmentResult reports the mutated row and the movement written for it.
type AdjustmentResult struct {
	Row      StockRow
	Movement Movement
}

// TransferResult reports both mutated rows and their paired movements.
type TransferResult struct {
	Source      StockRow
	Destination StockRow
	Outgoing    Movement
	Incoming    Movement
}

// OverviewRow is one line of the stock overview read model.
type OverviewRow struct {
	ProductID   int64
	WarehouseID int64
	Quantity    decimal.Decimal
	Reserved    decimal.Decimal
	Available   decimal.Decimal
	UnitCost    decimal.Decimal
	TotalCost   decimal.Decimal
	MinLevel    decimal.Decimal
	Status      StockStatus
}

// ProductDetail is a per-warehouse breakdown for one product plus totals.
type ProductDetail struct {
	ProductID     int64
	Rows          []OverviewRow
	TotalQuantity decimal.Decimal
	TotalValue    decimal.Decimal
}

// MovementFilter filters the movement history.
type MovementFilter struct {
	ProductID   *int64
	WarehouseID *int64
	Limit       int
}

// Alert is one low-stock alert row, ordered by Ratio ascending.
type Alert struct {
	ProductID   int64
	WarehouseID int64
	Quantity    decimal.Decimal
	MinLevel    decimal.Decimal
	Ratio       decimal.Decimal
}

var (
	// ErrInsufficientStock indicates the source holds less than requested.
	ErrInsufficientStock = errors.New("stock: insufficient stock")
	// ErrNegativeQuantity indicates a negative target quantity.
	ErrNegativeQuantity = errors.New("stock: quantity must not be negative")
	// ErrQuantityNotPositive indicates a zero or negative movement quantity.
	ErrQuantityNotPositive = errors.New("stock: quantity must be positive")
	// ErrInvalidUnitCost indicates a negative unit cost.
	ErrInvalidUnitCost = errors.New("stock: unit cost must be >= 0")
	// ErrStockRowNotFound indicates a missing stock row.
	ErrStockRowNotFound = errors.New("stock: stock row not found")
	// ErrWarehouseNotFound indicates a missing warehouse.
	ErrWarehouseNotFound = errors.New("stock: warehouse not found")
	// ErrSameWarehouse indicates source equals destination on a transfer.
	ErrSameWarehouse = errors.New("stock: source and destination warehouse must differ")
	// ErrProductRequired indicates a missing product id.
	ErrProductRequired = errors.New("stock: product required")
)
