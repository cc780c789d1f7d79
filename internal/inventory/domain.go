package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Type enumerates supported inventory session kinds.
type Type string

const (
	// TypeComplete counts every product stocked in the warehouse.
	TypeComplete Type = "COMPLETE"
	// TypePartial counts only an explicit product list.
	TypePartial Type = "PARTIAL"
	// TypeCyclic is a recurring count, snapshotted like a complete one.
	TypeCyclic Type = "CYCLIC"
	// TypeUrgent is an out-of-schedule count, snapshotted like a complete one.
	TypeUrgent Type = "URGENT"
)

// ParseType validates a session type read from storage or a client.
func ParseType(value string) (Type, error) {
	switch t := Type(value); t {
	case TypeComplete, TypePartial, TypeCyclic, TypeUrgent:
		return t, nil
	default:
		return "", fmt.Errorf("inventory: unknown type %q", value)
	}
}

// Status enumerates the session lifecycle.
type Status string

const (
	StatusDraft      Status = "DRAFT"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// ParseStatus validates a status read from storage; callers never compare
// raw strings.
func ParseStatus(value string) (Status, error) {
	switch s := Status(value); s {
	case StatusDraft, StatusInProgress, StatusCompleted, StatusCancelled:
		return s, nil
	default:
		return "", fmt.Errorf("inventory: unknown status %q", value)
	}
}

// Terminal reports whether the status admits no further transition.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Countable reports whether counts may still be saved.
func (s Status) Countable() bool {
	return s == StatusDraft || s == StatusInProgress
}

// Session is one scoped physical count of a warehouse.
type Session struct {
	ID                 int64
	EnterpriseID       int64
	PosID              *int64
	Reference          string
	Name               string
	WarehouseID        int64
	Type               Type
	Status             Status
	ScheduledDate      time.Time
	StartedAt          *time.Time
	CompletedAt        *time.Time
	CompletedBy        *int64
	TotalItems         int
	CountedItems       int
	TotalDiscrepancies int
	TotalVarianceValue decimal.Decimal
	CreatedBy          int64
	CreatedAt          time.Time
}

// Item is the frozen snapshot and count of one product in a session.
type Item struct {
	SessionID         int64
	ProductID         int64
	SystemStock       decimal.Decimal
	CountedStock      decimal.Decimal
	Variance          decimal.Decimal
	UnitCost          decimal.Decimal
	VarianceValue     decimal.Decimal
	SalePrice         decimal.Decimal
	VarianceValueSale decimal.Decimal
	Notes             string
	Location          string
	CountedAt         *time.Time
}

// CreateInput groups the fields to open a session.
type CreateInput struct {
	EnterpriseID     int64
	PosID            *int64
	WarehouseID      int64
	Type             Type
	Name             string
	ScheduledDate    time.Time
	IncludeZeroStock bool
	// ProductIDs restricts a PARTIAL session; required then, ignored
	// otherwise.
	ProductIDs []int64
	ActorID    int64
}

// CountInput carries one counted line.
type CountInput struct {
	ProductID    int64
	CountedStock decimal.Decimal
	Notes        string
}

// FinalizeResult reports the posted journal, if any, and the single soft
// failure: accounting roles missing.
type FinalizeResult struct {
	JournalID *int64
	Warning   string
}

// WarningAccountsNotConfigured is returned by Finalize when stock and
// purchase roles are missing; stock adjustments still commit.
const WarningAccountsNotConfigured = "accounts not configured"

// SnapshotRow is one stock line frozen at session creation.
type SnapshotRow struct {
	ProductID int64
	Quantity  decimal.Decimal
	UnitCost  decimal.Decimal
	SalePrice decimal.Decimal
}

var (
	// ErrNotFound indicates a missing session.
	ErrNotFound = errors.New("inventory: session not found")
	// ErrItemNotFound indicates a count for a product outside the session.
	ErrItemNotFound = errors.New("inventory: item not found in session")
	// ErrInvalidState indicates the session status refuses the operation.
	ErrInvalidState = errors.New("inventory: invalid session state")
	// ErrEmptyProductList indicates a PARTIAL session without products.
	ErrEmptyProductList = errors.New("inventory: partial session requires product ids")
	// ErrNegativeCount indicates a negative counted quantity.
	ErrNegativeCount = errors.New("inventory: counted stock must not be negative")
	// ErrWarehouseNotFound indicates a missing warehouse.
	ErrWarehouseNotFound = errors.New("inventory: warehouse not found")
	// ErrDuplicateReference indicates a reference collision on insert.
	ErrDuplicateReference = errors.New("inventory: reference already used")
	// ErrNameRequired indicates a missing session name.
	ErrNameRequired = errors.New("inventory: name required")
)
