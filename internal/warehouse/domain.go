package warehouse

import (
	"errors"
	"time"
)

// Warehouse is a storage location scoped to one enterprise. At most one
// warehouse per enterprise carries the default flag.
type Warehouse struct {
	ID           int64
	EnterpriseID int64
	Code         string
	Name         string
	Type         string
	IsDefault    bool
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateInput groups fields to register a warehouse.
type CreateInput struct {
	EnterpriseID int64
	Code         string
	Name         string
	Type         string
	IsDefault    bool
	ActorID      int64
}

// UpdateInput groups mutable warehouse fields.
type UpdateInput struct {
	ID        int64
	Name      string
	Type      string
	IsActive  bool
	IsDefault bool
	ActorID   int64
}

var (
	// ErrDuplicateCode indicates the (enterprise, code) pair already exists.
	ErrDuplicateCode = errors.New("warehouse: code already used for enterprise")
	// ErrNotFound indicates a missing warehouse.
	ErrNotFound = errors.New("warehouse: not found")
	// ErrHoldsStock refuses deletion while non-zero stock rows remain.
	ErrHoldsStock = errors.New("warehouse: still holds stock")
	// ErrReferencedByConfig refuses deletion while an active point-of-sale
	// configuration references the warehouse.
	ErrReferencedByConfig = errors.New("warehouse: referenced by point-of-sale configuration")
	// ErrCodeRequired indicates a missing code.
	ErrCodeRequired = errors.New("warehouse: code required")
	// ErrEnterpriseRequired indicates a missing enterprise id.
	ErrEnterpriseRequired = errors.New("warehouse: enterprise required")
)
