package accounting

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Role names an accounting role a point of sale maps to a ledger account.
type Role string

const (
	RoleCash     Role = "cash"
	RoleBank     Role = "bank"
	RoleClient   Role = "client"
	RoleSupplier Role = "supplier"
	RoleTax      Role = "tax"
	RolePurchase Role = "purchase"
	RoleDiscount Role = "discount"
	RoleStock    Role = "stock"
	RoleSales    Role = "sales"
)

// AccountConfig maps accounting roles to account ids for one
// (enterprise, point of sale) pair. Any role may be unset; callers must
// degrade when Account reports false.
type AccountConfig struct {
	EnterpriseID int64
	PosID        *int64
	WarehouseID  *int64
	IsActive     bool

	CashAccountID     *int64
	BankAccountID     *int64
	ClientAccountID   *int64
	SupplierAccountID *int64
	TaxAccountID      *int64
	PurchaseAccountID *int64
	DiscountAccountID *int64
	StockAccountID    *int64
	SalesAccountID    *int64
}

// Account resolves a role to its configured account id.
func (c *AccountConfig) Account(role Role) (int64, bool) {
	if c == nil {
		return 0, false
	}
	var id *int64
	switch role {
	case RoleCash:
		id = c.CashAccountID
	case RoleBank:
		id = c.BankAccountID
	case RoleClient:
		id = c.ClientAccountID
	case RoleSupplier:
		id = c.SupplierAccountID
	case RoleTax:
		id = c.TaxAccountID
	case RolePurchase:
		id = c.PurchaseAccountID
	case RoleDiscount:
		id = c.DiscountAccountID
	case RoleStock:
		id = c.StockAccountID
	case RoleSales:
		id = c.SalesAccountID
	}
	if id == nil || *id == 0 {
		return 0, false
	}
	return *id, true
}

// Journal is a double-entry header. The core only ever posts two-line
// journals: one debit, one credit, equal amounts.
type Journal struct {
	ID            int64
	EnterpriseID  int64
	Date          time.Time
	Label         string
	Amount        decimal.Decimal
	OperationType string
	Reference     string
	ActorID       int64
	CreatedAt     time.Time
}

// JournalLine stores a debit or credit amount for one account.
type JournalLine struct {
	ID        int64
	JournalID int64
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	Ordinal   int
	Label     string
}

// PostingInput groups the fields required to post a two-line journal.
type PostingInput struct {
	EnterpriseID    int64
	ActorID         int64
	Date            time.Time
	Label           string
	OperationType   string
	Reference       string
	Amount          decimal.Decimal
	DebitAccountID  int64
	CreditAccountID int64
}

var (
	// ErrAmountNotPositive indicates a journal amount of zero or less.
	ErrAmountNotPositive = errors.New("accounting: amount must be positive")
	// ErrAccountRequired indicates a missing debit or credit account id.
	ErrAccountRequired = errors.New("accounting: debit and credit accounts required")
	// ErrEnterpriseRequired indicates a missing enterprise id.
	ErrEnterpriseRequired = errors.New("accounting: enterprise required")
	// ErrDateRequired indicates a zero journal date.
	ErrDateRequired = errors.New("accounting: date required")
	// ErrJournalNotFound indicates a missing journal.
	ErrJournalNotFound = errors.New("accounting: journal not found")
	// ErrAccountNotFound indicates a lock request on a missing account.
	ErrAccountNotFound = errors.New("accounting: account not found")
)

// Validate ensures the posting meets the two-line journal contract.
func (in PostingInput) Validate() error {
	if in.EnterpriseID == 0 {
		return ErrEnterpriseRequired
	}
	if !in.Amount.IsPositive() {
		return ErrAmountNotPositive
	}
	if in.DebitAccountID == 0 || in.CreditAccountID == 0 {
		return ErrAccountRequired
	}
	if in.Date.IsZero() {
		return ErrDateRequired
	}
	return nil
}
