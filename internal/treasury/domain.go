package treasury

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// TransferInput moves funds between two cash-class accounts.
type TransferInput struct {
	EnterpriseID int64
	// FromAccountID is credited, ToAccountID debited.
	FromAccountID int64
	ToAccountID   int64
	Amount        decimal.Decimal
	Label         string
	Reference     string
	ActorID       int64
	Date          time.Time
}

// TransferResult reports the posted journal and the balances after commit.
type TransferResult struct {
	JournalID   int64
	Reference   string
	FromBalance decimal.Decimal
	ToBalance   decimal.Decimal
}

var (
	// ErrInsufficientFunds indicates the source balance cannot cover the
	// transfer.
	ErrInsufficientFunds = errors.New("treasury: insufficient funds")
	// ErrNotCashAccount indicates an account outside the configured
	// cash-class list.
	ErrNotCashAccount = errors.New("treasury: account is not a cash account")
	// ErrSameAccount indicates identical source and destination accounts.
	ErrSameAccount = errors.New("treasury: accounts must differ")
	// ErrAmountNotPositive indicates a transfer amount of zero or less.
	ErrAmountNotPositive = errors.New("treasury: amount must be positive")
)
