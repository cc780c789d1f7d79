package treasury

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sahel-erp/sahel-erp/internal/accounting"
	"github.com/sahel-erp/sahel-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service moves funds between cash-class accounts. Which accounts qualify
// is configuration, not chart-of-accounts convention.
type Service struct {
	repo         RepositoryPort
	audit        AuditPort
	cashAccounts map[int64]struct{}
	now          func() time.Time
}

// NewService builds Service. cashAccountIDs lists the ledger accounts
// eligible as transfer endpoints.
func NewService(repo RepositoryPort, audit AuditPort, cashAccountIDs []int64) *Service {
	cash := make(map[int64]struct{}, len(cashAccountIDs))
	for _, id := range cashAccountIDs {
		cash[id] = struct{}{}
	}
	return &Service{repo: repo, audit: audit, cashAccounts: cash, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Transfer moves Amount from one cash-class account to another. Both account
// rows are locked before the source balance is read, so two concurrent
// transfers from the same account serialize and cannot overdraw past commit.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (TransferResult, error) {
	if !input.Amount.IsPositive() {
		return TransferResult{}, ErrAmountNotPositive
	}
	if input.FromAccountID == input.ToAccountID {
		return TransferResult{}, ErrSameAccount
	}
	for _, id := range []int64{input.FromAccountID, input.ToAccountID} {
		if _, ok := s.cashAccounts[id]; !ok {
			return TransferResult{}, fmt.Errorf("%w: %d", ErrNotCashAccount, id)
		}
	}

	now := s.now().UTC()
	date := input.Date
	if date.IsZero() {
		date = now
	}
	reference := input.Reference
	if reference == "" {
		reference = fmt.Sprintf("TRF-%d", now.UnixNano())
	}
	label := strings.TrimSpace(input.Label)
	if label == "" {
		label = "Transfert de fonds " + reference
	}
	amount := input.Amount.Round(2)

	var result TransferResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.LockAccounts(ctx, input.FromAccountID, input.ToAccountID); err != nil {
			return err
		}
		balance, err := tx.AccountBalance(ctx, input.FromAccountID)
		if err != nil {
			return err
		}
		if balance.LessThan(amount) {
			return fmt.Errorf("%w: balance %s, requested %s",
				ErrInsufficientFunds, balance.StringFixed(2), amount.StringFixed(2))
		}
		journalID, err := tx.PostJournal(ctx, accounting.PostingInput{
			EnterpriseID:    input.EnterpriseID,
			ActorID:         input.ActorID,
			Date:            date,
			Label:           label,
			OperationType:   "TRANSFERT",
			Reference:       reference,
			Amount:          amount,
			DebitAccountID:  input.ToAccountID,
			CreditAccountID: input.FromAccountID,
		})
		if err != nil {
			return err
		}
		result.JournalID = journalID
		result.Reference = reference
		result.FromBalance = balance.Sub(amount)

		toBalance, err := tx.AccountBalance(ctx, input.ToAccountID)
		if err != nil {
			return err
		}
		result.ToBalance = toBalance
		return nil
	})
	if err != nil {
		return TransferResult{}, err
	}
	s.record(ctx, input.ActorID, result)
	return result, nil
}

func (s *Service) record(ctx context.Context, actorID int64, result TransferResult) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   "treasury.transfer",
		Entity:   "journal",
		EntityID: fmt.Sprintf("%d", result.JournalID),
		Meta:     map[string]any{"reference": result.Reference},
		At:       s.now(),
	})
}
