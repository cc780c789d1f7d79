package accounting

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sahel-erp/sahel-erp/internal/shared"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetConfig(ctx context.Context, enterpriseID int64, posID *int64) (*AccountConfig, error)
	AccountBalance(ctx context.Context, accountID int64) (decimal.Decimal, error)
	GetJournal(ctx context.Context, id int64) (Journal, []JournalLine, error)
}

// AuditPort records ledger events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service posts two-line journals and reads account configurations.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	now   func() time.Time
}

// NewService constructs the accounting service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// GetConfig resolves the account configuration for an enterprise and an
// optional point of sale. Returns nil without error when none is configured.
func (s *Service) GetConfig(ctx context.Context, enterpriseID int64, posID *int64) (*AccountConfig, error) {
	if enterpriseID == 0 {
		return nil, ErrEnterpriseRequired
	}
	return s.repo.GetConfig(ctx, enterpriseID, posID)
}

// AccountBalance returns sum(debit) - sum(credit) for one account.
func (s *Service) AccountBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	if accountID == 0 {
		return decimal.Zero, ErrAccountRequired
	}
	return s.repo.AccountBalance(ctx, accountID)
}

// GetJournal loads one journal header with its lines.
func (s *Service) GetJournal(ctx context.Context, id int64) (Journal, []JournalLine, error) {
	return s.repo.GetJournal(ctx, id)
}

// PostJournal validates and persists one journal header with exactly one
// debit line and one credit line of equal amount.
func (s *Service) PostJournal(ctx context.Context, input PostingInput) (int64, error) {
	if input.Date.IsZero() {
		input.Date = s.now().UTC()
	}
	var journalID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		journalID, err = PostTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return 0, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "journal.post",
			Entity:   "journal",
			EntityID: fmt.Sprintf("%d", journalID),
			Meta: map[string]any{
				"amount":    input.Amount.StringFixed(2),
				"reference": input.Reference,
				"operation": input.OperationType,
			},
			At: s.now(),
		})
	}
	return journalID, nil
}

// PostTx posts a journal inside the caller's transaction. Other modules use
// this to keep their stock effects and the resulting journal atomic.
func PostTx(ctx context.Context, tx TxRepository, input PostingInput) (int64, error) {
	if err := input.Validate(); err != nil {
		return 0, err
	}
	amount := input.Amount.Round(2)
	journalID, err := tx.InsertJournal(ctx, Journal{
		EnterpriseID:  input.EnterpriseID,
		Date:          input.Date,
		Label:         input.Label,
		Amount:        amount,
		OperationType: input.OperationType,
		Reference:     input.Reference,
		ActorID:       input.ActorID,
	})
	if err != nil {
		return 0, err
	}
	lines := []JournalLine{
		{JournalID: journalID, AccountID: input.DebitAccountID, Debit: amount, Credit: decimal.Zero, Ordinal: 1, Label: input.Label},
		{JournalID: journalID, AccountID: input.CreditAccountID, Debit: decimal.Zero, Credit: amount, Ordinal: 2, Label: input.Label},
	}
	if err := tx.InsertJournalLines(ctx, journalID, lines); err != nil {
		return 0, err
	}
	return journalID, nil
}
