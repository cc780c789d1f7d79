package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sahel-erp/sahel-erp/internal/accounting"
	"github.com/sahel-erp/sahel-erp/internal/shared"
	"github.com/sahel-erp/sahel-erp/internal/stock"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Session, error)
	List(ctx context.Context, enterpriseID int64, status *Status) ([]Session, error)
	Items(ctx context.Context, sessionID int64) ([]Item, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service runs the inventory session lifecycle: create, count, finalize,
// cancel.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	now   func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

const referenceLayout = "20060102150405"

// insertAttempts bounds reference-collision retries on session creation.
const insertAttempts = 5

// Create opens a session in DRAFT, snapshotting the warehouse stock so the
// counted figures compare against a frozen baseline.
func (s *Service) Create(ctx context.Context, input CreateInput) (Session, error) {
	if _, err := ParseType(string(input.Type)); err != nil {
		return Session{}, err
	}
	if strings.TrimSpace(input.Name) == "" {
		return Session{}, ErrNameRequired
	}
	if input.Type == TypePartial && len(input.ProductIDs) == 0 {
		return Session{}, ErrEmptyProductList
	}

	var session Session
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		exists, err := tx.WarehouseExists(ctx, input.WarehouseID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %d", ErrWarehouseNotFound, input.WarehouseID)
		}

		var snapshot []SnapshotRow
		if input.Type == TypePartial {
			snapshot, err = tx.SnapshotProducts(ctx, input.WarehouseID, input.ProductIDs)
		} else {
			snapshot, err = tx.SnapshotStock(ctx, input.WarehouseID, input.IncludeZeroStock)
		}
		if err != nil {
			return err
		}

		scheduled := input.ScheduledDate
		if scheduled.IsZero() {
			scheduled = s.now().UTC()
		}
		session = Session{
			EnterpriseID:  input.EnterpriseID,
			PosID:         input.PosID,
			Name:          strings.TrimSpace(input.Name),
			WarehouseID:   input.WarehouseID,
			Type:          input.Type,
			Status:        StatusDraft,
			ScheduledDate: scheduled,
			TotalItems:    len(snapshot),
			CreatedBy:     input.ActorID,
		}

		// References are timestamp-based; bump the stamp on collision so
		// two sessions opened the same second stay unique.
		stamp := s.now().UTC()
		for attempt := 0; ; attempt++ {
			session.Reference = "INV-" + stamp.Format(referenceLayout)
			id, err := tx.InsertSession(ctx, session)
			if err == nil {
				session.ID = id
				break
			}
			if !errors.Is(err, ErrDuplicateReference) || attempt >= insertAttempts {
				return err
			}
			stamp = stamp.Add(time.Second)
		}

		items := make([]Item, 0, len(snapshot))
		for _, row := range snapshot {
			items = append(items, Item{
				SessionID:   session.ID,
				ProductID:   row.ProductID,
				SystemStock: row.Quantity,
				UnitCost:    row.UnitCost,
				SalePrice:   row.SalePrice,
			})
		}
		return tx.InsertItems(ctx, session.ID, items)
	})
	if err != nil {
		return Session{}, err
	}
	s.record(ctx, input.ActorID, "inventory.create", session.ID, map[string]any{
		"reference": session.Reference,
		"type":      string(session.Type),
		"items":     session.TotalItems,
	})
	return session, nil
}

// SaveCounts records counted quantities and refreshes the session
// aggregates. The first save moves a DRAFT session to IN_PROGRESS. Saving
// the same counts twice leaves the session state identical.
func (s *Service) SaveCounts(ctx context.Context, sessionID int64, counts []CountInput) (Session, error) {
	var session Session
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		session, err = tx.GetSessionForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if !session.Status.Countable() {
			return fmt.Errorf("%w: %s", ErrInvalidState, session.Status)
		}

		items, err := tx.ListItems(ctx, sessionID)
		if err != nil {
			return err
		}
		byProduct := make(map[int64]*Item, len(items))
		for i := range items {
			byProduct[items[i].ProductID] = &items[i]
		}

		now := s.now().UTC()
		for _, count := range counts {
			if count.CountedStock.Sign() < 0 {
				return fmt.Errorf("%w: product %d", ErrNegativeCount, count.ProductID)
			}
			item, ok := byProduct[count.ProductID]
			if !ok {
				return fmt.Errorf("%w: product %d", ErrItemNotFound, count.ProductID)
			}
			countedAt := now
			item.CountedStock = count.CountedStock
			item.Variance = count.CountedStock.Sub(item.SystemStock)
			item.VarianceValue = item.Variance.Mul(item.UnitCost).Round(2)
			item.VarianceValueSale = item.Variance.Mul(item.SalePrice).Round(2)
			item.Notes = count.Notes
			item.CountedAt = &countedAt
			if err := tx.UpdateItemCount(ctx, *item); err != nil {
				return err
			}
		}

		session.CountedItems, session.TotalDiscrepancies, session.TotalVarianceValue = aggregate(items)
		if session.Status == StatusDraft {
			session.Status = StatusInProgress
			startedAt := now
			session.StartedAt = &startedAt
		}
		return tx.UpdateSessionProgress(ctx, session)
	})
	if err != nil {
		return Session{}, err
	}
	return session, nil
}

// Finalize applies every non-zero variance to the stock ledger and posts at
// most one journal for the net monetary variation. Stock effects commit even
// when the accounting roles are missing; that single soft case is reported
// through FinalizeResult.Warning.
func (s *Service) Finalize(ctx context.Context, sessionID, actorID int64) (FinalizeResult, error) {
	var result FinalizeResult
	var session Session
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		session, err = tx.GetSessionForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if session.Status != StatusInProgress {
			return fmt.Errorf("%w: %s", ErrInvalidState, session.Status)
		}

		// Items come back ordered by product id; adjustments therefore lock
		// stock rows in ascending product order.
		items, err := tx.ListItems(ctx, sessionID)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		for _, item := range items {
			if item.Variance.IsZero() {
				continue
			}
			_, err := tx.ApplyStockAdjustment(ctx, stock.DeltaInput{
				Kind:          stock.MovementAdjustment,
				ProductID:     item.ProductID,
				WarehouseID:   session.WarehouseID,
				Delta:         item.Variance,
				UnitCost:      item.UnitCost,
				Reference:     session.Reference,
				ActorID:       actorID,
				AllowNegative: true,
				At:            now,
			})
			if err != nil {
				return err
			}
		}

		counted, discrepancies, netVariance := aggregate(items)
		session.CountedItems = counted
		session.TotalDiscrepancies = discrepancies
		session.TotalVarianceValue = netVariance

		if !netVariance.IsZero() {
			journalID, warning, err := s.postVarianceJournal(ctx, tx, session, netVariance, actorID, now)
			if err != nil {
				return err
			}
			result.JournalID = journalID
			result.Warning = warning
		}

		session.Status = StatusCompleted
		completedAt := now
		session.CompletedAt = &completedAt
		session.CompletedBy = &actorID
		return tx.CompleteSession(ctx, session)
	})
	if err != nil {
		return FinalizeResult{}, err
	}
	s.record(ctx, actorID, "inventory.finalize", sessionID, map[string]any{
		"reference":     session.Reference,
		"variance":      session.TotalVarianceValue.StringFixed(2),
		"discrepancies": session.TotalDiscrepancies,
		"warning":       result.Warning,
	})
	return result, nil
}

func (s *Service) postVarianceJournal(ctx context.Context, tx TxRepository, session Session, netVariance decimal.Decimal, actorID int64, now time.Time) (*int64, string, error) {
	cfg, err := tx.GetAccountConfig(ctx, session.EnterpriseID, session.PosID)
	if err != nil {
		return nil, "", err
	}
	stockAccount, okStock := cfg.Account(accounting.RoleStock)
	purchaseAccount, okPurchase := cfg.Account(accounting.RolePurchase)
	if !okStock || !okPurchase {
		return nil, WarningAccountsNotConfigured, nil
	}

	posting := accounting.PostingInput{
		EnterpriseID:  session.EnterpriseID,
		ActorID:       actorID,
		Date:          now,
		Label:         "Ecart d'inventaire " + session.Reference,
		OperationType: "INVENTAIRE",
		Reference:     session.Reference,
		Amount:        netVariance.Abs(),
	}
	if netVariance.Sign() < 0 {
		// Net shortage: the stock account loses value against purchases.
		posting.DebitAccountID = purchaseAccount
		posting.CreditAccountID = stockAccount
	} else {
		posting.DebitAccountID = stockAccount
		posting.CreditAccountID = purchaseAccount
	}
	journalID, err := tx.PostJournal(ctx, posting)
	if err != nil {
		return nil, "", err
	}
	return &journalID, "", nil
}

// Cancel voids a session from DRAFT or IN_PROGRESS without stock or journal
// side effects.
func (s *Service) Cancel(ctx context.Context, sessionID, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		session, err := tx.GetSessionForUpdate(ctx, sessionID)
		if err != nil {
			return err
		}
		if session.Status.Terminal() {
			return fmt.Errorf("%w: %s", ErrInvalidState, session.Status)
		}
		session.Status = StatusCancelled
		return tx.UpdateSessionProgress(ctx, session)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, "inventory.cancel", sessionID, nil)
	return nil
}

// Get loads one session.
func (s *Service) Get(ctx context.Context, id int64) (Session, error) {
	return s.repo.Get(ctx, id)
}

// List returns sessions of an enterprise.
func (s *Service) List(ctx context.Context, enterpriseID int64, status *Status) ([]Session, error) {
	return s.repo.List(ctx, enterpriseID, status)
}

// Items lists the item lines of a session.
func (s *Service) Items(ctx context.Context, sessionID int64) ([]Item, error) {
	return s.repo.Items(ctx, sessionID)
}

func aggregate(items []Item) (counted, discrepancies int, netVariance decimal.Decimal) {
	for _, item := range items {
		if item.CountedStock.IsPositive() {
			counted++
		}
		if !item.Variance.IsZero() {
			discrepancies++
			netVariance = netVariance.Add(item.VarianceValue)
		}
	}
	return counted, discrepancies, netVariance
}

func (s *Service) record(ctx context.Context, actorID int64, action string, sessionID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "inventory_session",
		EntityID: fmt.Sprintf("%d", sessionID),
		Meta:     meta,
		At:       s.now(),
	})
}
