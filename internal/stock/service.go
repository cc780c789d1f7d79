package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sahel-erp/sahel-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Overview(ctx context.Context, warehouseID *int64) ([]OverviewRow, error)
	ProductDetail(ctx context.Context, productID int64) (ProductDetail, error)
	Movements(ctx context.Context, filter MovementFilter) ([]Movement, error)
	LowStockAlerts(ctx context.Context, warehouseID *int64) ([]Alert, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates stock ledger operations.
type Service struct {
	repo        RepositoryPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	now         func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, idem *shared.IdempotencyStore) *Service {
	return &Service{repo: repo, audit: audit, idempotency: idem, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// DeltaInput describes one signed mutation of a stock row. It is the shared
// primitive behind adjustments, receipts, issues, transfer legs and inventory
// finalization.
type DeltaInput struct {
	Kind        MovementKind
	ProductID   int64
	WarehouseID int64
	// Delta is signed; negative removes stock.
	Delta decimal.Decimal
	// UnitCost is the cost hint: adopted by empty rows, recorded on inbound
	// movements, and forced onto the row when SetUnitCost is true.
	UnitCost    decimal.Decimal
	SetUnitCost bool
	// CounterpartyID, when set, marks a transfer leg: both warehouse columns
	// of the movement are populated.
	CounterpartyID *int64
	Reference      string
	ActorID        int64
	// AllowNegative permits the committed quantity to fall below zero. Only
	// inventory finalization uses it.
	AllowNegative bool
	// At stamps the movement and the row's last activity. Callers supply
	// their own clock.
	At time.Time
}

// ApplyDelta locks and mutates one stock row inside the caller's transaction,
// appending the matching movement. The row is created when missing.
func ApplyDelta(ctx context.Context, tx TxRepository, p DeltaInput) (Movement, StockRow, error) {
	row, err := tx.GetStockRowForUpdate(ctx, p.ProductID, p.WarehouseID)
	if err != nil && !errors.Is(err, ErrStockRowNotFound) {
		return Movement{}, StockRow{}, err
	}
	return applyToRow(ctx, tx, row, p)
}

func applyToRow(ctx context.Context, tx TxRepository, row StockRow, p DeltaInput) (Movement, StockRow, error) {
	before := row.Quantity
	after := before.Add(p.Delta)
	if after.Sign() < 0 && !p.AllowNegative {
		return Movement{}, StockRow{}, ErrInsufficientStock
	}

	// Transfer legs carry their cost in the input so both movements record
	// the same figure even when it is zero; other kinds fall back to the row
	// cost.
	moveCost := p.UnitCost
	if moveCost.IsZero() && p.CounterpartyID == nil {
		moveCost = row.UnitCost
	}
	rowCost := row.UnitCost
	switch {
	case p.SetUnitCost:
		rowCost = p.UnitCost
	case before.IsZero() && p.UnitCost.IsPositive():
		// An empty row adopts the incoming cost; otherwise it retains its
		// own. Weighted-average costing is deliberately not applied.
		rowCost = p.UnitCost
	}

	at := p.At
	row.Quantity = after
	row.UnitCost = rowCost
	row.TotalCost = after.Mul(rowCost).Round(2)
	row.LastMovementAt = &at
	if err := tx.UpsertStockRow(ctx, row); err != nil {
		return Movement{}, StockRow{}, err
	}

	movement := Movement{
		Kind:           p.Kind,
		ProductID:      p.ProductID,
		Quantity:       p.Delta,
		UnitCost:       moveCost,
		TotalCost:      p.Delta.Mul(moveCost).Round(2),
		QuantityBefore: before,
		QuantityAfter:  after,
		Reference:      p.Reference,
		OccurredAt:     at,
		ActorID:        p.ActorID,
	}
	warehouseID := p.WarehouseID
	switch {
	case p.CounterpartyID != nil && p.Delta.Sign() < 0:
		movement.WarehouseID = &warehouseID
		movement.DestWarehouseID = p.CounterpartyID
	case p.CounterpartyID != nil:
		movement.WarehouseID = p.CounterpartyID
		movement.DestWarehouseID = &warehouseID
	case p.Delta.Sign() < 0:
		movement.WarehouseID = &warehouseID
	default:
		movement.DestWarehouseID = &warehouseID
	}
	id, err := tx.InsertMovement(ctx, movement)
	if err != nil {
		return Movement{}, StockRow{}, err
	}
	movement.ID = id
	return movement, row, nil
}

// Adjust restates the absolute quantity of one stock row, recording one
// ADJUSTMENT movement with the signed difference.
func (s *Service) Adjust(ctx context.Context, input AdjustInput) (AdjustmentResult, error) {
	if input.ProductID == 0 {
		return AdjustmentResult{}, ErrProductRequired
	}
	if input.WarehouseID == 0 {
		return AdjustmentResult{}, ErrWarehouseNotFound
	}
	if input.NewQuantity.Sign() < 0 {
		return AdjustmentResult{}, ErrNegativeQuantity
	}
	if input.UnitCost.Sign() < 0 {
		return AdjustmentResult{}, ErrInvalidUnitCost
	}
	reference := s.defaultReference(input.Reference, "ADJ")

	var result AdjustmentResult
	err := s.withIdempotency(ctx, shared.Fingerprint(fmt.Sprintf("stock:ADJUSTMENT:%s:%d:%d", reference, input.ProductID, input.WarehouseID)), func() error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			if err := ensureWarehouse(ctx, tx, input.WarehouseID); err != nil {
				return err
			}
			row, err := tx.GetStockRowForUpdate(ctx, input.ProductID, input.WarehouseID)
			if err != nil && !errors.Is(err, ErrStockRowNotFound) {
				return err
			}
			movement, updated, err := applyToRow(ctx, tx, row, DeltaInput{
				Kind:        MovementAdjustment,
				ProductID:   input.ProductID,
				WarehouseID: input.WarehouseID,
				Delta:       input.NewQuantity.Sub(row.Quantity),
				UnitCost:    input.UnitCost,
				SetUnitCost: true,
				Reference:   reference,
				ActorID:     input.ActorID,
				At:          s.now().UTC(),
			})
			if err != nil {
				return err
			}
			result = AdjustmentResult{Row: updated, Movement: movement}
			return nil
		})
	})
	if err != nil {
		return AdjustmentResult{}, err
	}
	s.record(ctx, input.ActorID, "stock.adjust", input.ProductID, map[string]any{
		"warehouse_id": input.WarehouseID,
		"quantity":     input.NewQuantity.StringFixed(2),
		"reference":    reference,
	})
	return result, nil
}

// Receive adds quantity entering a warehouse from outside.
func (s *Service) Receive(ctx context.Context, input ReceiveInput) (AdjustmentResult, error) {
	if input.ProductID == 0 {
		return AdjustmentResult{}, ErrProductRequired
	}
	if !input.Quantity.IsPositive() {
		return AdjustmentResult{}, ErrQuantityNotPositive
	}
	if input.UnitCost.Sign() < 0 {
		return AdjustmentResult{}, ErrInvalidUnitCost
	}
	reference := s.defaultReference(input.Reference, "REC")

	var result AdjustmentResult
	err := s.withIdempotency(ctx, shared.Fingerprint(fmt.Sprintf("stock:RECEIPT:%s:%d:%d", reference, input.ProductID, input.WarehouseID)), func() error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			if err := ensureWarehouse(ctx, tx, input.WarehouseID); err != nil {
				return err
			}
			movement, row, err := ApplyDelta(ctx, tx, DeltaInput{
				Kind:        MovementReceipt,
				ProductID:   input.ProductID,
				WarehouseID: input.WarehouseID,
				Delta:       input.Quantity,
				UnitCost:    input.UnitCost,
				Reference:   reference,
				ActorID:     input.ActorID,
				At:          s.now().UTC(),
			})
			if err != nil {
				return err
			}
			result = AdjustmentResult{Row: row, Movement: movement}
			return nil
		})
	})
	if err != nil {
		return AdjustmentResult{}, err
	}
	s.record(ctx, input.ActorID, "stock.receive", input.ProductID, map[string]any{
		"warehouse_id": input.WarehouseID,
		"quantity":     input.Quantity.StringFixed(2),
		"reference":    reference,
	})
	return result, nil
}

// Issue removes quantity leaving a warehouse for outside. Fails with
// ErrInsufficientStock when the row would go negative.
func (s *Service) Issue(ctx context.Context, input IssueInput) (AdjustmentResult, error) {
	if input.ProductID == 0 {
		return AdjustmentResult{}, ErrProductRequired
	}
	if !input.Quantity.IsPositive() {
		return AdjustmentResult{}, ErrQuantityNotPositive
	}
	reference := s.defaultReference(input.Reference, "ISS")

	var result AdjustmentResult
	err := s.withIdempotency(ctx, shared.Fingerprint(fmt.Sprintf("stock:ISSUE:%s:%d:%d", reference, input.ProductID, input.WarehouseID)), func() error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			if err := ensureWarehouse(ctx, tx, input.WarehouseID); err != nil {
				return err
			}
			movement, row, err := ApplyDelta(ctx, tx, DeltaInput{
				Kind:        MovementIssue,
				ProductID:   input.ProductID,
				WarehouseID: input.WarehouseID,
				Delta:       input.Quantity.Neg(),
				Reference:   reference,
				ActorID:     input.ActorID,
				At:          s.now().UTC(),
			})
			if err != nil {
				return err
			}
			result = AdjustmentResult{Row: row, Movement: movement}
			return nil
		})
	})
	if err != nil {
		return AdjustmentResult{}, err
	}
	s.record(ctx, input.ActorID, "stock.issue", input.ProductID, map[string]any{
		"warehouse_id": input.WarehouseID,
		"quantity":     input.Quantity.StringFixed(2),
		"reference":    reference,
	})
	return result, nil
}

// Transfer moves quantity between two warehouses as one transaction,
// producing two movements linked by a shared reference.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (TransferResult, error) {
	if input.ProductID == 0 {
		return TransferResult{}, ErrProductRequired
	}
	if input.SourceID == 0 || input.DestinationID == 0 {
		return TransferResult{}, ErrWarehouseNotFound
	}
	if input.SourceID == input.DestinationID {
		return TransferResult{}, ErrSameWarehouse
	}
	if !input.Quantity.IsPositive() {
		return TransferResult{}, ErrQuantityNotPositive
	}
	reference := s.defaultReference(input.Reference, "TRF")

	var result TransferResult
	err := s.withIdempotency(ctx, shared.Fingerprint(fmt.Sprintf("stock:TRANSFER:%s:%d", reference, input.ProductID)), func() error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			if err := ensureWarehouse(ctx, tx, input.SourceID); err != nil {
				return err
			}
			if err := ensureWarehouse(ctx, tx, input.DestinationID); err != nil {
				return err
			}

			// Lock both rows in ascending warehouse-id order so two
			// symmetric transfers cannot deadlock.
			first, second := input.SourceID, input.DestinationID
			if second < first {
				first, second = second, first
			}
			locked := map[int64]StockRow{}
			for _, warehouseID := range []int64{first, second} {
				row, err := tx.GetStockRowForUpdate(ctx, input.ProductID, warehouseID)
				if err != nil && !errors.Is(err, ErrStockRowNotFound) {
					return err
				}
				locked[warehouseID] = row
			}

			source := locked[input.SourceID]
			if source.Quantity.LessThan(input.Quantity) {
				return ErrInsufficientStock
			}

			at := s.now().UTC()
			sourceID, destinationID := input.SourceID, input.DestinationID
			outgoing, sourceRow, err := applyToRow(ctx, tx, source, DeltaInput{
				Kind:           MovementTransfer,
				ProductID:      input.ProductID,
				WarehouseID:    input.SourceID,
				Delta:          input.Quantity.Neg(),
				UnitCost:       source.UnitCost,
				CounterpartyID: &destinationID,
				Reference:      reference,
				ActorID:        input.ActorID,
				At:             at,
			})
			if err != nil {
				return err
			}
			incoming, destinationRow, err := applyToRow(ctx, tx, locked[input.DestinationID], DeltaInput{
				Kind:           MovementTransfer,
				ProductID:      input.ProductID,
				WarehouseID:    input.DestinationID,
				Delta:          input.Quantity,
				UnitCost:       source.UnitCost,
				CounterpartyID: &sourceID,
				Reference:      reference,
				ActorID:        input.ActorID,
				At:             at,
			})
			if err != nil {
				return err
			}
			result = TransferResult{
				Source:      sourceRow,
				Destination: destinationRow,
				Outgoing:    outgoing,
				Incoming:    incoming,
			}
			return nil
		})
	})
	if err != nil {
		return TransferResult{}, err
	}
	s.record(ctx, input.ActorID, "stock.transfer", input.ProductID, map[string]any{
		"source_id":      input.SourceID,
		"destination_id": input.DestinationID,
		"quantity":       input.Quantity.StringFixed(2),
		"reference":      reference,
	})
	return result, nil
}

// Overview lists stock rows with derived status.
func (s *Service) Overview(ctx context.Context, warehouseID *int64) ([]OverviewRow, error) {
	return s.repo.Overview(ctx, warehouseID)
}

// ProductDetail reports the per-warehouse breakdown plus totals.
func (s *Service) ProductDetail(ctx context.Context, productID int64) (ProductDetail, error) {
	if productID == 0 {
		return ProductDetail{}, ErrProductRequired
	}
	return s.repo.ProductDetail(ctx, productID)
}

// Movements lists movement history, most recent first.
func (s *Service) Movements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	return s.repo.Movements(ctx, filter)
}

// LowStockAlerts lists rows at or below their minimum level.
func (s *Service) LowStockAlerts(ctx context.Context, warehouseID *int64) ([]Alert, error) {
	return s.repo.LowStockAlerts(ctx, warehouseID)
}

func ensureWarehouse(ctx context.Context, tx TxRepository, warehouseID int64) error {
	exists, err := tx.WarehouseExists(ctx, warehouseID)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %d", ErrWarehouseNotFound, warehouseID)
	}
	return nil
}

func (s *Service) defaultReference(reference, prefix string) string {
	if reference != "" {
		return reference
	}
	return fmt.Sprintf("%s-%d", prefix, s.now().UnixNano())
}

func (s *Service) withIdempotency(ctx context.Context, key string, fn func() error) error {
	inserted := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "stock"); err != nil {
			return err
		}
		inserted = true
	}
	if err := fn(); err != nil {
		if inserted {
			_ = s.idempotency.Delete(ctx, key)
		}
		return err
	}
	return nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, productID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "stock_row",
		EntityID: fmt.Sprintf("%d", productID),
		Meta:     meta,
		At:       s.now(),
	})
}
