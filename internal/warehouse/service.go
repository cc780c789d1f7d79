package warehouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sahel-erp/sahel-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Warehouse, error)
	List(ctx context.Context, enterpriseID int64) ([]Warehouse, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages the warehouse registry.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	now   func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// Create registers a warehouse. Making it the default clears the previous
// default of the enterprise in the same transaction.
func (s *Service) Create(ctx context.Context, input CreateInput) (Warehouse, error) {
	if input.EnterpriseID == 0 {
		return Warehouse{}, ErrEnterpriseRequired
	}
	code := strings.TrimSpace(input.Code)
	if code == "" {
		return Warehouse{}, ErrCodeRequired
	}
	warehouse := Warehouse{
		EnterpriseID: input.EnterpriseID,
		Code:         code,
		Name:         strings.TrimSpace(input.Name),
		Type:         input.Type,
		IsDefault:    input.IsDefault,
		IsActive:     true,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if warehouse.IsDefault {
			if err := tx.ClearDefault(ctx, warehouse.EnterpriseID); err != nil {
				return err
			}
		}
		id, err := tx.Insert(ctx, warehouse)
		if err != nil {
			return err
		}
		warehouse.ID = id
		return nil
	})
	if err != nil {
		return Warehouse{}, err
	}
	s.record(ctx, input.ActorID, "warehouse.create", warehouse.ID, map[string]any{"code": warehouse.Code})
	return warehouse, nil
}

// Update mutates name, type and flags of a warehouse.
func (s *Service) Update(ctx context.Context, input UpdateInput) (Warehouse, error) {
	var updated Warehouse
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, input.ID)
		if err != nil {
			return err
		}
		if input.IsDefault && !current.IsDefault {
			if err := tx.ClearDefault(ctx, current.EnterpriseID); err != nil {
				return err
			}
		}
		current.Name = strings.TrimSpace(input.Name)
		current.Type = input.Type
		current.IsActive = input.IsActive
		current.IsDefault = input.IsDefault
		if err := tx.Update(ctx, current); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		return Warehouse{}, err
	}
	s.record(ctx, input.ActorID, "warehouse.update", updated.ID, map[string]any{"code": updated.Code})
	return updated, nil
}

// SetDefault promotes one warehouse to enterprise default, demoting the
// previous one atomically.
func (s *Service) SetDefault(ctx context.Context, id, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.IsDefault {
			return nil
		}
		if err := tx.ClearDefault(ctx, current.EnterpriseID); err != nil {
			return err
		}
		current.IsDefault = true
		return tx.Update(ctx, current)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, "warehouse.set_default", id, nil)
	return nil
}

// Delete removes a warehouse. Refused while it holds non-zero stock rows or
// an active point-of-sale configuration references it.
func (s *Service) Delete(ctx context.Context, id, actorID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetForUpdate(ctx, id); err != nil {
			return err
		}
		holdsStock, err := tx.HasNonZeroStock(ctx, id)
		if err != nil {
			return err
		}
		if holdsStock {
			return ErrHoldsStock
		}
		referenced, err := tx.ReferencedByActiveConfig(ctx, id)
		if err != nil {
			return err
		}
		if referenced {
			return ErrReferencedByConfig
		}
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, "warehouse.delete", id, nil)
	return nil
}

// Get loads one warehouse.
func (s *Service) Get(ctx context.Context, id int64) (Warehouse, error) {
	return s.repo.Get(ctx, id)
}

// List returns the warehouses of an enterprise.
func (s *Service) List(ctx context.Context, enterpriseID int64) ([]Warehouse, error) {
	if enterpriseID == 0 {
		return nil, ErrEnterpriseRequired
	}
	return s.repo.List(ctx, enterpriseID)
}

func (s *Service) record(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "warehouse",
		EntityID: fmt.Sprintf("%d", id),
		Meta:     meta,
		At:       s.now(),
	})
}
