package warehouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	warehouses map[int64]Warehouse
	stocked    map[int64]bool
	referenced map[int64]bool
	nextID     int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		warehouses: map[int64]Warehouse{},
		stocked:    map[int64]bool{},
		referenced: map[int64]bool{},
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Warehouse, error) {
	warehouse, ok := r.warehouses[id]
	if !ok {
		return Warehouse{}, ErrNotFound
	}
	return warehouse, nil
}

func (r *memoryRepo) List(ctx context.Context, enterpriseID int64) ([]Warehouse, error) {
	var out []Warehouse
	for _, w := range r.warehouses {
		if w.EnterpriseID == enterpriseID {
			out = append(out, w)
		}
	}
	return out, nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (tx *memoryTx) Insert(ctx context.Context, warehouse Warehouse) (int64, error) {
	for _, existing := range tx.repo.warehouses {
		if existing.EnterpriseID == warehouse.EnterpriseID && existing.Code == warehouse.Code {
			return 0, ErrDuplicateCode
		}
	}
	tx.repo.nextID++
	warehouse.ID = tx.repo.nextID
	tx.repo.warehouses[warehouse.ID] = warehouse
	return warehouse.ID, nil
}

func (tx *memoryTx) Update(ctx context.Context, warehouse Warehouse) error {
	if _, ok := tx.repo.warehouses[warehouse.ID]; !ok {
		return ErrNotFound
	}
	tx.repo.warehouses[warehouse.ID] = warehouse
	return nil
}

func (tx *memoryTx) GetForUpdate(ctx context.Context, id int64) (Warehouse, error) {
	warehouse, ok := tx.repo.warehouses[id]
	if !ok {
		return Warehouse{}, ErrNotFound
	}
	return warehouse, nil
}

func (tx *memoryTx) ClearDefault(ctx context.Context, enterpriseID int64) error {
	for id, w := range tx.repo.warehouses {
		if w.EnterpriseID == enterpriseID && w.IsDefault {
			w.IsDefault = false
			tx.repo.warehouses[id] = w
		}
	}
	return nil
}

func (tx *memoryTx) HasNonZeroStock(ctx context.Context, id int64) (bool, error) {
	return tx.repo.stocked[id], nil
}

func (tx *memoryTx) ReferencedByActiveConfig(ctx context.Context, id int64) (bool, error) {
	return tx.repo.referenced[id], nil
}

func (tx *memoryTx) Delete(ctx context.Context, id int64) error {
	delete(tx.repo.warehouses, id)
	return nil
}

func TestCreateValidatesInput(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)

	_, err := svc.Create(context.Background(), CreateInput{Code: "PRINCIPAL"})
	require.ErrorIs(t, err, ErrEnterpriseRequired)

	_, err = svc.Create(context.Background(), CreateInput{EnterpriseID: 1, Code: "  "})
	require.ErrorIs(t, err, ErrCodeRequired)
}

func TestCreateRejectsDuplicateCode(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)

	_, err := svc.Create(context.Background(), CreateInput{EnterpriseID: 1, Code: "PRINCIPAL", Name: "Principal"})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateInput{EnterpriseID: 1, Code: "PRINCIPAL", Name: "Doublon"})
	require.ErrorIs(t, err, ErrDuplicateCode)

	// Same code under another enterprise is fine.
	_, err = svc.Create(context.Background(), CreateInput{EnterpriseID: 2, Code: "PRINCIPAL", Name: "Principal"})
	require.NoError(t, err)
}

func TestCreateDefaultDemotesPrevious(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)

	first, err := svc.Create(context.Background(), CreateInput{EnterpriseID: 1, Code: "A", IsDefault: true})
	require.NoError(t, err)
	second, err := svc.Create(context.Background(), CreateInput{EnterpriseID: 1, Code: "B", IsDefault: true})
	require.NoError(t, err)

	require.False(t, repo.warehouses[first.ID].IsDefault)
	require.True(t, repo.warehouses[second.ID].IsDefault)
}

func TestSetDefaultSwapsAtomically(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)

	first, err := svc.Create(context.Background(), CreateInput{EnterpriseID: 1, Code: "A", IsDefault: true})
	require.NoError(t, err)
	second, err := svc.Create(context.Background(), CreateInput{EnterpriseID: 1, Code: "B"})
	require.NoError(t, err)

	require.NoError(t, svc.SetDefault(context.Background(), second.ID, 1))
	require.False(t, repo.warehouses[first.ID].IsDefault)
	require.True(t, repo.warehouses[second.ID].IsDefault)

	// Promoting the current default is a no-op.
	require.NoError(t, svc.SetDefault(context.Background(), second.ID, 1))
	require.True(t, repo.warehouses[second.ID].IsDefault)
}

func TestDeleteGuards(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)

	stocked, err := svc.Create(context.Background(), CreateInput{EnterpriseID: 1, Code: "A"})
	require.NoError(t, err)
	repo.stocked[stocked.ID] = true

	configured, err := svc.Create(context.Background(), CreateInput{EnterpriseID: 1, Code: "B"})
	require.NoError(t, err)
	repo.referenced[configured.ID] = true

	free, err := svc.Create(context.Background(), CreateInput{EnterpriseID: 1, Code: "C"})
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(context.Background(), stocked.ID, 1), ErrHoldsStock)
	require.ErrorIs(t, svc.Delete(context.Background(), configured.ID, 1), ErrReferencedByConfig)
	require.NoError(t, svc.Delete(context.Background(), free.ID, 1))

	_, err = svc.Get(context.Background(), free.ID)
	require.ErrorIs(t, err, ErrNotFound)

	require.ErrorIs(t, svc.Delete(context.Background(), 999, 1), ErrNotFound)
}

func TestUpdateMutatesFields(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)

	created, err := svc.Create(context.Background(), CreateInput{EnterpriseID: 1, Code: "A", Name: "Ancien", Type: "PRINCIPAL"})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), UpdateInput{
		ID:       created.ID,
		Name:     "Nouveau nom",
		Type:     "SECONDAIRE",
		IsActive: false,
	})
	require.NoError(t, err)
	require.Equal(t, "Nouveau nom", updated.Name)
	require.Equal(t, "SECONDAIRE", updated.Type)
	require.False(t, updated.IsActive)
	require.Equal(t, "A", updated.Code)
}
