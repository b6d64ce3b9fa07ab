package materials

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/capsula-erp/capsula/internal/shared"
)

type memoryRepo struct {
	suppliers map[int64]bool
	materials map[int64]Material
	lots      map[int64]Lot
	nextID    int64

	failLotUpdate error
	failListLots  bool
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo(supplierIDs ...int64) *memoryRepo {
	r := &memoryRepo{
		suppliers: map[int64]bool{},
		materials: map[int64]Material{},
		lots:      map[int64]Lot{},
	}
	for _, id := range supplierIDs {
		r.suppliers[id] = true
	}
	return r
}

// WithTx restores the previous state when fn fails, mimicking a rollback.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	materials := make(map[int64]Material, len(r.materials))
	for k, v := range r.materials {
		materials[k] = v
	}
	lots := make(map[int64]Lot, len(r.lots))
	for k, v := range r.lots {
		lots[k] = v
	}
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.materials = materials
		r.lots = lots
		return err
	}
	return nil
}

func (r *memoryRepo) GetMaterial(_ context.Context, id int64) (Material, error) {
	m, ok := r.materials[id]
	if !ok {
		return Material{}, fmt.Errorf("%w: id %d", ErrMaterialNotFound, id)
	}
	return m, nil
}

func (r *memoryRepo) ListMaterials(_ context.Context, q MaterialQuery) ([]Material, error) {
	var out []Material
	for _, m := range r.materials {
		if q.SupplierID > 0 && m.SupplierID != q.SupplierID {
			continue
		}
		if q.Category != "" && m.Category != q.Category {
			continue
		}
		if !shared.MatchesSearch(q.Search, m.Name, fmt.Sprint(m.Code)) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (r *memoryRepo) GetLot(_ context.Context, id int64) (Lot, error) {
	l, ok := r.lots[id]
	if !ok {
		return Lot{}, fmt.Errorf("%w: id %d", ErrLotNotFound, id)
	}
	l.DaysValidAfterOpening = r.materials[l.MaterialID].DaysValidAfterOpening
	return l, nil
}

func (r *memoryRepo) ListLots(_ context.Context, q LotQuery) ([]Lot, error) {
	if r.failListLots {
		return nil, errors.New("connection reset")
	}
	var out []Lot
	for _, l := range r.lots {
		if q.MaterialID > 0 && l.MaterialID != q.MaterialID {
			continue
		}
		if q.SupplierID > 0 && (l.SupplierID == nil || *l.SupplierID != q.SupplierID) {
			continue
		}
		l.DaysValidAfterOpening = r.materials[l.MaterialID].DaysValidAfterOpening
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memoryTx) GetMaterialForUpdate(ctx context.Context, id int64) (Material, error) {
	return t.repo.GetMaterial(ctx, id)
}

func (t *memoryTx) GetLotForUpdate(ctx context.Context, id int64) (Lot, error) {
	return t.repo.GetLot(ctx, id)
}

func (t *memoryTx) ListLotsForUpdate(ctx context.Context, materialID int64) ([]Lot, error) {
	return t.repo.ListLots(ctx, LotQuery{MaterialID: materialID})
}

func (t *memoryTx) UpdateMaterial(_ context.Context, m Material) error {
	if _, ok := t.repo.materials[m.ID]; !ok {
		return ErrMaterialNotFound
	}
	m.UpdatedAt = time.Now()
	t.repo.materials[m.ID] = m
	return nil
}

func (t *memoryTx) UpdateLot(_ context.Context, l Lot) error {
	if t.repo.failLotUpdate != nil {
		return t.repo.failLotUpdate
	}
	if _, ok := t.repo.lots[l.ID]; !ok {
		return ErrLotNotFound
	}
	t.repo.lots[l.ID] = l
	return nil
}

func (t *memoryTx) SupplierExists(_ context.Context, id int64) (bool, error) {
	return t.repo.suppliers[id], nil
}

func (t *memoryTx) InsertMaterial(_ context.Context, m Material) (Material, error) {
	for _, existing := range t.repo.materials {
		if existing.Code == m.Code {
			return Material{}, fmt.Errorf("%w: raw_materials_code_key", shared.ErrDuplicate)
		}
	}
	t.repo.nextID++
	m.ID = t.repo.nextID
	m.CreatedAt = time.Now()
	t.repo.materials[m.ID] = m
	return m, nil
}

func (t *memoryTx) DeleteMaterial(_ context.Context, id int64) error {
	delete(t.repo.materials, id)
	return nil
}

func (t *memoryTx) CountLotsForMaterial(_ context.Context, materialID int64) (int, error) {
	n := 0
	for _, l := range t.repo.lots {
		if l.MaterialID == materialID {
			n++
		}
	}
	return n, nil
}

func (t *memoryTx) InsertLot(_ context.Context, l Lot) (Lot, error) {
	for _, existing := range t.repo.lots {
		if existing.MaterialID == l.MaterialID && existing.LotNumber == l.LotNumber {
			return Lot{}, fmt.Errorf("%w: raw_material_lots_material_lot_key", shared.ErrDuplicate)
		}
	}
	t.repo.nextID++
	l.ID = t.repo.nextID
	t.repo.lots[l.ID] = l
	return l, nil
}

func (t *memoryTx) DeleteLot(_ context.Context, id int64) error {
	delete(t.repo.lots, id)
	return nil
}

type recordingAudit struct {
	entries []shared.AuditLog
}

func (a *recordingAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.entries = append(a.entries, log)
	return nil
}

func (a *recordingAudit) actions() []string {
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

type countingMetrics struct {
	movements map[string]int
}

func (m *countingMetrics) RecordStockMovement(kind string) {
	if m.movements == nil {
		m.movements = map[string]int{}
	}
	m.movements[kind]++
}
