package production

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/capsula-erp/capsula/internal/formulas"
	"github.com/capsula-erp/capsula/internal/materials"
	"github.com/capsula-erp/capsula/internal/shared"
)

type memoryRepo struct {
	products     map[int64]bool
	materials    map[int64]materials.Material
	lots         map[int64]materials.Lot
	batches      map[int64]Batch
	consumptions map[int64]Consumption
	nextID       int64

	// failConsumptionAfter makes InsertConsumption fail once this many rows exist.
	failConsumptionAfter int
	lockOrder            []int64
	materialLocks        []int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		products:     map[int64]bool{},
		materials:    map[int64]materials.Material{},
		lots:         map[int64]materials.Lot{},
		batches:      map[int64]Batch{},
		consumptions: map[int64]Consumption{},
		nextID:       100,
	}
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// WithTx restores every map when fn fails, mimicking a rollback.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	mats, lots := cloneMap(r.materials), cloneMap(r.lots)
	batches, cons := cloneMap(r.batches), cloneMap(r.consumptions)
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.materials, r.lots, r.batches, r.consumptions = mats, lots, batches, cons
		return err
	}
	return nil
}

func (r *memoryRepo) GetBatch(_ context.Context, id int64) (Batch, error) {
	b, ok := r.batches[id]
	if !ok {
		return Batch{}, fmt.Errorf("%w: id %d", ErrBatchNotFound, id)
	}
	return b, nil
}

func (r *memoryRepo) ListBatches(_ context.Context, q BatchQuery) ([]Batch, error) {
	var out []Batch
	for _, b := range r.batches {
		if q.ProductID > 0 && b.ProductID != q.ProductID {
			continue
		}
		if !shared.MatchesSearch(q.Search, b.BatchCode) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memoryRepo) Consumptions(_ context.Context, batchID int64) ([]Consumption, error) {
	var out []Consumption
	for _, c := range r.consumptions {
		if c.BatchID != batchID {
			continue
		}
		l := r.lots[c.LotID]
		c.LotNumber = l.LotNumber
		c.MaterialID = l.MaterialID
		c.MaterialName = r.materials[l.MaterialID].Name
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepo) LotsForMaterial(_ context.Context, materialID int64) ([]materials.Lot, error) {
	var out []materials.Lot
	for _, l := range r.lots {
		if l.MaterialID == materialID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memoryTx) GetMaterialForUpdate(_ context.Context, id int64) (materials.Material, error) {
	m, ok := t.repo.materials[id]
	if !ok {
		return materials.Material{}, fmt.Errorf("%w: id %d", materials.ErrMaterialNotFound, id)
	}
	t.repo.materialLocks = append(t.repo.materialLocks, id)
	return m, nil
}

func (t *memoryTx) GetLotForUpdate(_ context.Context, id int64) (materials.Lot, error) {
	l, ok := t.repo.lots[id]
	if !ok {
		return materials.Lot{}, fmt.Errorf("%w: id %d", materials.ErrLotNotFound, id)
	}
	t.repo.lockOrder = append(t.repo.lockOrder, id)
	return l, nil
}

func (t *memoryTx) ListLotsForUpdate(ctx context.Context, materialID int64) ([]materials.Lot, error) {
	return t.repo.LotsForMaterial(ctx, materialID)
}

func (t *memoryTx) UpdateMaterial(_ context.Context, m materials.Material) error {
	t.repo.materials[m.ID] = m
	return nil
}

func (t *memoryTx) UpdateLot(_ context.Context, l materials.Lot) error {
	t.repo.lots[l.ID] = l
	return nil
}

func (t *memoryTx) GetBatchForUpdate(ctx context.Context, id int64) (Batch, error) {
	return t.repo.GetBatch(ctx, id)
}

func (t *memoryTx) InsertBatch(_ context.Context, b Batch) (Batch, error) {
	for _, existing := range t.repo.batches {
		if existing.BatchCode == b.BatchCode {
			return Batch{}, fmt.Errorf("%w: production_batches_batch_code_key", shared.ErrDuplicate)
		}
	}
	t.repo.nextID++
	b.ID = t.repo.nextID
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	t.repo.batches[b.ID] = b
	return b, nil
}

func (t *memoryTx) UpdateBatch(_ context.Context, b Batch) (Batch, error) {
	if _, ok := t.repo.batches[b.ID]; !ok {
		return Batch{}, ErrBatchNotFound
	}
	t.repo.batches[b.ID] = b
	return b, nil
}

func (t *memoryTx) DeleteBatch(_ context.Context, id int64) error {
	delete(t.repo.batches, id)
	for cid, c := range t.repo.consumptions {
		if c.BatchID == id {
			delete(t.repo.consumptions, cid)
		}
	}
	return nil
}

func (t *memoryTx) ProductExists(_ context.Context, id int64) (bool, error) {
	return t.repo.products[id], nil
}

func (t *memoryTx) InsertConsumption(_ context.Context, c Consumption) (Consumption, error) {
	if n := t.repo.failConsumptionAfter; n > 0 && len(t.repo.consumptions) >= n {
		return Consumption{}, fmt.Errorf("insert consumption: connection reset")
	}
	t.repo.nextID++
	c.ID = t.repo.nextID
	c.CreatedAt = time.Now()
	t.repo.consumptions[c.ID] = c
	return c, nil
}

func (t *memoryTx) ListConsumptions(ctx context.Context, batchID int64) ([]Consumption, error) {
	return t.repo.Consumptions(ctx, batchID)
}

type memoryIdempotency struct {
	keys    map[string]bool
	deleted []string
}

func (m *memoryIdempotency) CheckAndInsert(_ context.Context, key, module string) error {
	if m.keys == nil {
		m.keys = map[string]bool{}
	}
	k := module + "/" + key
	if m.keys[k] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[k] = true
	return nil
}

func (m *memoryIdempotency) Delete(_ context.Context, key, module string) error {
	delete(m.keys, module+"/"+key)
	m.deleted = append(m.deleted, key)
	return nil
}

type stubRecipes struct {
	detail formulas.Detail
	err    error
}

func (s stubRecipes) Recipe(context.Context, int64) (formulas.Detail, error) {
	return s.detail, s.err
}

type recordingAudit struct {
	entries []shared.AuditLog
}

func (a *recordingAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.entries = append(a.entries, log)
	return nil
}

type countingCache struct{ bumps int }

func (c *countingCache) Bump(context.Context) error {
	c.bumps++
	return nil
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
