package production

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/capsula-erp/capsula/internal/materials"
	"github.com/capsula-erp/capsula/internal/shared"
)

const idempotencyModule = "production.batch"

// ServiceConfig groups optional collaborators.
type ServiceConfig struct {
	Recipes     RecipeSource
	Idempotency IdempotencyPort
	Audit       AuditPort
	Cache       StockCache
	Metrics     materials.MovementRecorder
	Logger      *slog.Logger
	Clock       func() time.Time
}

// Service records production batches and their lot consumptions.
type Service struct {
	repo        RepositoryPort
	recipes     RecipeSource
	idempotency IdempotencyPort
	audit       AuditPort
	cache       StockCache
	metrics     materials.MovementRecorder
	logger      *slog.Logger
	clock       func() time.Time
	validate    *shared.Validator
}

// NewService builds Service.
func NewService(repo RepositoryPort, cfg ServiceConfig) *Service {
	s := &Service{
		repo:        repo,
		recipes:     cfg.Recipes,
		idempotency: cfg.Idempotency,
		audit:       cfg.Audit,
		cache:       cfg.Cache,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		clock:       cfg.Clock,
		validate:    shared.NewValidator(),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	return s
}

func (s *Service) today() time.Time {
	return shared.DateOf(s.clock())
}

// GetBatch loads a batch with its consumptions.
func (s *Service) GetBatch(ctx context.Context, id int64) (BatchDetail, error) {
	b, err := s.repo.GetBatch(ctx, id)
	if err != nil {
		return BatchDetail{}, err
	}
	cons, err := s.repo.Consumptions(ctx, id)
	if err != nil {
		return BatchDetail{}, err
	}
	return newDetail(b, cons), nil
}

func (s *Service) ListBatches(ctx context.Context, filters shared.ListFilters, productID int64) ([]Batch, shared.Pagination, error) {
	rows, err := s.repo.ListBatches(ctx, BatchQuery{ProductID: productID, Search: strings.TrimSpace(filters.Search)})
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	if rows == nil {
		rows = []Batch{}
	}
	page, meta := shared.Paginate(rows, filters)
	return page, meta, nil
}

// CreateBatch registers a batch together with every consumption it implies.
// Either all of it commits or nothing does. A non-empty idempotency key makes
// a repeated request fail with a duplicate error instead of consuming twice.
func (s *Service) CreateBatch(ctx context.Context, in CreateBatchInput, idempotencyKey string) (BatchDetail, error) {
	if err := s.validate.Struct(in); err != nil {
		return BatchDetail{}, err
	}
	if in.Mode == "" {
		in.Mode = ModeManual
	}
	date, err := shared.ParseDate(in.ProductionDate)
	if err != nil {
		return BatchDetail{}, err
	}
	batch := Batch{
		ProductID:      in.ProductID,
		BatchCode:      strings.TrimSpace(in.BatchCode),
		SizeKg:         in.SizeKg,
		ProductionDate: s.today(),
	}
	if date != nil {
		batch.ProductionDate = *date
	}
	if batch.BatchCode == "" {
		batch.BatchCode = generateBatchCode(batch.ProductionDate)
	}

	lines, requirements, err := s.planLines(ctx, in)
	if err != nil {
		return BatchDetail{}, err
	}

	key := strings.TrimSpace(idempotencyKey)
	insertedKey := false
	if key != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
			return BatchDetail{}, err
		}
		insertedKey = true
	}

	var detail BatchDetail
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ok, err := tx.ProductExists(ctx, batch.ProductID)
		if err != nil {
			return err
		}
		if !ok {
			return shared.Invalidf("product %d does not exist", batch.ProductID)
		}
		if in.Mode == ModeFEFO {
			if lines, err = s.allocateLocked(ctx, tx, requirements); err != nil {
				return err
			}
		}
		created, err := tx.InsertBatch(ctx, batch)
		if err != nil {
			return err
		}
		if err := lockStock(ctx, tx, lineLots(lines)); err != nil {
			return err
		}
		cons := make([]Consumption, 0, len(lines))
		for _, l := range lines {
			c, err := consume(ctx, tx, created.ID, l)
			if err != nil {
				return err
			}
			cons = append(cons, c)
		}
		detail = newDetail(created, cons)
		return nil
	})
	if err != nil {
		if insertedKey {
			if delErr := s.idempotency.Delete(ctx, key, idempotencyModule); delErr != nil {
				s.logger.Warn("production: release idempotency key", slog.String("key", key), slog.Any("error", delErr))
			}
		}
		return BatchDetail{}, err
	}
	s.afterStockMove(ctx, shared.AuditLog{
		Action:   "batch:create",
		Entity:   "production_batch",
		EntityID: strconv.FormatInt(detail.ID, 10),
		Meta: map[string]any{
			"batch_code":   detail.BatchCode,
			"mode":         string(in.Mode),
			"consumptions": len(detail.Consumptions),
			"total_mg":     detail.TotalMg,
		},
	}, materials.MovementLotConsume, len(detail.Consumptions))
	return detail, nil
}

// materialNeed is the scaled quantity of one material a FEFO batch draws.
type materialNeed struct {
	MaterialID int64
	Mg         float64
}

// planLines resolves the consumption lines that do not depend on locked
// state. FEFO lines are allocated inside the transaction.
func (s *Service) planLines(ctx context.Context, in CreateBatchInput) ([]line, []materialNeed, error) {
	switch in.Mode {
	case ModeManual:
		lines := make([]line, 0, len(in.Consumptions))
		for _, c := range in.Consumptions {
			if c.QuantityMg <= 0 {
				return nil, nil, fmt.Errorf("lot %d: %w", c.LotID, materials.ErrInvalidQuantity)
			}
			lines = append(lines, line{LotID: c.LotID, Mg: c.QuantityMg})
		}
		return lines, nil, nil
	case ModeFromFormula, ModeFEFO:
		if s.recipes == nil {
			return nil, nil, shared.Invalidf("mode %s requires formulas", in.Mode)
		}
		recipe, err := s.recipes.Recipe(ctx, in.ProductID)
		if err != nil {
			return nil, nil, err
		}
		reqs, err := recipe.Scale(in.SizeKg)
		if err != nil {
			return nil, nil, err
		}
		if len(reqs) == 0 {
			return nil, nil, shared.Invalidf("formula %d has no ingredients", recipe.ID)
		}
		if in.Mode == ModeFromFormula {
			lines := make([]line, 0, len(reqs))
			for _, r := range reqs {
				lines = append(lines, line{LotID: r.LotID, Mg: r.QuantityMg})
			}
			return lines, nil, nil
		}
		byMaterial := map[int64]float64{}
		for _, r := range reqs {
			byMaterial[r.MaterialID] += r.QuantityMg
		}
		needs := make([]materialNeed, 0, len(byMaterial))
		for id, mg := range byMaterial {
			needs = append(needs, materialNeed{MaterialID: id, Mg: mg})
		}
		sort.Slice(needs, func(i, j int) bool { return needs[i].MaterialID < needs[j].MaterialID })
		return nil, needs, nil
	}
	return nil, nil, shared.Invalidf("unknown mode %q", in.Mode)
}

func (s *Service) allocateLocked(ctx context.Context, tx TxRepository, needs []materialNeed) ([]line, error) {
	today := s.today()
	var lines []line
	for _, need := range needs {
		lots, err := tx.ListLotsForUpdate(ctx, need.MaterialID)
		if err != nil {
			return nil, err
		}
		plan, err := materials.PlanFEFO(lots, need.Mg, today)
		if err != nil {
			return nil, fmt.Errorf("material %d: %w", need.MaterialID, err)
		}
		for _, a := range plan {
			lines = append(lines, line{LotID: a.LotID, Mg: a.QuantityMg})
		}
	}
	return lines, nil
}

// RegisterConsumption draws mg from a single lot for an existing batch. There
// is no fallback to other lots when the lot falls short.
func (s *Service) RegisterConsumption(ctx context.Context, batchID int64, in ConsumptionInput) (Consumption, error) {
	if err := s.validate.Struct(in); err != nil {
		return Consumption{}, err
	}
	var created Consumption
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetBatchForUpdate(ctx, batchID); err != nil {
			return err
		}
		var err error
		created, err = consume(ctx, tx, batchID, line{LotID: in.LotID, Mg: in.QuantityMg})
		return err
	})
	if err != nil {
		return Consumption{}, err
	}
	s.afterStockMove(ctx, shared.AuditLog{
		Action:   "batch:consume",
		Entity:   "production_batch",
		EntityID: strconv.FormatInt(batchID, 10),
		Meta:     map[string]any{"lot_id": in.LotID, "consumed_mg": in.QuantityMg},
	}, materials.MovementLotConsume, 1)
	return created, nil
}

// UpdateBatch edits code, size and date. Recorded consumptions are not rescaled.
func (s *Service) UpdateBatch(ctx context.Context, id int64, in UpdateBatchInput) (Batch, error) {
	if err := s.validate.Struct(in); err != nil {
		return Batch{}, err
	}
	date, err := shared.ParseDate(in.ProductionDate)
	if err != nil {
		return Batch{}, err
	}
	var updated Batch
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		b, err := tx.GetBatchForUpdate(ctx, id)
		if err != nil {
			return err
		}
		b.BatchCode = strings.TrimSpace(in.BatchCode)
		b.SizeKg = in.SizeKg
		b.ProductionDate = *date
		updated, err = tx.UpdateBatch(ctx, b)
		return err
	})
	if err != nil {
		return Batch{}, err
	}
	s.record(ctx, shared.AuditLog{Action: "batch:update", Entity: "production_batch", EntityID: strconv.FormatInt(id, 10)})
	return updated, nil
}

// DeleteBatch gives every consumed quantity back to its lot and material,
// then removes the batch and its consumption records.
func (s *Service) DeleteBatch(ctx context.Context, id int64) error {
	var restored []Consumption
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetBatchForUpdate(ctx, id); err != nil {
			return err
		}
		cons, err := tx.ListConsumptions(ctx, id)
		if err != nil {
			return err
		}
		sort.SliceStable(cons, func(i, j int) bool { return cons[i].LotID < cons[j].LotID })
		lotIDs := make([]int64, len(cons))
		for i, c := range cons {
			lotIDs[i] = c.LotID
		}
		if err := lockStock(ctx, tx, lotIDs); err != nil {
			return err
		}
		for _, c := range cons {
			if _, _, err := materials.RestoreToLot(ctx, tx, c.LotID, c.ConsumedMg); err != nil {
				return fmt.Errorf("restore lot %d: %w", c.LotID, err)
			}
		}
		restored = cons
		return tx.DeleteBatch(ctx, id)
	})
	if err != nil {
		return err
	}
	var total float64
	for _, c := range restored {
		total += c.ConsumedMg
	}
	s.afterStockMove(ctx, shared.AuditLog{
		Action:   "batch:delete",
		Entity:   "production_batch",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     map[string]any{"restored_consumptions": len(restored), "restored_mg": total},
	}, materials.MovementLotRestore, len(restored))
	return nil
}

// AllocateAcrossLots previews the FEFO plan for drawing mg of a material
// without changing any stock.
func (s *Service) AllocateAcrossLots(ctx context.Context, materialID int64, mg float64) ([]materials.Allocation, error) {
	if materialID <= 0 {
		return nil, shared.Invalidf("material_id is required")
	}
	lots, err := s.repo.LotsForMaterial(ctx, materialID)
	if err != nil {
		return nil, err
	}
	return materials.PlanFEFO(lots, mg, s.today())
}

// lockStock locks the lots, then their materials, each in ascending id order.
func lockStock(ctx context.Context, tx TxRepository, lotIDs []int64) error {
	ids := make([]int64, 0, len(lotIDs))
	seen := map[int64]bool{}
	for _, id := range lotIDs {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	materialIDs := make([]int64, 0, len(ids))
	locked := map[int64]bool{}
	for _, id := range ids {
		lot, err := tx.GetLotForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !locked[lot.MaterialID] {
			locked[lot.MaterialID] = true
			materialIDs = append(materialIDs, lot.MaterialID)
		}
	}
	sort.Slice(materialIDs, func(i, j int) bool { return materialIDs[i] < materialIDs[j] })
	for _, id := range materialIDs {
		if _, err := tx.GetMaterialForUpdate(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func lineLots(lines []line) []int64 {
	ids := make([]int64, len(lines))
	for i, l := range lines {
		ids[i] = l.LotID
	}
	return ids
}

func consume(ctx context.Context, tx TxRepository, batchID int64, l line) (Consumption, error) {
	lot, material, err := materials.ConsumeFromLot(ctx, tx, l.LotID, l.Mg)
	if err != nil {
		return Consumption{}, err
	}
	c, err := tx.InsertConsumption(ctx, Consumption{BatchID: batchID, LotID: l.LotID, ConsumedMg: l.Mg})
	if err != nil {
		return Consumption{}, err
	}
	c.LotNumber = lot.LotNumber
	c.MaterialID = material.ID
	c.MaterialName = material.Name
	return c, nil
}

func generateBatchCode(date time.Time) string {
	return "LP-" + date.Format("20060102") + "-" + strings.ToUpper(uuid.NewString()[:8])
}

func (s *Service) afterStockMove(ctx context.Context, entry shared.AuditLog, movement string, n int) {
	if s.cache != nil && n > 0 {
		if err := s.cache.Bump(ctx); err != nil {
			s.logger.Warn("production: bump stock cache", slog.Any("error", err))
		}
	}
	if s.metrics != nil {
		for i := 0; i < n; i++ {
			s.metrics.RecordStockMovement(movement)
		}
	}
	s.record(ctx, entry)
}

func (s *Service) record(ctx context.Context, entry shared.AuditLog) {
	if s.audit == nil {
		return
	}
	entry.Actor = shared.ActorFromContext(ctx)
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("production: audit record",
			slog.String("action", entry.Action),
			slog.String("entity_id", entry.EntityID),
			slog.Any("error", err))
	}
}
