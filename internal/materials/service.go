package materials

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/capsula-erp/capsula/internal/shared"
)

// ServiceConfig groups optional collaborators.
type ServiceConfig struct {
	Audit   AuditPort
	Cache   OverviewCache
	Metrics MovementRecorder
	Logger  *slog.Logger
	Clock   func() time.Time
}

// Service coordinates raw material and lot operations.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	cache    OverviewCache
	metrics  MovementRecorder
	logger   *slog.Logger
	clock    func() time.Time
	validate *shared.Validator
}

// NewService builds Service.
func NewService(repo RepositoryPort, cfg ServiceConfig) *Service {
	s := &Service{
		repo:     repo,
		audit:    cfg.Audit,
		cache:    cfg.Cache,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		clock:    cfg.Clock,
		validate: shared.NewValidator(),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	return s
}

// Today returns the service calendar date used for status derivation.
func (s *Service) Today() time.Time {
	return shared.DateOf(s.clock())
}

// CreateMaterial registers a raw material.
func (s *Service) CreateMaterial(ctx context.Context, in CreateMaterialInput) (MaterialView, error) {
	if err := s.validate.Struct(in); err != nil {
		return MaterialView{}, err
	}
	if in.UnitPrice.IsNegative() {
		return MaterialView{}, shared.Invalidf("unit price must not be negative")
	}
	dates, err := parseDates(in.ManufactureDate, in.ExpiryDate, in.ReceivedAt)
	if err != nil {
		return MaterialView{}, err
	}
	m := Material{
		Code:                  in.Code,
		Name:                  strings.TrimSpace(in.Name),
		Description:           in.Description,
		Category:              in.Category,
		SupplierID:            in.SupplierID,
		AvailableQty:          in.AvailableQty,
		Unit:                  in.Unit,
		UnitPrice:             in.UnitPrice,
		StorageCondition:      in.StorageCondition,
		Location:              in.Location,
		ManufactureDate:       dates.manufacture,
		ExpiryDate:            dates.expiry,
		DaysValidAfterOpening: DefaultDaysValidAfterOpening,
		ReceivedAt:            s.Today(),
	}
	if m.Unit == "" {
		m.Unit = UnitKilogram
	}
	if in.DaysValidAfterOpening != nil {
		m.DaysValidAfterOpening = *in.DaysValidAfterOpening
	}
	if dates.received != nil {
		m.ReceivedAt = *dates.received
	}

	var created Material
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := requireSupplier(ctx, tx, m.SupplierID); err != nil {
			return err
		}
		var err error
		created, err = tx.InsertMaterial(ctx, m)
		return err
	})
	if err != nil {
		return MaterialView{}, err
	}
	s.afterMutation(ctx, shared.AuditLog{
		Action:   "material:create",
		Entity:   "raw_material",
		EntityID: strconv.FormatInt(created.ID, 10),
		Meta:     map[string]any{"code": created.Code, "name": created.Name},
	}, "")
	return NewMaterialView(created, s.Today()), nil
}

// GetMaterial loads one material with derived fields.
func (s *Service) GetMaterial(ctx context.Context, id int64) (MaterialView, error) {
	m, err := s.repo.GetMaterial(ctx, id)
	if err != nil {
		return MaterialView{}, err
	}
	return NewMaterialView(m, s.Today()), nil
}

// ListMaterials lists materials; status filtering happens after derivation.
func (s *Service) ListMaterials(ctx context.Context, f MaterialFilter) ([]MaterialView, shared.Pagination, error) {
	rows, err := s.repo.ListMaterials(ctx, f.query())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	today := s.Today()
	views := make([]MaterialView, 0, len(rows))
	for _, m := range rows {
		v := NewMaterialView(m, today)
		if f.Status != "" && v.Status != f.Status {
			continue
		}
		views = append(views, v)
	}
	page, meta := shared.Paginate(views, f.ListFilters)
	return page, meta, nil
}

// UpdateMaterial edits descriptive fields of a material.
func (s *Service) UpdateMaterial(ctx context.Context, id int64, in UpdateMaterialInput) (MaterialView, error) {
	if err := s.validate.Struct(in); err != nil {
		return MaterialView{}, err
	}
	if in.UnitPrice.IsNegative() {
		return MaterialView{}, shared.Invalidf("unit price must not be negative")
	}
	dates, err := parseDates(in.ManufactureDate, in.ExpiryDate, "")
	if err != nil {
		return MaterialView{}, err
	}
	return s.mutateMaterial(ctx, id, "material:update", "", func(ctx context.Context, tx TxRepository, m *Material) error {
		if in.SupplierID != m.SupplierID {
			if err := requireSupplier(ctx, tx, in.SupplierID); err != nil {
				return err
			}
		}
		m.Code = in.Code
		m.Name = strings.TrimSpace(in.Name)
		m.Description = in.Description
		m.Category = in.Category
		m.SupplierID = in.SupplierID
		m.UnitPrice = in.UnitPrice
		m.StorageCondition = in.StorageCondition
		m.Location = in.Location
		m.ManufactureDate = dates.manufacture
		m.ExpiryDate = dates.expiry
		if in.DaysValidAfterOpening != nil {
			m.DaysValidAfterOpening = *in.DaysValidAfterOpening
		}
		return nil
	})
}

// DeleteMaterial removes a material that has no lots.
func (s *Service) DeleteMaterial(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		m, err := tx.GetMaterialForUpdate(ctx, id)
		if err != nil {
			return err
		}
		n, err := tx.CountLotsForMaterial(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return shared.Protectedf("raw material %q still has %d lot(s)", m.Name, n)
		}
		return tx.DeleteMaterial(ctx, id)
	})
	if err != nil {
		return err
	}
	s.afterMutation(ctx, shared.AuditLog{Action: "material:delete", Entity: "raw_material", EntityID: strconv.FormatInt(id, 10)}, "")
	return nil
}

// OpenMaterialPackage marks the material opened; repeated calls keep the first date.
func (s *Service) OpenMaterialPackage(ctx context.Context, id int64) (MaterialView, error) {
	today := s.Today()
	return s.mutateMaterial(ctx, id, "material:open", "", func(_ context.Context, _ TxRepository, m *Material) error {
		m.OpenPackage(today)
		return nil
	})
}

// AddMaterialStock increments the material aggregate quantity.
func (s *Service) AddMaterialStock(ctx context.Context, id int64, qty float64) (MaterialView, error) {
	return s.mutateMaterial(ctx, id, "material:add_stock", MovementMaterialAdd, func(_ context.Context, _ TxRepository, m *Material) error {
		return m.AddStock(qty)
	})
}

// ConsumeMaterialStock decrements the material aggregate quantity.
func (s *Service) ConsumeMaterialStock(ctx context.Context, id int64, qty float64) (MaterialView, error) {
	return s.mutateMaterial(ctx, id, "material:consume_stock", MovementMaterialConsume, func(_ context.Context, _ TxRepository, m *Material) error {
		return m.ConsumeStock(qty)
	})
}

// QuarantineMaterial places a quarantine hold.
func (s *Service) QuarantineMaterial(ctx context.Context, id int64, in QuarantineInput) (MaterialView, error) {
	if err := s.validate.Struct(in); err != nil {
		return MaterialView{}, err
	}
	return s.mutateMaterial(ctx, id, "material:quarantine", "", func(_ context.Context, _ TxRepository, m *Material) error {
		m.Quarantine(strings.TrimSpace(in.Reason))
		return nil
	})
}

// ReleaseMaterial lifts a quarantine hold.
func (s *Service) ReleaseMaterial(ctx context.Context, id int64) (MaterialView, error) {
	return s.mutateMaterial(ctx, id, "material:release", "", func(_ context.Context, _ TxRepository, m *Material) error {
		if !m.Quarantined {
			return shared.Invalidf("raw material %q is not quarantined", m.Name)
		}
		m.Release()
		return nil
	})
}

func (s *Service) mutateMaterial(ctx context.Context, id int64, action, movement string, fn func(context.Context, TxRepository, *Material) error) (MaterialView, error) {
	var updated Material
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		m, err := tx.GetMaterialForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(ctx, tx, &m); err != nil {
			return err
		}
		if err := tx.UpdateMaterial(ctx, m); err != nil {
			return err
		}
		updated = m
		return nil
	})
	if err != nil {
		return MaterialView{}, err
	}
	s.afterMutation(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "raw_material",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     map[string]any{"available_qty": updated.AvailableQty, "unit": string(updated.Unit)},
	}, movement)
	return NewMaterialView(updated, s.Today()), nil
}

// CreateLot registers a received lot and adds its available quantity to the material.
func (s *Service) CreateLot(ctx context.Context, in CreateLotInput) (LotView, error) {
	if err := s.validate.Struct(in); err != nil {
		return LotView{}, err
	}
	dates, err := parseDates(in.ManufactureDate, in.ExpiryDate, in.ReceivedAt)
	if err != nil {
		return LotView{}, err
	}
	available := in.ReceivedMg
	if in.AvailableMg != nil {
		available = *in.AvailableMg
	}
	if available > in.ReceivedMg {
		return LotView{}, shared.Invalidf("available quantity %s mg exceeds received quantity %s mg", formatQty(available), formatQty(in.ReceivedMg))
	}
	today := s.Today()
	lot := Lot{
		MaterialID:        in.MaterialID,
		SupplierID:        in.SupplierID,
		LotNumber:         strings.TrimSpace(in.LotNumber),
		ManufactureDate:   dates.manufacture,
		ExpiryDate:        dates.expiry,
		InvoiceRef:        in.InvoiceRef,
		ReceivedMg:        in.ReceivedMg,
		AvailableMg:       available,
		ReceivedAt:        today,
		Notes:             in.Notes,
		StorageLocation:   in.StorageLocation,
		StorageConditions: in.StorageConditions,
		TraceabilityCode:  strings.TrimSpace(in.TraceabilityCode),
	}
	if dates.received != nil {
		lot.ReceivedAt = *dates.received
	}
	if in.QualityApproved {
		lot.Approve(shared.ActorFromContext(ctx), today)
	}
	if lot.TraceabilityCode == "" {
		lot.TraceabilityCode = "TR-" + strings.ToUpper(uuid.NewString()[:13])
	}

	var created Lot
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		m, err := tx.GetMaterialForUpdate(ctx, lot.MaterialID)
		if err != nil {
			return err
		}
		if lot.SupplierID == nil {
			supplierID := m.SupplierID
			lot.SupplierID = &supplierID
		} else if err := requireSupplier(ctx, tx, *lot.SupplierID); err != nil {
			return err
		}
		lot.DaysValidAfterOpening = m.DaysValidAfterOpening
		created, err = tx.InsertLot(ctx, lot)
		if err != nil {
			return err
		}
		created.DaysValidAfterOpening = m.DaysValidAfterOpening
		if available > 0 {
			if err := m.AddStock(m.Unit.FromMg(available)); err != nil {
				return err
			}
			return tx.UpdateMaterial(ctx, m)
		}
		return nil
	})
	if err != nil {
		return LotView{}, err
	}
	s.afterMutation(ctx, shared.AuditLog{
		Action:   "lot:create",
		Entity:   "raw_material_lot",
		EntityID: strconv.FormatInt(created.ID, 10),
		Meta:     map[string]any{"material_id": created.MaterialID, "lot_number": created.LotNumber, "available_mg": created.AvailableMg},
	}, MovementLotAdd)
	return NewLotView(created, today), nil
}

// GetLot loads one lot with derived fields.
func (s *Service) GetLot(ctx context.Context, id int64) (LotView, error) {
	l, err := s.repo.GetLot(ctx, id)
	if err != nil {
		return LotView{}, err
	}
	return NewLotView(l, s.Today()), nil
}

// ListLots lists lots; status and expiry-window filters apply after derivation.
func (s *Service) ListLots(ctx context.Context, f LotFilter) ([]LotView, shared.Pagination, error) {
	rows, err := s.repo.ListLots(ctx, f.query())
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	today := s.Today()
	views := make([]LotView, 0, len(rows))
	for _, l := range rows {
		v := NewLotView(l, today)
		if f.Status != "" && v.Status != f.Status {
			continue
		}
		if f.ExpiringWithin != nil && (v.DaysUntilExpiry == nil || *v.DaysUntilExpiry > *f.ExpiringWithin) {
			continue
		}
		views = append(views, v)
	}
	page, meta := shared.Paginate(views, f.ListFilters)
	return page, meta, nil
}

// UpdateLot edits lot metadata.
func (s *Service) UpdateLot(ctx context.Context, id int64, in UpdateLotInput) (LotView, error) {
	if err := s.validate.Struct(in); err != nil {
		return LotView{}, err
	}
	dates, err := parseDates(in.ManufactureDate, in.ExpiryDate, "")
	if err != nil {
		return LotView{}, err
	}
	return s.mutateLot(ctx, id, "lot:update", func(ctx context.Context, tx TxRepository, l *Lot) error {
		if in.SupplierID != nil {
			if err := requireSupplier(ctx, tx, *in.SupplierID); err != nil {
				return err
			}
			l.SupplierID = in.SupplierID
		}
		l.LotNumber = strings.TrimSpace(in.LotNumber)
		l.ManufactureDate = dates.manufacture
		l.ExpiryDate = dates.expiry
		l.InvoiceRef = in.InvoiceRef
		l.Notes = in.Notes
		l.StorageLocation = in.StorageLocation
		l.StorageConditions = in.StorageConditions
		if code := strings.TrimSpace(in.TraceabilityCode); code != "" {
			l.TraceabilityCode = code
		}
		return nil
	})
}

// DeleteLot removes a lot together with its ingredient and consumption rows,
// withdrawing its remaining quantity from the material.
func (s *Service) DeleteLot(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lot, err := tx.GetLotForUpdate(ctx, id)
		if err != nil {
			return err
		}
		m, err := tx.GetMaterialForUpdate(ctx, lot.MaterialID)
		if err != nil {
			return err
		}
		if lot.AvailableMg > 0 {
			withdraw := m.Unit.FromMg(lot.AvailableMg)
			if withdraw > m.AvailableQty {
				withdraw = m.AvailableQty
			}
			if withdraw > 0 {
				if err := m.ConsumeStock(withdraw); err != nil {
					return err
				}
				if err := tx.UpdateMaterial(ctx, m); err != nil {
					return err
				}
			}
		}
		return tx.DeleteLot(ctx, id)
	})
	if err != nil {
		return err
	}
	s.afterMutation(ctx, shared.AuditLog{Action: "lot:delete", Entity: "raw_material_lot", EntityID: strconv.FormatInt(id, 10)}, "")
	return nil
}

// OpenLotPackage marks the lot opened; idempotent.
func (s *Service) OpenLotPackage(ctx context.Context, id int64) (LotView, error) {
	today := s.Today()
	return s.mutateLot(ctx, id, "lot:open", func(_ context.Context, _ TxRepository, l *Lot) error {
		l.OpenPackage(today)
		return nil
	})
}

// ApproveLot records the QC release by the acting user.
func (s *Service) ApproveLot(ctx context.Context, id int64) (LotView, error) {
	today := s.Today()
	actor := shared.ActorFromContext(ctx)
	return s.mutateLot(ctx, id, "lot:approve", func(_ context.Context, _ TxRepository, l *Lot) error {
		l.Approve(actor, today)
		return nil
	})
}

// AddToLot receives more milligrams into a lot and its material.
func (s *Service) AddToLot(ctx context.Context, id int64, mg float64) (LotView, error) {
	return s.moveLot(ctx, id, mg, "lot:add", MovementLotAdd, AddToLot)
}

// ConsumeFromLot withdraws milligrams from a lot and its material.
func (s *Service) ConsumeFromLot(ctx context.Context, id int64, mg float64) (LotView, error) {
	return s.moveLot(ctx, id, mg, "lot:consume", MovementLotConsume, ConsumeFromLot)
}

type lotMovement func(context.Context, StockTx, int64, float64) (Lot, Material, error)

func (s *Service) moveLot(ctx context.Context, id int64, mg float64, action, movement string, move lotMovement) (LotView, error) {
	var lot Lot
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		lot, _, err = move(ctx, tx, id, mg)
		return err
	})
	if err != nil {
		return LotView{}, err
	}
	s.afterMutation(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "raw_material_lot",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     map[string]any{"quantity_mg": mg, "available_mg": lot.AvailableMg},
	}, movement)
	return NewLotView(lot, s.Today()), nil
}

func (s *Service) mutateLot(ctx context.Context, id int64, action string, fn func(context.Context, TxRepository, *Lot) error) (LotView, error) {
	var updated Lot
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		l, err := tx.GetLotForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(ctx, tx, &l); err != nil {
			return err
		}
		if err := tx.UpdateLot(ctx, l); err != nil {
			return err
		}
		updated = l
		return nil
	})
	if err != nil {
		return LotView{}, err
	}
	s.afterMutation(ctx, shared.AuditLog{Action: action, Entity: "raw_material_lot", EntityID: strconv.FormatInt(id, 10)}, "")
	return NewLotView(updated, s.Today()), nil
}

// ExpiringLots returns lots with stock whose effective expiry falls within
// the given number of days, already expired lots included.
func (s *Service) ExpiringLots(ctx context.Context, withinDays int) ([]ExpiringLot, error) {
	lots, err := s.repo.ListLots(ctx, LotQuery{})
	if err != nil {
		return nil, err
	}
	names := map[int64]string{}
	materials, err := s.repo.ListMaterials(ctx, MaterialQuery{})
	if err != nil {
		return nil, err
	}
	for _, m := range materials {
		names[m.ID] = m.Name
	}
	today := s.Today()
	var out []ExpiringLot
	for _, l := range lots {
		if l.AvailableMg <= quantityEpsilon {
			continue
		}
		v := NewLotView(l, today)
		if v.DaysUntilExpiry == nil || *v.DaysUntilExpiry > withinDays {
			continue
		}
		out = append(out, ExpiringLot{LotView: v, MaterialName: names[l.MaterialID]})
	}
	return out, nil
}

// Overview summarises stock by status.
type Overview struct {
	AsOf              time.Time       `json:"as_of"`
	MaterialCount     int             `json:"material_count"`
	LotCount          int             `json:"lot_count"`
	MaterialsByStatus map[Status]int  `json:"materials_by_status"`
	LotsByStatus      map[Status]int  `json:"lots_by_status"`
	TotalStockValue   decimal.Decimal `json:"total_stock_value"`
}

// Overview returns the stock overview, served from cache until the next mutation.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	today := s.Today()
	if s.cache == nil {
		return s.buildOverview(ctx, today)
	}
	var loaderErr error
	loader := func(ctx context.Context) (any, error) {
		out, err := s.buildOverview(ctx, today)
		loaderErr = err
		return out, err
	}
	key, err := s.cache.BuildKey(ctx, "overview", today.Format(shared.DateLayout))
	if err == nil {
		var out Overview
		if err = s.cache.FetchJSON(ctx, key, &out, loader); err == nil {
			return out, nil
		}
		if loaderErr != nil {
			return Overview{}, loaderErr
		}
	}
	// Redis trouble only costs the cached copy.
	s.logger.Warn("overview cache unavailable", slog.Any("error", err))
	return s.buildOverview(ctx, today)
}

// RefreshOverview invalidates the cached overview and rebuilds it.
func (s *Service) RefreshOverview(ctx context.Context) (Overview, error) {
	if s.cache != nil {
		if err := s.cache.Bump(ctx); err != nil {
			return Overview{}, err
		}
	}
	return s.Overview(ctx)
}

func (s *Service) buildOverview(ctx context.Context, today time.Time) (Overview, error) {
	materials, err := s.repo.ListMaterials(ctx, MaterialQuery{})
	if err != nil {
		return Overview{}, err
	}
	lots, err := s.repo.ListLots(ctx, LotQuery{})
	if err != nil {
		return Overview{}, err
	}
	out := Overview{
		AsOf:              today,
		MaterialCount:     len(materials),
		LotCount:          len(lots),
		MaterialsByStatus: map[Status]int{},
		LotsByStatus:      map[Status]int{},
		TotalStockValue:   decimal.Zero,
	}
	for _, m := range materials {
		out.MaterialsByStatus[m.Status(today)]++
		out.TotalStockValue = out.TotalStockValue.Add(m.StockValue())
	}
	for _, l := range lots {
		out.LotsByStatus[l.Status(today)]++
	}
	return out, nil
}

// afterMutation runs the post-commit side effects. Their failures are logged
// and never undo the committed change.
func (s *Service) afterMutation(ctx context.Context, entry shared.AuditLog, movement string) {
	if entry.Actor == "" {
		entry.Actor = shared.ActorFromContext(ctx)
	}
	if s.cache != nil {
		if err := s.cache.Bump(ctx); err != nil {
			s.logger.Warn("materials: bump overview cache", slog.Any("error", err))
		}
	}
	if movement != "" && s.metrics != nil {
		s.metrics.RecordStockMovement(movement)
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, entry); err != nil {
			s.logger.Warn("materials: audit record",
				slog.String("action", entry.Action),
				slog.String("entity_id", entry.EntityID),
				slog.Any("error", err))
		}
	}
}

func requireSupplier(ctx context.Context, tx TxRepository, id int64) error {
	ok, err := tx.SupplierExists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return shared.Invalidf("supplier %d does not exist", id)
	}
	return nil
}
