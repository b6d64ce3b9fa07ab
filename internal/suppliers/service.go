package suppliers

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/capsula-erp/capsula/internal/materials"
	"github.com/capsula-erp/capsula/internal/shared"
)

// StockLister answers which materials and lots reference a supplier.
type StockLister interface {
	ListMaterials(ctx context.Context, f materials.MaterialFilter) ([]materials.MaterialView, shared.Pagination, error)
	ListLots(ctx context.Context, f materials.LotFilter) ([]materials.LotView, shared.Pagination, error)
}

// AuditPort records supplier changes.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages the supplier registry.
type Service struct {
	repo     Repository
	stock    StockLister
	audit    AuditPort
	logger   *slog.Logger
	validate *shared.Validator
}

// NewService wires the supplier service. stock and audit may be nil.
func NewService(repo Repository, stock StockLister, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, stock: stock, audit: audit, logger: logger, validate: shared.NewValidator()}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Supplier, shared.Pagination, error) {
	filters = filters.Normalize()
	items, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	if items == nil {
		items = []Supplier{}
	}
	return items, shared.NewPagination(filters.Page, filters.PerPage, total), nil
}

func (s *Service) Get(ctx context.Context, id int64) (Supplier, error) {
	if id <= 0 {
		return Supplier{}, shared.Invalidf("invalid supplier id %d", id)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, in Input) (Supplier, error) {
	if err := s.validate.Struct(in); err != nil {
		return Supplier{}, err
	}
	sup := normalize(in)
	if sup.TaxID == "" {
		return Supplier{}, shared.Invalidf("tax id %q has no digits", in.TaxID)
	}
	created, err := s.repo.Create(ctx, sup)
	if err != nil {
		return Supplier{}, err
	}
	s.record(ctx, "supplier:create", created.ID, map[string]any{"tax_id": created.TaxID})
	return created, nil
}

func (s *Service) Update(ctx context.Context, id int64, in Input) (Supplier, error) {
	if id <= 0 {
		return Supplier{}, shared.Invalidf("invalid supplier id %d", id)
	}
	if err := s.validate.Struct(in); err != nil {
		return Supplier{}, err
	}
	sup := normalize(in)
	if sup.TaxID == "" {
		return Supplier{}, shared.Invalidf("tax id %q has no digits", in.TaxID)
	}
	updated, err := s.repo.Update(ctx, id, sup)
	if err != nil {
		return Supplier{}, err
	}
	s.record(ctx, "supplier:update", id, nil)
	return updated, nil
}

// Delete removes a supplier nothing references. The foreign keys still
// reject a reference created concurrently.
func (s *Service) Delete(ctx context.Context, id int64) error {
	sup, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	refs, err := s.repo.References(ctx, id)
	if err != nil {
		return err
	}
	if refs.Any() {
		return shared.Protectedf("supplier %q is referenced by %d raw material(s) and %d lot(s)",
			sup.LegalName, refs.Materials, refs.Lots)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, "supplier:delete", id, nil)
	return nil
}

// LotsFor lists the lots supplied by the supplier.
func (s *Service) LotsFor(ctx context.Context, id int64, filters shared.ListFilters) ([]materials.LotView, shared.Pagination, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, shared.Pagination{}, err
	}
	if s.stock == nil {
		return []materials.LotView{}, shared.NewPagination(1, 0, 0), nil
	}
	return s.stock.ListLots(ctx, materials.LotFilter{ListFilters: filters, SupplierID: id})
}

// MaterialsFor lists the raw materials registered under the supplier.
func (s *Service) MaterialsFor(ctx context.Context, id int64, filters shared.ListFilters) ([]materials.MaterialView, shared.Pagination, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, shared.Pagination{}, err
	}
	if s.stock == nil {
		return []materials.MaterialView{}, shared.NewPagination(1, 0, 0), nil
	}
	return s.stock.ListMaterials(ctx, materials.MaterialFilter{ListFilters: filters, SupplierID: id})
}

func (s *Service) record(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	entry := shared.AuditLog{
		Actor:    shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "supplier",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("suppliers: audit record", slog.String("action", action), slog.Any("error", err))
	}
}
