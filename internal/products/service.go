package products

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/capsula-erp/capsula/internal/formulas"
	"github.com/capsula-erp/capsula/internal/shared"
)

// FormulaReader loads a formula with its ingredients.
type FormulaReader interface {
	Get(ctx context.Context, id int64) (formulas.Detail, error)
}

// AuditPort records product changes.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages products.
type Service struct {
	repo     Repository
	formulas FormulaReader
	audit    AuditPort
	logger   *slog.Logger
	validate *shared.Validator
}

// NewService builds the product service. formulas and audit may be nil.
func NewService(repo Repository, formulas FormulaReader, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, formulas: formulas, audit: audit, logger: logger, validate: shared.NewValidator()}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters, formulaID int64) ([]Product, shared.Pagination, error) {
	rows, err := s.repo.List(ctx, strings.TrimSpace(filters.Search), formulaID)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	if rows == nil {
		rows = []Product{}
	}
	page, meta := shared.Paginate(rows, filters)
	return page, meta, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, form ProductForm) (Product, error) {
	p, err := s.prepare(ctx, form)
	if err != nil {
		return Product{}, err
	}
	created, err := s.repo.Create(ctx, p)
	if err != nil {
		return Product{}, err
	}
	s.record(ctx, "product:create", created.ID, map[string]any{"formula_id": created.FormulaID})
	return created, nil
}

func (s *Service) Update(ctx context.Context, id int64, form ProductForm) (Product, error) {
	p, err := s.prepare(ctx, form)
	if err != nil {
		return Product{}, err
	}
	p.ID = id
	updated, err := s.repo.Update(ctx, p)
	if err != nil {
		return Product{}, err
	}
	s.record(ctx, "product:update", id, nil)
	return updated, nil
}

// Delete removes a product without batches. Its formula is left untouched.
func (s *Service) Delete(ctx context.Context, id int64) error {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	n, err := s.repo.CountBatches(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return shared.Protectedf("product %q has %d production batch(es)", p.Name, n)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, "product:delete", id, nil)
	return nil
}

// Recipe returns the formula, with ingredients, that a product is made from.
func (s *Service) Recipe(ctx context.Context, productID int64) (formulas.Detail, error) {
	p, err := s.repo.Get(ctx, productID)
	if err != nil {
		return formulas.Detail{}, err
	}
	if s.formulas == nil {
		return formulas.Detail{}, shared.Invalidf("product %d: formulas unavailable", productID)
	}
	return s.formulas.Get(ctx, p.FormulaID)
}

func (s *Service) prepare(ctx context.Context, form ProductForm) (Product, error) {
	if err := s.validate.Struct(form); err != nil {
		return Product{}, err
	}
	ok, err := s.repo.FormulaExists(ctx, form.FormulaID)
	if err != nil {
		return Product{}, err
	}
	if !ok {
		return Product{}, shared.Invalidf("formula %d does not exist", form.FormulaID)
	}
	return Product{
		Name:         strings.TrimSpace(form.Name),
		Description:  strings.TrimSpace(form.Description),
		Presentation: form.Presentation,
		FormulaID:    form.FormulaID,
	}, nil
}

func (s *Service) record(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		Actor:    shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "product",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("products: audit record", slog.String("action", action), slog.Any("error", err))
	}
}
