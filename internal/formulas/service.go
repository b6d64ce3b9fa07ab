package formulas

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/capsula-erp/capsula/internal/shared"
)

// Service manages formulas and their ingredients.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	logger   *slog.Logger
	validate *shared.Validator
}

// NewService builds Service. audit may be nil.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, validate: shared.NewValidator()}
}

func (s *Service) Create(ctx context.Context, in Input) (Formula, error) {
	if err := s.validate.Struct(in); err != nil {
		return Formula{}, err
	}
	var created Formula
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		created, err = tx.Insert(ctx, fromInput(in))
		return err
	})
	if err != nil {
		return Formula{}, err
	}
	s.record(ctx, "formula:create", created.ID, map[string]any{"form": string(created.PharmaceuticalForm)})
	return created, nil
}

// Get loads a formula with its ingredients.
func (s *Service) Get(ctx context.Context, id int64) (Detail, error) {
	f, err := s.repo.Get(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	ings, err := s.repo.Ingredients(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	if ings == nil {
		ings = []Ingredient{}
	}
	return Detail{Formula: f, Ingredients: ings}, nil
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Formula, shared.Pagination, error) {
	rows, err := s.repo.List(ctx, strings.TrimSpace(filters.Search))
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	if rows == nil {
		rows = []Formula{}
	}
	page, meta := shared.Paginate(rows, filters)
	return page, meta, nil
}

func (s *Service) Update(ctx context.Context, id int64, in Input) (Formula, error) {
	if err := s.validate.Struct(in); err != nil {
		return Formula{}, err
	}
	var updated Formula
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetForUpdate(ctx, id); err != nil {
			return err
		}
		f := fromInput(in)
		f.ID = id
		var err error
		updated, err = tx.Update(ctx, f)
		return err
	})
	if err != nil {
		return Formula{}, err
	}
	s.record(ctx, "formula:update", id, nil)
	return updated, nil
}

// Delete removes a formula no product uses; its ingredients go with it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetForUpdate(ctx, id); err != nil {
			return err
		}
		n, err := tx.CountProducts(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return shared.Protectedf("formula %d is used by %d product(s)", id, n)
		}
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, "formula:delete", id, nil)
	return nil
}

// AddIngredient appends a lot quantity to the formula.
func (s *Service) AddIngredient(ctx context.Context, formulaID int64, in IngredientInput) (Ingredient, error) {
	if err := s.validate.Struct(in); err != nil {
		return Ingredient{}, err
	}
	ing, err := NewIngredient(formulaID, in.LotID, in.QuantityMg)
	if err != nil {
		return Ingredient{}, err
	}
	var created Ingredient
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetForUpdate(ctx, formulaID); err != nil {
			return err
		}
		ok, err := tx.LotExists(ctx, in.LotID)
		if err != nil {
			return err
		}
		if !ok {
			return shared.Invalidf("raw material lot %d does not exist", in.LotID)
		}
		created, err = tx.InsertIngredient(ctx, ing)
		return err
	})
	if err != nil {
		return Ingredient{}, err
	}
	s.record(ctx, "formula:add_ingredient", formulaID, map[string]any{"lot_id": in.LotID, "quantity_mg": in.QuantityMg})
	return created, nil
}

func (s *Service) RemoveIngredient(ctx context.Context, formulaID, ingredientID int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetForUpdate(ctx, formulaID); err != nil {
			return err
		}
		return tx.DeleteIngredient(ctx, formulaID, ingredientID)
	})
	if err != nil {
		return err
	}
	s.record(ctx, "formula:remove_ingredient", formulaID, map[string]any{"ingredient_id": ingredientID})
	return nil
}

// AverageShare returns the diagnostic mean-times-100 figure of a formula.
func (s *Service) AverageShare(ctx context.Context, id int64) (float64, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	return AverageShare(d.Ingredients), nil
}

// Scale returns the per-ingredient requirement for a batch of sizeKg.
func (s *Service) Scale(ctx context.Context, id int64, sizeKg float64) ([]Requirement, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return d.Scale(sizeKg)
}

func (s *Service) record(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		Actor:    shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "formula",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("formulas: audit record", slog.String("action", action), slog.Any("error", err))
	}
}

func fromInput(in Input) Formula {
	return Formula{
		Name:               strings.TrimSpace(in.Name),
		PharmaceuticalForm: in.PharmaceuticalForm,
		StandardUnits:      in.StandardUnits,
		StandardWeightKg:   in.StandardWeightKg,
	}
}
