package products

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/capsula-erp/capsula/internal/formulas"
	"github.com/capsula-erp/capsula/internal/shared"
)

type memoryRepo struct {
	rows     map[int64]Product
	formulas map[int64]bool
	batches  map[int64]int
	nextID   int64
}

func newMemoryRepo(formulaIDs ...int64) *memoryRepo {
	r := &memoryRepo{rows: map[int64]Product{}, formulas: map[int64]bool{}, batches: map[int64]int{}}
	for _, id := range formulaIDs {
		r.formulas[id] = true
	}
	return r
}

func (m *memoryRepo) List(_ context.Context, search string, formulaID int64) ([]Product, error) {
	var out []Product
	for id := int64(1); id <= m.nextID; id++ {
		p, ok := m.rows[id]
		if !ok || (formulaID > 0 && p.FormulaID != formulaID) || !shared.MatchesSearch(search, p.Name) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Product, error) {
	p, ok := m.rows[id]
	if !ok {
		return Product{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return p, nil
}

func (m *memoryRepo) Create(_ context.Context, p Product) (Product, error) {
	m.nextID++
	p.ID = m.nextID
	m.rows[p.ID] = p
	return p, nil
}

func (m *memoryRepo) Update(_ context.Context, p Product) (Product, error) {
	if _, ok := m.rows[p.ID]; !ok {
		return Product{}, ErrNotFound
	}
	m.rows[p.ID] = p
	return p, nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) error {
	delete(m.rows, id)
	return nil
}

func (m *memoryRepo) FormulaExists(_ context.Context, id int64) (bool, error) {
	return m.formulas[id], nil
}

func (m *memoryRepo) CountBatches(_ context.Context, id int64) (int, error) {
	return m.batches[id], nil
}

type stubFormulas map[int64]formulas.Detail

func (s stubFormulas) Get(_ context.Context, id int64) (formulas.Detail, error) {
	d, ok := s[id]
	if !ok {
		return formulas.Detail{}, formulas.ErrFormulaNotFound
	}
	return d, nil
}

func form() ProductForm {
	return ProductForm{Name: "Ômega 3", Presentation: Pack60, FormulaID: 1}
}

func TestCreateChecksPresentationAndFormula(t *testing.T) {
	svc := NewService(newMemoryRepo(1), nil, nil, nil)
	ctx := context.Background()

	bad := form()
	bad.Presentation = "pack_45"
	_, err := svc.Create(ctx, bad)
	var verr *shared.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "presentation", verr.Fields[0].Field)

	missing := form()
	missing.FormulaID = 9
	_, err = svc.Create(ctx, missing)
	require.ErrorIs(t, err, shared.ErrValidation)

	p, err := svc.Create(ctx, form())
	require.NoError(t, err)
	require.Equal(t, 60, p.Presentation.Units())
}

func TestSharedFormulaAndDelete(t *testing.T) {
	repo := newMemoryRepo(1)
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()
	a, err := svc.Create(ctx, form())
	require.NoError(t, err)
	b, err := svc.Create(ctx, ProductForm{Name: "Ômega 3 Kids", Presentation: Pack30, FormulaID: 1})
	require.NoError(t, err)

	items, page, err := svc.List(ctx, shared.ListFilters{}, 1)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, 2, page.Total)

	repo.batches[a.ID] = 1
	require.ErrorIs(t, svc.Delete(ctx, a.ID), shared.ErrProtected)
	require.NoError(t, svc.Delete(ctx, b.ID))
	require.True(t, repo.formulas[1])
}

func TestRecipe(t *testing.T) {
	recipes := stubFormulas{1: {Formula: formulas.Formula{ID: 1, StandardWeightKg: 10}}}
	svc := NewService(newMemoryRepo(1), recipes, nil, nil)
	p, err := svc.Create(context.Background(), form())
	require.NoError(t, err)

	d, err := svc.Recipe(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, 10.0, d.StandardWeightKg)

	_, err = svc.Recipe(context.Background(), 42)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestHandlerCreate(t *testing.T) {
	svc := NewService(newMemoryRepo(1), nil, nil, nil)
	r := chi.NewRouter()
	r.Route("/api/products", NewHandler(nil, svc).MountRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/products",
		strings.NewReader(`{"name":"Colágeno","presentation":"pack_120","formula_id":1}`)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products/1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"presentation":"pack_120"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products/7", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
