package formulas

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/capsula-erp/capsula/internal/shared"
)

func softGel() Input {
	return Input{Name: "Ômega 3 1000mg", PharmaceuticalForm: FormSoftGelCapsule, StandardUnits: 1000, StandardWeightKg: 10}
}

func TestAverageShare(t *testing.T) {
	require.Zero(t, AverageShare(nil))
	ings := []Ingredient{{QuantityMg: 100}, {QuantityMg: 300}}
	require.InDelta(t, 20000, AverageShare(ings), 1e-9)
}

func TestScale(t *testing.T) {
	d := Detail{
		Formula:     Formula{ID: 1, StandardWeightKg: 10},
		Ingredients: []Ingredient{{ID: 1, LotID: 5, QuantityMg: 5000}, {ID: 2, LotID: 6, QuantityMg: 3000}},
	}
	reqs, err := d.Scale(5)
	require.NoError(t, err)
	require.Equal(t, 2500.0, reqs[0].QuantityMg)
	require.Equal(t, 1500.0, reqs[1].QuantityMg)
	require.Equal(t, int64(6), reqs[1].LotID)

	_, err = d.Scale(0)
	require.ErrorIs(t, err, shared.ErrValidation)

	d.StandardWeightKg = 0
	_, err = d.Scale(5)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestPharmaceuticalFormValid(t *testing.T) {
	require.True(t, FormLiquid.Valid())
	require.False(t, PharmaceuticalForm("powder").Valid())
}

func TestCreateValidatesForm(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	in := softGel()
	in.PharmaceuticalForm = "powder"
	_, err := svc.Create(context.Background(), in)
	var verr *shared.ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "pharmaceutical_form", verr.Fields[0].Field)

	in = softGel()
	in.StandardWeightKg = 0
	_, err = svc.Create(context.Background(), in)
	require.True(t, errors.As(err, &verr))
}

func TestAddIngredientRejectsNonPositiveQuantity(t *testing.T) {
	repo := newMemoryRepo()
	repo.lots[10] = "L-10"
	svc := NewService(repo, nil, nil)
	ctx := context.Background()
	f, err := svc.Create(ctx, softGel())
	require.NoError(t, err)

	_, err = svc.AddIngredient(ctx, f.ID, IngredientInput{LotID: 10, QuantityMg: -10})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Contains(t, err.Error(), "must be positive")
	require.Empty(t, repo.ingredients)

	_, err = svc.AddIngredient(ctx, f.ID, IngredientInput{LotID: 99, QuantityMg: 10})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, repo.ingredients)

	_, err = svc.AddIngredient(ctx, 404, IngredientInput{LotID: 10, QuantityMg: 10})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestIngredientsKeepInsertionOrder(t *testing.T) {
	repo := newMemoryRepo()
	repo.lots[10], repo.lots[11] = "L-10", "L-11"
	svc := NewService(repo, nil, nil)
	ctx := context.Background()
	f, err := svc.Create(ctx, softGel())
	require.NoError(t, err)

	first, err := svc.AddIngredient(ctx, f.ID, IngredientInput{LotID: 11, QuantityMg: 300})
	require.NoError(t, err)
	_, err = svc.AddIngredient(ctx, f.ID, IngredientInput{LotID: 10, QuantityMg: 100})
	require.NoError(t, err)

	d, err := svc.Get(ctx, f.ID)
	require.NoError(t, err)
	require.Equal(t, []string{"L-11", "L-10"}, []string{d.Ingredients[0].LotNumber, d.Ingredients[1].LotNumber})

	share, err := svc.AverageShare(ctx, f.ID)
	require.NoError(t, err)
	require.InDelta(t, 20000, share, 1e-9)

	require.NoError(t, svc.RemoveIngredient(ctx, f.ID, first.ID))
	require.ErrorIs(t, svc.RemoveIngredient(ctx, f.ID, first.ID), shared.ErrNotFound)
	d, err = svc.Get(ctx, f.ID)
	require.NoError(t, err)
	require.Len(t, d.Ingredients, 1)
}

func TestDeleteProtectedByProducts(t *testing.T) {
	repo := newMemoryRepo()
	repo.lots[10] = "L-10"
	svc := NewService(repo, nil, nil)
	ctx := context.Background()
	f, err := svc.Create(ctx, softGel())
	require.NoError(t, err)
	_, err = svc.AddIngredient(ctx, f.ID, IngredientInput{LotID: 10, QuantityMg: 100})
	require.NoError(t, err)

	repo.products[f.ID] = 2
	require.ErrorIs(t, svc.Delete(ctx, f.ID), shared.ErrProtected)

	repo.products[f.ID] = 0
	require.NoError(t, svc.Delete(ctx, f.ID))
	require.Empty(t, repo.ingredients)
}

func TestHandlerScale(t *testing.T) {
	repo := newMemoryRepo()
	repo.lots[10] = "L-10"
	svc := NewService(repo, nil, nil)
	r := chi.NewRouter()
	r.Route("/api/formulas", NewHandler(nil, svc).MountRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/formulas",
		strings.NewReader(`{"pharmaceutical_form":"tablet","standard_units":500,"standard_weight_kg":2}`)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/formulas/1/ingredients",
		strings.NewReader(`{"lot_id":10,"quantity_mg":-10}`)))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/formulas/1/ingredients",
		strings.NewReader(`{"lot_id":10,"quantity_mg":400}`)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/formulas/1/scale?size_kg=3", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"quantity_mg":600`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/formulas/1/average-share", nil))
	require.JSONEq(t, `{"average_share":40000}`, rec.Body.String())
}
