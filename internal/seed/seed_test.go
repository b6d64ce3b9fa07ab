package seed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/capsula-erp/capsula/internal/formulas"
	"github.com/capsula-erp/capsula/internal/materials"
	"github.com/capsula-erp/capsula/internal/production"
	"github.com/capsula-erp/capsula/internal/products"
	"github.com/capsula-erp/capsula/internal/shared"
	"github.com/capsula-erp/capsula/internal/suppliers"
)

type recorder struct {
	nextID      int64
	existing    int
	suppliers   []suppliers.Input
	materials   []materials.CreateMaterialInput
	lots        []materials.CreateLotInput
	approvers   []string
	formulas    []formulas.Input
	ingredients map[int64][]formulas.IngredientInput
	products    []products.ProductForm
	batches     []production.CreateBatchInput
}

func (r *recorder) id() int64 {
	r.nextID++
	return r.nextID
}

func (r *recorder) List(context.Context, shared.ListFilters) ([]suppliers.Supplier, shared.Pagination, error) {
	return nil, shared.Pagination{Total: r.existing}, nil
}

func (r *recorder) Create(_ context.Context, in suppliers.Input) (suppliers.Supplier, error) {
	r.suppliers = append(r.suppliers, in)
	return suppliers.Supplier{ID: r.id(), TaxID: in.TaxID}, nil
}

func (r *recorder) CreateMaterial(_ context.Context, in materials.CreateMaterialInput) (materials.MaterialView, error) {
	r.materials = append(r.materials, in)
	return materials.MaterialView{Material: materials.Material{ID: r.id(), Code: in.Code}}, nil
}

func (r *recorder) CreateLot(ctx context.Context, in materials.CreateLotInput) (materials.LotView, error) {
	r.lots = append(r.lots, in)
	r.approvers = append(r.approvers, shared.ActorFromContext(ctx))
	return materials.LotView{Lot: materials.Lot{ID: r.id(), LotNumber: in.LotNumber}}, nil
}

type formulaRecorder struct{ *recorder }

func (f formulaRecorder) Create(_ context.Context, in formulas.Input) (formulas.Formula, error) {
	f.formulas = append(f.formulas, in)
	return formulas.Formula{ID: f.id()}, nil
}

func (f formulaRecorder) AddIngredient(_ context.Context, formulaID int64, in formulas.IngredientInput) (formulas.Ingredient, error) {
	if f.ingredients == nil {
		f.ingredients = map[int64][]formulas.IngredientInput{}
	}
	f.ingredients[formulaID] = append(f.ingredients[formulaID], in)
	return formulas.Ingredient{ID: f.id()}, nil
}

type productRecorder struct{ *recorder }

func (p productRecorder) Create(_ context.Context, form products.ProductForm) (products.Product, error) {
	p.products = append(p.products, form)
	return products.Product{ID: p.id(), FormulaID: form.FormulaID}, nil
}

func (r *recorder) CreateBatch(_ context.Context, in production.CreateBatchInput, _ string) (production.BatchDetail, error) {
	r.batches = append(r.batches, in)
	return production.BatchDetail{
		Batch:        production.Batch{ID: r.id()},
		Consumptions: []production.Consumption{{ID: r.id()}},
	}, nil
}

func newSeeder(r *recorder) *Seeder {
	return New(Services{
		Suppliers:  r,
		Materials:  r,
		Formulas:   formulaRecorder{r},
		Products:   productRecorder{r},
		Production: r,
	}, nil, func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) })
}

func TestRunCreatesDatasetInOrder(t *testing.T) {
	r := &recorder{}
	sum, err := newSeeder(r).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, Summary{
		Suppliers: 5, Materials: 6, Lots: 12, Formulas: 5, Products: 5,
		Ingredients: 10, Batches: 10, Consumptions: 10,
	}, sum)

	require.Equal(t, "VitaBrasil", r.suppliers[0].TradeName)
	require.Equal(t, int64(1001), r.materials[0].Code)
	require.Equal(t, "2026-03-01", r.materials[0].ExpiryDate)
	require.Zero(t, r.materials[0].AvailableQty)
	require.Equal(t, "125.5", r.materials[0].UnitPrice.String())

	first := r.lots[0]
	require.Equal(t, "L1001-001", first.LotNumber)
	require.Equal(t, 25e6, first.ReceivedMg)
	require.True(t, first.QualityApproved)
	require.Equal(t, "2025-01-30", first.ManufactureDate)
	require.Equal(t, "L1001-002", r.lots[1].LotNumber)
	require.Equal(t, []string{"Carlos Silva", "Ana Santos"}, r.approvers[:2])

	// Ids: suppliers 1-5, material 6 with lots 7 and 8, ... formula 1 is 24.
	require.Equal(t, int64(7), r.ingredients[24][0].LotID)
	require.Equal(t, 500.0, r.ingredients[24][0].QuantityMg)
	var total int
	for _, ings := range r.ingredients {
		total += len(ings)
		for _, in := range ings {
			require.Positive(t, in.QuantityMg)
			require.NotZero(t, in.LotID)
		}
	}
	require.Equal(t, 10, total)

	require.Equal(t, products.Pack60, r.products[0].Presentation)
	batch := r.batches[1]
	require.Equal(t, production.ModeFromFormula, batch.Mode)
	require.Equal(t, 3.0, batch.SizeKg)
	require.Equal(t, "2025-02-07", batch.ProductionDate)
	require.Contains(t, batch.BatchCode, "-002")
}

func TestRunRefusesPopulatedDatabase(t *testing.T) {
	r := &recorder{existing: 3}
	_, err := newSeeder(r).Run(context.Background())
	require.ErrorIs(t, err, ErrAlreadySeeded)
	require.ErrorIs(t, err, shared.ErrDuplicate)
	require.Empty(t, r.suppliers)
}
