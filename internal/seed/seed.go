// Package seed loads the development dataset through the domain services so
// every validation and stock rule applies to it.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/capsula-erp/capsula/internal/formulas"
	"github.com/capsula-erp/capsula/internal/materials"
	"github.com/capsula-erp/capsula/internal/production"
	"github.com/capsula-erp/capsula/internal/products"
	"github.com/capsula-erp/capsula/internal/shared"
	"github.com/capsula-erp/capsula/internal/suppliers"
)

// ErrAlreadySeeded is returned when suppliers already exist.
var ErrAlreadySeeded = fmt.Errorf("%w: database already holds suppliers", shared.ErrDuplicate)

// SupplierService creates suppliers.
type SupplierService interface {
	List(ctx context.Context, filters shared.ListFilters) ([]suppliers.Supplier, shared.Pagination, error)
	Create(ctx context.Context, in suppliers.Input) (suppliers.Supplier, error)
}

// MaterialService creates raw materials and lots.
type MaterialService interface {
	CreateMaterial(ctx context.Context, in materials.CreateMaterialInput) (materials.MaterialView, error)
	CreateLot(ctx context.Context, in materials.CreateLotInput) (materials.LotView, error)
}

// FormulaService creates formulas and their ingredients.
type FormulaService interface {
	Create(ctx context.Context, in formulas.Input) (formulas.Formula, error)
	AddIngredient(ctx context.Context, formulaID int64, in formulas.IngredientInput) (formulas.Ingredient, error)
}

// ProductService creates products.
type ProductService interface {
	Create(ctx context.Context, form products.ProductForm) (products.Product, error)
}

// BatchService creates production batches.
type BatchService interface {
	CreateBatch(ctx context.Context, in production.CreateBatchInput, idempotencyKey string) (production.BatchDetail, error)
}

// Services bundles the domain services the seeder drives.
type Services struct {
	Suppliers  SupplierService
	Materials  MaterialService
	Formulas   FormulaService
	Products   ProductService
	Production BatchService
}

// Summary counts the rows created by Run.
type Summary struct {
	Suppliers    int `json:"suppliers"`
	Materials    int `json:"materials"`
	Lots         int `json:"lots"`
	Formulas     int `json:"formulas"`
	Products     int `json:"products"`
	Ingredients  int `json:"ingredients"`
	Batches      int `json:"batches"`
	Consumptions int `json:"consumptions"`
}

// Seeder populates an empty database.
type Seeder struct {
	svc    Services
	logger *slog.Logger
	clock  func() time.Time
}

// New constructs a Seeder. A nil clock means time.Now.
func New(svc Services, logger *slog.Logger, clock func() time.Time) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = time.Now
	}
	return &Seeder{svc: svc, logger: logger, clock: clock}
}

type materialSeed struct {
	code      int64
	name      string
	desc      string
	category  string
	qtyKg     float64
	price     string
	storage   string
	location  string
	shelfDays int
	supplier  int
}

type ingredientSeed struct {
	material string
	mg       float64
}

type formulaSeed struct {
	form     formulas.PharmaceuticalForm
	units    int
	weightKg float64
	recipe   []ingredientSeed
}

type productSeed struct {
	name         string
	description  string
	presentation products.Presentation
}

var supplierData = []suppliers.Input{
	{TaxID: "12.345.678/0001-90", LegalName: "Vitaminas Brasileiras Ltda", TradeName: "VitaBrasil"},
	{TaxID: "23.456.789/0001-01", LegalName: "Suplementos Naturais do Brasil S.A.", TradeName: "NaturalBrasil"},
	{TaxID: "34.567.890/0001-12", LegalName: "Laboratório Farmacêutico Nacional", TradeName: "FarmacoNacional"},
	{TaxID: "45.678.901/0001-23", LegalName: "Ingredientes Ativos Importados Ltda", TradeName: "AtivosImport"},
	{TaxID: "56.789.012/0001-34", LegalName: "Cápsulas e Excipientes do Sul", TradeName: "CapsulSul"},
}

var materialData = []materialSeed{
	{1001, "Vitamina C (Ácido Ascórbico)", "Vitamina C em pó, grau farmacêutico", "Vitaminas", 50, "125.50", "Local seco, temperatura ambiente", "Prateleira A1", 365, 0},
	{1002, "Vitamina D3 (Colecalciferol)", "Vitamina D3 em pó micronizado", "Vitaminas", 25, "275.00", "Proteger da luz, temperatura ambiente", "Prateleira A2", 730, 1},
	{1003, "Óxido de Magnésio", "Óxido de magnésio farmacêutico", "Minerais", 100, "45.75", "Local seco", "Prateleira B1", 1095, 2},
	{1004, "Zinco Quelato", "Zinco bisglicinato quelato", "Minerais", 30, "185.20", "Local seco, temperatura ambiente", "Prateleira B2", 900, 3},
	{1005, "Gelatina Bovina", "Gelatina bovina para cápsulas", "Excipientes", 75, "32.90", "Local seco, proteger da umidade", "Prateleira C1", 600, 4},
	{1006, "Vitamina B12 (Cianocobalamina)", "Vitamina B12 cristalina", "Vitaminas", 5, "450.00", "Refrigerado 2-8°C", "Geladeira A", 540, 0},
}

var formulaData = []formulaSeed{
	{formulas.FormSoftGelCapsule, 60, 1.5, []ingredientSeed{
		{"Vitamina C (Ácido Ascórbico)", 500}, {"Vitamina D3 (Colecalciferol)", 25}, {"Óxido de Magnésio", 200}, {"Zinco Quelato", 15},
	}},
	{formulas.FormChewableCapsule, 30, 0.8, []ingredientSeed{
		{"Óxido de Magnésio", 300}, {"Vitamina D3 (Colecalciferol)", 20},
	}},
	{formulas.FormTablet, 120, 2.0, []ingredientSeed{
		{"Vitamina C (Ácido Ascórbico)", 1000},
	}},
	{formulas.FormSoftGelCapsule, 90, 1.8, []ingredientSeed{
		{"Vitamina B12 (Cianocobalamina)", 50}, {"Zinco Quelato", 10},
	}},
	{formulas.FormTablet, 60, 1.2, []ingredientSeed{
		{"Zinco Quelato", 15},
	}},
}

var productData = []productSeed{
	{"VitaMax Multivitamínico", "Complexo multivitamínico com vitaminas C, D3 e minerais", products.Pack60},
	{"CalMag Plus", "Suplemento de cálcio e magnésio com vitamina D3", products.Pack30},
	{"Vitamina C 1000mg", "Vitamina C de alta potência para imunidade", products.Pack120},
	{"Complexo B Ativo", "Complexo de vitaminas do complexo B com B12", products.Pack90},
	{"Zinco Quelato 15mg", "Zinco bisglicinato para melhor absorção", products.Pack60},
}

var approvers = []string{"Carlos Silva", "Ana Santos"}

// Run creates the dataset in dependency order. It refuses to run twice.
func (s *Seeder) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	_, page, err := s.svc.Suppliers.List(ctx, shared.ListFilters{Page: 1, PerPage: 1})
	if err != nil {
		return sum, err
	}
	if page.Total > 0 {
		return sum, ErrAlreadySeeded
	}
	today := shared.DateOf(s.clock())
	date := func(offsetDays int) string { return today.AddDate(0, 0, offsetDays).Format(shared.DateLayout) }

	supplierIDs := make([]int64, 0, len(supplierData))
	for _, in := range supplierData {
		sup, err := s.svc.Suppliers.Create(ctx, in)
		if err != nil {
			return sum, fmt.Errorf("supplier %s: %w", in.TradeName, err)
		}
		supplierIDs = append(supplierIDs, sup.ID)
		sum.Suppliers++
	}

	firstLot := map[string]int64{}
	for i, m := range materialData {
		mat, err := s.svc.Materials.CreateMaterial(ctx, materials.CreateMaterialInput{
			Code:             m.code,
			Name:             m.name,
			Description:      m.desc,
			Category:         m.category,
			SupplierID:       supplierIDs[m.supplier],
			Unit:             materials.UnitKilogram,
			UnitPrice:        decimal.RequireFromString(m.price),
			StorageCondition: m.storage,
			Location:         m.location,
			ExpiryDate:       date(m.shelfDays),
		})
		if err != nil {
			return sum, fmt.Errorf("material %d: %w", m.code, err)
		}
		sum.Materials++
		// Stock arrives through the lots, half of the quantity in each.
		for j := 0; j < 2; j++ {
			lotCtx := shared.ContextWithActor(ctx, approvers[j])
			lot, err := s.svc.Materials.CreateLot(lotCtx, materials.CreateLotInput{
				MaterialID:        mat.ID,
				LotNumber:         fmt.Sprintf("L%d-%03d", m.code, j+1),
				ManufactureDate:   date(-30 - j*15),
				ExpiryDate:        date(m.shelfDays),
				InvoiceRef:        fmt.Sprintf("NF%d", 12345+i*10+j),
				ReceivedMg:        m.qtyKg / 2 * 1e6,
				ReceivedAt:        date(-25 - j*10),
				QualityApproved:   true,
				StorageLocation:   m.location,
				StorageConditions: m.storage,
				TraceabilityCode:  fmt.Sprintf("RT%d%02d", m.code, j+1),
			})
			if err != nil {
				return sum, fmt.Errorf("lot of material %d: %w", m.code, err)
			}
			if j == 0 {
				firstLot[m.name] = lot.ID
			}
			sum.Lots++
		}
	}

	productIDs := make([]int64, 0, len(productData))
	for i, f := range formulaData {
		p := productData[i]
		formula, err := s.svc.Formulas.Create(ctx, formulas.Input{
			Name:               p.name,
			PharmaceuticalForm: f.form,
			StandardUnits:      f.units,
			StandardWeightKg:   f.weightKg,
		})
		if err != nil {
			return sum, fmt.Errorf("formula %d: %w", i+1, err)
		}
		sum.Formulas++

		prod, err := s.svc.Products.Create(ctx, products.ProductForm{
			Name:         p.name,
			Description:  p.description,
			Presentation: p.presentation,
			FormulaID:    formula.ID,
		})
		if err != nil {
			return sum, fmt.Errorf("product %s: %w", p.name, err)
		}
		productIDs = append(productIDs, prod.ID)
		sum.Products++

		for _, ing := range f.recipe {
			if _, err := s.svc.Formulas.AddIngredient(ctx, formula.ID, formulas.IngredientInput{
				LotID:      firstLot[ing.material],
				QuantityMg: ing.mg,
			}); err != nil {
				return sum, fmt.Errorf("ingredient %s of formula %d: %w", ing.material, i+1, err)
			}
			sum.Ingredients++
		}
	}

	for i, productID := range productIDs {
		for j := 0; j < 2; j++ {
			detail, err := s.svc.Production.CreateBatch(ctx, production.CreateBatchInput{
				ProductID:      productID,
				BatchCode:      fmt.Sprintf("LP%03d-%03d", productID, j+1),
				SizeKg:         formulaData[i].weightKg * float64(j+1),
				ProductionDate: date(-15 - j*7),
				Mode:           production.ModeFromFormula,
			}, "")
			if err != nil {
				return sum, fmt.Errorf("batch %d of product %d: %w", j+1, productID, err)
			}
			sum.Batches++
			sum.Consumptions += len(detail.Consumptions)
		}
	}

	s.logger.Info("seed completed",
		slog.Int("suppliers", sum.Suppliers),
		slog.Int("materials", sum.Materials),
		slog.Int("lots", sum.Lots),
		slog.Int("formulas", sum.Formulas),
		slog.Int("products", sum.Products),
		slog.Int("ingredients", sum.Ingredients),
		slog.Int("batches", sum.Batches),
		slog.Int("consumptions", sum.Consumptions),
	)
	return sum, nil
}
