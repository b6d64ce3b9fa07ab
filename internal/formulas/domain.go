// Package formulas models capsule recipes: a pharmaceutical form with its
// standard batch and the lot quantities that make it up.
package formulas

import (
	"fmt"
	"time"

	"github.com/capsula-erp/capsula/internal/shared"
)

var (
	// ErrFormulaNotFound is returned when a formula id does not exist.
	ErrFormulaNotFound = fmt.Errorf("formula %w", shared.ErrNotFound)
	// ErrIngredientNotFound is returned when an ingredient is not part of the formula.
	ErrIngredientNotFound = fmt.Errorf("ingredient %w", shared.ErrNotFound)
)

// PharmaceuticalForm enumerates the dosage forms a formula can produce.
type PharmaceuticalForm string

const (
	FormSoftGelCapsule  PharmaceuticalForm = "soft_gel_capsule"
	FormChewableCapsule PharmaceuticalForm = "chewable_capsule"
	FormTablet          PharmaceuticalForm = "tablet"
	FormLiquid          PharmaceuticalForm = "liquid"
)

// Valid reports whether f is a known form.
func (f PharmaceuticalForm) Valid() bool {
	switch f {
	case FormSoftGelCapsule, FormChewableCapsule, FormTablet, FormLiquid:
		return true
	}
	return false
}

// Formula is a recipe header.
type Formula struct {
	ID                 int64              `json:"id"`
	Name               string             `json:"name"`
	PharmaceuticalForm PharmaceuticalForm `json:"pharmaceutical_form"`
	StandardUnits      int                `json:"standard_units"`
	StandardWeightKg   float64            `json:"standard_weight_kg"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// Ingredient is one lot quantity of a formula, in milligrams per standard batch.
type Ingredient struct {
	ID           int64     `json:"id"`
	FormulaID    int64     `json:"formula_id"`
	LotID        int64     `json:"lot_id"`
	QuantityMg   float64   `json:"quantity_mg"`
	LotNumber    string    `json:"lot_number,omitempty"`
	MaterialID   int64     `json:"material_id,omitempty"`
	MaterialName string    `json:"material_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewIngredient validates the quantity before anything is persisted.
func NewIngredient(formulaID, lotID int64, mg float64) (Ingredient, error) {
	if mg <= 0 {
		return Ingredient{}, shared.Invalidf("ingredient quantity must be positive, got %v mg", mg)
	}
	if lotID <= 0 {
		return Ingredient{}, shared.Invalidf("ingredient requires a raw material lot")
	}
	return Ingredient{FormulaID: formulaID, LotID: lotID, QuantityMg: mg}, nil
}

// Detail is a formula with its ingredients in insertion order.
type Detail struct {
	Formula
	Ingredients []Ingredient `json:"ingredients"`
}

// AverageShare is the arithmetic mean of the ingredient quantities times 100.
// It is a diagnostic figure, not a percentage of the batch.
func AverageShare(ingredients []Ingredient) float64 {
	if len(ingredients) == 0 {
		return 0
	}
	var sum float64
	for _, ing := range ingredients {
		sum += ing.QuantityMg
	}
	return sum / float64(len(ingredients)) * 100
}

// Requirement is the quantity an ingredient needs for a batch of a given size.
type Requirement struct {
	IngredientID int64   `json:"ingredient_id"`
	LotID        int64   `json:"lot_id"`
	LotNumber    string  `json:"lot_number,omitempty"`
	MaterialID   int64   `json:"material_id"`
	MaterialName string  `json:"material_name,omitempty"`
	QuantityMg   float64 `json:"quantity_mg"`
}

// Scale converts each ingredient to a batch of sizeKg: mg × (sizeKg / standard weight).
func (d Detail) Scale(sizeKg float64) ([]Requirement, error) {
	if d.StandardWeightKg <= 0 {
		return nil, shared.Invalidf("formula %d has no positive standard weight", d.ID)
	}
	if sizeKg <= 0 {
		return nil, shared.Invalidf("batch size must be positive")
	}
	factor := sizeKg / d.StandardWeightKg
	out := make([]Requirement, 0, len(d.Ingredients))
	for _, ing := range d.Ingredients {
		out = append(out, Requirement{
			IngredientID: ing.ID,
			LotID:        ing.LotID,
			LotNumber:    ing.LotNumber,
			MaterialID:   ing.MaterialID,
			MaterialName: ing.MaterialName,
			QuantityMg:   ing.QuantityMg * factor,
		})
	}
	return out, nil
}
