package formulas

// Input creates or replaces a formula header.
type Input struct {
	Name               string             `json:"name" validate:"max=200"`
	PharmaceuticalForm PharmaceuticalForm `json:"pharmaceutical_form" validate:"required,oneof=soft_gel_capsule chewable_capsule tablet liquid"`
	StandardUnits      int                `json:"standard_units" validate:"required,gt=0"`
	StandardWeightKg   float64            `json:"standard_weight_kg" validate:"required,gt=0"`
}

// IngredientInput adds a lot quantity to a formula. The quantity is checked
// by NewIngredient so a non-positive value reports the domain message.
type IngredientInput struct {
	LotID      int64   `json:"lot_id" validate:"required,gt=0"`
	QuantityMg float64 `json:"quantity_mg"`
}
