package products

// ProductForm is the create and update payload.
type ProductForm struct {
	Name         string       `json:"name" validate:"required,max=100"`
	Description  string       `json:"description" validate:"max=2000"`
	Presentation Presentation `json:"presentation" validate:"required,oneof=pack_30 pack_60 pack_90 pack_120"`
	FormulaID    int64        `json:"formula_id" validate:"required,gt=0"`
}
