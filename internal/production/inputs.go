package production

// ConsumptionInput draws mg from one lot.
type ConsumptionInput struct {
	LotID      int64   `json:"lot_id" validate:"required,gt=0"`
	QuantityMg float64 `json:"quantity_mg"`
}

// CreateBatchInput registers a batch and its consumptions in one step.
// Consumptions are only read in manual mode.
type CreateBatchInput struct {
	ProductID      int64              `json:"product_id" validate:"required,gt=0"`
	BatchCode      string             `json:"batch_code" validate:"max=50"`
	SizeKg         float64            `json:"size_kg" validate:"required,gt=0"`
	ProductionDate string             `json:"production_date" validate:"omitempty,datetime=2006-01-02"`
	Mode           Mode               `json:"mode" validate:"omitempty,oneof=manual from_formula fefo"`
	Consumptions   []ConsumptionInput `json:"consumptions" validate:"dive"`
}

// UpdateBatchInput edits the batch header. Consumptions cannot be edited.
type UpdateBatchInput struct {
	BatchCode      string  `json:"batch_code" validate:"required,max=50"`
	SizeKg         float64 `json:"size_kg" validate:"required,gt=0"`
	ProductionDate string  `json:"production_date" validate:"required,datetime=2006-01-02"`
}

// BatchQuery narrows batch listings.
type BatchQuery struct {
	ProductID int64
	Search    string
}
