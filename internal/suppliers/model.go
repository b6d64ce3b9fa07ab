package suppliers

import (
	"time"
)

// Supplier represents a goods supplier.
type Supplier struct {
	ID        int64     `json:"id"`
	TaxID     string    `json:"tax_id"`
	LegalName string    `json:"legal_name"`
	TradeName string    `json:"trade_name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Input is the payload accepted by create and update.
type Input struct {
	TaxID     string `json:"tax_id" validate:"required,max=20"`
	LegalName string `json:"legal_name" validate:"required,max=200"`
	TradeName string `json:"trade_name" validate:"max=200"`
	Email     string `json:"email" validate:"omitempty,email,max=200"`
	Phone     string `json:"phone" validate:"max=30"`
	Address   string `json:"address" validate:"max=500"`
}

// References counts the rows that keep a supplier from being deleted.
type References struct {
	Materials int
	Lots      int
}

// Any reports whether anything still points at the supplier.
func (r References) Any() bool {
	return r.Materials > 0 || r.Lots > 0
}
