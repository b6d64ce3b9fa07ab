package products

import (
	"time"
)

// Presentation is the packaging a product ships in.
type Presentation string

const (
	Pack30  Presentation = "pack_30"
	Pack60  Presentation = "pack_60"
	Pack90  Presentation = "pack_90"
	Pack120 Presentation = "pack_120"
)

// Units returns the number of units in the pack.
func (p Presentation) Units() int {
	switch p {
	case Pack30:
		return 30
	case Pack60:
		return 60
	case Pack90:
		return 90
	case Pack120:
		return 120
	}
	return 0
}

// Product is a sellable item made from a formula. Several products may share
// one formula.
type Product struct {
	ID           int64        `json:"id"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Presentation Presentation `json:"presentation"`
	FormulaID    int64        `json:"formula_id"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
