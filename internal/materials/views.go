package materials

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaterialView is a material snapshot with its derived fields.
type MaterialView struct {
	Material
	Status          Status          `json:"status"`
	EffectiveExpiry *time.Time      `json:"effective_expiry_date,omitempty"`
	DaysUntilExpiry *int            `json:"days_until_expiry,omitempty"`
	StockValue      decimal.Decimal `json:"stock_value"`
}

// NewMaterialView derives the computed fields as of today.
func NewMaterialView(m Material, today time.Time) MaterialView {
	eff := m.EffectiveExpiry()
	return MaterialView{
		Material:        m,
		Status:          m.Status(today),
		EffectiveExpiry: eff,
		DaysUntilExpiry: daysUntil(eff, today),
		StockValue:      m.StockValue(),
	}
}

// LotView is a lot snapshot with its derived fields.
type LotView struct {
	Lot
	Status          Status     `json:"status"`
	EffectiveExpiry *time.Time `json:"effective_expiry_date,omitempty"`
	DaysUntilExpiry *int       `json:"days_until_expiry,omitempty"`
}

// NewLotView derives the computed fields as of today.
func NewLotView(l Lot, today time.Time) LotView {
	eff := l.EffectiveExpiry()
	return LotView{
		Lot:             l,
		Status:          l.Status(today),
		EffectiveExpiry: eff,
		DaysUntilExpiry: daysUntil(eff, today),
	}
}
