// Package production records manufacturing batches and the raw material lot
// quantities they consume.
package production

import (
	"fmt"
	"time"

	"github.com/capsula-erp/capsula/internal/shared"
)

// ErrBatchNotFound is returned for unknown batch ids.
var ErrBatchNotFound = fmt.Errorf("production batch %w", shared.ErrNotFound)

// Mode selects how CreateBatch derives its consumptions.
type Mode string

const (
	// ModeManual consumes exactly the lines supplied by the caller.
	ModeManual Mode = "manual"
	// ModeFromFormula consumes each ingredient's own lot, scaled to the batch size.
	ModeFromFormula Mode = "from_formula"
	// ModeFEFO spreads each ingredient's scaled quantity over the lots of its
	// material, earliest effective expiry first.
	ModeFEFO Mode = "fefo"
)

// Batch is a production run of a product.
type Batch struct {
	ID             int64     `json:"id"`
	ProductID      int64     `json:"product_id"`
	BatchCode      string    `json:"batch_code"`
	SizeKg         float64   `json:"size_kg"`
	ProductionDate time.Time `json:"production_date"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Consumption is a lot quantity drawn by a batch.
type Consumption struct {
	ID           int64     `json:"id"`
	BatchID      int64     `json:"batch_id"`
	LotID        int64     `json:"lot_id"`
	ConsumedMg   float64   `json:"consumed_mg"`
	LotNumber    string    `json:"lot_number,omitempty"`
	MaterialID   int64     `json:"material_id,omitempty"`
	MaterialName string    `json:"material_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// BatchDetail is a batch with its consumption records.
type BatchDetail struct {
	Batch
	Consumptions []Consumption `json:"consumptions"`
	TotalMg      float64       `json:"total_consumed_mg"`
}

func newDetail(b Batch, cons []Consumption) BatchDetail {
	if cons == nil {
		cons = []Consumption{}
	}
	d := BatchDetail{Batch: b, Consumptions: cons}
	for _, c := range cons {
		d.TotalMg += c.ConsumedMg
	}
	return d
}

// line is one planned lot withdrawal.
type line struct {
	LotID int64
	Mg    float64
}
