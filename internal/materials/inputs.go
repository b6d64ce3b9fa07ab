package materials

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/capsula-erp/capsula/internal/shared"
)

// CreateMaterialInput registers a new raw material.
type CreateMaterialInput struct {
	Code                  int64           `json:"code" validate:"required,gt=0"`
	Name                  string          `json:"name" validate:"required,max=200"`
	Description           string          `json:"description" validate:"max=2000"`
	Category              string          `json:"category" validate:"max=100"`
	SupplierID            int64           `json:"supplier_id" validate:"required,gt=0"`
	AvailableQty          float64         `json:"available_qty" validate:"gte=0"`
	Unit                  Unit            `json:"unit" validate:"omitempty,oneof=kg g mg"`
	UnitPrice             decimal.Decimal `json:"unit_price"`
	StorageCondition      string          `json:"storage_condition" validate:"max=100"`
	Location              string          `json:"location" validate:"max=100"`
	ManufactureDate       string          `json:"manufacture_date" validate:"omitempty,datetime=2006-01-02"`
	ExpiryDate            string          `json:"expiry_date" validate:"omitempty,datetime=2006-01-02"`
	DaysValidAfterOpening *int            `json:"days_valid_after_opening" validate:"omitempty,gte=0"`
	ReceivedAt            string          `json:"received_at" validate:"omitempty,datetime=2006-01-02"`
}

// UpdateMaterialInput edits descriptive fields. Quantity and unit change only
// through stock operations.
type UpdateMaterialInput struct {
	Code                  int64           `json:"code" validate:"required,gt=0"`
	Name                  string          `json:"name" validate:"required,max=200"`
	Description           string          `json:"description" validate:"max=2000"`
	Category              string          `json:"category" validate:"max=100"`
	SupplierID            int64           `json:"supplier_id" validate:"required,gt=0"`
	UnitPrice             decimal.Decimal `json:"unit_price"`
	StorageCondition      string          `json:"storage_condition" validate:"max=100"`
	Location              string          `json:"location" validate:"max=100"`
	ManufactureDate       string          `json:"manufacture_date" validate:"omitempty,datetime=2006-01-02"`
	ExpiryDate            string          `json:"expiry_date" validate:"omitempty,datetime=2006-01-02"`
	DaysValidAfterOpening *int            `json:"days_valid_after_opening" validate:"omitempty,gte=0"`
}

// QuantityInput carries a stock movement amount.
type QuantityInput struct {
	Quantity float64 `json:"quantity"`
}

// QuarantineInput carries the reason for a quarantine hold.
type QuarantineInput struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// CreateLotInput registers a received lot.
type CreateLotInput struct {
	MaterialID        int64    `json:"material_id" validate:"required,gt=0"`
	SupplierID        *int64   `json:"supplier_id" validate:"omitempty,gt=0"`
	LotNumber         string   `json:"lot_number" validate:"required,max=50"`
	ManufactureDate   string   `json:"manufacture_date" validate:"omitempty,datetime=2006-01-02"`
	ExpiryDate        string   `json:"expiry_date" validate:"omitempty,datetime=2006-01-02"`
	InvoiceRef        string   `json:"invoice_ref" validate:"max=50"`
	ReceivedMg        float64  `json:"received_mg" validate:"gte=0"`
	AvailableMg       *float64 `json:"available_mg" validate:"omitempty,gte=0"`
	ReceivedAt        string   `json:"received_at" validate:"omitempty,datetime=2006-01-02"`
	QualityApproved   bool     `json:"quality_approved"`
	Notes             string   `json:"notes" validate:"max=2000"`
	StorageLocation   string   `json:"storage_location" validate:"max=100"`
	StorageConditions string   `json:"storage_conditions" validate:"max=100"`
	TraceabilityCode  string   `json:"traceability_code" validate:"max=100"`
}

// UpdateLotInput edits lot metadata. Quantities change only through
// add/consume operations.
type UpdateLotInput struct {
	SupplierID        *int64 `json:"supplier_id" validate:"omitempty,gt=0"`
	LotNumber         string `json:"lot_number" validate:"required,max=50"`
	ManufactureDate   string `json:"manufacture_date" validate:"omitempty,datetime=2006-01-02"`
	ExpiryDate        string `json:"expiry_date" validate:"omitempty,datetime=2006-01-02"`
	InvoiceRef        string `json:"invoice_ref" validate:"max=50"`
	Notes             string `json:"notes" validate:"max=2000"`
	StorageLocation   string `json:"storage_location" validate:"max=100"`
	StorageConditions string `json:"storage_conditions" validate:"max=100"`
	TraceabilityCode  string `json:"traceability_code" validate:"max=100"`
}

// MaterialQuery narrows and orders the rows loaded from storage.
type MaterialQuery struct {
	Search     string
	SupplierID int64
	Category   string
	SortBy     string
	SortDir    string
}

// MaterialFilter adds derived-status filtering and paging to a listing.
type MaterialFilter struct {
	shared.ListFilters
	SupplierID int64
	Category   string
	Status     Status
}

func (f MaterialFilter) query() MaterialQuery {
	return MaterialQuery{
		Search:     f.Search,
		SupplierID: f.SupplierID,
		Category:   f.Category,
		SortBy:     f.SortBy,
		SortDir:    f.SortDir,
	}
}

// LotQuery narrows the rows loaded from storage.
type LotQuery struct {
	MaterialID int64
	SupplierID int64
	Search     string
}

// LotFilter adds derived filters and paging to a lot listing.
type LotFilter struct {
	shared.ListFilters
	MaterialID     int64
	SupplierID     int64
	Status         Status
	ExpiringWithin *int
}

func (f LotFilter) query() LotQuery {
	return LotQuery{MaterialID: f.MaterialID, SupplierID: f.SupplierID, Search: f.Search}
}

// ExpiringLot is a lot flagged by the expiry scan.
type ExpiringLot struct {
	LotView
	MaterialName string `json:"material_name"`
}

type parsedDates struct {
	manufacture *time.Time
	expiry      *time.Time
	received    *time.Time
}

func parseDates(manufacture, expiry, received string) (parsedDates, error) {
	var out parsedDates
	var err error
	if out.manufacture, err = shared.ParseDate(manufacture); err != nil {
		return out, err
	}
	if out.expiry, err = shared.ParseDate(expiry); err != nil {
		return out, err
	}
	if out.received, err = shared.ParseDate(received); err != nil {
		return out, err
	}
	if out.manufacture != nil && out.expiry != nil && out.expiry.Before(*out.manufacture) {
		return out, shared.Invalidf("expiry date precedes manufacture date")
	}
	return out, nil
}
