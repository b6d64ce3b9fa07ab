package materials

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/capsula-erp/capsula/internal/shared"
)

const (
	// NearExpiryDays is the window, in days, inside which stock is flagged near expiry.
	NearExpiryDays = 30
	// DefaultDaysValidAfterOpening applies when a material does not set its own shelf life.
	DefaultDaysValidAfterOpening = 30

	quantityEpsilon = 1e-9
)

var (
	// ErrInvalidQuantity indicates a non-positive movement quantity.
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be positive", shared.ErrValidation)
	// ErrInsufficientQuantity indicates a consumption larger than the available stock.
	ErrInsufficientQuantity = fmt.Errorf("%w: insufficient quantity", shared.ErrValidation)
	// ErrMaterialNotFound indicates a missing raw material.
	ErrMaterialNotFound = fmt.Errorf("raw material %w", shared.ErrNotFound)
	// ErrLotNotFound indicates a missing raw material lot.
	ErrLotNotFound = fmt.Errorf("raw material lot %w", shared.ErrNotFound)
)

// InsufficientQuantityError reports the requested and available amounts of a
// rejected consumption.
type InsufficientQuantityError struct {
	Requested float64
	Available float64
	Unit      Unit
}

func (e *InsufficientQuantityError) Error() string {
	return fmt.Sprintf("%s: requested %s %s, available %s %s",
		ErrInsufficientQuantity.Error(),
		formatQty(e.Requested), e.Unit,
		formatQty(e.Available), e.Unit)
}

func (e *InsufficientQuantityError) Unwrap() error { return ErrInsufficientQuantity }

func formatQty(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// IsInsufficient reports whether err is an insufficient quantity failure.
func IsInsufficient(err error) bool {
	return errors.Is(err, ErrInsufficientQuantity)
}

// Unit is the measurement unit of a raw material aggregate quantity.
type Unit string

const (
	UnitKilogram  Unit = "kg"
	UnitGram      Unit = "g"
	UnitMilligram Unit = "mg"
)

// Valid reports whether u is a supported unit.
func (u Unit) Valid() bool {
	switch u {
	case UnitKilogram, UnitGram, UnitMilligram:
		return true
	}
	return false
}

// FromMg converts a milligram amount into u.
func (u Unit) FromMg(mg float64) float64 {
	switch u {
	case UnitKilogram:
		return mg / 1_000_000
	case UnitGram:
		return mg / 1_000
	default:
		return mg
	}
}

// Status is the derived stock state of a material or lot.
type Status string

const (
	StatusAvailable       Status = "available"
	StatusNearExpiry      Status = "near_expiry"
	StatusExpired         Status = "expired"
	StatusDepleted        Status = "depleted"
	StatusQuarantined     Status = "quarantined"
	StatusNoExpiry        Status = "no_expiry"
	StatusPendingApproval Status = "pending_approval"
)

// Statuses lists every status a material or lot can report.
var Statuses = []Status{
	StatusAvailable, StatusNearExpiry, StatusExpired, StatusDepleted,
	StatusQuarantined, StatusNoExpiry, StatusPendingApproval,
}

// ComputeStatus derives a material status. Evaluation order is fixed:
// no expiry, depleted, expired, near expiry, available.
func ComputeStatus(expiry *time.Time, qty float64, today time.Time) Status {
	if expiry == nil {
		return StatusNoExpiry
	}
	if qty <= quantityEpsilon {
		return StatusDepleted
	}
	days := shared.DaysBetween(today, *expiry)
	switch {
	case days < 0:
		return StatusExpired
	case days <= NearExpiryDays:
		return StatusNearExpiry
	}
	return StatusAvailable
}

// effectiveExpiry returns opening date + shelf life once opened, else the raw expiry.
func effectiveExpiry(opened bool, openedAt *time.Time, daysValid int, expiry *time.Time) *time.Time {
	if opened && openedAt != nil {
		eff := shared.DateOf(*openedAt).AddDate(0, 0, daysValid)
		return &eff
	}
	return expiry
}

func daysUntil(expiry *time.Time, today time.Time) *int {
	if expiry == nil {
		return nil
	}
	d := shared.DaysBetween(today, *expiry)
	return &d
}

// Material is a purchasable ingredient type carrying an aggregate quantity in Unit.
type Material struct {
	ID                    int64           `json:"id"`
	Code                  int64           `json:"code"`
	Name                  string          `json:"name"`
	Description           string          `json:"description"`
	Category              string          `json:"category"`
	SupplierID            int64           `json:"supplier_id"`
	AvailableQty          float64         `json:"available_qty"`
	Unit                  Unit            `json:"unit"`
	UnitPrice             decimal.Decimal `json:"unit_price"`
	StorageCondition      string          `json:"storage_condition"`
	Location              string          `json:"location"`
	ManufactureDate       *time.Time      `json:"manufacture_date,omitempty"`
	ExpiryDate            *time.Time      `json:"expiry_date,omitempty"`
	DaysValidAfterOpening int             `json:"days_valid_after_opening"`
	Opened                bool            `json:"opened"`
	OpenedAt              *time.Time      `json:"opened_at,omitempty"`
	Quarantined           bool            `json:"quarantined"`
	QuarantineReason      string          `json:"quarantine_reason,omitempty"`
	ReceivedAt            time.Time       `json:"received_at"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// EffectiveExpiry returns the expiry that governs status.
func (m Material) EffectiveExpiry() *time.Time {
	return effectiveExpiry(m.Opened, m.OpenedAt, m.DaysValidAfterOpening, m.ExpiryDate)
}

// Status derives the material status; a quarantine hold overrides everything.
func (m Material) Status(today time.Time) Status {
	if m.Quarantined {
		return StatusQuarantined
	}
	return ComputeStatus(m.EffectiveExpiry(), m.AvailableQty, today)
}

// StockValue is available quantity times unit price, rounded to cents.
func (m Material) StockValue() decimal.Decimal {
	return decimal.NewFromFloat(m.AvailableQty).Mul(m.UnitPrice).Round(2)
}

// OpenPackage marks the material opened today. Reopening is a no-op and
// reports false.
func (m *Material) OpenPackage(today time.Time) bool {
	if m.Opened {
		return false
	}
	m.Opened = true
	m.OpenedAt = shared.DatePtr(today)
	return true
}

// AddStock increments the available quantity.
func (m *Material) AddStock(qty float64) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	m.AvailableQty += qty
	return nil
}

// ConsumeStock decrements the available quantity, refusing to go negative.
func (m *Material) ConsumeStock(qty float64) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if qty > m.AvailableQty+quantityEpsilon {
		return &InsufficientQuantityError{Requested: qty, Available: m.AvailableQty, Unit: m.Unit}
	}
	m.AvailableQty = clampZero(m.AvailableQty - qty)
	return nil
}

// Quarantine places a hold on the material.
func (m *Material) Quarantine(reason string) {
	m.Quarantined = true
	m.QuarantineReason = reason
}

// Release lifts a quarantine hold.
func (m *Material) Release() {
	m.Quarantined = false
	m.QuarantineReason = ""
}

// Lot is a received batch of a material. Quantities are milligrams.
type Lot struct {
	ID                int64      `json:"id"`
	MaterialID        int64      `json:"material_id"`
	SupplierID        *int64     `json:"supplier_id,omitempty"`
	LotNumber         string     `json:"lot_number"`
	ManufactureDate   *time.Time `json:"manufacture_date,omitempty"`
	ExpiryDate        *time.Time `json:"expiry_date,omitempty"`
	InvoiceRef        string     `json:"invoice_ref"`
	ReceivedMg        float64    `json:"received_mg"`
	AvailableMg       float64    `json:"available_mg"`
	ReceivedAt        time.Time  `json:"received_at"`
	QualityApproved   bool       `json:"quality_approved"`
	ApprovedAt        *time.Time `json:"approved_at,omitempty"`
	ApprovedBy        string     `json:"approved_by,omitempty"`
	Notes             string     `json:"notes"`
	StorageLocation   string     `json:"storage_location"`
	StorageConditions string     `json:"storage_conditions"`
	Opened            bool       `json:"opened"`
	OpenedAt          *time.Time `json:"opened_at,omitempty"`
	TraceabilityCode  string     `json:"traceability_code"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	// DaysValidAfterOpening is inherited from the parent material.
	DaysValidAfterOpening int `json:"-"`
}

// EffectiveExpiry returns the expiry that governs status.
func (l Lot) EffectiveExpiry() *time.Time {
	return effectiveExpiry(l.Opened, l.OpenedAt, l.DaysValidAfterOpening, l.ExpiryDate)
}

// Status derives the lot status: expired, depleted, near expiry, pending
// approval, available.
func (l Lot) Status(today time.Time) Status {
	exp := l.EffectiveExpiry()
	var days int
	if exp != nil {
		days = shared.DaysBetween(today, *exp)
		if days < 0 {
			return StatusExpired
		}
	}
	if l.AvailableMg <= quantityEpsilon {
		return StatusDepleted
	}
	if exp != nil && days <= NearExpiryDays {
		return StatusNearExpiry
	}
	if !l.QualityApproved {
		return StatusPendingApproval
	}
	return StatusAvailable
}

// Usable reports whether the lot may feed production today.
func (l Lot) Usable(today time.Time) bool {
	if !l.QualityApproved || l.AvailableMg <= quantityEpsilon {
		return false
	}
	exp := l.EffectiveExpiry()
	return exp == nil || shared.DaysBetween(today, *exp) >= 0
}

// OpenPackage marks the lot opened today; idempotent.
func (l *Lot) OpenPackage(today time.Time) bool {
	if l.Opened {
		return false
	}
	l.Opened = true
	l.OpenedAt = shared.DatePtr(today)
	return true
}

// Consume decrements the available milligrams.
func (l *Lot) Consume(mg float64) error {
	if mg <= 0 {
		return ErrInvalidQuantity
	}
	if mg > l.AvailableMg+quantityEpsilon {
		return &InsufficientQuantityError{Requested: mg, Available: l.AvailableMg, Unit: UnitMilligram}
	}
	l.AvailableMg = clampZero(l.AvailableMg - mg)
	return nil
}

// Add receives more stock into the lot, raising both available and received.
func (l *Lot) Add(mg float64) error {
	if mg <= 0 {
		return ErrInvalidQuantity
	}
	l.AvailableMg += mg
	l.ReceivedMg += mg
	return nil
}

// Restore returns previously consumed milligrams to the lot.
func (l *Lot) Restore(mg float64) error {
	if mg <= 0 {
		return ErrInvalidQuantity
	}
	l.AvailableMg += mg
	if l.AvailableMg > l.ReceivedMg {
		l.ReceivedMg = l.AvailableMg
	}
	return nil
}

// Approve records the QC release. Approving twice keeps the first stamp.
func (l *Lot) Approve(by string, today time.Time) bool {
	if l.QualityApproved {
		return false
	}
	l.QualityApproved = true
	l.ApprovedAt = shared.DatePtr(today)
	l.ApprovedBy = by
	return true
}

func clampZero(v float64) float64 {
	if math.Abs(v) < quantityEpsilon {
		return 0
	}
	return v
}
