package materials

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Stock movement kinds reported to the MovementRecorder.
const (
	MovementMaterialAdd     = "material_add"
	MovementMaterialConsume = "material_consume"
	MovementLotAdd          = "lot_add"
	MovementLotConsume      = "lot_consume"
	MovementLotRestore      = "lot_restore"
)

// ConsumeFromLot locks the lot and then its material, decrementing both by mg
// converted to the material unit. Nothing is written when either check fails.
func ConsumeFromLot(ctx context.Context, tx StockTx, lotID int64, mg float64) (Lot, Material, error) {
	if mg <= 0 {
		return Lot{}, Material{}, ErrInvalidQuantity
	}
	lot, material, err := lockLotAndMaterial(ctx, tx, lotID)
	if err != nil {
		return Lot{}, Material{}, err
	}
	if err := lot.Consume(mg); err != nil {
		return Lot{}, Material{}, fmt.Errorf("lot %s: %w", lot.LotNumber, err)
	}
	if err := material.ConsumeStock(material.Unit.FromMg(mg)); err != nil {
		return Lot{}, Material{}, fmt.Errorf("material %s: %w", material.Name, err)
	}
	return persist(ctx, tx, lot, material)
}

// AddToLot receives mg more into the lot and mirrors it onto the material.
func AddToLot(ctx context.Context, tx StockTx, lotID int64, mg float64) (Lot, Material, error) {
	if mg <= 0 {
		return Lot{}, Material{}, ErrInvalidQuantity
	}
	lot, material, err := lockLotAndMaterial(ctx, tx, lotID)
	if err != nil {
		return Lot{}, Material{}, err
	}
	if err := lot.Add(mg); err != nil {
		return Lot{}, Material{}, err
	}
	if err := material.AddStock(material.Unit.FromMg(mg)); err != nil {
		return Lot{}, Material{}, err
	}
	return persist(ctx, tx, lot, material)
}

// RestoreToLot gives back a previous consumption to the lot and its material.
func RestoreToLot(ctx context.Context, tx StockTx, lotID int64, mg float64) (Lot, Material, error) {
	if mg <= 0 {
		return Lot{}, Material{}, ErrInvalidQuantity
	}
	lot, material, err := lockLotAndMaterial(ctx, tx, lotID)
	if err != nil {
		return Lot{}, Material{}, err
	}
	if err := lot.Restore(mg); err != nil {
		return Lot{}, Material{}, err
	}
	if err := material.AddStock(material.Unit.FromMg(mg)); err != nil {
		return Lot{}, Material{}, err
	}
	return persist(ctx, tx, lot, material)
}

func lockLotAndMaterial(ctx context.Context, tx StockTx, lotID int64) (Lot, Material, error) {
	lot, err := tx.GetLotForUpdate(ctx, lotID)
	if err != nil {
		return Lot{}, Material{}, err
	}
	material, err := tx.GetMaterialForUpdate(ctx, lot.MaterialID)
	if err != nil {
		return Lot{}, Material{}, err
	}
	lot.DaysValidAfterOpening = material.DaysValidAfterOpening
	return lot, material, nil
}

func persist(ctx context.Context, tx StockTx, lot Lot, material Material) (Lot, Material, error) {
	if err := tx.UpdateLot(ctx, lot); err != nil {
		return Lot{}, Material{}, err
	}
	if err := tx.UpdateMaterial(ctx, material); err != nil {
		return Lot{}, Material{}, err
	}
	return lot, material, nil
}

// Allocation is one line of a multi-lot consumption plan.
type Allocation struct {
	LotID           int64      `json:"lot_id"`
	LotNumber       string     `json:"lot_number"`
	QuantityMg      float64    `json:"quantity_mg"`
	EffectiveExpiry *time.Time `json:"effective_expiry_date,omitempty"`
}

// PlanFEFO spreads mg over the usable lots, earliest effective expiry first.
// Lots without expiry go last; ties break on receipt date then id. Expired,
// unapproved and empty lots are skipped.
func PlanFEFO(lots []Lot, mg float64, today time.Time) ([]Allocation, error) {
	if mg <= 0 {
		return nil, ErrInvalidQuantity
	}
	candidates := make([]Lot, 0, len(lots))
	for _, l := range lots {
		if l.Usable(today) {
			candidates = append(candidates, l)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i].EffectiveExpiry(), candidates[j].EffectiveExpiry()
		switch {
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		case a != nil && b != nil && !a.Equal(*b):
			return a.Before(*b)
		}
		if !candidates[i].ReceivedAt.Equal(candidates[j].ReceivedAt) {
			return candidates[i].ReceivedAt.Before(candidates[j].ReceivedAt)
		}
		return candidates[i].ID < candidates[j].ID
	})

	remaining := mg
	var plan []Allocation
	for _, l := range candidates {
		if remaining <= quantityEpsilon {
			break
		}
		take := l.AvailableMg
		if take > remaining {
			take = remaining
		}
		plan = append(plan, Allocation{
			LotID:           l.ID,
			LotNumber:       l.LotNumber,
			QuantityMg:      take,
			EffectiveExpiry: l.EffectiveExpiry(),
		})
		remaining -= take
	}
	if remaining > quantityEpsilon {
		return nil, &InsufficientQuantityError{Requested: mg, Available: mg - remaining, Unit: UnitMilligram}
	}
	return plan, nil
}
