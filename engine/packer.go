package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vikram2211/k2k-backend-sub000/models"
)

// qrPayload is the JSON encoded into a bundle's QR code. The code travels
// with the physical bundle, so it carries enough context to identify the
// material without a lookup.
type qrPayload struct {
	BundleID  string  `json:"bundle_id"`
	Serial    string  `json:"serial"`
	LineID    int     `json:"production_line_id"`
	ShapeCode string  `json:"shape_code"`
	BarMark   string  `json:"bar_mark,omitempty"`
	Quantity  int     `json:"quantity"`
	WeightKg  float64 `json:"weight_kg"`
}

// PackQuantity splits a requested quantity of achieved material into packed
// bundles. All bundles carry the nominal size except the last, which absorbs
// the remainder so the split minimizes bundle count. The packed counter and
// the bundle rows commit atomically.
func (e *Engine) PackQuantity(ctx context.Context, lineID, requested, bundleSize int, user string) ([]*models.PackingBundle, error) {
	if requested <= 0 {
		return nil, &models.InvalidQuantityError{ProductionLineID: lineID, Quantity: requested,
			Reason: "requested quantity must be positive"}
	}
	if bundleSize <= 0 {
		return nil, &models.InvalidQuantityError{ProductionLineID: lineID, Quantity: bundleSize,
			Reason: "bundle size must be positive"}
	}

	var bundles []*models.PackingBundle
	err := e.withRetry(ctx, func(tx Store) error {
		line, err := tx.GetProductionLine(ctx, lineID)
		if err != nil {
			return err
		}
		// Packed counts stock on hand, so dispatched units must stay counted
		// against the budget or they could be packed a second time.
		packable := line.AchievedQuantity - line.PackedQuantity - line.DispatchedQuantity
		if requested > packable {
			return &models.InsufficientAchievedQuantityError{ProductionLineID: lineID, Requested: requested, Packable: packable}
		}

		now := e.clock.Now()
		unitWeight := decimal.NewFromFloat(line.UnitWeightKg)
		bundles = nil
		total := 0
		for _, qty := range splitBundles(requested, bundleSize) {
			serial := e.nextSerial()
			weight := unitWeight.Mul(decimal.NewFromInt(int64(qty))).Round(3)
			mark := ""
			if line.BarMark != nil {
				mark = *line.BarMark
			}
			payload, err := json.Marshal(qrPayload{
				BundleID:  uuid.NewString(),
				Serial:    serial,
				LineID:    line.ID,
				ShapeCode: line.ShapeCode,
				BarMark:   mark,
				Quantity:  qty,
				WeightKg:  weight.InexactFloat64(),
			})
			if err != nil {
				return fmt.Errorf("failed to encode QR payload: %w", err)
			}
			bundles = append(bundles, &models.PackingBundle{
				ProductionLineID: line.ID,
				Quantity:         qty,
				BundleSize:       bundleSize,
				Stage:            models.BundlePacked,
				Serial:           serial,
				QRCode:           string(payload),
				WeightKg:         weight.InexactFloat64(),
				Version:          1,
				CreatedAt:        now,
				UpdatedAt:        now,
			})
			total += qty
		}
		// The split must account for every requested unit before anything commits.
		if total != requested {
			return fmt.Errorf("bundle split lost quantity: split %d, requested %d", total, requested)
		}

		if err := applyDelta(line, Delta{Packed: requested}); err != nil {
			return err
		}
		if err := tx.SaveProductionLine(ctx, line); err != nil {
			return err
		}
		return tx.CreateBundles(ctx, bundles)
	})
	if err != nil {
		return nil, err
	}
	e.emit(AuditEvent{Context: "Packing", Action: "Pack",
		ProductionLineID: lineID, Quantity: requested, UserName: user, Timestamp: e.clock.Now()})
	return bundles, nil
}

// splitBundles returns the per-bundle quantities for a pack request: full
// bundles of size, with the remainder folded into the last bundle rather than
// split off into an extra small one. A request below one bundle size yields a
// single bundle.
func splitBundles(requested, size int) []int {
	full := requested / size
	if full == 0 {
		return []int{requested}
	}
	out := make([]int, full)
	for i := range out {
		out[i] = size
	}
	out[full-1] += requested % size
	return out
}
