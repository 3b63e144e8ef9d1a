package engine

import (
	"context"

	"github.com/vikram2211/k2k-backend-sub000/models"
)

// Delta is a set of counter adjustments applied together to one production
// line's ledger. Zero fields leave their counter untouched.
type Delta struct {
	Achieved   int
	Rejected   int
	Recycled   int
	Packed     int
	Dispatched int
}

// applyDelta mutates the line's counters and enforces the ledger invariants.
// Packed counts material still on hand: dispatching moves quantity from packed
// to dispatched, so cumulative packed flow is packed+dispatched and the
// ordering dispatched <= packed <= achieved over that flow comes down to two
// checks: no counter goes negative (a dispatch cannot draw below zero packed
// stock) and packed+dispatched never exceeds achieved.
// Achieved may exceed planned here; the state machine caps increments against
// the plan, while QC rejections can pull achieved back down afterwards.
//
// Every component mutates the ledger through this single gate, always on a
// line freshly read inside the surrounding transaction. Either the whole
// delta applies or the line is left untouched.
func applyDelta(line *models.ProductionLine, d Delta) error {
	achieved := line.AchievedQuantity + d.Achieved
	rejected := line.RejectedQuantity + d.Rejected
	recycled := line.RecycledQuantity + d.Recycled
	packed := line.PackedQuantity + d.Packed
	dispatched := line.DispatchedQuantity + d.Dispatched

	for _, c := range []struct {
		name  string
		value int
	}{
		{"achieved_quantity", achieved},
		{"rejected_quantity", rejected},
		{"recycled_quantity", recycled},
		{"packed_quantity", packed},
		{"dispatched_quantity", dispatched},
	} {
		if c.value < 0 {
			return &models.InvariantViolationError{ProductionLineID: line.ID, Counter: c.name, Value: c.value}
		}
	}
	if packed+dispatched > achieved {
		return &models.InvariantViolationError{ProductionLineID: line.ID, Counter: "packed_quantity", Value: packed + dispatched}
	}

	line.AchievedQuantity = achieved
	line.RejectedQuantity = rejected
	line.RecycledQuantity = recycled
	line.PackedQuantity = packed
	line.DispatchedQuantity = dispatched
	return nil
}

// ApplyDelta applies a counter delta to one production line in its own
// transaction and returns the resulting snapshot. The engine's own operations
// fold applyDelta into their larger transactions instead; this entry point
// exists for administrative corrections and tests.
func (e *Engine) ApplyDelta(ctx context.Context, lineID int, d Delta) (*models.ProductionLine, error) {
	var snapshot *models.ProductionLine
	err := e.withRetry(ctx, func(tx Store) error {
		line, err := tx.GetProductionLine(ctx, lineID)
		if err != nil {
			return err
		}
		if err := applyDelta(line, d); err != nil {
			return err
		}
		if err := tx.SaveProductionLine(ctx, line); err != nil {
			return err
		}
		snapshot = line
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}
