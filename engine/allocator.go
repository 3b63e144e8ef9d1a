package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vikram2211/k2k-backend-sub000/models"
)

// DispatchItem is one requested group key and quantity.
type DispatchItem struct {
	Key      GroupKey
	Quantity int
}

// DispatchRequest is the allocator's input. IdempotencyKey is optional; when
// supplied, a replayed request returns the original dispatch record instead
// of deducting twice.
type DispatchRequest struct {
	WorkOrderID    int
	IdempotencyKey string
	Items          []DispatchItem
	VehicleNumber  string
	DriverName     string
	InvoiceNumber  string
}

// Dispatch satisfies the requested quantities from packed bundles, oldest
// first per group key. A bundle that only partially covers the remaining
// request is shrunk in place and stays Packed; a fully consumed bundle flips
// to Dispatched. A key whose request cannot be fully satisfied is skipped
// entirely and left out of the line items, so callers detect partial
// fulfillment by comparing line items against their request. The operation
// fails with models.NothingToDispatchError only when no key yielded anything.
func (e *Engine) Dispatch(ctx context.Context, req DispatchRequest, user string) (*models.DispatchRecord, error) {
	items, err := mergeItems(req.Items)
	if err != nil {
		return nil, err
	}

	var record *models.DispatchRecord
	err = e.withRetry(ctx, func(tx Store) error {
		if req.IdempotencyKey != "" {
			existing, err := tx.DispatchByIdempotencyKey(ctx, req.IdempotencyKey)
			if err != nil {
				return err
			}
			if existing != nil {
				record = existing
				return nil
			}
		}

		now := e.clock.Now()
		record = &models.DispatchRecord{
			WorkOrderID:    req.WorkOrderID,
			OrderNumber:    generateDispatchNumber(),
			IdempotencyKey: req.IdempotencyKey,
			VehicleNumber:  req.VehicleNumber,
			DriverName:     req.DriverName,
			InvoiceNumber:  req.InvoiceNumber,
			CreatedBy:      user,
			CreatedAt:      now,
		}

		lineDeltas := make(map[int]int)
		totalWeight := decimal.Zero

		for _, item := range items {
			bundles, err := resolveCandidates(ctx, tx, item.Key)
			if err != nil {
				return err
			}

			available := 0
			for _, b := range bundles {
				available += b.Quantity
			}
			if available < item.Quantity {
				// No partial dispatch for a single key: skip it entirely.
				continue
			}

			remaining := item.Quantity
			for _, b := range bundles {
				if remaining == 0 {
					break
				}
				take := remaining
				if b.Quantity < take {
					take = b.Quantity
				}
				totalWeight = totalWeight.Add(bundleWeight(b, take))
				shrinkBundle(b, take, now)
				if err := tx.SaveBundle(ctx, b); err != nil {
					return err
				}
				record.BundleIDs = append(record.BundleIDs, b.ID)
				lineDeltas[b.ProductionLineID] += take
				remaining -= take
			}

			record.LineItems = append(record.LineItems, models.DispatchLineItem{
				GroupKey: item.Key.String(),
				Quantity: item.Quantity,
			})
		}

		if len(record.LineItems) == 0 {
			return &models.NothingToDispatchError{WorkOrderID: req.WorkOrderID}
		}

		// Move the deducted quantity through each affected line's ledger.
		lineIDs := make([]int, 0, len(lineDeltas))
		for id := range lineDeltas {
			lineIDs = append(lineIDs, id)
		}
		sort.Ints(lineIDs)
		for _, id := range lineIDs {
			line, err := tx.GetProductionLine(ctx, id)
			if err != nil {
				return err
			}
			d := lineDeltas[id]
			if err := applyDelta(line, Delta{Packed: -d, Dispatched: d}); err != nil {
				return err
			}
			if line.DispatchedQuantity >= line.PlannedQuantity {
				line.Closed = true
			}
			if err := tx.SaveProductionLine(ctx, line); err != nil {
				return err
			}
		}

		record.TotalWeightKg = totalWeight.Round(3).InexactFloat64()
		return tx.CreateDispatch(ctx, record)
	})
	if err != nil {
		return nil, err
	}
	e.emit(AuditEvent{Context: "Dispatch", Action: "Create",
		Quantity: dispatchedTotal(record), UserName: user, Timestamp: record.CreatedAt})
	return record, nil
}

// resolveCandidates loads the FIFO-ordered packed bundles for a group key.
// When the exact key has no bundles and its mark is the empty sentinel, the
// match widens to every bundle whose line mark normalizes to empty, so lines
// tagged blank and lines tagged null end up in the same pool.
func resolveCandidates(ctx context.Context, tx Store, key GroupKey) ([]*models.PackingBundle, error) {
	bundles, err := tx.ListBundles(ctx, BundleFilter{
		ShapeCode: key.Code,
		BarMark:   key.Mark,
		Stage:     models.BundlePacked,
	})
	if err != nil {
		return nil, err
	}
	if len(bundles) == 0 && key.MarkEmpty() {
		bundles, err = tx.ListBundles(ctx, BundleFilter{
			ShapeCode:      key.Code,
			MatchEmptyMark: true,
			Stage:          models.BundlePacked,
		})
		if err != nil {
			return nil, err
		}
	}
	return bundles, nil
}

// shrinkBundle deducts take units in place. The bundle record survives with
// its QR code so the code keeps referring to what is left of the pack; only a
// fully consumed bundle leaves the Packed stage.
func shrinkBundle(b *models.PackingBundle, take int, at time.Time) {
	weight := bundleWeight(b, take)
	b.Quantity -= take
	b.WeightKg = decimal.NewFromFloat(b.WeightKg).Sub(weight).Round(3).InexactFloat64()
	if b.Quantity == 0 {
		b.Stage = models.BundleDispatched
		b.WeightKg = 0
	}
	b.UpdatedAt = at
}

// bundleWeight prorates the bundle's remaining weight over take units.
func bundleWeight(b *models.PackingBundle, take int) decimal.Decimal {
	if b.Quantity == 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(b.WeightKg).
		Div(decimal.NewFromInt(int64(b.Quantity))).
		Mul(decimal.NewFromInt(int64(take)))
}

// mergeItems validates the request and folds duplicate keys together, in a
// deterministic order independent of the caller's map iteration.
func mergeItems(items []DispatchItem) ([]DispatchItem, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("dispatch request has no items")
	}
	merged := make(map[GroupKey]int, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, &models.InvalidQuantityError{Quantity: item.Quantity,
				Reason: fmt.Sprintf("requested quantity for %s must be positive", item.Key)}
		}
		merged[item.Key] += item.Quantity
	}
	out := make([]DispatchItem, 0, len(merged))
	for key, qty := range merged {
		out = append(out, DispatchItem{Key: key, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Less(out[j].Key) })
	return out, nil
}

func dispatchedTotal(rec *models.DispatchRecord) int {
	total := 0
	for _, li := range rec.LineItems {
		total += li.Quantity
	}
	return total
}

// generateDispatchNumber generates a dispatch order number in the format
// "DSP" followed by a random 6-digit number.
func generateDispatchNumber() string {
	return fmt.Sprintf("DSP%06d", rand.Intn(1000000))
}
