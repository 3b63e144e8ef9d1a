package engine

import (
	"context"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/vikram2211/k2k-backend-sub000/models"
)

// packLine seeds an achieved quantity on the line and packs it into bundles of
// the given size, advancing the clock so every pack gets its own timestamp.
func packLine(t *testing.T, eng *Engine, store *memStore, clock *fixedClock, line *models.ProductionLine, quantity, size int) []*models.PackingBundle {
	t.Helper()
	if _, err := eng.ApplyDelta(context.Background(), line.ID, Delta{Achieved: quantity}); err != nil {
		t.Fatalf("seed achieved quantity: %v", err)
	}
	bundles, err := eng.PackQuantity(context.Background(), line.ID, quantity, size, "packer")
	if err != nil {
		t.Fatalf("PackQuantity: %v", err)
	}
	clock.Advance(time.Minute)
	return bundles
}

func TestDispatchFIFO(t *testing.T) {
	eng, store, clock, _ := newTestEngine()
	line := seedLine(store, models.ProductionLine{
		PlannedQuantity: 100,
		ShapeCode:       "BBS-20A",
		BarMark:         strptr("M12"),
		UnitWeightKg:    2.0,
	})
	ctx := context.Background()

	// Three bundles of 5, oldest first.
	var bundles []*models.PackingBundle
	for i := 0; i < 3; i++ {
		bundles = append(bundles, packLine(t, eng, store, clock, line, 5, 5)...)
	}

	record, err := eng.Dispatch(ctx, DispatchRequest{
		WorkOrderID: 1,
		Items:       []DispatchItem{{Key: NewGroupKey(strptr("M12"), "BBS-20A"), Quantity: 7}},
	}, "dispatcher")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	// Oldest bundle fully consumed, second shrunk in place, third untouched.
	b1 := store.bundles[bundles[0].ID]
	if b1.Quantity != 0 || b1.Stage != models.BundleDispatched {
		t.Errorf("bundle 1 = qty %d stage %q, want 0/Dispatched", b1.Quantity, b1.Stage)
	}
	b2 := store.bundles[bundles[1].ID]
	if b2.Quantity != 3 || b2.Stage != models.BundlePacked {
		t.Errorf("bundle 2 = qty %d stage %q, want 3/Packed", b2.Quantity, b2.Stage)
	}
	if wantWeight := 2.0 * 3; math.Abs(b2.WeightKg-wantWeight) > 0.001 {
		t.Errorf("bundle 2 weight = %v, want %v", b2.WeightKg, wantWeight)
	}
	b3 := store.bundles[bundles[2].ID]
	if b3.Quantity != 5 || b3.Stage != models.BundlePacked {
		t.Errorf("bundle 3 = qty %d stage %q, want 5/Packed", b3.Quantity, b3.Stage)
	}

	stored, _ := store.GetProductionLine(ctx, line.ID)
	if stored.PackedQuantity != 8 || stored.DispatchedQuantity != 7 {
		t.Errorf("ledger = packed %d dispatched %d, want 8/7", stored.PackedQuantity, stored.DispatchedQuantity)
	}

	if len(record.LineItems) != 1 || record.LineItems[0].Quantity != 7 {
		t.Errorf("line items = %+v", record.LineItems)
	}
	if !reflect.DeepEqual(record.BundleIDs, []int{bundles[0].ID, bundles[1].ID}) {
		t.Errorf("touched bundles = %v, want [%d %d]", record.BundleIDs, bundles[0].ID, bundles[1].ID)
	}
	if wantWeight := 2.0 * 7; math.Abs(record.TotalWeightKg-wantWeight) > 0.001 {
		t.Errorf("total weight = %v, want %v", record.TotalWeightKg, wantWeight)
	}
	if !strings.HasPrefix(record.OrderNumber, "DSP") {
		t.Errorf("order number = %q", record.OrderNumber)
	}
}

func TestDispatchSkipsUnderfilledKey(t *testing.T) {
	eng, store, clock, _ := newTestEngine()
	rich := seedLine(store, models.ProductionLine{
		PlannedQuantity: 100, ShapeCode: "BBS-20A", BarMark: strptr("M12"), UnitWeightKg: 1,
	})
	poor := seedLine(store, models.ProductionLine{
		PlannedQuantity: 100, ShapeCode: "BBS-16C", BarMark: strptr("M7"), UnitWeightKg: 1,
	})
	ctx := context.Background()

	packLine(t, eng, store, clock, rich, 20, 10)
	poorBundles := packLine(t, eng, store, clock, poor, 5, 5)

	record, err := eng.Dispatch(ctx, DispatchRequest{
		WorkOrderID: 1,
		Items: []DispatchItem{
			{Key: NewGroupKey(strptr("M12"), "BBS-20A"), Quantity: 15},
			{Key: NewGroupKey(strptr("M7"), "BBS-16C"), Quantity: 8}, // only 5 available
		},
	}, "dispatcher")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	// The underfilled key is skipped entirely, never partially drained.
	if len(record.LineItems) != 1 || record.LineItems[0].GroupKey != "M12-BBS-20A" {
		t.Fatalf("line items = %+v, want only M12-BBS-20A", record.LineItems)
	}
	for _, b := range poorBundles {
		stored := store.bundles[b.ID]
		if stored.Quantity != b.Quantity || stored.Stage != models.BundlePacked {
			t.Errorf("skipped key's bundle %d mutated: %+v", b.ID, stored)
		}
	}
	poorLine, _ := store.GetProductionLine(ctx, poor.ID)
	if poorLine.DispatchedQuantity != 0 || poorLine.PackedQuantity != 5 {
		t.Errorf("skipped key's ledger mutated: %+v", poorLine)
	}
}

func TestDispatchNothingToDispatch(t *testing.T) {
	eng, store, clock, _ := newTestEngine()
	line := seedLine(store, models.ProductionLine{
		PlannedQuantity: 100, ShapeCode: "BBS-20A", BarMark: strptr("M12"), UnitWeightKg: 1,
	})
	packLine(t, eng, store, clock, line, 5, 5)
	ctx := context.Background()

	_, err := eng.Dispatch(ctx, DispatchRequest{
		WorkOrderID: 9,
		Items:       []DispatchItem{{Key: NewGroupKey(strptr("M12"), "BBS-20A"), Quantity: 6}},
	}, "dispatcher")
	var nd *models.NothingToDispatchError
	if !errors.As(err, &nd) {
		t.Fatalf("got err %v, want NothingToDispatchError", err)
	}
	if len(store.dispatches) != 0 {
		t.Errorf("dispatch record persisted for empty allocation")
	}
	stored, _ := store.GetProductionLine(ctx, line.ID)
	if stored.PackedQuantity != 5 || stored.DispatchedQuantity != 0 {
		t.Errorf("ledger mutated by failed dispatch: %+v", stored)
	}
}

func TestDispatchEmptyMarkFallback(t *testing.T) {
	// Lines tagged with the "no mark" placeholder spellings feed requests whose
	// mark is empty, once the exact empty key finds nothing.
	eng, store, clock, _ := newTestEngine()
	legacy := seedLine(store, models.ProductionLine{
		PlannedQuantity: 100, ShapeCode: "BBS-20A", BarMark: strptr("null"), UnitWeightKg: 1,
	})
	packLine(t, eng, store, clock, legacy, 10, 10)
	ctx := context.Background()

	record, err := eng.Dispatch(ctx, DispatchRequest{
		WorkOrderID: 1,
		Items:       []DispatchItem{{Key: NewGroupKey(nil, "BBS-20A"), Quantity: 4}},
	}, "dispatcher")
	if err != nil {
		t.Fatalf("Dispatch with empty mark: %v", err)
	}
	if len(record.LineItems) != 1 || record.LineItems[0].Quantity != 4 {
		t.Fatalf("line items = %+v", record.LineItems)
	}
	stored, _ := store.GetProductionLine(ctx, legacy.ID)
	if stored.DispatchedQuantity != 4 {
		t.Errorf("dispatched = %d, want 4", stored.DispatchedQuantity)
	}
}

func TestDispatchEmptyMarkFallbackNotUsedForNamedMarks(t *testing.T) {
	eng, store, clock, _ := newTestEngine()
	legacy := seedLine(store, models.ProductionLine{
		PlannedQuantity: 100, ShapeCode: "BBS-20A", BarMark: strptr("null"), UnitWeightKg: 1,
	})
	packLine(t, eng, store, clock, legacy, 10, 10)

	// A named mark must never fall back onto the unmarked pool.
	_, err := eng.Dispatch(context.Background(), DispatchRequest{
		WorkOrderID: 1,
		Items:       []DispatchItem{{Key: NewGroupKey(strptr("M12"), "BBS-20A"), Quantity: 4}},
	}, "dispatcher")
	var nd *models.NothingToDispatchError
	if !errors.As(err, &nd) {
		t.Fatalf("got err %v, want NothingToDispatchError", err)
	}
}

func TestDispatchIdempotencyReplay(t *testing.T) {
	eng, store, clock, _ := newTestEngine()
	line := seedLine(store, models.ProductionLine{
		PlannedQuantity: 100, ShapeCode: "BBS-20A", BarMark: strptr("M12"), UnitWeightKg: 1,
	})
	packLine(t, eng, store, clock, line, 20, 10)
	ctx := context.Background()

	req := DispatchRequest{
		WorkOrderID:    1,
		IdempotencyKey: "client-key-42",
		Items:          []DispatchItem{{Key: NewGroupKey(strptr("M12"), "BBS-20A"), Quantity: 8}},
	}
	first, err := eng.Dispatch(ctx, req, "dispatcher")
	if err != nil {
		t.Fatalf("first dispatch: %v", err)
	}
	second, err := eng.Dispatch(ctx, req, "dispatcher")
	if err != nil {
		t.Fatalf("replayed dispatch: %v", err)
	}

	if second.ID != first.ID || second.OrderNumber != first.OrderNumber {
		t.Errorf("replay returned a new record: first %d/%s, second %d/%s",
			first.ID, first.OrderNumber, second.ID, second.OrderNumber)
	}
	if len(store.dispatches) != 1 {
		t.Errorf("got %d dispatch records, want 1", len(store.dispatches))
	}
	stored, _ := store.GetProductionLine(ctx, line.ID)
	if stored.DispatchedQuantity != 8 {
		t.Errorf("dispatched = %d after replay, want 8 (no double deduction)", stored.DispatchedQuantity)
	}
}

func TestDispatchMergesDuplicateKeys(t *testing.T) {
	eng, store, clock, _ := newTestEngine()
	line := seedLine(store, models.ProductionLine{
		PlannedQuantity: 100, ShapeCode: "BBS-20A", BarMark: strptr("M12"), UnitWeightKg: 1,
	})
	packLine(t, eng, store, clock, line, 20, 10)
	ctx := context.Background()

	record, err := eng.Dispatch(ctx, DispatchRequest{
		WorkOrderID: 1,
		Items: []DispatchItem{
			{Key: NewGroupKey(strptr("M12"), "BBS-20A"), Quantity: 3},
			{Key: NewGroupKey(strptr("m12"), "bbs-20a"), Quantity: 4},
		},
	}, "dispatcher")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(record.LineItems) != 1 || record.LineItems[0].Quantity != 7 {
		t.Fatalf("line items = %+v, want one merged item of 7", record.LineItems)
	}
}

func TestDispatchClosesLineAtPlan(t *testing.T) {
	eng, store, clock, _ := newTestEngine()
	line := seedLine(store, models.ProductionLine{
		PlannedQuantity: 10, ShapeCode: "BBS-20A", BarMark: strptr("M12"), UnitWeightKg: 1,
	})
	packLine(t, eng, store, clock, line, 10, 10)
	ctx := context.Background()

	if _, err := eng.Dispatch(ctx, DispatchRequest{
		WorkOrderID: 1,
		Items:       []DispatchItem{{Key: NewGroupKey(strptr("M12"), "BBS-20A"), Quantity: 10}},
	}, "dispatcher"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	stored, _ := store.GetProductionLine(ctx, line.ID)
	if !stored.Closed {
		t.Error("line not closed after dispatching the full plan")
	}
}

func TestDispatchRejectsBadRequests(t *testing.T) {
	eng, _, _, _ := newTestEngine()
	ctx := context.Background()

	if _, err := eng.Dispatch(ctx, DispatchRequest{WorkOrderID: 1}, "dispatcher"); err == nil {
		t.Error("empty item list accepted")
	}

	_, err := eng.Dispatch(ctx, DispatchRequest{
		WorkOrderID: 1,
		Items:       []DispatchItem{{Key: NewGroupKey(strptr("M12"), "BBS-20A"), Quantity: 0}},
	}, "dispatcher")
	var iq *models.InvalidQuantityError
	if !errors.As(err, &iq) {
		t.Errorf("zero quantity: got err %v, want InvalidQuantityError", err)
	}
}

func TestDispatchConservation(t *testing.T) {
	// achieved >= packed + nothing lost: after a produce/QC/pack/dispatch
	// sequence every unit is accounted for across the five counters.
	eng, store, clock, _ := newTestEngine()
	line := seedLine(store, models.ProductionLine{
		PlannedQuantity: 200, ShapeCode: "BBS-20A", BarMark: strptr("M12"), UnitWeightKg: 1,
	})
	ctx := context.Background()

	rec, _ := eng.OpenDailyRecord(ctx, line.ID, "operator")
	rec, _ = eng.StartProduction(ctx, rec.ID, "operator")
	if _, err := eng.UpdateQuantity(ctx, rec.ID, 150, "operator"); err != nil {
		t.Fatalf("UpdateQuantity: %v", err)
	}
	if _, err := eng.RejectQuantity(ctx, line.ID, 10, 6, "surface cracks", "inspector"); err != nil {
		t.Fatalf("RejectQuantity: %v", err)
	}
	if _, err := eng.PackQuantity(ctx, line.ID, 120, 50, "packer"); err != nil {
		t.Fatalf("PackQuantity: %v", err)
	}
	clock.Advance(time.Minute)
	if _, err := eng.Dispatch(ctx, DispatchRequest{
		WorkOrderID: 1,
		Items:       []DispatchItem{{Key: NewGroupKey(strptr("M12"), "BBS-20A"), Quantity: 70}},
	}, "dispatcher"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	stored, _ := store.GetProductionLine(ctx, line.ID)
	if stored.AchievedQuantity != 140 || stored.RejectedQuantity != 10 || stored.RecycledQuantity != 6 {
		t.Errorf("production counters = %d/%d/%d, want 140/10/6",
			stored.AchievedQuantity, stored.RejectedQuantity, stored.RecycledQuantity)
	}
	if stored.PackedQuantity != 50 || stored.DispatchedQuantity != 70 {
		t.Errorf("allocation counters = packed %d dispatched %d, want 50/70", stored.PackedQuantity, stored.DispatchedQuantity)
	}
	if stored.PackedQuantity+stored.DispatchedQuantity > stored.AchievedQuantity {
		t.Errorf("packed+dispatched %d exceeds achieved %d",
			stored.PackedQuantity+stored.DispatchedQuantity, stored.AchievedQuantity)
	}

	// Remaining bundle quantities equal the packed counter.
	remaining := 0
	for _, b := range store.bundles {
		remaining += b.Quantity
	}
	if remaining != stored.PackedQuantity {
		t.Errorf("bundle quantities sum to %d, packed counter is %d", remaining, stored.PackedQuantity)
	}
}

func TestDispatchRetriesOnConflict(t *testing.T) {
	eng, store, clock, _ := newTestEngine()
	line := seedLine(store, models.ProductionLine{
		PlannedQuantity: 100, ShapeCode: "BBS-20A", BarMark: strptr("M12"), UnitWeightKg: 1,
	})
	packLine(t, eng, store, clock, line, 10, 10)
	ctx := context.Background()

	store.conflictsToInject = 2
	record, err := eng.Dispatch(ctx, DispatchRequest{
		WorkOrderID: 1,
		Items:       []DispatchItem{{Key: NewGroupKey(strptr("M12"), "BBS-20A"), Quantity: 4}},
	}, "dispatcher")
	if err != nil {
		t.Fatalf("Dispatch after transient conflicts: %v", err)
	}
	if total := dispatchedTotal(record); total != 4 {
		t.Errorf("dispatched total = %d, want 4", total)
	}
	stored, _ := store.GetProductionLine(ctx, line.ID)
	if stored.DispatchedQuantity != 4 {
		t.Errorf("dispatched counter = %d, want 4 (exactly once despite retries)", stored.DispatchedQuantity)
	}
}
