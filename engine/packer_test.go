package engine

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/vikram2211/k2k-backend-sub000/models"
)

func TestSplitBundles(t *testing.T) {
	tests := []struct {
		name      string
		requested int
		size      int
		want      []int
	}{
		{"exact multiple", 100, 25, []int{25, 25, 25, 25}},
		{"remainder folds into last bundle", 110, 25, []int{25, 25, 25, 35}},
		{"single full bundle", 25, 25, []int{25}},
		{"below one bundle", 7, 25, []int{7}},
		{"one unit", 1, 25, []int{1}},
		{"size one", 4, 1, []int{1, 1, 1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitBundles(tt.requested, tt.size)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitBundles(%d, %d) = %v, want %v", tt.requested, tt.size, got, tt.want)
			}
			sum := 0
			for _, q := range got {
				sum += q
			}
			if sum != tt.requested {
				t.Errorf("split sums to %d, want %d", sum, tt.requested)
			}
		})
	}
}

func TestPackQuantity(t *testing.T) {
	eng, store, _, _ := newTestEngine()
	line := seedLine(store, models.ProductionLine{
		PlannedQuantity:  200,
		AchievedQuantity: 120,
		UnitWeightKg:     4.5,
		BarMark:          strptr("M12"),
	})
	ctx := context.Background()

	bundles, err := eng.PackQuantity(ctx, line.ID, 110, 25, "packer")
	if err != nil {
		t.Fatalf("PackQuantity: %v", err)
	}
	if len(bundles) != 4 {
		t.Fatalf("got %d bundles, want 4", len(bundles))
	}
	wantQty := []int{25, 25, 25, 35}
	total := 0
	serials := make(map[string]bool)
	for i, b := range bundles {
		if b.Quantity != wantQty[i] {
			t.Errorf("bundle[%d].Quantity = %d, want %d", i, b.Quantity, wantQty[i])
		}
		if b.Stage != models.BundlePacked {
			t.Errorf("bundle[%d].Stage = %q, want Packed", i, b.Stage)
		}
		if b.BundleSize != 25 {
			t.Errorf("bundle[%d].BundleSize = %d, want 25", i, b.BundleSize)
		}
		if b.Serial == "" || serials[b.Serial] {
			t.Errorf("bundle[%d] serial %q is empty or duplicated", i, b.Serial)
		}
		serials[b.Serial] = true
		wantWeight := 4.5 * float64(b.Quantity)
		if math.Abs(b.WeightKg-wantWeight) > 0.001 {
			t.Errorf("bundle[%d].WeightKg = %v, want %v", i, b.WeightKg, wantWeight)
		}
		total += b.Quantity
	}
	if total != 110 {
		t.Errorf("bundle quantities sum to %d, want 110", total)
	}

	stored, _ := store.GetProductionLine(ctx, line.ID)
	if stored.PackedQuantity != 110 {
		t.Errorf("packed counter = %d, want 110", stored.PackedQuantity)
	}
	if stored.AchievedQuantity != 120 {
		t.Errorf("achieved counter = %d, want 120 (packing does not consume achieved)", stored.AchievedQuantity)
	}
}

func TestPackQuantityQRPayload(t *testing.T) {
	eng, store, _, _ := newTestEngine()
	line := seedLine(store, models.ProductionLine{
		PlannedQuantity:  100,
		AchievedQuantity: 30,
		UnitWeightKg:     2.0,
		ShapeCode:        "BBS-16C",
		BarMark:          strptr("M7"),
	})

	bundles, err := eng.PackQuantity(context.Background(), line.ID, 30, 30, "packer")
	if err != nil {
		t.Fatalf("PackQuantity: %v", err)
	}
	var payload qrPayload
	if err := json.Unmarshal([]byte(bundles[0].QRCode), &payload); err != nil {
		t.Fatalf("QR code is not valid JSON: %v", err)
	}
	if payload.LineID != line.ID || payload.ShapeCode != "BBS-16C" || payload.BarMark != "M7" {
		t.Errorf("payload = %+v", payload)
	}
	if payload.Quantity != 30 || payload.Serial != bundles[0].Serial {
		t.Errorf("payload quantity/serial = %d/%q, want 30/%q", payload.Quantity, payload.Serial, bundles[0].Serial)
	}
}

func TestPackQuantityRespectsPackableBudget(t *testing.T) {
	eng, store, _, _ := newTestEngine()
	line := seedLine(store, models.ProductionLine{
		PlannedQuantity:  200,
		AchievedQuantity: 50,
		PackedQuantity:   40,
	})
	ctx := context.Background()

	// Only 10 units are still packable.
	_, err := eng.PackQuantity(ctx, line.ID, 11, 5, "packer")
	var ie *models.InsufficientAchievedQuantityError
	if !errors.As(err, &ie) {
		t.Fatalf("got err %v, want InsufficientAchievedQuantityError", err)
	}
	if ie.Packable != 10 {
		t.Errorf("error reports packable %d, want 10", ie.Packable)
	}

	stored, _ := store.GetProductionLine(ctx, line.ID)
	if stored.PackedQuantity != 40 {
		t.Errorf("packed counter = %d after failed pack, want 40", stored.PackedQuantity)
	}
	if len(store.bundles) != 0 {
		t.Errorf("bundles persisted for a failed pack")
	}

	// The exact remaining budget still packs.
	if _, err := eng.PackQuantity(ctx, line.ID, 10, 5, "packer"); err != nil {
		t.Fatalf("PackQuantity at budget: %v", err)
	}
}

func TestPackQuantityExcludesDispatchedStock(t *testing.T) {
	eng, store, _, _ := newTestEngine()
	// Everything achieved so far was packed and has left the yard. Packed is
	// back at zero, but nothing is packable until more material is produced.
	line := seedLine(store, models.ProductionLine{
		PlannedQuantity:    100,
		AchievedQuantity:   20,
		PackedQuantity:     0,
		DispatchedQuantity: 20,
	})
	ctx := context.Background()

	_, err := eng.PackQuantity(ctx, line.ID, 5, 5, "packer")
	var ie *models.InsufficientAchievedQuantityError
	if !errors.As(err, &ie) {
		t.Fatalf("got err %v, want InsufficientAchievedQuantityError", err)
	}
	if ie.Packable != 0 {
		t.Errorf("error reports packable %d, want 0", ie.Packable)
	}

	// A partially dispatched line only offers what was neither packed nor
	// dispatched.
	partial := seedLine(store, models.ProductionLine{
		PlannedQuantity:    100,
		AchievedQuantity:   30,
		PackedQuantity:     5,
		DispatchedQuantity: 15,
	})
	_, err = eng.PackQuantity(ctx, partial.ID, 11, 5, "packer")
	if !errors.As(err, &ie) {
		t.Fatalf("got err %v, want InsufficientAchievedQuantityError", err)
	}
	if ie.Packable != 10 {
		t.Errorf("error reports packable %d, want 10", ie.Packable)
	}
	if _, err := eng.PackQuantity(ctx, partial.ID, 10, 5, "packer"); err != nil {
		t.Fatalf("PackQuantity at budget: %v", err)
	}
}

func TestPackQuantityRejectsBadInput(t *testing.T) {
	eng, store, _, _ := newTestEngine()
	line := seedLine(store, models.ProductionLine{PlannedQuantity: 100, AchievedQuantity: 50})

	for _, tc := range []struct{ requested, size int }{
		{0, 25}, {-5, 25}, {10, 0}, {10, -1},
	} {
		_, err := eng.PackQuantity(context.Background(), line.ID, tc.requested, tc.size, "packer")
		var iq *models.InvalidQuantityError
		if !errors.As(err, &iq) {
			t.Errorf("requested=%d size=%d: got err %v, want InvalidQuantityError", tc.requested, tc.size, err)
		}
	}
}
