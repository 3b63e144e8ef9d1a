package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/vikram2211/k2k-backend-sub000/models"
)

func TestApplyDelta(t *testing.T) {
	base := models.ProductionLine{
		PlannedQuantity:    100,
		AchievedQuantity:   50,
		RejectedQuantity:   5,
		RecycledQuantity:   2,
		PackedQuantity:     30,
		DispatchedQuantity: 10,
	}

	tests := []struct {
		name    string
		delta   Delta
		wantErr bool
		check   func(t *testing.T, line *models.ProductionLine)
	}{
		{
			name:  "combined delta applies atomically",
			delta: Delta{Achieved: -3, Rejected: 3, Recycled: 1},
			check: func(t *testing.T, line *models.ProductionLine) {
				if line.AchievedQuantity != 47 || line.RejectedQuantity != 8 || line.RecycledQuantity != 3 {
					t.Errorf("counters = %d/%d/%d, want 47/8/3",
						line.AchievedQuantity, line.RejectedQuantity, line.RecycledQuantity)
				}
			},
		},
		{
			name:  "pack moves achieved into packed",
			delta: Delta{Packed: 10},
			check: func(t *testing.T, line *models.ProductionLine) {
				if line.PackedQuantity != 40 {
					t.Errorf("packed = %d, want 40", line.PackedQuantity)
				}
			},
		},
		{
			// Packed counts stock on hand; a dispatch may take more than half
			// of it, all the way down to zero.
			name:  "dispatch moves packed stock into dispatched",
			delta: Delta{Packed: -25, Dispatched: 25},
			check: func(t *testing.T, line *models.ProductionLine) {
				if line.PackedQuantity != 5 || line.DispatchedQuantity != 35 {
					t.Errorf("packed/dispatched = %d/%d, want 5/35",
						line.PackedQuantity, line.DispatchedQuantity)
				}
			},
		},
		{
			name:  "dispatch drains packed stock completely",
			delta: Delta{Packed: -30, Dispatched: 30},
			check: func(t *testing.T, line *models.ProductionLine) {
				if line.PackedQuantity != 0 || line.DispatchedQuantity != 40 {
					t.Errorf("packed/dispatched = %d/%d, want 0/40",
						line.PackedQuantity, line.DispatchedQuantity)
				}
			},
		},
		{
			name:    "achieved cannot go negative",
			delta:   Delta{Achieved: -51},
			wantErr: true,
		},
		{
			name:    "cannot pack beyond achieved output",
			delta:   Delta{Packed: 11},
			wantErr: true,
		},
		{
			name:    "dispatch cannot draw more than packed stock",
			delta:   Delta{Packed: -31, Dispatched: 31},
			wantErr: true,
		},
		{
			name:    "achieved cannot drop below committed quantity",
			delta:   Delta{Achieved: -11},
			wantErr: true,
		},
		{
			name:    "dispatched cannot go negative",
			delta:   Delta{Dispatched: -11},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := base
			err := applyDelta(&line, tt.delta)
			if tt.wantErr {
				var iv *models.InvariantViolationError
				if !errors.As(err, &iv) {
					t.Fatalf("got err %v, want InvariantViolationError", err)
				}
				if line != base {
					t.Errorf("line mutated despite rejected delta: %+v", line)
				}
				return
			}
			if err != nil {
				t.Fatalf("applyDelta: %v", err)
			}
			tt.check(t, &line)
		})
	}
}

func TestApplyDeltaTransactional(t *testing.T) {
	eng, store, _, _ := newTestEngine()
	line := seedLine(store, models.ProductionLine{PlannedQuantity: 100, AchievedQuantity: 40, PackedQuantity: 10})

	snapshot, err := eng.ApplyDelta(context.Background(), line.ID, Delta{Packed: 15})
	if err != nil {
		t.Fatalf("ApplyDelta: %v", err)
	}
	if snapshot.PackedQuantity != 25 {
		t.Errorf("snapshot packed = %d, want 25", snapshot.PackedQuantity)
	}

	stored, _ := store.GetProductionLine(context.Background(), line.ID)
	if stored.PackedQuantity != 25 {
		t.Errorf("stored packed = %d, want 25", stored.PackedQuantity)
	}
	if stored.Version != line.Version+1 {
		t.Errorf("version = %d, want %d", stored.Version, line.Version+1)
	}
}

func TestApplyDeltaRetriesOnConflict(t *testing.T) {
	eng, store, _, _ := newTestEngine()
	line := seedLine(store, models.ProductionLine{PlannedQuantity: 100, AchievedQuantity: 40})

	// Two stale saves, then success on the third attempt.
	store.conflictsToInject = 2
	if _, err := eng.ApplyDelta(context.Background(), line.ID, Delta{Achieved: 5}); err != nil {
		t.Fatalf("ApplyDelta after transient conflicts: %v", err)
	}
	stored, _ := store.GetProductionLine(context.Background(), line.ID)
	if stored.AchievedQuantity != 45 {
		t.Errorf("achieved = %d, want 45", stored.AchievedQuantity)
	}
}

func TestApplyDeltaGivesUpAfterBoundedRetries(t *testing.T) {
	eng, store, _, _ := newTestEngine()
	line := seedLine(store, models.ProductionLine{PlannedQuantity: 100, AchievedQuantity: 40})

	store.conflictsToInject = maxConflictRetries
	_, err := eng.ApplyDelta(context.Background(), line.ID, Delta{Achieved: 5})
	if !errors.Is(err, models.ErrConcurrencyConflict) {
		t.Fatalf("got err %v, want ErrConcurrencyConflict", err)
	}
	stored, _ := store.GetProductionLine(context.Background(), line.ID)
	if stored.AchievedQuantity != 40 {
		t.Errorf("achieved = %d after failed operation, want 40", stored.AchievedQuantity)
	}
}
