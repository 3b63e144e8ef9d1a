package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vikram2211/k2k-backend-sub000/models"
)

func TestProductionLifecycle(t *testing.T) {
	eng, store, clock, _ := newTestEngine()
	line := seedLine(store, models.ProductionLine{PlannedQuantity: 100})
	ctx := context.Background()

	rec, err := eng.OpenDailyRecord(ctx, line.ID, "operator")
	if err != nil {
		t.Fatalf("OpenDailyRecord: %v", err)
	}
	if rec.Status != models.ProductionPending {
		t.Fatalf("new record status = %q, want Pending", rec.Status)
	}

	rec, err = eng.StartProduction(ctx, rec.ID, "operator")
	if err != nil {
		t.Fatalf("StartProduction: %v", err)
	}
	if rec.Status != models.ProductionInProgress || rec.StartedAt == nil {
		t.Fatalf("after start: status=%q started_at=%v", rec.Status, rec.StartedAt)
	}

	clock.Advance(2 * time.Hour)
	rec, err = eng.PauseProduction(ctx, rec.ID, "Machine changeover", "operator")
	if err != nil {
		t.Fatalf("PauseProduction: %v", err)
	}
	if rec.Status != models.ProductionPaused {
		t.Fatalf("after pause: status=%q", rec.Status)
	}
	if len(rec.Downtime) != 1 || rec.Downtime[0].EndedAt != nil {
		t.Fatalf("pause did not open a downtime window: %+v", rec.Downtime)
	}

	clock.Advance(30 * time.Minute)
	rec, err = eng.ResumeProduction(ctx, rec.ID, "operator")
	if err != nil {
		t.Fatalf("ResumeProduction: %v", err)
	}
	if rec.Status != models.ProductionInProgress {
		t.Fatalf("after resume: status=%q", rec.Status)
	}
	if rec.Downtime[0].EndedAt == nil {
		t.Fatal("resume did not close the downtime window")
	}
	if got := rec.Downtime[0].EndedAt.Sub(rec.Downtime[0].StartedAt); got != 30*time.Minute {
		t.Errorf("downtime duration = %v, want 30m", got)
	}

	clock.Advance(time.Hour)
	rec, err = eng.StopProduction(ctx, rec.ID, "operator")
	if err != nil {
		t.Fatalf("StopProduction: %v", err)
	}
	if rec.Status != models.ProductionPendingQC || rec.StoppedAt == nil {
		t.Fatalf("after stop: status=%q stopped_at=%v", rec.Status, rec.StoppedAt)
	}

	rec, err = eng.ReviewProduction(ctx, rec.ID, true, "looks good", "supervisor")
	if err != nil {
		t.Fatalf("ReviewProduction: %v", err)
	}
	if rec.Status != models.ProductionApproved {
		t.Fatalf("after review: status=%q", rec.Status)
	}

	// Every transition left a log entry.
	wantActions := []string{
		models.ActionStart, models.ActionPause, models.ActionResume,
		models.ActionStop, models.ActionReview,
	}
	if len(rec.Logs) != len(wantActions) {
		t.Fatalf("got %d log entries, want %d: %+v", len(rec.Logs), len(wantActions), rec.Logs)
	}
	for i, action := range wantActions {
		if rec.Logs[i].Action != action {
			t.Errorf("log[%d].Action = %q, want %q", i, rec.Logs[i].Action, action)
		}
	}
}

func TestStopFromPaused(t *testing.T) {
	eng, store, _, _ := newTestEngine()
	line := seedLine(store, models.ProductionLine{PlannedQuantity: 100})
	ctx := context.Background()

	rec, _ := eng.OpenDailyRecord(ctx, line.ID, "operator")
	rec, _ = eng.StartProduction(ctx, rec.ID, "operator")
	rec, _ = eng.PauseProduction(ctx, rec.ID, "lunch", "operator")

	rec, err := eng.StopProduction(ctx, rec.ID, "operator")
	if err != nil {
		t.Fatalf("StopProduction from Paused: %v", err)
	}
	if rec.Status != models.ProductionPendingQC {
		t.Fatalf("status = %q, want Pending QC", rec.Status)
	}
	// Stopping while paused also closes the open downtime window.
	if rec.Downtime[0].EndedAt == nil {
		t.Error("stop did not close the open downtime window")
	}
}

func TestIllegalTransitions(t *testing.T) {
	eng, store, _, _ := newTestEngine()
	ctx := context.Background()

	start := func(t *testing.T, id int) {
		t.Helper()
		if _, err := eng.StartProduction(ctx, id, "operator"); err != nil {
			t.Fatalf("StartProduction: %v", err)
		}
	}
	stop := func(t *testing.T, id int) {
		t.Helper()
		if _, err := eng.StopProduction(ctx, id, "operator"); err != nil {
			t.Fatalf("StopProduction: %v", err)
		}
	}
	setup := func(t *testing.T, prepare func(t *testing.T, recID int)) int {
		line := seedLine(store, models.ProductionLine{PlannedQuantity: 100})
		rec, err := eng.OpenDailyRecord(ctx, line.ID, "operator")
		if err != nil {
			t.Fatalf("OpenDailyRecord: %v", err)
		}
		if prepare != nil {
			prepare(t, rec.ID)
		}
		return rec.ID
	}

	tests := []struct {
		name    string
		prepare func(t *testing.T, recID int)
		attempt func(recID int) error
	}{
		{
			name:    "double start",
			prepare: start,
			attempt: func(id int) error {
				_, err := eng.StartProduction(ctx, id, "operator")
				return err
			},
		},
		{
			name: "pause before start",
			attempt: func(id int) error {
				_, err := eng.PauseProduction(ctx, id, "reason", "operator")
				return err
			},
		},
		{
			name:    "resume when not paused",
			prepare: start,
			attempt: func(id int) error {
				_, err := eng.ResumeProduction(ctx, id, "operator")
				return err
			},
		},
		{
			name: "resume after stop",
			prepare: func(t *testing.T, id int) {
				start(t, id)
				stop(t, id)
			},
			attempt: func(id int) error {
				_, err := eng.ResumeProduction(ctx, id, "operator")
				return err
			},
		},
		{
			name: "stop before start",
			attempt: func(id int) error {
				_, err := eng.StopProduction(ctx, id, "operator")
				return err
			},
		},
		{
			name: "review before stop",
			attempt: func(id int) error {
				_, err := eng.ReviewProduction(ctx, id, true, "", "supervisor")
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recID := setup(t, tt.prepare)
			err := tt.attempt(recID)
			var it *models.InvalidTransitionError
			if !errors.As(err, &it) {
				t.Fatalf("got err %v, want InvalidTransitionError", err)
			}
		})
	}
}

func TestOpenDailyRecordRejectsSecondActive(t *testing.T) {
	eng, store, _, _ := newTestEngine()
	line := seedLine(store, models.ProductionLine{PlannedQuantity: 100})
	ctx := context.Background()

	first, err := eng.OpenDailyRecord(ctx, line.ID, "operator")
	if err != nil {
		t.Fatalf("OpenDailyRecord: %v", err)
	}
	if _, err := eng.OpenDailyRecord(ctx, line.ID, "operator"); err == nil {
		t.Fatal("second open succeeded while a record is active")
	}

	// Once the first record terminates, a new session may open.
	first, _ = eng.StartProduction(ctx, first.ID, "operator")
	first, _ = eng.StopProduction(ctx, first.ID, "operator")
	if _, err := eng.ReviewProduction(ctx, first.ID, true, "", "supervisor"); err != nil {
		t.Fatalf("ReviewProduction: %v", err)
	}
	if _, err := eng.OpenDailyRecord(ctx, line.ID, "operator"); err != nil {
		t.Fatalf("open after terminal record: %v", err)
	}
}

func TestOpenDailyRecordRejectsClosedLine(t *testing.T) {
	eng, store, _, _ := newTestEngine()
	line := seedLine(store, models.ProductionLine{PlannedQuantity: 100, Closed: true})

	_, err := eng.OpenDailyRecord(context.Background(), line.ID, "operator")
	var it *models.InvalidTransitionError
	if !errors.As(err, &it) {
		t.Fatalf("got err %v, want InvalidTransitionError", err)
	}
}

func TestUpdateQuantity(t *testing.T) {
	eng, store, _, _ := newTestEngine()
	line := seedLine(store, models.ProductionLine{PlannedQuantity: 100})
	ctx := context.Background()

	rec, _ := eng.OpenDailyRecord(ctx, line.ID, "operator")

	// Before start the ledger is off limits.
	if _, err := eng.UpdateQuantity(ctx, rec.ID, 10, "operator"); err == nil {
		t.Fatal("quantity update accepted before start")
	}

	rec, _ = eng.StartProduction(ctx, rec.ID, "operator")

	snapshot, err := eng.UpdateQuantity(ctx, rec.ID, 60, "operator")
	if err != nil {
		t.Fatalf("UpdateQuantity: %v", err)
	}
	if snapshot.AchievedQuantity != 60 {
		t.Errorf("achieved = %d, want 60", snapshot.AchievedQuantity)
	}

	// Plan cap: 60 + 41 > 100.
	_, err = eng.UpdateQuantity(ctx, rec.ID, 41, "operator")
	var qe *models.QuantityExceededError
	if !errors.As(err, &qe) {
		t.Fatalf("got err %v, want QuantityExceededError", err)
	}
	stored, _ := store.GetProductionLine(ctx, line.ID)
	if stored.AchievedQuantity != 60 {
		t.Errorf("achieved = %d after rejected update, want 60", stored.AchievedQuantity)
	}

	// Exactly hitting the plan is allowed.
	if _, err := eng.UpdateQuantity(ctx, rec.ID, 40, "operator"); err != nil {
		t.Fatalf("UpdateQuantity to plan: %v", err)
	}

	// Zero and negative deltas are rejected up front.
	for _, delta := range []int{0, -5} {
		_, err := eng.UpdateQuantity(ctx, rec.ID, delta, "operator")
		var iq *models.InvalidQuantityError
		if !errors.As(err, &iq) {
			t.Errorf("delta %d: got err %v, want InvalidQuantityError", delta, err)
		}
	}
}

func TestUpdateQuantityRejectsReviewedRecord(t *testing.T) {
	for _, approved := range []bool{true, false} {
		eng, store, _, _ := newTestEngine()
		line := seedLine(store, models.ProductionLine{PlannedQuantity: 100})
		ctx := context.Background()

		rec, _ := eng.OpenDailyRecord(ctx, line.ID, "operator")
		rec, _ = eng.StartProduction(ctx, rec.ID, "operator")
		if _, err := eng.UpdateQuantity(ctx, rec.ID, 30, "operator"); err != nil {
			t.Fatalf("UpdateQuantity: %v", err)
		}
		rec, _ = eng.StopProduction(ctx, rec.ID, "operator")
		rec, err := eng.ReviewProduction(ctx, rec.ID, approved, "done", "qc")
		if err != nil {
			t.Fatalf("ReviewProduction: %v", err)
		}

		// Started once, but the review closed the record for good.
		_, err = eng.UpdateQuantity(ctx, rec.ID, 10, "operator")
		var it *models.InvalidTransitionError
		if !errors.As(err, &it) {
			t.Fatalf("status %s: got err %v, want InvalidTransitionError", rec.Status, err)
		}
		stored, _ := store.GetProductionLine(ctx, line.ID)
		if stored.AchievedQuantity != 30 {
			t.Errorf("status %s: achieved = %d after rejected update, want 30", rec.Status, stored.AchievedQuantity)
		}
	}
}

func TestUpdateQuantityLogsDelta(t *testing.T) {
	eng, store, _, _ := newTestEngine()
	line := seedLine(store, models.ProductionLine{PlannedQuantity: 100})
	ctx := context.Background()

	rec, _ := eng.OpenDailyRecord(ctx, line.ID, "operator")
	rec, _ = eng.StartProduction(ctx, rec.ID, "operator")
	if _, err := eng.UpdateQuantity(ctx, rec.ID, 25, "operator"); err != nil {
		t.Fatalf("UpdateQuantity: %v", err)
	}

	stored, _ := store.GetDailyRecord(ctx, rec.ID)
	last := stored.Logs[len(stored.Logs)-1]
	if last.Action != models.ActionUpdateQuantity || last.QuantityDelta != 25 {
		t.Errorf("last log = %+v, want UpdateQuantity with delta 25", last)
	}
}
