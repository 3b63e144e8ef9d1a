package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/vikram2211/k2k-backend-sub000/models"
)

// The production state machine owns every status change of a daily production
// record. Transitions and their log entries commit atomically; an illegal
// action/state combination fails with models.InvalidTransitionError and
// persists nothing.

// OpenDailyRecord creates a new Pending work session for a production line.
// At most one non-terminal record may exist per line.
func (e *Engine) OpenDailyRecord(ctx context.Context, lineID int, user string) (*models.DailyProductionRecord, error) {
	var rec *models.DailyProductionRecord
	err := e.withRetry(ctx, func(tx Store) error {
		line, err := tx.GetProductionLine(ctx, lineID)
		if err != nil {
			return err
		}
		if line.Closed {
			return &models.InvalidTransitionError{Action: "open", Status: "", Reason: fmt.Sprintf("production line %d is closed", lineID)}
		}
		active, err := tx.ActiveDailyRecord(ctx, lineID)
		if err != nil {
			return err
		}
		if active != nil {
			return &models.InvalidTransitionError{RecordID: active.ID, Action: "open", Status: active.Status,
				Reason: "an active production record already exists for this line"}
		}
		now := e.clock.Now()
		rec = &models.DailyProductionRecord{
			ProductionLineID: lineID,
			Status:           models.ProductionPending,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		return tx.CreateDailyRecord(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	e.emit(AuditEvent{Context: "Production", Action: "Open", ProductionLineID: lineID, UserName: user, Timestamp: rec.CreatedAt})
	return rec, nil
}

// StartProduction moves a Pending record to In Progress and stamps started_at.
func (e *Engine) StartProduction(ctx context.Context, recordID int, user string) (*models.DailyProductionRecord, error) {
	return e.transition(ctx, recordID, models.ActionStart, user, func(rec *models.DailyProductionRecord) error {
		if rec.Status != models.ProductionPending || rec.StartedAt != nil {
			return &models.InvalidTransitionError{RecordID: rec.ID, Action: "start", Status: rec.Status,
				Reason: "production can only start once, from Pending"}
		}
		now := e.clock.Now()
		rec.Status = models.ProductionInProgress
		rec.StartedAt = &now
		e.appendLog(rec, models.ActionStart, "Production started", 0, user)
		return nil
	})
}

// PauseProduction moves an In Progress record to Paused and opens a downtime
// window.
func (e *Engine) PauseProduction(ctx context.Context, recordID int, reason, user string) (*models.DailyProductionRecord, error) {
	return e.transition(ctx, recordID, models.ActionPause, user, func(rec *models.DailyProductionRecord) error {
		if rec.Status != models.ProductionInProgress {
			return &models.InvalidTransitionError{RecordID: rec.ID, Action: "pause", Status: rec.Status,
				Reason: "only a record in progress can be paused"}
		}
		rec.Status = models.ProductionPaused
		rec.Downtime = append(rec.Downtime, models.DowntimeWindow{
			DailyRecordID: rec.ID,
			Reason:        reason,
			StartedAt:     e.clock.Now(),
		})
		e.appendLog(rec, models.ActionPause, "Production paused: "+reason, 0, user)
		return nil
	})
}

// ResumeProduction moves a Paused record back to In Progress and closes the
// open downtime window. A stopped record can never resume.
func (e *Engine) ResumeProduction(ctx context.Context, recordID int, user string) (*models.DailyProductionRecord, error) {
	return e.transition(ctx, recordID, models.ActionResume, user, func(rec *models.DailyProductionRecord) error {
		if rec.StoppedAt != nil {
			return &models.InvalidTransitionError{RecordID: rec.ID, Action: "resume", Status: rec.Status,
				Reason: "record already stopped"}
		}
		if rec.Status != models.ProductionPaused {
			return &models.InvalidTransitionError{RecordID: rec.ID, Action: "resume", Status: rec.Status,
				Reason: "only a paused record can resume"}
		}
		now := e.clock.Now()
		rec.Status = models.ProductionInProgress
		e.closeDowntime(rec, now)
		e.appendLog(rec, models.ActionResume, "Production resumed", 0, user)
		return nil
	})
}

// StopProduction moves an In Progress or Paused record to Pending QC and
// stamps stopped_at.
func (e *Engine) StopProduction(ctx context.Context, recordID int, user string) (*models.DailyProductionRecord, error) {
	return e.transition(ctx, recordID, models.ActionStop, user, func(rec *models.DailyProductionRecord) error {
		if rec.Status != models.ProductionInProgress && rec.Status != models.ProductionPaused {
			return &models.InvalidTransitionError{RecordID: rec.ID, Action: "stop", Status: rec.Status,
				Reason: "only a running or paused record can be stopped"}
		}
		now := e.clock.Now()
		rec.Status = models.ProductionPendingQC
		rec.StoppedAt = &now
		e.closeDowntime(rec, now)
		e.appendLog(rec, models.ActionStop, "Production stopped, pending QC", 0, user)
		return nil
	})
}

// ReviewProduction closes a Pending QC record as Approved or Rejected.
func (e *Engine) ReviewProduction(ctx context.Context, recordID int, approved bool, remarks, user string) (*models.DailyProductionRecord, error) {
	return e.transition(ctx, recordID, models.ActionReview, user, func(rec *models.DailyProductionRecord) error {
		if rec.Status != models.ProductionPendingQC {
			return &models.InvalidTransitionError{RecordID: rec.ID, Action: "review", Status: rec.Status,
				Reason: "only a record pending QC can be reviewed"}
		}
		if approved {
			rec.Status = models.ProductionApproved
		} else {
			rec.Status = models.ProductionRejected
		}
		e.appendLog(rec, models.ActionReview, fmt.Sprintf("Production reviewed as %s: %s", rec.Status, remarks), 0, user)
		return nil
	})
}

// UpdateQuantity increments the line's achieved quantity by delta through the
// ledger. Legal only between start and review; the new total is capped at
// the planned quantity and a violation fails with QuantityExceededError.
func (e *Engine) UpdateQuantity(ctx context.Context, recordID, delta int, user string) (*models.ProductionLine, error) {
	if delta <= 0 {
		return nil, &models.InvalidQuantityError{Quantity: delta, Reason: "quantity delta must be positive"}
	}
	var snapshot *models.ProductionLine
	err := e.withRetry(ctx, func(tx Store) error {
		rec, err := tx.GetDailyRecord(ctx, recordID)
		if err != nil {
			return err
		}
		if rec.StartedAt == nil {
			return &models.InvalidTransitionError{RecordID: rec.ID, Action: "update_quantity", Status: rec.Status,
				Reason: "production has not started"}
		}
		if rec.Terminal() {
			return &models.InvalidTransitionError{RecordID: rec.ID, Action: "update_quantity", Status: rec.Status,
				Reason: "record already reviewed"}
		}
		line, err := tx.GetProductionLine(ctx, rec.ProductionLineID)
		if err != nil {
			return err
		}
		if line.AchievedQuantity+delta > line.PlannedQuantity {
			return &models.QuantityExceededError{
				ProductionLineID: line.ID,
				Planned:          line.PlannedQuantity,
				Achieved:         line.AchievedQuantity,
				Delta:            delta,
			}
		}
		if err := applyDelta(line, Delta{Achieved: delta}); err != nil {
			return err
		}
		if err := tx.SaveProductionLine(ctx, line); err != nil {
			return err
		}
		e.appendLog(rec, models.ActionUpdateQuantity, fmt.Sprintf("Achieved quantity increased by %d", delta), delta, user)
		if err := tx.SaveDailyRecord(ctx, rec); err != nil {
			return err
		}
		snapshot = line
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.emit(AuditEvent{Context: "Production", Action: models.ActionUpdateQuantity,
		ProductionLineID: snapshot.ID, Quantity: delta, UserName: user, Timestamp: e.clock.Now()})
	return snapshot, nil
}

// transition wraps the common read/mutate/save cycle of a state change.
func (e *Engine) transition(ctx context.Context, recordID int, action, user string,
	mutate func(rec *models.DailyProductionRecord) error) (*models.DailyProductionRecord, error) {

	var out *models.DailyProductionRecord
	err := e.withRetry(ctx, func(tx Store) error {
		rec, err := tx.GetDailyRecord(ctx, recordID)
		if err != nil {
			return err
		}
		if err := mutate(rec); err != nil {
			return err
		}
		rec.UpdatedAt = e.clock.Now()
		if err := tx.SaveDailyRecord(ctx, rec); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.emit(AuditEvent{Context: "Production", Action: action,
		ProductionLineID: out.ProductionLineID, UserName: user, Timestamp: e.clock.Now()})
	return out, nil
}

func (e *Engine) appendLog(rec *models.DailyProductionRecord, action, description string, delta int, user string) {
	rec.Logs = append(rec.Logs, models.ProductionLog{
		DailyRecordID: rec.ID,
		Action:        action,
		Description:   description,
		QuantityDelta: delta,
		UserName:      user,
		CreatedAt:     e.clock.Now(),
	})
}

// closeDowntime stamps the end of the most recent open downtime window.
func (e *Engine) closeDowntime(rec *models.DailyProductionRecord, at time.Time) {
	for i := len(rec.Downtime) - 1; i >= 0; i-- {
		if rec.Downtime[i].EndedAt == nil {
			end := at
			rec.Downtime[i].EndedAt = &end
			return
		}
	}
}
