package engine

import (
	"context"
	"fmt"

	"github.com/vikram2211/k2k-backend-sub000/models"
)

// RejectQuantity converts one physical QC rejection event into a ledger
// mutation: achieved shrinks by rejectedDelta, rejected and recycled grow by
// their deltas, and an immutable QC check record is persisted. The binding
// guard is that achieved may not go negative; a rejection larger than the
// current achieved quantity fails with models.InvalidQuantityError and leaves
// everything unchanged.
//
// Repeated identical submissions accumulate on purpose: every call represents
// a new physical inspection, so this step is not idempotent.
func (e *Engine) RejectQuantity(ctx context.Context, lineID, rejectedDelta, recycledDelta int, remarks, user string) (*models.QCCheckRecord, error) {
	if rejectedDelta <= 0 {
		return nil, &models.InvalidQuantityError{ProductionLineID: lineID, Quantity: rejectedDelta,
			Reason: "rejected delta must be positive"}
	}
	if recycledDelta < 0 {
		return nil, &models.InvalidQuantityError{ProductionLineID: lineID, Quantity: recycledDelta,
			Reason: "recycled delta cannot be negative"}
	}

	var check *models.QCCheckRecord
	err := e.withRetry(ctx, func(tx Store) error {
		line, err := tx.GetProductionLine(ctx, lineID)
		if err != nil {
			return err
		}
		if line.AchievedQuantity-rejectedDelta < 0 {
			return &models.InvalidQuantityError{ProductionLineID: lineID, Quantity: rejectedDelta,
				Reason: fmt.Sprintf("rejection exceeds achieved quantity %d", line.AchievedQuantity)}
		}
		if err := applyDelta(line, Delta{Achieved: -rejectedDelta, Rejected: rejectedDelta, Recycled: recycledDelta}); err != nil {
			return err
		}
		if err := tx.SaveProductionLine(ctx, line); err != nil {
			return err
		}

		check = &models.QCCheckRecord{
			ProductionLineID: lineID,
			RejectedDelta:    rejectedDelta,
			RecycledDelta:    recycledDelta,
			Remarks:          remarks,
			CheckedBy:        user,
			CreatedAt:        e.clock.Now(),
		}
		if err := tx.CreateQCCheck(ctx, check); err != nil {
			return err
		}

		// Mirror the inspection on the active work session's log, if one is open.
		rec, err := tx.ActiveDailyRecord(ctx, lineID)
		if err != nil {
			return err
		}
		if rec != nil {
			e.appendLog(rec, models.ActionQCCheck,
				fmt.Sprintf("QC rejected %d (recycled %d): %s", rejectedDelta, recycledDelta, remarks), -rejectedDelta, user)
			if err := tx.SaveDailyRecord(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.emit(AuditEvent{Context: "QC", Action: models.ActionQCCheck,
		ProductionLineID: lineID, Quantity: rejectedDelta, UserName: user, Timestamp: check.CreatedAt})
	return check, nil
}
