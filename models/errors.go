package models

import (
	"errors"
	"fmt"
)

// ErrConcurrencyConflict is returned when an optimistic-versioned write finds
// that the record changed underneath it. The whole operation is safe to retry.
var ErrConcurrencyConflict = errors.New("record version changed, retry the operation")

// InvariantViolationError is returned when a ledger mutation would drive a
// counter negative or push packed stock plus dispatched past achieved output.
type InvariantViolationError struct {
	ProductionLineID int    `json:"production_line_id"`
	Counter          string `json:"counter"`
	Value            int    `json:"value"`
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("ledger invariant violated on production line %d: counter %s would become %d",
		e.ProductionLineID, e.Counter, e.Value)
}

// InvalidTransitionError is returned for an illegal production state machine
// action/state combination.
type InvalidTransitionError struct {
	RecordID int    `json:"record_id"`
	Action   string `json:"action"`
	Status   string `json:"status"`
	Reason   string `json:"reason"`
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s production record %d in status %q: %s",
		e.Action, e.RecordID, e.Status, e.Reason)
}

// QuantityExceededError is returned when an achieved-quantity increment would
// push the total past the planned quantity.
type QuantityExceededError struct {
	ProductionLineID int `json:"production_line_id"`
	Planned          int `json:"planned_quantity"`
	Achieved         int `json:"achieved_quantity"`
	Delta            int `json:"delta"`
}

func (e *QuantityExceededError) Error() string {
	return fmt.Sprintf("quantity update of %d on production line %d exceeds planned quantity (achieved %d, planned %d)",
		e.Delta, e.ProductionLineID, e.Achieved, e.Planned)
}

// InvalidQuantityError is returned when a caller supplies a quantity that the
// operation cannot accept, e.g. a QC rejection larger than what was achieved.
type InvalidQuantityError struct {
	ProductionLineID int    `json:"production_line_id"`
	Quantity         int    `json:"quantity"`
	Reason           string `json:"reason"`
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity %d for production line %d: %s",
		e.Quantity, e.ProductionLineID, e.Reason)
}

// InsufficientAchievedQuantityError is returned when a pack request exceeds the
// packable remainder (achieved minus packed and dispatched) of a production line.
type InsufficientAchievedQuantityError struct {
	ProductionLineID int `json:"production_line_id"`
	Requested        int `json:"requested_quantity"`
	Packable         int `json:"packable_quantity"`
}

func (e *InsufficientAchievedQuantityError) Error() string {
	return fmt.Sprintf("cannot pack %d on production line %d: only %d achieved and unpacked",
		e.Requested, e.ProductionLineID, e.Packable)
}

// NothingToDispatchError is returned when no group key of a dispatch request
// could be satisfied from packed bundles.
type NothingToDispatchError struct {
	WorkOrderID int `json:"work_order_id"`
}

func (e *NothingToDispatchError) Error() string {
	return fmt.Sprintf("no packed bundles satisfy any requested quantity for work order %d", e.WorkOrderID)
}
