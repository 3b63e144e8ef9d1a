package models

import "time"

// Product verticals tracked by the plant.
const (
	VerticalRebar   = "rebar"
	VerticalPrecast = "precast"
)

// Job order statuses
const (
	JobOrderDraft     = "Draft"
	JobOrderConfirmed = "Confirmed"
)

// Daily production record statuses
const (
	ProductionPending    = "Pending"
	ProductionInProgress = "In Progress"
	ProductionPaused     = "Paused"
	ProductionPendingQC  = "Pending QC"
	ProductionApproved   = "Approved"
	ProductionRejected   = "Rejected"
)

// Production log actions
const (
	ActionStart          = "Start"
	ActionPause          = "Pause"
	ActionResume         = "Resume"
	ActionStop           = "Stop"
	ActionUpdateQuantity = "UpdateQuantity"
	ActionQCCheck        = "QCCheck"
	ActionReview         = "Review"
)

// JobOrder groups the production lines of one customer order for a project.
// Confirming a job order materializes its production lines.
type JobOrder struct {
	ID          int        `json:"id" example:"1"`
	ProjectID   int        `json:"project_id" example:"1"`
	OrderNumber string     `json:"order_number" example:"JO000123"`
	Vertical    string     `json:"vertical" example:"rebar"`
	Status      string     `json:"status" example:"Confirmed"`
	CreatedBy   string     `json:"created_by" example:"John Doe"`
	CreatedAt   time.Time  `json:"created_at" example:"2024-01-15T10:30:00Z"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

// ProductionLine is one planned quantity of a specific shape or product within
// a job order. Its five quantity counters (achieved, rejected, recycled,
// packed, dispatched) form the line ledger; every mutation goes through the
// engine's ledger accessor so the counters stay consistent.
type ProductionLine struct {
	ID                 int       `json:"id" example:"1"`
	JobOrderID         int       `json:"job_order_id" example:"1"`
	ShapeOrProductID   int       `json:"shape_or_product_id" example:"12"`
	ShapeCode          string    `json:"shape_code" example:"BBS-20A"`
	BarMark            *string   `json:"bar_mark,omitempty" example:"M12"`
	Vertical           string    `json:"vertical" example:"rebar"`
	UnitWeightKg       float64   `json:"unit_weight_kg" example:"4.74"`
	PlannedQuantity    int       `json:"planned_quantity" example:"500"`
	AchievedQuantity   int       `json:"achieved_quantity" example:"120"`
	RejectedQuantity   int       `json:"rejected_quantity" example:"3"`
	RecycledQuantity   int       `json:"recycled_quantity" example:"2"`
	PackedQuantity     int       `json:"packed_quantity" example:"100"`
	DispatchedQuantity int       `json:"dispatched_quantity" example:"50"`
	Closed             bool      `json:"closed" example:"false"`
	Version            int       `json:"version" example:"7"`
	CreatedAt          time.Time `json:"created_at" example:"2024-01-15T10:30:00Z"`
	UpdatedAt          time.Time `json:"updated_at" example:"2024-01-15T10:30:00Z"`
}

// ProductionLog is one append-only audit entry on a daily production record.
// QuantityDelta is zero for pure state transitions.
type ProductionLog struct {
	ID            int       `json:"id" example:"1"`
	DailyRecordID int       `json:"daily_record_id" example:"1"`
	Action        string    `json:"action" example:"Start"`
	Description   string    `json:"description" example:"Production started"`
	QuantityDelta int       `json:"quantity_delta" example:"0"`
	UserName      string    `json:"user_name" example:"John Doe"`
	CreatedAt     time.Time `json:"created_at" example:"2024-01-15T10:30:00Z"`
}

// DowntimeWindow records a pause/resume interval on a daily production record.
// EndedAt is nil while the record is still paused.
type DowntimeWindow struct {
	ID            int        `json:"id" example:"1"`
	DailyRecordID int        `json:"daily_record_id" example:"1"`
	Reason        string     `json:"reason" example:"Machine changeover"`
	StartedAt     time.Time  `json:"started_at" example:"2024-01-15T11:00:00Z"`
	EndedAt       *time.Time `json:"ended_at,omitempty"`
}

// DailyProductionRecord is the work session for one production line. At most
// one non-terminal record exists per line at a time; the engine's state
// machine owns every status change.
type DailyProductionRecord struct {
	ID               int              `json:"id" example:"1"`
	ProductionLineID int              `json:"production_line_id" example:"1"`
	Status           string           `json:"status" example:"In Progress"`
	StartedAt        *time.Time       `json:"started_at,omitempty"`
	StoppedAt        *time.Time       `json:"stopped_at,omitempty"`
	Logs             []ProductionLog  `json:"logs"`
	Downtime         []DowntimeWindow `json:"downtime"`
	Version          int              `json:"version" example:"3"`
	CreatedAt        time.Time        `json:"created_at" example:"2024-01-15T10:30:00Z"`
	UpdatedAt        time.Time        `json:"updated_at" example:"2024-01-15T10:30:00Z"`
}

// Terminal reports whether the record reached a terminal status.
func (r *DailyProductionRecord) Terminal() bool {
	return r.Status == ProductionApproved || r.Status == ProductionRejected
}

// QCCheckRecord is an immutable audit entry of one physical rejection event.
type QCCheckRecord struct {
	ID               int       `json:"id" example:"1"`
	ProductionLineID int       `json:"production_line_id" example:"1"`
	RejectedDelta    int       `json:"rejected_delta" example:"3"`
	RecycledDelta    int       `json:"recycled_delta" example:"2"`
	Remarks          string    `json:"remarks" example:"Weld spatter on hooks"`
	CheckedBy        string    `json:"checked_by" example:"Jane Doe"`
	CreatedAt        time.Time `json:"created_at" example:"2024-01-15T10:30:00Z"`
}
