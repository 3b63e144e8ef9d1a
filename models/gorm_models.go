package models

import (
	"time"

	"github.com/lib/pq"
)

// GORM-compatible models with proper tags. Used by storage.AutoMigrateModels
// to create the schema; the transactional paths read and write these tables
// through raw SQL in storage/production_store.go.

// JobOrderGorm represents the job_order table with GORM tags
type JobOrderGorm struct {
	ID          uint       `gorm:"primaryKey;column:id" json:"id"`
	ProjectID   int        `gorm:"column:project_id;not null" json:"project_id"`
	OrderNumber string     `gorm:"column:order_number;uniqueIndex;not null" json:"order_number"`
	Vertical    string     `gorm:"column:vertical;not null" json:"vertical"`
	Status      string     `gorm:"column:status;not null;default:'Draft'" json:"status"`
	CreatedBy   string     `gorm:"column:created_by;not null" json:"created_by"`
	CreatedAt   time.Time  `gorm:"column:created_at;not null" json:"created_at"`
	ConfirmedAt *time.Time `gorm:"column:confirmed_at" json:"confirmed_at,omitempty"`
}

// TableName specifies the table name for JobOrderGorm
func (JobOrderGorm) TableName() string {
	return "job_order"
}

// ProductionLineGorm represents the production_line table with GORM tags
type ProductionLineGorm struct {
	ID                 uint      `gorm:"primaryKey;column:id" json:"id"`
	JobOrderID         int       `gorm:"column:job_order_id;not null;index" json:"job_order_id"`
	ShapeOrProductID   int       `gorm:"column:shape_or_product_id;not null" json:"shape_or_product_id"`
	ShapeCode          string    `gorm:"column:shape_code;not null" json:"shape_code"`
	BarMark            *string   `gorm:"column:bar_mark" json:"bar_mark,omitempty"`
	Vertical           string    `gorm:"column:vertical;not null" json:"vertical"`
	UnitWeightKg       float64   `gorm:"column:unit_weight_kg;type:numeric(10,3);default:0" json:"unit_weight_kg"`
	PlannedQuantity    int       `gorm:"column:planned_quantity;not null" json:"planned_quantity"`
	AchievedQuantity   int       `gorm:"column:achieved_quantity;not null;default:0" json:"achieved_quantity"`
	RejectedQuantity   int       `gorm:"column:rejected_quantity;not null;default:0" json:"rejected_quantity"`
	RecycledQuantity   int       `gorm:"column:recycled_quantity;not null;default:0" json:"recycled_quantity"`
	PackedQuantity     int       `gorm:"column:packed_quantity;not null;default:0" json:"packed_quantity"`
	DispatchedQuantity int       `gorm:"column:dispatched_quantity;not null;default:0" json:"dispatched_quantity"`
	Closed             bool      `gorm:"column:closed;default:false" json:"closed"`
	Version            int       `gorm:"column:version;not null;default:1" json:"version"`
	CreatedAt          time.Time `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt          time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

// TableName specifies the table name for ProductionLineGorm
func (ProductionLineGorm) TableName() string {
	return "production_line"
}

// DailyProductionRecordGorm represents the daily_production_record table with GORM tags
type DailyProductionRecordGorm struct {
	ID               uint       `gorm:"primaryKey;column:id" json:"id"`
	ProductionLineID int        `gorm:"column:production_line_id;not null;index" json:"production_line_id"`
	Status           string     `gorm:"column:status;not null;default:'Pending'" json:"status"`
	StartedAt        *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	StoppedAt        *time.Time `gorm:"column:stopped_at" json:"stopped_at,omitempty"`
	Version          int        `gorm:"column:version;not null;default:1" json:"version"`
	CreatedAt        time.Time  `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;not null" json:"updated_at"`
}

// TableName specifies the table name for DailyProductionRecordGorm
func (DailyProductionRecordGorm) TableName() string {
	return "daily_production_record"
}

// ProductionLogGorm represents the production_log table with GORM tags
type ProductionLogGorm struct {
	ID            uint      `gorm:"primaryKey;column:id" json:"id"`
	DailyRecordID int       `gorm:"column:daily_record_id;not null;index" json:"daily_record_id"`
	Action        string    `gorm:"column:action;not null" json:"action"`
	Description   string    `gorm:"column:description" json:"description"`
	QuantityDelta int       `gorm:"column:quantity_delta;default:0" json:"quantity_delta"`
	UserName      string    `gorm:"column:user_name" json:"user_name"`
	CreatedAt     time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

// TableName specifies the table name for ProductionLogGorm
func (ProductionLogGorm) TableName() string {
	return "production_log"
}

// DowntimeWindowGorm represents the downtime_window table with GORM tags
type DowntimeWindowGorm struct {
	ID            uint       `gorm:"primaryKey;column:id" json:"id"`
	DailyRecordID int        `gorm:"column:daily_record_id;not null;index" json:"daily_record_id"`
	Reason        string     `gorm:"column:reason" json:"reason"`
	StartedAt     time.Time  `gorm:"column:started_at;not null" json:"started_at"`
	EndedAt       *time.Time `gorm:"column:ended_at" json:"ended_at,omitempty"`
}

// TableName specifies the table name for DowntimeWindowGorm
func (DowntimeWindowGorm) TableName() string {
	return "downtime_window"
}

// PackingBundleGorm represents the packing_bundle table with GORM tags
type PackingBundleGorm struct {
	ID               uint      `gorm:"primaryKey;column:id" json:"id"`
	ProductionLineID int       `gorm:"column:production_line_id;not null;index" json:"production_line_id"`
	Quantity         int       `gorm:"column:quantity;not null" json:"quantity"`
	BundleSize       int       `gorm:"column:bundle_size;not null" json:"bundle_size"`
	Stage            string    `gorm:"column:stage;not null;default:'Packed'" json:"stage"`
	Serial           string    `gorm:"column:serial;uniqueIndex;not null" json:"serial"`
	QRCode           string    `gorm:"column:qr_code;not null" json:"qr_code"`
	WeightKg         float64   `gorm:"column:weight_kg;type:numeric(12,3);default:0" json:"weight_kg"`
	Version          int       `gorm:"column:version;not null;default:1" json:"version"`
	CreatedAt        time.Time `gorm:"column:created_at;not null;index" json:"created_at"`
	UpdatedAt        time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

// TableName specifies the table name for PackingBundleGorm
func (PackingBundleGorm) TableName() string {
	return "packing_bundle"
}

// QCCheckGorm represents the qc_check table with GORM tags
type QCCheckGorm struct {
	ID               uint      `gorm:"primaryKey;column:id" json:"id"`
	ProductionLineID int       `gorm:"column:production_line_id;not null;index" json:"production_line_id"`
	RejectedDelta    int       `gorm:"column:rejected_delta;not null" json:"rejected_delta"`
	RecycledDelta    int       `gorm:"column:recycled_delta;not null;default:0" json:"recycled_delta"`
	Remarks          string    `gorm:"column:remarks" json:"remarks"`
	CheckedBy        string    `gorm:"column:checked_by" json:"checked_by"`
	CreatedAt        time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

// TableName specifies the table name for QCCheckGorm
func (QCCheckGorm) TableName() string {
	return "qc_check"
}

// DispatchRecordGorm represents the dispatch_record table with GORM tags
type DispatchRecordGorm struct {
	ID             uint      `gorm:"primaryKey;column:id" json:"id"`
	WorkOrderID    int       `gorm:"column:work_order_id;not null;index" json:"work_order_id"`
	OrderNumber    string    `gorm:"column:order_number;uniqueIndex;not null" json:"order_number"`
	IdempotencyKey *string   `gorm:"column:idempotency_key;uniqueIndex" json:"idempotency_key,omitempty"`
	BundleIDs      pq.Int64Array `gorm:"column:bundle_ids;type:bigint[]" json:"bundle_ids"`
	VehicleNumber  string    `gorm:"column:vehicle_number" json:"vehicle_number"`
	DriverName     string    `gorm:"column:driver_name" json:"driver_name"`
	InvoiceNumber  string    `gorm:"column:invoice_number" json:"invoice_number"`
	TotalWeightKg  float64   `gorm:"column:total_weight_kg;type:numeric(14,3);default:0" json:"total_weight_kg"`
	CreatedBy      string    `gorm:"column:created_by" json:"created_by"`
	CreatedAt      time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

// TableName specifies the table name for DispatchRecordGorm
func (DispatchRecordGorm) TableName() string {
	return "dispatch_record"
}

// DispatchLineItemGorm represents the dispatch_line_item table with GORM tags
type DispatchLineItemGorm struct {
	ID         uint   `gorm:"primaryKey;column:id" json:"id"`
	DispatchID int    `gorm:"column:dispatch_id;not null;index" json:"dispatch_id"`
	GroupKey   string `gorm:"column:group_key;not null" json:"group_key"`
	Quantity   int    `gorm:"column:quantity;not null" json:"quantity"`
}

// TableName specifies the table name for DispatchLineItemGorm
func (DispatchLineItemGorm) TableName() string {
	return "dispatch_line_item"
}
