package models

import "time"

// DispatchLineItem is one group key's actually-dispatched quantity on a
// dispatch record. Requested quantities that could not be fully satisfied are
// skipped per key, so callers compare line items against their request to
// detect partial fulfillment.
type DispatchLineItem struct {
	ID         int    `json:"id" example:"1"`
	DispatchID int    `json:"dispatch_id" example:"1"`
	GroupKey   string `json:"group_key" example:"M12-BBS-20A"`
	Quantity   int    `json:"quantity" example:"50"`
}

// DispatchRecord is a shipment event aggregating one or more packing bundles.
// Create-once: corrections are modeled as new dispatches, not mutation.
type DispatchRecord struct {
	ID             int                `json:"id" example:"1"`
	WorkOrderID    int                `json:"work_order_id" example:"1"`
	OrderNumber    string             `json:"order_number" example:"DSP000817"`
	IdempotencyKey string             `json:"idempotency_key,omitempty" example:"5f3b1f0e-8c1e-4a7e-9c0a-2c6d1a9be111"`
	LineItems      []DispatchLineItem `json:"line_items"`
	BundleIDs      []int              `json:"bundle_ids"`
	VehicleNumber  string             `json:"vehicle_number" example:"MH12AB1234"`
	DriverName     string             `json:"driver_name" example:"R. Kumar"`
	InvoiceNumber  string             `json:"invoice_number,omitempty" example:"INV-2024-0042"`
	TotalWeightKg  float64            `json:"total_weight_kg" example:"2370.5"`
	CreatedBy      string             `json:"created_by" example:"John Doe"`
	CreatedAt      time.Time          `json:"created_at" example:"2024-01-15T10:30:00Z"`
}

// DispatchRequestItem is one requested group key in a dispatch creation call.
type DispatchRequestItem struct {
	BarMark   *string `json:"bar_mark"`
	ShapeCode string  `json:"shape_code" binding:"required"`
	Quantity  int     `json:"quantity" binding:"required"`
}

// CreateDispatchRequest is the request body for creating a dispatch.
type CreateDispatchRequest struct {
	WorkOrderID    int                   `json:"work_order_id" binding:"required"`
	IdempotencyKey string                `json:"idempotency_key"`
	Items          []DispatchRequestItem `json:"items" binding:"required"`
	VehicleNumber  string                `json:"vehicle_number"`
	DriverName     string                `json:"driver_name"`
	InvoiceNumber  string                `json:"invoice_number"`
}
