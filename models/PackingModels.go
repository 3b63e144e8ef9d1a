package models

import "time"

// Packing bundle stages
const (
	BundlePacked     = "Packed"
	BundleDispatched = "Dispatched"
	BundleDelivered  = "Delivered"
)

// PackingBundle is a physical, QR-tagged unit of packed quantity. Bundles are
// created by the packer and only ever shrink: the dispatch allocator reduces
// Quantity in place so the bundle's QR code keeps referring to what is left of
// the original pack. A bundle is never deleted.
type PackingBundle struct {
	ID               int       `json:"id" example:"1"`
	ProductionLineID int       `json:"production_line_id" example:"1"`
	Quantity         int       `json:"quantity" example:"25"`
	BundleSize       int       `json:"bundle_size" example:"25"`
	Stage            string    `json:"stage" example:"Packed"`
	Serial           string    `json:"serial" example:"1789453120034578432"`
	QRCode           string    `json:"qr_code"`
	WeightKg         float64   `json:"weight_kg" example:"118.5"`
	Version          int       `json:"version" example:"2"`
	CreatedAt        time.Time `json:"created_at" example:"2024-01-15T10:30:00Z"`
	UpdatedAt        time.Time `json:"updated_at" example:"2024-01-15T10:30:00Z"`
}
