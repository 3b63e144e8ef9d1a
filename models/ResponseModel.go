package models

// Swagger / API docs: common request and response models referenced by handler annotations

// ErrorResponse is used in @Failure for error responses
type ErrorResponse struct {
	Error   string `json:"error" example:"Invalid input"`
	Details string `json:"details,omitempty" example:""`
}

// LoginRequest is used in @Param for login body
type LoginRequest struct {
	Email    string `json:"email" binding:"required" example:"user@example.com"`
	Password string `json:"password" binding:"required" example:"password"`
	IP       string `json:"ip" example:"192.168.1.1"`
}

// LoginResponse is used in @Success for login
type LoginResponse struct {
	Message     string    `json:"message" example:"User successfully logged in"`
	AccessToken string    `json:"access_token" example:"eyJhbGc..."`
	Role        string    `json:"role" example:"admin"`
	User        LoginUser `json:"user"`
}

// LoginUser is the user object inside LoginResponse
type LoginUser struct {
	ID    int    `json:"id" example:"1"`
	Email string `json:"email" example:"user@example.com"`
}

// SuccessResponse is used in @Success for generic success
type SuccessResponse struct {
	Message string      `json:"message" example:"Success"`
	Data    interface{} `json:"data,omitempty"`
}

// SessionResponse is used in @Success for session endpoint (swagger)
type SessionResponse struct {
	SessionID string `json:"session_id" example:"uuid"`
	UserID    int    `json:"user_id"`
	Email     string `json:"email"`
}

// ValidateSessionResponse is used in @Success for validate session (swagger)
type ValidateSessionResponse struct {
	Valid bool   `json:"valid" example:"true"`
	Email string `json:"email,omitempty"`
}

// MessageResponse is generic response for APIs that return only {"message": "..."}
type MessageResponse struct {
	Message string `json:"message" example:"Success"`
}

// PackRequest is the request body for packing achieved quantity into bundles.
type PackRequest struct {
	Quantity   int `json:"quantity" binding:"required" example:"110"`
	BundleSize int `json:"bundle_size" binding:"required" example:"25"`
}

// QCRejectRequest is the request body for recording a QC rejection.
type QCRejectRequest struct {
	RejectedDelta int    `json:"rejected_delta" binding:"required" example:"3"`
	RecycledDelta int    `json:"recycled_delta" example:"2"`
	Remarks       string `json:"remarks" example:"Bend angle out of tolerance"`
}

// QuantityUpdateRequest is the request body for an achieved-quantity increment.
type QuantityUpdateRequest struct {
	Delta int `json:"delta" binding:"required" example:"40"`
}

// ProductionLineRequest is one line item in a job order creation payload.
type ProductionLineRequest struct {
	ShapeOrProductID int     `json:"shape_or_product_id" binding:"required"`
	ShapeCode        string  `json:"shape_code" binding:"required"`
	BarMark          *string `json:"bar_mark"`
	UnitWeightKg     float64 `json:"unit_weight_kg"`
	PlannedQuantity  int     `json:"planned_quantity" binding:"required"`
}

// CreateJobOrderRequest is the request body for creating a job order.
type CreateJobOrderRequest struct {
	ProjectID int                     `json:"project_id" binding:"required"`
	Vertical  string                  `json:"vertical" binding:"required"`
	Lines     []ProductionLineRequest `json:"lines" binding:"required"`
}
