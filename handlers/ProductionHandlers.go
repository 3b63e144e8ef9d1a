package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vikram2211/k2k-backend-sub000/engine"
	"github.com/vikram2211/k2k-backend-sub000/models"
	"github.com/vikram2211/k2k-backend-sub000/storage"
)

// respondEngineError translates engine failures into HTTP responses. Business
// rule violations are client errors; anything unrecognized is a 500.
func respondEngineError(c *gin.Context, err error) {
	var (
		transitionErr   *models.InvalidTransitionError
		quantityErr     *models.InvalidQuantityError
		exceededErr     *models.QuantityExceededError
		invariantErr    *models.InvariantViolationError
		insufficientErr *models.InsufficientAchievedQuantityError
		nothingErr      *models.NothingToDispatchError
	)
	switch {
	case errors.As(err, &transitionErr):
		c.JSON(http.StatusConflict, gin.H{"error": transitionErr.Error()})
	case errors.As(err, &exceededErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": exceededErr.Error()})
	case errors.As(err, &quantityErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": quantityErr.Error()})
	case errors.As(err, &insufficientErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": insufficientErr.Error()})
	case errors.As(err, &invariantErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": invariantErr.Error()})
	case errors.As(err, &nothingErr):
		c.JSON(http.StatusConflict, gin.H{"error": nothingErr.Error()})
	case errors.Is(err, models.ErrConcurrencyConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Record was modified concurrently, please retry"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// activeRecordID resolves the line's active daily production record.
func activeRecordID(c *gin.Context, db *sql.DB, lineID int) (int, bool) {
	store := storage.NewProductionStore(db)
	rec, err := store.ActiveDailyRecord(c.Request.Context(), lineID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch production record", "details": err.Error()})
		return 0, false
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No active production record for this line"})
		return 0, false
	}
	return rec.ID, true
}

func lineIDParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("line_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid production line ID"})
		return 0, false
	}
	return id, true
}

func logProductionActivity(db *sql.DB, session models.Session, userName, description, eventName string) {
	activityLog := models.ActivityLog{
		CreatedAt:    time.Now(),
		UserName:     userName,
		HostName:     session.HostName,
		EventContext: "Production",
		IPAddress:    session.IPAddress,
		Description:  description,
		EventName:    eventName,
	}
	if err := SaveActivityLog(db, activityLog); err != nil {
		fmt.Println("Error saving activity log:", err)
	}
}

// StartProductionHandler starts production on a line
// @Summary Start production
// @Description Open a work session on the line if none is active and start it
// @Tags Production
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param line_id path int true "Production line ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /api/production_start/{line_id} [post]
func StartProductionHandler(db *sql.DB, eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader("Authorization")
		session, userName, err := GetSessionDetails(db, sessionID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session"})
			return
		}
		lineID, ok := lineIDParam(c)
		if !ok {
			return
		}

		confirmed, err := jobOrderConfirmedForLine(db, lineID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		if !confirmed {
			c.JSON(http.StatusConflict, gin.H{"error": "Job order is not confirmed"})
			return
		}

		ctx := c.Request.Context()
		store := storage.NewProductionStore(db)
		rec, err := store.ActiveDailyRecord(ctx, lineID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch production record", "details": err.Error()})
			return
		}
		if rec == nil {
			rec, err = eng.OpenDailyRecord(ctx, lineID, userName)
			if err != nil {
				respondEngineError(c, err)
				return
			}
		}

		rec, err = eng.StartProduction(ctx, rec.ID, userName)
		if err != nil {
			respondEngineError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Production started", "record": rec})
		logProductionActivity(db, session, userName,
			fmt.Sprintf("Production started on line %d", lineID), "Start")
	}
}

// PauseProductionHandler pauses production on a line
// @Summary Pause production
// @Tags Production
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param line_id path int true "Production line ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /api/production_pause/{line_id} [post]
func PauseProductionHandler(db *sql.DB, eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader("Authorization")
		session, userName, err := GetSessionDetails(db, sessionID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session"})
			return
		}
		lineID, ok := lineIDParam(c)
		if !ok {
			return
		}

		var body struct {
			Reason string `json:"reason"`
		}
		// Reason is optional; an empty body is fine.
		_ = c.ShouldBindJSON(&body)
		if body.Reason == "" {
			body.Reason = "Unspecified"
		}

		recID, ok := activeRecordID(c, db, lineID)
		if !ok {
			return
		}

		rec, err := eng.PauseProduction(c.Request.Context(), recID, body.Reason, userName)
		if err != nil {
			respondEngineError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Production paused", "record": rec})
		logProductionActivity(db, session, userName,
			fmt.Sprintf("Production paused on line %d: %s", lineID, body.Reason), "Pause")
	}
}

// ResumeProductionHandler resumes paused production on a line
// @Summary Resume production
// @Tags Production
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param line_id path int true "Production line ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /api/production_resume/{line_id} [post]
func ResumeProductionHandler(db *sql.DB, eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader("Authorization")
		session, userName, err := GetSessionDetails(db, sessionID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session"})
			return
		}
		lineID, ok := lineIDParam(c)
		if !ok {
			return
		}
		recID, ok := activeRecordID(c, db, lineID)
		if !ok {
			return
		}

		rec, err := eng.ResumeProduction(c.Request.Context(), recID, userName)
		if err != nil {
			respondEngineError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Production resumed", "record": rec})
		logProductionActivity(db, session, userName,
			fmt.Sprintf("Production resumed on line %d", lineID), "Resume")
	}
}

// StopProductionHandler stops production on a line, moving it to QC review
// @Summary Stop production
// @Tags Production
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param line_id path int true "Production line ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /api/production_stop/{line_id} [post]
func StopProductionHandler(db *sql.DB, eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader("Authorization")
		session, userName, err := GetSessionDetails(db, sessionID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session"})
			return
		}
		lineID, ok := lineIDParam(c)
		if !ok {
			return
		}
		recID, ok := activeRecordID(c, db, lineID)
		if !ok {
			return
		}

		rec, err := eng.StopProduction(c.Request.Context(), recID, userName)
		if err != nil {
			respondEngineError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Production stopped, pending QC", "record": rec})
		logProductionActivity(db, session, userName,
			fmt.Sprintf("Production stopped on line %d", lineID), "Stop")
	}
}

// UpdateQuantityHandler increments the achieved quantity on a line
// @Summary Update achieved quantity
// @Description Increment the line's achieved quantity through the ledger
// @Tags Production
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param line_id path int true "Production line ID"
// @Param request body models.QuantityUpdateRequest true "Quantity delta"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /api/production_quantity/{line_id} [post]
func UpdateQuantityHandler(db *sql.DB, eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader("Authorization")
		session, userName, err := GetSessionDetails(db, sessionID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session"})
			return
		}
		lineID, ok := lineIDParam(c)
		if !ok {
			return
		}

		var req models.QuantityUpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
			return
		}

		recID, ok := activeRecordID(c, db, lineID)
		if !ok {
			return
		}

		line, err := eng.UpdateQuantity(c.Request.Context(), recID, req.Delta, userName)
		if err != nil {
			respondEngineError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Quantity updated", "line": line})
		logProductionActivity(db, session, userName,
			fmt.Sprintf("Achieved quantity on line %d increased by %d", lineID, req.Delta), "UpdateQuantity")
	}
}

// ReviewProductionHandler reviews a stopped work session
// @Summary Review production
// @Description Close a Pending QC work session as Approved or Rejected
// @Tags Production
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param line_id path int true "Production line ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /api/production_review/{line_id} [post]
func ReviewProductionHandler(db *sql.DB, eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader("Authorization")
		session, userName, err := GetSessionDetails(db, sessionID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session"})
			return
		}
		lineID, ok := lineIDParam(c)
		if !ok {
			return
		}

		var body struct {
			Approved bool   `json:"approved"`
			Remarks  string `json:"remarks"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
			return
		}

		recID, ok := activeRecordID(c, db, lineID)
		if !ok {
			return
		}

		rec, err := eng.ReviewProduction(c.Request.Context(), recID, body.Approved, body.Remarks, userName)
		if err != nil {
			respondEngineError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Production reviewed", "record": rec})
		logProductionActivity(db, session, userName,
			fmt.Sprintf("Production on line %d reviewed as %s", lineID, rec.Status), "Review")
	}
}

// GetProductionRecordHandler returns the line's active work session with its
// logs and downtime windows
// @Summary Get active production record
// @Tags Production
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param line_id path int true "Production line ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/production_record/{line_id} [get]
func GetProductionRecordHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader("Authorization")
		if _, _, err := GetSessionDetails(db, sessionID); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session"})
			return
		}
		lineID, ok := lineIDParam(c)
		if !ok {
			return
		}

		store := storage.NewProductionStore(db)
		rec, err := store.ActiveDailyRecord(c.Request.Context(), lineID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch production record", "details": err.Error()})
			return
		}
		if rec == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "No active production record for this line"})
			return
		}

		line, err := store.GetProductionLine(c.Request.Context(), lineID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch production line", "details": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"record": rec, "line": line})
	}
}
