package handlers

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vikram2211/k2k-backend-sub000/engine"
	"github.com/vikram2211/k2k-backend-sub000/models"
)

// QCRejectHandler records a QC rejection against a production line
// @Summary Record QC rejection
// @Description Shrink achieved by the rejected delta and grow rejected/recycled. Each call is one physical inspection; repeated submissions accumulate.
// @Tags QC
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param line_id path int true "Production line ID"
// @Param request body models.QCRejectRequest true "Rejection deltas"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /api/qc_reject/{line_id} [post]
func QCRejectHandler(db *sql.DB, eng *engine.Engine) gin.HandlerFunc {
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

		var req models.QCRejectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
			return
		}

		check, err := eng.RejectQuantity(c.Request.Context(), lineID, req.RejectedDelta, req.RecycledDelta, req.Remarks, userName)
		if err != nil {
			respondEngineError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "QC rejection recorded", "check": check})

		activityLog := models.ActivityLog{
			CreatedAt:    time.Now(),
			UserName:     userName,
			HostName:     session.HostName,
			EventContext: "QC",
			IPAddress:    session.IPAddress,
			Description:  fmt.Sprintf("QC rejected %d (recycled %d) on line %d", req.RejectedDelta, req.RecycledDelta, lineID),
			EventName:    "Reject",
		}
		if err := SaveActivityLog(db, activityLog); err != nil {
			fmt.Println("Error saving activity log:", err)
		}
	}
}

// GetQCChecksHandler lists the QC checks recorded against a production line
// @Summary List QC checks
// @Tags QC
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param line_id path int true "Production line ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /api/qc_checks/{line_id} [get]
func GetQCChecksHandler(db *sql.DB) gin.HandlerFunc {
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

		query := `
			SELECT id, production_line_id, rejected_delta, recycled_delta, remarks, checked_by, created_at
			FROM qc_check WHERE production_line_id = $1 ORDER BY created_at DESC`

		rows, err := db.Query(query, lineID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query QC checks", "details": err.Error()})
			return
		}
		defer rows.Close()

		var checks []models.QCCheckRecord
		for rows.Next() {
			var check models.QCCheckRecord
			if err := rows.Scan(&check.ID, &check.ProductionLineID, &check.RejectedDelta, &check.RecycledDelta,
				&check.Remarks, &check.CheckedBy, &check.CreatedAt); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan QC check", "details": err.Error()})
				return
			}
			checks = append(checks, check)
		}

		c.JSON(http.StatusOK, gin.H{"checks": checks})
	}
}
