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

// PackQuantityHandler packs achieved quantity into bundles
// @Summary Pack achieved quantity
// @Description Split a quantity of achieved material into bundles of the given size; the last bundle absorbs the remainder
// @Tags Packing
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param line_id path int true "Production line ID"
// @Param request body models.PackRequest true "Pack request"
// @Success 201 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /api/pack/{line_id} [post]
func PackQuantityHandler(db *sql.DB, eng *engine.Engine) gin.HandlerFunc {
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

		var req models.PackRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
			return
		}

		bundles, err := eng.PackQuantity(c.Request.Context(), lineID, req.Quantity, req.BundleSize, userName)
		if err != nil {
			respondEngineError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"message":      "Quantity packed",
			"bundle_count": len(bundles),
			"bundles":      bundles,
		})

		activityLog := models.ActivityLog{
			CreatedAt:    time.Now(),
			UserName:     userName,
			HostName:     session.HostName,
			EventContext: "Packing",
			IPAddress:    session.IPAddress,
			Description:  fmt.Sprintf("Packed %d units into %d bundles on line %d", req.Quantity, len(bundles), lineID),
			EventName:    "Pack",
		}
		if err := SaveActivityLog(db, activityLog); err != nil {
			fmt.Println("Error saving activity log:", err)
		}
	}
}

// GetBundlesHandler lists the packing bundles of a production line
// @Summary List packing bundles
// @Tags Packing
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param line_id path int true "Production line ID"
// @Param stage query string false "Filter by stage (Packed, Dispatched, Delivered)"
// @Success 200 {object} models.SuccessResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /api/bundles/{line_id} [get]
func GetBundlesHandler(db *sql.DB) gin.HandlerFunc {
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
			SELECT id, production_line_id, quantity, bundle_size, stage, serial,
			       qr_code, weight_kg, version, created_at, updated_at
			FROM packing_bundle WHERE production_line_id = $1`
		args := []interface{}{lineID}

		if stage := c.Query("stage"); stage != "" {
			args = append(args, stage)
			query += " AND stage = $2"
		}
		query += " ORDER BY created_at, id"

		rows, err := db.Query(query, args...)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query bundles", "details": err.Error()})
			return
		}
		defer rows.Close()

		var bundles []models.PackingBundle
		for rows.Next() {
			var b models.PackingBundle
			if err := rows.Scan(&b.ID, &b.ProductionLineID, &b.Quantity, &b.BundleSize, &b.Stage, &b.Serial,
				&b.QRCode, &b.WeightKg, &b.Version, &b.CreatedAt, &b.UpdatedAt); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan bundle", "details": err.Error()})
				return
			}
			bundles = append(bundles, b)
		}

		c.JSON(http.StatusOK, gin.H{"bundles": bundles})
	}
}
