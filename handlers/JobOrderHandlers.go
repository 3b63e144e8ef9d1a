package handlers

import (
	"database/sql"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/vikram2211/k2k-backend-sub000/engine"
	"github.com/vikram2211/k2k-backend-sub000/models"
	"github.com/vikram2211/k2k-backend-sub000/storage"
)

// generateJobOrderNumber generates a job order number in the format "JO"
// followed by a random 6-digit number.
func generateJobOrderNumber() string {
	return fmt.Sprintf("JO%06d", rand.Intn(1000000))
}

// CreateJobOrderHandler creates a draft job order with its production lines
// @Summary Create job order
// @Description Create a draft job order with its production lines. Bar marks are normalized on write.
// @Tags JobOrders
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param request body models.CreateJobOrderRequest true "Job order payload"
// @Success 201 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /api/joborder_create [post]
func CreateJobOrderHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader("Authorization")
		session, userName, err := GetSessionDetails(db, sessionID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session"})
			return
		}

		var req models.CreateJobOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
			return
		}

		vertical := strings.ToLower(strings.TrimSpace(req.Vertical))
		if vertical != models.VerticalRebar && vertical != models.VerticalPrecast {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Vertical must be rebar or precast"})
			return
		}
		if len(req.Lines) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Job order needs at least one production line"})
			return
		}
		for i, line := range req.Lines {
			if line.PlannedQuantity <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Line %d: planned quantity must be positive", i+1)})
				return
			}
		}

		gormDB := storage.GetGormDB()
		now := time.Now()
		order := models.JobOrderGorm{
			ProjectID:   req.ProjectID,
			OrderNumber: generateJobOrderNumber(),
			Vertical:    vertical,
			Status:      models.JobOrderDraft,
			CreatedBy:   userName,
			CreatedAt:   now,
		}

		var lines []models.ProductionLineGorm
		err = gormDB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&order).Error; err != nil {
				return err
			}
			for _, line := range req.Lines {
				var mark *string
				if line.BarMark != nil {
					// Store the normalized form so dispatch group keys match exactly.
					if m := engine.NormalizeMark(*line.BarMark); m != "" {
						mark = &m
					}
				}
				lines = append(lines, models.ProductionLineGorm{
					JobOrderID:       int(order.ID),
					ShapeOrProductID: line.ShapeOrProductID,
					ShapeCode:        strings.ToUpper(strings.TrimSpace(line.ShapeCode)),
					BarMark:          mark,
					Vertical:         vertical,
					UnitWeightKg:     line.UnitWeightKg,
					PlannedQuantity:  line.PlannedQuantity,
					Version:          1,
					CreatedAt:        now,
					UpdatedAt:        now,
				})
			}
			return tx.Create(&lines).Error
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create job order", "details": err.Error()})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"message":      "Job order created",
			"job_order":    order,
			"line_count":   len(lines),
			"order_number": order.OrderNumber,
		})

		activityLog := models.ActivityLog{
			CreatedAt:    now,
			UserName:     userName,
			HostName:     session.HostName,
			EventContext: "JobOrder",
			IPAddress:    session.IPAddress,
			Description:  fmt.Sprintf("Job order %s created with %d lines", order.OrderNumber, len(lines)),
			EventName:    "Create",
			ProjectID:    req.ProjectID,
		}
		if err := SaveActivityLog(db, activityLog); err != nil {
			fmt.Println("Error saving activity log:", err)
		}
	}
}

// ConfirmJobOrderHandler confirms a draft job order
// @Summary Confirm job order
// @Description Confirm a draft job order so production may start on its lines
// @Tags JobOrders
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param id path int true "Job order ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/joborder_confirm/{id} [post]
func ConfirmJobOrderHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader("Authorization")
		session, userName, err := GetSessionDetails(db, sessionID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session"})
			return
		}

		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job order ID"})
			return
		}

		gormDB := storage.GetGormDB()
		var order models.JobOrderGorm
		if err := gormDB.First(&order, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job order not found"})
			return
		}
		if order.Status == models.JobOrderConfirmed {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Job order already confirmed"})
			return
		}

		now := time.Now()
		err = gormDB.Model(&order).Updates(map[string]interface{}{
			"status":       models.JobOrderConfirmed,
			"confirmed_at": now,
		}).Error
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to confirm job order", "details": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Job order confirmed", "job_order_id": id})

		NotifyProjectMembers(db, order.ProjectID,
			fmt.Sprintf("Job order %s confirmed, production may start", order.OrderNumber), "view")

		activityLog := models.ActivityLog{
			CreatedAt:    now,
			UserName:     userName,
			HostName:     session.HostName,
			EventContext: "JobOrder",
			IPAddress:    session.IPAddress,
			Description:  fmt.Sprintf("Job order %s confirmed", order.OrderNumber),
			EventName:    "Confirm",
			ProjectID:    order.ProjectID,
		}
		if err := SaveActivityLog(db, activityLog); err != nil {
			fmt.Println("Error saving activity log:", err)
		}
	}
}

// GetJobOrdersHandler lists job orders for a project
// @Summary List job orders
// @Tags JobOrders
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param project_id query int false "Project ID"
// @Success 200 {object} models.SuccessResponse
// @Router /api/joborders [get]
func GetJobOrdersHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader("Authorization")
		if _, _, err := GetSessionDetails(db, sessionID); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session"})
			return
		}

		gormDB := storage.GetGormDB()
		query := gormDB.Order("created_at DESC")
		if projectID := c.Query("project_id"); projectID != "" {
			pid, err := strconv.Atoi(projectID)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project_id"})
				return
			}
			query = query.Where("project_id = ?", pid)
		}

		var orders []models.JobOrderGorm
		if err := query.Find(&orders).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch job orders", "details": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"job_orders": orders})
	}
}

// GetJobOrderHandler returns one job order with its production lines
// @Summary Get job order details
// @Tags JobOrders
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param id path int true "Job order ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/joborder/{id} [get]
func GetJobOrderHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader("Authorization")
		if _, _, err := GetSessionDetails(db, sessionID); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session"})
			return
		}

		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job order ID"})
			return
		}

		gormDB := storage.GetGormDB()
		var order models.JobOrderGorm
		if err := gormDB.First(&order, id).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job order not found"})
			return
		}

		var lines []models.ProductionLineGorm
		if err := gormDB.Where("job_order_id = ?", id).Order("id").Find(&lines).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch production lines", "details": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"job_order": order, "lines": lines})
	}
}

// jobOrderConfirmedForLine checks that a production line belongs to a
// confirmed job order before any production activity is allowed on it.
func jobOrderConfirmedForLine(db *sql.DB, lineID int) (bool, error) {
	var status string
	query := `
		SELECT jo.status FROM production_line pl
		JOIN job_order jo ON pl.job_order_id = jo.id
		WHERE pl.id = $1`
	err := db.QueryRow(query, lineID).Scan(&status)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, fmt.Errorf("production line %d not found", lineID)
		}
		return false, err
	}
	return status == models.JobOrderConfirmed, nil
}
