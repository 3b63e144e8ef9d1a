package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jung-kurt/gofpdf"
	"github.com/lib/pq"

	"github.com/vikram2211/k2k-backend-sub000/engine"
	"github.com/vikram2211/k2k-backend-sub000/models"
	"github.com/vikram2211/k2k-backend-sub000/utils"
)

// CreateDispatchHandler allocates packed bundles against a dispatch request
// @Summary Create dispatch
// @Description Satisfy the requested group keys from packed bundles, oldest first. Keys that cannot be fully satisfied are skipped; compare line_items against the request to detect them. Passing the same idempotency_key replays the original record.
// @Tags Dispatch
// @Accept json
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param request body models.CreateDispatchRequest true "Dispatch request"
// @Success 201 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /api/dispatch_create [post]
func CreateDispatchHandler(db *sql.DB, eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader("Authorization")
		session, userName, err := GetSessionDetails(db, sessionID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session"})
			return
		}

		var req models.CreateDispatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "details": err.Error()})
			return
		}

		items := make([]engine.DispatchItem, 0, len(req.Items))
		for _, item := range req.Items {
			items = append(items, engine.DispatchItem{
				Key:      engine.NewGroupKey(item.BarMark, item.ShapeCode),
				Quantity: item.Quantity,
			})
		}

		record, err := eng.Dispatch(c.Request.Context(), engine.DispatchRequest{
			WorkOrderID:    req.WorkOrderID,
			IdempotencyKey: req.IdempotencyKey,
			Items:          items,
			VehicleNumber:  req.VehicleNumber,
			DriverName:     req.DriverName,
			InvoiceNumber:  req.InvoiceNumber,
		}, userName)
		if err != nil {
			respondEngineError(c, err)
			return
		}

		// Keys missing from line_items were skipped for lack of packed stock.
		skipped := skippedKeys(items, record)

		c.JSON(http.StatusCreated, gin.H{
			"message":      "Dispatch created",
			"dispatch":     record,
			"skipped_keys": skipped,
		})

		SaveNotification(db, session.UserID,
			fmt.Sprintf("Dispatch %s created (%.3f kg)", record.OrderNumber, record.TotalWeightKg), "view")

		activityLog := models.ActivityLog{
			CreatedAt:    time.Now(),
			UserName:     userName,
			HostName:     session.HostName,
			EventContext: "Dispatch",
			IPAddress:    session.IPAddress,
			Description:  fmt.Sprintf("Dispatch %s created for work order %d", record.OrderNumber, req.WorkOrderID),
			EventName:    "Create",
		}
		if err := SaveActivityLog(db, activityLog); err != nil {
			fmt.Println("Error saving activity log:", err)
		}
	}
}

// skippedKeys lists the requested group keys absent from the record's line
// items.
func skippedKeys(requested []engine.DispatchItem, record *models.DispatchRecord) []string {
	fulfilled := make(map[string]bool, len(record.LineItems))
	for _, li := range record.LineItems {
		fulfilled[li.GroupKey] = true
	}
	var skipped []string
	for _, item := range requested {
		if key := item.Key.String(); !fulfilled[key] {
			skipped = append(skipped, key)
		}
	}
	return skipped
}

// fetchDispatchRecord loads one dispatch record with its line items.
func fetchDispatchRecord(ctx context.Context, db *sql.DB, dispatchID int) (*models.DispatchRecord, error) {
	query := `
		SELECT id, work_order_id, order_number, COALESCE(idempotency_key, ''), bundle_ids,
		       vehicle_number, driver_name, invoice_number, total_weight_kg, created_by, created_at
		FROM dispatch_record WHERE id = $1`

	var rec models.DispatchRecord
	var bundleIDs pq.Int64Array
	err := db.QueryRowContext(ctx, query, dispatchID).Scan(
		&rec.ID, &rec.WorkOrderID, &rec.OrderNumber, &rec.IdempotencyKey, &bundleIDs,
		&rec.VehicleNumber, &rec.DriverName, &rec.InvoiceNumber, &rec.TotalWeightKg,
		&rec.CreatedBy, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	for _, id := range bundleIDs {
		rec.BundleIDs = append(rec.BundleIDs, int(id))
	}

	rows, err := db.QueryContext(ctx, `SELECT id, dispatch_id, group_key, quantity FROM dispatch_line_item WHERE dispatch_id = $1 ORDER BY id`, dispatchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var item models.DispatchLineItem
		if err := rows.Scan(&item.ID, &item.DispatchID, &item.GroupKey, &item.Quantity); err != nil {
			return nil, err
		}
		rec.LineItems = append(rec.LineItems, item)
	}
	return &rec, rows.Err()
}

// GetDispatchHandler returns one dispatch record
// @Summary Get dispatch
// @Tags Dispatch
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param id path int true "Dispatch ID"
// @Success 200 {object} models.SuccessResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/dispatch/{id} [get]
func GetDispatchHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader("Authorization")
		if _, _, err := GetSessionDetails(db, sessionID); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session"})
			return
		}

		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid dispatch ID"})
			return
		}

		ctx, cancel := utils.GetFastQueryContext(c.Request.Context())
		defer cancel()

		rec, err := fetchDispatchRecord(ctx, db, id)
		if err != nil {
			if err == sql.ErrNoRows {
				c.JSON(http.StatusNotFound, gin.H{"error": "Dispatch not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch dispatch", "details": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{"dispatch": rec})
	}
}

// ListDispatchesHandler lists dispatch records for a work order
// @Summary List dispatches
// @Tags Dispatch
// @Produce json
// @Param Authorization header string true "Bearer token"
// @Param work_order_id query int true "Work order ID"
// @Success 200 {object} models.SuccessResponse
// @Router /api/dispatches [get]
func ListDispatchesHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader("Authorization")
		if _, _, err := GetSessionDetails(db, sessionID); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session"})
			return
		}

		workOrderID, err := strconv.Atoi(c.Query("work_order_id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid work_order_id"})
			return
		}

		ctx, cancel := utils.GetDefaultQueryContext(c.Request.Context())
		defer cancel()

		rows, err := db.QueryContext(ctx, `SELECT id FROM dispatch_record WHERE work_order_id = $1 ORDER BY created_at DESC`, workOrderID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query dispatches", "details": err.Error()})
			return
		}
		defer rows.Close()

		var dispatches []*models.DispatchRecord
		for rows.Next() {
			var id int
			if err := rows.Scan(&id); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan dispatch", "details": err.Error()})
				return
			}
			rec, err := fetchDispatchRecord(ctx, db, id)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch dispatch", "details": err.Error()})
				return
			}
			dispatches = append(dispatches, rec)
		}

		c.JSON(http.StatusOK, gin.H{"dispatches": dispatches})
	}
}

// DispatchPDFHandler renders a dispatch note as PDF
// @Summary Dispatch note PDF
// @Tags Dispatch
// @Produce application/pdf
// @Param Authorization header string true "Bearer token"
// @Param id path int true "Dispatch ID"
// @Success 200 {file} file "PDF document"
// @Failure 404 {object} models.ErrorResponse
// @Router /api/dispatch_pdf/{id} [get]
func DispatchPDFHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader("Authorization")
		if _, _, err := GetSessionDetails(db, sessionID); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session"})
			return
		}

		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid dispatch ID"})
			return
		}

		ctx, cancel := utils.GetFastQueryContext(c.Request.Context())
		defer cancel()

		rec, err := fetchDispatchRecord(ctx, db, id)
		if err != nil {
			if err == sql.ErrNoRows {
				c.JSON(http.StatusNotFound, gin.H{"error": "Dispatch not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch dispatch", "details": err.Error()})
			return
		}

		pdf := gofpdf.New("P", "mm", "A4", "")
		pdf.AddPage()
		generateDispatchPDFHeader(pdf)
		generateDispatchPDFDetails(pdf, rec)
		generateDispatchPDFItemsTable(pdf, rec)

		var buf bytes.Buffer
		if err := pdf.Output(&buf); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate PDF", "details": err.Error()})
			return
		}

		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=dispatch_%s.pdf", rec.OrderNumber))
		c.Data(http.StatusOK, "application/pdf", buf.Bytes())
	}
}

// generateDispatchPDFHeader creates the header section of the dispatch note.
func generateDispatchPDFHeader(pdf *gofpdf.Fpdf) {
	pdf.SetFont("Arial", "B", 24)
	pdf.SetFillColor(240, 240, 240)
	pdf.Rect(10, 10, 190, 15, "F")
	pdf.SetXY(10, 12)
	pdf.Cell(190, 10, "Dispatch Note")
	pdf.Ln(20)
}

// generateDispatchPDFDetails creates the vehicle and order details section.
func generateDispatchPDFDetails(pdf *gofpdf.Fpdf, rec *models.DispatchRecord) {
	// Left side - vehicle details
	pdf.SetFont("Arial", "B", 14)
	pdf.SetFillColor(245, 245, 245)
	pdf.Rect(10, 30, 90, 10, "F")
	pdf.SetXY(10, 32)
	pdf.Cell(90, 8, "Vehicle Details")

	pdf.SetXY(10, 44)
	pdf.SetFont("Arial", "", 11)
	pdf.Cell(45, 8, "Vehicle Number:")
	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(45, 8, rec.VehicleNumber)

	pdf.SetXY(10, 52)
	pdf.SetFont("Arial", "", 11)
	pdf.Cell(45, 8, "Driver Name:")
	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(45, 8, rec.DriverName)

	pdf.SetXY(10, 60)
	pdf.SetFont("Arial", "", 11)
	pdf.Cell(45, 8, "Invoice Number:")
	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(45, 8, rec.InvoiceNumber)

	// Right side - order details
	pdf.SetFont("Arial", "B", 14)
	pdf.SetFillColor(245, 245, 245)
	pdf.Rect(105, 30, 90, 10, "F")
	pdf.SetXY(105, 32)
	pdf.Cell(90, 8, "Order Details")

	pdf.SetXY(105, 44)
	pdf.SetFont("Arial", "", 11)
	pdf.Cell(45, 8, "Order Number:")
	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(45, 8, rec.OrderNumber)

	pdf.SetXY(105, 52)
	pdf.SetFont("Arial", "", 11)
	pdf.Cell(45, 8, "Dispatch Date:")
	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(45, 8, rec.CreatedAt.Format("2006-01-02 15:04:05"))

	pdf.SetXY(105, 60)
	pdf.SetFont("Arial", "", 11)
	pdf.Cell(45, 8, "Total Weight (kg):")
	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(45, 8, fmt.Sprintf("%.3f", rec.TotalWeightKg))

	pdf.SetXY(105, 68)
	pdf.SetFont("Arial", "", 11)
	pdf.Cell(45, 8, "Created By:")
	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(45, 8, rec.CreatedBy)
}

// generateDispatchPDFItemsTable creates the line items table.
func generateDispatchPDFItemsTable(pdf *gofpdf.Fpdf, rec *models.DispatchRecord) {
	pdf.SetY(85)

	pdf.SetFont("Arial", "B", 14)
	pdf.SetFillColor(245, 245, 245)
	pdf.Rect(10, pdf.GetY(), 190, 10, "F")
	pdf.SetXY(10, pdf.GetY()+2)
	pdf.Cell(190, 8, "Dispatched Items")
	pdf.Ln(12)

	if len(rec.LineItems) == 0 {
		pdf.SetFont("Arial", "", 10)
		pdf.Cell(190, 8, "No dispatched items found.")
		pdf.Ln(10)
		return
	}

	pdf.SetFillColor(230, 230, 230)
	pdf.SetFont("Arial", "B", 10)
	pdf.Rect(10, pdf.GetY(), 190, 8, "F")
	pdf.SetXY(10, pdf.GetY())
	pdf.Cell(20, 8, "Sl. No.")
	pdf.Cell(110, 8, "Group Key (Mark - Shape/Product)")
	pdf.Cell(60, 8, "Quantity")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	total := 0
	for i, item := range rec.LineItems {
		pdf.SetXY(10, pdf.GetY())
		pdf.Cell(20, 8, strconv.Itoa(i+1))
		pdf.Cell(110, 8, item.GroupKey)
		pdf.Cell(60, 8, strconv.Itoa(item.Quantity))
		pdf.Ln(8)
		total += item.Quantity
	}

	pdf.SetFont("Arial", "B", 10)
	pdf.SetXY(10, pdf.GetY())
	pdf.Cell(130, 8, "Total")
	pdf.Cell(60, 8, strconv.Itoa(total))
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 9)
	pdf.Cell(190, 6, fmt.Sprintf("Bundles on this dispatch: %d", len(rec.BundleIDs)))
}
