package handlers

import (
	"database/sql"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/vikram2211/k2k-backend-sub000/utils"
)

// ExportDispatchRegister exports all dispatches of a work order as an Excel workbook
// @Summary Export dispatch register
// @Description One row per dispatch line item, plus a summary sheet with dispatch-level totals
// @Tags Export
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param Authorization header string true "Bearer token"
// @Param work_order_id path int true "Work order ID"
// @Success 200 {file} file "Excel file"
// @Failure 400 {object} models.ErrorResponse
// @Router /api/export_dispatch_register/{work_order_id} [get]
func ExportDispatchRegister(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader("Authorization")
		if _, _, err := GetSessionDetails(db, sessionID); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session"})
			return
		}

		workOrderID, err := strconv.Atoi(c.Param("work_order_id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid work order ID"})
			return
		}

		// Create a new Excel file
		f := excelize.NewFile()
		defer func() {
			if err := f.Close(); err != nil {
				fmt.Println("Error closing Excel file:", err)
			}
		}()

		// Create Summary Sheet
		summarySheet := "Summary"
		index, err := f.NewSheet(summarySheet)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error creating summary sheet"})
			return
		}
		f.SetActiveSheet(index)
		f.DeleteSheet("Sheet1") // Delete default sheet

		f.SetCellValue(summarySheet, "A1", "Dispatch Register")
		f.SetCellValue(summarySheet, "A2", "Work Order ID")
		f.SetCellValue(summarySheet, "B2", workOrderID)

		f.SetCellValue(summarySheet, "A4", "Order Number")
		f.SetCellValue(summarySheet, "B4", "Dispatch Date")
		f.SetCellValue(summarySheet, "C4", "Vehicle Number")
		f.SetCellValue(summarySheet, "D4", "Driver Name")
		f.SetCellValue(summarySheet, "E4", "Invoice Number")
		f.SetCellValue(summarySheet, "F4", "Total Weight (kg)")
		f.SetCellValue(summarySheet, "G4", "Created By")

		ctx, cancel := utils.GetSlowQueryContext(c.Request.Context())
		defer cancel()

		dispatchRows, err := db.QueryContext(ctx, `
			SELECT id, order_number, created_at, vehicle_number, driver_name, invoice_number,
			       total_weight_kg, created_by
			FROM dispatch_record
			WHERE work_order_id = $1
			ORDER BY created_at`, workOrderID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query dispatches", "details": err.Error()})
			return
		}
		defer dispatchRows.Close()

		type dispatchRow struct {
			id          int
			orderNumber string
		}
		var dispatches []dispatchRow
		row := 5
		totalWeight := 0.0
		for dispatchRows.Next() {
			var (
				id            int
				orderNumber   string
				createdAt     sql.NullTime
				vehicleNumber string
				driverName    string
				invoiceNumber string
				weight        float64
				createdBy     string
			)
			if err := dispatchRows.Scan(&id, &orderNumber, &createdAt, &vehicleNumber, &driverName,
				&invoiceNumber, &weight, &createdBy); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan dispatch", "details": err.Error()})
				return
			}
			f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), orderNumber)
			if createdAt.Valid {
				f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), createdAt.Time.Format("2006-01-02 15:04:05"))
			}
			f.SetCellValue(summarySheet, fmt.Sprintf("C%d", row), vehicleNumber)
			f.SetCellValue(summarySheet, fmt.Sprintf("D%d", row), driverName)
			f.SetCellValue(summarySheet, fmt.Sprintf("E%d", row), invoiceNumber)
			f.SetCellValue(summarySheet, fmt.Sprintf("F%d", row), weight)
			f.SetCellValue(summarySheet, fmt.Sprintf("G%d", row), createdBy)
			totalWeight += weight
			dispatches = append(dispatches, dispatchRow{id: id, orderNumber: orderNumber})
			row++
		}
		if err := dispatchRows.Err(); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read dispatches", "details": err.Error()})
			return
		}

		f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row+1), "Total Dispatches")
		f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row+1), len(dispatches))
		f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row+2), "Total Weight (kg)")
		f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row+2), totalWeight)

		// Create Line Items Sheet
		itemsSheet := "Line Items"
		if _, err := f.NewSheet(itemsSheet); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error creating line items sheet"})
			return
		}

		f.SetCellValue(itemsSheet, "A1", "Order Number")
		f.SetCellValue(itemsSheet, "B1", "Group Key")
		f.SetCellValue(itemsSheet, "C1", "Quantity")

		itemRow := 2
		for _, d := range dispatches {
			itemRows, err := db.QueryContext(ctx, `
				SELECT group_key, quantity FROM dispatch_line_item
				WHERE dispatch_id = $1 ORDER BY id`, d.id)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query line items", "details": err.Error()})
				return
			}
			for itemRows.Next() {
				var groupKey string
				var quantity int
				if err := itemRows.Scan(&groupKey, &quantity); err != nil {
					itemRows.Close()
					c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to scan line item", "details": err.Error()})
					return
				}
				f.SetCellValue(itemsSheet, fmt.Sprintf("A%d", itemRow), d.orderNumber)
				f.SetCellValue(itemsSheet, fmt.Sprintf("B%d", itemRow), groupKey)
				f.SetCellValue(itemsSheet, fmt.Sprintf("C%d", itemRow), quantity)
				itemRow++
			}
			if err := itemRows.Close(); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read line items", "details": err.Error()})
				return
			}
		}

		filename := fmt.Sprintf("dispatch_register_%d.xlsx", workOrderID)
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))

		// Write the Excel file to the response
		if err := f.Write(c.Writer); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to write Excel file"})
			return
		}
	}
}
