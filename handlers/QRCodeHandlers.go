package handlers

import (
	"bytes"
	"database/sql"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/inconsolata"
	"golang.org/x/image/math/fixed"
)

// addLabel adds text to an image at the specified position with larger font
func addLabel(img *image.RGBA, x, y int, label string, fontSize float64) {
	col := color.RGBA{0, 0, 0, 255}

	// Use inconsolata font which is larger and more readable
	face := inconsolata.Regular8x16
	if fontSize > 16 {
		// Scale the font for larger sizes
		face = inconsolata.Bold8x16
	}

	point := fixed.Point26_6{
		X: fixed.Int26_6(x * 64),
		Y: fixed.Int26_6(y * 64),
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  point,
	}
	d.DrawString(label)
}

// addLabelBold adds bold text with larger font for labels
func addLabelBold(img *image.RGBA, x, y int, label string) {
	col := color.RGBA{30, 30, 30, 255} // Darker color for labels
	face := inconsolata.Bold8x16

	point := fixed.Point26_6{
		X: fixed.Int26_6(x * 64),
		Y: fixed.Int26_6(y * 64),
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  point,
	}
	d.DrawString(label)
}

// GenerateBundleQRCodeJPEG godoc
// @Summary      Generate bundle QR label as JPEG
// @Description  Render the bundle's QR payload with a human-readable label strip
// @Tags         qr
// @Param        Authorization header string true "Bearer token"
// @Param        bundle_id   path      int  true  "Bundle ID"
// @Success      200  {file}    file  "JPEG image"
// @Failure      400  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /api/generate-qr/{bundle_id} [get]
func GenerateBundleQRCodeJPEG(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader("Authorization")
		if _, _, err := GetSessionDetails(db, sessionID); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session"})
			return
		}

		bundleID, err := strconv.Atoi(c.Param("bundle_id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid bundle ID"})
			return
		}

		// The QR payload was written at pack time; the label strip shows the
		// current quantity, which may be lower after partial dispatch.
		var (
			serial    string
			payload   string
			quantity  int
			weightKg  float64
			stage     string
			shapeCode string
			barMark   sql.NullString
		)
		err = db.QueryRow(`
			SELECT b.serial, b.qr_code, b.quantity, b.weight_kg, b.stage,
			       pl.shape_code, pl.bar_mark
			FROM packing_bundle b
			JOIN production_line pl ON b.production_line_id = pl.id
			WHERE b.id = $1`, bundleID).
			Scan(&serial, &payload, &quantity, &weightKg, &stage, &shapeCode, &barMark)
		if err != nil {
			if err == sql.ErrNoRows {
				c.JSON(http.StatusNotFound, gin.H{"error": "Bundle not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch bundle", "details": err.Error()})
			return
		}

		barMarkStr := "-"
		if barMark.Valid && barMark.String != "" {
			barMarkStr = barMark.String
		}

		qr, err := qrcode.New(payload, qrcode.Medium)
		if err != nil {
			c.String(http.StatusInternalServerError, "QR code generation failed")
			return
		}

		qrImg := qr.Image(512)

		// Calculate dimensions for the combined image
		qrSize := qrImg.Bounds().Dy()
		padding := 30
		lineHeight := 28
		textAreaHeight := 5*lineHeight + padding // Space for 5 lines of text with extra padding
		totalHeight := qrSize + padding + textAreaHeight

		// Create a new RGBA image with white background
		combinedImg := image.NewRGBA(image.Rect(0, 0, qrSize, totalHeight))
		draw.Draw(combinedImg, combinedImg.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)

		// Draw QR code at the top
		qrRect := image.Rect(0, 0, qrSize, qrSize)
		draw.Draw(combinedImg, qrRect, qrImg, image.Point{}, draw.Src)

		// Draw a subtle separator line between QR code and text
		separatorY := qrSize + padding/2
		for x := 0; x < qrSize; x++ {
			combinedImg.Set(x, separatorY, color.RGBA{200, 200, 200, 255})
		}

		startY := qrSize + padding + lineHeight
		xPos := 20

		addLabelBold(combinedImg, xPos, startY, "Serial:")
		serialDisplay := serial
		if len(serialDisplay) > 30 {
			serialDisplay = serialDisplay[:27] + "..."
		}
		addLabel(combinedImg, xPos+120, startY, serialDisplay, 16)

		addLabelBold(combinedImg, xPos, startY+lineHeight, "Shape Code:")
		addLabel(combinedImg, xPos+120, startY+lineHeight, shapeCode, 16)

		addLabelBold(combinedImg, xPos, startY+2*lineHeight, "Bar Mark:")
		addLabel(combinedImg, xPos+120, startY+2*lineHeight, barMarkStr, 16)

		addLabelBold(combinedImg, xPos, startY+3*lineHeight, "Quantity:")
		addLabel(combinedImg, xPos+120, startY+3*lineHeight, fmt.Sprintf("%d (%s)", quantity, stage), 16)

		addLabelBold(combinedImg, xPos, startY+4*lineHeight, "Weight (kg):")
		addLabel(combinedImg, xPos+120, startY+4*lineHeight, fmt.Sprintf("%.3f", weightKg), 16)

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, combinedImg, nil); err != nil {
			c.String(http.StatusInternalServerError, "JPEG encoding failed")
			return
		}

		c.Data(http.StatusOK, "image/jpeg", buf.Bytes())
	}
}
