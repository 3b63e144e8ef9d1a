// @title           K2K Production API
// @version         1.0
// @description     Production, QC, packing and dispatch backend for the rebar and precast verticals.

// @contact.name   API Support

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

// @schemes http https
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/vikram2211/k2k-backend-sub000/docs"
	"github.com/vikram2211/k2k-backend-sub000/engine"
	"github.com/vikram2211/k2k-backend-sub000/handlers"
	"github.com/vikram2211/k2k-backend-sub000/services"
	"github.com/vikram2211/k2k-backend-sub000/storage"
)

var cronRunning int32

func CORSConfig() cors.Config {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{
		"http://localhost:9000",
		"http://localhost:8080",
		"http://localhost:3000",
	}
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{
		"Content-Type", "Content-Length", "Accept-Encoding",
		"Accept", "Origin", "X-Requested-With", "Authorization", "User-Agent",
		"Cache-Control", "Referer",
		"Access-Control-Request-Method", "Access-Control-Request-Headers",
	}
	corsConfig.AllowMethods = []string{
		"GET", "POST", "PUT", "DELETE", "OPTIONS", "HEAD", "PATCH",
	}
	corsConfig.ExposeHeaders = []string{
		"Content-Length", "Authorization", "Content-Type", "Content-Disposition",
	}
	corsConfig.MaxAge = 12 * time.Hour // Cache preflight requests for 12 hours
	return corsConfig
}

func main() {
	db := storage.InitDB()
	// Initialize GORM database
	_ = storage.InitGormDB()

	// Audit events go to NATS; the engine runs without the sink if the
	// broker is unreachable at boot.
	audit, err := services.NewAuditService()
	if err != nil {
		log.Printf("Warning: Failed to connect audit sink: %v. Audit events will be disabled.", err)
		audit = nil
	}

	store := storage.NewProductionStore(db)
	var auditor engine.Auditor
	if audit != nil {
		auditor = audit
	}
	eng, err := engine.New(store, engine.SystemClock{}, auditor)
	if err != nil {
		log.Fatalf("Failed to initialize engine: %v", err)
	}

	// Setup cron job to run maintenance daily at 11:50 AM
	c := cron.New(
		cron.WithLogger(cron.VerbosePrintfLogger(log.New(os.Stdout, "cron: ", log.LstdFlags))),
	)

	_, err = c.AddFunc("50 11 * * *", func() {
		if !atomic.CompareAndSwapInt32(&cronRunning, 0, 1) {
			log.Println("Previous cron still running. Skipping this run.")
			return
		}
		defer atomic.StoreInt32(&cronRunning, 0)

		log.Println("Starting daily maintenance cron job")
		if err := storage.CleanupExpiredSessions(db); err != nil {
			log.Printf("CleanupExpiredSessions failed: %v", err)
		}
		if err := storage.CloseFullyDispatchedLines(db); err != nil {
			log.Printf("CloseFullyDispatchedLines failed: %v", err)
		}
		log.Println("Daily cron cycle completed")
	})
	if err != nil {
		log.Fatalf("Failed to schedule daily maintenance cron job: %v", err)
	}

	c.Start()

	r := gin.Default()
	r.MaxMultipartMemory = 8 << 20

	r.Use(cors.New(CORSConfig()))

	// ==================== 1. AUTH & LOGIN ====================
	r.POST("/api/login", handlers.LoginHandler(db))
	r.POST("/api/validate-session", handlers.ValidateSession(db))
	r.POST("/api/logout", handlers.LogoutHandler(db))

	// ==================== 2. JOB ORDERS ====================
	r.POST("/api/joborder_create", handlers.CreateJobOrderHandler(db))
	r.POST("/api/joborder_confirm/:id", handlers.ConfirmJobOrderHandler(db))
	r.GET("/api/joborders", handlers.GetJobOrdersHandler(db))
	r.GET("/api/joborder/:id", handlers.GetJobOrderHandler(db))

	// ==================== 3. PRODUCTION ====================
	r.POST("/api/production_start/:line_id", handlers.StartProductionHandler(db, eng))
	r.POST("/api/production_pause/:line_id", handlers.PauseProductionHandler(db, eng))
	r.POST("/api/production_resume/:line_id", handlers.ResumeProductionHandler(db, eng))
	r.POST("/api/production_stop/:line_id", handlers.StopProductionHandler(db, eng))
	r.POST("/api/production_quantity/:line_id", handlers.UpdateQuantityHandler(db, eng))
	r.POST("/api/production_review/:line_id", handlers.ReviewProductionHandler(db, eng))
	r.GET("/api/production_record/:line_id", handlers.GetProductionRecordHandler(db))

	// ==================== 4. QC ====================
	r.POST("/api/qc_reject/:line_id", handlers.QCRejectHandler(db, eng))
	r.GET("/api/qc_checks/:line_id", handlers.GetQCChecksHandler(db))

	// ==================== 5. PACKING ====================
	r.POST("/api/pack/:line_id", handlers.PackQuantityHandler(db, eng))
	r.GET("/api/bundles/:line_id", handlers.GetBundlesHandler(db))
	r.GET("/api/generate-qr/:bundle_id", handlers.GenerateBundleQRCodeJPEG(db))

	// ==================== 6. DISPATCH ====================
	r.POST("/api/dispatch_create", handlers.CreateDispatchHandler(db, eng))
	r.GET("/api/dispatch/:id", handlers.GetDispatchHandler(db))
	r.GET("/api/dispatches", handlers.ListDispatchesHandler(db))
	r.GET("/api/dispatch_pdf/:id", handlers.DispatchPDFHandler(db))
	r.GET("/api/export_dispatch_register/:work_order_id", handlers.ExportDispatchRegister(db))

	// ==================== 7. NOTIFICATIONS ====================
	r.POST("/api/notifications", handlers.CreateNotificationHandler(db))
	r.GET("/api/notifications", handlers.GetMyNotificationsHandler(db))
	r.PUT("/api/notifications/:id/read", handlers.MarkNotificationAsReadHandler(db))
	r.PUT("/api/notifications/read-all", handlers.MarkAllNotificationsAsReadHandler(db))
	r.DELETE("/api/notifications/:id", handlers.DeleteNotificationHandler(db))

	// ==================== 8. ACTIVITY LOGS ====================
	r.GET("/api/activity_logs", handlers.GetActivityLogsHandler(db))

	// ==================== 9. SWAGGER ====================
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	// Get port from environment variable or use default
	port := os.Getenv("PORT")
	if port == "" {
		port = "9000"
	}

	// Validate port is numeric
	portInt, err := strconv.Atoi(port)
	if err != nil {
		log.Fatalf("Invalid PORT environment variable: %s. Must be a number.", port)
	}
	if portInt < 0 || portInt > 65535 {
		log.Fatalf("Invalid PORT: %d. Must be between 0 and 65535.", portInt)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Start server in a goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c.Stop()
	if audit != nil {
		audit.Close()
	}

	// Shutdown HTTP server
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exiting")
}
