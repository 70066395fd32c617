package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	_ "github.com/joho/godotenv/autoload"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/secihti/budget-api/docs" // Swagger docs
	"github.com/secihti/budget-api/internal/config"
	"github.com/secihti/budget-api/internal/database"
	"github.com/secihti/budget-api/internal/handlers"
	"github.com/secihti/budget-api/internal/jobs"
	"github.com/secihti/budget-api/internal/middleware"
	"github.com/secihti/budget-api/internal/models"
	"github.com/secihti/budget-api/internal/repository"
	"github.com/secihti/budget-api/internal/services"
	"github.com/secihti/budget-api/internal/storage"
	"github.com/secihti/budget-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// @title SECIHTI Budget API
// @version 1.0
// @description REST API for grant budget control: stages, activities, budget lines, transfers and execution tracking

// @contact.name API Support

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8081
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Setup(cfg.Environment)

	// Initialize Sentry (GlitchTip) when DSN is configured
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			TracesSampleRate: 0.2,
			Environment:      cfg.Environment,
		}); err != nil {
			logger.Error("Sentry initialization failed", "error", err)
		} else {
			logger.Info("Sentry initialized")
		}
	}

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Connect to database
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	logger.Info("Connected to database")

	// Initialize storage
	store, err := storage.NewLocalStorage(cfg.StoragePath)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	logger.Info("Initialized local storage")

	// Initialize repositories
	repos := repository.NewRepositories(db)

	// Initialize background worker
	worker := jobs.NewWorker(cfg.WorkerCount)
	logger.Info("Started background worker", "goroutines", cfg.WorkerCount)

	// Initialize services
	svcs := services.NewServices(repos, worker, store, cfg, db)

	// Schedule recurring jobs
	scheduleJobs(worker, svcs)

	// Initialize handlers
	h := handlers.NewHandlers(svcs, store)

	// Setup router
	router := setupRouter(h, cfg)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// Create context with timeout for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	// Shutdown background worker
	worker.Shutdown()
	logger.Info("Background worker stopped")

	// Flush Sentry events before exit
	if cfg.SentryDSN != "" {
		sentry.Flush(5 * time.Second)
	}

	logger.Info("Server exited gracefully")
}

func setupRouter(h *handlers.Handlers, cfg *config.Config) *gin.Engine {
	router := gin.New()

	// Global middleware
	if cfg.SentryDSN != "" {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Redirect root to swagger
		router.GET("/", func(c *gin.Context) {
			c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
		})

		// Swagger documentation
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

		// Health check (public)
		v1.GET("/health", h.Health.Index)

		// Authentication (public)
		auth := v1.Group("/auth")
		{
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.Refresh)
			auth.POST("/logout", h.Auth.Logout)
		}

		// Protected routes (requires authentication)
		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.JWTSecret))
		{
			// Admin-only routes
			admin := protected.Group("")
			admin.Use(middleware.RequireAdmin())
			{
				// User management
				admin.POST("/users", h.User.Create)
				admin.DELETE("/users/:user_id", h.User.Delete)
				admin.PUT("/users/:user_id/toggle_status", h.User.ToggleStatus)
				admin.POST("/users/:user_id/restore", h.User.Restore)

				// Project structure management
				admin.POST("/projects", h.Project.Create)
				admin.PUT("/projects/:project_id", h.Project.Update)
				admin.DELETE("/projects/:project_id", h.Project.Delete)
				admin.POST("/projects/:project_id/stages", h.Project.CreateStage)
				admin.PUT("/projects/:project_id/stages/:stage_id", h.Project.UpdateStage)
				admin.DELETE("/projects/:project_id/stages/:stage_id", h.Project.DeleteStage)

				// Rubro catalog management
				admin.POST("/rubros", h.Budget.CreateRubro)
				admin.PUT("/rubros/:rubro_id", h.Budget.UpdateRubro)
				admin.DELETE("/rubros/:rubro_id", h.Budget.DeleteRubro)

				// Bulk budget import
				admin.POST("/projects/:project_id/imports/activities_csv", h.Export.ImportActivitiesCSV)

				// Worker status
				admin.GET("/jobs/status", h.Job.Status)
			}

			// Finance + Admin routes (budget operation)
			financeAdmin := protected.Group("")
			financeAdmin.Use(middleware.RequireRole("admin", "finance"))
			{
				// User listing
				financeAdmin.GET("/users", h.User.Index)

				// Activity and budget line management
				financeAdmin.POST("/stages/:stage_id/activities", h.Budget.CreateActivity)
				financeAdmin.PUT("/activities/:activity_id", h.Budget.UpdateActivity)
				financeAdmin.DELETE("/activities/:activity_id", h.Budget.DeleteActivity)
				financeAdmin.POST("/budget_lines", h.Budget.CreateLine)
				financeAdmin.PUT("/budget_lines/:line_id", h.Budget.UpdateLine)
				financeAdmin.DELETE("/budget_lines/:line_id", h.Budget.DeleteLine)

				// Transfers
				financeAdmin.POST("/transfers", h.Transfer.Create)
				financeAdmin.PUT("/transfers/:transfer_id", h.Transfer.Update)
				financeAdmin.POST("/transfers/:transfer_id/confirm", h.Transfer.Confirm)
				financeAdmin.POST("/transfers/:transfer_id/amend", h.Transfer.Amend)
				financeAdmin.DELETE("/transfers/:transfer_id", h.Transfer.Delete)

				// Purchase order feed
				financeAdmin.POST("/purchase_orders", h.PurchaseOrder.Ingest)
				financeAdmin.PUT("/purchase_orders/:order_id/status", h.PurchaseOrder.SetStatus)
				financeAdmin.PUT("/purchase_orders/:order_id/amount_mxn", h.PurchaseOrder.SetAmountMXN)
				financeAdmin.DELETE("/purchase_orders/:order_id", h.PurchaseOrder.Delete)
				financeAdmin.POST("/purchase_orders/:order_id/attachments", h.PurchaseOrder.UploadAttachment)
				financeAdmin.GET("/purchase_orders/mxn_pending", h.PurchaseOrder.MXNPending)

				// Exports
				financeAdmin.GET("/projects/:project_id/exports/modifications", h.Export.Modifications)
				financeAdmin.GET("/projects/:project_id/exports/modifications_csv", h.Export.ModificationsCSV)
				financeAdmin.GET("/projects/:project_id/exports/budget_xlsx", h.Export.BudgetXLSX)
				financeAdmin.GET("/projects/:project_id/exports/budget_pdf", h.Export.BudgetPDF)
				financeAdmin.GET("/projects/:project_id/exports/attachments_zip", h.Export.AttachmentsZIP)

				// Audits
				financeAdmin.GET("/audits", h.Audit.Index)
			}

			// Authenticated reads
			protected.GET("/projects", h.Project.Index)
			protected.GET("/projects/:project_id", h.Project.Show)
			protected.GET("/projects/:project_id/hierarchy", h.Project.Hierarchy)
			protected.GET("/projects/:project_id/stages", h.Project.Stages)
			protected.GET("/projects/:project_id/rubro_summary", h.Budget.RubroSummary)
			protected.GET("/stages/:stage_id/activities", h.Budget.Activities)
			protected.GET("/activities/:activity_id", h.Budget.ShowActivity)
			protected.GET("/rubros", h.Budget.Rubros)
			protected.GET("/budget_lines", h.Budget.Lines)
			protected.GET("/budget_lines/:line_id", h.Budget.ShowLine)
			protected.GET("/budget_lines/:line_id/remaining_balance", h.Budget.RemainingBalance)
			protected.GET("/transfers", h.Transfer.Index)
			protected.GET("/transfers/:transfer_id", h.Transfer.Show)
			protected.GET("/purchase_orders", h.PurchaseOrder.Index)
			protected.GET("/purchase_orders/:order_id", h.PurchaseOrder.Show)

			// Planning simulations
			protected.GET("/projects/:project_id/simulations", h.Simulation.Index)
			protected.POST("/projects/:project_id/simulations", h.Simulation.Create)
			protected.GET("/simulations/:simulation_id", h.Simulation.Show)
			protected.PUT("/simulations/:simulation_id", h.Simulation.Update)
			protected.PUT("/simulations/:simulation_id/status", h.Simulation.SetStatus)
			protected.DELETE("/simulations/:simulation_id", h.Simulation.Delete)
			protected.GET("/simulations/:simulation_id/overview", h.Simulation.Overview)
			protected.POST("/simulations/:simulation_id/expenses", h.Simulation.AddExpense)
			protected.PUT("/planned_expenses/:expense_id", h.Simulation.UpdateExpense)
			protected.DELETE("/planned_expenses/:expense_id", h.Simulation.DeleteExpense)
			protected.POST("/planned_expenses/:expense_id/allocations", h.Simulation.Allocate)
			protected.PUT("/simulation_allocations/:allocation_id", h.Simulation.UpdateAllocation)
			protected.DELETE("/simulation_allocations/:allocation_id", h.Simulation.RemoveAllocation)

			// Profile self-service
			protected.GET("/users/:user_id", middleware.RequireAdminFinanceOrOwner(), h.User.Show)
			protected.PUT("/users/:user_id", middleware.RequireAdminOrOwner(), h.User.Update)
			protected.PATCH("/users/:user_id/change_password", h.User.ChangePassword)
			protected.PATCH("/users/:user_id/update_locale", h.User.UpdateLocale)

			// Notifications (users manage their own)
			// Static route first so "mark_all_as_read" is not matched as :notification_id
			notifications := protected.Group("/notifications")
			{
				notifications.GET("", h.Notification.Index)
				notifications.POST("/mark_all_as_read", h.Notification.MarkAllAsRead)
				notifications.PUT("/:notification_id", h.Notification.Update)
				notifications.GET("/:notification_id", h.Notification.Show)
				notifications.DELETE("/:notification_id", h.Notification.Delete)
			}
		}
	}

	return router
}

func scheduleJobs(worker *jobs.Worker, svcs *services.Services) {
	// Resync executed amounts from the order feed every hour
	worker.ScheduleEvery(1*time.Hour, func(ctx context.Context) error {
		logger.Info("[Job] Syncing budget execution...")
		return svcs.Execution.SyncAll(ctx)
	})

	// Remind admins about foreign currency orders missing their MXN amount
	worker.ScheduleEvery(6*time.Hour, func(ctx context.Context) error {
		orders, err := svcs.PurchaseOrder.FindMXNPending(ctx)
		if err != nil {
			return err
		}
		if len(orders) == 0 {
			return nil
		}
		logger.Info("[Job] Orders pending MXN amount", "count", len(orders))
		return svcs.Notification.NotifyAdmins(ctx,
			"Órdenes pendientes de monto MXN",
			fmt.Sprintf("Hay %d órdenes en moneda extranjera sin monto MXN registrado", len(orders)),
			models.NotificationTypeMXNPending)
	})

	logger.Info("Scheduled recurring jobs")
}
