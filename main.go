package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
	"github.com/surajvsk/ipo-subbrocker/bidding"
	"github.com/surajvsk/ipo-subbrocker/config"
	"github.com/surajvsk/ipo-subbrocker/database"
	"github.com/surajvsk/ipo-subbrocker/handlers"
	"github.com/surajvsk/ipo-subbrocker/jobs"
	"github.com/surajvsk/ipo-subbrocker/services"
	"github.com/surajvsk/ipo-subbrocker/shared"
)

func main() {
	// Load config
	cfg := config.LoadConfig()
	unified, err := cfg.Unified()
	if err != nil {
		logrus.Fatalf("Invalid tuning file: %v", err)
	}
	shared.ConfigureLogging(unified.Logging)
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}
	if raw, err := unified.ToJSON(); err == nil {
		logrus.Debugf("Effective configuration: %s", raw)
	}

	// Connect to database
	if err := database.ConnectWithConfig(cfg.DatabaseURL, &unified.Database); err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Run migrations
	if err := database.Migrate(cfg.DatabaseURL); err != nil {
		logrus.Fatalf("Migration failed: %v", err)
	}
	report, err := database.VerifySchema(context.Background(), database.DB)
	if err != nil {
		logrus.Fatalf("Schema verification failed: %v", err)
	}
	if !report.Valid() {
		logrus.Fatalf("Schema is incomplete: %+v", report)
	}

	// Services
	ipoService := services.NewIPOService(database.DB)
	clientService := services.NewClientService(database.DB)
	bidService := services.NewBidService(database.DB)
	brokerService := services.NewBrokerService(database.DB)
	upiService := services.NewUPIHandlerService(database.DB)
	cacheService := services.NewCacheService(unified.Cache)
	dashboardService := services.NewDashboardService(database.DB, cacheService, unified.Cache.DefaultTTL)
	authService := services.NewAuthService(brokerService, cfg.JWTSecret, cfg.TokenTTL)
	importer := services.NewIPOImporter(unified.Importer)
	asbaService := services.NewASBAFormService(ipoService, clientService, cfg.ASBAPDFEnabled)

	if cfg.AdminUsername != "" {
		if err := brokerService.EnsureAdmin(context.Background(), cfg.AdminUsername, cfg.AdminPassword); err != nil {
			logrus.Fatalf("Failed to bootstrap admin account: %v", err)
		}
	}

	submitter := bidding.NewBatchSubmitter(bidService, unified.Batch)
	workflow := bidding.NewWorkflow(ipoService, clientService, bidService, submitter)

	// Jobs
	dashboardJob := jobs.NewDashboardRefreshJob(dashboardService)
	scheduler := jobs.NewScheduler()
	mustRegister(scheduler, cfg.DashboardRefreshSchedule, dashboardJob)
	mustRegister(scheduler, cfg.PendingReportSchedule, jobs.NewPendingBidReportJob(bidService))
	mustRegister(scheduler, cfg.CacheCleanupSchedule, jobs.NewCacheCleanupJob(cacheService))
	scheduler.Start()

	// Handlers
	healthHandler := handlers.NewHealthHandler(database.HealthCheck)
	authHandler := handlers.NewAuthHandler(authService)
	ipoHandler := handlers.NewIPOHandler(ipoService)
	clientHandler := handlers.NewClientHandler(clientService)
	brokerHandler := handlers.NewBrokerHandler(brokerService)
	upiHandler := handlers.NewUPIHandler(upiService)
	bidHandler := handlers.NewBidHandler(workflow, bidService, dashboardService)
	dashboardHandler := handlers.NewDashboardHandler(dashboardService)
	asbaHandler := handlers.NewASBAHandler(asbaService)

	adminHandler := handlers.NewAdminHandler(importer, dashboardJob, database.GetConnectionStats)
	adminHandler.RegisterMetrics("ipo_service", func() interface{} { return ipoService.Metrics().GetSnapshot() })
	adminHandler.RegisterMetrics("ipo_importer", func() interface{} {
		return map[string]interface{}{
			"requests": importer.Metrics().GetSnapshot(),
			"fetches":  importer.RequestCount(),
		}
	})
	adminHandler.RegisterMetrics("batch_submitter", func() interface{} { return submitter.Metrics().GetSnapshot() })
	adminHandler.RegisterMetrics("bid_queries", func() interface{} { return bidService.DatabaseMetrics() })
	adminHandler.RegisterMetrics("client_queries", func() interface{} { return clientService.DatabaseMetrics() })
	adminHandler.RegisterMetrics("cache", func() interface{} { return cacheService.GetCacheStats() })

	// Setup Fiber
	app := fiber.New(fiber.Config{
		AppName:      "ipo-subbroker",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New())

	app.Get("/health", healthHandler.GetHealth)

	// Routes
	api := app.Group("/api/v1")
	api.Post("/auth/login", authHandler.Login)

	secured := api.Group("", handlers.RequireAuth(authService))

	secured.Get("/ipos", ipoHandler.GetIPOs)
	secured.Get("/ipos/:id", ipoHandler.GetIPOByID)
	secured.Get("/ipos/:id/eligible-clients", bidHandler.EligibleClients)

	secured.Get("/clients", clientHandler.GetClients)
	secured.Post("/clients", clientHandler.CreateClient)
	secured.Put("/clients/:id", clientHandler.UpdateClient)
	secured.Delete("/clients/:id", clientHandler.DeleteClient)

	secured.Get("/upi-handlers", upiHandler.GetHandlers)

	secured.Get("/bids", bidHandler.GetBids)
	secured.Post("/bids/validate", bidHandler.ValidateBid)
	secured.Post("/bids/batch", handlers.RequireBidPermission(), bidHandler.PlaceBids)
	secured.Delete("/bids/:id", bidHandler.CancelBid)

	secured.Get("/dashboard", dashboardHandler.GetSummary)
	secured.Post("/asba-forms", asbaHandler.CreateForm)

	// Admin Routes
	admin := secured.Group("/admin", handlers.RequireAdmin())
	admin.Post("/ipos", ipoHandler.CreateIPO)
	admin.Put("/ipos/:id", ipoHandler.UpdateIPO)
	admin.Delete("/ipos/:id", ipoHandler.DeleteIPO)
	admin.Post("/ipos/import", adminHandler.ImportIPO)

	admin.Get("/brokers", brokerHandler.GetBrokers)
	admin.Post("/brokers", brokerHandler.CreateBroker)
	admin.Put("/brokers/:id", brokerHandler.UpdateBroker)
	admin.Delete("/brokers/:id", brokerHandler.DeleteBroker)

	admin.Post("/upi-handlers", upiHandler.CreateHandler)
	admin.Delete("/upi-handlers/:id", upiHandler.DeleteHandler)

	admin.Put("/bids/:id/status", bidHandler.UpdateBidStatus)
	admin.Post("/dashboard/refresh", adminHandler.RefreshDashboard)
	admin.Get("/metrics", adminHandler.GetMetrics)

	// Start server
	go func() {
		logrus.Infof("Server starting on port %s", cfg.ServerPort)
		if err := app.Listen(":" + cfg.ServerPort); err != nil {
			logrus.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logrus.Errorf("Server shutdown failed: %v", err)
	}
	select {
	case <-scheduler.Stop().Done():
	case <-time.After(30 * time.Second):
		logrus.Warn("Timed out waiting for running jobs")
	}

	submitter.Metrics().LogSummary()
	importer.Metrics().LogSummary()
}

func mustRegister(scheduler *jobs.Scheduler, spec string, job jobs.Job) {
	if err := scheduler.Register(spec, job); err != nil {
		logrus.Fatalf("Failed to schedule %s: %v", job.Name(), err)
	}
}
