package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/sjperalta/obrafin-api/docs" // Swagger docs
	"github.com/sjperalta/obrafin-api/internal/config"
	"github.com/sjperalta/obrafin-api/internal/database"
	"github.com/sjperalta/obrafin-api/internal/handlers"
	"github.com/sjperalta/obrafin-api/internal/jobs"
	"github.com/sjperalta/obrafin-api/internal/middleware"
	"github.com/sjperalta/obrafin-api/internal/registry"
	"github.com/sjperalta/obrafin-api/internal/repository"
	"github.com/sjperalta/obrafin-api/internal/services"
	"github.com/sjperalta/obrafin-api/internal/storage"
	"github.com/sjperalta/obrafin-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Operator recorded on audit rows written by scheduled jobs.
const systemOperator = "system"

// @title ObraFin API
// @version 1.0
// @description REST API for construction project budgets, costs, invoices and payments
// @termsOfService http://swagger.io/terms/

// @contact.name API Support

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
	logger.Setup(cfg.Environment, cfg.LogLevel)

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
	db, err := database.Connect(database.Options{
		Driver:     cfg.DatabaseDriver,
		URL:        cfg.DatabaseURL,
		Production: cfg.Environment == "production",
	})
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		logger.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}
	logger.Info("Connected to database", "driver", cfg.DatabaseDriver)

	// Initialize storage
	store, err := storage.NewLocalStorage(cfg.StoragePath, cfg.StorageBaseURL)
	if err != nil {
		logger.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	logger.Info("Initialized local storage", "path", store.BasePath())

	// Initialize repositories
	repos := repository.NewRepositories(db)

	// Initialize background worker
	worker := jobs.NewWorker(cfg.WorkerCount)
	logger.Info("Started background worker", "goroutines", cfg.WorkerCount)

	// Initialize services
	svcs := services.NewServices(services.Dependencies{
		Repos:     repos,
		Tx:        database.NewTransactionManager(db),
		Blobs:     store,
		Validator: newValidator(cfg),
		Async:     worker,
		Mailer:    newMailer(cfg),
	}, cfg)

	// Schedule recurring jobs
	scheduleJobs(worker, svcs, cfg)

	// Setup router
	router, err := setupRouter(handlers.NewHandlers(svcs), store, cfg)
	if err != nil {
		logger.Error("Failed to configure router", "error", err)
		os.Exit(1)
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
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

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	// Pending blob deletions finish before the worker stops
	worker.WaitAsync()
	worker.Shutdown()
	logger.Info("Background worker stopped", "stats", worker.GetStats())

	if cfg.SentryDSN != "" {
		sentry.Flush(5 * time.Second)
	}

	logger.Info("Server exited gracefully")
}

// newValidator picks the remote registry when one is configured.
func newValidator(cfg *config.Config) services.InvoiceValidator {
	if cfg.RegistryURL != "" {
		logger.Info("Using remote invoice registry", "url", cfg.RegistryURL)
		return registry.NewHTTPValidator(cfg.RegistryURL, cfg.RegistryAPIKey, cfg.RegistryTimeout)
	}
	logger.Warn("REGISTRY_URL not set, validating invoices locally")
	return registry.NewLocalValidator(cfg.RegistryTaxRates)
}

// newMailer returns nil when Resend is not configured; approval emails are then skipped.
func newMailer(cfg *config.Config) services.EmailSender {
	if cfg.ResendAPIKey == "" || cfg.FromEmail == "" {
		logger.Warn("Resend email disabled: RESEND_API_KEY or FROM_EMAIL not set")
		return nil
	}
	if len(cfg.ApproverEmails) == 0 {
		logger.Warn("APPROVER_EMAILS not set, approval emails will not be sent")
	}
	return services.NewResendSender(cfg.ResendAPIKey, cfg.FromEmail)
}

func setupRouter(h *handlers.Handlers, store *storage.LocalStorage, cfg *config.Config) (*gin.Engine, error) {
	limiter, err := middleware.NewRateLimiter(cfg.RateLimit)
	if err != nil {
		return nil, err
	}

	router := gin.New()

	// Global middleware
	if cfg.SentryDSN != "" {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(gin.Recovery())
	router.Use(middleware.RequestContext())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// Redirect root to swagger
	router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Stored attachments
	router.Static(cfg.StorageBaseURL, store.BasePath())

	v1 := router.Group("/api/v1")
	v1.Use(middleware.RateLimit(limiter))
	handlers.RegisterRoutes(v1, h, cfg.JWTSecret)

	return router, nil
}

func scheduleJobs(worker *jobs.Worker, svcs *services.Services, cfg *config.Config) {
	if cfg.ReconcileInterval <= 0 {
		logger.Warn("RECONCILE_INTERVAL not positive, budget reconciliation job disabled")
		return
	}

	// Report budget drift; fixing stays an explicit operator action
	worker.ScheduleEvery("reconcile-budgets", cfg.ReconcileInterval, func(ctx context.Context) error {
		drifts, err := svcs.Balance.ReconcileBudgets(ctx, false, systemOperator)
		if err != nil {
			return err
		}
		for _, d := range drifts {
			logger.Warn("Budget drift detected",
				"budget_id", d.BudgetID, "code", d.Code,
				"used_amount", d.UsedAmount.String(), "live_sum", d.LiveSum.String())
		}
		return nil
	})

	logger.Info("Scheduled recurring jobs", "reconcile_interval", cfg.ReconcileInterval.String())
}
