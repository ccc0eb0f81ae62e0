package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fieldbridge/backend/internal/application/orchestration"
	"github.com/fieldbridge/backend/internal/domain/connector"
	"github.com/fieldbridge/backend/internal/domain/request"
	"github.com/fieldbridge/backend/internal/domain/shared"
	"github.com/fieldbridge/backend/internal/infrastructure/auth"
	"github.com/fieldbridge/backend/internal/infrastructure/cache"
	"github.com/fieldbridge/backend/internal/infrastructure/config"
	"github.com/fieldbridge/backend/internal/infrastructure/connectors"
	"github.com/fieldbridge/backend/internal/infrastructure/logger"
	"github.com/fieldbridge/backend/internal/infrastructure/persistence"
	"github.com/fieldbridge/backend/internal/infrastructure/scheduler"
	"github.com/fieldbridge/backend/internal/infrastructure/telemetry"
	"github.com/fieldbridge/backend/internal/interfaces/http/handler"
	"github.com/fieldbridge/backend/internal/interfaces/http/middleware"
	"github.com/fieldbridge/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting FieldBridge Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Initialize database connection with zap-backed GORM logging
	gormLevel := gormlogger.Warn
	if cfg.Log.Level == "debug" {
		gormLevel = gormlogger.Info
	}
	db, err := persistence.NewDatabaseWithOptions(&cfg.Database, persistence.Options{
		Logger:       logger.NewGormLogger(log, gormLevel),
		TraceEnabled: cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
	})
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize repositories
	requestRepo := persistence.NewGormServiceRequestRepository(db.DB)
	transitionRepo := persistence.NewGormTransitionRecordRepository(db.DB)

	// External system connectors. Without a configured base URL the
	// in-memory fakes are used, so development runs need no ITSM or ERP.
	var itsmConn connector.ITSMConnector
	if cfg.Connectors.ITSM.BaseURL != "" {
		itsmConn = connectors.NewServiceNowConnector(cfg.Connectors.ITSM)
		log.Info("ITSM connector configured", zap.String("base_url", cfg.Connectors.ITSM.BaseURL))
	} else {
		itsmConn = connectors.NewInMemoryITSM()
		log.Warn("No ITSM base URL configured, using in-memory fake")
	}

	var erpConn connector.ERPConnector
	if cfg.Connectors.ERP.BaseURL != "" {
		erpConn = connectors.NewNetSuiteConnector(cfg.Connectors.ERP)
		log.Info("ERP connector configured", zap.String("base_url", cfg.Connectors.ERP.BaseURL))
	} else {
		erpConn = connectors.NewInMemoryERP()
		log.Warn("No ERP base URL configured, using in-memory fake")
	}

	// Webhook deduplication store. Redis gives cross-instance dedup; if it
	// is unreachable a process-local store keeps a single instance correct.
	var dedup shared.IdempotencyStore
	redisStore, err := cache.NewRedisIdempotencyStore(&cfg.Redis)
	if err != nil {
		log.Warn("Redis unavailable, falling back to in-memory idempotency store", zap.Error(err))
		dedup = cache.NewInMemoryIdempotencyStore()
	} else {
		defer func() {
			if err := redisStore.Close(); err != nil {
				log.Error("Error closing Redis client", zap.Error(err))
			}
		}()
		dedup = redisStore
		log.Info("Redis idempotency store connected", zap.String("addr", cfg.Redis.Addr()))
	}

	// Orchestration service
	classifier := request.NewRuleClassifier()
	validator := orchestration.NewResourceValidator(erpConn)
	orchestrator := orchestration.NewOrchestrator(
		requestRepo,
		transitionRepo,
		classifier,
		validator,
		itsmConn,
		erpConn,
		dedup,
		orchestration.Config{
			Backoff: orchestration.BackoffPolicy{
				Base:        cfg.Orchestration.RetryBaseDelay,
				Cap:         cfg.Orchestration.RetryMaxDelay,
				MaxAttempts: cfg.Orchestration.RetryMaxAttempts,
			},
			AutoDecide:      cfg.Orchestration.AutoDecide,
			WebhookDedupTTL: cfg.Orchestration.WebhookDedupTTL,
		},
		log,
	)

	// Telemetry providers
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	meterProvider, err := telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		if err := meterProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	if cfg.Telemetry.Enabled {
		requestMetrics, err := telemetry.NewRequestMetrics(telemetry.RequestMetricsConfig{
			Meter:              meterProvider.Meter("fieldbridge/orchestration"),
			Logger:             log,
			DeadLetterProvider: requestRepo,
		})
		if err != nil {
			log.Fatal("Failed to initialize request metrics", zap.Error(err))
		}
		orchestrator.SetRequestMetrics(requestMetrics)
	}

	// Background scheduler: one worker pool executes ticket backfill and
	// retry dispatch jobs enqueued by the periodic scan loops.
	if cfg.Scheduler.Enabled {
		executor := scheduler.NewOrchestrationExecutor(orchestrator, cfg.Scheduler.ScanBatchSize)
		sched := scheduler.NewScheduler(scheduler.Config{
			Workers:   cfg.Scheduler.Workers,
			QueueSize: cfg.Scheduler.QueueSize,
		}, executor, log)
		if err := sched.Start(context.Background()); err != nil {
			log.Fatal("Failed to start scheduler", zap.Error(err))
		}
		// New submissions enqueue their ticket creation directly instead of
		// waiting for the next backfill scan.
		orchestrator.SetTicketDispatcher(sched)
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := sched.Stop(stopCtx); err != nil {
				log.Error("Error stopping scheduler", zap.Error(err))
			}
		}()

		trigger := scheduler.NewScanTrigger(scheduler.ScanTriggerConfig{
			TicketScanInterval: cfg.Scheduler.TicketScanInterval,
			RetryScanInterval:  cfg.Scheduler.RetryScanInterval,
			BatchSize:          cfg.Scheduler.ScanBatchSize,
		}, sched, log)
		if err := trigger.Start(context.Background()); err != nil {
			log.Fatal("Failed to start scan trigger", zap.Error(err))
		}
		defer trigger.Stop()

		log.Info("Scheduler started",
			zap.Int("workers", cfg.Scheduler.Workers),
			zap.Duration("ticket_scan_interval", cfg.Scheduler.TicketScanInterval),
			zap.Duration("retry_scan_interval", cfg.Scheduler.RetryScanInterval),
		)
	}

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Report validation errors with json field names
	middleware.SetupValidator()

	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware stack: request ID first so recovery and access logs can
	// tag their output, then tracing, CORS and the request guards.
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	if tracerProvider.IsEnabled() {
		engine.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	}

	engine.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  cfg.HTTP.CORSAllowOrigins,
		AllowMethods:  cfg.HTTP.CORSAllowMethods,
		AllowHeaders:  cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders: []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		MaxAge:        12 * time.Hour,
	}))

	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Health check endpoint (outside API versioning)
	systemHandler := handler.NewSystemHandler(db)
	engine.GET("/health", systemHandler.Health)

	// API routes. Actor auth applies to the versioned group only.
	jwtService := auth.NewJWTService(cfg.JWT)
	r := router.NewRouter(engine,
		router.WithAPIVersion("v1"),
		router.WithGroupMiddleware(middleware.ActorAuth(middleware.ActorAuthConfig{
			JWTService: jwtService,
			Required:   cfg.JWT.Required,
			Logger:     log,
		})),
	)
	r.Register(handler.NewRequestHandler(orchestrator)).
		Register(handler.NewWebhookHandler(orchestrator))
	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
