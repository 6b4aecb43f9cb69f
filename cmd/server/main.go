package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	inventoryapp "github.com/stockledger/backend/internal/application/inventory"
	"github.com/stockledger/backend/internal/infrastructure/cache"
	"github.com/stockledger/backend/internal/infrastructure/config"
	"github.com/stockledger/backend/internal/infrastructure/event"
	"github.com/stockledger/backend/internal/infrastructure/logger"
	"github.com/stockledger/backend/internal/infrastructure/persistence"
	"github.com/stockledger/backend/internal/infrastructure/scheduler"
	"github.com/stockledger/backend/internal/infrastructure/telemetry"
	"github.com/stockledger/backend/internal/interfaces/http/handler"
	"github.com/stockledger/backend/internal/interfaces/http/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting stock ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	gormLevel := gormlogger.Silent
	if cfg.Log.Level == "debug" {
		gormLevel = gormlogger.Info
	}
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLevel)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected")

	// Repositories
	itemRepo := persistence.NewGormItemRepository(db.DB)
	movementRepo := persistence.NewGormMovementRepository(db.DB)
	reservationRepo := persistence.NewGormReservationRepository(db.DB)
	transferRepo := persistence.NewGormTransferRepository(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	// Application services
	ledgerService := inventoryapp.NewLedgerService(txScope, itemRepo, movementRepo, log)
	reservationService := inventoryapp.NewReservationService(txScope, reservationRepo, cfg.Reservation.DefaultTTL, log)
	transferService := inventoryapp.NewTransferService(txScope, transferRepo, itemRepo, movementRepo, log)
	expirationService := inventoryapp.NewReservationExpirationService(txScope, reservationRepo, cfg.Reservation.SweepBatchSize, log)
	analyticsService := inventoryapp.NewAnalyticsService(itemRepo, movementRepo, log)

	// Event bus with metrics subscribed
	eventBus := event.NewInMemoryEventBus(log)
	metrics, err := telemetry.NewLedgerMetrics(otel.Meter("stockledger"), log)
	if err != nil {
		log.Fatal("Failed to create metrics", zap.Error(err))
	}
	eventBus.Subscribe(metrics)
	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() { _ = eventBus.Stop(context.Background()) }()

	ledgerService.SetEventPublisher(eventBus)
	reservationService.SetEventPublisher(eventBus)
	transferService.SetEventPublisher(eventBus)
	expirationService.SetEventPublisher(eventBus)

	// Availability cache: redis when configured, in-process otherwise
	var availabilityCache inventoryapp.AvailabilityCache
	if cfg.Cache.Backend == "redis" {
		redisCache, err := cache.NewRedisAvailabilityCache(cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Cache.TTL)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() { _ = redisCache.Close() }()
		availabilityCache = redisCache
		log.Info("Availability cache using Redis", zap.String("addr", cfg.Redis.Addr()))
	} else {
		availabilityCache = cache.NewMemoryAvailabilityCache(cfg.Cache.TTL)
		log.Info("Availability cache using process memory")
	}
	ledgerService.SetAvailabilityCache(availabilityCache)
	reservationService.SetAvailabilityCache(availabilityCache)
	transferService.SetAvailabilityCache(availabilityCache)

	// Reservation expiry sweep
	if cfg.Reservation.SweepEnabled {
		sweep := scheduler.NewIntervalScheduler("reservation-expiry-sweep", cfg.Reservation.SweepInterval,
			func(ctx context.Context) error {
				_, err := expirationService.SweepExpired(ctx)
				return err
			}, log)
		if err := sweep.Start(context.Background()); err != nil {
			log.Fatal("Failed to start expiry sweep", zap.Error(err))
		}
		defer sweep.Stop()
		log.Info("Reservation expiry sweep started",
			zap.Duration("interval", cfg.Reservation.SweepInterval),
			zap.Int("batch_size", cfg.Reservation.SweepBatchSize),
		)
	}

	// HTTP handlers
	ledgerHandler := handler.NewLedgerHandler(ledgerService)
	reservationHandler := handler.NewReservationHandler(reservationService)
	transferHandler := handler.NewTransferHandler(transferService)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsService)
	systemHandler := handler.NewSystemHandler(db)

	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(logger.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))

	engine.GET("/health", systemHandler.Health)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))

	ledgerRoutes := router.NewDomainGroup("ledger", "/ledger")
	ledgerRoutes.POST("/movements/restock", ledgerHandler.Restock)
	ledgerRoutes.POST("/movements/sale", ledgerHandler.Sale)
	ledgerRoutes.POST("/movements/return", ledgerHandler.Return)
	ledgerRoutes.POST("/movements/adjustment", ledgerHandler.Adjust)
	ledgerRoutes.POST("/movements/batch", ledgerHandler.Batch)
	ledgerRoutes.PUT("/level", ledgerHandler.SetLevel)
	ledgerRoutes.GET("/movements", ledgerHandler.ListMovements)
	ledgerRoutes.GET("/movements/by-reference", ledgerHandler.ListMovementsByReference)
	ledgerRoutes.GET("/rows", ledgerHandler.ListRows)
	ledgerRoutes.GET("/rows/lookup", ledgerHandler.GetRow)
	ledgerRoutes.GET("/availability", ledgerHandler.GetAvailability)
	ledgerRoutes.PUT("/safety-stock", ledgerHandler.SetSafetyStock)
	ledgerRoutes.PUT("/channel-buffers", ledgerHandler.SetChannelBuffer)
	r.Register(ledgerRoutes)

	reservationRoutes := router.NewDomainGroup("reservations", "/reservations")
	reservationRoutes.POST("", reservationHandler.Reserve)
	reservationRoutes.POST("/release-by-order", reservationHandler.ReleaseByOrder)
	reservationRoutes.POST("/:id/release", reservationHandler.Release)
	reservationRoutes.POST("/:id/consume", reservationHandler.Consume)
	reservationRoutes.GET("/stats/active", reservationHandler.CountActive)
	reservationRoutes.GET("/:id", reservationHandler.GetByID)
	r.Register(reservationRoutes)

	transferRoutes := router.NewDomainGroup("transfers", "/transfers")
	transferRoutes.POST("", transferHandler.Create)
	transferRoutes.POST("/validate", transferHandler.Validate)
	transferRoutes.POST("/:id/complete", transferHandler.Complete)
	transferRoutes.POST("/:id/cancel", transferHandler.Cancel)
	transferRoutes.GET("", transferHandler.List)
	transferRoutes.GET("/suggestions", transferHandler.Suggestions)
	transferRoutes.GET("/:id", transferHandler.GetByID)
	r.Register(transferRoutes)

	analyticsRoutes := router.NewDomainGroup("analytics", "/analytics")
	analyticsRoutes.GET("/low-stock", analyticsHandler.LowStock)
	analyticsRoutes.GET("/valuation", analyticsHandler.Valuation)
	analyticsRoutes.GET("/velocity", analyticsHandler.Velocity)
	analyticsRoutes.GET("/forecast", analyticsHandler.Forecast)
	analyticsRoutes.GET("/aging", analyticsHandler.Aging)
	analyticsRoutes.GET("/turnover", analyticsHandler.Turnover)
	r.Register(analyticsRoutes)

	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)
	r.Register(systemRoutes)

	r.Setup()

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}
	log.Info("Server exited gracefully")
}
