package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"pharmahub/internal/config"
	"pharmahub/internal/handlers"
	"pharmahub/internal/idempotency"
	"pharmahub/internal/middleware"
	"pharmahub/internal/notify"
	"pharmahub/internal/repositories"
	"pharmahub/internal/services"
	"pharmahub/internal/telemetry"
	"pharmahub/pkg/kafkabus"
	"pharmahub/pkg/rabbitmq"
)

const shutdownTimeout = 10 * time.Second

// deps are the long-lived collaborators newApp wires into handlers.
type deps struct {
	cfg         *config.Config
	db          *gorm.DB
	hub         *notify.Hub
	dispatcher  notify.Dispatcher
	idempotency idempotency.Store
	logger      *zap.Logger
}

func main() {
	// --- Configuration ---
	cfg, err := config.Load(nil)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := telemetry.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	// --- Database ---
	db, err := openDatabase(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := repositories.AutoMigrate(db); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	// --- Notifications ---
	hub := notify.NewHub(0, logger)
	dispatcher, closeBus, err := newEventBus(ctx, cfg, hub, logger)
	if err != nil {
		logger.Fatal("Failed to initialize event bus", zap.Error(err))
	}

	store, closeStore, err := newIdempotencyStore(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize idempotency store", zap.Error(err))
	}

	app := newApp(deps{
		cfg:         cfg,
		db:          db,
		hub:         hub,
		dispatcher:  dispatcher,
		idempotency: store,
		logger:      logger,
	})

	// --- Start HTTP Server ---
	go func() {
		logger.Info("Starting server", zap.String("port", cfg.AppPort), zap.String("event_bus", cfg.EventBus))
		if err := app.Listen(cfg.AppPort); err != nil {
			logger.Error("Server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("Error during Fiber shutdown", zap.Error(err))
	}
	if err := closeBus(); err != nil {
		logger.Error("Error closing event bus", zap.Error(err))
	}
	if err := closeStore(); err != nil {
		logger.Error("Error closing idempotency store", zap.Error(err))
	}
	tracingCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := shutdownTracing(tracingCtx); err != nil {
		logger.Error("Error flushing traces", zap.Error(err))
	}
	logger.Info("Server gracefully stopped")
}

// newApp builds the Fiber application with every route registered.
func newApp(d deps) *fiber.App {
	logger := d.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// --- Repositories ---
	medicationRepo := repositories.NewGORMMedicationRepository(d.db)
	orderRepo := repositories.NewGORMOrderRepository(d.db)
	accountRepo := repositories.NewGORMAccountRepository(d.db)

	// --- Services ---
	tokenService := services.NewTokenService(d.cfg.JWTSecret)
	ledger := services.NewInventoryLedger(medicationRepo, d.dispatcher, d.cfg.LowStockThreshold, logger)
	orderService := services.NewOrderService(orderRepo, accountRepo, ledger, d.dispatcher, services.OrderServiceConfig{
		TaxRate:     d.cfg.TaxRate,
		DeliveryFee: d.cfg.DeliveryFee,
		MaxRetries:  d.cfg.StatusUpdateRetries,
	}, logger)
	analyticsService := services.NewAnalyticsService(orderRepo)
	medicationService := services.NewMedicationService(medicationRepo)
	accountService := services.NewAccountService(accountRepo)

	// --- Handlers ---
	orderHandler := handlers.NewOrderHandler(orderService, analyticsService, d.idempotency, logger)
	medicationHandler := handlers.NewMedicationHandler(medicationService, logger)
	accountHandler := handlers.NewAccountHandler(accountService, logger)
	notificationHandler := handlers.NewNotificationHandler(d.hub, tokenService, logger)

	app := fiber.New(fiber.Config{
		AppName:               config.ServiceName,
		DisableStartupMessage: true,
	})

	// --- Middleware ---
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Output: zap.NewStdLog(logger).Writer(),
	}))

	// --- Health Check Endpoint ---
	app.Get("/health", func(c *fiber.Ctx) error {
		status := "healthy"
		code := fiber.StatusOK
		if sqlDB, err := d.db.DB(); err != nil || sqlDB.PingContext(c.UserContext()) != nil {
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}
		return c.Status(code).JSON(fiber.Map{
			"status":    status,
			"time":      time.Now().Format(time.RFC3339),
			"event_bus": d.cfg.EventBus,
		})
	})

	notificationHandler.RegisterRoutes(app)

	// --- API Routes ---
	apiV1 := app.Group("/api/v1", middleware.AuthRequired(tokenService, logger))
	orderHandler.RegisterRoutes(apiV1)
	medicationHandler.RegisterRoutes(apiV1)
	accountHandler.RegisterRoutes(apiV1)

	return app
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	return repositories.OpenDatabase(cfg.DatabaseDriver, cfg.DatabaseDSN, gormlogger.Default.LogMode(gormlogger.Warn))
}

// newEventBus selects where dispatched events go. With a broker configured,
// events are published there and every instance relays the broker stream
// into its own hub, so a subscriber connected to any instance receives them.
func newEventBus(ctx context.Context, cfg *config.Config, hub *notify.Hub, logger *zap.Logger) (notify.Dispatcher, func() error, error) {
	switch cfg.EventBus {
	case config.EventBusRabbitMQ:
		client, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL, Exchange: cfg.RabbitMQExchange}, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := client.Relay(hub); err != nil {
			client.Close()
			return nil, nil, err
		}
		return client, client.Close, nil

	case config.EventBusKafka:
		bus := kafkabus.New(kafkabus.Config{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic}, logger)
		go bus.Relay(ctx, hub)
		return bus, bus.Close, nil
	}
	return hub, func() error { return nil }, nil
}

func newIdempotencyStore(ctx context.Context, cfg *config.Config) (idempotency.Store, func() error, error) {
	if cfg.RedisAddr == "" {
		return idempotency.NewMemoryStore(idempotency.DefaultTTL), func() error { return nil }, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	return idempotency.NewRedisStore(rdb, idempotency.DefaultTTL), rdb.Close, nil
}
