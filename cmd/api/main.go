package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dailyforge/configs"
	v1 "dailyforge/internal/api/v1"
	"dailyforge/internal/api/v1/handlers"
	"dailyforge/internal/cache"
	"dailyforge/internal/middleware"
	"dailyforge/internal/repository"
	"dailyforge/internal/scheduler"
	"dailyforge/internal/websocket"
	"dailyforge/pkg/database"
	"dailyforge/pkg/logger"
	"dailyforge/pkg/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"go.uber.org/zap"
)

var _ handlers.Store = (*repository.Store)(nil)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// Load config
	cfg := configs.LoadConfig()
	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when GO_ENV=%s", cfg.Env)
	}

	// Inisialisasi logger
	if err := logger.InitLoggers(cfg.LogDir); err != nil {
		return fmt.Errorf("init loggers: %w", err)
	}
	defer logger.SyncLoggers()
	logger.SystemLogger.Info("Starting application", zap.String("time", time.Now().Format(time.RFC3339)))
	metrics.InitMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Inisialisasi database
	db, err := database.ConnectDB(ctx, database.DSN(cfg, cfg.DBName))
	if err != nil {
		logger.ErrorLogger.Error("Database connection error", zap.Error(err))
		return err
	}
	defer db.Close()
	logger.SystemLogger.Info("Database Connected")

	// Buat tabel jika belum ada
	if err := repository.CreateTableIfNotExists(ctx, db); err != nil {
		logger.ErrorLogger.Error("Schema setup failed", zap.Error(err))
		return err
	}

	h := handlers.New(repository.NewStore(db), []byte(cfg.JWTSecret), cfg.JWTTTL)
	h.CacheTTL = cfg.CacheTTL

	// Redis is optional: without it every read goes to Postgres.
	if rdb, err := database.ConnectRedis(ctx, cfg); err != nil {
		logger.SystemLogger.Warn("Redis unavailable, caching disabled", zap.Error(err))
	} else {
		defer rdb.Close()
		h.Cache = cache.NewRedis(rdb)
		logger.SystemLogger.Info("Redis Connected")
	}

	hub := websocket.NewHub(256)
	go hub.Run(ctx)
	h.Feed = hub

	jobs := scheduler.New(ctx)
	if _, err := jobs.Add(cfg.RecentCron, "refresh recent rooms", func(ctx context.Context) error {
		_, err := h.RefreshRecentRooms(ctx)
		return err
	}); err != nil {
		return fmt.Errorf("schedule recent rooms refresh: %w", err)
	}
	jobs.Start()
	defer jobs.Stop()

	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.FiberErrors,
	})

	// Middleware
	app.Use(middleware.ErrorHandler())
	app.Use(middleware.Metrics())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.RateLimit,
		Expiration: 1 * time.Minute,
	}))

	// Daftarkan route API v1
	v1.RegisterRoutes(app, h, hub)

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.AppPort)
		logger.SystemLogger.Info("Application ready", zap.String("addr", addr))
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		logger.ErrorLogger.Error("Application failed to start", zap.Error(err))
		return err
	case <-ctx.Done():
	}

	logger.SystemLogger.Info("Shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.ErrorLogger.Error("Shutdown error", zap.Error(err))
	}
	return nil
}
