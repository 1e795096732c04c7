package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rockwerks/weather-forecast-app/internal/config"
	"github.com/rockwerks/weather-forecast-app/internal/delivery/http"
	"github.com/rockwerks/weather-forecast-app/internal/domain"
	"github.com/rockwerks/weather-forecast-app/internal/repository/kafka"
	"github.com/rockwerks/weather-forecast-app/internal/repository/postgres"
	"github.com/rockwerks/weather-forecast-app/internal/service"
)

func main() {
	// Configuration
	cfg := config.Load()
	log := cfg.NewLogger()
	slog.SetDefault(log)

	if cfg.OpenWeatherAPIKey == "" {
		log.Warn("OPENWEATHER_API_KEY is not set, every lookup will fail upstream")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Dependency Injection: Repositories
	dataRepo, closeRepo := openRepository(ctx, cfg, log)
	defer closeRepo()

	var recorders []domain.LookupRecorder
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Warn("could not connect to kafka, lookup events disabled", "error", err)
		} else {
			defer publisher.Close()
			recorders = append(recorders, publisher)
			log.Info("publishing lookup events", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
		}
	}

	// Dependency Injection: Services
	weatherSvc := service.NewWeatherService(cfg.OpenWeatherBaseURL, cfg.OpenWeatherAPIKey,
		service.WithTimeout(cfg.HTTPTimeout))
	lookupSvc := service.NewLookupService(weatherSvc, dataRepo,
		service.WithDefaultUnit(cfg.DefaultUnits),
		service.WithSessionTTL(cfg.SessionTTL),
		service.WithRecorders(recorders...),
		service.WithServiceLogger(log),
	)
	go lookupSvc.Run(ctx)

	// Fiber App
	app := fiber.New(fiber.Config{
		AppName:      "Weather Forecast API v1.0",
		ReadTimeout:  10 * time.Second,
		ErrorHandler: http.ErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${locals:requestid} ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Routes
	http.SetupRoutes(app, http.NewHandler(lookupSvc,
		http.WithLogger(log),
		http.WithBaseContext(ctx),
	))

	// Graceful shutdown
	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()

	log.Info("shutting down server")
	// sessions first, so their event streams end before fiber waits on them
	lookupSvc.Shutdown()
	if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	// one-shot lookups finished during shutdown may still be writing
	lookupSvc.WaitBackground()
	log.Info("server exited gracefully")
}

// openRepository connects to PostgreSQL, falling back to the in-memory
// repository when no database is configured or reachable.
func openRepository(ctx context.Context, cfg *config.Config, log *slog.Logger) (service.DataRepository, func()) {
	if cfg.DatabaseURL == "" {
		log.Info("DATABASE_URL not set, keeping lookup history in memory")
		return postgres.NewMockRepository(), func() {}
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(connectCtx, cfg.DatabaseURL)
	if err == nil {
		err = pool.Ping(connectCtx)
		if err != nil {
			pool.Close()
		}
	}
	if err != nil {
		log.Warn("could not connect to database, keeping lookup history in memory", "error", err)
		return postgres.NewMockRepository(), func() {}
	}

	repo := postgres.NewPostgresRepository(pool)
	if err := repo.Migrate(connectCtx); err != nil {
		log.Warn("could not migrate database, keeping lookup history in memory", "error", err)
		pool.Close()
		return postgres.NewMockRepository(), func() {}
	}

	log.Info("connected to PostgreSQL")
	return repo, pool.Close
}
