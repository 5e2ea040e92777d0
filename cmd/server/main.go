package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"stocktrack-backend/internal/audit"
	"stocktrack-backend/internal/auth"
	"stocktrack-backend/internal/config"
	"stocktrack-backend/internal/database"
	"stocktrack-backend/internal/inventory"
	"stocktrack-backend/internal/notify"
	"stocktrack-backend/internal/observability"
	"stocktrack-backend/internal/stock"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logShutdown, logErr := observability.SetupLoggingSDK(ctx, cfg)
	tp, traceShutdown, traceErr := observability.SetupTracingSDK(ctx, cfg)
	otelShutdown := observability.JoinShutdown(traceShutdown, logShutdown)

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.OtelEndpoint != "")
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if logErr != nil {
		logger.Error("OpenTelemetry logging setup failed", zap.Error(logErr))
	}
	if traceErr != nil {
		logger.Error("OpenTelemetry tracing setup failed", zap.Error(traceErr))
	}
	for _, w := range cfg.Warnings() {
		logger.Warn(string(w))
	}

	db, err := database.Open(cfg.DatabaseDSN, logger)
	if err != nil {
		return err
	}

	registry := notify.NewRegistry(cfg.ClientBuffer, logger)
	sinks := []notify.Sink{notify.RoleSink{Registry: registry, Roles: cfg.NotifyRoles}}

	var kafkaSink *notify.KafkaSink
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := notify.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic, config.ServiceName, tp)
		if err != nil {
			return err
		}
		kafkaSink = notify.NewKafkaSink(producer)
		sinks = append(sinks, kafkaSink)
		logger.Info("kafka event sink enabled",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.KafkaTopic),
		)
	}

	publisher := notify.NewPublisher(cfg.NotifyBuffer, logger, sinks...)
	pubCtx, stopPublisher := context.WithCancel(context.Background())
	pubDone := make(chan struct{})
	go func() {
		defer close(pubDone)
		publisher.Run(pubCtx)
	}()

	engine := stock.NewEngine(db, publisher, logger, stock.WithTracer(tp.Tracer(config.ServiceName)))

	app := fiber.New(fiber.Config{
		AppName:      config.ServiceName,
		ErrorHandler: inventory.ErrorHandler(logger),
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.Origins(), ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"clients": registry.Len(),
		})
	})

	app.Get("/ws",
		notify.RequireUpgrade(),
		auth.QueryTokenMiddleware(cfg, db),
		notify.WebSocketHandler(registry, logger),
	)

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/register-manager", auth.RegisterManagerHandler(db))
	api.Post("/auth/login", auth.LoginHandler(cfg, db))

	// Protected
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg, db))

	protected.Get("/auth/me", auth.MeHandler(db))

	inventory.Register(protected, inventory.Deps{
		Engine:   engine,
		Activity: audit.NewWriter(db),
		Log:      logger,
	})

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("port", cfg.HTTPPort))
		serveErr <- app.Listen(":" + cfg.HTTPPort)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Error("server stopped", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs error
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		errs = errors.Join(errs, fmt.Errorf("http shutdown: %w", err))
	}

	// Follow-ups publish into the queue, so they finish before the publisher
	// stops.
	engine.Wait()
	stopPublisher()
	<-pubDone

	if kafkaSink != nil {
		if err := kafkaSink.Close(); err != nil {
			errs = errors.Join(errs, fmt.Errorf("kafka close: %w", err))
		}
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	if err := otelShutdown(shutdownCtx); err != nil {
		errs = errors.Join(errs, fmt.Errorf("otel shutdown: %w", err))
	}

	if errs != nil {
		logger.Error("shutdown finished with errors", zap.Error(errs))
	} else {
		logger.Info("shutdown complete")
	}
	return errs
}
