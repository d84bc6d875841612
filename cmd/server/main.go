package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/pazarly/reaper/internal/audit"
	"github.com/pazarly/reaper/internal/cleanup"
	"github.com/pazarly/reaper/internal/config"
	"github.com/pazarly/reaper/internal/database"
	"github.com/pazarly/reaper/internal/detector"
	"github.com/pazarly/reaper/internal/handlers"
	"github.com/pazarly/reaper/internal/ledger"
	"github.com/pazarly/reaper/internal/routes"
	"github.com/pazarly/reaper/internal/scanner"
	"github.com/pazarly/reaper/internal/services"
	"github.com/pazarly/reaper/internal/snapshot"
)

func main() {
	// JSON structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting Reaper", "version", handlers.Version)

	// ─── Config ──────────────────────────────────────────────────────────
	cfg := config.Load()

	// ─── Database ────────────────────────────────────────────────────────
	if err := database.Connect(cfg); err != nil {
		slog.Error("Database connection failed", "error", err)
		os.Exit(1)
	}

	if err := database.Migrate(); err != nil {
		slog.Error("Database migration failed", "error", err)
		os.Exit(1)
	}

	db := database.DB

	// ─── Core services ──────────────────────────────────────────────────
	reader := snapshot.NewReader(db)
	detectors := detector.New(reader, detector.Thresholds{
		OrderStale:       time.Duration(cfg.OrderStaleHours) * time.Hour,
		DeliveryStale:    time.Duration(cfg.DeliveryStaleHours) * time.Hour,
		TransactionStale: time.Duration(cfg.TransactionStaleHours) * time.Hour,
		ActivityStale:    time.Duration(cfg.ActivityStaleHours) * time.Hour,
	})
	ledg := ledger.New(db, time.Duration(cfg.EscalationHours)*time.Hour)
	scan := scanner.New(detectors, ledg)
	sink := audit.NewSink(db)
	engine := cleanup.New(ledg, sink, reader)

	// ─── Sweeper ────────────────────────────────────────────────────────
	sweeper := services.NewSweeper(scan, time.Duration(cfg.SweepIntervalMinutes)*time.Minute)
	sweeper.Start()

	// ─── Handlers ───────────────────────────────────────────────────────
	systemHandler := handlers.NewSystemHandler(db)
	abandonedHandler := handlers.NewAbandonedHandler(ledg, scan, engine, reader, cfg.CleanupRetentionDays)

	// ─── Fiber App ──────────────────────────────────────────────────────
	app := fiber.New(fiber.Config{
		AppName:      "reaper v" + handlers.Version,
		ServerHeader: "reaper",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := "Internal server error"
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				message = e.Message
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": message,
			})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, PATCH, OPTIONS",
	}))

	app.Use(recover.New(recover.Config{
		EnableStackTrace: false,
	}))

	// Security headers
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-XSS-Protection", "1; mode=block")
		return c.Next()
	})

	// Request logger
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if c.Path() == "/api/health" {
			return err
		}
		slog.Info("request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"duration_ms", time.Since(start).Milliseconds(),
			"ip", c.IP(),
		)
		return err
	})

	// ─── Routes ─────────────────────────────────────────────────────────
	routes.Setup(app, cfg, systemHandler, abandonedHandler)

	// ─── Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		slog.Info("Shutting down Reaper...")

		sweeper.Stop()

		if err := app.Shutdown(); err != nil {
			slog.Error("Fiber shutdown error", "error", err)
		}

		if sqlDB, err := database.DB.DB(); err == nil {
			sqlDB.Close()
		}
	}()

	// ─── Start ──────────────────────────────────────────────────────────
	listenAddr := ":" + cfg.Port
	slog.Info("Reaper listening", "addr", listenAddr)

	if err := app.Listen(listenAddr); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
}
