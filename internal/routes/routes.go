package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pazarly/reaper/internal/config"
	"github.com/pazarly/reaper/internal/handlers"
	"github.com/pazarly/reaper/internal/middleware"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	systemHandler *handlers.SystemHandler,
	abandonedHandler *handlers.AbandonedHandler,
) {
	// ─── Public ──────────────────────────────────────────────────────────
	app.Get("/api/health", systemHandler.Health)

	// ─── Protected routes ────────────────────────────────────────────────
	api := app.Group("/api", middleware.JWTProtected(cfg.JWTSecret))

	// Abandoned process detector / GC
	api.Post("/abandoned/scan", abandonedHandler.Scan)
	api.Post("/abandoned/cleanup", abandonedHandler.Cleanup)
	api.Get("/abandoned/stats", abandonedHandler.Stats)
	api.Get("/abandoned", abandonedHandler.List)
	api.Get("/abandoned/:id", abandonedHandler.Get)
	api.Put("/abandoned/:id/status", abandonedHandler.UpdateStatus)
}
