package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const Version = "0.4.1"

type SystemHandler struct {
	db *gorm.DB
}

func NewSystemHandler(db *gorm.DB) *SystemHandler {
	return &SystemHandler{db: db}
}

// Health reports liveness plus database reachability.
func (h *SystemHandler) Health(c *fiber.Ctx) error {
	dbStatus := "ok"
	if sqlDB, err := h.db.DB(); err != nil || sqlDB.Ping() != nil {
		dbStatus = "unreachable"
	}
	return c.JSON(fiber.Map{
		"status":   "ok",
		"service":  "reaper",
		"version":  Version,
		"database": dbStatus,
	})
}
