package handlers

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/pazarly/reaper/internal/cleanup"
	"github.com/pazarly/reaper/internal/ledger"
	"github.com/pazarly/reaper/internal/models"
	"github.com/pazarly/reaper/internal/scanner"
	"github.com/pazarly/reaper/internal/snapshot"
)

type AbandonedHandler struct {
	ledger        *ledger.Ledger
	scanner       *scanner.Scanner
	engine        *cleanup.Engine
	reader        *snapshot.Reader
	validate      *validator.Validate
	retentionDays int
}

func NewAbandonedHandler(l *ledger.Ledger, s *scanner.Scanner, e *cleanup.Engine, r *snapshot.Reader, retentionDays int) *AbandonedHandler {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	return &AbandonedHandler{
		ledger:        l,
		scanner:       s,
		engine:        e,
		reader:        r,
		validate:      validator.New(),
		retentionDays: retentionDays,
	}
}

// API sort keys to ledger columns.
var sortKeys = map[string]string{
	"detectedAt":     "detected_at",
	"createdAt":      "created_at",
	"updatedAt":      "updated_at",
	"lastNotifiedAt": "last_notified_at",
	"resolvedAt":     "resolved_at",
}

func badRequest(c *fiber.Ctx, code, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":   true,
		"code":    code,
		"message": message,
	})
}

type ScanRequest struct {
	ProcessTypes []string `json:"processTypes" validate:"omitempty,dive,oneof=order delivery_task transaction activity_log"`
	DryRun       bool     `json:"dryRun"`
}

// Scan triggers a detection sweep over the requested process types.
func (h *AbandonedHandler) Scan(c *fiber.Ctx) error {
	var req ScanRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "INVALID_BODY", "Invalid request body")
		}
	}
	if err := h.validate.Struct(&req); err != nil {
		return badRequest(c, "INVALID_PROCESS_TYPE", "processTypes must be a subset of: order, delivery_task, transaction, activity_log")
	}

	types := make([]models.ProcessType, 0, len(req.ProcessTypes))
	for _, t := range req.ProcessTypes {
		types = append(types, models.ProcessType(t))
	}

	report := h.scanner.Scan(types, req.DryRun)
	return c.JSON(fiber.Map{
		"success":            true,
		"scanResults":        report.Results,
		"totalFound":         report.TotalFound,
		"totalNewDetections": report.TotalNewDetections,
		"dryRun":             report.DryRun,
		"scannedAt":          report.ScannedAt,
	})
}

// List returns a filtered, sorted, paginated view of the ledger with
// aggregate counts for the dashboard.
func (h *AbandonedHandler) List(c *fiber.Ctx) error {
	f := ledger.Filter{
		SortOrder: c.Query("sortOrder", "desc"),
		Limit:     c.QueryInt("limit", 50),
		Offset:    c.QueryInt("offset", 0),
	}

	if v := c.Query("processType"); v != "" {
		pt := models.ProcessType(v)
		if !pt.Valid() {
			return badRequest(c, "INVALID_PROCESS_TYPE", "Unknown processType: "+v)
		}
		f.ProcessType = &pt
	}
	if v := c.Query("status"); v != "" {
		st := models.Status(v)
		if !st.Valid() {
			return badRequest(c, "INVALID_STATUS", "Unknown status: "+v)
		}
		f.Status = &st
	}
	if v := c.Query("sortBy", "detectedAt"); v != "" {
		col, ok := sortKeys[v]
		if !ok {
			return badRequest(c, "INVALID_SORT", "sortBy must be one of: detectedAt, createdAt, updatedAt, lastNotifiedAt, resolvedAt")
		}
		f.SortBy = col
	}
	if f.SortOrder != "asc" && f.SortOrder != "desc" {
		return badRequest(c, "INVALID_SORT", "sortOrder must be asc or desc")
	}
	if f.Limit < 1 || f.Limit > 200 {
		return badRequest(c, "INVALID_PAGINATION", "limit must be between 1 and 200")
	}
	if f.Offset < 0 {
		return badRequest(c, "INVALID_PAGINATION", "offset must not be negative")
	}

	page, err := h.ledger.List(f)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"code":    "PERSISTENCE_ERROR",
			"message": "Failed to list abandoned processes",
		})
	}

	items := page.Items
	if items == nil {
		items = []models.AbandonedProcess{}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    items,
		"summary": page.Summary,
		"pagination": fiber.Map{
			"limit":   f.Limit,
			"offset":  f.Offset,
			"hasMore": page.HasMore,
		},
	})
}

// Stats returns the aggregate counts without a page of rows.
func (h *AbandonedHandler) Stats(c *fiber.Ctx) error {
	var f ledger.Filter
	if v := c.Query("processType"); v != "" {
		pt := models.ProcessType(v)
		if !pt.Valid() {
			return badRequest(c, "INVALID_PROCESS_TYPE", "Unknown processType: "+v)
		}
		f.ProcessType = &pt
	}
	if v := c.Query("status"); v != "" {
		st := models.Status(v)
		if !st.Valid() {
			return badRequest(c, "INVALID_STATUS", "Unknown status: "+v)
		}
		f.Status = &st
	}

	summary, err := h.ledger.Summarize(f)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"code":    "PERSISTENCE_ERROR",
			"message": "Failed to compute summary",
		})
	}
	return c.JSON(fiber.Map{"success": true, "summary": summary})
}

// Get returns one ledger row plus, when the underlying entity still exists,
// its current snapshot.
func (h *AbandonedHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "INVALID_ID", "Invalid abandoned process ID")
	}

	row, err := h.ledger.Get(id)
	if errors.Is(err, ledger.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"code":    "NOT_FOUND",
			"message": "Abandoned process not found",
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"code":    "PERSISTENCE_ERROR",
			"message": "Failed to load abandoned process",
		})
	}

	resp := fiber.Map{"success": true, "data": row}
	if entity := h.currentEntity(row); entity != nil {
		resp["entity"] = entity
	}
	return c.JSON(resp)
}

func (h *AbandonedHandler) currentEntity(row *models.AbandonedProcess) interface{} {
	switch row.ProcessType {
	case models.ProcessOrder:
		if o, err := h.reader.GetOrder(row.EntityID); err == nil {
			return o
		}
	case models.ProcessDeliveryTask:
		if d, err := h.reader.GetDeliveryTask(row.EntityID); err == nil {
			return d
		}
	case models.ProcessTransaction:
		if t, err := h.reader.GetTransaction(row.EntityID); err == nil {
			return t
		}
	case models.ProcessActivityLog:
		if a, err := h.reader.GetActivityLog(row.EntityID); err == nil {
			return a
		}
	}
	return nil
}

type UpdateStatusRequest struct {
	Status           string `json:"status" validate:"required,oneof=notified escalated resolved"`
	ResolutionAction string `json:"resolutionAction" validate:"required_if=Status resolved"`
}

// UpdateStatus applies a remediation transition to a tracked process.
func (h *AbandonedHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "INVALID_ID", "Invalid abandoned process ID")
	}

	var req UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "INVALID_BODY", "Invalid request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return badRequest(c, "INVALID_STATUS", "status must be notified, escalated or resolved; resolving requires a resolutionAction")
	}

	row, err := h.ledger.Transition(id, models.Status(req.Status), req.ResolutionAction, time.Now())
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"code":    "NOT_FOUND",
			"message": "Abandoned process not found",
		})
	case errors.Is(err, ledger.ErrInvalidTransition):
		return badRequest(c, "INVALID_TRANSITION", err.Error())
	case errors.Is(err, ledger.ErrEscalationNotDue):
		return badRequest(c, "ESCALATION_NOT_DUE", "Escalation threshold has not elapsed since the last notification")
	case errors.Is(err, ledger.ErrResolutionRequired):
		return badRequest(c, "RESOLUTION_REQUIRED", "A resolutionAction is required to resolve")
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"code":    "PERSISTENCE_ERROR",
			"message": "Failed to update abandoned process",
		})
	}

	return c.JSON(fiber.Map{"success": true, "data": row})
}

type CleanupRequest struct {
	ProcessTypes  []string `json:"processTypes" validate:"omitempty,dive,oneof=order delivery_task transaction activity_log"`
	OlderThanDays *int     `json:"olderThanDays"`
	DryRun        bool     `json:"dryRun"`
}

// Cleanup applies the retention policy, or previews it in dry-run mode.
func (h *AbandonedHandler) Cleanup(c *fiber.Ctx) error {
	var req CleanupRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "INVALID_BODY", "Invalid request body")
		}
	}
	if err := h.validate.Struct(&req); err != nil {
		return badRequest(c, "INVALID_PROCESS_TYPE", "processTypes must be a subset of: order, delivery_task, transaction, activity_log")
	}
	olderThanDays := h.retentionDays
	if req.OlderThanDays != nil {
		olderThanDays = *req.OlderThanDays
	}
	if olderThanDays <= 0 {
		return badRequest(c, "INVALID_RETENTION", "olderThanDays must be a positive integer")
	}

	types := make([]models.ProcessType, 0, len(req.ProcessTypes))
	for _, t := range req.ProcessTypes {
		types = append(types, models.ProcessType(t))
	}

	report, err := h.engine.Cleanup(types, olderThanDays, req.DryRun)
	switch {
	case errors.Is(err, cleanup.ErrInvalidRetention):
		return badRequest(c, "INVALID_RETENTION", "olderThanDays must be a positive integer")
	case errors.Is(err, cleanup.ErrUnknownProcessType):
		return badRequest(c, "INVALID_PROCESS_TYPE", err.Error())
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"code":    "PERSISTENCE_ERROR",
			"message": "Cleanup failed",
		})
	}

	if report.DryRun {
		return c.JSON(fiber.Map{
			"success": true,
			"dryRun":  true,
			"wouldDelete": fiber.Map{
				"abandonedProcesses": report.ProcessesDeleted,
				"activityLogs":       report.ActivityLogsPurged,
			},
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"cleanupResults": fiber.Map{
			"abandonedProcessesDeleted": report.ProcessesDeleted,
			"byType":                    report.ByType,
			"activityLogsArchived":      report.ActivityLogsPurged,
			"olderThanDays":             report.OlderThanDays,
			"dryRun":                    false,
		},
		"cleanedAt": report.CleanedAt,
	})
}
