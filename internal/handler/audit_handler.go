package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/vietstart-api/internal/middleware"
	"github.com/arturoeanton/vietstart-api/internal/port"
)

const maxAuditPage = 500

// AuditHandler handles audit log endpoints.
type AuditHandler struct {
	reader port.AuditReader
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(reader port.AuditReader) *AuditHandler {
	return &AuditHandler{reader: reader}
}

// Register sets up audit routes. All of them require the admin role.
func (h *AuditHandler) Register(router fiber.Router) {
	audit := router.Group("/audit", middleware.RequireAdmin())
	audit.Get("/logs", h.ListLogs)
}

// ListLogs returns the newest audit logs, optionally filtered by ?action=.
func (h *AuditHandler) ListLogs(c fiber.Ctx) error {
	limit, err := strconv.Atoi(c.Query("limit", "100"))
	if err != nil || limit <= 0 {
		limit = 100
	}
	limit = min(limit, maxAuditPage)

	logs, err := h.reader.ListAuditLogs(c.Context(), limit, c.Query("action"))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"logs":  logs,
		"count": len(logs),
	})
}
