package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the liveness endpoint.
type HealthHandler struct {
	appName  string
	version  string
	provider string
	db       Pinger
}

// NewHealthHandler creates a new health handler. db may be nil.
func NewHealthHandler(appName, version, provider string, db Pinger) *HealthHandler {
	return &HealthHandler{appName: appName, version: version, provider: provider, db: db}
}

// Register sets up the public health route.
func (h *HealthHandler) Register(router fiber.Router) {
	router.Get("/health", h.Health)
}

// Health reports 503 when the database is unreachable. The embedding
// backend is not checked; ranking degrades without it.
func (h *HealthHandler) Health(c fiber.Ctx) error {
	status, code := "healthy", fiber.StatusOK
	dbStatus := "up"
	if h.db != nil {
		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.Ping(ctx); err != nil {
			status, code, dbStatus = "degraded", fiber.StatusServiceUnavailable, "down"
		}
	}

	return c.Status(code).JSON(fiber.Map{
		"status":             status,
		"app":                h.appName,
		"version":            h.version,
		"database":           dbStatus,
		"embedding_provider": h.provider,
	})
}
