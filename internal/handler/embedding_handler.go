package handler

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/arturoeanton/vietstart-api/internal/domain"
	"github.com/arturoeanton/vietstart-api/internal/middleware"
	"github.com/arturoeanton/vietstart-api/internal/port"
	"github.com/arturoeanton/vietstart-api/internal/service"
)

// Recalculator recomputes stored embeddings.
type Recalculator interface {
	RecalculateProfile(ctx context.Context, userID string) (*service.RecalculationResult, error)
	RecalculateOwnedStartup(ctx context.Context, actorID, startupID string) error
	RecalculateAll(ctx context.Context, opts service.BatchOptions, progress service.ProgressFunc) (service.BatchReport, error)
}

// EmbeddingHandler triggers embedding recalculation.
type EmbeddingHandler struct {
	recalc  Recalculator
	tracker *JobTracker
	audit   port.AuditWriter
	// jobCtx outlives requests; cancelling it stops running batch jobs.
	jobCtx context.Context
}

// NewEmbeddingHandler creates a new embedding handler. audit may be nil.
func NewEmbeddingHandler(jobCtx context.Context, recalc Recalculator, tracker *JobTracker, audit port.AuditWriter) *EmbeddingHandler {
	return &EmbeddingHandler{recalc: recalc, tracker: tracker, audit: audit, jobCtx: jobCtx}
}

// Register sets up embedding routes. The batch route is admin only.
func (h *EmbeddingHandler) Register(router fiber.Router) {
	embeddings := router.Group("/embeddings")
	embeddings.Post("/me/recalculate", h.RecalculateMine)
	embeddings.Post("/startups/:id/recalculate", h.RecalculateStartup)
	embeddings.Post("/recalculate", middleware.RequireAdmin(), h.RecalculateAll)
}

// RecalculateMine recomputes the caller's three profile vectors. Unlike
// ranking, an embedding outage fails the request with 503.
func (h *EmbeddingHandler) RecalculateMine(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return unauthorized(c)
	}

	res, err := h.recalc.RecalculateProfile(c.Context(), uc.UserID)
	if err != nil {
		return respondError(c, err)
	}
	h.record(uc.UserID, "user", uc.UserID, res)
	return c.JSON(res)
}

// RecalculateStartup recomputes the team vector of a startup the caller owns.
func (h *EmbeddingHandler) RecalculateStartup(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return unauthorized(c)
	}

	startupID := c.Params("id")
	if err := h.recalc.RecalculateOwnedStartup(c.Context(), uc.UserID, startupID); err != nil {
		return respondError(c, err)
	}
	h.record(uc.UserID, "startup", startupID, nil)
	return c.JSON(fiber.Map{"startup_id": startupID, "status": "recalculated"})
}

// RecalculateAll accepts a batch job and returns 202 immediately. Progress
// is available from /jobs/:id and /jobs/:id/stream.
func (h *EmbeddingHandler) RecalculateAll(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return unauthorized(c)
	}

	body := struct {
		Users    *bool `json:"users"`
		Startups *bool `json:"startups"`
	}{}
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&body); err != nil {
			return badRequest(c, "invalid request body")
		}
	}
	opts := service.BatchOptions{Profiles: true, Startups: true}
	if body.Users != nil {
		opts.Profiles = *body.Users
	}
	if body.Startups != nil {
		opts.Startups = *body.Startups
	}
	if !opts.Profiles && !opts.Startups {
		return badRequest(c, "nothing selected to recalculate")
	}

	jobID := uuid.NewString()
	h.tracker.CreateJob(jobID, "recalculate")
	go h.runBatch(jobID, uc.UserID, opts)

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id":  jobID,
		"message": "recalculation started",
	})
}

func (h *EmbeddingHandler) runBatch(jobID, actorID string, opts service.BatchOptions) {
	slog.Info("batch recalculation started", "job_id", jobID, "profiles", opts.Profiles, "startups", opts.Startups)

	report, err := h.recalc.RecalculateAll(h.jobCtx, opts, func(done, total int) {
		h.tracker.UpdateProgress(jobID, done, total)
	})
	h.tracker.Finish(jobID, report, err)

	if err != nil {
		slog.Warn("batch recalculation stopped", "job_id", jobID, "error", err)
		return
	}
	slog.Info("batch recalculation finished", "job_id", jobID, "total", report.Total, "failed", report.Failed)
	h.record(actorID, "batch", jobID, report)
}

func (h *EmbeddingHandler) record(actorID, resource, resourceID string, details any) {
	if h.audit == nil {
		return
	}
	detailsJSON := "{}"
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			detailsJSON = string(b)
		}
	}
	if err := h.audit.WriteAudit(actorID, domain.AuditActionEmbedRecalculate, resource, resourceID, detailsJSON, "", ""); err != nil {
		slog.Error("failed to write audit log", "action", domain.AuditActionEmbedRecalculate, "error", err)
	}
}
