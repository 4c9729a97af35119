package handler

import (
	"context"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/vietstart-api/internal/domain"
	"github.com/arturoeanton/vietstart-api/internal/middleware"
	"github.com/arturoeanton/vietstart-api/internal/service"
)

// Recruiter drives the engagement workflow on behalf of a caller.
type Recruiter interface {
	Invite(ctx context.Context, actorID string, req service.InviteRequest) (*domain.Engagement, error)
	Transition(ctx context.Context, actorID, engagementID string, ev domain.EngagementEvent) (*domain.Engagement, error)
	Get(ctx context.Context, actorID, engagementID string) (*domain.Engagement, error)
	List(ctx context.Context, actorID string, view domain.EngagementView, startupID string) ([]domain.Engagement, error)
}

// EngagementHandler exposes the recruitment workflow.
type EngagementHandler struct {
	recruiter Recruiter
}

// NewEngagementHandler creates a new engagement handler.
func NewEngagementHandler(recruiter Recruiter) *EngagementHandler {
	return &EngagementHandler{recruiter: recruiter}
}

// Register sets up engagement routes.
func (h *EngagementHandler) Register(router fiber.Router) {
	engagements := router.Group("/engagements")
	engagements.Post("/", h.Invite)
	engagements.Get("/", h.List)
	engagements.Get("/:id", h.Get)
	engagements.Post("/:id/:event", h.Transition)
}

// Invite creates a Pending engagement for a startup the caller owns.
func (h *EngagementHandler) Invite(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return unauthorized(c)
	}

	var req service.InviteRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.StartupID == "" || req.CandidateID == "" {
		return badRequest(c, "startup_id and candidate_id are required")
	}

	e, err := h.recruiter.Invite(c.Context(), uc.UserID, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(e)
}

// Transition applies accept, reject, cancel or confirm.
func (h *EngagementHandler) Transition(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return unauthorized(c)
	}

	ev, err := domain.ParseEngagementEvent(c.Params("event"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error(), "code": CodeNotFound})
	}

	e, err := h.recruiter.Transition(c.Context(), uc.UserID, c.Params("id"), ev)
	if err != nil {
		return respondError(c, err)
	}

	resp := fiber.Map{"engagement": e, "deleted": false}
	// Withdrawing a Pending invite removes the record.
	if ev == domain.EventCancel && e.Status == domain.StatusPending {
		resp["deleted"] = true
	}
	return c.JSON(resp)
}

// Get returns one engagement the caller is a party to.
func (h *EngagementHandler) Get(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return unauthorized(c)
	}

	e, err := h.recruiter.Get(c.Context(), uc.UserID, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(e)
}

// List returns a derived view (?view=sent|received|active|team|history,
// default received), optionally narrowed with ?startup_id=.
func (h *EngagementHandler) List(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return unauthorized(c)
	}

	view, err := domain.ParseEngagementView(c.Query("view", string(domain.ViewReceived)))
	if err != nil {
		return badRequest(c, err.Error())
	}
	list, err := h.recruiter.List(c.Context(), uc.UserID, view, c.Query("startup_id"))
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"view":        view,
		"engagements": list,
		"count":       len(list),
	})
}
