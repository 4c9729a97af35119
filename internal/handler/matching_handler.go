package handler

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/vietstart-api/internal/domain"
)

// Ranker ranks candidates for a startup.
type Ranker interface {
	Rank(ctx context.Context, startupID string, limit int) ([]domain.MatchResult, error)
	RankGrouped(ctx context.Context, startupID string, limit int) (*domain.GroupedRankings, error)
}

// MatchingHandler serves candidate rankings.
type MatchingHandler struct {
	ranker Ranker
}

// NewMatchingHandler creates a new matching handler.
func NewMatchingHandler(ranker Ranker) *MatchingHandler {
	return &MatchingHandler{ranker: ranker}
}

// Register sets up matching routes.
func (h *MatchingHandler) Register(router fiber.Router) {
	startups := router.Group("/startups")
	startups.Get("/:id/candidates", h.Rank)
	startups.Get("/:id/candidates/grouped", h.RankGrouped)
}

// Rank returns the blended ranking. An embedding outage yields a smaller
// or empty list, never an error.
func (h *MatchingHandler) Rank(c fiber.Ctx) error {
	limit, err := queryLimit(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	startupID := c.Params("id")
	results, err := h.ranker.Rank(c.Context(), startupID, limit)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"startup_id": startupID,
		"candidates": results,
		"count":      len(results),
	})
}

// RankGrouped returns the per-signal rankings plus the overall one.
func (h *MatchingHandler) RankGrouped(c fiber.Ctx) error {
	limit, err := queryLimit(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	startupID := c.Params("id")
	grouped, err := h.ranker.RankGrouped(c.Context(), startupID, limit)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"startup_id": startupID,
		"rankings":   grouped,
	})
}

// queryLimit parses ?limit=. Absent means 0, which selects the default.
func queryLimit(c fiber.Ctx) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errInvalidLimit
	}
	return n, nil
}
