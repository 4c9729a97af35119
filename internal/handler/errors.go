package handler

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/vietstart-api/internal/port"
)

// Error codes returned in the "code" field of error bodies.
const (
	CodeBadRequest           = "bad_request"
	CodeUnauthorized         = "unauthorized"
	CodeNotFound             = "not_found"
	CodeForbidden            = "forbidden"
	CodeInvalidState         = "invalid_state"
	CodeDuplicateActive      = "duplicate_active_engagement"
	CodeEmbeddingUnavailable = "embedding_unavailable"
	CodeInternal             = "internal"
)

// statusFor maps a service error onto an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, port.ErrNotFound):
		return fiber.StatusNotFound, CodeNotFound
	case errors.Is(err, port.ErrForbidden):
		return fiber.StatusForbidden, CodeForbidden
	case errors.Is(err, port.ErrDuplicateActiveEngagement):
		return fiber.StatusConflict, CodeDuplicateActive
	case errors.Is(err, port.ErrInvalidState):
		return fiber.StatusConflict, CodeInvalidState
	case errors.Is(err, port.ErrEmbeddingUnavailable):
		return fiber.StatusServiceUnavailable, CodeEmbeddingUnavailable
	case errors.Is(err, port.ErrUnauthorized), errors.Is(err, port.ErrTokenExpired), errors.Is(err, port.ErrTokenInvalid):
		return fiber.StatusUnauthorized, CodeUnauthorized
	}
	return fiber.StatusInternalServerError, CodeInternal
}

// respondError writes err as {"error", "code"}. Internal errors are logged
// and their message is not exposed.
func respondError(c fiber.Ctx, err error) error {
	status, code := statusFor(err)
	msg := err.Error()
	if status == fiber.StatusInternalServerError {
		slog.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
		msg = "internal server error"
	}
	return c.Status(status).JSON(fiber.Map{"error": msg, "code": code})
}

func badRequest(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg, "code": CodeBadRequest})
}

func unauthorized(c fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "code": CodeUnauthorized})
}

var errInvalidLimit = errors.New("limit must be a non-negative integer")
