package middleware

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/arturoeanton/vietstart-api/internal/metrics"
)

// MetricsMiddleware observes request counts and latency per route template,
// so /startups/:id stays one series regardless of the id.
func MetricsMiddleware(m *metrics.Manager) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		method := c.Method()

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			} else if status < fiber.StatusBadRequest {
				status = fiber.StatusInternalServerError
			}
		}

		route := c.Route().Path
		if route == "" {
			route = "unmatched"
		}
		m.RecordHTTPRequest(route, method, strconv.Itoa(status), time.Since(start))
		return err
	}
}
