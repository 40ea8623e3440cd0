package middleware

import (
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/trustid/trustid/internal/identity"
)

// Audit logs one line per request and records request metrics. Paths are
// logged as route templates so session ids in the URL stay out of the log.
func Audit(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}
		duration := time.Since(start)
		route := c.Route().Path

		httpRequests.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(c.Method(), route).Observe(duration.Seconds())

		attrs := []any{
			slog.String("method", c.Method()),
			slog.String("route", route),
			slog.Int("status", status),
			slog.Duration("duration", duration),
		}
		if requestID, _ := c.Locals(RequestIDLocal).(string); requestID != "" {
			attrs = append(attrs, slog.String("request_id", requestID))
		}
		if identityID, _ := c.Locals(identity.IdentityIDLocal).(string); identityID != "" {
			attrs = append(attrs, slog.String("identity_id", identityID))
		}
		switch {
		case status >= fiber.StatusInternalServerError:
			if err != nil {
				attrs = append(attrs, slog.Any("error", err))
			}
			logger.Error("request completed", attrs...)
		case status >= fiber.StatusBadRequest:
			logger.Warn("request completed", attrs...)
		default:
			logger.Info("request completed", attrs...)
		}
		return err
	}
}
