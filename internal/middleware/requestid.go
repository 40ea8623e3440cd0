package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"
	// RequestIDLocal is the fiber.Ctx local holding the request id.
	RequestIDLocal = "request_id"
)

// RequestID propagates the caller's X-Request-ID or assigns a fresh one, and
// echoes it on the response.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqID := c.Get(requestIDHeader)
		if reqID == "" || len(reqID) > 128 {
			reqID = uuid.NewString()
		}
		c.Set(requestIDHeader, reqID)
		c.Locals(RequestIDLocal, reqID)
		return c.Next()
	}
}
