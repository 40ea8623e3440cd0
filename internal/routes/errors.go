package routes

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler renders every error as {"error": message}. Errors that are not
// *fiber.Error never reach the client verbatim.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "internal error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		message = fe.Message
	}
	return c.Status(code).JSON(fiber.Map{"error": message})
}
