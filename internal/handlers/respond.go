package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"stockmaster/internal/repositories"
	"stockmaster/internal/services"
)

// serviceError maps a service-layer error to the API's error taxonomy:
// validation and duplicate errors become 400, missing records become 404 with
// notFoundMsg, and anything else becomes 500 with the generic fallback so
// internals never leak to the caller.
func serviceError(c *fiber.Ctx, err error, notFoundMsg, fallbackMsg string) error {
	var validationErr *services.ValidationError
	var duplicateErr *services.DuplicateError

	switch {
	case errors.As(err, &validationErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Validation Error",
			"details": validationErr.Fields,
		})
	case errors.As(err, &duplicateErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": duplicateErr.Message,
		})
	case errors.Is(err, repositories.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": notFoundMsg,
		})
	default:
		log.Printf("Error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fallbackMsg,
		})
	}
}
