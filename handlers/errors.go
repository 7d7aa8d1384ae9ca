package handlers

import (
	"errors"
	"log"

	"penpal-exchange-system/services"

	"github.com/gofiber/fiber/v2"
)

// replyServiceError maps the service error taxonomy onto HTTP. Precondition
// violations get a specific reason — users retry forever when they only see
// a generic failure.
func replyServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrMatchNotFound),
		errors.Is(err, services.ErrProofNotFound),
		errors.Is(err, services.ErrRequestNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})

	case errors.Is(err, services.ErrNotYourProof),
		errors.Is(err, services.ErrNotAParty):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})

	case errors.Is(err, services.ErrNotYourTurn),
		errors.Is(err, services.ErrMissionNotActive),
		errors.Is(err, services.ErrDuplicateStep),
		errors.Is(err, services.ErrAlreadyResolved),
		errors.Is(err, services.ErrOutOfOrderConfirmation),
		errors.Is(err, services.ErrDisputeWindowClosed),
		errors.Is(err, services.ErrNotDisputed),
		errors.Is(err, services.ErrDuplicateRequest):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}

	log.Printf("[HTTP] unexpected error on %s: %v", c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}
