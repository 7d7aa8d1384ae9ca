// handlers/admin.go
package handlers

import (
	"strconv"

	"penpal-exchange-system/middleware"
	"penpal-exchange-system/models"
	"penpal-exchange-system/services"

	"github.com/gofiber/fiber/v2"
)

// SetupAdminRoutes wires the reviewer endpoints: disputed letters, escalated
// (long-unconfirmed) letters, and cancellation adjudication.
func SetupAdminRoutes(app *fiber.App, missionService *services.MissionService, disputeService *services.DisputeService, cancelService *services.CancellationService) {
	admin := app.Group("/s/admin", middleware.UserContextMiddleware(), middleware.AdminOnly())

	admin.Get("/disputes", func(c *fiber.Ctx) error {
		entries, err := disputeService.ListDisputedEntries()
		if err != nil {
			return replyServiceError(c, err)
		}
		return c.JSON(fiber.Map{"disputes": entries, "count": len(entries)})
	})

	admin.Post("/disputes/:match_id/:step/resolve", func(c *fiber.Ctx) error {
		adminID := c.Locals("user_id").(string)
		step, err := strconv.Atoi(c.Params("step"))
		if err != nil || step < 1 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid step number"})
		}

		type Req struct {
			Outcome string `json:"outcome" validate:"oneof=confirmed rejected"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if req.Outcome != services.DisputeOutcomeConfirmed && req.Outcome != services.DisputeOutcomeRejected {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "outcome must be 'confirmed' or 'rejected'"})
		}

		entry, err := disputeService.ResolveDispute(c.Params("match_id"), step, req.Outcome, adminID)
		if err != nil {
			return replyServiceError(c, err)
		}
		return c.JSON(entry)
	})

	admin.Get("/escalations", func(c *fiber.Ctx) error {
		entries, err := missionService.ListEscalatedEntries()
		if err != nil {
			return replyServiceError(c, err)
		}
		return c.JSON(fiber.Map{"escalations": entries, "count": len(entries)})
	})

	admin.Get("/cancellations", func(c *fiber.Ctx) error {
		requests, err := cancelService.ListPendingCancellations()
		if err != nil {
			return replyServiceError(c, err)
		}
		return c.JSON(fiber.Map{"cancellations": requests, "count": len(requests)})
	})

	admin.Post("/cancellations/:request_id/adjudicate", func(c *fiber.Ctx) error {
		adminID := c.Locals("user_id").(string)

		type Req struct {
			Decision string `json:"decision" validate:"oneof=approved rejected"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if req.Decision != models.CancelRequestApproved && req.Decision != models.CancelRequestRejected {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "decision must be 'approved' or 'rejected'"})
		}

		request, err := cancelService.Adjudicate(c.Params("request_id"), req.Decision, adminID)
		if err != nil {
			return replyServiceError(c, err)
		}
		return c.JSON(request)
	})
}
