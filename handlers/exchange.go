// handlers/exchange.go
package handlers

import (
	"fmt"
	"strconv"

	"penpal-exchange-system/middleware"
	"penpal-exchange-system/services"
	"penpal-exchange-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// SetupExchangeRoutes wires the pen-pal exchange endpoints. The gateway
// forwards user routes under /s/ with auth context headers; /internal/ routes
// are called service-to-service (matchmaker) with only the gateway token.
func SetupExchangeRoutes(app *fiber.App, missionService *services.MissionService, disputeService *services.DisputeService, cancelService *services.CancellationService, repService *services.ReputationService) {
	// --- Matchmaker-facing routes ---
	internal := app.Group("/internal")

	internal.Post("/matches", func(c *fiber.Ctx) error {
		type Req struct {
			PartyAID   string `json:"party_a_id" validate:"required"`
			PartyAName string `json:"party_a_name"`
			PartyBID   string `json:"party_b_id" validate:"required"`
			PartyBName string `json:"party_b_name"`
			TotalSteps int    `json:"total_steps"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if req.PartyAID == "" || req.PartyBID == "" || req.PartyAID == req.PartyBID {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "two distinct party IDs are required"})
		}

		match, err := missionService.RegisterMatch(req.PartyAID, req.PartyAName, req.PartyBID, req.PartyBName, req.TotalSteps)
		if err != nil {
			return replyServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(match)
	})

	internal.Post("/matches/:match_id/activate", func(c *fiber.Ctx) error {
		match, err := missionService.ActivateMatch(c.Params("match_id"))
		if err != nil {
			return replyServiceError(c, err)
		}
		return c.JSON(match)
	})

	// Score read API for the matchmaker to deprioritize low-trust users.
	internal.Get("/users/:user_id/score", func(c *fiber.Ctx) error {
		score, err := repService.GetScore(c.Params("user_id"))
		if err != nil {
			return replyServiceError(c, err)
		}
		return c.JSON(fiber.Map{"user_id": c.Params("user_id"), "score": score})
	})

	// --- User-facing routes (gateway sets X-User-ID) ---
	secured := app.Group("/s", middleware.UserContextMiddleware())

	secured.Get("/matches/:match_id/mission", func(c *fiber.Ctx) error {
		mission, err := missionService.GetMissionState(c.Params("match_id"))
		if err != nil {
			return replyServiceError(c, err)
		}
		return c.JSON(fiber.Map{
			"match_id":        mission.MatchID,
			"total_steps":     mission.TotalSteps,
			"current_step":    mission.CurrentStep,
			"completed_steps": mission.CompletedSteps(),
			"is_completed":    mission.IsCompleted,
			"is_cancelled":    mission.IsCancelled,
		})
	})

	secured.Get("/matches/:match_id/letters", func(c *fiber.Ctx) error {
		entries, err := missionService.ListEntries(c.Params("match_id"))
		if err != nil {
			return replyServiceError(c, err)
		}
		return c.JSON(fiber.Map{"letters": entries, "count": len(entries)})
	})

	// "I sent a letter": photo evidence goes to R2 first; the ledger is only
	// touched once the upload produced a URL.
	secured.Post("/matches/:match_id/letters", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		matchID := c.Params("match_id")

		fileHeader, err := c.FormFile("evidence")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "evidence photo is required"})
		}

		key := fmt.Sprintf("evidence/%s/%s-send", matchID, uuid.NewString())
		evidenceURL, err := utils.UploadEvidence(fileHeader, key)
		if err != nil {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "evidence upload failed", "cause": err.Error()})
		}

		entry, err := missionService.SubmitSend(matchID, userID, evidenceURL)
		if err != nil {
			return replyServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(entry)
	})

	// "The letter arrived": confirmation photo is optional.
	secured.Post("/matches/:match_id/letters/:step/confirm", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		matchID := c.Params("match_id")
		step, err := strconv.Atoi(c.Params("step"))
		if err != nil || step < 1 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid step number"})
		}

		var evidenceURL *string
		if fileHeader, err := c.FormFile("evidence"); err == nil {
			key := fmt.Sprintf("evidence/%s/%s-receive", matchID, uuid.NewString())
			uploaded, err := utils.UploadEvidence(fileHeader, key)
			if err != nil {
				return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "evidence upload failed", "cause": err.Error()})
			}
			evidenceURL = &uploaded
		}

		entry, err := missionService.ConfirmReceive(matchID, step, userID, evidenceURL)
		if err != nil {
			return replyServiceError(c, err)
		}
		return c.JSON(entry)
	})

	secured.Post("/matches/:match_id/letters/:step/dispute", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)
		step, err := strconv.Atoi(c.Params("step"))
		if err != nil || step < 1 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid step number"})
		}

		type Req struct {
			Reason string `json:"reason" validate:"required,max=500"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}
		if req.Reason == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "a dispute reason is required"})
		}

		entry, err := disputeService.RaiseDispute(c.Params("match_id"), step, userID, req.Reason)
		if err != nil {
			return replyServiceError(c, err)
		}
		return c.JSON(entry)
	})

	secured.Post("/matches/:match_id/cancellation", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		type Req struct {
			Reason string `json:"reason" validate:"max=500"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid JSON", "cause": err.Error()})
		}

		request, err := cancelService.RequestCancellation(c.Params("match_id"), userID, req.Reason)
		if err != nil {
			return replyServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(request)
	})

	secured.Get("/user/reputation", func(c *fiber.Ctx) error {
		userID := c.Locals("user_id").(string)

		rec, score, penalties, err := repService.GetReputation(userID)
		if err != nil {
			return replyServiceError(c, err)
		}
		return c.JSON(fiber.Map{
			"score":                   score,
			"total_matches":           rec.TotalMatches,
			"completed_matches":       rec.CompletedMatches,
			"self_cancelled_count":    rec.SelfCancelledCount,
			"partner_cancelled_count": rec.PartnerCancelledCount,
			"penalties":               penalties,
		})
	})
}
