package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"focus-ledger/internal/progression"
	"focus-ledger/internal/ratelimit"
	"focus-ledger/internal/repository"
	"focus-ledger/internal/validate"
)

type sessionRequest struct {
	SessionMinutes *float64 `json:"sessionMinutes"`
}

// AwardSessionXP handles POST /api/progression/session: grants XP for a
// completed focus session and reports the resulting level state.
func (h *Handler) AwardSessionXP(c *fiber.Ctx) error {
	if !h.checkRateLimit(c, ratelimit.ClassEarn) {
		return nil
	}

	var req sessionRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Malformed request body")
	}
	if req.SessionMinutes == nil {
		return badRequest(c, "invalid sessionMinutes: missing")
	}
	minutes, err := validate.SessionMinutes(*req.SessionMinutes)
	if err != nil {
		return badRequest(c, err.Error())
	}

	res, err := h.progression.AwardSessionXP(c.UserContext(), userID(c), minutes)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return conflictRetry(c)
		}
		log.Error().Err(err).Str("user_id", userID(c)).Msg("session xp award failed")
		return internalError(c)
	}

	return c.JSON(fiber.Map{
		"success":         true,
		"xpGained":        res.XPGained,
		"oldLevel":        res.OldLevel,
		"newLevel":        res.NewLevel,
		"leveledUp":       res.LeveledUp,
		"totalXP":         res.TotalXP,
		"xpToNextLevel":   res.XPToNextLevel,
		"currentLevelXP":  res.CurrentLevelXP,
		"updatedProgress": progressView(res.Progress),
	})
}

// ProgressSummary handles GET /api/progression.
func (h *Handler) ProgressSummary(c *fiber.Ctx) error {
	prog, err := h.account.Summary(c.UserContext(), userID(c))
	if err != nil {
		log.Error().Err(err).Str("user_id", userID(c)).Msg("progress summary failed")
		return internalError(c)
	}
	view := progressView(prog)
	view["xpToNextLevel"] = progression.XPToNextLevel(prog.TotalXP)
	view["currentLevelXP"] = progression.XPWithinLevel(prog.TotalXP)
	return c.JSON(fiber.Map{
		"success":  true,
		"progress": view,
	})
}
