package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"focus-ledger/internal/model"
	"focus-ledger/internal/ratelimit"
	"focus-ledger/internal/repository"
)

// EraseAccount handles POST /api/account/erase: irreversible cascading
// deletion of everything the ledger holds for the caller. Guarded by the
// destructive rate class.
func (h *Handler) EraseAccount(c *fiber.Ctx) error {
	if !h.checkRateLimit(c, ratelimit.ClassDestructive) {
		return nil
	}

	err := h.account.Erase(c.UserContext(), userID(c))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"success": false,
				"error":   "No account data to erase",
			})
		}
		log.Error().Err(err).Str("user_id", userID(c)).Msg("account erase failed")
		return internalError(c)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"erased":  true,
	})
}

// progressView shapes a progress row for JSON responses.
func progressView(p *model.UserProgress) fiber.Map {
	view := fiber.Map{
		"coins":            p.Coins,
		"totalCoinsEarned": p.TotalCoinsEarned,
		"totalCoinsSpent":  p.TotalCoinsSpent,
		"totalXP":          p.TotalXP,
		"currentLevel":     p.CurrentLevel,
		"totalSessions":    p.TotalSessions,
		"currentStreak":    p.CurrentStreak,
		"longestStreak":    p.LongestStreak,
	}
	if p.LastSessionDate != nil {
		view["lastSessionDate"] = p.LastSessionDate.Format("2006-01-02")
	}
	return view
}
