// Package handler maps HTTP requests onto ledger operations. Handlers
// are thin: resolve identity (middleware), rate-limit, validate, invoke
// the service, shape the response. No business logic lives here.
package handler

import (
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"focus-ledger/internal/auth"
	"focus-ledger/internal/ratelimit"
)

// Handler bundles the services behind the HTTP surface.
type Handler struct {
	ledger      LedgerAPI
	progression ProgressionAPI
	account     AccountAPI
	limiter     ratelimit.Limiter
}

// New creates a Handler.
func New(ledger LedgerAPI, progression ProgressionAPI, account AccountAPI, limiter ratelimit.Limiter) *Handler {
	return &Handler{
		ledger:      ledger,
		progression: progression,
		account:     account,
		limiter:     limiter,
	}
}

func userID(c *fiber.Ctx) string {
	id, _ := c.Locals(auth.LocalUserID).(string)
	return id
}

// checkRateLimit runs the limiter gate. Returns false after writing the
// 429 response when the budget is spent; limiter infrastructure errors
// fail closed.
func (h *Handler) checkRateLimit(c *fiber.Ctx, class ratelimit.Class) bool {
	decision, err := h.limiter.Check(c.UserContext(), userID(c), class)
	if err != nil {
		log.Error().Err(err).Str("class", string(class)).Msg("rate limiter check failed")
		_ = internalError(c)
		return false
	}
	if !decision.Allowed {
		retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter))
		_ = c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"success":    false,
			"error":      "Rate limit exceeded",
			"retryAfter": retryAfter,
		})
		return false
	}
	return true
}

// badRequest rejects invalid input with the detail a legitimate client
// needs to correct it.
func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

// internalError hides everything behind a sanitized message; the real
// error is logged by the caller.
func internalError(c *fiber.Ctx) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success": false,
		"error":   "Internal server error",
	})
}

// conflictRetry reports an optimistic-lock conflict. The correct client
// behavior is a full re-attempt, not a resend of the stale write.
func conflictRetry(c *fiber.Ctx) error {
	return c.Status(fiber.StatusConflict).JSON(fiber.Map{
		"success": false,
		"error":   "Concurrent modification, retry the operation",
		"retry":   true,
	})
}
