package server

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"focus-ledger/internal/auth"
)

// LocalRequestID is the locals key carrying the per-request UUID.
const LocalRequestID = "requestID"

// RequestLogging tags every request with a UUID and logs method, path,
// status, duration, and the resolved user when one exists.
func RequestLogging() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		requestID := uuid.NewString()
		c.Locals(LocalRequestID, requestID)
		c.Set("X-Request-ID", requestID)

		err := c.Next()

		status := c.Response().StatusCode()
		evt := log.Info()
		if status >= 500 {
			evt = log.Error()
		} else if status >= 400 {
			evt = log.Warn()
		}

		evt = evt.
			Str("request_id", requestID).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("duration", time.Since(start))
		if userID, ok := c.Locals(auth.LocalUserID).(string); ok && userID != "" {
			evt = evt.Str("user_id", userID)
		}
		if err != nil {
			evt = evt.Err(err)
		}
		evt.Msg("request")

		return err
	}
}

// CORS answers preflight requests unconditionally and only echoes an
// allow-listed Origin back. Unrecognized origins get a literal "null"
// allow-origin, which blocks browser access while leaving the response
// observable to non-browser clients.
func CORS(allowedOrigins []string) fiber.Handler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[strings.TrimRight(origin, "/")] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		origin := c.Get(fiber.HeaderOrigin)
		headerValue := "null"
		if origin != "" {
			if _, ok := allowed[strings.TrimRight(origin, "/")]; ok {
				headerValue = origin
			}
		}

		c.Set(fiber.HeaderAccessControlAllowOrigin, headerValue)
		c.Set(fiber.HeaderAccessControlAllowMethods, "POST, GET, OPTIONS")
		c.Set(fiber.HeaderAccessControlAllowHeaders, "Authorization, Content-Type")
		c.Set(fiber.HeaderVary, fiber.HeaderOrigin)

		if c.Method() == fiber.MethodOptions {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.Next()
	}
}

// Auth resolves the bearer credential to a user id and stores it in
// locals. Requests without a resolvable identity never reach a handler.
func Auth(verifier auth.Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"error":   "Missing bearer credential",
			})
		}

		userID, err := verifier.Verify(c.UserContext(), token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"success": false,
					"error":   "Invalid or expired credential",
				})
			}
			log.Error().Err(err).Msg("identity provider verification failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   "Internal server error",
			})
		}

		c.Locals(auth.LocalUserID, userID)
		return c.Next()
	}
}
