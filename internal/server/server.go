// Package server assembles the fiber application: middleware chain,
// routes, and lifecycle.
package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"

	"focus-ledger/internal/auth"
	"focus-ledger/internal/config"
	"focus-ledger/internal/handler"
)

// HealthChecker reports whether the backing store is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server wraps the fiber app.
type Server struct {
	app             *fiber.App
	addr            string
	shutdownTimeout time.Duration
}

// New builds the application with the full middleware chain. Every gate
// short-circuits before any handler can touch the store.
func New(cfg *config.Config, verifier auth.Verifier, h *handler.Handler, health HealthChecker) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "focus-ledger",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(RequestLogging())
	app.Use(CORS(cfg.CORS.AllowedOrigins))

	// Liveness check sits outside auth.
	app.Get("/healthz", func(c *fiber.Ctx) error {
		if err := health.HealthCheck(c.UserContext()); err != nil {
			log.Error().Err(err).Msg("health check failed")
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api", Auth(verifier))
	api.Post("/coins", h.CoinOperation)
	api.Get("/coins/history", h.TransactionHistory)
	api.Post("/progression/session", h.AwardSessionXP)
	api.Get("/progression", h.ProgressSummary)
	api.Post("/account/erase", h.EraseAccount)

	return &Server{
		app:             app,
		addr:            cfg.Server.Addr(),
		shutdownTimeout: cfg.Server.ShutdownTimeout,
	}
}

// App exposes the underlying fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts serving. Blocks until shutdown.
func (s *Server) Listen() error {
	log.Info().Str("addr", s.addr).Msg("HTTP server listening")
	return s.app.Listen(s.addr)
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown() error {
	if s.shutdownTimeout > 0 {
		return s.app.ShutdownWithTimeout(s.shutdownTimeout)
	}
	return s.app.Shutdown()
}
