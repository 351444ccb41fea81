// Package main is the entry point for the currency and progression
// ledger service.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"focus-ledger/internal/auth"
	"focus-ledger/internal/config"
	"focus-ledger/internal/handler"
	"focus-ledger/internal/pkg/db"
	"focus-ledger/internal/ratelimit"
	"focus-ledger/internal/repository"
	"focus-ledger/internal/server"
	"focus-ledger/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("LOG_PRETTY") != "" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	if err := repository.Migrate(ctx, dbPool.Pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	progressRepo := repository.NewProgressRepository(dbPool.Pool)
	txRepo := repository.NewTransactionRepository(dbPool.Pool)

	limiter := newLimiter(ctx, cfg)
	verifier := newVerifier(cfg)

	ledgerService := service.NewLedgerService(progressRepo, txRepo)
	progressionService := service.NewProgressionService(progressRepo, time.UTC)
	accountService := service.NewAccountService(progressRepo)

	h := handler.New(ledgerService, progressionService, accountService, limiter)
	srv := server.New(cfg, verifier, h, dbPool)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Listen(); err != nil {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	if err := srv.Shutdown(); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}
	log.Info().Msg("Server stopped gracefully")
}

// newLimiter selects the rate limiter backend. Memory keeps budgets
// per-instance; redis enforces them fleet-wide.
func newLimiter(ctx context.Context, cfg *config.Config) ratelimit.Limiter {
	limits := ratelimit.Limits{
		Earn:        ratelimit.ClassLimit{Max: cfg.RateLimit.EarnMax, Window: cfg.RateLimit.EarnWindow},
		Spend:       ratelimit.ClassLimit{Max: cfg.RateLimit.SpendMax, Window: cfg.RateLimit.SpendWindow},
		Destructive: ratelimit.ClassLimit{Max: cfg.RateLimit.DestructiveMax, Window: cfg.RateLimit.DestructiveWindow},
	}

	if cfg.RateLimit.Backend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RateLimit.RedisAddr,
			Password: cfg.RateLimit.RedisPassword,
			DB:       cfg.RateLimit.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RateLimit.RedisAddr).Msg("Failed to connect to Redis")
		}
		log.Info().Str("addr", cfg.RateLimit.RedisAddr).Msg("Rate limiting via Redis (fleet-wide)")
		return ratelimit.NewRedisLimiter(client, limits)
	}

	log.Info().Msg("Rate limiting in-memory (per-instance)")
	return ratelimit.NewMemoryLimiter(limits)
}

// newVerifier selects the identity resolution backend.
func newVerifier(cfg *config.Config) auth.Verifier {
	if cfg.Auth.VerifyURL != "" {
		return auth.NewHTTPVerifier(cfg.Auth.VerifyURL, cfg.Auth.VerifyTimeout)
	}
	if len(cfg.Auth.StaticTokens) == 0 {
		log.Fatal().Msg("No auth backend configured: set auth.verify_url or auth.static_tokens")
	}
	log.Warn().Msg("Using static token auth; development only")
	return auth.NewStaticVerifier(cfg.Auth.StaticTokens)
}
