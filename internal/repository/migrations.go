package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Migrate applies the ledger schema. Statements are idempotent so the
// service can run them on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	// Migration 1: user progress table
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS user_progress (
			user_id TEXT PRIMARY KEY,
			coins BIGINT NOT NULL DEFAULT 0 CHECK (coins >= 0),
			total_coins_earned BIGINT NOT NULL DEFAULT 0 CHECK (total_coins_earned >= 0),
			total_coins_spent BIGINT NOT NULL DEFAULT 0 CHECK (total_coins_spent >= 0),
			total_xp BIGINT NOT NULL DEFAULT 0 CHECK (total_xp >= 0),
			current_level INT NOT NULL DEFAULT 1,
			total_sessions BIGINT NOT NULL DEFAULT 0,
			current_streak INT NOT NULL DEFAULT 0,
			longest_streak INT NOT NULL DEFAULT 0,
			last_session_date DATE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 1: user_progress table created")

	// Migration 2: append-only coin transaction audit log
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS coin_transactions (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			operation VARCHAR(10) NOT NULL CHECK (operation IN ('earn', 'spend')),
			amount BIGINT NOT NULL CHECK (amount > 0),
			source VARCHAR(50) NOT NULL,
			balance_before BIGINT NOT NULL,
			balance_after BIGINT NOT NULL,
			session_id TEXT,
			item_id TEXT,
			metadata JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_coin_tx_user_time
			ON coin_transactions(user_id, created_at DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 2: coin_transactions table created")

	// Migration 3: idempotency guard. One successful earn per
	// (user, session), enforced by the store itself.
	_, err = pool.Exec(ctx, `
		CREATE UNIQUE INDEX IF NOT EXISTS idx_coin_tx_session_reward
			ON coin_transactions(user_id, session_id)
			WHERE operation = 'earn' AND session_id IS NOT NULL;
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 3: session reward unique index created")

	// Migration 4: completed focus session records
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS focus_sessions (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			duration_minutes INT NOT NULL CHECK (duration_minutes BETWEEN 1 AND 480),
			xp_earned BIGINT NOT NULL CHECK (xp_earned >= 0),
			session_type VARCHAR(50) NOT NULL DEFAULT 'focus',
			completed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_focus_sessions_user_time
			ON focus_sessions(user_id, completed_at DESC);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 4: focus_sessions table created")

	return nil
}
