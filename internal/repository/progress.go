// Package repository provides data access for the ledger service.
// Balance mutations use conditioned updates: every write carries the
// balance observed at read time, and zero affected rows means another
// request won the race.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"focus-ledger/internal/model"
)

const progressColumns = `user_id, coins, total_coins_earned, total_coins_spent,
		total_xp, current_level, total_sessions, current_streak, longest_streak,
		last_session_date, created_at, updated_at`

// ProgressRepository handles user progress persistence.
type ProgressRepository struct {
	pool *pgxpool.Pool
}

// NewProgressRepository creates a new ProgressRepository instance.
func NewProgressRepository(pool *pgxpool.Pool) *ProgressRepository {
	return &ProgressRepository{pool: pool}
}

func scanProgress(row pgx.Row) (*model.UserProgress, error) {
	var p model.UserProgress
	err := row.Scan(
		&p.UserID,
		&p.Coins,
		&p.TotalCoinsEarned,
		&p.TotalCoinsSpent,
		&p.TotalXP,
		&p.CurrentLevel,
		&p.TotalSessions,
		&p.CurrentStreak,
		&p.LongestStreak,
		&p.LastSessionDate,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Get retrieves a user's progress row.
// Returns ErrUserNotFound if the user has no row yet.
func (r *ProgressRepository) Get(ctx context.Context, userID string) (*model.UserProgress, error) {
	query := `SELECT ` + progressColumns + ` FROM user_progress WHERE user_id = $1`

	p, err := scanProgress(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user progress: %w", err)
	}
	return p, nil
}

// CreateWithEarn creates a user's progress row seeded with their
// first-ever credit. If another request created the row concurrently the
// insert lands nothing and ErrConflict tells the caller to re-read.
func (r *ProgressRepository) CreateWithEarn(ctx context.Context, userID string, amount int64) (*model.UserProgress, error) {
	query := `
		INSERT INTO user_progress (user_id, coins, total_coins_earned, created_at, updated_at)
		VALUES ($1, $2, $2, NOW(), NOW())
		ON CONFLICT (user_id) DO NOTHING
		RETURNING ` + progressColumns

	p, err := scanProgress(r.pool.QueryRow(ctx, query, userID, amount))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to create user progress: %w", err)
	}
	return p, nil
}

// EnsureExists creates a zero-valued progress row if the user has none.
// Used before the first XP award; losing the insert race is fine because
// either way the row exists afterwards.
func (r *ProgressRepository) EnsureExists(ctx context.Context, userID string) error {
	const query = `
		INSERT INTO user_progress (user_id, created_at, updated_at)
		VALUES ($1, NOW(), NOW())
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := r.pool.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to ensure user progress: %w", err)
	}
	return nil
}

// ApplyEarn credits a user's balance, conditioned on the balance still
// being what the caller read. Zero rows affected means a concurrent
// mutation committed first and the caller gets ErrConflict.
func (r *ProgressRepository) ApplyEarn(ctx context.Context, userID string, amount, expectedBalance int64) (*model.UserProgress, error) {
	query := `
		UPDATE user_progress
		SET coins = coins + $2,
		    total_coins_earned = total_coins_earned + $2,
		    updated_at = NOW()
		WHERE user_id = $1 AND coins = $3
		RETURNING ` + progressColumns

	p, err := scanProgress(r.pool.QueryRow(ctx, query, userID, amount, expectedBalance))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to apply earn: %w", err)
	}
	return p, nil
}

// ApplySpend debits a user's balance under the same conditioned-update
// contract as ApplyEarn. The balance check in the service plus this
// condition together guarantee the balance never goes negative, even
// under concurrent retries.
func (r *ProgressRepository) ApplySpend(ctx context.Context, userID string, amount, expectedBalance int64) (*model.UserProgress, error) {
	query := `
		UPDATE user_progress
		SET coins = coins - $2,
		    total_coins_spent = total_coins_spent + $2,
		    updated_at = NOW()
		WHERE user_id = $1 AND coins = $3
		RETURNING ` + progressColumns

	p, err := scanProgress(r.pool.QueryRow(ctx, query, userID, amount, expectedBalance))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to apply spend: %w", err)
	}
	return p, nil
}

// SessionXPUpdate carries one XP award bundle: the new progression state
// computed by the service plus the session record to append. Everything
// applies in one transaction or not at all.
type SessionXPUpdate struct {
	UserID          string
	ExpectedTotalXP int64
	NewTotalXP      int64
	NewLevel        int
	CurrentStreak   int
	LongestStreak   int
	SessionDate     string // YYYY-MM-DD
	DurationMinutes int
	XPEarned        int64
	SessionType     string
}

// ApplySessionXP applies an XP award atomically: the conditioned
// progress update and the focus session insert commit together. The
// update is conditioned on total_xp as read, so concurrent awards for
// the same user serialize the same way balance mutations do.
func (r *ProgressRepository) ApplySessionXP(ctx context.Context, upd SessionXPUpdate) (*model.UserProgress, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin session xp transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE user_progress
		SET total_xp = $2,
		    current_level = $3,
		    total_sessions = total_sessions + 1,
		    current_streak = $4,
		    longest_streak = $5,
		    last_session_date = $6,
		    updated_at = NOW()
		WHERE user_id = $1 AND total_xp = $7
		RETURNING ` + progressColumns

	p, err := scanProgress(tx.QueryRow(ctx, query,
		upd.UserID,
		upd.NewTotalXP,
		upd.NewLevel,
		upd.CurrentStreak,
		upd.LongestStreak,
		upd.SessionDate,
		upd.ExpectedTotalXP,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to apply session xp: %w", err)
	}

	const insertQuery = `
		INSERT INTO focus_sessions (user_id, duration_minutes, xp_earned, session_type, completed_at)
		VALUES ($1, $2, $3, $4, NOW())
	`
	if _, err := tx.Exec(ctx, insertQuery, upd.UserID, upd.DurationMinutes, upd.XPEarned, upd.SessionType); err != nil {
		return nil, fmt.Errorf("failed to record focus session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit session xp transaction: %w", err)
	}
	return p, nil
}

// ListSessions retrieves a user's completed focus sessions, newest first.
func (r *ProgressRepository) ListSessions(ctx context.Context, userID string, limit int) ([]*model.FocusSession, error) {
	const query = `
		SELECT id, user_id, duration_minutes, xp_earned, session_type, completed_at
		FROM focus_sessions
		WHERE user_id = $1
		ORDER BY completed_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list focus sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.FocusSession
	for rows.Next() {
		var s model.FocusSession
		err := rows.Scan(&s.ID, &s.UserID, &s.DurationMinutes, &s.XPEarned, &s.SessionType, &s.CompletedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan focus session: %w", err)
		}
		sessions = append(sessions, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating focus sessions: %w", err)
	}
	return sessions, nil
}

// EraseUser deletes every row the service holds for a user: sessions,
// audit trail, and the progress row, in one transaction. Irreversible.
func (r *ProgressRepository) EraseUser(ctx context.Context, userID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin erase transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM focus_sessions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to erase focus sessions: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM coin_transactions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to erase coin transactions: %w", err)
	}
	result, err := tx.Exec(ctx, `DELETE FROM user_progress WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to erase user progress: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit erase transaction: %w", err)
	}
	return nil
}
