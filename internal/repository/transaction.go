package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"focus-ledger/internal/model"
)

// uniqueViolation is the PostgreSQL error code raised when the session
// reward unique index blocks a duplicate earn.
const uniqueViolation = "23505"

// TransactionRepository handles the append-only coin audit log.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new TransactionRepository instance.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

// Create appends an audit record. A unique violation on the session
// reward index maps to ErrDuplicateSession; it backstops the
// HasSessionReward probe against insert races.
func (r *TransactionRepository) Create(ctx context.Context, t *model.CoinTransaction) (*model.CoinTransaction, error) {
	const query = `
		INSERT INTO coin_transactions
			(user_id, operation, amount, source, balance_before, balance_after, session_id, item_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		RETURNING id, created_at
	`

	err := r.pool.QueryRow(ctx, query,
		t.UserID,
		t.Operation,
		t.Amount,
		t.Source,
		t.BalanceBefore,
		t.BalanceAfter,
		t.SessionID,
		t.ItemID,
		t.Metadata,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrDuplicateSession
		}
		return nil, fmt.Errorf("failed to create coin transaction: %w", err)
	}
	return t, nil
}

// HasSessionReward reports whether an earn audit row already exists for
// the given (user, session) pair.
func (r *TransactionRepository) HasSessionReward(ctx context.Context, userID, sessionID string) (bool, error) {
	const query = `
		SELECT EXISTS(
			SELECT 1 FROM coin_transactions
			WHERE user_id = $1 AND session_id = $2 AND operation = 'earn'
		)
	`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, userID, sessionID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check session reward: %w", err)
	}
	return exists, nil
}

// ListByUser retrieves a user's audit records, newest first.
func (r *TransactionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*model.CoinTransaction, error) {
	const query = `
		SELECT id, user_id, operation, amount, source, balance_before, balance_after,
		       session_id, item_id, COALESCE(metadata, '{}'::jsonb), created_at
		FROM coin_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list coin transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*model.CoinTransaction
	for rows.Next() {
		var t model.CoinTransaction
		err := rows.Scan(
			&t.ID,
			&t.UserID,
			&t.Operation,
			&t.Amount,
			&t.Source,
			&t.BalanceBefore,
			&t.BalanceAfter,
			&t.SessionID,
			&t.ItemID,
			&t.Metadata,
			&t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan coin transaction: %w", err)
		}
		transactions = append(transactions, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating coin transactions: %w", err)
	}
	return transactions, nil
}
