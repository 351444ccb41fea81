package service

import (
	"context"

	"focus-ledger/internal/model"
	"focus-ledger/internal/repository"
)

// ProgressStore is the persistence surface the services need for user
// progress rows. Implemented by repository.ProgressRepository; tests use
// an in-memory implementation.
type ProgressStore interface {
	Get(ctx context.Context, userID string) (*model.UserProgress, error)
	CreateWithEarn(ctx context.Context, userID string, amount int64) (*model.UserProgress, error)
	EnsureExists(ctx context.Context, userID string) error
	ApplyEarn(ctx context.Context, userID string, amount, expectedBalance int64) (*model.UserProgress, error)
	ApplySpend(ctx context.Context, userID string, amount, expectedBalance int64) (*model.UserProgress, error)
	ApplySessionXP(ctx context.Context, upd repository.SessionXPUpdate) (*model.UserProgress, error)
	ListSessions(ctx context.Context, userID string, limit int) ([]*model.FocusSession, error)
	EraseUser(ctx context.Context, userID string) error
}

// AuditStore is the persistence surface for the append-only coin
// transaction log. Implemented by repository.TransactionRepository.
type AuditStore interface {
	Create(ctx context.Context, t *model.CoinTransaction) (*model.CoinTransaction, error)
	HasSessionReward(ctx context.Context, userID, sessionID string) (bool, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.CoinTransaction, error)
}
