package handler

import (
	"context"

	"focus-ledger/internal/model"
	"focus-ledger/internal/service"
)

// LedgerAPI is the slice of the ledger service the HTTP surface needs.
type LedgerAPI interface {
	Earn(ctx context.Context, userID string, amount int64, source string, sessionID *string, metadata map[string]string) (*service.EarnResult, error)
	Spend(ctx context.Context, userID string, amount int64, purpose string, itemID *string, metadata map[string]string) (*service.SpendResult, error)
	GetBalance(ctx context.Context, userID string) (*service.Balance, error)
	History(ctx context.Context, userID string, limit int) ([]*model.CoinTransaction, error)
}

// ProgressionAPI awards XP for completed sessions.
type ProgressionAPI interface {
	AwardSessionXP(ctx context.Context, userID string, minutes int) (*service.AwardResult, error)
}

// AccountAPI handles whole-account operations.
type AccountAPI interface {
	Erase(ctx context.Context, userID string) error
	Summary(ctx context.Context, userID string) (*model.UserProgress, error)
}
