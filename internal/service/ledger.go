// Package service provides the business logic for the ledger.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"focus-ledger/internal/model"
	"focus-ledger/internal/repository"
)

// LedgerService handles coin balance mutations. Every mutation is a
// single read-modify-write attempt; on a conditioned-update conflict the
// caller receives repository.ErrConflict and owns the retry. The service
// never retries internally so it cannot act on a stale read.
type LedgerService struct {
	progress ProgressStore
	audit    AuditStore
}

// NewLedgerService creates a new LedgerService instance.
func NewLedgerService(progress ProgressStore, audit AuditStore) *LedgerService {
	return &LedgerService{progress: progress, audit: audit}
}

// EarnResult is the outcome of a successful earn.
type EarnResult struct {
	Amount      int64
	NewBalance  int64
	TotalEarned int64
}

// SpendResult is the outcome of a successful spend.
type SpendResult struct {
	Amount     int64
	NewBalance int64
	TotalSpent int64
}

// Balance is a read-only view of a user's coin state.
type Balance struct {
	Balance     int64
	TotalEarned int64
	TotalSpent  int64
}

// Earn credits a user's balance and appends an audit record.
//
// Focus session earns carry a client-supplied session id and are
// deduplicated: a prior earn for the same (user, session) returns
// repository.ErrDuplicateSession with no mutation. The first-ever earn
// for a user creates their progress row seeded with the amount.
//
// The audit write happens after the balance commit and is best-effort:
// a failure there is logged, never rolled back into the response.
func (s *LedgerService) Earn(ctx context.Context, userID string, amount int64, source string, sessionID *string, metadata map[string]string) (*EarnResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("earn amount must be positive, got %d", amount)
	}

	// A session's reward may be claimed at most once regardless of
	// retries.
	if source == model.SourceFocusSession && sessionID != nil && *sessionID != "" {
		exists, err := s.audit.HasSessionReward(ctx, userID, *sessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to check session reward: %w", err)
		}
		if exists {
			return nil, repository.ErrDuplicateSession
		}
	}

	progress, err := s.progress.Get(ctx, userID)
	var balanceBefore int64
	switch {
	case err == nil:
		balanceBefore = progress.Coins
		progress, err = s.progress.ApplyEarn(ctx, userID, amount, balanceBefore)
		if err != nil {
			return nil, err
		}
	case errors.Is(err, repository.ErrUserNotFound):
		// First-ever credit: create the row seeded with the amount.
		balanceBefore = 0
		progress, err = s.progress.CreateWithEarn(ctx, userID, amount)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("failed to read balance: %w", err)
	}

	s.writeAudit(ctx, &model.CoinTransaction{
		UserID:        userID,
		Operation:     model.OpEarn,
		Amount:        amount,
		Source:        source,
		BalanceBefore: balanceBefore,
		BalanceAfter:  progress.Coins,
		SessionID:     sessionID,
		Metadata:      metadata,
	})

	return &EarnResult{
		Amount:      amount,
		NewBalance:  progress.Coins,
		TotalEarned: progress.TotalCoinsEarned,
	}, nil
}

// Spend debits a user's balance and appends an audit record. A balance
// below the requested amount fails with InsufficientBalanceError and no
// mutation; the conditioned update closes the race against concurrent
// spends reading the same balance.
func (s *LedgerService) Spend(ctx context.Context, userID string, amount int64, purpose string, itemID *string, metadata map[string]string) (*SpendResult, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("spend amount must be positive, got %d", amount)
	}

	progress, err := s.progress.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, &InsufficientBalanceError{CurrentBalance: 0, Required: amount}
		}
		return nil, fmt.Errorf("failed to read balance: %w", err)
	}

	balanceBefore := progress.Coins
	if balanceBefore < amount {
		return nil, &InsufficientBalanceError{CurrentBalance: balanceBefore, Required: amount}
	}

	progress, err = s.progress.ApplySpend(ctx, userID, amount, balanceBefore)
	if err != nil {
		return nil, err
	}

	s.writeAudit(ctx, &model.CoinTransaction{
		UserID:        userID,
		Operation:     model.OpSpend,
		Amount:        amount,
		Source:        purpose,
		BalanceBefore: balanceBefore,
		BalanceAfter:  progress.Coins,
		ItemID:        itemID,
		Metadata:      metadata,
	})

	return &SpendResult{
		Amount:     amount,
		NewBalance: progress.Coins,
		TotalSpent: progress.TotalCoinsSpent,
	}, nil
}

// GetBalance returns a user's coin state. Users without a progress row
// get zero values, never an error.
func (s *LedgerService) GetBalance(ctx context.Context, userID string) (*Balance, error) {
	progress, err := s.progress.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return &Balance{}, nil
		}
		return nil, fmt.Errorf("failed to read balance: %w", err)
	}
	return &Balance{
		Balance:     progress.Coins,
		TotalEarned: progress.TotalCoinsEarned,
		TotalSpent:  progress.TotalCoinsSpent,
	}, nil
}

// History returns a user's audit records, newest first.
func (s *LedgerService) History(ctx context.Context, userID string, limit int) ([]*model.CoinTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.audit.ListByUser(ctx, userID, limit)
}

// writeAudit appends an audit record for a committed balance mutation.
// The balance is authoritative; a failed audit write is an operational
// error, not a request failure.
func (s *LedgerService) writeAudit(ctx context.Context, t *model.CoinTransaction) {
	if _, err := s.audit.Create(ctx, t); err != nil {
		log.Error().
			Err(err).
			Str("user_id", t.UserID).
			Str("operation", t.Operation).
			Int64("amount", t.Amount).
			Int64("balance_after", t.BalanceAfter).
			Msg("audit write failed after committed balance mutation")
	}
}
