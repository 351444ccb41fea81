package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"focus-ledger/internal/model"
	"focus-ledger/internal/repository"
)

// AccountService handles whole-account operations.
type AccountService struct {
	progress ProgressStore
}

// NewAccountService creates a new AccountService instance.
func NewAccountService(progress ProgressStore) *AccountService {
	return &AccountService{progress: progress}
}

// Erase irreversibly deletes everything the ledger holds for a user:
// progress, audit trail, and session records.
func (s *AccountService) Erase(ctx context.Context, userID string) error {
	if err := s.progress.EraseUser(ctx, userID); err != nil {
		return err
	}
	log.Warn().Str("user_id", userID).Msg("account erased")
	return nil
}

// Summary returns a user's full progress row, zero-valued if the user
// has no row yet.
func (s *AccountService) Summary(ctx context.Context, userID string) (*model.UserProgress, error) {
	prog, err := s.progress.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return &model.UserProgress{UserID: userID, CurrentLevel: 1}, nil
		}
		return nil, err
	}
	return prog, nil
}
