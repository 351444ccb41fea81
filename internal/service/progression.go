package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"focus-ledger/internal/model"
	"focus-ledger/internal/progression"
	"focus-ledger/internal/repository"
)

// ProgressionService awards XP for completed focus sessions and keeps
// level, session count, and streak bookkeeping consistent with total XP.
type ProgressionService struct {
	progress ProgressStore
	loc      *time.Location
	now      func() time.Time
}

// NewProgressionService creates a new ProgressionService. Streak day
// boundaries are evaluated in the given location.
func NewProgressionService(progress ProgressStore, loc *time.Location) *ProgressionService {
	if loc == nil {
		loc = time.UTC
	}
	return &ProgressionService{
		progress: progress,
		loc:      loc,
		now:      time.Now,
	}
}

// AwardResult is the outcome of a successful XP award.
type AwardResult struct {
	XPGained       int64
	OldLevel       int
	NewLevel       int
	LeveledUp      bool
	TotalXP        int64
	XPToNextLevel  int64
	CurrentLevelXP int64
	Progress       *model.UserProgress
}

// AwardSessionXP records a completed focus session: XP from the duration
// step function, a level recomputed from total XP, the session counter,
// streak updates, and the FocusSession row, all in one atomic bundle.
// Sessions below the smallest reward breakpoint still count as sessions;
// they just earn zero XP.
func (s *ProgressionService) AwardSessionXP(ctx context.Context, userID string, minutes int) (*AwardResult, error) {
	xp := progression.XPForDuration(minutes)

	prog, err := s.progress.Get(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		if err := s.progress.EnsureExists(ctx, userID); err != nil {
			return nil, err
		}
		prog, err = s.progress.Get(ctx, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read progress: %w", err)
	}

	oldLevel := prog.CurrentLevel
	if oldLevel < 1 {
		oldLevel = 1
	}
	newTotalXP := prog.TotalXP + xp
	newLevel := progression.LevelForTotalXP(newTotalXP)

	now := s.now().In(s.loc)
	streak, longest := nextStreak(prog, now)

	updated, err := s.progress.ApplySessionXP(ctx, repository.SessionXPUpdate{
		UserID:          userID,
		ExpectedTotalXP: prog.TotalXP,
		NewTotalXP:      newTotalXP,
		NewLevel:        newLevel,
		CurrentStreak:   streak,
		LongestStreak:   longest,
		SessionDate:     now.Format("2006-01-02"),
		DurationMinutes: minutes,
		XPEarned:        xp,
		SessionType:     "focus",
	})
	if err != nil {
		return nil, err
	}

	return &AwardResult{
		XPGained:       xp,
		OldLevel:       oldLevel,
		NewLevel:       newLevel,
		LeveledUp:      newLevel > oldLevel,
		TotalXP:        updated.TotalXP,
		XPToNextLevel:  progression.XPToNextLevel(updated.TotalXP),
		CurrentLevelXP: progression.XPWithinLevel(updated.TotalXP),
		Progress:       updated,
	}, nil
}

// nextStreak computes the streak values after a session completed at
// now. Same-day sessions keep the streak, a session on the day after
// the last one extends it, anything else restarts at one.
func nextStreak(prog *model.UserProgress, now time.Time) (current, longest int) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	current = 1
	if prog.LastSessionDate != nil {
		last := *prog.LastSessionDate
		lastDay := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, now.Location())
		switch int(today.Sub(lastDay).Hours() / 24) {
		case 0:
			current = prog.CurrentStreak
			if current < 1 {
				current = 1
			}
		case 1:
			current = prog.CurrentStreak + 1
		}
	}

	longest = prog.LongestStreak
	if current > longest {
		longest = current
	}
	return current, longest
}
