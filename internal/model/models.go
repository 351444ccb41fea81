// Package model defines the data models for the currency and progression ledger.
package model

import "time"

// UserProgress represents a user's coin balance and progression state.
// One row per user, created lazily on the first earn or XP award.
// Invariant: Coins == TotalCoinsEarned - TotalCoinsSpent after every
// successful mutation, maintained incrementally rather than recomputed.
type UserProgress struct {
	UserID           string     `db:"user_id"`
	Coins            int64      `db:"coins"`
	TotalCoinsEarned int64      `db:"total_coins_earned"`
	TotalCoinsSpent  int64      `db:"total_coins_spent"`
	TotalXP          int64      `db:"total_xp"`
	CurrentLevel     int        `db:"current_level"`
	TotalSessions    int64      `db:"total_sessions"`
	CurrentStreak    int        `db:"current_streak"`
	LongestStreak    int        `db:"longest_streak"`
	LastSessionDate  *time.Time `db:"last_session_date"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

// CoinTransaction is an append-only audit record of a single balance change.
// Rows are never updated or deleted.
type CoinTransaction struct {
	ID            int64             `db:"id"`
	UserID        string            `db:"user_id"`
	Operation     string            `db:"operation"`
	Amount        int64             `db:"amount"`
	Source        string            `db:"source"`
	BalanceBefore int64             `db:"balance_before"`
	BalanceAfter  int64             `db:"balance_after"`
	SessionID     *string           `db:"session_id"`
	ItemID        *string           `db:"item_id"`
	Metadata      map[string]string `db:"metadata"`
	CreatedAt     time.Time         `db:"created_at"`
}

// FocusSession is an append-only record of a completed focus interval.
type FocusSession struct {
	ID              int64     `db:"id"`
	UserID          string    `db:"user_id"`
	DurationMinutes int       `db:"duration_minutes"`
	XPEarned        int64     `db:"xp_earned"`
	SessionType     string    `db:"session_type"`
	CompletedAt     time.Time `db:"completed_at"`
}

// Ledger operations recorded in coin_transactions.operation.
const (
	OpEarn  = "earn"
	OpSpend = "spend"
)

// Earn sources. Closed set; anything else is rejected by validation so
// audit aggregation stays tractable.
const (
	SourceFocusSession      = "focus_session"
	SourceDailyReward       = "daily_reward"
	SourceAchievement       = "achievement"
	SourceQuestReward       = "quest_reward"
	SourceSubscriptionBonus = "subscription_bonus"
	SourceLuckyWheel        = "lucky_wheel"
	SourceReferral          = "referral"
	SourceAdminGrant        = "admin_grant"
	SourceIAPPurchase       = "iap_purchase"
)

// Spend purposes. Closed set.
const (
	PurposeShopPurchase = "shop_purchase"
	PurposePetUnlock    = "pet_unlock"
	PurposeCosmetic     = "cosmetic"
	PurposeBooster      = "booster"
	PurposeStreakFreeze = "streak_freeze"
)

var earnSources = map[string]struct{}{
	SourceFocusSession:      {},
	SourceDailyReward:       {},
	SourceAchievement:       {},
	SourceQuestReward:       {},
	SourceSubscriptionBonus: {},
	SourceLuckyWheel:        {},
	SourceReferral:          {},
	SourceAdminGrant:        {},
	SourceIAPPurchase:       {},
}

var spendPurposes = map[string]struct{}{
	PurposeShopPurchase: {},
	PurposePetUnlock:    {},
	PurposeCosmetic:     {},
	PurposeBooster:      {},
	PurposeStreakFreeze: {},
}

// Server-attributed earn sources exempt from the earn-class rate limit.
// These originate from server-validated triggers and must not be starved
// by unrelated client spam.
var rateLimitExemptSources = map[string]struct{}{
	SourceDailyReward:       {},
	SourceAchievement:       {},
	SourceQuestReward:       {},
	SourceSubscriptionBonus: {},
}

// IsEarnSource reports whether s is a member of the earn source enum.
func IsEarnSource(s string) bool {
	_, ok := earnSources[s]
	return ok
}

// IsSpendPurpose reports whether p is a member of the spend purpose enum.
func IsSpendPurpose(p string) bool {
	_, ok := spendPurposes[p]
	return ok
}

// IsRateLimitExempt reports whether an earn source bypasses the earn-class
// rate limit.
func IsRateLimitExempt(source string) bool {
	_, ok := rateLimitExemptSources[source]
	return ok
}

// EarnSources returns every valid earn source.
func EarnSources() []string {
	return []string{
		SourceFocusSession,
		SourceDailyReward,
		SourceAchievement,
		SourceQuestReward,
		SourceSubscriptionBonus,
		SourceLuckyWheel,
		SourceReferral,
		SourceAdminGrant,
		SourceIAPPurchase,
	}
}

// SpendPurposes returns every valid spend purpose.
func SpendPurposes() []string {
	return []string{
		PurposeShopPurchase,
		PurposePetUnlock,
		PurposeCosmetic,
		PurposeBooster,
		PurposeStreakFreeze,
	}
}
