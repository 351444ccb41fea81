// Package ratelimit implements per-user, per-class fixed-window request
// limiting with pluggable backends: a process-local map and a Redis
// counter store for fleet-wide enforcement.
package ratelimit

import (
	"context"
	"time"
)

// Class groups operations that share a budget.
type Class string

const (
	ClassEarn        Class = "earn"
	ClassSpend       Class = "spend"
	ClassDestructive Class = "destructive"
)

// Decision reports the outcome of a rate limit check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter decides whether a request may proceed. Implementations must be
// safe for concurrent use.
type Limiter interface {
	Check(ctx context.Context, userID string, class Class) (Decision, error)
}

// ClassLimit is the budget for one operation class.
type ClassLimit struct {
	Max    int
	Window time.Duration
}

// Limits holds per-class budgets.
type Limits struct {
	Earn        ClassLimit
	Spend       ClassLimit
	Destructive ClassLimit
}

// DefaultLimits returns the stock budgets: 15 earns and 20 spends per
// minute, 3 destructive operations per ten minutes.
func DefaultLimits() Limits {
	return Limits{
		Earn:        ClassLimit{Max: 15, Window: time.Minute},
		Spend:       ClassLimit{Max: 20, Window: time.Minute},
		Destructive: ClassLimit{Max: 3, Window: 10 * time.Minute},
	}
}

func (l Limits) forClass(class Class) ClassLimit {
	switch class {
	case ClassEarn:
		return l.Earn
	case ClassSpend:
		return l.Spend
	case ClassDestructive:
		return l.Destructive
	default:
		// Unknown classes fall back to the tightest budget.
		return l.Destructive
	}
}
