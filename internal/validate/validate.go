// Package validate implements type and range checks on request inputs.
// Amounts arrive as JSON numbers (float64); anything non-finite,
// non-positive, or over the configured caps is rejected before any store
// access happens.
package validate

import (
	"fmt"
	"math"

	"focus-ledger/internal/model"
)

// Default caps. Earn is capped tighter than spend because earns are the
// attack surface for minting; spend still gets a ceiling to block
// overflow probing.
const (
	MaxEarnAmount  int64 = 10_000
	MaxSpendAmount int64 = 100_000
	MinSessionMinutes     = 1
	MaxSessionMinutes     = 480
)

// Error describes a rejected input. It never carries internal detail,
// only what a legitimate client needs to correct the request.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, message string) *Error {
	return &Error{Field: field, Message: message}
}

// Amount coerces a JSON number to a positive integer amount via floor.
// Rejects NaN, Infinity, zero, and negatives.
func Amount(raw float64) (int64, error) {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0, invalid("amount", "must be a finite number")
	}
	amount := int64(math.Floor(raw))
	if amount <= 0 {
		return 0, invalid("amount", "must be greater than zero")
	}
	return amount, nil
}

// EarnAmount validates an earn amount against the earn cap. Privileged
// administrative grants bypass the cap.
func EarnAmount(raw float64, source string) (int64, error) {
	amount, err := Amount(raw)
	if err != nil {
		return 0, err
	}
	if source != model.SourceAdminGrant && amount > MaxEarnAmount {
		return 0, invalid("amount", fmt.Sprintf("exceeds maximum earn of %d", MaxEarnAmount))
	}
	return amount, nil
}

// SpendAmount validates a spend amount against the spend ceiling.
func SpendAmount(raw float64) (int64, error) {
	amount, err := Amount(raw)
	if err != nil {
		return 0, err
	}
	if amount > MaxSpendAmount {
		return 0, invalid("amount", fmt.Sprintf("exceeds maximum spend of %d", MaxSpendAmount))
	}
	return amount, nil
}

// EarnSource validates membership in the closed earn source enum.
func EarnSource(source string) error {
	if !model.IsEarnSource(source) {
		return invalid("source", "unknown earn source")
	}
	return nil
}

// SpendPurpose validates membership in the closed spend purpose enum.
func SpendPurpose(purpose string) error {
	if !model.IsSpendPurpose(purpose) {
		return invalid("purpose", "unknown spend purpose")
	}
	return nil
}

// SessionMinutes coerces a JSON number to a whole session duration and
// bounds it to 1-480 minutes. Fractional, huge, and negative inputs that
// would let a client mint unbounded XP are rejected here.
func SessionMinutes(raw float64) (int, error) {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0, invalid("sessionMinutes", "must be a finite number")
	}
	minutes := int(math.Floor(raw))
	if minutes < MinSessionMinutes || minutes > MaxSessionMinutes {
		return 0, invalid("sessionMinutes", fmt.Sprintf("must be between %d and %d", MinSessionMinutes, MaxSessionMinutes))
	}
	return minutes, nil
}
