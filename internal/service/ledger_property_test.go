// Package service property-based tests for the balance ledger.
package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"pgregory.net/rapid"

	"focus-ledger/internal/model"
)

// TestBalanceConservationProperty verifies that for any sequence of
// earn/spend operations, coins == total_coins_earned - total_coins_spent
// after every successful operation, the balance never goes negative, and
// rejected spends leave the balance unchanged.
func TestBalanceConservationProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		store := newMemStore()
		svc := NewLedgerService(store, store)
		ctx := context.Background()

		opCount := rapid.IntRange(1, 40).Draw(t, "opCount")
		for i := 0; i < opCount; i++ {
			amount := rapid.Int64Range(1, 2000).Draw(t, fmt.Sprintf("amount%d", i))
			isEarn := rapid.Bool().Draw(t, fmt.Sprintf("isEarn%d", i))

			before, err := svc.GetBalance(ctx, "user-1")
			if err != nil {
				t.Fatalf("GetBalance failed: %v", err)
			}

			if isEarn {
				if _, err := svc.Earn(ctx, "user-1", amount, model.SourceLuckyWheel, nil, nil); err != nil {
					t.Fatalf("Earn failed: %v", err)
				}
			} else {
				_, err := svc.Spend(ctx, "user-1", amount, model.PurposeShopPurchase, nil, nil)
				if before.Balance < amount {
					// Must be rejected with the balance untouched.
					if _, ok := errAsInsufficient(err); !ok {
						t.Fatalf("overspend of %d against balance %d did not fail with InsufficientBalanceError: %v",
							amount, before.Balance, err)
					}
					after, _ := svc.GetBalance(ctx, "user-1")
					if after.Balance != before.Balance {
						t.Fatalf("rejected spend changed balance: %d -> %d", before.Balance, after.Balance)
					}
					continue
				}
				if err != nil {
					t.Fatalf("Spend of %d against balance %d failed: %v", amount, before.Balance, err)
				}
			}

			after, err := svc.GetBalance(ctx, "user-1")
			if err != nil {
				t.Fatalf("GetBalance failed: %v", err)
			}
			if after.Balance < 0 {
				t.Fatalf("balance went negative: %d", after.Balance)
			}
			if after.Balance != after.TotalEarned-after.TotalSpent {
				t.Fatalf("conservation violated: coins=%d, earned=%d, spent=%d",
					after.Balance, after.TotalEarned, after.TotalSpent)
			}
		}
	})
}

// TestAuditTrailConsistencyProperty verifies that every audit row links
// before and after balances by exactly its amount, in the right
// direction for its operation.
func TestAuditTrailConsistencyProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		store := newMemStore()
		svc := NewLedgerService(store, store)
		ctx := context.Background()

		opCount := rapid.IntRange(1, 30).Draw(t, "opCount")
		for i := 0; i < opCount; i++ {
			amount := rapid.Int64Range(1, 500).Draw(t, fmt.Sprintf("amount%d", i))
			if rapid.Bool().Draw(t, fmt.Sprintf("isEarn%d", i)) {
				_, _ = svc.Earn(ctx, "user-1", amount, model.SourceQuestReward, nil, nil)
			} else {
				_, _ = svc.Spend(ctx, "user-1", amount, model.PurposeCosmetic, nil, nil)
			}
		}

		history, err := svc.History(ctx, "user-1", 100)
		if err != nil {
			t.Fatalf("History failed: %v", err)
		}
		for _, tx := range history {
			switch tx.Operation {
			case model.OpEarn:
				if tx.BalanceAfter != tx.BalanceBefore+tx.Amount {
					t.Fatalf("earn audit row inconsistent: before=%d amount=%d after=%d",
						tx.BalanceBefore, tx.Amount, tx.BalanceAfter)
				}
			case model.OpSpend:
				if tx.BalanceAfter != tx.BalanceBefore-tx.Amount {
					t.Fatalf("spend audit row inconsistent: before=%d amount=%d after=%d",
						tx.BalanceBefore, tx.Amount, tx.BalanceAfter)
				}
			default:
				t.Fatalf("unknown operation %q in audit trail", tx.Operation)
			}
		}
	})
}

func errAsInsufficient(err error) (*InsufficientBalanceError, bool) {
	var e *InsufficientBalanceError
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
