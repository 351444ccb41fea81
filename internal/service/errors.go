package service

import "fmt"

// InsufficientBalanceError rejects a spend that exceeds the current
// balance. It carries the domain state the client needs to present the
// shortfall; no mutation has happened when it is returned.
type InsufficientBalanceError struct {
	CurrentBalance int64
	Required       int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: have %d, need %d", e.CurrentBalance, e.Required)
}
