package handler

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"focus-ledger/internal/model"
	"focus-ledger/internal/ratelimit"
	"focus-ledger/internal/repository"
	"focus-ledger/internal/service"
	"focus-ledger/internal/validate"
)

// coinRequest is the multiplexed coin endpoint body. Amount is a pointer
// so a missing field is distinguishable from zero.
type coinRequest struct {
	Operation string            `json:"operation"`
	Amount    *float64          `json:"amount"`
	Source    string            `json:"source"`
	Purpose   string            `json:"purpose"`
	SessionID *string           `json:"sessionId"`
	ItemID    *string           `json:"itemId"`
	Metadata  map[string]string `json:"metadata"`
}

// CoinOperation handles POST /api/coins, dispatching on the operation
// discriminator: earn, spend, or get_balance.
func (h *Handler) CoinOperation(c *fiber.Ctx) error {
	var req coinRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Malformed request body")
	}

	switch req.Operation {
	case "earn":
		return h.earn(c, &req)
	case "spend":
		return h.spend(c, &req)
	case "get_balance":
		return h.getBalance(c)
	default:
		return badRequest(c, "Unknown operation")
	}
}

func (h *Handler) earn(c *fiber.Ctx, req *coinRequest) error {
	// Server-attributed sources bypass the earn budget; they come from
	// server-validated triggers, not arbitrary client calls.
	if !model.IsRateLimitExempt(req.Source) {
		if !h.checkRateLimit(c, ratelimit.ClassEarn) {
			return nil
		}
	}

	if err := validate.EarnSource(req.Source); err != nil {
		return badRequest(c, err.Error())
	}
	if req.Amount == nil {
		return badRequest(c, "invalid amount: missing")
	}
	amount, err := validate.EarnAmount(*req.Amount, req.Source)
	if err != nil {
		return badRequest(c, err.Error())
	}

	res, err := h.ledger.Earn(c.UserContext(), userID(c), amount, req.Source, req.SessionID, req.Metadata)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateSession):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"success":   false,
				"error":     "Session reward already claimed",
				"duplicate": true,
			})
		case errors.Is(err, repository.ErrConflict):
			return conflictRetry(c)
		default:
			log.Error().Err(err).Str("user_id", userID(c)).Msg("earn failed")
			return internalError(c)
		}
	}

	return c.JSON(fiber.Map{
		"success":     true,
		"operation":   "earn",
		"amount":      res.Amount,
		"newBalance":  res.NewBalance,
		"totalEarned": res.TotalEarned,
	})
}

func (h *Handler) spend(c *fiber.Ctx, req *coinRequest) error {
	if !h.checkRateLimit(c, ratelimit.ClassSpend) {
		return nil
	}

	if err := validate.SpendPurpose(req.Purpose); err != nil {
		return badRequest(c, err.Error())
	}
	if req.Amount == nil {
		return badRequest(c, "invalid amount: missing")
	}
	amount, err := validate.SpendAmount(*req.Amount)
	if err != nil {
		return badRequest(c, err.Error())
	}

	res, err := h.ledger.Spend(c.UserContext(), userID(c), amount, req.Purpose, req.ItemID, req.Metadata)
	if err != nil {
		var insufficient *service.InsufficientBalanceError
		switch {
		case errors.As(err, &insufficient):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success":        false,
				"error":          "Insufficient balance",
				"currentBalance": insufficient.CurrentBalance,
				"required":       insufficient.Required,
			})
		case errors.Is(err, repository.ErrConflict):
			return conflictRetry(c)
		default:
			log.Error().Err(err).Str("user_id", userID(c)).Msg("spend failed")
			return internalError(c)
		}
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"operation":  "spend",
		"amount":     res.Amount,
		"newBalance": res.NewBalance,
		"totalSpent": res.TotalSpent,
	})
}

func (h *Handler) getBalance(c *fiber.Ctx) error {
	balance, err := h.ledger.GetBalance(c.UserContext(), userID(c))
	if err != nil {
		log.Error().Err(err).Str("user_id", userID(c)).Msg("get balance failed")
		return internalError(c)
	}
	return c.JSON(fiber.Map{
		"success":     true,
		"balance":     balance.Balance,
		"totalEarned": balance.TotalEarned,
		"totalSpent":  balance.TotalSpent,
	})
}

// TransactionHistory handles GET /api/coins/history.
func (h *Handler) TransactionHistory(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))

	transactions, err := h.ledger.History(c.UserContext(), userID(c), limit)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID(c)).Msg("history failed")
		return internalError(c)
	}

	items := make([]fiber.Map, 0, len(transactions))
	for _, t := range transactions {
		item := fiber.Map{
			"operation":     t.Operation,
			"amount":        t.Amount,
			"source":        t.Source,
			"balanceBefore": t.BalanceBefore,
			"balanceAfter":  t.BalanceAfter,
			"createdAt":     t.CreatedAt,
		}
		if t.SessionID != nil {
			item["sessionId"] = *t.SessionID
		}
		if t.ItemID != nil {
			item["itemId"] = *t.ItemID
		}
		items = append(items, item)
	}

	return c.JSON(fiber.Map{
		"success":      true,
		"transactions": items,
	})
}
