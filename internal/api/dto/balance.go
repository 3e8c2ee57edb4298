package dto

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/numbrly/portal/internal/domain/balance"
	ierr "github.com/numbrly/portal/internal/errors"
	"github.com/numbrly/portal/internal/types"
)

type BalanceResponse struct {
	UserID    string     `json:"user_id"`
	Balance   Money      `json:"balance"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// TopUpRequest credits an already settled payment. Amount is kept as a raw
// JSON number so fractions and overflow are reported as invalid_amount.
type TopUpRequest struct {
	Amount json.Number `json:"amount"`
}

// MinorUnits parses Amount as a positive integer
func (r *TopUpRequest) MinorUnits() (int64, error) {
	amount, err := strconv.ParseInt(r.Amount.String(), 10, 64)
	if err != nil || amount <= 0 {
		return 0, ierr.NewError("amount must be a positive integer").
			WithHint("Amount must be a positive whole number of minor units").
			WithReportableDetails(map[string]any{"amount": r.Amount.String()}).
			Mark(ierr.ErrInvalidAmount)
	}
	return amount, nil
}

type TopUpResponse struct {
	Balance     Money                `json:"balance"`
	Transaction *TransactionResponse `json:"transaction"`
	// Replayed is true when the Idempotency-Key matched an earlier top-up
	Replayed bool `json:"replayed"`
}

type TransactionResponse struct {
	ID            string                  `json:"id"`
	Type          types.TransactionType   `json:"type"`
	Reason        types.TransactionReason `json:"reason"`
	Amount        Money                   `json:"amount"`
	BalanceBefore int64                   `json:"balance_before"`
	BalanceAfter  int64                   `json:"balance_after"`
	ReferenceID   string                  `json:"reference_id,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
}

func FromTransaction(t *balance.Transaction) *TransactionResponse {
	if t == nil {
		return nil
	}
	return &TransactionResponse{
		ID:            t.ID,
		Type:          t.Type,
		Reason:        t.Reason,
		Amount:        NewMoney(t.Amount),
		BalanceBefore: t.BalanceBefore,
		BalanceAfter:  t.BalanceAfter,
		ReferenceID:   t.ReferenceID,
		CreatedAt:     t.CreatedAt,
	}
}

type ListTransactionsResponse = types.ListResponse[*TransactionResponse]
