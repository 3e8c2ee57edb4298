package balance

import (
	"time"

	ierr "github.com/numbrly/portal/internal/errors"
	"github.com/numbrly/portal/internal/types"
)

// UserBalance is the spendable balance of one user in minor units
type UserBalance struct {
	UserID    string    `db:"user_id" json:"user_id"`
	Balance   int64     `db:"balance" json:"balance"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (b *UserBalance) TableName() string {
	return "user_balances"
}

// Transaction is one journaled ledger movement
type Transaction struct {
	ID             string                  `db:"id" json:"id"`
	UserID         string                  `db:"user_id" json:"user_id"`
	Type           types.TransactionType   `db:"type" json:"type"`
	Reason         types.TransactionReason `db:"reason" json:"reason"`
	Amount         int64                   `db:"amount" json:"amount"`
	BalanceBefore  int64                   `db:"balance_before" json:"balance_before"`
	BalanceAfter   int64                   `db:"balance_after" json:"balance_after"`
	ReferenceID    string                  `db:"reference_id" json:"reference_id,omitempty"`
	IdempotencyKey *string                 `db:"idempotency_key" json:"-"`
	CreatedAt      time.Time               `db:"created_at" json:"created_at"`
}

func (t *Transaction) TableName() string {
	return "ledger_transactions"
}

// Operation is a request to move money on one user's balance
type Operation struct {
	UserID string
	Amount int64
	Reason types.TransactionReason
	// ReferenceID links the movement to the number it paid for or refunded
	ReferenceID string
	// IdempotencyKey makes a repeated operation return the first result
	IdempotencyKey string
}

func (o *Operation) Validate() error {
	if o.UserID == "" {
		return ierr.NewError("user_id is required").
			WithHint("A user is required for balance operations").
			Mark(ierr.ErrValidation)
	}
	if o.Amount <= 0 {
		return ierr.NewError("amount must be positive").
			WithHint("Amount must be a positive number of minor units").
			WithReportableDetails(map[string]any{"amount": o.Amount}).
			Mark(ierr.ErrInvalidAmount)
	}
	return o.Reason.Validate()
}

// Result is the outcome of a debit or credit
type Result struct {
	Balance     int64
	Transaction *Transaction
	// Replayed is true when the idempotency key matched an earlier operation
	Replayed bool
}

// ErrInsufficientFundsFor builds the error returned when op would overdraw a
// balance of current. The hint names the shortfall.
func ErrInsufficientFundsFor(op *Operation, current int64) error {
	shortfall := op.Amount - current
	return ierr.NewError("insufficient balance").
		WithHintf("Insufficient balance, top up $%s more", types.FormatMinorUnits(shortfall)).
		WithReportableDetails(map[string]any{
			"balance":   current,
			"required":  op.Amount,
			"shortfall": shortfall,
		}).
		Mark(ierr.ErrInsufficientFunds)
}

// ErrBalanceOverflowFor is returned when crediting op would push the balance
// past the largest representable amount
func ErrBalanceOverflowFor(op *Operation) error {
	return ierr.NewError("balance overflow").
		WithHint("This amount would take the balance over the allowed maximum").
		WithReportableDetails(map[string]any{
			"user_id": op.UserID,
			"amount":  op.Amount,
		}).
		Mark(ierr.ErrInvalidAmount)
}
