package balance

import (
	"context"

	"github.com/numbrly/portal/internal/types"
)

// Repository persists balances and their journal. Debit and Credit are atomic
// per user: the balance change and the journal row commit together.
type Repository interface {
	// Get returns the balance row, or ErrNotFound if the user never had one
	Get(ctx context.Context, userID string) (*UserBalance, error)
	// Debit fails with ErrInsufficientFunds and leaves the balance untouched
	// when it would go negative
	Debit(ctx context.Context, op *Operation) (*Result, error)
	// Credit creates the balance row on first use
	Credit(ctx context.Context, op *Operation) (*Result, error)

	GetTransactionByIdempotencyKey(ctx context.Context, userID, key string) (*Transaction, error)
	ListTransactions(ctx context.Context, userID string, filter *types.TransactionFilter) ([]*Transaction, error)
	CountTransactions(ctx context.Context, userID string, filter *types.TransactionFilter) (int, error)
}
