package memory

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/numbrly/portal/internal/domain/balance"
	ierr "github.com/numbrly/portal/internal/errors"
	"github.com/numbrly/portal/internal/types"
	"github.com/samber/lo"
)

// BalanceStore is a mutex-guarded balance.Repository. The balance change,
// journal append and idempotency lookup happen under one lock.
type BalanceStore struct {
	mu           sync.RWMutex
	balances     map[string]*balance.UserBalance
	transactions map[string][]*balance.Transaction
	byKey        map[string]*balance.Transaction
}

var _ balance.Repository = (*BalanceStore)(nil)

func NewBalanceStore() *BalanceStore {
	return &BalanceStore{
		balances:     make(map[string]*balance.UserBalance),
		transactions: make(map[string][]*balance.Transaction),
		byKey:        make(map[string]*balance.Transaction),
	}
}

func idempotencyIndex(userID, key string) string {
	return userID + "\x00" + key
}

func (s *BalanceStore) Get(ctx context.Context, userID string) (*balance.UserBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.balances[userID]
	if !ok {
		return nil, ierr.NewError("balance not found").
			WithHint("Balance not found").
			WithReportableDetails(map[string]any{"user_id": userID}).
			Mark(ierr.ErrNotFound)
	}
	c := *b
	return &c, nil
}

func (s *BalanceStore) Debit(ctx context.Context, op *balance.Operation) (*balance.Result, error) {
	return s.apply(op, types.TransactionTypeDebit)
}

func (s *BalanceStore) Credit(ctx context.Context, op *balance.Operation) (*balance.Result, error) {
	return s.apply(op, types.TransactionTypeCredit)
}

func (s *BalanceStore) apply(op *balance.Operation, txType types.TransactionType) (*balance.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if op.IdempotencyKey != "" {
		if existing, ok := s.byKey[idempotencyIndex(op.UserID, op.IdempotencyKey)]; ok {
			c := *existing
			return &balance.Result{Balance: existing.BalanceAfter, Transaction: &c, Replayed: true}, nil
		}
	}

	now := time.Now().UTC()
	b, ok := s.balances[op.UserID]
	if !ok {
		b = &balance.UserBalance{UserID: op.UserID, CreatedAt: now}
	}

	before := b.Balance
	var after int64
	switch txType {
	case types.TransactionTypeDebit:
		if before < op.Amount {
			return nil, balance.ErrInsufficientFundsFor(op, before)
		}
		after = before - op.Amount
	default:
		if op.Amount > math.MaxInt64-before {
			return nil, balance.ErrBalanceOverflowFor(op)
		}
		after = before + op.Amount
	}

	b.Balance = after
	b.UpdatedAt = now
	s.balances[op.UserID] = b

	txn := &balance.Transaction{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_LEDGER_TRANSACTION),
		UserID:         op.UserID,
		Type:           txType,
		Reason:         op.Reason,
		Amount:         op.Amount,
		BalanceBefore:  before,
		BalanceAfter:   after,
		ReferenceID:    op.ReferenceID,
		IdempotencyKey: lo.EmptyableToPtr(op.IdempotencyKey),
		CreatedAt:      now,
	}
	s.transactions[op.UserID] = append(s.transactions[op.UserID], txn)
	if op.IdempotencyKey != "" {
		s.byKey[idempotencyIndex(op.UserID, op.IdempotencyKey)] = txn
	}

	c := *txn
	return &balance.Result{Balance: after, Transaction: &c}, nil
}

func (s *BalanceStore) GetTransactionByIdempotencyKey(ctx context.Context, userID, key string) (*balance.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txn, ok := s.byKey[idempotencyIndex(userID, key)]
	if !ok {
		return nil, ierr.NewError("transaction not found").
			WithHint("Transaction not found").
			Mark(ierr.ErrNotFound)
	}
	c := *txn
	return &c, nil
}

func (s *BalanceStore) filtered(userID string, filter *types.TransactionFilter) []*balance.Transaction {
	txns := lo.Filter(s.transactions[userID], func(t *balance.Transaction, _ int) bool {
		return (filter.Type == "" || t.Type == filter.Type) &&
			(filter.Reason == "" || t.Reason == filter.Reason)
	})
	// newest first
	out := make([]*balance.Transaction, len(txns))
	for i, t := range txns {
		c := *t
		out[len(txns)-1-i] = &c
	}
	return out
}

func (s *BalanceStore) ListTransactions(ctx context.Context, userID string, filter *types.TransactionFilter) ([]*balance.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txns := s.filtered(userID, filter)
	offset := filter.GetOffset()
	if offset >= len(txns) {
		return []*balance.Transaction{}, nil
	}
	end := lo.Min([]int{offset + filter.GetLimit(), len(txns)})
	return txns[offset:end], nil
}

func (s *BalanceStore) CountTransactions(ctx context.Context, userID string, filter *types.TransactionFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.filtered(userID, filter)), nil
}
