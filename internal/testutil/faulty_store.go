package testutil

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/numbrly/portal/internal/domain/balance"
	"github.com/numbrly/portal/internal/domain/number"
	ierr "github.com/numbrly/portal/internal/errors"
)

// FaultyBalanceStore wraps a balance.Repository and fails credits on demand
type FaultyBalanceStore struct {
	balance.Repository
	creditFailures atomic.Int32
	creditCalls    atomic.Int32
	mu             sync.Mutex
	beforeCredit   func(ctx context.Context, op *balance.Operation)
}

func NewFaultyBalanceStore(inner balance.Repository) *FaultyBalanceStore {
	return &FaultyBalanceStore{Repository: inner}
}

// FailCredits makes the next n credits fail; a negative n fails all of them
func (s *FaultyBalanceStore) FailCredits(n int) {
	s.creditFailures.Store(int32(n))
}

// CreditCalls counts credit attempts, failed ones included
func (s *FaultyBalanceStore) CreditCalls() int {
	return int(s.creditCalls.Load())
}

// BeforeCredit installs a hook that runs once, just before the next credit
// reaches the store
func (s *FaultyBalanceStore) BeforeCredit(fn func(ctx context.Context, op *balance.Operation)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeCredit = fn
}

func (s *FaultyBalanceStore) Credit(ctx context.Context, op *balance.Operation) (*balance.Result, error) {
	s.creditCalls.Add(1)
	if takeFailure(&s.creditFailures) {
		return nil, ierr.NewError("balance store unavailable").
			Mark(ierr.ErrDatabase)
	}

	s.mu.Lock()
	hook := s.beforeCredit
	s.beforeCredit = nil
	s.mu.Unlock()
	if hook != nil {
		hook(ctx, op)
	}
	return s.Repository.Credit(ctx, op)
}

// FaultyNumberStore wraps a number.Repository. It can run a hook just before
// MarkAssigned, which lets a test slip in a competing state change, and it can
// fail assignments before or after they are written.
type FaultyNumberStore struct {
	number.Repository
	mu             sync.Mutex
	beforeAssign   func(ctx context.Context, id string)
	assignFailures atomic.Int32
	lostReplies    atomic.Int32
}

func NewFaultyNumberStore(inner number.Repository) *FaultyNumberStore {
	return &FaultyNumberStore{Repository: inner}
}

// BeforeMarkAssigned installs a hook that runs once
func (s *FaultyNumberStore) BeforeMarkAssigned(fn func(ctx context.Context, id string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.beforeAssign = fn
}

// FailAssigns makes the next n assignments fail without touching the number
func (s *FaultyNumberStore) FailAssigns(n int) {
	s.assignFailures.Store(int32(n))
}

// LoseAssignReplies makes the next n assignments commit and then report an
// error, like a connection dropped after commit
func (s *FaultyNumberStore) LoseAssignReplies(n int) {
	s.lostReplies.Store(int32(n))
}

func (s *FaultyNumberStore) MarkAssigned(ctx context.Context, id, userID string, now time.Time) (*number.PhoneNumber, error) {
	fail := takeFailure(&s.assignFailures)

	s.mu.Lock()
	hook := s.beforeAssign
	s.beforeAssign = nil
	s.mu.Unlock()

	if hook != nil {
		hook(ctx, id)
	}
	if fail {
		return nil, ierr.NewError("number store unavailable").
			Mark(ierr.ErrDatabase)
	}

	n, err := s.Repository.MarkAssigned(ctx, id, userID, now)
	if err == nil && takeFailure(&s.lostReplies) {
		return nil, ierr.NewError("connection lost after commit").
			Mark(ierr.ErrDatabase)
	}
	return n, err
}

// takeFailure consumes one failure from counter. A negative counter never runs out.
func takeFailure(counter *atomic.Int32) bool {
	for {
		remaining := counter.Load()
		if remaining == 0 {
			return false
		}
		if remaining < 0 || counter.CompareAndSwap(remaining, remaining-1) {
			return true
		}
	}
}
