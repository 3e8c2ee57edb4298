package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/numbrly/portal/internal/domain/balance"
	ierr "github.com/numbrly/portal/internal/errors"
	"github.com/numbrly/portal/internal/testutil"
	"github.com/numbrly/portal/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type PurchaseServiceSuite struct {
	servicesTestSuite
}

func TestPurchaseService(t *testing.T) {
	suite.Run(t, new(PurchaseServiceSuite))
}

func (s *PurchaseServiceSuite) transactionsOf(userID string) []*balance.Transaction {
	filter := types.NewTransactionFilter()
	txns, err := s.GetStores().BalanceRepo.ListTransactions(s.GetContext(), userID, filter)
	s.Require().NoError(err)
	return txns
}

func (s *PurchaseServiceSuite) TestReserveThenConfirm() {
	n := s.SeedNumber("+15550000101", 500, 1000)
	s.SeedBalance("usr_u", 2000)

	_, err := s.holds.Reserve(s.GetContext(), n.ID, "usr_u", 0)
	s.Require().NoError(err)

	resp, err := s.purchases.Confirm(s.GetContext(), n.ID, "usr_u")
	s.Require().NoError(err)
	s.Equal(int64(1500), resp.Charged.Amount)
	s.Equal(int64(500), resp.Balance.Amount)
	s.NotEmpty(resp.TransactionID)
	s.Equal(types.NumberStatusAssigned, resp.Number.Status)

	stored := s.MustGetNumber(n.ID)
	s.Equal("usr_u", testutil.Owner(stored))
	s.NotNil(stored.AssignedAt)
	s.Equal(int64(500), s.BalanceOf("usr_u"))

	s.Equal([]string{types.EventNumberHeld, types.EventNumberPurchased}, s.LifecycleEventNames())
}

func (s *PurchaseServiceSuite) TestDirectConfirm() {
	n := s.SeedNumber("+15550000102", 500, 1000)
	s.SeedBalance("usr_u", 1500)

	resp, err := s.purchases.Confirm(s.GetContext(), n.ID, "usr_u")
	s.Require().NoError(err)
	s.Zero(resp.Balance.Amount)
	s.Equal(types.NumberStatusAssigned, s.MustGetNumber(n.ID).Status)
}

func (s *PurchaseServiceSuite) TestConfirmFreeNumber() {
	n := s.SeedNumber("+15550000103", 0, 0)
	s.SeedBalance("usr_u", 700)

	resp, err := s.purchases.Confirm(s.GetContext(), n.ID, "usr_u")
	s.Require().NoError(err)
	s.Zero(resp.Charged.Amount)
	s.Empty(resp.TransactionID)
	s.Equal(int64(700), resp.Balance.Amount)
	s.Len(s.transactionsOf("usr_u"), 1)
}

func (s *PurchaseServiceSuite) TestConfirmInsufficientFunds() {
	n := s.SeedNumber("+15550000104", 500, 1000)
	s.SeedBalance("usr_v", 100)

	_, err := s.purchases.Confirm(s.GetContext(), n.ID, "usr_v")
	s.True(ierr.IsInsufficientFunds(err))

	stored := s.MustGetNumber(n.ID)
	s.Equal(types.NumberStatusAvailable, stored.Status)
	s.Equal(int64(1), stored.Version)
	s.Equal(int64(100), s.BalanceOf("usr_v"))
	s.Len(s.transactionsOf("usr_v"), 1)
	s.Empty(s.LifecycleEventNames())
}

func (s *PurchaseServiceSuite) TestConfirmRejected() {
	held := s.SeedNumber("+15550000105", 500, 1000)
	sold := s.SeedNumber("+15550000106", 500, 1000)
	s.SeedBalance("usr_u", 5000)
	s.SeedBalance("usr_v", 5000)

	_, err := s.holds.Reserve(s.GetContext(), held.ID, "usr_u", 0)
	s.Require().NoError(err)
	_, err = s.purchases.Confirm(s.GetContext(), sold.ID, "usr_u")
	s.Require().NoError(err)

	tests := []struct {
		name     string
		numberID string
		userID   string
		check    func(error) bool
	}{
		{name: "held by another user", numberID: held.ID, userID: "usr_v", check: ierr.IsConflict},
		{name: "already sold", numberID: sold.ID, userID: "usr_v", check: ierr.IsConflict},
		{name: "already sold to caller", numberID: sold.ID, userID: "usr_u", check: ierr.IsConflict},
		{name: "unknown number", numberID: "num_missing", userID: "usr_v", check: ierr.IsNotFound},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.purchases.Confirm(s.GetContext(), tt.numberID, tt.userID)
			s.True(tt.check(err), "unexpected error: %v", err)
		})
	}

	s.Equal(int64(5000), s.BalanceOf("usr_v"))
	s.Equal(int64(3500), s.BalanceOf("usr_u"))
}

func (s *PurchaseServiceSuite) TestConfirmOwnExpiredHold() {
	n := s.SeedNumber("+15550000107", 500, 1000)
	s.SeedBalance("usr_u", 1500)

	_, err := s.holds.Reserve(s.GetContext(), n.ID, "usr_u", time.Minute)
	s.Require().NoError(err)
	s.GetClock().Advance(time.Hour)

	_, err = s.purchases.Confirm(s.GetContext(), n.ID, "usr_u")
	s.Require().NoError(err)
	s.Equal(types.NumberStatusAssigned, s.MustGetNumber(n.ID).Status)
}

func (s *PurchaseServiceSuite) TestConfirmAnotherUsersExpiredHold() {
	n := s.SeedNumber("+15550000108", 500, 1000)
	s.SeedBalance("usr_v", 1500)

	_, err := s.holds.Reserve(s.GetContext(), n.ID, "usr_u", time.Minute)
	s.Require().NoError(err)
	s.GetClock().Advance(time.Hour)

	_, err = s.purchases.Confirm(s.GetContext(), n.ID, "usr_v")
	s.Require().NoError(err)
	s.Equal("usr_v", testutil.Owner(s.MustGetNumber(n.ID)))
}

func (s *PurchaseServiceSuite) TestConcurrentConfirms() {
	n := s.SeedNumber("+15550000109", 500, 1000)
	s.SeedBalance("usr_u", 2000)
	s.SeedBalance("usr_v", 2000)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs = map[string]error{}
	)
	for _, user := range []string{"usr_u", "usr_v"} {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			_, err := s.purchases.Confirm(s.GetContext(), n.ID, user)
			mu.Lock()
			errs[user] = err
			mu.Unlock()
		}(user)
	}
	wg.Wait()

	winners := lo.Filter([]string{"usr_u", "usr_v"}, func(u string, _ int) bool { return errs[u] == nil })
	s.Require().Len(winners, 1)
	winner := winners[0]
	loser := lo.Ternary(winner == "usr_u", "usr_v", "usr_u")
	s.True(ierr.IsConflict(errs[loser]))

	s.Equal(winner, testutil.Owner(s.MustGetNumber(n.ID)))
	s.Equal(int64(500), s.BalanceOf(winner))
	s.Equal(int64(2000), s.BalanceOf(loser))
}

func (s *PurchaseServiceSuite) TestConcurrentConfirmsSameUser() {
	n := s.SeedNumber("+15550000110", 500, 1000)
	s.SeedBalance("usr_u", 5000)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.purchases.Confirm(s.GetContext(), n.ID, "usr_u")
		}()
	}
	wg.Wait()

	s.Equal(types.NumberStatusAssigned, s.MustGetNumber(n.ID).Status)
	s.Equal(int64(3500), s.BalanceOf("usr_u"))
}

func (s *PurchaseServiceSuite) TestConfirmLosesRaceAfterDebit() {
	n := s.SeedNumber("+15550000111", 500, 1000)
	s.SeedBalance("usr_u", 2000)

	// another user takes the number between the debit and the assignment
	s.GetStores().NumberRepo.BeforeMarkAssigned(func(ctx context.Context, id string) {
		_, err := s.GetStores().NumberRepo.MarkAssigned(ctx, id, "usr_v", s.GetNow())
		s.Require().NoError(err)
	})

	_, err := s.purchases.Confirm(s.GetContext(), n.ID, "usr_u")
	s.True(ierr.IsConflict(err))

	s.Equal("usr_v", testutil.Owner(s.MustGetNumber(n.ID)))
	s.Equal(int64(2000), s.BalanceOf("usr_u"))

	txns := s.transactionsOf("usr_u")
	s.Require().Len(txns, 3)
	s.Equal(types.TransactionReasonPurchaseRollback, txns[0].Reason)
	s.Equal(int64(1500), txns[0].Amount)
	s.Empty(s.GetPubSub().PendingRefunds(s.GetConfig().Refund.Topic))
}

func (s *PurchaseServiceSuite) TestConfirmCompensationQueuedWhenCreditFails() {
	n := s.SeedNumber("+15550000112", 500, 1000)
	s.SeedBalance("usr_u", 2000)

	s.GetStores().NumberRepo.BeforeMarkAssigned(func(ctx context.Context, id string) {
		_, err := s.GetStores().NumberRepo.MarkAssigned(ctx, id, "usr_v", s.GetNow())
		s.Require().NoError(err)
	})
	s.GetStores().BalanceRepo.FailCredits(-1)

	_, err := s.purchases.Confirm(s.GetContext(), n.ID, "usr_u")
	s.True(ierr.IsConflict(err))
	s.Equal(int64(500), s.BalanceOf("usr_u"))

	pending := s.GetPubSub().PendingRefunds(s.GetConfig().Refund.Topic)
	s.Require().Len(pending, 1)
	s.Equal("usr_u", pending[0].UserID)
	s.Equal(int64(1500), pending[0].Amount)
	s.Equal(types.TransactionReasonPurchaseRollback, pending[0].Reason)
	s.NotEmpty(pending[0].IdempotencyKey)
}

func (s *PurchaseServiceSuite) TestRetryAfterFailedAssignmentIsCharged() {
	n := s.SeedNumber("+15550000123", 500, 1000)
	s.SeedBalance("usr_u", 2000)

	s.GetStores().NumberRepo.FailAssigns(1)
	_, err := s.purchases.Confirm(s.GetContext(), n.ID, "usr_u")
	s.True(ierr.Is(err, ierr.ErrDatabase), "unexpected error: %v", err)
	s.Equal(int64(2000), s.BalanceOf("usr_u"))
	s.Equal(types.NumberStatusAvailable, s.MustGetNumber(n.ID).Status)

	// same number version, same user: the first debit key is reused
	resp, err := s.purchases.Confirm(s.GetContext(), n.ID, "usr_u")
	s.Require().NoError(err)
	s.Equal(int64(500), resp.Balance.Amount)
	s.Equal(int64(500), s.BalanceOf("usr_u"))
	s.Equal("usr_u", testutil.Owner(s.MustGetNumber(n.ID)))

	txns := s.transactionsOf("usr_u")
	s.Require().Len(txns, 4)
	s.Equal(types.TransactionReasonNumberPurchase, txns[0].Reason)
	s.Equal(resp.TransactionID, txns[0].ID)
	s.Equal(types.TransactionReasonPurchaseRollback, txns[1].Reason)

	s.Run("third attempt is rejected without a charge", func() {
		_, err := s.purchases.Confirm(s.GetContext(), n.ID, "usr_u")
		s.True(ierr.IsConflict(err))
		s.Equal(int64(500), s.BalanceOf("usr_u"))
	})
}

func (s *PurchaseServiceSuite) TestRepeatedFailedAssignmentsNeverChargeTwice() {
	n := s.SeedNumber("+15550000124", 500, 1000)
	s.SeedBalance("usr_u", 2000)

	for i := 0; i < 3; i++ {
		s.GetStores().NumberRepo.FailAssigns(1)
		_, err := s.purchases.Confirm(s.GetContext(), n.ID, "usr_u")
		s.Require().Error(err)
		s.Equal(int64(2000), s.BalanceOf("usr_u"))
	}

	_, err := s.purchases.Confirm(s.GetContext(), n.ID, "usr_u")
	s.Require().NoError(err)
	s.Equal(int64(500), s.BalanceOf("usr_u"))
	// 1 top-up, 4 debits, 3 rollbacks
	s.Len(s.transactionsOf("usr_u"), 8)
}

func (s *PurchaseServiceSuite) TestConfirmStandsWhenAssignReplyIsLost() {
	n := s.SeedNumber("+15550000125", 500, 1000)
	s.SeedBalance("usr_u", 2000)

	s.GetStores().NumberRepo.LoseAssignReplies(1)
	resp, err := s.purchases.Confirm(s.GetContext(), n.ID, "usr_u")
	s.Require().NoError(err)
	s.Equal(types.NumberStatusAssigned, resp.Number.Status)
	s.Equal(int64(500), resp.Balance.Amount)

	s.Equal("usr_u", testutil.Owner(s.MustGetNumber(n.ID)))
	s.Equal(int64(500), s.BalanceOf("usr_u"))
	s.Len(s.transactionsOf("usr_u"), 2)
	s.Equal(1, s.GetStores().BalanceRepo.CreditCalls(), "only the seed top-up was a credit")
	s.Empty(s.GetPubSub().PendingRefunds(s.GetConfig().Refund.Topic))
}

func (s *PurchaseServiceSuite) TestRetryAssignedWhileRollbackRunsIsCharged() {
	n := s.SeedNumber("+15550000126", 500, 1000)
	s.SeedBalance("usr_u", 2000)

	// a retry adopts the debit after the first attempt decided to roll it back
	var retryErr error
	s.GetStores().BalanceRepo.BeforeCredit(func(ctx context.Context, op *balance.Operation) {
		_, retryErr = s.purchases.Confirm(ctx, n.ID, "usr_u")
	})
	s.GetStores().NumberRepo.FailAssigns(1)

	_, err := s.purchases.Confirm(s.GetContext(), n.ID, "usr_u")
	s.Error(err)
	s.Require().NoError(retryErr)

	s.Equal("usr_u", testutil.Owner(s.MustGetNumber(n.ID)))
	s.Equal(int64(500), s.BalanceOf("usr_u"))

	txns := s.transactionsOf("usr_u")
	s.Require().Len(txns, 4)
	s.Equal(types.TransactionReasonNumberPurchase, txns[0].Reason)
	s.Equal(types.TransactionReasonPurchaseRollback, txns[1].Reason)
}

func (s *PurchaseServiceSuite) TestRollbackLandingDuringRetryIsNoticed() {
	n := s.SeedNumber("+15550000127", 500, 1000)
	s.SeedBalance("usr_u", 2000)

	s.GetStores().NumberRepo.FailAssigns(1)
	s.GetStores().BalanceRepo.FailCredits(-1)
	_, err := s.purchases.Confirm(s.GetContext(), n.ID, "usr_u")
	s.Require().Error(err)
	s.Equal(int64(500), s.BalanceOf("usr_u"))

	pending := s.GetPubSub().PendingRefunds(s.GetConfig().Refund.Topic)
	s.Require().Len(pending, 1)
	s.NotEmpty(pending[0].DebitID)
	s.Equal(n.Version, pending[0].NumberVersion)

	// the queued rollback is delivered between the retry's debit and its assignment
	s.GetStores().BalanceRepo.FailCredits(0)
	msgs := s.GetPubSub().GetMessages(s.GetConfig().Refund.Topic)
	s.GetStores().NumberRepo.BeforeMarkAssigned(func(ctx context.Context, id string) {
		s.Require().NoError(s.refunds.HandleRefundPending(msgs[0]))
	})

	resp, err := s.purchases.Confirm(s.GetContext(), n.ID, "usr_u")
	s.Require().NoError(err)
	s.Equal(int64(500), resp.Balance.Amount)
	s.Equal(int64(500), s.BalanceOf("usr_u"))
	s.Equal("usr_u", testutil.Owner(s.MustGetNumber(n.ID)))
}

func (s *PurchaseServiceSuite) TestQueuedRollbackChargesAdoptedPurchase() {
	n := s.SeedNumber("+15550000128", 500, 1000)
	s.SeedBalance("usr_u", 2000)

	s.GetStores().NumberRepo.FailAssigns(1)
	s.GetStores().BalanceRepo.FailCredits(-1)
	_, err := s.purchases.Confirm(s.GetContext(), n.ID, "usr_u")
	s.Require().Error(err)

	// the retry reuses the debit that is still waiting to be rolled back
	s.GetStores().BalanceRepo.FailCredits(0)
	_, err = s.purchases.Confirm(s.GetContext(), n.ID, "usr_u")
	s.Require().NoError(err)
	s.Equal(int64(500), s.BalanceOf("usr_u"))

	msgs := s.GetPubSub().GetMessages(s.GetConfig().Refund.Topic)
	s.Require().Len(msgs, 1)
	for i := 0; i < 3; i++ {
		s.Require().NoError(s.refunds.HandleRefundPending(msgs[0]))
	}

	s.Equal("usr_u", testutil.Owner(s.MustGetNumber(n.ID)))
	s.Equal(int64(500), s.BalanceOf("usr_u"))
	s.Len(s.transactionsOf("usr_u"), 4)
}

func (s *PurchaseServiceSuite) TestUnpaidNumberIsTakenBack() {
	n := s.SeedNumber("+15550000129", 500, 1000)
	other := s.SeedNumber("+15550000130", 400, 600)
	s.SeedBalance("usr_u", 2000)

	s.GetStores().NumberRepo.FailAssigns(1)
	s.GetStores().BalanceRepo.FailCredits(-1)
	_, err := s.purchases.Confirm(s.GetContext(), n.ID, "usr_u")
	s.Require().Error(err)

	// the rollback lands and the money is spent before the retry assigns
	s.GetStores().BalanceRepo.FailCredits(0)
	msgs := s.GetPubSub().GetMessages(s.GetConfig().Refund.Topic)
	s.GetStores().NumberRepo.BeforeMarkAssigned(func(ctx context.Context, id string) {
		s.Require().NoError(s.refunds.HandleRefundPending(msgs[0]))
		_, err := s.purchases.Confirm(ctx, other.ID, "usr_u")
		s.Require().NoError(err)
	})

	_, err = s.purchases.Confirm(s.GetContext(), n.ID, "usr_u")
	s.True(ierr.IsInsufficientFunds(err), "unexpected error: %v", err)

	s.Equal(types.NumberStatusAvailable, s.MustGetNumber(n.ID).Status)
	s.Equal("usr_u", testutil.Owner(s.MustGetNumber(other.ID)))
	s.Equal(int64(1000), s.BalanceOf("usr_u"))
}

func (s *PurchaseServiceSuite) TestRelease() {
	n := s.SeedNumber("+15550000113", 500, 1000)
	s.SeedBalance("usr_u", 1500)

	_, err := s.purchases.Confirm(s.GetContext(), n.ID, "usr_u")
	s.Require().NoError(err)
	s.GetClock().Advance(time.Hour)

	resp, err := s.purchases.Release(s.GetContext(), n.ID, "usr_u")
	s.Require().NoError(err)
	s.Equal(types.RefundStatusCompleted, resp.RefundStatus)
	s.Equal(int64(1000), resp.Refund.Amount)
	s.Require().NotNil(resp.Balance)
	s.Equal(int64(1000), resp.Balance.Amount)

	stored := s.MustGetNumber(n.ID)
	s.Equal(types.NumberStatusAvailable, stored.Status)
	s.Nil(stored.AssignedAt)
	s.Equal(s.GetNow(), stored.UpdatedAt)

	s.Run("second release", func() {
		_, err := s.purchases.Release(s.GetContext(), n.ID, "usr_u")
		s.True(ierr.IsNotFound(err))
		s.Equal(int64(1000), s.BalanceOf("usr_u"))
	})

	s.Equal([]string{types.EventNumberPurchased, types.EventNumberReleased}, s.LifecycleEventNames())
}

func (s *PurchaseServiceSuite) TestReleaseRejected() {
	available := s.SeedNumber("+15550000114", 500, 1000)
	held := s.SeedNumber("+15550000115", 500, 1000)
	sold := s.SeedNumber("+15550000116", 500, 1000)
	s.SeedBalance("usr_u", 5000)

	_, err := s.holds.Reserve(s.GetContext(), held.ID, "usr_u", 0)
	s.Require().NoError(err)
	_, err = s.purchases.Confirm(s.GetContext(), sold.ID, "usr_u")
	s.Require().NoError(err)

	tests := []struct {
		name     string
		numberID string
		userID   string
		check    func(error) bool
	}{
		{name: "available number", numberID: available.ID, userID: "usr_u", check: ierr.IsNotFound},
		{name: "held number", numberID: held.ID, userID: "usr_u", check: ierr.IsNotFound},
		{name: "someone else's number", numberID: sold.ID, userID: "usr_v", check: ierr.IsNotOwner},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.purchases.Release(s.GetContext(), tt.numberID, tt.userID)
			s.True(tt.check(err), "unexpected error: %v", err)
		})
	}

	s.Equal(types.NumberStatusAssigned, s.MustGetNumber(sold.ID).Status)
	s.Equal(int64(3500), s.BalanceOf("usr_u"))
}

func (s *PurchaseServiceSuite) TestConcurrentReleasesRefundOnce() {
	n := s.SeedNumber("+15550000117", 500, 1000)
	s.SeedBalance("usr_u", 1500)

	_, err := s.purchases.Confirm(s.GetContext(), n.ID, "usr_u")
	s.Require().NoError(err)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.purchases.Release(s.GetContext(), n.ID, "usr_u")
		}()
	}
	wg.Wait()

	s.Equal(int64(1000), s.BalanceOf("usr_u"))
}

func (s *PurchaseServiceSuite) TestReleaseRefundRetried() {
	n := s.SeedNumber("+15550000118", 500, 1000)
	s.SeedBalance("usr_u", 1500)

	_, err := s.purchases.Confirm(s.GetContext(), n.ID, "usr_u")
	s.Require().NoError(err)

	s.GetStores().BalanceRepo.FailCredits(2)
	resp, err := s.purchases.Release(s.GetContext(), n.ID, "usr_u")
	s.Require().NoError(err)
	s.Equal(types.RefundStatusCompleted, resp.RefundStatus)
	s.Equal(int64(1000), s.BalanceOf("usr_u"))
	s.GreaterOrEqual(s.GetStores().BalanceRepo.CreditCalls(), 4)
}

func (s *PurchaseServiceSuite) TestReleaseRefundPending() {
	n := s.SeedNumber("+15550000119", 500, 1000)
	s.SeedBalance("usr_u", 1500)

	_, err := s.purchases.Confirm(s.GetContext(), n.ID, "usr_u")
	s.Require().NoError(err)

	s.GetStores().BalanceRepo.FailCredits(-1)
	resp, err := s.purchases.Release(s.GetContext(), n.ID, "usr_u")
	s.Require().NoError(err)
	s.Equal(types.RefundStatusPending, resp.RefundStatus)
	s.Nil(resp.Balance)

	// the number is free but the refund is still owed
	s.Equal(types.NumberStatusAvailable, s.MustGetNumber(n.ID).Status)
	s.Zero(s.BalanceOf("usr_u"))

	pending := s.GetPubSub().PendingRefunds(s.GetConfig().Refund.Topic)
	s.Require().Len(pending, 1)
	s.Equal(int64(1000), pending[0].Amount)
	s.Equal(types.TransactionReasonNumberRefund, pending[0].Reason)
	s.Equal(n.ID, pending[0].NumberID)
	s.NotEmpty(pending[0].LastError)

	// the queued refund lands exactly once, however often it is delivered
	s.GetStores().BalanceRepo.FailCredits(0)
	msgs := s.GetPubSub().GetMessages(s.GetConfig().Refund.Topic)
	for i := 0; i < 3; i++ {
		s.Require().NoError(s.refunds.HandleRefundPending(msgs[0]))
	}
	s.Equal(int64(1000), s.BalanceOf("usr_u"))
}

func (s *PurchaseServiceSuite) TestReleaseFreeNumber() {
	n := s.SeedNumber("+15550000120", 0, 0)

	_, err := s.purchases.Confirm(s.GetContext(), n.ID, "usr_u")
	s.Require().NoError(err)

	resp, err := s.purchases.Release(s.GetContext(), n.ID, "usr_u")
	s.Require().NoError(err)
	s.Equal(types.RefundStatusNone, resp.RefundStatus)
	s.Zero(s.GetStores().BalanceRepo.CreditCalls())
}

func (s *PurchaseServiceSuite) TestRebuyAfterReleaseRefundsAgain() {
	n := s.SeedNumber("+15550000121", 500, 1000)
	s.SeedBalance("usr_u", 3000)

	for i := 0; i < 2; i++ {
		_, err := s.purchases.Confirm(s.GetContext(), n.ID, "usr_u")
		s.Require().NoError(err)
		s.GetClock().Advance(time.Second)
		_, err = s.purchases.Release(s.GetContext(), n.ID, "usr_u")
		s.Require().NoError(err)
	}

	// each assignment is charged 1500 and refunded 1000
	s.Equal(int64(2000), s.BalanceOf("usr_u"))
}

func (s *PurchaseServiceSuite) TestNumberInvariantAcrossLifecycle() {
	n := s.SeedNumber("+15550000122", 500, 1000)
	s.SeedBalance("usr_u", 1500)

	steps := []func() error{
		func() error { _, err := s.holds.Reserve(s.GetContext(), n.ID, "usr_u", 0); return err },
		func() error { _, err := s.holds.Cancel(s.GetContext(), n.ID, "usr_u"); return err },
		func() error { _, err := s.holds.Reserve(s.GetContext(), n.ID, "usr_u", 0); return err },
		func() error { _, err := s.purchases.Confirm(s.GetContext(), n.ID, "usr_u"); return err },
		func() error { _, err := s.purchases.Release(s.GetContext(), n.ID, "usr_u"); return err },
	}
	for _, step := range steps {
		s.Require().NoError(step())
		// MustGetNumber fails on an inconsistent status, owner and expiry
		s.MustGetNumber(n.ID)
	}
}
