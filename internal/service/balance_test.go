package service

import (
	"encoding/json"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/numbrly/portal/internal/api/dto"
	"github.com/numbrly/portal/internal/cache"
	"github.com/numbrly/portal/internal/domain/balance"
	ierr "github.com/numbrly/portal/internal/errors"
	"github.com/numbrly/portal/internal/types"
	"github.com/stretchr/testify/suite"
)

type BalanceServiceSuite struct {
	servicesTestSuite
}

func TestBalanceService(t *testing.T) {
	suite.Run(t, new(BalanceServiceSuite))
}

func topUp(amount string) *dto.TopUpRequest {
	return &dto.TopUpRequest{Amount: json.Number(amount)}
}

func (s *BalanceServiceSuite) TestTopUp() {
	resp, err := s.balances.TopUp(s.GetContext(), "usr_a", topUp("2500"), "")
	s.Require().NoError(err)
	s.Equal(int64(2500), resp.Balance.Amount)
	s.Equal("25.00", resp.Balance.Display)
	s.False(resp.Replayed)
	s.Equal(types.TransactionReasonTopUp, resp.Transaction.Reason)
	s.Equal(int64(0), resp.Transaction.BalanceBefore)

	resp, err = s.balances.TopUp(s.GetContext(), "usr_a", topUp("500"), "")
	s.Require().NoError(err)
	s.Equal(int64(3000), resp.Balance.Amount)

	s.Equal([]string{types.EventBalanceToppedUp, types.EventBalanceToppedUp}, s.LifecycleEventNames())
}

func (s *BalanceServiceSuite) TestTopUpInvalidAmount() {
	for _, amount := range []string{"0", "-3", "1.5", "abc", "", "99999999999999999999"} {
		s.Run(amount, func() {
			_, err := s.balances.TopUp(s.GetContext(), "usr_a", topUp(amount), "")
			s.True(ierr.IsInvalidAmount(err))
			s.True(ierr.IsValidation(err))
			s.Equal(400, ierr.HTTPStatusFromErr(err))
		})
	}
	s.Zero(s.BalanceOf("usr_a"))
	s.Empty(s.LifecycleEventNames())
}

func (s *BalanceServiceSuite) TestTopUpCannotOverflowBalance() {
	_, err := s.balances.TopUp(s.GetContext(), "usr_a", topUp("9223372036854775807"), "")
	s.Require().NoError(err)

	_, err = s.balances.TopUp(s.GetContext(), "usr_a", topUp("2"), "")
	s.True(ierr.IsInvalidAmount(err), "unexpected error: %v", err)
	s.Equal(400, ierr.HTTPStatusFromErr(err))
	s.Equal(int64(9223372036854775807), s.BalanceOf("usr_a"))
	s.Len(s.LifecycleEventNames(), 1)
}

func (s *BalanceServiceSuite) TestTopUpIdempotencyKey() {
	first, err := s.balances.TopUp(s.GetContext(), "usr_a", topUp("1000"), "pay_123")
	s.Require().NoError(err)
	s.False(first.Replayed)

	s.Run("replayed from cache", func() {
		again, err := s.balances.TopUp(s.GetContext(), "usr_a", topUp("1000"), "pay_123")
		s.Require().NoError(err)
		s.True(again.Replayed)
		s.Equal(first.Transaction.ID, again.Transaction.ID)
		s.Equal(int64(1000), s.BalanceOf("usr_a"))
	})

	s.Run("replayed from ledger", func() {
		s.GetCache().Delete(s.GetContext(), cache.GenerateKey(cache.PrefixTopUp, "usr_a", "pay_123"))

		again, err := s.balances.TopUp(s.GetContext(), "usr_a", topUp("1000"), "pay_123")
		s.Require().NoError(err)
		s.True(again.Replayed)
		s.Equal(first.Transaction.ID, again.Transaction.ID)
		s.Equal(int64(1000), s.BalanceOf("usr_a"))
	})

	s.Run("different amount", func() {
		_, err := s.balances.TopUp(s.GetContext(), "usr_a", topUp("2000"), "pay_123")
		s.True(ierr.IsConflict(err))
		s.Equal(int64(1000), s.BalanceOf("usr_a"))
	})

	s.Run("same key for another user", func() {
		other, err := s.balances.TopUp(s.GetContext(), "usr_b", topUp("700"), "pay_123")
		s.Require().NoError(err)
		s.False(other.Replayed)
		s.Equal(int64(700), s.BalanceOf("usr_b"))
	})

	s.Equal([]string{types.EventBalanceToppedUp, types.EventBalanceToppedUp}, s.LifecycleEventNames())
}

func (s *BalanceServiceSuite) TestDebit() {
	s.SeedBalance("usr_a", 1000)

	s.Run("insufficient funds leaves the balance untouched", func() {
		_, err := s.balances.Debit(s.GetContext(), &balance.Operation{
			UserID: "usr_a",
			Amount: 1250,
			Reason: types.TransactionReasonNumberPurchase,
		})
		s.True(ierr.IsInsufficientFunds(err))
		s.Equal(402, ierr.HTTPStatusFromErr(err))
		s.Contains(errors.GetAllHints(err), "Insufficient balance, top up $2.50 more")
		s.Equal(int64(1000), s.BalanceOf("usr_a"))
	})

	s.Run("exact balance", func() {
		res, err := s.balances.Debit(s.GetContext(), &balance.Operation{
			UserID: "usr_a",
			Amount: 1000,
			Reason: types.TransactionReasonNumberPurchase,
		})
		s.Require().NoError(err)
		s.Zero(res.Balance)
		s.Equal(types.TransactionTypeDebit, res.Transaction.Type)
	})

	s.Run("user without a balance", func() {
		_, err := s.balances.Debit(s.GetContext(), &balance.Operation{
			UserID: "usr_new",
			Amount: 1,
			Reason: types.TransactionReasonNumberPurchase,
		})
		s.True(ierr.IsInsufficientFunds(err))
	})

	s.Run("non-positive amount", func() {
		_, err := s.balances.Debit(s.GetContext(), &balance.Operation{
			UserID: "usr_a",
			Amount: 0,
			Reason: types.TransactionReasonNumberPurchase,
		})
		s.True(ierr.IsInvalidAmount(err))
	})
}

func (s *BalanceServiceSuite) TestDebitIdempotencyKey() {
	s.SeedBalance("usr_a", 1000)
	op := &balance.Operation{
		UserID:         "usr_a",
		Amount:         400,
		Reason:         types.TransactionReasonNumberPurchase,
		IdempotencyKey: "purchase_debit_abc",
	}

	first, err := s.balances.Debit(s.GetContext(), op)
	s.Require().NoError(err)
	second, err := s.balances.Debit(s.GetContext(), op)
	s.Require().NoError(err)

	s.True(second.Replayed)
	s.Equal(first.Transaction.ID, second.Transaction.ID)
	s.Equal(int64(600), s.BalanceOf("usr_a"))
}

func (s *BalanceServiceSuite) TestGetBalance() {
	resp, err := s.balances.GetBalance(s.GetContext(), "usr_none")
	s.Require().NoError(err)
	s.Zero(resp.Balance.Amount)
	s.Nil(resp.UpdatedAt)

	s.SeedBalance("usr_a", 1999)
	resp, err = s.balances.GetBalance(s.GetContext(), "usr_a")
	s.Require().NoError(err)
	s.Equal(int64(1999), resp.Balance.Amount)
	s.Equal("19.99", resp.Balance.Display)
}

func (s *BalanceServiceSuite) TestListTransactions() {
	s.SeedBalance("usr_a", 1000)
	_, err := s.balances.Debit(s.GetContext(), &balance.Operation{
		UserID: "usr_a",
		Amount: 300,
		Reason: types.TransactionReasonNumberPurchase,
	})
	s.Require().NoError(err)

	all, err := s.balances.ListTransactions(s.GetContext(), "usr_a", nil)
	s.Require().NoError(err)
	s.Len(all.Items, 2)
	s.Equal(2, all.Pagination.Total)

	filter := types.NewTransactionFilter()
	filter.Type = types.TransactionTypeDebit
	debits, err := s.balances.ListTransactions(s.GetContext(), "usr_a", filter)
	s.Require().NoError(err)
	s.Require().Len(debits.Items, 1)
	s.Equal(int64(300), debits.Items[0].Amount.Amount)

	filter = types.NewTransactionFilter()
	filter.Reason = "bogus"
	_, err = s.balances.ListTransactions(s.GetContext(), "usr_a", filter)
	s.True(ierr.IsValidation(err))
}
