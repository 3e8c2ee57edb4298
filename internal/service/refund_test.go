package service

import (
	"encoding/json"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	ierr "github.com/numbrly/portal/internal/errors"
	"github.com/numbrly/portal/internal/types"
	"github.com/stretchr/testify/suite"
)

type RefundServiceSuite struct {
	servicesTestSuite
}

func TestRefundService(t *testing.T) {
	suite.Run(t, new(RefundServiceSuite))
}

func (s *RefundServiceSuite) pendingMessage(pending *types.RefundPending) *message.Message {
	payload, err := json.Marshal(pending)
	s.Require().NoError(err)
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(s.GetContext())
	return msg
}

func (s *RefundServiceSuite) TestHandleRefundPending() {
	msg := s.pendingMessage(&types.RefundPending{
		UserID:         "usr_u",
		NumberID:       "num_1",
		Amount:         1000,
		Reason:         types.TransactionReasonNumberRefund,
		IdempotencyKey: "release_refund_abc",
		FirstFailedAt:  s.GetNow(),
	})

	s.Require().NoError(s.refunds.HandleRefundPending(msg))
	s.Equal(int64(1000), s.BalanceOf("usr_u"))

	s.Run("redelivery credits once", func() {
		s.Require().NoError(s.refunds.HandleRefundPending(msg))
		s.Equal(int64(1000), s.BalanceOf("usr_u"))
	})
}

func (s *RefundServiceSuite) TestHandleRefundPendingStoreDown() {
	msg := s.pendingMessage(&types.RefundPending{
		UserID:         "usr_u",
		NumberID:       "num_1",
		Amount:         1000,
		Reason:         types.TransactionReasonPurchaseRollback,
		IdempotencyKey: "purchase_rollback_abc",
	})

	s.GetStores().BalanceRepo.FailCredits(1)
	err := s.refunds.HandleRefundPending(msg)
	s.Error(err)
	s.False(ierr.IsValidation(err))

	s.Require().NoError(s.refunds.HandleRefundPending(msg))
	s.Equal(int64(1000), s.BalanceOf("usr_u"))
}

func (s *RefundServiceSuite) TestHandleRefundPendingRejectsBadMessages() {
	tests := []struct {
		name string
		msg  *message.Message
	}{
		{
			name: "malformed json",
			msg:  message.NewMessage(watermill.NewUUID(), []byte("{not json")),
		},
		{
			name: "missing idempotency key",
			msg: s.pendingMessage(&types.RefundPending{
				UserID: "usr_u",
				Amount: 1000,
				Reason: types.TransactionReasonNumberRefund,
			}),
		},
		{
			name: "zero amount",
			msg: s.pendingMessage(&types.RefundPending{
				UserID:         "usr_u",
				Amount:         0,
				Reason:         types.TransactionReasonNumberRefund,
				IdempotencyKey: "k",
			}),
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			err := s.refunds.HandleRefundPending(tt.msg)
			s.True(ierr.IsValidation(err))
		})
	}
	s.Zero(s.BalanceOf("usr_u"))
}
