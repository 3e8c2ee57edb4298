package service

import (
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/numbrly/portal/internal/domain/balance"
	ierr "github.com/numbrly/portal/internal/errors"
	"github.com/numbrly/portal/internal/types"
)

// RefundService drains the pending refund queue. The idempotency key carried
// by each message makes redelivery safe.
type RefundService interface {
	HandleRefundPending(msg *message.Message) error
}

type refundService struct {
	purchaseCharges
}

func NewRefundService(params ServiceParams, balanceService BalanceService) RefundService {
	return &refundService{
		purchaseCharges: purchaseCharges{
			ServiceParams:  params,
			balanceService: balanceService,
		},
	}
}

func (s *refundService) HandleRefundPending(msg *message.Message) error {
	var pending types.RefundPending
	if err := json.Unmarshal(msg.Payload, &pending); err != nil {
		return ierr.WithError(err).
			WithHint("Pending refund payload is not valid JSON").
			WithReportableDetails(map[string]any{"message_uuid": msg.UUID}).
			Mark(ierr.ErrValidation)
	}
	if pending.IdempotencyKey == "" {
		return ierr.NewError("pending refund has no idempotency key").
			WithReportableDetails(map[string]any{"message_uuid": msg.UUID}).
			Mark(ierr.ErrValidation)
	}

	res, err := s.balanceService.Credit(msg.Context(), &balance.Operation{
		UserID:         pending.UserID,
		Amount:         pending.Amount,
		Reason:         pending.Reason,
		ReferenceID:    pending.NumberID,
		IdempotencyKey: pending.IdempotencyKey,
	})
	if err != nil {
		s.Logger.Warnw("pending refund still failing",
			"user_id", pending.UserID,
			"number_id", pending.NumberID,
			"amount", pending.Amount,
			"first_failed_at", pending.FirstFailedAt,
			"error", err,
		)
		return err
	}

	s.Logger.Infow("pending refund credited",
		"user_id", pending.UserID,
		"number_id", pending.NumberID,
		"amount", pending.Amount,
		"replayed", res.Replayed,
		"delay", s.Clock.Now().Sub(pending.FirstFailedAt),
	)

	if pending.Reason == types.TransactionReasonPurchaseRollback && pending.DebitID != "" {
		// redelivery replays the credit above and retries this
		return s.reclaim(msg.Context(), pending.UserID, pending.NumberID, pending.NumberVersion, pending.DebitID, pending.Amount)
	}
	return nil
}
