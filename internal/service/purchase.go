package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/numbrly/portal/internal/api/dto"
	"github.com/numbrly/portal/internal/domain/balance"
	"github.com/numbrly/portal/internal/domain/number"
	ierr "github.com/numbrly/portal/internal/errors"
	"github.com/numbrly/portal/internal/idempotency"
	"github.com/numbrly/portal/internal/types"
	"github.com/samber/lo"
)

// PurchaseService turns holds into assignments and back, keeping the ledger in step
type PurchaseService interface {
	// Confirm debits the purchase total and assigns the number. If the number
	// is lost after the debit, the debit is credited back before returning
	// ErrConflict. A debit that was credited back is never reused by a retry.
	Confirm(ctx context.Context, numberID, userID string) (*dto.PurchaseResponse, error)
	// Release frees the caller's number and refunds the monthly fee. A refund
	// that cannot be credited inline is queued and reported as pending.
	Release(ctx context.Context, numberID, userID string) (*dto.ReleaseResponse, error)
}

type purchaseService struct {
	purchaseCharges
}

func NewPurchaseService(params ServiceParams, balanceService BalanceService) PurchaseService {
	return &purchaseService{
		purchaseCharges: purchaseCharges{
			ServiceParams:  params,
			balanceService: balanceService,
		},
	}
}

func (s *purchaseService) Confirm(ctx context.Context, numberID, userID string) (*dto.PurchaseResponse, error) {
	now := s.Clock.Now()

	n, err := s.NumberRepo.Get(ctx, numberID)
	if err != nil {
		return nil, err
	}
	if err := purchasable(n, userID, now); err != nil {
		s.Metrics.RecordRejection("confirm", ierr.ErrCodeConflict)
		return nil, err
	}

	total := n.PurchaseTotal()
	var debit *balance.Result
	if total > 0 {
		debit, err = s.charge(ctx, &balance.Operation{
			UserID:      userID,
			Amount:      total,
			Reason:      types.TransactionReasonNumberPurchase,
			ReferenceID: numberID,
			// a retried confirm against the same number state charges once
			IdempotencyKey: s.debitKey(numberID, n.Version, userID),
		})
		if err != nil {
			if ierr.IsInsufficientFunds(err) {
				s.Metrics.RecordRejection("confirm", ierr.ErrCodeInsufficientFunds)
			}
			return nil, err
		}
	}

	assigned, err := s.NumberRepo.MarkAssigned(ctx, numberID, userID, now)
	if err != nil {
		assigned, err = s.recoverAssign(ctx, numberID, userID, debit, err)
	}
	if err != nil {
		if debit != nil {
			s.compensate(ctx, userID, numberID, n.Version, debit.Transaction)
		}
		if ierr.IsConflict(err) {
			s.Metrics.RecordRejection("confirm", ierr.ErrCodeConflict)
			return nil, ierr.WithError(err).
				WithHint("This number was just taken, pick another").
				Mark(ierr.ErrConflict)
		}
		return nil, err
	}

	if debit != nil {
		debit, err = s.settle(ctx, assigned, userID, debit)
		if err != nil {
			if ierr.IsInsufficientFunds(err) {
				s.Metrics.RecordRejection("confirm", ierr.ErrCodeInsufficientFunds)
			}
			return nil, err
		}
	}

	s.Logger.Infow("number purchased",
		"number_id", numberID,
		"user_id", userID,
		"charged", total,
	)
	s.Publisher.PublishLifecycle(ctx, types.NewLifecycleEvent(
		types.EventNumberPurchased, userID, numberID,
		map[string]any{"charged": total},
		now,
	))

	resp := &dto.PurchaseResponse{
		Number:  dto.FromNumber(assigned),
		Charged: dto.NewMoney(total),
	}
	if debit != nil {
		resp.TransactionID = debit.Transaction.ID
	}
	if debit != nil && !debit.Replayed {
		resp.Balance = dto.NewMoney(debit.Balance)
	} else {
		// a replayed debit carries the balance as it was back then
		resp.Balance = s.currentBalance(ctx, userID)
	}
	return resp, nil
}

func (s *purchaseService) currentBalance(ctx context.Context, userID string) dto.Money {
	current, err := s.balanceService.GetBalance(ctx, userID)
	if err != nil {
		s.Logger.Warnw("failed to read balance after purchase",
			"user_id", userID,
			"error", err,
		)
		return dto.NewMoney(0)
	}
	return current.Balance
}

// purchasable rejects numbers that userID cannot confirm right now
func purchasable(n *number.PhoneNumber, userID string, now time.Time) error {
	switch {
	case n.Status == types.NumberStatusAssigned:
		return ierr.NewError("number already sold").
			WithHint("This number has already been sold, pick another").
			WithReportableDetails(map[string]any{"number_id": n.ID}).
			Mark(ierr.ErrConflict)
	case n.Status == types.NumberStatusHeld && n.Owner() != userID && !n.IsHoldExpired(now):
		return ierr.NewError("number reserved by another user").
			WithHint("This number is reserved by another user, pick another").
			WithReportableDetails(map[string]any{"number_id": n.ID}).
			Mark(ierr.ErrConflict)
	}
	return nil
}

// recoverAssign handles an error from MarkAssigned. If the outcome is unknown,
// such as a dropped connection after commit, and the number ended up assigned
// to userID the purchase stands. A conflict stands too when the debit was a
// replay: a concurrent retry of the same confirm owns that debit and won.
func (s *purchaseService) recoverAssign(ctx context.Context, numberID, userID string, debit *balance.Result, assignErr error) (*number.PhoneNumber, error) {
	if ierr.IsNotFound(assignErr) {
		return nil, assignErr
	}
	if ierr.IsConflict(assignErr) && (debit == nil || !debit.Replayed) {
		return nil, assignErr
	}
	n, err := s.NumberRepo.Get(ctx, numberID)
	if err != nil {
		return nil, assignErr
	}
	if n.Status == types.NumberStatusAssigned && n.Owner() == userID {
		return n, nil
	}
	return nil, assignErr
}

// compensate credits back a purchase debit taken against version of the
// number. It retries with backoff and falls back to the refund queue; it
// never fails the caller a second time.
func (s *purchaseService) compensate(ctx context.Context, userID, numberID string, version int64, debit *balance.Transaction) {
	op := &balance.Operation{
		UserID:         userID,
		Amount:         debit.Amount,
		Reason:         types.TransactionReasonPurchaseRollback,
		ReferenceID:    numberID,
		IdempotencyKey: s.rollbackKey(debit.ID),
	}
	s.Sentry.AddBreadcrumb("purchase", "rolling back purchase debit", map[string]interface{}{
		"number_id": numberID,
		"debit_id":  debit.ID,
		"amount":    debit.Amount,
	})

	if _, err := s.creditWithRetry(ctx, op); err != nil {
		s.Metrics.RecordCompensation("queued")
		pending := s.newRefundPending(op, err)
		pending.DebitID = debit.ID
		pending.NumberVersion = version
		s.queueRefund(ctx, pending, err)
		return
	}
	s.Metrics.RecordCompensation("credited")
	s.Logger.Warnw("purchase rolled back",
		"number_id", numberID,
		"user_id", userID,
		"amount", debit.Amount,
		"debit_id", debit.ID,
	)

	if err := s.reclaim(context.WithoutCancel(ctx), userID, numberID, version, debit.ID, debit.Amount); err != nil {
		s.Sentry.CaptureAlert(ctx, ierr.WithError(err).
			WithHint("Number may be assigned against a rolled back debit").
			Mark(ierr.ErrSystem), map[string]string{
			"user_id":   userID,
			"number_id": numberID,
			"debit_id":  debit.ID,
		})
	}
}

func (s *purchaseService) Release(ctx context.Context, numberID, userID string) (*dto.ReleaseResponse, error) {
	now := s.Clock.Now()

	n, err := s.NumberRepo.Get(ctx, numberID)
	if err != nil {
		return nil, err
	}
	if n.Status != types.NumberStatusAssigned {
		return nil, ierr.NewError("number is not assigned").
			WithHint("This number is not assigned to anyone").
			WithReportableDetails(map[string]any{"number_id": numberID}).
			Mark(ierr.ErrNotFound)
	}
	if n.Owner() != userID {
		return nil, ierr.NewError("number belongs to another user").
			WithHint("You can only release your own numbers").
			WithReportableDetails(map[string]any{"number_id": numberID}).
			Mark(ierr.ErrNotOwner)
	}

	refund := n.RefundAmount()
	// one refund per assignment, however many times the release is retried
	refundKey := s.IdempGen.GenerateKey(idempotency.ScopeReleaseRefund, map[string]interface{}{
		"number_id":   numberID,
		"assigned_at": lo.FromPtr(n.AssignedAt).UnixNano(),
	})

	released, err := s.NumberRepo.Release(ctx, numberID, &number.ReleaseCondition{
		ExpectedStatus: types.NumberStatusAssigned,
		ExpectedOwner:  userID,
	}, now)
	if err != nil {
		if ierr.IsConflict(err) {
			return nil, ierr.WithError(err).
				WithHint("This number is not assigned to you anymore").
				Mark(ierr.ErrNotFound)
		}
		return nil, err
	}

	resp := &dto.ReleaseResponse{
		Number:       dto.FromNumber(released),
		Refund:       dto.NewMoney(refund),
		RefundStatus: types.RefundStatusNone,
	}

	if refund > 0 {
		op := &balance.Operation{
			UserID:         userID,
			Amount:         refund,
			Reason:         types.TransactionReasonNumberRefund,
			ReferenceID:    numberID,
			IdempotencyKey: refundKey,
		}
		res, err := s.creditWithRetry(ctx, op)
		if err != nil {
			s.queueRefund(ctx, s.newRefundPending(op, err), err)
			resp.RefundStatus = types.RefundStatusPending
		} else {
			resp.RefundStatus = types.RefundStatusCompleted
			resp.Balance = lo.ToPtr(dto.NewMoney(res.Balance))
			resp.TransactionID = res.Transaction.ID
		}
	}

	s.Logger.Infow("number released",
		"number_id", numberID,
		"user_id", userID,
		"refund", refund,
		"refund_status", resp.RefundStatus,
	)
	s.Publisher.PublishLifecycle(ctx, types.NewLifecycleEvent(
		types.EventNumberReleased, userID, numberID,
		map[string]any{"refund": refund, "refund_status": resp.RefundStatus},
		now,
	))
	return resp, nil
}

func (s *purchaseService) creditWithRetry(ctx context.Context, op *balance.Operation) (*balance.Result, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.Config.Refund.InitialInterval
	b.MaxInterval = s.Config.Refund.MaxInterval
	b.MaxElapsedTime = s.Config.Refund.MaxElapsedTime

	// the refund must outlive a cancelled request
	ctx = context.WithoutCancel(ctx)

	attempt := 0
	return backoff.RetryWithData(func() (*balance.Result, error) {
		attempt++
		res, err := s.balanceService.Credit(ctx, op)
		if err != nil {
			if ierr.IsValidation(err) {
				return nil, backoff.Permanent(err)
			}
			s.Logger.Warnw("credit attempt failed",
				"user_id", op.UserID,
				"reason", op.Reason,
				"amount", op.Amount,
				"attempt", attempt,
				"error", err,
			)
			return nil, err
		}
		return res, nil
	}, backoff.WithContext(b, ctx))
}

func (s *purchaseService) newRefundPending(op *balance.Operation, cause error) *types.RefundPending {
	return &types.RefundPending{
		UserID:         op.UserID,
		NumberID:       op.ReferenceID,
		Amount:         op.Amount,
		Reason:         op.Reason,
		IdempotencyKey: op.IdempotencyKey,
		FirstFailedAt:  s.Clock.Now(),
		LastError:      cause.Error(),
	}
}

// queueRefund hands a credit that exhausted its retries to the refund queue
// and alerts an operator
func (s *purchaseService) queueRefund(ctx context.Context, pending *types.RefundPending, cause error) {
	tags := map[string]string{
		"user_id":   pending.UserID,
		"number_id": pending.NumberID,
		"reason":    string(pending.Reason),
		"amount":    fmt.Sprintf("%d", pending.Amount),
	}
	if err := s.Publisher.PublishRefundPending(ctx, pending); err != nil {
		tags["queue_error"] = err.Error()
	}
	s.Sentry.CaptureAlert(ctx, ierr.WithError(cause).
		WithHint("Refund could not be credited").
		Mark(ierr.ErrSystem), tags)
}
