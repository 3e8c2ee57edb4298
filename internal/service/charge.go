package service

import (
	"context"

	"github.com/numbrly/portal/internal/domain/balance"
	"github.com/numbrly/portal/internal/domain/number"
	ierr "github.com/numbrly/portal/internal/errors"
	"github.com/numbrly/portal/internal/idempotency"
	"github.com/numbrly/portal/internal/types"
)

// maxChargeLinks bounds how many voided debits a single charge walks past
const maxChargeLinks = 32

// purchaseCharges takes and voids purchase debits. A debit is void once its
// rollback credit is journaled. A void debit is never reused: the charge is
// retaken under a key chained to it, so every retry path lands on the same
// replacement debit.
type purchaseCharges struct {
	ServiceParams
	balanceService BalanceService
}

func (c *purchaseCharges) debitKey(numberID string, version int64, userID string) string {
	return c.IdempGen.GenerateKey(idempotency.ScopePurchaseDebit, map[string]interface{}{
		"number_id": numberID,
		"version":   version,
		"user_id":   userID,
	})
}

func (c *purchaseCharges) chainedKey(voidedDebitID string) string {
	return c.IdempGen.GenerateKey(idempotency.ScopePurchaseDebit, map[string]interface{}{
		"voided_debit_id": voidedDebitID,
	})
}

func (c *purchaseCharges) rollbackKey(debitID string) string {
	return c.IdempGen.GenerateKey(idempotency.ScopePurchaseRollback, map[string]interface{}{
		"debit_id": debitID,
	})
}

// isVoided reports whether debitID already has its rollback credit
func (c *purchaseCharges) isVoided(ctx context.Context, userID, debitID string) (bool, error) {
	_, err := c.BalanceRepo.GetTransactionByIdempotencyKey(ctx, userID, c.rollbackKey(debitID))
	if err == nil {
		return true, nil
	}
	if ierr.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// charge debits op. When the key replays a voided debit it follows the chain
// until it reaches a live debit or takes a fresh one.
func (c *purchaseCharges) charge(ctx context.Context, op *balance.Operation) (*balance.Result, error) {
	next := *op
	for i := 0; i < maxChargeLinks; i++ {
		res, err := c.balanceService.Debit(ctx, &next)
		if err != nil {
			return nil, err
		}
		if !res.Replayed {
			return res, nil
		}

		voided, err := c.isVoided(ctx, op.UserID, res.Transaction.ID)
		if err != nil {
			return nil, err
		}
		if !voided {
			return res, nil
		}
		c.Logger.Infow("purchase debit was rolled back, charging again",
			"user_id", op.UserID,
			"number_id", op.ReferenceID,
			"voided_debit_id", res.Transaction.ID,
		)
		next.IdempotencyKey = c.chainedKey(res.Transaction.ID)
	}

	return nil, ierr.NewError("too many voided purchase debits").
		WithHint("This purchase was retried too many times, please contact support").
		WithReportableDetails(map[string]any{
			"user_id":   op.UserID,
			"number_id": op.ReferenceID,
		}).
		Mark(ierr.ErrConflict)
}

// settle runs after an assignment paid with debit. If the debit was rolled
// back meanwhile, the purchase is charged again, and the number is taken back
// when that charge fails.
func (c *purchaseCharges) settle(ctx context.Context, n *number.PhoneNumber, userID string, debit *balance.Result) (*balance.Result, error) {
	voided, err := c.isVoided(ctx, userID, debit.Transaction.ID)
	if err != nil {
		// a rollback racing this assignment is caught by reclaim on its side
		c.Logger.Warnw("could not check purchase debit for rollback",
			"number_id", n.ID,
			"user_id", userID,
			"debit_id", debit.Transaction.ID,
			"error", err,
		)
		return debit, nil
	}
	if !voided {
		return debit, nil
	}

	res, err := c.charge(ctx, &balance.Operation{
		UserID:         userID,
		Amount:         debit.Transaction.Amount,
		Reason:         types.TransactionReasonNumberPurchase,
		ReferenceID:    n.ID,
		IdempotencyKey: c.chainedKey(debit.Transaction.ID),
	})
	if err != nil {
		return nil, c.revoke(ctx, n.ID, userID, err)
	}
	return res, nil
}

// reclaim runs after the rollback credit of debitID landed. A concurrent
// retry may have assigned the number against that debit; if so the purchase
// is charged again or the number taken back.
func (c *purchaseCharges) reclaim(ctx context.Context, userID, numberID string, version int64, debitID string, amount int64) error {
	n, err := c.NumberRepo.Get(ctx, numberID)
	if err != nil {
		return err
	}
	// the assignment that used debitID is the one right after it was taken
	if n.Status != types.NumberStatusAssigned || n.Owner() != userID || n.Version != version+1 {
		return nil
	}

	c.Sentry.AddBreadcrumb("purchase", "number assigned against a rolled back debit", map[string]interface{}{
		"number_id": numberID,
		"debit_id":  debitID,
	})
	res, err := c.charge(ctx, &balance.Operation{
		UserID:         userID,
		Amount:         amount,
		Reason:         types.TransactionReasonNumberPurchase,
		ReferenceID:    numberID,
		IdempotencyKey: c.chainedKey(debitID),
	})
	if err != nil {
		if ierr.IsInsufficientFunds(err) {
			return c.takeBack(ctx, numberID, userID, err)
		}
		return err
	}

	c.Logger.Warnw("purchase charged again after rollback",
		"number_id", numberID,
		"user_id", userID,
		"voided_debit_id", debitID,
		"transaction_id", res.Transaction.ID,
	)
	return nil
}

// revoke frees a number that could not be paid for and returns cause
func (c *purchaseCharges) revoke(ctx context.Context, numberID, userID string, cause error) error {
	if err := c.takeBack(ctx, numberID, userID, cause); err != nil {
		c.Sentry.CaptureAlert(ctx, ierr.WithError(err).
			WithHint("Unpaid number could not be released").
			Mark(ierr.ErrSystem), map[string]string{
			"user_id":   userID,
			"number_id": numberID,
		})
	}
	return cause
}

// takeBack releases numberID if userID still owns it
func (c *purchaseCharges) takeBack(ctx context.Context, numberID, userID string, cause error) error {
	_, err := c.NumberRepo.Release(context.WithoutCancel(ctx), numberID, &number.ReleaseCondition{
		ExpectedStatus: types.NumberStatusAssigned,
		ExpectedOwner:  userID,
	}, c.Clock.Now())
	if err != nil && !ierr.IsConflict(err) {
		return err
	}

	c.Logger.Warnw("unpaid number taken back",
		"number_id", numberID,
		"user_id", userID,
		"cause", cause,
	)
	return nil
}
