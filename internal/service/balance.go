package service

import (
	"context"

	"github.com/numbrly/portal/internal/api/dto"
	"github.com/numbrly/portal/internal/cache"
	"github.com/numbrly/portal/internal/domain/balance"
	ierr "github.com/numbrly/portal/internal/errors"
	"github.com/numbrly/portal/internal/idempotency"
	"github.com/numbrly/portal/internal/types"
	"github.com/samber/lo"
)

// BalanceService is the ledger. Debit and Credit are atomic per user.
type BalanceService interface {
	// Debit fails with ErrInsufficientFunds and changes nothing when the
	// balance is short
	Debit(ctx context.Context, op *balance.Operation) (*balance.Result, error)
	// Credit creates the balance on first use
	Credit(ctx context.Context, op *balance.Operation) (*balance.Result, error)

	// TopUp credits an already settled payment. A repeated idempotency key
	// returns the first result.
	TopUp(ctx context.Context, userID string, req *dto.TopUpRequest, idempotencyKey string) (*dto.TopUpResponse, error)
	GetBalance(ctx context.Context, userID string) (*dto.BalanceResponse, error)
	ListTransactions(ctx context.Context, userID string, filter *types.TransactionFilter) (*dto.ListTransactionsResponse, error)
}

type balanceService struct {
	ServiceParams
}

func NewBalanceService(params ServiceParams) BalanceService {
	return &balanceService{ServiceParams: params}
}

func (s *balanceService) Debit(ctx context.Context, op *balance.Operation) (*balance.Result, error) {
	return s.apply(ctx, op, types.TransactionTypeDebit)
}

func (s *balanceService) Credit(ctx context.Context, op *balance.Operation) (*balance.Result, error) {
	return s.apply(ctx, op, types.TransactionTypeCredit)
}

func (s *balanceService) apply(ctx context.Context, op *balance.Operation, txType types.TransactionType) (*balance.Result, error) {
	if err := op.Validate(); err != nil {
		return nil, err
	}

	var (
		res *balance.Result
		err error
	)
	if txType == types.TransactionTypeDebit {
		res, err = s.BalanceRepo.Debit(ctx, op)
	} else {
		res, err = s.BalanceRepo.Credit(ctx, op)
	}
	if err != nil {
		return nil, err
	}

	if res.Replayed {
		s.Logger.Infow("ledger operation replayed",
			"user_id", op.UserID,
			"type", txType,
			"transaction_id", res.Transaction.ID,
		)
		return res, nil
	}

	s.Metrics.RecordLedgerMovement(string(txType), string(op.Reason))
	s.Logger.Infow("ledger operation applied",
		"user_id", op.UserID,
		"type", txType,
		"reason", op.Reason,
		"amount", op.Amount,
		"balance_after", res.Balance,
		"transaction_id", res.Transaction.ID,
	)
	return res, nil
}

func (s *balanceService) TopUp(ctx context.Context, userID string, req *dto.TopUpRequest, idempotencyKey string) (*dto.TopUpResponse, error) {
	amount, err := req.MinorUnits()
	if err != nil {
		return nil, err
	}

	var cacheKey string
	op := &balance.Operation{
		UserID: userID,
		Amount: amount,
		Reason: types.TransactionReasonTopUp,
	}
	if idempotencyKey != "" {
		op.IdempotencyKey = s.IdempGen.GenerateKey(idempotency.ScopeTopUp, map[string]interface{}{
			"user_id": userID,
			"key":     idempotencyKey,
		})
		cacheKey = cache.GenerateKey(cache.PrefixTopUp, userID, idempotencyKey)

		var cached dto.TopUpResponse
		if cache.GetJSON(ctx, s.Cache, cacheKey, &cached) {
			if cached.Transaction != nil && cached.Transaction.Amount.Amount != amount {
				return nil, idempotencyMismatch(idempotencyKey)
			}
			cached.Replayed = true
			return &cached, nil
		}
	}

	res, err := s.Credit(ctx, op)
	if err != nil {
		return nil, err
	}
	if res.Replayed && res.Transaction.Amount != amount {
		return nil, idempotencyMismatch(idempotencyKey)
	}

	resp := &dto.TopUpResponse{
		Balance:     dto.NewMoney(res.Balance),
		Transaction: dto.FromTransaction(res.Transaction),
		Replayed:    res.Replayed,
	}
	if cacheKey != "" {
		first := *resp
		first.Replayed = false
		cache.SetJSON(ctx, s.Cache, cacheKey, &first, s.Config.Cache.IdempotentTTL)
	}

	if !res.Replayed {
		s.Publisher.PublishLifecycle(ctx, types.NewLifecycleEvent(
			types.EventBalanceToppedUp, userID, "",
			map[string]any{"amount": amount, "balance": res.Balance},
			s.Clock.Now(),
		))
	}
	return resp, nil
}

func idempotencyMismatch(key string) error {
	return ierr.NewError("idempotency key reused with a different amount").
		WithHint("This Idempotency-Key was already used for a different top-up").
		WithReportableDetails(map[string]any{"idempotency_key": key}).
		Mark(ierr.ErrConflict)
}

func (s *balanceService) GetBalance(ctx context.Context, userID string) (*dto.BalanceResponse, error) {
	b, err := s.BalanceRepo.Get(ctx, userID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return &dto.BalanceResponse{UserID: userID, Balance: dto.NewMoney(0)}, nil
		}
		return nil, err
	}
	return &dto.BalanceResponse{
		UserID:    b.UserID,
		Balance:   dto.NewMoney(b.Balance),
		UpdatedAt: lo.ToPtr(b.UpdatedAt),
	}, nil
}

func (s *balanceService) ListTransactions(ctx context.Context, userID string, filter *types.TransactionFilter) (*dto.ListTransactionsResponse, error) {
	if filter == nil {
		filter = types.NewTransactionFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	txns, err := s.BalanceRepo.ListTransactions(ctx, userID, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.BalanceRepo.CountTransactions(ctx, userID, filter)
	if err != nil {
		return nil, err
	}

	items := lo.Map(txns, func(t *balance.Transaction, _ int) *dto.TransactionResponse {
		return dto.FromTransaction(t)
	})
	resp := types.NewListResponse(items, total, filter.GetLimit(), filter.GetOffset())
	return &resp, nil
}
