package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/numbrly/portal/internal/domain/balance"
	ierr "github.com/numbrly/portal/internal/errors"
	"github.com/numbrly/portal/internal/logger"
	"github.com/numbrly/portal/internal/postgres"
	"github.com/numbrly/portal/internal/types"
	"github.com/samber/lo"
)

const transactionColumns = `id, user_id, type, reason, amount, balance_before, balance_after,
	reference_id, idempotency_key, created_at`

type balanceRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewBalanceRepository(db *postgres.DB, logger *logger.Logger) balance.Repository {
	return &balanceRepository{
		db:     db,
		logger: logger,
	}
}

func (r *balanceRepository) Get(ctx context.Context, userID string) (*balance.UserBalance, error) {
	var b balance.UserBalance
	err := namedGet(ctx, r.db.GetQuerier(ctx), &b,
		`SELECT user_id, balance, created_at, updated_at FROM user_balances WHERE user_id = :user_id`,
		map[string]interface{}{"user_id": userID})
	if err != nil {
		if isNoRows(err) {
			return nil, ierr.WithError(err).
				WithHint("Balance not found").
				WithReportableDetails(map[string]any{"user_id": userID}).
				Mark(ierr.ErrNotFound)
		}
		return nil, dbError(err, "failed to get balance")
	}
	return &b, nil
}

func (r *balanceRepository) Debit(ctx context.Context, op *balance.Operation) (*balance.Result, error) {
	return r.apply(ctx, op, types.TransactionTypeDebit)
}

func (r *balanceRepository) Credit(ctx context.Context, op *balance.Operation) (*balance.Result, error) {
	return r.apply(ctx, op, types.TransactionTypeCredit)
}

// apply moves money and journals the movement in one transaction. A unique
// violation on the idempotency key means a concurrent duplicate won the race;
// its transaction is returned as a replay.
func (r *balanceRepository) apply(ctx context.Context, op *balance.Operation, txType types.TransactionType) (*balance.Result, error) {
	if op.IdempotencyKey != "" {
		if res, ok, err := r.replay(ctx, op); err != nil || ok {
			return res, err
		}
	}

	var result *balance.Result
	err := r.db.WithTx(ctx, func(ctx context.Context) error {
		now := time.Now().UTC()

		var after int64
		var err error
		if txType == types.TransactionTypeDebit {
			after, err = r.debitBalance(ctx, op, now)
		} else {
			after, err = r.creditBalance(ctx, op, now)
		}
		if err != nil {
			return err
		}

		before := after + op.Amount
		if txType == types.TransactionTypeCredit {
			before = after - op.Amount
		}

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
		if err := r.insertTransaction(ctx, txn); err != nil {
			return err
		}

		result = &balance.Result{Balance: after, Transaction: txn}
		return nil
	})
	if err != nil {
		if op.IdempotencyKey != "" && isUniqueViolation(err) {
			if res, ok, rerr := r.replay(ctx, op); rerr != nil || ok {
				return res, rerr
			}
		}
		return nil, err
	}

	return result, nil
}

func (r *balanceRepository) replay(ctx context.Context, op *balance.Operation) (*balance.Result, bool, error) {
	existing, err := r.GetTransactionByIdempotencyKey(ctx, op.UserID, op.IdempotencyKey)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	r.logger.Infow("replaying ledger operation",
		"user_id", op.UserID,
		"idempotency_key", op.IdempotencyKey,
		"transaction_id", existing.ID,
	)
	return &balance.Result{
		Balance:     existing.BalanceAfter,
		Transaction: existing,
		Replayed:    true,
	}, true, nil
}

func (r *balanceRepository) debitBalance(ctx context.Context, op *balance.Operation, now time.Time) (int64, error) {
	query := `
		UPDATE user_balances
		SET balance = balance - :amount, updated_at = :now
		WHERE user_id = :user_id AND balance >= :amount
		RETURNING balance`

	var after int64
	err := namedGet(ctx, r.db.GetQuerier(ctx), &after, query, map[string]interface{}{
		"user_id": op.UserID,
		"amount":  op.Amount,
		"now":     now,
	})
	if err == nil {
		return after, nil
	}
	if !isNoRows(err) {
		return 0, dbError(err, "failed to debit balance")
	}

	var current int64
	if b, getErr := r.Get(ctx, op.UserID); getErr == nil {
		current = b.Balance
	} else if !ierr.IsNotFound(getErr) {
		return 0, getErr
	}
	return 0, balance.ErrInsufficientFundsFor(op, current)
}

func (r *balanceRepository) creditBalance(ctx context.Context, op *balance.Operation, now time.Time) (int64, error) {
	query := `
		INSERT INTO user_balances (user_id, balance, created_at, updated_at)
		VALUES (:user_id, :amount, :now, :now)
		ON CONFLICT (user_id) DO UPDATE
		SET balance = user_balances.balance + EXCLUDED.balance,
			updated_at = EXCLUDED.updated_at
		RETURNING balance`

	var after int64
	err := namedGet(ctx, r.db.GetQuerier(ctx), &after, query, map[string]interface{}{
		"user_id": op.UserID,
		"amount":  op.Amount,
		"now":     now,
	})
	if err != nil {
		if isOutOfRange(err) {
			return 0, balance.ErrBalanceOverflowFor(op)
		}
		return 0, dbError(err, "failed to credit balance")
	}
	return after, nil
}

func (r *balanceRepository) insertTransaction(ctx context.Context, txn *balance.Transaction) error {
	query := `
		INSERT INTO ledger_transactions (` + transactionColumns + `)
		VALUES (
			:id, :user_id, :type, :reason, :amount, :balance_before, :balance_after,
			:reference_id, :idempotency_key, :created_at
		)`

	if _, err := r.db.GetQuerier(ctx).NamedExecContext(ctx, query, txn); err != nil {
		if isUniqueViolation(err) {
			return err
		}
		return dbError(err, "failed to journal ledger transaction")
	}
	return nil
}

func (r *balanceRepository) GetTransactionByIdempotencyKey(ctx context.Context, userID, key string) (*balance.Transaction, error) {
	var txn balance.Transaction
	err := namedGet(ctx, r.db.GetQuerier(ctx), &txn,
		`SELECT `+transactionColumns+` FROM ledger_transactions
		WHERE user_id = :user_id AND idempotency_key = :key`,
		map[string]interface{}{"user_id": userID, "key": key})
	if err != nil {
		if isNoRows(err) {
			return nil, ierr.WithError(err).
				WithHint("Transaction not found").
				Mark(ierr.ErrNotFound)
		}
		return nil, dbError(err, "failed to get transaction by idempotency key")
	}
	return &txn, nil
}

func transactionFilterClause(filter *types.TransactionFilter, params map[string]interface{}) string {
	var conds []string
	if filter.Type != "" {
		conds = append(conds, "type = :type")
		params["type"] = filter.Type
	}
	if filter.Reason != "" {
		conds = append(conds, "reason = :reason")
		params["reason"] = filter.Reason
	}
	if len(conds) == 0 {
		return ""
	}
	return " AND " + strings.Join(conds, " AND ")
}

func (r *balanceRepository) ListTransactions(ctx context.Context, userID string, filter *types.TransactionFilter) ([]*balance.Transaction, error) {
	params := map[string]interface{}{
		"user_id": userID,
		"limit":   filter.GetLimit(),
		"offset":  filter.GetOffset(),
	}
	query := `SELECT ` + transactionColumns + ` FROM ledger_transactions WHERE user_id = :user_id` +
		transactionFilterClause(filter, params) +
		` ORDER BY created_at DESC, id DESC LIMIT :limit OFFSET :offset`

	var txns []*balance.Transaction
	if err := namedSelect(ctx, r.db.GetQuerier(ctx), &txns, query, params); err != nil {
		return nil, dbError(err, "failed to list transactions")
	}
	return txns, nil
}

func (r *balanceRepository) CountTransactions(ctx context.Context, userID string, filter *types.TransactionFilter) (int, error) {
	params := map[string]interface{}{"user_id": userID}
	query := `SELECT COUNT(*) FROM ledger_transactions WHERE user_id = :user_id` +
		transactionFilterClause(filter, params)

	var count int
	if err := namedGet(ctx, r.db.GetQuerier(ctx), &count, query, params); err != nil {
		return 0, dbError(err, "failed to count transactions")
	}
	return count, nil
}
