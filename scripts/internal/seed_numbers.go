package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/numbrly/portal/internal/api/dto"
	"github.com/numbrly/portal/internal/domain/balance"
	"github.com/numbrly/portal/internal/domain/number"
	ierr "github.com/numbrly/portal/internal/errors"
	"github.com/numbrly/portal/internal/types"
	"github.com/samber/lo"
)

// seedBatchSize keeps each insert transaction small
const seedBatchSize = 500

// SeedNumbers reads NUMBERS_FILE, a JSON array of numbers in the admin API
// shape, and inserts them in batches. A batch with a duplicate fails whole.
func SeedNumbers() error {
	path := os.Getenv("NUMBERS_FILE")
	if path == "" {
		return fmt.Errorf("NUMBERS_FILE is required")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var reqs []*dto.CreateNumberRequest
	if err := json.Unmarshal(raw, &reqs); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.close()

	ctx, cancel := scriptContext()
	defer cancel()

	now := time.Now().UTC()
	var created, skipped int
	for i, chunk := range lo.Chunk(reqs, seedBatchSize) {
		req := &dto.CreateNumbersRequest{Numbers: chunk}
		if err := req.Validate(); err != nil {
			return fmt.Errorf("batch %d: %w", i, err)
		}

		numbers := make([]*number.PhoneNumber, 0, len(chunk))
		for _, r := range chunk {
			n := r.ToNumber(now)
			if err := n.Validate(); err != nil {
				return fmt.Errorf("batch %d: %w", i, err)
			}
			numbers = append(numbers, n)
		}

		err := e.tx.WithTx(ctx, func(ctx context.Context) error {
			return e.numberRepo.Create(ctx, numbers...)
		})
		if ierr.IsAlreadyExists(err) {
			e.log.Warnw("batch contains existing numbers, skipped", "batch", i, "size", len(numbers))
			skipped += len(numbers)
			continue
		}
		if err != nil {
			return err
		}
		created += len(numbers)
	}

	e.log.Infow("seeded numbers", "created", created, "skipped", skipped)
	return nil
}

// GrantBalance credits AMOUNT minor units to USER_ID
func GrantBalance() error {
	userID := os.Getenv("USER_ID")
	if userID == "" {
		return fmt.Errorf("USER_ID is required")
	}
	amount, err := strconv.ParseInt(os.Getenv("AMOUNT"), 10, 64)
	if err != nil || amount <= 0 {
		return fmt.Errorf("AMOUNT must be a positive integer")
	}

	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.close()

	ctx, cancel := scriptContext()
	defer cancel()

	res, err := e.balanceRepo.Credit(ctx, &balance.Operation{
		UserID: userID,
		Amount: amount,
		Reason: types.TransactionReasonTopUp,
	})
	if err != nil {
		return err
	}

	e.log.Infow("granted balance",
		"user_id", userID,
		"amount", types.FormatMinorUnits(amount),
		"balance", types.FormatMinorUnits(res.Balance),
	)
	return nil
}
