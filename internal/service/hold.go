package service

import (
	"context"
	"time"

	"github.com/numbrly/portal/internal/api/dto"
	"github.com/numbrly/portal/internal/domain/number"
	ierr "github.com/numbrly/portal/internal/errors"
	"github.com/numbrly/portal/internal/types"
	"github.com/samber/lo"
)

// HoldService is the only writer of the held state
type HoldService interface {
	// Reserve holds a number for userID. ttl <= 0 uses the configured default
	// and a ttl above the configured maximum is clamped.
	Reserve(ctx context.Context, numberID, userID string, ttl time.Duration) (*dto.HoldResponse, error)
	// Cancel releases the caller's own live hold
	Cancel(ctx context.Context, numberID, userID string) (*dto.NumberResponse, error)
	ListHolds(ctx context.Context, userID string) ([]*dto.HoldResponse, error)

	// ListExpired returns ids of holds that expired strictly before now
	ListExpired(ctx context.Context, now time.Time, limit int) ([]string, error)
	// ReleaseExpired frees a hold only if it is still held and still expired at
	// now. It reports false when the number moved on in the meantime.
	ReleaseExpired(ctx context.Context, numberID string, now time.Time) (bool, error)
}

type holdService struct {
	ServiceParams
}

func NewHoldService(params ServiceParams) HoldService {
	return &holdService{ServiceParams: params}
}

func (s *holdService) ttlFor(requested time.Duration) time.Duration {
	if requested <= 0 {
		return s.Config.Numbers.HoldTTL
	}
	return min(requested, s.Config.Numbers.MaxHoldTTL)
}

func (s *holdService) Reserve(ctx context.Context, numberID, userID string, ttl time.Duration) (*dto.HoldResponse, error) {
	now := s.Clock.Now()
	maxHolds := s.Config.Numbers.MaxHoldsPerUser

	// fail fast without touching the number; MarkHeld re-checks atomically
	count, err := s.NumberRepo.CountActiveHolds(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	if count >= maxHolds {
		s.Metrics.RecordRejection("reserve", ierr.ErrCodeHoldLimitExceeded)
		return nil, number.ErrHoldLimitFor(userID, maxHolds)
	}

	expiresAt := now.Add(s.ttlFor(ttl))
	n, err := s.NumberRepo.MarkHeld(ctx, numberID, userID, expiresAt, now, maxHolds)
	if err != nil {
		if ierr.IsConflict(err) {
			s.Metrics.RecordRejection("reserve", ierr.ErrCodeNotAvailable)
			return nil, ierr.WithError(err).
				WithHint("This number is not available, pick another").
				WithReportableDetails(map[string]any{"number_id": numberID}).
				Mark(ierr.ErrNotAvailable)
		}
		if ierr.IsHoldLimitExceeded(err) {
			s.Metrics.RecordRejection("reserve", ierr.ErrCodeHoldLimitExceeded)
		}
		return nil, err
	}

	s.Logger.Infow("number held",
		"number_id", n.ID,
		"user_id", userID,
		"expires_at", expiresAt,
	)
	s.Publisher.PublishLifecycle(ctx, types.NewLifecycleEvent(
		types.EventNumberHeld, userID, n.ID,
		map[string]any{"expires_at": expiresAt},
		now,
	))

	return &dto.HoldResponse{
		Number:    dto.FromNumber(n),
		ExpiresAt: expiresAt,
	}, nil
}

func (s *holdService) Cancel(ctx context.Context, numberID, userID string) (*dto.NumberResponse, error) {
	now := s.Clock.Now()

	n, err := s.NumberRepo.Get(ctx, numberID)
	if err != nil {
		return nil, err
	}
	if n.Status != types.NumberStatusHeld || n.IsHoldExpired(now) {
		return nil, ierr.NewError("number is not held").
			WithHint("There is no active hold on this number").
			WithReportableDetails(map[string]any{"number_id": numberID}).
			Mark(ierr.ErrNotFound)
	}
	if n.Owner() != userID {
		return nil, ierr.NewError("hold belongs to another user").
			WithHint("You can only cancel your own holds").
			WithReportableDetails(map[string]any{"number_id": numberID}).
			Mark(ierr.ErrNotOwner)
	}

	released, err := s.NumberRepo.Release(ctx, numberID, &number.ReleaseCondition{
		ExpectedStatus: types.NumberStatusHeld,
		ExpectedOwner:  userID,
	}, now)
	if err != nil {
		if ierr.IsConflict(err) {
			// confirmed or reaped between the read and the release
			return nil, ierr.WithError(err).
				WithHint("There is no active hold on this number").
				Mark(ierr.ErrNotFound)
		}
		return nil, err
	}

	s.Logger.Infow("hold cancelled", "number_id", numberID, "user_id", userID)
	s.Publisher.PublishLifecycle(ctx, types.NewLifecycleEvent(
		types.EventNumberHoldCancelled, userID, numberID, nil, now,
	))
	return dto.FromNumber(released), nil
}

func (s *holdService) ListHolds(ctx context.Context, userID string) ([]*dto.HoldResponse, error) {
	now := s.Clock.Now()
	numbers, err := s.NumberRepo.ListByOwner(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	holds := lo.Filter(numbers, func(n *number.PhoneNumber, _ int) bool {
		return n.IsLiveHoldOf(userID, now)
	})
	return lo.Map(holds, func(n *number.PhoneNumber, _ int) *dto.HoldResponse {
		return &dto.HoldResponse{
			Number:    dto.FromNumber(n),
			ExpiresAt: lo.FromPtr(n.HoldExpiresAt),
		}
	}), nil
}

func (s *holdService) ListExpired(ctx context.Context, now time.Time, limit int) ([]string, error) {
	numbers, err := s.NumberRepo.ListExpiredHolds(ctx, now, limit)
	if err != nil {
		return nil, err
	}
	return lo.Map(numbers, func(n *number.PhoneNumber, _ int) string { return n.ID }), nil
}

func (s *holdService) ReleaseExpired(ctx context.Context, numberID string, now time.Time) (bool, error) {
	before, err := s.NumberRepo.Get(ctx, numberID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}

	_, err = s.NumberRepo.Release(ctx, numberID, &number.ReleaseCondition{
		ExpectedStatus: types.NumberStatusHeld,
		ExpiredAt:      lo.ToPtr(now),
	}, now)
	if err != nil {
		if ierr.IsConflict(err) {
			s.Logger.Debugw("expired hold changed before release", "number_id", numberID)
			return false, nil
		}
		return false, err
	}

	s.Logger.Infow("expired hold released",
		"number_id", numberID,
		"user_id", before.Owner(),
		"expired_at", lo.FromPtr(before.HoldExpiresAt),
	)
	s.Publisher.PublishLifecycle(ctx, types.NewLifecycleEvent(
		types.EventNumberHoldExpired, before.Owner(), numberID, nil, now,
	))
	return true, nil
}
