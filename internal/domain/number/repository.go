package number

import (
	"context"
	"time"

	"github.com/numbrly/portal/internal/types"
)

// Repository is the authoritative store of number state. Every state change
// is a single atomic compare-and-set; a failed precondition is reported as
// ErrConflict and leaves the row untouched.
type Repository interface {
	Create(ctx context.Context, numbers ...*PhoneNumber) error
	Get(ctx context.Context, id string) (*PhoneNumber, error)

	// List and Count see every number regardless of status
	List(ctx context.Context, filter *types.NumberFilter) ([]*PhoneNumber, error)
	Count(ctx context.Context, filter *types.NumberFilter) (int, error)

	// ListAvailable returns available numbers and held numbers whose hold
	// expired at or before filter.Now, ordered by id
	ListAvailable(ctx context.Context, filter *types.NumberFilter) ([]*PhoneNumber, error)
	CountAvailable(ctx context.Context, filter *types.NumberFilter) (int, error)

	// MarkHeld succeeds when the number is available or its hold expired at or
	// before now. With maxHolds > 0 it fails with ErrHoldLimitExceeded when
	// userID already has maxHolds live holds; the check and the update are atomic.
	MarkHeld(ctx context.Context, id, userID string, expiresAt, now time.Time, maxHolds int) (*PhoneNumber, error)
	// MarkAssigned succeeds when the number is available, held by userID, or
	// held by someone else with an expired hold
	MarkAssigned(ctx context.Context, id, userID string, now time.Time) (*PhoneNumber, error)
	// Release sets the number available and stamps it with now. With a nil
	// condition it is unconditional and idempotent.
	Release(ctx context.Context, id string, cond *ReleaseCondition, now time.Time) (*PhoneNumber, error)

	CountActiveHolds(ctx context.Context, userID string, now time.Time) (int, error)
	// ListExpiredHolds returns held numbers whose hold expired strictly before now
	ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]*PhoneNumber, error)
	// ListByOwner returns the caller's live holds and assignments
	ListByOwner(ctx context.Context, userID string, now time.Time) ([]*PhoneNumber, error)
}
