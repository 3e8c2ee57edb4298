package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/numbrly/portal/internal/domain/number"
	ierr "github.com/numbrly/portal/internal/errors"
	"github.com/numbrly/portal/internal/types"
	"github.com/samber/lo"
)

// NumberStore is a mutex-guarded number.Repository. Every method takes the
// store lock for its whole read-check-write, which makes each state change a
// compare-and-set.
type NumberStore struct {
	mu      sync.RWMutex
	numbers map[string]*number.PhoneNumber
}

var _ number.Repository = (*NumberStore)(nil)

func NewNumberStore() *NumberStore {
	return &NumberStore{
		numbers: make(map[string]*number.PhoneNumber),
	}
}

func notFound(id string) error {
	return ierr.NewError("number not found").
		WithHintf("Number %s not found", id).
		WithReportableDetails(map[string]any{"number_id": id}).
		Mark(ierr.ErrNotFound)
}

func conflict(n *number.PhoneNumber, op string) error {
	return ierr.NewError("number state does not allow "+op).
		WithHint("This number was just taken, pick another").
		WithReportableDetails(map[string]any{
			"number_id": n.ID,
			"status":    n.Status,
		}).
		Mark(ierr.ErrConflict)
}

func (s *NumberStore) Create(ctx context.Context, numbers ...*number.PhoneNumber) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	taken := make(map[string]bool, len(s.numbers))
	for _, n := range s.numbers {
		taken[n.Number()] = true
	}
	for _, n := range numbers {
		if _, exists := s.numbers[n.ID]; exists || taken[n.Number()] {
			return ierr.NewError("number already exists").
				WithHintf("Number %s already exists", n.Number()).
				WithReportableDetails(map[string]any{"number": n.Number()}).
				Mark(ierr.ErrAlreadyExists)
		}
		taken[n.Number()] = true
	}
	for _, n := range numbers {
		s.numbers[n.ID] = n.Copy()
	}
	return nil
}

func (s *NumberStore) Get(ctx context.Context, id string) (*number.PhoneNumber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.numbers[id]
	if !ok {
		return nil, notFound(id)
	}
	return n.Copy(), nil
}

func matchesFilter(n *number.PhoneNumber, f *types.NumberFilter) bool {
	if f.Kind != "" && n.Kind() != f.Kind {
		return false
	}
	if f.Category != "" && n.Category != f.Category {
		return false
	}
	if f.Status != "" && n.Status != f.Status {
		return false
	}
	if f.OwnerID != "" && n.Owner() != f.OwnerID {
		return false
	}
	return true
}

// selectSorted returns copies of the numbers matching keep, ordered by id
func (s *NumberStore) selectSorted(keep func(*number.PhoneNumber) bool) []*number.PhoneNumber {
	var out []*number.PhoneNumber
	for _, n := range s.numbers {
		if keep(n) {
			out = append(out, n.Copy())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func page(items []*number.PhoneNumber, f *types.NumberFilter) []*number.PhoneNumber {
	offset := f.GetOffset()
	if offset >= len(items) {
		return []*number.PhoneNumber{}
	}
	end := lo.Min([]int{offset + f.GetLimit(), len(items)})
	return items[offset:end]
}

func (s *NumberStore) List(ctx context.Context, filter *types.NumberFilter) ([]*number.PhoneNumber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return page(s.selectSorted(func(n *number.PhoneNumber) bool {
		return matchesFilter(n, filter)
	}), filter), nil
}

func (s *NumberStore) Count(ctx context.Context, filter *types.NumberFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.selectSorted(func(n *number.PhoneNumber) bool {
		return matchesFilter(n, filter)
	})), nil
}

func (s *NumberStore) available(filter *types.NumberFilter) []*number.PhoneNumber {
	now := filter.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	f := *filter
	f.Status = ""
	f.OwnerID = ""
	return s.selectSorted(func(n *number.PhoneNumber) bool {
		return n.IsLogicallyAvailable(now) && matchesFilter(n, &f)
	})
}

func (s *NumberStore) ListAvailable(ctx context.Context, filter *types.NumberFilter) ([]*number.PhoneNumber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return page(s.available(filter), filter), nil
}

func (s *NumberStore) CountAvailable(ctx context.Context, filter *types.NumberFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.available(filter)), nil
}

func (s *NumberStore) MarkHeld(ctx context.Context, id, userID string, expiresAt, now time.Time, maxHolds int) (*number.PhoneNumber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.numbers[id]
	if !ok {
		return nil, notFound(id)
	}
	if maxHolds > 0 && s.countLiveHolds(userID, now) >= maxHolds {
		return nil, number.ErrHoldLimitFor(userID, maxHolds)
	}
	if !n.IsLogicallyAvailable(now) {
		return nil, conflict(n, "hold")
	}

	n.Status = types.NumberStatusHeld
	n.OwnerID = lo.ToPtr(userID)
	n.HoldExpiresAt = lo.ToPtr(expiresAt)
	n.AssignedAt = nil
	n.Version++
	n.UpdatedAt = now
	return n.Copy(), nil
}

func (s *NumberStore) MarkAssigned(ctx context.Context, id, userID string, now time.Time) (*number.PhoneNumber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.numbers[id]
	if !ok {
		return nil, notFound(id)
	}

	heldByCaller := n.Status == types.NumberStatusHeld && n.Owner() == userID
	if !n.IsLogicallyAvailable(now) && !heldByCaller {
		return nil, conflict(n, "assign")
	}

	n.Status = types.NumberStatusAssigned
	n.OwnerID = lo.ToPtr(userID)
	n.HoldExpiresAt = nil
	n.AssignedAt = lo.ToPtr(now)
	n.Version++
	n.UpdatedAt = now
	return n.Copy(), nil
}

func (s *NumberStore) Release(ctx context.Context, id string, cond *number.ReleaseCondition, now time.Time) (*number.PhoneNumber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.numbers[id]
	if !ok {
		return nil, notFound(id)
	}
	if !cond.Matches(n) {
		return nil, conflict(n, "release")
	}

	if n.Status != types.NumberStatusAvailable {
		n.Version++
	}
	n.Status = types.NumberStatusAvailable
	n.OwnerID = nil
	n.HoldExpiresAt = nil
	n.AssignedAt = nil
	n.UpdatedAt = now
	return n.Copy(), nil
}

func (s *NumberStore) CountActiveHolds(ctx context.Context, userID string, now time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.countLiveHolds(userID, now), nil
}

// countLiveHolds expects the caller to hold the lock
func (s *NumberStore) countLiveHolds(userID string, now time.Time) int {
	return lo.CountBy(lo.Values(s.numbers), func(n *number.PhoneNumber) bool {
		return n.IsLiveHoldOf(userID, now)
	})
}

func (s *NumberStore) ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]*number.PhoneNumber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expired := s.selectSorted(func(n *number.PhoneNumber) bool {
		return n.Status == types.NumberStatusHeld && n.HoldExpiresAt != nil && n.HoldExpiresAt.Before(now)
	})
	sort.SliceStable(expired, func(i, j int) bool {
		return expired[i].HoldExpiresAt.Before(*expired[j].HoldExpiresAt)
	})
	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}
	return expired, nil
}

func (s *NumberStore) ListByOwner(ctx context.Context, userID string, now time.Time) ([]*number.PhoneNumber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.selectSorted(func(n *number.PhoneNumber) bool {
		return n.IsLiveHoldOf(userID, now) ||
			(n.Status == types.NumberStatusAssigned && n.Owner() == userID)
	}), nil
}
