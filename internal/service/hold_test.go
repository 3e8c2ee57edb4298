package service

import (
	"fmt"
	"sync"
	"testing"
	"time"

	ierr "github.com/numbrly/portal/internal/errors"
	"github.com/numbrly/portal/internal/testutil"
	"github.com/numbrly/portal/internal/types"
	"github.com/stretchr/testify/suite"
)

type HoldServiceSuite struct {
	servicesTestSuite
}

func TestHoldService(t *testing.T) {
	suite.Run(t, new(HoldServiceSuite))
}

func (s *HoldServiceSuite) TestReserve() {
	n := s.SeedNumber("+15550000001", 500, 1000)

	tests := []struct {
		name       string
		ttl        time.Duration
		wantExpiry time.Duration
	}{
		{name: "default ttl", ttl: 0, wantExpiry: s.GetConfig().Numbers.HoldTTL},
		{name: "custom ttl", ttl: time.Hour, wantExpiry: time.Hour},
		{name: "ttl above max is clamped", ttl: 1000 * time.Hour, wantExpiry: s.GetConfig().Numbers.MaxHoldTTL},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			resp, err := s.holds.Reserve(s.GetContext(), n.ID, "usr_a", tt.ttl)
			s.Require().NoError(err)
			s.Equal(s.GetNow().Add(tt.wantExpiry), resp.ExpiresAt)
			s.Equal(types.NumberStatusHeld, resp.Number.Status)

			stored := s.MustGetNumber(n.ID)
			s.Equal("usr_a", testutil.Owner(stored))

			_, err = s.holds.Cancel(s.GetContext(), n.ID, "usr_a")
			s.Require().NoError(err)
		})
	}
}

func (s *HoldServiceSuite) TestReserveHeldNumberIsNotAvailable() {
	n := s.SeedNumber("+15550000002", 0, 100)

	_, err := s.holds.Reserve(s.GetContext(), n.ID, "usr_a", 0)
	s.Require().NoError(err)

	_, err = s.holds.Reserve(s.GetContext(), n.ID, "usr_b", 0)
	s.True(ierr.IsNotAvailable(err))
	s.Equal(409, ierr.HTTPStatusFromErr(err))

	// holding it again yourself does not renew the hold
	_, err = s.holds.Reserve(s.GetContext(), n.ID, "usr_a", 0)
	s.True(ierr.IsNotAvailable(err))
}

func (s *HoldServiceSuite) TestReserveUnknownNumber() {
	_, err := s.holds.Reserve(s.GetContext(), "num_missing", "usr_a", 0)
	s.True(ierr.IsNotFound(err))
}

func (s *HoldServiceSuite) TestHoldLimit() {
	max := s.GetConfig().Numbers.MaxHoldsPerUser
	for i := 0; i < max; i++ {
		n := s.SeedNumber(fmt.Sprintf("+1555100%04d", i), 0, 100)
		_, err := s.holds.Reserve(s.GetContext(), n.ID, "usr_a", 0)
		s.Require().NoError(err)
	}

	extra := s.SeedNumber("+15551009999", 0, 100)
	_, err := s.holds.Reserve(s.GetContext(), extra.ID, "usr_a", 0)
	s.True(ierr.IsHoldLimitExceeded(err))
	s.Equal(429, ierr.HTTPStatusFromErr(err))

	// inventory was not touched
	s.Equal(types.NumberStatusAvailable, s.MustGetNumber(extra.ID).Status)

	// someone else is not affected
	_, err = s.holds.Reserve(s.GetContext(), extra.ID, "usr_b", 0)
	s.NoError(err)
}

func (s *HoldServiceSuite) TestHoldLimitUnderConcurrentReserves() {
	max := s.GetConfig().Numbers.MaxHoldsPerUser
	ids := make([]string, 0, max*3)
	for i := 0; i < max*3; i++ {
		ids = append(ids, s.SeedNumber(fmt.Sprintf("+1555200%04d", i), 0, 100).ID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, _ = s.holds.Reserve(s.GetContext(), id, "usr_a", 0)
		}(id)
	}
	wg.Wait()

	count, err := s.GetStores().NumberRepo.CountActiveHolds(s.GetContext(), "usr_a", s.GetNow())
	s.Require().NoError(err)
	s.Equal(max, count)
}

func (s *HoldServiceSuite) TestExpiredHoldIsAvailableBeforeReaper() {
	n := s.SeedNumber("+15550000003", 0, 100)

	_, err := s.holds.Reserve(s.GetContext(), n.ID, "usr_a", time.Minute)
	s.Require().NoError(err)

	s.GetClock().Advance(time.Minute + time.Second)

	// expired holds no longer count against the limit and can be taken by anyone
	count, err := s.GetStores().NumberRepo.CountActiveHolds(s.GetContext(), "usr_a", s.GetNow())
	s.Require().NoError(err)
	s.Zero(count)

	resp, err := s.holds.Reserve(s.GetContext(), n.ID, "usr_b", 0)
	s.Require().NoError(err)
	s.Equal(types.NumberStatusHeld, resp.Number.Status)
	s.Equal("usr_b", testutil.Owner(s.MustGetNumber(n.ID)))
}

func (s *HoldServiceSuite) TestCancel() {
	n := s.SeedNumber("+15550000004", 0, 100)
	_, err := s.holds.Reserve(s.GetContext(), n.ID, "usr_a", 0)
	s.Require().NoError(err)

	s.Run("not the owner", func() {
		_, err := s.holds.Cancel(s.GetContext(), n.ID, "usr_b")
		s.True(ierr.IsNotOwner(err))
		s.Equal(types.NumberStatusHeld, s.MustGetNumber(n.ID).Status)
	})

	s.Run("owner", func() {
		resp, err := s.holds.Cancel(s.GetContext(), n.ID, "usr_a")
		s.Require().NoError(err)
		s.Equal(types.NumberStatusAvailable, resp.Status)

		stored := s.MustGetNumber(n.ID)
		s.Nil(stored.OwnerID)
		s.Nil(stored.HoldExpiresAt)
	})

	s.Run("already cancelled", func() {
		_, err := s.holds.Cancel(s.GetContext(), n.ID, "usr_a")
		s.True(ierr.IsNotFound(err))
	})

	s.Equal([]string{types.EventNumberHeld, types.EventNumberHoldCancelled}, s.LifecycleEventNames())
}

func (s *HoldServiceSuite) TestCancelExpiredHold() {
	n := s.SeedNumber("+15550000005", 0, 100)
	_, err := s.holds.Reserve(s.GetContext(), n.ID, "usr_a", time.Minute)
	s.Require().NoError(err)

	s.GetClock().Advance(2 * time.Minute)

	_, err = s.holds.Cancel(s.GetContext(), n.ID, "usr_a")
	s.True(ierr.IsNotFound(err))
}

func (s *HoldServiceSuite) TestListHolds() {
	a := s.SeedNumber("+15550000006", 0, 100)
	b := s.SeedNumber("+15550000007", 0, 100)

	_, err := s.holds.Reserve(s.GetContext(), a.ID, "usr_a", time.Minute)
	s.Require().NoError(err)
	_, err = s.holds.Reserve(s.GetContext(), b.ID, "usr_a", time.Hour)
	s.Require().NoError(err)

	s.GetClock().Advance(2 * time.Minute)

	holds, err := s.holds.ListHolds(s.GetContext(), "usr_a")
	s.Require().NoError(err)
	s.Require().Len(holds, 1)
	s.Equal(b.ID, holds[0].Number.ID)
}

func (s *HoldServiceSuite) TestReleaseExpired() {
	n := s.SeedNumber("+15550000008", 0, 100)
	_, err := s.holds.Reserve(s.GetContext(), n.ID, "usr_a", time.Minute)
	s.Require().NoError(err)

	s.Run("not yet expired", func() {
		ok, err := s.holds.ReleaseExpired(s.GetContext(), n.ID, s.GetNow())
		s.Require().NoError(err)
		s.False(ok)
		s.Equal(types.NumberStatusHeld, s.MustGetNumber(n.ID).Status)
	})

	s.GetClock().Advance(2 * time.Minute)

	s.Run("listed and released", func() {
		ids, err := s.holds.ListExpired(s.GetContext(), s.GetNow(), 10)
		s.Require().NoError(err)
		s.Equal([]string{n.ID}, ids)

		ok, err := s.holds.ReleaseExpired(s.GetContext(), n.ID, s.GetNow())
		s.Require().NoError(err)
		s.True(ok)
		s.Equal(types.NumberStatusAvailable, s.MustGetNumber(n.ID).Status)
	})

	s.Run("second release is a no-op", func() {
		ok, err := s.holds.ReleaseExpired(s.GetContext(), n.ID, s.GetNow())
		s.Require().NoError(err)
		s.False(ok)
	})
}

func (s *HoldServiceSuite) TestReleaseExpiredSkipsConfirmedHold() {
	n := s.SeedNumber("+15550000009", 0, 100)
	s.SeedBalance("usr_a", 1000)

	_, err := s.holds.Reserve(s.GetContext(), n.ID, "usr_a", time.Minute)
	s.Require().NoError(err)

	// the reaper listed the hold, then the owner confirmed it
	s.GetClock().Advance(2 * time.Minute)
	ids, err := s.holds.ListExpired(s.GetContext(), s.GetNow(), 10)
	s.Require().NoError(err)
	s.Require().Equal([]string{n.ID}, ids)

	_, err = s.purchases.Confirm(s.GetContext(), n.ID, "usr_a")
	s.Require().NoError(err)

	ok, err := s.holds.ReleaseExpired(s.GetContext(), n.ID, s.GetNow())
	s.Require().NoError(err)
	s.False(ok)
	s.Equal(types.NumberStatusAssigned, s.MustGetNumber(n.ID).Status)
}
