package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/numbrly/portal/internal/types"
	"github.com/stretchr/testify/suite"
)

type ReaperServiceSuite struct {
	servicesTestSuite
}

func TestReaperService(t *testing.T) {
	suite.Run(t, new(ReaperServiceSuite))
}

func (s *ReaperServiceSuite) TestSweepNothingToDo() {
	s.SeedNumber("+15550000201", 0, 100)

	resp, err := s.reaper.Sweep(s.GetContext())
	s.Require().NoError(err)
	s.Zero(resp.Scanned)
	s.Zero(resp.Released)
}

func (s *ReaperServiceSuite) TestSweepReleasesExpiredHolds() {
	short := s.SeedNumber("+15550000202", 500, 1000)
	long := s.SeedNumber("+15550000203", 500, 1000)
	s.SeedBalance("usr_u", 1000)

	_, err := s.holds.Reserve(s.GetContext(), short.ID, "usr_u", time.Minute)
	s.Require().NoError(err)
	_, err = s.holds.Reserve(s.GetContext(), long.ID, "usr_v", time.Hour)
	s.Require().NoError(err)

	s.GetClock().Advance(2 * time.Minute)

	resp, err := s.reaper.Sweep(s.GetContext())
	s.Require().NoError(err)
	s.Equal(1, resp.Scanned)
	s.Equal(1, resp.Released)

	s.Equal(types.NumberStatusAvailable, s.MustGetNumber(short.ID).Status)
	s.Equal(types.NumberStatusHeld, s.MustGetNumber(long.ID).Status)

	// expiry never touches the ledger
	s.Equal(int64(1000), s.BalanceOf("usr_u"))
	s.Contains(s.LifecycleEventNames(), types.EventNumberHoldExpired)
}

func (s *ReaperServiceSuite) TestSweepIgnoresHoldExpiringExactlyNow() {
	n := s.SeedNumber("+15550000204", 0, 100)
	_, err := s.holds.Reserve(s.GetContext(), n.ID, "usr_u", time.Minute)
	s.Require().NoError(err)

	s.GetClock().Advance(time.Minute)

	resp, err := s.reaper.Sweep(s.GetContext())
	s.Require().NoError(err)
	s.Zero(resp.Released)
	s.Equal(types.NumberStatusHeld, s.MustGetNumber(n.ID).Status)
}

func (s *ReaperServiceSuite) TestSweepInBatches() {
	s.GetConfig().Reaper.BatchSize = 3
	s.GetConfig().Reaper.Concurrency = 2
	s.GetConfig().Numbers.MaxHoldsPerUser = 100

	for i := 0; i < 10; i++ {
		n := s.SeedNumber(fmt.Sprintf("+1555030%04d", i), 0, 100)
		_, err := s.holds.Reserve(s.GetContext(), n.ID, "usr_u", time.Minute)
		s.Require().NoError(err)
	}

	s.GetClock().Advance(time.Hour)

	resp, err := s.reaper.Sweep(s.GetContext())
	s.Require().NoError(err)
	s.Equal(10, resp.Scanned)
	s.Equal(10, resp.Released)

	count, err := s.GetStores().NumberRepo.CountActiveHolds(s.GetContext(), "usr_u", s.GetNow())
	s.Require().NoError(err)
	s.Zero(count)

	again, err := s.reaper.Sweep(s.GetContext())
	s.Require().NoError(err)
	s.Zero(again.Scanned)
}

func (s *ReaperServiceSuite) TestSweepAfterLazyReserve() {
	n := s.SeedNumber("+15550000205", 0, 100)
	_, err := s.holds.Reserve(s.GetContext(), n.ID, "usr_u", time.Minute)
	s.Require().NoError(err)

	s.GetClock().Advance(2 * time.Minute)

	// another user takes the expired hold before the reaper gets to it
	_, err = s.holds.Reserve(s.GetContext(), n.ID, "usr_v", 0)
	s.Require().NoError(err)

	resp, err := s.reaper.Sweep(s.GetContext())
	s.Require().NoError(err)
	s.Zero(resp.Released)
	s.Equal("usr_v", s.MustGetNumber(n.ID).Owner())
}
