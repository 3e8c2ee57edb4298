package service

import (
	"testing"
	"time"

	"github.com/numbrly/portal/internal/api/dto"
	ierr "github.com/numbrly/portal/internal/errors"
	"github.com/numbrly/portal/internal/types"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type InventoryServiceSuite struct {
	servicesTestSuite
}

func TestInventoryService(t *testing.T) {
	suite.Run(t, new(InventoryServiceSuite))
}

func (s *InventoryServiceSuite) TestCreateNumbers() {
	created, err := s.inventory.CreateNumbers(s.GetContext(), &dto.CreateNumbersRequest{
		Numbers: []*dto.CreateNumberRequest{
			{MobileNumber: "+15550000301", Category: types.NumberCategoryGold, ConnectionFee: 500, MonthlyFee: 1000},
			{TollFreeNumber: "+18000000302", ConnectionFee: 0, MonthlyFee: 2500},
		},
	})
	s.Require().NoError(err)
	s.Require().Len(created, 2)
	s.Equal(types.NumberStatusAvailable, created[0].Status)
	s.Equal(types.NumberKindTollFree, created[1].Kind)

	for _, c := range created {
		s.MustGetNumber(c.ID)
	}
}

func (s *InventoryServiceSuite) TestCreateNumbersInvalid() {
	tests := []struct {
		name string
		req  *dto.CreateNumberRequest
	}{
		{name: "no number", req: &dto.CreateNumberRequest{MonthlyFee: 100}},
		{name: "both numbers", req: &dto.CreateNumberRequest{MobileNumber: "+1", TollFreeNumber: "+1800", MonthlyFee: 100}},
		{name: "negative fee", req: &dto.CreateNumberRequest{MobileNumber: "+15550000303", ConnectionFee: -1}},
		{name: "unknown category", req: &dto.CreateNumberRequest{MobileNumber: "+15550000304", Category: "diamond"}},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.inventory.CreateNumbers(s.GetContext(), &dto.CreateNumbersRequest{
				Numbers: []*dto.CreateNumberRequest{tt.req},
			})
			s.True(ierr.IsValidation(err))
		})
	}

	all, err := s.inventory.ListNumbers(s.GetContext(), nil)
	s.Require().NoError(err)
	s.Empty(all.Items)
}

func (s *InventoryServiceSuite) TestListAvailable() {
	free := s.SeedNumber("+15550000305", 0, 100)
	held := s.SeedNumber("+15550000306", 0, 100)
	expiring := s.SeedNumber("+15550000307", 0, 100)
	sold := s.SeedNumber("+15550000308", 0, 100)

	_, err := s.holds.Reserve(s.GetContext(), held.ID, "usr_u", time.Hour)
	s.Require().NoError(err)
	_, err = s.holds.Reserve(s.GetContext(), expiring.ID, "usr_u", time.Minute)
	s.Require().NoError(err)
	_, err = s.purchases.Confirm(s.GetContext(), sold.ID, "usr_v")
	s.Require().NoError(err)

	s.GetClock().Advance(2 * time.Minute)

	resp, err := s.inventory.ListAvailable(s.GetContext(), nil)
	s.Require().NoError(err)
	ids := lo.Map(resp.Items, func(n *dto.NumberResponse, _ int) string { return n.ID })
	s.ElementsMatch([]string{free.ID, expiring.ID}, ids)
	s.Equal(2, resp.Pagination.Total)

	// an expired hold is shown as available
	for _, n := range resp.Items {
		s.Equal(types.NumberStatusAvailable, n.Status)
	}
}

func (s *InventoryServiceSuite) TestGetNumber() {
	n := s.SeedNumber("+15550000309", 500, 1000)

	resp, err := s.inventory.GetNumber(s.GetContext(), n.ID)
	s.Require().NoError(err)
	s.Equal("+15550000309", resp.MobileNumber)
	s.Equal(int64(500), resp.ConnectionFee)
	s.Equal(types.NumberStatusAvailable, resp.Status)

	_, err = s.inventory.GetNumber(s.GetContext(), "num_missing")
	s.True(ierr.IsNotFound(err))

	_, err = s.inventory.GetNumber(s.GetContext(), "")
	s.True(ierr.IsValidation(err))
}

func (s *InventoryServiceSuite) TestListMyNumbers() {
	held := s.SeedNumber("+15550000310", 0, 100)
	expired := s.SeedNumber("+15550000311", 0, 100)
	sold := s.SeedNumber("+15550000312", 0, 100)
	other := s.SeedNumber("+15550000313", 0, 100)

	_, err := s.holds.Reserve(s.GetContext(), held.ID, "usr_u", time.Hour)
	s.Require().NoError(err)
	_, err = s.holds.Reserve(s.GetContext(), expired.ID, "usr_u", time.Minute)
	s.Require().NoError(err)
	_, err = s.purchases.Confirm(s.GetContext(), sold.ID, "usr_u")
	s.Require().NoError(err)
	_, err = s.holds.Reserve(s.GetContext(), other.ID, "usr_v", time.Hour)
	s.Require().NoError(err)

	s.GetClock().Advance(2 * time.Minute)

	resp, err := s.inventory.ListMyNumbers(s.GetContext(), "usr_u")
	s.Require().NoError(err)
	s.Require().Len(resp.Holds, 1)
	s.Equal(held.ID, resp.Holds[0].ID)
	s.Require().Len(resp.Assignments, 1)
	s.Equal(sold.ID, resp.Assignments[0].ID)
}

func (s *InventoryServiceSuite) TestListNumbersByStatus() {
	s.SeedNumber("+15550000314", 0, 100)
	held := s.SeedNumber("+15550000315", 0, 100)
	_, err := s.holds.Reserve(s.GetContext(), held.ID, "usr_u", 0)
	s.Require().NoError(err)

	filter := types.NewNumberFilter()
	filter.Status = types.NumberStatusHeld
	resp, err := s.inventory.ListNumbers(s.GetContext(), filter)
	s.Require().NoError(err)
	s.Require().Len(resp.Items, 1)
	s.Equal("usr_u", lo.FromPtr(resp.Items[0].OwnerID))

	filter = types.NewNumberFilter()
	filter.Status = "sold"
	_, err = s.inventory.ListNumbers(s.GetContext(), filter)
	s.True(ierr.IsValidation(err))
}
