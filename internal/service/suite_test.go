package service

import (
	"github.com/numbrly/portal/internal/testutil"
)

// servicesTestSuite wires every portal service over the in-memory stores
type servicesTestSuite struct {
	testutil.BaseServiceTestSuite

	params    ServiceParams
	inventory InventoryService
	holds     HoldService
	balances  BalanceService
	purchases PurchaseService
	reaper    ReaperService
	refunds   RefundService
}

func (s *servicesTestSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()

	stores := s.GetStores()
	s.params = NewServiceParams(
		s.GetLogger(),
		s.GetConfig(),
		s.GetDB(),
		stores.NumberRepo,
		stores.BalanceRepo,
		s.GetPublisher(),
		s.GetSentry(),
		s.GetMetrics(),
		s.GetCache(),
		s.GetClock(),
	)

	s.inventory = NewInventoryService(s.params)
	s.holds = NewHoldService(s.params)
	s.balances = NewBalanceService(s.params)
	s.purchases = NewPurchaseService(s.params, s.balances)
	s.reaper = NewReaperService(s.params, s.holds)
	s.refunds = NewRefundService(s.params, s.balances)
}
