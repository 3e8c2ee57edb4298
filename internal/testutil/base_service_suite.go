package testutil

import (
	"context"
	"time"

	"github.com/numbrly/portal/internal/cache"
	"github.com/numbrly/portal/internal/clock"
	"github.com/numbrly/portal/internal/config"
	"github.com/numbrly/portal/internal/domain/balance"
	"github.com/numbrly/portal/internal/domain/number"
	"github.com/numbrly/portal/internal/logger"
	"github.com/numbrly/portal/internal/metrics"
	"github.com/numbrly/portal/internal/postgres"
	"github.com/numbrly/portal/internal/publisher"
	"github.com/numbrly/portal/internal/repository/memory"
	"github.com/numbrly/portal/internal/sentry"
	"github.com/numbrly/portal/internal/types"
	"github.com/numbrly/portal/internal/validator"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

// Stores holds all the repository interfaces for testing
type Stores struct {
	NumberRepo  *FaultyNumberStore
	BalanceRepo *FaultyBalanceStore
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx       context.Context
	stores    Stores
	pubSub    *InMemoryPubSub
	publisher publisher.Publisher
	db        postgres.IClient
	logger    *logger.Logger
	config    *config.Configuration
	clock     *clock.Manual
	metrics   *metrics.Metrics
	cache     cache.Cache
	sentry    *sentry.Service
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	validator.NewValidator()
	s.logger = logger.NewNoopLogger()
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.config = config.GetDefaultConfig()
	// keep refund retries short so failure paths finish quickly
	s.config.Refund.InitialInterval = time.Millisecond
	s.config.Refund.MaxInterval = 5 * time.Millisecond
	s.config.Refund.MaxElapsedTime = 30 * time.Millisecond

	s.ctx = SetupContext()
	s.clock = clock.NewManual(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	s.stores = Stores{
		NumberRepo:  NewFaultyNumberStore(memory.NewNumberStore()),
		BalanceRepo: NewFaultyBalanceStore(memory.NewBalanceStore()),
	}
	s.db = memory.NewTxRunner(s.logger)
	s.metrics = metrics.New()
	s.cache = cache.NewInMemoryCache()
	s.sentry = sentry.NewSentryService(s.config, s.logger)
	s.pubSub = NewInMemoryPubSub()
	s.publisher = publisher.NewPublisher(s.config, s.pubSub, s.logger, s.metrics)
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	_ = s.pubSub.Close()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetContextForUser returns the test context acting as userID
func (s *BaseServiceTestSuite) GetContextForUser(userID string) context.Context {
	return types.SetUserID(s.ctx, userID)
}

func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

func (s *BaseServiceTestSuite) GetPubSub() *InMemoryPubSub {
	return s.pubSub
}

func (s *BaseServiceTestSuite) GetPublisher() publisher.Publisher {
	return s.publisher
}

func (s *BaseServiceTestSuite) GetDB() postgres.IClient {
	return s.db
}

func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

func (s *BaseServiceTestSuite) GetClock() *clock.Manual {
	return s.clock
}

func (s *BaseServiceTestSuite) GetMetrics() *metrics.Metrics {
	return s.metrics
}

func (s *BaseServiceTestSuite) GetCache() cache.Cache {
	return s.cache
}

func (s *BaseServiceTestSuite) GetSentry() *sentry.Service {
	return s.sentry
}

// GetNow returns the current test time
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.clock.Now()
}

// LifecycleEventNames lists the lifecycle events published so far
func (s *BaseServiceTestSuite) LifecycleEventNames() []string {
	return s.pubSub.EventNames(s.config.PubSub.EventsTopic)
}

// SeedNumber adds an available mobile number with the given fees
func (s *BaseServiceTestSuite) SeedNumber(mobile string, connectionFee, monthlyFee int64) *number.PhoneNumber {
	now := s.clock.Now()
	n := &number.PhoneNumber{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_NUMBER),
		MobileNumber:  mobile,
		Category:      types.NumberCategorySimple,
		ConnectionFee: connectionFee,
		MonthlyFee:    monthlyFee,
		Status:        types.NumberStatusAvailable,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.Require().NoError(s.stores.NumberRepo.Create(s.ctx, n))
	return n
}

// SeedBalance credits amount to userID as a top-up
func (s *BaseServiceTestSuite) SeedBalance(userID string, amount int64) {
	_, err := s.stores.BalanceRepo.Credit(s.ctx, &balance.Operation{
		UserID: userID,
		Amount: amount,
		Reason: types.TransactionReasonTopUp,
	})
	s.Require().NoError(err)
}

// BalanceOf returns the stored balance, zero when the user has none
func (s *BaseServiceTestSuite) BalanceOf(userID string) int64 {
	b, err := s.stores.BalanceRepo.Get(s.ctx, userID)
	if err != nil {
		return 0
	}
	return b.Balance
}

// MustGetNumber reads a number straight from the store and checks its invariant
func (s *BaseServiceTestSuite) MustGetNumber(id string) *number.PhoneNumber {
	n, err := s.stores.NumberRepo.Get(s.ctx, id)
	s.Require().NoError(err)
	s.Require().NoError(n.CheckInvariant())
	return n
}

// Owner is a shorthand for the owner pointer of a number
func Owner(n *number.PhoneNumber) string {
	return lo.FromPtr(n.OwnerID)
}
