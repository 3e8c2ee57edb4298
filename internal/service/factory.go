package service

import (
	"github.com/numbrly/portal/internal/cache"
	"github.com/numbrly/portal/internal/clock"
	"github.com/numbrly/portal/internal/config"
	"github.com/numbrly/portal/internal/domain/balance"
	"github.com/numbrly/portal/internal/domain/number"
	"github.com/numbrly/portal/internal/idempotency"
	"github.com/numbrly/portal/internal/logger"
	"github.com/numbrly/portal/internal/metrics"
	"github.com/numbrly/portal/internal/postgres"
	"github.com/numbrly/portal/internal/publisher"
	"github.com/numbrly/portal/internal/sentry"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient

	// Repositories
	NumberRepo  number.Repository
	BalanceRepo balance.Repository

	Publisher publisher.Publisher
	Sentry    *sentry.Service
	Metrics   *metrics.Metrics
	Cache     cache.Cache
	Clock     clock.Clock
	IdempGen  *idempotency.Generator
}

// NewServiceParams is the fx constructor for ServiceParams
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	numberRepo number.Repository,
	balanceRepo balance.Repository,
	publisher publisher.Publisher,
	sentry *sentry.Service,
	metrics *metrics.Metrics,
	cache cache.Cache,
	clock clock.Clock,
) ServiceParams {
	return ServiceParams{
		Logger:      logger,
		Config:      config,
		DB:          db,
		NumberRepo:  numberRepo,
		BalanceRepo: balanceRepo,
		Publisher:   publisher,
		Sentry:      sentry,
		Metrics:     metrics,
		Cache:       cache,
		Clock:       clock,
		IdempGen:    idempotency.NewGenerator(),
	}
}
