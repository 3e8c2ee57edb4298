package repository

import (
	"github.com/numbrly/portal/internal/config"
	"github.com/numbrly/portal/internal/domain/balance"
	"github.com/numbrly/portal/internal/domain/number"
	"github.com/numbrly/portal/internal/logger"
	"github.com/numbrly/portal/internal/postgres"
	"github.com/numbrly/portal/internal/repository/memory"
	postgresRepo "github.com/numbrly/portal/internal/repository/postgres"
	sentryService "github.com/numbrly/portal/internal/sentry"
	"github.com/numbrly/portal/internal/types"
)

func NewNumberRepository(cfg *config.Configuration, db *postgres.DB, logger *logger.Logger) number.Repository {
	if cfg.Storage.Driver == types.StorageDriverPostgres {
		return postgresRepo.NewNumberRepository(db, logger)
	}
	return memory.NewNumberStore()
}

func NewBalanceRepository(cfg *config.Configuration, db *postgres.DB, logger *logger.Logger) balance.Repository {
	if cfg.Storage.Driver == types.StorageDriverPostgres {
		return postgresRepo.NewBalanceRepository(db, logger)
	}
	return memory.NewBalanceStore()
}

// NewTxClient returns the transaction boundary for the configured storage driver
func NewTxClient(cfg *config.Configuration, db *postgres.DB, sentry *sentryService.Service, logger *logger.Logger) postgres.IClient {
	if cfg.Storage.Driver == types.StorageDriverPostgres {
		return postgres.NewSentryClient(db, sentry, logger)
	}
	return memory.NewTxRunner(logger)
}
