package internal

import (
	"context"
	"time"

	"github.com/numbrly/portal/internal/config"
	"github.com/numbrly/portal/internal/domain/balance"
	"github.com/numbrly/portal/internal/domain/number"
	"github.com/numbrly/portal/internal/logger"
	"github.com/numbrly/portal/internal/postgres"
	"github.com/numbrly/portal/internal/repository"
	"github.com/numbrly/portal/internal/sentry"
	"github.com/numbrly/portal/internal/types"
)

// env bundles the stores a script writes to
type env struct {
	cfg         *config.Configuration
	log         *logger.Logger
	db          *postgres.DB
	tx          postgres.IClient
	numberRepo  number.Repository
	balanceRepo balance.Repository
}

func newEnv() (*env, error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, err
	}
	log, err := logger.NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	// scripts only make sense against a persistent store
	cfg.Storage.Driver = types.StorageDriverPostgres
	db, err := postgres.NewDB(cfg, log)
	if err != nil {
		return nil, err
	}

	sentryService := sentry.NewSentryService(cfg, log)
	return &env{
		cfg:         cfg,
		log:         log,
		db:          db,
		tx:          repository.NewTxClient(cfg, db, sentryService, log),
		numberRepo:  repository.NewNumberRepository(cfg, db, log),
		balanceRepo: repository.NewBalanceRepository(cfg, db, log),
	}, nil
}

func (e *env) close() {
	e.db.Close()
}

func scriptContext() (context.Context, context.CancelFunc) {
	ctx := types.SetUserID(context.Background(), types.DefaultUserID)
	ctx = types.SetRequestID(ctx, types.GenerateUUIDWithPrefix(types.UUID_PREFIX_REQUEST))
	return context.WithTimeout(ctx, 5*time.Minute)
}
