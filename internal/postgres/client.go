package postgres

import (
	"context"

	"github.com/numbrly/portal/internal/config"
	"github.com/numbrly/portal/internal/logger"
	"github.com/numbrly/portal/internal/types"
	"go.uber.org/fx"
)

// IClient is the transaction boundary services depend on. The memory storage
// driver supplies its own implementation.
type IClient interface {
	// WithTx wraps the given function in a transaction
	WithTx(ctx context.Context, fn func(context.Context) error) error
}

// Module provides the postgres connection pool when the postgres storage driver is selected
func Module() fx.Option {
	return fx.Options(
		fx.Provide(NewOptionalDB),
	)
}

// NewOptionalDB returns nil for the memory storage driver so that nothing dials postgres
func NewOptionalDB(lc fx.Lifecycle, cfg *config.Configuration, log *logger.Logger) (*DB, error) {
	if cfg.Storage.Driver != types.StorageDriverPostgres {
		return nil, nil
	}

	db, err := NewDB(cfg, log)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			db.Close()
			return nil
		},
	})
	return db, nil
}
