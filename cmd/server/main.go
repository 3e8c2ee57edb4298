package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/numbrly/portal/internal/api"
	"github.com/numbrly/portal/internal/api/cron"
	v1 "github.com/numbrly/portal/internal/api/v1"
	"github.com/numbrly/portal/internal/cache"
	"github.com/numbrly/portal/internal/clock"
	"github.com/numbrly/portal/internal/config"
	"github.com/numbrly/portal/internal/logger"
	"github.com/numbrly/portal/internal/metrics"
	"github.com/numbrly/portal/internal/notification"
	"github.com/numbrly/portal/internal/postgres"
	"github.com/numbrly/portal/internal/publisher"
	"github.com/numbrly/portal/internal/pubsub"
	"github.com/numbrly/portal/internal/pubsub/kafka"
	"github.com/numbrly/portal/internal/pubsub/memory"
	pubsubRouter "github.com/numbrly/portal/internal/pubsub/router"
	"github.com/numbrly/portal/internal/reaper"
	"github.com/numbrly/portal/internal/redis"
	"github.com/numbrly/portal/internal/repository"
	"github.com/numbrly/portal/internal/sentry"
	"github.com/numbrly/portal/internal/service"
	"github.com/numbrly/portal/internal/types"
	"github.com/numbrly/portal/internal/validator"
	"github.com/numbrly/portal/migrations"
	"go.uber.org/fx"
)

// @title Numbrly Portal API
// @version 1.0
// @description Phone number inventory, holds, purchases and balances
// @BasePath /v1
// @schemes http https

func init() {
	time.Local = time.UTC
}

func main() {
	var opts []fx.Option

	// Core dependencies
	opts = append(opts,
		fx.Provide(
			validator.NewValidator,
			config.NewConfig,
			logger.NewLogger,

			// Monitoring
			sentry.NewSentryService,
			metrics.New,

			// Storage
			postgres.NewOptionalDB,
			repository.NewNumberRepository,
			repository.NewBalanceRepository,
			repository.NewTxClient,

			// Cache
			redis.New,
			cache.NewCache,

			// Messaging
			providePubSub,
			publisher.NewPublisher,
			pubsubRouter.NewRouter,

			// Notifications
			notification.NewWebhookClient,
			notification.NewNotifier,

			clock.NewSystem,
		),
	)

	// Service layer
	opts = append(opts,
		fx.Provide(
			service.NewServiceParams,
			service.NewInventoryService,
			service.NewHoldService,
			service.NewBalanceService,
			service.NewPurchaseService,
			service.NewReaperService,
			service.NewRefundService,
			reaper.NewRunner,
		),
	)

	// API
	opts = append(opts,
		fx.Provide(
			provideHandlers,
			provideRouter,
		),
		fx.Invoke(
			sentry.RegisterHooks,
			runMigrations,
			startServer,
		),
	)

	app := fx.New(opts...)
	app.Run()
}

func providePubSub(lc fx.Lifecycle, cfg *config.Configuration, log *logger.Logger) (pubsub.PubSub, error) {
	var (
		ps  pubsub.PubSub
		err error
	)
	switch cfg.PubSub.Type {
	case types.KafkaPubSub:
		ps, err = kafka.NewPubSub(cfg, log)
		if err != nil {
			return nil, err
		}
	default:
		ps = memory.NewPubSub(log)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return ps.Close()
		},
	})
	return ps, nil
}

func provideHandlers(
	cfg *config.Configuration,
	logger *logger.Logger,
	db *postgres.DB,
	redisClient *redis.Client,
	inventoryService service.InventoryService,
	holdService service.HoldService,
	purchaseService service.PurchaseService,
	balanceService service.BalanceService,
	reaperService service.ReaperService,
) api.Handlers {
	checks := map[string]v1.Pinger{}
	if db != nil {
		checks["postgres"] = db
	}
	if redisClient != nil {
		checks["redis"] = redisClient
	}

	return api.Handlers{
		Health:     v1.NewHealthHandler(logger, checks),
		Number:     v1.NewNumberHandler(inventoryService, holdService, purchaseService, logger),
		Balance:    v1.NewBalanceHandler(balanceService, logger),
		Admin:      v1.NewAdminHandler(inventoryService, logger),
		CronReaper: cron.NewReaperCronHandler(reaperService, logger),
	}
}

func provideRouter(handlers api.Handlers, cfg *config.Configuration, logger *logger.Logger, m *metrics.Metrics) *gin.Engine {
	return api.NewRouter(handlers, cfg, logger, m)
}

// runMigrations applies pending schema files before anything serves traffic
func runMigrations(lc fx.Lifecycle, cfg *config.Configuration, db *postgres.DB, log *logger.Logger) {
	if db == nil || !cfg.Postgres.AutoMigrate {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return migrations.Apply(ctx, db.DB, log)
		},
	})
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	router *pubsubRouter.Router,
	ps pubsub.PubSub,
	notifier *notification.Notifier,
	refundService service.RefundService,
	runner *reaper.Runner,
	log *logger.Logger,
) {
	mode := cfg.Deployment.Mode
	if mode == "" {
		mode = types.ModeLocal
	}

	switch mode {
	case types.ModeLocal:
		startAPIServer(lc, r, cfg, log)
		startMessageRouter(lc, cfg, router, ps, notifier, refundService, log)
		if cfg.Reaper.Enabled {
			runner.RegisterWithLifecycle(lc)
		}
	case types.ModeAPI:
		startAPIServer(lc, r, cfg, log)
		startMessageRouter(lc, cfg, router, ps, notifier, refundService, log)
	case types.ModeReaper:
		runner.RegisterWithLifecycle(lc)
	default:
		log.Fatalf("Unknown deployment mode: %s", mode)
	}
}

func startAPIServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("Registering API server start hook")
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("Starting API server...", "address", cfg.Server.Address)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			return srv.Shutdown(ctx)
		},
	})
}

func startMessageRouter(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	router *pubsubRouter.Router,
	ps pubsub.PubSub,
	notifier *notification.Notifier,
	refundService service.RefundService,
	logger *logger.Logger,
) {
	// Register handlers before starting the router
	notifier.Register(router, ps, cfg.PubSub.EventsTopic)
	router.AddNoPublishHandler("refund_pending", cfg.Refund.Topic, ps, refundService.HandleRefundPending)

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := router.Run(ctx); err != nil {
					logger.Errorw("message router failed", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			logger.Info("stopping message router")
			cancel()
			return router.Close()
		},
	})
}
