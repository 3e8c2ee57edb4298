package api

import (
	"github.com/gin-gonic/gin"
	"github.com/numbrly/portal/internal/api/cron"
	v1 "github.com/numbrly/portal/internal/api/v1"
	"github.com/numbrly/portal/internal/config"
	"github.com/numbrly/portal/internal/logger"
	"github.com/numbrly/portal/internal/metrics"
	"github.com/numbrly/portal/internal/rest/middleware"
)

type Handlers struct {
	Health  *v1.HealthHandler
	Number  *v1.NumberHandler
	Balance *v1.BalanceHandler
	Admin   *v1.AdminHandler

	CronReaper *cron.ReaperCronHandler
}

func NewRouter(handlers Handlers, cfg *config.Configuration, logger *logger.Logger, m *metrics.Metrics) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(
		middleware.RequestIDMiddleware,
		middleware.CORSMiddleware,
		middleware.SentryMiddleware(cfg),
		middleware.SentryTagsMiddleware,
		middleware.LoggingMiddleware(logger),
		middleware.ErrorHandler(logger),
	)

	router.GET("/health", handlers.Health.Health)
	router.HEAD("/health", handlers.Health.Health)
	router.GET("/ready", handlers.Health.Ready)
	router.GET("/metrics", gin.WrapH(m.Handler()))

	v1Public := router.Group("/v1")
	v1Public.GET("/numbers", handlers.Number.ListAvailable)
	v1Public.GET("/numbers/:id", handlers.Number.GetNumber)

	v1Private := router.Group("/v1")
	v1Private.Use(middleware.CallerMiddleware)
	{
		numbers := v1Private.Group("/numbers/:id")
		numbers.Use(middleware.RateLimitMiddleware(cfg))
		{
			numbers.POST("/hold", handlers.Number.Reserve)
			numbers.DELETE("/hold", handlers.Number.CancelHold)
			numbers.POST("/purchase", handlers.Number.Purchase)
			numbers.POST("/release", handlers.Number.Release)
		}

		v1Private.GET("/me/numbers", handlers.Number.ListMyNumbers)

		balance := v1Private.Group("/balance")
		{
			balance.GET("", handlers.Balance.GetBalance)
			balance.POST("/topup", handlers.Balance.TopUp)
			balance.GET("/transactions", handlers.Balance.ListTransactions)
		}
	}

	admin := router.Group("/v1/admin")
	admin.Use(middleware.AdminMiddleware(cfg, logger))
	{
		admin.POST("/numbers", handlers.Admin.CreateNumbers)
		admin.GET("/numbers", handlers.Admin.ListNumbers)
	}

	// cron routes are triggered by schedulers that hold the admin key
	cronGroup := router.Group("/v1/cron")
	cronGroup.Use(middleware.AdminMiddleware(cfg, logger))
	{
		cronGroup.POST("/holds/expire", handlers.CronReaper.ExpireHolds)
	}

	return router
}
