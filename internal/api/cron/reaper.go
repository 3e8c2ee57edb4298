package cron

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/numbrly/portal/internal/logger"
	"github.com/numbrly/portal/internal/service"
)

type ReaperCronHandler struct {
	reaperService service.ReaperService
	logger        *logger.Logger
}

func NewReaperCronHandler(reaperService service.ReaperService, logger *logger.Logger) *ReaperCronHandler {
	return &ReaperCronHandler{
		reaperService: reaperService,
		logger:        logger,
	}
}

// ExpireHolds runs one sweep for external schedulers that prefer to drive the reaper
func (h *ReaperCronHandler) ExpireHolds(c *gin.Context) {
	h.logger.Infow("starting hold expiry cron job")

	resp, err := h.reaperService.Sweep(c.Request.Context())
	if err != nil {
		h.logger.Errorw("hold expiry sweep failed", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
