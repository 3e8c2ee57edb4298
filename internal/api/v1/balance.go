package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/numbrly/portal/internal/api/dto"
	"github.com/numbrly/portal/internal/logger"
	"github.com/numbrly/portal/internal/service"
	"github.com/numbrly/portal/internal/types"
)

type BalanceHandler struct {
	balanceService service.BalanceService
	logger         *logger.Logger
}

func NewBalanceHandler(balanceService service.BalanceService, logger *logger.Logger) *BalanceHandler {
	return &BalanceHandler{
		balanceService: balanceService,
		logger:         logger,
	}
}

func (h *BalanceHandler) GetBalance(c *gin.Context) {
	ctx := c.Request.Context()
	resp, err := h.balanceService.GetBalance(ctx, types.GetUserID(ctx))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// TopUp godoc
// @Summary Top up the caller's balance
// @Description Credits an already settled payment. Repeating a request with the same Idempotency-Key returns the first result.
// @Tags Balance
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Idempotency key"
// @Param request body dto.TopUpRequest true "Amount in minor units"
// @Success 200 {object} dto.TopUpResponse
// @Router /balance/topup [post]
func (h *BalanceHandler) TopUp(c *gin.Context) {
	var req dto.TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(invalidRequest(err, "Please check the request payload"))
		return
	}

	ctx := c.Request.Context()
	resp, err := h.balanceService.TopUp(ctx, types.GetUserID(ctx), &req, c.GetHeader(types.HeaderIdempotencyKey))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *BalanceHandler) ListTransactions(c *gin.Context) {
	filter := types.NewTransactionFilter()
	if err := c.ShouldBindQuery(filter); err != nil {
		c.Error(invalidRequest(err, "Invalid filter parameters"))
		return
	}

	ctx := c.Request.Context()
	resp, err := h.balanceService.ListTransactions(ctx, types.GetUserID(ctx), filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
