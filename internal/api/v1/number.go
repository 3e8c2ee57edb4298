package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/numbrly/portal/internal/api/dto"
	"github.com/numbrly/portal/internal/logger"
	"github.com/numbrly/portal/internal/service"
	"github.com/numbrly/portal/internal/types"
)

type NumberHandler struct {
	inventoryService service.InventoryService
	holdService      service.HoldService
	purchaseService  service.PurchaseService
	logger           *logger.Logger
}

func NewNumberHandler(
	inventoryService service.InventoryService,
	holdService service.HoldService,
	purchaseService service.PurchaseService,
	logger *logger.Logger,
) *NumberHandler {
	return &NumberHandler{
		inventoryService: inventoryService,
		holdService:      holdService,
		purchaseService:  purchaseService,
		logger:           logger,
	}
}

// ListAvailable godoc
// @Summary List available numbers
// @Description Numbers anyone may reserve. Holds that have expired are included.
// @Tags Numbers
// @Produce json
// @Param kind query string false "mobile or toll_free"
// @Param category query string false "Category"
// @Param limit query int false "Limit"
// @Param offset query int false "Offset"
// @Success 200 {object} dto.ListNumbersResponse
// @Router /numbers [get]
func (h *NumberHandler) ListAvailable(c *gin.Context) {
	filter := types.NewNumberFilter()
	if err := c.ShouldBindQuery(filter); err != nil {
		c.Error(invalidRequest(err, "Invalid filter parameters"))
		return
	}

	resp, err := h.inventoryService.ListAvailable(c.Request.Context(), filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetNumber godoc
// @Summary Get a number
// @Tags Numbers
// @Produce json
// @Param id path string true "Number ID"
// @Success 200 {object} dto.NumberResponse
// @Router /numbers/{id} [get]
func (h *NumberHandler) GetNumber(c *gin.Context) {
	resp, err := h.inventoryService.GetNumber(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Reserve godoc
// @Summary Reserve a number
// @Description Hold a number for the caller until it expires, is cancelled or is purchased
// @Tags Numbers
// @Accept json
// @Produce json
// @Param id path string true "Number ID"
// @Param request body dto.ReserveRequest false "Hold options"
// @Success 201 {object} dto.HoldResponse
// @Router /numbers/{id}/hold [post]
func (h *NumberHandler) Reserve(c *gin.Context) {
	var req dto.ReserveRequest
	// the body is optional
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(invalidRequest(err, "Please check the request payload"))
			return
		}
	}
	if err := req.Validate(); err != nil {
		c.Error(err)
		return
	}

	ctx := c.Request.Context()
	resp, err := h.holdService.Reserve(ctx, c.Param("id"), types.GetUserID(ctx), req.TTL())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// CancelHold godoc
// @Summary Cancel the caller's hold
// @Tags Numbers
// @Produce json
// @Param id path string true "Number ID"
// @Success 200 {object} dto.NumberResponse
// @Router /numbers/{id}/hold [delete]
func (h *NumberHandler) CancelHold(c *gin.Context) {
	ctx := c.Request.Context()
	resp, err := h.holdService.Cancel(ctx, c.Param("id"), types.GetUserID(ctx))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Purchase godoc
// @Summary Buy a number
// @Description Works on the caller's own hold or directly on an available number
// @Tags Numbers
// @Produce json
// @Param id path string true "Number ID"
// @Success 200 {object} dto.PurchaseResponse
// @Router /numbers/{id}/purchase [post]
func (h *NumberHandler) Purchase(c *gin.Context) {
	ctx := c.Request.Context()
	resp, err := h.purchaseService.Confirm(ctx, c.Param("id"), types.GetUserID(ctx))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Release godoc
// @Summary Disconnect a number
// @Description Frees the caller's number and refunds the monthly fee
// @Tags Numbers
// @Produce json
// @Param id path string true "Number ID"
// @Success 200 {object} dto.ReleaseResponse
// @Router /numbers/{id}/release [post]
func (h *NumberHandler) Release(c *gin.Context) {
	ctx := c.Request.Context()
	resp, err := h.purchaseService.Release(ctx, c.Param("id"), types.GetUserID(ctx))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *NumberHandler) ListMyNumbers(c *gin.Context) {
	ctx := c.Request.Context()
	resp, err := h.inventoryService.ListMyNumbers(ctx, types.GetUserID(ctx))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
