package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/numbrly/portal/internal/api/dto"
	"github.com/numbrly/portal/internal/logger"
	"github.com/numbrly/portal/internal/service"
	"github.com/numbrly/portal/internal/types"
)

// AdminHandler manages the number inventory
type AdminHandler struct {
	inventoryService service.InventoryService
	logger           *logger.Logger
}

func NewAdminHandler(inventoryService service.InventoryService, logger *logger.Logger) *AdminHandler {
	return &AdminHandler{
		inventoryService: inventoryService,
		logger:           logger,
	}
}

// CreateNumbers godoc
// @Summary Add numbers to the inventory
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body dto.CreateNumbersRequest true "Numbers"
// @Success 201 {array} dto.AdminNumberResponse
// @Router /admin/numbers [post]
func (h *AdminHandler) CreateNumbers(c *gin.Context) {
	var req dto.CreateNumbersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(invalidRequest(err, "Please check the request payload"))
		return
	}

	resp, err := h.inventoryService.CreateNumbers(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// ListNumbers godoc
// @Summary List every number with its owner
// @Tags Admin
// @Produce json
// @Param status query string false "available, held or assigned"
// @Success 200 {object} dto.ListAdminNumbersResponse
// @Router /admin/numbers [get]
func (h *AdminHandler) ListNumbers(c *gin.Context) {
	filter := types.NewNumberFilter()
	if err := c.ShouldBindQuery(filter); err != nil {
		c.Error(invalidRequest(err, "Invalid filter parameters"))
		return
	}

	resp, err := h.inventoryService.ListNumbers(c.Request.Context(), filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
