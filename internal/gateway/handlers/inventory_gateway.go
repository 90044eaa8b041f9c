package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"resto-pos/internal/database/models"
	invhandler "resto-pos/internal/services/inventory/handler"
)

type InventoryService interface {
	ReportWastage(ctx context.Context, req invhandler.WastageRequest, actorID int64) (*models.InventoryWastage, error)
	ListWastage(ctx context.Context, page int) (*invhandler.WastagePage, error)
	ListLowStock(ctx context.Context) ([]models.InventoryItem, error)
}

type InventoryHTTPHandler struct {
	inventory InventoryService
}

func NewInventoryHTTPHandler(inventory InventoryService) *InventoryHTTPHandler {
	return &InventoryHTTPHandler{
		inventory: inventory,
	}
}

type ReportWastageRequest struct {
	InventoryItemID int64           `json:"inventory_item_id" binding:"required"`
	Quantity        decimal.Decimal `json:"quantity"`
	Reason          string          `json:"reason" binding:"required,oneof=Expired Damaged Spilled Other"`
	Notes           *string         `json:"notes,omitempty"`
}

func (h *InventoryHTTPHandler) ReportWastage(c *gin.Context) {
	var req ReportWastageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, validationResponse(bindingError(err)))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	wastage, err := h.inventory.ReportWastage(ctx, invhandler.WastageRequest{
		InventoryItemID: req.InventoryItemID,
		Quantity:        req.Quantity,
		Reason:          models.WastageReason(req.Reason),
		Notes:           req.Notes,
	}, actorID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse("Wastage recorded successfully", wastage))
}

func (h *InventoryHTTPHandler) ListWastage(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	result, err := h.inventory.ListWastage(ctx, page)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, successWithMetaResponse("Wastage log retrieved successfully", result.Items, gin.H{
		"page":      result.Page,
		"page_size": result.PageSize,
		"total":     result.Total,
		"next_page": result.NextPage,
	}))
}

func (h *InventoryHTTPHandler) ListLowStock(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	items, err := h.inventory.ListLowStock(ctx)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, successWithMetaResponse("Low stock items retrieved successfully", items, gin.H{"count": len(items)}))
}
