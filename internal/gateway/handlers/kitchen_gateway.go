package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"resto-pos/internal/database/models"
	"resto-pos/internal/services/kitchen"
)

// KitchenBoard serves the polled kitchen screen.
type KitchenBoard interface {
	Active(ctx context.Context) ([]kitchen.Ticket, error)
	History(ctx context.Context) ([]kitchen.Ticket, error)
}

// KitchenWorkflow moves orders along the kitchen status chain.
type KitchenWorkflow interface {
	AdvanceOrder(ctx context.Context, orderID int64, actorID int64) (*models.Order, error)
	UndoOrder(ctx context.Context, orderID int64, actorID int64) (*models.Order, error)
	DismissOrder(ctx context.Context, orderID int64, actorID int64) (*models.Order, error)
}

type KitchenHTTPHandler struct {
	board    KitchenBoard
	workflow KitchenWorkflow
}

func NewKitchenHTTPHandler(board KitchenBoard, workflow KitchenWorkflow) *KitchenHTTPHandler {
	return &KitchenHTTPHandler{
		board:    board,
		workflow: workflow,
	}
}

func (h *KitchenHTTPHandler) ActiveOrders(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	tickets, err := h.board.Active(ctx)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, successWithMetaResponse("Kitchen orders retrieved successfully", tickets, gin.H{"count": len(tickets)}))
}

func (h *KitchenHTTPHandler) History(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	tickets, err := h.board.History(ctx)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, successWithMetaResponse("Kitchen history retrieved successfully", tickets, gin.H{"count": len(tickets)}))
}

// UpdateStatus advances the order one step, or steps it back with ?undo=true.
func (h *KitchenHTTPHandler) UpdateStatus(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	undo, _ := strconv.ParseBool(c.DefaultQuery("undo", "false"))

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	var (
		order *models.Order
		err   error
	)
	if undo {
		order, err = h.workflow.UndoOrder(ctx, id, actorID(c))
	} else {
		order, err = h.workflow.AdvanceOrder(ctx, id, actorID(c))
	}
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Order status updated", gin.H{
		"order":  order,
		"status": kitchen.DisplayStatus(order.Status),
	}))
}

func (h *KitchenHTTPHandler) Dismiss(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	order, err := h.workflow.DismissOrder(ctx, id, actorID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Order dismissed from the board", order))
}
