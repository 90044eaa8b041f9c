package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"resto-pos/internal/database/models"
	poshandler "resto-pos/internal/services/pos/handler"
)

const requestTimeout = 10 * time.Second

// OrderService is the order and table side of the POS core.
type OrderService interface {
	SubmitOrder(ctx context.Context, req poshandler.CartSubmission, actorID int64) (*models.Order, error)
	CancelOrder(ctx context.Context, orderID int64, actorID int64) (*models.Order, error)
	GetOrder(ctx context.Context, orderID int64) (*models.Order, error)
	ListHeldOrders(ctx context.Context) ([]models.Order, error)
	ListTables(ctx context.Context) ([]models.DiningTable, error)
	SettleTable(ctx context.Context, req poshandler.SettleRequest, actorID int64) (*models.Order, error)
	MoveOrder(ctx context.Context, req poshandler.MoveRequest, actorID int64) (*poshandler.MoveResult, error)
}

type POSHTTPHandler struct {
	orders OrderService
}

func NewPOSHTTPHandler(orders OrderService) *POSHTTPHandler {
	return &POSHTTPHandler{
		orders: orders,
	}
}

// ProductRef accepts a plain id or the "<id>-<suffix>" keys carts use to
// keep duplicate lines apart.
type ProductRef int64

func (p *ProductRef) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if head, _, found := strings.Cut(raw, "-"); found {
		raw = head
	}
	if raw == "" || raw == "null" {
		*p = 0
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("product_id: %w", err)
	}
	*p = ProductRef(id)
	return nil
}

func (p ProductRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(int64(p))
}

// Request structs
type CartLineRequest struct {
	ProductID           ProductRef               `json:"product_id" binding:"required"`
	Quantity            int32                    `json:"quantity" binding:"required,min=1"`
	Modifiers           models.ModifierSelection `json:"modifiers"`
	SpecialInstructions *string                  `json:"special_instructions,omitempty"`
}

type SubmitOrderRequest struct {
	Items         []CartLineRequest    `json:"items" binding:"required,min=1,dive"`
	PaymentMethod string               `json:"payment_method" binding:"required"`
	DiningTableID *int64               `json:"dining_table_id,omitempty"`
	OrderID       *int64               `json:"order_id,omitempty"`
	Discount      *decimal.Decimal     `json:"discount,omitempty"`
	DiscountType  *models.DiscountType `json:"discount_type,omitempty" binding:"omitempty,oneof=percentage fixed"`
}

func (r SubmitOrderRequest) toCart() poshandler.CartSubmission {
	lines := make([]poshandler.CartLine, len(r.Items))
	for i, item := range r.Items {
		lines[i] = poshandler.CartLine{
			ProductID:           int64(item.ProductID),
			Quantity:            item.Quantity,
			Modifiers:           item.Modifiers,
			SpecialInstructions: item.SpecialInstructions,
		}
	}
	return poshandler.CartSubmission{
		Items:         lines,
		PaymentMethod: r.PaymentMethod,
		DiningTableID: r.DiningTableID,
		OrderID:       r.OrderID,
		Discount:      r.Discount,
		DiscountType:  r.DiscountType,
	}
}

type SettleTableRequest struct {
	PaymentMethod string               `json:"payment_method"`
	Discount      *decimal.Decimal     `json:"discount,omitempty"`
	DiscountType  *models.DiscountType `json:"discount_type,omitempty" binding:"omitempty,oneof=percentage fixed"`
}

type MoveOrderRequest struct {
	TargetTableID int64 `json:"target_table_id" binding:"required"`
}

// --- Order Handlers ---

func (h *POSHTTPHandler) SubmitOrder(c *gin.Context) {
	var req SubmitOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, validationResponse(bindingError(err)))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	order, err := h.orders.SubmitOrder(ctx, req.toCart(), actorID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse("Order processed successfully", order))
}

func (h *POSHTTPHandler) GetOrder(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	order, err := h.orders.GetOrder(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Order retrieved successfully", order))
}

func (h *POSHTTPHandler) ListHeldOrders(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	orders, err := h.orders.ListHeldOrders(ctx)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, successWithMetaResponse("Held orders retrieved successfully", orders, gin.H{"count": len(orders)}))
}

func (h *POSHTTPHandler) CancelOrder(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	order, err := h.orders.CancelOrder(ctx, id, actorID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Order cancelled successfully", order))
}

// --- Table Handlers ---

func (h *POSHTTPHandler) ListTables(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	tables, err := h.orders.ListTables(ctx)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse("Tables retrieved successfully", tables))
}

func (h *POSHTTPHandler) SettleTable(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req SettleTableRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, validationResponse(bindingError(err)))
			return
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	order, err := h.orders.SettleTable(ctx, poshandler.SettleRequest{
		TableID:       id,
		PaymentMethod: req.PaymentMethod,
		Discount:      req.Discount,
		DiscountType:  req.DiscountType,
	}, actorID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	if order == nil {
		c.JSON(http.StatusOK, successResponse("Table had no open order and was reset", nil))
		return
	}
	c.JSON(http.StatusOK, successResponse("Table settled and cleared", order))
}

func (h *POSHTTPHandler) MoveOrder(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var req MoveOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, validationResponse(bindingError(err)))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	result, err := h.orders.MoveOrder(ctx, poshandler.MoveRequest{
		SourceTableID: id,
		TargetTableID: req.TargetTableID,
	}, actorID(c))
	if err != nil {
		writeError(c, err)
		return
	}

	message := "Table moved successfully"
	switch {
	case result.NoOp:
		message = "Source table had no open order"
	case result.Merged:
		message = "Tables merged successfully"
	}
	c.JSON(http.StatusOK, successResponse(message, result))
}
