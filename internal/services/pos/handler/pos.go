package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"resto-pos/internal/database"
	"resto-pos/internal/database/models"
	"resto-pos/internal/logger"
	invhandler "resto-pos/internal/services/inventory/handler"
	"resto-pos/internal/services/kitchen"
	"resto-pos/internal/services/pos/pricing"
	"resto-pos/internal/utils"
)

const (
	ORDER_NUMBER_PREFIX   = "ORD-"
	ORDER_NUMBER_ATTEMPTS = 3

	actionSubmitOrder  = "submit_order"
	actionCancelOrder  = "cancel_order"
	actionAdvanceOrder = "advance_order"
	actionUndoOrder    = "undo_order"
	actionDismissOrder = "dismiss_order"
)

// -- Handler --
type POSHandler struct {
	db        *gorm.DB
	redis     *redis.Client
	inventory *invhandler.InventoryHandler
	board     *kitchen.Board
	log       *logger.Logger
}

func NewPOSHandler(db *gorm.DB, redisClient *redis.Client, inventory *invhandler.InventoryHandler, board *kitchen.Board, log *logger.Logger) *POSHandler {
	if log == nil {
		log = logger.Discard()
	}
	if inventory == nil {
		inventory = invhandler.NewInventoryHandler(db, redisClient, log)
	}
	return &POSHandler{
		db:        db,
		redis:     redisClient,
		inventory: inventory,
		board:     board,
		log:       log,
	}
}

// newOrderNumber is swapped in tests to force collisions.
var newOrderNumber = generateOrderNumber

func generateOrderNumber() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return ORDER_NUMBER_PREFIX + strings.ToUpper(raw[:8])
}

// SubmitOrder places a new order or appends the cart to an existing one.
// Every line becomes a new order item; nothing already on the order is
// replaced. Stock, order and table writes share one transaction.
func (s *POSHandler) SubmitOrder(ctx context.Context, req CartSubmission, actorID int64) (*models.Order, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var (
		orderID int64
		created bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, table, isNew, err := s.findOrCreateOrder(tx, req, actorID)
		if err != nil {
			return err
		}
		orderID, created = order.ID, isNew

		appended := 0
		for _, line := range req.Items {
			ok, err := s.appendLine(ctx, tx, order, line)
			if err != nil {
				return err
			}
			if ok {
				appended++
			}
		}

		if err := s.recomputeTotal(tx, order); err != nil {
			return err
		}
		if appended > 0 {
			if next := kitchen.RegressOnAppend(order.Status); next != order.Status {
				if err := updateOrder(tx, order.ID, map[string]interface{}{"status": next}); err != nil {
					return err
				}
				order.Status = next
			}
		}

		if table != nil {
			return s.bindTable(tx, table, order)
		}
		return nil
	})
	if err != nil {
		s.log.Error(ctx, actionSubmitOrder, "order submission rolled back", err)
		return nil, utils.WrapTxError(actionSubmitOrder, err)
	}

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	eventType := EventOrderUpdated
	if created {
		eventType = EventOrderCreated
	}
	s.afterCommit(ctx, newOrderEvent(eventType, order, actorID), true)
	s.log.Info(ctx, actionSubmitOrder, "order processed",
		slog.Int64("order_id", order.ID),
		slog.String("order_number", order.OrderNumber),
		slog.Bool("created", created),
		slog.String("total_amount", order.TotalAmount.StringFixed(2)))
	return order, nil
}

// appendLine deducts stock for one cart line and stores it as an order item.
// A product that no longer exists is skipped.
func (s *POSHandler) appendLine(ctx context.Context, tx *gorm.DB, order *models.Order, line CartLine) (bool, error) {
	var product models.Product
	if err := tx.Preload("Ingredients.InventoryItem").First(&product, line.ProductID).Error; err != nil {
		if database.IsNotFound(err) {
			s.log.Warn(ctx, actionSubmitOrder, "skipping cart line for missing product",
				slog.Int64("product_id", line.ProductID))
			return false, nil
		}
		return false, err
	}

	switch product.Type {
	case models.ProductRetail:
		if err := s.inventory.DecrementRetail(ctx, tx, product.ID, line.Quantity); err != nil {
			return false, err
		}
	case models.ProductKitchen:
		linked, err := s.inventory.LinkedItems(tx, product.Modifiers.LinkedInventoryIDs())
		if err != nil {
			return false, err
		}
		deductions := invhandler.ResolveRecipe(product, line.Modifiers, line.Quantity, linked)
		if err := s.inventory.ApplyDeductions(ctx, tx, deductions); err != nil {
			return false, err
		}
	}

	productID := product.ID
	item := models.OrderItem{
		OrderID:             order.ID,
		ProductID:           &productID,
		ProductName:         product.Name,
		Quantity:            line.Quantity,
		UnitPrice:           pricing.Round(pricing.UnitPrice(product, line.Modifiers)),
		Modifiers:           line.Modifiers,
		SpecialInstructions: line.SpecialInstructions,
	}
	if err := tx.Create(&item).Error; err != nil {
		return false, fmt.Errorf("failed to create order item: %w", err)
	}
	return true, nil
}

// recomputeTotal rebuilds total_amount from the items stored on the order.
func (s *POSHandler) recomputeTotal(tx *gorm.DB, order *models.Order) error {
	var items []models.OrderItem
	if err := tx.Where("order_id = ?", order.ID).Find(&items).Error; err != nil {
		return err
	}
	total := pricing.Round(pricing.OrderTotal(items, order.Discount, order.DiscountType))
	if err := updateOrder(tx, order.ID, map[string]interface{}{"total_amount": total}); err != nil {
		return err
	}
	order.TotalAmount = total
	order.Items = items
	return nil
}

func (s *POSHandler) lockOrder(tx *gorm.DB, id int64) (*models.Order, error) {
	var order models.Order
	if err := database.ForUpdate(tx).Omit(clause.Associations).First(&order, id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// updateOrder writes columns only; loaded associations are never re-saved.
func updateOrder(tx *gorm.DB, id int64, values map[string]interface{}) error {
	return tx.Model(&models.Order{}).Where("id = ?", id).Updates(values).Error
}

func (s *POSHandler) CancelOrder(ctx context.Context, orderID int64, actorID int64) (*models.Order, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, table, err := s.lockOrderWithTable(tx, orderID)
		if err != nil {
			return err
		}
		if !kitchen.CanCancel(order.Status) {
			return utils.InvalidTransition("cancel", order.Status)
		}
		if err := updateOrder(tx, order.ID, map[string]interface{}{"status": models.OrderCancelled}); err != nil {
			return err
		}

		if table != nil && table.CurrentOrderID != nil && *table.CurrentOrderID == order.ID {
			return updateTable(tx, table.ID, map[string]interface{}{
				"status":           models.TableFree,
				"current_order_id": nil,
			})
		}
		return nil
	})
	if err != nil {
		s.log.Error(ctx, actionCancelOrder, "order cancellation rolled back", err, slog.Int64("order_id", orderID))
		return nil, utils.WrapTxError(actionCancelOrder, err)
	}

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, newOrderEvent(EventOrderCancelled, order, actorID), false)
	s.log.Info(ctx, actionCancelOrder, "order cancelled", slog.Int64("order_id", orderID))
	return order, nil
}

func (s *POSHandler) AdvanceOrder(ctx context.Context, orderID int64, actorID int64) (*models.Order, error) {
	return s.transition(ctx, actionAdvanceOrder, orderID, actorID, kitchen.Advance)
}

func (s *POSHandler) UndoOrder(ctx context.Context, orderID int64, actorID int64) (*models.Order, error) {
	return s.transition(ctx, actionUndoOrder, orderID, actorID, func(st models.OrderStatus) (models.OrderStatus, error) {
		return kitchen.Undo(st), nil
	})
}

func (s *POSHandler) DismissOrder(ctx context.Context, orderID int64, actorID int64) (*models.Order, error) {
	return s.transition(ctx, actionDismissOrder, orderID, actorID, kitchen.Dismiss)
}

func (s *POSHandler) transition(ctx context.Context, action string, orderID, actorID int64, next func(models.OrderStatus) (models.OrderStatus, error)) (*models.Order, error) {
	var changed bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.lockOrder(tx, orderID)
		if err != nil {
			if database.IsNotFound(err) {
				return utils.NotFound("order", orderID)
			}
			return err
		}
		status, err := next(order.Status)
		if err != nil {
			return err
		}
		if status == order.Status {
			return nil
		}
		changed = true
		return updateOrder(tx, order.ID, map[string]interface{}{"status": status})
	})
	if err != nil {
		return nil, utils.WrapTxError(action, err)
	}

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if changed {
		s.afterCommit(ctx, newOrderEvent(EventOrderStatusChanged, order, actorID), false)
		s.log.Info(ctx, action, "order status changed",
			slog.Int64("order_id", orderID),
			slog.String("status", string(order.Status)))
	}
	return order, nil
}

func (s *POSHandler) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("DiningTable").
		First(&order, orderID).Error
	if err != nil {
		if database.IsNotFound(err) {
			return nil, utils.NotFound("order", orderID)
		}
		return nil, err
	}
	return &order, nil
}

// ListHeldOrders returns unpaid takeaway orders the counter can recall,
// newest first.
func (s *POSHandler) ListHeldOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.WithContext(ctx).
		Preload("Items").
		Where("dining_table_id IS NULL").
		Where("status IN ?", []models.OrderStatus{models.OrderPending, models.OrderPreparing}).
		Where("payment_status <> ?", models.PaymentPaid).
		Order("created_at DESC").Order("id DESC").
		Find(&orders).Error
	return orders, err
}
