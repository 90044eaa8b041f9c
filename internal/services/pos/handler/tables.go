package handler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"resto-pos/internal/database"
	"resto-pos/internal/database/models"
	"resto-pos/internal/services/kitchen"
	"resto-pos/internal/utils"
)

const (
	actionSettleTable = "settle_table"
	actionMoveOrder   = "move_order"
)

func updateTable(tx *gorm.DB, id int64, values map[string]interface{}) error {
	return tx.Model(&models.DiningTable{}).Where("id = ?", id).Updates(values).Error
}

func (s *POSHandler) lockTable(tx *gorm.DB, id int64) (*models.DiningTable, error) {
	var table models.DiningTable
	if err := database.ForUpdate(tx).Omit(clause.Associations).First(&table, id).Error; err != nil {
		return nil, err
	}
	return &table, nil
}

// lockTables locks rows in ascending id order so two terminals moving
// between the same pair of tables cannot deadlock.
func (s *POSHandler) lockTables(tx *gorm.DB, ids ...int64) (map[int64]*models.DiningTable, error) {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	tables := make(map[int64]*models.DiningTable, len(sorted))
	for _, id := range sorted {
		table, err := s.lockTable(tx, id)
		if err != nil {
			if database.IsNotFound(err) {
				return nil, utils.NotFound("dining table", id)
			}
			return nil, err
		}
		tables[id] = table
	}
	return tables, nil
}

// lockOrderWithTable locks the order's table before the order itself, the
// same order the table-first operations use, so the two paths cannot
// deadlock. The table is nil for takeaway orders or a deleted table.
func (s *POSHandler) lockOrderWithTable(tx *gorm.DB, orderID int64) (*models.Order, *models.DiningTable, error) {
	var peek models.Order
	if err := tx.Select("id", "dining_table_id").First(&peek, orderID).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, nil, utils.NotFound("order", orderID)
		}
		return nil, nil, err
	}

	var table *models.DiningTable
	if peek.DiningTableID != nil {
		locked, err := s.lockTable(tx, *peek.DiningTableID)
		if err != nil && !database.IsNotFound(err) {
			return nil, nil, err
		}
		table = locked
	}

	order, err := s.lockOrder(tx, orderID)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, nil, utils.NotFound("order", orderID)
		}
		return nil, nil, err
	}
	if !sameTable(order.DiningTableID, peek.DiningTableID) {
		return nil, nil, fmt.Errorf("order %d changed tables while being updated: %w", orderID, utils.ErrConflict)
	}
	return order, table, nil
}

func sameTable(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// findOrCreateOrder resolves which order a cart submission writes to: an
// explicit order, else the live order on the table, else a new one. The
// returned table is locked.
func (s *POSHandler) findOrCreateOrder(tx *gorm.DB, req CartSubmission, actorID int64) (*models.Order, *models.DiningTable, bool, error) {
	if req.OrderID != nil {
		order, table, err := s.lockOrderWithTable(tx, *req.OrderID)
		if err != nil {
			return nil, nil, false, err
		}
		if err := s.applySubmission(tx, order, req); err != nil {
			return nil, nil, false, err
		}
		return order, table, false, nil
	}

	var table *models.DiningTable
	if req.DiningTableID != nil {
		var err error
		table, err = s.lockTable(tx, *req.DiningTableID)
		if err != nil {
			if database.IsNotFound(err) {
				return nil, nil, false, utils.NotFound("dining table", *req.DiningTableID)
			}
			return nil, nil, false, err
		}

		if table.Status == models.TableOccupied && table.CurrentOrderID != nil {
			order, err := s.lockOrder(tx, *table.CurrentOrderID)
			switch {
			case err == nil && order.IsLive():
				if err := s.applySubmission(tx, order, req); err != nil {
					return nil, nil, false, err
				}
				return order, table, false, nil
			case err != nil && !database.IsNotFound(err):
				return nil, nil, false, err
			}
		}
	}

	discount, discountType := discountOrDefault(req.Discount, req.DiscountType)
	paymentStatus := models.PaymentUnpaid
	if isPaidMethod(req.PaymentMethod) {
		paymentStatus = models.PaymentPaid
	}
	order := &models.Order{
		Status:        models.OrderPending,
		PaymentStatus: paymentStatus,
		PaymentMethod: req.PaymentMethod,
		DiningTableID: req.DiningTableID,
		Discount:      discount,
		DiscountType:  discountType,
	}
	if actorID != 0 {
		order.UserID = &actorID
	}
	if err := s.createOrder(tx, order); err != nil {
		return nil, nil, false, err
	}
	return order, table, true, nil
}

// createOrder inserts the order under a fresh order number, drawing a new
// one when the number is already taken. Each attempt runs in a savepoint so
// a collision does not abort the surrounding transaction.
func (s *POSHandler) createOrder(tx *gorm.DB, order *models.Order) error {
	var err error
	for attempt := 0; attempt < ORDER_NUMBER_ATTEMPTS; attempt++ {
		order.ID = 0
		order.OrderNumber = newOrderNumber()
		err = tx.Transaction(func(sp *gorm.DB) error {
			return sp.Omit(clause.Associations).Create(order).Error
		})
		if !database.IsDuplicateKey(err) {
			return err
		}
	}
	return fmt.Errorf("order number still taken after %d attempts: %w", ORDER_NUMBER_ATTEMPTS, err)
}

// applySubmission carries discount and payment changes from a resubmitted
// cart onto an existing order.
func (s *POSHandler) applySubmission(tx *gorm.DB, order *models.Order, req CartSubmission) error {
	values := map[string]interface{}{}
	if req.Discount != nil {
		order.Discount, order.DiscountType = discountOrDefault(req.Discount, req.DiscountType)
		values["discount"] = order.Discount
		values["discount_type"] = order.DiscountType
	}
	if req.PaymentMethod != PaymentMethodPending {
		order.PaymentMethod = req.PaymentMethod
		values["payment_method"] = order.PaymentMethod
		if isPaidMethod(req.PaymentMethod) {
			order.PaymentStatus = models.PaymentPaid
			values["payment_status"] = order.PaymentStatus
		}
	}
	if len(values) == 0 {
		return nil
	}
	return updateOrder(tx, order.ID, values)
}

// bindTable keeps the table in step with the order: a live order occupies
// its table, a paid or cancelled one releases it, but only while the table
// still points at that order. A table holding a different live order is left
// alone.
func (s *POSHandler) bindTable(tx *gorm.DB, table *models.DiningTable, order *models.Order) error {
	pointsHere := table.CurrentOrderID != nil && *table.CurrentOrderID == order.ID

	if !order.IsLive() {
		if !pointsHere {
			return nil
		}
		return updateTable(tx, table.ID, map[string]interface{}{
			"status":           models.TableFree,
			"current_order_id": nil,
			"waiter_name":      nil,
		})
	}

	if table.CurrentOrderID != nil && !pointsHere {
		var other models.Order
		err := tx.Select("id", "status", "payment_status").First(&other, *table.CurrentOrderID).Error
		if err == nil && other.IsLive() {
			return nil
		}
		if err != nil && !database.IsNotFound(err) {
			return err
		}
	}
	return updateTable(tx, table.ID, map[string]interface{}{
		"status":           models.TableOccupied,
		"current_order_id": order.ID,
	})
}

func clearTableValues() map[string]interface{} {
	return map[string]interface{}{
		"status":           models.TableFree,
		"current_order_id": nil,
		"waiter_name":      nil,
		"reservation_name": nil,
	}
}

// SettleTable takes payment for the table's current order and frees the
// table. A table without a live order is reset to free and no order is
// returned; a cancelled or already paid order is never charged.
func (s *POSHandler) SettleTable(ctx context.Context, req SettleRequest, actorID int64) (*models.Order, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	method := req.PaymentMethod
	if method == "" {
		method = "cash"
	}

	var orderID int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		table, err := s.lockTable(tx, req.TableID)
		if err != nil {
			if database.IsNotFound(err) {
				return utils.NotFound("dining table", req.TableID)
			}
			return err
		}

		if table.CurrentOrderID == nil {
			return updateTable(tx, table.ID, map[string]interface{}{
				"status":           models.TableFree,
				"current_order_id": nil,
			})
		}

		order, err := s.lockOrder(tx, *table.CurrentOrderID)
		if err != nil {
			if database.IsNotFound(err) {
				return utils.NotFound("order", *table.CurrentOrderID)
			}
			return err
		}
		if !order.IsLive() {
			return updateTable(tx, table.ID, map[string]interface{}{
				"status":           models.TableFree,
				"current_order_id": nil,
			})
		}
		orderID = order.ID

		if req.Discount != nil {
			order.Discount, order.DiscountType = discountOrDefault(req.Discount, req.DiscountType)
			if err := updateOrder(tx, order.ID, map[string]interface{}{
				"discount":      order.Discount,
				"discount_type": order.DiscountType,
			}); err != nil {
				return err
			}
			if err := s.recomputeTotal(tx, order); err != nil {
				return err
			}
		}

		if err := updateOrder(tx, order.ID, map[string]interface{}{
			"payment_status": models.PaymentPaid,
			"payment_method": method,
			"status":         models.OrderServed,
		}); err != nil {
			return err
		}

		return updateTable(tx, table.ID, map[string]interface{}{
			"status":           models.TableFree,
			"current_order_id": nil,
			"waiter_name":      nil,
		})
	})
	if err != nil {
		s.log.Error(ctx, actionSettleTable, "settlement rolled back", err, slog.Int64("table_id", req.TableID))
		return nil, utils.WrapTxError(actionSettleTable, err)
	}

	if orderID == 0 {
		s.log.Info(ctx, actionSettleTable, "table had no order, reset to free", slog.Int64("table_id", req.TableID))
		s.afterCommit(ctx, OrderEvent{EventType: EventTableCleared, TableID: &req.TableID, ActorID: actorID, Timestamp: time.Now()}, false)
		return nil, nil
	}

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.afterCommit(ctx, newOrderEvent(EventPaymentProcessed, order, actorID), false)
	s.log.Info(ctx, actionSettleTable, "table settled",
		slog.Int64("table_id", req.TableID),
		slog.Int64("order_id", orderID),
		slog.String("total_amount", order.TotalAmount.StringFixed(2)))
	return order, nil
}

// MoveOrder moves the source table's order to the target table. When the
// target already holds a live order the two are merged into the target's
// order and the source order is deleted.
func (s *POSHandler) MoveOrder(ctx context.Context, req MoveRequest, actorID int64) (*MoveResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	result := &MoveResult{}
	var orderID int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tables, err := s.lockTables(tx, req.SourceTableID, req.TargetTableID)
		if err != nil {
			return err
		}
		source, target := tables[req.SourceTableID], tables[req.TargetTableID]

		if source.CurrentOrderID == nil {
			result.NoOp = true
			return updateTable(tx, source.ID, map[string]interface{}{
				"status":           models.TableFree,
				"current_order_id": nil,
			})
		}

		sourceOrder, err := s.lockOrder(tx, *source.CurrentOrderID)
		if err != nil {
			if database.IsNotFound(err) {
				return utils.NotFound("order", *source.CurrentOrderID)
			}
			return err
		}

		var targetOrder *models.Order
		if target.CurrentOrderID != nil {
			targetOrder, err = s.lockOrder(tx, *target.CurrentOrderID)
			if err != nil && !database.IsNotFound(err) {
				return err
			}
			if targetOrder != nil && !targetOrder.IsLive() {
				targetOrder = nil
			}
		}

		if targetOrder == nil {
			orderID = sourceOrder.ID
			if err := updateOrder(tx, sourceOrder.ID, map[string]interface{}{"dining_table_id": target.ID}); err != nil {
				return err
			}
			if err := updateTable(tx, target.ID, map[string]interface{}{
				"status":           models.TableOccupied,
				"current_order_id": sourceOrder.ID,
				"waiter_name":      source.WaiterName,
				"reservation_name": source.ReservationName,
			}); err != nil {
				return err
			}
			return updateTable(tx, source.ID, clearTableValues())
		}

		result.Merged = true
		orderID = targetOrder.ID
		moved := tx.Model(&models.OrderItem{}).
			Where("order_id = ?", sourceOrder.ID).
			Update("order_id", targetOrder.ID)
		if moved.Error != nil {
			return moved.Error
		}
		if moved.RowsAffected > 0 {
			if next := kitchen.RegressOnAppend(targetOrder.Status); next != targetOrder.Status {
				if err := updateOrder(tx, targetOrder.ID, map[string]interface{}{"status": next}); err != nil {
					return err
				}
			}
		}
		if err := s.recomputeTotal(tx, targetOrder); err != nil {
			return err
		}
		if err := tx.Delete(&models.Order{}, sourceOrder.ID).Error; err != nil {
			return err
		}
		return updateTable(tx, source.ID, clearTableValues())
	})
	if err != nil {
		s.log.Error(ctx, actionMoveOrder, "table move rolled back", err,
			slog.Int64("source_table_id", req.SourceTableID),
			slog.Int64("target_table_id", req.TargetTableID))
		return nil, utils.WrapTxError(actionMoveOrder, err)
	}

	if result.NoOp {
		s.afterCommit(ctx, OrderEvent{EventType: EventTableCleared, TableID: &req.SourceTableID, ActorID: actorID, Timestamp: time.Now()}, false)
		return result, nil
	}

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	result.Order = order

	eventType := EventOrderMoved
	if result.Merged {
		eventType = EventOrderMerged
	}
	s.afterCommit(ctx, newOrderEvent(eventType, order, actorID), false)
	s.log.Info(ctx, actionMoveOrder, "order moved",
		slog.Int64("source_table_id", req.SourceTableID),
		slog.Int64("target_table_id", req.TargetTableID),
		slog.Bool("merged", result.Merged))
	return result, nil
}

// ListTables returns the floor plan with each table's live order.
func (s *POSHandler) ListTables(ctx context.Context) ([]models.DiningTable, error) {
	var tables []models.DiningTable
	err := s.db.WithContext(ctx).
		Preload("CurrentOrder").
		Preload("CurrentOrder.Items").
		Order("id ASC").
		Find(&tables).Error
	return tables, err
}
