package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"resto-pos/internal/database/models"
)

const (
	EVENTS_CHANNEL_PREFIX = "pos:events:"
	EVENTS_CHANNEL_ALL    = "pos:events:all"

	EventOrderCreated       = "order.created"
	EventOrderUpdated       = "order.updated"
	EventOrderCancelled     = "order.cancelled"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderMoved         = "order.moved"
	EventOrderMerged        = "order.merged"
	EventPaymentProcessed   = "payment.processed"
	EventTableCleared       = "table.cleared"
)

// -- Pub/Sub Related --
type OrderEvent struct {
	EventType     string               `json:"event_type"`
	OrderID       int64                `json:"order_id,omitempty"`
	OrderNumber   string               `json:"order_number,omitempty"`
	TableID       *int64               `json:"table_id,omitempty"`
	Status        models.OrderStatus   `json:"status,omitempty"`
	PaymentStatus models.PaymentStatus `json:"payment_status,omitempty"`
	TotalAmount   string               `json:"total_amount,omitempty"`
	ActorID       int64                `json:"actor_id,omitempty"`
	Timestamp     time.Time            `json:"timestamp"`
	OrderData     *models.Order        `json:"order_data,omitempty"`
}

func newOrderEvent(eventType string, order *models.Order, actorID int64) OrderEvent {
	event := OrderEvent{
		EventType: eventType,
		ActorID:   actorID,
		Timestamp: time.Now(),
	}
	if order != nil {
		event.OrderID = order.ID
		event.OrderNumber = order.OrderNumber
		event.TableID = order.DiningTableID
		event.Status = order.Status
		event.PaymentStatus = order.PaymentStatus
		event.TotalAmount = order.TotalAmount.StringFixed(2)
		event.OrderData = order
	}
	return event
}

func (s *POSHandler) publishOrderEvent(ctx context.Context, event OrderEvent) error {
	if s.redis == nil {
		return nil
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	channel := EVENTS_CHANNEL_PREFIX + event.EventType
	if err := s.redis.Publish(ctx, channel, eventJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	if err := s.redis.Publish(ctx, EVENTS_CHANNEL_ALL, eventJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish to all channel: %w", err)
	}

	return nil
}

// afterCommit runs the side effects that must never undo a committed
// transaction. Failures are logged.
func (s *POSHandler) afterCommit(ctx context.Context, event OrderEvent, stockTouched bool) {
	if err := s.publishOrderEvent(ctx, event); err != nil {
		s.log.Warn(ctx, event.EventType, "order event not published",
			slog.Int64("order_id", event.OrderID),
			slog.String("error", err.Error()))
	}
	if s.board != nil {
		s.board.Invalidate(ctx)
	}
	if stockTouched && s.inventory != nil {
		s.inventory.InvalidateInventoryCaches(ctx)
	}
}
