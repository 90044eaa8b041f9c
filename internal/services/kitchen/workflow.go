// Package kitchen holds the order status machine the kitchen display drives
// and the cached feeds it polls.
package kitchen

import (
	"resto-pos/internal/database/models"
	"resto-pos/internal/utils"
)

var forward = map[models.OrderStatus]models.OrderStatus{
	models.OrderPending:   models.OrderPreparing,
	models.OrderPreparing: models.OrderCompleted,
	models.OrderCompleted: models.OrderServed,
	models.OrderCancelled: models.OrderCancelledArchived,
}

var backward = map[models.OrderStatus]models.OrderStatus{
	models.OrderPreparing: models.OrderPending,
	models.OrderCompleted: models.OrderPreparing,
	models.OrderServed:    models.OrderCompleted,
}

// Advance moves an order one step along pending, preparing, completed,
// served. A cancelled order advances to its archived state.
func Advance(s models.OrderStatus) (models.OrderStatus, error) {
	next, ok := forward[s]
	if !ok {
		return s, utils.InvalidTransition("advance", s)
	}
	return next, nil
}

// Undo steps back once. Pending orders and the cancelled branch stay put.
func Undo(s models.OrderStatus) models.OrderStatus {
	if prev, ok := backward[s]; ok {
		return prev
	}
	return s
}

func Dismiss(s models.OrderStatus) (models.OrderStatus, error) {
	if s != models.OrderCancelled {
		return s, utils.InvalidTransition("dismiss", s)
	}
	return models.OrderCancelledArchived, nil
}

func CanCancel(s models.OrderStatus) bool {
	switch s {
	case models.OrderPending, models.OrderPreparing, models.OrderCompleted:
		return true
	}
	return false
}

// RegressOnAppend is where an order lands when new items arrive after the
// kitchen already finished it.
func RegressOnAppend(s models.OrderStatus) models.OrderStatus {
	if s == models.OrderCompleted || s == models.OrderServed {
		return models.OrderPreparing
	}
	return s
}

func DisplayStatus(s models.OrderStatus) string {
	switch s {
	case models.OrderPending:
		return "New"
	case models.OrderPreparing:
		return "Cooking"
	case models.OrderCompleted:
		return "Ready"
	case models.OrderCancelled:
		return "cancelled"
	case models.OrderServed:
		return "History"
	}
	return string(s)
}
