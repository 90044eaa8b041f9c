package kitchen

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"resto-pos/internal/database/models"
	"resto-pos/internal/logger"
)

const (
	BOARD_ACTIVE_CACHE_KEY  = "kitchen:board:active"
	BOARD_HISTORY_CACHE_KEY = "kitchen:board:history"
	DEFAULT_HISTORY_LIMIT   = 20
	DEFAULT_BOARD_TTL       = 5 * time.Second
	actionBoard             = "kitchen_board"
)

var activeStatuses = []models.OrderStatus{
	models.OrderPending,
	models.OrderPreparing,
	models.OrderCompleted,
	models.OrderCancelled,
}

// Ticket is one order as the kitchen screen shows it.
type Ticket struct {
	models.Order
	Label string `json:"label"`
}

type Board struct {
	db           *gorm.DB
	redis        *redis.Client
	log          *logger.Logger
	historyLimit int
	ttl          time.Duration
}

func NewBoard(db *gorm.DB, redisClient *redis.Client, log *logger.Logger, historyLimit int, ttl time.Duration) *Board {
	if historyLimit <= 0 {
		historyLimit = DEFAULT_HISTORY_LIMIT
	}
	if ttl <= 0 {
		ttl = DEFAULT_BOARD_TTL
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Board{
		db:           db,
		redis:        redisClient,
		log:          log,
		historyLimit: historyLimit,
		ttl:          ttl,
	}
}

// Active lists orders the kitchen still has to act on, oldest first.
func (b *Board) Active(ctx context.Context) ([]Ticket, error) {
	return b.cached(ctx, BOARD_ACTIVE_CACHE_KEY, func() ([]models.Order, error) {
		var orders []models.Order
		err := b.db.WithContext(ctx).
			Preload("Items").
			Preload("DiningTable").
			Where("status IN ?", activeStatuses).
			Order("created_at ASC").Order("id ASC").
			Find(&orders).Error
		return orders, err
	})
}

// History lists recently served orders, most recently touched first.
func (b *Board) History(ctx context.Context) ([]Ticket, error) {
	return b.cached(ctx, BOARD_HISTORY_CACHE_KEY, func() ([]models.Order, error) {
		var orders []models.Order
		err := b.db.WithContext(ctx).
			Preload("Items").
			Preload("DiningTable").
			Where("status = ?", models.OrderServed).
			Order("updated_at DESC").Order("id DESC").
			Limit(b.historyLimit).
			Find(&orders).Error
		return orders, err
	})
}

func (b *Board) Invalidate(ctx context.Context) {
	if b.redis == nil {
		return
	}
	if err := b.redis.Del(ctx, BOARD_ACTIVE_CACHE_KEY, BOARD_HISTORY_CACHE_KEY).Err(); err != nil {
		b.log.Warn(ctx, actionBoard, "failed to drop board cache", slog.String("error", err.Error()))
	}
}

func (b *Board) cached(ctx context.Context, key string, load func() ([]models.Order, error)) ([]Ticket, error) {
	if b.redis != nil {
		raw, err := b.redis.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var tickets []Ticket
			if jsonErr := json.Unmarshal(raw, &tickets); jsonErr == nil {
				return tickets, nil
			}
		case !errors.Is(err, redis.Nil):
			b.log.Warn(ctx, actionBoard, "board cache unavailable", slog.String("error", err.Error()))
		}
	}

	orders, err := load()
	if err != nil {
		return nil, err
	}
	tickets := make([]Ticket, len(orders))
	for i, o := range orders {
		tickets[i] = Ticket{Order: o, Label: DisplayStatus(o.Status)}
	}

	if b.redis != nil {
		if payload, err := json.Marshal(tickets); err == nil {
			if err := b.redis.Set(ctx, key, payload, b.ttl).Err(); err != nil {
				b.log.Warn(ctx, actionBoard, "failed to cache board", slog.String("error", err.Error()))
			}
		}
	}
	return tickets, nil
}
