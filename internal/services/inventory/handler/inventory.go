package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"resto-pos/internal/database"
	"resto-pos/internal/database/models"
	"resto-pos/internal/logger"
	"resto-pos/internal/utils"
)

const (
	INVENTORY_CACHE_PREFIX    = "inventory:"
	LOW_STOCK_CACHE_KEY       = INVENTORY_CACHE_PREFIX + "low-stock"
	WASTAGE_PAGE_SIZE         = 10
	CACHE_TTL_SHORT           = 1 * time.Minute
	actionDecrement           = "inventory_decrement"
	actionReportWastage       = "report_wastage"
	actionListLowStock        = "list_low_stock"
	actionInvalidateInventory = "invalidate_inventory_cache"
)

type InventoryHandler struct {
	db    *gorm.DB
	redis *redis.Client
	log   *logger.Logger
}

func NewInventoryHandler(db *gorm.DB, redisClient *redis.Client, log *logger.Logger) *InventoryHandler {
	if log == nil {
		log = logger.Discard()
	}
	return &InventoryHandler{
		db:    db,
		redis: redisClient,
		log:   log,
	}
}

func (s *InventoryHandler) InvalidateInventoryCaches(ctx context.Context) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(ctx, LOW_STOCK_CACHE_KEY).Err(); err != nil {
		s.log.Warn(ctx, actionInvalidateInventory, "failed to drop low-stock cache", slog.String("error", err.Error()))
	}
}

// Decrement subtracts amount from an item's stock inside the caller's
// transaction. There is no floor: stock may go negative.
func (s *InventoryHandler) Decrement(ctx context.Context, tx *gorm.DB, itemID int64, amount decimal.Decimal) error {
	result := tx.Model(&models.InventoryItem{}).
		Where("id = ?", itemID).
		Update("stock_level", gorm.Expr("stock_level - ?", amount))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.NotFound("inventory item", itemID)
	}

	var item models.InventoryItem
	if err := tx.Select("id", "stock_level").First(&item, itemID).Error; err == nil && item.StockLevel.IsNegative() {
		s.log.Warn(ctx, actionDecrement, "stock level below zero",
			slog.Int64("inventory_item_id", itemID),
			slog.String("stock_level", item.StockLevel.String()))
	}
	return nil
}

// DecrementRetail takes qty units off a retail product's shelf count.
func (s *InventoryHandler) DecrementRetail(ctx context.Context, tx *gorm.DB, productID int64, qty int32) error {
	result := tx.Model(&models.Product{}).
		Where("id = ?", productID).
		Update("stock_quantity", gorm.Expr("stock_quantity - ?", qty))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.NotFound("product", productID)
	}
	return nil
}

// LinkedItems loads the inventory items that modifier options point at.
func (s *InventoryHandler) LinkedItems(tx *gorm.DB, ids []int64) (map[int64]models.InventoryItem, error) {
	linked := make(map[int64]models.InventoryItem, len(ids))
	if len(ids) == 0 {
		return linked, nil
	}
	var items []models.InventoryItem
	if err := tx.Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	for _, item := range items {
		linked[item.ID] = item
	}
	return linked, nil
}

// ApplyDeductions runs each deduction through Decrement. Items that no
// longer exist are logged and skipped; any other error aborts.
func (s *InventoryHandler) ApplyDeductions(ctx context.Context, tx *gorm.DB, deductions []Deduction) error {
	for _, d := range deductions {
		err := s.Decrement(ctx, tx, d.InventoryItemID, d.Amount)
		if errors.Is(err, utils.ErrNotFound) {
			s.log.Warn(ctx, actionDecrement, "skipping deduction for missing inventory item",
				slog.Int64("inventory_item_id", d.InventoryItemID))
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

type WastageRequest struct {
	InventoryItemID int64
	Quantity        decimal.Decimal
	Reason          models.WastageReason
	Notes           *string
}

func (r WastageRequest) validate() error {
	verr := &utils.ValidationError{}
	if r.InventoryItemID <= 0 {
		verr.Add("inventory_item_id", "is required")
	}
	if !r.Quantity.IsPositive() {
		verr.Add("quantity", "must be greater than 0")
	}
	if !r.Reason.Valid() {
		verr.Add("reason", "must be one of Expired, Damaged, Spilled, Other")
	}
	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

// ReportWastage records spoiled stock at its current cost and takes it off
// the shelf in the same transaction.
func (s *InventoryHandler) ReportWastage(ctx context.Context, req WastageRequest, actorID int64) (*models.InventoryWastage, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var wastage models.InventoryWastage
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.InventoryItem
		if err := database.ForUpdate(tx).First(&item, req.InventoryItemID).Error; err != nil {
			if database.IsNotFound(err) {
				return utils.NotFound("inventory item", req.InventoryItemID)
			}
			return err
		}

		wastage = models.InventoryWastage{
			InventoryItemID: item.ID,
			Quantity:        req.Quantity,
			Reason:          req.Reason,
			Notes:           req.Notes,
			Cost:            req.Quantity.Mul(item.PricePerUnit).Round(2),
			UserID:          actorID,
		}
		if err := tx.Create(&wastage).Error; err != nil {
			return err
		}
		return s.Decrement(ctx, tx, item.ID, req.Quantity)
	})
	if err != nil {
		s.log.Error(ctx, actionReportWastage, "wastage report rolled back", err,
			slog.Int64("inventory_item_id", req.InventoryItemID))
		return nil, utils.WrapTxError(actionReportWastage, err)
	}

	s.InvalidateInventoryCaches(ctx)
	s.log.Info(ctx, actionReportWastage, "wastage recorded",
		slog.Int64("wastage_id", wastage.ID),
		slog.Int64("inventory_item_id", wastage.InventoryItemID),
		slog.String("cost", wastage.Cost.String()))
	return &wastage, nil
}

type WastagePage struct {
	Items    []models.InventoryWastage `json:"items"`
	Page     int                       `json:"page"`
	PageSize int                       `json:"page_size"`
	Total    int64                     `json:"total"`
	NextPage int                       `json:"next_page,omitempty"`
}

func (s *InventoryHandler) ListWastage(ctx context.Context, page int) (*WastagePage, error) {
	if page <= 0 {
		page = 1
	}

	query := s.db.WithContext(ctx).Model(&models.InventoryWastage{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	var rows []models.InventoryWastage
	offset := (page - 1) * WASTAGE_PAGE_SIZE
	if err := query.Preload("InventoryItem").
		Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(WASTAGE_PAGE_SIZE).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	result := &WastagePage{
		Items:    rows,
		Page:     page,
		PageSize: WASTAGE_PAGE_SIZE,
		Total:    total,
	}
	if int64(page*WASTAGE_PAGE_SIZE) < total {
		result.NextPage = page + 1
	}
	return result, nil
}

// ListLowStock returns items at or below their reorder threshold, lowest
// stock first.
func (s *InventoryHandler) ListLowStock(ctx context.Context) ([]models.InventoryItem, error) {
	if s.redis != nil {
		cached, err := s.redis.Get(ctx, LOW_STOCK_CACHE_KEY).Result()
		if err == nil {
			var items []models.InventoryItem
			if jsonErr := json.Unmarshal([]byte(cached), &items); jsonErr == nil {
				return items, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.log.Warn(ctx, actionListLowStock, "low-stock cache unavailable", slog.String("error", err.Error()))
		}
	}

	var items []models.InventoryItem
	if err := s.db.WithContext(ctx).
		Preload("Category").
		Where("stock_level <= reorder_threshold").
		Order("stock_level ASC").Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}

	if s.redis != nil {
		if payload, err := json.Marshal(items); err == nil {
			if err := s.redis.Set(ctx, LOW_STOCK_CACHE_KEY, payload, CACHE_TTL_SHORT).Err(); err != nil {
				s.log.Warn(ctx, actionListLowStock, "failed to cache low-stock list", slog.String("error", err.Error()))
			}
		}
	}
	return items, nil
}
