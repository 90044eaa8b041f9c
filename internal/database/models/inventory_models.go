package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type WastageReason string

const (
	WastageExpired WastageReason = "Expired"
	WastageDamaged WastageReason = "Damaged"
	WastageSpilled WastageReason = "Spilled"
	WastageOther   WastageReason = "Other"
)

func (r WastageReason) Valid() bool {
	switch r {
	case WastageExpired, WastageDamaged, WastageSpilled, WastageOther:
		return true
	}
	return false
}

type InventoryCategory struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"size:255;uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InventoryItem is a raw material kept in its stock unit. Recipes measure it
// in UsageUnit; one stock unit equals ConversionFactor usage units.
type InventoryItem struct {
	ID                  int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	InventoryCategoryID *int64          `gorm:"index" json:"inventory_category_id,omitempty"`
	Name                string          `gorm:"size:255;not null" json:"name"`
	StockLevel          decimal.Decimal `gorm:"type:decimal(12,4);not null;default:0" json:"stock_level"`
	Unit                string          `gorm:"size:50;not null" json:"unit"`
	UsageUnit           *string         `gorm:"size:50" json:"usage_unit,omitempty"`
	ConversionFactor    decimal.Decimal `gorm:"type:decimal(12,4);not null;default:1" json:"conversion_factor"`
	PricePerUnit        decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"price_per_unit"`
	ReorderThreshold    decimal.Decimal `gorm:"type:decimal(12,4);not null;default:10" json:"reorder_threshold"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`

	Category *InventoryCategory `gorm:"foreignKey:InventoryCategoryID" json:"category,omitempty"`
}

// UsageFactor is the divisor that turns usage-unit quantities into stock
// units. Zero or negative factors count as 1.
func (i InventoryItem) UsageFactor() decimal.Decimal {
	if i.ConversionFactor.GreaterThan(decimal.Zero) {
		return i.ConversionFactor
	}
	return decimal.NewFromInt(1)
}

type InventoryWastage struct {
	ID              int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	InventoryItemID int64           `gorm:"index;not null" json:"inventory_item_id"`
	Quantity        decimal.Decimal `gorm:"type:decimal(12,4);not null" json:"quantity"`
	Reason          WastageReason   `gorm:"size:50;not null" json:"reason"`
	Notes           *string         `gorm:"type:text" json:"notes,omitempty"`
	Cost            decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"cost"`
	UserID          int64           `gorm:"index;not null" json:"user_id"`
	CreatedAt       time.Time       `json:"created_at"`

	InventoryItem *InventoryItem `gorm:"foreignKey:InventoryItemID" json:"inventory_item,omitempty"`
}

func (InventoryWastage) TableName() string {
	return "inventory_wastage"
}
