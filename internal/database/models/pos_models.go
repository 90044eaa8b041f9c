package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProductType string

const (
	ProductKitchen ProductType = "kitchen"
	ProductRetail  ProductType = "retail"
)

type OrderStatus string

const (
	OrderPending           OrderStatus = "pending"
	OrderPreparing         OrderStatus = "preparing"
	OrderCompleted         OrderStatus = "completed"
	OrderServed            OrderStatus = "served"
	OrderCancelled         OrderStatus = "cancelled"
	OrderCancelledArchived OrderStatus = "cancelled_archived"
)

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type TableStatus string

const (
	TableFree        TableStatus = "free"
	TableOccupied    TableStatus = "occupied"
	TableReserved    TableStatus = "reserved"
	TableUnavailable TableStatus = "unavailable"
)

// Product is a menu item. Kitchen products consume their recipe on sale,
// retail products consume their own StockQuantity.
type Product struct {
	ID            int64               `gorm:"primaryKey;autoIncrement" json:"id"`
	Name          string              `gorm:"size:255;not null" json:"name"`
	Category      string              `gorm:"size:100;index" json:"category"`
	Type          ProductType         `gorm:"size:20;not null;default:kitchen" json:"type"`
	Price         decimal.Decimal     `gorm:"type:decimal(10,2);not null" json:"price"`
	CostPrice     decimal.NullDecimal `gorm:"type:decimal(10,2)" json:"cost_price"`
	StockQuantity int32               `gorm:"not null;default:0" json:"stock_quantity"`
	IsAvailable   bool                `gorm:"not null" json:"is_available"`
	Description   *string             `gorm:"size:255" json:"description,omitempty"`
	Modifiers     ModifierGroups      `gorm:"type:text" json:"modifiers"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`

	Ingredients []ProductIngredient `gorm:"foreignKey:ProductID" json:"ingredients,omitempty"`
}

// ProductIngredient is the recipe pivot: Quantity is in the item's usage unit
// per unit of product sold.
type ProductIngredient struct {
	ID              int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID       int64           `gorm:"index;not null" json:"product_id"`
	InventoryItemID int64           `gorm:"index;not null" json:"inventory_item_id"`
	Quantity        decimal.Decimal `gorm:"type:decimal(10,4);not null" json:"quantity"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`

	InventoryItem *InventoryItem `gorm:"foreignKey:InventoryItemID" json:"inventory_item,omitempty"`
}

type Order struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNumber   string          `gorm:"size:32;uniqueIndex;not null" json:"order_number"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"total_amount"`
	Status        OrderStatus     `gorm:"size:32;not null;default:pending;index" json:"status"`
	PaymentStatus PaymentStatus   `gorm:"size:16;not null;default:unpaid" json:"payment_status"`
	PaymentMethod string          `gorm:"size:32;not null;default:cash" json:"payment_method"`
	DiningTableID *int64          `gorm:"index" json:"dining_table_id,omitempty"`
	Discount      decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"discount"`
	DiscountType  DiscountType    `gorm:"size:16;not null;default:percentage" json:"discount_type"`
	UserID        *int64          `gorm:"index" json:"user_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	Items       []OrderItem  `gorm:"foreignKey:OrderID" json:"items"`
	DiningTable *DiningTable `gorm:"foreignKey:DiningTableID" json:"dining_table,omitempty"`
}

func (o Order) IsPaid() bool {
	return o.PaymentStatus == PaymentPaid
}

func (o Order) IsCancelled() bool {
	return o.Status == OrderCancelled || o.Status == OrderCancelledArchived
}

// IsLive reports whether the order may still hold a table.
func (o Order) IsLive() bool {
	return !o.IsPaid() && !o.IsCancelled()
}

// OrderItem snapshots the product name and resolved unit price at the time of
// sale, so later menu edits never rewrite history.
type OrderItem struct {
	ID                  int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID             int64             `gorm:"index;not null" json:"order_id"`
	ProductID           *int64            `gorm:"index" json:"product_id,omitempty"`
	ProductName         string            `gorm:"size:255;not null" json:"product_name"`
	Quantity            int32             `gorm:"not null" json:"quantity"`
	UnitPrice           decimal.Decimal   `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	Modifiers           ModifierSelection `gorm:"type:text" json:"modifiers"`
	SpecialInstructions *string           `gorm:"type:text" json:"special_instructions,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt32(i.Quantity))
}

type DiningTable struct {
	ID              int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	Name            string      `gorm:"size:255;not null" json:"name"`
	Seats           int32       `gorm:"not null;default:2" json:"seats"`
	Status          TableStatus `gorm:"size:16;not null;default:free" json:"status"`
	PositionX       int32       `gorm:"not null;default:0" json:"position_x"`
	PositionY       int32       `gorm:"not null;default:0" json:"position_y"`
	CurrentOrderID  *int64      `gorm:"index" json:"current_order_id,omitempty"`
	WaiterName      *string     `gorm:"size:255" json:"waiter_name,omitempty"`
	ReservationName *string     `gorm:"size:255" json:"reservation_name,omitempty"`
	ReservationTime *time.Time  `json:"reservation_time,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`

	CurrentOrder *Order `gorm:"foreignKey:CurrentOrderID" json:"current_order,omitempty"`
}
