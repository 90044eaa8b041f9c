package handler

import (
	"strconv"

	"github.com/shopspring/decimal"

	"resto-pos/internal/database/models"
	"resto-pos/internal/utils"
)

const PaymentMethodPending = "pending"

// paidMethods settle an order at submission time.
var paidMethods = map[string]bool{
	"cash": true,
	"card": true,
	"qr":   true,
}

func isPaidMethod(method string) bool {
	return paidMethods[method]
}

type CartLine struct {
	ProductID           int64
	Quantity            int32
	Modifiers           models.ModifierSelection
	SpecialInstructions *string
}

// CartSubmission places a new order or appends lines to an existing one.
type CartSubmission struct {
	Items         []CartLine
	PaymentMethod string
	DiningTableID *int64
	OrderID       *int64
	Discount      *decimal.Decimal
	DiscountType  *models.DiscountType
}

func (c CartSubmission) validate() error {
	verr := &utils.ValidationError{}
	if len(c.Items) == 0 {
		verr.Add("items", "must contain at least one item")
	}
	for i, line := range c.Items {
		if line.ProductID <= 0 {
			verr.Add("items."+strconv.Itoa(i)+".product_id", "is required")
		}
		if line.Quantity < 1 {
			verr.Add("items."+strconv.Itoa(i)+".quantity", "must be at least 1")
		}
	}
	if c.PaymentMethod == "" {
		verr.Add("payment_method", "is required")
	}
	validateDiscount(verr, c.Discount, c.DiscountType)
	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

type SettleRequest struct {
	TableID       int64
	PaymentMethod string
	Discount      *decimal.Decimal
	DiscountType  *models.DiscountType
}

func (r SettleRequest) validate() error {
	verr := &utils.ValidationError{}
	if r.TableID <= 0 {
		verr.Add("table_id", "is required")
	}
	if r.PaymentMethod != "" && !isPaidMethod(r.PaymentMethod) {
		verr.Add("payment_method", "must be one of cash, card, qr")
	}
	validateDiscount(verr, r.Discount, r.DiscountType)
	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

type MoveRequest struct {
	SourceTableID int64
	TargetTableID int64
}

func (r MoveRequest) validate() error {
	verr := &utils.ValidationError{}
	if r.SourceTableID <= 0 {
		verr.Add("source_table_id", "is required")
	}
	if r.TargetTableID <= 0 {
		verr.Add("target_table_id", "is required")
	}
	if r.SourceTableID > 0 && r.SourceTableID == r.TargetTableID {
		verr.Add("target_table_id", "must differ from the source table")
	}
	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

// MoveResult reports which branch a move took. Order is nil when the source
// table had nothing to move.
type MoveResult struct {
	Merged bool          `json:"merged"`
	NoOp   bool          `json:"no_op"`
	Order  *models.Order `json:"order,omitempty"`
}

func validateDiscount(verr *utils.ValidationError, discount *decimal.Decimal, discountType *models.DiscountType) {
	if discount != nil && discount.IsNegative() {
		verr.Add("discount", "must not be negative")
	}
	if discountType != nil {
		switch *discountType {
		case models.DiscountPercentage, models.DiscountFixed:
		default:
			verr.Add("discount_type", "must be percentage or fixed")
		}
	}
}

// discountOrDefault mirrors how a missing discount type falls back to
// percentage.
func discountOrDefault(discount *decimal.Decimal, discountType *models.DiscountType) (decimal.Decimal, models.DiscountType) {
	d := decimal.Zero
	if discount != nil {
		d = *discount
	}
	t := models.DiscountPercentage
	if discountType != nil {
		t = *discountType
	}
	return d, t
}
