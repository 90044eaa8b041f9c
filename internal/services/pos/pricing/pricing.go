// Package pricing computes line and order totals. All functions are pure.
package pricing

import (
	"github.com/shopspring/decimal"

	"resto-pos/internal/database/models"
)

var hundred = decimal.NewFromInt(100)

// UnitPrice is the product price plus the price of every selected modifier.
// Names are matched against the first option with that name in any group;
// names that match nothing add zero.
func UnitPrice(product models.Product, selection models.ModifierSelection) decimal.Decimal {
	price := product.Price
	if selection.Size != nil && *selection.Size != "" {
		price = price.Add(optionPrice(product.Modifiers, *selection.Size))
	}
	for _, addon := range selection.Addons {
		price = price.Add(optionPrice(product.Modifiers, addon))
	}
	return price
}

func optionPrice(groups models.ModifierGroups, name string) decimal.Decimal {
	for _, group := range groups {
		for _, opt := range group.Options {
			if opt.Name == name {
				return opt.Price
			}
		}
	}
	return decimal.Zero
}

func Gross(items []models.OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// ApplyDiscount does not clamp; OrderTotal does.
func ApplyDiscount(gross, discount decimal.Decimal, discountType models.DiscountType) decimal.Decimal {
	if discountType == models.DiscountFixed {
		return gross.Sub(discount)
	}
	return gross.Sub(gross.Mul(discount.Div(hundred)))
}

func OrderTotal(items []models.OrderItem, discount decimal.Decimal, discountType models.DiscountType) decimal.Decimal {
	total := ApplyDiscount(Gross(items), discount, discountType)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// Round is applied only when a total is persisted.
func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}
