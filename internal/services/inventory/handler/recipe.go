package handler

import (
	"github.com/shopspring/decimal"

	"resto-pos/internal/database/models"
)

type DeductionSource string

const (
	SourceRecipe   DeductionSource = "recipe"
	SourceModifier DeductionSource = "modifier"
)

// Deduction is an amount in stock units to take off one inventory item.
type Deduction struct {
	InventoryItemID int64
	Amount          decimal.Decimal
	Source          DeductionSource
}

// ResolveRecipe expands one cart line of a kitchen product into stock
// deductions. Ingredient quantities and linked modifier quantities are
// measured in usage units and divided by the item's conversion factor.
// linked holds the items referenced by modifier options; options whose
// item is absent from it are ignored.
func ResolveRecipe(product models.Product, selection models.ModifierSelection, lineQty int32, linked map[int64]models.InventoryItem) []Deduction {
	if product.Type != models.ProductKitchen || lineQty <= 0 {
		return nil
	}
	qty := decimal.NewFromInt32(lineQty)

	var out []Deduction
	for _, ing := range product.Ingredients {
		factor := decimal.NewFromInt(1)
		if ing.InventoryItem != nil {
			factor = ing.InventoryItem.UsageFactor()
		} else if item, ok := linked[ing.InventoryItemID]; ok {
			factor = item.UsageFactor()
		}
		out = append(out, Deduction{
			InventoryItemID: ing.InventoryItemID,
			Amount:          ing.Quantity.Mul(qty).Div(factor),
			Source:          SourceRecipe,
		})
	}

	if selection.IsEmpty() {
		return out
	}
	for _, group := range product.Modifiers {
		for _, opt := range group.Options {
			if !opt.LinksInventory() || !selection.Has(opt.Name) {
				continue
			}
			item, ok := linked[*opt.InventoryItemID]
			if !ok {
				continue
			}
			out = append(out, Deduction{
				InventoryItemID: item.ID,
				Amount:          opt.Quantity.Mul(qty).Div(item.UsageFactor()),
				Source:          SourceModifier,
			})
		}
	}
	return out
}
