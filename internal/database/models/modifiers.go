package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

type SelectionType string

const (
	SelectionSingle   SelectionType = "single"
	SelectionMultiple SelectionType = "multiple"
)

// ModifierOption is one choice inside a modifier group. An option may consume
// Quantity usage-units of a linked inventory item per unit sold.
type ModifierOption struct {
	Name            string           `json:"name" yaml:"name"`
	Price           decimal.Decimal  `json:"price" yaml:"price"`
	InventoryItemID *int64           `json:"inventory_item_id,omitempty" yaml:"inventory_item_id,omitempty"`
	Quantity        *decimal.Decimal `json:"quantity,omitempty" yaml:"quantity,omitempty"`
}

// LinksInventory reports whether selecting the option deducts stock.
func (o ModifierOption) LinksInventory() bool {
	return o.InventoryItemID != nil && *o.InventoryItemID != 0 &&
		o.Quantity != nil && !o.Quantity.IsZero()
}

type ModifierGroup struct {
	Title   string           `json:"title" yaml:"title"`
	Type    SelectionType    `json:"type" yaml:"type"`
	Options []ModifierOption `json:"options" yaml:"options"`
}

// ModifierGroups is the product's modifier definition, stored as a JSON column.
type ModifierGroups []ModifierGroup

func (g *ModifierGroups) Scan(value interface{}) error {
	if value == nil {
		*g = ModifierGroups{}
		return nil
	}
	bytes, err := jsonBytes(value)
	if err != nil {
		return fmt.Errorf("failed to scan ModifierGroups: %w", err)
	}
	if len(bytes) == 0 {
		*g = ModifierGroups{}
		return nil
	}
	return json.Unmarshal(bytes, g)
}

func (g ModifierGroups) Value() (driver.Value, error) {
	if g == nil {
		return "[]", nil
	}
	bytes, err := json.Marshal(g)
	if err != nil {
		return nil, err
	}
	return string(bytes), nil
}

// LinkedInventoryIDs lists the inventory items referenced by any option.
func (g ModifierGroups) LinkedInventoryIDs() []int64 {
	seen := make(map[int64]struct{})
	var ids []int64
	for _, group := range g {
		for _, opt := range group.Options {
			if !opt.LinksInventory() {
				continue
			}
			if _, ok := seen[*opt.InventoryItemID]; ok {
				continue
			}
			seen[*opt.InventoryItemID] = struct{}{}
			ids = append(ids, *opt.InventoryItemID)
		}
	}
	return ids
}

// ModifierSelection is what the customer picked for a cart line:
// {"size": "Large", "addons": ["Cheese", "Bacon"]}.
type ModifierSelection struct {
	Size   *string  `json:"size,omitempty"`
	Addons []string `json:"addons,omitempty"`
}

func (s ModifierSelection) IsEmpty() bool {
	return (s.Size == nil || *s.Size == "") && len(s.Addons) == 0
}

// Names flattens the selection, size first.
func (s ModifierSelection) Names() []string {
	names := make([]string, 0, len(s.Addons)+1)
	if s.Size != nil && *s.Size != "" {
		names = append(names, *s.Size)
	}
	return append(names, s.Addons...)
}

func (s ModifierSelection) Has(name string) bool {
	for _, n := range s.Names() {
		if n == name {
			return true
		}
	}
	return false
}

func (s *ModifierSelection) Scan(value interface{}) error {
	*s = ModifierSelection{}
	if value == nil {
		return nil
	}
	bytes, err := jsonBytes(value)
	if err != nil {
		return fmt.Errorf("failed to scan ModifierSelection: %w", err)
	}
	if len(bytes) == 0 || string(bytes) == "null" {
		return nil
	}
	return json.Unmarshal(bytes, s)
}

func (s ModifierSelection) Value() (driver.Value, error) {
	if s.IsEmpty() {
		return nil, nil
	}
	bytes, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(bytes), nil
}

func jsonBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported type %T", value)
	}
}
