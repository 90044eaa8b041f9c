// Package seed loads menu, recipe, inventory and floor-plan fixtures into a
// fresh or existing database. Rows are matched by name, so applying the same
// fixture twice changes nothing.
package seed

import (
	_ "embed"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"resto-pos/internal/database/models"
)

//go:embed fixtures/default.yaml
var defaultFixture []byte

type Fixture struct {
	InventoryCategories []string         `yaml:"inventory_categories"`
	InventoryItems      []ItemFixture    `yaml:"inventory_items"`
	Products            []ProductFixture `yaml:"products"`
	DiningTables        []TableFixture   `yaml:"dining_tables"`
}

type ItemFixture struct {
	Name             string          `yaml:"name"`
	Category         string          `yaml:"category"`
	Unit             string          `yaml:"unit"`
	UsageUnit        string          `yaml:"usage_unit"`
	ConversionFactor decimal.Decimal `yaml:"conversion_factor"`
	StockLevel       decimal.Decimal `yaml:"stock_level"`
	PricePerUnit     decimal.Decimal `yaml:"price_per_unit"`
	ReorderThreshold decimal.Decimal `yaml:"reorder_threshold"`
}

type ProductFixture struct {
	Name          string                 `yaml:"name"`
	Category      string                 `yaml:"category"`
	Type          models.ProductType     `yaml:"type"`
	Price         decimal.Decimal        `yaml:"price"`
	CostPrice     *decimal.Decimal       `yaml:"cost_price"`
	StockQuantity int32                  `yaml:"stock_quantity"`
	Description   *string                `yaml:"description"`
	Ingredients   []IngredientFixture    `yaml:"ingredients"`
	Modifiers     []ModifierGroupFixture `yaml:"modifiers"`
}

type IngredientFixture struct {
	Item     string          `yaml:"item"`
	Quantity decimal.Decimal `yaml:"quantity"`
}

type ModifierGroupFixture struct {
	Title   string               `yaml:"title"`
	Type    models.SelectionType `yaml:"type"`
	Options []OptionFixture      `yaml:"options"`
}

// OptionFixture names its linked inventory item instead of using an id.
type OptionFixture struct {
	Name     string           `yaml:"name"`
	Price    decimal.Decimal  `yaml:"price"`
	Item     string           `yaml:"item"`
	Quantity *decimal.Decimal `yaml:"quantity"`
}

type TableFixture struct {
	Name  string `yaml:"name"`
	Seats int32  `yaml:"seats"`
	X     int32  `yaml:"x"`
	Y     int32  `yaml:"y"`
}

// Summary counts the rows a run actually inserted.
type Summary struct {
	Categories  int
	Items       int
	Products    int
	Ingredients int
	Tables      int
}

func Default() (*Fixture, error) {
	return Parse(defaultFixture)
}

func Load(path string) (*Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Fixture, error) {
	var fx Fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	if err := fx.validate(); err != nil {
		return nil, err
	}
	return &fx, nil
}

func (fx *Fixture) validate() error {
	items := make(map[string]bool, len(fx.InventoryItems))
	for _, item := range fx.InventoryItems {
		if item.Name == "" || item.Unit == "" {
			return fmt.Errorf("inventory item %q: name and unit are required", item.Name)
		}
		items[item.Name] = true
	}
	for _, p := range fx.Products {
		if p.Name == "" || !p.Price.IsPositive() {
			return fmt.Errorf("product %q: name and a positive price are required", p.Name)
		}
		for _, ing := range p.Ingredients {
			if !items[ing.Item] {
				return fmt.Errorf("product %q: unknown ingredient %q", p.Name, ing.Item)
			}
		}
		for _, group := range p.Modifiers {
			for _, opt := range group.Options {
				if opt.Item != "" && !items[opt.Item] {
					return fmt.Errorf("product %q: option %q links unknown item %q", p.Name, opt.Name, opt.Item)
				}
			}
		}
	}
	return nil
}

// Apply writes the fixture in one transaction.
func Apply(db *gorm.DB, fx *Fixture) (*Summary, error) {
	summary := &Summary{}
	err := db.Transaction(func(tx *gorm.DB) error {
		categories := make(map[string]int64, len(fx.InventoryCategories))
		for _, name := range fx.InventoryCategories {
			category := models.InventoryCategory{Name: name}
			created, err := firstOrCreate(tx, &category, "name = ?", name)
			if err != nil {
				return fmt.Errorf("category %q: %w", name, err)
			}
			if created {
				summary.Categories++
			}
			categories[name] = category.ID
		}

		items := make(map[string]int64, len(fx.InventoryItems))
		for _, f := range fx.InventoryItems {
			item := f.model()
			if id, ok := categories[f.Category]; ok {
				item.InventoryCategoryID = &id
			}
			created, err := firstOrCreate(tx, &item, "name = ?", f.Name)
			if err != nil {
				return fmt.Errorf("inventory item %q: %w", f.Name, err)
			}
			if created {
				summary.Items++
			}
			items[f.Name] = item.ID
		}

		for _, f := range fx.Products {
			product := f.model(items)
			created, err := firstOrCreate(tx, &product, "name = ?", f.Name)
			if err != nil {
				return fmt.Errorf("product %q: %w", f.Name, err)
			}
			if created {
				summary.Products++
			}

			for _, ing := range f.Ingredients {
				row := models.ProductIngredient{
					ProductID:       product.ID,
					InventoryItemID: items[ing.Item],
					Quantity:        ing.Quantity,
				}
				created, err := firstOrCreate(tx, &row, "product_id = ? AND inventory_item_id = ?", row.ProductID, row.InventoryItemID)
				if err != nil {
					return fmt.Errorf("product %q ingredient %q: %w", f.Name, ing.Item, err)
				}
				if created {
					summary.Ingredients++
				}
			}
		}

		for _, f := range fx.DiningTables {
			table := models.DiningTable{
				Name:      f.Name,
				Seats:     f.Seats,
				Status:    models.TableFree,
				PositionX: f.X,
				PositionY: f.Y,
			}
			created, err := firstOrCreate(tx, &table, "name = ?", f.Name)
			if err != nil {
				return fmt.Errorf("dining table %q: %w", f.Name, err)
			}
			if created {
				summary.Tables++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func firstOrCreate(tx *gorm.DB, dest interface{}, query string, args ...interface{}) (bool, error) {
	result := tx.Omit(clause.Associations).Where(query, args...).FirstOrCreate(dest)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (f ItemFixture) model() models.InventoryItem {
	item := models.InventoryItem{
		Name:             f.Name,
		Unit:             f.Unit,
		StockLevel:       f.StockLevel,
		ConversionFactor: f.ConversionFactor,
		PricePerUnit:     f.PricePerUnit,
		ReorderThreshold: f.ReorderThreshold,
	}
	if f.UsageUnit != "" {
		usage := f.UsageUnit
		item.UsageUnit = &usage
	}
	if !item.ConversionFactor.IsPositive() {
		item.ConversionFactor = decimal.NewFromInt(1)
	}
	return item
}

func (f ProductFixture) model(items map[string]int64) models.Product {
	product := models.Product{
		Name:          f.Name,
		Category:      f.Category,
		Type:          f.Type,
		Price:         f.Price,
		StockQuantity: f.StockQuantity,
		IsAvailable:   true,
		Description:   f.Description,
		Modifiers:     models.ModifierGroups{},
	}
	if product.Type == "" {
		product.Type = models.ProductKitchen
	}
	if f.CostPrice != nil {
		product.CostPrice = decimal.NewNullDecimal(*f.CostPrice)
	}

	for _, g := range f.Modifiers {
		group := models.ModifierGroup{Title: g.Title, Type: g.Type}
		for _, o := range g.Options {
			opt := models.ModifierOption{Name: o.Name, Price: o.Price}
			if id, ok := items[o.Item]; ok && o.Quantity != nil {
				itemID := id
				qty := *o.Quantity
				opt.InventoryItemID = &itemID
				opt.Quantity = &qty
			}
			group.Options = append(group.Options, opt)
		}
		product.Modifiers = append(product.Modifiers, group)
	}
	return product
}
