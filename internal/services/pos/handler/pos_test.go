package handler

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"resto-pos/internal/database/dbtest"
	"resto-pos/internal/database/models"
	"resto-pos/internal/services/kitchen"
	"resto-pos/internal/utils"
)

type fixture struct {
	h   *POSHandler
	db  *gorm.DB
	rdb *redis.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	rdb, _ := dbtest.Redis(t)
	board := kitchen.NewBoard(db, rdb, nil, 0, 0)
	return &fixture{h: NewPOSHandler(db, rdb, nil, board, nil), db: db, rdb: rdb}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got.Round(4)), "want %s, got %s", want, got.String())
}

func (f *fixture) item(t *testing.T, id int64, name, stock, factor string) models.InventoryItem {
	t.Helper()
	item := models.InventoryItem{
		ID:               id,
		Name:             name,
		Unit:             "kg",
		StockLevel:       dec(stock),
		ConversionFactor: dec(factor),
		ReorderThreshold: dec("1"),
	}
	require.NoError(t, f.db.Create(&item).Error)
	return item
}

func (f *fixture) kitchenProduct(t *testing.T, name, price string, modifiers models.ModifierGroups, recipe map[int64]string) models.Product {
	t.Helper()
	p := models.Product{
		Name:        name,
		Type:        models.ProductKitchen,
		Price:       dec(price),
		IsAvailable: true,
		Modifiers:   modifiers,
	}
	require.NoError(t, f.db.Create(&p).Error)
	for itemID, qty := range recipe {
		require.NoError(t, f.db.Create(&models.ProductIngredient{
			ProductID:       p.ID,
			InventoryItemID: itemID,
			Quantity:        dec(qty),
		}).Error)
	}
	return p
}

func (f *fixture) table(t *testing.T, name string, waiter *string) models.DiningTable {
	t.Helper()
	table := models.DiningTable{Name: name, Seats: 4, Status: models.TableFree, WaiterName: waiter}
	require.NoError(t, f.db.Create(&table).Error)
	return table
}

// seatOrder puts an unpaid order with the given line totals on a table.
func (f *fixture) seatOrder(t *testing.T, table models.DiningTable, discount string, lineTotals ...string) models.Order {
	t.Helper()
	order := models.Order{
		OrderNumber:   generateOrderNumber(),
		Status:        models.OrderPending,
		PaymentStatus: models.PaymentUnpaid,
		PaymentMethod: PaymentMethodPending,
		DiningTableID: &table.ID,
		Discount:      dec(discount),
		DiscountType:  models.DiscountPercentage,
	}
	for _, total := range lineTotals {
		order.Items = append(order.Items, models.OrderItem{ProductName: "Dish", Quantity: 1, UnitPrice: dec(total)})
	}
	require.NoError(t, f.db.Create(&order).Error)
	require.NoError(t, f.db.Model(&models.DiningTable{}).Where("id = ?", table.ID).Updates(map[string]interface{}{
		"status":           models.TableOccupied,
		"current_order_id": order.ID,
	}).Error)
	return order
}

func (f *fixture) reloadTable(t *testing.T, id int64) models.DiningTable {
	t.Helper()
	var table models.DiningTable
	require.NoError(t, f.db.First(&table, id).Error)
	return table
}

func (f *fixture) stock(t *testing.T, id int64) decimal.Decimal {
	t.Helper()
	var item models.InventoryItem
	require.NoError(t, f.db.First(&item, id).Error)
	return item.StockLevel
}

func (f *fixture) count(t *testing.T, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

func cart(paymentMethod string, lines ...CartLine) CartSubmission {
	return CartSubmission{Items: lines, PaymentMethod: paymentMethod}
}

func TestSubmitOrderCreatesTakeawayOrder(t *testing.T) {
	f := newFixture(t)
	beans := f.item(t, 1, "Beans", "10", "1000")
	latte := f.kitchenProduct(t, "Latte", "4.50", nil, map[int64]string{beans.ID: "150"})
	ctx := context.Background()

	order, err := f.h.SubmitOrder(ctx, cart(PaymentMethodPending, CartLine{ProductID: latte.ID, Quantity: 2}), 3)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(order.OrderNumber, "ORD-"))
	assert.Len(t, order.OrderNumber, 12)
	assert.Equal(t, models.OrderPending, order.Status)
	assert.Equal(t, models.PaymentUnpaid, order.PaymentStatus)
	require.NotNil(t, order.UserID)
	assert.Equal(t, int64(3), *order.UserID)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Latte", order.Items[0].ProductName)
	assertDec(t, "9", order.TotalAmount)
	assertDec(t, "9.7", f.stock(t, beans.ID))

	held, err := f.h.ListHeldOrders(ctx)
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, order.ID, held[0].ID)
}

func TestSubmitOrderDeductsLinkedModifierStock(t *testing.T) {
	f := newFixture(t)
	milk := f.item(t, 7, "Milk", "5", "1000")
	modifiers := models.ModifierGroups{{
		Title: "Size",
		Type:  models.SelectionSingle,
		Options: []models.ModifierOption{
			{Name: "Regular", Price: dec("0")},
			{Name: "Large", Price: dec("1.00"), InventoryItemID: ptr(milk.ID), Quantity: ptr(dec("50"))},
		},
	}}
	flatWhite := f.kitchenProduct(t, "Flat white", "4", modifiers, nil)

	order, err := f.h.SubmitOrder(context.Background(), cart("cash", CartLine{
		ProductID: flatWhite.ID,
		Quantity:  1,
		Modifiers: models.ModifierSelection{Size: ptr("Large")},
	}), 1)
	require.NoError(t, err)

	assertDec(t, "4.95", f.stock(t, milk.ID))
	require.Len(t, order.Items, 1)
	assertDec(t, "5", order.Items[0].UnitPrice)
	require.NotNil(t, order.Items[0].Modifiers.Size)
	assert.Equal(t, "Large", *order.Items[0].Modifiers.Size)
	assert.Equal(t, models.PaymentPaid, order.PaymentStatus)
}

func TestSubmitOrderDecrementsRetailShelf(t *testing.T) {
	f := newFixture(t)
	soda := models.Product{Name: "Soda", Type: models.ProductRetail, Price: dec("2"), StockQuantity: 10, IsAvailable: true}
	require.NoError(t, f.db.Create(&soda).Error)

	_, err := f.h.SubmitOrder(context.Background(), cart("card", CartLine{ProductID: soda.ID, Quantity: 4}), 1)
	require.NoError(t, err)

	var reloaded models.Product
	require.NoError(t, f.db.First(&reloaded, soda.ID).Error)
	assert.Equal(t, int32(6), reloaded.StockQuantity)
}

func TestSubmitOrderSkipsMissingProducts(t *testing.T) {
	f := newFixture(t)
	toast := f.kitchenProduct(t, "Toast", "3", nil, nil)

	order, err := f.h.SubmitOrder(context.Background(), cart(PaymentMethodPending,
		CartLine{ProductID: 999, Quantity: 1},
		CartLine{ProductID: toast.ID, Quantity: 1},
	), 1)
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assertDec(t, "3", order.TotalAmount)
}

func TestSubmitOrderValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.h.SubmitOrder(context.Background(), CartSubmission{
		Items:    []CartLine{{ProductID: 1, Quantity: 0}},
		Discount: ptr(dec("-1")),
	}, 1)

	var verr *utils.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "items.0.quantity")
	assert.Contains(t, verr.Fields, "payment_method")
	assert.Contains(t, verr.Fields, "discount")
	assert.Zero(t, f.count(t, &models.Order{}))
}

func TestSubmitOrderAppendsInsteadOfDiffing(t *testing.T) {
	f := newFixture(t)
	soup := f.kitchenProduct(t, "Soup", "6", nil, nil)
	table := f.table(t, "T1", nil)
	ctx := context.Background()

	submission := cart(PaymentMethodPending, CartLine{ProductID: soup.ID, Quantity: 1})
	submission.DiningTableID = &table.ID

	first, err := f.h.SubmitOrder(ctx, submission, 1)
	require.NoError(t, err)
	second, err := f.h.SubmitOrder(ctx, submission, 1)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, second.Items, 2)
	assertDec(t, "12", second.TotalAmount)
	assert.Equal(t, int64(1), f.count(t, &models.Order{}))
}

func TestSubmitOrderAppliesDiscount(t *testing.T) {
	f := newFixture(t)
	platter := f.kitchenProduct(t, "Platter", "100", nil, nil)
	ctx := context.Background()

	submission := cart(PaymentMethodPending, CartLine{ProductID: platter.ID, Quantity: 1})
	submission.Discount = ptr(dec("10"))
	order, err := f.h.SubmitOrder(ctx, submission, 1)
	require.NoError(t, err)
	assertDec(t, "90", order.TotalAmount)
	assert.Equal(t, models.DiscountPercentage, order.DiscountType)

	recall := cart(PaymentMethodPending)
	recall.Items = []CartLine{{ProductID: platter.ID, Quantity: 1}}
	recall.OrderID = &order.ID
	recall.Discount = ptr(dec("250"))
	recall.DiscountType = ptr(models.DiscountFixed)
	order, err = f.h.SubmitOrder(ctx, recall, 1)
	require.NoError(t, err)
	assertDec(t, "0", order.TotalAmount)
}

func TestSubmitOrderRegressesServedOrder(t *testing.T) {
	f := newFixture(t)
	table := f.table(t, "T1", nil)
	seated := f.seatOrder(t, table, "0", "10")
	require.NoError(t, updateOrder(f.db, seated.ID, map[string]interface{}{"status": models.OrderServed}))
	fries := f.kitchenProduct(t, "Fries", "4", nil, nil)

	submission := cart(PaymentMethodPending, CartLine{ProductID: fries.ID, Quantity: 1})
	submission.DiningTableID = &table.ID
	order, err := f.h.SubmitOrder(context.Background(), submission, 1)
	require.NoError(t, err)

	assert.Equal(t, seated.ID, order.ID)
	assert.Equal(t, models.OrderPreparing, order.Status)
	assertDec(t, "14", order.TotalAmount)
}

func TestSubmitOrderRollsBackOnLedgerFailure(t *testing.T) {
	f := newFixture(t)
	a := f.item(t, 1, "Rice", "10", "1")
	b := f.item(t, 2, "Chicken", "10", "1")
	c := f.item(t, 3, "Egg", "10", "1")
	p1 := f.kitchenProduct(t, "Rice bowl", "5", nil, map[int64]string{a.ID: "1"})
	p2 := f.kitchenProduct(t, "Chicken bowl", "7", nil, map[int64]string{b.ID: "1"})
	p3 := f.kitchenProduct(t, "Egg bowl", "6", nil, map[int64]string{c.ID: "1"})
	table := f.table(t, "T1", nil)

	stockWrites := 0
	require.NoError(t, f.db.Callback().Update().Before("gorm:update").Register("test:fail_second_stock_write", func(tx *gorm.DB) {
		if tx.Statement.Table != "inventory_items" {
			return
		}
		stockWrites++
		if stockWrites == 2 {
			_ = tx.AddError(errors.New("injected ledger failure"))
		}
	}))

	submission := cart(PaymentMethodPending,
		CartLine{ProductID: p1.ID, Quantity: 1},
		CartLine{ProductID: p2.ID, Quantity: 1},
		CartLine{ProductID: p3.ID, Quantity: 1},
	)
	submission.DiningTableID = &table.ID
	_, err := f.h.SubmitOrder(context.Background(), submission, 1)

	var failure *utils.TransactionFailure
	require.ErrorAs(t, err, &failure)
	assert.Zero(t, f.count(t, &models.Order{}))
	assert.Zero(t, f.count(t, &models.OrderItem{}))
	assertDec(t, "10", f.stock(t, a.ID))
	assertDec(t, "10", f.stock(t, b.ID))
	assertDec(t, "10", f.stock(t, c.ID))

	reloaded := f.reloadTable(t, table.ID)
	assert.Equal(t, models.TableFree, reloaded.Status)
	assert.Nil(t, reloaded.CurrentOrderID)
}

func TestTableBindingFollowsPaymentState(t *testing.T) {
	f := newFixture(t)
	waiter := "Dewi"
	table := f.table(t, "T1", &waiter)
	tea := f.kitchenProduct(t, "Tea", "2", nil, nil)
	ctx := context.Background()

	submission := cart(PaymentMethodPending, CartLine{ProductID: tea.ID, Quantity: 1})
	submission.DiningTableID = &table.ID
	order, err := f.h.SubmitOrder(ctx, submission, 1)
	require.NoError(t, err)

	occupied := f.reloadTable(t, table.ID)
	assert.Equal(t, models.TableOccupied, occupied.Status)
	require.NotNil(t, occupied.CurrentOrderID)
	assert.Equal(t, order.ID, *occupied.CurrentOrderID)

	settled, err := f.h.SettleTable(ctx, SettleRequest{TableID: table.ID, PaymentMethod: "qr"}, 1)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, settled.PaymentStatus)
	assert.Equal(t, models.OrderServed, settled.Status)
	assert.Equal(t, "qr", settled.PaymentMethod)

	freed := f.reloadTable(t, table.ID)
	assert.Equal(t, models.TableFree, freed.Status)
	assert.Nil(t, freed.CurrentOrderID)
	assert.Nil(t, freed.WaiterName)
}

func TestPaidSubmissionDoesNotHoldTable(t *testing.T) {
	f := newFixture(t)
	table := f.table(t, "T1", nil)
	tea := f.kitchenProduct(t, "Tea", "2", nil, nil)

	submission := cart("cash", CartLine{ProductID: tea.ID, Quantity: 1})
	submission.DiningTableID = &table.ID
	order, err := f.h.SubmitOrder(context.Background(), submission, 1)
	require.NoError(t, err)
	assert.True(t, order.IsPaid())

	reloaded := f.reloadTable(t, table.ID)
	assert.Equal(t, models.TableFree, reloaded.Status)
	assert.Nil(t, reloaded.CurrentOrderID)
}

func TestSettleWithoutOrderIsIdempotent(t *testing.T) {
	f := newFixture(t)
	table := f.table(t, "T1", nil)
	require.NoError(t, f.db.Model(&models.DiningTable{}).Where("id = ?", table.ID).Update("status", models.TableOccupied).Error)

	for i := 0; i < 2; i++ {
		order, err := f.h.SettleTable(context.Background(), SettleRequest{TableID: table.ID}, 1)
		require.NoError(t, err)
		assert.Nil(t, order)

		reloaded := f.reloadTable(t, table.ID)
		assert.Equal(t, models.TableFree, reloaded.Status)
		assert.Nil(t, reloaded.CurrentOrderID)
	}
	assert.Zero(t, f.count(t, &models.Order{}))
	assert.Zero(t, f.count(t, &models.InventoryWastage{}))
}

func TestSettleAppliesDiscountAndDefaultsToCash(t *testing.T) {
	f := newFixture(t)
	table := f.table(t, "T1", nil)
	f.seatOrder(t, table, "0", "30", "20")

	order, err := f.h.SettleTable(context.Background(), SettleRequest{
		TableID:      table.ID,
		Discount:     ptr(dec("5")),
		DiscountType: ptr(models.DiscountFixed),
	}, 1)
	require.NoError(t, err)
	assertDec(t, "45", order.TotalAmount)
	assert.Equal(t, "cash", order.PaymentMethod)
	assert.Equal(t, models.DiscountFixed, order.DiscountType)
}

func TestSettleUnknownTable(t *testing.T) {
	f := newFixture(t)
	_, err := f.h.SettleTable(context.Background(), SettleRequest{TableID: 42}, 1)
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestMoveOrderToFreeTable(t *testing.T) {
	f := newFixture(t)
	waiter := "Budi"
	source := f.table(t, "T1", &waiter)
	target := f.table(t, "T2", nil)
	seated := f.seatOrder(t, source, "0", "12")

	result, err := f.h.MoveOrder(context.Background(), MoveRequest{SourceTableID: source.ID, TargetTableID: target.ID}, 1)
	require.NoError(t, err)
	assert.False(t, result.Merged)
	require.NotNil(t, result.Order)
	assert.Equal(t, seated.ID, result.Order.ID)
	require.NotNil(t, result.Order.DiningTableID)
	assert.Equal(t, target.ID, *result.Order.DiningTableID)

	movedTo := f.reloadTable(t, target.ID)
	assert.Equal(t, models.TableOccupied, movedTo.Status)
	require.NotNil(t, movedTo.CurrentOrderID)
	assert.Equal(t, seated.ID, *movedTo.CurrentOrderID)
	require.NotNil(t, movedTo.WaiterName)
	assert.Equal(t, "Budi", *movedTo.WaiterName)

	left := f.reloadTable(t, source.ID)
	assert.Equal(t, models.TableFree, left.Status)
	assert.Nil(t, left.CurrentOrderID)
	assert.Nil(t, left.WaiterName)
}

func TestMergeIntoOccupiedTable(t *testing.T) {
	f := newFixture(t)
	a := f.table(t, "A", nil)
	b := f.table(t, "B", nil)
	sourceOrder := f.seatOrder(t, a, "0", "25", "15")
	targetOrder := f.seatOrder(t, b, "10", "60")

	result, err := f.h.MoveOrder(context.Background(), MoveRequest{SourceTableID: a.ID, TargetTableID: b.ID}, 1)
	require.NoError(t, err)
	assert.True(t, result.Merged)
	require.NotNil(t, result.Order)
	assert.Equal(t, targetOrder.ID, result.Order.ID)
	assert.Len(t, result.Order.Items, 3)
	assertDec(t, "90", result.Order.TotalAmount)

	err = f.db.First(&models.Order{}, sourceOrder.ID).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	left := f.reloadTable(t, a.ID)
	assert.Equal(t, models.TableFree, left.Status)
	assert.Nil(t, left.CurrentOrderID)
}

func TestMoveOrderEdgeCases(t *testing.T) {
	f := newFixture(t)
	a := f.table(t, "A", nil)
	b := f.table(t, "B", nil)
	ctx := context.Background()

	_, err := f.h.MoveOrder(ctx, MoveRequest{SourceTableID: a.ID, TargetTableID: a.ID}, 1)
	var verr *utils.ValidationError
	assert.ErrorAs(t, err, &verr)

	result, err := f.h.MoveOrder(ctx, MoveRequest{SourceTableID: a.ID, TargetTableID: b.ID}, 1)
	require.NoError(t, err)
	assert.True(t, result.NoOp)
	assert.Nil(t, result.Order)

	_, err = f.h.MoveOrder(ctx, MoveRequest{SourceTableID: a.ID, TargetTableID: 404}, 1)
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestCancelOrderFreesTableWithoutRestock(t *testing.T) {
	f := newFixture(t)
	beans := f.item(t, 1, "Beans", "10", "1000")
	latte := f.kitchenProduct(t, "Latte", "4", nil, map[int64]string{beans.ID: "100"})
	table := f.table(t, "T1", nil)
	ctx := context.Background()

	submission := cart(PaymentMethodPending, CartLine{ProductID: latte.ID, Quantity: 1})
	submission.DiningTableID = &table.ID
	order, err := f.h.SubmitOrder(ctx, submission, 1)
	require.NoError(t, err)

	cancelled, err := f.h.CancelOrder(ctx, order.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, cancelled.Status)
	assertDec(t, "9.9", f.stock(t, beans.ID))

	reloaded := f.reloadTable(t, table.ID)
	assert.Equal(t, models.TableFree, reloaded.Status)
	assert.Nil(t, reloaded.CurrentOrderID)

	_, err = f.h.CancelOrder(ctx, order.ID, 1)
	assert.ErrorIs(t, err, utils.ErrInvalidTransition)

	_, err = f.h.CancelOrder(ctx, 999, 1)
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestKitchenTransitions(t *testing.T) {
	f := newFixture(t)
	toast := f.kitchenProduct(t, "Toast", "3", nil, nil)
	ctx := context.Background()

	order, err := f.h.SubmitOrder(ctx, cart(PaymentMethodPending, CartLine{ProductID: toast.ID, Quantity: 1}), 1)
	require.NoError(t, err)

	advanced, err := f.h.AdvanceOrder(ctx, order.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPreparing, advanced.Status)

	undone, err := f.h.UndoOrder(ctx, order.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, undone.Status)

	_, err = f.h.DismissOrder(ctx, order.ID, 1)
	assert.ErrorIs(t, err, utils.ErrInvalidTransition)

	_, err = f.h.CancelOrder(ctx, order.ID, 1)
	require.NoError(t, err)
	dismissed, err := f.h.DismissOrder(ctx, order.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelledArchived, dismissed.Status)
}

func TestSubmitOrderPublishesEvent(t *testing.T) {
	f := newFixture(t)
	toast := f.kitchenProduct(t, "Toast", "3", nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := f.rdb.Subscribe(ctx, EVENTS_CHANNEL_PREFIX+EventOrderCreated)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	order, err := f.h.SubmitOrder(ctx, cart(PaymentMethodPending, CartLine{ProductID: toast.ID, Quantity: 1}), 9)
	require.NoError(t, err)

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var event OrderEvent
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
	assert.Equal(t, EventOrderCreated, event.EventType)
	assert.Equal(t, order.OrderNumber, event.OrderNumber)
	assert.Equal(t, int64(9), event.ActorID)
	assert.Equal(t, "3.00", event.TotalAmount)
}

func TestListTablesIncludesCurrentOrder(t *testing.T) {
	f := newFixture(t)
	a := f.table(t, "A", nil)
	f.table(t, "B", nil)
	f.seatOrder(t, a, "0", "8")

	tables, err := f.h.ListTables(context.Background())
	require.NoError(t, err)
	require.Len(t, tables, 2)
	require.NotNil(t, tables[0].CurrentOrder)
	assert.Len(t, tables[0].CurrentOrder.Items, 1)
	assert.Nil(t, tables[1].CurrentOrder)
}

func TestGetOrderNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.h.GetOrder(context.Background(), 1)
	assert.ErrorIs(t, err, utils.ErrNotFound)
}
