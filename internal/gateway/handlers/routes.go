package handlers

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the POS API on an already authenticated group.
func RegisterRoutes(api *gin.RouterGroup, pos *POSHTTPHandler, kitchen *KitchenHTTPHandler, inventory *InventoryHTTPHandler) {
	posGroup := api.Group("/pos")
	{
		posGroup.POST("/orders", pos.SubmitOrder)
		posGroup.GET("/orders/held", pos.ListHeldOrders)
		posGroup.GET("/orders/:id", pos.GetOrder)
		posGroup.POST("/orders/:id/cancel", pos.CancelOrder)
	}

	tables := api.Group("/tables")
	{
		tables.GET("", pos.ListTables)
		tables.POST("/:id/settle", pos.SettleTable)
		tables.POST("/:id/move", pos.MoveOrder)
	}

	kitchenGroup := api.Group("/kitchen")
	{
		kitchenGroup.GET("/orders", kitchen.ActiveOrders)
		kitchenGroup.GET("/history", kitchen.History)
		kitchenGroup.PUT("/orders/:id", kitchen.UpdateStatus)
		kitchenGroup.POST("/orders/:id/dismiss", kitchen.Dismiss)
	}

	inventoryGroup := api.Group("/inventory")
	{
		inventoryGroup.POST("/wastage", inventory.ReportWastage)
		inventoryGroup.GET("/wastage", inventory.ListWastage)
		inventoryGroup.GET("/low-stock", inventory.ListLowStock)
	}
}
