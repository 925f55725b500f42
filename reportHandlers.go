package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (a *App) historyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := paramId(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}
		t, err := queryProductType(c)
		if err != nil {
			respondError(c, err)
			return
		}
		history, err := a.store.ListHistory(c.Request.Context(), id, t)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, history)
	}
}

func (a *App) outOfStockHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		t, err := queryProductType(c)
		if err != nil {
			respondError(c, err)
			return
		}
		rows, err := a.store.ListOutOfStock(c.Request.Context(), t)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}

func (a *App) salesStatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		f, err := saleFilterFromQuery(c)
		if err != nil {
			respondError(c, err)
			return
		}
		stats, err := a.store.SalesStats(c.Request.Context(), f)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func (a *App) inventoryStatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		t, err := queryProductType(c)
		if err != nil {
			respondError(c, err)
			return
		}
		stats, err := a.store.InventoryStats(c.Request.Context(), t)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}
