package main

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/almacen/inventory_backend/config"
	"github.com/almacen/inventory_backend/models"
	"github.com/almacen/inventory_backend/models/reports"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func (a *App) recordSaleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var in models.NewSale
		if err := c.ShouldBindJSON(&in); err != nil {
			respondBindError(c, err)
			return
		}
		res, err := a.store.RecordSale(c.Request.Context(), in)
		if err != nil {
			respondError(c, err)
			return
		}
		config.LoggerFromContext(c.Request.Context(), a.logger).WithFields(logrus.Fields{
			"venta_id":    res.Sale.ID,
			"producto_id": res.Sale.ProductId,
			"cantidad":    res.Sale.Quantity.String(),
			"total":       res.Total.StringFixed(2),
		}).Info("sale recorded")
		c.JSON(http.StatusOK, gin.H{
			"message":           "Venta registrada exitosamente",
			"venta":             res.Sale,
			"cantidad_restante": res.RemainingQuantity,
			"estado":            res.Status,
			"total":             res.Total,
		})
	}
}

func (a *App) listSalesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		f, err := saleFilterFromQuery(c)
		if err != nil {
			respondError(c, err)
			return
		}
		sales, err := a.store.ListSales(c.Request.Context(), f)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, sales)
	}
}

// exportSalesHandler renders the filtered sales into memory first so a failure
// still produces a JSON error instead of a truncated workbook.
func (a *App) exportSalesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		f, err := saleFilterFromQuery(c)
		if err != nil {
			respondError(c, err)
			return
		}
		sales, err := a.store.ListSales(c.Request.Context(), f)
		if err != nil {
			respondError(c, err)
			return
		}
		var buf bytes.Buffer
		if err := reports.WriteSalesExcel(&buf, sales); err != nil {
			respondError(c, err)
			return
		}
		filename := fmt.Sprintf("ventas_%s.xlsx", time.Now().Format("20060102_150405"))
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
		c.Data(http.StatusOK, reports.ExcelContentType, buf.Bytes())
	}
}
