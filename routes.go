package main

import (
	"net/http"

	"github.com/almacen/inventory_backend/middlewares"
	"github.com/almacen/inventory_backend/models"
	"github.com/almacen/inventory_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	serviceName    = "almacen-inventory-backend"
	serviceVersion = "1.0.0"
)

// App carries the dependencies handlers need. Fields are filled in before the
// readiness gate opens, so handlers never see them half-initialised.
type App struct {
	store   *models.Store
	objects utils.ObjectStore
	logger  *logrus.Logger
}

type productKind struct {
	path string
	kind models.ProductType
}

var productKinds = []productKind{
	{"libros", models.ProductTypeBook},
	{"cafes", models.ProductTypeCoffee},
	{"rollos", models.ProductTypeRoll},
	{"articulos", models.ProductTypeItem},
}

func registerValidators() error {
	if err := utils.RegisterEnumValidation("tipo_producto", models.ProductTypeValues()...); err != nil {
		return err
	}
	return utils.RegisterEnumValidation("estado_stock", models.StockStatusValues()...)
}

// registerRoutes mounts every endpoint. Probe routes stay outside the readiness gate.
func registerRoutes(r *gin.Engine, app *App, ready *middlewares.Readiness) {
	r.GET("/", app.indexHandler())
	r.GET("/healthz", healthHandler(ready))

	for _, k := range productKinds {
		g := r.Group("/" + k.path)
		g.GET("", app.listProductsHandler(k.kind))
		g.GET("/:id", app.getProductHandler(k.kind))
		g.PUT("/:id", app.updateProductHandler(k.kind))
		g.DELETE("/:id", app.deleteProductHandler(k.kind))
	}
	r.POST("/libros", createProductHandler[models.NewBook](app, models.ProductTypeBook))
	r.POST("/cafes", createProductHandler[models.NewCoffee](app, models.ProductTypeCoffee))
	r.POST("/rollos", createProductHandler[models.NewRoll](app, models.ProductTypeRoll))
	r.POST("/articulos", createProductHandler[models.NewItem](app, models.ProductTypeItem))

	r.GET("/productos", app.listProductsHandler(""))
	r.GET("/productos/:id", app.getProductHandler(""))

	r.POST("/ventas", app.recordSaleHandler())
	r.GET("/ventas", app.listSalesHandler())
	r.GET("/ventas/exportar", app.exportSalesHandler())

	r.GET("/historial/:id", app.historyHandler())
	r.GET("/agotados", app.outOfStockHandler())

	r.GET("/clientes", app.listClientsHandler())
	r.POST("/clientes", app.createClientHandler())
	r.GET("/clientes/:id", app.getClientHandler())
	r.PUT("/clientes/:id", app.updateClientHandler())
	r.DELETE("/clientes/:id", app.deleteClientHandler())

	r.GET("/cobros", app.listCollectionsHandler())
	r.POST("/cobros", app.createCollectionHandler())
	r.DELETE("/cobros/:id", app.deleteCollectionHandler())

	r.GET("/estadisticas/ventas", app.salesStatsHandler())
	r.GET("/estadisticas/inventario", app.inventoryStatsHandler())

	r.POST("/uploads/imagen", app.uploadImageHandler())

	r.NoRoute(customNotFoundHandler)
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "Ruta no encontrada"})
}

func healthHandler(ready *middlewares.Readiness) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ready.IsReady() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "starting"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func (a *App) indexHandler() gin.HandlerFunc {
	endpoints := []string{"/productos", "/ventas", "/ventas/exportar", "/historial/:id", "/agotados",
		"/clientes", "/cobros", "/estadisticas/ventas", "/estadisticas/inventario", "/uploads/imagen"}
	for _, k := range productKinds {
		endpoints = append(endpoints, "/"+k.path)
	}
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":      serviceName,
			"version":   serviceVersion,
			"status":    "ok",
			"endpoints": endpoints,
		})
	}
}
