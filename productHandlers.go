package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/almacen/inventory_backend/models"
	"github.com/almacen/inventory_backend/utils"
	"github.com/gin-gonic/gin"
)

func (a *App) listProductsHandler(kind models.ProductType) gin.HandlerFunc {
	return func(c *gin.Context) {
		f := models.ProductFilter{Type: kind, Query: c.Query("q")}
		if kind == "" {
			t, err := queryProductType(c)
			if err != nil {
				respondError(c, err)
				return
			}
			f.Type = t
		}
		if v := strings.TrimSpace(c.Query("estado")); v != "" {
			status := models.StockStatus(v)
			if !status.IsValid() {
				respondError(c, utils.BadRequest("estado inválido: %q", v))
				return
			}
			f.Status = status
		}
		products, err := a.store.ListProducts(c.Request.Context(), f)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, products)
	}
}

func (a *App) getProductHandler(kind models.ProductType) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := paramId(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}
		p, err := a.store.GetProduct(c.Request.Context(), id, kind)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// createProductHandler binds the kind-specific body T and stores the product it builds.
func createProductHandler[T models.ProductInput](a *App, kind models.ProductType) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in T
		if err := c.ShouldBindJSON(&in); err != nil {
			respondBindError(c, err)
			return
		}
		p, err := in.ToProduct()
		if err != nil {
			respondError(c, err)
			return
		}
		if p.ProductType != kind {
			respondError(c, utils.BadRequest("tipo_producto %q no corresponde a esta ruta", p.ProductType))
			return
		}
		if err := a.store.CreateProduct(c.Request.Context(), p, p.RegisteredBy); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"message":  fmt.Sprintf("%s registrado exitosamente", kind.Label()),
			"id":       p.ID,
			"producto": p,
		})
	}
}

func (a *App) updateProductHandler(kind models.ProductType) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := paramId(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}
		var in models.ProductUpdate
		if err := c.ShouldBindJSON(&in); err != nil {
			respondBindError(c, err)
			return
		}
		p, err := a.store.UpdateProduct(c.Request.Context(), id, kind, in, "")
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message":  fmt.Sprintf("%s actualizado exitosamente", kind.Label()),
			"producto": p,
		})
	}
}

func (a *App) deleteProductHandler(kind models.ProductType) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := paramId(c, "id")
		if err != nil {
			respondError(c, err)
			return
		}
		if err := a.store.DeleteProduct(c.Request.Context(), id, kind, ""); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("%s eliminado exitosamente", kind.Label())})
	}
}
