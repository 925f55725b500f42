package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/almacen/inventory_backend/models"
	"github.com/almacen/inventory_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// respondError maps an error kind to its status and writes {"error": message}.
// Internal errors are attached to the context so the error logger records them.
func respondError(c *gin.Context, err error) {
	kind := utils.KindOf(err)
	status := utils.HTTPStatus(kind)
	if kind == utils.KindInternal {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// respondBindError reports malformed bodies and failed binding tags as 400.
func respondBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":   "Datos inválidos",
			"detalle": utils.ProcessValidationErrors(err),
		})
		return
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "JSON inválido: " + err.Error()})
}

func paramId(c *gin.Context, name string) (int, error) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		return 0, utils.BadRequest("%s inválido: %q", name, c.Param(name))
	}
	return id, nil
}

func queryProductType(c *gin.Context) (models.ProductType, error) {
	t, err := models.ParseProductType(strings.TrimSpace(c.Query("tipo")))
	if err != nil {
		return "", utils.BadRequest("%s", err.Error())
	}
	return t, nil
}

func queryInt(c *gin.Context, name string) (int, error) {
	v := strings.TrimSpace(c.Query(name))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, utils.BadRequest("%s inválido: %q", name, v)
	}
	return n, nil
}

func queryDate(c *gin.Context, name string) (*time.Time, error) {
	d, err := utils.ParseDate(c.Query(name))
	if err != nil {
		return nil, utils.BadRequest("%s: %s", name, err.Error())
	}
	return d, nil
}

// saleFilterFromQuery reads ?tipo, ?producto_id, ?desde and ?hasta.
func saleFilterFromQuery(c *gin.Context) (models.SaleFilter, error) {
	var f models.SaleFilter
	var err error
	if f.Type, err = queryProductType(c); err != nil {
		return f, err
	}
	if f.ProductId, err = queryInt(c, "producto_id"); err != nil {
		return f, err
	}
	if f.From, err = queryDate(c, "desde"); err != nil {
		return f, err
	}
	if f.To, err = queryDate(c, "hasta"); err != nil {
		return f, err
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return f, utils.BadRequest("hasta no puede ser anterior a desde")
	}
	return f, nil
}
