package models

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// OutOfStock logs the sale that emptied a product.
type OutOfStock struct {
	ID          int         `gorm:"primaryKey" json:"id"`
	ProductId   int         `gorm:"column:producto_id;index;not null" json:"producto_id"`
	ProductType ProductType `gorm:"column:tipo_producto;type:varchar(20);not null" json:"tipo_producto"`
	Code        *string     `gorm:"column:codigo;size:100" json:"codigo"`
	Name        string      `gorm:"column:nombre;size:255" json:"nombre"`
	SaleId      int         `gorm:"column:venta_id;index" json:"venta_id"`
	CreatedAt   time.Time   `gorm:"column:fecha;autoCreateTime" json:"fecha"`
}

func (OutOfStock) TableName() string {
	return "agotados"
}

func (s *Store) ListOutOfStock(ctx context.Context, t ProductType) ([]OutOfStock, error) {
	return ListResource[OutOfStock](ctx, s.db, "fecha DESC, id DESC", func(q *gorm.DB) *gorm.DB {
		if t != "" {
			q = q.Where("tipo_producto = ?", t)
		}
		return q
	})
}
