package models

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// HistoryEntry is append-only; rows leave the table only with their product.
type HistoryEntry struct {
	ID          int         `gorm:"primaryKey" json:"id"`
	ProductId   int         `gorm:"column:producto_id;index;not null" json:"producto_id"`
	ProductType ProductType `gorm:"column:tipo_producto;type:varchar(20);not null" json:"tipo_producto"`
	Action      string      `gorm:"column:accion;size:100;not null" json:"accion"`
	Details     string      `gorm:"column:detalles;type:text" json:"detalles,omitempty"`
	Before      string      `gorm:"column:antes;type:text" json:"antes,omitempty"`
	After       string      `gorm:"column:despues;type:text" json:"despues,omitempty"`
	User        string      `gorm:"column:usuario;size:100" json:"usuario"`
	CreatedAt   time.Time   `gorm:"column:fecha;autoCreateTime" json:"fecha"`
}

func (HistoryEntry) TableName() string {
	return "historial"
}

func snapshot(v interface{}) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// createHistory must run on the transaction that performs the change it records.
func createHistory(tx *gorm.DB,
	action string,
	product *Product,
	before interface{},
	after interface{},
	details string,
	actor string) error {

	b, err := snapshot(before)
	if err != nil {
		return err
	}
	a, err := snapshot(after)
	if err != nil {
		return err
	}
	history := HistoryEntry{
		ProductId:   product.ID,
		ProductType: product.ProductType,
		Action:      action,
		Details:     details,
		Before:      b,
		After:       a,
		User:        actor,
	}
	return tx.Create(&history).Error
}

// ListHistory returns the newest entries first. t narrows the lookup to one product kind.
func (s *Store) ListHistory(ctx context.Context, productId int, t ProductType) ([]HistoryEntry, error) {
	return ListResource[HistoryEntry](ctx, s.db, "fecha DESC, id DESC", func(q *gorm.DB) *gorm.DB {
		q = q.Where("producto_id = ?", productId)
		if t != "" {
			q = q.Where("tipo_producto = ?", t)
		}
		return q
	})
}
