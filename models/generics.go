package models

import (
	"context"
	"errors"

	"github.com/almacen/inventory_backend/utils"
	"gorm.io/gorm"
)

// GetResource loads one row by id; a missing row becomes a NotFound with label in the message.
func GetResource[T any](ctx context.Context, db *gorm.DB, id int, label string) (*T, error) {
	var v T
	if err := db.WithContext(ctx).Where("id = ?", id).Take(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("%s no encontrado", label)
		}
		return nil, err
	}
	return &v, nil
}

// ListResource returns every row of T in the given order, never nil.
func ListResource[T any](ctx context.Context, db *gorm.DB, order string, where ...func(*gorm.DB) *gorm.DB) ([]T, error) {
	q := db.WithContext(ctx).Order(order)
	for _, w := range where {
		q = w(q)
	}
	results := []T{}
	if err := q.Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func notFoundOr(err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, utils.ErrorRecordNotFound) {
		return utils.NotFound("%s", message)
	}
	return err
}

func translateWriteError(err error, duplicateMessage string) error {
	if utils.IsDuplicateKeyError(err) {
		return utils.DuplicateKey("%s", duplicateMessage)
	}
	return err
}
