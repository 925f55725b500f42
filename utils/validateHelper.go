package utils

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// RegisterEnumValidation adds a binding tag that accepts only the allowed string values.
func RegisterEnumValidation(tag string, allowed ...string) error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin validator engine is not go-playground/validator")
	}
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	return v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		if fl.Field().Kind() != reflect.String {
			return false
		}
		_, ok := set[fl.Field().String()]
		return ok
	})
}

// ValidateUnique fails with DuplicateKey when another row of T already has value in column.
func ValidateUnique[T any](ctx context.Context, db *gorm.DB, column string, value interface{}, exceptId interface{}) error {
	var count int64
	var err error
	if exceptId == nil || reflect.ValueOf(exceptId).IsZero() {
		count, err = ResourceCountWhere[T](ctx, db, column+" = ?", value)
	} else {
		count, err = ResourceCountWhere[T](ctx, db, column+" = ? AND id <> ?", value, exceptId)
	}
	if err != nil {
		return err
	}
	if count > 0 {
		return DuplicateKey("%s duplicado: %v", column, value)
	}
	return nil
}

// ValidateResourceId returns NotFound when no row of T has the id.
func ValidateResourceId[T any](ctx context.Context, db *gorm.DB, id interface{}) error {
	count, err := ResourceCountWhere[T](ctx, db, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return fmt.Errorf("%s %v: %w", reflect.TypeOf((*T)(nil)).Elem().Name(), id, ErrorRecordNotFound)
	}
	return nil
}

func ResourceCountWhere[T any](ctx context.Context, db *gorm.DB, condition string, value ...interface{}) (int64, error) {
	var model T
	var count int64
	if err := db.WithContext(ctx).Model(&model).Where(condition, value...).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
