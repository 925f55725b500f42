package utils

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"bad request", BadRequest("cantidad inválida"), KindBadRequest},
		{"wrapped not found", fmt.Errorf("get: %w", NotFound("producto %d no encontrado", 3)), KindNotFound},
		{"gorm not found", gorm.ErrRecordNotFound, KindNotFound},
		{"sentinel not found", ErrorRecordNotFound, KindNotFound},
		{"stock", InsufficientStock("Stock insuficiente"), KindInsufficientStock},
		{"gorm duplicate", gorm.ErrDuplicatedKey, KindDuplicateKey},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'R-1'"}, KindDuplicateKey},
		{"sqlite duplicate", errors.New("constraint failed: UNIQUE constraint failed: productos.codigo (2067)"), KindDuplicateKey},
		{"other", errors.New("connection refused"), KindInternal},
		{"internal", Internal(errors.New("boom")), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
	assert.Equal(t, ErrorKind(""), KindOf(nil))
}

func TestAppErrorIsMatchesSentinelByKind(t *testing.T) {
	err := fmt.Errorf("sale: %w", InsufficientStock("disponible %s", "5"))

	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.NotErrorIs(t, err, ErrBadRequest)
	assert.Equal(t, "sale: disponible 5", err.Error())
}

func TestInternalKeepsAppErrors(t *testing.T) {
	orig := NotFound("cliente no encontrado")
	assert.Same(t, orig, Internal(orig))
	assert.Nil(t, Internal(nil))

	raw := errors.New("disk full")
	wrapped := Internal(raw)
	assert.ErrorIs(t, wrapped, raw)
	assert.Equal(t, "disk full", wrapped.Error())
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(KindBadRequest))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(KindInsufficientStock))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(KindDuplicateKey))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(KindNotFound))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(KindInternal))
}
