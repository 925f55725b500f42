package appctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetAndGetString(t *testing.T) {
	ctx := Set(context.Background(), ContextKeyUser, "ana")
	ctx = Set(ctx, ContextKeyCorrelationId, "abc")

	v, ok := GetString(ctx, ContextKeyUser)
	assert.True(t, ok)
	assert.Equal(t, "ana", v)

	v, ok = GetString(ctx, ContextKeyCorrelationId)
	assert.True(t, ok)
	assert.Equal(t, "abc", v)

	_, ok = GetString(context.Background(), ContextKeyClientIP)
	assert.False(t, ok, "missing key")

	_, ok = GetString(Set(ctx, ContextKeyClientIP, ""), ContextKeyClientIP)
	assert.False(t, ok, "empty value")
}

func TestKeysDoNotCollideWithPlainStrings(t *testing.T) {
	ctx := context.WithValue(context.Background(), "usuario", "intruso")
	_, ok := GetString(ctx, ContextKeyUser)
	assert.False(t, ok)
	assert.Equal(t, "almacen.usuario", ContextKeyUser.String())
}
