package utils

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhoneNumber(t *testing.T) {
	got, err := NormalizePhoneNumber("987 654 321", "PE")
	require.NoError(t, err)
	assert.Equal(t, "+51987654321", got)

	got, err = NormalizePhoneNumber("+1 650 253 0000", "PE")
	require.NoError(t, err)
	assert.Equal(t, "+16502530000", got)

	_, err = NormalizePhoneNumber("12", "PE")
	assert.Error(t, err)

	_, err = NormalizePhoneNumber("no es un número", "PE")
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("")
	require.NoError(t, err)
	assert.Nil(t, d)

	d, err = ParseDate("2024-03-15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), *d)

	d, err = ParseDate("2024-03-15T10:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, 10, d.Hour())

	_, err = ParseDate("15/03/2024")
	assert.Error(t, err)
}

func TestTrimPtr(t *testing.T) {
	assert.Nil(t, TrimPtr(nil))
	blank := "   "
	assert.Nil(t, TrimPtr(&blank))
	code := " R-01 "
	assert.Equal(t, "R-01", *TrimPtr(&code))
}

func TestBuildObjectAccessURL(t *testing.T) {
	t.Setenv("GCS_BUCKET", "almacen-img")
	t.Setenv("STORAGE_ACCESS_BASE_URL", "")
	assert.Equal(t, "https://storage.googleapis.com/almacen-img/productos/a.jpg", BuildObjectAccessURL("productos/a.jpg"))

	t.Setenv("STORAGE_ACCESS_BASE_URL", "https://cdn.example.com/")
	assert.Equal(t, "https://cdn.example.com/productos/a.jpg", BuildObjectAccessURL("productos/a.jpg"))
}

func TestActorOrDefault(t *testing.T) {
	ctx := SetUserNameInContext(context.Background(), "maria")
	assert.Equal(t, "juan", ActorOrDefault(ctx, "juan"))
	assert.Equal(t, "maria", ActorOrDefault(ctx, ""))
	assert.Equal(t, "sistema", ActorOrDefault(context.Background(), ""))
}
