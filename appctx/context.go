package appctx

import "context"

// ContextKey types request-scoped values. It lives in its own package so config and
// utils can both read them without importing each other.
type ContextKey string

func (c ContextKey) String() string { return "almacen." + string(c) }

var (
	// ContextKeyUser is the operator named by the x-usuario header.
	ContextKeyUser          = ContextKey("usuario")
	ContextKeyCorrelationId = ContextKey("correlation_id")
	ContextKeyClientIP      = ContextKey("client_ip")
)

// GetString reports false for a missing key and for a value of another type.
func GetString(ctx context.Context, key ContextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func Set(ctx context.Context, key ContextKey, value string) context.Context {
	return context.WithValue(ctx, key, value)
}
