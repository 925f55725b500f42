package utils

import (
	"context"

	"github.com/almacen/inventory_backend/appctx"
)

func GetUserNameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, appctx.ContextKeyUser)
}

func SetUserNameInContext(ctx context.Context, userName string) context.Context {
	return appctx.Set(ctx, appctx.ContextKeyUser, userName)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, appctx.ContextKeyCorrelationId)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, appctx.ContextKeyCorrelationId, correlationId)
}

// ActorOrDefault prefers the explicit actor from the request body, then the x-usuario header, then "sistema".
func ActorOrDefault(ctx context.Context, actor string) string {
	if actor != "" {
		return actor
	}
	if name, ok := GetUserNameFromContext(ctx); ok && name != "" {
		return name
	}
	return "sistema"
}
