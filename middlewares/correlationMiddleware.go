package middlewares

import (
	"strings"

	"github.com/almacen/inventory_backend/appctx"
	"github.com/almacen/inventory_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const CorrelationHeader = "x-correlation-id"

// CorrelationMiddleware reuses the caller's x-correlation-id or generates one, stores it
// in the request context and echoes it on the response.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := strings.TrimSpace(c.GetHeader(CorrelationHeader))
		if cid == "" || len(cid) > 64 {
			cid = uuid.NewString()
		}
		ctx := utils.SetCorrelationIdInContext(c.Request.Context(), cid)
		ctx = appctx.Set(ctx, appctx.ContextKeyClientIP, c.ClientIP())
		c.Request = c.Request.WithContext(ctx)
		c.Header(CorrelationHeader, cid)
		c.Next()
	}
}
