package middlewares

import (
	"fmt"
	"net/http"

	"github.com/almacen/inventory_backend/config"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ErrorLogger logs the errors handlers attached with c.Error, one line per request.
func ErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			config.LoggerFromContext(c.Request.Context(), logger).WithFields(logrus.Fields{
				"method": c.Request.Method,
				"path":   c.FullPath(),
				"status": c.Writer.Status(),
			}).Error(c.Errors.String())
		}
	}
}

func Recovery(logger *logrus.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		config.LoggerFromContext(c.Request.Context(), logger).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		}).Error(fmt.Sprintf("panic recovered: %v", recovered))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Error interno del servidor"})
	})
}
