package middlewares

import (
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

// Readiness flips once the database is connected and migrated. The HTTP server
// starts listening before that so the platform health probe sees an open port.
type Readiness struct {
	ready atomic.Bool
}

func (r *Readiness) SetReady(ready bool) {
	r.ready.Store(ready)
}

func (r *Readiness) IsReady() bool {
	return r.ready.Load()
}

// Gate answers 503 for every route except the given probe paths until ready.
func (r *Readiness) Gate(probePaths ...string) gin.HandlerFunc {
	open := make(map[string]bool, len(probePaths))
	for _, p := range probePaths {
		open[p] = true
	}
	return func(c *gin.Context) {
		if open[c.Request.URL.Path] || r.IsReady() {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Servicio no disponible, intente nuevamente"})
	}
}
