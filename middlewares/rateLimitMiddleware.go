package middlewares

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/almacen/inventory_backend/config"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RateLimiter is a fixed-window counter per client IP kept in Redis. The client may be
// attached after the server has started; until then every request passes.
type RateLimiter struct {
	client atomic.Pointer[redis.Client]
	limit  int64
	window time.Duration
	logger *logrus.Logger

	count func(ctx context.Context, key string) (int64, error)
}

func NewRateLimiter(client *redis.Client, limit int64, window time.Duration, logger *logrus.Logger) *RateLimiter {
	rl := &RateLimiter{
		limit:  limit,
		window: window,
		logger: logger,
	}
	rl.SetClient(client)
	rl.count = rl.redisCount
	return rl
}

func (rl *RateLimiter) SetClient(client *redis.Client) {
	rl.client.Store(client)
}

// redisCount increments the window counter and starts its expiry on the first hit.
func (rl *RateLimiter) redisCount(ctx context.Context, key string) (int64, error) {
	client := rl.client.Load()
	if client == nil {
		return 0, nil
	}
	pipe := client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, rl.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// Middleware lets requests through when Redis is unreachable.
func (rl *RateLimiter) Middleware(c *gin.Context) {
	key := "rateLimit:" + c.ClientIP()
	count, err := rl.count(c.Request.Context(), key)
	if err != nil {
		config.LogError(rl.logger, "RateLimiter", "Middleware", "count request", key, err)
		c.Next()
		return
	}
	if count > rl.limit {
		c.Header("Retry-After", fmt.Sprintf("%d", int(rl.window.Seconds())))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Demasiadas solicitudes. Intente de nuevo en %d segundos", int(rl.window.Seconds())),
		})
		return
	}
	c.Next()
}
