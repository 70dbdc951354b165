package app

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimit allows limit requests per client IP per window for one route
// group. Redis errors let the request through.
func RateLimit(rdb *redis.Client, log *slog.Logger, name string, limit int64, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := fmt.Sprintf("ratelimit:%s:%s", name, c.ClientIP())

		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			log.Warn("rate limit unavailable", "key", key, "err", err)
			c.Next()
			return
		}
		if count == 1 {
			rdb.Expire(ctx, key, window)
		}
		if count > limit {
			c.Header("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
