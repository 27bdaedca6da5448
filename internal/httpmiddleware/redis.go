package httpmiddleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisFixedWindow is a per-IP fixed-window rate limiter shared across
// instances. Redis being down fails open so attendance is never blocked by
// the limiter's own backend.
type RedisFixedWindow struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

// NewRedisFixedWindow creates a limiter allowing limit requests per window.
func NewRedisFixedWindow(client *redis.Client, limit int, window time.Duration) *RedisFixedWindow {
	if window <= 0 {
		window = time.Minute
	}
	return &RedisFixedWindow{client: client, limit: limit, window: window, prefix: "ratelimit:"}
}

// GinMiddleware returns a gin handler enforcing per-IP limits.
func (l *RedisFixedWindow) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		key := l.prefix + ip

		count, err := l.client.Incr(c.Request.Context(), key).Result()
		if err != nil {
			log.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
			c.Next()
			return
		}
		if count == 1 {
			l.client.Expire(c.Request.Context(), key, l.window)
		}
		if count > int64(l.limit) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit"})
			return
		}
		c.Next()
	}
}
