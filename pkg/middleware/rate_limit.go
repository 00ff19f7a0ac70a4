package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type RateLimiterConfig struct {
	RedisClient *redis.Client
	Limit       int
	Window      time.Duration
	KeyPrefix   string
	Extractor   func(c *gin.Context) string
}

// ClientIP keys requests by the first X-Forwarded-For hop or the remote address.
func ClientIP(c *gin.Context) string {
	if xff := c.Request.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	return c.Request.RemoteAddr
}

// window is the state of one caller's counter after a hit.
type window struct {
	hits    int64
	resetIn int
}

// hit counts one request against key. The counter starts its expiry on the
// first hit of a window.
func hit(ctx context.Context, client *redis.Client, key string, span time.Duration) (window, error) {
	hits, err := client.Incr(ctx, key).Result()
	if err != nil {
		return window{}, err
	}
	if hits == 1 {
		client.Expire(ctx, key, span)
	}

	ttl, _ := client.TTL(ctx, key).Result()
	return window{hits: hits, resetIn: max(int(ttl.Seconds()), 0)}, nil
}

func (w window) remaining(limit int) int {
	return max(limit-int(w.hits), 0)
}

func setRateHeaders(c *gin.Context, limit int, w window) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(w.remaining(limit)))
	c.Header("X-RateLimit-Reset", strconv.Itoa(w.resetIn))
}

// NewRateLimiter is a fixed window counter in Redis. Requests pass through
// when Redis is unavailable.
func NewRateLimiter(cfg RateLimiterConfig) gin.HandlerFunc {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "rl:"
	}
	if cfg.Extractor == nil {
		cfg.Extractor = ClientIP
	}

	return func(c *gin.Context) {
		id := cfg.Extractor(c)
		if id == "" {
			id = "anonymous"
		}

		w, err := hit(c.Request.Context(), cfg.RedisClient, cfg.KeyPrefix+id, cfg.Window)
		if err != nil {
			c.Next()
			return
		}
		setRateHeaders(c, cfg.Limit, w)

		if w.hits > int64(cfg.Limit) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "RATE_LIMITED",
					"message": "rate limit exceeded",
					"details": gin.H{
						"rate_limit":        cfg.Limit,
						"rate_limit_window": cfg.Window.String(),
						"retry_after_sec":   w.resetIn,
					},
				},
			})
			return
		}
		c.Next()
	}
}
