package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/metrics"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// WindowCounter increments the request counter of a fixed window and returns the new count
type WindowCounter interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisCounter keeps window counters in Redis
type RedisCounter struct {
	client redis.Cmdable
}

func NewRedisCounter(client redis.Cmdable) *RedisCounter {
	return &RedisCounter{client: client}
}

func (r *RedisCounter) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// RateLimitConfig defines a fixed window limit
type RateLimitConfig struct {
	Window    time.Duration
	Limit     int
	KeyPrefix string
}

// RateLimiter enforces a per-user request budget per window
type RateLimiter struct {
	counter WindowCounter
	config  RateLimitConfig
	now     func() time.Time
}

func NewRateLimiter(counter WindowCounter, config RateLimitConfig) *RateLimiter {
	if config.KeyPrefix == "" {
		config.KeyPrefix = "rate_limit"
	}
	return &RateLimiter{counter: counter, config: config, now: time.Now}
}

// Middleware limits authenticated callers by user id and anonymous ones by client IP.
// A nil limiter or a failing counter lets every request through.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl == nil || rl.counter == nil || rl.config.Limit <= 0 {
			c.Next()
			return
		}

		subject := "ip:" + c.ClientIP()
		if userID := CurrentUserID(c); userID != 0 {
			subject = fmt.Sprintf("user:%d", userID)
		}

		windowStart := rl.now().Truncate(rl.config.Window)
		resetTime := windowStart.Add(rl.config.Window)
		key := fmt.Sprintf("%s:%s:%d", rl.config.KeyPrefix, subject, windowStart.Unix())

		count, err := rl.counter.Increment(c.Request.Context(), key, rl.config.Window)
		if err != nil {
			log.WithError(err).WithField("key", key).Warn("Rate limit check failed, allowing request")
			c.Next()
			return
		}

		remaining := rl.config.Limit - int(count)
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.config.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

		if count > int64(rl.config.Limit) {
			metrics.RateLimitedTotal.Inc()
			log.WithFields(logrus.Fields{
				"subject": subject,
				"path":    c.FullPath(),
			}).Info("Rate limit exceeded")

			c.Header("Retry-After", strconv.Itoa(int(resetTime.Sub(rl.now()).Seconds())+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.NewAPIError(
				models.ErrTooManyRequests,
				fmt.Sprintf("Rate limit of %d requests per %v exceeded", rl.config.Limit, rl.config.Window),
			))
			return
		}

		c.Next()
	}
}
