package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/testhelpers"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryCounter struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func (m *memoryCounter) Increment(_ context.Context, key string, _ time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	if m.counts == nil {
		m.counts = map[string]int64{}
	}
	m.counts[key]++
	return m.counts[key], nil
}

func limitedRouter(limiter *RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/write", limiter.Middleware(), func(c *gin.Context) { c.Status(http.StatusCreated) })
	return router
}

func post(router http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/write", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimiterBlocksAfterLimit(t *testing.T) {
	limiter := NewRateLimiter(&memoryCounter{}, RateLimitConfig{Window: time.Minute, Limit: 2})
	limiter.now = func() time.Time { return time.Date(2026, 1, 1, 12, 0, 30, 0, time.UTC) }
	router := limitedRouter(limiter)

	assert.Equal(t, http.StatusCreated, post(router, "10.0.0.1:1000").Code)
	w := post(router, "10.0.0.1:1000")
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = post(router, "10.0.0.1:1000")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "TOO_MANY_REQUESTS")
	assert.Equal(t, "31", w.Header().Get("Retry-After"))

	// Another client has its own budget
	assert.Equal(t, http.StatusCreated, post(router, "10.0.0.2:1000").Code)
}

func TestRateLimiterFailsOpen(t *testing.T) {
	limiter := NewRateLimiter(&memoryCounter{err: errors.New("connection refused")}, RateLimitConfig{Window: time.Minute, Limit: 1})
	router := limitedRouter(limiter)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusCreated, post(router, "10.0.0.1:1000").Code)
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	var limiter *RateLimiter
	router := limitedRouter(limiter)
	assert.Equal(t, http.StatusCreated, post(router, "10.0.0.1:1000").Code)
}

func TestRedisCounter(t *testing.T) {
	client := testhelpers.SetupRedis(t)
	counter := NewRedisCounter(client)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		got, err := counter.Increment(ctx, "rate_limit:test", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	ttl, err := client.TTL(ctx, "rate_limit:test").Result()
	require.NoError(t, err)
	assert.True(t, ttl > 0 && ttl <= time.Minute)
}
