package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Aidin1998/crowdfund/internal/config"
)

func TestRedisLimiterSlidingWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	now := time.Unix(1_700_000_000, 0)
	l := NewRedisLimiter(client, 3, time.Minute)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, "login:1.2.3.4")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "request %d", i)
		assert.Equal(t, 2-i, d.Remaining)
		now = now.Add(10 * time.Second)
	}

	d, err := l.Allow(ctx, "login:1.2.3.4")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	// oldest entry leaves the window 60s after it was recorded
	assert.Equal(t, 30*time.Second, d.RetryAfter)

	other, err := l.Allow(ctx, "login:5.6.7.8")
	require.NoError(t, err)
	assert.True(t, other.Allowed, "keys are independent")

	now = now.Add(31 * time.Second)
	d, err = l.Allow(ctx, "login:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRedisLimiterReportsBackendErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	_, err := NewRedisLimiter(client, 3, time.Minute).Allow(context.Background(), "k")
	assert.Error(t, err)
}

func TestLocalLimiter(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewLocalLimiter(2, time.Minute)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := l.Allow(ctx, "a")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	d, err := l.Allow(ctx, "a")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.InDelta(t, float64(30*time.Second), float64(d.RetryAfter), float64(time.Millisecond))

	d, err = l.Allow(ctx, "b")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	now = now.Add(31 * time.Second)
	d, err = l.Allow(ctx, "a")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestNewSelectsBackend(t *testing.T) {
	auth := config.AuthConfig{RateLimitPerMin: 5, RateLimitWindow: time.Minute}

	assert.IsType(t, &LocalLimiter{}, New(config.RedisConfig{}, auth, zap.NewNop()))
	assert.IsType(t, &RedisLimiter{}, New(config.RedisConfig{Address: "localhost:6379"}, auth, zap.NewNop()))
	assert.Nil(t, New(config.RedisConfig{}, config.AuthConfig{}, zap.NewNop()))
}

func TestMiddlewareReturnsProblem(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/login", Middleware(NewLocalLimiter(1, time.Minute), zap.NewNop()), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), `"status":429`)
}
