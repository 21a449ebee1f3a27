package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/book-panel/internal/config"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func request(e *echo.Echo, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.7")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func Test_RedisCache_HitMissAndInvalidate(t *testing.T) {
	// setup
	mr, rdb := newRedis(t)
	cfg := config.CacheConfig{Enabled: true, Methods: "GET", TTL: time.Minute, Prefix: "bp"}
	calls := 0
	e := echo.New()
	api := e.Group("/api", NewRedisCache(cfg, rdb, zap.NewNop()))
	api.GET("/books", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, map[string]int{"calls": calls})
	})
	api.POST("/books", func(c echo.Context) error { return c.NoContent(http.StatusCreated) })

	// first read is served by the handler and stored
	rec := request(e, http.MethodGet, "/api/books?page=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Len(t, mr.Keys(), 1)

	// second read replays the stored response
	rec = request(e, http.MethodGet, "/api/books?page=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"calls":1}`, rec.Body.String())
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON)
	assert.Equal(t, 1, calls)

	// a successful write drops every cached entry
	rec = request(e, http.MethodPost, "/api/books")
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, mr.Keys())

	rec = request(e, http.MethodGet, "/api/books?page=1")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"calls":2}`, rec.Body.String())
	assert.Equal(t, 2, calls)
}

func Test_RedisCache_FailedWriteKeepsEntries(t *testing.T) {
	mr, rdb := newRedis(t)
	cfg := config.CacheConfig{Enabled: true, Methods: "GET", TTL: time.Minute, Prefix: "bp"}
	e := echo.New()
	api := e.Group("/api", NewRedisCache(cfg, rdb, zap.NewNop()))
	api.GET("/books", okHandler)
	api.POST("/books", func(c echo.Context) error {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "title is required"})
	})

	request(e, http.MethodGet, "/api/books")
	rec := request(e, http.MethodPost, "/api/books")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, mr.Keys(), 1)
	assert.Equal(t, "HIT", request(e, http.MethodGet, "/api/books").Header().Get("X-Cache"))
}

func Test_TokenBucket_RejectsWhenEmpty(t *testing.T) {
	// setup
	_, rdb := newRedis(t)
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            time.Minute,
		Prefix:         "rl",
	}
	e := echo.New()
	e.GET("/api/books", okHandler, NewTokenBucket(cfg, rdb, zap.NewNop()))

	// act / assert
	rec := request(e, http.MethodGet, "/api/books")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))

	rec = request(e, http.MethodGet, "/api/books")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = request(e, http.MethodGet, "/api/books")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate limit exceeded")
}
