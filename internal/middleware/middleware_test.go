package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iliyamo/book-panel/internal/config"
)

func newContext(method, target string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.7")
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func okHandler(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func Test_Disabled_Middlewares_PassThrough(t *testing.T) {
	for name, mw := range map[string]echo.MiddlewareFunc{
		"cache":      NewRedisCache(config.CacheConfig{Enabled: true}, nil, nil),
		"rate limit": NewTokenBucket(config.RateLimitConfig{Enabled: false}, nil, nil),
	} {
		t.Run(name, func(t *testing.T) {
			c, rec := newContext(http.MethodGet, "/api/books")
			require.NoError(t, mw(okHandler)(c))
			assert.Equal(t, "ok", rec.Body.String())
			assert.Empty(t, rec.Header().Get("X-Cache"))
		})
	}
}

func Test_TokenBucket_FailsOpen(t *testing.T) {
	// nothing listens on this port
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()
	mw := NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Second, TTL: time.Minute}, rdb, zap.NewNop())

	c, rec := newContext(http.MethodGet, "/api/books")
	require.NoError(t, mw(okHandler)(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func Test_BuildRateKey(t *testing.T) {
	tests := []struct {
		strategy string
		want     string
	}{
		{"ip", "rl:ip:10.0.0.7"},
		{"route", "rl:route:GET /api/books/:id"},
		{"ip_route", "rl:ip:10.0.0.7:route:GET /api/books/:id"},
		{"", "rl:ip:10.0.0.7:route:GET /api/books/:id"},
	}
	for _, tc := range tests {
		t.Run(tc.strategy, func(t *testing.T) {
			c, _ := newContext(http.MethodGet, "/api/books/3")
			c.SetPath("/api/books/:id")
			assert.Equal(t, tc.want, buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: tc.strategy}, c))
		})
	}
}

func Test_ParseBucketResult(t *testing.T) {
	allowed, remaining, retry, ok := parseBucketResult([]interface{}{int64(0), int64(0), int64(1500)})
	require.True(t, ok)
	assert.False(t, allowed)
	assert.Zero(t, remaining)
	assert.Equal(t, 2, retryAfterSeconds(retry))

	_, _, _, ok = parseBucketResult("OK")
	assert.False(t, ok)
}

func Test_CacheKey_QueryStrategy(t *testing.T) {
	cfg := config.CacheConfig{Prefix: "cache", KeyStrategy: "route_query"}
	key := func(target string) string {
		c, _ := newContext(http.MethodGet, target)
		c.SetPath("/api/books")
		return cacheKeyFrom(cfg, c)
	}

	assert.Equal(t, key("/api/books?page=1"), key("/api/books?page=1"))
	assert.NotEqual(t, key("/api/books?page=1"), key("/api/books?page=2"))
	assert.Regexp(t, `^cache:[0-9a-f]{40}$`, key("/api/books"))

	cfg.KeyStrategy = "route"
	assert.Equal(t, key("/api/books?page=1"), key("/api/books?page=2"))
}

func Test_CachePayload(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"books":[]}`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, `{"books":[]}`, string(body))

	_, _, _, ok = decodePayload(bs[:5])
	assert.False(t, ok)
}

func Test_CaptureWriter_Limit(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 4}

	_, _ = cw.Write([]byte("abc"))
	_, _ = cw.Write([]byte("defg"))

	assert.Equal(t, "abcd", cw.buf.String())
	assert.Equal(t, int64(7), cw.size)
	assert.Equal(t, "abcdefg", rec.Body.String())
}

func Test_RequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	mw := RequestLogger(zap.New(core))

	c, _ := newContext(http.MethodGet, "/api/books?page=2")
	require.NoError(t, mw(okHandler)(c))

	c, rec := newContext(http.MethodPost, "/api/orders")
	require.NoError(t, mw(func(echo.Context) error { return errors.New("boom") })(c))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	entries := logs.All()
	require.Len(t, entries, 2)
	first := entries[0].ContextMap()
	assert.Equal(t, "GET", first["method"])
	assert.Equal(t, "/api/books?page=2", first["uri"])
	assert.Equal(t, int64(200), first["status"])
	assert.Equal(t, "10.0.0.7", first["ip"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
}
