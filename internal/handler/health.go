package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// Health reports whether the service can reach its store and, when one is
// configured, its Redis server.  Load balancers poll it at /healthz.
type Health struct {
	DB    *sqlx.DB
	Redis *redis.Client // optional
}

func (h *Health) Check(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := map[string]string{"status": "ok", "db": "ok"}
	if err := h.DB.PingContext(ctx); err != nil {
		status = http.StatusServiceUnavailable
		body["status"], body["db"] = "degraded", err.Error()
	}
	if h.Redis != nil {
		body["redis"] = "ok"
		// the cache and limiter fail open, so redis alone does not degrade
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			body["redis"] = err.Error()
		}
	}
	return c.JSON(status, body)
}
