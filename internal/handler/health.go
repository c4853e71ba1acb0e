package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is a dependency that can report its liveness.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Health answers load balancer probes. With a database attached it also
// reports whether the store is reachable.
func Health(db Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if db == nil {
			return c.JSON(http.StatusOK, echo.Map{"status": "ok", "store": "memory"})
		}
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "degraded", "store": "unreachable"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ok", "store": "up"})
	}
}
