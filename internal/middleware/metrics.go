package middleware

import (
	"time"

	"shop-service/prometheus"

	"github.com/labstack/echo/v4"
)

// MetricsMiddleware records request count and latency per route. It must
// wrap the access log middleware, which commits error responses.
func MetricsMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()

		err := next(c)

		path := c.Path()
		if path == "" {
			path = "unmatched"
		}
		prometheus.RecordHTTPRequest(c.Request().Method, path, c.Response().Status, time.Since(start))

		return err
	}
}
