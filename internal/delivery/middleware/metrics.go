package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"tourplanner/internal/infra/metrics"
)

// MetricsMiddleware records request counts and latencies per route
type MetricsMiddleware struct {
	metrics *metrics.Metrics
}

// NewMetricsMiddleware creates a new metrics middleware
func NewMetricsMiddleware(m *metrics.Metrics) *MetricsMiddleware {
	return &MetricsMiddleware{metrics: m}
}

// Handle observes the request after the handler ran. Unmatched routes are
// grouped under one label to bound cardinality.
func (m *MetricsMiddleware) Handle(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		path := c.Path()
		if path == "" {
			path = "unmatched"
		}
		m.metrics.ObserveHTTP(c.Request().Method, path, c.Response().Status, time.Since(start))

		return nil
	}
}
