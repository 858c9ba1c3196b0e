package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tourplanner/config"
	deliverycontext "tourplanner/internal/delivery/context"
	"tourplanner/internal/infra/metrics"
)

func TestRequestIDMiddleware(t *testing.T) {
	e := echo.New()
	mw := NewRequestIDMiddleware(slog.New(slog.NewTextHandler(io.Discard, nil)))

	var seen, session string
	e.Use(mw.Process)
	e.GET("/api/v1/sessions/:id/tour", func(c echo.Context) error {
		ctx := c.Request().Context()
		seen = deliverycontext.GetRequestIDFromContext(ctx)
		session = deliverycontext.GetSessionIDFromContext(ctx)
		assert.NotNil(t, deliverycontext.GetLogger(ctx))

		return c.NoContent(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{name: "client supplied", header: "req-42", keep: true},
		{name: "generated"},
		{name: "rejected whitespace", header: "req 42"},
		{name: "rejected length", header: strings.Repeat("x", 129)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/abc/tour", nil)
			if tt.header != "" {
				req.Header.Set(deliverycontext.HeaderXRequestID, tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			require.Equal(t, http.StatusNoContent, rec.Code)
			assert.NotEmpty(t, seen)
			assert.Equal(t, "abc", session)
			assert.Equal(t, seen, rec.Header().Get(deliverycontext.HeaderXRequestID))
			if tt.keep {
				assert.Equal(t, tt.header, seen)
			} else {
				assert.NotEqual(t, tt.header, seen)
			}
		})
	}
}

func TestLoggerMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		debug  bool
		status int
		logged bool
	}{
		{name: "debug logs success", debug: true, status: http.StatusOK, logged: true},
		{name: "quiet skips client error", status: http.StatusConflict},
		{name: "quiet logs server error", status: http.StatusInternalServerError, logged: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			cfg := &config.Config{}
			cfg.Env.Debug = tt.debug

			e := echo.New()
			e.Use(NewLoggerMiddleware(slog.New(slog.NewTextHandler(&buf, nil)), cfg).Handle)
			e.POST("/api/v1/sessions/:id/undo", func(c echo.Context) error {
				return c.NoContent(tt.status)
			})

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sessions/abc/undo", nil))

			assert.Equal(t, tt.status, rec.Code)
			if !tt.logged {
				assert.Empty(t, buf.String())

				return
			}
			assert.Contains(t, buf.String(), "route=/api/v1/sessions/:id/undo")
		})
	}
}

func TestMetricsMiddleware(t *testing.T) {
	m := metrics.New()
	e := echo.New()
	e.Use(NewMetricsMiddleware(m).Handle)
	e.GET("/api/v1/sessions/:id", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	for _, path := range []string{"/api/v1/sessions/a", "/api/v1/sessions/b"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	count, err := testutil.GatherAndCount(m.Registry(), "tourplanner_http_requests_total")
	require.NoError(t, err)
	// both requests share the route template label
	assert.Equal(t, 1, count)
}
