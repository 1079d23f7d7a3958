package middleware

import (
	"strconv"
	"sync"
	"time"

	applogger "github.com/sjn96/solana-ai-trading-bot-sub002/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tokenagent_http_requests_total",
			Help: "Total HTTP requests served by the operator API",
		},
		[]string{"route", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tokenagent_http_request_duration_seconds",
			Help:    "Operator API request latency",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"route", "method"},
	)

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tokenagent_http_in_flight_requests",
			Help: "Operator API requests currently being served",
		},
	)

	httpMetricsOnce sync.Once
)

// Metrics records request count, latency and in-flight gauge per route.
// Labels use the echo route template, not the raw URL, so /api/signals/:symbol
// stays one series regardless of how many tokens are queried.
func Metrics(l *applogger.Logger, slowThreshold time.Duration) echo.MiddlewareFunc {
	httpMetricsOnce.Do(func() {
		prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, httpInFlight)
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}
			method := c.Request().Method

			httpInFlight.Inc()
			start := time.Now()

			err := next(c)

			elapsed := time.Since(start)
			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				}
			}

			httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
			httpInFlight.Dec()

			logSlowOrFailed(l, route, method, status, elapsed, slowThreshold)
			return err
		}
	}
}

func logSlowOrFailed(l *applogger.Logger, route, method string, status int, elapsed, slowThreshold time.Duration) {
	if l == nil {
		return
	}
	fields := []applogger.Field{
		applogger.String("route", route),
		applogger.String("method", method),
		applogger.Int("status", status),
		applogger.Duration("duration_ms", elapsed),
	}
	switch {
	case status >= 500:
		l.Error("http request failed", fields...)
	case slowThreshold > 0 && elapsed >= slowThreshold:
		l.Warn("http request slow", fields...)
	}
}
