package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	applogger "github.com/sjn96/solana-ai-trading-bot-sub002/pkg/logger"
)

// RequestLogging logs one structured line per request. Health and metrics
// probes are skipped, they would dominate the log at scrape cadence.
func RequestLogging(l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.RequestURI == "/healthz" || req.RequestURI == "/metrics" {
				return next(c)
			}
			start := time.Now()
			err := next(c)
			if l != nil {
				l.Info("http request",
					applogger.String("method", req.Method),
					applogger.String("uri", req.RequestURI),
					applogger.String("remote", c.RealIP()),
					applogger.Int("status", c.Response().Status),
					applogger.Duration("latency_ms", time.Since(start)))
			}
			return err
		}
	}
}
