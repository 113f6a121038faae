package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"RiskArbiter/pkg/logger"
)

// RequestLogging logs HTTP requests.
func RequestLogging(log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			res := c.Response()
			start := time.Now()

			err := next(c)

			log.Info("http request",
				logger.String("method", req.Method),
				logger.String("uri", req.RequestURI),
				logger.String("remote", req.RemoteAddr),
				logger.Int("status", res.Status),
				logger.Float64("latency_ms", float64(time.Since(start).Microseconds())/1000.0))

			return err
		}
	}
}
