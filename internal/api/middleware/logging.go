package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"jobscout/internal/logging"
)

// RequestLogger logs one line per request through the application logger
func RequestLogger(logger logging.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := map[string]interface{}{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency_ms": v.Latency.Milliseconds(),
				"remote_ip":  v.RemoteIP,
				"request_id": RequestID(c),
			}
			if v.Error != nil {
				fields["error"] = v.Error.Error()
				logger.Error("HTTP request failed", fields)
				return nil
			}
			if v.Status >= 500 {
				logger.Warn("HTTP request completed with server error", fields)
				return nil
			}
			logger.Info("HTTP request completed", fields)
			return nil
		},
	})
}

// Recover turns handler panics into 500 responses
func Recover() echo.MiddlewareFunc {
	return middleware.RecoverWithConfig(middleware.RecoverConfig{
		DisablePrintStack: true,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logging.GetGlobalLogger().Error("Recovered from handler panic", map[string]interface{}{
				"request_id": RequestID(c),
				"error":      err.Error(),
				"stack":      string(stack),
			})
			return err
		},
	})
}
