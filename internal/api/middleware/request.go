package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"jobscout/pkg/models"
	"jobscout/pkg/utils"
)

// MaxBodyBytes bounds the size of a POST body
const MaxBodyBytes = 1024 * 1024

// RequestIDKey is the echo context key holding the request id
const RequestIDKey = "request_id"

// RequestValidation assigns a request id, echoes it in X-Request-ID and
// rejects oversized bodies. An incoming X-Request-ID is kept.
func RequestValidation() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			requestID := c.Request().Header.Get(echo.HeaderXRequestID)
			if requestID == "" || len(requestID) > 128 {
				requestID = utils.GenerateRequestID()
			}
			c.Set(RequestIDKey, requestID)
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			if c.Request().Method == http.MethodPost && c.Request().ContentLength > MaxBodyBytes {
				return c.JSON(http.StatusRequestEntityTooLarge, models.ErrorResponse{
					Error:     "request_too_large",
					Message:   "Request body too large",
					RequestID: requestID,
					Timestamp: time.Now(),
				})
			}

			return next(c)
		}
	}
}

// RequestID returns the id assigned by RequestValidation
func RequestID(c echo.Context) string {
	if id, ok := c.Get(RequestIDKey).(string); ok {
		return id
	}
	return c.Response().Header().Get(echo.HeaderXRequestID)
}
