package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"jobscout/pkg/models"
)

// HealthHandler handles health check requests
func HealthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, models.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   Version,
		Uptime:    time.Since(startTime),
		Checks:    map[string]string{"api": "ok"},
	})
}

// LivenessHandler handles liveness probe requests
func LivenessHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, models.HealthResponse{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   Version,
		Uptime:    time.Since(startTime),
	})
}

// ReadinessHandler reports 503 until the run manager is up and redis, when
// used, answers a ping.
func ReadinessHandler(deps *Dependencies) echo.HandlerFunc {
	return func(c echo.Context) error {
		checks := dependencyChecks(c.Request().Context(), deps)
		status, code := "ready", http.StatusOK
		for _, v := range checks {
			if v == "stopped" || v == "unreachable" {
				status, code = "not_ready", http.StatusServiceUnavailable
				break
			}
		}
		return c.JSON(code, models.HealthResponse{
			Status:    status,
			Timestamp: time.Now(),
			Version:   Version,
			Uptime:    time.Since(startTime),
			Checks:    checks,
		})
	}
}

// StatusHandler provides service status with run manager counters
func StatusHandler(deps *Dependencies) echo.HandlerFunc {
	return func(c echo.Context) error {
		resp := models.StatusResponse{
			HealthResponse: models.HealthResponse{
				Status:    "operational",
				Timestamp: time.Now(),
				Version:   Version,
				Uptime:    time.Since(startTime),
				Checks:    dependencyChecks(c.Request().Context(), deps),
			},
		}
		if deps.Runs != nil {
			resp.Runs = deps.Runs.Stats()
		}
		return c.JSON(http.StatusOK, resp)
	}
}

func dependencyChecks(ctx context.Context, deps *Dependencies) map[string]string {
	checks := map[string]string{"api": "ok"}

	switch {
	case deps.Runs == nil:
		checks["runs"] = "disabled"
	case deps.Runs.IsHealthy():
		checks["runs"] = "ok"
	default:
		checks["runs"] = "stopped"
	}

	if deps.RedisPing != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := deps.RedisPing(pingCtx); err != nil {
			checks["redis"] = "unreachable"
		} else {
			checks["redis"] = "ok"
		}
	}

	if deps.Discoverer != nil && len(deps.Discoverer.Sources()) > 0 {
		checks["sources"] = "ok"
	} else {
		checks["sources"] = "none_enabled"
	}
	return checks
}
