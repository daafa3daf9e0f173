package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"jobscout/internal/api/handlers"
	"jobscout/internal/api/middleware"
	"jobscout/internal/logging"
)

// SetupRoutes configures all API routes
func SetupRoutes(e *echo.Echo, deps *handlers.Dependencies, logger logging.Logger) {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	e.Use(middleware.RequestValidation())
	e.Use(middleware.RequestLogger(logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSConfig())

	health := e.Group("/health")
	{
		health.GET("", handlers.HealthHandler)
		health.GET("/ready", handlers.ReadinessHandler(deps))
		health.GET("/live", handlers.LivenessHandler)
	}

	e.GET("/status", handlers.StatusHandler(deps))

	v1 := e.Group("/api/v1")
	{
		v1.POST("/discover", handlers.DiscoverHandler(deps))
		v1.POST("/discover/async", handlers.DiscoverAsyncHandler(deps))
		v1.GET("/runs", handlers.ListRunsHandler(deps))
		v1.GET("/runs/:id", handlers.GetRunHandler(deps))
		v1.GET("/sources", handlers.SourcesHandler(deps))
	}

	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"service": "jobscout",
			"version": handlers.Version,
			"status":  "running",
		})
	})
}
