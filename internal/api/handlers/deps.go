package handlers

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"jobscout/internal/api/middleware"
	"jobscout/internal/background"
	"jobscout/internal/config"
	"jobscout/internal/discovery"
	"jobscout/pkg/models"
)

// Version is reported by the health endpoints
var Version = "1.0.0"

var startTime = time.Now()

// Discoverer runs one synchronous discovery
type Discoverer interface {
	Run(ctx context.Context, input discovery.RunInput) (*discovery.AggregationReport, error)
	Sources() []discovery.SourceTag
}

// RunManager queues and reports asynchronous runs
type RunManager interface {
	SubmitRun(ctx context.Context, input discovery.RunInput) (string, error)
	GetRun(ctx context.Context, runID string) (*background.RunRecord, error)
	ListRuns(ctx context.Context) ([]*background.RunRecord, error)
	Stats() background.Stats
	IsHealthy() bool
}

// Dependencies is what the handlers need from the server
type Dependencies struct {
	Config     *config.Config
	Discoverer Discoverer
	Runs       RunManager
	// RedisPing is nil when the run store is in memory
	RedisPing func(ctx context.Context) error
}

func errorJSON(c echo.Context, status int, code, message string) error {
	return c.JSON(status, models.ErrorResponse{
		Error:     code,
		Message:   message,
		RequestID: middleware.RequestID(c),
		Timestamp: time.Now(),
	})
}
