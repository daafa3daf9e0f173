package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"jobscout/internal/api/middleware"
	"jobscout/internal/api/validation"
	"jobscout/internal/background"
	"jobscout/internal/discovery"
	"jobscout/internal/logging"
	"jobscout/pkg/models"
	"jobscout/pkg/utils"
)

var validate = validation.New()

// bindDiscoverRequest decodes and validates the body, writing the 400 itself
func bindDiscoverRequest(c echo.Context, logger logging.Logger) (*models.DiscoverRequest, error) {
	var req models.DiscoverRequest
	if err := c.Bind(&req); err != nil {
		logger.Warn("Failed to bind discover request", map[string]interface{}{"error": err.Error()})
		return nil, errorJSON(c, http.StatusBadRequest, "invalid_request", "Invalid request format")
	}

	if err := validate.Struct(&req); err != nil {
		logger.Warn("Discover request validation failed", map[string]interface{}{"error": err.Error()})
		return nil, errorJSON(c, http.StatusBadRequest, "validation_failed", validationMessage(err))
	}
	if !req.HasTerms() {
		return nil, errorJSON(c, http.StatusBadRequest, "validation_failed",
			"at least one of profile.role, profile.skills, queries or companies is required")
	}
	return &req, nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fe.Namespace()+" failed "+fe.Tag())
	}
	return strings.Join(msgs, "; ")
}

// DiscoverHandler runs one discovery and returns the AggregationReport
func DiscoverHandler(deps *Dependencies) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := middleware.RequestID(c)
		logger := logging.LogWithRequestID(requestID)

		req, err := bindDiscoverRequest(c, logger)
		if req == nil {
			return err
		}

		report, err := deps.Discoverer.Run(c.Request().Context(), req.ToRunInput())
		if err != nil {
			if utils.IsConfigurationError(err) {
				logger.Error("Discovery refused by configuration", map[string]interface{}{"error": err.Error()})
				return errorJSON(c, http.StatusInternalServerError, "configuration_error", err.Error())
			}
			logger.Error("Discovery run failed", map[string]interface{}{"error": err.Error()})
			return errorJSON(c, http.StatusInternalServerError, "discovery_failed", err.Error())
		}

		logger.Info("Discovery request completed", map[string]interface{}{
			"run_id":      report.RunID,
			"total_jobs":  report.TotalJobs,
			"budget_used": report.BudgetUsed,
			"elapsed":     utils.FormatDuration(report.Elapsed),
		})
		return c.JSON(http.StatusOK, report)
	}
}

// DiscoverAsyncHandler queues a run and answers 202 with its id
func DiscoverAsyncHandler(deps *Dependencies) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := middleware.RequestID(c)
		logger := logging.LogWithRequestID(requestID)

		req, err := bindDiscoverRequest(c, logger)
		if req == nil {
			return err
		}

		runID, err := deps.Runs.SubmitRun(c.Request().Context(), req.ToRunInput())
		if err != nil {
			logger.Error("Failed to submit discovery run", map[string]interface{}{"error": err.Error()})
			if ce, ok := utils.AsCustomError(err); ok {
				code := "submission_failed"
				if ce.Code == http.StatusServiceUnavailable {
					code = "queue_full"
				}
				return errorJSON(c, ce.Code, code, ce.Error())
			}
			return errorJSON(c, http.StatusInternalServerError, "submission_failed", err.Error())
		}

		logger.Info("Discovery run accepted", map[string]interface{}{"run_id": runID})
		return c.JSON(http.StatusAccepted, models.CreateAsyncDiscoverResponse(runID))
	}
}

// GetRunHandler returns the status of one run, with the report once it succeeded
func GetRunHandler(deps *Dependencies) echo.HandlerFunc {
	return func(c echo.Context) error {
		runID := c.Param("id")
		record, err := deps.Runs.GetRun(c.Request().Context(), runID)
		if err != nil {
			if errors.Is(err, background.ErrRunNotFound) {
				return errorJSON(c, http.StatusNotFound, "run_not_found", "No run with id "+runID)
			}
			return errorJSON(c, http.StatusInternalServerError, "run_lookup_failed", err.Error())
		}

		resp := models.RunStatusResponse{
			RunID:        record.RunID,
			Status:       models.AsyncStatus(record.Status),
			Error:        record.Error,
			CreatedAt:    record.CreatedAt,
			CompletedAt:  record.CompletedAt,
			ProcessingMS: record.ProcessingMS,
		}
		if record.Status == background.RunStatusSuccess {
			resp.Report = record.Report
		}
		return c.JSON(http.StatusOK, resp)
	}
}

// ListRunsHandler lists stored runs, newest first
func ListRunsHandler(deps *Dependencies) echo.HandlerFunc {
	return func(c echo.Context) error {
		records, err := deps.Runs.ListRuns(c.Request().Context())
		if err != nil {
			return errorJSON(c, http.StatusInternalServerError, "run_list_failed", err.Error())
		}

		resp := models.RunListResponse{Success: true, Runs: make([]models.RunSummaryResponse, 0, len(records))}
		for _, r := range records {
			s := r.Summary()
			resp.Runs = append(resp.Runs, models.RunSummaryResponse{
				RunID:       s.RunID,
				Status:      models.AsyncStatus(s.Status),
				TotalJobs:   s.TotalJobs,
				Error:       s.Error,
				CreatedAt:   s.CreatedAt,
				CompletedAt: s.CompletedAt,
			})
		}
		resp.Count = len(resp.Runs)
		return c.JSON(http.StatusOK, resp)
	}
}

// SourcesHandler lists every source in priority order, enabled ones first
func SourcesHandler(deps *Dependencies) echo.HandlerFunc {
	return func(c echo.Context) error {
		cfg := deps.Config
		enabled := deps.Discoverer.Sources()

		resp := models.SourcesResponse{
			MaxJobs:     cfg.Discovery.MaxJobs,
			CallsPerRun: cfg.Search.CallsPerRun,
			RunDeadline: cfg.Discovery.RunDeadline.String(),
		}

		seen := make(map[discovery.SourceTag]bool, len(discovery.DefaultPriority))
		add := func(tag discovery.SourceTag, on bool) {
			seen[tag] = true
			resp.Sources = append(resp.Sources, models.SourceInfo{
				Source:       string(tag),
				Priority:     len(resp.Sources) + 1,
				Enabled:      on,
				SearchBacked: tag.SearchBacked(),
				Browser:      cfg.UsesBrowser(string(tag)),
			})
		}
		for _, tag := range enabled {
			add(tag, true)
		}
		for _, tag := range discovery.DefaultPriority {
			if !seen[tag] {
				add(tag, false)
			}
		}
		return c.JSON(http.StatusOK, resp)
	}
}
