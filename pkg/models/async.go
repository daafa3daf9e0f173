package models

import (
	"time"

	"jobscout/internal/discovery"
)

// AsyncStatus represents the status of an async run
type AsyncStatus string

const (
	AsyncStatusAccepted   AsyncStatus = "ACCEPTED"
	AsyncStatusProcessing AsyncStatus = "PROCESSING"
	AsyncStatusSuccess    AsyncStatus = "SUCCESS"
	AsyncStatusFailure    AsyncStatus = "FAILURE"
)

// AsyncDiscoverResponse is returned with 202 by the async discover endpoint
type AsyncDiscoverResponse struct {
	RunID     string      `json:"runId"`
	Status    AsyncStatus `json:"status"`
	Message   string      `json:"message"`
	Timestamp time.Time   `json:"timestamp"`
}

// RunStatusResponse is the state of one async run. Report is set once SUCCESS.
type RunStatusResponse struct {
	RunID        string                       `json:"runId"`
	Status       AsyncStatus                  `json:"status"`
	Report       *discovery.AggregationReport `json:"report,omitempty"`
	Error        string                       `json:"error,omitempty"`
	CreatedAt    time.Time                    `json:"createdAt"`
	CompletedAt  *time.Time                   `json:"completedAt,omitempty"`
	ProcessingMS int64                        `json:"processingMs,omitempty"`
}

// RunSummaryResponse is one entry of the run list
type RunSummaryResponse struct {
	RunID       string      `json:"runId"`
	Status      AsyncStatus `json:"status"`
	TotalJobs   int         `json:"totalJobs"`
	Error       string      `json:"error,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
}

// RunListResponse lists stored runs, newest first
type RunListResponse struct {
	Success bool                 `json:"success"`
	Runs    []RunSummaryResponse `json:"runs"`
	Count   int                  `json:"count"`
}

// CreateAsyncDiscoverResponse creates the acceptance response for runID
func CreateAsyncDiscoverResponse(runID string) *AsyncDiscoverResponse {
	return &AsyncDiscoverResponse{
		RunID:     runID,
		Status:    AsyncStatusAccepted,
		Message:   "Discovery run accepted for background processing",
		Timestamp: time.Now(),
	}
}

// IsCompleted checks if the run has finished (success or failure)
func (r *RunStatusResponse) IsCompleted() bool {
	return r.Status == AsyncStatusSuccess || r.Status == AsyncStatusFailure
}
