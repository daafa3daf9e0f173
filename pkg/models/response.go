package models

import "time"

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Uptime    time.Duration     `json:"uptime"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// StatusResponse adds run manager counters to the health view
type StatusResponse struct {
	HealthResponse
	Runs interface{} `json:"runs,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// SourceInfo describes one configured source
type SourceInfo struct {
	Source       string `json:"source"`
	Priority     int    `json:"priority"`
	Enabled      bool   `json:"enabled"`
	SearchBacked bool   `json:"search_backed"`
	Browser      bool   `json:"browser"`
}

// SourcesResponse lists the sources in priority order
type SourcesResponse struct {
	Sources     []SourceInfo `json:"sources"`
	MaxJobs     int          `json:"max_jobs"`
	CallsPerRun int          `json:"calls_per_run"`
	RunDeadline string       `json:"run_deadline"`
}
