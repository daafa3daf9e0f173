package background

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"jobscout/internal/logging"
)

// RunCompletionLogger writes one JSON line per finished run to stdout, for
// container log collectors, and mirrors lifecycle events to the app logger.
type RunCompletionLogger struct {
	logger logging.Logger
	mu     sync.Mutex
	out    io.Writer
}

func NewRunCompletionLogger(logger logging.Logger) *RunCompletionLogger {
	return NewRunCompletionLoggerTo(os.Stdout, logger)
}

// NewRunCompletionLoggerTo writes completion lines to out
func NewRunCompletionLoggerTo(out io.Writer, logger logging.Logger) *RunCompletionLogger {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &RunCompletionLogger{logger: logger, out: out}
}

// RunCompletionLog is the structured line written when a run finishes
type RunCompletionLog struct {
	RunID          string         `json:"runId"`
	Status         string         `json:"status"`
	Error          string         `json:"error,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
	Operation      string         `json:"operation"`
	ProcessingTime string         `json:"processing_time"`
	TotalJobs      int            `json:"total_jobs"`
	BudgetUsed     int            `json:"budget_used"`
	SourcesScraped map[string]int `json:"sources_scraped,omitempty"`
	FailedSources  []string       `json:"failed_sources,omitempty"`
}

// NewRunCompletionLog summarises record; the job list itself is left out
func NewRunCompletionLog(record *RunRecord) *RunCompletionLog {
	entry := &RunCompletionLog{
		RunID:          record.RunID,
		Status:         string(record.Status),
		Error:          record.Error,
		Timestamp:      time.Now(),
		Operation:      "discover",
		ProcessingTime: (time.Duration(record.ProcessingMS) * time.Millisecond).String(),
	}
	if r := record.Report; r != nil {
		entry.TotalJobs = r.TotalJobs
		entry.BudgetUsed = r.BudgetUsed
		entry.SourcesScraped = make(map[string]int, len(r.SourcesScraped))
		for tag, n := range r.SourcesScraped {
			entry.SourcesScraped[string(tag)] = n
		}
		for _, tag := range r.FailedSources() {
			entry.FailedSources = append(entry.FailedSources, string(tag))
		}
	}
	return entry
}

// LogRunCompletion writes the completion line for record
func (l *RunCompletionLogger) LogRunCompletion(record *RunRecord) error {
	data, err := json.Marshal(NewRunCompletionLog(record))
	if err != nil {
		return fmt.Errorf("failed to marshal run completion log: %w", err)
	}

	l.mu.Lock()
	_, err = l.out.Write(append(data, '\n'))
	l.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to write run completion log: %w", err)
	}

	l.logger.Info("Background run completed", map[string]interface{}{
		"run_id":        record.RunID,
		"status":        record.Status,
		"processing_ms": record.ProcessingMS,
	})
	return nil
}

func (l *RunCompletionLogger) LogRunAccepted(runID string) {
	l.logger.Info("Background run accepted", map[string]interface{}{
		"run_id": runID,
		"status": RunStatusAccepted,
	})
}

func (l *RunCompletionLogger) LogRunStart(runID string, workerID int) {
	l.logger.Info("Background run started", map[string]interface{}{
		"run_id":    runID,
		"worker_id": workerID,
		"status":    RunStatusProcessing,
	})
}

func (l *RunCompletionLogger) LogRunError(runID string, err error) {
	l.logger.Error("Background run failed", map[string]interface{}{
		"run_id": runID,
		"status": RunStatusFailure,
		"error":  err.Error(),
	})
}
