package background

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"jobscout/internal/config"
	"jobscout/internal/discovery"
	"jobscout/internal/logging"
	"jobscout/pkg/utils"
)

// Run manager configuration limits
const (
	DefaultMaxWorkers   = 4
	DefaultMaxQueueSize = 100

	MinWorkers   = 1
	MinQueueSize = 1

	MaxWorkers   = 64
	MaxQueueSize = 10000

	DefaultMaxAge = 24 * time.Hour
)

// Executor performs one discovery run under the given id
type Executor interface {
	Execute(ctx context.Context, runID string, input discovery.RunInput) (*discovery.AggregationReport, error)
}

// ExecutorFunc adapts a function to Executor
type ExecutorFunc func(ctx context.Context, runID string, input discovery.RunInput) (*discovery.AggregationReport, error)

func (f ExecutorFunc) Execute(ctx context.Context, runID string, input discovery.RunInput) (*discovery.AggregationReport, error) {
	return f(ctx, runID, input)
}

// OrchestratorExecutor runs inputs through orch
func OrchestratorExecutor(orch *discovery.Orchestrator) Executor {
	return ExecutorFunc(func(ctx context.Context, runID string, input discovery.RunInput) (*discovery.AggregationReport, error) {
		return orch.NewRun(runID, input).Execute(ctx)
	})
}

// NewRunStore picks the store named by runs.store. A redis store needs a client.
func NewRunStore(cfg *config.Config, client *utils.RedisClient) (RunStore, error) {
	switch cfg.Runs.Store {
	case "", "memory":
		return NewInMemoryRunStore(), nil
	case "redis":
		if client == nil {
			return nil, utils.NewConfigurationError("runs.store is redis but no redis client is configured")
		}
		return NewRedisRunStore(client, maxAge(cfg)), nil
	default:
		return nil, utils.NewConfigurationError(fmt.Sprintf("unknown run store %q", cfg.Runs.Store))
	}
}

// Stats is a snapshot of the manager's counters
type Stats struct {
	Running    bool   `json:"running"`
	Workers    int    `json:"workers"`
	QueueSize  int    `json:"queue_size"`
	Queued     int    `json:"queued"`
	Accepted   uint64 `json:"accepted"`
	Processing int64  `json:"processing"`
	Succeeded  uint64 `json:"succeeded"`
	Failed     uint64 `json:"failed"`
	Rejected   uint64 `json:"rejected"`
	Cleaned    uint64 `json:"cleaned"`
}

// Manager executes discovery runs on a fixed worker pool and keeps their
// records in a RunStore until cleanup removes them.
type Manager struct {
	store     RunStore
	executor  Executor
	completed *RunCompletionLogger
	logger    logging.Logger

	maxWorkers   int
	maxQueueSize int
	maxAge       time.Duration
	schedule     string

	mu      sync.RWMutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	runChan chan *runExecution
	cron    *cron.Cron

	accepted   atomic.Uint64
	processing atomic.Int64
	succeeded  atomic.Uint64
	failed     atomic.Uint64
	rejected   atomic.Uint64
	cleaned    atomic.Uint64
}

type runExecution struct {
	runID string
	input discovery.RunInput
}

// validateManagerConfig returns safe worker and queue sizes
func validateManagerConfig(cfg *config.Config) (maxWorkers, maxQueueSize int, err error) {
	maxWorkers = cfg.Runs.Workers
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	} else if maxWorkers < MinWorkers {
		return 0, 0, fmt.Errorf("runs.workers (%d) is below minimum (%d)", maxWorkers, MinWorkers)
	} else if maxWorkers > MaxWorkers {
		return 0, 0, fmt.Errorf("runs.workers (%d) exceeds maximum (%d)", maxWorkers, MaxWorkers)
	}

	maxQueueSize = cfg.Runs.QueueSize
	if maxQueueSize <= 0 {
		maxQueueSize = DefaultMaxQueueSize
	} else if maxQueueSize < MinQueueSize {
		return 0, 0, fmt.Errorf("runs.queue_size (%d) is below minimum (%d)", maxQueueSize, MinQueueSize)
	} else if maxQueueSize > MaxQueueSize {
		return 0, 0, fmt.Errorf("runs.queue_size (%d) exceeds maximum (%d)", maxQueueSize, MaxQueueSize)
	}

	return maxWorkers, maxQueueSize, nil
}

func maxAge(cfg *config.Config) time.Duration {
	if cfg.Runs.MaxAge > 0 {
		return cfg.Runs.MaxAge
	}
	return DefaultMaxAge
}

// NewManager builds a stopped manager. Call Start before submitting runs.
func NewManager(cfg *config.Config, store RunStore, executor Executor, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if store == nil {
		store = NewInMemoryRunStore()
	}

	maxWorkers, maxQueueSize, err := validateManagerConfig(cfg)
	if err != nil {
		logger.Warn("Run manager configuration validation failed, using defaults", map[string]interface{}{
			"error": err.Error(),
		})
		maxWorkers = DefaultMaxWorkers
		maxQueueSize = DefaultMaxQueueSize
	}

	logger.Info("Run manager configuration initialized", map[string]interface{}{
		"max_workers":      maxWorkers,
		"max_queue_size":   maxQueueSize,
		"max_age":          maxAge(cfg).String(),
		"cleanup_schedule": cfg.Runs.CleanupSchedule,
		"using_defaults":   err != nil,
	})

	return &Manager{
		store:        store,
		executor:     executor,
		completed:    NewRunCompletionLogger(logger),
		logger:       logger,
		maxWorkers:   maxWorkers,
		maxQueueSize: maxQueueSize,
		maxAge:       maxAge(cfg),
		schedule:     cfg.Runs.CleanupSchedule,
	}
}

// SetCompletionLogger replaces the stdout completion logger
func (m *Manager) SetCompletionLogger(l *RunCompletionLogger) {
	m.completed = l
}

// Start launches the workers and the cleanup schedule
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("run manager already running")
	}
	if m.executor == nil {
		return fmt.Errorf("run manager has no executor")
	}

	if m.schedule != "" {
		c := cron.New(cron.WithLogger(cron.DefaultLogger))
		if _, err := c.AddFunc(m.schedule, m.cleanup); err != nil {
			return fmt.Errorf("cron.AddFunc %q: %w", m.schedule, err)
		}
		m.cron = c
		m.cron.Start()
	}

	m.ctx, m.cancel = context.WithCancel(ctx)
	m.runChan = make(chan *runExecution, m.maxQueueSize)
	m.running = true

	for i := 0; i < m.maxWorkers; i++ {
		m.wg.Add(1)
		go m.worker(i)
	}

	m.logger.Info("Run manager started", map[string]interface{}{
		"max_workers": m.maxWorkers,
	})
	return nil
}

// Stop cancels in-flight runs and waits for the workers until ctx expires
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	m.cancel()
	close(m.runChan)
	if m.cron != nil {
		m.cron.Stop()
	}
	m.mu.Unlock()

	m.logger.Info("Stopping run manager...", map[string]interface{}{})

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("Run manager stopped gracefully", map[string]interface{}{})
		return nil
	case <-ctx.Done():
		m.logger.Warn("Run manager shutdown timed out", map[string]interface{}{})
		return ctx.Err()
	}
}

// IsHealthy reports whether the manager accepts runs
func (m *Manager) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running && m.ctx.Err() == nil
}

// SubmitRun stores an ACCEPTED record and queues the run. It returns the new
// run id, or a queue-full error without keeping the record.
func (m *Manager) SubmitRun(ctx context.Context, input discovery.RunInput) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.running {
		return "", utils.NewInternalServerError("run manager is not running")
	}

	runID := utils.GenerateRunID()
	record := &RunRecord{
		RunID:     runID,
		Status:    RunStatusAccepted,
		Input:     input,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.store.Store(ctx, record); err != nil {
		return "", fmt.Errorf("failed to store run record: %w", err)
	}

	select {
	case m.runChan <- &runExecution{runID: runID, input: input}:
		m.accepted.Add(1)
		m.completed.LogRunAccepted(runID)
		return runID, nil
	default:
		m.rejected.Add(1)
		if err := m.store.Delete(ctx, runID); err != nil {
			m.logger.Warn("Failed to drop rejected run record", map[string]interface{}{
				"run_id": runID,
				"error":  err.Error(),
			})
		}
		return "", utils.NewQueueFullError(fmt.Sprintf("%d runs already queued", m.maxQueueSize))
	}
}

// GetRun returns the record for runID
func (m *Manager) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	return m.store.Get(ctx, runID)
}

// ListRuns returns every stored record, newest first
func (m *Manager) ListRuns(ctx context.Context) ([]*RunRecord, error) {
	return m.store.List(ctx)
}

// Stats returns the current counters
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := Stats{
		Running:    m.running,
		Workers:    m.maxWorkers,
		QueueSize:  m.maxQueueSize,
		Accepted:   m.accepted.Load(),
		Processing: m.processing.Load(),
		Succeeded:  m.succeeded.Load(),
		Failed:     m.failed.Load(),
		Rejected:   m.rejected.Load(),
		Cleaned:    m.cleaned.Load(),
	}
	if m.runChan != nil && m.running {
		s.Queued = len(m.runChan)
	}
	return s
}

func (m *Manager) worker(workerID int) {
	defer m.wg.Done()

	for run := range m.runChan {
		if m.ctx.Err() != nil {
			m.finish(run.runID, time.Now(), nil, fmt.Errorf("run manager stopped before run started"))
			continue
		}
		m.process(workerID, run)
	}
}

func (m *Manager) process(workerID int, run *runExecution) {
	started := time.Now()
	m.processing.Add(1)
	defer m.processing.Add(-1)

	if err := m.updateRecord(run.runID, func(r *RunRecord) {
		r.Status = RunStatusProcessing
		t := started.UTC()
		r.StartedAt = &t
	}); err != nil {
		m.logger.Error("Failed to mark run as processing", map[string]interface{}{
			"run_id": run.runID,
			"error":  err.Error(),
		})
	}
	m.completed.LogRunStart(run.runID, workerID)

	report, err := m.execute(run)
	m.finish(run.runID, started, report, err)
}

// execute recovers a panicking run into a FAILURE
func (m *Manager) execute(run *runExecution) (report *discovery.AggregationReport, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("run panicked: %v", rec)
		}
	}()
	return m.executor.Execute(m.ctx, run.runID, run.input)
}

func (m *Manager) finish(runID string, started time.Time, report *discovery.AggregationReport, runErr error) {
	elapsed := time.Since(started)

	var final *RunRecord
	err := m.updateRecord(runID, func(r *RunRecord) {
		completed := time.Now().UTC()
		r.CompletedAt = &completed
		r.ProcessingMS = elapsed.Milliseconds()
		if runErr != nil {
			r.Status = RunStatusFailure
			r.Error = runErr.Error()
		} else {
			r.Status = RunStatusSuccess
			r.Report = report
		}
		final = r
	})
	if err != nil {
		m.logger.Error("Failed to store run result", map[string]interface{}{
			"run_id": runID,
			"error":  err.Error(),
		})
	}

	if runErr != nil {
		m.failed.Add(1)
		m.completed.LogRunError(runID, runErr)
	} else {
		m.succeeded.Add(1)
	}

	if final != nil {
		if err := m.completed.LogRunCompletion(final); err != nil {
			m.logger.Error("Failed to log run completion", map[string]interface{}{
				"run_id": runID,
				"error":  err.Error(),
			})
		}
	}
}

// updateRecord applies fn to the stored record. It uses a background context
// so results are kept even after the manager's context is cancelled.
func (m *Manager) updateRecord(runID string, fn func(*RunRecord)) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	record, err := m.store.Get(ctx, runID)
	if err != nil {
		return err
	}
	fn(record)
	return m.store.Update(ctx, record)
}

// cleanup is the cron job that drops expired records
func (m *Manager) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	removed, err := m.store.Cleanup(ctx, m.maxAge)
	if err != nil {
		m.logger.Error("Failed to cleanup old run records", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	m.cleaned.Add(uint64(removed))
	if removed > 0 {
		m.logger.Info("Cleaned up old run records", map[string]interface{}{
			"removed": removed,
			"max_age": m.maxAge.String(),
		})
	}
}

// Cleanup runs the expiry job immediately
func (m *Manager) Cleanup() {
	m.cleanup()
}
