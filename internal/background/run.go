package background

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"jobscout/internal/discovery"
	"jobscout/pkg/utils"
)

// RunStatus is the lifecycle state of an asynchronous run
type RunStatus string

const (
	RunStatusAccepted   RunStatus = "ACCEPTED"
	RunStatusProcessing RunStatus = "PROCESSING"
	RunStatusSuccess    RunStatus = "SUCCESS"
	RunStatusFailure    RunStatus = "FAILURE"
)

// Terminal reports whether no further transition will happen
func (s RunStatus) Terminal() bool {
	return s == RunStatusSuccess || s == RunStatusFailure
}

// RunRecord is what the store keeps for one asynchronous run. The report is
// only set once the run reaches SUCCESS.
type RunRecord struct {
	RunID        string                       `json:"runId"`
	Status       RunStatus                    `json:"status"`
	Input        discovery.RunInput           `json:"input"`
	Report       *discovery.AggregationReport `json:"report,omitempty"`
	Error        string                       `json:"error,omitempty"`
	CreatedAt    time.Time                    `json:"createdAt"`
	StartedAt    *time.Time                   `json:"startedAt,omitempty"`
	CompletedAt  *time.Time                   `json:"completedAt,omitempty"`
	ProcessingMS int64                        `json:"processingMs,omitempty"`
}

// RunSummary is the list view of a record
type RunSummary struct {
	RunID       string     `json:"runId"`
	Status      RunStatus  `json:"status"`
	TotalJobs   int        `json:"totalJobs"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Summary drops the input and the report
func (r *RunRecord) Summary() RunSummary {
	s := RunSummary{
		RunID:       r.RunID,
		Status:      r.Status,
		Error:       r.Error,
		CreatedAt:   r.CreatedAt,
		CompletedAt: r.CompletedAt,
	}
	if r.Report != nil {
		s.TotalJobs = r.Report.TotalJobs
	}
	return s
}

func (r *RunRecord) clone() *RunRecord {
	c := *r
	return &c
}

// ErrRunNotFound is returned for an unknown or expired run id
var ErrRunNotFound = errors.New("run not found")

// RunStore keeps run records for retrieval
type RunStore interface {
	Store(ctx context.Context, record *RunRecord) error
	Get(ctx context.Context, runID string) (*RunRecord, error)
	Update(ctx context.Context, record *RunRecord) error
	Delete(ctx context.Context, runID string) error
	// Cleanup removes records created before now minus maxAge and returns how many went
	Cleanup(ctx context.Context, maxAge time.Duration) (int, error)
	// List returns every record, newest first
	List(ctx context.Context) ([]*RunRecord, error)
}

// InMemoryRunStore is a RunStore local to the process
type InMemoryRunStore struct {
	mu   sync.RWMutex
	runs map[string]*RunRecord
}

func NewInMemoryRunStore() *InMemoryRunStore {
	return &InMemoryRunStore{runs: make(map[string]*RunRecord)}
}

func (s *InMemoryRunStore) Store(ctx context.Context, record *RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[record.RunID] = record.clone()
	return nil
}

func (s *InMemoryRunStore) Get(ctx context.Context, runID string) (*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.runs[runID]
	if !ok {
		return nil, ErrRunNotFound
	}
	return record.clone(), nil
}

func (s *InMemoryRunStore) Update(ctx context.Context, record *RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[record.RunID]; !ok {
		return ErrRunNotFound
	}
	s.runs[record.RunID] = record.clone()
	return nil
}

func (s *InMemoryRunStore) Delete(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[runID]; !ok {
		return ErrRunNotFound
	}
	delete(s.runs, runID)
	return nil
}

func (s *InMemoryRunStore) Cleanup(ctx context.Context, maxAge time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, record := range s.runs {
		if record.CreatedAt.Before(cutoff) {
			delete(s.runs, id)
			removed++
		}
	}
	return removed, nil
}

func (s *InMemoryRunStore) List(ctx context.Context) ([]*RunRecord, error) {
	s.mu.RLock()
	out := make([]*RunRecord, 0, len(s.runs))
	for _, record := range s.runs {
		out = append(out, record.clone())
	}
	s.mu.RUnlock()

	sortNewestFirst(out)
	return out, nil
}

// RedisRunStore keeps records as JSON under the configured key prefix. Every
// key expires after maxAge, so Cleanup only has to catch records written
// without a TTL.
type RedisRunStore struct {
	client *utils.RedisClient
	maxAge time.Duration
}

func NewRedisRunStore(client *utils.RedisClient, maxAge time.Duration) *RedisRunStore {
	return &RedisRunStore{client: client, maxAge: maxAge}
}

func (s *RedisRunStore) Store(ctx context.Context, record *RunRecord) error {
	return s.client.SetJSON(ctx, record.RunID, record, s.maxAge)
}

func (s *RedisRunStore) Get(ctx context.Context, runID string) (*RunRecord, error) {
	var record RunRecord
	if err := s.client.GetJSON(ctx, runID, &record); err != nil {
		if errors.Is(err, utils.ErrKeyNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return &record, nil
}

func (s *RedisRunStore) Update(ctx context.Context, record *RunRecord) error {
	if _, err := s.Get(ctx, record.RunID); err != nil {
		return err
	}
	return s.client.SetJSONKeepTTL(ctx, record.RunID, record)
}

func (s *RedisRunStore) Delete(ctx context.Context, runID string) error {
	return s.client.Delete(ctx, runID)
}

func (s *RedisRunStore) Cleanup(ctx context.Context, maxAge time.Duration) (int, error) {
	records, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, record := range records {
		if record.CreatedAt.Before(cutoff) {
			if err := s.client.Delete(ctx, record.RunID); err != nil {
				return removed, fmt.Errorf("failed to delete run %s: %w", record.RunID, err)
			}
			removed++
		}
	}
	return removed, nil
}

func (s *RedisRunStore) List(ctx context.Context) ([]*RunRecord, error) {
	ids, err := s.client.ListIDs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*RunRecord, 0, len(ids))
	for _, id := range ids {
		record, err := s.Get(ctx, id)
		if errors.Is(err, ErrRunNotFound) {
			continue // expired between scan and get
		}
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(records []*RunRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
}
