package sources

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"jobscout/internal/discovery"
	"jobscout/internal/fetch"
	"jobscout/internal/search"
)

const maxRecordedErrors = 3

// tracker accumulates what one adapter did and derives its SourceRunResult.
// It is shared by the goroutines of a fan-out.
type tracker struct {
	source  discovery.SourceTag
	started time.Time

	mu       sync.Mutex
	calls    int
	failures int
	skipped  int
	errs     []string
}

func newTracker(source discovery.SourceTag) *tracker {
	return &tracker{source: source, started: time.Now()}
}

// record notes the outcome of one network call or extraction
func (t *tracker) record(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if errors.Is(err, search.ErrBudgetExhausted) {
		t.skipped++
		return
	}
	t.calls++
	if err != nil {
		t.failLocked(err)
	}
}

// fail notes a failure that is not a call of its own, such as an extraction
// from a page that was fetched fine
func (t *tracker) fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failLocked(err)
}

func (t *tracker) failLocked(err error) {
	t.failures++
	if len(t.errs) < maxRecordedErrors {
		t.errs = append(t.errs, err.Error())
	}
}

// succeeded reports whether at least one call completed without error
func (t *tracker) succeeded() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls > t.failures
}

// result derives the status. Any failure or skipped call makes the result
// partial unless nothing succeeded; an expired context with nothing extracted
// is timed_out.
func (t *tracker) result(ctx context.Context, items int) discovery.SourceRunResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	res := discovery.SourceRunResult{
		Source:        t.source,
		Calls:         t.calls,
		BudgetSkipped: t.skipped,
		Error:         strings.Join(t.errs, "; "),
		Duration:      time.Since(t.started),
	}

	switch {
	case ctx.Err() != nil && items == 0:
		res.Status = discovery.StatusTimedOut
		if res.Error == "" {
			res.Error = ctx.Err().Error()
		}
	case ctx.Err() != nil:
		res.Status = discovery.StatusPartial
	case t.failures > 0 && t.failures >= t.calls && items == 0:
		res.Status = discovery.StatusFailed
	case t.failures > 0 || t.skipped > 0:
		res.Status = discovery.StatusPartial
	default:
		res.Status = discovery.StatusOK
	}
	return res
}

// sourceError classifies err for source. Errors that already carry a
// classification keep their kind and are re-attributed to source.
func sourceError(source discovery.SourceTag, rawURL string, err error) error {
	if err == nil || errors.Is(err, search.ErrBudgetExhausted) {
		return err
	}
	var se *discovery.SourceError
	if errors.As(err, &se) {
		copied := *se
		copied.Source = source
		if copied.URL == "" {
			copied.URL = rawURL
		}
		return &copied
	}
	return discovery.NewTransientError(source, rawURL, fetch.StatusCode(err), err)
}

// driftError records that a document did not contain what the parser expects
func driftError(source discovery.SourceTag, rawURL string, err error) error {
	return discovery.NewParseDriftError(source, rawURL, err)
}
