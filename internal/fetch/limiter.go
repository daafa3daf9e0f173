package fetch

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"jobscout/internal/logging"
)

// ErrCircuitOpen is returned when a host has failed repeatedly and is cooling down
var ErrCircuitOpen = errors.New("circuit breaker open")

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

// String returns string representation of CircuitState
func (cs CircuitState) String() string {
	switch cs {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker stops calls to a host after maxFailures consecutive failures
// and lets one probe through after resetTimeout.
type CircuitBreaker struct {
	maxFailures  int
	resetTimeout time.Duration
	failureCount int
	lastFailTime time.Time
	state        CircuitState
	mu           sync.Mutex
}

// NewCircuitBreaker creates a closed breaker
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	return &CircuitBreaker{maxFailures: maxFailures, resetTimeout: resetTimeout}
}

// Allow reports whether a call may proceed, moving open to half-open once the reset timeout passed
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if time.Since(cb.lastFailTime) > cb.resetTimeout {
			cb.state = CircuitHalfOpen
			return true
		}
		return false
	default:
		return true
	}
}

// RecordSuccess closes the breaker
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = CircuitClosed
	cb.failureCount = 0
}

// RecordFailure counts a failure and reports whether the breaker just opened
func (cb *CircuitBreaker) RecordFailure() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	cb.lastFailTime = time.Now()
	if cb.state == CircuitHalfOpen || (cb.state == CircuitClosed && cb.failureCount >= cb.maxFailures) {
		cb.state = CircuitOpen
		return true
	}
	return false
}

// State returns the current state
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

type hostEntry struct {
	limiter  *rate.Limiter
	breaker  *CircuitBreaker
	lastSeen time.Time
	requests int64
	failures int64
}

// HostLimiter paces requests per host and trips a breaker on repeated failures.
// One instance is shared by every run in the process.
type HostLimiter struct {
	perSecond    rate.Limit
	burst        int
	maxFailures  int
	resetTimeout time.Duration

	hosts    map[string]*hostEntry
	mu       sync.Mutex
	logger   logging.Logger
	stopOnce sync.Once
	stop     chan struct{}
}

// LimiterConfig configures a HostLimiter
type LimiterConfig struct {
	RequestsPerMinute int
	Burst             int
	MaxFailures       int
	ResetTimeout      time.Duration
	CleanupInterval   time.Duration
}

// NewHostLimiter creates a limiter and starts its idle-host cleanup loop
func NewHostLimiter(cfg LimiterConfig, logger logging.Logger) *HostLimiter {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 5
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	hl := &HostLimiter{
		perSecond:    rate.Limit(float64(cfg.RequestsPerMinute) / 60.0),
		burst:        cfg.Burst,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		hosts:        make(map[string]*hostEntry),
		logger:       logger.WithField("component", "host_limiter"),
		stop:         make(chan struct{}),
	}

	go hl.cleanupRoutine(cfg.CleanupInterval)
	return hl
}

func (hl *HostLimiter) entry(host string) *hostEntry {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	host = strings.ToLower(host)
	e, ok := hl.hosts[host]
	if !ok {
		e = &hostEntry{
			limiter: rate.NewLimiter(hl.perSecond, hl.burst),
			breaker: NewCircuitBreaker(hl.maxFailures, hl.resetTimeout),
		}
		hl.hosts[host] = e
	}
	e.lastSeen = time.Now()
	return e
}

// Wait blocks until a request to host is allowed or ctx ends.
// It fails fast with ErrCircuitOpen while the host's breaker is open.
func (hl *HostLimiter) Wait(ctx context.Context, host string) error {
	e := hl.entry(host)
	if !e.breaker.Allow() {
		hl.logger.Debug("Request rejected by circuit breaker", map[string]interface{}{"host": host})
		return ErrCircuitOpen
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return err
	}

	hl.mu.Lock()
	e.requests++
	hl.mu.Unlock()
	return nil
}

// RecordSuccess records a successful request for the host
func (hl *HostLimiter) RecordSuccess(host string) {
	hl.entry(host).breaker.RecordSuccess()
}

// RecordFailure records a failed request for the host
func (hl *HostLimiter) RecordFailure(host string, err error) {
	e := hl.entry(host)

	hl.mu.Lock()
	e.failures++
	hl.mu.Unlock()

	if e.breaker.RecordFailure() {
		fields := map[string]interface{}{"host": host}
		if err != nil {
			fields["error"] = err.Error()
		}
		hl.logger.Warn("Circuit breaker opened due to failures", fields)
	}
}

// Breaker returns the breaker for host
func (hl *HostLimiter) Breaker(host string) *CircuitBreaker {
	return hl.entry(host).breaker
}

// Stats returns request counters and breaker state per host
func (hl *HostLimiter) Stats() map[string]map[string]interface{} {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	stats := make(map[string]map[string]interface{}, len(hl.hosts))
	for host, e := range hl.hosts {
		stats[host] = map[string]interface{}{
			"requests":      e.requests,
			"failures":      e.failures,
			"circuit_state": e.breaker.State().String(),
			"last_seen":     e.lastSeen,
		}
	}
	return stats
}

func (hl *HostLimiter) cleanupRoutine(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			hl.cleanup(time.Now().Add(-10 * time.Minute))
		case <-hl.stop:
			return
		}
	}
}

// cleanup drops idle hosts whose breaker is closed
func (hl *HostLimiter) cleanup(cutoff time.Time) int {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	removed := 0
	for host, e := range hl.hosts {
		if e.lastSeen.Before(cutoff) && e.breaker.State() == CircuitClosed {
			delete(hl.hosts, host)
			removed++
		}
	}
	if removed > 0 {
		hl.logger.Debug("Cleaned up idle host limiters", map[string]interface{}{"removed_count": removed})
	}
	return removed
}

// Stop stops the cleanup routine
func (hl *HostLimiter) Stop() {
	hl.stopOnce.Do(func() { close(hl.stop) })
}

// HostOf returns the lowercased host of rawURL, or "unknown"
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
