package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"jobscout/internal/config"
	"jobscout/internal/logging"
	"jobscout/pkg/utils"
)

// Budget is the per-run quota of paid search calls
type Budget interface {
	// Acquire takes one call from the quota and reports whether it was available
	Acquire() bool
	Used() int
	Remaining() int
}

// RunContext is what every adapter receives for one run
type RunContext struct {
	RunID     string
	Input     RunInput
	Budget    Budget
	Skills    []string // fixed vocabulary plus profile skills
	Validator *Validator
	Logger    logging.Logger
}

// Adapter fetches and extracts postings from exactly one source. Fetch never
// panics out and never fails the run; every failure is folded into the
// returned SourceRunResult.
type Adapter interface {
	Source() SourceTag
	Fetch(ctx context.Context, run *RunContext) ([]CandidateJob, SourceRunResult)
}

// Preflighter is implemented by adapters that need configuration (such as
// an API key) before a run may start.
type Preflighter interface {
	Preflight() error
}

// State is a phase of a run
type State int32

const (
	StateIdle State = iota
	StateDispatching
	StateCollecting
	StateValidating
	StateDeduplicating
	StateCapping
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDispatching:
		return "dispatching"
	case StateCollecting:
		return "collecting"
	case StateValidating:
		return "validating"
	case StateDeduplicating:
		return "deduplicating"
	case StateCapping:
		return "capping"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Options is the immutable configuration of every run an Orchestrator starts
type Options struct {
	MaxJobs       int
	Deadline      time.Duration
	PerCompanyCap int
	CappedSources []SourceTag
	Priority      []SourceTag
	CallsPerRun   int
	// Grace is how long before Deadline adapters are cancelled, leaving
	// time to hand in what they extracted. Zero picks a tenth of the
	// deadline, at most two seconds.
	Grace       time.Duration
	NewBudget   func(limit int) Budget
	ExtraSkills []string
	// OnTransition, if set, is called synchronously on every state change
	OnTransition func(runID string, from, to State)
}

// OptionsFromConfig maps the discovery, search and sources sections onto Options.
// NewBudget is left for the caller to set.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	opts := Options{
		MaxJobs:       cfg.Discovery.MaxJobs,
		Deadline:      cfg.Discovery.RunDeadline,
		PerCompanyCap: cfg.Discovery.PerCompanyCap,
		CallsPerRun:   cfg.Search.CallsPerRun,
		ExtraSkills:   cfg.Vocabulary.Skills,
	}
	for _, s := range cfg.Discovery.CappedSources {
		tag, err := ParseSourceTag(s)
		if err != nil {
			return Options{}, fmt.Errorf("discovery.capped_sources: %w", err)
		}
		opts.CappedSources = append(opts.CappedSources, tag)
	}
	for _, s := range cfg.Sources.Priority {
		tag, err := ParseSourceTag(s)
		if err != nil {
			return Options{}, fmt.Errorf("sources.priority: %w", err)
		}
		opts.Priority = append(opts.Priority, tag)
	}
	return opts, nil
}

const maxGrace = 2 * time.Second

// Orchestrator runs the enabled adapters concurrently under a deadline and
// turns their batches into an AggregationReport.
type Orchestrator struct {
	adapters  map[SourceTag]Adapter
	order     []SourceTag
	validator *Validator
	opts      Options
	logger    logging.Logger
}

// NewOrchestrator registers one adapter per source. Sources without an adapter
// are treated as disabled and left out of the report.
func NewOrchestrator(adapters []Adapter, validator *Validator, opts Options, logger logging.Logger) (*Orchestrator, error) {
	if opts.MaxJobs <= 0 {
		return nil, fmt.Errorf("max jobs must be positive, got %d", opts.MaxJobs)
	}
	if opts.Deadline <= 0 {
		return nil, fmt.Errorf("run deadline must be positive, got %s", opts.Deadline)
	}
	if opts.NewBudget == nil {
		return nil, fmt.Errorf("budget factory is required")
	}
	if len(opts.Priority) == 0 {
		opts.Priority = DefaultPriority
	}
	if opts.Grace <= 0 {
		opts.Grace = min(opts.Deadline/10, maxGrace)
	}
	if opts.Grace >= opts.Deadline {
		return nil, fmt.Errorf("grace %s must be shorter than the run deadline %s", opts.Grace, opts.Deadline)
	}
	if validator == nil {
		validator = NewValidator(nil, nil)
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	o := &Orchestrator{
		adapters:  make(map[SourceTag]Adapter, len(adapters)),
		validator: validator,
		opts:      opts,
		logger:    logger,
	}
	for _, a := range adapters {
		tag := a.Source()
		if !tag.Valid() {
			return nil, fmt.Errorf("adapter has unknown source %q", tag)
		}
		if _, dup := o.adapters[tag]; dup {
			return nil, fmt.Errorf("duplicate adapter for source %s", tag)
		}
		o.adapters[tag] = a
	}

	// priority order first, then anything the priority list left out in default order
	seen := make(map[SourceTag]bool)
	for _, tag := range append(append([]SourceTag(nil), opts.Priority...), DefaultPriority...) {
		if _, ok := o.adapters[tag]; ok && !seen[tag] {
			seen[tag] = true
			o.order = append(o.order, tag)
		}
	}

	return o, nil
}

// Sources returns the enabled sources in priority order
func (o *Orchestrator) Sources() []SourceTag {
	return append([]SourceTag(nil), o.order...)
}

// Validator returns the validator shared by every run
func (o *Orchestrator) Validator() *Validator {
	return o.validator
}

// Preflight checks every enabled adapter's configuration. A failure is a
// configuration fault and no adapter is started.
func (o *Orchestrator) Preflight() error {
	var problems []string
	for _, tag := range o.order {
		if p, ok := o.adapters[tag].(Preflighter); ok {
			if err := p.Preflight(); err != nil {
				problems = append(problems, fmt.Sprintf("%s: %v", tag, err))
			}
		}
	}
	if len(problems) > 0 {
		return utils.NewConfigurationError(strings.Join(problems, "; "))
	}
	return nil
}

// Run executes one discovery run with a fresh run id
func (o *Orchestrator) Run(ctx context.Context, input RunInput) (*AggregationReport, error) {
	return o.NewRun(utils.GenerateRunID(), input).Execute(ctx)
}

// NewRun prepares a run without starting it
func (o *Orchestrator) NewRun(runID string, input RunInput) *Run {
	input = input.Normalize()
	return &Run{
		id:    runID,
		input: input,
		orch:  o,
		log:   o.logger.WithField("run_id", runID),
	}
}

// Run is one bounded execution of the pipeline
type Run struct {
	id    string
	input RunInput
	orch  *Orchestrator
	log   logging.Logger
	state atomic.Int32
}

// ID returns the run id
func (r *Run) ID() string { return r.id }

// State returns the current phase
func (r *Run) State() State { return State(r.state.Load()) }

func (r *Run) transition(to State) {
	from := State(r.state.Swap(int32(to)))
	r.log.Debug("Run state changed", map[string]interface{}{
		"from": from.String(),
		"to":   to.String(),
	})
	if hook := r.orch.opts.OnTransition; hook != nil {
		hook(r.id, from, to)
	}
}

type batch struct {
	jobs   []CandidateJob
	result SourceRunResult
}

// Execute runs the pipeline. The only error is a configuration fault detected
// before any adapter starts; source failures and the deadline only shape the report.
func (r *Run) Execute(ctx context.Context) (*AggregationReport, error) {
	o := r.orch
	start := time.Now()

	if err := o.Preflight(); err != nil {
		r.log.Error("Run refused before dispatch", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}

	budget := o.opts.NewBudget(o.opts.CallsPerRun)
	rc := &RunContext{
		RunID:     r.id,
		Input:     r.input,
		Budget:    budget,
		Skills:    unionSkills(unionSkills(DefaultSkillVocabulary, o.opts.ExtraSkills), r.input.Profile.Skills),
		Validator: o.validator,
		Logger:    r.log,
	}

	r.transition(StateDispatching)
	runCtx, cancel := context.WithTimeout(ctx, o.opts.Deadline)
	defer cancel()
	// adapters stop a little early so partial batches still reach the collector
	adapterCtx, stopAdapters := context.WithTimeout(runCtx, o.opts.Deadline-o.opts.Grace)
	defer stopAdapters()

	// buffered so adapters finishing after the deadline never block
	results := make(chan batch, len(o.order))
	for _, tag := range o.order {
		go r.dispatch(adapterCtx, o.adapters[tag], rc, results)
	}

	r.transition(StateCollecting)
	collected := r.collect(runCtx, results)
	stopAdapters()
	cancel()

	r.transition(StateValidating)
	accepted, scraped := r.validate(collected)

	r.transition(StateDeduplicating)
	dedup := NewDeduplicator(o.opts.PerCompanyCap, o.opts.CappedSources)
	cappedCount := 0
	for _, c := range accepted {
		if dedup.Add(c) == Capped {
			cappedCount++
		}
	}

	r.transition(StateCapping)
	jobs := dedup.Jobs()
	if len(jobs) > o.opts.MaxJobs {
		jobs = jobs[:o.opts.MaxJobs]
	}

	report := newReport(r.id, jobs, o.order, collected, scraped, time.Since(start), budget.Used())
	r.transition(StateDone)

	r.log.Info("Discovery run completed", map[string]interface{}{
		"total_jobs":     report.TotalJobs,
		"candidates":     len(accepted),
		"company_capped": cappedCount,
		"budget_used":    report.BudgetUsed,
		"elapsed":        utils.FormatDuration(report.Elapsed),
		"failed_sources": report.FailedSources(),
	})

	return report, nil
}

func (r *Run) dispatch(ctx context.Context, a Adapter, rc *RunContext, out chan<- batch) {
	tag := a.Source()
	started := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("Adapter panicked", map[string]interface{}{
				"source": tag,
				"panic":  fmt.Sprint(rec),
			})
			out <- batch{result: SourceRunResult{
				Source:   tag,
				Status:   StatusFailed,
				Error:    fmt.Sprintf("adapter panic: %v", rec),
				Duration: time.Since(started),
			}}
		}
	}()

	jobs, result := a.Fetch(ctx, rc)
	result.Source = tag
	if result.Duration == 0 {
		result.Duration = time.Since(started)
	}
	out <- batch{jobs: jobs, result: result}
}

// collect waits for every adapter or the deadline, whichever comes first
func (r *Run) collect(ctx context.Context, results <-chan batch) map[SourceTag]batch {
	expected := len(r.orch.order)
	collected := make(map[SourceTag]batch, expected)

	accept := func(b batch) {
		collected[b.result.Source] = b
		r.log.Info("Source finished", map[string]interface{}{
			"source":   b.result.Source,
			"status":   b.result.Status,
			"items":    len(b.jobs),
			"calls":    b.result.Calls,
			"duration": utils.FormatDuration(b.result.Duration),
		})
	}

	for len(collected) < expected {
		select {
		case b := <-results:
			accept(b)
		case <-ctx.Done():
			// batches already delivered count; anything later is dropped
		drain:
			for {
				select {
				case b := <-results:
					accept(b)
				default:
					break drain
				}
			}
			r.markUnfinished(ctx, collected)
			return collected
		}
	}
	return collected
}

func (r *Run) markUnfinished(ctx context.Context, collected map[SourceTag]batch) {
	reason := "run deadline exceeded"
	if errors.Is(ctx.Err(), context.Canceled) {
		reason = "run cancelled"
	}
	for _, tag := range r.orch.order {
		if _, ok := collected[tag]; ok {
			continue
		}
		collected[tag] = batch{result: SourceRunResult{
			Source:   tag,
			Status:   StatusTimedOut,
			Error:    reason,
			Duration: r.orch.opts.Deadline,
		}}
		r.log.Warn("Source did not report before the deadline", map[string]interface{}{
			"source": tag,
		})
	}
}

// validate walks batches in priority order and keeps candidates the validator accepts
func (r *Run) validate(collected map[SourceTag]batch) ([]CandidateJob, map[SourceTag]int) {
	var accepted []CandidateJob
	scraped := make(map[SourceTag]int, len(r.orch.order))
	rejected := make(map[ReasonCode]int)

	for _, tag := range r.orch.order {
		b := collected[tag]
		count := 0
		for _, c := range b.jobs {
			c.Source = tag
			if err := c.Validate(); err != nil {
				rejected[ReasonInvalidURL]++
				continue
			}
			verdict := r.orch.validator.Classify(c.URL)
			if !verdict.Accept {
				rejected[verdict.Reason]++
				continue
			}
			accepted = append(accepted, c)
			count++
		}
		b.result.Items = len(b.jobs)
		b.result.Accepted = count
		collected[tag] = b
		scraped[tag] = count
	}

	if len(rejected) > 0 {
		fields := make(map[string]interface{}, len(rejected))
		for reason, n := range rejected {
			fields["rejected_"+string(reason)] = n
		}
		r.log.Debug("Validator rejections", fields)
	}
	return accepted, scraped
}
