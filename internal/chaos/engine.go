// internal/chaos/engine.go
package chaos

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrBaselineBroken aborts an experiment whose invariants fail before any
// fault is injected.
var ErrBaselineBroken = errors.New("invariants broken before injection")

// Experiment injects faults into the exchange and watches a set of ledger
// invariants while they are active.
type Experiment struct {
	Name       string
	Hypothesis string
	Invariants []Invariant
	Inject     []Step
	Restore    []Step
	Checks     []Check
	// Window is how long invariants are sampled after injection.
	Window time.Duration
	// BlastRadius is the share of the exchange the faults touch, in [0, 1].
	BlastRadius float64
}

// Invariant is a number read from the exchange that must stay within Want.
type Invariant struct {
	Name    string
	Measure func(context.Context) (float64, error)
	Want    Bound
}

// Comparison relates a measured value to a bound.
type Comparison string

const (
	Equal   Comparison = "=="
	Below   Comparison = "<"
	Above   Comparison = ">"
	AtMost  Comparison = "<="
	AtLeast Comparison = ">="
)

type Bound struct {
	Op    Comparison
	Value float64
}

// Zero is the bound of counters that must never move.
var Zero = Bound{Op: Equal, Value: 0}

// Holds reports whether v satisfies the bound. Unknown comparisons never hold.
func (b Bound) Holds(v float64) bool {
	switch b.Op {
	case Equal:
		return v == b.Value
	case Below:
		return v < b.Value
	case Above:
		return v > b.Value
	case AtMost:
		return v <= b.Value
	case AtLeast:
		return v >= b.Value
	}
	return false
}

// Step is one fault, workload or restore action against a component.
type Step struct {
	Kind   string
	Target string
	Params map[string]interface{}
	Run    func(context.Context) error
}

// Check is evaluated against the last sample of an invariant once the faults
// are removed.
type Check struct {
	Invariant string
	Holds     func(float64) bool
	Message   string
}

type Report struct {
	Experiment     string              `json:"experiment"`
	Started        time.Time           `json:"started"`
	Finished       time.Time           `json:"finished"`
	Elapsed        time.Duration       `json:"elapsed"`
	BaselineHeld   bool                `json:"baseline_held"`
	HypothesisHeld bool                `json:"hypothesis_held"`
	Breaches       []Breach            `json:"breaches"`
	Samples        map[string][]Sample `json:"samples"`
	StepErrors     []StepError         `json:"step_errors"`
	FailedChecks   []string            `json:"failed_checks,omitempty"`
	// RecoveredAfter is the time from the first breach to the first sample
	// back within bounds.
	RecoveredAfter *time.Duration `json:"recovered_after,omitempty"`
}

type Breach struct {
	Invariant string    `json:"invariant"`
	Want      Bound     `json:"want"`
	Got       float64   `json:"got"`
	At        time.Time `json:"at"`
}

type Sample struct {
	At    time.Time `json:"at"`
	Value float64   `json:"value"`
}

type StepError struct {
	At        time.Time `json:"at"`
	Component string    `json:"component"`
	Error     string    `json:"error"`
}

// Engine runs experiments and keeps their reports.
type Engine struct {
	tracer   trace.Tracer
	logger   *zap.Logger
	interval time.Duration

	mu          sync.Mutex
	experiments []Experiment
	reports     []Report
}

// NewEngine samples invariants every interval while faults are active.
func NewEngine(logger *zap.Logger, interval time.Duration) *Engine {
	return &Engine{
		tracer:   otel.Tracer("barternexus/chaos"),
		logger:   logger,
		interval: interval,
	}
}

func (e *Engine) Register(exp Experiment) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.experiments = append(e.experiments, exp)
}

func (e *Engine) Experiments() []Experiment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Experiment(nil), e.experiments...)
}

func (e *Engine) Reports() []Report {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Report(nil), e.reports...)
}

// Run checks the baseline, injects the faults, samples the invariants for
// the experiment's window, restores and evaluates the checks. Reports of
// aborted runs are returned but not kept.
func (e *Engine) Run(ctx context.Context, exp Experiment) (*Report, error) {
	ctx, span := e.tracer.Start(ctx, "chaos.run",
		trace.WithAttributes(attribute.String("experiment", exp.Name)),
	)
	defer span.End()

	report := &Report{
		Experiment: exp.Name,
		Started:    time.Now(),
		Samples:    make(map[string][]Sample),
	}

	span.AddEvent("baseline")
	report.Breaches = e.baseline(ctx, exp.Invariants)
	if len(report.Breaches) > 0 {
		return report, ErrBaselineBroken
	}
	report.BaselineHeld = true

	span.AddEvent("inject")
	for _, step := range exp.Inject {
		if err := step.Run(ctx); err != nil {
			report.StepErrors = append(report.StepErrors, StepError{At: time.Now(), Component: step.Target, Error: err.Error()})
			span.RecordError(err)
		}
	}

	span.AddEvent("sample")
	e.sample(ctx, exp, report)

	span.AddEvent("restore")
	for _, step := range exp.Restore {
		if err := step.Run(ctx); err != nil {
			span.RecordError(err)
		}
	}

	report.FailedChecks = failedChecks(exp.Checks, report.Samples)
	report.HypothesisHeld = len(report.FailedChecks) == 0
	report.Finished = time.Now()
	report.Elapsed = report.Finished.Sub(report.Started)

	e.mu.Lock()
	e.reports = append(e.reports, *report)
	e.mu.Unlock()

	span.SetAttributes(
		attribute.Bool("hypothesis_held", report.HypothesisHeld),
		attribute.Int("breaches", len(report.Breaches)),
	)
	return report, nil
}

// baseline measures every invariant once. A failed measurement counts as a
// breach with Got -1.
func (e *Engine) baseline(ctx context.Context, invariants []Invariant) []Breach {
	var breaches []Breach
	for _, inv := range invariants {
		v, err := inv.Measure(ctx)
		if err != nil {
			e.logger.Warn("Baseline measurement failed", zap.String("invariant", inv.Name), zap.Error(err))
			v = -1
		} else if inv.Want.Holds(v) {
			continue
		}
		breaches = append(breaches, Breach{Invariant: inv.Name, Want: inv.Want, Got: v, At: time.Now()})
	}
	return breaches
}

func (e *Engine) sample(ctx context.Context, exp Experiment, report *Report) {
	window, cancel := context.WithTimeout(ctx, exp.Window)
	defer cancel()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	var firstBreach time.Time
	for {
		select {
		case <-window.Done():
			return
		case <-ticker.C:
		}

		for _, inv := range exp.Invariants {
			v, err := inv.Measure(ctx)
			now := time.Now()
			if err != nil {
				report.StepErrors = append(report.StepErrors, StepError{At: now, Component: inv.Name, Error: err.Error()})
				continue
			}
			report.Samples[inv.Name] = append(report.Samples[inv.Name], Sample{At: now, Value: v})

			switch {
			case !inv.Want.Holds(v):
				if firstBreach.IsZero() {
					firstBreach = now
				}
				report.Breaches = append(report.Breaches, Breach{Invariant: inv.Name, Want: inv.Want, Got: v, At: now})
			case !firstBreach.IsZero() && report.RecoveredAfter == nil:
				d := now.Sub(firstBreach)
				report.RecoveredAfter = &d
			}
		}
	}
}

// failedChecks returns the messages of checks whose invariant ended outside
// what they accept. An invariant that was never sampled fails its checks.
func failedChecks(checks []Check, samples map[string][]Sample) []string {
	var failed []string
	for _, c := range checks {
		s := samples[c.Invariant]
		switch {
		case len(s) == 0:
			failed = append(failed, c.Message+" (never sampled)")
		case !c.Holds(s[len(s)-1].Value):
			failed = append(failed, c.Message)
		}
	}
	return failed
}

// GameDay is a scheduled run of several experiments.
type GameDay struct {
	Name         string
	Date         time.Time
	Scenarios    []Experiment
	Participants []string
	Pause        time.Duration
}

// RunGameDay runs the scenarios in order and returns how many did not
// confirm their hypothesis. Aborted runs count as failures.
func (e *Engine) RunGameDay(ctx context.Context, day GameDay) (int, error) {
	ctx, span := e.tracer.Start(ctx, "chaos.game_day",
		trace.WithAttributes(attribute.String("game_day", day.Name)),
	)
	defer span.End()

	e.logger.Info("Starting game day",
		zap.String("name", day.Name),
		zap.Time("date", day.Date),
		zap.Strings("participants", day.Participants),
	)

	failed := 0
	for i, exp := range day.Scenarios {
		if i > 0 && day.Pause > 0 {
			select {
			case <-ctx.Done():
				return failed, ctx.Err()
			case <-time.After(day.Pause):
			}
		}

		e.logger.Info("Running experiment",
			zap.Int("index", i+1),
			zap.Int("total", len(day.Scenarios)),
			zap.String("experiment", exp.Name),
			zap.String("hypothesis", exp.Hypothesis),
		)
		report, err := e.Run(ctx, exp)
		if err != nil {
			failed++
			e.logger.Error("Experiment aborted", zap.String("experiment", exp.Name), zap.Error(err))
			continue
		}
		e.logReport(report)
		if !report.HypothesisHeld {
			failed++
		}
	}
	return failed, nil
}

func (e *Engine) logReport(r *Report) {
	fields := []zap.Field{
		zap.String("experiment", r.Experiment),
		zap.Int("breaches", len(r.Breaches)),
		zap.Int("step_errors", len(r.StepErrors)),
		zap.Duration("elapsed", r.Elapsed),
	}
	if r.RecoveredAfter != nil {
		fields = append(fields, zap.Duration("recovered_after", *r.RecoveredAfter))
	}
	if !r.HypothesisHeld {
		e.logger.Warn("Hypothesis violated", append(fields, zap.Strings("failed_checks", r.FailedChecks))...)
		return
	}
	e.logger.Info("Hypothesis held", fields...)
}
