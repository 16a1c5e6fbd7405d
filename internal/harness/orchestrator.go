package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/apiprobe/internal/session"
	"github.com/roach88/apiprobe/internal/suite"
)

// ErrCancelled is the Error recorded for suites skipped by cancellation.
const ErrCancelled = "run cancelled"

// IDGenerator produces run ids.
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run ids.
//
// UUIDv7 embeds a timestamp in the most significant bits, so stored runs sort
// by start time.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// SuiteRunner executes one suite. *suite.Runner is the production
// implementation.
type SuiteRunner interface {
	Run(ctx context.Context, s suite.Suite, env *suite.Env) suite.Report
}

// Orchestrator sequences suites with per-suite fault isolation.
type Orchestrator struct {
	Suites []suite.Suite
	Runner SuiteRunner
	Clock  suite.Clock
	IDs    IDGenerator
	Logger *slog.Logger

	// Delay is waited between suites so rate limits tripped by one suite do
	// not bleed into the next. The wait ends early on cancellation.
	Delay time.Duration
}

// New creates an Orchestrator with production defaults.
func New(suites []suite.Suite, delay time.Duration, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Orchestrator{
		Suites: suites,
		Runner: suite.NewRunner(),
		Clock:  suite.SystemClock,
		IDs:    UUIDv7Generator{},
		Logger: logger,
		Delay:  delay,
	}
}

// Run executes every suite in order and returns the summary.
//
// Cancelling ctx stops new suites from starting. The suites that never ran are
// recorded as failed with ErrCancelled, so the summary always covers the full
// plan.
func (o *Orchestrator) Run(ctx context.Context, env *suite.Env) RunSummary {
	o.defaults()
	if env.State == nil {
		env.State = session.New()
	}

	runID := o.IDs.Generate()
	target := ""
	if env.Client != nil {
		target = env.Client.BaseURL
	}
	logger := o.Logger.With("run_id", runID)
	logger.Info("run starting", "target", target, "suites", len(o.Suites))

	startedAt := o.Clock.Now()
	results := make([]SuiteResult, 0, len(o.Suites))

	for i, s := range o.Suites {
		if ctx.Err() != nil {
			for _, rest := range o.Suites[i:] {
				results = append(results, SuiteResult{Name: rest.Name, Error: ErrCancelled})
			}
			logger.Warn("run cancelled", "skipped", len(o.Suites)-i)
			break
		}

		res := o.runSuite(ctx, s, env)
		results = append(results, res)
		if res.Passed {
			logger.Info("suite passed", "suite", s.Name, "duration", res.Duration, "warnings", res.Warnings)
		} else {
			logger.Error("suite failed", "suite", s.Name, "duration", res.Duration, "error", res.Error)
		}

		if i < len(o.Suites)-1 {
			wait(ctx, o.Delay)
		}
	}

	summary := Summarize(runID, target, startedAt, o.Clock.Now().Sub(startedAt), results)
	logger.Info("run finished",
		"score", summary.ReadinessScore,
		"verdict", summary.Verdict,
		"failed", summary.FailedSuites,
	)
	return summary
}

// runSuite executes s under recover. A panic restores the session snapshot.
func (o *Orchestrator) runSuite(ctx context.Context, s suite.Suite, env *suite.Env) SuiteResult {
	start := o.Clock.Now()
	snap := env.State.Snapshot()

	rep, err := o.protect(ctx, s, env)

	res := SuiteResult{
		Name:     s.Name,
		Passed:   err == nil && rep.Passed,
		Warnings: rep.Warnings,
		Checks:   rep.Records,
	}
	switch {
	case err != nil:
		env.State.Restore(snap)
		res.Error = err.Error()
	case !rep.Passed:
		res.Error = fmt.Sprintf("%d of %d checks failed", rep.Failures, len(rep.Records))
	}
	res.Duration = o.Clock.Now().Sub(start)
	return res
}

func (o *Orchestrator) protect(ctx context.Context, s suite.Suite, env *suite.Env) (rep suite.Report, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("suite panicked: %v", r)
		}
	}()
	return o.Runner.Run(ctx, s, env), nil
}

func (o *Orchestrator) defaults() {
	if o.Runner == nil {
		o.Runner = suite.NewRunner()
	}
	if o.Clock == nil {
		o.Clock = suite.SystemClock
	}
	if o.IDs == nil {
		o.IDs = UUIDv7Generator{}
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
}

// wait blocks for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
