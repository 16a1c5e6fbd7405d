// Package suite defines checks, suites, and the runner that executes one
// suite's checks in order.
//
// A check never aborts its suite: a false result or a panic is recorded and
// the runner moves on. The only short-circuit is the auth bootstrap of a
// suite that requires a token. When no token can be acquired the suite fails
// before its first check, because nothing after it could produce signal.
package suite

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/apiprobe/internal/config"
	"github.com/roach88/apiprobe/internal/outcome"
	"github.com/roach88/apiprobe/internal/session"
)

// Level is the three-tier verdict of a single check.
type Level string

const (
	LevelPass Level = "pass"
	LevelWarn Level = "warn"
	LevelFail Level = "fail"
)

// CheckResult is what a check returns. A warning counts as passed.
type CheckResult struct {
	Passed  bool
	Level   Level
	Message string
}

// Pass builds a passing result.
func Pass(format string, args ...any) CheckResult {
	return CheckResult{Passed: true, Level: LevelPass, Message: fmt.Sprintf(format, args...)}
}

// Warn builds a result that passes but flags a missing protective behavior.
func Warn(format string, args ...any) CheckResult {
	return CheckResult{Passed: true, Level: LevelWarn, Message: fmt.Sprintf(format, args...)}
}

// Fail builds a failing result.
func Fail(format string, args ...any) CheckResult {
	return CheckResult{Passed: false, Level: LevelFail, Message: fmt.Sprintf(format, args...)}
}

// normalize reconciles Passed and Level for results built by hand.
func (r CheckResult) normalize() CheckResult {
	switch r.Level {
	case "":
		if r.Passed {
			r.Level = LevelPass
		} else {
			r.Level = LevelFail
		}
	case LevelPass, LevelWarn:
		r.Passed = true
	default:
		r.Level = LevelFail
		r.Passed = false
	}
	if r.Message == "" && !r.Passed {
		r.Message = "check failed"
	}
	return r
}

// Env is everything a check may touch. It is passed explicitly; checks do not
// reach for package state.
type Env struct {
	Client *outcome.Client
	State  *session.State
	Config *config.Config
	Logger *slog.Logger
}

// Check is the smallest unit of verification.
type Check struct {
	Name string
	Run  func(ctx context.Context, env *Env) CheckResult
}

// Suite is a named, ordered list of checks.
type Suite struct {
	Name string

	// RequiresAuth makes the runner bootstrap a token before the first check
	// when the session has none.
	RequiresAuth bool

	Checks []Check
}

// CheckRecord is the reported outcome of one check.
type CheckRecord struct {
	Name     string        `json:"name"`
	Level    Level         `json:"level"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Report is the outcome of running one suite.
type Report struct {
	Suite    string        `json:"suite"`
	Passed   bool          `json:"passed"`
	Failures int           `json:"failures"`
	Warnings int           `json:"warnings"`
	Records  []CheckRecord `json:"checks"`
}

// Clock supplies wall time. Tests substitute a stepping clock so durations
// are reproducible.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the real clock.
var SystemClock Clock = systemClock{}

// BootstrapCheckName labels the record produced when auth bootstrap fails.
const BootstrapCheckName = "auth bootstrap"

// Runner executes suites.
type Runner struct {
	Clock Clock
}

// NewRunner creates a Runner on the system clock.
func NewRunner() *Runner {
	return &Runner{Clock: SystemClock}
}

// Run executes every check of s in order and reports through to completion.
func (r *Runner) Run(ctx context.Context, s Suite, env *Env) Report {
	clock := r.Clock
	if clock == nil {
		clock = SystemClock
	}
	logger := env.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With("suite", s.Name)

	report := Report{Suite: s.Name, Records: make([]CheckRecord, 0, len(s.Checks))}

	if s.RequiresAuth && (env.State == nil || !env.State.Authenticated()) {
		start := clock.Now()
		if err := Bootstrap(ctx, env); err != nil {
			logger.Error("auth bootstrap failed", "error", err)
			report.Records = append(report.Records, CheckRecord{
				Name:     BootstrapCheckName,
				Level:    LevelFail,
				Message:  err.Error(),
				Duration: clock.Now().Sub(start),
			})
			report.Failures = 1
			return report
		}
		logger.Debug("auth bootstrap succeeded", "user_id", env.State.UserID)
	}

	for _, c := range s.Checks {
		start := clock.Now()
		res := runCheck(ctx, c, env)
		rec := CheckRecord{
			Name:     c.Name,
			Level:    res.Level,
			Message:  res.Message,
			Duration: clock.Now().Sub(start),
		}
		report.Records = append(report.Records, rec)

		switch res.Level {
		case LevelPass:
			logger.Info("check passed", "check", c.Name, "message", res.Message)
		case LevelWarn:
			report.Warnings++
			logger.Warn("check warned", "check", c.Name, "message", res.Message)
		default:
			report.Failures++
			logger.Error("check failed", "check", c.Name, "message", res.Message)
		}
	}

	report.Passed = report.Failures == 0
	return report
}

// runCheck invokes one check and converts a panic into a failed result.
func runCheck(ctx context.Context, c Check, env *Env) (res CheckResult) {
	defer func() {
		if r := recover(); r != nil {
			res = Fail("panic: %v", r)
		}
	}()
	if c.Run == nil {
		return Fail("check has no body")
	}
	return c.Run(ctx, env).normalize()
}
