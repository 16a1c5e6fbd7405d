package suite

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/apiprobe/internal/config"
	"github.com/roach88/apiprobe/internal/outcome"
	"github.com/roach88/apiprobe/internal/session"
	"github.com/roach88/apiprobe/internal/testutil"
	"github.com/roach88/apiprobe/internal/transport"
)

func newEnv(t *testing.T, b *testutil.Backend) *Env {
	t.Helper()
	srv := b.Start(t)
	cfg := config.Default()
	cfg.ServerURL = srv.URL
	cfg.Account = config.Account{Username: "u1", Email: "u1@example.com", Password: "pw123456"}
	return &Env{
		Client: outcome.NewClient(srv.URL, transport.NewHTTPTransport(time.Second), nil),
		State:  session.New(),
		Config: cfg,
	}
}

func constant(res CheckResult) func(context.Context, *Env) CheckResult {
	return func(context.Context, *Env) CheckResult { return res }
}

func TestRun_AllPass(t *testing.T) {
	r := &Runner{Clock: testutil.NewStepClock(time.Millisecond)}
	rep := r.Run(context.Background(), Suite{
		Name: "demo",
		Checks: []Check{
			{Name: "a", Run: constant(Pass("ok"))},
			{Name: "b", Run: constant(Warn("no limiter"))},
		},
	}, &Env{State: session.New()})

	assert.True(t, rep.Passed)
	assert.Equal(t, 0, rep.Failures)
	assert.Equal(t, 1, rep.Warnings)
	require.Len(t, rep.Records, 2)
	assert.Equal(t, LevelWarn, rep.Records[1].Level)
	assert.Equal(t, time.Millisecond, rep.Records[0].Duration)
}

func TestRun_FailureDoesNotStopLaterChecks(t *testing.T) {
	var ran []string
	record := func(name string, res CheckResult) Check {
		return Check{Name: name, Run: func(context.Context, *Env) CheckResult {
			ran = append(ran, name)
			return res
		}}
	}

	rep := NewRunner().Run(context.Background(), Suite{
		Name: "demo",
		Checks: []Check{
			record("first", Fail("nope")),
			record("second", Pass("")),
			record("third", Fail("nope again")),
		},
	}, &Env{State: session.New()})

	assert.Equal(t, []string{"first", "second", "third"}, ran)
	assert.False(t, rep.Passed)
	assert.Equal(t, 2, rep.Failures)
}

func TestRun_PanicIsIsolated(t *testing.T) {
	rep := NewRunner().Run(context.Background(), Suite{
		Name: "demo",
		Checks: []Check{
			{Name: "boom", Run: func(context.Context, *Env) CheckResult { panic("kaboom") }},
			{Name: "nil body"},
			{Name: "after", Run: constant(Pass("still ran"))},
		},
	}, &Env{State: session.New()})

	require.Len(t, rep.Records, 3)
	assert.Equal(t, LevelFail, rep.Records[0].Level)
	assert.Equal(t, "panic: kaboom", rep.Records[0].Message)
	assert.Equal(t, "check has no body", rep.Records[1].Message)
	assert.Equal(t, LevelPass, rep.Records[2].Level)
	assert.Equal(t, 2, rep.Failures)
}

func TestRun_HandBuiltResultsAreNormalized(t *testing.T) {
	rep := NewRunner().Run(context.Background(), Suite{
		Name: "demo",
		Checks: []Check{
			{Name: "zero", Run: constant(CheckResult{})},
			{Name: "passed", Run: constant(CheckResult{Passed: true})},
			{Name: "bogus level", Run: constant(CheckResult{Passed: true, Level: "maybe"})},
		},
	}, &Env{State: session.New()})

	assert.Equal(t, LevelFail, rep.Records[0].Level)
	assert.Equal(t, "check failed", rep.Records[0].Message)
	assert.Equal(t, LevelPass, rep.Records[1].Level)
	assert.Equal(t, LevelFail, rep.Records[2].Level)
}

func TestRun_RequiresAuthBootstraps(t *testing.T) {
	env := newEnv(t, testutil.NewBackend())

	var sawToken string
	rep := NewRunner().Run(context.Background(), Suite{
		Name:         "profile",
		RequiresAuth: true,
		Checks: []Check{{Name: "token", Run: func(_ context.Context, env *Env) CheckResult {
			sawToken = env.State.Token
			return Pass("")
		}}},
	}, env)

	assert.True(t, rep.Passed)
	assert.NotEmpty(t, sawToken)
	assert.NotEmpty(t, env.State.UserID)
}

func TestRun_BootstrapFailureShortCircuits(t *testing.T) {
	b := testutil.NewBackend()
	b.Override(http.MethodPost, PathRegister, testutil.Override{Status: 500, Body: `{"message":"db down"}`})
	env := newEnv(t, b)

	called := false
	rep := NewRunner().Run(context.Background(), Suite{
		Name:         "tasks",
		RequiresAuth: true,
		Checks: []Check{{Name: "create", Run: func(context.Context, *Env) CheckResult {
			called = true
			return Pass("")
		}}},
	}, env)

	assert.False(t, called)
	assert.False(t, rep.Passed)
	require.Len(t, rep.Records, 1)
	assert.Equal(t, BootstrapCheckName, rep.Records[0].Name)
	assert.Contains(t, rep.Records[0].Message, "db down")
}

func TestRun_ExistingTokenSkipsBootstrap(t *testing.T) {
	b := testutil.NewBackend()
	env := newEnv(t, b)
	env.State.SetAuth("preset", "u0")

	NewRunner().Run(context.Background(), Suite{
		Name:         "profile",
		RequiresAuth: true,
		Checks:       []Check{{Name: "noop", Run: constant(Pass(""))}},
	}, env)

	assert.Equal(t, 0, b.Hits(http.MethodPost, PathRegister))
	assert.Equal(t, "preset", env.State.Token)
}
