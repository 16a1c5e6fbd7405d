package probes

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/apiprobe/internal/session"
	"github.com/roach88/apiprobe/internal/suite"
	"github.com/roach88/apiprobe/internal/testutil"
)

// Unauthenticated GET /api/users is a 401.
func TestScenario_NoAuthIsUnauthorized(t *testing.T) {
	env := newEnv(t, testutil.NewBackend())

	out := env.Client.Get(context.Background(), PathUsers, "")
	assert.False(t, out.OK)
	assert.True(t, out.StatusIs(http.StatusUnauthorized))

	res := checkNoToken(context.Background(), env)
	assert.Equal(t, suite.LevelPass, res.Level)
}

func TestScenario_NoAuthServedIsFailure(t *testing.T) {
	b := testutil.NewBackend()
	b.Override(http.MethodGet, PathUsers, testutil.Override{Status: 200, Body: `[]`})
	env := newEnv(t, b)

	res := checkNoToken(context.Background(), env)
	assert.Equal(t, suite.LevelFail, res.Level)
}

// Create, list, update, read back, delete, confirm.
func TestScenario_TaskRoundTrip(t *testing.T) {
	b := testutil.NewBackend()
	env := authedEnv(t, b)
	tasks := Resources[0]
	ctx := context.Background()

	require.True(t, tasks.checkCreate(ctx, env).Passed)
	id, ok := env.State.Fixture(session.KindTask)
	require.True(t, ok)

	res := tasks.checkListed(ctx, env)
	require.True(t, res.Passed, res.Message)

	res = tasks.checkUpdate(ctx, env)
	require.True(t, res.Passed, res.Message)
	stored, ok := b.Entity("tasks", id)
	require.True(t, ok)
	assert.Equal(t, "In Progress", stored["status"])

	res = tasks.checkReadBack(ctx, env)
	require.True(t, res.Passed, res.Message)

	require.True(t, tasks.checkDelete(ctx, env).Passed)
	res = tasks.checkGone(ctx, env)
	assert.True(t, res.Passed, res.Message)
}

func TestScenario_UpdateNotPersisted(t *testing.T) {
	b := testutil.NewBackend()
	env := authedEnv(t, b)
	tasks := Resources[0]
	ctx := context.Background()

	require.True(t, tasks.checkCreate(ctx, env).Passed)
	id, _ := env.State.Fixture(session.KindTask)
	b.Override(http.MethodPut, "/api/tasks/"+id, testutil.Override{Status: 200, Body: `{}`})

	require.True(t, tasks.checkUpdate(ctx, env).Passed)
	res := tasks.checkReadBack(ctx, env)
	assert.Equal(t, suite.LevelFail, res.Level)
	assert.Contains(t, res.Message, `status is "Pending"`)
}

func TestScenario_RateLimitPresent(t *testing.T) {
	b := testutil.NewBackend()
	env := newEnv(t, b)

	outs := Burst(context.Background(), env.Client, PathHealth, 15, 15)
	require.Len(t, outs, 15)
	throttled := 0
	for _, o := range outs {
		if o.StatusIs(http.StatusTooManyRequests) {
			throttled++
		}
	}
	assert.Equal(t, 5, throttled)

	res := checkRateLimit(context.Background(), env)
	assert.Equal(t, suite.LevelPass, res.Level, res.Message)
}

func TestScenario_RateLimitAbsentWarns(t *testing.T) {
	b := testutil.NewBackend()
	b.RateLimit = 0
	env := newEnv(t, b)

	res := checkRateLimit(context.Background(), env)
	assert.Equal(t, suite.LevelWarn, res.Level)
	assert.True(t, res.Passed)
	assert.Equal(t, 15, b.Hits(http.MethodGet, PathHealth))
}

func TestScenario_RateLimitUnreachableFails(t *testing.T) {
	b := testutil.NewBackend()
	env := newEnv(t, b)
	env.Client.BaseURL = "http://127.0.0.1:1"

	res := checkRateLimit(context.Background(), env)
	assert.Equal(t, suite.LevelFail, res.Level)
}

func TestBurst_RespectsParallelLimit(t *testing.T) {
	b := testutil.NewBackend()
	b.RateLimit = 0
	env := newEnv(t, b)

	outs := Burst(context.Background(), env.Client, PathHealth, 7, 2)
	assert.Len(t, outs, 7)
	for _, o := range outs {
		assert.True(t, o.OK)
	}
	assert.Nil(t, Burst(context.Background(), env.Client, PathHealth, 0, 2))
}

func TestScenario_OAuthRedirect(t *testing.T) {
	env := newEnv(t, testutil.NewBackend())
	ctx := context.Background()

	assert.Equal(t, "accounts.google.com", GoogleAuthHost())

	res := checkGoogleRedirect(ctx, env)
	assert.Equal(t, suite.LevelPass, res.Level, res.Message)
	res = checkRedirectParams(ctx, env)
	assert.Equal(t, suite.LevelPass, res.Level, res.Message)
	assert.Contains(t, res.Message, "profile email")
}

func TestScenario_OAuthMisconfigured(t *testing.T) {
	cases := []struct {
		name     string
		override testutil.Override
		redirect suite.Level
		params   suite.Level
	}{
		{
			name: "wrong host",
			override: testutil.Override{Status: 302, Header: http.Header{
				"Location": {"https://evil.example/auth?client_id=x&scope=profile+email&response_type=code"},
			}},
			redirect: suite.LevelFail,
			params:   suite.LevelPass,
		},
		{
			name: "temporary redirect",
			override: testutil.Override{Status: 307, Header: http.Header{
				"Location": {"https://accounts.google.com/o/oauth2/v2/auth?client_id=x&scope=profile%20email&response_type=code"},
			}},
			redirect: suite.LevelWarn,
			params:   suite.LevelPass,
		},
		{
			name: "missing scope and client",
			override: testutil.Override{Status: 302, Header: http.Header{
				"Location": {"https://accounts.google.com/o/oauth2/v2/auth?scope=email&response_type=token"},
			}},
			redirect: suite.LevelPass,
			params:   suite.LevelFail,
		},
		{
			name: "scope names only contain the required words",
			override: testutil.Override{Status: 302, Header: http.Header{
				"Location": {"https://accounts.google.com/o/oauth2/v2/auth?client_id=x&scope=openid+emails+userprofile&response_type=code"},
			}},
			redirect: suite.LevelPass,
			params:   suite.LevelFail,
		},
		{
			name: "extra scopes alongside the required ones",
			override: testutil.Override{Status: 302, Header: http.Header{
				"Location": {"https://accounts.google.com/o/oauth2/v2/auth?client_id=x&scope=openid+profile+email&response_type=code"},
			}},
			redirect: suite.LevelPass,
			params:   suite.LevelPass,
		},
		{
			name:     "no redirect",
			override: testutil.Override{Status: 500, Body: `{"message":"GOOGLE_CLIENT_ID missing"}`},
			redirect: suite.LevelFail,
			params:   suite.LevelFail,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := testutil.NewBackend()
			b.Override(http.MethodGet, PathGoogle, tc.override)
			env := newEnv(t, b)

			assert.Equal(t, tc.redirect, checkGoogleRedirect(context.Background(), env).Level)
			assert.Equal(t, tc.params, checkRedirectParams(context.Background(), env).Level)
		})
	}
}

func TestOAuth_CallbackAndGoogleLogin(t *testing.T) {
	b := testutil.NewBackend()
	env := newEnv(t, b)
	ctx := context.Background()

	assert.Equal(t, suite.LevelPass, checkCallbackWithoutCode(ctx, env).Level)
	assert.Equal(t, suite.LevelPass, checkGoogleLogin(ctx, env).Level)

	b.Override(http.MethodGet, PathGoogleCallback, testutil.Override{Status: 500})
	b.Override(http.MethodPost, PathGoogleLogin, testutil.Override{Status: 200, Body: `{"token":"t"}`})
	assert.Equal(t, suite.LevelFail, checkCallbackWithoutCode(ctx, env).Level)
	assert.Equal(t, suite.LevelFail, checkGoogleLogin(ctx, env).Level)
}
