package probes

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/apiprobe/internal/outcome"
	"github.com/roach88/apiprobe/internal/suite"
)

// oversizedBytes is the payload size used to probe body limits.
const oversizedBytes = 1 << 20

// Security probes protective behavior. Missing rate limiting or a permissive
// CORS policy is reported as a warning, not a failure.
func Security() suite.Suite {
	return suite.Suite{
		Name:         NameSecurity,
		RequiresAuth: true,
		Checks: []suite.Check{
			{Name: "malformed token is rejected", Run: checkMalformedToken},
			{Name: "tampered token is rejected", Run: checkTamperedToken},
			{Name: "empty task title is rejected", Run: checkEmptyTitle},
			{Name: "malformed json is rejected", Run: checkMalformedJSON},
			{Name: "malformed email is rejected", Run: checkMalformedEmail},
			{Name: "oversized payload does not crash", Run: checkOversized},
			{Name: "cors refuses foreign origin", Run: checkForeignOrigin},
			{Name: "cors allows client origin", Run: checkClientOrigin},
			// Last, so throttling does not leak into the checks above.
			{Name: "rate limiting", Run: checkRateLimit},
		},
	}
}

func checkMalformedToken(ctx context.Context, env *suite.Env) suite.CheckResult {
	return expectUnauthorized(env.Client.Get(ctx, PathUsers, "not-a-jwt"), "malformed token")
}

func checkTamperedToken(ctx context.Context, env *suite.Env) suite.CheckResult {
	token, fail := requireToken(env)
	if fail != nil {
		return *fail
	}
	tampered, ok := Tamper(token)
	if !ok {
		return suite.Warn("token is not a JWT; tamper probe skipped")
	}
	return expectUnauthorized(env.Client.Get(ctx, PathUsers, tampered), "tampered token")
}

// Tamper alters the first character of a JWT signature. It reports false when
// token does not have three segments.
func Tamper(token string) (string, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[2] == "" {
		return "", false
	}
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	parts[2] = string(sig)
	return strings.Join(parts, "."), true
}

func checkEmptyTitle(ctx context.Context, env *suite.Env) suite.CheckResult {
	out := env.Client.Do(ctx, outcome.Spec{
		Method: http.MethodPost,
		Path:   "/api/tasks",
		Token:  env.State.Token,
		Body:   map[string]any{"title": "", "description": "no title"},
		Accept: outcome.AnyStatus,
	})
	cleanup(ctx, env, "/api/tasks", out)
	return expectRejected(out, "task with an empty title")
}

func checkMalformedJSON(ctx context.Context, env *suite.Env) suite.CheckResult {
	out := env.Client.Do(ctx, outcome.Spec{
		Method: http.MethodPost,
		Path:   "/api/tasks",
		Token:  env.State.Token,
		Header: http.Header{"Content-Type": {"application/json"}},
		Body:   []byte(`{"title": "unterminated`),
		Accept: outcome.AnyStatus,
	})
	cleanup(ctx, env, "/api/tasks", out)
	return expectRejected(out, "malformed json")
}

func checkMalformedEmail(ctx context.Context, env *suite.Env) suite.CheckResult {
	out := env.Client.Do(ctx, outcome.Spec{
		Method: http.MethodPost,
		Path:   suite.PathRegister,
		Body: map[string]string{
			"username": env.Config.Account.Username + "_bademail",
			"email":    "not-an-email",
			"password": env.Config.Account.Password,
		},
		Accept: outcome.AnyStatus,
	})
	return expectRejected(out, "registration with a malformed email")
}

func checkOversized(ctx context.Context, env *suite.Env) suite.CheckResult {
	out := env.Client.Do(ctx, outcome.Spec{
		Method: http.MethodPost,
		Path:   "/api/tasks",
		Token:  env.State.Token,
		Body: map[string]any{
			"title":       "oversized",
			"description": strings.Repeat("x", oversizedBytes),
		},
		Accept: outcome.AnyStatus,
	})
	cleanup(ctx, env, "/api/tasks", out)
	switch {
	case !out.HasStatus:
		return suite.Warn("connection dropped on a %d byte payload: %s", oversizedBytes, out.Detail)
	case out.Status >= 500:
		return suite.Fail("%d byte payload caused a server error (%d)", oversizedBytes, out.Status)
	case out.Status >= 400:
		return suite.Pass("%d byte payload rejected with %d", oversizedBytes, out.Status)
	default:
		return suite.Warn("%d byte payload accepted (%d); no body size limit", oversizedBytes, out.Status)
	}
}

// cleanup deletes an entity a negative probe created by mistake.
func cleanup(ctx context.Context, env *suite.Env, path string, out outcome.Outcome) {
	if !out.HasStatus || out.Status < 200 || out.Status >= 300 {
		return
	}
	if id := entityID(out.Body, "tasks", "task"); id != "" {
		env.Client.Delete(ctx, path+"/"+id, env.State.Token)
	}
}

// preflight sends a CORS preflight for a task create from origin.
func preflight(ctx context.Context, env *suite.Env, origin string) outcome.Outcome {
	return env.Client.Do(ctx, outcome.Spec{
		Method: http.MethodOptions,
		Path:   "/api/tasks",
		Header: http.Header{
			"Origin":                         {origin},
			"Access-Control-Request-Method":  {http.MethodPost},
			"Access-Control-Request-Headers": {"authorization,content-type"},
		},
		Accept: outcome.AnyStatus,
	})
}

func checkForeignOrigin(ctx context.Context, env *suite.Env) suite.CheckResult {
	origin := env.Config.CORSOrigin
	out := preflight(ctx, env, origin)
	if !out.HasStatus {
		return suite.Fail("no response: %s", out.Detail)
	}
	allowed := out.Header.Get("Access-Control-Allow-Origin")
	creds := strings.EqualFold(out.Header.Get("Access-Control-Allow-Credentials"), "true")
	switch {
	case allowed == origin && creds:
		return suite.Warn("foreign origin %s is reflected with credentials", origin)
	case allowed == origin:
		return suite.Warn("foreign origin %s is reflected", origin)
	case allowed == "*" && creds:
		return suite.Warn("wildcard origin combined with credentials")
	case allowed == "*":
		return suite.Warn("any origin is allowed")
	default:
		return suite.Pass("foreign origin refused")
	}
}

func checkClientOrigin(ctx context.Context, env *suite.Env) suite.CheckResult {
	origin := strings.TrimRight(env.Config.ClientURL, "/")
	if origin == "" {
		return suite.Warn("no client url configured; skipped")
	}
	out := preflight(ctx, env, origin)
	if !out.HasStatus {
		return suite.Fail("no response: %s", out.Detail)
	}
	switch allowed := out.Header.Get("Access-Control-Allow-Origin"); allowed {
	case origin, "*":
		return suite.Pass("client origin %s allowed", origin)
	default:
		return suite.Warn("client origin %s not allowed by preflight", origin)
	}
}

func checkRateLimit(ctx context.Context, env *suite.Env) suite.CheckResult {
	rl := env.Config.RateLimit
	results := Burst(ctx, env.Client, rl.Path, rl.Burst, rl.Parallel)

	throttled, answered := 0, 0
	for _, out := range results {
		if out.HasStatus {
			answered++
		}
		if outcome.Classify(out) == outcome.KindRateLimited {
			throttled++
		}
	}
	switch {
	case answered == 0:
		return suite.Fail("none of %d requests got a response", len(results))
	case throttled > 0:
		return suite.Pass("%d of %d requests throttled with 429", throttled, len(results))
	default:
		return suite.Warn("no 429 in %d concurrent requests; rate limiting appears disabled", len(results))
	}
}

// Burst issues n concurrent GETs to path, at most parallel at a time, and
// returns the outcomes indexed by request number.
func Burst(ctx context.Context, c *outcome.Client, path string, n, parallel int) []outcome.Outcome {
	if n < 1 {
		return nil
	}
	if parallel < 1 {
		parallel = n
	}
	results := make([]outcome.Outcome, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			results[i] = c.Get(gctx, path, "")
			return nil
		})
	}
	_ = g.Wait()
	return results
}
