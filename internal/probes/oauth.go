package probes

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2/google"

	"github.com/roach88/apiprobe/internal/outcome"
	"github.com/roach88/apiprobe/internal/suite"
)

// OAuth endpoints.
const (
	PathGoogle         = "/api/users/google"
	PathGoogleCallback = "/api/users/google/callback"
	PathGoogleLogin    = "/api/users/google-login"
)

// requiredScopes must all appear in the redirect's scope parameter.
var requiredScopes = []string{"profile", "email"}

// GoogleAuthHost is the host a correct redirect points at.
func GoogleAuthHost() string {
	u, err := url.Parse(google.Endpoint.AuthURL)
	if err != nil {
		return "accounts.google.com"
	}
	return u.Host
}

// OAuth inspects the Google sign-in flow without completing it.
func OAuth() suite.Suite {
	return suite.Suite{
		Name: NameOAuth,
		Checks: []suite.Check{
			{Name: "redirects to google", Run: checkGoogleRedirect},
			{Name: "redirect requests profile and email", Run: checkRedirectParams},
			{Name: "callback without code is rejected", Run: checkCallbackWithoutCode},
			{Name: "invalid google credential is rejected", Run: checkGoogleLogin},
		},
	}
}

func isRedirect(status int) bool {
	return status >= 300 && status < 400
}

// fetchRedirect requests the sign-in endpoint and parses its Location.
func fetchRedirect(ctx context.Context, env *suite.Env) (outcome.Outcome, *url.URL, *suite.CheckResult) {
	out := env.Client.Do(ctx, outcome.Spec{
		Method: http.MethodGet,
		Path:   PathGoogle,
		Accept: isRedirect,
	})
	if !out.OK {
		res := suite.Fail("expected a redirect, got %s", out)
		return out, nil, &res
	}
	loc := out.Header.Get("Location")
	if loc == "" {
		res := suite.Fail("redirect %d has no Location header", out.Status)
		return out, nil, &res
	}
	u, err := url.Parse(loc)
	if err != nil {
		res := suite.Fail("unparseable Location %q: %v", loc, err)
		return out, nil, &res
	}
	return out, u, nil
}

func checkGoogleRedirect(ctx context.Context, env *suite.Env) suite.CheckResult {
	out, loc, fail := fetchRedirect(ctx, env)
	if fail != nil {
		return *fail
	}
	host := GoogleAuthHost()
	if !strings.Contains(loc.Host, host) {
		return suite.Fail("redirect goes to %s, expected %s", loc.Host, host)
	}
	if out.Status != http.StatusFound {
		return suite.Warn("redirect to %s uses %d, expected 302", host, out.Status)
	}
	return suite.Pass("302 to %s", host)
}

func checkRedirectParams(ctx context.Context, env *suite.Env) suite.CheckResult {
	_, loc, fail := fetchRedirect(ctx, env)
	if fail != nil {
		return *fail
	}
	q := loc.Query()

	var problems []string
	if q.Get("client_id") == "" {
		problems = append(problems, "client_id missing")
	}
	if rt := q.Get("response_type"); rt != "code" {
		problems = append(problems, "response_type is "+quoteOrEmpty(rt)+", expected code")
	}
	scope := q.Get("scope")
	granted := make(map[string]bool)
	for _, s := range strings.Fields(scope) {
		granted[s] = true
	}
	for _, want := range requiredScopes {
		if !granted[want] {
			problems = append(problems, "scope lacks "+want)
		}
	}
	if len(problems) > 0 {
		return suite.Fail("%s", strings.Join(problems, "; "))
	}
	return suite.Pass("client_id present, scope %q, response_type=code", scope)
}

func checkCallbackWithoutCode(ctx context.Context, env *suite.Env) suite.CheckResult {
	out := env.Client.Do(ctx, outcome.Spec{
		Method: http.MethodGet,
		Path:   PathGoogleCallback,
		Accept: outcome.AnyStatus,
	})
	switch {
	case !out.HasStatus:
		return suite.Fail("no response: %s", out.Detail)
	case out.Status >= 500:
		return suite.Fail("callback without code caused a server error (%d)", out.Status)
	case out.Status < 300:
		return suite.Fail("callback without code succeeded (%d)", out.Status)
	default:
		return suite.Pass("callback without code answered %d", out.Status)
	}
}

func checkGoogleLogin(ctx context.Context, env *suite.Env) suite.CheckResult {
	out := env.Client.Post(ctx, PathGoogleLogin, "", map[string]string{
		"credential": "apiprobe-invalid-credential",
	})
	return expectRejected(out, "invalid google credential")
}

func quoteOrEmpty(s string) string {
	if s == "" {
		return "empty"
	}
	return `"` + s + `"`
}
