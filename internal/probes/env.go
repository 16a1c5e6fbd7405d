package probes

import (
	"context"
	"net/url"
	"strings"

	"github.com/roach88/apiprobe/internal/config"
	"github.com/roach88/apiprobe/internal/suite"
)

// Minimum lengths below which a secret is flagged.
const (
	MinGoogleClientIDLen = 50
	MinJWTSecretLen      = 32
)

// Env checks the target service's environment, as seen through the harness
// configuration (.env file and process environment). It makes no requests.
func Env() suite.Suite {
	checks := make([]suite.Check, 0, len(config.ExpectedEnv)+4)
	for _, key := range config.ExpectedEnv {
		checks = append(checks, suite.Check{Name: key + " is set", Run: checkSet(key)})
	}
	checks = append(checks,
		suite.Check{Name: "GOOGLE_CLIENT_ID length", Run: checkMinLen("GOOGLE_CLIENT_ID", MinGoogleClientIDLen)},
		suite.Check{Name: "JWT_SECRET strength", Run: checkMinLen("JWT_SECRET", MinJWTSecretLen)},
		suite.Check{Name: "MONGO_URI scheme", Run: checkMongoURI},
		suite.Check{Name: "GOOGLE_REDIRECT_URI format", Run: checkRedirectURI},
	)
	return suite.Suite{Name: NameEnv, Checks: checks}
}

func lookup(env *suite.Env, key string) (string, bool) {
	if env.Config == nil {
		return "", false
	}
	v, ok := env.Config.Environment[key]
	return v, ok && v != ""
}

func checkSet(key string) func(context.Context, *suite.Env) suite.CheckResult {
	return func(_ context.Context, env *suite.Env) suite.CheckResult {
		if _, ok := lookup(env, key); !ok {
			return suite.Fail("%s is not set", key)
		}
		return suite.Pass("%s is set", key)
	}
}

func checkMinLen(key string, minLen int) func(context.Context, *suite.Env) suite.CheckResult {
	return func(_ context.Context, env *suite.Env) suite.CheckResult {
		v, ok := lookup(env, key)
		if !ok {
			return suite.Warn("%s not set; length not checked", key)
		}
		if len(v) < minLen {
			return suite.Warn("%s is %d characters, expected at least %d", key, len(v), minLen)
		}
		return suite.Pass("%s is %d characters", key, len(v))
	}
}

func checkMongoURI(_ context.Context, env *suite.Env) suite.CheckResult {
	v, ok := lookup(env, "MONGO_URI")
	if !ok {
		return suite.Warn("MONGO_URI not set; scheme not checked")
	}
	if !strings.Contains(v, "mongodb") {
		return suite.Fail("MONGO_URI does not look like a MongoDB connection string")
	}
	return suite.Pass("MONGO_URI is a MongoDB connection string")
}

func checkRedirectURI(_ context.Context, env *suite.Env) suite.CheckResult {
	v, ok := lookup(env, "GOOGLE_REDIRECT_URI")
	if !ok {
		return suite.Warn("GOOGLE_REDIRECT_URI not set; format not checked")
	}
	u, err := url.Parse(v)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return suite.Warn("GOOGLE_REDIRECT_URI %q is not an absolute http(s) URL", v)
	}
	if !strings.Contains(u.Path, "callback") {
		return suite.Warn("GOOGLE_REDIRECT_URI path %q has no callback segment", u.Path)
	}
	return suite.Pass("GOOGLE_REDIRECT_URI points at %s", u.Host)
}
