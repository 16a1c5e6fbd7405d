package probes

import (
	"context"
	"net/http"

	"github.com/roach88/apiprobe/internal/outcome"
	"github.com/roach88/apiprobe/internal/schema"
	"github.com/roach88/apiprobe/internal/suite"
)

// PathHealth is the liveness endpoint.
const PathHealth = "/api/health"

// missingRoute is a path no sane backend serves.
const missingRoute = "/api/apiprobe-missing-route"

// Health checks that the service is up and routes unknown paths sanely.
func Health() suite.Suite {
	return suite.Suite{
		Name: NameHealth,
		Checks: []suite.Check{
			{Name: "health endpoint responds", Run: checkHealth},
			{Name: "unknown route returns 404", Run: checkMissingRoute},
		},
	}
}

func checkHealth(ctx context.Context, env *suite.Env) suite.CheckResult {
	out := env.Client.Get(ctx, PathHealth, "")
	if !out.OK {
		return suite.Fail("health check failed: %s", out)
	}
	if err := schema.Validate(schema.Health, out.Body); err != nil {
		return suite.Warn("service is up but %v", err)
	}
	return suite.Pass("service is up (%d)", out.Status)
}

func checkMissingRoute(ctx context.Context, env *suite.Env) suite.CheckResult {
	out := env.Client.Get(ctx, missingRoute, "")
	switch {
	case outcome.Classify(out) == outcome.KindNotFound:
		return suite.Pass("unknown route rejected with 404")
	case !out.HasStatus:
		return suite.Fail("no response: %s", out.Detail)
	case out.Status >= http.StatusInternalServerError:
		return suite.Fail("unknown route caused a server error: %s", out)
	default:
		return suite.Warn("unknown route answered %d, expected 404", out.Status)
	}
}
