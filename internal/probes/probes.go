// Package probes holds the concrete suites run against the target service.
//
// Plan returns them in pipeline order. Each suite is a plain value built from
// checks that read and write only through the *suite.Env they are given, so a
// suite can be exercised alone by handing it a pre-populated session.
package probes

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/roach88/apiprobe/internal/outcome"
	"github.com/roach88/apiprobe/internal/session"
	"github.com/roach88/apiprobe/internal/suite"
)

// Suite names, in pipeline order.
const (
	NameHealth   = "health"
	NameAuth     = "auth"
	NameProfile  = "profile"
	NameOAuth    = "oauth"
	NameSecurity = "security"
	NameEnv      = "env"
)

// Plan returns the fixed suite sequence.
func Plan() []suite.Suite {
	plan := []suite.Suite{Health(), Auth(), Profile()}
	for _, r := range Resources {
		plan = append(plan, CRUD(r))
	}
	return append(plan, OAuth(), Security())
}

// requireToken fails the check when no token has been recorded yet.
func requireToken(env *suite.Env) (string, *suite.CheckResult) {
	if !env.State.Authenticated() {
		res := suite.Fail("no auth token recorded yet")
		return "", &res
	}
	return env.State.Token, nil
}

// requireUser fails the check when no user id has been recorded yet.
func requireUser(env *suite.Env) (string, *suite.CheckResult) {
	if env.State.UserID == "" {
		res := suite.Fail("no user id recorded yet")
		return "", &res
	}
	return env.State.UserID, nil
}

// requireFixture fails the check when no create step for kind has succeeded.
func requireFixture(env *suite.Env, kind session.Kind) (string, *suite.CheckResult) {
	id, ok := env.State.Fixture(kind)
	if !ok {
		res := suite.Fail("no %s fixture created yet", kind)
		return "", &res
	}
	return id, nil
}

// expectRejected passes on a 4xx, and fails on success, a server error, or
// no response at all.
func expectRejected(out outcome.Outcome, what string) suite.CheckResult {
	switch {
	case !out.HasStatus:
		return suite.Fail("%s: no response: %s", what, out.Detail)
	case out.Status >= 500:
		return suite.Fail("%s: server error %s", what, out)
	case out.Status >= 400:
		return suite.Pass("%s rejected with %d", what, out.Status)
	default:
		return suite.Fail("%s was accepted with %d", what, out.Status)
	}
}

// expectUnauthorized passes on 401. A 403 is tolerated with a warning.
func expectUnauthorized(out outcome.Outcome, what string) suite.CheckResult {
	switch {
	case out.OK:
		return suite.Fail("%s was served (%d)", what, out.Status)
	case out.StatusIs(http.StatusUnauthorized):
		return suite.Pass("%s rejected with 401", what)
	case out.StatusIs(http.StatusForbidden):
		return suite.Warn("%s rejected with 403, expected 401", what)
	default:
		return suite.Fail("%s: expected 401, got %s", what, out)
	}
}

// entityID finds the identifier of a created entity. It looks at the top
// level first, then under the given envelope keys for wrapped responses like
// {"task": {...}}. Failing both, it accepts a single id-bearing object among
// the remaining keys; more than one is ambiguous and yields "".
func entityID(body any, keys ...string) string {
	obj, ok := body.(map[string]any)
	if !ok {
		return ""
	}
	if id := idOf(obj); id != "" {
		return id
	}
	for _, key := range keys {
		if inner, ok := obj[key].(map[string]any); ok {
			if id := idOf(inner); id != "" {
				return id
			}
		}
	}

	found := ""
	for _, key := range sortedKeys(obj) {
		inner, ok := obj[key].(map[string]any)
		if !ok {
			continue
		}
		if id := idOf(inner); id != "" {
			if found != "" {
				return ""
			}
			found = id
		}
	}
	return found
}

func idOf(obj map[string]any) string {
	for _, key := range []string{"_id", "id"} {
		switch v := obj[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}

// listFrom returns the collection in a list response, unwrapping
// {"tasks": [...]} style envelopes. The given keys are tried first; otherwise
// the envelope must hold exactly one array.
func listFrom(body any, keys ...string) ([]any, bool) {
	switch b := body.(type) {
	case []any:
		return b, true
	case map[string]any:
		for _, key := range keys {
			if list, ok := b[key].([]any); ok {
				return list, true
			}
		}
		var (
			found []any
			n     int
		)
		for _, key := range sortedKeys(b) {
			if list, ok := b[key].([]any); ok {
				found = list
				n++
			}
		}
		if n == 1 {
			return found, true
		}
	}
	return nil, false
}

func sortedKeys(obj map[string]any) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// findByID returns the entity with id from list.
func findByID(list []any, id string) (map[string]any, bool) {
	for _, item := range list {
		obj, ok := item.(map[string]any)
		if ok && idOf(obj) == id {
			return obj, true
		}
	}
	return nil, false
}
