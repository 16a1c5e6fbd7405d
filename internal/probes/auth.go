package probes

import (
	"context"
	"net/http"

	"github.com/roach88/apiprobe/internal/outcome"
	"github.com/roach88/apiprobe/internal/schema"
	"github.com/roach88/apiprobe/internal/suite"
)

// User endpoints.
const (
	PathUsers   = "/api/users"
	PathProfile = "/api/users/profile/"
)

// unknownUserID is a well-formed id that no backend will have issued.
const unknownUserID = "000000000000000000000000"

// Auth acquires the session token and checks the auth boundary.
func Auth() suite.Suite {
	return suite.Suite{
		Name: NameAuth,
		Checks: []suite.Check{
			{Name: "register or log in", Run: checkBootstrap},
			{Name: "login returns a token", Run: checkLogin},
			{Name: "wrong password is rejected", Run: checkWrongPassword},
			{Name: "protected route requires a token", Run: checkNoToken},
			{Name: "protected route accepts the token", Run: checkWithToken},
		},
	}
}

func checkBootstrap(ctx context.Context, env *suite.Env) suite.CheckResult {
	if err := suite.Bootstrap(ctx, env); err != nil {
		return suite.Fail("%v", err)
	}
	if env.State.UserID == "" {
		return suite.Warn("authenticated, but the response carried no user id")
	}
	return suite.Pass("authenticated as %s", env.State.UserID)
}

func checkLogin(ctx context.Context, env *suite.Env) suite.CheckResult {
	acct := env.Config.Account
	out := env.Client.Post(ctx, suite.PathLogin, "", map[string]string{
		"email":    acct.Email,
		"password": acct.Password,
	})
	if !out.OK {
		return suite.Fail("login failed: %s", out)
	}
	if err := schema.Validate(schema.Auth, out.Body); err != nil {
		return suite.Fail("%v", err)
	}
	return suite.Pass("login returned a token")
}

func checkWrongPassword(ctx context.Context, env *suite.Env) suite.CheckResult {
	acct := env.Config.Account
	out := env.Client.Post(ctx, suite.PathLogin, "", map[string]string{
		"email":    acct.Email,
		"password": acct.Password + "-wrong",
	})
	return expectRejected(out, "login with a wrong password")
}

func checkNoToken(ctx context.Context, env *suite.Env) suite.CheckResult {
	return expectUnauthorized(env.Client.Get(ctx, PathUsers, ""), "request without a token")
}

func checkWithToken(ctx context.Context, env *suite.Env) suite.CheckResult {
	token, fail := requireToken(env)
	if fail != nil {
		return *fail
	}
	out := env.Client.Get(ctx, PathUsers, token)
	if !out.OK {
		return suite.Fail("token was refused: %s", out)
	}
	return suite.Pass("token accepted (%d)", out.Status)
}

// Profile checks the profile endpoints. It needs a token.
func Profile() suite.Suite {
	return suite.Suite{
		Name:         NameProfile,
		RequiresAuth: true,
		Checks: []suite.Check{
			{Name: "fetch own profile", Run: checkOwnProfile},
			{Name: "unknown profile returns 404", Run: checkUnknownProfile},
			{Name: "profile requires a token", Run: checkProfileNoToken},
		},
	}
}

func checkOwnProfile(ctx context.Context, env *suite.Env) suite.CheckResult {
	userID, fail := requireUser(env)
	if fail != nil {
		return *fail
	}
	out := env.Client.Get(ctx, PathProfile+userID, env.State.Token)
	if !out.OK {
		return suite.Fail("profile fetch failed: %s", out)
	}

	user := out.Object()
	if nested, ok := user["user"].(map[string]any); ok {
		user = nested
	}
	if err := schema.Validate(schema.User, user); err != nil {
		return suite.Fail("%v", err)
	}
	if email, ok := user["email"].(string); ok && email != env.Config.Account.Email {
		return suite.Fail("profile email %q does not match %q", email, env.Config.Account.Email)
	}
	if _, leaked := user["password"]; leaked {
		return suite.Fail("profile exposes the password field")
	}
	return suite.Pass("profile for %s", userID)
}

func checkUnknownProfile(ctx context.Context, env *suite.Env) suite.CheckResult {
	out := env.Client.Get(ctx, PathProfile+unknownUserID, env.State.Token)
	switch {
	case outcome.Classify(out) == outcome.KindNotFound:
		return suite.Pass("unknown profile rejected with 404")
	case out.OK:
		return suite.Fail("unknown profile was served (%d)", out.Status)
	case out.StatusIs(http.StatusBadRequest):
		return suite.Warn("unknown profile rejected with 400, expected 404")
	default:
		return suite.Fail("unknown profile: %s", out)
	}
}

func checkProfileNoToken(ctx context.Context, env *suite.Env) suite.CheckResult {
	userID, fail := requireUser(env)
	if fail != nil {
		return *fail
	}
	return expectUnauthorized(env.Client.Get(ctx, PathProfile+userID, ""), "profile request without a token")
}
