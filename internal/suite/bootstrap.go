package suite

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/apiprobe/internal/outcome"
	"github.com/roach88/apiprobe/internal/session"
)

// Account endpoints used by Bootstrap.
const (
	PathRegister = "/api/users/register"
	PathLogin    = "/api/users/login"
)

// ErrNoToken is returned when an auth response carries no token.
var ErrNoToken = errors.New("response carried no token")

// Bootstrap acquires a token for the configured account.
//
// It registers first. When the server reports the account already exists it
// logs in with the same credentials instead. Any other failure is returned.
// Calling it repeatedly with the same account succeeds every time.
func Bootstrap(ctx context.Context, env *Env) error {
	if env.Client == nil || env.Config == nil {
		return errors.New("bootstrap: env has no client or config")
	}
	if env.State == nil {
		env.State = session.New()
	}
	acct := env.Config.Account

	out := env.Client.Post(ctx, PathRegister, "", map[string]string{
		"username": acct.Username,
		"email":    acct.Email,
		"password": acct.Password,
	})
	if out.OK {
		return adopt(env.State, out, "register")
	}
	if kind := outcome.Classify(out); kind != outcome.KindConflict {
		return fmt.Errorf("register failed (%s): %s", kind, out.Detail)
	}

	out = env.Client.Post(ctx, PathLogin, "", map[string]string{
		"email":    acct.Email,
		"password": acct.Password,
	})
	if !out.OK {
		return fmt.Errorf("login after conflict failed: %s", out.Detail)
	}
	return adopt(env.State, out, "login")
}

func adopt(state *session.State, out outcome.Outcome, step string) error {
	body := out.Object()
	token := TokenFrom(body)
	if token == "" {
		return fmt.Errorf("%s: %w", step, ErrNoToken)
	}
	state.SetAuth(token, UserIDFrom(body))
	return nil
}

// TokenFrom extracts the bearer token from an auth response body.
func TokenFrom(body map[string]any) string {
	for _, key := range []string{"token", "accessToken"} {
		if s, ok := body[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// UserIDFrom extracts the user id from an auth response body. It looks at
// user._id, user.id, _id, and userId, in that order.
func UserIDFrom(body map[string]any) string {
	if user, ok := body["user"].(map[string]any); ok {
		if id := idString(user["_id"]); id != "" {
			return id
		}
		if id := idString(user["id"]); id != "" {
			return id
		}
	}
	if id := idString(body["_id"]); id != "" {
		return id
	}
	return idString(body["userId"])
}

// idString renders string and numeric identifiers.
func idString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return fmt.Sprintf("%.0f", id)
	}
	return ""
}
