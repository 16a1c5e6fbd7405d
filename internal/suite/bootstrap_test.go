package suite

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/apiprobe/internal/session"
	"github.com/roach88/apiprobe/internal/testutil"
)

// Register, then the same registration again falls back to login.
func TestBootstrap_RegisterThenLoginFallback(t *testing.T) {
	b := testutil.NewBackend()
	env := newEnv(t, b)

	require.NoError(t, Bootstrap(context.Background(), env))
	first := env.State.Token
	assert.NotEmpty(t, first)
	assert.NotEmpty(t, env.State.UserID)
	userID := env.State.UserID

	env.State = session.New()
	require.NoError(t, Bootstrap(context.Background(), env))
	assert.NotEmpty(t, env.State.Token)
	assert.NotEqual(t, first, env.State.Token)
	assert.Equal(t, userID, env.State.UserID)

	assert.Equal(t, 2, b.Hits(http.MethodPost, PathRegister))
	assert.Equal(t, 1, b.Hits(http.MethodPost, PathLogin))
}

func TestBootstrap_Idempotent(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusConflict} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			b := testutil.NewBackend()
			b.ConflictStatus = status
			env := newEnv(t, b)

			for i := 0; i < 2; i++ {
				require.NoError(t, Bootstrap(context.Background(), env), "attempt %d", i+1)
				assert.True(t, env.State.Authenticated())
			}
		})
	}
}

func TestBootstrap_ValidationFailureIsNotRetried(t *testing.T) {
	b := testutil.NewBackend()
	env := newEnv(t, b)
	env.Config.Account.Email = "not-an-email"

	err := Bootstrap(context.Background(), env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation")
	assert.Equal(t, 0, b.Hits(http.MethodPost, PathLogin))
	assert.False(t, env.State.Authenticated())
}

func TestBootstrap_LoginFailureAfterConflict(t *testing.T) {
	b := testutil.NewBackend()
	env := newEnv(t, b)
	require.NoError(t, Bootstrap(context.Background(), env))

	env.State = session.New()
	env.Config.Account.Password = "different-password"

	err := Bootstrap(context.Background(), env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "login after conflict failed")
}

func TestBootstrap_MissingToken(t *testing.T) {
	b := testutil.NewBackend()
	b.Override(http.MethodPost, PathRegister, testutil.Override{Status: 201, Body: `{"user":{"_id":"1"}}`})
	env := newEnv(t, b)

	err := Bootstrap(context.Background(), env)
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestUserIDFrom(t *testing.T) {
	cases := []struct {
		name string
		body map[string]any
		want string
	}{
		{"nested _id", map[string]any{"user": map[string]any{"_id": "a"}}, "a"},
		{"nested id", map[string]any{"user": map[string]any{"id": float64(7)}}, "7"},
		{"top-level _id", map[string]any{"_id": "b"}, "b"},
		{"userId", map[string]any{"userId": "c"}, "c"},
		{"none", map[string]any{"token": "t"}, ""},
		{"nil", nil, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, UserIDFrom(tc.body))
		})
	}
}
