package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/apiprobe/internal/harness"
	"github.com/roach88/apiprobe/internal/probes"
	"github.com/roach88/apiprobe/internal/store"
	"github.com/roach88/apiprobe/internal/testutil"
)

// startBackend serves a fresh fake target and returns its URL.
func startBackend(t *testing.T) (*testutil.Backend, string) {
	t.Helper()
	b := testutil.NewBackend()
	return b, b.Start(t).URL
}

func TestRun_HealthyBackend(t *testing.T) {
	_, url := startBackend(t)

	out, _, err := execute(t, "run", "--server", url, "--delay", "0", "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, "== Health ==")
	assert.Contains(t, out, "Readiness score:  100.0%")
	assert.Contains(t, out, harness.VerdictReady.Describe())
}

func TestRun_JSONSummary(t *testing.T) {
	_, url := startBackend(t)

	out, _, err := execute(t, "--format", "json", "run", "--server", url, "--delay", "0", "--only", "health,auth")
	require.NoError(t, err)

	var sum harness.RunSummary
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.Equal(t, url, sum.Target)
	assert.Equal(t, 2, sum.TotalSuites)
	assert.Equal(t, []string{"health", "auth"}, []string{sum.Results[0].Name, sum.Results[1].Name})
	assert.NotEmpty(t, sum.RunID)
}

func TestRun_FailingSuiteExitsOne(t *testing.T) {
	b, url := startBackend(t)
	b.Override(http.MethodGet, probes.PathHealth, testutil.Override{Status: 500, Body: `{"message":"down"}`})

	out, _, err := execute(t, "run", "--server", url, "--delay", "0", "--only", "health", "--no-color")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "1 of 1 suites failed")
	assert.Contains(t, out, "Health FAIL")
}

func TestRun_UnreachableServerStillReports(t *testing.T) {
	out, _, err := execute(t, "run", "--server", "http://127.0.0.1:1", "--delay", "0", "--only", "health,tasks", "--no-color")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Failed:           2 (health, tasks)")
}

func TestRun_UnknownSuiteIsCommandError(t *testing.T) {
	_, _, err := execute(t, "run", "--only", "helth")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "unknown suite")
}

func TestRun_MissingConfigFileIsCommandError(t *testing.T) {
	_, _, err := execute(t, "run", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRun_InvalidServerIsCommandError(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "run", "--server", "not a url")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, `"code":"E001"`)
}

func TestRun_ConfigFile(t *testing.T) {
	_, url := startBackend(t)
	path := filepath.Join(t.TempDir(), "apiprobe.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_url: "+url+"\nsuite_delay: 0s\n"), 0o644))

	out, _, err := execute(t, "run", "--config", path, "--only", "health", "--no-color")
	require.NoError(t, err)
	assert.Contains(t, out, "target:  "+url)
}

func TestRun_PersistsHistory(t *testing.T) {
	_, url := startBackend(t)
	db := filepath.Join(t.TempDir(), "runs.db")

	_, _, err := execute(t, "run", "--server", url, "--delay", "0", "--only", "health", "--db", db)
	require.NoError(t, err)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()
	runs, err := st.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, url, runs[0].Target)
	assert.Equal(t, 100.0, runs[0].ReadinessScore)

	out, _, err := execute(t, "history", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, runs[0].ID)
	assert.Contains(t, out, "ready")

	out, _, err = execute(t, "history", "--db", db, "--suite", "health")
	require.NoError(t, err)
	assert.Contains(t, out, "pass")
}

func TestHistory_RequiresDB(t *testing.T) {
	_, _, err := execute(t, "history")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestHistory_JSON(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")

	out, _, err := execute(t, "--format", "json", "history", "--db", db)
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   []store.RunRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Empty(t, resp.Data)
}
