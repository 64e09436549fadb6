package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gatewire/internal/store"
)

func executeRun(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: format}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRunMissingArgs(t *testing.T) {
	_, err := executeRun(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestRunNonExistentScenario(t *testing.T) {
	out, err := executeRun(t, "text", "/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E002]")
}

func TestRunSchemaInvalidScenario(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.yaml", schemaInvalidScenario)

	out, err := executeRun(t, "json", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeSchema, resp.Error.Code)
}

func TestRunPassingScenario(t *testing.T) {
	path := writeFile(t, t.TempDir(), "emitted.yaml", emittedScenario)

	out, err := executeRun(t, "text", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ cli_emitted (session cli-emitted)")
	assert.Contains(t, out, "[0] notify seq=1 -> Emitted(2)")
	assert.Contains(t, out, "GUILD_MESSAGE_REACTION_ADD seq=1 user=400")
}

func TestRunPassingScenarioJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "emitted.yaml", emittedScenario)

	out, err := executeRun(t, "json", path)
	require.NoError(t, err)

	var resp struct {
		Status  string `json:"status"`
		Session string `json:"session"`
		Data    struct {
			Pass    bool `json:"pass"`
			Journal []struct {
				Status string `json:"status"`
			} `json:"journal"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "cli-emitted", resp.Session)
	assert.True(t, resp.Data.Pass)
	require.Len(t, resp.Data.Journal, 1)
	assert.Equal(t, "emitted", resp.Data.Journal[0].Status)
}

func TestRunFailingScenario(t *testing.T) {
	path := writeFile(t, t.TempDir(), "failing.yaml", failingScenario)

	out, err := executeRun(t, "text", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ cli_failing")
	assert.Contains(t, out, "steps[0].expect.status")
}

func TestRunJournalsToDatabase(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "deferred.yaml", deferredScenario)
	dbPath := filepath.Join(dir, "journal.db")

	_, err := executeRun(t, "text", "--db", dbPath, path)
	require.NoError(t, err)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	pending, err := st.PendingDeferrals(context.Background(), "cli-deferred")
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestRunHelpText(t *testing.T) {
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	assert.Contains(t, cmd.Long, "Exit codes")
	assert.Contains(t, cmd.Long, "--db")
}

func TestLoadErrorCode(t *testing.T) {
	dir := t.TempDir()

	_, err := executeRun(t, "text", writeFile(t, dir, "bad.yaml", schemaInvalidScenario))
	require.Error(t, err)
	assert.Equal(t, ErrCodeSchema, loadErrorCode(err))

	assert.Equal(t, ErrCodeLoadFailed, loadErrorCode(assert.AnError))
}

func TestRunPrintsMetrics(t *testing.T) {
	path := writeFile(t, t.TempDir(), "deferred.yaml", deferredScenario)

	out, err := executeRun(t, "text", "--metrics", path)
	require.NoError(t, err)
	assert.Contains(t, out, `gatewire_notifications_total{status="deferred"} 2`)
	assert.Contains(t, out, "gatewire_deferrals_pending 2")
}

func TestRunMetricsStayOffJSONStdout(t *testing.T) {
	path := writeFile(t, t.TempDir(), "emitted.yaml", emittedScenario)

	buf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	cmd := NewRunCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetErr(errBuf)
	cmd.SetArgs([]string{"--metrics", path})

	require.NoError(t, cmd.Execute())
	assert.True(t, json.Valid(buf.Bytes()))
	assert.Contains(t, errBuf.String(), `gatewire_notifications_total{status="emitted"} 1`)
}
