package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func enumerateJSON(t *testing.T, args ...string) EnumerateResult {
	t.Helper()
	out, err := executeCommand(t, append([]string{"enumerate", "--format", "json"}, args...)...)
	require.NoError(t, err)

	var resp struct {
		Status string          `json:"status"`
		Data   EnumerateResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

func TestEnumerate_Limit(t *testing.T) {
	dir := writeProblemDir(t, map[string]string{"p.cue": projectionProblem})

	res := enumerateJSON(t, dir, "project_a", "--limit", "5")
	assert.Equal(t, "project_a", res.Problem)
	require.Len(t, res.Queries, 5)
	assert.Equal(t, "bound_reached", res.Outcome)
	assert.Equal(t, "emitted", res.Reason)

	for i, q := range res.Queries {
		assert.Equal(t, i+1, q.Seq)
		assert.True(t, strings.HasPrefix(q.SQL, "SELECT "), q.SQL)
		if i > 0 {
			assert.GreaterOrEqual(t, q.Complexity, res.Queries[i-1].Complexity, "complexity is non-decreasing")
		}
	}
}

func TestEnumerate_Deterministic(t *testing.T) {
	dir := writeProblemDir(t, map[string]string{"p.cue": projectionProblem})

	first := enumerateJSON(t, dir, "project_a", "--limit", "10", "--workers", "1")
	second := enumerateJSON(t, dir, "project_a", "--limit", "10", "--workers", "4")
	assert.Equal(t, first.Queries, second.Queries)
}

func TestEnumerate_ZeroBound(t *testing.T) {
	dir := writeProblemDir(t, map[string]string{"p.cue": zeroBoundProblem})

	res := enumerateJSON(t, dir, "unreachable")
	assert.Empty(t, res.Queries)
	assert.Equal(t, "bound_reached", res.Outcome)
	assert.Equal(t, "complexity", res.Reason)
}

func TestEnumerate_Text(t *testing.T) {
	dir := writeProblemDir(t, map[string]string{"p.cue": projectionProblem})

	out, err := executeCommand(t, "enumerate", dir, "project_a", "-n", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "complexity")
	assert.Contains(t, out, "3 queries listed; enumeration bound_reached (emitted)")
}

func TestEnumerate_Errors(t *testing.T) {
	dir := writeProblemDir(t, map[string]string{"p.cue": projectionProblem})

	_, err := executeCommand(t, "enumerate", dir, "project_a", "--limit", "0")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = executeCommand(t, "enumerate", dir, "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = executeCommand(t, "enumerate", dir)
	require.Error(t, err, "problem name is required")
}
