package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sqlsynth/internal/ir"
	"github.com/roach88/sqlsynth/internal/store"
	"github.com/roach88/sqlsynth/internal/testutil"
)

// seedRunLog writes two runs of problem p: a finished one with three
// candidates and an unfinished one.
func seedRunLog(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")

	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	target := testutil.FilterExample().Output
	for _, id := range []string{"run-1", "run-2"} {
		_, err := st.WriteRun(ctx, ir.Run{ID: id, Problem: "p", Target: target, TargetDigest: "d", ConfigDigest: "c"})
		require.NoError(t, err)
	}
	require.NoError(t, st.WriteCandidates(ctx, []ir.CandidateRecord{
		{RunID: "run-1", Seq: 1, ID: ir.CandidateID("SELECT * FROM T"), Complexity: 3, SQL: "SELECT * FROM T", Outcome: ir.OutcomeRejected},
		{RunID: "run-1", Seq: 2, ID: ir.CandidateID("SELECT a FROM T"), Complexity: 4, SQL: "SELECT a FROM T", Outcome: ir.OutcomeRejected},
		{RunID: "run-1", Seq: 3, ID: ir.CandidateID("SELECT * FROM T WHERE a = 3"), Complexity: 7, SQL: "SELECT * FROM T WHERE a = 3", Outcome: ir.OutcomeAccepted},
	}))
	require.NoError(t, st.FinishRun(ctx, "run-1", ir.RunStatusFound, "SELECT * FROM T WHERE a = 3", 3, 3))
	return path
}

func TestTrace_ListRuns(t *testing.T) {
	db := seedRunLog(t)

	out, err := executeCommand(t, "trace", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "run-2")
	assert.Contains(t, out, "SELECT * FROM T WHERE a = 3")
}

func TestTrace_ListRunsForProblem(t *testing.T) {
	db := seedRunLog(t)

	out, err := executeCommand(t, "trace", "--db", db, "--problem", "other")
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded.")
}

func TestTrace_Run(t *testing.T) {
	db := seedRunLog(t)

	out, err := executeCommand(t, "trace", "--db", db, "run-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Trace for Run: run-1")
	assert.Contains(t, out, "Status: found")
	assert.Contains(t, out, "=== Candidates ===")
	assert.Contains(t, out, "SELECT a FROM T")
	assert.Contains(t, out, "rejected:")
}

func TestTrace_RunJSON(t *testing.T) {
	db := seedRunLog(t)

	out, err := executeCommand(t, "trace", "--db", db, "run-1", "--format", "json", "--outcome", "rejected")
	require.NoError(t, err)

	data := decodeResponse(t, out)["data"].(map[string]any)
	candidates := data["candidates"].([]any)
	require.Len(t, candidates, 2)
	assert.EqualValues(t, 1, candidates[0].(map[string]any)["seq"])
	assert.EqualValues(t, 2, candidates[1].(map[string]any)["seq"])

	stats := data["stats"].(map[string]any)
	assert.EqualValues(t, 3, stats["total"])
	assert.EqualValues(t, 2, stats["shown"])
	assert.Equal(t, true, stats["is_complete"])
	assert.Equal(t, map[string]any{"accepted": float64(1), "rejected": float64(2)}, stats["by_outcome"])
}

func TestTrace_Limit(t *testing.T) {
	db := seedRunLog(t)

	out, err := executeCommand(t, "trace", "--db", db, "run-1", "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "(1 of 3 shown)")
}

func TestTrace_Latest(t *testing.T) {
	db := seedRunLog(t)

	out, err := executeCommand(t, "trace", "--db", db, "--latest")
	require.NoError(t, err)
	assert.Contains(t, out, "Trace for Run: run-2")
	assert.Contains(t, out, "running (unfinished)")
	assert.Contains(t, out, "(no candidates)")
}

func TestTrace_Errors(t *testing.T) {
	db := seedRunLog(t)

	_, err := executeCommand(t, "trace", "--db", db, "nope")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	_, err = executeCommand(t, "trace", "--db", db, "--outcome", "maybe")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = executeCommand(t, "trace", "--db", db, "--latest", "run-1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = executeCommand(t, "trace")
	require.Error(t, err, "--db is required")
}

func TestFilterCandidates(t *testing.T) {
	cs := []ir.CandidateRecord{
		{Seq: 1, Outcome: ir.OutcomeRejected},
		{Seq: 2, Outcome: ir.OutcomeEvalErr},
		{Seq: 3, Outcome: ir.OutcomeRejected},
		{Seq: 4, Outcome: ir.OutcomeAccepted},
	}

	assert.Len(t, filterCandidates(cs, "", 0), 4)
	assert.Len(t, filterCandidates(cs, "", 2), 2)

	rejected := filterCandidates(cs, ir.OutcomeRejected, 0)
	require.Len(t, rejected, 2)
	assert.Equal(t, int64(3), rejected[1].Seq)
}
