package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sqlsynth/internal/ir"
)

func testTarget() ir.Relation {
	return ir.Relation{
		Columns: []ir.Column{{Name: "a", Type: ir.TypeInt}, {Name: "s", Type: ir.TypeText}},
		Rows: [][]ir.Value{
			{ir.Int(9007199254740993), ir.Text("café")},
			{ir.Null{}, ir.Text("x")},
		},
	}
}

func createTestRun(t *testing.T, s *Store, id, problem string) ir.Run {
	t.Helper()
	run, err := s.WriteRun(context.Background(), ir.Run{
		ID:           id,
		Problem:      problem,
		Target:       testTarget(),
		TargetDigest: "digest",
		ConfigDigest: "config",
	})
	require.NoError(t, err)
	return run
}

func TestWriteRun_AssignsSeq(t *testing.T) {
	s := createTestStore(t)

	first := createTestRun(t, s, "run-1", "p")
	second := createTestRun(t, s, "run-2", "p")

	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, int64(2), second.Seq)
	assert.Equal(t, ir.RunStatusRunning, first.Status)
}

func TestReadRun_RoundTripsTarget(t *testing.T) {
	s := createTestStore(t)
	createTestRun(t, s, "run-1", "p")

	run, ok, err := s.ReadRun(context.Background(), "run-1")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, "p", run.Problem)
	assert.Equal(t, testTarget(), run.Target, "large ints keep precision")

	_, ok, err = s.ReadRun(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWriteRun_Idempotent(t *testing.T) {
	s := createTestStore(t)
	createTestRun(t, s, "run-1", "p")

	_, err := s.WriteRun(context.Background(), ir.Run{ID: "run-1", Problem: "other"})
	require.NoError(t, err)

	runs, err := s.ReadRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "p", runs[0].Problem)
}

func TestFinishRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-1", "p")

	require.NoError(t, s.FinishRun(ctx, "run-1", ir.RunStatusFound, "SELECT a FROM T", 5, 4))

	run, _, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, ir.RunStatusFound, run.Status)
	assert.Equal(t, "SELECT a FROM T", run.SQL)
	assert.Equal(t, int64(5), run.Emitted)
	assert.Equal(t, int64(4), run.Evaluated)

	err = s.FinishRun(ctx, "missing", ir.RunStatusFound, "", 0, 0)
	assert.ErrorIs(t, err, sql.ErrNoRows)

	err = s.FinishRun(ctx, "run-1", "bogus", "", 0, 0)
	assert.Error(t, err, "status is checked by the schema")
}

func TestCandidates_OrderedBySeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-1", "p")

	require.NoError(t, s.WriteCandidates(ctx, []ir.CandidateRecord{
		{RunID: "run-1", Seq: 3, Complexity: 7, SQL: "SELECT * FROM T WHERE a = 3", Outcome: ir.OutcomeAccepted},
		{RunID: "run-1", Seq: 1, Complexity: 3, SQL: "SELECT * FROM T", Outcome: ir.OutcomeRejected},
	}))
	require.NoError(t, s.WriteCandidate(ctx, ir.CandidateRecord{
		RunID: "run-1", Seq: 2, Complexity: 6, SQL: "SELECT a, b FROM T", Outcome: ir.OutcomeEvalErr, Error: "boom",
	}))
	// duplicate (run_id, seq) is ignored
	require.NoError(t, s.WriteCandidate(ctx, ir.CandidateRecord{
		RunID: "run-1", Seq: 2, Complexity: 1, SQL: "other", Outcome: ir.OutcomeRejected,
	}))

	cs, err := s.ReadCandidates(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, cs, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{cs[0].Seq, cs[1].Seq, cs[2].Seq})
	assert.Equal(t, ir.CandidateID("SELECT * FROM T"), cs[0].ID)
	assert.Equal(t, "boom", cs[1].Error)

	counts, err := s.OutcomeCounts(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{ir.OutcomeAccepted: 1, ir.OutcomeRejected: 1, ir.OutcomeEvalErr: 1}, counts)

	empty, err := s.ReadCandidates(ctx, "run-2")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestWriteCandidate_RequiresRun(t *testing.T) {
	s := createTestStore(t)

	err := s.WriteCandidate(context.Background(), ir.CandidateRecord{
		RunID: "missing", Seq: 1, SQL: "SELECT 1", Outcome: ir.OutcomeRejected,
	})
	assert.Error(t, err)
}

func TestFindCandidate_AcrossRuns(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-b", "p")
	createTestRun(t, s, "run-a", "q")

	query := "SELECT a FROM T"
	require.NoError(t, s.WriteCandidate(ctx, ir.CandidateRecord{RunID: "run-a", Seq: 4, SQL: query, Outcome: ir.OutcomeAccepted}))
	require.NoError(t, s.WriteCandidate(ctx, ir.CandidateRecord{RunID: "run-b", Seq: 9, SQL: query, Outcome: ir.OutcomeRejected}))

	found, err := s.FindCandidate(ctx, ir.CandidateID(query))
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "run-b", found[0].RunID, "ordered by run seq, not id")
	assert.Equal(t, "run-a", found[1].RunID)
}

func TestReadRunsForProblemAndLatest(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, ok, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	createTestRun(t, s, "run-1", "p")
	createTestRun(t, s, "run-2", "q")
	createTestRun(t, s, "run-3", "p")

	runs, err := s.ReadRunsForProblem(ctx, "p")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, "run-3", runs[1].ID)

	latest, ok, err := s.LatestRun(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "run-3", latest.ID)
}

func TestRecovery(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "done", "p")
	createTestRun(t, s, "crashed", "p")
	require.NoError(t, s.FinishRun(ctx, "done", ir.RunStatusExhausted, "", 2, 2))
	require.NoError(t, s.WriteCandidates(ctx, []ir.CandidateRecord{
		{RunID: "crashed", Seq: 1, SQL: "SELECT 1", Outcome: ir.OutcomeRejected},
		{RunID: "crashed", Seq: 2, SQL: "SELECT 2", Outcome: ir.OutcomeRejected},
	}))

	unfinished, err := s.FindUnfinishedRuns(ctx)
	require.NoError(t, err)
	require.Len(t, unfinished, 1)
	assert.Equal(t, "crashed", unfinished[0].ID)

	n, err := s.MarkFailed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	run, _, err := s.ReadRun(ctx, "crashed")
	require.NoError(t, err)
	assert.Equal(t, ir.RunStatusFailed, run.Status)
	assert.Equal(t, int64(2), run.Evaluated)

	unfinished, err = s.FindUnfinishedRuns(ctx)
	require.NoError(t, err)
	assert.Empty(t, unfinished)
}

func TestMarshalRelation_Canonical(t *testing.T) {
	a, err := marshalRelation(testTarget())
	require.NoError(t, err)
	b, err := marshalRelation(testTarget())
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t,
		`{"columns":[{"name":"a","type":"int"},{"name":"s","type":"text"}],"rows":[[9007199254740993,"café"],[null,"x"]]}`,
		a)

	back, err := unmarshalRelation(a)
	require.NoError(t, err)
	assert.Equal(t, testTarget(), back)

	_, err = unmarshalRelation(`{"columns":[],"rows":[[1.5]]}`)
	assert.Error(t, err)
}
