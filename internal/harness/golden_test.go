package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sqlsynth/internal/ir"
)

func TestRunWithGolden_Projection(t *testing.T) {
	result, err := RunWithGolden(t, loadTestScenario(t, "projection.yaml"))
	require.NoError(t, err)
	assert.True(t, result.Pass)
}

func TestRunWithGolden_ZeroBound(t *testing.T) {
	result, err := RunWithGolden(t, loadTestScenario(t, "zero_bound.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ir.RunStatusBoundReached, result.Status)
}

func TestTraceSnapshot_Limit(t *testing.T) {
	result := NewResult()
	result.Status = ir.RunStatusExhausted
	for i := 1; i <= 5; i++ {
		result.AddTrace(TraceEvent{Seq: int64(i), SQL: "SELECT 1", Outcome: ir.OutcomeEvalErr, Error: "boom"})
	}

	snap := NewTraceSnapshot("limited", result, 2)
	require.Len(t, snap.Trace, 2)

	data, err := snap.MarshalCanonical()
	require.NoError(t, err)
	assert.Equal(t,
		`{"evaluated":0,"run_id":"","scenario_name":"limited","status":"exhausted","trace":[`+
			`{"complexity":0,"error":"boom","outcome":"eval_error","seq":1,"sql":"SELECT 1"},`+
			`{"complexity":0,"error":"boom","outcome":"eval_error","seq":2,"sql":"SELECT 1"}]}`,
		string(data))
}
