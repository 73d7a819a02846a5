package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/sqlsynth/internal/ir"
)

// TraceSnapshot captures the outcome and the leading candidates of a
// scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	RunID        string       `json:"run_id"`
	Status       string       `json:"status"`
	Reason       string       `json:"reason,omitempty"`
	SQL          string       `json:"sql,omitempty"`
	Evaluated    int64        `json:"evaluated"`
	Trace        []TraceEvent `json:"trace"`
}

// NewTraceSnapshot builds a snapshot of result keeping at most limit trace
// events.
func NewTraceSnapshot(name string, result *Result, limit int) TraceSnapshot {
	trace := result.Trace
	if limit >= 0 && len(trace) > limit {
		trace = trace[:limit]
	}
	return TraceSnapshot{
		ScenarioName: name,
		RunID:        result.RunID,
		Status:       result.Status,
		Reason:       result.Reason,
		SQL:          result.SQL,
		Evaluated:    result.Evaluated,
		Trace:        trace,
	}
}

// Snapshot builds the golden snapshot of a result of s.
func (s *Scenario) Snapshot(result *Result) TraceSnapshot {
	return NewTraceSnapshot(s.Name, result, s.traceLimit())
}

// toCanonical converts a TraceSnapshot to an ir.Object for canonical JSON
// serialization.
func (s *TraceSnapshot) toCanonical() ir.Object {
	trace := make(ir.Array, len(s.Trace))
	for i, ev := range s.Trace {
		obj := ir.Object{
			"seq":        ir.Int(ev.Seq),
			"complexity": ir.Int(ev.Complexity),
			"sql":        ir.Text(ev.SQL),
			"outcome":    ir.Text(ev.Outcome),
		}
		if ev.Error != "" {
			obj["error"] = ir.Text(ev.Error)
		}
		trace[i] = obj
	}

	out := ir.Object{
		"scenario_name": ir.Text(s.ScenarioName),
		"run_id":        ir.Text(s.RunID),
		"status":        ir.Text(s.Status),
		"evaluated":     ir.Int(s.Evaluated),
		"trace":         trace,
	}
	if s.Reason != "" {
		out["reason"] = ir.Text(s.Reason)
	}
	if s.SQL != "" {
		out["sql"] = ir.Text(s.SQL)
	}
	return out
}

// MarshalCanonical returns the snapshot's canonical JSON.
func (s *TraceSnapshot) MarshalCanonical() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonical())
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result, scenario.traceLimit()); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already computed result against a golden file.
func AssertGolden(t *testing.T, name string, result *Result, limit int) error {
	t.Helper()

	snapshot := NewTraceSnapshot(name, result, limit)
	data, err := snapshot.MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
