package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/sqlsynth/internal/engine"
	"github.com/roach88/sqlsynth/internal/ir"
	"github.com/roach88/sqlsynth/internal/search"
	"github.com/roach88/sqlsynth/internal/store"
	"github.com/roach88/sqlsynth/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenarios with a fixed run ID against a private run log.
type Harness struct {
	store  *store.Store
	runIDs engine.RunIDGenerator
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Build the example pair and search configuration
// 2. Record the run in the run log
// 3. Search, recording every evaluated candidate
// 4. Evaluate expectations against the result and the run log
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		runIDs: testutil.NewFixedRunID(scenario.RunID),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	return h.run(ctx, scenario)
}

func (h *Harness) run(ctx context.Context, scenario *Scenario) (*Result, error) {
	ex, err := scenario.Example()
	if err != nil {
		return nil, fmt.Errorf("failed to build example: %w", err)
	}
	cfg, err := scenario.Config()
	if err != nil {
		return nil, fmt.Errorf("failed to build config: %w", err)
	}

	targetDigest, err := ir.RelationDigest(ex.Output, cfg.Compare)
	if err != nil {
		return nil, fmt.Errorf("failed to digest target: %w", err)
	}
	run, err := h.store.WriteRun(ctx, ir.Run{
		ID:           h.runIDs.Generate(),
		Problem:      scenario.Name,
		Target:       ex.Output,
		TargetDigest: targetDigest,
		ConfigDigest: ir.RunDigest(scenario.Name, targetDigest, cfg.Bounds),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write run: %w", err)
	}

	result := NewResult()
	result.RunID = run.ID

	var records []ir.CandidateRecord
	cfg.OnCandidate = func(c search.Candidate) {
		ev := TraceEvent{Seq: c.Seq, Complexity: c.Complexity, SQL: c.SQL, Outcome: c.Outcome}
		if c.Err != nil {
			ev.Error = c.Err.Error()
		}
		result.AddTrace(ev)
		records = append(records, ir.CandidateRecord{
			RunID:      run.ID,
			Seq:        c.Seq,
			Complexity: c.Complexity,
			SQL:        c.SQL,
			Outcome:    c.Outcome,
			Error:      ev.Error,
		})
		if c.Outcome == ir.OutcomeAccepted {
			result.Output = c.Result
		}
	}

	res, err := search.Solve(ctx, ex, cfg)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	if err := h.store.WriteCandidates(ctx, records); err != nil {
		return nil, fmt.Errorf("failed to write candidates: %w", err)
	}
	if err := h.store.FinishRun(ctx, run.ID, res.Status, res.SQL, res.Emitted, res.Evaluated); err != nil {
		return nil, fmt.Errorf("failed to finish run: %w", err)
	}

	result.Status = res.Status
	result.Reason = res.Reason
	result.SQL = res.SQL
	result.Complexity = res.Complexity
	result.Evaluated = res.Evaluated

	h.logger.Info("scenario searched",
		"scenario", scenario.Name,
		"status", res.Status,
		"evaluated", res.Evaluated,
		"sql", res.SQL,
	)

	actx := &AssertionContext{Store: h.store, Ctx: ctx, RunID: run.ID}
	for _, msg := range EvaluateExpect(result, scenario.Expect, actx) {
		result.AddError(msg)
	}
	return result, nil
}
