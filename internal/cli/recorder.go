package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/sqlsynth/internal/ir"
	"github.com/roach88/sqlsynth/internal/search"
	"github.com/roach88/sqlsynth/internal/store"
)

// recordBatch is the number of candidates written per transaction.
const recordBatch = 256

// recorder writes one search to the run log. Candidates are buffered and
// written in batches; the first write error is kept and later candidates
// are dropped.
type recorder struct {
	ctx     context.Context
	store   *store.Store
	run     ir.Run
	pending []ir.CandidateRecord
	err     error
}

// startRun writes the run record and returns a recorder for its candidates.
func startRun(ctx context.Context, st *store.Store, id string, p problemInput, cfg search.Config) (*recorder, error) {
	targetDigest, err := ir.RelationDigest(p.Output, cfg.Compare)
	if err != nil {
		return nil, fmt.Errorf("digest target: %w", err)
	}
	run, err := st.WriteRun(ctx, ir.Run{
		ID:           id,
		Problem:      p.Name,
		Target:       p.Output,
		TargetDigest: targetDigest,
		ConfigDigest: ir.RunDigest(p.Name, targetDigest, cfg.Bounds),
	})
	if err != nil {
		return nil, err
	}
	return &recorder{ctx: ctx, store: st, run: run}, nil
}

// problemInput is the part of a problem the run log needs.
type problemInput struct {
	Name   string
	Output ir.Relation
}

// Add records one evaluated candidate. It is a search.Config.OnCandidate
// callback.
func (r *recorder) Add(c search.Candidate) {
	if r.err != nil {
		return
	}
	rec := ir.CandidateRecord{
		RunID:      r.run.ID,
		Seq:        c.Seq,
		Complexity: c.Complexity,
		SQL:        c.SQL,
		Outcome:    c.Outcome,
	}
	if c.Err != nil {
		rec.Error = c.Err.Error()
	}
	r.pending = append(r.pending, rec)
	if len(r.pending) >= recordBatch {
		r.flush()
	}
}

func (r *recorder) flush() {
	if r.err != nil || len(r.pending) == 0 {
		return
	}
	// The search context may already be canceled; the run log is still
	// written so interrupted runs keep their candidates.
	if err := r.store.WriteCandidates(context.WithoutCancel(r.ctx), r.pending); err != nil {
		r.err = err
		slog.Error("failed to record candidates", "run_id", r.run.ID, "error", err)
	}
	r.pending = r.pending[:0]
}

// Finish flushes buffered candidates and records the run's outcome.
func (r *recorder) Finish(res search.Result) error {
	r.flush()
	status := res.Status
	if status == "" {
		status = ir.RunStatusFailed
	}
	if err := r.store.FinishRun(context.WithoutCancel(r.ctx), r.run.ID, status, res.SQL, res.Emitted, res.Evaluated); err != nil {
		return err
	}
	return r.err
}
