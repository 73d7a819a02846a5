package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/sqlsynth/internal/ast"
	"github.com/roach88/sqlsynth/internal/engine"
	"github.com/roach88/sqlsynth/internal/ir"
	"github.com/roach88/sqlsynth/internal/render"
)

// Evaluator runs a complete tree. Any error rejects the candidate.
type Evaluator interface {
	Evaluate(ctx context.Context, t *ast.Tree) (ir.Relation, error)
}

// Candidate is one evaluated tree.
type Candidate struct {
	Seq        int64
	Tree       *ast.Tree
	SQL        string
	Complexity int
	Outcome    string // ir.OutcomeAccepted, ir.OutcomeRejected or ir.OutcomeEvalErr
	Err        error
	Result     ir.Relation
	Duration   time.Duration
}

// Result is the outcome of a search.
type Result struct {
	Status     string // ir.RunStatusFound, ir.RunStatusExhausted or ir.RunStatusBoundReached
	Reason     string // bound that stopped the search, for bound_reached
	Tree       *ast.Tree
	SQL        string
	Complexity int
	Emitted    int64
	Evaluated  int64
	Rejected   int64
	EvalErrors int64
	Stats      engine.Stats
	Elapsed    time.Duration
}

// Found reports whether a matching query was found.
func (r Result) Found() bool {
	return r.Status == ir.RunStatusFound
}

// Search pulls candidates from en and evaluates them with ev until one
// reproduces target under cfg.Compare, or the enumerator terminates.
//
// Exhausted and BoundReached are results, not errors. The error return is
// reserved for enumerator defects.
func Search(ctx context.Context, en *engine.Enumerator, ev Evaluator, target ir.Relation, cfg Config) (Result, error) {
	cfg = cfg.withDefaults()
	start := time.Now()
	target = ir.NormalizeBools(target)

	var res Result
	finish := func(status, reason string) (Result, error) {
		res.Status = status
		res.Reason = reason
		res.Stats = en.Stats()
		res.Emitted = res.Stats.Emitted
		res.Elapsed = time.Since(start)
		if cfg.Metrics != nil {
			cfg.Metrics.SearchFinished(status)
		}
		slog.Info("search finished",
			"status", status,
			"reason", reason,
			"emitted", res.Emitted,
			"evaluated", res.Evaluated,
			"sql", res.SQL,
		)
		return res, nil
	}

	var seq int64
	for {
		batch, terminal, err := pull(ctx, en, cfg.Batch)
		if err != nil {
			res.Status = ir.RunStatusFailed
			res.Stats = en.Stats()
			if cfg.Metrics != nil {
				cfg.Metrics.SearchFinished(ir.RunStatusFailed)
			}
			return res, fmt.Errorf("enumerate: %w", err)
		}

		candidates := make([]Candidate, len(batch))
		for i, t := range batch {
			seq++
			candidates[i] = Candidate{Seq: seq, Tree: t, Complexity: t.Complexity()}
		}
		evaluateBatch(ctx, ev, target, cfg, candidates)

		for _, c := range candidates {
			res.Evaluated++
			if cfg.Metrics != nil {
				cfg.Metrics.CandidateEvaluated(c.Outcome, c.Duration)
			}
			if cfg.OnCandidate != nil {
				cfg.OnCandidate(c)
			}
			switch c.Outcome {
			case ir.OutcomeAccepted:
				res.Tree = c.Tree
				res.SQL = c.SQL
				res.Complexity = c.Complexity
				return finish(ir.RunStatusFound, "")
			case ir.OutcomeEvalErr:
				res.EvalErrors++
				slog.Debug("candidate eval failed", "seq", c.Seq, "sql", c.SQL, "error", c.Err)
			default:
				res.Rejected++
				slog.Debug("candidate rejected", "seq", c.Seq, "complexity", c.Complexity, "sql", c.SQL)
			}
		}

		if terminal != nil {
			switch terminal.Outcome {
			case engine.OutcomeExhausted:
				return finish(ir.RunStatusExhausted, "")
			default:
				return finish(ir.RunStatusBoundReached, terminal.Reason)
			}
		}
	}
}

// pull takes up to n emitted trees. A terminal step ends the batch early
// and is returned alongside the trees already pulled.
func pull(ctx context.Context, en *engine.Enumerator, n int) ([]*ast.Tree, *engine.Step, error) {
	batch := make([]*ast.Tree, 0, n)
	for len(batch) < n {
		step, err := en.Next(ctx)
		if err != nil {
			return nil, nil, err
		}
		if step.Outcome != engine.OutcomeEmitted {
			return batch, &step, nil
		}
		batch = append(batch, step.Tree)
	}
	return batch, nil, nil
}

// evaluateBatch fills in each candidate's outcome. Every goroutine writes
// only its own element.
func evaluateBatch(ctx context.Context, ev Evaluator, target ir.Relation, cfg Config, cs []Candidate) {
	var g errgroup.Group
	g.SetLimit(cfg.Workers)
	for i := range cs {
		c := &cs[i]
		g.Go(func() error {
			evaluate(ctx, ev, target, cfg.Compare, c)
			return nil
		})
	}
	_ = g.Wait()
}

func evaluate(ctx context.Context, ev Evaluator, target ir.Relation, mode ir.Comparison, c *Candidate) {
	c.SQL = render.Render(c.Tree, render.Compact())
	begin := time.Now()
	defer func() { c.Duration = time.Since(begin) }()

	rel, err := ev.Evaluate(ctx, c.Tree)
	if err != nil {
		c.Outcome = ir.OutcomeEvalErr
		c.Err = err
		return
	}
	c.Result = rel

	ok, err := ir.Equal(ir.NormalizeBools(rel), target, mode)
	switch {
	case err != nil:
		c.Outcome = ir.OutcomeEvalErr
		c.Err = fmt.Errorf("compare result: %w", err)
	case ok:
		c.Outcome = ir.OutcomeAccepted
	default:
		c.Outcome = ir.OutcomeRejected
	}
}
