package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/roach88/sqlsynth/internal/ast"
	"github.com/roach88/sqlsynth/internal/constraint"
	"github.com/roach88/sqlsynth/internal/grammar"
	"github.com/roach88/sqlsynth/internal/ir"
	"github.com/roach88/sqlsynth/internal/render"
)

// Outcome is the kind of step Next produced.
type Outcome int

const (
	// OutcomeEmitted carries a complete, verified tree.
	OutcomeEmitted Outcome = iota

	// OutcomeExhausted means every tree within the space was emitted.
	OutcomeExhausted

	// OutcomeBoundReached means a bound, the timeout or cancellation
	// stopped the search before the space was exhausted.
	OutcomeBoundReached
)

func (o Outcome) String() string {
	switch o {
	case OutcomeEmitted:
		return "emitted"
	case OutcomeExhausted:
		return "exhausted"
	case OutcomeBoundReached:
		return "bound_reached"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Bound reasons reported in Step.Reason.
const (
	ReasonComplexity = "complexity"
	ReasonDepth      = "depth"
	ReasonEmitted    = "emitted"
	ReasonTimeout    = "timeout"
	ReasonCanceled   = "canceled"
	ReasonFrontier   = "frontier"
)

// Step is the result of one Next call.
type Step struct {
	Outcome Outcome
	Tree    *ast.Tree // set for OutcomeEmitted
	Index   int       // 1-based emission index for OutcomeEmitted
	Reason  string    // set for OutcomeBoundReached
}

// Stats counts enumerator work.
type Stats struct {
	Popped      int64
	Expanded    int64
	Emitted     int64
	Pruned      int64
	DeadEnds    int64
	Unsound     int64
	Evicted     int64
	MaxFrontier int
}

// HoleOrder selects which hole of a partial tree is expanded.
type HoleOrder int

const (
	// HoleOrderScopeFirst expands the first hole whose symbol can still
	// introduce a table, then falls back to the leftmost hole. Sources are
	// fixed before the column references that depend on them.
	HoleOrderScopeFirst HoleOrder = iota

	// HoleOrderLeftmost always expands the first hole in preorder.
	HoleOrderLeftmost
)

func (o HoleOrder) String() string {
	if o == HoleOrderLeftmost {
		return "leftmost"
	}
	return "scope-first"
}

// ParseHoleOrder parses "scope-first" or "leftmost".
func ParseHoleOrder(s string) (HoleOrder, error) {
	switch s {
	case "", "scope-first":
		return HoleOrderScopeFirst, nil
	case "leftmost":
		return HoleOrderLeftmost, nil
	}
	return 0, &SearchError{Code: ErrCodeInvalidConfig, Message: fmt.Sprintf("unknown hole order %q", s)}
}

// Observer receives enumerator events. Implementations must be cheap and
// safe to call from the Next goroutine.
type Observer interface {
	TreePopped(frontier int)
	TreeEmitted(complexity int)
	TreePruned(reason string, n int)
	TreesEvicted(n int)
}

type nopObserver struct{}

func (nopObserver) TreePopped(int)         {}
func (nopObserver) TreeEmitted(int)        {}
func (nopObserver) TreePruned(string, int) {}
func (nopObserver) TreesEvicted(int)       {}

// Enumerator produces complete trees of a grammar in ascending complexity.
//
// Thread-safety model:
//   - Next(): must be called from exactly one goroutine
//   - Stats(): same goroutine as Next
//   - expansion of a single hole runs on up to Workers goroutines
//
// INVARIANTS:
//   - emitted complexities are non-decreasing
//   - no two emissions are the same tree
//   - the emission sequence is identical for any worker count
type Enumerator struct {
	g *grammar.Grammar
	m *constraint.Model

	bounds        ir.Bounds
	workers       int
	order         HoleOrder
	frontierLimit int
	statusEvery   int
	observer      Observer
	now           func() time.Time

	clock    *Clock
	frontier *frontier
	quota    *EmissionQuota

	started   bool
	deadline  time.Time
	truncated string // first bound that pruned anything
	done      *Step
	stats     Stats
}

// Option configures an Enumerator.
type Option func(*Enumerator)

// WithBounds sets the search bounds. Default: ir.NoBounds().
func WithBounds(b ir.Bounds) Option {
	return func(e *Enumerator) { e.bounds = b }
}

// WithWorkers sets expansion parallelism. Default: GOMAXPROCS.
// Use WithWorkers(1) for fully sequential expansion.
func WithWorkers(n int) Option {
	return func(e *Enumerator) { e.workers = n }
}

// WithHoleOrder selects the hole policy. Default: HoleOrderScopeFirst.
func WithHoleOrder(o HoleOrder) Option {
	return func(e *Enumerator) { e.order = o }
}

// WithFrontierLimit caps the frontier size. Default: 0 (unbounded).
func WithFrontierLimit(n int) Option {
	return func(e *Enumerator) { e.frontierLimit = n }
}

// WithObserver installs an event observer.
func WithObserver(o Observer) Option {
	return func(e *Enumerator) { e.observer = o }
}

// WithStatusEvery logs a status line every n pops. Default: 0 (off).
func WithStatusEvery(n int) Option {
	return func(e *Enumerator) { e.statusEvery = n }
}

// WithNow replaces the time source used for the timeout.
func WithNow(now func() time.Time) Option {
	return func(e *Enumerator) { e.now = now }
}

// New creates an Enumerator over g constrained by m. The frontier starts
// with the single-hole tree for g's start symbol.
func New(g *grammar.Grammar, m *constraint.Model, opts ...Option) (*Enumerator, error) {
	if g == nil {
		return nil, &SearchError{Code: ErrCodeInvalidConfig, Message: "grammar is nil"}
	}
	if m == nil {
		m = constraint.NewModel(nil)
	}

	e := &Enumerator{
		g:        g,
		m:        m,
		bounds:   ir.NoBounds(),
		workers:  runtime.GOMAXPROCS(0),
		observer: nopObserver{},
		now:      time.Now,
		clock:    NewClock(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.workers < 1 {
		return nil, &SearchError{Code: ErrCodeInvalidConfig, Message: fmt.Sprintf("workers must be >= 1, got %d", e.workers)}
	}
	if e.frontierLimit < 0 {
		return nil, &SearchError{Code: ErrCodeInvalidConfig, Message: fmt.Sprintf("frontier limit must be >= 0, got %d", e.frontierLimit)}
	}
	if e.bounds.Timeout < 0 {
		return nil, &SearchError{Code: ErrCodeInvalidConfig, Message: "timeout must not be negative"}
	}

	e.frontier = newFrontier(e.clock, e.frontierLimit)
	e.quota = NewEmissionQuota(e.bounds.MaxEmitted)

	root := ast.New(g, m.Root())
	if reason := e.exceeds(root); reason != "" {
		e.prune(reason, 1)
	} else {
		e.frontier.PushBatch([]*ast.Tree{root})
	}
	return e, nil
}

// Stats returns a snapshot of the work counters.
func (e *Enumerator) Stats() Stats {
	s := e.stats
	s.MaxFrontier = e.frontier.MaxLen()
	return s
}

// FrontierLen returns the current frontier size.
func (e *Enumerator) FrontierLen() int {
	return e.frontier.Len()
}

// Next returns the next complete tree, or a terminal outcome. Once a
// terminal outcome is returned, every later call returns it again.
//
// The only errors are derivation defects in the grammar or constraint
// model; running out of space, time or budget is an outcome.
func (e *Enumerator) Next(ctx context.Context) (Step, error) {
	if e.done != nil {
		return *e.done, nil
	}
	if !e.started {
		e.started = true
		if e.bounds.Timeout > 0 {
			e.deadline = e.now().Add(e.bounds.Timeout)
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			reason := ReasonCanceled
			if errors.Is(err, context.DeadlineExceeded) {
				reason = ReasonTimeout
			}
			return e.finish(OutcomeBoundReached, reason), nil
		}
		if !e.deadline.IsZero() && !e.now().Before(e.deadline) {
			return e.finish(OutcomeBoundReached, ReasonTimeout), nil
		}
		if e.quota.Reached() {
			return e.finish(OutcomeBoundReached, ReasonEmitted), nil
		}

		tree, ok := e.frontier.Pop()
		if !ok {
			if e.truncated != "" {
				return e.finish(OutcomeBoundReached, e.truncated), nil
			}
			return e.finish(OutcomeExhausted, ""), nil
		}
		e.stats.Popped++
		e.observer.TreePopped(e.frontier.Len())
		if e.statusEvery > 0 && e.stats.Popped%int64(e.statusEvery) == 0 {
			e.logStatus(tree)
		}

		if tree.IsComplete() {
			if err := tree.Verify(e.m); err != nil {
				e.stats.Unsound++
				slog.Debug("discarding unsound tree",
					"sql", render.Render(tree, render.Compact()),
					"error", err,
				)
				continue
			}
			if err := e.quota.Take(); err != nil {
				return Step{}, err
			}
			e.stats.Emitted++
			e.observer.TreeEmitted(tree.Complexity())
			return Step{Outcome: OutcomeEmitted, Tree: tree, Index: e.quota.Current()}, nil
		}

		children, err := e.expand(tree)
		if err != nil {
			return Step{}, err
		}
		e.stats.Expanded++
		if evicted := e.frontier.PushBatch(children); evicted > 0 {
			if e.stats.Evicted == 0 {
				slog.Warn("frontier limit reached, evicting most complex trees",
					"limit", e.frontierLimit,
					"evicted", evicted,
				)
			}
			e.stats.Evicted += int64(evicted)
			e.observer.TreesEvicted(evicted)
			e.markTruncated(ReasonFrontier)
		}
	}
}

// finish records and returns a terminal step.
func (e *Enumerator) finish(o Outcome, reason string) Step {
	step := Step{Outcome: o, Reason: reason}
	e.done = &step
	slog.Debug("enumeration finished",
		"outcome", o.String(),
		"reason", reason,
		"popped", e.stats.Popped,
		"emitted", e.stats.Emitted,
	)
	return step
}

// exceeds returns the name of the first bound t cannot satisfy, or "".
func (e *Enumerator) exceeds(t *ast.Tree) string {
	if e.bounds.MaxComplexity >= 0 && t.Complexity()+t.Remaining() > e.bounds.MaxComplexity {
		return ReasonComplexity
	}
	if e.bounds.MaxDepth >= 0 && t.Depth() > e.bounds.MaxDepth {
		return ReasonDepth
	}
	return ""
}

func (e *Enumerator) prune(reason string, n int) {
	e.stats.Pruned += int64(n)
	e.observer.TreePruned(reason, n)
	e.markTruncated(reason)
}

func (e *Enumerator) markTruncated(reason string) {
	if e.truncated == "" {
		e.truncated = reason
	}
}

func (e *Enumerator) logStatus(current *ast.Tree) {
	attrs := []any{
		"popped", e.stats.Popped,
		"emitted", e.stats.Emitted,
		"frontier", e.frontier.Len(),
		"complexity", current.Complexity(),
		"current", render.Render(current, render.Compact()),
	}
	if e.bounds.Timeout > 0 {
		attrs = append(attrs, "remaining", e.deadline.Sub(e.now()).Round(time.Millisecond))
	}
	slog.Info("search status", attrs...)
}
