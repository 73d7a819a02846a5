package search

import (
	"errors"
	"runtime"
	"time"

	"github.com/roach88/sqlsynth/internal/engine"
	"github.com/roach88/sqlsynth/internal/grammar"
	"github.com/roach88/sqlsynth/internal/ir"
	"github.com/roach88/sqlsynth/internal/metrics"
)

// ErrNoBound is returned when a search has no bound and no deadline: the
// grammar is infinite, so such a search might never return.
var ErrNoBound = errors.New("search requires at least one bound (complexity, depth, emitted, timeout or context deadline)")

// DefaultBatch is the number of candidates evaluated together.
const DefaultBatch = 16

// DefaultMaxComplexity bounds searches configured with DefaultConfig.
const DefaultMaxComplexity = 16

// Config configures a search.
type Config struct {
	Bounds  ir.Bounds
	Compare ir.Comparison

	// Workers bounds both expansion and evaluation parallelism.
	Workers int
	// Batch is the number of candidates pulled per evaluation round.
	Batch int

	FrontierLimit int
	HoleOrder     engine.HoleOrder
	StatusEvery   int

	// Weights override grammar.DefaultWeights by production name or kind.
	Weights map[string]int
	// MaxLiterals caps harvested literals; negative disables literals.
	MaxLiterals int
	// NoWitness disables data-derived pruning. Syntactic and typing
	// constraints still apply.
	NoWitness bool

	EvalTimeout time.Duration

	Metrics *metrics.Metrics
	// OnCandidate is called for every evaluated candidate, in sequence
	// order, from the goroutine running Search.
	OnCandidate func(Candidate)
}

// DefaultConfig returns a bounded configuration.
func DefaultConfig() Config {
	b := ir.NoBounds()
	b.MaxComplexity = DefaultMaxComplexity
	return Config{
		Bounds:      b,
		Compare:     ir.CompareBag,
		Workers:     runtime.GOMAXPROCS(0),
		Batch:       DefaultBatch,
		MaxLiterals: grammar.DefaultMaxLiterals,
	}
}

func (c Config) withDefaults() Config {
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.Batch < 1 {
		c.Batch = DefaultBatch
	}
	if c.Compare == "" {
		c.Compare = ir.CompareBag
	}
	return c
}

// EngineOptions returns the enumerator options c implies.
func (c Config) EngineOptions() []engine.Option {
	c = c.withDefaults()
	opts := []engine.Option{
		engine.WithBounds(c.Bounds),
		engine.WithWorkers(c.Workers),
		engine.WithHoleOrder(c.HoleOrder),
		engine.WithFrontierLimit(c.FrontierLimit),
		engine.WithStatusEvery(c.StatusEvery),
	}
	if c.Metrics != nil {
		opts = append(opts, engine.WithObserver(c.Metrics))
	}
	return opts
}
