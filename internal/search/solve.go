package search

import (
	"context"
	"fmt"

	"github.com/roach88/sqlsynth/internal/constraint"
	"github.com/roach88/sqlsynth/internal/engine"
	"github.com/roach88/sqlsynth/internal/eval"
	"github.com/roach88/sqlsynth/internal/grammar"
	"github.com/roach88/sqlsynth/internal/ir"
)

// Prepare builds the SQL grammar and constraint model for ex.
func Prepare(ex ir.Example, cfg Config) (*grammar.Grammar, *constraint.Model, error) {
	if err := ex.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid example: %w", err)
	}
	g, err := grammar.SQL(ex, grammar.SQLOptions{
		Weights:     cfg.Weights,
		MaxLiterals: cfg.MaxLiterals,
		// A single row has no order to reproduce.
		Ordered: cfg.Compare == ir.CompareOrdered && len(ex.Output.Rows) > 1,
	})
	if err != nil {
		return nil, nil, err
	}
	if cfg.NoWitness {
		return g, constraint.NewModel(nil), nil
	}
	w, err := constraint.NewWitness(ex)
	if err != nil {
		return nil, nil, fmt.Errorf("build witness: %w", err)
	}
	return g, constraint.NewModel(w), nil
}

// NewEnumerator builds an enumerator over ex's SQL grammar.
func NewEnumerator(ex ir.Example, cfg Config) (*engine.Enumerator, error) {
	g, m, err := Prepare(ex, cfg)
	if err != nil {
		return nil, err
	}
	return engine.New(g, m, cfg.EngineOptions()...)
}

// Solve searches for a query mapping ex.Input to ex.Output.
func Solve(ctx context.Context, ex ir.Example, cfg Config) (Result, error) {
	if _, ok := ctx.Deadline(); !ok && !cfg.Bounds.Bounded() {
		return Result{}, ErrNoBound
	}
	cfg = cfg.withDefaults()

	en, err := NewEnumerator(ex, cfg)
	if err != nil {
		return Result{}, err
	}

	opts := []eval.Option{eval.WithConnections(cfg.Workers)}
	if cfg.EvalTimeout > 0 {
		opts = append(opts, eval.WithTimeout(cfg.EvalTimeout))
	}
	ev, err := eval.Open(ctx, ex.Input, opts...)
	if err != nil {
		return Result{}, err
	}
	defer ev.Close()

	return Search(ctx, en, ev, ex.Output, cfg)
}
