package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/sqlsynth/internal/engine"
	"github.com/roach88/sqlsynth/internal/ir"
	"github.com/roach88/sqlsynth/internal/problem"
	"github.com/roach88/sqlsynth/internal/search"
)

// SearchFlags are the search settings shared by search and enumerate.
// Explicitly set flags override the problem file; unset flags leave the
// problem's own settings in place.
type SearchFlags struct {
	MaxComplexity int
	MaxDepth      int
	MaxEmitted    int
	Timeout       time.Duration
	Workers       int
	Batch         int
	Compare       string
	FrontierLimit int
	HoleOrder     string
	StatusEvery   int
	NoWitness     bool
	EvalTimeout   time.Duration
}

// bindSearchFlags registers the shared search flags on cmd.
func bindSearchFlags(cmd *cobra.Command, f *SearchFlags) {
	defaults := search.DefaultConfig()

	cmd.Flags().IntVar(&f.MaxComplexity, "max-complexity", search.DefaultMaxComplexity, "maximum query complexity (-1 for unlimited)")
	cmd.Flags().IntVar(&f.MaxDepth, "max-depth", ir.Unlimited, "maximum query tree depth (-1 for unlimited)")
	cmd.Flags().IntVar(&f.MaxEmitted, "max-emitted", ir.Unlimited, "maximum complete queries to enumerate (-1 for unlimited)")
	cmd.Flags().DurationVar(&f.Timeout, "timeout", 0, "search time limit (0 for none)")
	cmd.Flags().IntVar(&f.Workers, "workers", defaults.Workers, "parallel expansion and evaluation workers")
	cmd.Flags().IntVar(&f.Batch, "batch", defaults.Batch, "candidates evaluated per round")
	cmd.Flags().StringVar(&f.Compare, "compare", string(ir.CompareBag), "result comparison (bag|set|ordered)")
	cmd.Flags().IntVar(&f.FrontierLimit, "frontier-limit", 0, "maximum partial queries kept (0 for unlimited)")
	cmd.Flags().StringVar(&f.HoleOrder, "hole-order", engine.HoleOrderScopeFirst.String(), "hole expansion order (scope-first|leftmost)")
	cmd.Flags().IntVar(&f.StatusEvery, "status-every", 0, "log search status every N expansions (0 for never)")
	cmd.Flags().BoolVar(&f.NoWitness, "no-witness", false, "disable pruning derived from the example data")
	cmd.Flags().DurationVar(&f.EvalTimeout, "eval-timeout", 0, "per-candidate evaluation timeout (0 for default)")
}

// Config merges p's settings with the flags. Priority is explicit flag,
// then problem file, then flag default.
func (f *SearchFlags) Config(cmd *cobra.Command, p problem.Problem) (search.Config, error) {
	changed := cmd.Flags().Changed
	cfg := search.DefaultConfig()

	cfg.Bounds = p.Bounds
	if !p.HasBounds() {
		cfg.Bounds.MaxComplexity = f.MaxComplexity
		cfg.Bounds.MaxDepth = f.MaxDepth
		cfg.Bounds.MaxEmitted = f.MaxEmitted
		cfg.Bounds.Timeout = f.Timeout
	}
	if changed("max-complexity") {
		cfg.Bounds.MaxComplexity = f.MaxComplexity
	}
	if changed("max-depth") {
		cfg.Bounds.MaxDepth = f.MaxDepth
	}
	if changed("max-emitted") {
		cfg.Bounds.MaxEmitted = f.MaxEmitted
	}
	if changed("timeout") {
		cfg.Bounds.Timeout = f.Timeout
	}
	if !cfg.Bounds.Bounded() {
		return cfg, search.ErrNoBound
	}

	var err error
	cfg.Compare = p.Compare
	if changed("compare") || cfg.Compare == "" {
		if cfg.Compare, err = ir.ParseComparison(f.Compare); err != nil {
			return cfg, err
		}
	}
	if cfg.HoleOrder, err = engine.ParseHoleOrder(f.HoleOrder); err != nil {
		return cfg, err
	}

	if f.Workers < 1 {
		return cfg, fmt.Errorf("--workers must be at least 1, got %d", f.Workers)
	}
	if f.Batch < 1 {
		return cfg, fmt.Errorf("--batch must be at least 1, got %d", f.Batch)
	}
	if f.FrontierLimit < 0 {
		return cfg, fmt.Errorf("--frontier-limit must be non-negative, got %d", f.FrontierLimit)
	}
	cfg.Workers = f.Workers
	cfg.Batch = f.Batch
	cfg.FrontierLimit = f.FrontierLimit
	cfg.StatusEvery = f.StatusEvery
	cfg.NoWitness = f.NoWitness
	cfg.EvalTimeout = f.EvalTimeout
	cfg.Weights = p.Weights
	return cfg, nil
}

// loadProblems loads the problems in dir and selects names, or every
// problem when names is empty.
func loadProblems(dir string, names []string) ([]problem.Problem, error) {
	result, errs := problem.Load(dir, problem.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	if len(names) == 0 {
		return result.Problems, nil
	}

	selected := make([]problem.Problem, 0, len(names))
	for _, name := range names {
		p, ok := result.Find(name)
		if !ok {
			return nil, &problem.LoadError{
				Code:    problem.ErrCodeNoProblem,
				Message: fmt.Sprintf("problem %q not found (have %v)", name, result.Names()),
			}
		}
		selected = append(selected, p)
	}
	return selected, nil
}
