package cli

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sqlsynth/internal/engine"
	"github.com/roach88/sqlsynth/internal/ir"
	"github.com/roach88/sqlsynth/internal/problem"
	"github.com/roach88/sqlsynth/internal/search"
	"github.com/roach88/sqlsynth/internal/testutil"
)

// parsedFlags returns a command with the search flags bound and args parsed.
func parsedFlags(t *testing.T, args ...string) (*cobra.Command, *SearchFlags) {
	t.Helper()
	f := &SearchFlags{}
	cmd := &cobra.Command{Use: "x"}
	bindSearchFlags(cmd, f)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd, f
}

func testProblem(bounds ir.Bounds) problem.Problem {
	return problem.Problem{
		Name:    "p",
		Example: testutil.ProjectionExample(),
		Bounds:  bounds,
	}
}

func TestSearchFlags_Defaults(t *testing.T) {
	cmd, f := parsedFlags(t)

	cfg, err := f.Config(cmd, testProblem(ir.NoBounds()))
	require.NoError(t, err)
	assert.Equal(t, search.DefaultMaxComplexity, cfg.Bounds.MaxComplexity)
	assert.Equal(t, ir.Unlimited, cfg.Bounds.MaxDepth)
	assert.Equal(t, ir.CompareBag, cfg.Compare)
	assert.Equal(t, engine.HoleOrderScopeFirst, cfg.HoleOrder)
	assert.Equal(t, search.DefaultConfig().Workers, cfg.Workers)
}

func TestSearchFlags_ProblemBoundsApply(t *testing.T) {
	cmd, f := parsedFlags(t)
	b := ir.NoBounds()
	b.MaxComplexity = 9
	b.Timeout = time.Minute

	cfg, err := f.Config(cmd, testProblem(b))
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Bounds.MaxComplexity)
	assert.Equal(t, time.Minute, cfg.Bounds.Timeout)
}

func TestSearchFlags_ExplicitFlagOverridesProblem(t *testing.T) {
	cmd, f := parsedFlags(t, "--max-complexity", "5", "--compare", "set")
	b := ir.NoBounds()
	b.MaxComplexity = 9
	p := testProblem(b)
	p.Compare = ir.CompareOrdered

	cfg, err := f.Config(cmd, p)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Bounds.MaxComplexity)
	assert.Equal(t, ir.CompareSet, cfg.Compare)
}

func TestSearchFlags_ProblemCompareWithoutFlag(t *testing.T) {
	cmd, f := parsedFlags(t)
	p := testProblem(ir.NoBounds())
	p.Compare = ir.CompareOrdered

	cfg, err := f.Config(cmd, p)
	require.NoError(t, err)
	assert.Equal(t, ir.CompareOrdered, cfg.Compare)
}

func TestSearchFlags_Unbounded(t *testing.T) {
	cmd, f := parsedFlags(t, "--max-complexity", "-1")

	_, err := f.Config(cmd, testProblem(ir.NoBounds()))
	assert.ErrorIs(t, err, search.ErrNoBound)
}

func TestSearchFlags_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"workers", []string{"--workers", "0"}},
		{"batch", []string{"--batch", "0"}},
		{"frontier_limit", []string{"--frontier-limit", "-3"}},
		{"compare", []string{"--compare", "fuzzy"}},
		{"hole_order", []string{"--hole-order", "random"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, f := parsedFlags(t, tt.args...)
			_, err := f.Config(cmd, testProblem(ir.NoBounds()))
			assert.Error(t, err)
		})
	}
}

func TestLoadProblems_Selection(t *testing.T) {
	dir := writeProblemDir(t, map[string]string{
		"a.cue": projectionProblem,
		"b.cue": zeroBoundProblem,
	})

	all, err := loadProblems(dir, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	one, err := loadProblems(dir, []string{"unreachable"})
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "unreachable", one[0].Name)

	_, err = loadProblems(dir, []string{"nope"})
	var le *problem.LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, problem.ErrCodeNoProblem, le.Code)
}
