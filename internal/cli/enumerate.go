package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/sqlsynth/internal/engine"
	"github.com/roach88/sqlsynth/internal/render"
	"github.com/roach88/sqlsynth/internal/search"
)

// EnumerateOptions holds flags for the enumerate command.
type EnumerateOptions struct {
	*RootOptions
	SearchFlags

	Limit  int
	Pretty bool
}

// EnumeratedQuery is one complete query in emission order.
type EnumeratedQuery struct {
	Seq        int    `json:"seq"`
	Complexity int    `json:"complexity"`
	Depth      int    `json:"depth"`
	SQL        string `json:"sql"`
}

// EnumerateResult holds the output of the enumerate command.
type EnumerateResult struct {
	Problem string            `json:"problem"`
	Queries []EnumeratedQuery `json:"queries"`
	Outcome string            `json:"outcome"`
	Reason  string            `json:"reason,omitempty"`
	Stats   engine.Stats      `json:"stats"`
}

// NewEnumerateCommand creates the enumerate command.
func NewEnumerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EnumerateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "enumerate <problems-dir> <problem>",
		Short: "List candidate queries without evaluating them",
		Long: `List the complete queries the enumerator emits for a problem, in
order of non-decreasing complexity, without running them.

Useful for checking weights and bounds: the list shows exactly which
queries a search would evaluate, and in which order.

Examples:
  sqlsynth enumerate ./examples/problems cs_students --limit 20
  sqlsynth enumerate ./examples/problems cs_students --pretty --hole-order leftmost`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnumerate(opts, args[0], args[1], cmd)
		},
	}

	bindSearchFlags(cmd, &opts.SearchFlags)
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "number of queries to list")
	cmd.Flags().BoolVar(&opts.Pretty, "pretty", false, "print queries in multi-line layout")

	return cmd
}

func runEnumerate(opts *EnumerateOptions, dir, name string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Limit < 1 {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "--limit must be at least 1", nil)
	}

	problems, err := loadProblems(dir, []string{name})
	if err != nil {
		return outputLoadError(formatter, err)
	}
	p := problems[0]

	cfg, err := opts.SearchFlags.Config(cmd, p)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "invalid search configuration", err)
	}
	if cfg.Bounds.MaxEmitted < 0 || cfg.Bounds.MaxEmitted > opts.Limit {
		cfg.Bounds.MaxEmitted = opts.Limit
	}

	en, err := search.NewEnumerator(p.Example, cfg)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeEnum, "failed to build enumerator", err)
	}

	ctx, cancel := signalContext(commandContext(cmd))
	defer cancel()

	layout := render.Compact()
	if opts.Pretty {
		layout = render.WithLayout(render.LayoutPretty)
	}

	result := EnumerateResult{Problem: p.Name, Queries: []EnumeratedQuery{}}
	for {
		step, err := en.Next(ctx)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeEnum, "enumeration failed", err)
		}
		if step.Outcome != engine.OutcomeEmitted {
			result.Outcome = step.Outcome.String()
			result.Reason = step.Reason
			break
		}
		result.Queries = append(result.Queries, EnumeratedQuery{
			Seq:        step.Index,
			Complexity: step.Tree.Complexity(),
			Depth:      step.Tree.Depth(),
			SQL:        render.Render(step.Tree, layout),
		})
	}
	result.Stats = en.Stats()

	if formatter.JSON() {
		return formatter.Success(result)
	}
	return outputEnumerateText(formatter, result, opts.Pretty)
}

func outputEnumerateText(f *OutputFormatter, result EnumerateResult, pretty bool) error {
	w := f.Writer

	if pretty {
		for _, q := range result.Queries {
			fmt.Fprintf(w, "-- #%d complexity %d\n%s\n\n", q.Seq, q.Complexity, q.SQL)
		}
	} else {
		rows := make([][]string, len(result.Queries))
		for i, q := range result.Queries {
			rows[i] = []string{strconv.Itoa(q.Seq), strconv.Itoa(q.Complexity), q.SQL}
		}
		writeTable(w, []string{"#", "complexity", "query"}, rows)
	}

	end := result.Outcome
	if result.Reason != "" {
		end += " (" + result.Reason + ")"
	}
	fmt.Fprintf(w, "%d queries listed; enumeration %s after %s expansions\n",
		len(result.Queries), end, count(result.Stats.Expanded))
	return nil
}
