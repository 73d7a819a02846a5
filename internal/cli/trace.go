package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/sqlsynth/internal/ir"
	"github.com/roach88/sqlsynth/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Problem  string // optional - list only runs of this problem
	Outcome  string // optional - filter candidates to this outcome
	Limit    int
	Latest   bool
}

// RunSummary is one run in a run listing.
type RunSummary struct {
	Seq       int64  `json:"seq"`
	ID        string `json:"id"`
	Problem   string `json:"problem"`
	Status    string `json:"status"`
	SQL       string `json:"sql,omitempty"`
	Emitted   int64  `json:"emitted"`
	Evaluated int64  `json:"evaluated"`
}

// RunListResult holds the output of trace without a run ID.
type RunListResult struct {
	Runs []RunSummary `json:"runs"`
}

// TraceResult holds the trace of a single run.
type TraceResult struct {
	Run        RunSummary           `json:"run"`
	Target     ir.Relation          `json:"target"`
	Candidates []ir.CandidateRecord `json:"candidates"`
	Stats      TraceStats           `json:"stats"`
}

// TraceStats holds candidate counts for a run.
type TraceStats struct {
	Total      int64            `json:"total"`
	Shown      int              `json:"shown"`
	ByOutcome  map[string]int64 `json:"by_outcome"`
	IsComplete bool             `json:"is_complete"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [run-id]",
		Short: "Inspect recorded search runs",
		Long: `Inspect the runs recorded by search --db.

Without a run ID, lists every recorded run in start order. With a run ID
(or --latest), shows the run's target, its outcome and the candidates it
evaluated in evaluation order.

Examples:
  sqlsynth trace --db ./runs.db
  sqlsynth trace --db ./runs.db --problem cs_students
  sqlsynth trace --db ./runs.db --latest --outcome rejected
  sqlsynth trace --db ./runs.db 01890a5d-ac96-774b-bcce-b302099a8057 --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return runTrace(opts, runID, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Problem, "problem", "", "list only runs of this problem")
	cmd.Flags().StringVar(&opts.Outcome, "outcome", "", "show only candidates with this outcome (accepted|rejected|eval_error)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 50, "maximum candidates to show (0 for all)")
	cmd.Flags().BoolVar(&opts.Latest, "latest", false, "trace the most recently started run")

	return cmd
}

func runTrace(opts *TraceOptions, runID string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	formatter := newFormatter(opts.RootOptions, cmd)

	if err := validateOutcomeFilter(opts.Outcome); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "invalid flags", err)
	}
	if opts.Latest && runID != "" {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, "--latest and a run ID are mutually exclusive", nil)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeRunLog, "failed to open database", err)
	}
	defer st.Close()

	if opts.Latest {
		run, ok, err := st.LatestRun(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read runs", err)
		}
		if !ok {
			return outputNoRuns(formatter)
		}
		runID = run.ID
	}

	if runID == "" {
		return listRuns(ctx, formatter, st, opts)
	}

	run, ok, err := st.ReadRun(ctx, runID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}
	if !ok {
		return formatter.Fail(ExitFailure, ErrCodeRunLog, "run not found: "+runID, nil)
	}

	candidates, err := st.ReadCandidates(ctx, runID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read candidates", err)
	}
	counts, err := st.OutcomeCounts(ctx, runID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to count candidates", err)
	}

	shown := filterCandidates(candidates, opts.Outcome, opts.Limit)
	result := TraceResult{
		Run:        summarizeRun(run),
		Target:     run.Target,
		Candidates: shown,
		Stats: TraceStats{
			Total:      int64(len(candidates)),
			Shown:      len(shown),
			ByOutcome:  counts,
			IsComplete: run.Status != ir.RunStatusRunning,
		},
	}

	if formatter.JSON() {
		return outputTraceJSON(formatter, result)
	}
	return outputTraceText(formatter.Writer, result, opts.Verbose)
}

func listRuns(ctx context.Context, f *OutputFormatter, st *store.Store, opts *TraceOptions) error {
	var (
		runs []ir.Run
		err  error
	)
	if opts.Problem != "" {
		runs, err = st.ReadRunsForProblem(ctx, opts.Problem)
	} else {
		runs, err = st.ReadRuns(ctx)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read runs", err)
	}
	if len(runs) == 0 {
		return outputNoRuns(f)
	}

	result := RunListResult{Runs: make([]RunSummary, len(runs))}
	for i, r := range runs {
		result.Runs[i] = summarizeRun(r)
	}

	if f.JSON() {
		return f.Success(result)
	}

	rows := make([][]string, len(result.Runs))
	for i, r := range result.Runs {
		rows[i] = []string{
			strconv.FormatInt(r.Seq, 10),
			r.ID,
			r.Problem,
			r.Status,
			count(r.Evaluated),
			r.SQL,
		}
	}
	writeTable(f.Writer, []string{"#", "run", "problem", "status", "evaluated", "query"}, rows)
	return nil
}

func outputNoRuns(f *OutputFormatter) error {
	if f.JSON() {
		return f.Success(RunListResult{Runs: []RunSummary{}})
	}
	fmt.Fprintln(f.Writer, "No runs recorded.")
	return nil
}

func summarizeRun(r ir.Run) RunSummary {
	return RunSummary{
		Seq:       r.Seq,
		ID:        r.ID,
		Problem:   r.Problem,
		Status:    r.Status,
		SQL:       r.SQL,
		Emitted:   r.Emitted,
		Evaluated: r.Evaluated,
	}
}

func validateOutcomeFilter(outcome string) error {
	switch outcome {
	case "", ir.OutcomeAccepted, ir.OutcomeRejected, ir.OutcomeEvalErr:
		return nil
	}
	return fmt.Errorf("invalid --outcome %q: must be accepted, rejected or eval_error", outcome)
}

// filterCandidates keeps candidates with the given outcome (all when empty),
// truncated to limit when limit is positive.
func filterCandidates(cs []ir.CandidateRecord, outcome string, limit int) []ir.CandidateRecord {
	out := make([]ir.CandidateRecord, 0, len(cs))
	for _, c := range cs {
		if outcome != "" && c.Outcome != outcome {
			continue
		}
		out = append(out, c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// outputTraceJSON outputs the trace result as JSON.
func outputTraceJSON(f *OutputFormatter, result TraceResult) error {
	return f.Encode(CLIResponse{Status: "ok", RunID: result.Run.ID, Data: result})
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	run := result.Run

	fmt.Fprintf(w, "Trace for Run: %s\n", run.ID)
	fmt.Fprintf(w, "Problem: %s\n", run.Problem)
	fmt.Fprintf(w, "Status: %s\n", completeStatus(run.Status, result.Stats.IsComplete))
	if run.SQL != "" {
		fmt.Fprintf(w, "Query: %s\n", run.SQL)
	}
	fmt.Fprintln(w)

	if verbose {
		fmt.Fprintln(w, "=== Target ===")
		writeRelation(w, result.Target)
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "=== Candidates ===")
	if len(result.Candidates) == 0 {
		fmt.Fprintln(w, "  (no candidates)")
	} else {
		rows := make([][]string, len(result.Candidates))
		for i, c := range result.Candidates {
			detail := c.SQL
			if c.Error != "" {
				detail += "  -- " + c.Error
			}
			rows[i] = []string{strconv.FormatInt(c.Seq, 10), strconv.Itoa(c.Complexity), c.Outcome, detail}
		}
		writeTable(w, []string{"#", "complexity", "outcome", "query"}, rows)
	}
	if int64(result.Stats.Shown) < result.Stats.Total {
		fmt.Fprintf(w, "  (%d of %s shown)\n", result.Stats.Shown, count(result.Stats.Total))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Emitted:   %s\n", count(run.Emitted))
	fmt.Fprintf(w, "  Evaluated: %s\n", count(run.Evaluated))
	writeOutcomeCounts(w, result.Stats.ByOutcome)

	return nil
}

// writeOutcomeCounts prints counts in sorted outcome order for deterministic
// output.
func writeOutcomeCounts(w io.Writer, counts map[string]int64) {
	outcomes := make([]string, 0, len(counts))
	for o := range counts {
		outcomes = append(outcomes, o)
	}
	sort.Strings(outcomes)
	for _, o := range outcomes {
		fmt.Fprintf(w, "  %-10s %s\n", o+":", count(counts[o]))
	}
}

// completeStatus returns a human-readable run status.
func completeStatus(status string, isComplete bool) string {
	if isComplete {
		return status
	}
	return status + " (unfinished)"
}
