package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/sqlsynth/internal/engine"
	"github.com/roach88/sqlsynth/internal/ir"
	"github.com/roach88/sqlsynth/internal/metrics"
	"github.com/roach88/sqlsynth/internal/problem"
	"github.com/roach88/sqlsynth/internal/search"
	"github.com/roach88/sqlsynth/internal/store"
)

// SearchOptions holds flags for the search command.
type SearchOptions struct {
	*RootOptions
	SearchFlags

	Database    string
	MetricsAddr string

	// RunIDs allows overriding the run ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// ProblemResult is the outcome of one problem's search.
type ProblemResult struct {
	Name       string       `json:"name"`
	RunID      string       `json:"run_id,omitempty"`
	Status     string       `json:"status"`
	Reason     string       `json:"reason,omitempty"`
	SQL        string       `json:"sql,omitempty"`
	Complexity int          `json:"complexity,omitempty"`
	Emitted    int64        `json:"emitted"`
	Evaluated  int64        `json:"evaluated"`
	Rejected   int64        `json:"rejected"`
	EvalErrors int64        `json:"eval_errors"`
	ElapsedMS  int64        `json:"elapsed_ms"`
	Output     *ir.Relation `json:"output,omitempty"`
}

// SearchReport holds the results of a search command.
type SearchReport struct {
	Problems []ProblemResult `json:"problems"`
	Found    int             `json:"found"`
	Total    int             `json:"total"`
}

// NewSearchCommand creates the search command.
func NewSearchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SearchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "search <problems-dir> [problem...]",
		Short: "Synthesize queries for example problems",
		Long: `Search for the simplest SQL query reproducing each problem's output.

Problems are loaded from the CUE files in <problems-dir>. With no problem
names every problem is searched, in declaration order. Bounds, comparison
mode and weights set in a problem file apply unless overridden by an
explicitly set flag.

Exit codes:
  0 - A query was found for every problem
  1 - At least one search ended without a query
  2 - Command error (invalid problems, bad flags, etc.)

Examples:
  sqlsynth search ./examples/problems
  sqlsynth search ./examples/problems cs_students --max-complexity 12
  sqlsynth search ./examples/problems --db ./runs.db --metrics-addr :9090
  sqlsynth search ./examples/problems --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(opts, args[0], args[1:], cmd)
		},
	}

	bindSearchFlags(cmd, &opts.SearchFlags)
	cmd.Flags().StringVar(&opts.Database, "db", "", "record runs in this SQLite database")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while searching")

	return cmd
}

func runSearch(opts *SearchOptions, dir string, names []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	problems, err := loadProblems(dir, names)
	if err != nil {
		return outputLoadError(formatter, err)
	}

	// Resolve every configuration before searching anything.
	configs := make([]search.Config, len(problems))
	for i, p := range problems {
		if configs[i], err = opts.SearchFlags.Config(cmd, p); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeConfig, "invalid search configuration for "+p.Name, err)
		}
	}

	var st *store.Store
	if opts.Database != "" {
		st, err = openRunLog(commandContext(cmd), opts.Database)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeRunLog, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
	}

	m := metrics.New()
	if opts.MetricsAddr != "" {
		stop, err := serveMetrics(opts.MetricsAddr, m)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to start metrics server", err)
		}
		defer stop()
	}

	runIDs := opts.RunIDs
	if runIDs == nil {
		runIDs = engine.UUIDv7Generator{}
	}

	ctx, cancel := signalContext(commandContext(cmd))
	defer cancel()

	report := SearchReport{Problems: make([]ProblemResult, 0, len(problems)), Total: len(problems)}
	for i, p := range problems {
		if ctx.Err() != nil {
			break
		}
		cfg := configs[i]
		cfg.Metrics = m

		pr, err := searchProblem(ctx, st, runIDs, p, cfg)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("search %s failed", p.Name), err)
		}
		report.Problems = append(report.Problems, pr)
		if pr.Status == ir.RunStatusFound {
			report.Found++
		}
		if !formatter.JSON() {
			outputProblemText(formatter, pr)
		}
	}

	if formatter.JSON() {
		if err := formatter.Success(report); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(formatter.Writer, "\nSearch Summary: %d found, %d not found, %d total\n",
			report.Found, report.Total-report.Found, report.Total)
	}

	if report.Found < report.Total {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d problem(s) without a query", report.Total-report.Found, report.Total))
	}
	return nil
}

// searchProblem runs one search, recording it when st is non-nil.
func searchProblem(ctx context.Context, st *store.Store, runIDs engine.RunIDGenerator, p problem.Problem, cfg search.Config) (ProblemResult, error) {
	pr := ProblemResult{Name: p.Name}

	var rec *recorder
	if st != nil {
		pr.RunID = runIDs.Generate()
		var err error
		rec, err = startRun(ctx, st, pr.RunID, problemInput{Name: p.Name, Output: p.Example.Output}, cfg)
		if err != nil {
			return pr, fmt.Errorf("record run: %w", err)
		}
	}

	var output ir.Relation
	cfg.OnCandidate = func(c search.Candidate) {
		if rec != nil {
			rec.Add(c)
		}
		if c.Outcome == ir.OutcomeAccepted {
			output = c.Result
		}
	}

	slog.Info("searching", "problem", p.Name, "max_complexity", cfg.Bounds.MaxComplexity, "run_id", pr.RunID)
	res, err := search.Solve(ctx, p.Example, cfg)
	if rec != nil {
		if finishErr := rec.Finish(res); finishErr != nil {
			slog.Error("failed to finish run", "run_id", pr.RunID, "error", finishErr)
		}
	}
	if err != nil {
		return pr, err
	}

	pr.Status = res.Status
	pr.Reason = res.Reason
	pr.SQL = res.SQL
	pr.Complexity = res.Complexity
	pr.Emitted = res.Emitted
	pr.Evaluated = res.Evaluated
	pr.Rejected = res.Rejected
	pr.EvalErrors = res.EvalErrors
	pr.ElapsedMS = res.Elapsed.Milliseconds()
	if res.Found() {
		pr.Output = &output
	}
	return pr, nil
}

// openRunLog opens the run log and closes out runs a previous process left
// unfinished.
func openRunLog(ctx context.Context, path string) (*store.Store, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	n, err := st.MarkFailed(ctx)
	if err != nil {
		st.Close()
		return nil, err
	}
	if n > 0 {
		slog.Warn("marked unfinished runs as failed", "count", n)
	}
	return st, nil
}

// commandContext returns cmd's context, or a background context when the
// command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan) // Prevent signal handler leak
		select {
		case sig := <-sigChan:
			slog.Info("received signal, stopping search", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// serveMetrics serves m on addr until the returned stop function is called.
func serveMetrics(addr string, m *metrics.Metrics) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()
	slog.Info("serving metrics", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

// outputProblemText prints one problem's result.
func outputProblemText(f *OutputFormatter, pr ProblemResult) {
	w := f.Writer
	stats := fmt.Sprintf("%s evaluated, %s", count(pr.Evaluated), elapsed(time.Duration(pr.ElapsedMS)*time.Millisecond))

	if pr.Status != ir.RunStatusFound {
		reason := pr.Status
		if pr.Reason != "" {
			reason += ": " + pr.Reason
		}
		fmt.Fprintf(w, "✗ %s (%s; %s)\n", pr.Name, reason, stats)
		return
	}

	fmt.Fprintf(w, "✓ %s (complexity %d; %s)\n", pr.Name, pr.Complexity, stats)
	fmt.Fprintf(w, "  %s\n", pr.SQL)
	if f.Verbose && pr.Output != nil {
		writeRelation(w, *pr.Output)
	}
	if pr.RunID != "" {
		f.VerboseLog("  run %s", pr.RunID)
	}
}

// outputLoadError reports a problem-loading failure (exit code 2).
func outputLoadError(f *OutputFormatter, err error) error {
	code := problem.ErrCodeGeneric
	var loadErr *problem.LoadError
	if errors.As(err, &loadErr) {
		code = loadErr.Code
	}
	return f.Fail(ExitCommandError, code, "failed to load problems", err)
}
