package cli

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue/token"
	"github.com/spf13/cobra"

	"github.com/roach88/sqlsynth/internal/problem"
	"github.com/roach88/sqlsynth/internal/search"
)

// ValidationError is one problem-file error.
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// ProblemSummary describes one valid problem.
type ProblemSummary struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tables      []string `json:"tables"`
	OutputArity int      `json:"output_arity"`
	OutputRows  int      `json:"output_rows"`
	Productions int      `json:"productions"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Problems []ProblemSummary  `json:"problems,omitempty"`
	Errors   []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <problems-dir>",
		Short: "Validate problem files without searching",
		Long: `Validate the CUE problem files in a directory without searching.

Checks syntax, the problem schema, row shapes and column types, and
builds each problem's SQL grammar. All errors are reported, not just
the first.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	result, errs := ValidateProblemsDir(dir)

	// A load that produced nothing (directory not found, no files, etc.)
	// is a command error.
	if result == nil {
		var loadErr *problem.LoadError
		if errors.As(errs[0], &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputValidateError(formatter, problem.ErrCodeGeneric, errs[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", result.FileCount, dir)

	var summaries []ProblemSummary
	validationErrors := toValidationErrors(errs)
	for _, p := range result.Problems {
		formatter.VerboseLog("Validating problem: %s", p.Name)
		cfg := search.DefaultConfig()
		cfg.Weights = p.Weights
		g, _, err := search.Prepare(p.Example, cfg)
		if err != nil {
			validationErrors = append(validationErrors, ValidationError{
				Code:    problem.ErrCodeSchema,
				Message: fmt.Sprintf("problem.%s: %v", p.Name, err),
				File:    p.Pos.Filename(),
				Line:    lineOf(p.Pos),
			})
			continue
		}
		summaries = append(summaries, summarize(p, len(g.Productions())))
	}

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}
	return outputValidateSuccess(formatter, summaries)
}

// ValidateProblemsDir loads every problem in dir, collecting all errors.
// The result is nil when nothing could be loaded at all.
func ValidateProblemsDir(dir string) (*problem.LoadResult, []error) {
	result, errs := problem.Load(dir, problem.LoadModeCollectAll)
	if result == nil && len(errs) == 0 {
		errs = []error{&problem.LoadError{Code: problem.ErrCodeGeneric, Message: "nothing loaded"}}
	}
	return result, errs
}

func toValidationErrors(errs []error) []ValidationError {
	out := make([]ValidationError, 0, len(errs))
	for _, err := range errs {
		var loadErr *problem.LoadError
		if errors.As(err, &loadErr) {
			out = append(out, ValidationError{
				Code:    loadErr.Code,
				Message: loadErr.Message,
				File:    loadErr.Pos.Filename(),
				Line:    lineOf(loadErr.Pos),
			})
			continue
		}
		out = append(out, ValidationError{Code: problem.ErrCodeGeneric, Message: err.Error()})
	}
	return out
}

func summarize(p problem.Problem, productions int) ProblemSummary {
	s := ProblemSummary{
		Name:        p.Name,
		Description: p.Description,
		Tables:      make([]string, 0, len(p.Example.Input.Tables)),
		OutputArity: len(p.Example.Output.Columns),
		OutputRows:  len(p.Example.Output.Rows),
		Productions: productions,
	}
	for _, t := range p.Example.Input.Tables {
		s.Tables = append(s.Tables, t.Name)
	}
	return s
}

// lineOf extracts the line number from a token.Pos.
func lineOf(pos token.Pos) int {
	if pos.IsValid() {
		return pos.Line()
	}
	return 0
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, problems []ProblemSummary) error {
	if formatter.JSON() {
		return formatter.Success(ValidationResult{Valid: true, Problems: problems})
	}

	for _, p := range problems {
		fmt.Fprintf(formatter.Writer, "  %s: %d table(s) -> %d column(s) x %d row(s), %d productions\n",
			p.Name, len(p.Tables), p.OutputArity, p.OutputRows, p.Productions)
	}
	fmt.Fprintf(formatter.Writer, "✓ All %d problem(s) valid\n", len(problems))
	return nil
}

// outputValidateError outputs a single validation error.
func outputValidateError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Load errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, code+": "+message)
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []ValidationError) error {
	if formatter.JSON() {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		if err := formatter.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "%s:%d\n", err.File, err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
