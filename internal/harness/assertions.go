package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/roach88/sqlsynth/internal/ir"
	"github.com/roach88/sqlsynth/internal/store"
)

// Expectation names, used as AssertionError types.
const (
	ExpectStatus       = "status"
	ExpectSQL          = "sql"
	ExpectSQLContains  = "sql_contains"
	ExpectRejects      = "rejects"
	ExpectMaxEvaluated = "max_evaluated"
)

// traceTail is how many trailing candidates an AssertionError shows.
const traceTail = 10

// AssertionError is returned when an expectation fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Expectation name for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Diff     string       // Unified diff of expected and actual, if any
	Trace    []TraceEvent // Evaluated candidates for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if e.Diff != "" {
		fmt.Fprintf(&buf, "\n%s", e.Diff)
	}

	if len(e.Trace) > 0 {
		tail := e.Trace
		if len(tail) > traceTail {
			tail = tail[len(tail)-traceTail:]
		}
		fmt.Fprintf(&buf, "\nLast %d of %d candidates:\n", len(tail), len(e.Trace))
		for _, ev := range tail {
			fmt.Fprintf(&buf, "  [%d] c=%d %s %s\n", ev.Seq, ev.Complexity, ev.Outcome, ev.SQL)
		}
	}
	return buf.String()
}

// clauseBreaks puts each clause of a compact query on its own line so
// diffs point at the clause that differs.
var clauseBreaks = strings.NewReplacer(
	" FROM ", "\nFROM ",
	" INNER JOIN ", "\nINNER JOIN ",
	" LEFT JOIN ", "\nLEFT JOIN ",
	" WHERE ", "\nWHERE ",
	" GROUP BY ", "\nGROUP BY ",
)

// DiffSQL returns a unified diff of two queries, one clause per line.
// Returns "" when they are equal.
func DiffSQL(expected, actual string) string {
	if expected == actual {
		return ""
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(clauseBreaks.Replace(expected) + "\n"),
		B:        difflib.SplitLines(clauseBreaks.Replace(actual) + "\n"),
		FromFile: "expected",
		ToFile:   "actual",
		Context:  1,
	})
	if err != nil {
		return ""
	}
	return diff
}

func assertStatus(result *Result, expect Expect) error {
	if result.Status == expect.Status {
		return nil
	}
	actual := result.Status
	if result.Reason != "" {
		actual += " (" + result.Reason + ")"
	}
	return &AssertionError{
		Type:     ExpectStatus,
		Expected: expect.Status,
		Actual:   actual,
		Trace:    result.Trace,
	}
}

func assertSQL(result *Result, expect Expect) error {
	if expect.SQL == "" || result.SQL == expect.SQL {
		return nil
	}
	return &AssertionError{
		Type:     ExpectSQL,
		Expected: expect.SQL,
		Actual:   result.SQL,
		Diff:     DiffSQL(expect.SQL, result.SQL),
	}
}

func assertSQLContains(result *Result, expect Expect) error {
	var missing []string
	for _, s := range expect.SQLContains {
		if !strings.Contains(result.SQL, s) {
			missing = append(missing, fmt.Sprintf("%q", s))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &AssertionError{
		Type:     ExpectSQLContains,
		Expected: "query containing " + strings.Join(missing, ", "),
		Actual:   result.SQL,
	}
}

// assertRejects checks the run log: each query must have been evaluated in
// this run with an outcome other than accepted.
func assertRejects(actx *AssertionContext, result *Result, expect Expect) error {
	for _, query := range expect.Rejects {
		records, err := actx.Store.FindCandidate(actx.Ctx, ir.CandidateID(query))
		if err != nil {
			return fmt.Errorf("rejects: %w", err)
		}

		outcome := "not evaluated"
		for _, r := range records {
			if r.RunID == actx.RunID {
				outcome = r.Outcome
				break
			}
		}
		if outcome == ir.OutcomeRejected || outcome == ir.OutcomeEvalErr {
			continue
		}
		return &AssertionError{
			Type:     ExpectRejects,
			Expected: fmt.Sprintf("%s rejected", query),
			Actual:   outcome,
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertMaxEvaluated(result *Result, expect Expect) error {
	if expect.MaxEvaluated == 0 || result.Evaluated <= expect.MaxEvaluated {
		return nil
	}
	return &AssertionError{
		Type:     ExpectMaxEvaluated,
		Expected: fmt.Sprintf("at most %d candidates evaluated", expect.MaxEvaluated),
		Actual:   fmt.Sprintf("%d evaluated", result.Evaluated),
	}
}

// AssertionContext provides context for evaluating expectations.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
	RunID string
}

// EvaluateExpect evaluates every expectation against the result.
// Returns a slice of error messages for failed expectations.
// The actx parameter provides run-log access for rejects checks.
func EvaluateExpect(result *Result, expect Expect, actx *AssertionContext) []string {
	var errors []string

	checks := []func() error{
		func() error { return assertStatus(result, expect) },
		func() error { return assertSQL(result, expect) },
		func() error { return assertSQLContains(result, expect) },
		func() error {
			if len(expect.Rejects) == 0 {
				return nil
			}
			if actx == nil || actx.Store == nil {
				return fmt.Errorf("rejects requires run-log context")
			}
			return assertRejects(actx, result, expect)
		},
		func() error { return assertMaxEvaluated(result, expect) },
	}
	for _, check := range checks {
		if err := check(); err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}
