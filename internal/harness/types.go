package harness

import "github.com/roach88/sqlsynth/internal/ir"

// TraceEvent is one evaluated candidate, in evaluation order.
type TraceEvent struct {
	Seq        int64  `json:"seq"`
	Complexity int    `json:"complexity"`
	SQL        string `json:"sql"`
	Outcome    string `json:"outcome"`
	Error      string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every expectation matches.
	Pass bool `json:"pass"`

	RunID      string `json:"run_id"`
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
	SQL        string `json:"sql,omitempty"`
	Complexity int    `json:"complexity,omitempty"`
	Evaluated  int64  `json:"evaluated"`

	// Output is the accepted query's result, when one was found.
	Output ir.Relation `json:"output"`

	// Trace contains every evaluated candidate in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an evaluated candidate to the trace.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
