package ir

// Run-log records. These are store-layer types: they carry logical
// sequence numbers, never wall-clock timestamps.

// Run statuses.
const (
	RunStatusRunning      = "running"
	RunStatusFound        = "found"
	RunStatusExhausted    = "exhausted"
	RunStatusBoundReached = "bound_reached"
	RunStatusFailed       = "failed"
)

// Candidate outcomes.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeEvalErr  = "eval_error"
)

// Run is one search over one example.
type Run struct {
	ID           string   `json:"id"`
	Problem      string   `json:"problem"`
	TargetDigest string   `json:"target_digest"`
	ConfigDigest string   `json:"config_digest"`
	Target       Relation `json:"target"`
	Status       string   `json:"status"`
	SQL          string   `json:"sql,omitempty"`
	Emitted      int64    `json:"emitted"`
	Evaluated    int64    `json:"evaluated"`
	Seq          int64    `json:"seq"`
}

// CandidateRecord is one evaluated candidate of a run.
type CandidateRecord struct {
	RunID      string `json:"run_id"`
	Seq        int64  `json:"seq"`
	ID         string `json:"id"`
	Complexity int    `json:"complexity"`
	SQL        string `json:"sql"`
	Outcome    string `json:"outcome"`
	Error      string `json:"error,omitempty"`
}
