// Package eval runs candidate queries against an example database.
//
// Each Evaluator owns one private in-memory SQLite database, loaded once
// from the example input. A pinned connection keeps the shared-cache
// database alive; candidates run on pooled connections so that a batch of
// candidates can be evaluated concurrently. Results come back as
// ir.Relation values ready for comparison with the target.
//
// Every failure to run a candidate (syntax, runtime, timeout, unsupported
// result value) is an *EvalError: the search treats it as a rejection of
// that one candidate, never as a failure of the search.
package eval
