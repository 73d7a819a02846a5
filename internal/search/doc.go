// Package search drives the enumerator against an evaluator until a
// candidate reproduces the target relation.
//
// Candidates are pulled from the enumerator in batches and evaluated
// concurrently. The winner is the lowest-sequence accepted candidate of
// the first batch that has one, so the result does not depend on how
// many evaluation workers ran or which finished first.
//
// Solve is the facade used by the CLI and the harness: it builds the
// SQL grammar and the witness model from an example, opens an in-memory
// evaluator, and runs Search.
package search
