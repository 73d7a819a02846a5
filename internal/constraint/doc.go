// Package constraint derives and checks the constraints attached to holes
// of partial trees.
//
// Three families of constraint share one Set:
//   - syntactic: aggregates are forbidden outside a grouped SELECT list,
//     tables may not repeat in one FROM clause, select-list arity
//   - typing: a hole's expected type mask, and references to siblings
//     whose type a child must share
//   - witness: derived from the example, e.g. a bare projected column must
//     contain every value of its output column
//
// Satisfiable is conservative: it may accept a production that leads
// nowhere, but never rejects one that is part of a correct program. Witness
// checks are pruning only; the search driver's evaluation is the oracle.
package constraint
