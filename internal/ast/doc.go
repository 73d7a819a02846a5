// Package ast provides the partial-program trees the enumerator searches
// over.
//
// Node is a sealed interface with exactly two variants:
//   - *Hole: an unexpanded nonterminal carrying its constraint set
//   - *Filled: a chosen production and its ordered children
//
// Trees are immutable. Apply returns a new Tree that shares every untouched
// subtree with its parent (path copying), so frontier entries stay valid no
// matter which of their descendants are later discarded.
//
// A Tree caches what the enumerator needs per pop without walking:
// complexity, depth, the holes in preorder, a lower bound on the weight
// still to be added, and the tables bound into scope.
package ast
