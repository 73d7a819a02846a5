// Package engine implements the enumerator: a priority-ordered search over
// partial trees that emits complete trees in ascending complexity.
//
// ARCHITECTURE:
//
// Single Consumer, Parallel Expansion:
// Next is called from one goroutine. Each call pops the cheapest tree from
// the frontier; a complete tree is emitted, a partial one is expanded at one
// hole. Expanding a hole tries every production of its symbol, which is
// independent per production and runs on a bounded errgroup. Results are
// merged back in production order under the frontier lock, so concurrency
// never changes what is emitted or in which order.
//
// Frontier Order:
// Trees are ordered by (complexity, holes, seq):
//   - complexity ascending, so complete trees are emitted cheapest first
//   - fewer holes first, so on a tie a complete tree precedes the partial
//     trees that could still reach the same complexity
//   - seq ascending: a logical insertion clock, never wall-clock time
//
// Termination:
// A popped tree whose lower bound (complexity + cheapest completion) or
// depth exceeds the configured bounds is pruned. Next reports Exhausted
// when the frontier empties with nothing pruned, and BoundReached when a
// bound cut the space short, the emission quota is spent, the timeout
// expires or the context is done. Both are outcomes, not errors.
//
// Resource Policy:
// The frontier is the only shared mutable state and the primary memory
// risk. WithFrontierLimit caps it; on overflow the most complex entries
// are evicted first and the search can no longer report Exhausted.
package engine
