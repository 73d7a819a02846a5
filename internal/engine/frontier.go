package engine

import (
	"sync"

	"github.com/google/btree"

	"github.com/roach88/sqlsynth/internal/ast"
)

// entry is one frontier item.
type entry struct {
	tree *ast.Tree
	seq  int64
}

// entryLess orders entries by (complexity, holes, seq).
func entryLess(a, b entry) bool {
	if ca, cb := a.tree.Complexity(), b.tree.Complexity(); ca != cb {
		return ca < cb
	}
	if ha, hb := a.tree.Holes(), b.tree.Holes(); ha != hb {
		return ha < hb
	}
	return a.seq < b.seq
}

// frontier is the ordered set of trees awaiting expansion or emission.
//
// An ordered B-tree rather than a binary heap: pop-min and the eviction
// policy's delete-max are both O(log n) on one structure. Keys never
// change after insertion because trees are immutable.
//
// Thread-safety: all methods take the frontier lock, so a pop and a
// batch insert are each atomic.
type frontier struct {
	mu      sync.Mutex
	items   *btree.BTreeG[entry]
	clock   *Clock
	limit   int
	maxSeen int
}

// newFrontier creates an empty frontier. limit <= 0 means unbounded.
func newFrontier(clock *Clock, limit int) *frontier {
	return &frontier{
		items: btree.NewG(32, entryLess),
		clock: clock,
		limit: limit,
	}
}

// PushBatch inserts trees in order under one contiguous block of clock
// stamps. If the frontier then exceeds its limit, the most complex entries
// are dropped until it is 10% under the limit; the number dropped is
// returned.
func (f *frontier) PushBatch(trees []*ast.Tree) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	first := f.clock.Reserve(len(trees))
	for i, t := range trees {
		f.items.ReplaceOrInsert(entry{tree: t, seq: first + int64(i)})
	}
	if n := f.items.Len(); n > f.maxSeen {
		f.maxSeen = n
	}
	if f.limit <= 0 || f.items.Len() <= f.limit {
		return 0
	}

	target := f.limit - f.limit/10
	evicted := 0
	for f.items.Len() > target {
		f.items.DeleteMax()
		evicted++
	}
	return evicted
}

// Pop removes and returns the least entry.
func (f *frontier) Pop() (*ast.Tree, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.items.DeleteMin()
	if !ok {
		return nil, false
	}
	return e.tree, true
}

// Len returns the number of entries.
func (f *frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items.Len()
}

// MaxLen returns the largest size the frontier has reached.
func (f *frontier) MaxLen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxSeen
}
