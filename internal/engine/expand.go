package engine

import (
	"golang.org/x/sync/errgroup"

	"github.com/roach88/sqlsynth/internal/ast"
	"github.com/roach88/sqlsynth/internal/grammar"
)

// minParallel is the fewest alternatives worth fanning out.
const minParallel = 4

// expansion is the result of trying one production at a hole.
type expansion struct {
	satisfiable bool
	tree        *ast.Tree
	pruned      string
}

// pickHole returns the index of the hole to expand.
func (e *Enumerator) pickHole(t *ast.Tree) int {
	if e.order == HoleOrderScopeFirst {
		for i := 0; i < t.Holes(); i++ {
			if e.g.BindsScope(t.Hole(i).Sym) {
				return i
			}
		}
	}
	return 0
}

// expand fills one hole of t with every admissible production and returns
// the children that survive the bounds, in production order.
//
// Each alternative writes only its own slot of results, so workers share
// nothing but the immutable parent tree.
func (e *Enumerator) expand(t *ast.Tree) ([]*ast.Tree, error) {
	hole := e.pickHole(t)
	h := t.Hole(hole)
	ctx := t.Context(hole)
	prods := e.g.ProductionsFor(h.Sym)

	results := make([]expansion, len(prods))
	try := func(i int, p *grammar.Production) error {
		if !e.m.Satisfiable(ctx, h.Constraints, p) {
			return nil
		}
		results[i].satisfiable = true
		child, err := t.Apply(e.m, hole, p)
		if err != nil {
			return err
		}
		if reason := e.exceeds(child); reason != "" {
			results[i].pruned = reason
			return nil
		}
		results[i].tree = child
		return nil
	}

	if e.workers == 1 || len(prods) < minParallel {
		for i, p := range prods {
			if err := try(i, p); err != nil {
				return nil, err
			}
		}
	} else {
		var g errgroup.Group
		g.SetLimit(e.workers)
		for i, p := range prods {
			g.Go(func() error { return try(i, p) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	var (
		children    []*ast.Tree
		satisfiable int
	)
	for _, r := range results {
		if r.satisfiable {
			satisfiable++
		}
		switch {
		case r.tree != nil:
			children = append(children, r.tree)
		case r.pruned != "":
			e.prune(r.pruned, 1)
		}
	}
	if satisfiable == 0 {
		e.stats.DeadEnds++
	}
	return children, nil
}
