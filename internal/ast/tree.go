package ast

import (
	"fmt"
	"slices"

	"github.com/roach88/sqlsynth/internal/constraint"
	"github.com/roach88/sqlsynth/internal/grammar"
)

// Tree is an immutable partial or complete program.
type Tree struct {
	g          *grammar.Grammar
	root       Node
	holes      []Path
	complexity int
	depth      int
	remaining  int
	scope      []string
	openScope  int
}

// New returns the tree consisting of a single hole for the grammar's start
// symbol.
func New(g *grammar.Grammar, root constraint.Set) *Tree {
	t := &Tree{
		g:         g,
		root:      &Hole{Sym: g.Start(), Constraints: root},
		holes:     []Path{{}},
		depth:     1,
		remaining: g.MinCost(g.Start()),
	}
	if g.BindsScope(g.Start()) {
		t.openScope = 1
	}
	return t
}

// Grammar returns the grammar the tree instantiates.
func (t *Tree) Grammar() *grammar.Grammar { return t.g }

// Root returns the root node.
func (t *Tree) Root() Node { return t.root }

// IsComplete reports whether the tree has no holes.
func (t *Tree) IsComplete() bool { return len(t.holes) == 0 }

// Complexity is the sum of the weights of every production used so far.
func (t *Tree) Complexity() int { return t.complexity }

// Remaining is a lower bound on the weight that completing the tree adds.
func (t *Tree) Remaining() int { return t.remaining }

// Depth is the number of nodes on the longest root-to-leaf path, holes
// included. It never decreases under Apply.
func (t *Tree) Depth() int { return t.depth }

// Holes returns the number of holes.
func (t *Tree) Holes() int { return len(t.holes) }

// HolePath returns the path of hole i. Holes are numbered in preorder.
func (t *Tree) HolePath(i int) Path { return slices.Clone(t.holes[i]) }

// Hole returns hole i.
func (t *Tree) Hole(i int) *Hole {
	return nodeAt(t.root, t.holes[i]).(*Hole)
}

// Scope returns the tables bound so far, in FROM order.
func (t *Tree) Scope() []string { return slices.Clone(t.scope) }

// ScopeClosed reports whether no hole can bind another table.
func (t *Tree) ScopeClosed() bool { return t.openScope == 0 }

// Context returns the constraint context seen from hole i.
func (t *Tree) Context(i int) constraint.Context {
	return holeContext{t: t, path: t.holes[i]}
}

// Apply fills hole i with p and returns the new tree. The receiver is not
// modified. Child holes receive constraint sets derived by m.
func (t *Tree) Apply(m *constraint.Model, i int, p *grammar.Production) (*Tree, error) {
	if i < 0 || i >= len(t.holes) {
		return nil, fmt.Errorf("apply %s: hole %d out of range (%d holes)", p.Name, i, len(t.holes))
	}
	path := t.holes[i]
	hole := nodeAt(t.root, path).(*Hole)
	if p.LHS != hole.Sym {
		return nil, fmt.Errorf("apply %s: production expands %s, hole is %s", p.Name, p.LHS, hole.Sym)
	}

	filled := &Filled{Prod: p, Children: make([]Node, len(p.RHS))}
	childPaths := make([]Path, len(p.RHS))
	remaining := t.remaining - t.g.MinCost(hole.Sym)
	openScope := t.openScope
	if t.g.BindsScope(hole.Sym) {
		openScope--
	}
	for c, sym := range p.RHS {
		set, err := m.Derive(hole.Constraints, p, c)
		if err != nil {
			return nil, err
		}
		filled.Children[c] = &Hole{Sym: sym, Constraints: set}
		childPaths[c] = slices.Concat(path, Path{c})
		remaining += t.g.MinCost(sym)
		if t.g.BindsScope(sym) {
			openScope++
		}
	}

	holes := make([]Path, 0, len(t.holes)-1+len(childPaths))
	holes = append(holes, t.holes[:i]...)
	holes = append(holes, childPaths...)
	holes = append(holes, t.holes[i+1:]...)

	depth := len(path) + 1
	if len(p.RHS) > 0 {
		depth++
	}

	next := &Tree{
		g:          t.g,
		root:       replaceAt(t.root, path, filled),
		holes:      holes,
		complexity: t.complexity + t.g.WeightOf(p),
		depth:      max(t.depth, depth),
		remaining:  remaining,
		scope:      t.scope,
		openScope:  openScope,
	}
	if p.Kind == grammar.KindTable {
		next.scope = collectScope(next.root)
	}
	return next, nil
}

// Walk visits every node in preorder. Returning false from fn skips the
// node's children.
func (t *Tree) Walk(fn func(path Path, n Node) bool) {
	walk(t.root, nil, fn)
}

func walk(n Node, path Path, fn func(Path, Node) bool) {
	if !fn(path, n) {
		return
	}
	if f, ok := n.(*Filled); ok {
		for i, c := range f.Children {
			walk(c, slices.Concat(path, Path{i}), fn)
		}
	}
}

// Productions returns the IDs of the productions used, in preorder.
func (t *Tree) Productions() []int {
	var ids []int
	t.Walk(func(_ Path, n Node) bool {
		if f, ok := n.(*Filled); ok {
			ids = append(ids, f.Prod.ID)
		}
		return true
	})
	return ids
}

// Verify re-checks scope and typing rules over a complete tree.
func (t *Tree) Verify(m *constraint.Model) error {
	var nodes []constraint.Checked
	t.Walk(func(_ Path, n Node) bool {
		f, ok := n.(*Filled)
		if !ok {
			return false
		}
		types := make([]grammar.Type, len(f.Children))
		for i, c := range f.Children {
			types[i] = TypeOf(c)
		}
		nodes = append(nodes, constraint.Checked{Prod: f.Prod, ChildTypes: types})
		return true
	})
	return m.Verify(t.scope, nodes)
}

func collectScope(root Node) []string {
	var scope []string
	walk(root, nil, func(_ Path, n Node) bool {
		if f, ok := n.(*Filled); ok && f.Prod.Kind == grammar.KindTable {
			scope = append(scope, f.Prod.Table)
		}
		return true
	})
	return scope
}

// holeContext implements constraint.Context for one hole.
type holeContext struct {
	t    *Tree
	path Path
}

func (c holeContext) resolve(r constraint.Ref) Node {
	if !r.Valid() || r.Up > len(c.path) {
		return nil
	}
	anc := c.path[:len(c.path)-r.Up]
	return nodeAt(c.t.root, slices.Concat(anc, Path{r.Child}))
}

func (c holeContext) RefType(r constraint.Ref) grammar.Type {
	n := c.resolve(r)
	if n == nil {
		return grammar.TypeAny
	}
	return TypeOf(n)
}

func (c holeContext) RefColumn(r constraint.Ref) (string, string, bool) {
	n := c.resolve(r)
	if n == nil {
		return "", "", false
	}
	return ColumnOf(n)
}

func (c holeContext) Scope() []string { return c.t.scope }

func (c holeContext) ScopeClosed() bool { return c.t.openScope == 0 }
