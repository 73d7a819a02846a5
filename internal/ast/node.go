package ast

import (
	"github.com/roach88/sqlsynth/internal/constraint"
	"github.com/roach88/sqlsynth/internal/grammar"
)

// Node is a tree node. Only *Hole and *Filled implement it.
type Node interface {
	node()
	Symbol() grammar.Symbol
}

// Hole is an unexpanded nonterminal.
type Hole struct {
	Sym         grammar.Symbol
	Constraints constraint.Set
}

func (*Hole) node() {}

// Symbol returns the nonterminal the hole stands for.
func (h *Hole) Symbol() grammar.Symbol {
	return h.Sym
}

// Filled is a node expanded by a production.
type Filled struct {
	Prod     *grammar.Production
	Children []Node
}

func (*Filled) node() {}

// Symbol returns the production's left-hand side.
func (f *Filled) Symbol() grammar.Symbol {
	return f.Prod.LHS
}

// Path addresses a node by child indexes from the root.
type Path []int

// TypeOf returns the type of the value a node denotes. Holes and
// undetermined nodes return the widest type they may still take.
func TypeOf(n Node) grammar.Type {
	switch v := n.(type) {
	case *Hole:
		if v.Constraints.Type == 0 {
			return grammar.TypeAny
		}
		return v.Constraints.Type
	case *Filled:
		if v.Prod.Inherit > 0 && v.Prod.Inherit <= len(v.Children) {
			return TypeOf(v.Children[v.Prod.Inherit-1]).Intersect(v.Prod.StaticType())
		}
		return v.Prod.StaticType()
	default:
		return grammar.TypeAny
	}
}

// ColumnOf follows unit rules down from n to a column reference.
func ColumnOf(n Node) (table, column string, ok bool) {
	for {
		f, isFilled := n.(*Filled)
		if !isFilled {
			return "", "", false
		}
		if f.Prod.Kind == grammar.KindColumn {
			return f.Prod.Table, f.Prod.Column, true
		}
		if !f.Prod.PassThrough() {
			return "", "", false
		}
		n = f.Children[0]
	}
}

func nodeAt(root Node, path Path) Node {
	n := root
	for _, i := range path {
		f, ok := n.(*Filled)
		if !ok || i < 0 || i >= len(f.Children) {
			return nil
		}
		n = f.Children[i]
	}
	return n
}

// replaceAt returns a copy of root with the node at path replaced. Only
// the nodes on the path are copied.
func replaceAt(root Node, path Path, repl Node) Node {
	if len(path) == 0 {
		return repl
	}
	f := root.(*Filled)
	children := make([]Node, len(f.Children))
	copy(children, f.Children)
	children[path[0]] = replaceAt(children[path[0]], path[1:], repl)
	return &Filled{Prod: f.Prod, Children: children}
}
