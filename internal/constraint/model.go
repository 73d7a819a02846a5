package constraint

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/sqlsynth/internal/grammar"
)

// Context is the read-only view of a partial tree that Satisfiable needs,
// seen from the hole being filled.
type Context interface {
	// RefType resolves r to the type of the node it points at. Holes and
	// nodes whose type is not yet determined report their upper bound.
	RefType(r Ref) grammar.Type
	// RefColumn resolves r through pass-through rules to a column
	// reference, if one has been chosen.
	RefColumn(r Ref) (table, column string, ok bool)
	// Scope returns the tables bound so far, in FROM order.
	Scope() []string
	// ScopeClosed reports whether no further table can be bound.
	ScopeClosed() bool
}

// Model derives and checks constraints. A Model with a nil Witness applies
// only syntactic and typing constraints; that is the unconstrained control
// configuration used to validate pruning.
type Model struct {
	w *Witness
}

// NewModel creates a model. w may be nil.
func NewModel(w *Witness) *Model {
	return &Model{w: w}
}

// Root returns the constraint set of a tree's initial hole.
func (m *Model) Root() Set {
	return Set{}
}

func (m *Model) arity() int {
	if m.w == nil {
		return 0
	}
	return m.w.arity
}

// Derive computes the constraint set of child i introduced by filling a
// hole constrained by parent with p. It is deterministic and never relaxes
// a constraint the parent carries into the same clause.
func (m *Model) Derive(parent Set, p *grammar.Production, i int) (Set, error) {
	if i < 0 || i >= len(p.RHS) {
		return Set{}, &DerivationError{Production: p.Name, Child: i,
			Message: fmt.Sprintf("production has %d children", len(p.RHS))}
	}
	if p.PassThrough() {
		child := parent
		child.SameAs = parent.SameAs.lift()
		child.MatchValues = parent.MatchValues.lift()
		return child, nil
	}

	arg := p.Arg(i)
	child := Set{
		Type:        arg.Type,
		NoAggregate: parent.NoAggregate || p.Kind == grammar.KindAggregate,
	}
	if p.Inherit == i+1 {
		child.Type = arg.Type.Intersect(parent.Type)
		if child.Type == 0 {
			return Set{}, &DerivationError{Production: p.Name, Child: i,
				Message: fmt.Sprintf("result type %s incompatible with expected %s", arg.Type, parent.Type)}
		}
	}
	if arg.SameAs > 0 {
		child.SameAs = Ref{Up: 1, Child: arg.SameAs - 1}
	}

	switch p.Role(i) {
	case grammar.RoleProjection:
		child.NoAggregate = true
		child.Slot = 1
		child.Arity = m.arity()
	case grammar.RoleGroupedProjection:
		child.NoAggregate = false
		child.Slot = 1
		child.Arity = m.arity()
	case grammar.RoleFilter:
		child.NoAggregate = true
		child.Conjunctive = true
	case grammar.RoleJoinCondition, grammar.RoleGroupKey, grammar.RoleOrderKey:
		child.NoAggregate = true
	}

	switch p.Kind {
	case grammar.KindProjectItem:
		if parent.Arity > 1 {
			return Set{}, &DerivationError{Production: p.Name, Child: i,
				Message: fmt.Sprintf("select list closed with %d items still required", parent.Arity)}
		}
		child.Slot = parent.Slot
		child.Type = m.w.SlotType(parent.Slot).Intersect(child.Type)
	case grammar.KindProjectCons:
		if parent.Arity == 1 {
			return Set{}, &DerivationError{Production: p.Name, Child: i,
				Message: "select list extended past the output arity"}
		}
		if i == 0 {
			child.Slot = parent.Slot
			child.Type = m.w.SlotType(parent.Slot).Intersect(child.Type)
		} else {
			child.Type = 0
			if parent.Slot > 0 {
				child.Slot = parent.Slot + 1
			}
			if parent.Arity > 0 {
				child.Arity = parent.Arity - 1
			}
		}
	case grammar.KindConnective:
		child.Conjunctive = parent.Conjunctive && p.Op == "AND"
	case grammar.KindCompare:
		if i == 1 && p.Op == "=" && parent.Conjunctive && m.w != nil && !m.w.outputEmpty {
			child.MatchValues = Ref{Up: 1, Child: 0}
		}
	}
	if child.Type == grammar.TypeAny {
		child.Type = 0
	}
	return child, nil
}

// Satisfiable reports whether p may fill a hole constrained by s. It may
// admit productions that lead to no correct program, but never rejects
// one that is part of a correct program.
func (m *Model) Satisfiable(ctx Context, s Set, p *grammar.Production) bool {
	// Syntactic.
	if s.NoAggregate && p.Kind == grammar.KindAggregate {
		return false
	}

	// Typing.
	result := p.StaticType()
	if !s.Type.Accepts(result) {
		return false
	}
	if s.SameAs.Valid() && !ctx.RefType(s.SameAs).Accepts(result) {
		return false
	}

	switch p.Kind {
	case grammar.KindTable:
		return !slices.Contains(ctx.Scope(), p.Table)
	case grammar.KindColumn:
		if ctx.ScopeClosed() && !slices.Contains(ctx.Scope(), p.Table) {
			return false
		}
		if m.w != nil && s.Slot > 0 && !m.w.Covers(p.Table, p.Column, s.Slot) {
			return false
		}
	case grammar.KindLiteral:
		if m.w != nil && s.MatchValues.Valid() {
			if table, column, ok := ctx.RefColumn(s.MatchValues); ok && !m.w.Contains(table, column, p.Value) {
				return false
			}
		}
	case grammar.KindProjectItem:
		return s.Arity <= 1
	case grammar.KindProjectCons:
		return s.Arity != 1
	case grammar.KindProjectAll:
		return m.starFits(ctx, s)
	}
	return true
}

// starFits checks that "*" over the closed scope has the required width and
// column types, and that each column can supply its output slot's values.
func (m *Model) starFits(ctx Context, s Set) bool {
	if m.w == nil || s.Arity == 0 || !ctx.ScopeClosed() {
		return true
	}
	width := 0
	for _, table := range ctx.Scope() {
		for _, c := range m.w.Columns(table) {
			slot := s.Slot + width
			width++
			if width > s.Arity {
				return false
			}
			if !m.w.SlotType(slot).Accepts(grammar.TypeOfColumn(c.Type)) {
				return false
			}
			if !m.w.Covers(table, c.Name, slot) {
				return false
			}
		}
	}
	return width == s.Arity
}

// ErrInvalidTree is wrapped by Verify failures.
var ErrInvalidTree = errors.New("invalid tree")

// Checked is the view of one filled node that Verify needs: its production
// and the resolved types of its children.
type Checked struct {
	Prod       *grammar.Production
	ChildTypes []grammar.Type
}

// Verify re-checks a complete tree. Choices made while the scope was open,
// or while a referenced sibling was still a hole, are only fully checkable
// once the tree is complete.
func (m *Model) Verify(scope []string, nodes []Checked) error {
	for i, t := range scope {
		if slices.Contains(scope[:i], t) {
			return fmt.Errorf("%w: table %s bound twice", ErrInvalidTree, t)
		}
	}
	for _, n := range nodes {
		p := n.Prod
		if p.Kind == grammar.KindColumn && !slices.Contains(scope, p.Table) {
			return fmt.Errorf("%w: column %s.%s is not in scope", ErrInvalidTree, p.Table, p.Column)
		}
		for i, a := range p.Args {
			if i >= len(n.ChildTypes) {
				break
			}
			got := n.ChildTypes[i]
			if !a.Type.Accepts(got) {
				return fmt.Errorf("%w: %s child %d has type %s, want %s", ErrInvalidTree, p.Name, i, got, a.Type)
			}
			if a.SameAs > 0 && !n.ChildTypes[a.SameAs-1].Accepts(got) {
				return fmt.Errorf("%w: %s compares %s with %s", ErrInvalidTree, p.Name, n.ChildTypes[a.SameAs-1], got)
			}
		}
	}
	return nil
}
