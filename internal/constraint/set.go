package constraint

import (
	"fmt"
	"strings"

	"github.com/roach88/sqlsynth/internal/grammar"
)

// Ref points from a hole to a node elsewhere in the tree: go Up levels
// from the hole, then to child Child. Up == 0 means no reference.
type Ref struct {
	Up    int
	Child int
}

// Valid reports whether the reference is set.
func (r Ref) Valid() bool {
	return r.Up > 0
}

// lift re-bases a reference for a hole one level deeper.
func (r Ref) lift() Ref {
	if !r.Valid() {
		return r
	}
	return Ref{Up: r.Up + 1, Child: r.Child}
}

// Set is the constraint set owned by one hole. The zero value is the empty
// set: no restrictions. Sets are values; deriving a child set never
// changes the parent's.
type Set struct {
	// Type is the accepted type mask; zero means any.
	Type grammar.Type
	// NoAggregate forbids aggregate productions in this subtree.
	NoAggregate bool
	// Conjunctive is set when this predicate must hold for every output
	// row: the WHERE clause and AND operands under it.
	Conjunctive bool
	// Arity is the number of select-list items this hole must produce;
	// zero means unconstrained.
	Arity int
	// Slot is the 1-based output column this expression produces; zero
	// when the hole is not a projected expression.
	Slot int
	// SameAs references a node whose type this hole must share.
	SameAs Ref
	// MatchValues references a column whose values a literal in this hole
	// must come from.
	MatchValues Ref
}

// Empty reports whether s places no restriction.
func (s Set) Empty() bool {
	return s == Set{}
}

func (s Set) String() string {
	var parts []string
	if s.Type != 0 && s.Type != grammar.TypeAny {
		parts = append(parts, "type="+s.Type.String())
	}
	if s.NoAggregate {
		parts = append(parts, "no_agg")
	}
	if s.Conjunctive {
		parts = append(parts, "conj")
	}
	if s.Arity > 0 {
		parts = append(parts, fmt.Sprintf("arity=%d", s.Arity))
	}
	if s.Slot > 0 {
		parts = append(parts, fmt.Sprintf("slot=%d", s.Slot))
	}
	if s.SameAs.Valid() {
		parts = append(parts, fmt.Sprintf("same_as=%d/%d", s.SameAs.Up, s.SameAs.Child))
	}
	if s.MatchValues.Valid() {
		parts = append(parts, fmt.Sprintf("match=%d/%d", s.MatchValues.Up, s.MatchValues.Child))
	}
	return "{" + strings.Join(parts, " ") + "}"
}
