package grammar

import (
	"strings"

	"github.com/roach88/sqlsynth/internal/ir"
)

// Symbol names a nonterminal.
type Symbol string

// Type is a bitmask of value types. A production's result type and a
// hole's expected type are both masks; they are compatible when they
// intersect.
type Type uint8

const (
	TypeInt Type = 1 << iota
	TypeText
	TypeBool

	// TypeAny places no restriction.
	TypeAny = TypeInt | TypeText | TypeBool
)

// TypeOfColumn maps a column type to its mask.
func TypeOfColumn(t ir.ColumnType) Type {
	switch t {
	case ir.TypeInt:
		return TypeInt
	case ir.TypeText:
		return TypeText
	case ir.TypeBool:
		return TypeBool
	default:
		return TypeAny
	}
}

// TypeOfValue maps a literal value to its mask. NULL has every type.
func TypeOfValue(v ir.Value) Type {
	if ir.IsNull(v) {
		return TypeAny
	}
	return TypeOfColumn(ir.TypeOf(v))
}

// Accepts reports whether t and other share at least one type. The zero
// mask is treated as TypeAny.
func (t Type) Accepts(other Type) bool {
	return t.orAny()&other.orAny() != 0
}

func (t Type) orAny() Type {
	if t == 0 {
		return TypeAny
	}
	return t
}

func (t Type) String() string {
	t = t.orAny()
	if t == TypeAny {
		return "any"
	}
	var parts []string
	if t&TypeInt != 0 {
		parts = append(parts, "int")
	}
	if t&TypeText != 0 {
		parts = append(parts, "text")
	}
	if t&TypeBool != 0 {
		parts = append(parts, "bool")
	}
	return strings.Join(parts, "|")
}

// Kind is the closed set of production kinds. The constraint model and the
// renderer switch over it exhaustively.
type Kind int

const (
	// KindRule is a structural production with no special semantics.
	KindRule Kind = iota
	// KindProjectItem ends a select list with one expression.
	KindProjectItem
	// KindProjectCons adds one expression and continues the select list.
	KindProjectCons
	// KindProjectAll is "*": every column in scope.
	KindProjectAll
	// KindTable binds a table into the query scope.
	KindTable
	// KindColumn references a column of a table.
	KindColumn
	// KindLiteral is a constant.
	KindLiteral
	// KindAggregate is an aggregate function call.
	KindAggregate
	// KindCompare is a binary comparison between its children.
	KindCompare
	// KindConnective is AND / OR over predicates.
	KindConnective
)

var kindNames = [...]string{
	KindRule:        "rule",
	KindProjectItem: "project_item",
	KindProjectCons: "project_cons",
	KindProjectAll:  "project_all",
	KindTable:       "table",
	KindColumn:      "column",
	KindLiteral:     "literal",
	KindAggregate:   "aggregate",
	KindCompare:     "compare",
	KindConnective:  "connective",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Terminal reports whether productions of this kind never have children.
func (k Kind) Terminal() bool {
	return k == KindProjectAll || k == KindTable || k == KindColumn || k == KindLiteral
}

// Role describes the clause a child occupies. Roles drive the syntactic
// constraints derived for the child's hole.
type Role int

const (
	RoleNone Role = iota
	// RoleProjection is an ungrouped SELECT list: no aggregates.
	RoleProjection
	// RoleGroupedProjection is the SELECT list of a GROUP BY query.
	RoleGroupedProjection
	// RoleSource is the FROM clause.
	RoleSource
	// RoleFilter is a WHERE predicate.
	RoleFilter
	// RoleJoinCondition is a JOIN ... ON predicate.
	RoleJoinCondition
	// RoleGroupKey is a GROUP BY key list.
	RoleGroupKey
	// RoleOrderKey is an ORDER BY key list.
	RoleOrderKey
)

// TypeSpec is the type a production requires of one child.
type TypeSpec struct {
	// Type is the accepted mask; zero means TypeAny.
	Type Type
	// SameAs names an earlier sibling (1-based) whose type this child
	// must share. Zero means no reference.
	SameAs int
}

// Intersect returns the types accepted by both masks. Unlike the masks
// themselves, a zero result means "none".
func (t Type) Intersect(other Type) Type {
	return t.orAny() & other.orAny()
}
