package grammar

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/sqlsynth/internal/ir"
)

// Production is one rule LHS -> RHS. RHS lists only nonterminals; the
// terminal text of the rule lives in Template.
type Production struct {
	// ID is the production's index in declaration order, assigned by Build.
	ID int
	// Name identifies the production for weight overrides and traces.
	Name string
	LHS  Symbol
	RHS  []Symbol
	Kind Kind
	// Weight is added to a tree's complexity when this production is used.
	Weight int
	// Template renders the production. "{i}" is replaced by child i.
	Template string

	// Roles, when set, has one entry per RHS symbol.
	Roles []Role
	// Args, when set, has one entry per RHS symbol.
	Args []TypeSpec
	// Result is the production's value type. Zero means TypeAny.
	Result Type
	// Inherit names the child (1-based) whose type is this production's
	// type, overriding Result. Zero means Result applies.
	Inherit int

	// Terminal payloads.
	Table  string   // KindTable, KindColumn
	Column string   // KindColumn
	Value  ir.Value // KindLiteral
	// Op is the operator of a KindCompare or KindConnective production.
	Op string

	segments []Segment
}

// Segment is a parsed piece of a template: either literal Text or a
// reference to child Child.
type Segment struct {
	Text  string
	Child int
}

// IsChild reports whether the segment references a child.
func (s Segment) IsChild() bool {
	return s.Child >= 0
}

// Segments returns the parsed template. Valid only on productions of a
// built Grammar.
func (p *Production) Segments() []Segment {
	return p.segments
}

// Role returns the role of child i.
func (p *Production) Role(i int) Role {
	if i < len(p.Roles) {
		return p.Roles[i]
	}
	return RoleNone
}

// Arg returns the type spec of child i.
func (p *Production) Arg(i int) TypeSpec {
	if i < len(p.Args) {
		return p.Args[i]
	}
	return TypeSpec{Type: TypeAny}
}

// StaticType is the production's result type as far as it is known
// before its children are filled.
func (p *Production) StaticType() Type {
	if p.Inherit > 0 {
		return p.Arg(p.Inherit - 1).Type.orAny()
	}
	return p.Result.orAny()
}

// PassThrough reports whether the production is a unit rule that hands its
// hole's constraints unchanged to its single child, e.g. Expr -> ColumnRef.
func (p *Production) PassThrough() bool {
	return p.Kind == KindRule && len(p.RHS) == 1 && p.Inherit == 1 && p.Role(0) == RoleNone
}

func (p *Production) String() string {
	rhs := make([]string, len(p.RHS))
	for i, s := range p.RHS {
		rhs[i] = string(s)
	}
	if len(rhs) == 0 {
		return fmt.Sprintf("%s -> %q", p.LHS, p.Template)
	}
	return fmt.Sprintf("%s -> %s", p.LHS, strings.Join(rhs, " "))
}

// parseTemplate splits a template into segments. "{{" and "}}" escape
// literal braces.
func parseTemplate(tmpl string, children int) ([]Segment, error) {
	var segs []Segment
	var text strings.Builder
	used := make([]bool, children)

	flush := func() {
		if text.Len() > 0 {
			segs = append(segs, Segment{Text: text.String(), Child: -1})
			text.Reset()
		}
	}

	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		switch {
		case c == '{' && i+1 < len(tmpl) && tmpl[i+1] == '{':
			text.WriteByte('{')
			i++
		case c == '}' && i+1 < len(tmpl) && tmpl[i+1] == '}':
			text.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(tmpl[i:], '}')
			if end < 0 {
				return nil, fmt.Errorf("unterminated placeholder at offset %d", i)
			}
			n, err := strconv.Atoi(tmpl[i+1 : i+end])
			if err != nil {
				return nil, fmt.Errorf("bad placeholder %q", tmpl[i:i+end+1])
			}
			if n < 0 || n >= children {
				return nil, fmt.Errorf("placeholder {%d} out of range: production has %d children", n, children)
			}
			flush()
			segs = append(segs, Segment{Child: n})
			used[n] = true
			i += end
		case c == '}':
			return nil, fmt.Errorf("unmatched '}' at offset %d", i)
		default:
			text.WriteByte(c)
		}
	}
	flush()

	for n, ok := range used {
		if !ok {
			return nil, fmt.Errorf("child %d is never rendered", n)
		}
	}
	return segs, nil
}

var templateEscaper = strings.NewReplacer("{", "{{", "}", "}}")

// EscapeTemplate quotes s so that it renders verbatim as a template.
func EscapeTemplate(s string) string {
	return templateEscaper.Replace(s)
}
