// Package render turns trees into SQL text.
//
// Rendering is a pure function of the tree: each filled node expands its
// production's template, substituting rendered children. It is total over
// every tree the enumerator can produce; holes render as <Symbol> so that
// partial trees can be shown in logs and traces.
package render

import (
	"errors"
	"strings"

	"github.com/roach88/sqlsynth/internal/ast"
	"github.com/roach88/sqlsynth/internal/grammar"
)

// ErrIncomplete is returned by Query for a tree that still has holes.
var ErrIncomplete = errors.New("tree has unfilled holes")

// Layout selects how template whitespace is emitted.
type Layout int

const (
	// LayoutPretty keeps template line breaks and indentation:
	//
	//	SELECT a
	//	  FROM T
	//	 WHERE a = 3
	LayoutPretty Layout = iota

	// LayoutCompact collapses every whitespace run in template text to a
	// single space. Terminal lexemes are never altered.
	LayoutCompact
)

type options struct {
	layout Layout
}

// Option configures rendering.
type Option func(*options)

// Compact selects LayoutCompact.
func Compact() Option {
	return func(o *options) { o.layout = LayoutCompact }
}

// WithLayout selects a layout.
func WithLayout(l Layout) Option {
	return func(o *options) { o.layout = l }
}

// Render renders t, complete or not.
func Render(t *ast.Tree, opts ...Option) string {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	var b strings.Builder
	write(&b, t.Root(), o)
	return b.String()
}

// Query renders a complete tree as executable SQL.
func Query(t *ast.Tree, opts ...Option) (string, error) {
	if !t.IsComplete() {
		return "", ErrIncomplete
	}
	return Render(t, opts...), nil
}

func write(b *strings.Builder, n ast.Node, o options) {
	switch n := n.(type) {
	case *ast.Hole:
		b.WriteByte('<')
		b.WriteString(string(n.Sym))
		b.WriteByte('>')
	case *ast.Filled:
		terminal := len(n.Prod.RHS) == 0
		for _, seg := range n.Prod.Segments() {
			if seg.IsChild() {
				write(b, n.Children[seg.Child], o)
				continue
			}
			if o.layout == LayoutCompact && !terminal {
				b.WriteString(collapse(seg.Text))
				continue
			}
			b.WriteString(seg.Text)
		}
	}
}

// collapse replaces each run of whitespace with one space.
func collapse(s string) string {
	if !strings.ContainsAny(s, "\n\t ") {
		return s
	}
	var b strings.Builder
	space := false
	for _, r := range s {
		if r == ' ' || r == '\n' || r == '\t' || r == '\r' {
			space = true
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		b.WriteRune(r)
	}
	if space {
		b.WriteByte(' ')
	}
	return b.String()
}

// Production renders p's template with its children shown as <Symbol>,
// for listing a grammar.
func Production(p *grammar.Production) string {
	var b strings.Builder
	for _, seg := range p.Segments() {
		if seg.IsChild() {
			b.WriteByte('<')
			b.WriteString(string(p.RHS[seg.Child]))
			b.WriteByte('>')
			continue
		}
		b.WriteString(seg.Text)
	}
	return b.String()
}
