package grammar

import (
	"fmt"
	"math"
	"slices"
)

// Grammar is a validated, immutable CFG. Safe for concurrent use.
type Grammar struct {
	start      Symbol
	prods      []*Production
	bySym      map[Symbol][]*Production
	symbols    []Symbol
	minCost    map[Symbol]int
	bindsScope map[Symbol]bool
}

// Start returns the start symbol.
func (g *Grammar) Start() Symbol {
	return g.start
}

// Symbols returns every nonterminal in declaration order.
func (g *Grammar) Symbols() []Symbol {
	return slices.Clone(g.symbols)
}

// Productions returns every production in declaration order.
func (g *Grammar) Productions() []*Production {
	return slices.Clone(g.prods)
}

// Production returns the production with the given ID.
func (g *Grammar) Production(id int) *Production {
	return g.prods[id]
}

// ProductionsFor returns the productions of sym in declaration order.
// The returned slice must not be modified.
func (g *Grammar) ProductionsFor(sym Symbol) []*Production {
	return g.bySym[sym]
}

// WeightOf returns the complexity contributed by p.
func (g *Grammar) WeightOf(p *Production) int {
	return p.Weight
}

// MinCost returns the least total weight of any complete derivation of
// sym. It is a lower bound on what filling a hole of sym will add to a
// tree's complexity.
func (g *Grammar) MinCost(sym Symbol) int {
	return g.minCost[sym]
}

// BindsScope reports whether a derivation of sym can bind a table into the
// query scope.
func (g *Grammar) BindsScope(sym Symbol) bool {
	return g.bindsScope[sym]
}

// Builder accumulates productions. Build validates them once.
type Builder struct {
	start    Symbol
	prods    []Production
	declared []Symbol
	weights  map[string]int
}

// NewBuilder starts a grammar with the given start symbol.
func NewBuilder(start Symbol) *Builder {
	return &Builder{start: start}
}

// Declare defines a nonterminal without adding productions. A declared
// symbol with no productions is rejected by Build.
func (b *Builder) Declare(sym Symbol) *Builder {
	b.declared = append(b.declared, sym)
	return b
}

// Add appends a production. Order is significant: it is the order
// ProductionsFor returns and the enumerator expands in.
func (b *Builder) Add(p Production) *Builder {
	b.prods = append(b.prods, p)
	return b
}

// Weights overrides production weights. Keys are matched against the
// production Name first, then against its Kind name ("column",
// "literal", ...).
func (b *Builder) Weights(w map[string]int) *Builder {
	if b.weights == nil {
		b.weights = make(map[string]int, len(w))
	}
	for k, v := range w {
		b.weights[k] = v
	}
	return b
}

// Build validates the grammar and computes its derived tables.
func (b *Builder) Build() (*Grammar, error) {
	g := &Grammar{
		start:      b.start,
		bySym:      make(map[Symbol][]*Production),
		minCost:    make(map[Symbol]int),
		bindsScope: make(map[Symbol]bool),
	}

	var errs []error
	defined := make(map[Symbol]bool)
	define := func(s Symbol) {
		if !defined[s] {
			defined[s] = true
			g.symbols = append(g.symbols, s)
		}
	}
	for _, s := range b.declared {
		define(s)
	}

	seen := make(map[string]bool)
	for i := range b.prods {
		p := b.prods[i]
		p.ID = len(g.prods)
		p.RHS = slices.Clone(p.RHS)
		p.Roles = slices.Clone(p.Roles)
		p.Args = slices.Clone(p.Args)

		key := string(p.LHS) + "\x00" + p.Name
		if seen[key] {
			errs = append(errs, &GrammarError{Code: ErrCodeDuplicateProduction, Production: p.Name,
				Message: fmt.Sprintf("defined twice for %s", p.LHS)})
			continue
		}
		seen[key] = true

		if w, ok := b.weights[p.Name]; ok {
			p.Weight = w
		} else if w, ok := b.weights[p.Kind.String()]; ok {
			p.Weight = w
		}
		if err := validateProduction(&p); err != nil {
			errs = append(errs, err)
			continue
		}

		define(p.LHS)
		pp := &p
		g.prods = append(g.prods, pp)
		g.bySym[p.LHS] = append(g.bySym[p.LHS], pp)
	}

	if !defined[g.start] {
		errs = append(errs, &GrammarError{Code: ErrCodeNoStart, Symbol: g.start,
			Message: "start symbol has no productions"})
		return nil, joinErrors(errs)
	}

	for _, p := range g.prods {
		for _, s := range p.RHS {
			if !defined[s] {
				errs = append(errs, &GrammarError{Code: ErrCodeUndefinedSymbol, Symbol: s, Production: p.Name,
					Message: fmt.Sprintf("references undefined nonterminal %s", s)})
			}
		}
	}
	for _, s := range g.symbols {
		if len(g.bySym[s]) == 0 {
			errs = append(errs, &GrammarError{Code: ErrCodeEmptySymbol, Symbol: s,
				Message: "nonterminal has no productions"})
		}
	}
	if len(errs) > 0 {
		return nil, joinErrors(errs)
	}

	g.computeMinCost()
	for _, s := range g.reachable() {
		if _, ok := g.minCost[s]; !ok {
			errs = append(errs, &GrammarError{Code: ErrCodeUnproductiveSymbol, Symbol: s,
				Message: "no derivation of this symbol terminates"})
		}
	}
	if len(errs) > 0 {
		return nil, joinErrors(errs)
	}
	if err := g.checkZeroWeightCycles(); err != nil {
		return nil, err
	}
	g.computeBindsScope()
	return g, nil
}

func validateProduction(p *Production) error {
	if p.Name == "" {
		return &GrammarError{Code: ErrCodeMissingName, Symbol: p.LHS, Message: "production has no name"}
	}
	if p.Weight < 0 {
		return &GrammarError{Code: ErrCodeNegativeWeight, Production: p.Name,
			Message: fmt.Sprintf("weight %d is negative", p.Weight)}
	}
	if p.Kind.Terminal() && len(p.RHS) > 0 {
		return &GrammarError{Code: ErrCodeBadTypeRule, Production: p.Name,
			Message: fmt.Sprintf("%s productions cannot have children", p.Kind)}
	}
	if len(p.Roles) > 0 && len(p.Roles) != len(p.RHS) {
		return &GrammarError{Code: ErrCodeBadTypeRule, Production: p.Name,
			Message: fmt.Sprintf("%d roles for %d children", len(p.Roles), len(p.RHS))}
	}
	if len(p.Args) > 0 && len(p.Args) != len(p.RHS) {
		return &GrammarError{Code: ErrCodeBadTypeRule, Production: p.Name,
			Message: fmt.Sprintf("%d argument types for %d children", len(p.Args), len(p.RHS))}
	}
	for i, a := range p.Args {
		if a.SameAs < 0 || a.SameAs > i {
			return &GrammarError{Code: ErrCodeBadTypeRule, Production: p.Name,
				Message: fmt.Sprintf("child %d: SameAs %d must name an earlier sibling", i, a.SameAs)}
		}
	}
	if p.Inherit < 0 || p.Inherit > len(p.RHS) {
		return &GrammarError{Code: ErrCodeBadTypeRule, Production: p.Name,
			Message: fmt.Sprintf("Inherit %d out of range", p.Inherit)}
	}
	switch p.Kind {
	case KindColumn:
		if p.Table == "" || p.Column == "" {
			return &GrammarError{Code: ErrCodeBadTypeRule, Production: p.Name, Message: "column production needs Table and Column"}
		}
	case KindTable:
		if p.Table == "" {
			return &GrammarError{Code: ErrCodeBadTypeRule, Production: p.Name, Message: "table production needs Table"}
		}
	case KindLiteral:
		if p.Value == nil {
			return &GrammarError{Code: ErrCodeBadTypeRule, Production: p.Name, Message: "literal production needs Value"}
		}
	case KindCompare:
		if len(p.RHS) != 2 {
			return &GrammarError{Code: ErrCodeBadTypeRule, Production: p.Name, Message: "comparison needs two children"}
		}
	case KindProjectCons:
		if len(p.RHS) != 2 {
			return &GrammarError{Code: ErrCodeBadTypeRule, Production: p.Name, Message: "select-list cons needs an item and a tail"}
		}
	case KindProjectItem, KindAggregate:
		if len(p.RHS) > 1 {
			return &GrammarError{Code: ErrCodeBadTypeRule, Production: p.Name,
				Message: fmt.Sprintf("%s takes at most one child", p.Kind)}
		}
	}
	segs, err := parseTemplate(p.Template, len(p.RHS))
	if err != nil {
		return &GrammarError{Code: ErrCodeBadTemplate, Production: p.Name, Message: err.Error()}
	}
	p.segments = segs
	return nil
}

// computeMinCost runs the fixpoint cost(A) = min over A -> w B1..Bn of
// w + cost(B1) + ... + cost(Bn). Symbols left without a cost are
// unproductive.
func (g *Grammar) computeMinCost() {
	for changed := true; changed; {
		changed = false
		for _, p := range g.prods {
			total := p.Weight
			ok := true
			for _, s := range p.RHS {
				c, found := g.minCost[s]
				if !found {
					ok = false
					break
				}
				if total > math.MaxInt-c {
					total = math.MaxInt
				} else {
					total += c
				}
			}
			if !ok {
				continue
			}
			if cur, found := g.minCost[p.LHS]; !found || total < cur {
				g.minCost[p.LHS] = total
				changed = true
			}
		}
	}
}

// reachable returns the symbols reachable from the start symbol, in
// breadth-first order.
func (g *Grammar) reachable() []Symbol {
	seen := map[Symbol]bool{g.start: true}
	queue := []Symbol{g.start}
	for i := 0; i < len(queue); i++ {
		for _, p := range g.bySym[queue[i]] {
			for _, s := range p.RHS {
				if !seen[s] {
					seen[s] = true
					queue = append(queue, s)
				}
			}
		}
	}
	return queue
}

// checkZeroWeightCycles rejects grammars in which a symbol can re-derive
// itself at zero cost. Such a grammar has infinitely many trees of the
// same complexity, so enumeration would never advance past it.
func (g *Grammar) checkZeroWeightCycles() error {
	edges := make(map[Symbol][]Symbol)
	for _, p := range g.prods {
		if p.Weight != 0 {
			continue
		}
		for i, s := range p.RHS {
			free := true
			for j, o := range p.RHS {
				if j != i && g.minCost[o] != 0 {
					free = false
					break
				}
			}
			if free {
				edges[p.LHS] = append(edges[p.LHS], s)
			}
		}
	}

	const (
		unvisited = iota
		active
		done
	)
	state := make(map[Symbol]int)
	var visit func(Symbol) Symbol
	visit = func(s Symbol) Symbol {
		state[s] = active
		for _, next := range edges[s] {
			switch state[next] {
			case active:
				return next
			case unvisited:
				if c := visit(next); c != "" {
					return c
				}
			}
		}
		state[s] = done
		return ""
	}
	for _, s := range g.symbols {
		if state[s] == unvisited {
			if c := visit(s); c != "" {
				return &GrammarError{Code: ErrCodeZeroWeightCycle, Symbol: c,
					Message: "symbol can derive itself at zero cost"}
			}
		}
	}
	return nil
}

func (g *Grammar) computeBindsScope() {
	for changed := true; changed; {
		changed = false
		for _, p := range g.prods {
			if g.bindsScope[p.LHS] {
				continue
			}
			binds := p.Kind == KindTable
			for _, s := range p.RHS {
				if g.bindsScope[s] {
					binds = true
					break
				}
			}
			if binds {
				g.bindsScope[p.LHS] = true
				changed = true
			}
		}
	}
}
