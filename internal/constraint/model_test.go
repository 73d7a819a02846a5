package constraint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sqlsynth/internal/grammar"
	"github.com/roach88/sqlsynth/internal/ir"
)

// fakeContext is a hand-built hole context.
type fakeContext struct {
	refType   grammar.Type
	refTable  string
	refColumn string
	scope     []string
	closed    bool
}

func (c fakeContext) RefType(Ref) grammar.Type {
	if c.refType == 0 {
		return grammar.TypeAny
	}
	return c.refType
}

func (c fakeContext) RefColumn(Ref) (string, string, bool) {
	return c.refTable, c.refColumn, c.refTable != ""
}

func (c fakeContext) Scope() []string   { return c.scope }
func (c fakeContext) ScopeClosed() bool { return c.closed }

func example() ir.Example {
	t := ir.Relation{
		Name:    "T",
		Columns: []ir.Column{{Name: "a", Type: ir.TypeInt}, {Name: "b", Type: ir.TypeInt}, {Name: "s", Type: ir.TypeText}},
		Rows: [][]ir.Value{
			{ir.Int(1), ir.Int(2), ir.Text("x")},
			{ir.Int(3), ir.Int(4), ir.Text("y")},
		},
	}
	out := ir.Relation{
		Columns: []ir.Column{{Name: "a", Type: ir.TypeInt}},
		Rows:    [][]ir.Value{{ir.Int(3)}},
	}
	return ir.Example{Input: ir.NewDatabase(t), Output: out}
}

func sqlGrammar(t *testing.T, ex ir.Example) *grammar.Grammar {
	t.Helper()
	g, err := grammar.SQL(ex, grammar.SQLOptions{})
	require.NoError(t, err)
	return g
}

func prod(t *testing.T, g *grammar.Grammar, sym grammar.Symbol, name string) *grammar.Production {
	t.Helper()
	for _, p := range g.ProductionsFor(sym) {
		if p.Name == name {
			return p
		}
	}
	t.Fatalf("no production %s for %s", name, sym)
	return nil
}

func witnessModel(t *testing.T, ex ir.Example) *Model {
	t.Helper()
	w, err := NewWitness(ex)
	require.NoError(t, err)
	return NewModel(w)
}

func TestDeriveProjection(t *testing.T) {
	ex := example()
	g := sqlGrammar(t, ex)
	m := witnessModel(t, ex)

	q := prod(t, g, grammar.SymQuery, "query_where")
	list, err := m.Derive(m.Root(), q, 0)
	require.NoError(t, err)
	assert.Equal(t, Set{NoAggregate: true, Slot: 1, Arity: 1}, list)

	where, err := m.Derive(m.Root(), q, 2)
	require.NoError(t, err)
	assert.Equal(t, Set{NoAggregate: true, Conjunctive: true}, where)

	grouped, err := m.Derive(m.Root(), prod(t, g, grammar.SymQuery, "query_group"), 0)
	require.NoError(t, err)
	assert.False(t, grouped.NoAggregate)
}

func TestDeriveSelectListCons(t *testing.T) {
	ex := example()
	ex.Output = ir.Relation{
		Columns: []ir.Column{{Name: "a", Type: ir.TypeInt}, {Name: "s", Type: ir.TypeText}},
		Rows:    [][]ir.Value{{ir.Int(3), ir.Text("y")}},
	}
	g := sqlGrammar(t, ex)
	m := witnessModel(t, ex)

	list := Set{NoAggregate: true, Slot: 1, Arity: 2}
	cons := prod(t, g, grammar.SymSelectList, "select_items")

	head, err := m.Derive(list, cons, 0)
	require.NoError(t, err)
	assert.Equal(t, Set{NoAggregate: true, Slot: 1, Type: grammar.TypeInt | grammar.TypeBool}, head)

	tail, err := m.Derive(list, cons, 1)
	require.NoError(t, err)
	assert.Equal(t, Set{NoAggregate: true, Slot: 2, Arity: 1}, tail)

	item := prod(t, g, grammar.SymSelectList, "select_item")
	last, err := m.Derive(tail, item, 0)
	require.NoError(t, err)
	assert.Equal(t, grammar.TypeText, last.Type)

	_, err = m.Derive(list, item, 0)
	assert.True(t, IsDerivationError(err), "closing a list that needs two items is a defect")

	_, err = m.Derive(tail, cons, 0)
	assert.True(t, IsDerivationError(err))

	_, err = m.Derive(list, cons, 5)
	assert.True(t, IsDerivationError(err))
}

func TestDerivePassThroughLiftsRefs(t *testing.T) {
	ex := example()
	g := sqlGrammar(t, ex)
	m := witnessModel(t, ex)

	eq := prod(t, g, grammar.SymPredicate, "eq")
	operand, err := m.Derive(Set{NoAggregate: true, Conjunctive: true}, eq, 1)
	require.NoError(t, err)
	assert.Equal(t, Ref{Up: 1, Child: 0}, operand.SameAs)
	assert.Equal(t, Ref{Up: 1, Child: 0}, operand.MatchValues)

	lit, err := m.Derive(operand, prod(t, g, grammar.SymOperand, "operand_literal"), 0)
	require.NoError(t, err)
	assert.Equal(t, Ref{Up: 2, Child: 0}, lit.SameAs)
	assert.Equal(t, Ref{Up: 2, Child: 0}, lit.MatchValues)

	// OR breaks conjunctivity, so no value matching below it.
	or := prod(t, g, grammar.SymPredicate, "or")
	disj, err := m.Derive(Set{NoAggregate: true, Conjunctive: true}, or, 0)
	require.NoError(t, err)
	assert.False(t, disj.Conjunctive)
	operand, err = m.Derive(disj, eq, 1)
	require.NoError(t, err)
	assert.False(t, operand.MatchValues.Valid())
}

func TestDeriveNeverRelaxesNoAggregate(t *testing.T) {
	ex := example()
	g := sqlGrammar(t, ex)
	m := witnessModel(t, ex)

	for _, p := range g.Productions() {
		for i := range p.RHS {
			child, err := m.Derive(Set{NoAggregate: true}, p, i)
			if err != nil {
				continue
			}
			if p.Role(i) == grammar.RoleGroupedProjection {
				continue
			}
			assert.True(t, child.NoAggregate, "%s child %d", p.Name, i)
		}
	}
}

func TestSatisfiableAggregates(t *testing.T) {
	ex := example()
	g := sqlGrammar(t, ex)
	m := NewModel(nil)
	ctx := fakeContext{scope: []string{"T"}, closed: true}

	count := prod(t, g, grammar.SymExpr, "count_star")
	assert.False(t, m.Satisfiable(ctx, Set{NoAggregate: true}, count))
	assert.True(t, m.Satisfiable(ctx, Set{}, count))
	assert.False(t, m.Satisfiable(ctx, Set{Type: grammar.TypeText}, count), "COUNT is an int")
}

func TestSatisfiableTyping(t *testing.T) {
	ex := example()
	g := sqlGrammar(t, ex)
	m := NewModel(nil)

	a := prod(t, g, grammar.SymColumnRef, "column:T.a")
	s := prod(t, g, grammar.SymColumnRef, "column:T.s")
	ctx := fakeContext{scope: []string{"T"}, closed: true}

	assert.True(t, m.Satisfiable(ctx, Set{Type: grammar.TypeInt}, a))
	assert.False(t, m.Satisfiable(ctx, Set{Type: grammar.TypeInt}, s))

	ref := Set{SameAs: Ref{Up: 1, Child: 0}}
	ctx.refType = grammar.TypeText
	assert.True(t, m.Satisfiable(ctx, ref, s))
	assert.False(t, m.Satisfiable(ctx, ref, a))

	sum := prod(t, g, grammar.SymExpr, "sum")
	child, err := m.Derive(Set{}, sum, 0)
	require.NoError(t, err)
	assert.False(t, m.Satisfiable(ctx, child, s), "SUM over text")
}

func TestSatisfiableScope(t *testing.T) {
	ex := example()
	ex.Input = ir.NewDatabase(ex.Input.Tables[0], ir.Relation{
		Name: "U", Columns: []ir.Column{{Name: "a", Type: ir.TypeInt}},
	})
	g := sqlGrammar(t, ex)
	m := NewModel(nil)

	tableT := prod(t, g, grammar.SymTableRef, "table:T")
	assert.False(t, m.Satisfiable(fakeContext{scope: []string{"T"}}, Set{}, tableT), "no self-join")
	assert.True(t, m.Satisfiable(fakeContext{scope: []string{"U"}}, Set{}, tableT))

	ua := prod(t, g, grammar.SymColumnRef, "column:U.a")
	assert.False(t, m.Satisfiable(fakeContext{scope: []string{"T"}, closed: true}, Set{}, ua))
	assert.True(t, m.Satisfiable(fakeContext{scope: []string{"T"}, closed: false}, Set{}, ua),
		"an open scope may still bind U")
}

func TestSatisfiableWitnessColumns(t *testing.T) {
	ex := example()
	g := sqlGrammar(t, ex)
	m := witnessModel(t, ex)
	ctx := fakeContext{scope: []string{"T"}, closed: true}

	a := prod(t, g, grammar.SymColumnRef, "column:T.a")
	b := prod(t, g, grammar.SymColumnRef, "column:T.b")

	projected := Set{Slot: 1}
	assert.True(t, m.Satisfiable(ctx, projected, a), "3 is a value of a")
	assert.False(t, m.Satisfiable(ctx, projected, b), "3 is not a value of b")

	// Same column outside the projection is unconstrained.
	assert.True(t, m.Satisfiable(ctx, Set{}, b))
	// The control model never prunes on data.
	assert.True(t, NewModel(nil).Satisfiable(ctx, projected, b))
}

func TestSatisfiableWitnessLiterals(t *testing.T) {
	ex := example()
	g := sqlGrammar(t, ex)
	m := witnessModel(t, ex)

	one := prod(t, g, grammar.SymLiteral, "literal:1")
	two := prod(t, g, grammar.SymLiteral, "literal:2")
	match := Set{MatchValues: Ref{Up: 2, Child: 0}, SameAs: Ref{Up: 2, Child: 0}}

	ctx := fakeContext{refType: grammar.TypeInt, refTable: "T", refColumn: "a"}
	assert.True(t, m.Satisfiable(ctx, match, one))
	assert.False(t, m.Satisfiable(ctx, match, two), "a = 2 selects no rows")

	// Column not chosen yet: conservative.
	assert.True(t, m.Satisfiable(fakeContext{}, match, two))
}

func TestSatisfiableSelectListArity(t *testing.T) {
	ex := example()
	g := sqlGrammar(t, ex)
	m := witnessModel(t, ex)

	item := prod(t, g, grammar.SymSelectList, "select_item")
	cons := prod(t, g, grammar.SymSelectList, "select_items")
	star := prod(t, g, grammar.SymSelectList, "select_star")

	one := Set{Slot: 1, Arity: 1}
	ctx := fakeContext{scope: []string{"T"}, closed: true}
	assert.True(t, m.Satisfiable(ctx, one, item))
	assert.False(t, m.Satisfiable(ctx, one, cons))
	assert.False(t, m.Satisfiable(ctx, one, star), "T has three columns")
	assert.True(t, m.Satisfiable(fakeContext{}, one, star), "open scope is conservative")

	three := Set{Slot: 1, Arity: 3}
	assert.False(t, m.Satisfiable(ctx, three, item))
	assert.True(t, m.Satisfiable(ctx, three, cons))
}

func TestVerify(t *testing.T) {
	ex := example()
	g := sqlGrammar(t, ex)
	m := NewModel(nil)

	a := prod(t, g, grammar.SymColumnRef, "column:T.a")
	eq := prod(t, g, grammar.SymPredicate, "eq")

	require.NoError(t, m.Verify([]string{"T"}, []Checked{{Prod: a}}))
	assert.ErrorIs(t, m.Verify([]string{"U"}, []Checked{{Prod: a}}), ErrInvalidTree)
	assert.ErrorIs(t, m.Verify([]string{"T", "T"}, nil), ErrInvalidTree)

	ok := Checked{Prod: eq, ChildTypes: []grammar.Type{grammar.TypeInt, grammar.TypeInt}}
	bad := Checked{Prod: eq, ChildTypes: []grammar.Type{grammar.TypeInt, grammar.TypeText}}
	assert.NoError(t, m.Verify([]string{"T"}, []Checked{ok}))
	assert.ErrorIs(t, m.Verify([]string{"T"}, []Checked{bad}), ErrInvalidTree)
}

func TestWitness(t *testing.T) {
	ex := example()
	ex.Output = ir.Relation{
		Columns: []ir.Column{{Name: "f", Type: ir.TypeBool}, {Name: "n", Type: ir.TypeText}},
		Rows:    [][]ir.Value{{ir.Bool(true), ir.Null{}}},
	}
	w, err := NewWitness(ex)
	require.NoError(t, err)

	assert.Equal(t, 2, w.Arity())
	assert.False(t, w.OutputEmpty())
	assert.Equal(t, grammar.TypeInt|grammar.TypeBool, w.SlotType(1))
	assert.Equal(t, grammar.TypeAny, w.SlotType(2), "all-null column constrains nothing")
	assert.Equal(t, grammar.TypeAny, w.SlotType(3))
	assert.True(t, w.Contains("T", "a", ir.Int(3)))
	assert.False(t, w.Contains("T", "a", ir.Int(5)))
	assert.True(t, w.Covers("T", "a", 2))
}

func TestSetString(t *testing.T) {
	assert.Equal(t, "{}", Set{}.String())
	assert.True(t, Set{}.Empty())
	assert.Equal(t, "{no_agg arity=2 slot=1}", Set{NoAggregate: true, Slot: 1, Arity: 2}.String())
}
