package eval

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sqlsynth/internal/ast"
	"github.com/roach88/sqlsynth/internal/constraint"
	"github.com/roach88/sqlsynth/internal/grammar"
	"github.com/roach88/sqlsynth/internal/ir"
)

func people() ir.Relation {
	return ir.Relation{
		Name: "people",
		Columns: []ir.Column{
			{Name: "id", Type: ir.TypeInt},
			{Name: "name", Type: ir.TypeText},
			{Name: "active", Type: ir.TypeBool},
		},
		Rows: [][]ir.Value{
			{ir.Int(1), ir.Text("ann"), ir.Bool(true)},
			{ir.Int(2), ir.Text("o'brien"), ir.Bool(false)},
			{ir.Int(3), ir.Null{}, ir.Bool(true)},
		},
	}
}

func openPeople(t *testing.T, opts ...Option) *Evaluator {
	t.Helper()
	ev, err := Open(context.Background(), ir.NewDatabase(people()), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { ev.Close() })
	return ev
}

func TestQuery_ConvertsValues(t *testing.T) {
	ev := openPeople(t)

	rel, err := ev.Query(context.Background(), "SELECT id, name, active FROM people ORDER BY id")
	require.NoError(t, err)

	assert.Equal(t, []ir.Column{
		{Name: "id", Type: ir.TypeInt},
		{Name: "name", Type: ir.TypeText},
		{Name: "active", Type: ir.TypeInt},
	}, rel.Columns)
	assert.Equal(t, [][]ir.Value{
		{ir.Int(1), ir.Text("ann"), ir.Int(1)},
		{ir.Int(2), ir.Text("o'brien"), ir.Int(0)},
		{ir.Int(3), ir.Null{}, ir.Int(1)},
	}, rel.Rows)
}

func TestQuery_EmptyResult(t *testing.T) {
	ev := openPeople(t)

	rel, err := ev.Query(context.Background(), "SELECT id FROM people WHERE id > 10")
	require.NoError(t, err)
	assert.Len(t, rel.Columns, 1)
	assert.Empty(t, rel.Rows)
}

func TestQuery_Reals(t *testing.T) {
	ev := openPeople(t)

	rel, err := ev.Query(context.Background(), "SELECT 2.0")
	require.NoError(t, err)
	assert.Equal(t, [][]ir.Value{{ir.Int(2)}}, rel.Rows)

	_, err = ev.Query(context.Background(), "SELECT 1.5")
	require.Error(t, err)
	assert.True(t, IsEvalError(err))
}

func TestQuery_SyntaxErrorIsEvalError(t *testing.T) {
	ev := openPeople(t)

	_, err := ev.Query(context.Background(), "SELECT FROM WHERE")
	require.Error(t, err)

	var ee *EvalError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "SELECT FROM WHERE", ee.SQL)
}

func TestQuery_Timeout(t *testing.T) {
	ev := openPeople(t, WithTimeout(50*time.Millisecond))

	_, err := ev.Query(context.Background(),
		"WITH RECURSIVE n(x) AS (SELECT 1 UNION ALL SELECT x + 1 FROM n) SELECT count(*) FROM n")
	require.Error(t, err)
	assert.True(t, IsEvalError(err))
}

func TestQuery_Concurrent(t *testing.T) {
	ev := openPeople(t, WithConnections(4))

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rel, err := ev.Query(context.Background(), "SELECT name FROM people WHERE active = 1")
			if err == nil && len(rel.Rows) != 2 {
				err = assert.AnError
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestOpen_Isolated(t *testing.T) {
	a := openPeople(t)
	other := people()
	other.Rows = other.Rows[:1]
	b, err := Open(context.Background(), ir.NewDatabase(other))
	require.NoError(t, err)
	defer b.Close()

	ra, err := a.Query(context.Background(), "SELECT id FROM people")
	require.NoError(t, err)
	rb, err := b.Query(context.Background(), "SELECT id FROM people")
	require.NoError(t, err)

	assert.Len(t, ra.Rows, 3)
	assert.Len(t, rb.Rows, 1)
}

func TestOpen_InvalidDatabase(t *testing.T) {
	bad := people()
	bad.Rows = append(bad.Rows, []ir.Value{ir.Int(4)})

	_, err := Open(context.Background(), ir.NewDatabase(bad))
	assert.Error(t, err)
}

func TestClose_Idempotent(t *testing.T) {
	ev, err := Open(context.Background(), ir.NewDatabase(people()))
	require.NoError(t, err)
	require.NoError(t, ev.Close())
	assert.NoError(t, ev.Close())
}

func TestEvaluate_Tree(t *testing.T) {
	in := people()
	ex := ir.Example{Input: ir.NewDatabase(in), Output: in}
	g, err := grammar.SQL(ex, grammar.SQLOptions{})
	require.NoError(t, err)
	m := constraint.NewModel(nil)

	tree := ast.New(g, m.Root())
	for _, name := range []string{"query_select", "select_item", "expr_column", "column:people.name", "from_table", "table:people"} {
		var prod *grammar.Production
		for _, p := range g.ProductionsFor(tree.Hole(0).Sym) {
			if p.Name == name {
				prod = p
			}
		}
		require.NotNil(t, prod, name)
		tree, err = tree.Apply(m, 0, prod)
		require.NoError(t, err)
	}

	ev := openPeople(t)
	rel, err := ev.Evaluate(context.Background(), tree)
	require.NoError(t, err)

	ok, err := ir.Equal(rel, ir.Relation{
		Columns: []ir.Column{{Name: "name", Type: ir.TypeText}},
		Rows:    [][]ir.Value{{ir.Text("ann")}, {ir.Text("o'brien")}, {ir.Null{}}},
	}, ir.CompareBag)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluate_IncompleteTree(t *testing.T) {
	in := people()
	g, err := grammar.SQL(ir.Example{Input: ir.NewDatabase(in), Output: in}, grammar.SQLOptions{})
	require.NoError(t, err)

	ev := openPeople(t)
	_, err = ev.Evaluate(context.Background(), ast.New(g, constraint.Set{}))
	assert.True(t, IsEvalError(err))
}

func TestConvert_IntegralReals(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want ir.Value
	}{
		{"integral", 2.0, ir.Int(2)},
		{"negative", -7.0, ir.Int(-7)},
		{"min int64", math.MinInt64, ir.Int(math.MinInt64)},
		{"fraction", 1.5, nil},
		{"two to the 63", 1 << 63, nil},
		{"beyond int64", 1e19, nil},
		{"below int64", -1e19, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := convert(tt.in)
			if tt.want == nil {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestQuery_QuotedIdentifiers(t *testing.T) {
	in := ir.Relation{
		Name:    "order",
		Columns: []ir.Column{{Name: "group", Type: ir.TypeInt}, {Name: "unit price", Type: ir.TypeInt}},
		Rows:    [][]ir.Value{{ir.Int(1), ir.Int(10)}},
	}
	ev, err := Open(context.Background(), ir.NewDatabase(in))
	require.NoError(t, err)
	t.Cleanup(func() { ev.Close() })

	rel, err := ev.Query(context.Background(), `SELECT "group", "unit price" FROM "order"`)
	require.NoError(t, err)
	assert.Equal(t, [][]ir.Value{{ir.Int(1), ir.Int(10)}}, rel.Rows)
}
