package problem

import (
	"testing"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sqlsynth/internal/ir"
)

const studentsCUE = `
problem: cs_students: {
	description: "students in the CS department"
	input: {
		student: {
			columns: [{name: "id", type: "int"}, {name: "name"}, {name: "dept_id", type: "int"}]
			rows: [[1, "ann", 10], [2, "bob", 20], [3, "cy", null]]
		}
		department: {
			columns: [{name: "id"}, {name: "title", type: "text"}]
			rows: [[10, "CS"], [20, "EE"]]
		}
	}
	output: {
		columns: [{name: "name"}]
		rows: [["ann"]]
	}
	compare: "set"
	bounds: {max_complexity: 14, timeout: "5s"}
	weights: {left_join: 4}
}
`

func compileOne(t *testing.T, src, name string) (*Problem, error) {
	t.Helper()
	v := cuecontext.New().CompileString(src)
	require.NoError(t, v.Err())
	return Compile(v.LookupPath(cue.ParsePath("problem." + name)))
}

func TestCompile_Full(t *testing.T) {
	p, err := compileOne(t, studentsCUE, "cs_students")
	require.NoError(t, err)

	assert.Equal(t, "cs_students", p.Name)
	assert.Equal(t, "students in the CS department", p.Description)
	assert.Equal(t, ir.CompareSet, p.Compare)
	assert.Equal(t, 14, p.Bounds.MaxComplexity)
	assert.Equal(t, ir.Unlimited, p.Bounds.MaxDepth)
	assert.Equal(t, 5*time.Second, p.Bounds.Timeout)
	assert.True(t, p.HasBounds())
	assert.Equal(t, map[string]int{"left_join": 4}, p.Weights)

	require.Len(t, p.Example.Input.Tables, 2)
	dept, ok := p.Example.Input.Table("department")
	require.True(t, ok)
	assert.Equal(t, ir.TypeInt, dept.Columns[0].Type, "type inferred from data")

	student, ok := p.Example.Input.Table("student")
	require.True(t, ok)
	assert.Equal(t, ir.TypeText, student.Columns[1].Type)
	assert.Equal(t, ir.Null{}, student.Rows[2][2])

	assert.Equal(t, [][]ir.Value{{ir.Text("ann")}}, p.Example.Output.Rows)
}

func TestCompile_Defaults(t *testing.T) {
	p, err := compileOne(t, `
problem: minimal: {
	input: T: {columns: [{name: "a"}], rows: [[1]]}
	output: {columns: [{name: "a"}], rows: [[1]]}
}`, "minimal")
	require.NoError(t, err)

	assert.Empty(t, p.Compare)
	assert.False(t, p.HasBounds())
	assert.Nil(t, p.Weights)
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{
			name:  "unknown field",
			body:  `input: T: {columns: [{name: "a"}], rows: [[1]]}, output: {columns: [{name: "a"}], rows: []}, extra: 1`,
			field: "cue",
		},
		{
			name:  "float cell",
			body:  `input: T: {columns: [{name: "a"}], rows: [[1.5]]}, output: {columns: [{name: "a"}], rows: []}`,
			field: "cue",
		},
		{
			name:  "ragged row",
			body:  `input: T: {columns: [{name: "a"}, {name: "b"}], rows: [[1]]}, output: {columns: [{name: "a"}], rows: []}`,
			field: "input.T.rows",
		},
		{
			name:  "mixed column",
			body:  `input: T: {columns: [{name: "a"}], rows: [[1], ["x"]]}, output: {columns: [{name: "a"}], rows: []}`,
			field: "input.T",
		},
		{
			name:  "bad timeout",
			body:  `input: T: {columns: [{name: "a"}], rows: [[1]]}, output: {columns: [{name: "a"}], rows: []}, bounds: timeout: "soon"`,
			field: "bounds",
		},
		{
			name:  "no input",
			body:  `input: {}, output: {columns: [{name: "a"}], rows: []}`,
			field: "input",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileOne(t, "problem: p: {"+tt.body+"}", "p")
			require.Error(t, err)

			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field, ce.Error())
		})
	}
}

func TestCompileString_DeclarationOrder(t *testing.T) {
	ps, err := CompileString(`
problem: zeta: {
	input: T: {columns: [{name: "a"}], rows: [[1]]}
	output: {columns: [{name: "a"}], rows: [[1]]}
}
problem: alpha: {
	input: T: {columns: [{name: "a"}], rows: [[2]]}
	output: {columns: [{name: "a"}], rows: [[2]]}
}`)
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, "zeta", ps[0].Name)
	assert.Equal(t, "alpha", ps[1].Name)
}
