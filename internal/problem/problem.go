package problem

import (
	_ "embed"
	"fmt"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/sqlsynth/internal/ir"
)

//go:embed schema.cue
var schemaCUE string

// Problem is one compiled synthesis problem.
type Problem struct {
	Name        string
	Description string
	Example     ir.Example

	// Compare is empty when the file does not set it.
	Compare ir.Comparison
	// Bounds holds ir.Unlimited for every bound the file does not set.
	Bounds ir.Bounds
	// Weights override default production weights.
	Weights map[string]int

	Pos token.Pos
}

// HasBounds reports whether the problem sets any bound.
func (p Problem) HasBounds() bool {
	return p.Bounds.Bounded()
}

// problemSchema returns #Problem compiled in ctx. CUE values can only be
// unified within one runtime, so the definition is compiled per context.
func problemSchema(ctx *cue.Context) (cue.Value, error) {
	v := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := v.Err(); err != nil {
		return cue.Value{}, fmt.Errorf("compile problem schema: %w", err)
	}
	return v.LookupPath(cue.MakePath(cue.Def("#Problem"))), nil
}

// Compile parses a CUE value into a Problem. The value should be the
// problem struct itself, e.g. v.LookupPath(cue.ParsePath("problem.cs")).
func Compile(v cue.Value) (*Problem, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	schema, err := problemSchema(v.Context())
	if err != nil {
		return nil, err
	}
	u := v.Unify(schema)
	if err := u.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	p := &Problem{Bounds: ir.NoBounds(), Pos: v.Pos()}
	if sels := v.Path().Selectors(); len(sels) > 0 {
		p.Name = sels[len(sels)-1].String()
	}

	if d := u.LookupPath(cue.ParsePath("description")); d.Exists() {
		if p.Description, err = d.String(); err != nil {
			return nil, formatCUEError(err)
		}
	}

	tables, err := parseInput(u.LookupPath(cue.ParsePath("input")))
	if err != nil {
		return nil, err
	}
	output, err := parseRelation(u.LookupPath(cue.ParsePath("output")), "")
	if err != nil {
		return nil, err
	}
	p.Example = ir.Example{Input: ir.NewDatabase(tables...), Output: output}
	if err := p.Example.Validate(); err != nil {
		return nil, &CompileError{Field: "output", Message: err.Error(), Pos: v.Pos()}
	}

	if c := u.LookupPath(cue.ParsePath("compare")); c.Exists() {
		s, err := c.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		if p.Compare, err = ir.ParseComparison(s); err != nil {
			return nil, &CompileError{Field: "compare", Message: err.Error(), Pos: c.Pos()}
		}
	}

	if b := u.LookupPath(cue.ParsePath("bounds")); b.Exists() {
		if err := parseBounds(b, &p.Bounds); err != nil {
			return nil, err
		}
	}

	if w := u.LookupPath(cue.ParsePath("weights")); w.Exists() {
		if p.Weights, err = parseWeights(w); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// CompileString compiles every problem in a CUE source string, in
// declaration order.
func CompileString(src string) ([]Problem, error) {
	v := cuecontext.New().CompileString(src)
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	var out []Problem
	iter, err := v.LookupPath(cue.ParsePath("problem")).Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		p, err := Compile(iter.Value())
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

func parseInput(v cue.Value) ([]ir.Relation, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var tables []ir.Relation
	for iter.Next() {
		r, err := parseRelation(iter.Value(), iter.Label())
		if err != nil {
			return nil, err
		}
		tables = append(tables, r)
	}
	if len(tables) == 0 {
		return nil, &CompileError{Field: "input", Message: "at least one input table is required", Pos: v.Pos()}
	}
	return tables, nil
}

func parseRelation(v cue.Value, name string) (ir.Relation, error) {
	field := "output"
	if name != "" {
		field = "input." + name
	}
	r := ir.Relation{Name: name, Rows: [][]ir.Value{}}

	cols, err := v.LookupPath(cue.ParsePath("columns")).List()
	if err != nil {
		return r, formatCUEError(err)
	}
	for cols.Next() {
		cv := cols.Value()
		n, err := cv.LookupPath(cue.ParsePath("name")).String()
		if err != nil {
			return r, formatCUEError(err)
		}
		col := ir.Column{Name: n}
		if tv := cv.LookupPath(cue.ParsePath("type")); tv.Exists() {
			s, err := tv.String()
			if err != nil {
				return r, formatCUEError(err)
			}
			if col.Type, err = ir.ParseColumnType(s); err != nil {
				return r, &CompileError{Field: "type", Message: err.Error(), Pos: tv.Pos()}
			}
		}
		r.Columns = append(r.Columns, col)
	}

	rows, err := v.LookupPath(cue.ParsePath("rows")).List()
	if err != nil {
		return r, formatCUEError(err)
	}
	for i := 0; rows.Next(); i++ {
		cells, err := rows.Value().List()
		if err != nil {
			return r, formatCUEError(err)
		}
		var row []ir.Value
		for cells.Next() {
			val, err := parseCell(cells.Value())
			if err != nil {
				return r, err
			}
			row = append(row, val)
		}
		if len(row) != len(r.Columns) {
			return r, &CompileError{Field: field + ".rows",
				Message: fmt.Sprintf("row %d has %d values, want %d", i, len(row), len(r.Columns)),
				Pos:     rows.Value().Pos()}
		}
		r.Rows = append(r.Rows, row)
	}

	r.InferColumnTypes()
	if err := r.Validate(); err != nil {
		return r, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
	}
	return r, nil
}

func parseCell(v cue.Value) (ir.Value, error) {
	switch v.Kind() {
	case cue.NullKind:
		return ir.Null{}, nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, &CompileError{Field: "rows", Message: err.Error(), Pos: v.Pos()}
		}
		return ir.Int(n), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Text(s), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return ir.Bool(b), nil
	default:
		return nil, &CompileError{Field: "type",
			Message: fmt.Sprintf("unsupported cell kind %s (want int, string, bool or null)", v.Kind()),
			Pos:     v.Pos()}
	}
}

func parseBounds(v cue.Value, b *ir.Bounds) error {
	ints := []struct {
		name string
		dst  *int
	}{
		{"max_complexity", &b.MaxComplexity},
		{"max_depth", &b.MaxDepth},
		{"max_emitted", &b.MaxEmitted},
	}
	for _, f := range ints {
		fv := v.LookupPath(cue.ParsePath(f.name))
		if !fv.Exists() {
			continue
		}
		n, err := fv.Int64()
		if err != nil {
			return formatCUEError(err)
		}
		*f.dst = int(n)
	}
	if tv := v.LookupPath(cue.ParsePath("timeout")); tv.Exists() {
		s, err := tv.String()
		if err != nil {
			return formatCUEError(err)
		}
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			return &CompileError{Field: "bounds", Message: fmt.Sprintf("invalid timeout %q", s), Pos: tv.Pos()}
		}
		b.Timeout = d
	}
	return nil
}

func parseWeights(v cue.Value) (map[string]int, error) {
	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	w := make(map[string]int)
	for iter.Next() {
		n, err := iter.Value().Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		w[iter.Label()] = int(n)
	}
	return w, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
