package constraint

import (
	"fmt"

	"github.com/roach88/sqlsynth/internal/grammar"
	"github.com/roach88/sqlsynth/internal/ir"
)

// Witness holds the facts about one example that witness constraints are
// checked against. It is immutable after NewWitness.
type Witness struct {
	arity       int
	outputEmpty bool
	slotTypes   []grammar.Type
	slotValues  [][]string
	schema      map[string][]ir.Column
	columns     map[string]map[string]map[string]bool
}

// NewWitness indexes an example. Boolean cells are compared as 0/1, the
// way SQLite returns them.
func NewWitness(ex ir.Example) (*Witness, error) {
	w := &Witness{
		arity:       len(ex.Output.Columns),
		outputEmpty: len(ex.Output.Rows) == 0,
		schema:      make(map[string][]ir.Column, len(ex.Input.Tables)),
		columns:     make(map[string]map[string]map[string]bool, len(ex.Input.Tables)),
	}

	for _, t := range ex.Input.Tables {
		w.schema[t.Name] = t.Columns
		cols := make(map[string]map[string]bool, len(t.Columns))
		for j, c := range t.Columns {
			set := make(map[string]bool)
			for _, v := range t.ColumnValues(j) {
				k, err := valueKey(v)
				if err != nil {
					return nil, fmt.Errorf("table %s column %s: %w", t.Name, c.Name, err)
				}
				set[k] = true
			}
			cols[c.Name] = set
		}
		w.columns[t.Name] = cols
	}

	w.slotTypes = make([]grammar.Type, w.arity)
	w.slotValues = make([][]string, w.arity)
	for j := 0; j < w.arity; j++ {
		var mask grammar.Type
		seen := make(map[string]bool)
		for _, v := range ex.Output.ColumnValues(j) {
			mask |= grammar.TypeOfValue(v)
			k, err := valueKey(v)
			if err != nil {
				return nil, fmt.Errorf("output column %d: %w", j, err)
			}
			if !seen[k] {
				seen[k] = true
				w.slotValues[j] = append(w.slotValues[j], k)
			}
		}
		// SQLite has no boolean storage class: ints and bools are
		// indistinguishable in results.
		if mask&(grammar.TypeInt|grammar.TypeBool) != 0 {
			mask |= grammar.TypeInt | grammar.TypeBool
		}
		if mask == 0 {
			mask = grammar.TypeAny
		}
		w.slotTypes[j] = mask
	}
	return w, nil
}

// Arity is the number of output columns.
func (w *Witness) Arity() int {
	return w.arity
}

// OutputEmpty reports whether the target relation has no rows.
func (w *Witness) OutputEmpty() bool {
	return w.outputEmpty
}

// SlotType returns the type mask of 1-based output column slot.
func (w *Witness) SlotType(slot int) grammar.Type {
	if w == nil || slot < 1 || slot > w.arity {
		return grammar.TypeAny
	}
	return w.slotTypes[slot-1]
}

// Columns returns the schema of table.
func (w *Witness) Columns(table string) []ir.Column {
	return w.schema[table]
}

// Covers reports whether every non-null value of output slot appears in
// table.column. A projected bare column can only produce its own values.
func (w *Witness) Covers(table, column string, slot int) bool {
	if slot < 1 || slot > w.arity {
		return true
	}
	set, ok := w.columns[table][column]
	if !ok {
		return true
	}
	for _, k := range w.slotValues[slot-1] {
		if !set[k] {
			return false
		}
	}
	return true
}

// Contains reports whether v occurs in table.column.
func (w *Witness) Contains(table, column string, v ir.Value) bool {
	set, ok := w.columns[table][column]
	if !ok {
		return true
	}
	k, err := valueKey(v)
	if err != nil {
		return true
	}
	return set[k]
}

func valueKey(v ir.Value) (string, error) {
	if b, ok := v.(ir.Bool); ok {
		if b {
			v = ir.Int(1)
		} else {
			v = ir.Int(0)
		}
	}
	k, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", err
	}
	return string(k), nil
}
