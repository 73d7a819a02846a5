package ir

import (
	"fmt"
	"slices"
)

// Equal compares two relations under mode.
//
// Semantics:
//   - column count and order matter, column names do not
//   - NULL equals NULL
//   - row order matters only for CompareOrdered
//   - duplicates matter for CompareBag and CompareOrdered
func Equal(a, b Relation, mode Comparison) (bool, error) {
	if len(a.Columns) != len(b.Columns) {
		return false, nil
	}
	if mode != CompareSet && len(a.Rows) != len(b.Rows) {
		return false, nil
	}
	ka, err := rowKeys(a, mode)
	if err != nil {
		return false, fmt.Errorf("left: %w", err)
	}
	kb, err := rowKeys(b, mode)
	if err != nil {
		return false, fmt.Errorf("right: %w", err)
	}
	return slices.Equal(ka, kb), nil
}

// DistinctValues returns the distinct non-null scalars of vals in Compare
// order.
func DistinctValues(vals []Value) []Value {
	out := make([]Value, 0, len(vals))
	for _, v := range vals {
		if !IsNull(v) {
			out = append(out, v)
		}
	}
	slices.SortFunc(out, Compare)
	return slices.CompactFunc(out, func(a, b Value) bool { return Compare(a, b) == 0 })
}

// NormalizeBools returns a copy of r with Bool cells replaced by 0/1 Ints,
// matching how SQLite returns boolean results.
func NormalizeBools(r Relation) Relation {
	out := Relation{Name: r.Name, Columns: slices.Clone(r.Columns), Rows: make([][]Value, len(r.Rows))}
	for i, row := range r.Rows {
		nr := make([]Value, len(row))
		for j, v := range row {
			if b, ok := v.(Bool); ok {
				if b {
					nr[j] = Int(1)
				} else {
					nr[j] = Int(0)
				}
				continue
			}
			nr[j] = v
		}
		out.Rows[i] = nr
	}
	return out
}
