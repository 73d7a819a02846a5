package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/sqlsynth/internal/ir"
)

// marshalRelation converts a relation to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON so equal targets store identical text.
func marshalRelation(r ir.Relation) (string, error) {
	cols := make(ir.Array, len(r.Columns))
	for i, c := range r.Columns {
		cols[i] = ir.Object{"name": ir.Text(c.Name), "type": ir.Text(string(c.Type))}
	}
	rows := make(ir.Array, len(r.Rows))
	for i, row := range r.Rows {
		rows[i] = ir.Array(row)
	}
	obj := ir.Object{"columns": cols, "rows": rows}
	if r.Name != "" {
		obj["name"] = ir.Text(r.Name)
	}

	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("marshal relation: %w", err)
	}
	return string(data), nil
}

// storedRelation is the decoded shape of marshalRelation output.
type storedRelation struct {
	Name    string      `json:"name"`
	Columns []ir.Column `json:"columns"`
	Rows    [][]any     `json:"rows"`
}

// unmarshalRelation parses canonical JSON TEXT to a relation. Numbers are
// decoded via json.Number to avoid float64 precision loss for values > 2^53.
func unmarshalRelation(data string) (ir.Relation, error) {
	if data == "" {
		return ir.Relation{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()

	var sr storedRelation
	if err := dec.Decode(&sr); err != nil {
		return ir.Relation{}, fmt.Errorf("unmarshal relation: %w", err)
	}

	r := ir.Relation{Name: sr.Name, Columns: sr.Columns, Rows: make([][]ir.Value, len(sr.Rows))}
	for i, row := range sr.Rows {
		r.Rows[i] = make([]ir.Value, len(row))
		for j, cell := range row {
			v, err := ir.FromAny(cell)
			if err != nil {
				return ir.Relation{}, fmt.Errorf("unmarshal relation: row %d column %d: %w", i, j, err)
			}
			r.Rows[i][j] = v
		}
	}
	return r, nil
}
