package ir

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// ColumnType is the declared type of a relation column.
type ColumnType string

const (
	TypeInt  ColumnType = "int"
	TypeText ColumnType = "text"
	TypeBool ColumnType = "bool"
)

// ValidColumnTypes defines allowed column types.
var ValidColumnTypes = map[ColumnType]bool{
	TypeInt:  true,
	TypeText: true,
	TypeBool: true,
}

// ParseColumnType accepts the spellings used in problem files.
func ParseColumnType(s string) (ColumnType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "int", "integer", "number":
		return TypeInt, nil
	case "text", "string":
		return TypeText, nil
	case "bool", "boolean":
		return TypeBool, nil
	default:
		return "", fmt.Errorf("unknown column type %q (want int, text or bool)", s)
	}
}

// SQLType is the SQLite column affinity used when materializing a table.
func (t ColumnType) SQLType() string {
	switch t {
	case TypeText:
		return "TEXT"
	default:
		// bool is stored as 0/1
		return "INTEGER"
	}
}

// Column is a named, typed relation column.
type Column struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// Relation is a named bag of rows. Output relations may have an empty Name.
type Relation struct {
	Name    string    `json:"name,omitempty"`
	Columns []Column  `json:"columns"`
	Rows    [][]Value `json:"rows"`
}

// ColumnIndex returns the position of the named column, or -1.
func (r Relation) ColumnIndex(name string) int {
	return slices.IndexFunc(r.Columns, func(c Column) bool { return c.Name == name })
}

// ColumnValues returns the non-null values of column i in row order.
func (r Relation) ColumnValues(i int) []Value {
	vals := make([]Value, 0, len(r.Rows))
	for _, row := range r.Rows {
		if i < len(row) && !IsNull(row[i]) {
			vals = append(vals, row[i])
		}
	}
	return vals
}

// Validate checks row widths and that every non-null cell matches its
// column's declared type.
func (r Relation) Validate() error {
	if len(r.Columns) == 0 {
		return fmt.Errorf("relation %q: no columns", r.Name)
	}
	seen := make(map[string]bool, len(r.Columns))
	for _, c := range r.Columns {
		if c.Name == "" {
			return fmt.Errorf("relation %q: empty column name", r.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("relation %q: duplicate column %q", r.Name, c.Name)
		}
		seen[c.Name] = true
		if !ValidColumnTypes[c.Type] {
			return fmt.Errorf("relation %q: column %q has invalid type %q", r.Name, c.Name, c.Type)
		}
	}
	for i, row := range r.Rows {
		if len(row) != len(r.Columns) {
			return fmt.Errorf("relation %q: row %d has %d values, want %d",
				r.Name, i, len(row), len(r.Columns))
		}
		for j, v := range row {
			if IsNull(v) {
				continue
			}
			if got := TypeOf(v); got != r.Columns[j].Type {
				return fmt.Errorf("relation %q: row %d column %q: value %s is %s, want %s",
					r.Name, i, r.Columns[j].Name, String(v), got, r.Columns[j].Type)
			}
		}
	}
	return nil
}

// InferColumnTypes fills in empty column types from the first non-null
// value of each column. Columns with no non-null value default to text.
func (r *Relation) InferColumnTypes() {
	for j := range r.Columns {
		if r.Columns[j].Type != "" {
			continue
		}
		r.Columns[j].Type = TypeText
		for _, row := range r.Rows {
			if j < len(row) && !IsNull(row[j]) {
				r.Columns[j].Type = TypeOf(row[j])
				break
			}
		}
	}
}

// Database is an example input instance: relations sorted by name.
type Database struct {
	Tables []Relation `json:"tables"`
}

// NewDatabase builds a Database with tables sorted by name.
func NewDatabase(tables ...Relation) Database {
	sorted := slices.Clone(tables)
	slices.SortFunc(sorted, func(a, b Relation) int { return strings.Compare(a.Name, b.Name) })
	return Database{Tables: sorted}
}

// Table looks up a relation by name.
func (d Database) Table(name string) (Relation, bool) {
	for _, t := range d.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return Relation{}, false
}

// Validate validates every table and rejects duplicate table names.
func (d Database) Validate() error {
	if len(d.Tables) == 0 {
		return fmt.Errorf("database has no tables")
	}
	seen := make(map[string]bool, len(d.Tables))
	for _, t := range d.Tables {
		if t.Name == "" {
			return fmt.Errorf("table with empty name")
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate table %q", t.Name)
		}
		seen[t.Name] = true
		if err := t.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Example is one input/output pair: the database to query and the target
// relation a correct query must produce.
type Example struct {
	Input  Database `json:"input"`
	Output Relation `json:"output"`
}

// Validate validates both sides of the example.
func (e Example) Validate() error {
	if err := e.Input.Validate(); err != nil {
		return fmt.Errorf("input: %w", err)
	}
	if err := e.Output.Validate(); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	return nil
}

// Comparison selects the equality used to accept a candidate's output.
type Comparison string

const (
	// CompareBag compares rows as multisets. This is the default.
	CompareBag Comparison = "bag"
	// CompareSet ignores duplicate rows.
	CompareSet Comparison = "set"
	// CompareOrdered requires identical rows in identical order.
	CompareOrdered Comparison = "ordered"
)

// ParseComparison parses a comparison name; empty means bag.
func ParseComparison(s string) (Comparison, error) {
	switch Comparison(s) {
	case "", CompareBag:
		return CompareBag, nil
	case CompareSet, CompareOrdered:
		return Comparison(s), nil
	default:
		return "", fmt.Errorf("unknown comparison %q (want bag, set or ordered)", s)
	}
}

// Unlimited disables an integer bound.
const Unlimited = -1

// Bounds stop a search. Integer bounds set to Unlimited are disabled; a
// zero Timeout is disabled.
type Bounds struct {
	MaxComplexity int           `json:"max_complexity"`
	MaxDepth      int           `json:"max_depth"`
	MaxEmitted    int           `json:"max_emitted"`
	Timeout       time.Duration `json:"timeout"`
}

// NoBounds returns Bounds with every bound disabled.
func NoBounds() Bounds {
	return Bounds{MaxComplexity: Unlimited, MaxDepth: Unlimited, MaxEmitted: Unlimited}
}

// Bounded reports whether at least one bound is active.
func (b Bounds) Bounded() bool {
	return b.MaxComplexity >= 0 || b.MaxDepth >= 0 || b.MaxEmitted >= 0 || b.Timeout > 0
}
