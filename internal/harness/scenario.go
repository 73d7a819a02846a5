package harness

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/roach88/sqlsynth/internal/engine"
	"github.com/roach88/sqlsynth/internal/ir"
	"github.com/roach88/sqlsynth/internal/search"
)

// Scenario defines one synthesis test: an example pair, search settings
// and the expected outcome.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Tables is the example input database.
	Tables []TableSpec `yaml:"tables"`

	// Output is the target relation.
	Output RelationSpec `yaml:"output"`

	// Compare is bag, set or ordered. Empty means bag.
	Compare string `yaml:"compare,omitempty"`

	// Bounds limit the search. When none is set, max_complexity defaults
	// to search.DefaultMaxComplexity.
	Bounds BoundsSpec `yaml:"bounds,omitempty"`

	// Weights override production weights by name or kind.
	Weights map[string]int `yaml:"weights,omitempty"`

	// NoWitness disables data-derived pruning.
	NoWitness bool `yaml:"no_witness,omitempty"`

	// HoleOrder is scope-first (default) or leftmost.
	HoleOrder string `yaml:"hole_order,omitempty"`

	// TraceLimit caps the candidates kept in golden snapshots.
	// Zero means DefaultTraceLimit.
	TraceLimit int `yaml:"trace_limit,omitempty"`

	// RunID is an optional fixed run ID.
	// If empty, defaults to testutil.DefaultRunID.
	RunID string `yaml:"run_id,omitempty"`

	// Expect is the expected outcome.
	Expect Expect `yaml:"expect"`
}

// DefaultTraceLimit is the number of candidates kept in golden snapshots.
const DefaultTraceLimit = 25

// TableSpec is a named input relation.
type TableSpec struct {
	Name         string `yaml:"name"`
	RelationSpec `yaml:",inline"`
}

// RelationSpec is a relation as written in YAML. Rows hold raw YAML
// scalars until Relation coerces them.
type RelationSpec struct {
	Columns []ColumnSpec `yaml:"columns"`
	Rows    [][]any      `yaml:"rows"`
}

// ColumnSpec is one column. Type is optional.
type ColumnSpec struct {
	Name string `yaml:"name"`
	Type string `yaml:"type,omitempty"`
}

// BoundsSpec are the search bounds. Nil fields are unset.
type BoundsSpec struct {
	MaxComplexity *int   `yaml:"max_complexity,omitempty"`
	MaxDepth      *int   `yaml:"max_depth,omitempty"`
	MaxEmitted    *int   `yaml:"max_emitted,omitempty"`
	Timeout       string `yaml:"timeout,omitempty"`
}

// Expect specifies the expected search outcome.
type Expect struct {
	// Status is the expected run status (found, exhausted, bound_reached).
	Status string `yaml:"status"`

	// SQL is the exact expected query. Empty skips the check.
	SQL string `yaml:"sql,omitempty"`

	// SQLContains lists substrings of the accepted query.
	SQLContains []string `yaml:"sql_contains,omitempty"`

	// Rejects lists queries that must have been evaluated and rejected.
	Rejects []string `yaml:"rejects,omitempty"`

	// MaxEvaluated bounds the number of evaluated candidates. Zero skips
	// the check.
	MaxEvaluated int64 `yaml:"max_evaluated,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "expects:" vs "expect:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Tables) == 0 {
		return fmt.Errorf("tables list is required and must be non-empty")
	}
	for i, t := range s.Tables {
		if t.Name == "" {
			return fmt.Errorf("tables[%d]: name is required", i)
		}
	}
	if len(s.Output.Columns) == 0 {
		return fmt.Errorf("output.columns is required and must be non-empty")
	}

	switch s.Expect.Status {
	case ir.RunStatusFound, ir.RunStatusExhausted, ir.RunStatusBoundReached:
	case "":
		return fmt.Errorf("expect.status is required")
	default:
		return fmt.Errorf("expect.status: unknown status %q", s.Expect.Status)
	}
	if s.Expect.Status != ir.RunStatusFound && (s.Expect.SQL != "" || len(s.Expect.SQLContains) > 0) {
		return fmt.Errorf("expect: sql checks require status %q", ir.RunStatusFound)
	}
	if s.Expect.MaxEvaluated < 0 {
		return fmt.Errorf("expect.max_evaluated must be non-negative")
	}
	if s.TraceLimit < 0 {
		return fmt.Errorf("trace_limit must be non-negative")
	}

	if _, err := ir.ParseComparison(s.Compare); err != nil {
		return fmt.Errorf("compare: %w", err)
	}
	if _, err := engine.ParseHoleOrder(s.HoleOrder); err != nil {
		return fmt.Errorf("hole_order: %w", err)
	}
	if _, err := s.Bounds.bounds(); err != nil {
		return fmt.Errorf("bounds: %w", err)
	}
	for name, w := range s.Weights {
		if w < 0 {
			return fmt.Errorf("weights.%s must be non-negative", name)
		}
	}

	// Build the example once so bad cells fail at load time.
	if _, err := s.Example(); err != nil {
		return err
	}
	return nil
}

// Example builds the example pair the scenario describes.
func (s *Scenario) Example() (ir.Example, error) {
	tables := make([]ir.Relation, 0, len(s.Tables))
	for _, t := range s.Tables {
		r, err := t.Relation(t.Name)
		if err != nil {
			return ir.Example{}, fmt.Errorf("tables.%s: %w", t.Name, err)
		}
		tables = append(tables, r)
	}
	out, err := s.Output.Relation("")
	if err != nil {
		return ir.Example{}, fmt.Errorf("output: %w", err)
	}

	ex := ir.Example{Input: ir.NewDatabase(tables...), Output: out}
	if err := ex.Validate(); err != nil {
		return ir.Example{}, err
	}
	return ex, nil
}

// Config returns the search configuration the scenario describes.
func (s *Scenario) Config() (search.Config, error) {
	cfg := search.DefaultConfig()

	b, err := s.Bounds.bounds()
	if err != nil {
		return cfg, err
	}
	if !b.Bounded() {
		b.MaxComplexity = search.DefaultMaxComplexity
	}
	cfg.Bounds = b

	if cfg.Compare, err = ir.ParseComparison(s.Compare); err != nil {
		return cfg, err
	}
	if cfg.HoleOrder, err = engine.ParseHoleOrder(s.HoleOrder); err != nil {
		return cfg, err
	}
	cfg.Weights = s.Weights
	cfg.NoWitness = s.NoWitness
	return cfg, nil
}

func (s *Scenario) traceLimit() int {
	if s.TraceLimit == 0 {
		return DefaultTraceLimit
	}
	return s.TraceLimit
}

func (b BoundsSpec) bounds() (ir.Bounds, error) {
	out := ir.NoBounds()
	if b.MaxComplexity != nil {
		if *b.MaxComplexity < 0 {
			return out, fmt.Errorf("max_complexity must be non-negative")
		}
		out.MaxComplexity = *b.MaxComplexity
	}
	if b.MaxDepth != nil {
		if *b.MaxDepth < 1 {
			return out, fmt.Errorf("max_depth must be at least 1")
		}
		out.MaxDepth = *b.MaxDepth
	}
	if b.MaxEmitted != nil {
		if *b.MaxEmitted < 0 {
			return out, fmt.Errorf("max_emitted must be non-negative")
		}
		out.MaxEmitted = *b.MaxEmitted
	}
	if b.Timeout != "" {
		d, err := time.ParseDuration(b.Timeout)
		if err != nil {
			return out, fmt.Errorf("timeout: %w", err)
		}
		if d <= 0 {
			return out, fmt.Errorf("timeout must be positive")
		}
		out.Timeout = d
	}
	return out, nil
}

// Relation coerces the spec into an ir.Relation named name.
func (r RelationSpec) Relation(name string) (ir.Relation, error) {
	rel := ir.Relation{Name: name, Columns: make([]ir.Column, len(r.Columns))}
	for i, c := range r.Columns {
		rel.Columns[i].Name = c.Name
		if c.Type == "" {
			continue
		}
		t, err := ir.ParseColumnType(c.Type)
		if err != nil {
			return ir.Relation{}, fmt.Errorf("column %s: %w", c.Name, err)
		}
		rel.Columns[i].Type = t
	}

	rel.Rows = make([][]ir.Value, len(r.Rows))
	for i, row := range r.Rows {
		if len(row) != len(r.Columns) {
			return ir.Relation{}, fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(r.Columns))
		}
		rel.Rows[i] = make([]ir.Value, len(row))
		for j, cell := range row {
			v, err := coerceCell(cell, rel.Columns[j].Type)
			if err != nil {
				return ir.Relation{}, fmt.Errorf("row %d column %s: %w", i, r.Columns[j].Name, err)
			}
			rel.Rows[i][j] = v
		}
	}

	rel.InferColumnTypes()
	if err := rel.Validate(); err != nil {
		return ir.Relation{}, err
	}
	return rel, nil
}

// coerceCell converts a YAML scalar to a value of type t. An empty t keeps
// the scalar's own type.
func coerceCell(cell any, t ir.ColumnType) (ir.Value, error) {
	if cell == nil {
		return ir.Null{}, nil
	}
	if f, ok := cell.(float64); ok && f != math.Trunc(f) {
		return nil, fmt.Errorf("floats are not supported: %v", f)
	}

	switch t {
	case ir.TypeInt:
		n, err := cast.ToInt64E(cell)
		if err != nil {
			return nil, err
		}
		return ir.Int(n), nil
	case ir.TypeText:
		s, err := cast.ToStringE(cell)
		if err != nil {
			return nil, err
		}
		return ir.Text(s), nil
	case ir.TypeBool:
		b, err := cast.ToBoolE(cell)
		if err != nil {
			return nil, err
		}
		return ir.Bool(b), nil
	default:
		return ir.FromAny(cell)
	}
}
