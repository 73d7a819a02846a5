package eval

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/sqlsynth/internal/ast"
	"github.com/roach88/sqlsynth/internal/ir"
	"github.com/roach88/sqlsynth/internal/render"
)

// DefaultTimeout bounds a single candidate's execution.
const DefaultTimeout = 5 * time.Second

// Evaluator executes SQL against one example database.
//
// Thread-safety: Evaluate and Query are safe for concurrent use; Close must
// not race with them.
type Evaluator struct {
	db      *sql.DB
	keep    *sql.Conn
	name    string
	timeout time.Duration
	conns   int
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithTimeout sets the per-candidate timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(e *Evaluator) { e.timeout = d }
}

// WithConnections sets the connection pool size, which caps concurrent
// evaluations. Default: 4.
func WithConnections(n int) Option {
	return func(e *Evaluator) {
		if n > 0 {
			e.conns = n
		}
	}
}

// Open materializes db in a fresh in-memory database.
func Open(ctx context.Context, db ir.Database, opts ...Option) (*Evaluator, error) {
	if err := db.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database: %w", err)
	}

	e := &Evaluator{
		name:    "synth-" + uuid.NewString(),
		timeout: DefaultTimeout,
		conns:   4,
	}
	for _, opt := range opts {
		opt(e)
	}

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", e.name)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// +1 for the pinned connection.
	sqlDB.SetMaxOpenConns(e.conns + 1)
	sqlDB.SetMaxIdleConns(e.conns + 1)
	sqlDB.SetConnMaxLifetime(0)
	e.db = sqlDB

	// The in-memory database lives as long as one connection is open.
	keep, err := sqlDB.Conn(ctx)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	e.keep = keep

	if err := load(ctx, keep, db); err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to load example database: %w", err)
	}
	return e, nil
}

// Close releases the database. The in-memory data is discarded.
func (e *Evaluator) Close() error {
	if e.db == nil {
		return nil
	}
	if e.keep != nil {
		e.keep.Close()
		e.keep = nil
	}
	err := e.db.Close()
	e.db = nil
	return err
}

// Evaluate renders a complete tree and runs it.
func (e *Evaluator) Evaluate(ctx context.Context, t *ast.Tree) (ir.Relation, error) {
	query, err := render.Query(t, render.Compact())
	if err != nil {
		return ir.Relation{}, &EvalError{SQL: render.Render(t, render.Compact()), Err: err}
	}
	return e.Query(ctx, query)
}

// Query runs a SQL string and returns its result relation.
func (e *Evaluator) Query(ctx context.Context, query string) (ir.Relation, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return ir.Relation{}, &EvalError{SQL: query, Err: err}
	}
	defer rows.Close()

	rel, err := scanRelation(rows)
	if err != nil {
		return ir.Relation{}, &EvalError{SQL: query, Err: err}
	}
	return rel, nil
}

func scanRelation(rows *sql.Rows) (ir.Relation, error) {
	names, err := rows.Columns()
	if err != nil {
		return ir.Relation{}, err
	}
	rel := ir.Relation{Columns: make([]ir.Column, len(names)), Rows: [][]ir.Value{}}
	for i, n := range names {
		rel.Columns[i] = ir.Column{Name: n}
	}

	cells := make([]any, len(names))
	ptrs := make([]any, len(names))
	for i := range cells {
		ptrs[i] = &cells[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return ir.Relation{}, fmt.Errorf("scan row: %w", err)
		}
		row := make([]ir.Value, len(cells))
		for i, c := range cells {
			v, err := convert(c)
			if err != nil {
				return ir.Relation{}, fmt.Errorf("column %q: %w", names[i], err)
			}
			row[i] = v
		}
		rel.Rows = append(rel.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return ir.Relation{}, err
	}
	rel.InferColumnTypes()
	return rel, nil
}

// convert maps a driver value to an ir.Value.
func convert(c any) (ir.Value, error) {
	switch v := c.(type) {
	case nil:
		return ir.Null{}, nil
	case int64:
		return ir.Int(v), nil
	case string:
		return ir.Text(v), nil
	case []byte:
		return ir.Text(string(v)), nil
	case bool:
		return ir.Bool(v), nil
	case float64:
		// 2^63 itself does not fit in an int64.
		if v != math.Trunc(v) || v < math.MinInt64 || v >= 1<<63 {
			return nil, fmt.Errorf("non-integral real %v", v)
		}
		return ir.Int(int64(v)), nil
	default:
		return nil, fmt.Errorf("unsupported result type %T", c)
	}
}

func load(ctx context.Context, conn *sql.Conn, db ir.Database) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, t := range db.Tables {
		if _, err := tx.ExecContext(ctx, createTable(t)); err != nil {
			return fmt.Errorf("create table %s: %w", t.Name, err)
		}
		if len(t.Rows) == 0 {
			continue
		}
		stmt, err := tx.PrepareContext(ctx, insertRow(t))
		if err != nil {
			return fmt.Errorf("prepare insert %s: %w", t.Name, err)
		}
		for i, row := range t.Rows {
			args := make([]any, len(row))
			for j, v := range row {
				args[j] = driverValue(v)
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				stmt.Close()
				return fmt.Errorf("insert %s row %d: %w", t.Name, i, err)
			}
		}
		stmt.Close()
	}
	return tx.Commit()
}

func createTable(t ir.Relation) string {
	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = ir.QuoteIdent(c.Name) + " " + c.Type.SQLType()
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", ir.QuoteIdent(t.Name), strings.Join(cols, ", "))
}

func insertRow(t ir.Relation) string {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(t.Columns)), ", ")
	return fmt.Sprintf("INSERT INTO %s VALUES (%s)", ir.QuoteIdent(t.Name), marks)
}

func driverValue(v ir.Value) any {
	switch v := v.(type) {
	case ir.Int:
		return int64(v)
	case ir.Text:
		return string(v)
	case ir.Bool:
		if v {
			return int64(1)
		}
		return int64(0)
	default:
		return nil
	}
}
