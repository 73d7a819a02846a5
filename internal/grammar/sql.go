package grammar

import (
	"fmt"
	"maps"

	"github.com/roach88/sqlsynth/internal/ir"
)

// Nonterminals of the default SQL grammar.
const (
	SymQuery      Symbol = "Query"
	SymSelectList Symbol = "SelectList"
	SymExpr       Symbol = "Expr"
	SymColumnRef  Symbol = "ColumnRef"
	SymFrom       Symbol = "From"
	SymTableRef   Symbol = "TableRef"
	SymPredicate  Symbol = "Predicate"
	SymOperand    Symbol = "Operand"
	SymLiteral    Symbol = "Literal"
	SymGroupList  Symbol = "GroupList"
	SymJoinCond   Symbol = "JoinCond"
	SymOrderList  Symbol = "OrderList"
	SymOrderKey   Symbol = "OrderKey"
)

// DefaultMaxLiterals caps the literal terminals harvested from an example.
const DefaultMaxLiterals = 64

// DefaultWeights returns the default production weights, keyed by
// production name or kind. Joins and grouping are expensive so that
// single-table, ungrouped programs are tried first.
func DefaultWeights() map[string]int {
	return map[string]int{
		"query_select":         1,
		"query_where":          2,
		"query_distinct":       2,
		"query_distinct_where": 3,
		"query_group":          3,
		"query_where_group":    4,
		"select_item":          1,
		"select_items":         1,
		"select_star":          1,
		"expr_column":          0,
		"count_star":           2,
		"count":                3,
		"sum":                  3,
		"min":                  3,
		"max":                  3,
		"from_table":           0,
		"inner_join":           6,
		"left_join":            8,
		"join_on":              1,
		"eq":                   1,
		"ne":                   2,
		"lt":                   2,
		"gt":                   2,
		"is_null":              2,
		"is_not_null":          2,
		"and":                  2,
		"or":                   3,
		"operand_column":       0,
		"operand_literal":      0,
		"group_key":            1,
		"group_keys":           1,
		"order_by":             1,
		"order_key":            1,
		"order_keys":           1,
		"order_asc":            0,
		"order_desc":           1,
		KindTable.String():     1,
		KindColumn.String():    1,
		KindLiteral.String():   1,
	}
}

// SQLOptions configures the default grammar.
type SQLOptions struct {
	// Weights overrides DefaultWeights entries.
	Weights map[string]int
	// MaxLiterals caps literal terminals; zero means DefaultMaxLiterals,
	// negative disables literals.
	MaxLiterals int
	// Literals are added to the harvested ones.
	Literals []ir.Value
	// Ordered replaces every query form with its ORDER BY variant, so
	// that row order never depends on the scan order.
	Ordered bool
}

// SQL builds the default SELECT grammar for an example. Table and column
// terminals come from the input schema; literal terminals are the distinct
// values of the input and output relations.
func SQL(ex ir.Example, opts SQLOptions) (*Grammar, error) {
	db := ex.Input
	if len(db.Tables) == 0 {
		return nil, &GrammarError{Code: ErrCodeEmptySymbol, Symbol: SymTableRef, Message: "example database has no tables"}
	}
	weights := DefaultWeights()
	maps.Copy(weights, opts.Weights)
	w := func(name string) int { return weights[name] }

	b := NewBuilder(SymQuery).Weights(weights)
	literals := harvestLiterals(ex, opts)

	type query struct {
		name  string
		tmpl  string
		rhs   []Symbol
		roles []Role
	}
	queries := []query{
		{name: "query_select", tmpl: "SELECT {0}\n  FROM {1}",
			rhs: []Symbol{SymSelectList, SymFrom}, roles: []Role{RoleProjection, RoleSource}},
		{name: "query_where", tmpl: "SELECT {0}\n  FROM {1}\n WHERE {2}",
			rhs: []Symbol{SymSelectList, SymFrom, SymPredicate}, roles: []Role{RoleProjection, RoleSource, RoleFilter}},
		{name: "query_distinct", tmpl: "SELECT DISTINCT {0}\n  FROM {1}",
			rhs: []Symbol{SymSelectList, SymFrom}, roles: []Role{RoleProjection, RoleSource}},
		{name: "query_distinct_where", tmpl: "SELECT DISTINCT {0}\n  FROM {1}\n WHERE {2}",
			rhs: []Symbol{SymSelectList, SymFrom, SymPredicate}, roles: []Role{RoleProjection, RoleSource, RoleFilter}},
		{name: "query_group", tmpl: "SELECT {0}\n  FROM {1}\n GROUP BY {2}",
			rhs: []Symbol{SymSelectList, SymFrom, SymGroupList}, roles: []Role{RoleGroupedProjection, RoleSource, RoleGroupKey}},
		{name: "query_where_group", tmpl: "SELECT {0}\n  FROM {1}\n WHERE {2}\n GROUP BY {3}",
			rhs:   []Symbol{SymSelectList, SymFrom, SymPredicate, SymGroupList},
			roles: []Role{RoleGroupedProjection, RoleSource, RoleFilter, RoleGroupKey}},
	}
	for _, q := range queries {
		if !opts.Ordered {
			b.Add(Production{Name: q.name, LHS: SymQuery, RHS: q.rhs, Roles: q.roles, Template: q.tmpl, Weight: w(q.name)})
			continue
		}
		// Named overrides of q.name+"_order" are applied by Build.
		b.Add(Production{Name: q.name + "_order", LHS: SymQuery,
			RHS:      append(q.rhs, SymOrderList),
			Roles:    append(q.roles, RoleOrderKey),
			Template: fmt.Sprintf("%s\n ORDER BY {%d}", q.tmpl, len(q.rhs)),
			Weight:   w(q.name) + w("order_by")})
	}

	// Select lists.
	b.Add(Production{Name: "select_item", LHS: SymSelectList, Kind: KindProjectItem,
		RHS: []Symbol{SymExpr}, Template: "{0}", Inherit: 1, Weight: w("select_item")})
	b.Add(Production{Name: "select_items", LHS: SymSelectList, Kind: KindProjectCons,
		RHS: []Symbol{SymExpr, SymSelectList}, Template: "{0},\n       {1}", Weight: w("select_items")})
	b.Add(Production{Name: "select_star", LHS: SymSelectList, Kind: KindProjectAll,
		Template: "*", Weight: w("select_star")})

	// Expressions.
	b.Add(Production{Name: "expr_column", LHS: SymExpr, RHS: []Symbol{SymColumnRef},
		Template: "{0}", Inherit: 1, Weight: w("expr_column")})
	b.Add(Production{Name: "count_star", LHS: SymExpr, Kind: KindAggregate,
		Template: "COUNT(*)", Result: TypeInt, Op: "COUNT", Weight: w("count_star")})
	b.Add(Production{Name: "count", LHS: SymExpr, Kind: KindAggregate, RHS: []Symbol{SymColumnRef},
		Args: []TypeSpec{{Type: TypeAny}}, Result: TypeInt, Op: "COUNT", Template: "COUNT({0})", Weight: w("count")})
	b.Add(Production{Name: "sum", LHS: SymExpr, Kind: KindAggregate, RHS: []Symbol{SymColumnRef},
		Args: []TypeSpec{{Type: TypeInt | TypeBool}}, Result: TypeInt, Op: "SUM", Template: "SUM({0})", Weight: w("sum")})
	b.Add(Production{Name: "min", LHS: SymExpr, Kind: KindAggregate, RHS: []Symbol{SymColumnRef},
		Args: []TypeSpec{{Type: TypeAny}}, Inherit: 1, Op: "MIN", Template: "MIN({0})", Weight: w("min")})
	b.Add(Production{Name: "max", LHS: SymExpr, Kind: KindAggregate, RHS: []Symbol{SymColumnRef},
		Args: []TypeSpec{{Type: TypeAny}}, Inherit: 1, Op: "MAX", Template: "MAX({0})", Weight: w("max")})

	// Sources. Joins are left-deep; repeated tables are excluded by the
	// constraint model.
	b.Add(Production{Name: "from_table", LHS: SymFrom, RHS: []Symbol{SymTableRef},
		Template: "{0}", Inherit: 1, Weight: w("from_table")})
	if len(db.Tables) > 1 {
		b.Add(Production{Name: "inner_join", LHS: SymFrom, RHS: []Symbol{SymFrom, SymTableRef, SymJoinCond},
			Roles:    []Role{RoleNone, RoleNone, RoleJoinCondition},
			Template: "{0}\n  JOIN {1}\n    ON {2}", Weight: w("inner_join")})
		b.Add(Production{Name: "left_join", LHS: SymFrom, RHS: []Symbol{SymFrom, SymTableRef, SymJoinCond},
			Roles:    []Role{RoleNone, RoleNone, RoleJoinCondition},
			Template: "{0}\n  LEFT JOIN {1}\n    ON {2}", Weight: w("left_join")})
		b.Add(Production{Name: "join_on", LHS: SymJoinCond, Kind: KindCompare, Op: "=",
			RHS: []Symbol{SymColumnRef, SymColumnRef}, Args: []TypeSpec{{Type: TypeAny}, {Type: TypeAny, SameAs: 1}},
			Result: TypeBool, Template: "{0} = {1}", Weight: w("join_on")})
	}
	qualify := len(db.Tables) > 1
	for _, t := range db.Tables {
		b.Add(Production{Name: "table:" + t.Name, LHS: SymTableRef, Kind: KindTable,
			Table: t.Name, Template: EscapeTemplate(ir.SQLIdent(t.Name)), Weight: w(KindTable.String())})
	}
	for _, t := range db.Tables {
		for _, c := range t.Columns {
			lexeme := ir.SQLIdent(c.Name)
			if qualify {
				lexeme = ir.SQLIdent(t.Name) + "." + lexeme
			}
			b.Add(Production{Name: "column:" + t.Name + "." + c.Name, LHS: SymColumnRef, Kind: KindColumn,
				Table: t.Name, Column: c.Name, Result: TypeOfColumn(c.Type), Template: EscapeTemplate(lexeme),
				Weight: w(KindColumn.String())})
		}
	}

	// Predicates.
	compares := []struct{ name, op string }{{"eq", "="}, {"ne", "<>"}, {"lt", "<"}, {"gt", ">"}}
	for _, c := range compares {
		b.Add(Production{Name: c.name, LHS: SymPredicate, Kind: KindCompare, Op: c.op,
			RHS: []Symbol{SymColumnRef, SymOperand}, Args: []TypeSpec{{Type: TypeAny}, {Type: TypeAny, SameAs: 1}},
			Result: TypeBool, Template: "{0} " + c.op + " {1}", Weight: w(c.name)})
	}
	b.Add(Production{Name: "is_null", LHS: SymPredicate, RHS: []Symbol{SymColumnRef},
		Result: TypeBool, Template: "{0} IS NULL", Weight: w("is_null")})
	b.Add(Production{Name: "is_not_null", LHS: SymPredicate, RHS: []Symbol{SymColumnRef},
		Result: TypeBool, Template: "{0} IS NOT NULL", Weight: w("is_not_null")})
	b.Add(Production{Name: "and", LHS: SymPredicate, Kind: KindConnective, Op: "AND",
		RHS: []Symbol{SymPredicate, SymPredicate}, Args: []TypeSpec{{Type: TypeBool}, {Type: TypeBool}},
		Result: TypeBool, Template: "{0}\n   AND {1}", Weight: w("and")})
	b.Add(Production{Name: "or", LHS: SymPredicate, Kind: KindConnective, Op: "OR",
		RHS: []Symbol{SymPredicate, SymPredicate}, Args: []TypeSpec{{Type: TypeBool}, {Type: TypeBool}},
		Result: TypeBool, Template: "({0} OR {1})", Weight: w("or")})

	b.Add(Production{Name: "operand_column", LHS: SymOperand, RHS: []Symbol{SymColumnRef},
		Template: "{0}", Inherit: 1, Weight: w("operand_column")})
	if len(literals) > 0 {
		b.Add(Production{Name: "operand_literal", LHS: SymOperand, RHS: []Symbol{SymLiteral},
			Template: "{0}", Inherit: 1, Weight: w("operand_literal")})
		for _, v := range literals {
			lexeme := ir.SQLLiteral(v)
			b.Add(Production{Name: "literal:" + lexeme, LHS: SymLiteral, Kind: KindLiteral,
				Value: v, Result: TypeOfValue(v), Template: EscapeTemplate(lexeme), Weight: w(KindLiteral.String())})
		}
	}

	// Grouping.
	b.Add(Production{Name: "group_key", LHS: SymGroupList, RHS: []Symbol{SymColumnRef},
		Template: "{0}", Inherit: 1, Weight: w("group_key")})
	b.Add(Production{Name: "group_keys", LHS: SymGroupList, RHS: []Symbol{SymColumnRef, SymGroupList},
		Template: "{0}, {1}", Weight: w("group_keys")})

	if opts.Ordered {
		b.Add(Production{Name: "order_key", LHS: SymOrderList, RHS: []Symbol{SymOrderKey},
			Template: "{0}", Inherit: 1, Weight: w("order_key")})
		b.Add(Production{Name: "order_keys", LHS: SymOrderList, RHS: []Symbol{SymOrderKey, SymOrderList},
			Template: "{0}, {1}", Weight: w("order_keys")})
		b.Add(Production{Name: "order_asc", LHS: SymOrderKey, RHS: []Symbol{SymColumnRef},
			Template: "{0}", Inherit: 1, Weight: w("order_asc")})
		b.Add(Production{Name: "order_desc", LHS: SymOrderKey, RHS: []Symbol{SymColumnRef},
			Template: "{0} DESC", Inherit: 1, Weight: w("order_desc")})
	}

	g, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("build SQL grammar: %w", err)
	}
	return g, nil
}

// harvestLiterals collects the distinct non-null values of the example,
// in ir.Compare order, capped at opts.MaxLiterals.
func harvestLiterals(ex ir.Example, opts SQLOptions) []ir.Value {
	if opts.MaxLiterals < 0 {
		return nil
	}
	limit := opts.MaxLiterals
	if limit == 0 {
		limit = DefaultMaxLiterals
	}
	var all []ir.Value
	for _, t := range ex.Input.Tables {
		for _, row := range t.Rows {
			all = append(all, row...)
		}
	}
	for _, row := range ex.Output.Rows {
		all = append(all, row...)
	}
	all = append(all, opts.Literals...)
	vals := ir.DistinctValues(all)
	if len(vals) > limit {
		vals = vals[:limit]
	}
	return vals
}
