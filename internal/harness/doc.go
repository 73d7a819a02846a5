// Package harness runs synthesis scenarios: example pairs written in YAML,
// searched end to end, and checked against expectations.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: cs_students
//	description: "names of students in department 2"
//	tables:
//	  - name: student
//	    columns: [{name: id, type: int}, {name: name}, {name: department_id}]
//	    rows:
//	      - [1, "Mike", 1]
//	      - [3, "Drew", 2]
//	output:
//	  columns: [{name: name}]
//	  rows: [["Drew"]]
//	compare: bag
//	bounds:
//	  max_complexity: 10
//	  timeout: 30s
//	weights:
//	  left_join: 4
//	trace_limit: 20
//	expect:
//	  status: found
//	  sql_contains: ["WHERE"]
//	  rejects: ["SELECT name FROM student"]
//	  max_evaluated: 50
//
// Unknown fields are rejected. Cells are coerced to the declared column
// type, so "7" in an int column is the integer 7. Columns without a type
// take it from their first non-null cell.
//
// # Expectations
//
//   - status: found, exhausted or bound_reached
//   - sql: the exact compact SQL of the accepted query
//   - sql_contains: substrings of the accepted query
//   - rejects: queries that must have been evaluated and rejected
//   - max_evaluated: upper bound on evaluated candidates
//
// # Deterministic Testing
//
// Each scenario runs against a fresh in-memory run log with a fixed run ID,
// and search results do not depend on worker count, so traces are
// byte-identical across runs and can be snapshotted with RunWithGolden.
package harness
