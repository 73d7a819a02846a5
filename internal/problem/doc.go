// Package problem loads synthesis problems from CUE files.
//
// A problem names an example pair (input tables and the expected output
// relation) plus optional per-problem search settings:
//
//	package problems
//
//	problem: cs_students: {
//		description: "students enrolled in CS"
//		input: student: {
//			columns: [{name: "id", type: "int"}, {name: "name"}, {name: "dept"}]
//			rows: [[1, "ann", "CS"], [2, "bob", "EE"]]
//		}
//		output: {
//			columns: [{name: "name"}]
//			rows: [["ann"]]
//		}
//		compare: "bag"
//		bounds: {max_complexity: 12, timeout: "10s"}
//		weights: {left_join: 4}
//	}
//
// Every problem is unified with the #Problem definition in schema.cue
// before it is compiled, so unknown fields and ill-typed cells are
// reported with CUE source positions.
package problem
