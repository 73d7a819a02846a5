// Package ir provides the foundational data types shared by every sqlsynth
// package: typed cell values, relations, example databases, search bounds,
// and the run-log records persisted by the store.
//
// ir imports nothing internal. Every other package may import ir.
//
// Key design constraints:
//   - NO float types anywhere - SQLite reals are narrowed to Int or rejected
//   - Relations are compared through canonical JSON row keys, never through
//     Go equality on interface values
//   - All JSON tags use snake_case
//   - Logical clocks (seq) only, never wall-clock timestamps in records
package ir
