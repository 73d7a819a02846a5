// Package store provides the SQLite run log for synthesis searches.
//
// The log is append-mostly:
//   - runs: one row per search, inserted as running and finished once
//   - candidates: every evaluated candidate of a run, keyed (run_id, seq)
//
// # Patterns
//
// Logical ordering:
//   - runs and candidates carry seq INTEGER, never timestamps
//   - every read orders by seq, then id COLLATE BINARY
//
// Idempotent writes:
//   - inserts use ON CONFLICT DO NOTHING, so re-recording a run after a
//     crash never duplicates candidates
//
// Content addressing:
//   - candidate ids are ir.CandidateID(sql), so the same query found in
//     different runs shares an id
//   - run targets are stored as canonical JSON (ir.MarshalCanonical)
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
