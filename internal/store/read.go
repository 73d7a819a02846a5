package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/sqlsynth/internal/ir"
)

const runColumns = `id, problem, target, target_digest, config_digest, status, sql, emitted, evaluated, seq`

// ReadRun returns a run by ID.
// Returns (run, true, nil) if found, (zero, false, nil) if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (ir.Run, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Run{}, false, nil
	}
	if err != nil {
		return ir.Run{}, false, fmt.Errorf("read run: %w", err)
	}
	return run, true, nil
}

// ReadRuns returns every run, ordered by seq ASC, id ASC COLLATE BINARY.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ReadRuns(ctx context.Context) ([]ir.Run, error) {
	return s.queryRuns(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
}

// ReadRunsForProblem returns the runs of one problem in seq order.
func (s *Store) ReadRunsForProblem(ctx context.Context, problem string) ([]ir.Run, error) {
	return s.queryRuns(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE problem = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, problem)
}

// LatestRun returns the run with the highest seq.
func (s *Store) LatestRun(ctx context.Context) (ir.Run, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY seq DESC LIMIT 1`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Run{}, false, nil
	}
	if err != nil {
		return ir.Run{}, false, fmt.Errorf("latest run: %w", err)
	}
	return run, true, nil
}

func (s *Store) queryRuns(ctx context.Context, query string, args ...any) ([]ir.Run, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []ir.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (ir.Run, error) {
	var (
		run    ir.Run
		target string
	)
	if err := row.Scan(
		&run.ID,
		&run.Problem,
		&target,
		&run.TargetDigest,
		&run.ConfigDigest,
		&run.Status,
		&run.SQL,
		&run.Emitted,
		&run.Evaluated,
		&run.Seq,
	); err != nil {
		return ir.Run{}, err
	}
	rel, err := unmarshalRelation(target)
	if err != nil {
		return ir.Run{}, fmt.Errorf("scan run %s: %w", run.ID, err)
	}
	run.Target = rel
	return run, nil
}

// ReadCandidates returns a run's candidates in seq order.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ReadCandidates(ctx context.Context, runID string) ([]ir.CandidateRecord, error) {
	return s.queryCandidates(ctx, `
		SELECT run_id, seq, id, complexity, sql, outcome, error
		FROM candidates
		WHERE run_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, runID)
}

// FindCandidate returns every evaluation of the candidate with the given
// content-addressed ID, across runs, in run order.
func (s *Store) FindCandidate(ctx context.Context, id string) ([]ir.CandidateRecord, error) {
	return s.queryCandidates(ctx, `
		SELECT c.run_id, c.seq, c.id, c.complexity, c.sql, c.outcome, c.error
		FROM candidates c
		JOIN runs r ON c.run_id = r.id
		WHERE c.id = ?
		ORDER BY r.seq ASC, c.seq ASC
	`, id)
}

// OutcomeCounts returns the number of candidates per outcome for a run.
func (s *Store) OutcomeCounts(ctx context.Context, runID string) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT outcome, COUNT(*)
		FROM candidates
		WHERE run_id = ?
		GROUP BY outcome
		ORDER BY outcome COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("outcome counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var (
			outcome string
			n       int64
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("outcome counts: %w", err)
		}
		counts[outcome] = n
	}
	return counts, rows.Err()
}

func (s *Store) queryCandidates(ctx context.Context, query string, args ...any) ([]ir.CandidateRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	out := []ir.CandidateRecord{}
	for rows.Next() {
		var c ir.CandidateRecord
		if err := rows.Scan(&c.RunID, &c.Seq, &c.ID, &c.Complexity, &c.SQL, &c.Outcome, &c.Error); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return out, nil
}
