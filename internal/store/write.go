package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/sqlsynth/internal/ir"
)

// WriteRun inserts a run record with status running.
// Uses ON CONFLICT(id) DO NOTHING for idempotency.
//
// If run.Seq is zero the next run sequence number is assigned. The stored
// record is returned.
func (s *Store) WriteRun(ctx context.Context, run ir.Run) (ir.Run, error) {
	target, err := marshalRelation(run.Target)
	if err != nil {
		return run, fmt.Errorf("write run: %w", err)
	}
	if run.Status == "" {
		run.Status = ir.RunStatusRunning
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return run, fmt.Errorf("write run: %w", err)
	}
	defer tx.Rollback()

	if run.Seq == 0 {
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM runs`).Scan(&run.Seq); err != nil {
			return run, fmt.Errorf("write run: next seq: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, problem, target, target_digest, config_digest, status, sql, emitted, evaluated, seq, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Problem,
		target,
		run.TargetDigest,
		run.ConfigDigest,
		run.Status,
		run.SQL,
		run.Emitted,
		run.Evaluated,
		run.Seq,
		ir.EngineVersion,
		ir.RecordVersion,
	)
	if err != nil {
		return run, fmt.Errorf("write run: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return run, fmt.Errorf("write run: %w", err)
	}
	return run, nil
}

// FinishRun records a run's terminal status and counters.
// Returns sql.ErrNoRows if the run does not exist.
func (s *Store) FinishRun(ctx context.Context, id, status, query string, emitted, evaluated int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, sql = ?, emitted = ?, evaluated = ?
		WHERE id = ?
	`, status, query, emitted, evaluated, id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// WriteCandidate inserts one evaluated candidate.
// Uses ON CONFLICT DO NOTHING for idempotency - a (run_id, seq) pair is
// written once.
//
// Note: The run referenced by RunID must exist (foreign key constraint).
func (s *Store) WriteCandidate(ctx context.Context, c ir.CandidateRecord) error {
	if err := writeCandidate(ctx, s.db, c); err != nil {
		return fmt.Errorf("write candidate: %w", err)
	}
	return nil
}

// WriteCandidates inserts candidates in one transaction.
func (s *Store) WriteCandidates(ctx context.Context, cs []ir.CandidateRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write candidates: %w", err)
	}
	defer tx.Rollback()

	for _, c := range cs {
		if err := writeCandidate(ctx, tx, c); err != nil {
			return fmt.Errorf("write candidates: seq %d: %w", c.Seq, err)
		}
	}
	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func writeCandidate(ctx context.Context, db execer, c ir.CandidateRecord) error {
	id := c.ID
	if id == "" {
		id = ir.CandidateID(c.SQL)
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO candidates
		(run_id, seq, id, complexity, sql, outcome, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		c.RunID,
		c.Seq,
		id,
		c.Complexity,
		c.SQL,
		c.Outcome,
		c.Error,
	)
	return err
}
