package store

import (
	"context"
	"fmt"

	"github.com/roach88/sqlsynth/internal/ir"
)

// FindUnfinishedRuns returns runs still marked running: the process that
// started them exited before recording an outcome.
func (s *Store) FindUnfinishedRuns(ctx context.Context) ([]ir.Run, error) {
	runs, err := s.queryRuns(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE status = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, ir.RunStatusRunning)
	if err != nil {
		return nil, fmt.Errorf("find unfinished runs: %w", err)
	}
	return runs, nil
}

// LastCandidateSeq returns the highest candidate seq recorded for a run,
// or 0 if none.
func (s *Store) LastCandidateSeq(ctx context.Context, runID string) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM candidates WHERE run_id = ?`, runID,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last candidate seq: %w", err)
	}
	return seq, nil
}

// MarkFailed finishes every unfinished run as failed, keeping the counters
// implied by its recorded candidates. Returns the number of runs updated.
func (s *Store) MarkFailed(ctx context.Context) (int, error) {
	runs, err := s.FindUnfinishedRuns(ctx)
	if err != nil {
		return 0, err
	}
	for _, r := range runs {
		n, err := s.LastCandidateSeq(ctx, r.ID)
		if err != nil {
			return 0, err
		}
		if err := s.FinishRun(ctx, r.ID, ir.RunStatusFailed, "", r.Emitted, n); err != nil {
			return 0, err
		}
	}
	return len(runs), nil
}
