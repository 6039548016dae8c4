package queue

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// AppendUsage records one LLM call against a job.
func (s *Store) AppendUsage(ctx context.Context, rec UsageRecord) error {
	if rec.JobID == 0 {
		return errors.New("usage record requires a job id")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO llm_usage (
            job_id, model, operation, input_tokens, output_tokens, cost,
            duration_ms, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.JobID,
		rec.Model,
		rec.Operation,
		rec.InputTokens,
		rec.OutputTokens,
		rec.Cost,
		rec.DurationMS,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append usage: %w", err)
	}
	return nil
}

// JobCost sums the recorded LLM spend for a job in dollars.
func (s *Store) JobCost(ctx context.Context, jobID int64) (float64, error) {
	var total float64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(cost), 0) FROM llm_usage WHERE job_id = ?`, jobID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("job cost: %w", err)
	}
	return total, nil
}

// JobUsage returns the usage records for a job in insertion order.
func (s *Store) JobUsage(ctx context.Context, jobID int64) ([]UsageRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, model, operation, input_tokens, output_tokens, cost, duration_ms
        FROM llm_usage WHERE job_id = ? ORDER BY id`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("job usage: %w", err)
	}
	defer rows.Close()

	var records []UsageRecord
	for rows.Next() {
		var rec UsageRecord
		if err := rows.Scan(
			&rec.JobID,
			&rec.Model,
			&rec.Operation,
			&rec.InputTokens,
			&rec.OutputTokens,
			&rec.Cost,
			&rec.DurationMS,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
