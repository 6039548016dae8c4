package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Enqueue inserts a pending job. Manual jobs are refused with
// ErrDuplicateActiveJob when the episode already has a pending or running
// job; background jobs rely on the scanner's own dedup checks.
func (s *Store) Enqueue(ctx context.Context, req NewJob) (int64, error) {
	if req.EpisodeGUID == "" {
		return 0, errors.New("episode guid required")
	}
	if req.AudioURL == "" {
		return 0, errors.New("audio url required")
	}
	if req.Reason == "" {
		req.Reason = ReasonBackground
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin enqueue tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if req.Reason == ReasonManual {
		var active int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM jobs WHERE episode_guid = ? AND status IN (?, ?)`,
			req.EpisodeGUID, StatusPending, StatusRunning,
		).Scan(&active)
		if err != nil {
			return 0, fmt.Errorf("check active jobs: %w", err)
		}
		if active > 0 {
			return 0, fmt.Errorf("episode %s: %w", req.EpisodeGUID, ErrDuplicateActiveJob)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := tx.ExecContext(ctx,
		`INSERT INTO jobs (
            episode_guid, podcast_id, audio_url, reason, status, priority,
            is_protected, progress, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		req.EpisodeGUID,
		req.PodcastID,
		req.AudioURL,
		req.Reason,
		StatusPending,
		req.Priority,
		boolToInt(req.Protected),
		now,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit enqueue: %w", err)
	}
	return id, nil
}

// GetByID fetches a job by identifier. Returns nil when absent.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// NextEligible returns the highest-priority, oldest pending job, or nil when
// the queue is empty.
func (s *Store) NextEligible(ctx context.Context) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY priority DESC, created_at ASC LIMIT 1`,
		StatusPending,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next eligible: %w", err)
	}
	return job, nil
}

// Claim performs the atomic pending-to-running transition. The conditional
// update guarantees single ownership even with concurrent pollers; losing the
// race yields ErrClaimConflict.
func (s *Store) Claim(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs
        SET status = ?, attempts = attempts + 1, started_at = ?, updated_at = ?,
            progress = 0, progress_message = NULL, last_error = NULL
        WHERE id = ? AND status = ?`,
		StatusRunning, now, now, id, StatusPending,
	)
	if err != nil {
		return fmt.Errorf("claim job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("claim rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("job %d: %w", id, ErrClaimConflict)
	}
	return nil
}

// MarkCompleted records the terminal success state.
func (s *Store) MarkCompleted(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execOne(ctx,
		`UPDATE jobs
        SET status = ?, progress = 100, progress_message = 'Completed',
            last_error = NULL, completed_at = ?, updated_at = ?
        WHERE id = ?`,
		StatusCompleted, now, now, id,
	); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}

// MarkFailed records the terminal failure state with the error message
// preserved verbatim.
func (s *Store) MarkFailed(ctx context.Context, id int64, message string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execOne(ctx,
		`UPDATE jobs
        SET status = ?, last_error = ?, progress_message = ?, completed_at = ?, updated_at = ?
        WHERE id = ?`,
		StatusFailed, message, message, now, now, id,
	); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// ResetToPending returns a single failed job to the queue. Attempts are
// preserved; the error message stays visible until the next claim clears it.
func (s *Store) ResetToPending(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs
        SET status = ?, completed_at = NULL, progress = 0,
            progress_message = 'Retry requested', updated_at = ?
        WHERE id = ? AND status = ?`,
		StatusPending, now, id, StatusFailed,
	)
	if err != nil {
		return fmt.Errorf("reset to pending: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reset rows affected: %w", err)
	}
	if affected == 0 {
		job, getErr := s.GetByID(ctx, id)
		if getErr == nil && job == nil {
			return fmt.Errorf("job %d: %w", id, ErrJobNotFound)
		}
		return fmt.Errorf("job %d: %w", id, ErrNotRetryable)
	}
	return nil
}

// RetryAllFailed moves every failed job back to pending. Decoupled from the
// poll loop so a failure storm cannot busy-loop the scheduler.
func (s *Store) RetryAllFailed(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs
        SET status = ?, completed_at = NULL, progress = 0,
            progress_message = 'Retry requested', updated_at = ?
        WHERE status = ?`,
		StatusPending, now, StatusFailed,
	)
	if err != nil {
		return 0, fmt.Errorf("retry failed jobs: %w", err)
	}
	return res.RowsAffected()
}

// UpdateProgress records stage progress for a running job.
func (s *Store) UpdateProgress(ctx context.Context, id int64, percent float64, message string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execOne(ctx,
		`UPDATE jobs SET progress = ?, progress_message = ?, updated_at = ? WHERE id = ?`,
		percent, message, now, id,
	); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// HasActiveJob reports whether the episode has a pending or running job.
func (s *Store) HasActiveJob(ctx context.Context, episodeGUID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM jobs WHERE episode_guid = ? AND status IN (?, ?)`,
		episodeGUID, StatusPending, StatusRunning,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check active job: %w", err)
	}
	return count > 0, nil
}

// ResetStuckRunning returns running jobs to pending. Called once at daemon
// startup: anything still marked running belonged to a previous process.
func (s *Store) ResetStuckRunning(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs
        SET status = ?, progress = 0, progress_message = 'Reset after restart',
            started_at = NULL, updated_at = ?
        WHERE status = ?`,
		StatusPending, now, StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	return res.RowsAffected()
}

// ListByStatus returns jobs matching a status ordered by creation time.
func (s *Store) ListByStatus(ctx context.Context, status Status) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY created_at`, status)
	if err != nil {
		return nil, fmt.Errorf("query by status: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Stats returns queue counts grouped into the public lifecycle buckets.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return Stats{}, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	var stats Stats
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, err
		}
		switch status {
		case StatusPending:
			stats.Waiting = count
		case StatusRunning:
			stats.Active = count
		case StatusCompleted:
			stats.Completed = count
		case StatusFailed:
			stats.Failed = count
		}
	}
	return stats, rows.Err()
}

// DeleteCompletedBefore removes completed jobs older than cutoff, skipping
// protected jobs. Returns the number of rows removed.
func (s *Store) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM jobs WHERE status = ? AND is_protected = 0 AND completed_at < ?`,
		StatusCompleted, cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("delete completed: %w", err)
	}
	return res.RowsAffected()
}
