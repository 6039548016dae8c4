package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SaveResult persists the processing result for a completed job. One result
// per episode; re-running a retried job overwrites the previous row so the
// result always reflects the last successful pass.
func (s *Store) SaveResult(ctx context.Context, result *ProcessingResult) error {
	if result == nil {
		return errors.New("result is nil")
	}
	chaptersJSON, err := json.Marshal(result.Chapters)
	if err != nil {
		return fmt.Errorf("marshal chapters: %w", err)
	}
	processedAt := result.ProcessedAt
	if processedAt.IsZero() {
		processedAt = time.Now().UTC()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO processing_results (
            job_id, podcast_id, episode_id, original_url, processed_url,
            original_duration, processed_duration, ads_removed, chapters_json,
            processing_cost, processed_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(episode_id) DO UPDATE SET
            job_id = excluded.job_id,
            processed_url = excluded.processed_url,
            original_duration = excluded.original_duration,
            processed_duration = excluded.processed_duration,
            ads_removed = excluded.ads_removed,
            chapters_json = excluded.chapters_json,
            processing_cost = excluded.processing_cost,
            processed_at = excluded.processed_at`,
		result.JobID,
		result.PodcastID,
		result.EpisodeID,
		result.OriginalURL,
		result.ProcessedURL,
		result.OriginalDuration,
		result.ProcessedDuration,
		result.AdsRemoved,
		string(chaptersJSON),
		result.ProcessingCost,
		processedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

// GetResult returns the processing result for an episode, or nil when absent.
func (s *Store) GetResult(ctx context.Context, episodeID string) (*ProcessingResult, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT job_id, podcast_id, episode_id, original_url, processed_url,
            original_duration, processed_duration, ads_removed, chapters_json,
            processing_cost, processed_at
        FROM processing_results WHERE episode_id = ?`,
		episodeID,
	)

	var (
		result       ProcessingResult
		jobID        sql.NullInt64
		chaptersJSON sql.NullString
		processedRaw string
	)
	err := row.Scan(
		&jobID,
		&result.PodcastID,
		&result.EpisodeID,
		&result.OriginalURL,
		&result.ProcessedURL,
		&result.OriginalDuration,
		&result.ProcessedDuration,
		&result.AdsRemoved,
		&chaptersJSON,
		&result.ProcessingCost,
		&processedRaw,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get result: %w", err)
	}
	if jobID.Valid {
		result.JobID = jobID.Int64
	}
	if chaptersJSON.Valid && chaptersJSON.String != "" {
		if err := json.Unmarshal([]byte(chaptersJSON.String), &result.Chapters); err != nil {
			return nil, fmt.Errorf("decode chapters: %w", err)
		}
	}
	if processedAt, err := parseTimeString(processedRaw); err == nil {
		result.ProcessedAt = processedAt
	}
	return &result, nil
}

// HasResult reports whether an episode already has a processing result.
func (s *Store) HasResult(ctx context.Context, episodeID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM processing_results WHERE episode_id = ?`, episodeID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check result: %w", err)
	}
	return count > 0, nil
}
