package queue

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const jobColumns = "id, episode_guid, podcast_id, audio_url, reason, status, priority, attempts, is_protected, progress, progress_message, last_error, created_at, updated_at, started_at, completed_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id              int64
		episodeGUID     string
		podcastID       string
		audioURL        string
		reason          string
		statusStr       string
		priority        int
		attempts        int
		isProtected     int
		progress        sql.NullFloat64
		progressMessage sql.NullString
		lastError       sql.NullString
		createdRaw      string
		updatedRaw      string
		startedRaw      sql.NullString
		completedRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&episodeGUID,
		&podcastID,
		&audioURL,
		&reason,
		&statusStr,
		&priority,
		&attempts,
		&isProtected,
		&progress,
		&progressMessage,
		&lastError,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&completedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:              id,
		EpisodeGUID:     episodeGUID,
		PodcastID:       podcastID,
		AudioURL:        audioURL,
		Reason:          Reason(reason),
		Status:          Status(statusStr),
		Priority:        priority,
		Attempts:        attempts,
		Protected:       isProtected != 0,
		Progress:        progress.Float64,
		ProgressMessage: progressMessage.String,
		LastError:       lastError.String,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			job.StartedAt = &started
		}
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			job.CompletedAt = &completed
		}
	}
	return job, nil
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if parsed, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return parsed.UTC(), nil
	}
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, err
	}
	return parsed.UTC(), nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

// execOne runs a statement whose result row count is not checked.
func (s *Store) execOne(ctx context.Context, query string, args ...any) error {
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}
