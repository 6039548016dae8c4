package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"podscrub/internal/analysis"
	"podscrub/internal/queue"
	"podscrub/internal/storage"
)

// artifactBundle is the JSON document uploaded alongside the processed audio
// so the detections and timings survive independently of the queue database.
type artifactBundle struct {
	JobID       int64                  `json:"job_id"`
	PodcastID   string                 `json:"podcast_id"`
	EpisodeGUID string                 `json:"episode_guid"`
	SourceURL   string                 `json:"source_url"`
	GeneratedAt time.Time              `json:"generated_at"`
	Detections  []analysis.AdDetection `json:"detections"`
	Chapters    []analysis.Chapter     `json:"chapters"`
	StageTimes  []stageTime            `json:"stage_times"`
}

type stageTime struct {
	Stage   string  `json:"stage"`
	Seconds float64 `json:"seconds"`
}

func (o *Orchestrator) uploadArtifacts(ctx context.Context, job *queue.Job, workDir, transcript string, detections []analysis.AdDetection, chapters []analysis.Chapter, timings *stageTimings) error {
	bundle := artifactBundle{
		JobID:       job.ID,
		PodcastID:   job.PodcastID,
		EpisodeGUID: job.EpisodeGUID,
		SourceURL:   job.AudioURL,
		GeneratedAt: time.Now().UTC(),
		Detections:  detections,
		Chapters:    chapters,
		StageTimes:  timings.snapshot(),
	}
	encoded, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return fmt.Errorf("encode artifact bundle: %w", err)
	}

	bundlePath := filepath.Join(workDir, "artifacts.json")
	if err := os.WriteFile(bundlePath, encoded, 0o644); err != nil {
		return fmt.Errorf("write artifact bundle: %w", err)
	}
	key := storage.ObjectKey(job.PodcastID, job.EpisodeGUID, "artifacts.json")
	if _, err := o.uploader.UploadFromFile(ctx, key, bundlePath); err != nil {
		return err
	}

	if strings.TrimSpace(transcript) != "" {
		key = storage.ObjectKey(job.PodcastID, job.EpisodeGUID, "transcript.txt")
		if _, err := o.uploader.Upload(ctx, key, strings.NewReader(transcript), "text/plain; charset=utf-8"); err != nil {
			return err
		}
	}
	return nil
}

// stageTimings accumulates wall-clock durations per stage.
type stageTimings struct {
	mu    sync.Mutex
	spent map[string]time.Duration
}

func newStageTimings() *stageTimings {
	return &stageTimings{spent: make(map[string]time.Duration)}
}

// begin starts timing a stage and returns the function that stops it.
func (t *stageTimings) begin(stage string) func() {
	start := time.Now()
	return func() {
		t.mu.Lock()
		t.spent[stage] += time.Since(start)
		t.mu.Unlock()
	}
}

func (t *stageTimings) snapshot() []stageTime {
	t.mu.Lock()
	defer t.mu.Unlock()
	times := make([]stageTime, 0, len(t.spent))
	for stage, spent := range t.spent {
		times = append(times, stageTime{Stage: stage, Seconds: spent.Seconds()})
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Stage < times[j].Stage })
	return times
}
