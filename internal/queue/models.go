package queue

import (
	"strings"
	"time"

	"podscrub/internal/analysis"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Reason records what created a job.
type Reason string

const (
	ReasonBackground Reason = "background"
	ReasonManual     Reason = "manual"
)

var statusSet = map[Status]struct{}{
	StatusPending:   {},
	StatusRunning:   {},
	StatusCompleted: {},
	StatusFailed:    {},
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsActive reports whether the status still occupies the episode's single
// active-job slot.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusRunning
}

// Job is the unit of scheduled work: one episode to download, analyze, edit,
// and republish.
type Job struct {
	ID              int64
	EpisodeGUID     string
	PodcastID       string
	AudioURL        string
	Reason          Reason
	Status          Status
	Priority        int
	Attempts        int
	Protected       bool
	Progress        float64
	ProgressMessage string
	LastError       string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
}

// NewJob carries the caller-supplied fields for an enqueue.
type NewJob struct {
	EpisodeGUID string
	PodcastID   string
	AudioURL    string
	Priority    int
	Reason      Reason
	Protected   bool
}

// Stats aggregates queue counts per lifecycle state.
type Stats struct {
	Waiting   int
	Active    int
	Completed int
	Failed    int
}

// UsageRecord captures one LLM call attributed to a job. Cost is dollars.
type UsageRecord struct {
	JobID        int64
	Model        string
	Operation    string
	InputTokens  int
	OutputTokens int
	Cost         float64
	DurationMS   int64
}

// ProcessingResult is the immutable record of a successfully processed
// episode, created exactly once per completed job.
type ProcessingResult struct {
	JobID             int64
	PodcastID         string
	EpisodeID         string
	OriginalURL       string
	ProcessedURL      string
	OriginalDuration  float64
	ProcessedDuration float64
	AdsRemoved        int
	Chapters          []analysis.Chapter
	ProcessingCost    float64
	ProcessedAt       time.Time
}
