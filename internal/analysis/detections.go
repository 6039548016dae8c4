package analysis

import "strings"

// AdType classifies where in the episode an advertisement sits.
type AdType string

const (
	AdTypePreRoll  AdType = "pre-roll"
	AdTypeMidRoll  AdType = "mid-roll"
	AdTypePostRoll AdType = "post-roll"
	AdTypeEmbedded AdType = "embedded"
)

// DetectionSource identifies which detector produced an ad interval.
type DetectionSource string

const (
	SourceAudio DetectionSource = "audio"
	SourceText  DetectionSource = "text"
)

// AdDetection is a time interval flagged as advertisement content. Times are
// seconds from the start of the episode.
type AdDetection struct {
	StartTime   float64         `json:"start_time"`
	EndTime     float64         `json:"end_time"`
	Confidence  float64         `json:"confidence"`
	AdType      AdType          `json:"ad_type"`
	Description string          `json:"description,omitempty"`
	Source      DetectionSource `json:"source"`
}

// Duration returns the interval length in seconds.
func (d AdDetection) Duration() float64 {
	return d.EndTime - d.StartTime
}

// Overlap returns the length in seconds of the intersection with other, or 0
// when the intervals are disjoint.
func (d AdDetection) Overlap(other AdDetection) float64 {
	start := d.StartTime
	if other.StartTime > start {
		start = other.StartTime
	}
	end := d.EndTime
	if other.EndTime < end {
		end = other.EndTime
	}
	if end <= start {
		return 0
	}
	return end - start
}

// Chapter is a titled span of the episode. Chapters are non-overlapping after
// MergeChapters.
type Chapter struct {
	Title       string  `json:"title"`
	StartTime   float64 `json:"start_time"`
	EndTime     float64 `json:"end_time"`
	Description string  `json:"description,omitempty"`
}

// ParseAdType normalizes a detector-reported ad type, falling back to
// embedded when the value is unknown.
func ParseAdType(value string) AdType {
	switch AdType(strings.ToLower(strings.TrimSpace(value))) {
	case AdTypePreRoll:
		return AdTypePreRoll
	case AdTypeMidRoll:
		return AdTypeMidRoll
	case AdTypePostRoll:
		return AdTypePostRoll
	default:
		return AdTypeEmbedded
	}
}
