package analysis

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// chapterGapSeconds is the largest gap between two chapters that still allows
// them to be merged when their titles describe the same topic.
const chapterGapSeconds = 30.0

// MergeChapters collapses over-segmented chapters. Two adjacent chapters are
// merged when the gap between them is within the threshold and one normalized
// title contains the other. The earlier title wins, the end time extends to
// the later chapter, and the first non-empty description is kept.
func MergeChapters(chapters []Chapter) []Chapter {
	if len(chapters) == 0 {
		return nil
	}

	sorted := make([]Chapter, len(chapters))
	copy(sorted, chapters)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartTime < sorted[j].StartTime
	})

	merged := make([]Chapter, 0, len(sorted))
	current := sorted[0]
	for _, next := range sorted[1:] {
		gap := next.StartTime - current.EndTime
		if gap <= chapterGapSeconds && titlesSimilar(current.Title, next.Title) {
			if next.EndTime > current.EndTime {
				current.EndTime = next.EndTime
			}
			if current.Description == "" {
				current.Description = next.Description
			}
			continue
		}
		merged = append(merged, current)
		current = next
	}
	merged = append(merged, current)
	return merged
}

func titlesSimilar(a, b string) bool {
	na := normalizeTitle(a)
	nb := normalizeTitle(b)
	if na == "" || nb == "" {
		return false
	}
	return strings.Contains(na, nb) || strings.Contains(nb, na)
}

var titleNormalizer = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	runes.Remove(runes.In(unicode.Punct)),
	norm.NFC,
)

// normalizeTitle strips diacritics and punctuation, lowercases, and collapses
// whitespace so containment checks compare topic words only.
func normalizeTitle(title string) string {
	cleaned, _, err := transform.String(titleNormalizer, title)
	if err != nil {
		cleaned = title
	}
	return strings.Join(strings.Fields(strings.ToLower(cleaned)), " ")
}
