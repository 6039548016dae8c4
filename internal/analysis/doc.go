// Package analysis holds the detection and chapter types shared across the
// pipeline plus the pure interval-merge functions that reconcile them.
//
// Two independent detectors produce ad intervals for an episode: one from the
// audio signal, one from the transcript. MergeDetections deduplicates across
// the two sources and collapses overlapping or near-adjacent intervals into a
// sorted, non-overlapping list. MergeChapters collapses over-segmented
// chapters whose titles describe the same topic.
//
// Nothing in this package performs I/O; callers own persistence and
// subprocess concerns.
package analysis
