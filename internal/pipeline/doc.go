// Package pipeline runs the per-episode stage sequence: download the source
// audio, detect advertisements with an audio pass and a transcript-based
// refinement pass, merge the detections, generate chapters, cut the ads out
// of the audio, upload the processed audio and its artifacts, and persist the
// result. One orchestrator instance is shared by all worker slots; Process is
// safe for concurrent jobs.
package pipeline
