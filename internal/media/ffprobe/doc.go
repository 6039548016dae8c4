// Package ffprobe wraps the ffprobe command-line tool for inspecting episode
// audio before and after editing.
package ffprobe
