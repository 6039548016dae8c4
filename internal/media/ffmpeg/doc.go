// Package ffmpeg invokes the ffmpeg binary for stream-copy segment
// extraction and concatenation. All operations run under a hard timeout so a
// wedged subprocess cannot stall a job forever.
package ffmpeg
