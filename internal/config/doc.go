// Package config loads, normalizes, and validates the TOML configuration for
// the podscrub daemon.
//
// Configuration sections by subsystem:
//   - Paths: working and log directories
//   - Scheduler: worker-pool concurrency and queue polling cadence
//   - Scanner: background feed discovery and the retention window
//   - FFmpeg: media tool binaries and subprocess deadlines
//   - LLM: detection/refinement model connection settings and the soft cost ceiling
//   - Storage: object storage for processed audio and artifacts
//   - Logging: log format and level
package config
