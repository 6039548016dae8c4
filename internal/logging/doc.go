// Package logging assembles the structured slog loggers shared across the
// daemon.
//
// It owns the console and JSON handlers, the standardized field names, and
// context-aware helpers so scheduler and pipeline code automatically tags log
// lines with job IDs, stages, and correlation IDs. A no-op logger is provided
// for tests and wiring code that cannot fail.
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits data with the same shape.
package logging
