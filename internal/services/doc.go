// Package services provides the shared error taxonomy and context plumbing
// used by pipeline stages and the external-service clients beneath them.
//
// Stage failures are classified by wrapping them with the exported sentinel
// errors; the scheduler preserves the resulting message verbatim in the job's
// last_error column. Context helpers let clients tag log lines with the job,
// episode, stage, and correlation ID without threading those values through
// every call signature.
package services
