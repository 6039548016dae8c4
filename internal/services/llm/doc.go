// Package llm talks to an OpenRouter-compatible chat completion API for the
// two model passes: audio transcription with first-pass ad detection, and
// transcript-based refinement with chaptering. Requests retry with
// exponential backoff on transient HTTP failures and honor Retry-After.
package llm
