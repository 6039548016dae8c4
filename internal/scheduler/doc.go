// Package scheduler drives queue processing: a fixed-interval poll loop
// claims pending jobs through the store's conditional pending-to-running
// transition and runs each on its own goroutine, bounded by a weighted
// semaphore sized to the configured concurrency. Failed jobs stay failed
// until an explicit retry resets them.
package scheduler
