// Package queue persists jobs, processing results, and the LLM usage ledger
// in SQLite and exposes the lifecycle operations the scheduler needs.
//
// The Store manages the database connection, schema initialization, the
// atomic pending-to-running claim, terminal transitions, retry resets, and
// stats queries. A claim is a conditional row update, so the single-owner
// guarantee holds even with multiple pollers against the same database.
//
// The database is transient storage for in-flight work plus the per-episode
// results index; schema changes bump the version in schema.go and users clear
// the database to adopt the new schema.
package queue
