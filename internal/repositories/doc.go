// Package repositories implements SQLite persistence for the run history.
//
// [RunRepository] handles CRUD operations on saved reports with atomic sequence generation for
// human-readable ordering. Runs are soft deleted via deleted_at timestamps and excluded from queries.
//
// Sequence numbers provide stable, human-readable ordering (e.g. run #3) independent of UUIDs and
// creation timestamps. The [NextSequence] function atomically increments per-table sequence counters
// in dedicated sequence tables.
package repositories
