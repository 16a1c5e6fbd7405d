// Package store persists finished run summaries in SQLite.
//
// Session state is never stored; only the immutable RunSummary produced at
// the end of a run is, so past runs against a target can be compared.
//
// # Tables
//
//   - runs: one row per run, keyed by the UUIDv7 run id
//   - suite_results: one row per suite, ordered by position within the run
//
// Check records are kept as a JSON array on their suite row.
//
// # Ordering
//
// Listings are ordered by started_at DESC, id DESC. UUIDv7 ids sort by
// creation time, so the id breaks ties between runs started in the same
// instant.
//
// # Connections and migrations
//
// Every connection opens with WAL journaling, synchronous=NORMAL, a 5 second
// busy timeout, and foreign keys on, set through the driver's DSN parameters.
// schema.sql creates missing tables; later layout changes are numbered steps
// in the migrations list, tracked in PRAGMA user_version.
package store
