// Package store provides SQLite-backed storage for schema objects.
//
// Every registered schema gets its own table:
//
//	obj_<Schema>(id TEXT PRIMARY KEY, version INTEGER, <indexed columns>, body BLOB)
//
// The body holds the full object data encoded with msgpack and compressed
// with zstd. Indexed fields are duplicated into typed columns so filters
// can be pushed down to SQLite.
//
// # Filtering
//
// Filter binds the expression, normalises it to disjunctive normal form
// and runs one query per term. Each term is split into pushed-down column
// predicates and a residual expression evaluated against the decoded
// row. Results are the union of all terms, de-duplicated by id and
// ordered by id. An expression whose normal form exceeds the term limit
// is rejected before any query runs.
//
// # Changes
//
// Every write is stamped with the next sequence number and appended to the
// changes table in the same transaction. A number is only consumed once its
// transaction commits, so the log has no gaps. After commit the change is
// passed to every registered ChangeHandler.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait up to 5s for locks
//   - Single connection: one writer at a time
//
// # Deterministic Ordering
//
// All queries order by id COLLATE BINARY ASC, or seq ASC for the change
// log, so results never depend on insertion timing.
package store
