// Package store provides SQLite-backed durable storage for the offline agent.
//
// The store plays the role of the platform storage APIs:
//   - Cache snapshots: named key/value stores of fetched responses
//     (open-by-name, match, put, delete, list-names)
//   - Pending records: the append-only Pending-Write Store with
//     auto-increment ids
//   - Sync registrations: durable deferred-delivery triggers
//   - Vacations: the user's local history
//   - Agent state: lifecycle values such as the controlling version
//
// # Critical Patterns
//
// Idempotent deletes
//   - RemovePending, ClearSync and DeleteSnapshot never fail on absent rows
//   - Overlapping flushes may race on the same record safely
//
// Never-reused ids
//   - pending_records.id is AUTOINCREMENT, so a delivered id is never
//     handed out again
//
// Typed failures
//   - Storage failures surface as ir PersistenceError
//   - Absent cache entries surface as ir CacheMiss
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Snapshot deletion cascades to entries
package store
