// Package store provides the SQLite-backed outcome journal.
//
// The journal is an append-only audit of what the resolution pipeline did
// with each notification, plus the set of notifications still waiting on a
// missing dependency:
//   - Outcomes: one row per terminal outcome (blocked, dropped, deferred,
//     emitted), including outcomes of replays
//   - Pending deferrals: one row per queued replay, removed when the replay
//     runs or the entry is evicted
//
// # Critical Patterns
//
// Logical time only:
//   - All ordering uses the notification seq (per-shard logical clock),
//     never timestamps
//   - All queries use ORDER BY seq ASC, id ASC
//
// Minimal payloads:
//   - A pending deferral stores only the decoded notification, encoded as
//     deterministic CBOR (RFC 8949 core deterministic encoding)
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
