// Package engine implements the gatewire event resolution pipeline.
//
// One raw, already decoded gateway notification goes in; zero or more fully
// resolved domain events come out. A notification is never half applied:
// it is Blocked by a guild mid bring-up, Dropped, Deferred until a missing
// entity arrives, or Emitted as a complete event pair.
//
// ARCHITECTURE:
//
// Single-Writer Shard Loop:
// Each gateway connection shard processes its notifications in one
// goroutine (Shard.Run). Replays triggered by a newly available entity run
// synchronously on that goroutine, before the work that made the entity
// available continues. Other goroutines hand work to the loop with the
// Shard's Submit methods.
//
// Notification Processing Flow:
//  1. Router checks the guild lock (Blocked, buffered by the shard)
//  2. Validation drops malformed references
//  3. Resolver looks the user, channel and emote up in the repository
//  4. A missing entity defers the notification under (kind, id)
//  5. The Reaction is built once and shared by the audience-specific and
//     generic events, delivered in that order through the Emitter
//
// Every outcome is counted and, with a journal attached, written to the
// store. Journal faults are logged and never change routing.
//
// Deferral bounds: per-key cap, TTL sweep, a replay guard against
// re-deferring under the same key, and a per-chain deferral quota.
package engine
