// Package cache holds the shared entity state the resolution pipeline reads:
// the entity repository (primary and ghost tiers) and the guild lock table.
//
// # Ownership
//
// Both types are safe for concurrent readers across shards. Mutations that
// can make a deferred notification resolvable (Put* on the repository,
// Unlock on the lock table) notify subscribers synchronously on the calling
// goroutine; callers mutate from the owning shard's processing context so
// that the resulting replay runs under the shard's single-writer discipline.
// Other goroutines hand the change to the shard instead (engine.Shard).
//
// # Ghost tiers
//
// Ghost users and ghost private channels are entities known only
// indirectly. They live in TTL caches and silently expire; the primary
// tiers never expire and are changed only by explicit Put/Remove.
package cache
