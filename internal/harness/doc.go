// Package harness runs reaction-resolution scenarios against a real shard.
//
// A scenario seeds the entity caches and the guild lock table, then feeds
// an ordered list of steps through the engine: notifications, entity
// arrivals and lock transitions. Each notify step may carry an expectation
// on its outcome, and the scenario ends with assertions over the delivered
// events, the pending deferrals and the outcome journal.
//
// # Scenario Format
//
//	name: deferred_user_replay
//	description: "A reaction from an unknown user waits for the user"
//	session: scenario-session-1
//	setup:
//	  self_user: 1
//	  channels:
//	    - { id: 200, kind: text, guild_id: 100 }
//	steps:
//	  - notify:
//	      kind: MESSAGE_REACTION_ADD
//	      guild_id: 100
//	      channel_id: 200
//	      message_id: 300
//	      user_id: 400
//	      emoji: { name: "🔥" }
//	    expect: { status: deferred, key: "user:400" }
//	  - add_user: { id: 400, name: ada }
//	assertions:
//	  - type: events
//	    types: [GUILD_MESSAGE_REACTION_ADD, MESSAGE_REACTION_ADD]
//	  - type: pending
//	    count: 0
//
// Files are checked against an embedded CUE schema before they are decoded,
// so structural mistakes are reported with their position in the file.
//
// # Determinism
//
// Every run uses a fresh in-memory journal unless a store is supplied, a
// fixed session token (testutil.FixedSessionGenerator) and a deterministic
// sequence clock (testutil.DeterministicClock). The same scenario always
// produces the same trace, which golden files pin down.
package harness
