// Package board provides type-safe Go definitions and the Redis schema for
// the Driftboard ordering and synchronization engine.
//
// # Overview
//
// A board owns ordered columns, optional swim lanes and cards, plus a resolved
// agile configuration that gates which card fields and operations are legal.
// All Driftboard components (orchestrator, relay, CLI) interact through the
// data structures defined here, stored in Redis.
//
// # Core Concepts
//
// Scopes are the unit of ordering: the set of sibling entities sharing one
// contiguous, zero-based position sequence. Columns and swim lanes are scoped
// by board; cards are scoped by column or by column+lane pair. For any scope
// the member positions are exactly {0..n-1} between operations - no
// duplicates, no gaps.
//
// Each scope is stored as a Redis ZSET whose scores are positions. The ZSET
// is the single source of truth for ordering; entity hashes never carry a
// position, so an entity's position cannot drift from its scope.
//
// Scope mutations go through UpdateScope/UpdateScopes, which wrap the
// read-modify-write in WATCH + MULTI/EXEC. Concurrent operations against the
// same scope therefore serialize: every observer sees a strict sequence of
// complete operations. Operations against different scopes are independent.
//
// # Events
//
// Every state change is published as an Envelope on the instance's board
// event channel. The collaboration relay subscribes here so that rooms span
// server processes.
//
// # Multi-Instance Support
//
// All Redis keys and Pub/Sub channels are namespaced by instance name to
// enable multiple Driftboard instances to safely coexist on a single Redis
// server without interference.
//
// # Redis Schema
//
// All Redis keys follow the pattern: driftboard:{instance_name}:{entity}:{uuid}
//
//	Boards:     driftboard:{instance_name}:board:{board_id}
//	Members:    driftboard:{instance_name}:board:{board_id}:members
//	Columns:    driftboard:{instance_name}:column:{column_id}
//	Swim lanes: driftboard:{instance_name}:swimlane:{lane_id}
//	Cards:      driftboard:{instance_name}:card:{card_id}
//	Scopes:     driftboard:{instance_name}:scope:{scope_key}
//
// Pub/Sub channel: driftboard:{instance_name}:board_events
package board
