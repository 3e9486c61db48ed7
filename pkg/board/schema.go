package board

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by instance name to
// enable multiple Driftboard instances to safely coexist on a single Redis
// server.
//
// Key pattern: driftboard:{instance_name}:{entity}:{uuid}
// Scope pattern: driftboard:{instance_name}:scope:{scope_key}
// Channel pattern: driftboard:{instance_name}:board_events

// Scope identifies one ordering sequence: the set of sibling entities that
// share a contiguous zero-based position range. Columns and swim lanes are
// scoped by board; cards are scoped by column or by column+lane pair.
type Scope string

// ColumnsScope returns the scope holding a board's columns.
func ColumnsScope(boardID string) Scope {
	return Scope(fmt.Sprintf("board/%s/columns", boardID))
}

// LanesScope returns the scope holding a board's swim lanes.
func LanesScope(boardID string) Scope {
	return Scope(fmt.Sprintf("board/%s/lanes", boardID))
}

// CardsScope returns the scope holding a column's cards. laneID is empty for
// cards outside any swim lane; a column on a board with lanes has one card
// scope per lane plus the laneless scope.
func CardsScope(columnID, laneID string) Scope {
	if laneID == "" {
		return Scope(fmt.Sprintf("column/%s", columnID))
	}
	return Scope(fmt.Sprintf("column/%s/lane/%s", columnID, laneID))
}

// BoardKey returns the Redis key for a board hash.
// Pattern: driftboard:{instance_name}:board:{board_id}
func BoardKey(instanceName, boardID string) string {
	return fmt.Sprintf("driftboard:%s:board:%s", instanceName, boardID)
}

// ColumnKey returns the Redis key for a column hash.
func ColumnKey(instanceName, columnID string) string {
	return fmt.Sprintf("driftboard:%s:column:%s", instanceName, columnID)
}

// SwimLaneKey returns the Redis key for a swim lane hash.
func SwimLaneKey(instanceName, laneID string) string {
	return fmt.Sprintf("driftboard:%s:swimlane:%s", instanceName, laneID)
}

// CardKey returns the Redis key for a card hash.
func CardKey(instanceName, cardID string) string {
	return fmt.Sprintf("driftboard:%s:card:%s", instanceName, cardID)
}

// MembersKey returns the Redis key for a board's membership hash.
// Stored as a hash of user_id -> member JSON.
func MembersKey(instanceName, boardID string) string {
	return fmt.Sprintf("driftboard:%s:board:%s:members", instanceName, boardID)
}

// ScopeKey returns the Redis key for a scope's ordering ZSET.
// Members are entity IDs; scores are zero-based positions.
func ScopeKey(instanceName string, scope Scope) string {
	return fmt.Sprintf("driftboard:%s:scope:%s", instanceName, scope)
}

// BoardEventsChannel returns the Pub/Sub channel name carrying every board
// event envelope for the instance. The relay bridge subscribes here to fan
// events out to rooms hosted on other server processes.
func BoardEventsChannel(instanceName string) string {
	return fmt.Sprintf("driftboard:%s:board_events", instanceName)
}
