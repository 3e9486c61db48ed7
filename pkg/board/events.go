package board

import (
	"encoding/json"
	"fmt"
)

// Real-time event names exchanged over the collaboration relay.
//
// Inbound events are received from a client connection; outbound events are
// delivered to room members. The six mutation events and the typing indicator
// are relayed verbatim to every other member of the board's room, enriched
// with the sender's identity and a server timestamp.
const (
	// Inbound control events
	EventBoardJoin  = "board:join"
	EventBoardLeave = "board:leave"

	// Outbound control events
	EventBoardJoined = "board:joined" // Confirmation to the joining connection
	EventUserJoined  = "user:joined"  // To the rest of the room on join
	EventUserLeft    = "user:left"    // To the rest of the room on leave/disconnect
	EventError       = "error"        // Explicit rejection of a failed request

	// Server-originated notification that a board's settings or structure
	// changed outside the card/column events (config edit, template upgrade).
	EventBoardUpdated = "board:updated"

	// Relayed events (inbound and outbound under the same name)
	EventCardMoved       = "card:moved"
	EventCardUpdated     = "card:updated"
	EventCardCreated     = "card:created"
	EventCardDeleted     = "card:deleted"
	EventColumnReordered = "column:reordered"
	EventUserTyping      = "user:typing"
)

// RelayableEvent reports whether the event name is one of the state-change or
// typing events that the relay fans out verbatim. Control events (join/leave)
// are handled by the relay itself and are not relayable payloads.
func RelayableEvent(event string) bool {
	switch event {
	case EventCardMoved, EventCardUpdated, EventCardCreated, EventCardDeleted,
		EventColumnReordered, EventUserTyping:
		return true
	default:
		return false
	}
}

// Envelope is the wire format of every relay message, inbound and outbound.
// The relay does not interpret Payload; it is an opaque document owned by the
// originating client (or by the orchestrator for server-initiated broadcasts).
type Envelope struct {
	Event      string          `json:"event"`
	BoardID    string          `json:"board_id,omitempty"`
	SenderID   string          `json:"sender_id,omitempty"`   // Set by the server, never trusted from clients
	SenderName string          `json:"sender_name,omitempty"` // Set by the server
	Origin     string          `json:"origin,omitempty"`      // Originating server process; used for bridge dedup
	SentAtMs   int64           `json:"sent_at_ms,omitempty"`  // Server timestamp, set at broadcast time
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// Validate checks the envelope's structural fields. Board-scoped events must
// carry a valid board UUID.
func (e *Envelope) Validate() error {
	if e.Event == "" {
		return fmt.Errorf("envelope event cannot be empty")
	}
	if e.BoardID == "" {
		return fmt.Errorf("envelope board_id cannot be empty for event %q", e.Event)
	}
	if !isValidUUID(e.BoardID) {
		return fmt.Errorf("invalid board_id: not a valid UUID")
	}
	return nil
}
