// Package relay authenticates real-time connections, manages board-scoped
// rooms and rebroadcasts state-change events to all other members of a room.
// The relay never validates or persists event payloads; it is a pure fan-out
// conduit scoped by board identity.
package relay

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/driftboard/driftboard/pkg/board"
)

// roomMember is the hub's view of a connection: an identity plus a
// non-blocking delivery attempt. Sessions implement it; tests substitute
// fakes.
type roomMember interface {
	ConnID() string
	Identity() board.Identity

	// TrySend attempts delivery without blocking and reports success.
	// Fan-out is best-effort per recipient: a slow member is skipped,
	// never allowed to stall the room.
	TrySend(env *board.Envelope) bool
}

// Hub owns every room membership table. Membership is mutated only here, in
// response to join/leave/disconnect; no other component may add or remove
// room members. Connection-to-boards state is indexed by connection id and
// cleared wholesale on disconnect.
type Hub struct {
	mu sync.RWMutex

	// rooms maps boardID -> connID -> member.
	rooms map[string]map[string]roomMember

	// memberships maps connID -> set of boardIDs, so an abrupt disconnect
	// can leave every room the connection belonged to.
	memberships map[string]map[string]bool

	log zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		rooms:       make(map[string]map[string]roomMember),
		memberships: make(map[string]map[string]bool),
		log:         log.With().Str("component", "relay-hub").Logger(),
	}
}

// Join adds a connection to a board's room. Idempotent for a connection
// already in the room.
func (h *Hub) Join(boardID string, m roomMember) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[boardID]
	if !ok {
		room = make(map[string]roomMember)
		h.rooms[boardID] = room
	}
	room[m.ConnID()] = m

	boards, ok := h.memberships[m.ConnID()]
	if !ok {
		boards = make(map[string]bool)
		h.memberships[m.ConnID()] = boards
	}
	boards[boardID] = true
}

// Leave removes a connection from one board's room. Reports whether the
// connection was a member.
func (h *Hub) Leave(boardID, connID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.leaveLocked(boardID, connID)
}

func (h *Hub) leaveLocked(boardID, connID string) bool {
	room, ok := h.rooms[boardID]
	if !ok {
		return false
	}
	if _, member := room[connID]; !member {
		return false
	}

	delete(room, connID)
	if len(room) == 0 {
		delete(h.rooms, boardID)
	}

	if boards, ok := h.memberships[connID]; ok {
		delete(boards, boardID)
		if len(boards) == 0 {
			delete(h.memberships, connID)
		}
	}
	return true
}

// LeaveAll removes a connection from every room it belongs to and returns
// the boards it left. Used on disconnect, graceful or abrupt.
func (h *Hub) LeaveAll(connID string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	boards := make([]string, 0, len(h.memberships[connID]))
	for boardID := range h.memberships[connID] {
		boards = append(boards, boardID)
	}
	for _, boardID := range boards {
		h.leaveLocked(boardID, connID)
	}
	return boards
}

// InRoom reports whether a connection is currently a member of a board's room.
func (h *Hub) InRoom(boardID, connID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[boardID][connID]
	return ok
}

// RoomSize returns the number of connections in a board's room.
func (h *Hub) RoomSize(boardID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[boardID])
}

// Broadcast delivers an envelope to every member of the board's room except
// the named connection. Pass an empty exceptConnID to reach the whole room.
// Delivery is best-effort per recipient: a member whose buffer is full is
// skipped with a warning and the rest of the room still receives the event.
func (h *Hub) Broadcast(boardID string, env *board.Envelope, exceptConnID string) {
	h.mu.RLock()
	members := make([]roomMember, 0, len(h.rooms[boardID]))
	for connID, m := range h.rooms[boardID] {
		if connID == exceptConnID {
			continue
		}
		members = append(members, m)
	}
	h.mu.RUnlock()

	for _, m := range members {
		if !m.TrySend(env) {
			h.log.Warn().
				Str("board_id", boardID).
				Str("conn_id", m.ConnID()).
				Str("event", env.Event).
				Msg("dropping event for slow connection")
		}
	}
}
