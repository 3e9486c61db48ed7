package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/driftboard/driftboard/pkg/board"
)

const (
	// writeWait bounds a single write to a peer.
	writeWait = 10 * time.Second

	// pongWait is how long we wait for a pong before declaring the peer gone.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageBytes bounds inbound frames. Payloads are opaque but not unbounded.
	maxMessageBytes = 64 * 1024

	// sendBufferSize is the per-connection outbound queue. A member that
	// falls further behind than this starts losing events (best-effort
	// fan-out) rather than stalling the room.
	sendBufferSize = 64
)

// CredentialVerifier checks a caller-supplied credential and resolves it to
// an identity. External collaborator contract; the daemon wires a token-map
// implementation, tests wire fakes.
type CredentialVerifier interface {
	VerifyCredential(ctx context.Context, token string) (*board.Identity, error)
}

// AccessChecker reports whether an identity may use a board at the given
// minimum role.
type AccessChecker interface {
	HasBoardAccess(ctx context.Context, identity *board.Identity, boardID string, min board.Role) (bool, error)
}

// Publisher forwards an envelope to the instance-wide event channel so rooms
// hosted by other server processes see it. Implemented by *board.Client.
type Publisher interface {
	PublishEvent(ctx context.Context, env *board.Envelope) error
}

// Session is one authenticated relay connection. It owns the websocket read
// and write pumps; room membership lives in the hub.
type Session struct {
	id       string
	identity board.Identity

	hub       *Hub
	access    AccessChecker
	publisher Publisher
	origin    string

	conn *websocket.Conn
	send chan *board.Envelope

	state     State
	stateMu   sync.Mutex
	closeOnce sync.Once

	log zerolog.Logger
}

func newSession(conn *websocket.Conn, identity board.Identity, hub *Hub, access AccessChecker, publisher Publisher, origin string, log zerolog.Logger) *Session {
	id := uuid.New().String()
	return &Session{
		id:        id,
		identity:  identity,
		hub:       hub,
		access:    access,
		publisher: publisher,
		origin:    origin,
		conn:      conn,
		send:      make(chan *board.Envelope, sendBufferSize),
		state:     StateAuthenticated,
		log: log.With().
			Str("component", "relay-session").
			Str("conn_id", id).
			Str("user_id", identity.UserID).
			Logger(),
	}
}

// ConnID implements roomMember.
func (s *Session) ConnID() string { return s.id }

// Identity implements roomMember.
func (s *Session) Identity() board.Identity { return s.identity }

// TrySend implements roomMember: a non-blocking enqueue onto the write pump.
// Held under the state lock so a concurrent broadcast can never race the
// channel close on session teardown.
func (s *Session) TrySend(env *board.Envelope) bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.state == StateClosed {
		return false
	}
	select {
	case s.send <- env:
		return true
	default:
		return false
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

func (s *Session) transitionTo(newState State) error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if err := s.state.validateTransitionTo(newState); err != nil {
		return err
	}
	s.state = newState
	return nil
}

// run drives the session until the connection drops or the context ends.
// On exit the session is removed from every room it joined, and user:left is
// emitted for each of them - abrupt disconnects included.
func (s *Session) run(ctx context.Context) {
	go s.writePump()
	s.readPump(ctx)

	if err := s.transitionTo(StateClosed); err != nil {
		s.log.Error().Err(err).Msg("session close transition")
	}

	boards := s.hub.LeaveAll(s.id)
	for _, boardID := range boards {
		left := s.controlEnvelope(board.EventUserLeft, boardID)
		s.hub.Broadcast(boardID, left, s.id)
		s.publish(ctx, left)
	}

	s.closeOnce.Do(func() {
		s.stateMu.Lock()
		close(s.send)
		s.stateMu.Unlock()
	})
	s.log.Debug().Int("rooms_left", len(boards)).Msg("session closed")
}

// readPump consumes inbound envelopes until error or disconnect.
// A malformed payload terminates only this connection, never the room.
func (s *Session) readPump(ctx context.Context) {
	s.conn.SetReadLimit(maxMessageBytes)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug().Err(err).Msg("connection dropped")
			}
			return
		}

		var env board.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.log.Warn().Err(err).Msg("malformed envelope; closing connection")
			return
		}

		if err := s.handleEnvelope(ctx, &env); err != nil {
			s.sendError(env.Event, err)
		}
	}
}

// writePump serializes all outbound traffic for the connection.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer s.conn.Close()

	for {
		select {
		case env, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := s.conn.WriteJSON(env); err != nil {
				return
			}

		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleEnvelope dispatches one inbound event.
func (s *Session) handleEnvelope(ctx context.Context, env *board.Envelope) error {
	if err := env.Validate(); err != nil {
		return err
	}

	switch env.Event {
	case board.EventBoardJoin:
		return s.handleJoin(ctx, env.BoardID)

	case board.EventBoardLeave:
		return s.handleLeave(ctx, env.BoardID)

	default:
		if !board.RelayableEvent(env.Event) {
			return fmt.Errorf("unsupported event %q", env.Event)
		}
		return s.relay(ctx, env)
	}
}

// handleJoin checks board access and, on success, adds the connection to the
// room, confirms to the caller and announces the join to everyone else.
// Insufficient access is an explicit rejection, never a silent hang.
func (s *Session) handleJoin(ctx context.Context, boardID string) error {
	ok, err := s.access.HasBoardAccess(ctx, &s.identity, boardID, board.RoleViewer)
	if err != nil {
		return fmt.Errorf("access check failed: %w", err)
	}
	if !ok {
		return &board.AccessDeniedError{UserID: s.identity.UserID, BoardID: boardID, Required: board.RoleViewer}
	}

	s.hub.Join(boardID, s)

	s.TrySend(s.controlEnvelope(board.EventBoardJoined, boardID))

	joined := s.controlEnvelope(board.EventUserJoined, boardID)
	s.hub.Broadcast(boardID, joined, s.id)
	s.publish(ctx, joined)

	s.log.Info().Str("board_id", boardID).Msg("joined board room")
	return nil
}

func (s *Session) handleLeave(ctx context.Context, boardID string) error {
	if !s.hub.Leave(boardID, s.id) {
		return fmt.Errorf("not a member of board %s", boardID)
	}

	left := s.controlEnvelope(board.EventUserLeft, boardID)
	s.hub.Broadcast(boardID, left, s.id)
	s.publish(ctx, left)
	return nil
}

// relay enriches a state-change or typing event with the sender's identity
// and a server timestamp, then fans it out to every other room member. The
// payload itself is rebroadcast verbatim.
func (s *Session) relay(ctx context.Context, env *board.Envelope) error {
	if !s.hub.InRoom(env.BoardID, s.id) {
		return fmt.Errorf("not a member of board %s", env.BoardID)
	}

	out := &board.Envelope{
		Event:      env.Event,
		BoardID:    env.BoardID,
		SenderID:   s.identity.UserID,
		SenderName: s.identity.Name,
		Origin:     s.origin,
		SentAtMs:   time.Now().UnixMilli(),
		Payload:    env.Payload,
	}

	s.hub.Broadcast(env.BoardID, out, s.id)
	s.publish(ctx, out)
	return nil
}

// controlEnvelope builds a server-originated envelope carrying this session's
// identity.
func (s *Session) controlEnvelope(event, boardID string) *board.Envelope {
	return &board.Envelope{
		Event:      event,
		BoardID:    boardID,
		SenderID:   s.identity.UserID,
		SenderName: s.identity.Name,
		Origin:     s.origin,
		SentAtMs:   time.Now().UnixMilli(),
	}
}

// publish forwards an envelope to the cross-instance channel. Best-effort:
// local fan-out already happened, so a publish failure is logged, not fatal.
func (s *Session) publish(ctx context.Context, env *board.Envelope) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEvent(ctx, env); err != nil {
		s.log.Warn().Err(err).Str("event", env.Event).Msg("failed to publish event for cross-instance fan-out")
	}
}

// sendError delivers an explicit rejection for a failed request.
func (s *Session) sendError(requestEvent string, cause error) {
	payload, _ := json.Marshal(map[string]string{
		"request": requestEvent,
		"message": cause.Error(),
	})
	s.TrySend(&board.Envelope{
		Event:    board.EventError,
		SentAtMs: time.Now().UnixMilli(),
		Payload:  payload,
	})
}
