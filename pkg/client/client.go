// Package client provides a reconnecting Go client for the board relay
// websocket endpoint.
//
// The client maintains a single websocket connection, rejoins its board rooms
// after a reconnect, and delivers every received envelope to the OnEvent
// callback. Reconnection follows an exponential backoff policy with a capped
// delay and an attempt ceiling; once the ceiling is reached Run returns
// ErrReconnectExhausted and the client is permanently disconnected.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/driftboard/driftboard/pkg/board"
)

// ErrReconnectExhausted is returned by Run when the reconnection attempt
// ceiling has been reached without re-establishing a connection.
var ErrReconnectExhausted = errors.New("reconnect attempts exhausted")

// ErrNotConnected is returned by send operations while no connection is up.
var ErrNotConnected = errors.New("not connected")

// Options configures a Client.
type Options struct {
	// URL is the relay websocket endpoint, e.g. "ws://localhost:8720/ws".
	URL string

	// Token is the credential presented during the handshake.
	Token string

	// OnEvent receives every envelope delivered by the server. Called from
	// the read loop; the callback must not block.
	OnEvent func(*board.Envelope)

	// Backoff is the reconnection policy. Zero value means DefaultBackoff.
	Backoff Backoff

	// Logger for connection lifecycle events. Defaults to a no-op logger.
	Logger *zerolog.Logger

	// Dialer overrides the websocket dialer, mainly for tests.
	Dialer *websocket.Dialer
}

// Client is a relay websocket client. All methods are safe for concurrent
// use. A Client is not reusable after Run returns.
type Client struct {
	url     string
	token   string
	onEvent func(*board.Envelope)
	backoff Backoff
	dialer  *websocket.Dialer
	log     zerolog.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	joined  map[string]bool
	writeMu sync.Mutex
}

// New creates a client. The connection is established by Run.
func New(opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("client URL is required")
	}
	if opts.Token == "" {
		return nil, fmt.Errorf("client token is required")
	}

	backoff := opts.Backoff
	if backoff == (Backoff{}) {
		backoff = DefaultBackoff()
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	return &Client{
		url:     opts.URL,
		token:   opts.Token,
		onEvent: opts.OnEvent,
		backoff: backoff,
		dialer:  dialer,
		log:     log.With().Str("component", "relay-client").Logger(),
		joined:  make(map[string]bool),
	}, nil
}

// Run connects to the relay and processes events until the context is
// cancelled or the reconnection ceiling is reached. On every successful
// reconnect the client rejoins the boards it had joined before the drop.
func (c *Client) Run(ctx context.Context) error {
	attempt := 0
	for {
		if err := c.connect(ctx); err != nil {
			delay, retry := c.backoff.NextDelay(attempt)
			if !retry {
				return fmt.Errorf("%w after %d attempts: %v", ErrReconnectExhausted, attempt, err)
			}
			attempt++
			c.log.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("connection failed, retrying")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			continue
		}

		// Connected: the attempt counter resets so a later drop starts
		// its retries from scratch.
		attempt = 0
		c.log.Info().Str("url", c.url).Msg("connected to relay")
		c.rejoin()

		err := c.readLoop(ctx)
		c.teardown()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn().Err(err).Msg("connection lost")
	}
}

// Join requests membership in a board's room. The membership is remembered
// and re-requested automatically after a reconnect.
func (c *Client) Join(boardID string) error {
	c.mu.Lock()
	c.joined[boardID] = true
	c.mu.Unlock()

	return c.sendControl(board.EventBoardJoin, boardID)
}

// Leave exits a board's room and forgets the membership.
func (c *Client) Leave(boardID string) error {
	c.mu.Lock()
	delete(c.joined, boardID)
	c.mu.Unlock()

	return c.sendControl(board.EventBoardLeave, boardID)
}

// Emit sends an event to a board's room. The payload is JSON-encoded.
// The server fills in sender identity and timestamp.
func (c *Client) Emit(event, boardID string, payload any) error {
	env := &board.Envelope{Event: event, BoardID: boardID}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		env.Payload = raw
	}
	return c.send(env)
}

func (c *Client) sendControl(event, boardID string) error {
	err := c.send(&board.Envelope{Event: event, BoardID: boardID})
	if errors.Is(err, ErrNotConnected) {
		// Not fatal: the membership takes effect once Run connects.
		return nil
	}
	return err
}

func (c *Client) send(env *board.Envelope) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.WriteJSON(env); err != nil {
		return fmt.Errorf("failed to send %s: %w", env.Event, err)
	}
	return nil
}

func (c *Client) connect(ctx context.Context) error {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)

	conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("failed to dial %s (status %d): %w", c.url, resp.StatusCode, err)
		}
		return fmt.Errorf("failed to dial %s: %w", c.url, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return nil
}

func (c *Client) rejoin() {
	c.mu.Lock()
	boards := make([]string, 0, len(c.joined))
	for id := range c.joined {
		boards = append(boards, id)
	}
	c.mu.Unlock()

	for _, id := range boards {
		if err := c.sendControl(board.EventBoardJoin, id); err != nil {
			c.log.Warn().Err(err).Str("board_id", id).Msg("failed to rejoin board")
		}
	}
}

func (c *Client) readLoop(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	// Unblock the read when the context is cancelled.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		var env board.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return err
		}
		if c.onEvent != nil {
			c.onEvent(&env)
		}
	}
}

func (c *Client) teardown() {
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()
}
