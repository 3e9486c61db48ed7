//go:build integration

package main

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/driftboard/driftboard/internal/config"
	"github.com/driftboard/driftboard/internal/orchestrator"
	"github.com/driftboard/driftboard/internal/relay"
	"github.com/driftboard/driftboard/pkg/board"
	"github.com/driftboard/driftboard/pkg/client"
)

// setupRedis starts a Redis container for testing.
func setupRedis(t *testing.T) (*redis.Options, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cleanup := func() {
		if err := redisC.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	}

	return &redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())}, cleanup
}

var testAuth = config.AuthConfig{Tokens: map[string]config.TokenIdentity{
	"tok-alice": {UserID: "alice", Name: "Alice"},
	"tok-bob":   {UserID: "bob", Name: "Bob"},
}}

// serverProcess is one in-process boardd equivalent: store, orchestrator,
// hub, bridge and websocket endpoint.
type serverProcess struct {
	store *board.Client
	orch  *orchestrator.Orchestrator
	url   string
}

func startServerProcess(t *testing.T, ctx context.Context, opts *redis.Options, origin string) *serverProcess {
	store, err := board.NewClient(opts, "itest")
	if err != nil {
		t.Fatalf("Failed to create store client: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	log := zerolog.Nop()
	orch := orchestrator.New(store, store, origin+"/api", log)
	hub := relay.NewHub(log)
	srv := relay.NewServer(hub, config.NewTokenVerifier(testAuth), orch, store, origin, log)
	bridge := relay.NewBridge(store, hub, origin, log)
	go func() { _ = bridge.Run(ctx) }()

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	return &serverProcess{
		store: store,
		orch:  orch,
		url:   "ws" + strings.TrimPrefix(ts.URL, "http"),
	}
}

func startWatcher(t *testing.T, ctx context.Context, url, token, boardID string) chan *board.Envelope {
	events := make(chan *board.Envelope, 64)
	c, err := client.New(client.Options{
		URL:     url,
		Token:   token,
		OnEvent: func(env *board.Envelope) { events <- env },
	})
	if err != nil {
		t.Fatalf("Failed to create relay client: %v", err)
	}
	go func() { _ = c.Run(ctx) }()

	if err := c.Join(boardID); err != nil {
		t.Fatalf("Failed to join: %v", err)
	}
	deadline := time.After(5 * time.Second)
	for {
		select {
		case env := <-events:
			if env.Event == board.EventBoardJoined {
				return events
			}
		case <-time.After(200 * time.Millisecond):
			_ = c.Join(boardID)
		case <-deadline:
			t.Fatal("join confirmation not received")
		}
	}
}

func waitFor(t *testing.T, events chan *board.Envelope, name string) *board.Envelope {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case env := <-events:
			if env.Event == name {
				return env
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", name)
			return nil
		}
	}
}

// TestRelay_CrossProcessFanOut runs two server processes against one Redis:
// an event emitted on one reaches a room member connected to the other.
func TestRelay_CrossProcessFanOut(t *testing.T) {
	opts, cleanup := setupRedis(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	procA := startServerProcess(t, ctx, opts, "proc-a")
	procB := startServerProcess(t, ctx, opts, "proc-b")

	b, cols, err := procA.orch.CreateBoard(ctx, "alice", "Shared", "basic", nil)
	if err != nil {
		t.Fatalf("Failed to create board: %v", err)
	}
	if err := procA.orch.AddMember(ctx, b.ID, "bob", board.RoleMember); err != nil {
		t.Fatalf("Failed to add member: %v", err)
	}

	time.Sleep(500 * time.Millisecond) // let both bridges subscribe

	aliceEvents := startWatcher(t, ctx, procA.url, "tok-alice", b.ID)
	bobEvents := startWatcher(t, ctx, procB.url, "tok-bob", b.ID)

	// A mutation through the orchestrator reaches both rooms via the bridge.
	if _, err := procA.orch.CreateCard(ctx, b.ID, cols[0].ID, "", "Cross-process card", "alice", nil, nil); err != nil {
		t.Fatalf("Failed to create card: %v", err)
	}

	created := waitFor(t, bobEvents, board.EventCardCreated)
	if created.BoardID != b.ID {
		t.Errorf("Expected board %s, got %s", b.ID, created.BoardID)
	}
	waitFor(t, aliceEvents, board.EventCardCreated)
}

// TestRelay_SenderGetsNoEcho verifies enrichment and the no-echo rule with
// both peers on the same server process.
func TestRelay_SenderGetsNoEcho(t *testing.T) {
	opts, cleanup := setupRedis(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	proc := startServerProcess(t, ctx, opts, "proc-a")

	b, _, err := proc.orch.CreateBoard(ctx, "alice", "Echo test", "basic", nil)
	if err != nil {
		t.Fatalf("Failed to create board: %v", err)
	}
	if err := proc.orch.AddMember(ctx, b.ID, "bob", board.RoleMember); err != nil {
		t.Fatalf("Failed to add member: %v", err)
	}

	bobEvents := startWatcher(t, ctx, proc.url, "tok-bob", b.ID)

	senderEvents := make(chan *board.Envelope, 64)
	sender, err := client.New(client.Options{
		URL:     proc.url,
		Token:   "tok-alice",
		OnEvent: func(env *board.Envelope) { senderEvents <- env },
	})
	if err != nil {
		t.Fatalf("Failed to create sender client: %v", err)
	}
	go func() { _ = sender.Run(ctx) }()
	if err := sender.Join(b.ID); err != nil {
		t.Fatalf("Failed to join: %v", err)
	}
	deadline := time.After(5 * time.Second)
joined:
	for {
		select {
		case env := <-senderEvents:
			if env.Event == board.EventBoardJoined {
				break joined
			}
		case <-time.After(200 * time.Millisecond):
			_ = sender.Join(b.ID)
		case <-deadline:
			t.Fatal("join confirmation not received")
		}
	}

	if err := sender.Emit(board.EventCardMoved, b.ID, map[string]any{"cardId": "c1"}); err != nil {
		t.Fatalf("Failed to emit: %v", err)
	}

	moved := waitFor(t, bobEvents, board.EventCardMoved)
	if moved.SenderID != "alice" || moved.SenderName != "Alice" {
		t.Errorf("Expected enriched sender identity, got %q/%q", moved.SenderID, moved.SenderName)
	}
	if moved.SentAtMs == 0 {
		t.Error("Expected server timestamp on relayed event")
	}

	// The sender's own connection must not receive the echo.
	select {
	case env := <-senderEvents:
		if env.Event == board.EventCardMoved {
			t.Error("Sender received an echo of its own event")
		}
	case <-time.After(1 * time.Second):
	}
}

// TestRelay_JoinDeniedWithoutMembership verifies the access check rejects
// non-members with an explicit error event.
func TestRelay_JoinDeniedWithoutMembership(t *testing.T) {
	opts, cleanup := setupRedis(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	proc := startServerProcess(t, ctx, opts, "proc-a")

	b, _, err := proc.orch.CreateBoard(ctx, "alice", "Private", "basic", nil)
	if err != nil {
		t.Fatalf("Failed to create board: %v", err)
	}

	events := make(chan *board.Envelope, 16)
	c, err := client.New(client.Options{
		URL:     proc.url,
		Token:   "tok-bob", // valid credential, but not a board member
		OnEvent: func(env *board.Envelope) { events <- env },
	})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	go func() { _ = c.Run(ctx) }()

	time.Sleep(500 * time.Millisecond)
	if err := c.Join(b.ID); err != nil {
		t.Fatalf("Failed to send join: %v", err)
	}

	env := waitFor(t, events, board.EventError)
	if env.Payload == nil {
		t.Error("Expected error payload describing the rejection")
	}
}
