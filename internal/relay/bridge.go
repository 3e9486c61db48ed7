package relay

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/driftboard/driftboard/pkg/board"
)

// EventSource is the subscription half of the store client the bridge needs.
type EventSource interface {
	SubscribeBoardEvents(ctx context.Context) (*board.EventSubscription, error)
}

// Bridge fans events published by other server processes (or by the
// orchestrator) into this process's rooms. Envelopes originating locally are
// skipped by origin, since the hub already delivered them.
type Bridge struct {
	source EventSource
	hub    *Hub
	origin string
	log    zerolog.Logger
}

// NewBridge creates a bridge for the given hub.
func NewBridge(source EventSource, hub *Hub, origin string, log zerolog.Logger) *Bridge {
	return &Bridge{
		source: source,
		hub:    hub,
		origin: origin,
		log:    log.With().Str("component", "relay-bridge").Logger(),
	}
}

// Run subscribes to the instance's board event channel and blocks until the
// context is cancelled. Subscription errors are non-fatal; processing
// continues.
func (b *Bridge) Run(ctx context.Context) error {
	sub, err := b.source.SubscribeBoardEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to board events: %w", err)
	}
	defer sub.Close()

	b.log.Info().Msg("bridge subscribed to board events")

	for {
		select {
		case <-ctx.Done():
			return nil

		case env, ok := <-sub.Events():
			if !ok {
				b.log.Info().Msg("event subscription closed")
				return nil
			}
			b.dispatch(env)

		case err, ok := <-sub.Errors():
			if !ok {
				return nil
			}
			b.log.Warn().Err(err).Msg("event subscription error")
		}
	}
}

// dispatch rebroadcasts a remote-origin envelope into the local room.
// The sender's own connection lives on the originating process, so no
// exception list is needed here.
func (b *Bridge) dispatch(env *board.Envelope) {
	if env.Origin == b.origin {
		return
	}
	if env.BoardID == "" {
		return
	}
	b.hub.Broadcast(env.BoardID, env, "")
}
