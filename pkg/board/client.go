package board

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// scopeTxRetries bounds optimistic-lock retries when concurrent writers race
// on the same scope. Each retry re-reads the scope, so a loser never applies
// a stale view.
const scopeTxRetries = 5

// Client provides instance-scoped Redis operations for boards, their ordered
// entities and the board event channel. All keys and channels are
// automatically namespaced with the instance name. The client is thread-safe
// and can be used concurrently from multiple goroutines.
type Client struct {
	rdb          *redis.Client
	instanceName string
}

// NewClient creates a new store client for the specified instance.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - instanceName: Driftboard instance identifier (must not be empty)
//
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// PutBoard writes a board hash. Validates the board before writing.
// Idempotent: writing the same board twice is safe.
func (c *Client) PutBoard(ctx context.Context, b *Board) error {
	if err := b.Validate(); err != nil {
		return fmt.Errorf("invalid board: %w", err)
	}

	hash, err := BoardToHash(b)
	if err != nil {
		return fmt.Errorf("failed to serialize board: %w", err)
	}

	key := BoardKey(c.instanceName, b.ID)
	if err := c.rdb.HSet(ctx, key, hash).Err(); err != nil {
		return fmt.Errorf("failed to write board to Redis: %w", err)
	}

	return nil
}

// GetBoard retrieves a board by ID.
// Returns (nil, redis.Nil) if the board doesn't exist; use IsNotFound to check.
func (c *Client) GetBoard(ctx context.Context, boardID string) (*Board, error) {
	key := BoardKey(c.instanceName, boardID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read board from Redis: %w", err)
	}

	// HGetAll returns an empty map for non-existent keys
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	b, err := HashToBoard(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize board: %w", err)
	}

	return b, nil
}

// PutColumn writes a column hash. Validates the column before writing.
func (c *Client) PutColumn(ctx context.Context, col *Column) error {
	if err := col.Validate(); err != nil {
		return fmt.Errorf("invalid column: %w", err)
	}

	key := ColumnKey(c.instanceName, col.ID)
	if err := c.rdb.HSet(ctx, key, ColumnToHash(col)).Err(); err != nil {
		return fmt.Errorf("failed to write column to Redis: %w", err)
	}

	return nil
}

// GetColumn retrieves a column by ID. Position is not filled; read the
// board's column scope for ordering.
func (c *Client) GetColumn(ctx context.Context, columnID string) (*Column, error) {
	key := ColumnKey(c.instanceName, columnID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read column from Redis: %w", err)
	}
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	return HashToColumn(hashData), nil
}

// DeleteColumn removes a column hash. The caller is responsible for having
// already emptied and de-scoped the column.
func (c *Client) DeleteColumn(ctx context.Context, columnID string) error {
	key := ColumnKey(c.instanceName, columnID)
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete column from Redis: %w", err)
	}
	return nil
}

// PutSwimLane writes a swim lane hash. Validates the lane before writing.
func (c *Client) PutSwimLane(ctx context.Context, lane *SwimLane) error {
	if err := lane.Validate(); err != nil {
		return fmt.Errorf("invalid swim lane: %w", err)
	}

	key := SwimLaneKey(c.instanceName, lane.ID)
	if err := c.rdb.HSet(ctx, key, SwimLaneToHash(lane)).Err(); err != nil {
		return fmt.Errorf("failed to write swim lane to Redis: %w", err)
	}

	return nil
}

// GetSwimLane retrieves a swim lane by ID.
func (c *Client) GetSwimLane(ctx context.Context, laneID string) (*SwimLane, error) {
	key := SwimLaneKey(c.instanceName, laneID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read swim lane from Redis: %w", err)
	}
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	return HashToSwimLane(hashData), nil
}

// DeleteSwimLane removes a swim lane hash.
func (c *Client) DeleteSwimLane(ctx context.Context, laneID string) error {
	key := SwimLaneKey(c.instanceName, laneID)
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete swim lane from Redis: %w", err)
	}
	return nil
}

// PutCard writes a card hash. Validates the card before writing.
func (c *Client) PutCard(ctx context.Context, card *Card) error {
	if err := card.Validate(); err != nil {
		return fmt.Errorf("invalid card: %w", err)
	}

	hash, err := CardToHash(card)
	if err != nil {
		return fmt.Errorf("failed to serialize card: %w", err)
	}

	key := CardKey(c.instanceName, card.ID)
	if err := c.rdb.HSet(ctx, key, hash).Err(); err != nil {
		return fmt.Errorf("failed to write card to Redis: %w", err)
	}

	return nil
}

// GetCard retrieves a card by ID.
func (c *Client) GetCard(ctx context.Context, cardID string) (*Card, error) {
	key := CardKey(c.instanceName, cardID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read card from Redis: %w", err)
	}
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	card, err := HashToCard(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize card: %w", err)
	}

	return card, nil
}

// DeleteCard removes a card hash.
func (c *Client) DeleteCard(ctx context.Context, cardID string) error {
	key := CardKey(c.instanceName, cardID)
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete card from Redis: %w", err)
	}
	return nil
}

// PutMember records a user's membership of a board.
func (c *Client) PutMember(ctx context.Context, boardID string, m *Member) error {
	if err := m.Role.Validate(); err != nil {
		return fmt.Errorf("invalid member role: %w", err)
	}

	data, err := MemberToJSON(m)
	if err != nil {
		return err
	}

	key := MembersKey(c.instanceName, boardID)
	if err := c.rdb.HSet(ctx, key, m.UserID, data).Err(); err != nil {
		return fmt.Errorf("failed to write member to Redis: %w", err)
	}

	return nil
}

// GetMember retrieves a single board member.
// Returns (nil, redis.Nil) if the user is not a member.
func (c *Client) GetMember(ctx context.Context, boardID, userID string) (*Member, error) {
	key := MembersKey(c.instanceName, boardID)

	data, err := c.rdb.HGet(ctx, key, userID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, redis.Nil
		}
		return nil, fmt.Errorf("failed to read member from Redis: %w", err)
	}

	return JSONToMember(data)
}

// GetMembers retrieves all members of a board, keyed by user ID.
// Returns an empty map if the board has no members (not an error).
func (c *Client) GetMembers(ctx context.Context, boardID string) (map[string]*Member, error) {
	key := MembersKey(c.instanceName, boardID)

	raw, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read members from Redis: %w", err)
	}

	members := make(map[string]*Member, len(raw))
	for userID, data := range raw {
		m, err := JSONToMember(data)
		if err != nil {
			return nil, fmt.Errorf("corrupt member record for user %s: %w", userID, err)
		}
		members[userID] = m
	}

	return members, nil
}

// RemoveMember removes a user from a board's membership.
func (c *Client) RemoveMember(ctx context.Context, boardID, userID string) error {
	key := MembersKey(c.instanceName, boardID)
	if err := c.rdb.HDel(ctx, key, userID).Err(); err != nil {
		return fmt.Errorf("failed to remove member from Redis: %w", err)
	}
	return nil
}

// FindScope returns the ordered members of a scope as (id, position) stubs,
// sorted by position. Returns an empty slice for an unknown or empty scope.
func (c *Client) FindScope(ctx context.Context, scope Scope) ([]EntityStub, error) {
	key := ScopeKey(c.instanceName, scope)

	results, err := c.rdb.ZRangeWithScores(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read scope from Redis: %w", err)
	}

	stubs := make([]EntityStub, 0, len(results))
	for _, z := range results {
		stubs = append(stubs, EntityStub{
			ID:       z.Member.(string),
			Position: int(z.Score),
		})
	}

	return stubs, nil
}

// ScopeLen returns the number of entities in a scope.
func (c *Client) ScopeLen(ctx context.Context, scope Scope) (int, error) {
	key := ScopeKey(c.instanceName, scope)
	n, err := c.rdb.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count scope members: %w", err)
	}
	return int(n), nil
}

// WritePositions atomically replaces a scope's entire ordering with the given
// stubs. The DEL+ZADD pair runs inside one MULTI/EXEC block so no observer
// ever sees a partially rewritten scope.
func (c *Client) WritePositions(ctx context.Context, scope Scope, stubs []EntityStub) error {
	key := ScopeKey(c.instanceName, scope)

	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(stubs) > 0 {
			members := make([]redis.Z, len(stubs))
			for i, s := range stubs {
				members[i] = redis.Z{Score: float64(s.Position), Member: s.ID}
			}
			pipe.ZAdd(ctx, key, members...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write scope positions: %w", err)
	}

	return nil
}

// UpdateScope performs an optimistic read-modify-write of one scope's
// ordering under WATCH. The mutate function receives the scope's current
// stubs sorted by position and returns the full replacement ordering.
// Concurrent writers to the same scope serialize: a raced transaction is
// retried with a fresh read, so every applied mutation saw the latest state.
//
// Returning an error from mutate aborts the transaction with nothing written.
func (c *Client) UpdateScope(ctx context.Context, scope Scope, mutate func([]EntityStub) ([]EntityStub, error)) error {
	return c.UpdateScopes(ctx, []Scope{scope}, func(scopes map[Scope][]EntityStub) (map[Scope][]EntityStub, error) {
		out, err := mutate(scopes[scope])
		if err != nil {
			return nil, err
		}
		return map[Scope][]EntityStub{scope: out}, nil
	})
}

// UpdateScopes is the multi-scope variant of UpdateScope, used by cross-scope
// card moves so that the source and destination orderings change in a single
// transaction. All named scopes are watched; the mutate function returns the
// replacement ordering for each scope it wants rewritten (scopes absent from
// the returned map are left untouched).
func (c *Client) UpdateScopes(ctx context.Context, scopes []Scope, mutate func(map[Scope][]EntityStub) (map[Scope][]EntityStub, error)) error {
	if len(scopes) == 0 {
		return fmt.Errorf("no scopes given")
	}

	keys := make([]string, len(scopes))
	for i, s := range scopes {
		keys[i] = ScopeKey(c.instanceName, s)
	}

	txn := func(tx *redis.Tx) error {
		current := make(map[Scope][]EntityStub, len(scopes))
		for _, s := range scopes {
			results, err := tx.ZRangeWithScores(ctx, ScopeKey(c.instanceName, s), 0, -1).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return fmt.Errorf("failed to read scope %q: %w", s, err)
			}
			stubs := make([]EntityStub, 0, len(results))
			for _, z := range results {
				stubs = append(stubs, EntityStub{ID: z.Member.(string), Position: int(z.Score)})
			}
			current[s] = stubs
		}

		updated, err := mutate(current)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for s, stubs := range updated {
				key := ScopeKey(c.instanceName, s)
				pipe.Del(ctx, key)
				if len(stubs) > 0 {
					members := make([]redis.Z, len(stubs))
					for i, st := range stubs {
						members[i] = redis.Z{Score: float64(st.Position), Member: st.ID}
					}
					pipe.ZAdd(ctx, key, members...)
				}
			}
			return nil
		})
		return err
	}

	var err error
	for attempt := 0; attempt < scopeTxRetries; attempt++ {
		err = c.rdb.Watch(ctx, txn, keys...)
		if err == nil {
			return nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		// Raced with a concurrent writer on the same scope; retry with a fresh read.
	}

	return fmt.Errorf("scope transaction kept racing after %d attempts: %w", scopeTxRetries, err)
}

// PublishEvent publishes an event envelope to the instance's board event
// channel. The relay bridge on every server process subscribes here so rooms
// span processes.
func (c *Client) PublishEvent(ctx context.Context, env *Envelope) error {
	if err := env.Validate(); err != nil {
		return fmt.Errorf("invalid envelope: %w", err)
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	channel := BoardEventsChannel(c.instanceName)
	if err := c.rdb.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish board event: %w", err)
	}

	return nil
}

// EventSubscription represents an active Pub/Sub subscription to board
// events. Caller must call Close() when done to clean up resources.
type EventSubscription struct {
	events <-chan *Envelope
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of event envelopes.
// The channel will be closed when the subscription is closed or the context
// is cancelled.
func (s *EventSubscription) Events() <-chan *Envelope {
	return s.events
}

// Errors returns the channel of subscription errors.
// Errors include JSON unmarshaling failures and other non-fatal issues.
// The subscription continues after errors - messages are skipped.
func (s *EventSubscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *EventSubscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeBoardEvents subscribes to every board event published on this
// instance. Returns an EventSubscription that delivers full envelopes.
// Caller must call subscription.Close() when done.
// Context cancellation also stops the subscription.
//
// Events are delivered on a buffered channel (size 64) to prevent blocking.
// If the subscriber is too slow, events may be dropped by Redis Pub/Sub
// (at-most-once delivery).
func (c *Client) SubscribeBoardEvents(ctx context.Context) (*EventSubscription, error) {
	channel := BoardEventsChannel(c.instanceName)
	pubsub := c.rdb.Subscribe(ctx, channel)

	eventsChan := make(chan *Envelope, 64)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var env Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal board event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &env:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &EventSubscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// IsNotFound returns true if the error is a Redis "key not found" error
// (redis.Nil). Use this to check if GetBoard, GetCard, GetColumn, GetSwimLane
// or GetMember returned "not found".
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
