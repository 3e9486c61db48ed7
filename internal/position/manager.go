// Package position maintains strict, gap-free positional ordering for any
// scoped collection: cards in a column, columns in a board, swim lanes in a
// board. For every scope the member positions are exactly {0..n-1} between
// operations.
//
// The manager specifies the ordering algorithm only; scope-level isolation is
// the store's concern. Every mutation runs inside the store's scope
// transaction, so insert/remove/reorder against the same scope never
// interleave partially, while operations on different scopes proceed
// independently.
package position

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/driftboard/driftboard/pkg/board"
)

// ErrNotInScope is returned when an operation names an entity that is not a
// member of the given scope.
var ErrNotInScope = errors.New("entity not in scope")

// Store is the durable ordering storage the manager drives. Implemented by
// *board.Client; mutate callbacks receive the scope's current members sorted
// by position and return the full replacement ordering. The store guarantees
// that concurrent mutations of the same scope serialize.
type Store interface {
	FindScope(ctx context.Context, scope board.Scope) ([]board.EntityStub, error)
	UpdateScope(ctx context.Context, scope board.Scope, mutate func([]board.EntityStub) ([]board.EntityStub, error)) error
	UpdateScopes(ctx context.Context, scopes []board.Scope, mutate func(map[board.Scope][]board.EntityStub) (map[board.Scope][]board.EntityStub, error)) error
}

// Manager applies ordering operations to scopes.
type Manager struct {
	store Store
}

// NewManager creates a position manager over the given store.
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Insert places a new entity into a scope and returns its assigned position.
// With no requested position the entity is appended. A requested position is
// clamped into [0, len]; entities at or after the slot shift up by one.
// When two operations race for the same slot, whichever the store applies
// last wins the exact slot and the earlier one ends up immediately after it.
func (m *Manager) Insert(ctx context.Context, scope board.Scope, entityID string, requested *int) (int, error) {
	var assigned int

	err := m.store.UpdateScope(ctx, scope, func(stubs []board.EntityStub) ([]board.EntityStub, error) {
		ids := idsInOrder(stubs)
		for _, id := range ids {
			if id == entityID {
				return nil, fmt.Errorf("entity %s already in scope %q", entityID, scope)
			}
		}

		pos := len(ids)
		if requested != nil {
			pos = clamp(*requested, 0, len(ids))
		}

		ids = append(ids, "")
		copy(ids[pos+1:], ids[pos:])
		ids[pos] = entityID
		assigned = pos

		return renumber(ids), nil
	})
	if err != nil {
		return 0, err
	}

	return assigned, nil
}

// Reorder atomically rewrites every position in a scope according to the
// given permutation. The permutation must be a bijection over exactly the
// scope's current member set; otherwise an IncompleteReorderError is returned
// and nothing is mutated. This is the only operation that may legally rewrite
// every position in a scope at once.
func (m *Manager) Reorder(ctx context.Context, scope board.Scope, orderedIDs []string) error {
	return m.store.UpdateScope(ctx, scope, func(stubs []board.EntityStub) ([]board.EntityStub, error) {
		current := make(map[string]bool, len(stubs))
		for _, s := range stubs {
			current[s.ID] = true
		}

		proposed := make(map[string]bool, len(orderedIDs))
		var unexpected []string
		for _, id := range orderedIDs {
			if proposed[id] {
				// A duplicated id means some scope member is necessarily missing.
				unexpected = append(unexpected, id)
				continue
			}
			proposed[id] = true
			if !current[id] {
				unexpected = append(unexpected, id)
			}
		}

		var missing []string
		for _, s := range stubs {
			if !proposed[s.ID] {
				missing = append(missing, s.ID)
			}
		}
		sort.Strings(missing)

		if len(missing) > 0 || len(unexpected) > 0 || len(orderedIDs) != len(stubs) {
			return nil, &board.IncompleteReorderError{
				Scope:      scope,
				Missing:    missing,
				Unexpected: unexpected,
			}
		}

		return renumber(append([]string(nil), orderedIDs...)), nil
	})
}

// Remove deletes an entity from a scope and closes the gap: every remaining
// entity whose position exceeded the removed one shifts down by one.
// Dependent checks (a column still holding cards) are the orchestrator's
// concern; the manager only maintains the ordering invariant.
func (m *Manager) Remove(ctx context.Context, scope board.Scope, entityID string) error {
	return m.store.UpdateScope(ctx, scope, func(stubs []board.EntityStub) ([]board.EntityStub, error) {
		ids := idsInOrder(stubs)
		out := ids[:0]
		found := false
		for _, id := range ids {
			if id == entityID {
				found = true
				continue
			}
			out = append(out, id)
		}
		if !found {
			return nil, fmt.Errorf("remove from scope %q: %w: %s", scope, ErrNotInScope, entityID)
		}

		return renumber(out), nil
	})
}

// Move relocates an entity from one scope to another (which may be the same
// scope, producing an in-scope reorder of one item) and returns its assigned
// position in the destination. Cross-scope moves rewrite both orderings in a
// single store transaction so neither scope ever shows a duplicate or a gap.
func (m *Manager) Move(ctx context.Context, fromScope, toScope board.Scope, entityID string, requested *int) (int, error) {
	if fromScope == toScope {
		return m.moveWithin(ctx, fromScope, entityID, requested)
	}

	var assigned int
	err := m.store.UpdateScopes(ctx, []board.Scope{fromScope, toScope},
		func(scopes map[board.Scope][]board.EntityStub) (map[board.Scope][]board.EntityStub, error) {
			src := idsInOrder(scopes[fromScope])
			out := src[:0]
			found := false
			for _, id := range src {
				if id == entityID {
					found = true
					continue
				}
				out = append(out, id)
			}
			if !found {
				return nil, fmt.Errorf("move from scope %q: %w: %s", fromScope, ErrNotInScope, entityID)
			}

			dst := idsInOrder(scopes[toScope])
			pos := len(dst)
			if requested != nil {
				pos = clamp(*requested, 0, len(dst))
			}
			dst = append(dst, "")
			copy(dst[pos+1:], dst[pos:])
			dst[pos] = entityID
			assigned = pos

			return map[board.Scope][]board.EntityStub{
				fromScope: renumber(out),
				toScope:   renumber(dst),
			}, nil
		})
	if err != nil {
		return 0, err
	}

	return assigned, nil
}

// moveWithin handles the same-scope case in one scope transaction: the entity
// is taken out and reinserted at the requested slot, with the slot clamped
// against the list that no longer contains it.
func (m *Manager) moveWithin(ctx context.Context, scope board.Scope, entityID string, requested *int) (int, error) {
	var assigned int

	err := m.store.UpdateScope(ctx, scope, func(stubs []board.EntityStub) ([]board.EntityStub, error) {
		ids := idsInOrder(stubs)
		out := make([]string, 0, len(ids))
		found := false
		for _, id := range ids {
			if id == entityID {
				found = true
				continue
			}
			out = append(out, id)
		}
		if !found {
			return nil, fmt.Errorf("move within scope %q: %w: %s", scope, ErrNotInScope, entityID)
		}

		pos := len(out)
		if requested != nil {
			pos = clamp(*requested, 0, len(out))
		}
		out = append(out, "")
		copy(out[pos+1:], out[pos:])
		out[pos] = entityID
		assigned = pos

		return renumber(out), nil
	})
	if err != nil {
		return 0, err
	}

	return assigned, nil
}

// Positions returns the scope's current ordering.
func (m *Manager) Positions(ctx context.Context, scope board.Scope) ([]board.EntityStub, error) {
	return m.store.FindScope(ctx, scope)
}

// idsInOrder extracts member IDs sorted by position. Stubs from the store are
// already ordered; the sort guards against a store that does not promise it.
func idsInOrder(stubs []board.EntityStub) []string {
	sorted := append([]board.EntityStub(nil), stubs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })

	ids := make([]string, len(sorted))
	for i, s := range sorted {
		ids[i] = s.ID
	}
	return ids
}

// renumber assigns contiguous zero-based positions in slice order.
func renumber(ids []string) []board.EntityStub {
	stubs := make([]board.EntityStub, len(ids))
	for i, id := range ids {
		stubs[i] = board.EntityStub{ID: id, Position: i}
	}
	return stubs
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
