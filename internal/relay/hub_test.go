package relay

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftboard/driftboard/pkg/board"
)

// fakeMember is a hub member backed by a plain channel.
type fakeMember struct {
	id       string
	identity board.Identity
	received chan *board.Envelope
	reject   bool // simulate a full send buffer
}

func newFakeMember(id string) *fakeMember {
	return &fakeMember{
		id:       id,
		identity: board.Identity{UserID: "user-" + id, Name: "User " + id},
		received: make(chan *board.Envelope, 16),
	}
}

func (f *fakeMember) ConnID() string           { return f.id }
func (f *fakeMember) Identity() board.Identity { return f.identity }

func (f *fakeMember) TrySend(env *board.Envelope) bool {
	if f.reject {
		return false
	}
	select {
	case f.received <- env:
		return true
	default:
		return false
	}
}

func (f *fakeMember) drain() []*board.Envelope {
	var out []*board.Envelope
	for {
		select {
		case env := <-f.received:
			out = append(out, env)
		default:
			return out
		}
	}
}

const testBoardID = "0b0e7a60-4f5b-4c8e-9a3e-111111111111"

func TestHub_BroadcastExcludesSender(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	a := newFakeMember("a")
	b := newFakeMember("b")
	c := newFakeMember("c")

	hub.Join(testBoardID, a)
	hub.Join(testBoardID, b)
	hub.Join(testBoardID, c)

	env := &board.Envelope{Event: board.EventCardMoved, BoardID: testBoardID, SenderID: a.identity.UserID}
	hub.Broadcast(testBoardID, env, a.id)

	assert.Empty(t, a.drain(), "sender must not receive its own echo")
	require.Len(t, b.drain(), 1)
	require.Len(t, c.drain(), 1)
}

func TestHub_BroadcastScopedToRoom(t *testing.T) {
	otherBoard := "0b0e7a60-4f5b-4c8e-9a3e-222222222222"
	hub := NewHub(zerolog.Nop())
	a := newFakeMember("a")
	b := newFakeMember("b")

	hub.Join(testBoardID, a)
	hub.Join(otherBoard, b)

	hub.Broadcast(testBoardID, &board.Envelope{Event: board.EventCardCreated, BoardID: testBoardID}, "")

	assert.Len(t, a.drain(), 1)
	assert.Empty(t, b.drain(), "members of other rooms must not receive the event")
}

func TestHub_SlowMemberDoesNotBlockOthers(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	slow := newFakeMember("slow")
	slow.reject = true
	ok := newFakeMember("ok")

	hub.Join(testBoardID, slow)
	hub.Join(testBoardID, ok)

	hub.Broadcast(testBoardID, &board.Envelope{Event: board.EventCardUpdated, BoardID: testBoardID}, "")

	assert.Len(t, ok.drain(), 1, "healthy members still receive when one member's buffer is full")
}

func TestHub_LeaveAllReturnsEveryRoom(t *testing.T) {
	boardTwo := "0b0e7a60-4f5b-4c8e-9a3e-333333333333"
	hub := NewHub(zerolog.Nop())
	m := newFakeMember("m")

	hub.Join(testBoardID, m)
	hub.Join(boardTwo, m)
	require.True(t, hub.InRoom(testBoardID, m.id))
	require.True(t, hub.InRoom(boardTwo, m.id))

	boards := hub.LeaveAll(m.id)
	assert.ElementsMatch(t, []string{testBoardID, boardTwo}, boards)
	assert.False(t, hub.InRoom(testBoardID, m.id))
	assert.False(t, hub.InRoom(boardTwo, m.id))
	assert.Zero(t, hub.RoomSize(testBoardID))

	// Membership table is fully cleared: a second pass finds nothing.
	assert.Empty(t, hub.LeaveAll(m.id))
}

func TestHub_LeaveReportsMembership(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	m := newFakeMember("m")

	assert.False(t, hub.Leave(testBoardID, m.id))

	hub.Join(testBoardID, m)
	assert.True(t, hub.Leave(testBoardID, m.id))
	assert.False(t, hub.Leave(testBoardID, m.id))
}

func TestHub_JoinIsIdempotent(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	m := newFakeMember("m")

	hub.Join(testBoardID, m)
	hub.Join(testBoardID, m)

	assert.Equal(t, 1, hub.RoomSize(testBoardID))

	hub.Broadcast(testBoardID, &board.Envelope{Event: board.EventUserTyping, BoardID: testBoardID}, "")
	assert.Len(t, m.drain(), 1)
}
