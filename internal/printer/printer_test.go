package printer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driftboard/driftboard/pkg/board"
)

func TestError(t *testing.T) {
	t.Run("returns error with title", func(t *testing.T) {
		err := Error("Test Error", "This is a test error", []string{})
		require.Error(t, err)
		require.Equal(t, "Test Error", err.Error())
	})

	t.Run("returns error with title when including suggestions", func(t *testing.T) {
		err := Error("Test Error", "Explanation", []string{"Try this fix"})
		require.Error(t, err)
		require.Equal(t, "Test Error", err.Error())
	})

	t.Run("returns error with title for multiple suggestions", func(t *testing.T) {
		err := Error("Test Error", "Explanation", []string{
			"First option",
			"Second option",
		})
		require.Error(t, err)
		require.Equal(t, "Test Error", err.Error())
	})
}

// Note: Error prints formatted output to stderr with colors. The error object
// returned only contains the title for Cobra's error handling. This is
// intentional to avoid duplicate output while providing rich formatted errors.

func TestFormatEvent(t *testing.T) {
	payload, _ := json.Marshal(map[string]any{
		"card_id":  "c1",
		"position": 2,
	})
	env := &board.Envelope{
		Event:      board.EventCardMoved,
		BoardID:    "4f2a9c10-7d3e-4b1f-8a6c-0123456789ab",
		SenderID:   "alice",
		SenderName: "Alice",
		SentAtMs:   1700000000000,
		Payload:    payload,
	}

	line := FormatEvent(env)
	require.Contains(t, line, board.EventCardMoved)
	require.Contains(t, line, "Alice")
	require.Contains(t, line, "card_id=c1")
	require.Contains(t, line, "position=2")
}

func TestFormatEventFallsBackToSenderID(t *testing.T) {
	env := &board.Envelope{
		Event:    board.EventUserLeft,
		SenderID: "bob",
		SentAtMs: 1700000000000,
	}
	line := FormatEvent(env)
	require.Contains(t, line, "bob")
}

func TestFormatEventMalformedPayload(t *testing.T) {
	env := &board.Envelope{
		Event:    board.EventCardUpdated,
		SentAtMs: 1700000000000,
		Payload:  json.RawMessage("not-json"),
	}
	line := FormatEvent(env)
	require.Contains(t, line, "not-json")
}
