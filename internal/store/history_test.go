package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/omochice/roomcast/internal/chat"
)

func newTestHistory(t *testing.T) *BadgerHistory {
	t.Helper()
	h, err := OpenBadgerHistory("", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func seed(t *testing.T, h *BadgerHistory, roomID string, n int, start time.Time) []chat.Message {
	t.Helper()
	msgs := make([]chat.Message, n)
	for i := range msgs {
		at := start.Add(time.Duration(i) * time.Second)
		msgs[i] = chat.Message{
			ID:                fmt.Sprintf("%d-alice", at.UnixNano()),
			RoomID:            roomID,
			SenderID:          "alice",
			SenderDisplayName: "Alice",
			Body:              fmt.Sprintf("message %d", i),
			MessageType:       "text",
			CreatedAt:         at,
		}
		require.NoError(t, h.Append(context.Background(), msgs[i]))
	}
	return msgs
}

func TestBadgerHistory_RecentOldestFirst(t *testing.T) {
	req := require.New(t)
	h := newTestHistory(t)
	msgs := seed(t, h, "r", 3, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	got, hasMore, err := h.Recent(context.Background(), "r", 10, 0)

	req.NoError(err)
	req.False(hasMore)
	req.Equal(msgs, got)
}

func TestBadgerHistory_RecentLimitAndOffset(t *testing.T) {
	h := newTestHistory(t)
	msgs := seed(t, h, "r", 5, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	tests := []struct {
		name        string
		limit       int
		offset      int
		want        []chat.Message
		wantHasMore bool
	}{
		{name: "newest two", limit: 2, want: msgs[3:], wantHasMore: true},
		{name: "skip newest two", limit: 2, offset: 2, want: msgs[1:3], wantHasMore: true},
		{name: "last page", limit: 2, offset: 4, want: msgs[:1]},
		{name: "exact fit", limit: 5, want: msgs},
		{name: "past the end", limit: 2, offset: 10, want: []chat.Message{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			got, hasMore, err := h.Recent(context.Background(), "r", tt.limit, tt.offset)
			req.NoError(err)
			req.Equal(tt.want, got)
			req.Equal(tt.wantHasMore, hasMore)
		})
	}
}

func TestBadgerHistory_RecentIsolatesRooms(t *testing.T) {
	req := require.New(t)
	h := newTestHistory(t)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seed(t, h, "r", 2, start)
	// "r:1" must not share a key prefix with "r".
	other := seed(t, h, "r:1", 1, start)

	got, _, err := h.Recent(context.Background(), "r:1", 10, 0)
	req.NoError(err)
	req.Equal(other, got)

	got, _, err = h.Recent(context.Background(), "empty", 10, 0)
	req.NoError(err)
	req.Empty(got)
}
