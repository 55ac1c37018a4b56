package chat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/omochice/roomcast/internal/chat"
)

func TestDirectRoomID(t *testing.T) {
	assert.Equal(t, "dm:alice:bob", chat.DirectRoomID("alice", "bob"))
	assert.Equal(t, chat.DirectRoomID("alice", "bob"), chat.DirectRoomID("bob", "alice"))
	assert.True(t, chat.ValidRoomID(chat.DirectRoomID("alice", "bob")))
}

func TestParseDirectRoom(t *testing.T) {
	tests := []struct {
		roomID string
		a, b   string
		ok     bool
	}{
		{roomID: "dm:alice:bob", a: "alice", b: "bob", ok: true},
		{roomID: "lobby"},
		{roomID: "dm:alice"},
		{roomID: "dm::bob"},
		{roomID: "dm:alice:"},
		{roomID: "dm:a:b:c"},
	}

	for _, tt := range tests {
		t.Run(tt.roomID, func(t *testing.T) {
			a, b, ok := chat.ParseDirectRoom(tt.roomID)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.a, a)
			assert.Equal(t, tt.b, b)
		})
	}
}

func TestStaticDirectory(t *testing.T) {
	dir := chat.NewStaticDirectory()

	assert.Nil(t, dir.Participants("lobby"))
	assert.Equal(t, []string{"alice", "bob"}, dir.Participants("dm:alice:bob"))

	dir.SetParticipants("team", "alice", "bob", "alice", "carol")
	assert.Equal(t, []string{"alice", "bob", "carol"}, dir.Participants("team"))

	got := dir.Participants("team")
	got[0] = "mallory"
	assert.Equal(t, "alice", dir.Participants("team")[0], "callers get a copy")

	dir.SetParticipants("team")
	assert.Nil(t, dir.Participants("team"))
}
