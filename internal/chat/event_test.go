package chat_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/roomcast/internal/chat"
	"github.com/omochice/roomcast/pkg/protocol"
)

func TestParseEvent(t *testing.T) {
	tests := []struct {
		name    string
		event   string
		payload string
		want    chat.Event
	}{
		{name: "join", event: protocol.EventJoinRoom, payload: `{"roomId":"r"}`, want: chat.JoinRoom{RoomID: "r"}},
		{name: "leave", event: protocol.EventLeaveRoom, payload: `{"roomId":"r"}`, want: chat.LeaveRoom{RoomID: "r"}},
		{
			name:    "send",
			event:   protocol.EventSendMessage,
			payload: `{"roomId":"r","message":"hi","messageType":"image","recipientId":"bob"}`,
			want:    chat.SendMessage{RoomID: "r", Body: "hi", MessageType: "image", RecipientID: "bob"},
		},
		{
			name:    "get messages",
			event:   protocol.EventGetMessages,
			payload: `{"roomId":"r","limit":20,"offset":40}`,
			want:    chat.GetMessages{RoomID: "r", Limit: 20, Offset: 40},
		},
		{name: "typing start", event: protocol.EventTypingStart, payload: `{"roomId":"r"}`, want: chat.Typing{RoomID: "r", IsTyping: true}},
		{name: "typing stop", event: protocol.EventTypingStop, payload: `{"roomId":"r"}`, want: chat.Typing{RoomID: "r"}},
		{name: "mark read", event: protocol.EventMarkRead, payload: `{"senderId":"bob"}`, want: chat.MarkRead{SenderID: "bob"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := chat.ParseEvent(protocol.Envelope{Event: tt.event, Payload: []byte(tt.payload)})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseEvent_Errors(t *testing.T) {
	tests := []struct {
		name    string
		event   string
		payload string
	}{
		{name: "missing room", event: protocol.EventJoinRoom},
		{name: "room too long", event: protocol.EventJoinRoom, payload: `{"roomId":"` + strings.Repeat("a", 200) + `"}`},
		{name: "bad sender", event: protocol.EventMarkRead, payload: `{"senderId":"a:b"}`},
		{name: "bad recipient", event: protocol.EventSendMessage, payload: `{"roomId":"r","message":"hi","recipientId":"-x"}`},
		{name: "negative limit", event: protocol.EventGetMessages, payload: `{"roomId":"r","limit":-5}`},
		{name: "not an object", event: protocol.EventJoinRoom, payload: `["r"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := chat.ParseEvent(protocol.Envelope{Event: tt.event, Payload: []byte(tt.payload)})
			var verr *chat.ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestParseEvent_Unknown(t *testing.T) {
	_, err := chat.ParseEvent(protocol.Envelope{Event: protocol.EventAuthenticate})
	assert.ErrorIs(t, err, chat.ErrUnknownEvent)
}
