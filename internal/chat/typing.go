package chat

import (
	"github.com/omochice/roomcast/pkg/protocol"
)

// SetTyping relays a typing change to the other members of roomID. Nothing
// is stored; consumers time out a missed stop on their own.
func (h *Hub) SetTyping(sender *Client, roomID string, isTyping bool) error {
	if err := check(Typing{RoomID: roomID, IsTyping: isTyping}); err != nil {
		return err
	}
	if err := h.checkParticipant(sender, roomID); err != nil {
		return err
	}
	if err := h.consume(sender, ClassTyping); err != nil {
		return err
	}

	id := sender.Identity()
	env, err := protocol.NewEnvelope(protocol.EventUserTyping, protocol.UserTypingPayload{
		RoomID:      roomID,
		UserID:      id.UserID,
		DisplayName: id.DisplayName,
		IsTyping:    isTyping,
	})
	if err != nil {
		return err
	}
	for _, member := range h.rooms.MembersOf(roomID) {
		if member.UserID() == id.UserID {
			continue
		}
		h.deliver(member, env)
	}
	return nil
}
