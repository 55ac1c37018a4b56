package chat

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/omochice/roomcast/pkg/protocol"
)

const defaultMessageType = "text"

// consume spends one point of class for client's user.
func (h *Hub) consume(client *Client, class EventClass) error {
	d := h.limiter.Consume(client.UserID(), class)
	if d.Allowed {
		return nil
	}
	return &RateLimitError{Class: class, RetryAfter: d.RetryAfter}
}

// Join adds client to roomID and acknowledges with room_joined.
func (h *Hub) Join(client *Client, roomID string) error {
	if err := check(JoinRoom{RoomID: roomID}); err != nil {
		return err
	}
	if err := h.checkParticipant(client, roomID); err != nil {
		return err
	}
	if err := h.consume(client, ClassRoomOp); err != nil {
		return err
	}
	if h.rooms.Join(client, roomID) {
		h.logger.Debug("joined room", zap.String("connID", string(client.ID)), zap.String("roomID", roomID))
	}
	h.reply(client, protocol.EventRoomJoined, protocol.RoomPayload{RoomID: roomID})
	return nil
}

// Leave removes client from roomID. Leaving twice is the same as leaving once.
func (h *Hub) Leave(client *Client, roomID string) error {
	if err := check(LeaveRoom{RoomID: roomID}); err != nil {
		return err
	}
	if err := h.consume(client, ClassRoomOp); err != nil {
		return err
	}
	if h.rooms.Leave(client, roomID) {
		h.logger.Debug("left room", zap.String("connID", string(client.ID)), zap.String("roomID", roomID))
	}
	h.reply(client, protocol.EventRoomLeft, protocol.RoomPayload{RoomID: roomID})
	return nil
}

// Send validates and rate-limits a message, fans it out to the room, and
// only then updates unread counters of intended recipients who are not in
// the room.
func (h *Hub) Send(ctx context.Context, sender *Client, ev SendMessage) (Message, error) {
	if err := h.validateMessage(sender, ev); err != nil {
		return Message{}, err
	}
	if err := h.consume(sender, ClassMessage); err != nil {
		return Message{}, err
	}

	id := sender.Identity()
	now := h.now()
	msg := Message{
		ID:                fmt.Sprintf("%d-%s", now.UnixNano(), id.UserID),
		RoomID:            ev.RoomID,
		SenderID:          id.UserID,
		SenderDisplayName: id.DisplayName,
		Body:              ev.Body,
		MessageType:       lo.Ternary(ev.MessageType == "", defaultMessageType, ev.MessageType),
		CreatedAt:         now,
	}

	if err := h.history.Append(ctx, msg); err != nil {
		h.logger.Warn("failed to persist message", zap.String("messageID", msg.ID), zap.Error(err))
	}

	env, err := protocol.NewEnvelope(protocol.EventNewMessage, msg.Payload())
	if err != nil {
		return Message{}, err
	}
	delivered := 0
	for _, member := range h.rooms.MembersOf(msg.RoomID) {
		if h.deliver(member, env) {
			delivered++
		}
	}
	h.logger.Debug("message fanned out",
		zap.String("messageID", msg.ID), zap.String("roomID", msg.RoomID), zap.Int("delivered", delivered))

	h.accountUnread(ctx, msg, h.recipients(msg, ev.RecipientID))
	return msg, nil
}

func (h *Hub) validateMessage(sender *Client, ev SendMessage) error {
	if err := check(ev); err != nil {
		return err
	}
	if err := h.checkParticipant(sender, ev.RoomID); err != nil {
		return err
	}
	if strings.TrimSpace(ev.Body) == "" {
		return &ValidationError{Field: "Message", Reason: "must not be empty"}
	}
	if n := utf8.RuneCountInString(ev.Body); n > h.maxMessageLength {
		return &ValidationError{Field: "Message", Reason: fmt.Sprintf("longer than %d characters", h.maxMessageLength)}
	}
	if ev.RecipientID != "" && ev.RecipientID == sender.UserID() {
		return &ValidationError{Field: "RecipientID", Reason: "must not be the sender"}
	}
	return nil
}

// checkParticipant rejects users outside a room's participant list. Rooms
// without a list are open.
func (h *Hub) checkParticipant(client *Client, roomID string) error {
	if !mayJoin(h.directory.Participants(roomID), client.UserID()) {
		return &ValidationError{Field: "RoomID", Reason: "not a participant of this room"}
	}
	return nil
}

// recipients lists the users a message is intended for, sender excluded.
func (h *Hub) recipients(msg Message, explicit string) []string {
	var ids []string
	if explicit != "" {
		ids = []string{explicit}
	} else {
		ids = h.directory.Participants(msg.RoomID)
	}
	return lo.Without(lo.Uniq(ids), msg.SenderID)
}

// accountUnread increments counters of recipients who are not members of
// the room. Online recipients are pushed the new count; offline recipients
// read it on their next activation.
func (h *Hub) accountUnread(ctx context.Context, msg Message, recipients []string) {
	for _, recipientID := range recipients {
		if h.rooms.UserInRoom(recipientID, msg.RoomID) {
			continue
		}
		count, err := h.unread.Increment(ctx, recipientID, msg.SenderID)
		if err != nil {
			h.logger.Warn("failed to increment unread counter",
				zap.String("recipientID", recipientID), zap.String("senderID", msg.SenderID), zap.Error(err))
			continue
		}
		if !h.presence.IsOnline(recipientID) {
			continue
		}
		h.pushUnread(recipientID, msg.SenderID, count)
	}
}

func (h *Hub) pushUnread(recipientID, senderID string, count int) {
	env, err := protocol.NewEnvelope(protocol.EventUnreadCountUpdated, protocol.UnreadCountPayload{
		SenderID:    senderID,
		UnreadCount: count,
	})
	if err != nil {
		h.logger.Error("failed to build envelope", zap.Error(err))
		return
	}
	for _, c := range h.presence.Clients(recipientID) {
		h.deliver(c, env)
	}
}

// MarkRead zeroes client's counter for senderID and pushes the zero to all
// of the user's connections.
func (h *Hub) MarkRead(ctx context.Context, client *Client, senderID string) error {
	if err := check(MarkRead{SenderID: senderID}); err != nil {
		return err
	}
	userID := client.UserID()
	if err := h.unread.Reset(ctx, userID, senderID); err != nil {
		return fmt.Errorf("reset unread counter: %w", err)
	}
	h.pushUnread(userID, senderID, 0)
	return nil
}

// GetMessages answers a history request from the history store.
func (h *Hub) GetMessages(ctx context.Context, client *Client, ev GetMessages) error {
	if err := check(ev); err != nil {
		return err
	}
	limit := ev.Limit
	if limit == 0 {
		limit = defaultHistoryLimit
	}
	limit = min(limit, maxHistoryLimit)

	msgs, hasMore, err := h.history.Recent(ctx, ev.RoomID, limit, ev.Offset)
	if err != nil {
		return fmt.Errorf("load history of %s: %w", ev.RoomID, err)
	}
	h.reply(client, protocol.EventMessages, protocol.MessagesPayload{
		RoomID:   ev.RoomID,
		Messages: lo.Map(msgs, func(m Message, _ int) protocol.MessagePayload { return m.Payload() }),
		HasMore:  hasMore,
	})
	return nil
}
