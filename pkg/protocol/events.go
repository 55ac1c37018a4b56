package protocol

import "time"

// Inbound event names.
const (
	EventAuthenticate = "authenticate"
	EventJoinRoom     = "join_room"
	EventLeaveRoom    = "leave_room"
	EventSendMessage  = "send_message"
	EventGetMessages  = "get_messages"
	EventTypingStart  = "typing_start"
	EventTypingStop   = "typing_stop"
	EventMarkRead     = "mark_read"
	EventSignOut      = "sign_out"
)

// Outbound event names.
const (
	EventAuthenticated      = "authenticated"
	EventRoomJoined         = "room_joined"
	EventRoomLeft           = "room_left"
	EventNewMessage         = "new_message"
	EventUnreadCountUpdated = "unread_count_updated"
	EventUnreadCounts       = "unread_counts"
	EventMessages           = "messages"
	EventUserTyping         = "user_typing"
	EventError              = "error"
)

// Error codes carried by EventError.
const (
	CodeValidation     = "validation_failed"
	CodeRateLimited    = "rate_limited"
	CodeAuthentication = "authentication_failed"
	CodeUnknownEvent   = "unknown_event"
	CodeMalformed      = "malformed_frame"
	CodeInternal       = "internal_error"
)

type AuthenticatePayload struct {
	Token string `json:"token"`
}

type RoomPayload struct {
	RoomID string `json:"roomId"`
}

type SendMessagePayload struct {
	RoomID      string `json:"roomId"`
	Message     string `json:"message"`
	MessageType string `json:"messageType,omitempty"`
	RecipientID string `json:"recipientId,omitempty"`
}

type GetMessagesPayload struct {
	RoomID string `json:"roomId"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

type MarkReadPayload struct {
	SenderID string `json:"senderId"`
}

type AuthenticatedPayload struct {
	ConnectionID string `json:"connectionId"`
	UserID       string `json:"userId"`
	DisplayName  string `json:"displayName"`
	AvatarRef    string `json:"avatarRef,omitempty"`
}

// MessagePayload is the wire form of a chat message.
type MessagePayload struct {
	ID                string    `json:"id"`
	RoomID            string    `json:"roomId"`
	SenderID          string    `json:"senderId"`
	SenderDisplayName string    `json:"senderDisplayName"`
	Body              string    `json:"body"`
	MessageType       string    `json:"messageType"`
	CreatedAt         time.Time `json:"createdAt"`
	Edited            bool      `json:"edited"`
}

type UnreadCountPayload struct {
	SenderID    string `json:"senderId"`
	UnreadCount int    `json:"unreadCount"`
}

type UnreadCountsPayload struct {
	Counts map[string]int `json:"counts"`
}

type MessagesPayload struct {
	RoomID   string           `json:"roomId"`
	Messages []MessagePayload `json:"messages"`
	HasMore  bool             `json:"hasMore"`
}

type UserTypingPayload struct {
	RoomID      string `json:"roomId"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	IsTyping    bool   `json:"isTyping"`
}

// ErrorPayload reports a rejected event to the originating connection.
// RetryAfter is in whole seconds and only set for rate limiting.
type ErrorPayload struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Event      string `json:"event,omitempty"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}
