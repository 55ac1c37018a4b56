package chat

import (
	"context"
	"time"

	"github.com/omochice/roomcast/pkg/protocol"
)

//go:generate go run go.uber.org/mock/mockgen -source=history.go -destination=mocks/mock_history.go -package=mocks

// Message is a chat message as created at receipt time.
type Message struct {
	ID                string
	RoomID            string
	SenderID          string
	SenderDisplayName string
	Body              string
	MessageType       string
	CreatedAt         time.Time
	Edited            bool
}

// Payload converts m to its wire form.
func (m Message) Payload() protocol.MessagePayload {
	return protocol.MessagePayload{
		ID:                m.ID,
		RoomID:            m.RoomID,
		SenderID:          m.SenderID,
		SenderDisplayName: m.SenderDisplayName,
		Body:              m.Body,
		MessageType:       m.MessageType,
		CreatedAt:         m.CreatedAt,
		Edited:            m.Edited,
	}
}

// HistoryStore is the durable message store. Calls may block on I/O and are
// never made while holding coordinator locks.
type HistoryStore interface {
	Append(ctx context.Context, msg Message) error
	// Recent returns up to limit messages of roomID, skipping the offset
	// newest ones, oldest first, and whether older messages remain.
	Recent(ctx context.Context, roomID string, limit, offset int) ([]Message, bool, error)
}

// NopHistory stores nothing.
type NopHistory struct{}

var _ HistoryStore = NopHistory{}

func (NopHistory) Append(context.Context, Message) error { return nil }

func (NopHistory) Recent(context.Context, string, int, int) ([]Message, bool, error) {
	return nil, false, nil
}
