// Package store holds the durable backends of the chat hub: message history
// in Badger and unread counters in Redis.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/omochice/roomcast/internal/chat"
)

// BadgerHistory persists room messages in BadgerDB.
type BadgerHistory struct {
	db     *badger.DB
	logger *zap.Logger
}

var _ chat.HistoryStore = (*BadgerHistory)(nil)

// OpenBadgerHistory opens a database at path. An empty path keeps it in memory.
func OpenBadgerHistory(path string, logger *zap.Logger) (*BadgerHistory, error) {
	opts := badger.DefaultOptions(path).WithLoggingLevel(badger.ERROR)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open history at %q: %w", path, err)
	}
	return NewBadgerHistory(db, logger), nil
}

func NewBadgerHistory(db *badger.DB, logger *zap.Logger) *BadgerHistory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BadgerHistory{db: db, logger: logger}
}

func (b *BadgerHistory) Close() error {
	return b.db.Close()
}

func roomPrefix(roomID string) []byte {
	return []byte(fmt.Sprintf("msg:%x:", roomID))
}

// messageKey is "msg:{hex room}:{padded unix nano}:{id}". The zero padding
// keeps keys of a room in chronological order and the id breaks ties.
func messageKey(msg chat.Message) []byte {
	return []byte(fmt.Sprintf("msg:%x:%019d:%s", msg.RoomID, msg.CreatedAt.UnixNano(), msg.ID))
}

func (b *BadgerHistory) Append(_ context.Context, msg chat.Message) error {
	value, err := proto.Marshal(encodeMessage(msg))
	if err != nil {
		return fmt.Errorf("encode message %s: %w", msg.ID, err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(msg), value)
	})
}

// Recent walks the room backwards from its newest message.
func (b *BadgerHistory) Recent(ctx context.Context, roomID string, limit, offset int) ([]chat.Message, bool, error) {
	var values [][]byte
	hasMore := false

	err := b.db.View(func(txn *badger.Txn) error {
		prefix := roomPrefix(roomID)
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		skipped := 0
		for it.Seek(append(prefix, "9999999999999999999"...)); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if skipped < offset {
				skipped++
				continue
			}
			if len(values) == limit {
				hasMore = true
				break
			}
			value, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			values = append(values, value)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("scan history of %s: %w", roomID, err)
	}

	msgs := make([]chat.Message, len(values))
	for i, value := range values {
		var pb structpb.Struct
		if err := proto.Unmarshal(value, &pb); err != nil {
			return nil, false, fmt.Errorf("decode message: %w", err)
		}
		msg, err := decodeMessage(&pb)
		if err != nil {
			return nil, false, err
		}
		// Oldest first.
		msgs[len(values)-1-i] = msg
	}
	b.logger.Debug("history loaded",
		zap.String("roomID", roomID), zap.Int("count", len(msgs)), zap.Bool("hasMore", hasMore))
	return msgs, hasMore, nil
}

func encodeMessage(msg chat.Message) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"id":                structpb.NewStringValue(msg.ID),
		"roomId":            structpb.NewStringValue(msg.RoomID),
		"senderId":          structpb.NewStringValue(msg.SenderID),
		"senderDisplayName": structpb.NewStringValue(msg.SenderDisplayName),
		"body":              structpb.NewStringValue(msg.Body),
		"messageType":       structpb.NewStringValue(msg.MessageType),
		"createdAt":         structpb.NewStringValue(msg.CreatedAt.UTC().Format(time.RFC3339Nano)),
		"edited":            structpb.NewBoolValue(msg.Edited),
	}}
}

func decodeMessage(pb *structpb.Struct) (chat.Message, error) {
	f := pb.GetFields()
	createdAt, err := time.Parse(time.RFC3339Nano, f["createdAt"].GetStringValue())
	if err != nil {
		return chat.Message{}, fmt.Errorf("decode message %s: %w", f["id"].GetStringValue(), err)
	}
	return chat.Message{
		ID:                f["id"].GetStringValue(),
		RoomID:            f["roomId"].GetStringValue(),
		SenderID:          f["senderId"].GetStringValue(),
		SenderDisplayName: f["senderDisplayName"].GetStringValue(),
		Body:              f["body"].GetStringValue(),
		MessageType:       f["messageType"].GetStringValue(),
		CreatedAt:         createdAt,
		Edited:            f["edited"].GetBoolValue(),
	}, nil
}
