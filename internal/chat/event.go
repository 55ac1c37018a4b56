package chat

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/omochice/roomcast/pkg/protocol"
)

// Event is one of the inbound event variants below. The set is closed:
// ParseEvent is the only constructor from the wire.
type Event interface {
	eventName() string
}

type JoinRoom struct {
	RoomID string `validate:"required,roomid"`
}

type LeaveRoom struct {
	RoomID string `validate:"required,roomid"`
}

type SendMessage struct {
	RoomID      string `validate:"required,roomid"`
	Body        string
	MessageType string `validate:"omitempty,oneof=text image file"`
	RecipientID string `validate:"omitempty,userid"`
}

type GetMessages struct {
	RoomID string `validate:"required,roomid"`
	Limit  int    `validate:"min=0"`
	Offset int    `validate:"min=0"`
}

type Typing struct {
	RoomID   string `validate:"required,roomid"`
	IsTyping bool
}

type MarkRead struct {
	SenderID string `validate:"required,userid"`
}

func (JoinRoom) eventName() string    { return protocol.EventJoinRoom }
func (LeaveRoom) eventName() string   { return protocol.EventLeaveRoom }
func (SendMessage) eventName() string { return protocol.EventSendMessage }
func (GetMessages) eventName() string { return protocol.EventGetMessages }
func (MarkRead) eventName() string    { return protocol.EventMarkRead }

func (t Typing) eventName() string {
	if t.IsTyping {
		return protocol.EventTypingStart
	}
	return protocol.EventTypingStop
}

var (
	roomIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.:@-]{0,127}$`)
	userIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.@-]{0,63}$`)

	validate = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("roomid", func(fl validator.FieldLevel) bool {
		return roomIDPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("userid", func(fl validator.FieldLevel) bool {
		return userIDPattern.MatchString(fl.Field().String())
	})
	return v
}

// ValidRoomID reports whether id is an acceptable room id.
func ValidRoomID(id string) bool { return roomIDPattern.MatchString(id) }

// ValidUserID reports whether id is an acceptable user id.
func ValidUserID(id string) bool { return userIDPattern.MatchString(id) }

// check validates an event struct and reports the first failing field.
func check(ev any) error {
	err := validate.Struct(ev)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &ValidationError{Field: fe.Field(), Reason: fmt.Sprintf("failed %q check", fe.Tag())}
	}
	return &ValidationError{Reason: err.Error()}
}

// ParseEvent decodes and validates an inbound envelope.
func ParseEvent(env protocol.Envelope) (Event, error) {
	var ev Event
	switch env.Event {
	case protocol.EventJoinRoom:
		var p protocol.RoomPayload
		if err := env.Bind(&p); err != nil {
			return nil, &ValidationError{Reason: err.Error()}
		}
		ev = JoinRoom{RoomID: p.RoomID}
	case protocol.EventLeaveRoom:
		var p protocol.RoomPayload
		if err := env.Bind(&p); err != nil {
			return nil, &ValidationError{Reason: err.Error()}
		}
		ev = LeaveRoom{RoomID: p.RoomID}
	case protocol.EventSendMessage:
		var p protocol.SendMessagePayload
		if err := env.Bind(&p); err != nil {
			return nil, &ValidationError{Reason: err.Error()}
		}
		ev = SendMessage{RoomID: p.RoomID, Body: p.Message, MessageType: p.MessageType, RecipientID: p.RecipientID}
	case protocol.EventGetMessages:
		var p protocol.GetMessagesPayload
		if err := env.Bind(&p); err != nil {
			return nil, &ValidationError{Reason: err.Error()}
		}
		ev = GetMessages{RoomID: p.RoomID, Limit: p.Limit, Offset: p.Offset}
	case protocol.EventTypingStart, protocol.EventTypingStop:
		var p protocol.RoomPayload
		if err := env.Bind(&p); err != nil {
			return nil, &ValidationError{Reason: err.Error()}
		}
		ev = Typing{RoomID: p.RoomID, IsTyping: env.Event == protocol.EventTypingStart}
	case protocol.EventMarkRead:
		var p protocol.MarkReadPayload
		if err := env.Bind(&p); err != nil {
			return nil, &ValidationError{Reason: err.Error()}
		}
		ev = MarkRead{SenderID: p.SenderID}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
	if err := check(ev); err != nil {
		return nil, err
	}
	return ev, nil
}
