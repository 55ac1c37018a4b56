// Package protocol defines the wire envelope shared by the server, the
// transports and the client library.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// ErrMissingEvent is returned when a frame carries no event name.
var ErrMissingEvent = errors.New("frame has no event name")

// Format identifies how an envelope is serialized on the wire.
type Format int

const (
	FormatBinary Format = iota
	FormatJSON
)

// String returns the string representation of Format
func (f Format) String() string {
	switch f {
	case FormatBinary:
		return "BINARY"
	case FormatJSON:
		return "JSON"
	default:
		return "UNKNOWN"
	}
}

// Detect guesses the format of a frame from its first byte. JSON frames are
// always objects; binary frames always start with the tag of the first map
// entry of a protobuf Struct.
func Detect(data []byte) Format {
	if IsJSON(data) {
		return FormatJSON
	}
	return FormatBinary
}

// IsJSON reports whether data looks like a JSON object frame. Leading
// whitespace is not accepted: 0x0a also starts every binary frame.
func IsJSON(data []byte) bool {
	return len(data) > 0 && data[0] == '{'
}

// Envelope is a single named event with an optional JSON object payload.
type Envelope struct {
	Event   string
	Payload json.RawMessage
}

// NewEnvelope builds an envelope, marshaling payload as a JSON object.
// A nil payload produces an envelope without payload.
func NewEnvelope(event string, payload any) (Envelope, error) {
	env := Envelope{Event: event}
	if payload == nil {
		return env, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}
	env.Payload = data
	return env, nil
}

// Bind unmarshals the payload into v. A missing payload binds as an empty object.
func (e Envelope) Bind(v any) error {
	data := []byte(e.Payload)
	if len(data) == 0 {
		data = []byte("{}")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid %s payload: %w", e.Event, err)
	}
	return nil
}

// Encode serializes the envelope in the given format.
func (f Format) Encode(e Envelope) ([]byte, error) {
	if f == FormatJSON {
		return e.EncodeJSON()
	}
	return e.Encode()
}

// Decode parses a frame in the given format.
func (f Format) Decode(data []byte) (Envelope, error) {
	var e Envelope
	var err error
	if f == FormatJSON {
		err = e.DecodeJSON(data)
	} else {
		err = e.Decode(data)
	}
	return e, err
}

// Encode encodes the envelope into bytes using protobuf
func (e *Envelope) Encode() ([]byte, error) {
	pbMsg, err := e.toProto()
	if err != nil {
		return nil, err
	}
	data, err := proto.Marshal(pbMsg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}
	return data, nil
}

// Decode decodes protobuf bytes into the envelope
func (e *Envelope) Decode(data []byte) error {
	pbMsg := &structpb.Struct{}
	if err := proto.Unmarshal(data, pbMsg); err != nil {
		return fmt.Errorf("failed to decode envelope: %w", err)
	}
	return e.fromProto(pbMsg)
}

type jsonEnvelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// EncodeJSON encodes the envelope as a JSON object frame.
func (e *Envelope) EncodeJSON() ([]byte, error) {
	data, err := json.Marshal(jsonEnvelope{Event: e.Event, Payload: e.Payload})
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}
	return data, nil
}

// DecodeJSON decodes a JSON object frame into the envelope.
func (e *Envelope) DecodeJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("failed to decode envelope: invalid json")
	}
	event := gjson.GetBytes(data, "event")
	if event.Type != gjson.String || event.Str == "" {
		return ErrMissingEvent
	}
	e.Event = event.Str
	e.Payload = nil

	payload := gjson.GetBytes(data, "payload")
	switch {
	case !payload.Exists() || payload.Type == gjson.Null:
	case payload.IsObject():
		e.Payload = json.RawMessage(payload.Raw)
	default:
		return fmt.Errorf("failed to decode envelope: payload of %s is not an object", e.Event)
	}
	return nil
}

// toProto converts the envelope to a protobuf Struct.
// The payload travels as a nested Struct so binary clients need no schema.
func (e *Envelope) toProto() (*structpb.Struct, error) {
	fields := map[string]*structpb.Value{
		"event": structpb.NewStringValue(e.Event),
	}
	if len(e.Payload) > 0 {
		payload := &structpb.Struct{}
		if err := protojson.Unmarshal(e.Payload, payload); err != nil {
			return nil, fmt.Errorf("failed to convert %s payload: %w", e.Event, err)
		}
		fields["payload"] = structpb.NewStructValue(payload)
	}
	return &structpb.Struct{Fields: fields}, nil
}

// fromProto populates the envelope from a protobuf Struct.
func (e *Envelope) fromProto(pbMsg *structpb.Struct) error {
	fields := pbMsg.GetFields()
	event := fields["event"].GetStringValue()
	if event == "" {
		return ErrMissingEvent
	}
	e.Event = event
	e.Payload = nil

	if payload := fields["payload"].GetStructValue(); payload != nil {
		data, err := protojson.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to convert %s payload: %w", event, err)
		}
		e.Payload = data
	}
	return nil
}
