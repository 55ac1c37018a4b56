package chat

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/omochice/roomcast/pkg/protocol"
)

var (
	// ErrClientClosed is returned when delivering to a disconnected client.
	ErrClientClosed = errors.New("client is closed")
	// ErrQueueFull is returned when a client's outbound queue has no room.
	ErrQueueFull = errors.New("client outbound queue is full")
	// ErrNotActive is returned for room events from a client that is not active.
	ErrNotActive = errors.New("client is not active")
	// ErrUnknownEvent is returned for event names outside the inbound set.
	ErrUnknownEvent = errors.New("unknown event")
)

// ValidationError reports a malformed inbound event. It is never fatal.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// RateLimitError reports an event dropped by the rate limiter.
type RateLimitError struct {
	Class      EventClass
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry after %ds", e.Class, retrySeconds(e.RetryAfter))
}

// RetryAfterSeconds is the machine-readable retry delay, at least 1.
func (e *RateLimitError) RetryAfterSeconds() int {
	return retrySeconds(e.RetryAfter)
}

// AuthError terminates a connection before it becomes active.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// TransportError reports a failed delivery to a single connection.
type TransportError struct {
	ConnID ConnID
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("delivery to %s failed: %v", e.ConnID, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func retrySeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}

// errorPayload maps an error onto the wire error event.
func errorPayload(event string, err error) protocol.ErrorPayload {
	var (
		verr *ValidationError
		rerr *RateLimitError
		aerr *AuthError
	)
	switch {
	case errors.As(err, &verr):
		return protocol.ErrorPayload{Code: protocol.CodeValidation, Message: verr.Error(), Event: event}
	case errors.As(err, &rerr):
		return protocol.ErrorPayload{
			Code:       protocol.CodeRateLimited,
			Message:    rerr.Error(),
			Event:      event,
			RetryAfter: rerr.RetryAfterSeconds(),
		}
	case errors.As(err, &aerr):
		return protocol.ErrorPayload{Code: protocol.CodeAuthentication, Message: aerr.Error(), Event: event}
	case errors.Is(err, ErrUnknownEvent):
		return protocol.ErrorPayload{Code: protocol.CodeUnknownEvent, Message: err.Error(), Event: event}
	default:
		return protocol.ErrorPayload{Code: protocol.CodeInternal, Message: "internal error", Event: event}
	}
}
