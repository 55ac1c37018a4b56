// Package client is a chat client that speaks the envelope protocol over any
// chat.Conn. The tcp and ws subpackages dial the transports.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/omochice/roomcast/internal/chat"
	"github.com/omochice/roomcast/pkg/protocol"
)

const defaultBuffer = 64

// ErrClosed is returned when the client has been closed.
var ErrClosed = errors.New("client closed")

// ServerError is an error event sent by the server.
type ServerError struct {
	protocol.ErrorPayload
}

func (e *ServerError) Error() string {
	if e.Event != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Event, e.Message, e.Code)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

type options struct {
	format protocol.Format
	logger *zap.Logger
	buffer int
}

// Option configures a Client.
type Option func(*options)

// WithFormat selects the wire format. Binary is the default.
func WithFormat(f protocol.Format) Option { return func(o *options) { o.format = f } }

func WithLogger(l *zap.Logger) Option { return func(o *options) { o.logger = l } }

// WithBuffer sets how many inbound events are buffered before the reader blocks.
func WithBuffer(n int) Option { return func(o *options) { o.buffer = n } }

// Client sends events over a connection and exposes received events on a channel.
type Client struct {
	conn   chat.Conn
	format protocol.Format
	logger *zap.Logger

	events chan protocol.Envelope
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once

	mu  sync.Mutex
	err error
}

// New starts receiving on conn. The client owns conn from now on.
func New(conn chat.Conn, opts ...Option) *Client {
	o := options{format: protocol.FormatBinary, logger: zap.NewNop(), buffer: defaultBuffer}
	for _, opt := range opts {
		opt(&o)
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		conn:   conn,
		format: o.format,
		logger: o.logger,
		events: make(chan protocol.Envelope, o.buffer),
		ctx:    ctx,
		cancel: cancel,
	}
	c.wg.Add(1)
	go c.receive()
	return c
}

// Events returns received events. The channel is closed when the
// connection ends; Err then reports why.
func (c *Client) Events() <-chan protocol.Envelope {
	return c.events
}

// Err returns the error that ended the receive loop, if any.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Client) Format() protocol.Format { return c.format }

// Close closes the connection and waits for the receive loop to end.
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		c.cancel()
		err = c.conn.Close()
	})
	c.wg.Wait()
	return err
}

func (c *Client) receive() {
	defer c.wg.Done()
	defer close(c.events)

	for {
		data, err := c.conn.Read(c.ctx)
		if err != nil {
			if c.ctx.Err() == nil {
				c.mu.Lock()
				c.err = err
				c.mu.Unlock()
				c.logger.Debug("receive ended", zap.Error(err))
			}
			return
		}
		env, err := protocol.Detect(data).Decode(data)
		if err != nil {
			c.logger.Warn("failed to decode event", zap.Error(err))
			continue
		}
		select {
		case c.events <- env:
		case <-c.ctx.Done():
			return
		}
	}
}

// Send encodes and writes a single event.
func (c *Client) Send(ctx context.Context, event string, payload any) error {
	if c.ctx.Err() != nil {
		return ErrClosed
	}
	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	data, err := c.format.Encode(env)
	if err != nil {
		return err
	}
	if err := c.conn.Write(ctx, data); err != nil {
		return fmt.Errorf("failed to send %s: %w", event, err)
	}
	return nil
}

// Await returns the next event named event, discarding others. An error
// event for the same request is returned as *ServerError.
func (c *Client) Await(ctx context.Context, event string) (protocol.Envelope, error) {
	for {
		select {
		case <-ctx.Done():
			return protocol.Envelope{}, ctx.Err()
		case env, ok := <-c.events:
			if !ok {
				if err := c.Err(); err != nil {
					return protocol.Envelope{}, err
				}
				return protocol.Envelope{}, ErrClosed
			}
			if env.Event == event {
				return env, nil
			}
			if env.Event == protocol.EventError {
				var p protocol.ErrorPayload
				if err := env.Bind(&p); err == nil && (p.Event == "" || p.Event == requestFor(event)) {
					return protocol.Envelope{}, &ServerError{p}
				}
			}
		}
	}
}

// requestFor maps a reply event to the request that produces it.
func requestFor(reply string) string {
	switch reply {
	case protocol.EventAuthenticated:
		return protocol.EventAuthenticate
	case protocol.EventRoomJoined:
		return protocol.EventJoinRoom
	case protocol.EventRoomLeft:
		return protocol.EventLeaveRoom
	case protocol.EventMessages:
		return protocol.EventGetMessages
	case protocol.EventNewMessage:
		return protocol.EventSendMessage
	case protocol.EventUnreadCountUpdated:
		return protocol.EventMarkRead
	}
	return reply
}

// Authenticate sends the token and waits for the authenticated reply.
func (c *Client) Authenticate(ctx context.Context, token string) (protocol.AuthenticatedPayload, error) {
	var p protocol.AuthenticatedPayload
	if err := c.Send(ctx, protocol.EventAuthenticate, protocol.AuthenticatePayload{Token: token}); err != nil {
		return p, err
	}
	env, err := c.Await(ctx, protocol.EventAuthenticated)
	if err != nil {
		return p, err
	}
	return p, env.Bind(&p)
}

func (c *Client) JoinRoom(ctx context.Context, roomID string) error {
	return c.Send(ctx, protocol.EventJoinRoom, protocol.RoomPayload{RoomID: roomID})
}

func (c *Client) LeaveRoom(ctx context.Context, roomID string) error {
	return c.Send(ctx, protocol.EventLeaveRoom, protocol.RoomPayload{RoomID: roomID})
}

// SendMessage posts body to roomID. recipientID is only used for direct messages.
func (c *Client) SendMessage(ctx context.Context, roomID, body, recipientID string) error {
	return c.Send(ctx, protocol.EventSendMessage, protocol.SendMessagePayload{
		RoomID:      roomID,
		Message:     body,
		RecipientID: recipientID,
	})
}

func (c *Client) Typing(ctx context.Context, roomID string, isTyping bool) error {
	event := protocol.EventTypingStop
	if isTyping {
		event = protocol.EventTypingStart
	}
	return c.Send(ctx, event, protocol.RoomPayload{RoomID: roomID})
}

func (c *Client) MarkRead(ctx context.Context, senderID string) error {
	return c.Send(ctx, protocol.EventMarkRead, protocol.MarkReadPayload{SenderID: senderID})
}

func (c *Client) GetMessages(ctx context.Context, roomID string, limit, offset int) error {
	return c.Send(ctx, protocol.EventGetMessages, protocol.GetMessagesPayload{
		RoomID: roomID,
		Limit:  limit,
		Offset: offset,
	})
}

// SignOut asks the server to end the session. The server closes the connection.
func (c *Client) SignOut(ctx context.Context) error {
	return c.Send(ctx, protocol.EventSignOut, nil)
}
