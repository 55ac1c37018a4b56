// Package chat implements the real-time room coordinator shared by all
// transports: presence, room membership, rate limiting, message fan-out and
// unread accounting.
package chat

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/omochice/roomcast/pkg/protocol"
)

// Conn is one framed, bidirectional transport connection. Read is only
// called from the connection's handler goroutine and Write only from its
// writer; Close may be called from anywhere and must unblock both.
type Conn interface {
	// Read returns the next whole frame, or io.EOF once the peer is gone.
	// It returns early with ctx's error when ctx ends.
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
	// RemoteAddr is used for logging only.
	RemoteAddr() string
}

// ConnID identifies a single transport connection.
type ConnID string

func newConnID() ConnID {
	return ConnID(uuid.NewString())
}

// State is the lifecycle stage of a Client.
type State int

const (
	StateConnecting State = iota
	StateAuthenticated
	StateActive
	StateDisconnected
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateActive:
		return "ACTIVE"
	case StateDisconnected:
		return "DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}

// Identity is the verified owner of a connection.
type Identity struct {
	UserID      string
	DisplayName string
	AvatarRef   string
}

// Client represents a connected client with transport-agnostic connection.
// It is owned by the Hub from accept until Disconnect.
type Client struct {
	ID   ConnID
	Conn Conn

	format   protocol.Format
	outgoing chan []byte

	mu       sync.Mutex
	identity Identity
	state    State
	joined   map[string]struct{}
	closed   bool

	// busy is held while an inbound event is handled so teardown waits for it.
	busy sync.Mutex
	done chan struct{}
}

// NewClient wraps conn with an outbound queue of queueSize frames.
func NewClient(conn Conn, queueSize int) *Client {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Client{
		ID:       newConnID(),
		Conn:     conn,
		outgoing: make(chan []byte, queueSize),
		joined:   make(map[string]struct{}),
		done:     make(chan struct{}),
	}
}

// Outgoing is drained by the transport's write loop. It is closed on disconnect.
func (c *Client) Outgoing() <-chan []byte {
	return c.outgoing
}

// Done is closed once the client has been torn down.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) Identity() Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

func (c *Client) UserID() string {
	return c.Identity().UserID
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Format is the wire format negotiated from the first frame.
func (c *Client) Format() protocol.Format {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.format
}

// JoinedRooms returns the rooms this connection is a member of, sorted.
func (c *Client) JoinedRooms() []string {
	c.mu.Lock()
	rooms := lo.Keys(c.joined)
	c.mu.Unlock()
	sort.Strings(rooms)
	return rooms
}

func (c *Client) setFormat(f protocol.Format) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.format = f
}

// transition moves the client to next if it is currently in from.
func (c *Client) transition(from, next State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != from {
		return false
	}
	c.state = next
	return true
}

func (c *Client) authenticate(id Identity) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnecting {
		return false
	}
	c.identity = id
	c.state = StateAuthenticated
	return true
}

// markDisconnected returns the state the client was in before.
func (c *Client) markDisconnected() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.state
	c.state = StateDisconnected
	return prev
}

// send encodes env in the client's format and queues it without blocking.
func (c *Client) send(env protocol.Envelope) error {
	data, err := c.Format().Encode(env)
	if err != nil {
		return err
	}
	return c.deliver(data)
}

func (c *Client) deliver(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.outgoing <- data:
		return nil
	default:
		return ErrQueueFull
	}
}

// close stops delivery; queued frames are still drained by the writer.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.outgoing)
	close(c.done)
}
