package chat_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/omochice/roomcast/internal/chat"
	"github.com/omochice/roomcast/pkg/protocol"
)

// mockConn is a mock implementation of chat.Conn for testing.
type mockConn struct {
	readCh     chan []byte
	readErr    error
	writtenMu  sync.Mutex
	written    [][]byte
	writeErr   error
	closed     bool
	remoteAddr string
}

func newMockConn(addr string) *mockConn {
	return &mockConn{
		readCh:     make(chan []byte, 10),
		remoteAddr: addr,
	}
}

func (m *mockConn) Read(ctx context.Context) ([]byte, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case data, ok := <-m.readCh:
		if !ok {
			return nil, io.EOF
		}
		return data, nil
	}
}

func (m *mockConn) Write(ctx context.Context, data []byte) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.writtenMu.Lock()
	defer m.writtenMu.Unlock()
	copied := make([]byte, len(data))
	copy(copied, data)
	m.written = append(m.written, copied)
	return nil
}

func (m *mockConn) Close() error {
	m.writtenMu.Lock()
	defer m.writtenMu.Unlock()
	m.closed = true
	return nil
}

func (m *mockConn) RemoteAddr() string {
	return m.remoteAddr
}

// Compile-time check that mockConn implements chat.Conn
var _ chat.Conn = (*mockConn)(nil)

// tokenVerifier accepts any token that is a valid user id and uses it as
// both user id and display name.
type tokenVerifier struct{}

func (tokenVerifier) Verify(_ context.Context, token string) (chat.Identity, error) {
	if token == "" || token == "bad" {
		return chat.Identity{}, errors.New("invalid token")
	}
	return chat.Identity{UserID: token, DisplayName: "User " + token}, nil
}

func newTestHub(opts ...chat.Option) *chat.Hub {
	return chat.NewHub(append([]chat.Option{chat.WithVerifier(tokenVerifier{})}, opts...)...)
}

// connect authenticates a new client as userID and discards the activation replies.
func connect(t *testing.T, hub *chat.Hub, userID string) *chat.Client {
	t.Helper()
	client := chat.NewClient(newMockConn("127.0.0.1:1234"), 64)
	hub.Register(client)
	require.NoError(t, hub.Authenticate(context.Background(), client, userID))
	drain(t, client)
	return client
}

// drain returns every queued outbound event of client.
func drain(t *testing.T, client *chat.Client) []protocol.Envelope {
	t.Helper()
	var out []protocol.Envelope
	for {
		select {
		case data, ok := <-client.Outgoing():
			if !ok {
				return out
			}
			env, err := client.Format().Decode(data)
			require.NoError(t, err)
			out = append(out, env)
		default:
			return out
		}
	}
}

// ofEvent filters envelopes by event name.
func ofEvent(envs []protocol.Envelope, event string) []protocol.Envelope {
	var out []protocol.Envelope
	for _, e := range envs {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func mustEnvelope(t *testing.T, event string, payload any) protocol.Envelope {
	t.Helper()
	env, err := protocol.NewEnvelope(event, payload)
	require.NoError(t, err)
	return env
}
