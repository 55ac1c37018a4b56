package client_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/omochice/roomcast/internal/client"
	"github.com/omochice/roomcast/pkg/protocol"
)

// pipeConn is an in-memory chat.Conn driven by the test.
type pipeConn struct {
	inbound chan []byte

	mu      sync.Mutex
	written [][]byte
	closed  bool
}

func newPipeConn() *pipeConn {
	return &pipeConn{inbound: make(chan []byte, 16)}
}

func (p *pipeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case data, ok := <-p.inbound:
		if !ok {
			return nil, io.EOF
		}
		return data, nil
	}
}

func (p *pipeConn) Write(_ context.Context, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return io.ErrClosedPipe
	}
	p.written = append(p.written, append([]byte(nil), data...))
	return nil
}

func (p *pipeConn) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *pipeConn) RemoteAddr() string { return "pipe" }

func (p *pipeConn) sent(t *testing.T) []protocol.Envelope {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	envs := make([]protocol.Envelope, 0, len(p.written))
	for _, data := range p.written {
		env, err := protocol.Detect(data).Decode(data)
		require.NoError(t, err)
		envs = append(envs, env)
	}
	return envs
}

func (p *pipeConn) push(t *testing.T, f protocol.Format, event string, payload any) {
	t.Helper()
	env, err := protocol.NewEnvelope(event, payload)
	require.NoError(t, err)
	data, err := f.Encode(env)
	require.NoError(t, err)
	p.inbound <- data
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestClient_SendUsesFormat(t *testing.T) {
	tests := []struct {
		name   string
		format protocol.Format
		json   bool
	}{
		{"binary by default", protocol.FormatBinary, false},
		{"json", protocol.FormatJSON, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := newPipeConn()
			c := client.New(conn, client.WithFormat(tt.format))
			defer c.Close()

			require.NoError(t, c.JoinRoom(testContext(t), "lobby"))

			conn.mu.Lock()
			require.Len(t, conn.written, 1)
			require.Equal(t, tt.json, protocol.IsJSON(conn.written[0]))
			conn.mu.Unlock()
		})
	}
}

func TestClient_Requests(t *testing.T) {
	conn := newPipeConn()
	c := client.New(conn, client.WithFormat(protocol.FormatJSON))
	defer c.Close()
	ctx := testContext(t)

	require.NoError(t, c.JoinRoom(ctx, "lobby"))
	require.NoError(t, c.SendMessage(ctx, "lobby", "hi", ""))
	require.NoError(t, c.SendMessage(ctx, "dm:alice:bob", "psst", "bob"))
	require.NoError(t, c.Typing(ctx, "lobby", true))
	require.NoError(t, c.Typing(ctx, "lobby", false))
	require.NoError(t, c.MarkRead(ctx, "bob"))
	require.NoError(t, c.GetMessages(ctx, "lobby", 10, 5))
	require.NoError(t, c.LeaveRoom(ctx, "lobby"))
	require.NoError(t, c.SignOut(ctx))

	sent := conn.sent(t)
	events := make([]string, len(sent))
	for i, env := range sent {
		events[i] = env.Event
	}
	require.Equal(t, []string{
		protocol.EventJoinRoom,
		protocol.EventSendMessage,
		protocol.EventSendMessage,
		protocol.EventTypingStart,
		protocol.EventTypingStop,
		protocol.EventMarkRead,
		protocol.EventGetMessages,
		protocol.EventLeaveRoom,
		protocol.EventSignOut,
	}, events)

	var dm protocol.SendMessagePayload
	require.NoError(t, sent[2].Bind(&dm))
	require.Equal(t, protocol.SendMessagePayload{RoomID: "dm:alice:bob", Message: "psst", RecipientID: "bob"}, dm)

	var page protocol.GetMessagesPayload
	require.NoError(t, sent[6].Bind(&page))
	require.Equal(t, protocol.GetMessagesPayload{RoomID: "lobby", Limit: 10, Offset: 5}, page)
}

func TestClient_Authenticate(t *testing.T) {
	conn := newPipeConn()
	c := client.New(conn)
	defer c.Close()

	conn.push(t, protocol.FormatBinary, protocol.EventAuthenticated, protocol.AuthenticatedPayload{
		ConnectionID: "c1",
		UserID:       "alice",
		DisplayName:  "Alice",
	})

	got, err := c.Authenticate(testContext(t), "token")
	require.NoError(t, err)
	require.Equal(t, "alice", got.UserID)
	require.Equal(t, "c1", got.ConnectionID)

	sent := conn.sent(t)
	require.Len(t, sent, 1)
	var p protocol.AuthenticatePayload
	require.NoError(t, sent[0].Bind(&p))
	require.Equal(t, "token", p.Token)
}

func TestClient_AuthenticateRejected(t *testing.T) {
	conn := newPipeConn()
	c := client.New(conn)
	defer c.Close()

	conn.push(t, protocol.FormatJSON, protocol.EventError, protocol.ErrorPayload{
		Code:    protocol.CodeAuthentication,
		Message: "token expired",
		Event:   protocol.EventAuthenticate,
	})

	_, err := c.Authenticate(testContext(t), "token")
	var serr *client.ServerError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, protocol.CodeAuthentication, serr.Code)
	require.Contains(t, err.Error(), "token expired")
}

func TestClient_AwaitSkipsOtherEvents(t *testing.T) {
	conn := newPipeConn()
	c := client.New(conn)
	defer c.Close()

	conn.push(t, protocol.FormatJSON, protocol.EventUserTyping, protocol.UserTypingPayload{RoomID: "lobby", UserID: "bob"})
	conn.push(t, protocol.FormatJSON, protocol.EventError, protocol.ErrorPayload{
		Code:  protocol.CodeRateLimited,
		Event: protocol.EventTypingStart,
	})
	conn.push(t, protocol.FormatBinary, protocol.EventRoomJoined, protocol.RoomPayload{RoomID: "lobby"})

	env, err := c.Await(testContext(t), protocol.EventRoomJoined)
	require.NoError(t, err)
	var p protocol.RoomPayload
	require.NoError(t, env.Bind(&p))
	require.Equal(t, "lobby", p.RoomID)
}

func TestClient_AwaitTimeout(t *testing.T) {
	c := client.New(newPipeConn())
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Await(ctx, protocol.EventMessages)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_ConnectionEnds(t *testing.T) {
	conn := newPipeConn()
	c := client.New(conn)
	defer c.Close()

	close(conn.inbound)

	_, err := c.Await(testContext(t), protocol.EventMessages)
	require.ErrorIs(t, err, io.EOF)

	_, ok := <-c.Events()
	require.False(t, ok)
	require.ErrorIs(t, c.Err(), io.EOF)
}

func TestClient_Close(t *testing.T) {
	conn := newPipeConn()
	c := client.New(conn)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	conn.mu.Lock()
	require.True(t, conn.closed)
	conn.mu.Unlock()

	require.ErrorIs(t, c.JoinRoom(testContext(t), "lobby"), client.ErrClosed)
	require.NoError(t, c.Err())
}

func TestClient_SkipsUndecodableFrames(t *testing.T) {
	conn := newPipeConn()
	c := client.New(conn)
	defer c.Close()

	conn.inbound <- []byte("{broken")
	conn.push(t, protocol.FormatJSON, protocol.EventRoomLeft, protocol.RoomPayload{RoomID: "lobby"})

	select {
	case env := <-c.Events():
		require.Equal(t, protocol.EventRoomLeft, env.Event)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}
