// Package ws provides WebSocket transport implementation for the chat server.
package ws

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/omochice/roomcast/internal/chat"
	"github.com/omochice/roomcast/internal/transport"
	"github.com/omochice/roomcast/pkg/protocol"
)

// Conn adapts a gobwas/ws connection to chat.Conn interface. It serves both
// sides: the server wraps upgraded connections, the client library dialed ones.
type Conn struct {
	conn       net.Conn
	state      ws.State
	reader     *wsutil.Reader
	remoteAddr string

	wmu    sync.Mutex
	closed bool
}

var _ chat.Conn = (*Conn)(nil)

// NewServerConn wraps an upgraded connection. br holds bytes buffered during
// the handshake and may be nil.
func NewServerConn(conn net.Conn, br *bufio.Reader, remoteAddr string) *Conn {
	return newConn(conn, br, ws.StateServerSide, remoteAddr)
}

// NewClientConn wraps a dialed connection.
func NewClientConn(conn net.Conn, br *bufio.Reader) *Conn {
	return newConn(conn, br, ws.StateClientSide, conn.RemoteAddr().String())
}

func newConn(conn net.Conn, br *bufio.Reader, state ws.State, remoteAddr string) *Conn {
	c := &Conn{conn: conn, state: state, remoteAddr: remoteAddr}
	var src io.Reader = conn
	if br != nil && br.Buffered() > 0 {
		src = io.MultiReader(br, conn)
	}
	c.reader = &wsutil.Reader{
		Source:         src,
		State:          state,
		CheckUTF8:      true,
		OnIntermediate: c.handleControl,
	}
	return c
}

// Read implements chat.Conn.
// Returns the next text or binary message; control frames are answered inline.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	stop, err := transport.BindDeadline(ctx, c.conn.SetReadDeadline)
	if err != nil {
		return nil, err
	}
	defer stop()

	for {
		hdr, err := c.reader.NextFrame()
		if err != nil {
			return nil, transport.ContextError(ctx, err)
		}
		if hdr.OpCode.IsControl() {
			if err := c.handleControl(hdr, c.reader); err != nil {
				return nil, closedAsEOF(err)
			}
			continue
		}
		if hdr.OpCode != ws.OpText && hdr.OpCode != ws.OpBinary {
			if err := c.reader.Discard(); err != nil {
				return nil, transport.ContextError(ctx, err)
			}
			continue
		}
		if hdr.Length > transport.MaxFrameSize {
			return nil, fmt.Errorf("%w: %d bytes", transport.ErrFrameTooLarge, hdr.Length)
		}
		data, err := io.ReadAll(io.LimitReader(c.reader, transport.MaxFrameSize+1))
		if err != nil {
			return nil, closedAsEOF(transport.ContextError(ctx, err))
		}
		if len(data) > transport.MaxFrameSize {
			return nil, fmt.Errorf("%w: fragmented message", transport.ErrFrameTooLarge)
		}
		return data, nil
	}
}

// handleControl answers pings and close frames. The reply is assembled off
// the socket so it never interleaves with a concurrent Write.
func (c *Conn) handleControl(hdr ws.Header, r io.Reader) error {
	var buf bytes.Buffer
	err := wsutil.ControlFrameHandler(&buf, c.state)(hdr, r)
	if buf.Len() > 0 {
		c.wmu.Lock()
		_, werr := c.conn.Write(buf.Bytes())
		c.wmu.Unlock()
		if err == nil {
			err = werr
		}
	}
	return err
}

func closedAsEOF(err error) error {
	var closed wsutil.ClosedError
	if errors.As(err, &closed) {
		return io.EOF
	}
	return err
}

// Write implements chat.Conn.
// JSON frames go out as text messages, everything else as binary.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	stop, err := transport.BindDeadline(ctx, c.conn.SetWriteDeadline)
	if err != nil {
		return err
	}
	defer stop()

	op := ws.OpBinary
	if protocol.IsJSON(data) {
		op = ws.OpText
	}
	if err := wsutil.WriteMessage(c.conn, c.state, op, data); err != nil {
		return transport.ContextError(ctx, err)
	}
	return nil
}

// Close implements chat.Conn.
// A close frame is sent on a best-effort basis before the socket is closed.
func (c *Conn) Close() error {
	c.wmu.Lock()
	if !c.closed {
		c.closed = true
		_ = c.conn.SetWriteDeadline(deadlineSoon())
		body := ws.NewCloseFrameBody(ws.StatusNormalClosure, "")
		_ = wsutil.WriteMessage(c.conn, c.state, ws.OpClose, body)
	}
	c.wmu.Unlock()
	return c.conn.Close()
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.remoteAddr
}

func deadlineSoon() time.Time {
	return time.Now().Add(time.Second)
}
