// Package tcp provides TCP transport implementation for the chat server.
//
// Frames are length-delimited: a uvarint byte count followed by the frame.
package tcp

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/omochice/roomcast/internal/chat"
	"github.com/omochice/roomcast/internal/transport"
)

// Conn adapts net.Conn to chat.Conn interface.
type Conn struct {
	conn   net.Conn
	reader *bufio.Reader
	wmu    sync.Mutex
}

var _ chat.Conn = (*Conn)(nil)

// NewConn wraps a net.Conn.
func NewConn(conn net.Conn) *Conn {
	return NewConnWithReader(conn, bufio.NewReader(conn))
}

// NewConnWithReader wraps conn whose first bytes were already buffered in reader.
func NewConnWithReader(conn net.Conn, reader *bufio.Reader) *Conn {
	return &Conn{conn: conn, reader: reader}
}

// Read implements chat.Conn.
// Reads exactly one frame from the TCP connection.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	stop, err := transport.BindDeadline(ctx, c.conn.SetReadDeadline)
	if err != nil {
		return nil, err
	}
	defer stop()

	size, err := binary.ReadUvarint(c.reader)
	if err != nil {
		return nil, transport.ContextError(ctx, err)
	}
	if size > transport.MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", transport.ErrFrameTooLarge, size)
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(c.reader, data); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, transport.ContextError(ctx, err)
	}
	return data, nil
}

// Write implements chat.Conn.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	stop, err := transport.BindDeadline(ctx, c.conn.SetWriteDeadline)
	if err != nil {
		return err
	}
	defer stop()

	frame := binary.AppendUvarint(make([]byte, 0, binary.MaxVarintLen64+len(data)), uint64(len(data)))
	frame = append(frame, data...)
	if _, err := c.conn.Write(frame); err != nil {
		return transport.ContextError(ctx, err)
	}
	return nil
}

// Close implements chat.Conn.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
