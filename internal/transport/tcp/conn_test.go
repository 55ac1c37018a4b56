package tcp_test

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/omochice/roomcast/internal/chat"
	"github.com/omochice/roomcast/internal/transport"
	"github.com/omochice/roomcast/internal/transport/tcp"
)

func TestConn_ImplementsInterface(t *testing.T) {
	var _ chat.Conn = (*tcp.Conn)(nil)
}

func TestConn_Read(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	conn := tcp.NewConn(client)

	go func() {
		frame := binary.AppendUvarint(nil, uint64(len("test message")))
		frame = append(frame, "test message"...)
		// Two frames in one write must still be read one at a time.
		frame = append(frame, 0x02, 'h', 'i')
		server.Write(frame)
		server.Close()
	}()

	data, err := conn.Read(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "test message" {
		t.Errorf("Read() = %q, want %q", string(data), "test message")
	}

	data, err = conn.Read(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != "hi" {
		t.Errorf("Read() = %q, want %q", string(data), "hi")
	}

	if _, err := conn.Read(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("Read() after close error = %v, want io.EOF", err)
	}
}

func TestConn_Read_TruncatedFrame(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	conn := tcp.NewConn(client)

	go func() {
		server.Write([]byte{0x05, 'a', 'b'})
		server.Close()
	}()

	if _, err := conn.Read(context.Background()); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Read() error = %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestConn_Read_TooLarge(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	conn := tcp.NewConn(client)

	go server.Write(binary.AppendUvarint(nil, transport.MaxFrameSize+1))

	if _, err := conn.Read(context.Background()); !errors.Is(err, transport.ErrFrameTooLarge) {
		t.Errorf("Read() error = %v, want ErrFrameTooLarge", err)
	}
}

func TestConn_Read_Deadline(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	conn := tcp.NewConn(client)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := conn.Read(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Read() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestConn_Read_Cancel(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	conn := tcp.NewConn(client)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	if _, err := conn.Read(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Read() error = %v, want context.Canceled", err)
	}
}

func TestConn_Write(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	conn := tcp.NewConn(client)

	go func() {
		err := conn.Write(context.Background(), []byte("hello"))
		if err != nil {
			t.Errorf("Write() error = %v", err)
		}
	}()

	buf := make([]byte, 1024)
	n, err := io.ReadAtLeast(server, buf, 6)
	if err != nil {
		t.Fatalf("server read error: %v", err)
	}
	if buf[0] != 5 || string(buf[1:n]) != "hello" {
		t.Errorf("server received %q, want length-prefixed %q", buf[:n], "hello")
	}
}

func TestConn_Close(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	conn := tcp.NewConn(client)

	err := conn.Close()
	if err != nil {
		t.Errorf("Close() error = %v", err)
	}

	_, err = client.Read(make([]byte, 1))
	if err == nil {
		t.Error("expected error after close, got nil")
	}
}

func TestConn_RemoteAddr(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	conn := tcp.NewConn(client)

	addr := conn.RemoteAddr()
	if addr == "" {
		t.Error("RemoteAddr() returned empty string")
	}
}
