package tcp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"go.uber.org/zap"

	"github.com/omochice/roomcast/internal/chat"
	"github.com/omochice/roomcast/internal/transport"
	wst "github.com/omochice/roomcast/internal/transport/ws"
)

const sniffTimeout = 10 * time.Second

// Server handles TCP connections and delegates to Hub.
type Server struct {
	address  string
	hub      *chat.Hub
	settings transport.Settings
	// sniff serves WebSocket upgrades on the same port.
	sniff bool

	mu       sync.Mutex
	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a TCP server that uses the provided Hub.
func New(address string, hub *chat.Hub, opts ...transport.Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		address:  address,
		hub:      hub,
		settings: transport.NewSettings(opts...),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// NewUnified creates a server that accepts both framed TCP clients and
// WebSocket upgrades on one port, telling them apart by the first bytes.
func NewUnified(address string, hub *chat.Hub, opts ...transport.Option) *Server {
	s := New(address, hub, opts...)
	s.sniff = true
	return s
}

// Listen binds the listening socket so Addr is known before Start.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start TCP server: %w", err)
	}
	s.listener = listener
	return nil
}

// Start accepts TCP connections until ctx is cancelled or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, s.Stop)
	defer stop()

	s.mu.Lock()
	listener := s.listener
	stopped := s.ctx.Err() != nil
	s.mu.Unlock()
	if stopped {
		listener.Close()
		return nil
	}
	s.settings.Logger.Info("TCP server started", zap.String("addr", listener.Addr().String()), zap.Bool("websocket", s.sniff))

	for {
		conn, err := listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.wg.Wait()
				return nil
			}
			s.settings.Logger.Warn("failed to accept TCP connection", zap.Error(err))
			continue
		}

		s.mu.Lock()
		if s.ctx.Err() != nil {
			s.mu.Unlock()
			conn.Close()
			continue
		}
		s.wg.Add(1)
		s.mu.Unlock()

		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

// Stop stops the TCP server and waits for its connections to end.
func (s *Server) Stop() {
	s.mu.Lock()
	s.cancel()
	listener := s.listener
	s.mu.Unlock()

	if listener != nil {
		listener.Close()
	}
	s.wg.Wait()
}

// Addr returns the listening address.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) handleConnection(conn net.Conn) {
	log := s.settings.Logger.With(zap.String("remote", conn.RemoteAddr().String()))
	reader := bufio.NewReader(conn)

	var c chat.Conn
	if s.sniff && isHTTP(conn, reader) {
		upgraded, err := s.upgrade(conn, reader)
		if err != nil {
			log.Debug("websocket upgrade failed", zap.Error(err))
			conn.Close()
			return
		}
		c = upgraded
	} else {
		c = NewConnWithReader(conn, reader)
	}

	log.Debug("connection accepted")
	if err := transport.Serve(s.ctx, s.hub, c, s.settings); err != nil {
		log.Debug("connection ended", zap.Error(err))
	}
}

// isHTTP peeks at the first bytes. A framed payload is either JSON or a
// protobuf message, neither of which can follow a length byte with "ET ".
func isHTTP(conn net.Conn, reader *bufio.Reader) bool {
	_ = conn.SetReadDeadline(time.Now().Add(sniffTimeout))
	defer conn.SetReadDeadline(time.Time{})
	prefix, err := reader.Peek(4)
	return err == nil && bytes.Equal(prefix, []byte("GET "))
}

func (s *Server) upgrade(conn net.Conn, reader *bufio.Reader) (*wst.Conn, error) {
	rw := &bufferedConn{Conn: conn, reader: reader}
	_ = conn.SetDeadline(time.Now().Add(sniffTimeout))
	defer conn.SetDeadline(time.Time{})
	if _, err := (ws.Upgrader{}).Upgrade(rw); err != nil {
		return nil, err
	}
	return wst.NewServerConn(rw, nil, conn.RemoteAddr().String()), nil
}

// bufferedConn wraps a net.Conn with a bufio.Reader to preserve peeked data
type bufferedConn struct {
	net.Conn
	reader *bufio.Reader
}

func (bc *bufferedConn) Read(p []byte) (int, error) {
	return bc.reader.Read(p)
}
