package ws

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"go.uber.org/zap"

	"github.com/omochice/roomcast/internal/chat"
	"github.com/omochice/roomcast/internal/transport"
)

// Path is where the server accepts WebSocket upgrades.
const Path = "/ws"

// Server handles WebSocket connections and delegates to Hub.
type Server struct {
	address  string
	hub      *chat.Hub
	settings transport.Settings

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// New creates a WebSocket server that uses the provided Hub.
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

// Listen binds the listening socket so Addr is known before Start.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start WebSocket server: %w", err)
	}
	s.listener = listener
	return nil
}

// Start serves upgrades until ctx is cancelled or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc(Path, s.handleWebSocket)

	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.listener.Close()
		s.mu.Unlock()
		return nil
	}
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	server, listener := s.server, s.listener
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, s.Stop)
	defer stop()

	s.settings.Logger.Info("WebSocket server started", zap.String("addr", listener.Addr().String()))
	err := server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		s.wg.Wait()
		return nil
	}
	return fmt.Errorf("WebSocket server error: %w", err)
}

// Stop stops the WebSocket server and waits for its connections to end.
func (s *Server) Stop() {
	s.mu.Lock()
	s.cancel()
	server, listener := s.server, s.listener
	s.mu.Unlock()

	if server != nil {
		server.Close()
	} else if listener != nil {
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

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, br, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.settings.Logger.Debug("websocket upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}

	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	log := s.settings.Logger.With(zap.String("remote", r.RemoteAddr))
	log.Debug("websocket connection accepted")
	if err := transport.Serve(s.ctx, s.hub, NewServerConn(conn, br.Reader, r.RemoteAddr), s.settings); err != nil {
		log.Debug("websocket connection ended", zap.Error(err))
	}
}
