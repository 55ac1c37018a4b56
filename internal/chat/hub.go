package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/omochice/roomcast/pkg/protocol"
)

const (
	defaultMaxMessageLength = 2000
	defaultHistoryLimit     = 50
	maxHistoryLimit         = 100
	defaultAuthTimeout      = 10 * time.Second
	defaultPruneInterval    = time.Minute
)

var (
	errExpectedAuthenticate = errors.New("first frame must be authenticate")
	errNoVerifier           = errors.New("no token verifier configured")
	errSignOut              = errors.New("signed out")
)

// Hub manages all connected clients and coordinates rooms, presence, rate
// limits and unread counters. TCP and WebSocket servers share a single Hub.
type Hub struct {
	logger    *zap.Logger
	limiter   *Limiter
	presence  *Presence
	rooms     *Rooms
	unread    UnreadStore
	history   HistoryStore
	directory Directory
	verifier  TokenVerifier
	observer  PresenceObserver

	maxMessageLength int
	authTimeout      time.Duration
	idleTimeout      time.Duration
	pruneInterval    time.Duration
	now              func() time.Time

	mu      sync.RWMutex
	clients map[ConnID]*Client
}

// Option configures a Hub.
type Option func(*Hub)

func WithLogger(l *zap.Logger) Option { return func(h *Hub) { h.logger = l } }

func WithLimiter(l *Limiter) Option { return func(h *Hub) { h.limiter = l } }

func WithUnreadStore(s UnreadStore) Option { return func(h *Hub) { h.unread = s } }

func WithHistory(s HistoryStore) Option { return func(h *Hub) { h.history = s } }

func WithDirectory(d Directory) Option { return func(h *Hub) { h.directory = d } }

func WithVerifier(v TokenVerifier) Option { return func(h *Hub) { h.verifier = v } }

func WithPresenceObserver(o PresenceObserver) Option { return func(h *Hub) { h.observer = o } }

func WithMaxMessageLength(n int) Option { return func(h *Hub) { h.maxMessageLength = n } }

// WithAuthTimeout bounds how long a connection may stay unauthenticated.
func WithAuthTimeout(d time.Duration) Option { return func(h *Hub) { h.authTimeout = d } }

// WithIdleTimeout disconnects clients that send nothing for d. Zero disables it.
func WithIdleTimeout(d time.Duration) Option { return func(h *Hub) { h.idleTimeout = d } }

func WithPruneInterval(d time.Duration) Option { return func(h *Hub) { h.pruneInterval = d } }

// WithNow replaces the clock used to stamp messages.
func WithNow(now func() time.Time) Option { return func(h *Hub) { h.now = now } }

// NewHub creates a new Hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		logger:           zap.NewNop(),
		presence:         NewPresence(),
		rooms:            NewRooms(),
		history:          NopHistory{},
		maxMessageLength: defaultMaxMessageLength,
		authTimeout:      defaultAuthTimeout,
		pruneInterval:    defaultPruneInterval,
		now:              time.Now,
		clients:          make(map[ConnID]*Client),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.limiter == nil {
		h.limiter = NewLimiter(nil)
	}
	if h.unread == nil {
		h.unread = NewMemoryUnread()
	}
	if h.directory == nil {
		h.directory = NewStaticDirectory()
	}
	if h.observer == nil {
		log := h.logger
		h.observer = PresenceFunc(func(userID string, online bool) {
			log.Debug("presence changed", zap.String("userID", userID), zap.Bool("online", online))
		})
	}
	return h
}

func (h *Hub) Presence() *Presence { return h.presence }

func (h *Hub) Rooms() *Rooms { return h.rooms }

func (h *Hub) Limiter() *Limiter { return h.limiter }

func (h *Hub) Unread() UnreadStore { return h.unread }

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client.ID)
}

// ClientCount returns number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleClient runs the lifecycle of one connection: handshake, then inbound
// events in receipt order until the transport closes, the client signs out
// or ctx is cancelled. Teardown always runs before it returns.
func (h *Hub) HandleClient(ctx context.Context, client *Client) error {
	h.Register(client)
	defer h.Disconnect(client)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-client.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	log := h.logger.With(zap.String("connID", string(client.ID)), zap.String("remote", client.Conn.RemoteAddr()))

	if err := h.handshake(ctx, client); err != nil {
		log.Info("handshake failed", zap.Error(err))
		return err
	}
	log = log.With(zap.String("userID", client.UserID()))
	log.Info("client active")

	for {
		data, err := h.read(ctx, client, h.idleTimeout)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				log.Info("client disconnected")
				return nil
			}
			log.Info("read failed", zap.Error(err))
			return fmt.Errorf("read from %s: %w", client.ID, err)
		}

		env, err := client.Format().Decode(data)
		if err != nil {
			log.Debug("malformed frame", zap.Error(err))
			h.reply(client, protocol.EventError, protocol.ErrorPayload{Code: protocol.CodeMalformed, Message: err.Error()})
			continue
		}

		if err := h.Handle(ctx, client, env); errors.Is(err, errSignOut) {
			log.Info("client signed out")
			return nil
		}
	}
}

func (h *Hub) read(ctx context.Context, client *Client, timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		return client.Conn.Read(ctx)
	}
	readCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return client.Conn.Read(readCtx)
}

// handshake reads the authenticate frame and activates the client.
func (h *Hub) handshake(ctx context.Context, client *Client) error {
	data, err := h.read(ctx, client, h.authTimeout)
	if err != nil {
		return &AuthError{Err: err}
	}
	client.setFormat(protocol.Detect(data))

	env, err := client.Format().Decode(data)
	if err == nil && env.Event != protocol.EventAuthenticate {
		err = errExpectedAuthenticate
	}
	var p protocol.AuthenticatePayload
	if err == nil {
		err = env.Bind(&p)
	}
	if err != nil {
		aerr := &AuthError{Err: err}
		h.reply(client, protocol.EventError, errorPayload(protocol.EventAuthenticate, aerr))
		return aerr
	}
	return h.Authenticate(ctx, client, p.Token)
}

// Authenticate verifies token and moves client from Connecting through
// Authenticated to Active. On failure the client is told why and nothing is
// registered. The verifier runs before the connection is locked.
func (h *Hub) Authenticate(ctx context.Context, client *Client, token string) error {
	id, err := h.verify(ctx, token)

	client.busy.Lock()
	defer client.busy.Unlock()

	if err == nil {
		err = h.establish(ctx, client, id)
	}
	if err != nil {
		h.reply(client, protocol.EventError, errorPayload(protocol.EventAuthenticate, err))
	}
	return err
}

func (h *Hub) verify(ctx context.Context, token string) (Identity, error) {
	if h.verifier == nil {
		return Identity{}, &AuthError{Err: errNoVerifier}
	}
	id, err := h.verifier.Verify(ctx, token)
	if err != nil {
		return Identity{}, &AuthError{Err: err}
	}
	if !ValidUserID(id.UserID) {
		return Identity{}, &AuthError{Err: fmt.Errorf("malformed user id %q", id.UserID)}
	}
	if id.DisplayName == "" {
		id.DisplayName = id.UserID
	}
	return id, nil
}

// establish records id on client and activates it. Callers hold client.busy.
func (h *Hub) establish(ctx context.Context, client *Client, id Identity) error {
	if !client.authenticate(id) {
		return &AuthError{Err: fmt.Errorf("client is %s", client.State())}
	}
	return h.activate(ctx, client)
}

func (h *Hub) activate(ctx context.Context, client *Client) error {
	if !client.transition(StateAuthenticated, StateActive) {
		return &AuthError{Err: fmt.Errorf("client is %s", client.State())}
	}
	id := client.Identity()
	if h.presence.Register(client) {
		h.observer.PresenceChanged(id.UserID, true)
	}

	h.reply(client, protocol.EventAuthenticated, protocol.AuthenticatedPayload{
		ConnectionID: string(client.ID),
		UserID:       id.UserID,
		DisplayName:  id.DisplayName,
		AvatarRef:    id.AvatarRef,
	})

	counts, err := h.unread.Counts(ctx, id.UserID)
	if err != nil {
		h.logger.Warn("failed to load unread counts", zap.String("userID", id.UserID), zap.Error(err))
		return nil
	}
	h.reply(client, protocol.EventUnreadCounts, protocol.UnreadCountsPayload{Counts: counts})
	return nil
}

// Handle processes one inbound event of an active client. Rejections are
// reported to the client as error events and also returned.
func (h *Hub) Handle(ctx context.Context, client *Client, env protocol.Envelope) error {
	if env.Event == protocol.EventSignOut {
		return errSignOut
	}

	client.busy.Lock()
	defer client.busy.Unlock()

	if client.State() != StateActive {
		return ErrNotActive
	}

	err := h.dispatch(ctx, client, env)
	if err != nil {
		h.reply(client, protocol.EventError, errorPayload(env.Event, err))
	}
	return err
}

func (h *Hub) dispatch(ctx context.Context, client *Client, env protocol.Envelope) error {
	ev, err := ParseEvent(env)
	if err != nil {
		return err
	}

	switch ev := ev.(type) {
	case JoinRoom:
		return h.Join(client, ev.RoomID)
	case LeaveRoom:
		return h.Leave(client, ev.RoomID)
	case SendMessage:
		_, err := h.Send(ctx, client, ev)
		return err
	case GetMessages:
		return h.GetMessages(ctx, client, ev)
	case Typing:
		return h.SetTyping(client, ev.RoomID, ev.IsTyping)
	case MarkRead:
		return h.MarkRead(ctx, client, ev.SenderID)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}

// Disconnect tears client down: it waits for the in-flight event, leaves
// every joined room and deregisters from presence. It is idempotent.
func (h *Hub) Disconnect(client *Client) {
	client.busy.Lock()
	defer client.busy.Unlock()

	prev := client.markDisconnected()
	if prev == StateDisconnected {
		return
	}

	for _, roomID := range client.JoinedRooms() {
		h.rooms.Leave(client, roomID)
	}
	if prev == StateActive && h.presence.Deregister(client.ID) {
		h.observer.PresenceChanged(client.UserID(), false)
	}
	client.close()
	h.unregister(client)
}

// Shutdown disconnects every client.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	clients := lo.Values(h.clients)
	h.mu.RUnlock()

	for _, c := range clients {
		h.Disconnect(c)
	}
}

// Run performs periodic maintenance until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := h.limiter.Prune(); n > 0 {
				h.logger.Debug("pruned rate limit states", zap.Int("count", n))
			}
		}
	}
}

// reply sends an event to a single client, logging delivery failures.
func (h *Hub) reply(client *Client, event string, payload any) {
	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		h.logger.Error("failed to build envelope", zap.String("event", event), zap.Error(err))
		return
	}
	h.deliver(client, env)
}

// deliver queues env on client. A failure only affects that client.
func (h *Hub) deliver(client *Client, env protocol.Envelope) bool {
	if err := client.send(env); err != nil {
		terr := &TransportError{ConnID: client.ID, Err: err}
		h.logger.Warn("delivery skipped", zap.String("event", env.Event), zap.Error(terr))
		return false
	}
	return true
}
