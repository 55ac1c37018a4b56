// Package transport holds what the TCP and WebSocket adapters share: option
// handling, the per-connection write loop and context-driven deadlines.
package transport

import (
	"context"
	"errors"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/omochice/roomcast/internal/chat"
)

const (
	DefaultQueueSize    = 256
	DefaultWriteTimeout = 10 * time.Second
)

// Settings are the knobs shared by both servers.
type Settings struct {
	Logger       *zap.Logger
	QueueSize    int
	WriteTimeout time.Duration
}

// Option configures Settings.
type Option func(*Settings)

func WithLogger(l *zap.Logger) Option { return func(s *Settings) { s.Logger = l } }

// WithQueueSize bounds the outbound frames buffered per connection.
func WithQueueSize(n int) Option { return func(s *Settings) { s.QueueSize = n } }

func WithWriteTimeout(d time.Duration) Option { return func(s *Settings) { s.WriteTimeout = d } }

// NewSettings applies opts over the defaults.
func NewSettings(opts ...Option) Settings {
	s := Settings{
		Logger:       zap.NewNop(),
		QueueSize:    DefaultQueueSize,
		WriteTimeout: DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Serve runs conn through hub until the connection ends. The connection is
// closed once every frame queued before teardown has been written.
func Serve(ctx context.Context, hub *chat.Hub, conn chat.Conn, s Settings) error {
	client := chat.NewClient(conn, s.QueueSize)
	written := make(chan struct{})
	go func() {
		defer close(written)
		writeLoop(client, s)
	}()

	err := hub.HandleClient(ctx, client)
	<-written
	return err
}

func writeLoop(client *chat.Client, s Settings) {
	defer client.Conn.Close()

	for data := range client.Outgoing() {
		ctx, cancel := context.WithTimeout(context.Background(), s.WriteTimeout)
		err := client.Conn.Write(ctx, data)
		cancel()
		if err != nil {
			s.Logger.Warn("write failed",
				zap.String("connID", string(client.ID)), zap.String("remote", client.Conn.RemoteAddr()), zap.Error(err))
			// Closing unblocks the reader, which tears the client down.
			_ = client.Conn.Close()
			for range client.Outgoing() {
			}
			return
		}
	}
}

var interrupted = time.Unix(1, 0)

// BindDeadline applies ctx's deadline through set and forces an immediate
// deadline when ctx is cancelled. Call the returned stop func once the I/O
// operation has finished.
func BindDeadline(ctx context.Context, set func(time.Time) error) (stop func() bool, err error) {
	deadline, _ := ctx.Deadline()
	if err := set(deadline); err != nil {
		return nil, err
	}
	return context.AfterFunc(ctx, func() { _ = set(interrupted) }), nil
}

// ContextError prefers the context's error over the I/O error it caused.
func ContextError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	// The socket deadline can fire just before the context timer does.
	if d, ok := ctx.Deadline(); ok && errors.Is(err, os.ErrDeadlineExceeded) && !time.Now().Before(d) {
		return context.DeadlineExceeded
	}
	return err
}

// ErrFrameTooLarge is returned for inbound frames over MaxFrameSize.
var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// MaxFrameSize bounds a single inbound frame.
const MaxFrameSize = 1 << 20
