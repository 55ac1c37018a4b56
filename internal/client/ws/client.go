// Package ws dials the WebSocket transport.
package ws

import (
	"context"
	"fmt"

	"github.com/gobwas/ws"

	"github.com/omochice/roomcast/internal/client"
	wst "github.com/omochice/roomcast/internal/transport/ws"
)

// Dial performs the WebSocket handshake against url, e.g. ws://localhost:8081/ws.
func Dial(ctx context.Context, url string, opts ...client.Option) (*client.Client, error) {
	conn, br, _, err := ws.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	// br holds frames sent along with the handshake response, if any.
	return client.New(wst.NewClientConn(conn, br), opts...), nil
}
