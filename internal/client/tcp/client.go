// Package tcp dials the framed TCP transport.
package tcp

import (
	"context"
	"fmt"
	"net"

	"github.com/omochice/roomcast/internal/client"
	"github.com/omochice/roomcast/internal/transport/tcp"
)

// Dial connects to a TCP chat server at address.
func Dial(ctx context.Context, address string, opts ...client.Option) (*client.Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	return client.New(tcp.NewConn(conn), opts...), nil
}
